package services

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/LegalDragon/pickleball-community/models"
	"github.com/LegalDragon/pickleball-community/repositories"
)

const (
	SettingsSourcePhaseOverride = "phase_override"
	SettingsSourcePhase         = "phase"
	SettingsSourceMatchFormat   = "match_format"
	SettingsSourceDivision      = "division"
	SettingsSourceGlobal        = "global"
)

const globalBestOf = 1

type GameSettingsService interface {
	// ResolveGameSettings never fails: lookup errors are logged and the next level is used.
	ResolveGameSettings(ctx context.Context, phaseID int, matchFormatID *int) models.GameSettings
}

type gameSettingsService struct {
	phaseRepo            repositories.PhaseRepository
	divisionRepo         repositories.DivisionRepository
	matchFormatRepo      repositories.MatchFormatRepository
	defaultScoreFormatID *int
	logger               *slog.Logger
}

func NewGameSettingsService(
	phaseRepo repositories.PhaseRepository,
	divisionRepo repositories.DivisionRepository,
	matchFormatRepo repositories.MatchFormatRepository,
	defaultScoreFormatID *int,
	logger *slog.Logger,
) GameSettingsService {
	return &gameSettingsService{
		phaseRepo:            phaseRepo,
		divisionRepo:         divisionRepo,
		matchFormatRepo:      matchFormatRepo,
		defaultScoreFormatID: defaultScoreFormatID,
		logger:               logger,
	}
}

// settingsLevel is one candidate in the fallback chain.
type settingsLevel struct {
	source        string
	bestOf        *int
	scoreFormatID *int
}

func (s *gameSettingsService) ResolveGameSettings(ctx context.Context, phaseID int, matchFormatID *int) models.GameSettings {
	var (
		phase    *models.Phase
		format   *models.MatchFormat
		override *models.PhaseMatchFormatOverride
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.phaseRepo.GetByID(gctx, phaseID)
		if err != nil {
			s.logLookup(gctx, "phase", phaseID, err)
			return nil
		}
		phase = p
		return nil
	})
	if matchFormatID != nil {
		g.Go(func() error {
			f, err := s.matchFormatRepo.GetByID(gctx, *matchFormatID)
			if err != nil {
				s.logLookup(gctx, "match_format", *matchFormatID, err)
				return nil
			}
			format = f
			return nil
		})
		g.Go(func() error {
			o, err := s.matchFormatRepo.GetPhaseOverride(gctx, phaseID, *matchFormatID)
			if err != nil {
				if !errors.Is(err, repositories.ErrOverrideNotFound) {
					s.logLookup(gctx, "phase_override", phaseID, err)
				}
				return nil
			}
			override = o
			return nil
		})
	}
	_ = g.Wait()

	var division *models.Division
	if phase != nil {
		d, err := s.divisionRepo.GetByID(ctx, phase.DivisionID)
		if err != nil {
			s.logLookup(ctx, "division", phase.DivisionID, err)
		} else {
			division = d
		}
		if format != nil && format.DivisionID != phase.DivisionID {
			s.logger.WarnContext(ctx, "match format belongs to another division",
				slog.Int("match_format_id", format.ID), slog.Int("phase_id", phaseID))
			format = nil
		}
	}

	levels := make([]settingsLevel, 0, 5)
	if override != nil {
		levels = append(levels, settingsLevel{SettingsSourcePhaseOverride, override.BestOf, override.ScoreFormatID})
	}
	if phase != nil {
		levels = append(levels, settingsLevel{SettingsSourcePhase, phase.BestOf, phase.ScoreFormatID})
	}
	if format != nil {
		levels = append(levels, settingsLevel{SettingsSourceMatchFormat, format.BestOf, format.ScoreFormatID})
	}
	if division != nil {
		levels = append(levels, settingsLevel{SettingsSourceDivision, division.DefaultBestOf, division.DefaultScoreFormatID})
	}

	return resolveSettings(phaseID, matchFormatID, levels, s.defaultScoreFormatID)
}

// resolveSettings takes each value from the first level that sets it. Source
// names the level that decided best-of.
func resolveSettings(phaseID int, matchFormatID *int, levels []settingsLevel, defaultScoreFormatID *int) models.GameSettings {
	settings := models.GameSettings{
		PhaseID:       phaseID,
		MatchFormatID: matchFormatID,
		BestOf:        globalBestOf,
		ScoreFormatID: defaultScoreFormatID,
		Source:        SettingsSourceGlobal,
	}
	bestOfSet, scoreSet := false, false
	for _, l := range levels {
		if !bestOfSet && l.bestOf != nil && *l.bestOf > 0 {
			settings.BestOf = *l.bestOf
			settings.Source = l.source
			bestOfSet = true
		}
		if !scoreSet && l.scoreFormatID != nil {
			id := *l.scoreFormatID
			settings.ScoreFormatID = &id
			scoreSet = true
		}
	}
	return settings
}

func (s *gameSettingsService) logLookup(ctx context.Context, level string, id int, err error) {
	s.logger.WarnContext(ctx, "game settings lookup failed, falling back",
		slog.String("level", level), slog.Int("id", id), slog.Any("error", err))
}
