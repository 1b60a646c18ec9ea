package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LegalDragon/pickleball-community/brackets"
	"github.com/LegalDragon/pickleball-community/models"
	"github.com/LegalDragon/pickleball-community/queue"
	"github.com/LegalDragon/pickleball-community/repositories"
)

type ScheduleService interface {
	GenerateSchedule(ctx context.Context, actor Actor, divisionID int, input GenerateScheduleInput) (*ScheduleOutput, error)
	GetSchedule(ctx context.Context, divisionID int) (*DivisionSchedule, error)
}

type GenerateScheduleInput struct {
	TemplateID int `json:"template_id" validate:"required"`
	// UnitCount overrides the number of eligible units registered in the division.
	UnitCount           *int `json:"unit_count,omitempty"`
	ClearExistingPhases bool `json:"clear_existing_phases"`
}

type PhaseSummary struct {
	ID             int              `json:"id,omitempty"`
	Order          int              `json:"order"`
	Name           string           `json:"name"`
	Type           models.PhaseType `json:"type"`
	IncomingSlots  int              `json:"incoming_slots"`
	ExitingSlots   int              `json:"exiting_slots"`
	PoolCount      int              `json:"pool_count"`
	EncounterCount int              `json:"encounter_count"`
	Byes           int              `json:"byes"`
	Rounds         int              `json:"rounds"`
}

// ScheduleOutput describes a resolved schedule. Rules reference phases by order.
type ScheduleOutput struct {
	DivisionID       int                        `json:"division_id,omitempty"`
	TemplateID       int                        `json:"template_id"`
	UnitCount        int                        `json:"unit_count"`
	Phases           []PhaseSummary             `json:"phases"`
	AdvancementRules []brackets.AdvancementRule `json:"advancement_rules"`
	TotalEncounters  int                        `json:"total_encounters"`
	TotalRounds      int                        `json:"total_rounds"`
	PhaseIDs         []int                      `json:"phase_ids,omitempty"`
}

// DivisionSchedule is the persisted schedule with slots and encounters attached to phases.
type DivisionSchedule struct {
	DivisionID       int                      `json:"division_id"`
	Phases           []models.Phase           `json:"phases"`
	AdvancementRules []models.AdvancementRule `json:"advancement_rules"`
	TotalEncounters  int                      `json:"total_encounters"`
}

type scheduleService struct {
	templateRepo repositories.TemplateRepository
	divisionRepo repositories.DivisionRepository
	phaseRepo    repositories.PhaseRepository
	txManager    repositories.TxManager
	publisher    queue.Publisher
	locks        *DivisionLocks
	logger       *slog.Logger
}

func NewScheduleService(
	templateRepo repositories.TemplateRepository,
	divisionRepo repositories.DivisionRepository,
	phaseRepo repositories.PhaseRepository,
	txManager repositories.TxManager,
	publisher queue.Publisher,
	locks *DivisionLocks,
	logger *slog.Logger,
) ScheduleService {
	return &scheduleService{
		templateRepo: templateRepo,
		divisionRepo: divisionRepo,
		phaseRepo:    phaseRepo,
		txManager:    txManager,
		publisher:    publisher,
		locks:        locks,
		logger:       logger,
	}
}

func newScheduleOutput(res *brackets.Resolution) *ScheduleOutput {
	out := &ScheduleOutput{
		UnitCount:        res.Units,
		Phases:           make([]PhaseSummary, 0, len(res.Phases)),
		AdvancementRules: res.Rules,
		TotalEncounters:  res.TotalEncounters(),
		TotalRounds:      res.TotalRounds(),
	}
	if out.AdvancementRules == nil {
		out.AdvancementRules = []brackets.AdvancementRule{}
	}
	for i := range res.Phases {
		p := &res.Phases[i]
		out.Phases = append(out.Phases, PhaseSummary{
			Order:          p.Order,
			Name:           p.Name,
			Type:           p.Type,
			IncomingSlots:  p.IncomingSlots,
			ExitingSlots:   p.ExitingSlots,
			PoolCount:      p.PoolCount,
			EncounterCount: p.EncounterCount(),
			Byes:           p.Byes,
			Rounds:         p.Rounds,
		})
	}
	return out
}

func (s *scheduleService) GenerateSchedule(ctx context.Context, actor Actor, divisionID int, input GenerateScheduleInput) (*ScheduleOutput, error) {
	division, err := s.divisionRepo.GetByID(ctx, divisionID)
	if err != nil {
		if errors.Is(err, repositories.ErrDivisionNotFound) {
			return nil, ErrDivisionNotFound
		}
		return nil, fmt.Errorf("failed to get division %d: %w", divisionID, err)
	}

	template, err := s.templateRepo.GetByID(ctx, input.TemplateID)
	if err != nil {
		if errors.Is(err, repositories.ErrTemplateNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get template %d: %w", input.TemplateID, err)
	}

	var n int
	if input.UnitCount != nil {
		n = *input.UnitCount
	} else {
		n, err = s.divisionRepo.CountEligibleUnits(ctx, divisionID)
		if err != nil {
			return nil, fmt.Errorf("failed to count units of division %d: %w", divisionID, err)
		}
	}

	res, err := brackets.Resolve(template, n)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(divisionID)
	defer unlock()

	var phaseIDs []int
	err = s.txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		// первая генерация: блокировать ещё нечего
		if err := s.phaseRepo.LockDivision(ctx, exec, divisionID); err != nil && !errors.Is(err, repositories.ErrPhaseNotFound) {
			return err
		}
		existing, err := s.phaseRepo.CountByDivision(ctx, exec, divisionID)
		if err != nil {
			return err
		}
		if existing > 0 {
			if !input.ClearExistingPhases {
				return ErrScheduleAlreadyExists
			}
			if err := s.phaseRepo.DeleteByDivision(ctx, exec, divisionID); err != nil {
				return err
			}
		}

		phaseIDs, err = s.persistResolution(ctx, exec, division, template.ID, res)
		return err
	})
	if err != nil {
		if errors.Is(err, repositories.ErrPhaseOrderConflict) || errors.Is(err, repositories.ErrPhaseRuleConflict) {
			return nil, fmt.Errorf("%w: %v", ErrScheduleAlreadyExists, err)
		}
		return nil, err
	}

	out := newScheduleOutput(res)
	out.DivisionID = divisionID
	out.TemplateID = template.ID
	out.PhaseIDs = phaseIDs
	for i := range out.Phases {
		out.Phases[i].ID = phaseIDs[i]
	}

	s.logger.InfoContext(ctx, "schedule generated",
		slog.Int("division_id", divisionID),
		slog.Int("template_id", template.ID),
		slog.Int("units", n),
		slog.Int("phases", len(phaseIDs)),
		slog.Int("encounters", out.TotalEncounters))

	event := queue.ScheduleGeneratedEvent{
		DivisionID:      divisionID,
		TemplateID:      template.ID,
		UnitCount:       n,
		PhaseIDs:        phaseIDs,
		TotalEncounters: out.TotalEncounters,
		GeneratedBy:     actor.UserID,
		GeneratedAt:     time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, queue.ScheduleGeneratedQueue, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish schedule event", slog.Int("division_id", divisionID), slog.Any("error", err))
	}
	return out, nil
}

// persistResolution writes phases, slots, encounters and rules in resolution
// order and returns the created phase ids.
func (s *scheduleService) persistResolution(ctx context.Context, exec repositories.SQLExecutor, division *models.Division, templateID int, res *brackets.Resolution) ([]int, error) {
	idByOrder := make(map[int]int, len(res.Phases))
	phaseIDs := make([]int, 0, len(res.Phases))

	for i := range res.Phases {
		spec := &res.Phases[i]
		phase := &models.Phase{
			DivisionID:         division.ID,
			TemplateID:         &templateID,
			PhaseOrder:         spec.Order,
			Name:               spec.Name,
			PhaseType:          spec.Type,
			EntrySlots:         spec.IncomingSlots,
			ExitSlots:          spec.ExitingSlots,
			PoolCount:          spec.PoolCount,
			ByeCount:           spec.Byes,
			IncludeConsolation: spec.IncludeConsolation,
			BracketRound:       intPtrOrNil(spec.BracketRound),
			BestOf:             spec.BestOf,
			ScoreFormatID:      spec.ScoreFormatID,
		}
		if spec.BracketSide != "" {
			side := spec.BracketSide
			phase.BracketSide = &side
		}
		if err := s.phaseRepo.CreatePhase(ctx, exec, phase); err != nil {
			return nil, err
		}
		idByOrder[spec.Order] = phase.ID
		phaseIDs = append(phaseIDs, phase.ID)

		if err := s.phaseRepo.CreateSlots(ctx, exec, phase.ID, spec.IncomingSlots, spec.PoolOf); err != nil {
			return nil, err
		}

		bestOf, scoreFormatID := encounterSettings(spec, division)
		for _, e := range spec.Encounters {
			encounter := &models.Encounter{
				PhaseID:         phase.ID,
				EncounterNumber: e.Number,
				RoundNumber:     e.Round,
				PoolNumber:      intPtrOrNil(e.Pool),
				SlotA:           e.SlotA,
				SlotB:           e.SlotB,
				WinnerPosition:  intPtrOrNil(e.WinnerPosition),
				LoserPosition:   intPtrOrNil(e.LoserPosition),
				Label:           e.Label,
				BestOf:          bestOf,
				ScoreFormatID:   scoreFormatID,
			}
			if err := s.phaseRepo.CreateEncounter(ctx, exec, encounter); err != nil {
				return nil, err
			}
		}
	}

	for _, r := range res.Rules {
		rule := &models.AdvancementRule{
			DivisionID:       division.ID,
			SourcePhaseID:    idByOrder[r.SourcePhase],
			SourcePosition:   r.SourcePosition,
			SourceLabel:      r.SourceLabel,
			TargetPhaseID:    idByOrder[r.TargetPhase],
			TargetSlotNumber: r.TargetSlot,
		}
		if err := s.phaseRepo.CreateRule(ctx, exec, rule); err != nil {
			return nil, err
		}
	}
	return phaseIDs, nil
}

// encounterSettings picks the phase setting, then the division default, then best of 1.
func encounterSettings(spec *brackets.PhaseSpec, division *models.Division) (int, *int) {
	bestOf := 1
	switch {
	case spec.BestOf != nil:
		bestOf = *spec.BestOf
	case division.DefaultBestOf != nil:
		bestOf = *division.DefaultBestOf
	}
	scoreFormatID := spec.ScoreFormatID
	if scoreFormatID == nil {
		scoreFormatID = division.DefaultScoreFormatID
	}
	return bestOf, scoreFormatID
}

func (s *scheduleService) GetSchedule(ctx context.Context, divisionID int) (*DivisionSchedule, error) {
	layout, err := loadDivisionLayout(ctx, s.phaseRepo, divisionID)
	if err != nil {
		return nil, err
	}

	slotsByPhase := make(map[int][]models.Slot)
	for _, slot := range layout.slots {
		slotsByPhase[slot.PhaseID] = append(slotsByPhase[slot.PhaseID], slot)
	}
	encountersByPhase := make(map[int][]models.Encounter)
	for _, e := range layout.encounters {
		encountersByPhase[e.PhaseID] = append(encountersByPhase[e.PhaseID], e)
	}

	phases := phasesToValues(layout.phases)
	for i := range phases {
		phases[i].Slots = slotsByPhase[phases[i].ID]
		phases[i].Encounters = encountersByPhase[phases[i].ID]
	}

	rules := layout.rules
	if rules == nil {
		rules = []models.AdvancementRule{}
	}
	return &DivisionSchedule{
		DivisionID:       divisionID,
		Phases:           phases,
		AdvancementRules: rules,
		TotalEncounters:  len(layout.encounters),
	}, nil
}
