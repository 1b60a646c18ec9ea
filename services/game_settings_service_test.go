package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/LegalDragon/pickleball-community/models"
	"github.com/LegalDragon/pickleball-community/repositories"
	"github.com/LegalDragon/pickleball-community/repositories/mocks"
)

func intp(v int) *int { return &v }

func TestResolveGameSettings(t *testing.T) {
	const phaseID, formatID = 10, 3
	globalScore := intp(1)

	tests := []struct {
		name        string
		phase       *models.Phase
		phaseErr    error
		division    *models.Division
		format      *models.MatchFormat
		override    *models.PhaseMatchFormatOverride
		overrideErr error
		withFormat  bool
		wantBestOf  int
		wantScore   *int
		wantSource  string
	}{
		{
			name:       "phase and format override wins",
			phase:      &models.Phase{ID: phaseID, DivisionID: 1, BestOf: intp(3)},
			division:   &models.Division{ID: 1, DefaultBestOf: intp(1)},
			format:     &models.MatchFormat{ID: formatID, DivisionID: 1, BestOf: intp(3)},
			override:   &models.PhaseMatchFormatOverride{PhaseID: phaseID, MatchFormatID: formatID, BestOf: intp(5), ScoreFormatID: intp(8)},
			withFormat: true,
			wantBestOf: 5,
			wantScore:  intp(8),
			wantSource: SettingsSourcePhaseOverride,
		},
		{
			name:        "phase default without override",
			phase:       &models.Phase{ID: phaseID, DivisionID: 1, BestOf: intp(3)},
			division:    &models.Division{ID: 1, DefaultBestOf: intp(1), DefaultScoreFormatID: intp(4)},
			format:      &models.MatchFormat{ID: formatID, DivisionID: 1},
			overrideErr: repositories.ErrOverrideNotFound,
			withFormat:  true,
			wantBestOf:  3,
			wantScore:   intp(4),
			wantSource:  SettingsSourcePhase,
		},
		{
			name:        "match format before division default",
			phase:       &models.Phase{ID: phaseID, DivisionID: 1},
			division:    &models.Division{ID: 1, DefaultBestOf: intp(1)},
			format:      &models.MatchFormat{ID: formatID, DivisionID: 1, BestOf: intp(3)},
			overrideErr: repositories.ErrOverrideNotFound,
			withFormat:  true,
			wantBestOf:  3,
			wantScore:   globalScore,
			wantSource:  SettingsSourceMatchFormat,
		},
		{
			name:       "division default",
			phase:      &models.Phase{ID: phaseID, DivisionID: 1},
			division:   &models.Division{ID: 1, DefaultBestOf: intp(3), DefaultScoreFormatID: intp(2)},
			wantBestOf: 3,
			wantScore:  intp(2),
			wantSource: SettingsSourceDivision,
		},
		{
			name:       "global fallback when nothing is set",
			phase:      &models.Phase{ID: phaseID, DivisionID: 1},
			division:   &models.Division{ID: 1},
			wantBestOf: 1,
			wantScore:  globalScore,
			wantSource: SettingsSourceGlobal,
		},
		{
			name:       "lookup failure falls back to global",
			phaseErr:   errors.New("connection refused"),
			wantBestOf: 1,
			wantScore:  globalScore,
			wantSource: SettingsSourceGlobal,
		},
		{
			name:        "format from another division is ignored",
			phase:       &models.Phase{ID: phaseID, DivisionID: 1},
			division:    &models.Division{ID: 1},
			format:      &models.MatchFormat{ID: formatID, DivisionID: 2, BestOf: intp(5)},
			overrideErr: repositories.ErrOverrideNotFound,
			withFormat:  true,
			wantBestOf:  1,
			wantScore:   globalScore,
			wantSource:  SettingsSourceGlobal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phases := new(mocks.PhaseRepository)
			divisions := new(mocks.DivisionRepository)
			formats := new(mocks.MatchFormatRepository)

			phases.On("GetByID", mock.Anything, phaseID).Return(tt.phase, tt.phaseErr)
			if tt.division != nil {
				divisions.On("GetByID", mock.Anything, tt.division.ID).Return(tt.division, nil)
			}
			var matchFormatID *int
			if tt.withFormat {
				matchFormatID = intp(formatID)
				formats.On("GetByID", mock.Anything, formatID).Return(tt.format, nil)
				formats.On("GetPhaseOverride", mock.Anything, phaseID, formatID).Return(tt.override, tt.overrideErr)
			}

			svc := NewGameSettingsService(phases, divisions, formats, globalScore, discardLogger())
			got := svc.ResolveGameSettings(context.Background(), phaseID, matchFormatID)

			assert.Equal(t, phaseID, got.PhaseID)
			assert.Equal(t, matchFormatID, got.MatchFormatID)
			assert.Equal(t, tt.wantBestOf, got.BestOf)
			assert.Equal(t, tt.wantScore, got.ScoreFormatID)
			assert.Equal(t, tt.wantSource, got.Source)
			phases.AssertExpectations(t)
			divisions.AssertExpectations(t)
			formats.AssertExpectations(t)
		})
	}
}
