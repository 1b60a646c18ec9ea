package mocks

import (
	"context"

	"github.com/LegalDragon/pickleball-community/models"
	"github.com/LegalDragon/pickleball-community/repositories"
	"github.com/stretchr/testify/mock"
)

// TxManager runs fn directly with a nil executor; repositories under test are mocks.
type TxManager struct{}

func (TxManager) WithinTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

// TemplateRepository is a mock for repositories.TemplateRepository.
type TemplateRepository struct {
	mock.Mock
}

func (m *TemplateRepository) Create(ctx context.Context, t *models.PhaseTemplate) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *TemplateRepository) GetByID(ctx context.Context, id int) (*models.PhaseTemplate, error) {
	args := m.Called(ctx, id)
	if t, ok := args.Get(0).(*models.PhaseTemplate); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TemplateRepository) GetByName(ctx context.Context, name string) (*models.PhaseTemplate, error) {
	args := m.Called(ctx, name)
	if t, ok := args.Get(0).(*models.PhaseTemplate); ok {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TemplateRepository) List(ctx context.Context, filter repositories.TemplateFilter) ([]*models.PhaseTemplate, error) {
	args := m.Called(ctx, filter)
	if list, ok := args.Get(0).([]*models.PhaseTemplate); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *TemplateRepository) Update(ctx context.Context, t *models.PhaseTemplate) error {
	args := m.Called(ctx, t)
	return args.Error(0)
}

func (m *TemplateRepository) Delete(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// DivisionRepository is a mock for repositories.DivisionRepository.
type DivisionRepository struct {
	mock.Mock
}

func (m *DivisionRepository) GetByID(ctx context.Context, id int) (*models.Division, error) {
	args := m.Called(ctx, id)
	if d, ok := args.Get(0).(*models.Division); ok {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DivisionRepository) ListUnits(ctx context.Context, divisionID int, eligibleOnly bool) ([]*models.Unit, error) {
	args := m.Called(ctx, divisionID, eligibleOnly)
	if units, ok := args.Get(0).([]*models.Unit); ok {
		return units, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *DivisionRepository) CountEligibleUnits(ctx context.Context, divisionID int) (int, error) {
	args := m.Called(ctx, divisionID)
	return args.Int(0), args.Error(1)
}

// PhaseRepository is a mock for repositories.PhaseRepository.
type PhaseRepository struct {
	mock.Mock
}

func (m *PhaseRepository) CountByDivision(ctx context.Context, exec repositories.SQLExecutor, divisionID int) (int, error) {
	args := m.Called(ctx, exec, divisionID)
	return args.Int(0), args.Error(1)
}

func (m *PhaseRepository) DeleteByDivision(ctx context.Context, exec repositories.SQLExecutor, divisionID int) error {
	args := m.Called(ctx, exec, divisionID)
	return args.Error(0)
}

func (m *PhaseRepository) CreatePhase(ctx context.Context, exec repositories.SQLExecutor, phase *models.Phase) error {
	args := m.Called(ctx, exec, phase)
	return args.Error(0)
}

func (m *PhaseRepository) CreateSlots(ctx context.Context, exec repositories.SQLExecutor, phaseID int, slotCount int, poolOf func(slot int) int) error {
	args := m.Called(ctx, exec, phaseID, slotCount, poolOf)
	return args.Error(0)
}

func (m *PhaseRepository) CreateRule(ctx context.Context, exec repositories.SQLExecutor, rule *models.AdvancementRule) error {
	args := m.Called(ctx, exec, rule)
	return args.Error(0)
}

func (m *PhaseRepository) CreateEncounter(ctx context.Context, exec repositories.SQLExecutor, encounter *models.Encounter) error {
	args := m.Called(ctx, exec, encounter)
	return args.Error(0)
}

func (m *PhaseRepository) LockDivision(ctx context.Context, exec repositories.SQLExecutor, divisionID int) error {
	args := m.Called(ctx, exec, divisionID)
	return args.Error(0)
}

func (m *PhaseRepository) GetByID(ctx context.Context, id int) (*models.Phase, error) {
	args := m.Called(ctx, id)
	if p, ok := args.Get(0).(*models.Phase); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PhaseRepository) ListByDivision(ctx context.Context, divisionID int) ([]*models.Phase, error) {
	args := m.Called(ctx, divisionID)
	if list, ok := args.Get(0).([]*models.Phase); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PhaseRepository) ListSlots(ctx context.Context, divisionID int) ([]models.Slot, error) {
	args := m.Called(ctx, divisionID)
	if list, ok := args.Get(0).([]models.Slot); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PhaseRepository) ListRules(ctx context.Context, divisionID int) ([]models.AdvancementRule, error) {
	args := m.Called(ctx, divisionID)
	if list, ok := args.Get(0).([]models.AdvancementRule); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PhaseRepository) ListEncounters(ctx context.Context, divisionID int) ([]models.Encounter, error) {
	args := m.Called(ctx, divisionID)
	if list, ok := args.Get(0).([]models.Encounter); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PhaseRepository) AssignSlot(ctx context.Context, exec repositories.SQLExecutor, phaseID, slotNumber int, unitID *int, autoAdvanced bool) error {
	args := m.Called(ctx, exec, phaseID, slotNumber, unitID, autoAdvanced)
	return args.Error(0)
}

func (m *PhaseRepository) ClearAutoAdvanced(ctx context.Context, exec repositories.SQLExecutor, divisionID int) error {
	args := m.Called(ctx, exec, divisionID)
	return args.Error(0)
}

func (m *PhaseRepository) ResetByes(ctx context.Context, exec repositories.SQLExecutor, divisionID int) error {
	args := m.Called(ctx, exec, divisionID)
	return args.Error(0)
}

func (m *PhaseRepository) MarkBye(ctx context.Context, exec repositories.SQLExecutor, phaseID, encounterNumber, unitID int) error {
	args := m.Called(ctx, exec, phaseID, encounterNumber, unitID)
	return args.Error(0)
}

// DrawRepository is a mock for repositories.DrawRepository.
type DrawRepository struct {
	mock.Mock
}

func (m *DrawRepository) CountOccupiedSlots(ctx context.Context, exec repositories.SQLExecutor, phaseID int) (int, error) {
	args := m.Called(ctx, exec, phaseID)
	return args.Int(0), args.Error(1)
}

func (m *DrawRepository) AssignDrawnUnits(ctx context.Context, exec repositories.SQLExecutor, phaseID int, drawn []models.DrawnUnit) error {
	args := m.Called(ctx, exec, phaseID, drawn)
	return args.Error(0)
}

func (m *DrawRepository) CreateRecord(ctx context.Context, exec repositories.SQLExecutor, record *models.DrawRecord) error {
	args := m.Called(ctx, exec, record)
	return args.Error(0)
}

func (m *DrawRepository) GetLatestByDivision(ctx context.Context, divisionID int) (*models.DrawRecord, error) {
	args := m.Called(ctx, divisionID)
	if rec, ok := args.Get(0).(*models.DrawRecord); ok {
		return rec, args.Error(1)
	}
	return nil, args.Error(1)
}

// MatchFormatRepository is a mock for repositories.MatchFormatRepository.
type MatchFormatRepository struct {
	mock.Mock
}

func (m *MatchFormatRepository) GetByID(ctx context.Context, id int) (*models.MatchFormat, error) {
	args := m.Called(ctx, id)
	if f, ok := args.Get(0).(*models.MatchFormat); ok {
		return f, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MatchFormatRepository) ListByDivision(ctx context.Context, divisionID int) ([]*models.MatchFormat, error) {
	args := m.Called(ctx, divisionID)
	if list, ok := args.Get(0).([]*models.MatchFormat); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MatchFormatRepository) GetPhaseOverride(ctx context.Context, phaseID, matchFormatID int) (*models.PhaseMatchFormatOverride, error) {
	args := m.Called(ctx, phaseID, matchFormatID)
	if o, ok := args.Get(0).(*models.PhaseMatchFormatOverride); ok {
		return o, args.Error(1)
	}
	return nil, args.Error(1)
}
