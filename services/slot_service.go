package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/LegalDragon/pickleball-community/brackets"
	"github.com/LegalDragon/pickleball-community/models"
	"github.com/LegalDragon/pickleball-community/repositories"
)

type SlotService interface {
	GetByes(ctx context.Context, phaseID int) (*PhaseByes, error)
	AssignSlot(ctx context.Context, actor Actor, phaseID, slotNumber, unitID int) (*PhaseByes, error)
	ClearSlot(ctx context.Context, actor Actor, phaseID, slotNumber int) (*PhaseByes, error)
	RecomputeByes(ctx context.Context, divisionID int) (*brackets.ByeResolution, error)
}

// PhaseByes is the bye picture of one phase. Bye targets reference phases by order.
type PhaseByes struct {
	PhaseID    int                       `json:"phase_id"`
	PhaseOrder int                       `json:"phase_order"`
	Byes       []brackets.Bye            `json:"byes"`
	VoidSlots  []int                     `json:"void_slots"`
	Advanced   []brackets.SlotAssignment `json:"advanced"`
}

type slotService struct {
	phaseRepo    repositories.PhaseRepository
	divisionRepo repositories.DivisionRepository
	txManager    repositories.TxManager
	locks        *DivisionLocks
	logger       *slog.Logger
}

func NewSlotService(
	phaseRepo repositories.PhaseRepository,
	divisionRepo repositories.DivisionRepository,
	txManager repositories.TxManager,
	locks *DivisionLocks,
	logger *slog.Logger,
) SlotService {
	return &slotService{
		phaseRepo:    phaseRepo,
		divisionRepo: divisionRepo,
		txManager:    txManager,
		locks:        locks,
		logger:       logger,
	}
}

func (s *slotService) getPhase(ctx context.Context, phaseID int) (*models.Phase, error) {
	phase, err := s.phaseRepo.GetByID(ctx, phaseID)
	if err != nil {
		if errors.Is(err, repositories.ErrPhaseNotFound) {
			return nil, ErrPhaseNotFound
		}
		return nil, fmt.Errorf("failed to get phase %d: %w", phaseID, err)
	}
	return phase, nil
}

func (s *slotService) GetByes(ctx context.Context, phaseID int) (*PhaseByes, error) {
	phase, err := s.getPhase(ctx, phaseID)
	if err != nil {
		return nil, err
	}
	layout, err := loadDivisionLayout(ctx, s.phaseRepo, phase.DivisionID)
	if err != nil {
		return nil, err
	}
	res := brackets.ResolveByes(layout.graph, layout.filled)
	return phaseByes(phase, res), nil
}

func (s *slotService) AssignSlot(ctx context.Context, actor Actor, phaseID, slotNumber, unitID int) (*PhaseByes, error) {
	phase, err := s.getPhase(ctx, phaseID)
	if err != nil {
		return nil, err
	}
	if slotNumber < 1 || slotNumber > phase.EntrySlots {
		return nil, fmt.Errorf("%w: phase %d has slots 1..%d", ErrSlotNotFound, phaseID, phase.EntrySlots)
	}
	if err := s.checkUnit(ctx, phase.DivisionID, unitID); err != nil {
		return nil, err
	}

	unlock := s.locks.lock(phase.DivisionID)
	defer unlock()

	var res brackets.ByeResolution
	err = withLockedLayout(ctx, s.txManager, s.phaseRepo, phase.DivisionID, func(exec repositories.SQLExecutor, layout *divisionLayout) error {
		layout.filled[brackets.SlotKey{Phase: phase.PhaseOrder, Slot: slotNumber}] = unitID
		var err error
		res, err = persistByes(ctx, exec, s.phaseRepo, phase.DivisionID, layout, func() error {
			return s.phaseRepo.AssignSlot(ctx, exec, phaseID, slotNumber, &unitID, false)
		})
		return err
	})
	if err != nil {
		return nil, mapSlotRepoError(err)
	}

	s.logger.InfoContext(ctx, "slot assigned",
		slog.Int("phase_id", phaseID), slog.Int("slot", slotNumber), slog.Int("unit_id", unitID), slog.Int("user_id", actor.UserID))
	return phaseByes(phase, res), nil
}

func (s *slotService) ClearSlot(ctx context.Context, actor Actor, phaseID, slotNumber int) (*PhaseByes, error) {
	phase, err := s.getPhase(ctx, phaseID)
	if err != nil {
		return nil, err
	}
	if slotNumber < 1 || slotNumber > phase.EntrySlots {
		return nil, fmt.Errorf("%w: phase %d has slots 1..%d", ErrSlotNotFound, phaseID, phase.EntrySlots)
	}

	unlock := s.locks.lock(phase.DivisionID)
	defer unlock()

	var res brackets.ByeResolution
	err = withLockedLayout(ctx, s.txManager, s.phaseRepo, phase.DivisionID, func(exec repositories.SQLExecutor, layout *divisionLayout) error {
		delete(layout.filled, brackets.SlotKey{Phase: phase.PhaseOrder, Slot: slotNumber})
		var err error
		res, err = persistByes(ctx, exec, s.phaseRepo, phase.DivisionID, layout, func() error {
			return s.phaseRepo.AssignSlot(ctx, exec, phaseID, slotNumber, nil, false)
		})
		return err
	})
	if err != nil {
		return nil, mapSlotRepoError(err)
	}

	s.logger.InfoContext(ctx, "slot cleared",
		slog.Int("phase_id", phaseID), slog.Int("slot", slotNumber), slog.Int("user_id", actor.UserID))
	return phaseByes(phase, res), nil
}

func (s *slotService) RecomputeByes(ctx context.Context, divisionID int) (*brackets.ByeResolution, error) {
	unlock := s.locks.lock(divisionID)
	defer unlock()

	var res brackets.ByeResolution
	err := withLockedLayout(ctx, s.txManager, s.phaseRepo, divisionID, func(exec repositories.SQLExecutor, layout *divisionLayout) error {
		var err error
		res, err = persistByes(ctx, exec, s.phaseRepo, divisionID, layout, nil)
		return err
	})
	if err != nil {
		return nil, mapSlotRepoError(err)
	}
	s.logger.InfoContext(ctx, "byes recomputed",
		slog.Int("division_id", divisionID), slog.Int("byes", len(res.Byes)), slog.Int("advanced", len(res.Advanced)))
	return &res, nil
}

func (s *slotService) checkUnit(ctx context.Context, divisionID, unitID int) error {
	units, err := s.divisionRepo.ListUnits(ctx, divisionID, true)
	if err != nil {
		return fmt.Errorf("failed to list units of division %d: %w", divisionID, err)
	}
	for _, u := range units {
		if u.ID == unitID {
			return nil
		}
	}
	return fmt.Errorf("%w: unit %d, division %d", ErrUnitNotInDivision, unitID, divisionID)
}

// persistByes rewrites every automatic advancement and bye flag of the
// division from layout. manual, when set, runs after the old automatic
// placements are cleared and before the new ones are written.
func persistByes(
	ctx context.Context,
	exec repositories.SQLExecutor,
	phaseRepo repositories.PhaseRepository,
	divisionID int,
	layout *divisionLayout,
	manual func() error,
) (brackets.ByeResolution, error) {
	res := brackets.ResolveByes(layout.graph, layout.filled)

	if err := phaseRepo.ClearAutoAdvanced(ctx, exec, divisionID); err != nil {
		return res, err
	}
	if err := phaseRepo.ResetByes(ctx, exec, divisionID); err != nil {
		return res, err
	}
	if manual != nil {
		if err := manual(); err != nil {
			return res, err
		}
	}

	for _, a := range res.Advanced {
		unitID := a.UnitID
		if err := phaseRepo.AssignSlot(ctx, exec, layout.idByOrder[a.Phase], a.Slot, &unitID, true); err != nil {
			return res, fmt.Errorf("failed to advance unit %d to phase %d slot %d: %w", a.UnitID, a.Phase, a.Slot, err)
		}
	}
	for _, b := range res.Byes {
		if err := phaseRepo.MarkBye(ctx, exec, layout.idByOrder[b.Phase], b.Encounter, b.UnitID); err != nil {
			return res, err
		}
	}
	return res, nil
}

func phaseByes(phase *models.Phase, res brackets.ByeResolution) *PhaseByes {
	out := &PhaseByes{
		PhaseID:    phase.ID,
		PhaseOrder: phase.PhaseOrder,
		Byes:       res.ByesInPhase(phase.PhaseOrder),
		VoidSlots:  []int{},
		Advanced:   []brackets.SlotAssignment{},
	}
	if out.Byes == nil {
		out.Byes = []brackets.Bye{}
	}
	for _, v := range res.Void {
		if v.Phase == phase.PhaseOrder {
			out.VoidSlots = append(out.VoidSlots, v.Slot)
		}
	}
	for _, a := range res.Advanced {
		if a.Phase == phase.PhaseOrder {
			out.Advanced = append(out.Advanced, a)
		}
	}
	return out
}

func mapSlotRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrSlotNotFound):
		return fmt.Errorf("%w: %v", ErrSlotNotFound, err)
	case errors.Is(err, repositories.ErrUnitAlreadyPlaced):
		return ErrUnitAlreadyPlaced
	case errors.Is(err, repositories.ErrPhaseNotFound):
		return fmt.Errorf("%w: %v", ErrPhaseNotFound, err)
	default:
		return err
	}
}
