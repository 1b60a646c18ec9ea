package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/LegalDragon/pickleball-community/brackets"
	"github.com/LegalDragon/pickleball-community/models"
	"github.com/LegalDragon/pickleball-community/repositories"
)

// divisionLayout is a persisted schedule reloaded into the slot graph used by
// the bye resolver. Phases are referenced by order inside the graph and by id
// in the database.
type divisionLayout struct {
	phases     []*models.Phase
	slots      []models.Slot
	rules      []models.AdvancementRule
	encounters []models.Encounter

	graph     brackets.Layout
	idByOrder map[int]int
	orderByID map[int]int
	// filled holds only units placed by a draw or by hand.
	filled map[brackets.SlotKey]int
}

func (l *divisionLayout) phaseByID(id int) *models.Phase {
	for _, p := range l.phases {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (l *divisionLayout) entryPhase() *models.Phase {
	if len(l.phases) == 0 {
		return nil
	}
	return l.phases[0]
}

// withLockedLayout runs fn in one transaction that holds the row locks of
// every phase of the division. The layout is read after the locks are
// taken, so it includes every committed draw and slot change.
func withLockedLayout(
	ctx context.Context,
	txManager repositories.TxManager,
	phaseRepo repositories.PhaseRepository,
	divisionID int,
	fn func(exec repositories.SQLExecutor, layout *divisionLayout) error,
) error {
	return txManager.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := phaseRepo.LockDivision(ctx, exec, divisionID); err != nil {
			if errors.Is(err, repositories.ErrPhaseNotFound) {
				return ErrScheduleNotFound
			}
			return err
		}
		layout, err := loadDivisionLayout(ctx, phaseRepo, divisionID)
		if err != nil {
			return err
		}
		return fn(exec, layout)
	})
}

func loadDivisionLayout(ctx context.Context, phaseRepo repositories.PhaseRepository, divisionID int) (*divisionLayout, error) {
	l := &divisionLayout{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		phases, err := phaseRepo.ListByDivision(gctx, divisionID)
		l.phases = phases
		return err
	})
	g.Go(func() error {
		slots, err := phaseRepo.ListSlots(gctx, divisionID)
		l.slots = slots
		return err
	})
	g.Go(func() error {
		rules, err := phaseRepo.ListRules(gctx, divisionID)
		l.rules = rules
		return err
	})
	g.Go(func() error {
		encounters, err := phaseRepo.ListEncounters(gctx, divisionID)
		l.encounters = encounters
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load schedule of division %d: %w", divisionID, err)
	}
	if len(l.phases) == 0 {
		return nil, ErrScheduleNotFound
	}

	sort.Slice(l.phases, func(i, j int) bool { return l.phases[i].PhaseOrder < l.phases[j].PhaseOrder })
	l.idByOrder = make(map[int]int, len(l.phases))
	l.orderByID = make(map[int]int, len(l.phases))
	for _, p := range l.phases {
		l.idByOrder[p.PhaseOrder] = p.ID
		l.orderByID[p.ID] = p.PhaseOrder
	}

	encountersByPhase := make(map[int][]brackets.EncounterSpec)
	for _, e := range l.encounters {
		encountersByPhase[e.PhaseID] = append(encountersByPhase[e.PhaseID], brackets.EncounterSpec{
			Number:         e.EncounterNumber,
			Round:          e.RoundNumber,
			Pool:           derefInt(e.PoolNumber, 0),
			SlotA:          e.SlotA,
			SlotB:          e.SlotB,
			WinnerPosition: derefInt(e.WinnerPosition, 0),
			LoserPosition:  derefInt(e.LoserPosition, 0),
			Label:          e.Label,
		})
	}

	entry := l.entryPhase()
	l.graph = brackets.Layout{
		EntryPhase: entry.PhaseOrder,
		Entrants:   entry.EntrySlots - entry.ByeCount,
	}
	for _, p := range l.phases {
		l.graph.Phases = append(l.graph.Phases, brackets.LayoutPhase{
			Order:      p.PhaseOrder,
			Type:       p.PhaseType,
			EntrySlots: p.EntrySlots,
			Encounters: encountersByPhase[p.ID],
		})
	}
	for _, r := range l.rules {
		l.graph.Rules = append(l.graph.Rules, brackets.AdvancementRule{
			SourcePhase:    l.orderByID[r.SourcePhaseID],
			SourcePosition: r.SourcePosition,
			SourceLabel:    r.SourceLabel,
			TargetPhase:    l.orderByID[r.TargetPhaseID],
			TargetSlot:     r.TargetSlotNumber,
		})
	}

	l.filled = make(map[brackets.SlotKey]int)
	for _, s := range l.slots {
		if s.UnitID == nil || s.AutoAdvanced {
			continue
		}
		order, ok := l.orderByID[s.PhaseID]
		if !ok {
			continue
		}
		l.filled[brackets.SlotKey{Phase: order, Slot: s.SlotNumber}] = *s.UnitID
	}
	return l, nil
}
