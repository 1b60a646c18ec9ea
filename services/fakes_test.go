package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/LegalDragon/pickleball-community/brackets"
	"github.com/LegalDragon/pickleball-community/models"
	"github.com/LegalDragon/pickleball-community/repositories"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSchedule keeps phases, slots, encounters and draw records in memory.
// It implements both PhaseRepository and DrawRepository.
type fakeSchedule struct {
	mu         sync.Mutex
	nextID     int
	phases     map[int]*models.Phase
	slots      map[int][]models.Slot
	encounters map[int][]models.Encounter
	rules      []models.AdvancementRule
	records    []models.DrawRecord
}

var (
	_ repositories.PhaseRepository = (*fakeSchedule)(nil)
	_ repositories.DrawRepository  = (*fakeSchedule)(nil)
)

func newFakeSchedule() *fakeSchedule {
	return &fakeSchedule{
		phases:     make(map[int]*models.Phase),
		slots:      make(map[int][]models.Slot),
		encounters: make(map[int][]models.Encounter),
	}
}

func (f *fakeSchedule) id() int {
	f.nextID++
	return f.nextID
}

func (f *fakeSchedule) CountByDivision(_ context.Context, _ repositories.SQLExecutor, divisionID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.phases {
		if p.DivisionID == divisionID {
			n++
		}
	}
	return n, nil
}

func (f *fakeSchedule) DeleteByDivision(_ context.Context, _ repositories.SQLExecutor, divisionID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, p := range f.phases {
		if p.DivisionID == divisionID {
			delete(f.phases, id)
			delete(f.slots, id)
			delete(f.encounters, id)
		}
	}
	kept := f.rules[:0]
	for _, r := range f.rules {
		if r.DivisionID != divisionID {
			kept = append(kept, r)
		}
	}
	f.rules = kept
	return nil
}

func (f *fakeSchedule) CreatePhase(_ context.Context, _ repositories.SQLExecutor, phase *models.Phase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.phases {
		if p.DivisionID == phase.DivisionID && p.PhaseOrder == phase.PhaseOrder {
			return repositories.ErrPhaseOrderConflict
		}
	}
	phase.ID = f.id()
	stored := *phase
	f.phases[phase.ID] = &stored
	return nil
}

func (f *fakeSchedule) CreateSlots(_ context.Context, _ repositories.SQLExecutor, phaseID int, slotCount int, poolOf func(slot int) int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for n := 1; n <= slotCount; n++ {
		slot := models.Slot{ID: f.id(), PhaseID: phaseID, SlotNumber: n}
		if pool := poolOf(n); pool > 0 {
			slot.PoolNumber = &pool
		}
		f.slots[phaseID] = append(f.slots[phaseID], slot)
	}
	return nil
}

func (f *fakeSchedule) CreateRule(_ context.Context, _ repositories.SQLExecutor, rule *models.AdvancementRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rule.ID = f.id()
	f.rules = append(f.rules, *rule)
	return nil
}

func (f *fakeSchedule) CreateEncounter(_ context.Context, _ repositories.SQLExecutor, encounter *models.Encounter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	encounter.ID = f.id()
	f.encounters[encounter.PhaseID] = append(f.encounters[encounter.PhaseID], *encounter)
	return nil
}

func (f *fakeSchedule) GetByID(_ context.Context, id int) (*models.Phase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.phases[id]
	if !ok {
		return nil, repositories.ErrPhaseNotFound
	}
	c := *p
	return &c, nil
}

func (f *fakeSchedule) sortedPhases(divisionID int) []*models.Phase {
	var out []*models.Phase
	for _, p := range f.phases {
		if p.DivisionID == divisionID {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PhaseOrder < out[j].PhaseOrder })
	return out
}

func (f *fakeSchedule) ListByDivision(_ context.Context, divisionID int) ([]*models.Phase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sortedPhases(divisionID), nil
}

func (f *fakeSchedule) ListSlots(_ context.Context, divisionID int) ([]models.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Slot
	for _, p := range f.sortedPhases(divisionID) {
		out = append(out, f.slots[p.ID]...)
	}
	return out, nil
}

func (f *fakeSchedule) ListRules(_ context.Context, divisionID int) ([]models.AdvancementRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AdvancementRule
	for _, r := range f.rules {
		if r.DivisionID == divisionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSchedule) ListEncounters(_ context.Context, divisionID int) ([]models.Encounter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Encounter
	for _, p := range f.sortedPhases(divisionID) {
		out = append(out, f.encounters[p.ID]...)
	}
	return out, nil
}

func (f *fakeSchedule) AssignSlot(_ context.Context, _ repositories.SQLExecutor, phaseID, slotNumber int, unitID *int, autoAdvanced bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	slots := f.slots[phaseID]
	for i := range slots {
		if unitID != nil && slots[i].SlotNumber != slotNumber && slots[i].UnitID != nil && *slots[i].UnitID == *unitID {
			return repositories.ErrUnitAlreadyPlaced
		}
	}
	for i := range slots {
		if slots[i].SlotNumber == slotNumber {
			if unitID != nil {
				id := *unitID
				slots[i].UnitID = &id
			} else {
				slots[i].UnitID = nil
			}
			slots[i].AutoAdvanced = autoAdvanced
			return nil
		}
	}
	return repositories.ErrSlotNotFound
}

func (f *fakeSchedule) ClearAutoAdvanced(_ context.Context, _ repositories.SQLExecutor, divisionID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.sortedPhases(divisionID) {
		slots := f.slots[p.ID]
		for i := range slots {
			if slots[i].AutoAdvanced {
				slots[i].UnitID = nil
				slots[i].AutoAdvanced = false
			}
		}
	}
	return nil
}

func (f *fakeSchedule) ResetByes(_ context.Context, _ repositories.SQLExecutor, divisionID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.sortedPhases(divisionID) {
		encounters := f.encounters[p.ID]
		for i := range encounters {
			encounters[i].IsBye = false
			encounters[i].ByeUnitID = nil
		}
	}
	return nil
}

func (f *fakeSchedule) MarkBye(_ context.Context, _ repositories.SQLExecutor, phaseID, encounterNumber, unitID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	encounters := f.encounters[phaseID]
	for i := range encounters {
		if encounters[i].EncounterNumber == encounterNumber {
			encounters[i].IsBye = true
			id := unitID
			encounters[i].ByeUnitID = &id
			return nil
		}
	}
	return repositories.ErrPhaseNotFound
}

func (f *fakeSchedule) LockDivision(_ context.Context, _ repositories.SQLExecutor, divisionID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sortedPhases(divisionID)) == 0 {
		return repositories.ErrPhaseNotFound
	}
	return nil
}

func (f *fakeSchedule) CountOccupiedSlots(_ context.Context, _ repositories.SQLExecutor, phaseID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.slots[phaseID] {
		if s.UnitID != nil && !s.AutoAdvanced {
			n++
		}
	}
	return n, nil
}

func (f *fakeSchedule) AssignDrawnUnits(_ context.Context, _ repositories.SQLExecutor, phaseID int, drawn []models.DrawnUnit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	slots := f.slots[phaseID]
	for _, d := range drawn {
		if d.SlotNumber < 1 || d.SlotNumber > len(slots) {
			return repositories.ErrDrawSlotsMissing
		}
		id := d.UnitID
		slots[d.SlotNumber-1].UnitID = &id
		slots[d.SlotNumber-1].AutoAdvanced = false
	}
	return nil
}

func (f *fakeSchedule) CreateRecord(_ context.Context, _ repositories.SQLExecutor, record *models.DrawRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.SessionID == record.SessionID {
			return repositories.ErrDrawAlreadyRecorded
		}
	}
	record.ID = f.id()
	f.records = append(f.records, *record)
	return nil
}

func (f *fakeSchedule) GetLatestByDivision(_ context.Context, divisionID int) (*models.DrawRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.records) - 1; i >= 0; i-- {
		if f.records[i].DivisionID == divisionID {
			r := f.records[i]
			return &r, nil
		}
	}
	return nil, repositories.ErrDrawRecordNotFound
}

// phaseSlots returns a copy of the slots of the phase with the given order.
func (f *fakeSchedule) phaseSlots(divisionID, order int) []models.Slot {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.sortedPhases(divisionID) {
		if p.PhaseOrder == order {
			return append([]models.Slot(nil), f.slots[p.ID]...)
		}
	}
	return nil
}

// pausingSchedule holds the first slot listing after it was read, until
// release is closed or wait elapses.
type pausingSchedule struct {
	*fakeSchedule
	once    sync.Once
	reading chan struct{}
	release <-chan struct{}
	wait    time.Duration
}

func (p *pausingSchedule) ListSlots(ctx context.Context, divisionID int) ([]models.Slot, error) {
	slots, err := p.fakeSchedule.ListSlots(ctx, divisionID)
	p.once.Do(func() {
		close(p.reading)
		select {
		case <-p.release:
		case <-time.After(p.wait):
		}
	})
	return slots, err
}

// supersededStore reports another session as the active one of every division.
type supersededStore struct {
	repositories.DrawingSessionStore
	activeID string
}

func (s *supersededStore) GetActive(_ context.Context, divisionID int) (*models.DrawingSession, error) {
	return &models.DrawingSession{ID: s.activeID, DivisionID: divisionID, State: models.DrawStateReady}, nil
}

// serialTx runs transactions one at a time, standing in for row locks.
type serialTx struct {
	mu sync.Mutex
}

func (t *serialTx) WithinTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(nil)
}

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []brackets.RoomMessage
}

func (b *recordingBroadcaster) Publish(_ context.Context, _ int, msg brackets.RoomMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
}

func (b *recordingBroadcaster) types() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, len(b.messages))
	for i, m := range b.messages {
		out[i] = m.Type
	}
	return out
}

type publishedEvent struct {
	queue string
	event interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, queueName string, event interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{queue: queueName, event: event})
	return nil
}

type recordingArchive struct {
	mu      sync.Mutex
	records []models.DrawRecord
}

func (a *recordingArchive) Archive(_ context.Context, record *models.DrawRecord, _ []models.DrawnUnit) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, *record)
	return "https://archive.test/" + record.SessionID + ".json", nil
}
