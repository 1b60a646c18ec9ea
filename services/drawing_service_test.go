package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/LegalDragon/pickleball-community/brackets"
	"github.com/LegalDragon/pickleball-community/models"
	"github.com/LegalDragon/pickleball-community/queue"
	"github.com/LegalDragon/pickleball-community/repositories"
	"github.com/LegalDragon/pickleball-community/repositories/mocks"
)

var organizer = Actor{UserID: 1}

type drawingFixture struct {
	*scheduleFixture
	store       repositories.DrawingSessionStore
	broadcaster *recordingBroadcaster
	archive     *recordingArchive
	service     DrawingService
}

func newDrawingFixture(t *testing.T, units []*models.Unit) *drawingFixture {
	t.Helper()
	sf := newScheduleFixture(t, units)
	_, err := sf.service.GenerateSchedule(context.Background(), organizer, testDivisionID, GenerateScheduleInput{TemplateID: 7})
	require.NoError(t, err)

	f := &drawingFixture{
		scheduleFixture: sf,
		store:           repositories.NewMemoryDrawingSessionStore(),
		broadcaster:     &recordingBroadcaster{},
		archive:         &recordingArchive{},
	}
	f.service = NewDrawingService(f.store, f.divisions, f.db, f.db, f.tx, f.broadcaster, f.publisher, f.archive, f.locks, discardLogger())
	return f
}

// newService builds another orchestrator over the same store and database,
// as a second server instance would: it has its own in-process locks.
func (f *drawingFixture) newService() DrawingService {
	return NewDrawingService(f.store, f.divisions, f.db, f.db, f.tx, f.broadcaster, f.publisher, f.archive, NewDivisionLocks(), discardLogger())
}

func (f *drawingFixture) drawAll(t *testing.T, sessionID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := f.service.DrawNext(context.Background(), organizer, sessionID)
		require.NoError(t, err)
	}
}

func TestDrawing_SixUnitsEndToEnd(t *testing.T) {
	f := newDrawingFixture(t, registeredUnits(6))
	ctx := context.Background()

	state, err := f.service.StartDrawing(ctx, organizer, testDivisionID)
	require.NoError(t, err)
	assert.Equal(t, models.DrawStateReady, state.State)
	assert.Equal(t, 6, state.TotalUnits)
	assert.Empty(t, state.Drawn)

	seen := map[int]bool{}
	slots := map[int]bool{}
	for i := 1; i <= 6; i++ {
		step, err := f.service.DrawNext(ctx, organizer, state.SessionID)
		require.NoError(t, err)
		assert.Equal(t, i, step.Unit.SlotNumber)
		assert.Equal(t, 6-i, step.RemainingCount)
		assert.False(t, seen[step.Unit.UnitID], "unit drawn twice")
		seen[step.Unit.UnitID] = true
		slots[step.Unit.SlotNumber] = true
		if step.Unit.SlotNumber <= 2 {
			require.NotNil(t, step.Bye, "top seeds face empty slots")
			assert.Equal(t, step.Unit.UnitID, step.Bye.UnitID)
		} else {
			assert.Nil(t, step.Bye)
		}
	}
	assert.Len(t, slots, 6)

	current, err := f.service.GetDrawingState(ctx, testDivisionID)
	require.NoError(t, err)
	assert.Equal(t, models.DrawStateCompleted, current.State)

	result, err := f.service.ConfirmDrawing(ctx, organizer, state.SessionID, nil)
	require.NoError(t, err)
	require.Len(t, result.Assignments, 6)
	require.Len(t, result.Byes, 2)

	entry := f.db.phaseSlots(testDivisionID, 1)
	bySlot := map[int]int{}
	for _, s := range entry {
		if s.SlotNumber <= 6 {
			require.NotNil(t, s.UnitID, "slot %d", s.SlotNumber)
			assert.False(t, s.AutoAdvanced)
			bySlot[s.SlotNumber] = *s.UnitID
		} else {
			assert.Nil(t, s.UnitID)
		}
	}

	var advanced []int
	for _, s := range f.db.phaseSlots(testDivisionID, 2) {
		if s.UnitID != nil {
			assert.True(t, s.AutoAdvanced)
			advanced = append(advanced, *s.UnitID)
		}
	}
	assert.ElementsMatch(t, []int{bySlot[1], bySlot[2]}, advanced)

	assert.Equal(t, []string{
		brackets.EventDrawStarted,
		brackets.EventUnitDrawn, brackets.EventUnitDrawn, brackets.EventUnitDrawn,
		brackets.EventUnitDrawn, brackets.EventUnitDrawn, brackets.EventUnitDrawn,
		brackets.EventDrawCompleted,
		brackets.EventDrawConfirmed,
	}, f.broadcaster.types())
	last := 0
	for _, m := range f.broadcaster.messages {
		assert.GreaterOrEqual(t, m.Version, last)
		last = m.Version
	}

	require.Len(t, f.archive.records, 1)
	assert.Equal(t, "https://archive.test/"+state.SessionID+".json", result.ArchiveURL)
	last2 := f.publisher.events[len(f.publisher.events)-1]
	assert.Equal(t, queue.DrawConfirmedQueue, last2.queue)
	assert.Len(t, last2.event.(queue.DrawConfirmedEvent).Assignments, 6)

	final, err := f.service.GetDrawingState(ctx, testDivisionID)
	require.NoError(t, err)
	assert.Equal(t, models.DrawStateConfirmed, final.State)
}

func TestConfirmDrawing_NotFinished(t *testing.T) {
	f := newDrawingFixture(t, registeredUnits(6))
	ctx := context.Background()

	state, err := f.service.StartDrawing(ctx, organizer, testDivisionID)
	require.NoError(t, err)
	f.drawAll(t, state.SessionID, 3)

	_, err = f.service.ConfirmDrawing(ctx, organizer, state.SessionID, nil)
	assert.ErrorIs(t, err, ErrDrawNotFinished)

	count, err := f.db.CountOccupiedSlots(ctx, nil, state.PhaseID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestConfirmDrawing_AssignmentsMustMatch(t *testing.T) {
	f := newDrawingFixture(t, registeredUnits(4))
	ctx := context.Background()

	state, err := f.service.StartDrawing(ctx, organizer, testDivisionID)
	require.NoError(t, err)
	f.drawAll(t, state.SessionID, 4)

	_, err = f.service.ConfirmDrawing(ctx, organizer, state.SessionID, []models.DrawnUnit{{UnitID: 100, SlotNumber: 9}})
	assert.ErrorIs(t, err, ErrAssignmentsMismatch)
}

func TestConfirmDrawing_ConcurrentConfirm(t *testing.T) {
	f := newDrawingFixture(t, registeredUnits(6))
	ctx := context.Background()

	state, err := f.service.StartDrawing(ctx, organizer, testDivisionID)
	require.NoError(t, err)
	f.drawAll(t, state.SessionID, 6)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.ConfirmDrawing(ctx, organizer, state.SessionID, nil)
		}(i)
	}
	wg.Wait()

	succeeded, conflicted := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrConcurrentDrawConflict):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, conflicted)
	assert.Len(t, f.db.records, 1)
}

func TestConfirmDrawing_SecondInstanceConflicts(t *testing.T) {
	f := newDrawingFixture(t, registeredUnits(6))
	ctx := context.Background()
	other := f.newService()

	state, err := f.service.StartDrawing(ctx, organizer, testDivisionID)
	require.NoError(t, err)
	f.drawAll(t, state.SessionID, 6)

	_, err = f.service.ConfirmDrawing(ctx, organizer, state.SessionID, nil)
	require.NoError(t, err)

	_, err = other.ConfirmDrawing(ctx, organizer, state.SessionID, nil)
	assert.ErrorIs(t, err, ErrConcurrentDrawConflict)
}

func TestConfirmDrawing_ConcurrentSlotEditKeepsByes(t *testing.T) {
	f := newDrawingFixture(t, registeredUnits(6))
	ctx := context.Background()

	state, err := f.service.StartDrawing(ctx, organizer, testDivisionID)
	require.NoError(t, err)
	f.drawAll(t, state.SessionID, 6)

	confirmed := make(chan struct{})
	paused := &pausingSchedule{fakeSchedule: f.db, reading: make(chan struct{}), release: confirmed, wait: 200 * time.Millisecond}
	slots := NewSlotService(paused, f.divisions, f.tx, f.locks, discardLogger())

	var (
		wg                   sync.WaitGroup
		clearErr, confirmErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, clearErr = slots.ClearSlot(ctx, organizer, state.PhaseID, 3)
	}()
	<-paused.reading
	go func() {
		defer wg.Done()
		defer close(confirmed)
		_, confirmErr = f.service.ConfirmDrawing(ctx, organizer, state.SessionID, nil)
	}()
	wg.Wait()
	require.NoError(t, clearErr)
	require.NoError(t, confirmErr)

	bySlot := map[int]int{}
	for _, s := range f.db.phaseSlots(testDivisionID, 1) {
		if s.SlotNumber <= 6 {
			require.NotNil(t, s.UnitID, "slot %d", s.SlotNumber)
			bySlot[s.SlotNumber] = *s.UnitID
		}
	}
	var advanced []int
	for _, s := range f.db.phaseSlots(testDivisionID, 2) {
		if s.UnitID != nil {
			assert.True(t, s.AutoAdvanced)
			advanced = append(advanced, *s.UnitID)
		}
	}
	assert.ElementsMatch(t, []int{bySlot[1], bySlot[2]}, advanced)

	encounters, err := f.db.ListEncounters(ctx, testDivisionID)
	require.NoError(t, err)
	byes := 0
	for _, e := range encounters {
		if e.IsBye {
			byes++
		}
	}
	assert.Equal(t, 2, byes)
}

func TestConfirmDrawing_ReplacedSessionConflicts(t *testing.T) {
	f := newDrawingFixture(t, registeredUnits(4))
	ctx := context.Background()

	state, err := f.service.StartDrawing(ctx, organizer, testDivisionID)
	require.NoError(t, err)
	f.drawAll(t, state.SessionID, 4)

	f.store = &supersededStore{DrawingSessionStore: f.store, activeID: "started-elsewhere"}
	_, err = f.newService().ConfirmDrawing(ctx, organizer, state.SessionID, nil)
	assert.ErrorIs(t, err, ErrConcurrentDrawConflict)
	assert.Empty(t, f.db.records)

	count, err := f.db.CountOccupiedSlots(ctx, nil, state.PhaseID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestConfirmDrawing_OccupiedSlotsConflict(t *testing.T) {
	f := newDrawingFixture(t, registeredUnits(6))
	ctx := context.Background()

	state, err := f.service.StartDrawing(ctx, organizer, testDivisionID)
	require.NoError(t, err)
	f.drawAll(t, state.SessionID, 6)

	unit := 100
	require.NoError(t, f.db.AssignSlot(ctx, nil, state.PhaseID, 3, &unit, false))

	_, err = f.service.ConfirmDrawing(ctx, organizer, state.SessionID, nil)
	assert.ErrorIs(t, err, ErrConcurrentDrawConflict)
	assert.Empty(t, f.db.records)
}

func TestRedraw(t *testing.T) {
	f := newDrawingFixture(t, registeredUnits(8))
	ctx := context.Background()

	state, err := f.service.StartDrawing(ctx, organizer, testDivisionID)
	require.NoError(t, err)
	f.drawAll(t, state.SessionID, 3)

	fresh, err := f.service.Redraw(ctx, organizer, state.SessionID)
	require.NoError(t, err)
	assert.NotEqual(t, state.SessionID, fresh.SessionID)
	assert.Empty(t, fresh.Drawn)
	assert.Equal(t, 8, fresh.RemainingCount)
	assert.Greater(t, fresh.Version, state.Version+3)

	_, err = f.service.DrawNext(ctx, organizer, state.SessionID)
	assert.ErrorIs(t, err, ErrDrawingSessionNotFound)

	types := f.broadcaster.types()
	assert.Equal(t, []string{brackets.EventDrawReset, brackets.EventDrawStarted}, types[len(types)-2:])

	f.drawAll(t, fresh.SessionID, 8)
	_, err = f.service.ConfirmDrawing(ctx, organizer, fresh.SessionID, nil)
	require.NoError(t, err)

	_, err = f.service.Redraw(ctx, organizer, fresh.SessionID)
	assert.ErrorIs(t, err, ErrDrawAlreadyConfirmed)
}

func TestRedraw_ChangesOrder(t *testing.T) {
	f := newDrawingFixture(t, registeredUnits(16))
	ctx := context.Background()

	state, err := f.service.StartDrawing(ctx, organizer, testDivisionID)
	require.NoError(t, err)
	f.drawAll(t, state.SessionID, 16)
	first, err := f.service.GetDrawingState(ctx, testDivisionID)
	require.NoError(t, err)

	fresh, err := f.service.Redraw(ctx, organizer, state.SessionID)
	require.NoError(t, err)
	f.drawAll(t, fresh.SessionID, 16)
	second, err := f.service.GetDrawingState(ctx, testDivisionID)
	require.NoError(t, err)

	assert.NotEqual(t, first.Drawn, second.Drawn)
}

func TestStartDrawing(t *testing.T) {
	t.Run("resumes an unconfirmed session", func(t *testing.T) {
		f := newDrawingFixture(t, registeredUnits(6))
		ctx := context.Background()

		state, err := f.service.StartDrawing(ctx, organizer, testDivisionID)
		require.NoError(t, err)
		f.drawAll(t, state.SessionID, 2)

		again, err := f.service.StartDrawing(ctx, organizer, testDivisionID)
		require.NoError(t, err)
		assert.Equal(t, state.SessionID, again.SessionID)
		assert.Len(t, again.Drawn, 2)
	})

	t.Run("no schedule", func(t *testing.T) {
		f := newDrawingFixture(t, registeredUnits(6))
		require.NoError(t, f.db.DeleteByDivision(context.Background(), nil, testDivisionID))

		_, err := f.service.StartDrawing(context.Background(), organizer, testDivisionID)
		assert.ErrorIs(t, err, ErrScheduleNotFound)
	})

	t.Run("no eligible units", func(t *testing.T) {
		f := newDrawingFixture(t, registeredUnits(6))
		cancelled := registeredUnits(2)
		for _, u := range cancelled {
			u.Status = models.UnitStatusCancelled
		}
		divisions := new(mocks.DivisionRepository)
		divisions.On("GetByID", mock.Anything, testDivisionID).Return(&models.Division{ID: testDivisionID}, nil)
		divisions.On("ListUnits", mock.Anything, testDivisionID, true).Return(cancelled, nil)
		f.divisions = divisions

		_, err := f.newService().StartDrawing(context.Background(), organizer, testDivisionID)
		assert.ErrorIs(t, err, ErrNoEligibleUnits)
	})

	t.Run("unit count changed since generation", func(t *testing.T) {
		f := newDrawingFixture(t, registeredUnits(6))
		divisions := new(mocks.DivisionRepository)
		divisions.On("GetByID", mock.Anything, testDivisionID).Return(&models.Division{ID: testDivisionID}, nil)
		divisions.On("ListUnits", mock.Anything, testDivisionID, true).Return(registeredUnits(7), nil)
		f.divisions = divisions

		_, err := f.newService().StartDrawing(context.Background(), organizer, testDivisionID)
		assert.ErrorIs(t, err, ErrUnitCountOutOfRange)
	})
}

func TestStartDrawing_DropsSessionOfReplacedSchedule(t *testing.T) {
	f := newDrawingFixture(t, registeredUnits(6))
	ctx := context.Background()

	state, err := f.service.StartDrawing(ctx, organizer, testDivisionID)
	require.NoError(t, err)
	f.drawAll(t, state.SessionID, 2)

	out, err := f.scheduleFixture.service.GenerateSchedule(ctx, organizer, testDivisionID,
		GenerateScheduleInput{TemplateID: 7, ClearExistingPhases: true})
	require.NoError(t, err)

	// новая стартовая фаза уже заполнена вручную
	unit := 100
	require.NoError(t, f.db.AssignSlot(ctx, nil, out.PhaseIDs[0], 1, &unit, false))

	_, err = f.service.StartDrawing(ctx, organizer, testDivisionID)
	assert.ErrorIs(t, err, ErrDrawAlreadyConfirmed)

	_, err = f.store.Get(ctx, state.SessionID)
	assert.ErrorIs(t, err, repositories.ErrSessionNotFound)
	current, err := f.service.GetDrawingState(ctx, testDivisionID)
	require.NoError(t, err)
	assert.False(t, current.Active)
}

func TestDrawNext_OnlyStarterDrives(t *testing.T) {
	f := newDrawingFixture(t, registeredUnits(4))
	ctx := context.Background()

	state, err := f.service.StartDrawing(ctx, organizer, testDivisionID)
	require.NoError(t, err)

	_, err = f.service.DrawNext(ctx, Actor{UserID: 2}, state.SessionID)
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	_, err = f.service.DrawNext(ctx, Actor{UserID: 3, Role: RoleAdmin}, state.SessionID)
	assert.NoError(t, err)
}

func TestDrawNext_AfterCompletion(t *testing.T) {
	f := newDrawingFixture(t, registeredUnits(4))
	ctx := context.Background()

	state, err := f.service.StartDrawing(ctx, organizer, testDivisionID)
	require.NoError(t, err)
	f.drawAll(t, state.SessionID, 4)

	_, err = f.service.DrawNext(ctx, organizer, state.SessionID)
	assert.ErrorIs(t, err, ErrDrawNotInProgress)
}

func TestSnapshot(t *testing.T) {
	f := newDrawingFixture(t, registeredUnits(4))
	ctx := context.Background()

	msg, err := f.service.Snapshot(ctx, testDivisionID)
	require.NoError(t, err)
	assert.False(t, msg.Payload.(brackets.SnapshotPayload).Active)

	state, err := f.service.StartDrawing(ctx, organizer, testDivisionID)
	require.NoError(t, err)
	f.drawAll(t, state.SessionID, 1)

	msg, err = f.service.Snapshot(ctx, testDivisionID)
	require.NoError(t, err)
	payload := msg.Payload.(brackets.SnapshotPayload)
	assert.True(t, payload.Active)
	assert.Len(t, payload.Drawn, 1)
	assert.Equal(t, 3, payload.RemainingCount)
	assert.Equal(t, state.Version+1, msg.Version)
}
