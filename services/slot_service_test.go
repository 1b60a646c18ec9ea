package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSlotFixture(t *testing.T, units int) (*scheduleFixture, SlotService, []int) {
	t.Helper()
	f := newScheduleFixture(t, registeredUnits(units))
	out, err := f.service.GenerateSchedule(context.Background(), organizer, testDivisionID, GenerateScheduleInput{TemplateID: 7})
	require.NoError(t, err)
	return f, NewSlotService(f.db, f.divisions, f.tx, f.locks, discardLogger()), out.PhaseIDs
}

func TestSlotService_ManualAssignmentCreatesByes(t *testing.T) {
	f, slots, phaseIDs := newSlotFixture(t, 6)
	ctx := context.Background()

	byes, err := slots.GetByes(ctx, phaseIDs[0])
	require.NoError(t, err)
	assert.Empty(t, byes.Byes)
	assert.Equal(t, []int{7, 8}, byes.VoidSlots)

	byes, err = slots.AssignSlot(ctx, organizer, phaseIDs[0], 1, 100)
	require.NoError(t, err)
	require.Len(t, byes.Byes, 1)
	assert.Equal(t, 100, byes.Byes[0].UnitID)
	assert.Equal(t, 8, byes.Byes[0].EmptySlot)

	var advanced []int
	for _, s := range f.db.phaseSlots(testDivisionID, 2) {
		if s.UnitID != nil {
			assert.True(t, s.AutoAdvanced)
			advanced = append(advanced, *s.UnitID)
		}
	}
	assert.Equal(t, []int{100}, advanced)

	again, err := slots.GetByes(ctx, phaseIDs[0])
	require.NoError(t, err)
	assert.Equal(t, byes.Byes, again.Byes)
}

func TestSlotService_ClearSlotUndoesAdvancement(t *testing.T) {
	f, slots, phaseIDs := newSlotFixture(t, 6)
	ctx := context.Background()

	_, err := slots.AssignSlot(ctx, organizer, phaseIDs[0], 2, 101)
	require.NoError(t, err)

	byes, err := slots.ClearSlot(ctx, organizer, phaseIDs[0], 2)
	require.NoError(t, err)
	assert.Empty(t, byes.Byes)

	for _, s := range f.db.phaseSlots(testDivisionID, 2) {
		assert.Nil(t, s.UnitID)
	}
	encounters, err := f.db.ListEncounters(ctx, testDivisionID)
	require.NoError(t, err)
	for _, e := range encounters {
		assert.False(t, e.IsBye)
	}
}

func TestSlotService_Errors(t *testing.T) {
	_, slots, phaseIDs := newSlotFixture(t, 6)
	ctx := context.Background()

	_, err := slots.AssignSlot(ctx, organizer, phaseIDs[0], 9, 100)
	assert.ErrorIs(t, err, ErrSlotNotFound)

	_, err = slots.AssignSlot(ctx, organizer, phaseIDs[0], 1, 999)
	assert.ErrorIs(t, err, ErrUnitNotInDivision)

	_, err = slots.GetByes(ctx, 12345)
	assert.ErrorIs(t, err, ErrPhaseNotFound)

	_, err = slots.RecomputeByes(ctx, testDivisionID+1)
	assert.ErrorIs(t, err, ErrScheduleNotFound)

	_, err = slots.AssignSlot(ctx, organizer, phaseIDs[0], 1, 100)
	require.NoError(t, err)
	_, err = slots.AssignSlot(ctx, organizer, phaseIDs[0], 3, 100)
	assert.ErrorIs(t, err, ErrUnitAlreadyPlaced)
}

func TestSlotService_RecomputeByesIsIdempotent(t *testing.T) {
	_, slots, phaseIDs := newSlotFixture(t, 5)
	ctx := context.Background()

	for slot, unit := range map[int]int{1: 100, 2: 101, 3: 102} {
		_, err := slots.AssignSlot(ctx, organizer, phaseIDs[0], slot, unit)
		require.NoError(t, err)
	}

	first, err := slots.RecomputeByes(ctx, testDivisionID)
	require.NoError(t, err)
	second, err := slots.RecomputeByes(ctx, testDivisionID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, first.Byes, 3)
}
