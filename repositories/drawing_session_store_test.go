package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LegalDragon/pickleball-community/models"
)

func TestMemoryDrawingSessionStore_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDrawingSessionStore()

	s := &models.DrawingSession{ID: "a", DivisionID: 5, State: models.DrawStateReady, Version: 1, StartedAt: time.Now()}
	require.NoError(t, store.Put(ctx, s))

	s.Version = 2
	s.Drawn = append(s.Drawn, models.DrawnUnit{UnitID: 1, SlotNumber: 1})
	require.NoError(t, store.CompareAndSwap(ctx, s, 1))

	// a writer still holding version 1 loses
	stale := *s
	stale.Version = 2
	require.ErrorIs(t, store.CompareAndSwap(ctx, &stale, 1), ErrSessionVersionConflict)

	got, err := store.GetActive(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Len(t, got.Drawn, 1)

	// returned sessions are copies
	got.Drawn[0].SlotNumber = 99
	again, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, again.Drawn[0].SlotNumber)
}

func TestMemoryDrawingSessionStore_PutReplacesActive(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryDrawingSessionStore()

	require.NoError(t, store.Put(ctx, &models.DrawingSession{ID: "old", DivisionID: 5, Version: 1}))
	require.NoError(t, store.Put(ctx, &models.DrawingSession{ID: "new", DivisionID: 5, Version: 1}))

	_, err := store.Get(ctx, "old")
	require.ErrorIs(t, err, ErrSessionNotFound)

	active, err := store.GetActive(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "new", active.ID)

	require.NoError(t, store.Delete(ctx, active))
	_, err = store.GetActive(ctx, 5)
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func newRedisStore(t *testing.T) (DrawingSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisDrawingSessionStore(client), mr
}

func TestRedisDrawingSessionStore_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)

	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	s := &models.DrawingSession{
		ID:         "a",
		DivisionID: 5,
		PhaseID:    9,
		State:      models.DrawStateReady,
		Order:      []models.DrawnUnit{{UnitID: 1, SlotNumber: 1}, {UnitID: 2, SlotNumber: 2}},
		Drawn:      []models.DrawnUnit{},
		Version:    1,
		StartedAt:  started,
	}
	require.NoError(t, store.Put(ctx, s))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 9, got.PhaseID)
	assert.Equal(t, s.Order, got.Order)
	assert.True(t, started.Equal(got.StartedAt))

	s.Version = 2
	s.Drawn = append(s.Drawn, s.Order[0])
	require.NoError(t, store.CompareAndSwap(ctx, s, 1))

	stale := *s
	stale.Version = 2
	require.ErrorIs(t, store.CompareAndSwap(ctx, &stale, 1), ErrSessionVersionConflict)

	active, err := store.GetActive(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, active.Version)
	assert.Len(t, active.Drawn, 1)

	_, err = store.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
	require.ErrorIs(t, store.CompareAndSwap(ctx, &models.DrawingSession{ID: "missing", DivisionID: 5}, 1), ErrSessionNotFound)
}

func TestRedisDrawingSessionStore_PutReplacesActive(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	require.NoError(t, store.Put(ctx, &models.DrawingSession{ID: "old", DivisionID: 5, Version: 1}))
	require.NoError(t, store.Put(ctx, &models.DrawingSession{ID: "new", DivisionID: 5, Version: 4}))

	assert.False(t, mr.Exists(sessionKey("old")))
	_, err := store.Get(ctx, "old")
	require.ErrorIs(t, err, ErrSessionNotFound)

	active, err := store.GetActive(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "new", active.ID)
	assert.Equal(t, 4, active.Version)

	// другие дивизионы не затронуты
	require.NoError(t, store.Put(ctx, &models.DrawingSession{ID: "other", DivisionID: 6, Version: 1}))
	active, err = store.GetActive(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, "new", active.ID)
}

func TestRedisDrawingSessionStore_Delete(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)

	require.NoError(t, store.Put(ctx, &models.DrawingSession{ID: "a", DivisionID: 5, Version: 1}))
	active, err := store.GetActive(ctx, 5)
	require.NoError(t, err)

	// a session that is not the active one leaves the pointer alone
	require.NoError(t, store.Delete(ctx, &models.DrawingSession{ID: "ghost", DivisionID: 5}))
	_, err = store.GetActive(ctx, 5)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, active))
	_, err = store.GetActive(ctx, 5)
	require.ErrorIs(t, err, ErrSessionNotFound)
	assert.False(t, mr.Exists(divisionKey(5)))
	assert.False(t, mr.Exists(sessionKey("a")))
}

func TestRedisDrawingSessionStore_Unreachable(t *testing.T) {
	ctx := context.Background()
	store, mr := newRedisStore(t)
	mr.Close()

	_, err := store.GetActive(ctx, 5)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
	assert.Error(t, store.Put(ctx, &models.DrawingSession{ID: "a", DivisionID: 5, Version: 1}))
}
