package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/LegalDragon/pickleball-community/models"
	"github.com/redis/go-redis/v9"
)

var (
	ErrSessionNotFound        = errors.New("drawing session not found")
	ErrSessionVersionConflict = errors.New("drawing session was modified concurrently")
)

// DrawingSessionStore keeps live drawing sessions between API calls. At most
// one session is active per division; Put replaces any previous one.
type DrawingSessionStore interface {
	Get(ctx context.Context, sessionID string) (*models.DrawingSession, error)
	GetActive(ctx context.Context, divisionID int) (*models.DrawingSession, error)
	// Put makes session the active one of its division. It fails with
	// ErrSessionVersionConflict when another Put of the division raced it.
	Put(ctx context.Context, session *models.DrawingSession) error
	// CompareAndSwap stores session only if the stored version is still expectedVersion.
	CompareAndSwap(ctx context.Context, session *models.DrawingSession, expectedVersion int) error
	Delete(ctx context.Context, session *models.DrawingSession) error
}

const (
	sessionKeyPrefix  = "drawing:session:"
	divisionKeyPrefix = "drawing:division:"
)

func sessionKey(id string) string       { return sessionKeyPrefix + id }
func divisionKey(divisionID int) string { return divisionKeyPrefix + strconv.Itoa(divisionID) }

type redisDrawingSessionStore struct {
	client *redis.Client
}

func NewRedisDrawingSessionStore(client *redis.Client) DrawingSessionStore {
	return &redisDrawingSessionStore{client: client}
}

func (s *redisDrawingSessionStore) Get(ctx context.Context, sessionID string) (*models.DrawingSession, error) {
	raw, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis get session %s: %w", sessionID, err)
	}
	var session models.DrawingSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", sessionID, err)
	}
	return &session, nil
}

func (s *redisDrawingSessionStore) GetActive(ctx context.Context, divisionID int) (*models.DrawingSession, error) {
	id, err := s.client.Get(ctx, divisionKey(divisionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("redis get active session of division %d: %w", divisionID, err)
	}
	return s.Get(ctx, id)
}

func (s *redisDrawingSessionStore) Put(ctx context.Context, session *models.DrawingSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.ID, err)
	}

	active := divisionKey(session.DivisionID)
	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		previous, err := tx.Get(ctx, active).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if previous != "" && previous != session.ID {
				pipe.Del(ctx, sessionKey(previous))
			}
			pipe.Set(ctx, sessionKey(session.ID), raw, 0)
			pipe.Set(ctx, active, session.ID, 0)
			return nil
		})
		return err
	}, active)

	if errors.Is(err, redis.TxFailedErr) {
		// другой инстанс успел заменить активную сессию
		return ErrSessionVersionConflict
	}
	if err != nil {
		return fmt.Errorf("redis put session %s: %w", session.ID, err)
	}
	return nil
}

func (s *redisDrawingSessionStore) CompareAndSwap(ctx context.Context, session *models.DrawingSession, expectedVersion int) error {
	key := sessionKey(session.ID)
	raw, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.ID, err)
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrSessionNotFound
			}
			return err
		}
		var stored struct {
			Version int `json:"version"`
		}
		if err := json.Unmarshal(current, &stored); err != nil {
			return fmt.Errorf("decode session %s: %w", session.ID, err)
		}
		if stored.Version != expectedVersion {
			return ErrSessionVersionConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, 0)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrSessionVersionConflict
	}
	return err
}

func (s *redisDrawingSessionStore) Delete(ctx context.Context, session *models.DrawingSession) error {
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		active, err := tx.Get(ctx, divisionKey(session.DivisionID)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, sessionKey(session.ID))
			if active == session.ID {
				pipe.Del(ctx, divisionKey(session.DivisionID))
			}
			return nil
		})
		return err
	}, divisionKey(session.DivisionID))
	if err != nil {
		return fmt.Errorf("redis delete session %s: %w", session.ID, err)
	}
	return nil
}

type memoryDrawingSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*models.DrawingSession
	active   map[int]string
}

// NewMemoryDrawingSessionStore keeps sessions in process memory. Used when
// Redis is not configured and in tests.
func NewMemoryDrawingSessionStore() DrawingSessionStore {
	return &memoryDrawingSessionStore{
		sessions: make(map[string]*models.DrawingSession),
		active:   make(map[int]string),
	}
}

func cloneSession(s *models.DrawingSession) *models.DrawingSession {
	c := *s
	c.Order = append([]models.DrawnUnit(nil), s.Order...)
	c.Drawn = append([]models.DrawnUnit{}, s.Drawn...)
	if s.ConfirmedAt != nil {
		t := *s.ConfirmedAt
		c.ConfirmedAt = &t
	}
	return &c
}

func (m *memoryDrawingSessionStore) Get(_ context.Context, sessionID string) (*models.DrawingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return cloneSession(s), nil
}

func (m *memoryDrawingSessionStore) GetActive(_ context.Context, divisionID int) (*models.DrawingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.active[divisionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return cloneSession(m.sessions[id]), nil
}

func (m *memoryDrawingSessionStore) Put(_ context.Context, session *models.DrawingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if previous, ok := m.active[session.DivisionID]; ok && previous != session.ID {
		delete(m.sessions, previous)
	}
	m.sessions[session.ID] = cloneSession(session)
	m.active[session.DivisionID] = session.ID
	return nil
}

func (m *memoryDrawingSessionStore) CompareAndSwap(_ context.Context, session *models.DrawingSession, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.sessions[session.ID]
	if !ok {
		return ErrSessionNotFound
	}
	if stored.Version != expectedVersion {
		return ErrSessionVersionConflict
	}
	m.sessions[session.ID] = cloneSession(session)
	return nil
}

func (m *memoryDrawingSessionStore) Delete(_ context.Context, session *models.DrawingSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, session.ID)
	if m.active[session.DivisionID] == session.ID {
		delete(m.active, session.DivisionID)
	}
	return nil
}
