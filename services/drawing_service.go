package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/LegalDragon/pickleball-community/brackets"
	"github.com/LegalDragon/pickleball-community/models"
	"github.com/LegalDragon/pickleball-community/queue"
	"github.com/LegalDragon/pickleball-community/repositories"
)

type DrawingService interface {
	StartDrawing(ctx context.Context, actor Actor, divisionID int) (*DrawingState, error)
	DrawNext(ctx context.Context, actor Actor, sessionID string) (*DrawStep, error)
	ConfirmDrawing(ctx context.Context, actor Actor, sessionID string, assignments []models.DrawnUnit) (*ConfirmResult, error)
	Redraw(ctx context.Context, actor Actor, sessionID string) (*DrawingState, error)
	GetDrawingState(ctx context.Context, divisionID int) (*DrawingState, error)
	Snapshot(ctx context.Context, divisionID int) (*brackets.RoomMessage, error)
}

// DrawArchiver stores the audit copy of a confirmed draw and returns its location.
type DrawArchiver interface {
	Archive(ctx context.Context, record *models.DrawRecord, assignments []models.DrawnUnit) (string, error)
}

// DrawingState is the public view of a division's draw. The undrawn order is never exposed.
type DrawingState struct {
	DivisionID     int                `json:"division_id"`
	Active         bool               `json:"active"`
	SessionID      string             `json:"session_id,omitempty"`
	PhaseID        int                `json:"phase_id,omitempty"`
	State          models.DrawState   `json:"state,omitempty"`
	StartedBy      int                `json:"started_by,omitempty"`
	TotalUnits     int                `json:"total_units"`
	Drawn          []models.DrawnUnit `json:"drawn"`
	RemainingCount int                `json:"remaining_count"`
	Version        int                `json:"version"`
	LastConfirmed  *models.DrawRecord `json:"last_confirmed,omitempty"`
}

type DrawStep struct {
	SessionID      string           `json:"session_id"`
	Unit           models.DrawnUnit `json:"unit"`
	RemainingCount int              `json:"remaining_count"`
	State          models.DrawState `json:"state"`
	Version        int              `json:"version"`
	// Bye is set when the drawn slot faces a slot that will never be filled.
	Bye *brackets.Bye `json:"bye,omitempty"`
}

type ConfirmResult struct {
	SessionID   string             `json:"session_id"`
	DivisionID  int                `json:"division_id"`
	PhaseID     int                `json:"phase_id"`
	Assignments []models.DrawnUnit `json:"assignments"`
	Byes        []brackets.Bye     `json:"byes"`
	ArchiveURL  string             `json:"archive_url,omitempty"`
}

type drawingService struct {
	store        repositories.DrawingSessionStore
	divisionRepo repositories.DivisionRepository
	phaseRepo    repositories.PhaseRepository
	drawRepo     repositories.DrawRepository
	txManager    repositories.TxManager
	broadcaster  brackets.Broadcaster
	publisher    queue.Publisher
	archive      DrawArchiver
	locks        *DivisionLocks
	logger       *slog.Logger

	newSeed func() ([32]byte, error)
	now     func() time.Time
	newID   func() string
}

// NewDrawingService wires the orchestrator. archive may be nil.
func NewDrawingService(
	store repositories.DrawingSessionStore,
	divisionRepo repositories.DivisionRepository,
	phaseRepo repositories.PhaseRepository,
	drawRepo repositories.DrawRepository,
	txManager repositories.TxManager,
	broadcaster brackets.Broadcaster,
	publisher queue.Publisher,
	archive DrawArchiver,
	locks *DivisionLocks,
	logger *slog.Logger,
) DrawingService {
	return &drawingService{
		store:        store,
		divisionRepo: divisionRepo,
		phaseRepo:    phaseRepo,
		drawRepo:     drawRepo,
		txManager:    txManager,
		broadcaster:  broadcaster,
		publisher:    publisher,
		archive:      archive,
		locks:        locks,
		logger:       logger,
		newSeed:      brackets.NewSeed,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
	}
}

func (s *drawingService) getSession(ctx context.Context, sessionID string) (*models.DrawingSession, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			return nil, ErrDrawingSessionNotFound
		}
		return nil, fmt.Errorf("failed to load drawing session %s: %w", sessionID, err)
	}
	return session, nil
}

// lockSession takes the division lock and re-reads the session under it.
func (s *drawingService) lockSession(ctx context.Context, sessionID string) (*models.DrawingSession, func(), error) {
	session, err := s.getSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	unlock := s.locks.lock(session.DivisionID)
	session, err = s.getSession(ctx, sessionID)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return session, unlock, nil
}

func (s *drawingService) checkDriver(session *models.DrawingSession, actor Actor) error {
	if actor.IsAdmin() || session.StartedBy == actor.UserID {
		return nil
	}
	return fmt.Errorf("%w: drawing session %s is driven by user %d", ErrForbiddenOperation, session.ID, session.StartedBy)
}

// checkActive rejects a session that another instance has replaced.
func (s *drawingService) checkActive(ctx context.Context, session *models.DrawingSession) error {
	active, err := s.store.GetActive(ctx, session.DivisionID)
	switch {
	case errors.Is(err, repositories.ErrSessionNotFound):
		return fmt.Errorf("%w: division %d has no active drawing", ErrConcurrentDrawConflict, session.DivisionID)
	case err != nil:
		return fmt.Errorf("failed to load active drawing of division %d: %w", session.DivisionID, err)
	case active.ID != session.ID:
		return fmt.Errorf("%w: session %s was replaced by %s", ErrConcurrentDrawConflict, session.ID, active.ID)
	}
	return nil
}

// entryPhase returns the phase the draw fills and the number of units it expects.
func (s *drawingService) entryPhase(ctx context.Context, divisionID int) (*models.Phase, error) {
	phases, err := s.phaseRepo.ListByDivision(ctx, divisionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list phases of division %d: %w", divisionID, err)
	}
	var entry *models.Phase
	for _, p := range phases {
		if entry == nil || p.PhaseOrder < entry.PhaseOrder {
			entry = p
		}
	}
	if entry == nil {
		return nil, ErrScheduleNotFound
	}
	return entry, nil
}

func (s *drawingService) eligibleUnits(ctx context.Context, divisionID int, entry *models.Phase) ([]*models.Unit, error) {
	units, err := s.divisionRepo.ListUnits(ctx, divisionID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list units of division %d: %w", divisionID, err)
	}
	eligible := models.EligibleUnits(units)
	if len(eligible) == 0 {
		return nil, ErrNoEligibleUnits
	}
	if expected := entry.EntrySlots - entry.ByeCount; len(eligible) != expected {
		return nil, fmt.Errorf("%w: schedule was generated for %d units, division has %d eligible",
			ErrUnitCountOutOfRange, expected, len(eligible))
	}
	return eligible, nil
}

func (s *drawingService) StartDrawing(ctx context.Context, actor Actor, divisionID int) (*DrawingState, error) {
	if _, err := s.divisionRepo.GetByID(ctx, divisionID); err != nil {
		if errors.Is(err, repositories.ErrDivisionNotFound) {
			return nil, ErrDivisionNotFound
		}
		return nil, fmt.Errorf("failed to get division %d: %w", divisionID, err)
	}

	unlock := s.locks.lock(divisionID)
	defer unlock()

	entry, err := s.entryPhase(ctx, divisionID)
	if err != nil {
		return nil, err
	}

	active, err := s.store.GetActive(ctx, divisionID)
	switch {
	case err == nil && active.PhaseID == entry.ID:
		if active.State == models.DrawStateConfirmed {
			return nil, ErrDrawAlreadyConfirmed
		}
		// an unconfirmed draw is resumed, not restarted
		return s.stateOf(active), nil
	case err == nil:
		// сессия осталась от прежнего расписания
		if err := s.store.Delete(ctx, active); err != nil {
			return nil, fmt.Errorf("failed to drop stale drawing %s: %w", active.ID, err)
		}
		s.logger.InfoContext(ctx, "stale drawing dropped",
			slog.Int("division_id", divisionID), slog.String("session_id", active.ID), slog.Int("phase_id", active.PhaseID))
	case !errors.Is(err, repositories.ErrSessionNotFound):
		return nil, fmt.Errorf("failed to load active drawing of division %d: %w", divisionID, err)
	}

	occupied, err := s.drawRepo.CountOccupiedSlots(ctx, nil, entry.ID)
	if err != nil {
		return nil, err
	}
	if occupied > 0 {
		return nil, fmt.Errorf("%w: %d slots of phase %d are already assigned", ErrDrawAlreadyConfirmed, occupied, entry.ID)
	}

	version := 0
	if active != nil {
		version = active.Version
	}
	session, err := s.newSession(ctx, actor, divisionID, entry, version)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "drawing started",
		slog.Int("division_id", divisionID), slog.String("session_id", session.ID),
		slog.Int("units", session.TotalUnits()), slog.Int("user_id", actor.UserID))
	s.publishStarted(ctx, session)
	return s.stateOf(session), nil
}

// newSession shuffles the eligible units and stores the session as the
// division's active one. Versions continue after previousVersion so
// spectators never see a version go backwards.
func (s *drawingService) newSession(ctx context.Context, actor Actor, divisionID int, entry *models.Phase, previousVersion int) (*models.DrawingSession, error) {
	units, err := s.eligibleUnits(ctx, divisionID, entry)
	if err != nil {
		return nil, err
	}
	seed, err := s.newSeed()
	if err != nil {
		return nil, err
	}
	session, err := brackets.StartSession(s.newID(), divisionID, entry.ID, actor.UserID, units, seed, s.now())
	if err != nil {
		return nil, err
	}
	session.Version += previousVersion
	if err := s.store.Put(ctx, session); err != nil {
		if errors.Is(err, repositories.ErrSessionVersionConflict) {
			return nil, fmt.Errorf("%w: division %d drawing was replaced concurrently", ErrConcurrentDrawConflict, divisionID)
		}
		return nil, fmt.Errorf("failed to store drawing session: %w", err)
	}
	return session, nil
}

func (s *drawingService) DrawNext(ctx context.Context, actor Actor, sessionID string) (*DrawStep, error) {
	session, unlock, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.checkDriver(session, actor); err != nil {
		return nil, err
	}

	expected := session.Version
	unit, err := brackets.DrawNext(session, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.CompareAndSwap(ctx, session, expected); err != nil {
		if errors.Is(err, repositories.ErrSessionVersionConflict) {
			return nil, ErrConcurrentDrawConflict
		}
		return nil, fmt.Errorf("failed to store drawing session %s: %w", sessionID, err)
	}

	step := &DrawStep{
		SessionID:      session.ID,
		Unit:           unit,
		RemainingCount: session.RemainingCount(),
		State:          session.State,
		Version:        session.Version,
		Bye:            s.previewBye(ctx, session, unit),
	}

	s.broadcaster.Publish(ctx, session.DivisionID, brackets.RoomMessage{
		Type: brackets.EventUnitDrawn,
		Payload: brackets.UnitDrawnPayload{
			DivisionID:     session.DivisionID,
			UnitID:         unit.UnitID,
			UnitName:       unit.UnitName,
			SlotNumber:     unit.SlotNumber,
			RemainingCount: session.RemainingCount(),
		},
		RoomID:  brackets.DivisionRoom(session.DivisionID),
		Version: session.Version,
	})
	if session.State == models.DrawStateCompleted {
		s.logger.InfoContext(ctx, "drawing completed", slog.Int("division_id", session.DivisionID), slog.String("session_id", session.ID))
		s.broadcaster.Publish(ctx, session.DivisionID, brackets.RoomMessage{
			Type:    brackets.EventDrawCompleted,
			Payload: brackets.DrawCompletedPayload{DivisionID: session.DivisionID, FinalOrder: session.Drawn},
			RoomID:  brackets.DivisionRoom(session.DivisionID),
			Version: session.Version,
		})
	}
	return step, nil
}

// previewBye reports whether the drawn unit already has a bye. Failures are
// logged only: the preview never fails a draw step.
func (s *drawingService) previewBye(ctx context.Context, session *models.DrawingSession, unit models.DrawnUnit) *brackets.Bye {
	layout, err := loadDivisionLayout(ctx, s.phaseRepo, session.DivisionID)
	if err != nil {
		s.logger.WarnContext(ctx, "bye preview unavailable", slog.Int("division_id", session.DivisionID), slog.Any("error", err))
		return nil
	}
	entryOrder := layout.orderByID[session.PhaseID]
	for _, d := range session.Drawn {
		layout.filled[brackets.SlotKey{Phase: entryOrder, Slot: d.SlotNumber}] = d.UnitID
	}
	res := brackets.ResolveByes(layout.graph, layout.filled)
	for _, b := range res.ByesInPhase(entryOrder) {
		if b.UnitID == unit.UnitID {
			bye := b
			return &bye
		}
	}
	return nil
}

func (s *drawingService) ConfirmDrawing(ctx context.Context, actor Actor, sessionID string, assignments []models.DrawnUnit) (*ConfirmResult, error) {
	session, unlock, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.checkDriver(session, actor); err != nil {
		return nil, err
	}
	if session.State == models.DrawStateConfirmed {
		return nil, fmt.Errorf("%w: session %s is already confirmed", ErrConcurrentDrawConflict, sessionID)
	}
	if err := s.checkActive(ctx, session); err != nil {
		return nil, err
	}
	pairs, err := brackets.CheckConfirmable(session, assignments)
	if err != nil {
		return nil, err
	}

	finalOrder, err := json.Marshal(pairs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode final order: %w", err)
	}
	confirmedAt := s.now()
	record := &models.DrawRecord{
		DivisionID:  session.DivisionID,
		PhaseID:     session.PhaseID,
		SessionID:   session.ID,
		ConfirmedBy: actor.UserID,
		Seed:        session.Seed,
		FinalOrder:  string(finalOrder),
		ConfirmedAt: confirmedAt,
	}

	var (
		entry *models.Phase
		byes  brackets.ByeResolution
	)
	err = withLockedLayout(ctx, s.txManager, s.phaseRepo, session.DivisionID, func(exec repositories.SQLExecutor, layout *divisionLayout) error {
		entry = layout.entryPhase()
		if entry.ID != session.PhaseID {
			return fmt.Errorf("%w: schedule of division %d was regenerated during the draw", ErrConcurrentDrawConflict, session.DivisionID)
		}
		occupied, err := s.drawRepo.CountOccupiedSlots(ctx, exec, session.PhaseID)
		if err != nil {
			return err
		}
		if occupied > 0 {
			return fmt.Errorf("%w: %d slots of phase %d are already assigned", ErrConcurrentDrawConflict, occupied, session.PhaseID)
		}
		for _, p := range pairs {
			layout.filled[brackets.SlotKey{Phase: entry.PhaseOrder, Slot: p.SlotNumber}] = p.UnitID
		}
		if err := s.drawRepo.AssignDrawnUnits(ctx, exec, session.PhaseID, pairs); err != nil {
			return err
		}
		if err := s.drawRepo.CreateRecord(ctx, exec, record); err != nil {
			return err
		}
		byes, err = persistByes(ctx, exec, s.phaseRepo, session.DivisionID, layout, nil)
		return err
	})
	if err != nil {
		return nil, mapConfirmError(err)
	}

	expected := session.Version
	brackets.MarkConfirmed(session, confirmedAt)
	if err := s.store.CompareAndSwap(ctx, session, expected); err != nil {
		// the slots are committed; only the cached session is stale
		s.logger.WarnContext(ctx, "failed to mark drawing session confirmed",
			slog.String("session_id", session.ID), slog.Any("error", err))
	}

	s.logger.InfoContext(ctx, "drawing confirmed",
		slog.Int("division_id", session.DivisionID), slog.String("session_id", session.ID),
		slog.Int("units", len(pairs)), slog.Int("byes", len(byes.Byes)), slog.Int("user_id", actor.UserID))

	s.broadcaster.Publish(ctx, session.DivisionID, brackets.RoomMessage{
		Type:    brackets.EventDrawConfirmed,
		Payload: brackets.DrawConfirmedPayload{DivisionID: session.DivisionID, SessionID: session.ID, ConfirmedBy: actor.UserID},
		RoomID:  brackets.DivisionRoom(session.DivisionID),
		Version: session.Version,
	})

	result := &ConfirmResult{
		SessionID:   session.ID,
		DivisionID:  session.DivisionID,
		PhaseID:     session.PhaseID,
		Assignments: pairs,
		Byes:        byes.ByesInPhase(entry.PhaseOrder),
	}
	if result.Byes == nil {
		result.Byes = []brackets.Bye{}
	}
	if s.archive != nil {
		location, err := s.archive.Archive(ctx, record, pairs)
		if err != nil {
			s.logger.WarnContext(ctx, "failed to archive draw", slog.String("session_id", session.ID), slog.Any("error", err))
		}
		result.ArchiveURL = location
	}
	s.publishConfirmed(ctx, record, pairs, result.ArchiveURL)
	return result, nil
}

func mapConfirmError(err error) error {
	switch {
	case errors.Is(err, ErrConcurrentDrawConflict), errors.Is(err, ErrScheduleNotFound):
		return err
	case errors.Is(err, repositories.ErrPhaseNotFound):
		return fmt.Errorf("%w: %v", ErrScheduleNotFound, err)
	case errors.Is(err, repositories.ErrDrawSlotsMissing):
		return fmt.Errorf("%w: %v", ErrScheduleNotFound, err)
	case errors.Is(err, repositories.ErrDrawAlreadyRecorded),
		errors.Is(err, repositories.ErrUnitAlreadyPlaced):
		return fmt.Errorf("%w: %v", ErrConcurrentDrawConflict, err)
	default:
		return fmt.Errorf("failed to confirm drawing: %w", err)
	}
}

func (s *drawingService) Redraw(ctx context.Context, actor Actor, sessionID string) (*DrawingState, error) {
	old, unlock, err := s.lockSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.checkDriver(old, actor); err != nil {
		return nil, err
	}
	if err := brackets.CheckRedrawable(old); err != nil {
		return nil, err
	}

	entry, err := s.entryPhase(ctx, old.DivisionID)
	if err != nil {
		return nil, err
	}
	session, err := s.newSession(ctx, actor, old.DivisionID, entry, old.Version)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "drawing reset",
		slog.Int("division_id", old.DivisionID), slog.String("old_session_id", old.ID),
		slog.String("session_id", session.ID), slog.Int("discarded", len(old.Drawn)))
	s.broadcaster.Publish(ctx, old.DivisionID, brackets.RoomMessage{
		Type:    brackets.EventDrawReset,
		Payload: brackets.DrawResetPayload{DivisionID: old.DivisionID, SessionID: old.ID},
		RoomID:  brackets.DivisionRoom(old.DivisionID),
		Version: session.Version,
	})
	s.publishStarted(ctx, session)
	return s.stateOf(session), nil
}

func (s *drawingService) GetDrawingState(ctx context.Context, divisionID int) (*DrawingState, error) {
	active, err := s.store.GetActive(ctx, divisionID)
	if err == nil {
		return s.stateOf(active), nil
	}
	if !errors.Is(err, repositories.ErrSessionNotFound) {
		return nil, fmt.Errorf("failed to load active drawing of division %d: %w", divisionID, err)
	}

	state := &DrawingState{DivisionID: divisionID, Drawn: []models.DrawnUnit{}}
	record, err := s.drawRepo.GetLatestByDivision(ctx, divisionID)
	switch {
	case err == nil:
		state.LastConfirmed = record
		state.State = models.DrawStateConfirmed
	case errors.Is(err, repositories.ErrDrawRecordNotFound):
	default:
		return nil, fmt.Errorf("failed to load latest draw of division %d: %w", divisionID, err)
	}
	return state, nil
}

// Snapshot is the hub's join callback.
func (s *drawingService) Snapshot(ctx context.Context, divisionID int) (*brackets.RoomMessage, error) {
	active, err := s.store.GetActive(ctx, divisionID)
	if err != nil {
		if errors.Is(err, repositories.ErrSessionNotFound) {
			msg := brackets.NewSnapshot(divisionID, nil)
			return &msg, nil
		}
		return nil, err
	}
	msg := brackets.NewSnapshot(divisionID, active)
	return &msg, nil
}

func (s *drawingService) stateOf(session *models.DrawingSession) *DrawingState {
	return &DrawingState{
		DivisionID:     session.DivisionID,
		Active:         true,
		SessionID:      session.ID,
		PhaseID:        session.PhaseID,
		State:          session.State,
		StartedBy:      session.StartedBy,
		TotalUnits:     session.TotalUnits(),
		Drawn:          append([]models.DrawnUnit{}, session.Drawn...),
		RemainingCount: session.RemainingCount(),
		Version:        session.Version,
	}
}

func (s *drawingService) publishStarted(ctx context.Context, session *models.DrawingSession) {
	s.broadcaster.Publish(ctx, session.DivisionID, brackets.RoomMessage{
		Type: brackets.EventDrawStarted,
		Payload: brackets.DrawStartedPayload{
			DivisionID: session.DivisionID,
			SessionID:  session.ID,
			TotalUnits: session.TotalUnits(),
		},
		RoomID:  brackets.DivisionRoom(session.DivisionID),
		Version: session.Version,
	})
}

func (s *drawingService) publishConfirmed(ctx context.Context, record *models.DrawRecord, pairs []models.DrawnUnit, archiveURL string) {
	event := queue.DrawConfirmedEvent{
		DivisionID:  record.DivisionID,
		PhaseID:     record.PhaseID,
		SessionID:   record.SessionID,
		ConfirmedBy: record.ConfirmedBy,
		ArchiveURL:  archiveURL,
		ConfirmedAt: record.ConfirmedAt,
	}
	for _, p := range pairs {
		event.Assignments = append(event.Assignments, queue.DrawAssignment{UnitID: p.UnitID, SlotNumber: p.SlotNumber})
	}
	if err := s.publisher.Publish(ctx, queue.DrawConfirmedQueue, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish draw event", slog.Int("division_id", record.DivisionID), slog.Any("error", err))
	}
}
