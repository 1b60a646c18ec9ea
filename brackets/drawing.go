package brackets

import (
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/LegalDragon/pickleball-community/models"
)

// NewSeed returns a fresh shuffle seed from the system CSPRNG.
func NewSeed() ([32]byte, error) {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return seed, fmt.Errorf("read random seed: %w", err)
	}
	return seed, nil
}

// ShuffleUnits applies a Fisher-Yates shuffle driven by seed and assigns the
// unit at index i to slot i+1. The same seed and input give the same order.
func ShuffleUnits(units []*models.Unit, seed [32]byte) []models.DrawnUnit {
	order := make([]models.DrawnUnit, len(units))
	for i, u := range units {
		order[i] = models.DrawnUnit{UnitID: u.ID, UnitName: u.Name}
	}
	rng := rand.New(rand.NewChaCha8(seed))
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	for i := range order {
		order[i].SlotNumber = i + 1
	}
	return order
}

// StartSession builds a Ready session over the eligible units.
func StartSession(id string, divisionID, phaseID, organizerID int, units []*models.Unit, seed [32]byte, now time.Time) (*models.DrawingSession, error) {
	eligible := models.EligibleUnits(units)
	if len(eligible) == 0 {
		return nil, ErrNoEligibleUnits
	}
	return &models.DrawingSession{
		ID:         id,
		DivisionID: divisionID,
		PhaseID:    phaseID,
		StartedBy:  organizerID,
		State:      models.DrawStateReady,
		Order:      ShuffleUnits(eligible, seed),
		Drawn:      []models.DrawnUnit{},
		Seed:       hex.EncodeToString(seed[:]),
		Version:    1,
		StartedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// DrawNext reveals the next unit of the permuted order. The session moves to
// InProgress on the first draw and to Completed once every unit is drawn.
func DrawNext(s *models.DrawingSession, now time.Time) (models.DrawnUnit, error) {
	switch s.State {
	case models.DrawStateConfirmed:
		return models.DrawnUnit{}, ErrDrawAlreadyConfirmed
	case models.DrawStateCompleted:
		return models.DrawnUnit{}, fmt.Errorf("%w: all %d units are drawn", ErrDrawNotInProgress, s.TotalUnits())
	}

	next := s.Remaining()[0]
	s.Drawn = append(s.Drawn, next)
	s.State = models.DrawStateInProgress
	if len(s.Drawn) == len(s.Order) {
		s.State = models.DrawStateCompleted
	}
	s.Version++
	s.UpdatedAt = now
	return next, nil
}

// CheckConfirmable validates that a session can be confirmed with the given
// assignments. Empty assignments mean "use the drawn order".
func CheckConfirmable(s *models.DrawingSession, assignments []models.DrawnUnit) ([]models.DrawnUnit, error) {
	switch s.State {
	case models.DrawStateConfirmed:
		return nil, ErrDrawAlreadyConfirmed
	case models.DrawStateCompleted:
	default:
		return nil, fmt.Errorf("%w: %d of %d units drawn", ErrDrawNotFinished, len(s.Drawn), s.TotalUnits())
	}

	if len(assignments) == 0 {
		return s.Drawn, nil
	}
	if len(assignments) != len(s.Drawn) {
		return nil, fmt.Errorf("%w: got %d assignments, drew %d", ErrAssignmentsMismatch, len(assignments), len(s.Drawn))
	}
	want := make(map[int]int, len(s.Drawn))
	for _, d := range s.Drawn {
		want[d.UnitID] = d.SlotNumber
	}
	for _, a := range assignments {
		if slot, ok := want[a.UnitID]; !ok || slot != a.SlotNumber {
			return nil, fmt.Errorf("%w: unit %d slot %d", ErrAssignmentsMismatch, a.UnitID, a.SlotNumber)
		}
	}
	return s.Drawn, nil
}

// MarkConfirmed moves a completed session to Confirmed.
func MarkConfirmed(s *models.DrawingSession, now time.Time) {
	s.State = models.DrawStateConfirmed
	s.Version++
	s.UpdatedAt = now
	s.ConfirmedAt = &now
}

// CheckRedrawable reports whether a session may be discarded and reshuffled.
func CheckRedrawable(s *models.DrawingSession) error {
	if s.State == models.DrawStateConfirmed {
		return ErrDrawAlreadyConfirmed
	}
	return nil
}
