package services

import (
	"sync"

	"github.com/LegalDragon/pickleball-community/models"
)

const RoleAdmin = "admin"

// Actor is the authenticated caller of a mutating operation.
type Actor struct {
	UserID int
	Role   string
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// DivisionLocks serializes mutations of one division inside this process.
// Every service that writes slots, byes or draws of a division must share
// one instance. Cross-instance safety comes from the session store CAS and
// the phase row locks.
type DivisionLocks struct {
	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func NewDivisionLocks() *DivisionLocks {
	return &DivisionLocks{locks: make(map[int]*sync.Mutex)}
}

func (l *DivisionLocks) lock(divisionID int) func() {
	l.mu.Lock()
	m, ok := l.locks[divisionID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[divisionID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func derefInt(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}

func intPtrOrNil(v int) *int {
	if v == 0 {
		return nil
	}
	return &v
}

func phasesToValues(slice []*models.Phase) []models.Phase {
	if slice == nil {
		return []models.Phase{}
	}
	result := make([]models.Phase, 0, len(slice))
	for _, p := range slice {
		if p != nil {
			result = append(result, *p)
		}
	}
	return result
}
