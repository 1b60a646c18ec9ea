package models

import "time"

// DrawState is the lifecycle of a division drawing session.
type DrawState string

const (
	DrawStateReady      DrawState = "Ready"
	DrawStateInProgress DrawState = "InProgress"
	DrawStateCompleted  DrawState = "Completed"
	DrawStateConfirmed  DrawState = "Confirmed"
)

// DrawnUnit is a single (unit, slot) pair revealed by the draw.
type DrawnUnit struct {
	UnitID     int    `json:"unit_id"`
	UnitName   string `json:"unit_name"`
	SlotNumber int    `json:"slot_number"`
}

// DrawingSession holds the state of a draw between calls. It is stored in
// the session store as JSON and only reaches the database on confirmation.
type DrawingSession struct {
	ID          string      `json:"id"`
	DivisionID  int         `json:"division_id"`
	PhaseID     int         `json:"phase_id"`
	StartedBy   int         `json:"started_by"`
	State       DrawState   `json:"state"`
	Order       []DrawnUnit `json:"order"` // full permutation, SlotNumber = index+1
	Drawn       []DrawnUnit `json:"drawn"`
	Seed        string      `json:"seed"`
	Version     int         `json:"version"`
	StartedAt   time.Time   `json:"started_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
	ConfirmedAt *time.Time  `json:"confirmed_at,omitempty"`
}

func (s *DrawingSession) TotalUnits() int { return len(s.Order) }

func (s *DrawingSession) RemainingCount() int { return len(s.Order) - len(s.Drawn) }

// Remaining is the still hidden part of the shuffled pool.
func (s *DrawingSession) Remaining() []DrawnUnit {
	return s.Order[len(s.Drawn):]
}

// DrawRecord is the audit row written when a draw is confirmed.
type DrawRecord struct {
	ID          int       `json:"id" db:"id"`
	DivisionID  int       `json:"division_id" db:"division_id"`
	PhaseID     int       `json:"phase_id" db:"phase_id"`
	SessionID   string    `json:"session_id" db:"session_id"`
	ConfirmedBy int       `json:"confirmed_by" db:"confirmed_by"`
	Seed        string    `json:"seed" db:"seed"`
	FinalOrder  string    `json:"-" db:"final_order"` // JSON of []DrawnUnit
	ConfirmedAt time.Time `json:"confirmed_at" db:"confirmed_at"`
}
