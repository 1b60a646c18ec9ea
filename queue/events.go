// Package queue publishes scheduling domain events to RabbitMQ for
// downstream consumers (notifications, court assignment).
package queue

import "time"

const (
	ScheduleGeneratedQueue = "schedule.generated"
	DrawConfirmedQueue     = "drawing.confirmed"
)

// ScheduleGeneratedEvent is emitted after a schedule transaction commits.
type ScheduleGeneratedEvent struct {
	DivisionID      int       `json:"division_id"`
	TemplateID      int       `json:"template_id"`
	UnitCount       int       `json:"unit_count"`
	PhaseIDs        []int     `json:"phase_ids"`
	TotalEncounters int       `json:"total_encounters"`
	GeneratedBy     int       `json:"generated_by"`
	GeneratedAt     time.Time `json:"generated_at"`
}

type DrawAssignment struct {
	UnitID     int `json:"unit_id"`
	SlotNumber int `json:"slot_number"`
}

// DrawConfirmedEvent is emitted once the drawn order is written to the draw phase.
type DrawConfirmedEvent struct {
	DivisionID  int              `json:"division_id"`
	PhaseID     int              `json:"phase_id"`
	SessionID   string           `json:"session_id"`
	ConfirmedBy int              `json:"confirmed_by"`
	Assignments []DrawAssignment `json:"assignments"`
	ArchiveURL  string           `json:"archive_url,omitempty"`
	ConfirmedAt time.Time        `json:"confirmed_at"`
}
