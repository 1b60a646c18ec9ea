package models

// UnitStatus mirrors the registration statuses owned by the registration subsystem.
type UnitStatus string

const (
	UnitStatusRegistered UnitStatus = "Registered"
	UnitStatusConfirmed  UnitStatus = "Confirmed"
	UnitStatusCheckedIn  UnitStatus = "CheckedIn"
	UnitStatusWaitlisted UnitStatus = "Waitlisted"
	UnitStatusCancelled  UnitStatus = "Cancelled"
)

// IsEligibleForDraw: only cancelled and waitlisted units are kept out of schedules and draws.
func (s UnitStatus) IsEligibleForDraw() bool {
	return s != UnitStatusCancelled && s != UnitStatusWaitlisted
}

// Division is read-only here; it is created and edited by the event subsystem.
type Division struct {
	ID                   int     `json:"id" db:"id"`
	EventID              int     `json:"event_id" db:"event_id"`
	Name                 string  `json:"name" db:"name"`
	TemplateID           *int    `json:"template_id,omitempty" db:"template_id"`
	DefaultBestOf        *int    `json:"default_best_of,omitempty" db:"default_best_of"`
	DefaultScoreFormatID *int    `json:"default_score_format_id,omitempty" db:"default_score_format_id"`
	Units                []*Unit `json:"units,omitempty" db:"-"`
}

// Unit is a registered participant: a single player, a pair or a team.
type Unit struct {
	ID         int          `json:"unit_id" db:"id"`
	DivisionID int          `json:"division_id" db:"division_id"`
	Name       string       `json:"name" db:"name"`
	Status     UnitStatus   `json:"status" db:"status"`
	Members    []UnitMember `json:"members,omitempty" db:"-"`
}

type UnitMember struct {
	UserID      int    `json:"user_id" db:"user_id"`
	DisplayName string `json:"display_name" db:"display_name"`
	Gender      string `json:"gender,omitempty" db:"gender"`
}

// EligibleUnits returns the units that may take part in a draw, keeping input order.
func EligibleUnits(units []*Unit) []*Unit {
	eligible := make([]*Unit, 0, len(units))
	for _, u := range units {
		if u != nil && u.Status.IsEligibleForDraw() {
			eligible = append(eligible, u)
		}
	}
	return eligible
}
