package models

import "time"

// PhaseType is the concrete kind of a persisted phase.
type PhaseType string

const (
	PhaseTypeRoundRobin        PhaseType = "RoundRobin"
	PhaseTypePools             PhaseType = "Pools"
	PhaseTypeSingleElimination PhaseType = "SingleElimination"
	PhaseTypeDoubleElimination PhaseType = "DoubleElimination"
	PhaseTypeAward             PhaseType = "Award"
	PhaseTypeDraw              PhaseType = "Draw"
)

// IsBracket reports whether encounters of the phase produce a winner and a loser position.
func (t PhaseType) IsBracket() bool {
	return t == PhaseTypeSingleElimination || t == PhaseTypeDoubleElimination
}

// Phase is one stage of a division schedule (pool play, one bracket round, ...).
type Phase struct {
	ID                 int       `json:"id" db:"id"`
	DivisionID         int       `json:"division_id" db:"division_id"`
	TemplateID         *int      `json:"template_id,omitempty" db:"template_id"`
	PhaseOrder         int       `json:"order" db:"phase_order"`
	Name               string    `json:"name" db:"name"`
	PhaseType          PhaseType `json:"type" db:"phase_type"`
	EntrySlots         int       `json:"incoming_slots" db:"entry_slots"`
	ExitSlots          int       `json:"exiting_slots" db:"exit_slots"`
	PoolCount          int       `json:"pool_count" db:"pool_count"`
	ByeCount           int       `json:"byes" db:"bye_count"`
	IncludeConsolation bool      `json:"include_consolation" db:"include_consolation"`
	BracketRound       *int      `json:"bracket_round,omitempty" db:"bracket_round"`
	BracketSide        *string   `json:"bracket_side,omitempty" db:"bracket_side"`
	BestOf             *int      `json:"best_of,omitempty" db:"best_of"`
	ScoreFormatID      *int      `json:"score_format_id,omitempty" db:"score_format_id"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`

	Slots      []Slot      `json:"slots,omitempty" db:"-"`
	Encounters []Encounter `json:"encounters,omitempty" db:"-"`
}

// Slot is a numbered position in a phase. UnitID is nil while the slot is empty.
type Slot struct {
	ID           int  `json:"id" db:"id"`
	PhaseID      int  `json:"phase_id" db:"phase_id"`
	SlotNumber   int  `json:"slot_number" db:"slot_number"`
	PoolNumber   *int `json:"pool_number,omitempty" db:"pool_number"`
	UnitID       *int `json:"unit_id,omitempty" db:"unit_id"`
	AutoAdvanced bool `json:"auto_advanced" db:"auto_advanced"`
}

// AdvancementRule moves the finisher at SourcePosition of one phase into a slot of a later phase.
type AdvancementRule struct {
	ID               int    `json:"id" db:"id"`
	DivisionID       int    `json:"division_id" db:"division_id"`
	SourcePhaseID    int    `json:"source_phase_id" db:"source_phase_id"`
	SourcePosition   int    `json:"source_position" db:"source_position"`
	SourceLabel      string `json:"source_label" db:"source_label"`
	TargetPhaseID    int    `json:"target_phase_id" db:"target_phase_id"`
	TargetSlotNumber int    `json:"target_slot" db:"target_slot_number"`
}

// Encounter pairs two slots of a phase. Slot B is nil only for phases that never pair (award).
type Encounter struct {
	ID              int     `json:"id" db:"id"`
	PhaseID         int     `json:"phase_id" db:"phase_id"`
	EncounterNumber int     `json:"encounter_number" db:"encounter_number"`
	RoundNumber     int     `json:"round" db:"round_number"`
	PoolNumber      *int    `json:"pool_number,omitempty" db:"pool_number"`
	SlotA           int     `json:"slot_a" db:"slot_a_number"`
	SlotB           int     `json:"slot_b" db:"slot_b_number"`
	WinnerPosition  *int    `json:"winner_position,omitempty" db:"winner_position"`
	LoserPosition   *int    `json:"loser_position,omitempty" db:"loser_position"`
	Label           string  `json:"label" db:"label"`
	IsBye           bool    `json:"is_bye" db:"is_bye"`
	ByeUnitID       *int    `json:"bye_unit_id,omitempty" db:"bye_unit_id"`
	BestOf          int     `json:"best_of" db:"best_of"`
	ScoreFormatID   *int    `json:"score_format_id,omitempty" db:"score_format_id"`
	Notes           *string `json:"notes,omitempty" db:"notes"`
}
