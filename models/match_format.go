package models

// MatchFormat describes one match inside a team encounter (e.g. "Mixed doubles, best of 3").
type MatchFormat struct {
	ID            int    `json:"id" db:"id"`
	DivisionID    int    `json:"division_id" db:"division_id"`
	Name          string `json:"name" db:"name"`
	MaleCount     int    `json:"male_count" db:"male_count"`
	FemaleCount   int    `json:"female_count" db:"female_count"`
	AnyCount      int    `json:"any_count" db:"any_count"`
	BestOf        *int   `json:"best_of,omitempty" db:"best_of"`
	ScoreFormatID *int   `json:"score_format_id,omitempty" db:"score_format_id"`
	SortOrder     int    `json:"sort_order" db:"sort_order"`
}

// PhaseMatchFormatOverride pins game settings for one match format inside one phase.
type PhaseMatchFormatOverride struct {
	PhaseID       int  `json:"phase_id" db:"phase_id"`
	MatchFormatID int  `json:"match_format_id" db:"match_format_id"`
	BestOf        *int `json:"best_of,omitempty" db:"best_of"`
	ScoreFormatID *int `json:"score_format_id,omitempty" db:"score_format_id"`
}

// GameSettings is the resolved way an encounter (or one match of it) is played.
type GameSettings struct {
	PhaseID       int    `json:"phase_id"`
	MatchFormatID *int   `json:"match_format_id"`
	BestOf        int    `json:"best_of"`
	ScoreFormatID *int   `json:"score_format_id"`
	Source        string `json:"source"`
}
