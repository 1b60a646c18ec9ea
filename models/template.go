package models

import "time"

// TemplateCategory классифицирует шаблоны по основной структуре турнира.
type TemplateCategory string

const (
	CategorySingleElimination TemplateCategory = "SingleElimination"
	CategoryDoubleElimination TemplateCategory = "DoubleElimination"
	CategoryPools             TemplateCategory = "Pools"
	CategoryRoundRobin        TemplateCategory = "RoundRobin"
	CategoryAward             TemplateCategory = "Award"
	CategoryDraw              TemplateCategory = "Draw"
)

func (c TemplateCategory) IsValid() bool {
	switch c {
	case CategorySingleElimination, CategoryDoubleElimination, CategoryPools,
		CategoryRoundRobin, CategoryAward, CategoryDraw:
		return true
	}
	return false
}

// PhaseTemplate is a reusable tournament structure. System templates are
// seeded at startup and never modified through the API.
type PhaseTemplate struct {
	ID            int              `json:"id" db:"id"`
	Name          string           `json:"name" db:"name"`
	Category      TemplateCategory `json:"category" db:"category"`
	MinUnits      int              `json:"min_units" db:"min_units"`
	MaxUnits      int              `json:"max_units" db:"max_units"`
	DefaultUnits  int              `json:"default_units" db:"default_units"`
	StructureJSON string           `json:"-" db:"structure_json"` // Raw JSON string from DB
	DiagramText   *string          `json:"diagram_text,omitempty" db:"diagram_text"`
	IsSystem      bool             `json:"is_system" db:"is_system"`
	CreatedBy     *int             `json:"created_by,omitempty" db:"created_by"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

// SupportsUnits reports whether n is inside the template's unit range.
func (t *PhaseTemplate) SupportsUnits(n int) bool {
	return n >= t.MinUnits && n <= t.MaxUnits
}
