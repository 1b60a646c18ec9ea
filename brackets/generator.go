package brackets

import "github.com/LegalDragon/pickleball-community/models"

// PhaseSpec is one resolved phase. It lives only between resolution and persistence.
type PhaseSpec struct {
	Order              int              `json:"order"`
	Name               string           `json:"name"`
	Type               models.PhaseType `json:"type"`
	IncomingSlots      int              `json:"incoming_slots"`
	ExitingSlots       int              `json:"exiting_slots"`
	PoolCount          int              `json:"pool_count"`
	PoolSizes          []int            `json:"pool_sizes,omitempty"`
	IncludeConsolation bool             `json:"include_consolation"`
	BracketRound       int              `json:"bracket_round,omitempty"`
	BracketSide        string           `json:"bracket_side,omitempty"`
	Byes               int              `json:"byes"`
	Rounds             int              `json:"rounds"`
	BestOf             *int             `json:"best_of,omitempty"`
	ScoreFormatID      *int             `json:"score_format_id,omitempty"`
	ExitLabels         []string         `json:"exit_labels,omitempty"`
	Encounters         []EncounterSpec  `json:"encounters"`
}

func (p *PhaseSpec) EncounterCount() int { return len(p.Encounters) }

// PoolOf returns the 1-based pool holding slot, or 0 when the phase has no pools.
func (p *PhaseSpec) PoolOf(slot int) int {
	upper := 0
	for i, size := range p.PoolSizes {
		upper += size
		if slot <= upper {
			return i + 1
		}
	}
	return 0
}

// EncounterSpec pairs two entry slots. WinnerPosition/LoserPosition are exit
// positions of the phase (0 when the outcome does not leave the phase directly).
type EncounterSpec struct {
	Number         int    `json:"number"`
	Round          int    `json:"round"`
	Pool           int    `json:"pool,omitempty"`
	SlotA          int    `json:"slot_a"`
	SlotB          int    `json:"slot_b"`
	WinnerPosition int    `json:"winner_position,omitempty"`
	LoserPosition  int    `json:"loser_position,omitempty"`
	Label          string `json:"label"`
}

// AdvancementRule wires an exit position of one phase to an entry slot of a later phase.
// Phases are referenced by their Order.
type AdvancementRule struct {
	SourcePhase    int    `json:"source_phase"`
	SourcePosition int    `json:"source_position"`
	SourceLabel    string `json:"source_label"`
	TargetPhase    int    `json:"target_phase"`
	TargetSlot     int    `json:"target_slot"`
}

// Resolution is the output of Resolve for one (template, unit count) pair.
type Resolution struct {
	Units  int               `json:"units"`
	Phases []PhaseSpec       `json:"phases"`
	Rules  []AdvancementRule `json:"advancement_rules"`
}

func (r *Resolution) TotalEncounters() int {
	total := 0
	for i := range r.Phases {
		total += len(r.Phases[i].Encounters)
	}
	return total
}

func (r *Resolution) TotalRounds() int {
	total := 0
	for i := range r.Phases {
		total += r.Phases[i].Rounds
	}
	return total
}

// Phase returns the spec with the given order, or nil.
func (r *Resolution) Phase(order int) *PhaseSpec {
	for i := range r.Phases {
		if r.Phases[i].Order == order {
			return &r.Phases[i]
		}
	}
	return nil
}

// Layout reduces the resolution to what the bye resolver needs.
func (r *Resolution) Layout() Layout {
	layout := Layout{Rules: r.Rules, Entrants: r.Units}
	for _, p := range r.Phases {
		layout.Phases = append(layout.Phases, LayoutPhase{
			Order:      p.Order,
			Type:       p.Type,
			EntrySlots: p.IncomingSlots,
			Encounters: p.Encounters,
		})
	}
	if len(r.Phases) > 0 {
		layout.EntryPhase = r.Phases[0].Order
	}
	return layout
}

func nextPowerOfTwo(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}

func isPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}

func log2(n int) int {
	k := 0
	for n > 1 {
		n >>= 1
		k++
	}
	return k
}

func intPtr(v int) *int { return &v }
