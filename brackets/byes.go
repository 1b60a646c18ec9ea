package brackets

import (
	"sort"

	"github.com/LegalDragon/pickleball-community/models"
)

type SlotState int

const (
	SlotOpen   SlotState = iota // will be filled later (draw, result or manual assignment)
	SlotFilled                  // holds a unit
	SlotVoid                    // will never be filled
)

type SlotKey struct {
	Phase int `json:"phase"`
	Slot  int `json:"slot"`
}

// Layout is the slot graph of a division schedule, keyed by phase order.
type Layout struct {
	EntryPhase int               `json:"entry_phase"`
	Entrants   int               `json:"entrants"`
	Phases     []LayoutPhase     `json:"phases"`
	Rules      []AdvancementRule `json:"rules"`
}

type LayoutPhase struct {
	Order      int              `json:"order"`
	Type       models.PhaseType `json:"type"`
	EntrySlots int              `json:"entry_slots"`
	Encounters []EncounterSpec  `json:"encounters"`
}

// Bye is an encounter where one slot holds a unit and the other is void.
type Bye struct {
	Phase       int `json:"phase"`
	Encounter   int `json:"encounter"`
	UnitID      int `json:"unit_id"`
	FilledSlot  int `json:"filled_slot"`
	EmptySlot   int `json:"empty_slot"`
	TargetPhase int `json:"target_phase,omitempty"`
	TargetSlot  int `json:"target_slot,omitempty"`
}

type SlotAssignment struct {
	SlotKey
	UnitID int `json:"unit_id"`
}

type ByeResolution struct {
	Byes     []Bye            `json:"byes"`
	Advanced []SlotAssignment `json:"advanced"`
	Void     []SlotKey        `json:"void"`
}

type slotValue struct {
	state SlotState
	unit  int
}

// ResolveByes computes byes and automatic advancements for the given slot
// assignments. filled holds units placed by the draw or by hand; automatic
// advancements are derived, never read back, so the result is idempotent.
func ResolveByes(layout Layout, filled map[SlotKey]int) ByeResolution {
	phases := make([]LayoutPhase, len(layout.Phases))
	copy(phases, layout.Phases)
	sort.Slice(phases, func(i, j int) bool { return phases[i].Order < phases[j].Order })

	target := make(map[SlotKey]SlotKey, len(layout.Rules))
	fed := make(map[SlotKey]bool, len(layout.Rules))
	for _, r := range layout.Rules {
		to := SlotKey{r.TargetPhase, r.TargetSlot}
		target[SlotKey{r.SourcePhase, r.SourcePosition}] = to
		fed[to] = true
	}

	states := make(map[SlotKey]slotValue)
	var res ByeResolution

	propagate := func(from SlotKey, v slotValue) (SlotKey, bool) {
		to, ok := target[from]
		if !ok {
			return SlotKey{}, false
		}
		if _, manual := filled[to]; manual {
			return to, true
		}
		states[to] = v
		if v.state == SlotFilled {
			res.Advanced = append(res.Advanced, SlotAssignment{SlotKey: to, UnitID: v.unit})
		}
		return to, true
	}

	for _, p := range phases {
		for s := 1; s <= p.EntrySlots; s++ {
			key := SlotKey{p.Order, s}
			if unit, ok := filled[key]; ok {
				states[key] = slotValue{state: SlotFilled, unit: unit}
				continue
			}
			if _, ok := states[key]; ok {
				continue
			}
			switch {
			case p.Order == layout.EntryPhase && s <= layout.Entrants:
				states[key] = slotValue{state: SlotOpen}
			case p.Order != layout.EntryPhase && fed[key]:
				states[key] = slotValue{state: SlotOpen}
			default:
				states[key] = slotValue{state: SlotVoid}
			}
		}

		if p.Type == models.PhaseTypeDraw {
			for s := 1; s <= p.EntrySlots; s++ {
				v := states[SlotKey{p.Order, s}]
				if v.state != SlotOpen {
					propagate(SlotKey{p.Order, s}, v)
				}
			}
			continue
		}

		for _, e := range p.Encounters {
			if e.WinnerPosition == 0 {
				continue
			}
			a := states[SlotKey{p.Order, e.SlotA}]
			b := states[SlotKey{p.Order, e.SlotB}]
			winner := SlotKey{p.Order, e.WinnerPosition}
			loser := SlotKey{p.Order, e.LoserPosition}

			switch {
			case a.state == SlotFilled && b.state == SlotVoid, a.state == SlotVoid && b.state == SlotFilled:
				bye := Bye{Phase: p.Order, Encounter: e.Number, FilledSlot: e.SlotA, EmptySlot: e.SlotB, UnitID: a.unit}
				if b.state == SlotFilled {
					bye.FilledSlot, bye.EmptySlot, bye.UnitID = e.SlotB, e.SlotA, b.unit
				}
				if to, ok := propagate(winner, slotValue{state: SlotFilled, unit: bye.UnitID}); ok {
					bye.TargetPhase, bye.TargetSlot = to.Phase, to.Slot
				}
				if e.LoserPosition > 0 {
					propagate(loser, slotValue{state: SlotVoid})
				}
				res.Byes = append(res.Byes, bye)
			case a.state == SlotVoid && b.state == SlotVoid:
				propagate(winner, slotValue{state: SlotVoid})
				if e.LoserPosition > 0 {
					propagate(loser, slotValue{state: SlotVoid})
				}
			}
		}
	}

	for key, v := range states {
		if v.state == SlotVoid {
			res.Void = append(res.Void, key)
		}
	}
	sort.Slice(res.Void, func(i, j int) bool {
		if res.Void[i].Phase != res.Void[j].Phase {
			return res.Void[i].Phase < res.Void[j].Phase
		}
		return res.Void[i].Slot < res.Void[j].Slot
	})
	return res
}

// ByesInPhase filters a resolution down to one phase.
func (r ByeResolution) ByesInPhase(order int) []Bye {
	var out []Bye
	for _, b := range r.Byes {
		if b.Phase == order {
			out = append(out, b)
		}
	}
	return out
}
