package brackets

import (
	"fmt"

	"github.com/LegalDragon/pickleball-community/models"
)

// Resolve expands a template into concrete phases for n units. It is pure:
// the same template and n always yield the same resolution.
func Resolve(template *models.PhaseTemplate, n int) (*Resolution, error) {
	if n < 2 || !template.SupportsUnits(n) {
		return nil, fmt.Errorf("%w: %d units, template %q accepts %d..%d",
			ErrUnitCountOutOfRange, n, template.Name, template.MinUnits, template.MaxUnits)
	}
	structure, err := ParseStructure(template.StructureJSON)
	if err != nil {
		return nil, err
	}
	return ResolveStructure(structure, n)
}

// expandedDef tracks where a template phase landed after expansion.
type expandedDef struct {
	entry    int // order of the first PhaseSpec
	exit     int // order of the last PhaseSpec
	incoming int
	exits    int
	labels   []string
}

// ResolveStructure expands an already parsed structure for n units.
func ResolveStructure(s *Structure, n int) (*Resolution, error) {
	if n < 2 {
		return nil, fmt.Errorf("%w: at least 2 units are required, got %d", ErrUnitCountOutOfRange, n)
	}
	if len(s.Phases) == 0 {
		return nil, fmt.Errorf("%w: structure has no phases", ErrInvalidStructure)
	}
	if err := checkRuleBounds(s); err != nil {
		return nil, err
	}

	res := &Resolution{Units: n}
	defs := make([]expandedDef, len(s.Phases))
	nextOrder := 1

	for i, def := range s.Phases {
		index := i + 1

		incoming := n
		var incomingRules []RuleDef
		if index > 1 {
			var err error
			incoming, incomingRules, err = entrantsFor(s, defs, index)
			if err != nil {
				return nil, err
			}
		}

		specs, internal, err := expandPhase(def, nextOrder, incoming)
		if err != nil {
			return nil, fmt.Errorf("phase %d: %w", index, err)
		}
		last := specs[len(specs)-1]
		defs[i] = expandedDef{
			entry:    specs[0].Order,
			exit:     last.Order,
			incoming: incoming,
			exits:    last.ExitingSlots,
			labels:   last.ExitLabels,
		}

		for _, rd := range incomingRules {
			src := defs[rd.FromPhase-1]
			if rd.FromPosition > src.exits {
				return nil, fmt.Errorf("%w: phase %d has %d exit positions, rule uses %d",
					ErrInvalidStructure, rd.FromPhase, src.exits, rd.FromPosition)
			}
			res.Rules = append(res.Rules, AdvancementRule{
				SourcePhase:    src.exit,
				SourcePosition: rd.FromPosition,
				SourceLabel:    src.labels[rd.FromPosition-1],
				TargetPhase:    specs[0].Order,
				TargetSlot:     rd.ToSlot,
			})
		}

		res.Phases = append(res.Phases, specs...)
		res.Rules = append(res.Rules, internal...)
		nextOrder += len(specs)
	}

	if err := checkConsistency(res); err != nil {
		return nil, err
	}
	return res, nil
}

func expandPhase(def PhaseDef, order, incoming int) ([]PhaseSpec, []AdvancementRule, error) {
	switch d := def.(type) {
	case RoundRobinPhase:
		specs, err := expandRoundRobin(d, order, incoming)
		return specs, nil, err
	case PoolsPhase:
		specs, err := expandPools(d, order, incoming)
		return specs, nil, err
	case BracketPhase:
		if d.Double {
			return expandDoubleElimination(d, order, incoming)
		}
		return expandSingleElimination(d, order, incoming)
	case AwardPhase:
		places := d.Places
		if places == 0 {
			places = incoming
		}
		if places != incoming {
			return nil, nil, fmt.Errorf("%w: award lists %d places but receives %d units", ErrInvalidStructure, places, incoming)
		}
		return []PhaseSpec{{
			Order:         order,
			Name:          phaseName(d.Name, "Awards"),
			Type:          models.PhaseTypeAward,
			IncomingSlots: places,
		}}, nil, nil
	case DrawPhase:
		spec := PhaseSpec{
			Order:         order,
			Name:          phaseName(d.Name, "Draw"),
			Type:          models.PhaseTypeDraw,
			IncomingSlots: incoming,
			ExitingSlots:  incoming,
		}
		for pos := 1; pos <= incoming; pos++ {
			spec.ExitLabels = append(spec.ExitLabels, fmt.Sprintf("Seed %d", pos))
		}
		return []PhaseSpec{spec}, nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: unsupported phase %T", ErrInvalidStructure, def)
	}
}

func checkRuleBounds(s *Structure) error {
	for _, rd := range s.Advancement {
		if rd.FromPhase < 1 || rd.ToPhase > len(s.Phases) || rd.FromPhase >= rd.ToPhase {
			return fmt.Errorf("%w: rule %d->%d must point forward between existing phases",
				ErrInvalidStructure, rd.FromPhase, rd.ToPhase)
		}
		if rd.FromPosition < 1 || rd.ToSlot < 1 {
			return fmt.Errorf("%w: rule positions and slots are 1-based", ErrInvalidStructure)
		}
	}
	return nil
}

// entrantsFor returns how many units feed template phase index and the rules
// that do so. Without explicit rules the previous phase feeds it position i -> slot i.
func entrantsFor(s *Structure, defs []expandedDef, index int) (int, []RuleDef, error) {
	var explicit []RuleDef
	for _, rd := range s.Advancement {
		if rd.ToPhase == index {
			explicit = append(explicit, rd)
		}
	}

	if len(explicit) > 0 {
		seen := make(map[int]bool, len(explicit))
		for _, rd := range explicit {
			if rd.ToSlot > len(explicit) || seen[rd.ToSlot] {
				return 0, nil, fmt.Errorf("%w: phase %d entry slots must be fed exactly once and contiguously",
					ErrInvalidStructure, index)
			}
			seen[rd.ToSlot] = true
		}
		return len(explicit), explicit, nil
	}

	prev := index - 1
	for _, rd := range s.Advancement {
		if rd.FromPhase == prev {
			return 0, nil, fmt.Errorf("%w: phase %d has no entrants", ErrInvalidStructure, index)
		}
	}
	src := defs[prev-1]
	if src.exits == 0 {
		return 0, nil, fmt.Errorf("%w: phase %d has no exit positions to feed phase %d", ErrInvalidStructure, prev, index)
	}
	rules := make([]RuleDef, src.exits)
	for pos := 1; pos <= src.exits; pos++ {
		rules[pos-1] = RuleDef{FromPhase: prev, FromPosition: pos, ToPhase: index, ToSlot: pos}
	}
	return src.exits, rules, nil
}

type slotRef struct{ phase, slot int }

// checkConsistency verifies that every non-final phase sends each exit
// position exactly once and that every fed slot is fed by one rule only.
func checkConsistency(res *Resolution) error {
	byOrder := make(map[int]*PhaseSpec, len(res.Phases))
	for i := range res.Phases {
		byOrder[res.Phases[i].Order] = &res.Phases[i]
	}
	lastOrder := res.Phases[len(res.Phases)-1].Order

	outgoing := make(map[slotRef]bool)
	fed := make(map[slotRef]bool)
	for _, r := range res.Rules {
		src, dst := byOrder[r.SourcePhase], byOrder[r.TargetPhase]
		if src == nil || dst == nil || r.SourcePhase >= r.TargetPhase {
			return fmt.Errorf("%w: rule %d#%d -> %d/%d references an unknown phase",
				ErrInvalidStructure, r.SourcePhase, r.SourcePosition, r.TargetPhase, r.TargetSlot)
		}
		if r.SourcePosition < 1 || r.SourcePosition > src.ExitingSlots {
			return fmt.Errorf("%w: phase %d has no exit position %d", ErrInvalidStructure, r.SourcePhase, r.SourcePosition)
		}
		if r.TargetSlot < 1 || r.TargetSlot > dst.IncomingSlots {
			return fmt.Errorf("%w: phase %d has no slot %d", ErrInvalidStructure, r.TargetPhase, r.TargetSlot)
		}
		from := slotRef{r.SourcePhase, r.SourcePosition}
		to := slotRef{r.TargetPhase, r.TargetSlot}
		if outgoing[from] {
			return fmt.Errorf("%w: phase %d position %d advances twice", ErrInvalidStructure, r.SourcePhase, r.SourcePosition)
		}
		if fed[to] {
			return fmt.Errorf("%w: phase %d slot %d is fed twice", ErrInvalidStructure, r.TargetPhase, r.TargetSlot)
		}
		outgoing[from] = true
		fed[to] = true
	}

	for _, p := range res.Phases {
		if p.Order == lastOrder {
			continue
		}
		for pos := 1; pos <= p.ExitingSlots; pos++ {
			if !outgoing[slotRef{p.Order, pos}] {
				return fmt.Errorf("%w: phase %d position %d does not advance anywhere", ErrInvalidStructure, p.Order, pos)
			}
		}
	}
	return nil
}
