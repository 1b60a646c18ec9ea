package brackets

import (
	"fmt"

	"github.com/LegalDragon/pickleball-community/models"
)

type pairing struct {
	round int
	a, b  int
}

// roundRobinPairings schedules every pair of slots once per leg using the
// circle method, so each round has no slot playing twice. Second legs swap sides.
func roundRobinPairings(slots []int, legs int) ([]pairing, int) {
	ring := make([]int, len(slots))
	copy(ring, slots)
	if len(ring)%2 == 1 {
		ring = append(ring, 0) // 0 marks the resting slot
	}
	n := len(ring)
	roundsPerLeg := n - 1

	pairings := make([]pairing, 0, legs*len(slots)*(len(slots)-1)/2)
	for leg := 0; leg < legs; leg++ {
		r := make([]int, n)
		copy(r, ring)
		for round := 1; round <= roundsPerLeg; round++ {
			for i := 0; i < n/2; i++ {
				a, b := r[i], r[n-1-i]
				if a == 0 || b == 0 {
					continue
				}
				if a > b {
					a, b = b, a
				}
				if leg%2 == 1 {
					a, b = b, a
				}
				pairings = append(pairings, pairing{round: leg*roundsPerLeg + round, a: a, b: b})
			}
			// keep r[0] fixed, rotate the rest clockwise
			last := r[n-1]
			copy(r[2:], r[1:n-1])
			r[1] = last
		}
	}
	return pairings, legs * roundsPerLeg
}

func normalizeLegs(legs int) (int, error) {
	switch legs {
	case 0, 1:
		return 1, nil
	case 2:
		return 2, nil
	default:
		return 0, fmt.Errorf("%w: legs must be 1 or 2, got %d", ErrInvalidStructure, legs)
	}
}

func expandRoundRobin(def RoundRobinPhase, order, incoming int) ([]PhaseSpec, error) {
	if incoming < 2 {
		return nil, fmt.Errorf("%w: round robin needs at least 2 entrants, got %d", ErrInvalidStructure, incoming)
	}
	legs, err := normalizeLegs(def.Legs)
	if err != nil {
		return nil, err
	}
	advance := def.Advance
	if advance == 0 {
		advance = incoming
	}
	if advance < 0 || advance > incoming {
		return nil, fmt.Errorf("%w: round robin cannot advance %d of %d", ErrInvalidStructure, advance, incoming)
	}

	slots := make([]int, incoming)
	for i := range slots {
		slots[i] = i + 1
	}
	pairings, rounds := roundRobinPairings(slots, legs)

	spec := PhaseSpec{
		Order:         order,
		Name:          phaseName(def.Name, "Round Robin"),
		Type:          models.PhaseTypeRoundRobin,
		IncomingSlots: incoming,
		ExitingSlots:  advance,
		Rounds:        rounds,
		BestOf:        def.BestOf,
		ScoreFormatID: def.ScoreFormatID,
	}
	for i, p := range pairings {
		spec.Encounters = append(spec.Encounters, EncounterSpec{
			Number: i + 1,
			Round:  p.round,
			SlotA:  p.a,
			SlotB:  p.b,
			Label:  fmt.Sprintf("R%d: Slot %d vs Slot %d", p.round, p.a, p.b),
		})
	}
	for pos := 1; pos <= advance; pos++ {
		spec.ExitLabels = append(spec.ExitLabels, fmt.Sprintf("#%d", pos))
	}
	return []PhaseSpec{spec}, nil
}

// poolSizes splits n into near-equal pools, larger pools first.
func poolSizes(n, pools int) []int {
	sizes := make([]int, pools)
	base, extra := n/pools, n%pools
	for i := range sizes {
		sizes[i] = base
		if i < extra {
			sizes[i]++
		}
	}
	return sizes
}

func poolLetter(pool int) string {
	if pool <= 26 {
		return string(rune('A' + pool - 1))
	}
	return fmt.Sprintf("%d", pool)
}

func expandPools(def PoolsPhase, order, incoming int) ([]PhaseSpec, error) {
	if def.Pools < 1 {
		return nil, fmt.Errorf("%w: pools phase needs at least one pool", ErrInvalidStructure)
	}
	if incoming < 2*def.Pools {
		return nil, fmt.Errorf("%w: %d entrants cannot fill %d pools of at least 2", ErrInvalidStructure, incoming, def.Pools)
	}
	legs, err := normalizeLegs(def.Legs)
	if err != nil {
		return nil, err
	}

	sizes := poolSizes(incoming, def.Pools)
	smallest := sizes[len(sizes)-1]
	if def.AdvancePerPool < 0 || def.AdvancePerPool > smallest {
		return nil, fmt.Errorf("%w: cannot advance %d per pool when the smallest pool has %d", ErrInvalidStructure, def.AdvancePerPool, smallest)
	}

	spec := PhaseSpec{
		Order:         order,
		Name:          phaseName(def.Name, "Pool Play"),
		Type:          models.PhaseTypePools,
		IncomingSlots: incoming,
		PoolCount:     def.Pools,
		PoolSizes:     sizes,
		BestOf:        def.BestOf,
		ScoreFormatID: def.ScoreFormatID,
	}

	first := 1
	number := 0
	for pool, size := range sizes {
		slots := make([]int, size)
		for i := range slots {
			slots[i] = first + i
		}
		first += size

		pairings, rounds := roundRobinPairings(slots, legs)
		if rounds > spec.Rounds {
			spec.Rounds = rounds
		}
		for _, p := range pairings {
			number++
			spec.Encounters = append(spec.Encounters, EncounterSpec{
				Number: number,
				Round:  p.round,
				Pool:   pool + 1,
				SlotA:  p.a,
				SlotB:  p.b,
				Label:  fmt.Sprintf("Pool %s R%d", poolLetter(pool+1), p.round),
			})
		}
	}

	// exit positions are rank-major: every pool winner, then every runner-up, ...
	maxRank := def.AdvancePerPool
	if maxRank == 0 {
		maxRank = sizes[0]
	}
	for rank := 1; rank <= maxRank; rank++ {
		for pool, size := range sizes {
			if rank > size {
				continue
			}
			spec.ExitLabels = append(spec.ExitLabels, fmt.Sprintf("Pool %s #%d", poolLetter(pool+1), rank))
		}
	}
	spec.ExitingSlots = len(spec.ExitLabels)
	return []PhaseSpec{spec}, nil
}

func phaseName(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}
