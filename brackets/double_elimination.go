package brackets

import (
	"fmt"

	"github.com/LegalDragon/pickleball-community/models"
)

// expandDoubleElimination lays out winners rounds, then losers rounds, then
// the grand final. With size = 2^k there are k winners rounds, 2k-2 losers
// rounds and 2*size-2 encounters in total. No bracket reset is scheduled.
//
// Losers round 1 takes the losers of winners round 1. Even losers rounds
// drop in the losers of the next winners round (in reverse order to delay
// rematches); odd losers rounds pair the survivors.
func expandDoubleElimination(def BracketPhase, order, incoming int) ([]PhaseSpec, []AdvancementRule, error) {
	if def.Advance > 0 || def.Consolation {
		return nil, nil, fmt.Errorf("%w: double elimination supports neither advance nor consolation", ErrInvalidStructure)
	}
	if incoming < 3 {
		return nil, nil, fmt.Errorf("%w: double elimination needs at least 3 entrants, got %d", ErrInvalidStructure, incoming)
	}

	size := nextPowerOfTwo(incoming)
	k := log2(size)
	losersRounds := 2*k - 2

	wbOrder := func(r int) int { return order + r - 1 }
	lbOrder := func(r int) int { return order + k + r - 1 }
	gfOrder := order + k + losersRounds

	var (
		specs []PhaseSpec
		rules []AdvancementRule
	)
	rule := func(src, pos int, label string, dst, slot int) {
		rules = append(rules, AdvancementRule{
			SourcePhase:    src,
			SourcePosition: pos,
			SourceLabel:    label,
			TargetPhase:    dst,
			TargetSlot:     slot,
		})
	}
	newSpec := func(ord int, label, side string, round, entrants int) PhaseSpec {
		return PhaseSpec{
			Order:         ord,
			Name:          bracketPhaseName(def.Name, label),
			Type:          models.PhaseTypeDoubleElimination,
			IncomingSlots: entrants,
			BracketRound:  round,
			BracketSide:   side,
			Rounds:        1,
			BestOf:        def.BestOf,
			ScoreFormatID: def.ScoreFormatID,
		}
	}

	// winners bracket
	entrants := size
	for r := 1; r <= k; r++ {
		encounters := entrants / 2
		spec := newSpec(wbOrder(r), fmt.Sprintf("Winners Round %d", r), SideWinners, r, entrants)
		if r == 1 {
			spec.Byes = size - incoming
		}
		seeds := seedOrder(size)
		for j := 1; j <= encounters; j++ {
			a, b := 2*j-1, 2*j
			if r == 1 {
				a, b = seeds[2*j-2], seeds[2*j-1]
			}
			spec.Encounters = append(spec.Encounters, EncounterSpec{
				Number:         j,
				Round:          r,
				SlotA:          a,
				SlotB:          b,
				WinnerPosition: j,
				LoserPosition:  encounters + j,
				Label:          fmt.Sprintf("W%d-%d", r, j),
			})
			spec.ExitLabels = append(spec.ExitLabels, fmt.Sprintf("W%d-%d winner", r, j))
		}
		for j := 1; j <= encounters; j++ {
			spec.ExitLabels = append(spec.ExitLabels, fmt.Sprintf("W%d-%d loser", r, j))
		}
		spec.ExitingSlots = 2 * encounters

		for j := 1; j <= encounters; j++ {
			if r < k {
				rule(spec.Order, j, spec.ExitLabels[j-1], wbOrder(r+1), j)
			} else {
				rule(spec.Order, j, spec.ExitLabels[j-1], gfOrder, 1)
			}

			loserPos := encounters + j
			switch {
			case r == 1:
				rule(spec.Order, loserPos, spec.ExitLabels[loserPos-1], lbOrder(1), j)
			default:
				// losers of winners round r drop into losers round 2(r-1)
				rule(spec.Order, loserPos, spec.ExitLabels[loserPos-1], lbOrder(2*(r-1)), encounters+(encounters-j+1))
			}
		}
		specs = append(specs, spec)
		entrants = encounters
	}

	// losers bracket
	for lr := 1; lr <= losersRounds; lr++ {
		var encounters int
		switch {
		case lr == 1:
			encounters = size / 4
		case lr%2 == 0:
			encounters = size >> (lr/2 + 1)
		default:
			encounters = size >> ((lr-1)/2 + 2)
		}

		spec := newSpec(lbOrder(lr), fmt.Sprintf("Losers Round %d", lr), SideLosers, lr, 2*encounters)
		for j := 1; j <= encounters; j++ {
			a, b := 2*j-1, 2*j
			if lr%2 == 0 {
				a, b = j, encounters+j
			}
			spec.Encounters = append(spec.Encounters, EncounterSpec{
				Number:         j,
				Round:          lr,
				SlotA:          a,
				SlotB:          b,
				WinnerPosition: j,
				Label:          fmt.Sprintf("L%d-%d", lr, j),
			})
			spec.ExitLabels = append(spec.ExitLabels, fmt.Sprintf("L%d-%d winner", lr, j))
			if lr < losersRounds {
				rule(spec.Order, j, spec.ExitLabels[j-1], lbOrder(lr+1), j)
			} else {
				rule(spec.Order, j, spec.ExitLabels[j-1], gfOrder, 2)
			}
		}
		spec.ExitingSlots = encounters
		specs = append(specs, spec)
	}

	gf := newSpec(gfOrder, "Grand Final", SideFinal, 1, 2)
	gf.Encounters = []EncounterSpec{{
		Number:         1,
		Round:          1,
		SlotA:          1,
		SlotB:          2,
		WinnerPosition: 1,
		LoserPosition:  2,
		Label:          "Grand Final",
	}}
	gf.ExitLabels = []string{"Champion", "Runner-up"}
	gf.ExitingSlots = 2
	specs = append(specs, gf)

	return specs, rules, nil
}
