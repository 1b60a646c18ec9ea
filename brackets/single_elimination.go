package brackets

import (
	"fmt"

	"github.com/LegalDragon/pickleball-community/models"
)

const (
	SideWinners = "winners"
	SideLosers  = "losers"
	SideFinal   = "final"
)

// seedOrder returns the standard seeded line-up for a bracket of size entries:
// seedOrder(8) = [1 8 4 5 2 7 3 6]. Adjacent entries meet in round one, so when
// seeds n+1..size are empty their opponents are seeds 1..size-n.
func seedOrder(size int) []int {
	order := []int{1}
	for len(order) < size {
		next := make([]int, 0, len(order)*2)
		total := len(order)*2 + 1
		for _, seed := range order {
			next = append(next, seed, total-seed)
		}
		order = next
	}
	return order
}

func roundLabel(entrants int) string {
	switch entrants {
	case 2:
		return "Final"
	case 4:
		return "Semifinal"
	case 8:
		return "Quarterfinal"
	default:
		return fmt.Sprintf("Round of %d", entrants)
	}
}

func bracketPhaseName(base, label string) string {
	if base == "" {
		return label
	}
	return base + " - " + label
}

// expandSingleElimination produces one PhaseSpec per round. Winners of
// encounter j in round r move to slot j of round r+1.
func expandSingleElimination(def BracketPhase, order, incoming int) ([]PhaseSpec, []AdvancementRule, error) {
	if incoming < 2 {
		return nil, nil, fmt.Errorf("%w: bracket needs at least 2 entrants, got %d", ErrInvalidStructure, incoming)
	}
	size := nextPowerOfTwo(incoming)
	totalRounds := log2(size)

	playRounds := totalRounds
	if def.Advance > 0 {
		if !isPowerOfTwo(def.Advance) || def.Advance < 2 || def.Advance > size/2 {
			return nil, nil, fmt.Errorf("%w: bracket advance must be a power of two between 2 and %d, got %d", ErrInvalidStructure, size/2, def.Advance)
		}
		if def.Consolation {
			return nil, nil, fmt.Errorf("%w: consolation requires a bracket played to a champion", ErrInvalidStructure)
		}
		playRounds = totalRounds - log2(def.Advance)
	}
	if def.Consolation && size < 4 {
		return nil, nil, fmt.Errorf("%w: consolation requires at least 3 entrants", ErrInvalidStructure)
	}

	var (
		specs []PhaseSpec
		rules []AdvancementRule
	)
	entrants := size
	for r := 1; r <= playRounds; r++ {
		encounters := entrants / 2
		isFinal := def.Advance == 0 && r == totalRounds
		isSemi := def.Advance == 0 && r == totalRounds-1

		spec := PhaseSpec{
			Order:         order + r - 1,
			Name:          bracketPhaseName(def.Name, roundLabel(entrants)),
			Type:          models.PhaseTypeSingleElimination,
			IncomingSlots: entrants,
			BracketRound:  r,
			Rounds:        1,
			BestOf:        def.BestOf,
			ScoreFormatID: def.ScoreFormatID,
		}
		if r == 1 {
			spec.Byes = size - incoming
		}

		var pairs [][2]int
		if r == 1 {
			seeds := seedOrder(size)
			for j := 0; j < encounters; j++ {
				pairs = append(pairs, [2]int{seeds[2*j], seeds[2*j+1]})
			}
		} else {
			for j := 1; j <= encounters; j++ {
				pairs = append(pairs, [2]int{2*j - 1, 2 * j})
			}
		}

		for j, p := range pairs {
			enc := EncounterSpec{
				Number:         j + 1,
				Round:          r,
				SlotA:          p[0],
				SlotB:          p[1],
				WinnerPosition: j + 1,
				Label:          fmt.Sprintf("%s %d", roundLabel(entrants), j+1),
			}
			if isSemi && def.Consolation {
				enc.LoserPosition = encounters + j + 1
			}
			if isFinal {
				enc.Label = "Final"
				enc.LoserPosition = 2
			}
			spec.Encounters = append(spec.Encounters, enc)
		}

		switch {
		case isFinal && def.Consolation:
			spec.IncomingSlots = 4
			spec.IncludeConsolation = true
			spec.Encounters = append(spec.Encounters, EncounterSpec{
				Number:         2,
				Round:          r,
				SlotA:          3,
				SlotB:          4,
				WinnerPosition: 3,
				LoserPosition:  4,
				Label:          "Third Place",
			})
			spec.ExitLabels = []string{"Champion", "Runner-up", "Third place", "Fourth place"}
		case isFinal:
			spec.ExitLabels = []string{"Champion", "Runner-up"}
		default:
			for j := range pairs {
				spec.ExitLabels = append(spec.ExitLabels, fmt.Sprintf("Match %d winner", j+1))
			}
			if isSemi && def.Consolation {
				for j := range pairs {
					spec.ExitLabels = append(spec.ExitLabels, fmt.Sprintf("Match %d loser", j+1))
				}
			}
		}
		spec.ExitingSlots = len(spec.ExitLabels)

		if r < playRounds {
			for pos := 1; pos <= spec.ExitingSlots; pos++ {
				rules = append(rules, AdvancementRule{
					SourcePhase:    spec.Order,
					SourcePosition: pos,
					SourceLabel:    spec.ExitLabels[pos-1],
					TargetPhase:    spec.Order + 1,
					TargetSlot:     pos,
				})
			}
		}

		specs = append(specs, spec)
		entrants = encounters
	}
	return specs, rules, nil
}
