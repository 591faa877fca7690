package brackets

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/trackclash/trackclash/models"
)

type SingleEliminationGenerator struct {
	rng *rand.Rand
}

// NewSingleEliminationGenerator builds a generator around the given rand
// source. The source drives the "random" pairing policy shuffle only;
// passing a fixed seed makes generation fully deterministic.
func NewSingleEliminationGenerator(rng *rand.Rand) BracketGenerator {
	return &SingleEliminationGenerator{rng: rng}
}

func (g *SingleEliminationGenerator) GetName() string {
	return "SingleElimination"
}

// GenerateBracket produces the complete matchup set for a tournament:
// round 1 fully paired (byes included) and every later round as an empty
// pending shell, all forward-linked. The result always holds exactly
// bracketSize-1 matchups ordered by (round, slot).
//
// Byes are resolved at build time: the sole entrant is recorded as winner
// with zero votes and propagated into the next round's shell. Any matchup
// that ends up with both sides known is opened as active.
func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatchup, error) {
	entrants := params.Entrants
	n := len(entrants)
	if n < 2 {
		return nil, ErrTooFewEntrants
	}

	ordered, err := OrderEntrants(entrants, params.Tournament.PairingPolicy, g.rng)
	if err != nil {
		return nil, err
	}

	bracketSize := NextPowerOfTwo(n)
	totalRounds := int(math.Ceil(math.Log2(float64(n))))

	// Arena keyed by (round, slot); O(1) lookups keep the advancement
	// wiring and bye propagation straightforward.
	type key struct{ round, slot int }
	arena := make(map[key]*BracketMatchup, bracketSize-1)

	for r := 1; r <= totalRounds; r++ {
		matchupsInRound := bracketSize >> uint(r)
		for s := 1; s <= matchupsInRound; s++ {
			m := &BracketMatchup{
				UID:         fmt.Sprintf("R%dM%d", r, s),
				Round:       r,
				SlotInRound: s,
				Status:      models.MatchupPending,
			}
			if r < totalRounds {
				nextUID := fmt.Sprintf("R%dM%d", r+1, (s+1)/2)
				m.NextUID = &nextUID
				slot := 2
				if s%2 != 0 {
					slot = 1
				}
				m.NextSlot = &slot
			}
			arena[key{r, s}] = m
		}
	}

	// Lay entrants onto the round 1 grid in standard seed pairing order.
	// Positions beyond the entrant count are ghosts; a pair with a ghost
	// becomes a bye for its real entrant. The ghost always falls on side 2,
	// so a bye matchup has exactly side 1 populated.
	positions := seedPositions(bracketSize)
	for s := 1; s <= bracketSize/2; s++ {
		m := arena[key{1, s}]
		p1, p2 := positions[2*(s-1)], positions[2*(s-1)+1]
		if p1 < n {
			id := ordered[p1].ID
			m.Entrant1ID = &id
		}
		if p2 < n {
			id := ordered[p2].ID
			m.Entrant2ID = &id
		} else {
			m.IsBye = true
		}
	}

	// Resolve byes and propagate winners forward. A single pass per round
	// is enough, but chained byes would surface as a next-round matchup
	// with one side still empty and no feeder left, so sweep round by round.
	for r := 1; r <= totalRounds; r++ {
		matchupsInRound := bracketSize >> uint(r)
		for s := 1; s <= matchupsInRound; s++ {
			m := arena[key{r, s}]
			if !m.IsBye || m.Status == models.MatchupCompleted {
				continue
			}
			m.WinnerEntrantID = m.Entrant1ID
			m.Status = models.MatchupCompleted
			if m.NextUID != nil {
				next := arena[key{r + 1, (s + 1) / 2}]
				if *m.NextSlot == 1 {
					next.Entrant1ID = m.WinnerEntrantID
				} else {
					next.Entrant2ID = m.WinnerEntrantID
				}
			}
		}
	}

	// Open every matchup that already knows both contenders: regular
	// round 1 pairs, and any later shell fed by two byes.
	result := make([]*BracketMatchup, 0, len(arena))
	for _, m := range arena {
		if m.Status == models.MatchupPending && m.BothSidesSet() {
			m.Status = models.MatchupActive
		}
		result = append(result, m)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Round != result[j].Round {
			return result[i].Round < result[j].Round
		}
		return result[i].SlotInRound < result[j].SlotInRound
	})

	if len(result) != bracketSize-1 {
		return nil, fmt.Errorf("internal error: generated %d matchups, expected %d", len(result), bracketSize-1)
	}

	return result, nil
}

// BothSidesSet reports whether both slots of the generated matchup are
// occupied.
func (m *BracketMatchup) BothSidesSet() bool {
	return m.Entrant1ID != nil && m.Entrant2ID != nil
}
