package brackets

import (
	"errors"
	"math/rand"
	"sort"

	"github.com/trackclash/trackclash/models"
)

var (
	ErrTooFewEntrants       = errors.New("at least 2 entrants are required to build a bracket")
	ErrInvalidPairingPolicy = errors.New("unknown pairing policy")
)

// OrderEntrants produces the pairing order for round 1. "random" is a
// Fisher–Yates shuffle over a copy of the input; "seeded" sorts by seed
// rank ascending (entrants without a seed sort last, ties broken by ID so
// the order is deterministic). The rand source is injected so callers can
// fix it in tests.
func OrderEntrants(entrants []*models.Entrant, policy models.PairingPolicy, rng *rand.Rand) ([]*models.Entrant, error) {
	if len(entrants) < 2 {
		return nil, ErrTooFewEntrants
	}

	ordered := make([]*models.Entrant, len(entrants))
	copy(ordered, entrants)

	switch policy {
	case models.PairingRandom:
		rng.Shuffle(len(ordered), func(i, j int) {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		})
	case models.PairingSeeded:
		sort.SliceStable(ordered, func(i, j int) bool {
			si, sj := seedRank(ordered[i]), seedRank(ordered[j])
			if si != sj {
				return si < sj
			}
			return ordered[i].ID < ordered[j].ID
		})
	default:
		return nil, ErrInvalidPairingPolicy
	}

	return ordered, nil
}

func seedRank(e *models.Entrant) int {
	if e.Seed == nil {
		return int(^uint(0) >> 1)
	}
	return *e.Seed
}

// NextPowerOfTwo returns the smallest power of two >= n (n >= 1).
func NextPowerOfTwo(n int) int {
	size := 1
	for size < n {
		size <<= 1
	}
	return size
}

// seedPositions lays the ordered entrant indexes onto the round 1 grid so
// that consecutive slot pairs realize standard seed pairing: position 0
// meets position bracketSize-1, position 1 meets bracketSize-2, and the
// top positions land in distinct pairs. Indexes >= the real entrant count
// are ghosts and turn their pair into a bye.
func seedPositions(bracketSize int) []int {
	positions := []int{0}
	for len(positions) < bracketSize {
		grown := make([]int, 0, len(positions)*2)
		currentCount := len(positions) * 2
		for _, p := range positions {
			grown = append(grown, p, currentCount-1-p)
		}
		positions = grown
	}
	return positions
}
