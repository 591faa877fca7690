package brackets

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackclash/trackclash/models"
	"github.com/trackclash/trackclash/utils"
)

func TestNextPowerOfTwo(t *testing.T) {
	cases := map[int]int{
		1:  1,
		2:  2,
		3:  4,
		4:  4,
		5:  8,
		8:  8,
		9:  16,
		17: 32,
	}
	for n, want := range cases {
		assert.Equal(t, want, NextPowerOfTwo(n), "n=%d", n)
	}
}

func TestSeedPositions(t *testing.T) {
	assert.Equal(t, []int{0, 1}, seedPositions(2))
	assert.Equal(t, []int{0, 3, 1, 2}, seedPositions(4))
	assert.Equal(t, []int{0, 7, 3, 4, 1, 6, 2, 5}, seedPositions(8))
}

func TestSeedPositionsIsPermutation(t *testing.T) {
	for _, size := range []int{2, 4, 8, 16, 32} {
		positions := seedPositions(size)
		require.Len(t, positions, size)

		seen := make(map[int]bool, size)
		for _, p := range positions {
			assert.GreaterOrEqual(t, p, 0)
			assert.Less(t, p, size)
			assert.False(t, seen[p], "position %d repeated for size %d", p, size)
			seen[p] = true
		}
	}
}

func TestOrderEntrantsSeeded(t *testing.T) {
	entrants := []*models.Entrant{
		{ID: 10, Seed: utils.Ptr(3)},
		{ID: 11},
		{ID: 12, Seed: utils.Ptr(1)},
		{ID: 13, Seed: utils.Ptr(2)},
		{ID: 14},
	}

	ordered, err := OrderEntrants(entrants, models.PairingSeeded, rand.New(rand.NewSource(1)))
	require.NoError(t, err)

	ids := make([]int, len(ordered))
	for i, e := range ordered {
		ids[i] = e.ID
	}
	// Seeds 1, 2, 3 first, then the unseeded pair by id.
	assert.Equal(t, []int{12, 13, 10, 11, 14}, ids)

	// The input slice is left untouched.
	assert.Equal(t, 10, entrants[0].ID)
}

func TestOrderEntrantsRandomIsDeterministicPermutation(t *testing.T) {
	entrants := make([]*models.Entrant, 8)
	for i := range entrants {
		entrants[i] = &models.Entrant{ID: i + 1}
	}

	first, err := OrderEntrants(entrants, models.PairingRandom, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	second, err := OrderEntrants(entrants, models.PairingRandom, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	assert.Equal(t, first, second)

	seen := make(map[int]bool)
	for _, e := range first {
		seen[e.ID] = true
	}
	assert.Len(t, seen, len(entrants))
}

func TestOrderEntrantsErrors(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	_, err := OrderEntrants([]*models.Entrant{{ID: 1}}, models.PairingRandom, rng)
	assert.ErrorIs(t, err, ErrTooFewEntrants)

	_, err = OrderEntrants([]*models.Entrant{{ID: 1}, {ID: 2}}, models.PairingPolicy("swiss"), rng)
	assert.ErrorIs(t, err, ErrInvalidPairingPolicy)
}
