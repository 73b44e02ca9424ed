package roster

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePairings_CompleteRoundRobin(t *testing.T) {
	t.Parallel()

	for _, n := range []int{2, 4, 6, 8, 10, 12, 14, 16, 18, 20} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			t.Parallel()

			pairs, err := GeneratePairings(n)
			require.NoError(t, err)
			require.Len(t, pairs, n*(n-1)/2, "n=%d", n)

			seen := make(map[[2]int]int, len(pairs))
			appearances := make([]int, n)
			for _, p := range pairs {
				require.NotEqual(t, p.First, p.Second, "n=%d self pair %s", n, p)
				seen[p.Key()]++
				appearances[p.First]++
				appearances[p.Second]++
			}
			for i := 0; i < n; i++ {
				for j := i + 1; j < n; j++ {
					assert.Equal(t, 1, seen[[2]int{i, j}], "n=%d pair {%d,%d}", n, i, j)
				}
				assert.Equal(t, n-1, appearances[i], "n=%d id %d", n, i)
			}
		})
	}
}

func TestGeneratePairings_Ten(t *testing.T) {
	t.Parallel()

	pairs, err := GeneratePairings(10)
	require.NoError(t, err)
	require.Len(t, pairs, 45)
	assert.Equal(t, Pair{First: 0, Second: 5}, pairs[0])

	count := 0
	for _, p := range pairs {
		if p.Key() == [2]int{0, 5} {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestRounds_SeatRotation(t *testing.T) {
	t.Parallel()

	rounds, err := Rounds(6)
	require.NoError(t, err)
	want := [][]Pair{
		{{0, 3}, {1, 4}, {2, 5}},
		{{0, 4}, {3, 5}, {1, 2}},
		{{0, 5}, {4, 2}, {3, 1}},
		{{0, 2}, {5, 1}, {4, 3}},
		{{0, 1}, {2, 3}, {5, 4}},
	}
	assert.Equal(t, want, rounds)

	for _, r := range rounds {
		present := make(map[int]bool, 6)
		for _, p := range r {
			present[p.First] = true
			present[p.Second] = true
		}
		assert.Len(t, present, 6, "everyone cooks once per round")
	}
}

func TestGeneratePairings_Deterministic(t *testing.T) {
	t.Parallel()

	a, err := GeneratePairings(10)
	require.NoError(t, err)
	b, err := GeneratePairings(10)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGeneratePairings_UnsupportedSize(t *testing.T) {
	t.Parallel()

	for _, n := range []int{-2, 0, 1, 3, 9, 11} {
		_, err := GeneratePairings(n)
		require.ErrorIs(t, err, ErrUnsupportedSize, "n=%d", n)

		_, err = Rounds(n)
		require.ErrorIs(t, err, ErrUnsupportedSize, "n=%d", n)
	}
}

func TestPair_Helpers(t *testing.T) {
	t.Parallel()

	p := Pair{First: 7, Second: 2}
	assert.True(t, p.Has(7))
	assert.True(t, p.Has(2))
	assert.False(t, p.Has(3))
	assert.Equal(t, Pair{First: 2, Second: 7}, p.Swap())
	assert.Equal(t, [2]int{2, 7}, p.Key())
	assert.Equal(t, p.Key(), p.Swap().Key())
	assert.Equal(t, "7+2", p.String())
}
