package roster

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// zeroSource never asks for a swap, so sampling keeps the generator's
// orientation, which is unbalanced for n > 2.
type zeroSource struct{}

func (zeroSource) Uint64() uint64 { return 0 }

func TestBounds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		n      int
		lo, hi int
	}{
		{2, 0, 1},
		{4, 1, 2},
		{10, 4, 5},
		{20, 9, 10},
	}
	for _, tt := range tests {
		lo, hi := Bounds(tt.n)
		assert.Equal(t, tt.lo, lo, "n=%d", tt.n)
		assert.Equal(t, tt.hi, hi, "n=%d", tt.n)
	}
}

func TestAssignRoles_BalancedAndMembershipPreserved(t *testing.T) {
	t.Parallel()

	for _, n := range []int{2, 4, 6, 8, 10, 12, 16, 20} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			t.Parallel()

			pairs, err := GeneratePairings(n)
			require.NoError(t, err)
			orig := append([]Pair(nil), pairs...)

			// Unbounded sampling only converges quickly for small rosters;
			// larger ones may end in the fallback orientation.
			trials := DefaultMaxTrials
			if n <= 12 {
				trials = 0
			}
			got, err := AssignRoles(pairs, n, WithMaxTrials(trials))
			require.NoError(t, err)
			require.Len(t, got, len(pairs))
			assert.Equal(t, orig, pairs, "input must not be modified")

			for i := range got {
				assert.Equal(t, pairs[i].Key(), got[i].Key(), "pair %d membership", i)
			}

			lo, hi := Bounds(n)
			sum := 0
			for id, c := range FirstCounts(got, n) {
				assert.GreaterOrEqual(t, c, lo, "id %d", id)
				assert.LessOrEqual(t, c, hi, "id %d", id)
				sum += c
			}
			assert.Equal(t, n*(n-1)/2, sum)
		})
	}
}

func TestAssignRoles_TenAlwaysBalanced(t *testing.T) {
	t.Parallel()

	for i := 0; i < 50; i++ {
		got, err := NewSchedule(10)
		require.NoError(t, err)
		require.Len(t, got, 45)
		for id, c := range FirstCounts(got, 10) {
			require.Contains(t, []int{4, 5}, c, "run %d id %d", i, id)
		}
	}
}

func TestAssignRoles_SeededIsReproducible(t *testing.T) {
	t.Parallel()

	pairs, err := GeneratePairings(10)
	require.NoError(t, err)

	a, err := AssignRoles(pairs, 10, WithRand(rand.New(rand.NewPCG(1, 2))))
	require.NoError(t, err)
	b, err := AssignRoles(pairs, 10, WithRand(rand.New(rand.NewPCG(1, 2))))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestAssignRoles_FallbackAfterBudget(t *testing.T) {
	t.Parallel()

	for _, n := range []int{4, 6, 10, 14} {
		pairs, err := GeneratePairings(n)
		require.NoError(t, err)
		require.False(t, Balanced(pairs, n), "generator output should lean on seat 0")

		got, err := AssignRoles(pairs, n, WithMaxTrials(1), WithRand(rand.New(zeroSource{})))
		require.NoError(t, err, "n=%d", n)
		assert.True(t, Balanced(got, n), "n=%d", n)
		for i := range got {
			assert.Equal(t, pairs[i].Key(), got[i].Key())
		}
	}
}

func TestAssignRoles_Strict(t *testing.T) {
	t.Parallel()

	pairs, err := GeneratePairings(10)
	require.NoError(t, err)

	_, err = AssignRoles(pairs, 10, WithMaxTrials(3), WithStrict(true), WithRand(rand.New(zeroSource{})))
	require.ErrorIs(t, err, ErrBalanceUnattainable)
}

func TestAssignRoles_IncompleteInputCannotFallBack(t *testing.T) {
	t.Parallel()

	// Seat 3 never cooks, so it can never reach its one head chef turn.
	pairs := []Pair{{0, 1}, {0, 2}, {1, 2}}
	_, err := AssignRoles(pairs, 4, WithMaxTrials(1), WithRand(rand.New(zeroSource{})))
	require.ErrorIs(t, err, ErrBalanceUnattainable)
}

func TestAssignRoles_InvalidInput(t *testing.T) {
	t.Parallel()

	_, err := AssignRoles(nil, 3)
	require.ErrorIs(t, err, ErrUnsupportedSize)

	_, err = AssignRoles([]Pair{{0, 4}}, 4)
	require.Error(t, err)

	_, err = AssignRoles([]Pair{{1, 1}}, 4)
	require.Error(t, err)

	_, err = NewSchedule(7)
	require.ErrorIs(t, err, ErrUnsupportedSize)
}

func TestOrient_BalancedForEveryEvenSize(t *testing.T) {
	t.Parallel()

	for n := 2; n <= 30; n += 2 {
		pairs, err := GeneratePairings(n)
		require.NoError(t, err)
		out := make([]Pair, len(pairs))
		for i, p := range pairs {
			out[i] = orient(p, n)
			assert.Equal(t, orient(p.Swap(), n), out[i], "orientation must not depend on input order")
		}
		assert.True(t, Balanced(out, n), "n=%d", n)
	}
}

func BenchmarkNewSchedule10(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := NewSchedule(10); err != nil {
			b.Fatal(err)
		}
	}
}
