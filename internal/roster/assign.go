package roster

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// ErrBalanceUnattainable is returned when no balanced role assignment was
// found within the configured trial budget.
var ErrBalanceUnattainable = errors.New("roster: head chef balance not reached")

// DefaultMaxTrials bounds the random search in AssignRoles.
const DefaultMaxTrials = 10000

type assignOptions struct {
	maxTrials int
	strict    bool
	rng       *rand.Rand
}

// Option tunes AssignRoles and NewSchedule.
type Option func(*assignOptions)

// WithMaxTrials caps the number of random trials. Zero or less means no cap.
func WithMaxTrials(n int) Option {
	return func(o *assignOptions) { o.maxTrials = n }
}

// WithStrict makes AssignRoles fail with ErrBalanceUnattainable instead of
// falling back to the fixed orientation once the trial budget is spent.
func WithStrict(strict bool) Option {
	return func(o *assignOptions) { o.strict = strict }
}

// WithRand injects the random source. Nil keeps the per-call PCG source.
func WithRand(r *rand.Rand) Option {
	return func(o *assignOptions) { o.rng = r }
}

// Bounds returns the allowed number of head chef turns per participant:
// floor((n-1)/2) and ceil((n-1)/2).
func Bounds(n int) (lo, hi int) {
	return (n - 1) / 2, n / 2
}

// FirstCounts counts head chef turns per participant. Ids outside [0, n) are
// ignored.
func FirstCounts(pairs []Pair, n int) []int {
	counts := make([]int, max(n, 0))
	for _, p := range pairs {
		if p.First >= 0 && p.First < n {
			counts[p.First]++
		}
	}
	return counts
}

// Balanced reports whether every participant leads within Bounds(n).
func Balanced(pairs []Pair, n int) bool {
	lo, hi := Bounds(n)
	return within(FirstCounts(pairs, n), lo, hi)
}

func within(counts []int, lo, hi int) bool {
	for _, c := range counts {
		if c < lo || c > hi {
			return false
		}
	}
	return true
}

// AssignRoles decides who leads in every pair. Each trial flips a fair coin
// per pair and is accepted once all head chef counts fall within Bounds(n).
// The input is not modified and pair membership is preserved.
//
// When the trial budget runs out the pairs are oriented by a fixed rule that
// is balanced for any complete round robin, unless WithStrict is set.
func AssignRoles(pairs []Pair, n int, opts ...Option) ([]Pair, error) {
	if err := checkSize(n); err != nil {
		return nil, err
	}
	for i, p := range pairs {
		if p.First < 0 || p.First >= n || p.Second < 0 || p.Second >= n || p.First == p.Second {
			return nil, fmt.Errorf("roster: pair %d (%s) is not a pair of distinct ids in [0,%d)", i, p, n)
		}
	}

	o := assignOptions{maxTrials: DefaultMaxTrials}
	for _, fn := range opts {
		if fn != nil {
			fn(&o)
		}
	}
	rng := o.rng
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	lo, hi := Bounds(n)
	out := make([]Pair, len(pairs))
	counts := make([]int, n)
	for trial := 1; o.maxTrials <= 0 || trial <= o.maxTrials; trial++ {
		clear(counts)
		for i, p := range pairs {
			if rng.IntN(2) == 1 {
				p = p.Swap()
			}
			out[i] = p
			counts[p.First]++
		}
		if within(counts, lo, hi) {
			return out, nil
		}
	}

	if o.strict {
		return nil, fmt.Errorf("%w: n=%d after %d trials", ErrBalanceUnattainable, n, o.maxTrials)
	}
	for i, p := range pairs {
		out[i] = orient(p, n)
	}
	if !Balanced(out, n) {
		return nil, fmt.Errorf("%w: n=%d, pairs are not a complete round robin", ErrBalanceUnattainable, n)
	}
	return out, nil
}

// orient gives a fixed, balanced orientation of the complete round robin.
// The last id leads against the lower half. The remaining n-1 ids form an odd
// cycle where i leads against the next (n-2)/2 ids.
func orient(p Pair, n int) Pair {
	a, b := p.First, p.Second
	last := n - 1
	switch {
	case a == last:
		if b < n/2 {
			return Pair{First: a, Second: b}
		}
		return Pair{First: b, Second: a}
	case b == last:
		if a < n/2 {
			return Pair{First: b, Second: a}
		}
		return Pair{First: a, Second: b}
	}
	m := n - 1
	if d := ((b-a)%m + m) % m; d >= 1 && d <= (m-1)/2 {
		return Pair{First: a, Second: b}
	}
	return Pair{First: b, Second: a}
}

// NewSchedule generates the round robin for n participants and assigns roles.
func NewSchedule(n int, opts ...Option) ([]Pair, error) {
	pairs, err := GeneratePairings(n)
	if err != nil {
		return nil, err
	}
	return AssignRoles(pairs, n, opts...)
}
