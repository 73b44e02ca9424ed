package roster

import (
	"errors"
	"fmt"
	"slices"
)

// ErrUnsupportedSize is returned for participant counts the rotation cannot
// be built for (odd or smaller than two).
var ErrUnsupportedSize = errors.New("roster: unsupported participant count")

// Pair is one dinner night. First is the head chef, Second the assistant.
type Pair struct {
	First  int
	Second int
}

// Has reports whether id cooks in this pair.
func (p Pair) Has(id int) bool { return p.First == id || p.Second == id }

// Swap returns the pair with the roles exchanged.
func (p Pair) Swap() Pair { return Pair{First: p.Second, Second: p.First} }

// Key identifies the pair regardless of roles, lower id first.
func (p Pair) Key() [2]int {
	if p.First < p.Second {
		return [2]int{p.First, p.Second}
	}
	return [2]int{p.Second, p.First}
}

func (p Pair) String() string { return fmt.Sprintf("%d+%d", p.First, p.Second) }

func checkSize(n int) error {
	if n < 2 || n%2 != 0 {
		return fmt.Errorf("%w: n=%d (want an even number >= 2)", ErrUnsupportedSize, n)
	}
	return nil
}

// Rounds seats n participants at a two-row table and returns one round per
// rotation. Round r pairs top[j] with bottom[j] for every column j. Between
// rounds everyone except seat 0 moves one place clockwise.
func Rounds(n int) ([][]Pair, error) {
	if err := checkSize(n); err != nil {
		return nil, err
	}
	half := n / 2
	top := make([]int, 0, half)
	bottom := make([]int, 0, half)
	for i := 0; i < half; i++ {
		top = append(top, i)
		bottom = append(bottom, half+i)
	}

	rounds := make([][]Pair, 0, n-1)
	for r := 0; r < n-1; r++ {
		round := make([]Pair, half)
		for j := range half {
			round[j] = Pair{First: top[j], Second: bottom[j]}
		}
		rounds = append(rounds, round)
		if r < n-2 {
			top, bottom = rotate(top, bottom)
		}
	}
	return rounds, nil
}

// rotate moves the bottom-left seat up next to the fixed seat 0 and the
// top-right seat down to the end of the bottom row.
func rotate(top, bottom []int) ([]int, []int) {
	lastTop := top[len(top)-1]
	firstBottom := bottom[0]
	top = slices.Insert(top[:len(top)-1], 1, firstBottom)
	bottom = append(bottom[1:], lastTop)
	return top, bottom
}

// GeneratePairings returns the round robin for n participants as a flat list,
// round after round. Output is deterministic; roles are not balanced yet (see
// AssignRoles).
func GeneratePairings(n int) ([]Pair, error) {
	rounds, err := Rounds(n)
	if err != nil {
		return nil, err
	}
	out := make([]Pair, 0, n/2*(n-1))
	for _, r := range rounds {
		out = append(out, r...)
	}
	return out, nil
}
