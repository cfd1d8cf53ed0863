package bingo

import "fmt"

// DrawNext picks the next number uniformly from 1..universe minus the
// numbers already drawn.
func DrawNext(src Source, alreadyDrawn NumberSet, universe int) (int, error) {
	if universe <= 0 {
		return 0, fmt.Errorf("%w: universe %d must be positive", ErrConfiguration, universe)
	}

	available := make([]int, 0, universe)
	for n := 1; n <= universe; n++ {
		if !alreadyDrawn.Has(n) {
			available = append(available, n)
		}
	}
	if len(available) == 0 {
		return 0, ErrExhausted
	}

	return available[src.IntN(len(available))], nil
}

// NumberSet is a set of drawn numbers.
type NumberSet map[int]struct{}

func NewNumberSet(numbers ...int) NumberSet {
	s := make(NumberSet, len(numbers))
	for _, n := range numbers {
		s[n] = struct{}{}
	}
	return s
}

func (s NumberSet) Has(n int) bool {
	_, ok := s[n]
	return ok
}

func (s NumberSet) Add(n int) { s[n] = struct{}{} }

func (s NumberSet) Len() int { return len(s) }
