package bingo

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Pattern is a set of five grid positions kept in ascending order, which is
// also its canonical encoding.
type Pattern [GridSide]int

// NewPattern validates positions and returns them in canonical order.
func NewPattern(positions []int) (Pattern, error) {
	var p Pattern
	if len(positions) != GridSide {
		return p, fmt.Errorf("%w: pattern needs %d positions, got %d", ErrValidation, GridSide, len(positions))
	}

	sorted := append([]int(nil), positions...)
	sort.Ints(sorted)
	for i, pos := range sorted {
		if !ValidPosition(pos) {
			return Pattern{}, fmt.Errorf("%w: position %d", ErrInvalidPosition, pos)
		}
		if i > 0 && sorted[i-1] == pos {
			return Pattern{}, fmt.Errorf("%w: duplicate position %d in pattern", ErrValidation, pos)
		}
		p[i] = pos
	}
	return p, nil
}

func (p Pattern) Positions() []int {
	return append([]int(nil), p[:]...)
}

func (p Pattern) String() string {
	parts := make([]string, len(p))
	for i, pos := range p {
		parts[i] = strconv.Itoa(pos)
	}
	return strings.Join(parts, ",")
}

// StandardPatterns lists the winning lines in evaluation order: rows top to
// bottom, columns left to right, then the main and anti diagonal.
func StandardPatterns() []Pattern {
	patterns := make([]Pattern, 0, 2*GridSide+2)

	for r := 0; r < GridSide; r++ {
		var p Pattern
		for c := 0; c < GridSide; c++ {
			p[c] = r*GridSide + c
		}
		patterns = append(patterns, p)
	}

	for c := 0; c < GridSide; c++ {
		var p Pattern
		for r := 0; r < GridSide; r++ {
			p[r] = r*GridSide + c
		}
		patterns = append(patterns, p)
	}

	var diag, anti Pattern
	for i := 0; i < GridSide; i++ {
		diag[i] = i*GridSide + i
		// anti diagonal ascending: 4, 8, 12, 16, 20
		anti[i] = (i + 1) * (GridSide - 1)
	}
	return append(patterns, diag, anti)
}

// FindWinningPattern returns the first pattern, in the given order, whose
// every cell is both marked and holds a drawn number.
func FindWinningPattern(cells []Cell, drawn NumberSet, patterns []Pattern) (Pattern, bool) {
	byPosition := make(map[int]Cell, len(cells))
	for _, c := range cells {
		byPosition[c.Position] = c
	}

	for _, p := range patterns {
		if patternComplete(p, byPosition, drawn) {
			return p, true
		}
	}
	return Pattern{}, false
}

func patternComplete(p Pattern, cells map[int]Cell, drawn NumberSet) bool {
	for _, pos := range p {
		c, ok := cells[pos]
		if !ok || !c.Marked || !drawn.Has(c.Value) {
			return false
		}
	}
	return true
}
