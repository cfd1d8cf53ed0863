package bingo

import "fmt"

const (
	// GridSide is the width and height of a card.
	GridSide = 5
	// GridSize is the number of cells on a card.
	GridSize = GridSide * GridSide
	// DefaultUniverse is the reference number range 1..75.
	DefaultUniverse = 75
)

// Cell is one square of a card. Position is the row-major index row*5+col.
type Cell struct {
	Position int  `json:"position"`
	Value    int  `json:"value"`
	Marked   bool `json:"marked"`
}

// GenerateCard draws gridSize distinct values from 1..universe without
// replacement and lays them out on positions 0..gridSize-1 in draw order.
func GenerateCard(src Source, universe, gridSize int) ([]Cell, error) {
	if universe <= 0 || gridSize <= 0 {
		return nil, fmt.Errorf("%w: universe %d and grid size %d must be positive", ErrConfiguration, universe, gridSize)
	}
	if gridSize > universe {
		return nil, fmt.Errorf("%w: grid size %d exceeds universe %d", ErrConfiguration, gridSize, universe)
	}

	numbers := make([]int, universe)
	for i := range numbers {
		numbers[i] = i + 1
	}

	// Fisher-Yates, stopping once the first gridSize slots are settled.
	for i := 0; i < gridSize; i++ {
		j := i + src.IntN(universe-i)
		numbers[i], numbers[j] = numbers[j], numbers[i]
	}

	cells := make([]Cell, gridSize)
	for pos := range cells {
		cells[pos] = Cell{Position: pos, Value: numbers[pos]}
	}
	return cells, nil
}

// ValidPosition reports whether p addresses a cell of a standard card.
func ValidPosition(p int) bool {
	return p >= 0 && p < GridSize
}
