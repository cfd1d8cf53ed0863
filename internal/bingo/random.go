package bingo

import (
	"math/rand/v2"
	"sync"
)

// Source is the randomness used by the card generator and draw engine.
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// DefaultSource draws from the runtime's goroutine-safe generator.
var DefaultSource Source = globalSource{}

// NewSeededSource returns a deterministic source. It is not safe for
// concurrent use.
func NewSeededSource(seed1, seed2 uint64) Source {
	return rand.New(rand.NewPCG(seed1, seed2))
}

type lockedSource struct {
	mu  sync.Mutex
	src Source
}

func (l *lockedSource) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.IntN(n)
}

// LockedSource serializes calls to src so it can be shared by goroutines.
func LockedSource(src Source) Source {
	if _, ok := src.(globalSource); ok {
		return src
	}
	return &lockedSource{src: src}
}
