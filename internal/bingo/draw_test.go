package bingo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedSource always picks the same index, clamped to the range.
type fixedSource int

func (f fixedSource) IntN(n int) int {
	if int(f) >= n {
		return n - 1
	}
	return int(f)
}

func TestDrawNext(t *testing.T) {
	t.Run("drains the whole universe without repeats", func(t *testing.T) {
		src := NewSeededSource(11, 12)
		drawn := NewNumberSet()
		for i := 0; i < DefaultUniverse; i++ {
			n, err := DrawNext(src, drawn, DefaultUniverse)
			require.NoError(t, err)
			require.False(t, drawn.Has(n), "number %d drawn twice", n)
			require.True(t, n >= 1 && n <= DefaultUniverse)
			drawn.Add(n)
		}

		_, err := DrawNext(src, drawn, DefaultUniverse)
		assert.ErrorIs(t, err, ErrExhausted)
		assert.Equal(t, DefaultUniverse, drawn.Len())
	})

	t.Run("picks among remaining candidates only", func(t *testing.T) {
		drawn := NewNumberSet(1, 2, 3)
		n, err := DrawNext(fixedSource(0), drawn, 5)
		require.NoError(t, err)
		assert.Equal(t, 4, n)

		n, err = DrawNext(fixedSource(1), drawn, 5)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
	})

	t.Run("every remaining number is reachable", func(t *testing.T) {
		drawn := NewNumberSet(2, 4)
		got := NewNumberSet()
		for i := 0; i < 3; i++ {
			n, err := DrawNext(fixedSource(i), drawn, 5)
			require.NoError(t, err)
			got.Add(n)
		}
		assert.Equal(t, NewNumberSet(1, 3, 5), got)
	})

	t.Run("roughly uniform", func(t *testing.T) {
		src := NewSeededSource(5, 6)
		drawn := NewNumberSet(1, 2)
		counts := map[int]int{}
		const rounds = 30000
		for i := 0; i < rounds; i++ {
			n, err := DrawNext(src, drawn, 5)
			require.NoError(t, err)
			counts[n]++
		}
		for _, n := range []int{3, 4, 5} {
			assert.InDelta(t, rounds/3, counts[n], rounds*0.03, "number %d", n)
		}
	})

	t.Run("bad universe", func(t *testing.T) {
		_, err := DrawNext(DefaultSource, nil, 0)
		assert.ErrorIs(t, err, ErrConfiguration)
	})
}
