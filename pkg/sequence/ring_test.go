package sequence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRing_FIFOEviction(t *testing.T) {
	t.Run("Basic Operations", func(t *testing.T) {
		r := NewRing[int](3)

		require.Equal(t, 0, r.Len())
		require.Equal(t, 3, r.Cap())

		r.Push(1)
		r.Push(2)
		require.Equal(t, []int{1, 2}, r.Items())

		latest, ok := r.Latest()
		require.True(t, ok)
		require.Equal(t, 2, latest)
	})

	t.Run("Eviction Order", func(t *testing.T) {
		r := NewRing[int](3)
		for i := 1; i <= 5; i++ {
			r.Push(i)
		}

		// Oldest entries drop first, arrival order preserved.
		require.Equal(t, 3, r.Len())
		require.Equal(t, []int{3, 4, 5}, r.Items())
	})

	t.Run("Last N", func(t *testing.T) {
		r := NewRing[int](4)
		for i := 1; i <= 4; i++ {
			r.Push(i)
		}

		require.Equal(t, []int{3, 4}, r.Last(2))
		require.Equal(t, []int{1, 2, 3, 4}, r.Last(10))
		require.Nil(t, r.Last(0))
	})

	t.Run("Clear", func(t *testing.T) {
		r := NewRing[int](2)
		r.Push(1)
		r.Push(2)
		r.Clear()

		require.Equal(t, 0, r.Len())
		_, ok := r.Latest()
		require.False(t, ok)

		r.Push(7)
		require.Equal(t, []int{7}, r.Items())
	})

	t.Run("Minimum Capacity", func(t *testing.T) {
		r := NewRing[int](0)
		r.Push(1)
		r.Push(2)
		require.Equal(t, []int{2}, r.Items())
	})
}
