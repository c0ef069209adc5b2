package ringbuffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRingBuffer_OldestFirst(t *testing.T) {
	rb := New[int](3)
	for _, v := range []int{1, 2, 3, 4, 5} {
		rb.Write(v)
	}
	require.Equal(t, []int{3, 4, 5}, rb.Snapshot())
}

func TestRingBuffer_PartiallyFilled(t *testing.T) {
	rb := New[int](5)
	rb.Write(1)
	rb.Write(2)
	require.Equal(t, []int{1, 2}, rb.Snapshot())
	require.Equal(t, 2, rb.Len())
}

func TestRingBuffer_CapacityOne(t *testing.T) {
	rb := New[int](1)
	require.Empty(t, rb.Snapshot())
	rb.Write(7)
	require.Equal(t, []int{7}, rb.Snapshot())
	rb.Write(8)
	require.Equal(t, []int{8}, rb.Snapshot())
}

func TestRingBuffer_InsertionOrderInvariant(t *testing.T) {
	const capacity = 4
	sequence := []int{10, 20, 30, 40, 50, 60, 70}
	rb := New[int](capacity)
	for _, v := range sequence {
		rb.Write(v)
	}

	want := sequence[len(sequence)-capacity:]
	require.Equal(t, want, rb.Snapshot())
}
