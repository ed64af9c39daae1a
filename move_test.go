package crdt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestArrayMoveRelocatesRange(t *testing.T) {
	doc := NewDoc(WithClientID(1))
	arr := doc.GetArray("items")
	require.NoError(t, arr.Push("a", "b", "c", "d"))

	require.NoError(t, arr.Move(0, 2, 4))
	require.Equal(t, []any{"c", "d", "a", "b"}, arr.ToSlice())
}

func TestArrayMoveDoesNotAlterPhysicalInsertIndex(t *testing.T) {
	doc := NewDoc(WithClientID(1))
	arr := doc.GetArray("items")
	require.NoError(t, arr.Push("a", "b", "c"))
	require.NoError(t, arr.Move(0, 1, 3))
	require.Equal(t, []any{"b", "c", "a"}, arr.ToSlice())

	// Insert/Delete index resolution deliberately continues to operate
	// over the physical (pre-move) list, per the documented simplification
	// in move.go/DESIGN.md.
	require.NoError(t, arr.Insert(0, "x"))
	require.Equal(t, []any{"x", "b", "c", "a"}, arr.ToSlice())
}

// TestConcurrentOverlappingMovesTieBreak covers spec.md §9's Open
// Question: when two replicas concurrently move overlapping ranges, the
// mover with the greatest (clock, client_id) id wins under ID.Less.
func TestConcurrentOverlappingMovesTieBreak(t *testing.T) {
	a := NewDoc(WithClientID(1))
	b := NewDoc(WithClientID(9))

	require.NoError(t, a.GetArray("items").Push("a", "b", "c"))
	sync := a.EncodeStateAsUpdateV1(StateVector{})
	require.NoError(t, b.ApplyUpdateV1(sync, nil))

	require.NoError(t, a.GetArray("items").Move(0, 1, 3))
	require.NoError(t, b.GetArray("items").Move(0, 1, 3))

	aUpdate := a.EncodeStateAsUpdateV1(StateVector{1: 3, 9: 0})
	bUpdate := b.EncodeStateAsUpdateV1(StateVector{1: 3, 9: 0})
	require.NoError(t, b.ApplyUpdateV1(aUpdate, nil))
	require.NoError(t, a.ApplyUpdateV1(bUpdate, nil))

	require.Equal(t, a.GetArray("items").ToSlice(), b.GetArray("items").ToSlice())
}
