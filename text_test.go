package crdt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestTextInsertAndMerge covers scenario S1: two replicas insert text
// concurrently (one appends at the end, the other prepends at the start)
// and converge to the same string after exchanging updates.
func TestTextInsertAndMerge(t *testing.T) {
	a := NewDoc(WithClientID(1))
	b := NewDoc(WithClientID(2))

	require.NoError(t, a.GetText("doc").Insert(0, "hello"))
	sync := a.EncodeStateAsUpdateV1(StateVector{})
	require.NoError(t, b.ApplyUpdateV1(sync, nil))
	require.Equal(t, "hello", b.GetText("doc").String())

	require.NoError(t, a.GetText("doc").Insert(5, " world"))
	require.NoError(t, b.GetText("doc").Insert(0, "oh, "))

	aUpdate := a.EncodeStateAsUpdateV1(StateVector{1: 5, 2: 0})
	bUpdate := b.EncodeStateAsUpdateV1(StateVector{1: 5, 2: 0})
	require.NoError(t, b.ApplyUpdateV1(aUpdate, nil))
	require.NoError(t, a.ApplyUpdateV1(bUpdate, nil))

	require.Equal(t, a.GetText("doc").String(), b.GetText("doc").String())
	require.Contains(t, a.GetText("doc").String(), "hello world")
	require.Contains(t, a.GetText("doc").String(), "oh, ")
}

// TestTextDeleteThenReinsert covers scenario S2: a deleted range's
// tombstones never resurrect, and content reinserted at the same index
// is a distinct unit that survives.
func TestTextDeleteThenReinsert(t *testing.T) {
	doc := NewDoc(WithClientID(1))
	text := doc.GetText("doc")
	require.NoError(t, text.Insert(0, "hello world"))
	require.NoError(t, text.Delete(5, 6))
	require.Equal(t, "hello", text.String())

	require.NoError(t, text.Insert(5, " there"))
	require.Equal(t, "hello there", text.String())
	require.Equal(t, 11, text.Len())
}

func TestTextFormatAndToDelta(t *testing.T) {
	doc := NewDoc(WithClientID(1))
	text := doc.GetText("doc")
	require.NoError(t, text.Insert(0, "hello world"))
	require.NoError(t, text.Format(0, 5, map[string]any{"bold": true}))

	delta := text.ToDelta()
	require.NotEmpty(t, delta)
	require.Equal(t, []any{"hello"}, delta[0].Insert)
	require.Equal(t, true, delta[0].Attributes["bold"])
	require.Equal(t, []any{" world"}, delta[1].Insert)
	require.Nil(t, delta[1].Attributes)
}

func TestTextInsertFormatted(t *testing.T) {
	doc := NewDoc(WithClientID(1))
	text := doc.GetText("doc")
	require.NoError(t, text.InsertFormatted(0, "bold", map[string]any{"bold": true}))
	require.NoError(t, text.Insert(4, " plain"))

	delta := text.ToDelta()
	require.Equal(t, []any{"bold"}, delta[0].Insert)
	require.Equal(t, true, delta[0].Attributes["bold"])
	require.Equal(t, []any{" plain"}, delta[1].Insert)
}

func TestTextMove(t *testing.T) {
	doc := NewDoc(WithClientID(1))
	text := doc.GetText("doc")
	require.NoError(t, text.Insert(0, "abcdef"))
	require.NoError(t, text.Move(0, 2, 6))
	require.Equal(t, "cdefab", text.String())
}
