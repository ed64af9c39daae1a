package crdt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestQuoteRangeAbsorbsNewElements covers scenario S4: a quoted range is
// "open at the right" — an element remotely inserted right after the
// quote's recorded end id, before the quote's owner ever observes the
// insert, is absorbed into the unquoted view once the owner syncs.
func TestQuoteRangeAbsorbsNewElements(t *testing.T) {
	a := NewDoc(WithClientID(1))
	b := NewDoc(WithClientID(2))

	src := a.GetArray("source")
	require.NoError(t, src.Push("x", "y"))
	sync := a.EncodeStateAsUpdateV1(StateVector{})
	require.NoError(t, b.ApplyUpdateV1(sync, nil))

	link, err := a.GetArray("source").QuoteRange(0, 2)
	require.NoError(t, err)
	holder := a.GetArray("holder")
	linkHandle, err := holder.InsertLink(0, link)
	require.NoError(t, err)
	require.Equal(t, []any{"x", "y"}, linkHandle.Unquote())

	// b concurrently appends into the same array, past the quoted end.
	require.NoError(t, b.GetArray("source").Push("z"))
	bUpdate := b.EncodeStateAsUpdateV1(StateVector{1: 2, 2: 0})
	require.NoError(t, a.ApplyUpdateV1(bUpdate, nil))

	require.Equal(t, []any{"x", "y", "z"}, linkHandle.Unquote())
}

// TestQuoteKeyDereferencesLatestValue covers scenario S5: a key-link
// dereferences whatever value is currently visible under its target key,
// not the value at the moment the link was created.
func TestQuoteKeyDereferencesLatestValue(t *testing.T) {
	doc := NewDoc(WithClientID(1))
	m := doc.GetMap("config")
	require.NoError(t, m.Set("mode", "draft"))

	link := m.QuoteKey("mode")
	holder := doc.GetMap("refs")
	linkHandle, err := holder.SetLink("modeRef", link)
	require.NoError(t, err)

	v, ok := linkHandle.Deref()
	require.True(t, ok)
	require.Equal(t, "draft", v)

	require.NoError(t, m.Set("mode", "published"))
	v, ok = linkHandle.Deref()
	require.True(t, ok)
	require.Equal(t, "published", v)
}

// TestDeepObserveAcrossLinkChain covers scenario S6: a deep observer
// registered on a collection fires when a change happens to a different
// collection reached only by following a chain of weak links into it.
func TestDeepObserveAcrossLinkChain(t *testing.T) {
	doc := NewDoc(WithClientID(1))
	target := doc.GetArray("target")
	require.NoError(t, target.Push("a"))

	link, err := target.QuoteRange(0, 1)
	require.NoError(t, err)
	holder := doc.GetMap("holder")
	_, err = holder.SetLink("quote", link)
	require.NoError(t, err)

	fired := 0
	_, err = holder.ObserveDeep(func(e ChangeEvent) { fired++ })
	require.NoError(t, err)

	require.NoError(t, target.Push("b"))
	require.Equal(t, 1, fired)
}

func TestLinkDerefAbsentKeyReturnsFalse(t *testing.T) {
	doc := NewDoc(WithClientID(1))
	m := doc.GetMap("config")
	link := m.QuoteKey("missing")
	holder := doc.GetMap("refs")
	linkHandle, err := holder.SetLink("ref", link)
	require.NoError(t, err)

	_, ok := linkHandle.Deref()
	require.False(t, ok)
}
