package crdt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapSetGetDelete(t *testing.T) {
	doc := NewDoc(WithClientID(1))
	m := doc.GetMap("config")

	require.NoError(t, m.Set("name", "doc"))
	require.NoError(t, m.Set("count", 3))

	v, ok := m.Get("name")
	require.True(t, ok)
	require.Equal(t, "doc", v)
	require.True(t, m.Has("count"))

	require.NoError(t, m.Delete("count"))
	require.False(t, m.Has("count"))
	require.ElementsMatch(t, []string{"name"}, m.Keys())
}

// TestMapConcurrentSetLargestIDWins covers the spec's map-entry
// visibility rule: concurrent writes to the same key resolve to the
// entry with the largest (clock, client_id) id, not last-applied-wins.
func TestMapConcurrentSetLargestIDWins(t *testing.T) {
	a := NewDoc(WithClientID(1))
	b := NewDoc(WithClientID(5))

	require.NoError(t, a.GetMap("config").Set("key", "from-a"))
	require.NoError(t, b.GetMap("config").Set("key", "from-b"))

	aUpdate := a.EncodeStateAsUpdateV1(StateVector{})
	bUpdate := b.EncodeStateAsUpdateV1(StateVector{})
	require.NoError(t, b.ApplyUpdateV1(aUpdate, nil))
	require.NoError(t, a.ApplyUpdateV1(bUpdate, nil))

	va, _ := a.GetMap("config").Get("key")
	vb, _ := b.GetMap("config").Get("key")
	require.Equal(t, va, vb)
	// Both blocks land at clock 0; client 5 > client 1 under the
	// (clock, client_id) tie-break, so client 5's write wins.
	require.Equal(t, "from-b", va)
}

func TestMapObserveKeyChanges(t *testing.T) {
	doc := NewDoc(WithClientID(1))
	m := doc.GetMap("config")

	var keys map[string]KeyChange
	_, err := m.Observe(func(e ChangeEvent) { keys = e.Keys })
	require.NoError(t, err)

	require.NoError(t, m.Set("a", 1))
	require.Equal(t, KeyAdd, keys["a"].Action)
	require.Nil(t, keys["a"].OldValue)

	require.NoError(t, m.Set("a", 2))
	require.Equal(t, KeyUpdate, keys["a"].Action)
	require.Equal(t, 1, keys["a"].OldValue)

	require.NoError(t, m.Delete("a"))
	require.Equal(t, KeyDelete, keys["a"].Action)
}

func TestMapPlainSliceValue(t *testing.T) {
	doc := NewDoc(WithClientID(1))
	m := doc.GetMap("root")

	require.NoError(t, m.Set("tags", []any{"x", "y"}))
	v, ok := m.Get("tags")
	require.True(t, ok)
	require.Equal(t, []any{"x", "y"}, v)
}
