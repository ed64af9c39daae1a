package crdt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTransactAppliesLocalWriteBeforeObserverFires(t *testing.T) {
	doc := NewDoc(WithClientID(1))
	arr := doc.GetArray("items")
	require.NoError(t, arr.Push("a"))

	var seenDuringCommit int
	_, err := arr.Observe(func(e ChangeEvent) {
		seenDuringCommit = arr.Len()
	})
	require.NoError(t, err)

	require.NoError(t, arr.Push("b"))
	require.Equal(t, 2, seenDuringCommit)
}

func TestSubdocAddAndLookup(t *testing.T) {
	parent := NewDoc(WithClientID(1))
	child := NewDoc(WithGUID("child-1"))

	var added []*Doc
	parent.OnSubdocs(func(e SubdocsEvent) { added = e.Added })
	parent.AddSubdoc(child)

	got, ok := parent.Subdoc("child-1")
	require.True(t, ok)
	require.Same(t, child, got)
	require.Len(t, added, 1)
	require.Same(t, child, added[0])
}

func TestUpdateEventFiresOnCommitWithNewBlocks(t *testing.T) {
	doc := NewDoc(WithClientID(1))
	var updates int
	doc.OnUpdate(func(e UpdateEvent) { updates++ })

	require.NoError(t, doc.GetArray("items").Push("x"))
	require.Equal(t, 1, updates)

	// A no-op delete of zero length must not produce a spurious update.
	require.NoError(t, doc.GetArray("items").Delete(0, 0))
	require.Equal(t, 1, updates)
}

func TestGetArrayPanicsOnKindMismatch(t *testing.T) {
	doc := NewDoc(WithClientID(1))
	doc.GetArray("shared")
	require.Panics(t, func() { doc.GetMap("shared") })
}

// TestConvergenceAcrossThreeReplicas exercises spec.md §8's convergence
// property across more than two replicas and both codec versions: every
// replica that has applied the same set of updates (regardless of
// application order) reaches the same visible state.
func TestConvergenceAcrossThreeReplicas(t *testing.T) {
	docs := []*Doc{
		NewDoc(WithClientID(1)),
		NewDoc(WithClientID(2)),
		NewDoc(WithClientID(3)),
	}

	require.NoError(t, docs[0].GetArray("items").Push("a"))
	require.NoError(t, docs[1].GetArray("items").Push("b"))
	require.NoError(t, docs[2].GetArray("items").Push("c"))

	// Exchange updates pairwise, out of a strict broadcast order, using
	// v1 for some legs and v2 for others to cover both codecs in the
	// same convergence check.
	u0 := docs[0].EncodeStateAsUpdateV1(StateVector{})
	u1 := docs[1].EncodeStateAsUpdateV2(StateVector{})
	u2 := docs[2].EncodeStateAsUpdateV1(StateVector{})

	require.NoError(t, docs[1].ApplyUpdateV1(u0, nil))
	require.NoError(t, docs[2].ApplyUpdateV1(u0, nil))
	require.NoError(t, docs[0].ApplyUpdateV2(u1, nil))
	require.NoError(t, docs[2].ApplyUpdateV2(u1, nil))
	require.NoError(t, docs[0].ApplyUpdateV1(u2, nil))
	require.NoError(t, docs[1].ApplyUpdateV1(u2, nil))

	want := docs[0].GetArray("items").ToSlice()
	require.Len(t, want, 3)
	for _, d := range docs[1:] {
		require.Equal(t, want, d.GetArray("items").ToSlice())
	}
}
