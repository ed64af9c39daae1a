package crdt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestXmlFragmentBuildsTree(t *testing.T) {
	doc := NewDoc(WithClientID(1))
	frag := doc.GetXmlFragment("doc")

	p, err := frag.InsertElement(0, "p")
	require.NoError(t, err)
	require.NoError(t, p.SetAttribute("class", "intro"))

	_, err = p.InsertText(0, "hello")
	require.NoError(t, err)

	require.Equal(t, 1, frag.Len())
	require.Equal(t, 1, p.Len())

	cls, ok := p.GetAttribute("class")
	require.True(t, ok)
	require.Equal(t, "intro", cls)

	child, ok := frag.Get(0)
	element, ok2 := child.(*XmlElement)
	require.True(t, ok)
	require.True(t, ok2)
	require.Equal(t, "p", element.Name())

	xml := frag.ToXMLString()
	require.Contains(t, xml, `<p class="intro">hello</p>`)
}

func TestXmlFragmentDeleteChild(t *testing.T) {
	doc := NewDoc(WithClientID(1))
	frag := doc.GetXmlFragment("doc")
	_, err := frag.InsertElement(0, "a")
	require.NoError(t, err)
	_, err = frag.InsertElement(1, "b")
	require.NoError(t, err)
	require.Equal(t, 2, frag.Len())

	require.NoError(t, frag.Delete(0, 1))
	require.Equal(t, 1, frag.Len())
	child, ok := frag.Get(0)
	require.True(t, ok)
	require.Equal(t, "b", child.(*XmlElement).Name())
}
