package crdt

import (
	"fmt"
	"strings"
)

// XmlFragment is an unordered-tag root holding a sequence of XmlElement
// and XmlText children (spec.md §4.4's tree-shaped shared type). It has
// no tag name or attributes of its own — only XmlElement does.
type XmlFragment struct{ header *TypeHeader }

// XmlElement is a named, attributed node holding a sequence of XmlElement
// and XmlText children.
type XmlElement struct{ header *TypeHeader }

// XmlText is a Text instance nested as an XML child; formatting and
// editing behave exactly like a root Text (spec.md §4.4).
type XmlText struct{ Text }

// GetXmlFragment returns (creating if necessary) the root XmlFragment
// registered under name.
func (d *Doc) GetXmlFragment(name string) *XmlFragment {
	return &XmlFragment{header: d.rootHeader(name, TypeXmlFragment)}
}

func wrapXmlFragment(h *TypeHeader) *XmlFragment { return &XmlFragment{header: h} }
func wrapXmlElement(h *TypeHeader) *XmlElement   { return &XmlElement{header: h} }
func wrapXmlText(h *TypeHeader) *XmlText         { return &XmlText{Text: Text{header: h}} }

func (f *XmlFragment) Header() *TypeHeader { return f.header }
func (e *XmlElement) Header() *TypeHeader  { return e.header }

// Name returns the element's tag name.
func (e *XmlElement) Name() string { return e.header.Name }

// GetAttribute returns an attribute's value and whether it is set.
func (e *XmlElement) GetAttribute(key string) (any, bool) {
	v, ok := e.header.Attributes[key]
	return v, ok
}

// SetAttribute sets an attribute's value. The returned error is always
// nil.
func (e *XmlElement) SetAttribute(key string, value any) error {
	if e.header.Attributes == nil {
		e.header.Attributes = make(map[string]any)
	}
	e.header.Attributes[key] = value
	return nil
}

// RemoveAttribute clears an attribute.
func (e *XmlElement) RemoveAttribute(key string) { delete(e.header.Attributes, key) }

// Attributes returns a snapshot copy of the element's attributes.
func (e *XmlElement) Attributes() map[string]any { return cloneAttrs(e.header.Attributes) }

// newNestedType creates a header for a new child node but neither
// registers it nor integrates its anchor block; insertChild splices it
// into a parent's children sequence, and integration registers it.
func newNestedType(doc *Doc, kind TypeKind, name string) *TypeHeader {
	h := newTypeHeader(kind, name, false)
	h.Doc = doc
	return h
}

// insertChild splices a new child node of kind/name into parent's
// children sequence at index, returning the freshly created header.
func insertChild(doc *Doc, parent ParentRef, index int, kind TypeKind, name string) (*TypeHeader, error) {
	var header *TypeHeader
	var opErr error
	doc.Transact(nil, func(tx *Transaction) {
		w := newSeqWalker(doc, parent)
		left, right, err := w.locateInsert(index)
		if err != nil {
			opErr = err
			return
		}
		h := newNestedType(doc, kind, name)
		block, err := tx.insertLocal(parent, nil, left, right, TypeContent{Header: h})
		if err != nil {
			opErr = err
			return
		}
		header = h
		tx.recordRawChange(rawChange{parent: parent, index: index, inserts: []any{block.Content.Values()[0]}})
		w.cache.shift(index, 1)
	})
	return header, opErr
}

// InsertElement inserts a new, empty XmlElement named tag at index.
func (f *XmlFragment) InsertElement(index int, tag string) (*XmlElement, error) {
	h, err := insertChild(f.header.Doc, f.header.AsParent(), index, TypeXmlElement, tag)
	if err != nil {
		return nil, err
	}
	return wrapXmlElement(h), nil
}

// InsertText inserts a new XmlText child at index, initialized to s.
func (f *XmlFragment) InsertText(index int, s string) (*XmlText, error) {
	h, err := insertChild(f.header.Doc, f.header.AsParent(), index, TypeXmlText, "")
	if err != nil {
		return nil, err
	}
	xt := wrapXmlText(h)
	if s != "" {
		if err := xt.Insert(0, s); err != nil {
			return nil, err
		}
	}
	return xt, nil
}

// InsertElement inserts a new, empty XmlElement named tag at index among
// e's children.
func (e *XmlElement) InsertElement(index int, tag string) (*XmlElement, error) {
	h, err := insertChild(e.header.Doc, e.header.AsParent(), index, TypeXmlElement, tag)
	if err != nil {
		return nil, err
	}
	return wrapXmlElement(h), nil
}

// InsertText inserts a new XmlText child at index among e's children.
func (e *XmlElement) InsertText(index int, s string) (*XmlText, error) {
	h, err := insertChild(e.header.Doc, e.header.AsParent(), index, TypeXmlText, "")
	if err != nil {
		return nil, err
	}
	xt := wrapXmlText(h)
	if s != "" {
		if err := xt.Insert(0, s); err != nil {
			return nil, err
		}
	}
	return xt, nil
}

// Len returns the number of children.
func (f *XmlFragment) Len() int { return seqLength(f.header.Doc, f.header.AsParent()) }
func (e *XmlElement) Len() int  { return seqLength(e.header.Doc, e.header.AsParent()) }

// Get returns the child at index, as an *XmlElement or *XmlText.
func (f *XmlFragment) Get(index int) (any, bool) { return childAt(f.header.Doc, f.header.AsParent(), index) }
func (e *XmlElement) Get(index int) (any, bool)  { return childAt(e.header.Doc, e.header.AsParent(), index) }

func childAt(doc *Doc, parent ParentRef, index int) (any, bool) {
	w := newSeqWalker(doc, parent)
	block, _, err := w.locateUnit(index)
	if err != nil {
		return nil, false
	}
	tc, ok := block.Content.(TypeContent)
	if !ok {
		return nil, false
	}
	return wrapXmlChild(tc.Header), true
}

func wrapXmlChild(h *TypeHeader) any { return wrapTypeHeader(h) }

// Delete removes the length children starting at index.
func (f *XmlFragment) Delete(index, length int) error {
	return deleteChildren(f.header.Doc, f.header.AsParent(), index, length)
}
func (e *XmlElement) Delete(index, length int) error {
	return deleteChildren(e.header.Doc, e.header.AsParent(), index, length)
}

func deleteChildren(doc *Doc, parent ParentRef, index, length int) error {
	if length <= 0 {
		return nil
	}
	var opErr error
	doc.Transact(nil, func(tx *Transaction) {
		w := newSeqWalker(doc, parent)
		for i := 0; i < length; i++ {
			block, _, err := w.locateUnit(index)
			if err != nil {
				opErr = err
				return
			}
			block.Deleted = true
			tx.touched[block.ID.Client] = true
			tx.recordDelete(block.ID, block.Len)
		}
		tx.recordRawChange(rawChange{parent: parent, index: index, delCnt: length})
		w.cache.shift(index, -length)
	})
	return opErr
}

// ToXMLString renders the node and its descendants as XML text, for
// debugging/snapshotting (spec.md §4.4 does not require a canonical
// serialization; this is a convenience, not a wire format).
func (f *XmlFragment) ToXMLString() string {
	var b strings.Builder
	writeChildren(&b, f.header.Doc, f.header.AsParent())
	return b.String()
}

func (e *XmlElement) ToXMLString() string {
	var b strings.Builder
	writeElement(&b, e)
	return b.String()
}

func writeChildren(b *strings.Builder, doc *Doc, parent ParentRef) {
	for blk := doc.collections.head(parent); blk != nil; blk = blk.Right {
		if blk.Deleted {
			continue
		}
		tc, ok := blk.Content.(TypeContent)
		if !ok {
			continue
		}
		switch child := wrapXmlChild(tc.Header).(type) {
		case *XmlElement:
			writeElement(b, child)
		case *XmlText:
			b.WriteString(child.String())
		}
	}
}

func writeElement(b *strings.Builder, e *XmlElement) {
	fmt.Fprintf(b, "<%s", e.Name())
	for k, v := range e.Attributes() {
		fmt.Fprintf(b, " %s=%q", k, fmt.Sprint(v))
	}
	b.WriteString(">")
	writeChildren(b, e.header.Doc, e.header.AsParent())
	fmt.Fprintf(b, "</%s>", e.Name())
}

// Observe/ObserveDeep proxy to the underlying TypeHeader for every XML
// node kind.
func (f *XmlFragment) Observe(fn func(ChangeEvent)) (SubscriptionToken, error) { return f.header.Observe(fn) }
func (f *XmlFragment) ObserveDeep(fn func(ChangeEvent)) (SubscriptionToken, error) {
	return f.header.ObserveDeep(fn)
}
func (e *XmlElement) Observe(fn func(ChangeEvent)) (SubscriptionToken, error) { return e.header.Observe(fn) }
func (e *XmlElement) ObserveDeep(fn func(ChangeEvent)) (SubscriptionToken, error) {
	return e.header.ObserveDeep(fn)
}
