package crdt

// Text is a shared, formattable run of UTF-8 text (spec.md §4.4's rich
// text operations). Formatting is modeled the way the underlying YATA
// sequence already models everything else: a FormatContent block is a
// zero-width marker occupying clock space (so it orders and survives
// merges like any other unit) but no visible index space, toggling an
// attribute's value for every visible unit to its right until the next
// marker for that same key.
type Text struct {
	header *TypeHeader
}

// GetText returns (creating if necessary) the root Text registered
// under name.
func (d *Doc) GetText(name string) *Text {
	return &Text{header: d.rootHeader(name, TypeText)}
}

func wrapText(h *TypeHeader) *Text { return &Text{header: h} }

// Header exposes the underlying TypeHeader.
func (t *Text) Header() *TypeHeader { return t.header }

// Len returns the number of visible (non-format, non-deleted) runes.
func (t *Text) Len() int { return seqLength(t.header.Doc, t.header.AsParent()) }

// String returns the text's current plain-text contents.
func (t *Text) String() string {
	var out []rune
	for _, b := range effectiveOrder(t.header.Doc, t.header.AsParent()) {
		if b.Deleted {
			continue
		}
		if sc, ok := b.Content.(StringContent); ok {
			out = append(out, []rune(sc.String())...)
		}
	}
	return string(out)
}

// Insert splices s into the text at index, with no formatting attributes.
func (t *Text) Insert(index int, s string) error { return t.InsertFormatted(index, s, nil) }

// InsertFormatted splices s into the text at index, carrying attrs as
// the active formatting for the inserted run.
func (t *Text) InsertFormatted(index int, s string, attrs map[string]any) error {
	if s == "" {
		return nil
	}
	doc := t.header.Doc
	parent := t.header.AsParent()
	var opErr error
	doc.Transact(nil, func(tx *Transaction) {
		w := newSeqWalker(doc, parent)
		left, right, err := w.locateInsert(index)
		if err != nil {
			opErr = err
			return
		}
		prev := make(map[string]any, len(attrs))
		for key := range attrs {
			prev[key] = activeAttrAt(doc, parent, key, index)
		}
		for key, val := range attrs {
			if _, err := tx.insertLocal(parent, nil, left, right, FormatContent{Key: key, Value: val}); err != nil {
				opErr = err
				return
			}
		}
		block, err := tx.insertLocal(parent, nil, left, right, NewStringContent(s))
		if err != nil {
			opErr = err
			return
		}
		// Close each attribute right after the run, restoring the value
		// that was active at index before this insert.
		endLeft := block
		for key := range attrs {
			endLeft, err = tx.insertLocal(parent, nil, endLeft, right, FormatContent{Key: key, Value: prev[key]})
			if err != nil {
				opErr = err
				return
			}
		}
		inserts := make([]any, len([]rune(s)))
		for i, r := range []rune(s) {
			inserts[i] = string(r)
		}
		tx.recordRawChange(rawChange{parent: parent, index: index, inserts: inserts})
		w.cache.shift(index, len(inserts))
	})
	return opErr
}

// Delete removes the length visible runes starting at index.
func (t *Text) Delete(index, length int) error {
	if length <= 0 {
		return nil
	}
	doc := t.header.Doc
	parent := t.header.AsParent()
	var opErr error
	doc.Transact(nil, func(tx *Transaction) {
		w := newSeqWalker(doc, parent)
		remaining := length
		cursor := index
		for remaining > 0 {
			block, offset, err := w.locateUnit(cursor)
			if err != nil {
				opErr = err
				return
			}
			avail := block.Content.IndexLen() - offset
			take := avail
			if take > remaining {
				take = remaining
			}
			sub, err := splitVisibleRun(doc, block, offset, take)
			if err != nil {
				opErr = err
				return
			}
			sub.Deleted = true
			tx.touched[sub.ID.Client] = true
			tx.recordDelete(sub.ID, uint32(take))
			remaining -= take
			cursor += take
		}
		tx.recordRawChange(rawChange{parent: parent, index: index, delCnt: length})
		w.cache.shift(index, -length)
	})
	return opErr
}

// Format applies attrs to the length visible runes starting at index,
// without inserting or deleting any text.
func (t *Text) Format(index, length int, attrs map[string]any) error {
	if length <= 0 || len(attrs) == 0 {
		return nil
	}
	doc := t.header.Doc
	parent := t.header.AsParent()
	var opErr error
	doc.Transact(nil, func(tx *Transaction) {
		for key, val := range attrs {
			endValue := activeAttrAt(doc, parent, key, index+length)
			wEnd := newSeqWalker(doc, parent)
			leftEnd, rightEnd, err := wEnd.locateInsert(index + length)
			if err != nil {
				opErr = err
				return
			}
			if _, err := tx.insertLocal(parent, nil, leftEnd, rightEnd, FormatContent{Key: key, Value: endValue}); err != nil {
				opErr = err
				return
			}
			wStart := newSeqWalker(doc, parent)
			leftStart, rightStart, err := wStart.locateInsert(index)
			if err != nil {
				opErr = err
				return
			}
			if _, err := tx.insertLocal(parent, nil, leftStart, rightStart, FormatContent{Key: key, Value: val}); err != nil {
				opErr = err
				return
			}
		}
	})
	return opErr
}

// activeAttrAt scans from the head of parent's sequence up to visible
// index, returning the last value a FormatContent marker for key set
// (nil if never set).
func activeAttrAt(doc *Doc, parent ParentRef, key string, index int) any {
	var active any
	pos := 0
	for b := doc.collections.head(parent); b != nil; b = b.Right {
		if b.Deleted {
			continue
		}
		if fc, ok := b.Content.(FormatContent); ok {
			if fc.Key == key {
				active = fc.Value
			}
			continue
		}
		if pos >= index {
			break
		}
		pos += b.Content.IndexLen()
	}
	return active
}

// ToDelta renders the text as a Quill-style delta of {insert, attributes}
// runs (spec.md §4.4/§4.7).
func (t *Text) ToDelta() []DeltaOp {
	var ops []DeltaOp
	active := make(map[string]any)
	var cur []rune
	var curAttrs map[string]any

	flush := func() {
		if len(cur) == 0 {
			return
		}
		ops = append(ops, DeltaOp{Insert: []any{string(cur)}, Attributes: curAttrs})
		cur = nil
		curAttrs = nil
	}

	sameAttrs := func(a, b map[string]any) bool {
		if len(a) != len(b) {
			return false
		}
		for k, v := range a {
			if bv, ok := b[k]; !ok || bv != v {
				return false
			}
		}
		return true
	}

	for _, b := range effectiveOrder(t.header.Doc, t.header.AsParent()) {
		if b.Deleted {
			continue
		}
		switch c := b.Content.(type) {
		case FormatContent:
			flush()
			if c.Value == nil {
				delete(active, c.Key)
			} else {
				active[c.Key] = c.Value
			}
		case StringContent:
			snapshot := cloneAttrs(active)
			if curAttrs == nil || !sameAttrs(curAttrs, snapshot) {
				flush()
				curAttrs = snapshot
			}
			cur = append(cur, c.runes...)
		}
	}
	flush()
	return ops
}

func cloneAttrs(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Observe registers a shallow change observer.
func (t *Text) Observe(fn func(ChangeEvent)) (SubscriptionToken, error) { return t.header.Observe(fn) }

// ObserveDeep registers a deep change observer.
func (t *Text) ObserveDeep(fn func(ChangeEvent)) (SubscriptionToken, error) {
	return t.header.ObserveDeep(fn)
}
