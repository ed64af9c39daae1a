package crdt

// seqWalker resolves visible indices to blocks within one sequence
// collection's linked list (spec.md §4.4). It starts from the nearest
// cached search marker and walks from there, so repeated nearby access
// — the common case for collaborative editing — stays cheap without
// maintaining a full secondary index that would need rebalancing on
// every insert/delete.
type seqWalker struct {
	doc    *Doc
	parent ParentRef
	cache  *positionCache
}

func newSeqWalker(doc *Doc, parent ParentRef) *seqWalker {
	return &seqWalker{doc: doc, parent: parent, cache: doc.collections.posCache(parent)}
}

// locateInsert returns the (left, right) blocks that a new element at
// visible index should be spliced between. index == length is valid and
// appends at the tail (right == nil).
func (w *seqWalker) locateInsert(index int) (left, right *Block, err error) {
	if index == 0 {
		head := w.doc.collections.head(w.parent)
		return nil, firstVisible(head), nil
	}

	cur, pos := w.startingPoint(index)
	for cur != nil {
		vlen := visibleLen(cur)
		if !cur.Deleted && pos+vlen >= index {
			if pos+vlen == index {
				w.cache.remember(cur, pos)
				return cur, nextVisibleAfter(cur), nil
			}
			break
		}
		if !cur.Deleted {
			pos += vlen
		}
		cur = cur.Right
	}
	if cur == nil {
		return nil, nil, errOutOfBounds(index, pos)
	}
	return splitForInsert(w.doc, cur, index-pos)
}

// locateUnit returns the block containing visible index and the index's
// offset within that block's visible units.
func (w *seqWalker) locateUnit(index int) (block *Block, offset int, err error) {
	cur, pos := w.startingPoint(index)
	for cur != nil {
		if cur.Deleted {
			cur = cur.Right
			continue
		}
		vlen := visibleLen(cur)
		if pos+vlen > index {
			w.cache.remember(cur, pos)
			return cur, index - pos, nil
		}
		pos += vlen
		cur = cur.Right
	}
	return nil, 0, errOutOfBounds(index, pos)
}

// startingPoint returns the best block/visible-index pair to begin a
// walk from toward index: either the collection head, or a cached
// marker, whichever is plausibly closer.
func (w *seqWalker) startingPoint(index int) (*Block, int) {
	if m := w.cache.nearest(index); m != nil {
		return m.block, m.index
	}
	return w.doc.collections.head(w.parent), 0
}

func visibleLen(b *Block) int {
	if b.Deleted {
		return 0
	}
	return b.Content.IndexLen()
}

func firstVisible(b *Block) *Block {
	for b != nil && (b.Deleted || b.Content.IndexLen() == 0) {
		b = b.Right
	}
	return b
}

func nextVisibleAfter(b *Block) *Block {
	return firstVisible(b.Right)
}

// splitForInsert splits block at its offset-th visible unit so a new
// block can be spliced in cleanly, returning (left, right) on either
// side of the split point. The BlockStore's GetItem performs the actual
// split by id, so this translates a visible offset back to a clock id.
func splitForInsert(doc *Doc, block *Block, offset int) (left, right *Block, err error) {
	if offset <= 0 {
		return block.Left, block, nil
	}
	if offset >= block.Content.IndexLen() {
		return block, block.Right, nil
	}
	splitID := idWithOffset(block.ID, uint32(offset))
	r, err := doc.store.GetItem(splitID)
	if err != nil {
		return nil, nil, err
	}
	return r.Left, r, nil
}

// seqIDAt resolves the id of the logical unit at visible index, for
// quoting a range by id (weaklink.go) rather than by index, which would
// go stale as soon as anything before it is inserted or deleted.
func seqIDAt(doc *Doc, parent ParentRef, index int) (ID, error) {
	w := newSeqWalker(doc, parent)
	block, offset, err := w.locateUnit(index)
	if err != nil {
		return ID{}, err
	}
	return idWithOffset(block.ID, uint32(offset)), nil
}

// seqLength returns the number of currently-visible units in parent's
// sequence, walking the move-adjusted logical order. Used for
// Array/Text/Xml Len(); a cached running total would go stale too
// easily to be worth it given how rarely full-length reads dominate
// over indexed access.
func seqLength(doc *Doc, parent ParentRef) int {
	total := 0
	for _, b := range effectiveOrder(doc, parent) {
		total += visibleLen(b)
	}
	return total
}

// seqValues collects the visible values of parent's sequence in its
// current move-adjusted logical order.
func seqValues(doc *Doc, parent ParentRef) []any {
	var out []any
	for _, b := range effectiveOrder(doc, parent) {
		if b.Deleted {
			continue
		}
		for _, v := range b.Content.Values() {
			out = append(out, resolveContentValue(doc, b, v))
		}
	}
	return out
}
