package crdt

import "sync"

// moveRecord is one integrated Move block's effect on its parent
// collection: the range it relocates and the Move block that now
// anchors its new logical position (spec.md §9 Open Question,
// "a Move block carrying the original range ids, with the range
// becoming virtually relocated at read time").
type moveRecord struct {
	mover *Block
	start ID
	end   ID
}

// moveIndex is the doc-wide registry of integrated Move blocks, per
// parent collection.
type moveIndex struct {
	mu       sync.Mutex
	byParent map[ParentRef][]*moveRecord
}

func newMoveIndex() *moveIndex { return &moveIndex{byParent: make(map[ParentRef][]*moveRecord)} }

func (mi *moveIndex) register(parent ParentRef, rec *moveRecord) {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	mi.byParent[parent] = append(mi.byParent[parent], rec)
}

func (mi *moveIndex) recordsFor(parent ParentRef) []*moveRecord {
	mi.mu.Lock()
	defer mi.mu.Unlock()
	return append([]*moveRecord(nil), mi.byParent[parent]...)
}

// registerMove indexes a newly-integrated Move block.
func (d *Doc) registerMove(block *Block) {
	mc, ok := block.Content.(MoveContent)
	if !ok {
		return
	}
	d.moves.register(block.Parent, &moveRecord{mover: block, start: mc.Start, end: mc.End})
}

// winningMover resolves the conflicting movers of blockID to the single
// mover that should govern it: among every move record whose [start,end]
// covers blockID, the one with the greatest id under ID.Less (clock
// first, then client id). YATA places the Move block itself by a
// different rule: its integration ties break by client id alone.
func winningMover(records []*moveRecord, blockID ID) *Block {
	var winner *Block
	for _, r := range records {
		if !idRangeCovers(r.start, r.end, blockID) {
			continue
		}
		if winner == nil || winner.ID.Less(r.mover.ID) {
			winner = r.mover
		}
	}
	return winner
}

func idRangeCovers(start, end, id ID) bool {
	if start.Client != id.Client || start.Client != end.Client {
		return false
	}
	return id.Clock >= start.Clock && id.Clock <= end.Clock
}

// moveBlocksFor returns the currently-live blocks covering [start, end],
// re-derived by id on every call so it stays correct across further
// splits (mirrors weaklink.go's unquoteRange).
func moveBlocksFor(doc *Doc, start, end ID) []*Block {
	startBlock, err := doc.store.GetItem(start)
	if err != nil {
		return nil
	}
	doc.splitBoundaryAfter(end)
	var out []*Block
	for b := startBlock; b != nil; b = b.Right {
		out = append(out, b)
		if blockCoversID(b, end) {
			break
		}
	}
	return out
}

// effectiveOrder returns parent's sequence in its current *logical*
// order: blocks relocated by a winning Move appear immediately after
// that Move block instead of at their original physical position.
// Insert/Delete index resolution (seq.go) deliberately keeps operating
// over the physical list — rebasing in-flight edits against a read-time
// overlay is the part spec.md §9 calls "underspecified"; pinning it to
// the physical list for writes and the overlay for reads (Len/Get/
// ToSlice/ToDelta) is the decision recorded in DESIGN.md.
func effectiveOrder(doc *Doc, parent ParentRef) []*Block {
	records := doc.moves.recordsFor(parent)
	if len(records) == 0 {
		return physicalOrder(doc, parent)
	}

	moved := make(map[*Block]*Block) // block -> winning mover
	byMover := make(map[*Block][]*Block)
	for _, r := range records {
		for _, b := range moveBlocksFor(doc, r.start, r.end) {
			if b.Parent != parent {
				continue
			}
			w := winningMover(records, b.ID)
			if w == nil {
				continue
			}
			if w != r.mover {
				continue // another record governs b; it's handled on that record's pass
			}
			moved[b] = w
		}
	}
	for b, w := range moved {
		byMover[w] = append(byMover[w], b)
	}

	var out []*Block
	for b := doc.collections.head(parent); b != nil; b = b.Right {
		if _, isMoved := moved[b]; isMoved {
			continue
		}
		out = append(out, b)
		if b.Content.Kind() == ContentMove {
			out = append(out, byMover[b]...)
		}
	}
	return out
}

func physicalOrder(doc *Doc, parent ParentRef) []*Block {
	var out []*Block
	for b := doc.collections.head(parent); b != nil; b = b.Right {
		out = append(out, b)
	}
	return out
}

// Move relocates the length visible units starting at fromIndex to
// logical position toIndex (measured before the move takes effect).
func moveRange(doc *Doc, parent ParentRef, fromIndex, length, toIndex int) error {
	if length <= 0 {
		return nil
	}
	var opErr error
	doc.Transact(nil, func(tx *Transaction) {
		w := newSeqWalker(doc, parent)
		startBlock, startOffset, err := w.locateUnit(fromIndex)
		if err != nil {
			opErr = err
			return
		}
		startBlock, err = splitVisibleRun(doc, startBlock, startOffset, startBlock.Content.IndexLen()-startOffset)
		if err != nil {
			opErr = err
			return
		}
		endBlock, endOffset, err := w.locateUnit(fromIndex + length - 1)
		if err != nil {
			opErr = err
			return
		}
		endBlock, err = splitVisibleRun(doc, endBlock, 0, endOffset+1)
		if err != nil {
			opErr = err
			return
		}

		dest := newSeqWalker(doc, parent)
		left, right, err := dest.locateInsert(toIndex)
		if err != nil {
			opErr = err
			return
		}
		if _, err := tx.insertLocal(parent, nil, left, right, MoveContent{Start: startBlock.ID, End: endBlock.LastID()}); err != nil {
			opErr = err
			return
		}
	})
	return opErr
}

// Move relocates length elements starting at fromIndex to toIndex.
func (a *Array) Move(fromIndex, length, toIndex int) error {
	return moveRange(a.header.Doc, a.header.AsParent(), fromIndex, length, toIndex)
}

// Move relocates length visible runes starting at fromIndex to toIndex.
func (t *Text) Move(fromIndex, length, toIndex int) error {
	return moveRange(t.header.Doc, t.header.AsParent(), fromIndex, length, toIndex)
}
