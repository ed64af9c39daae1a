package crdt

import "sync"

// LinkTarget describes what a Link handle currently resolves to, for
// WeakLink change events (spec.md §4.7).
type LinkTarget struct {
	IsKeyLink bool
	Parent    ParentRef
	Key       string
	Start     ID
	End       ID
}

// linkRegistration records one integrated Link block so the observer
// propagator can find, given a collection, every link that quotes into
// it (spec.md §4.7's "deep observation ... across weak links").
type linkRegistration struct {
	owner *TypeHeader // header of the collection the link block lives in
	key   string      // map key holding the link, "" if it lives in a sequence
	block *Block
}

// linkIndex is the doc-wide reverse index from a quoted target back to
// the links quoting it.
type linkIndex struct {
	mu      sync.RWMutex
	byParent map[ParentRef][]*linkRegistration
}

func newLinkIndex() *linkIndex {
	return &linkIndex{byParent: make(map[ParentRef][]*linkRegistration)}
}

func (li *linkIndex) register(target ParentRef, reg *linkRegistration) {
	li.mu.Lock()
	defer li.mu.Unlock()
	li.byParent[target] = append(li.byParent[target], reg)
}

func (li *linkIndex) forTarget(target ParentRef) []*linkRegistration {
	li.mu.RLock()
	defer li.mu.RUnlock()
	return append([]*linkRegistration(nil), li.byParent[target]...)
}

// registerLink indexes a newly-integrated Link block so deep observers
// on its target can be reached.
func (d *Doc) registerLink(block *Block) {
	lc, ok := block.Content.(LinkContent)
	if !ok {
		return
	}
	ownerHeader, _ := d.branches.Header(block.Parent)
	reg := &linkRegistration{owner: ownerHeader, block: block}
	if block.ParentSub != nil {
		reg.key = *block.ParentSub
	}

	var target ParentRef
	if lc.IsKeyLink {
		target = lc.TargetParent
	} else if startBlock, err := d.store.GetItem(lc.Start); err == nil {
		target = startBlock.Parent
	} else {
		return
	}
	d.links.register(target, reg)
}

// linksQuoting returns every link known to quote into header's
// collection.
func (d *Doc) linksQuoting(header *TypeHeader) []*linkRegistration {
	if header == nil {
		return nil
	}
	return d.links.forTarget(header.AsParent())
}

// Link is the host-facing handle for a weak reference (spec.md §4.6).
type Link struct {
	doc   *Doc
	block *Block
}

// WrapLink returns a Link handle over an already-integrated Link block.
func WrapLink(doc *Doc, block *Block) *Link { return &Link{doc: doc, block: block} }

// Deref resolves a key-link to the currently-visible value under its
// target key. Returns (nil, false) if the link itself is tombstoned or
// the target entry is absent/fully tombstoned (spec.md §4.6).
func (l *Link) Deref() (any, bool) {
	if l.block.Deleted {
		return nil, false
	}
	lc := l.block.Content.(LinkContent)
	if !lc.IsKeyLink {
		return nil, false
	}
	history := l.doc.collections.mapHistory(lc.TargetParent, lc.Key)
	visible := visibleMapEntry(history)
	if visible == nil {
		return nil, false
	}
	values := visible.Content.Values()
	if len(values) == 0 {
		return nil, false
	}
	return resolveContentValue(l.doc, visible, values[len(values)-1]), true
}

// Unquote walks a range-link's quoted span and returns the currently
// visible sequence (spec.md §4.6). New blocks integrated between the
// link's endpoints after creation are included, since the walk follows
// live Right pointers rather than a snapshot.
func (l *Link) Unquote() []any {
	if l.block.Deleted {
		return nil
	}
	lc := l.block.Content.(LinkContent)
	if lc.IsKeyLink {
		return nil
	}
	return l.doc.unquoteRange(lc.Start, lc.End)
}

// Target describes what the link currently points at, for event
// payloads.
func (l *Link) Target() LinkTarget {
	lc := l.block.Content.(LinkContent)
	return LinkTarget{
		IsKeyLink: lc.IsKeyLink,
		Parent:    lc.TargetParent,
		Key:       lc.Key,
		Start:     lc.Start,
		End:       lc.End,
	}
}

// unquoteRange collects the visible values from start onward, skipping
// tombstones. It does not stop at end: a range link is open at the
// right (spec.md §4.6), so anything integrated after end — including a
// remote insert this replica only just received — is absorbed into the
// quote rather than excluded. end still matters for splitBoundaryAfter:
// it pins the boundary cleanly so a quote created mid-block can't
// accidentally swallow unrelated content that was already sitting to
// the right of it at quote-creation time.
func (d *Doc) unquoteRange(start, end ID) []any {
	startBlock, err := d.store.GetItem(start)
	if err != nil {
		return nil
	}
	d.splitBoundaryAfter(end)

	var out []any
	for b := startBlock; b != nil; b = b.Right {
		if !b.Deleted {
			for _, v := range b.Content.Values() {
				out = append(out, resolveContentValue(d, b, v))
			}
		}
	}
	return out
}

func blockCoversID(b *Block, id ID) bool {
	return b.ID.Client == id.Client && id.Clock >= b.ID.Clock && id.Clock < b.ID.Clock+b.Len
}

// QuoteRange builds a range LinkContent over a's [start, end) visible
// elements, resolved to ids rather than indices so the quote stays valid
// as unrelated edits shift surrounding positions.
func (a *Array) QuoteRange(start, end int) (LinkContent, error) {
	return quoteRange(a.header.Doc, a.header.AsParent(), start, end)
}

// QuoteRange builds a range LinkContent over t's [start, end) visible
// units.
func (t *Text) QuoteRange(start, end int) (LinkContent, error) {
	return quoteRange(t.header.Doc, t.header.AsParent(), start, end)
}

func quoteRange(doc *Doc, parent ParentRef, start, end int) (LinkContent, error) {
	if end <= start {
		return LinkContent{}, errOutOfBounds(end, start)
	}
	startID, err := seqIDAt(doc, parent, start)
	if err != nil {
		return LinkContent{}, err
	}
	endID, err := seqIDAt(doc, parent, end-1)
	if err != nil {
		return LinkContent{}, err
	}
	return LinkContent{Start: startID, End: endID}, nil
}

// QuoteKey builds a key LinkContent over m's entry at key. The link
// dereferences to whatever value is visible under key at read time, not
// the value at the moment the quote was taken.
func (m *Map) QuoteKey(key string) LinkContent {
	return LinkContent{IsKeyLink: true, TargetParent: m.header.AsParent(), Key: key}
}

// InsertLink splices target as a Link block into a at index.
func (a *Array) InsertLink(index int, target LinkContent) (*Link, error) {
	return insertLinkInSeq(a.header.Doc, a.header.AsParent(), index, target)
}

// InsertLink splices target as a Link block into t at index.
func (t *Text) InsertLink(index int, target LinkContent) (*Link, error) {
	return insertLinkInSeq(t.header.Doc, t.header.AsParent(), index, target)
}

func insertLinkInSeq(doc *Doc, parent ParentRef, index int, target LinkContent) (*Link, error) {
	var link *Link
	var opErr error
	doc.Transact(nil, func(tx *Transaction) {
		w := newSeqWalker(doc, parent)
		left, right, err := w.locateInsert(index)
		if err != nil {
			opErr = err
			return
		}
		block, err := tx.insertLocal(parent, nil, left, right, target)
		if err != nil {
			opErr = err
			return
		}
		link = WrapLink(doc, block)
		tx.recordRawChange(rawChange{parent: parent, index: index, inserts: []any{link}})
		w.cache.shift(index, 1)
	})
	return link, opErr
}

// SetLink assigns a Link quoting target to key, superseding any entry
// this replica previously wrote for key.
func (m *Map) SetLink(key string, target LinkContent) (*Link, error) {
	doc := m.header.Doc
	parent := m.header.AsParent()
	var link *Link
	var opErr error
	doc.Transact(nil, func(tx *Transaction) {
		old, _ := m.Get(key)
		m.tombstonePrevious(tx, key)
		block, err := tx.insertLocal(parent, &key, nil, nil, target)
		if err != nil {
			opErr = err
			return
		}
		link = WrapLink(doc, block)
		tx.recordRawChange(rawChange{parent: parent, isMap: true, key: key, oldValue: old, newValue: link})
	})
	return link, opErr
}

// splitBoundaryAfter ensures id is the last logical unit of whatever
// block currently contains it, splitting if a successor already exists
// locally. A future successor that hasn't integrated yet is simply not
// there to split on — it will naturally extend the quoted range once it
// arrives, which is exactly the "open at the right" behavior spec.md
// §4.6 calls out.
func (d *Doc) splitBoundaryAfter(id ID) {
	next := ID{Client: id.Client, Clock: id.Clock + 1}
	if next.Clock < d.store.NextClock(id.Client) {
		_, _ = d.store.GetItem(next)
	}
}
