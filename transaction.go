package crdt

// Transaction is the sole authority for mutations during its scope
// (spec.md §4.3). Shared-type handles append blocks and extend the
// delete-set through the Transaction; nothing mutates the Doc outside
// one.
type Transaction struct {
	doc    *Doc
	Origin any

	beforeState StateVector
	deleteSet   *IdSet
	touched     map[uint64]bool
	newBlocks   map[uint64][]*Block

	rawChanges map[ParentRef][]rawChange

	subdocsAdded   []*Doc
	subdocsRemoved []*Doc

	committingObservers bool
}

func newTransaction(doc *Doc, origin any) *Transaction {
	return &Transaction{
		doc:         doc,
		Origin:      origin,
		beforeState: doc.store.StateVector(),
		deleteSet:   NewIdSet(),
		touched:     make(map[uint64]bool),
		newBlocks:   make(map[uint64][]*Block),
		rawChanges:  make(map[ParentRef][]rawChange),
	}
}

// nextID allocates the next id this transaction's doc's client would
// produce, without yet reserving it (reservation happens on Append
// inside integrate).
func (tx *Transaction) nextID() ID {
	return ID{Client: tx.doc.ClientID(), Clock: tx.doc.store.NextClock(tx.doc.ClientID())}
}

// insertLocal builds a new block carrying content, integrates it
// immediately (so the local reader observes its own write per spec.md
// §5 ordering guarantee a), and records it for the update payload and
// change-event computation.
func (tx *Transaction) insertLocal(parent ParentRef, parentSub *string, left, right *Block, content Content) (*Block, error) {
	block := &Block{
		ID:        tx.nextID(),
		Len:       content.Len(),
		Parent:    parent,
		ParentSub: parentSub,
		Content:   content,
	}
	if left != nil {
		id := left.LastID()
		block.OriginLeft = &id
	}
	if right != nil {
		id := right.ID
		block.OriginRight = &id
	}

	missing, err := tx.doc.integrator.integrate(block)
	if err != nil {
		return nil, err
	}
	if missing != nil {
		// A local insert's origins are always already-local blocks; a
		// missing dependency here indicates an engine bug, not a normal
		// condition, so it is not silently buffered.
		return nil, errMalformedUpdate("local insert referenced an unresolved dependency")
	}

	tx.touched[block.ID.Client] = true
	tx.newBlocks[block.ID.Client] = append(tx.newBlocks[block.ID.Client], block)
	return block, nil
}

// applyRemoteBlock integrates a block decoded from the wire. A missing
// dependency is reported back to the caller (the codec's apply loop),
// which buffers it in the doc's pending queue rather than failing.
func (tx *Transaction) applyRemoteBlock(block *Block) (missing *ID, err error) {
	missing, err = tx.doc.integrator.integrate(block)
	if err != nil || missing != nil {
		return missing, err
	}
	// Local markers were not shifted for this remote unit.
	tx.doc.collections.posCache(block.Parent).invalidate()
	tx.touched[block.ID.Client] = true
	tx.newBlocks[block.ID.Client] = append(tx.newBlocks[block.ID.Client], block)
	return nil, nil
}

// recordDelete extends the delete-set with [id.Clock, id.Clock+length)
// for id.Client. The raw change for event synthesis is recorded by the
// caller through recordRawChange.
func (tx *Transaction) recordDelete(id ID, length uint32) {
	tx.deleteSet.Add(id.Client, id.Clock, length)
}

func (tx *Transaction) recordRawChange(c rawChange) {
	tx.rawChanges[c.parent] = append(tx.rawChanges[c.parent], c)
}

// markDeletedRange splits (if necessary) and marks Deleted every block
// covering [clock, clock+length) for client. It returns nothing and is
// idempotent: marking an already-deleted block again changes nothing.
func (tx *Transaction) markDeletedRange(client uint64, clock, length uint32) {
	if length == 0 {
		return
	}
	store := tx.doc.store
	end := clock + length
	// Force boundaries so the range splits cleanly onto block edges.
	if _, err := store.GetItem(ID{Client: client, Clock: clock}); err != nil {
		return
	}
	if end < store.NextClock(client) {
		if _, err := store.GetItem(ID{Client: client, Clock: end}); err != nil {
			return
		}
	}
	for _, b := range store.Blocks(client) {
		if b.ID.Clock >= clock && b.ID.Clock < end {
			b.Deleted = true
		}
	}
	tx.touched[client] = true
}

// applyDeleteSet marks every block the set covers as Deleted. Used both
// for the local delete-set at commit time and for a remote delete-set
// decoded off the wire, applied after all of that update's blocks have
// integrated (spec.md §4.5 "Decode-and-apply").
func (tx *Transaction) applyDeleteSet(ds *IdSet) {
	for _, client := range ds.Clients() {
		for _, r := range ds.Ranges(client) {
			tx.markDeletedRange(client, r.Start, r.Len())
		}
	}
}

// commit runs the pipeline in spec.md §4.3.
func (tx *Transaction) commit() {
	doc := tx.doc

	// 1. Coalesce the delete-set.
	tx.deleteSet.Coalesce()

	// 2. Mark every block the (now coalesced) delete-set covers.
	tx.applyDeleteSet(tx.deleteSet)

	// 2b. GC: squash tombstoned blocks' payloads once they're no longer
	// needed to anchor a nested type or subdocument.
	if doc.opts.GC {
		tx.gcTombstones()
	}

	// 3. Merge adjacent blocks over touched clients.
	for client := range tx.touched {
		tx.mergeClientRuns(client)
	}

	// 4 & 5. Compute and dispatch per-collection change events.
	tx.committingObservers = true
	tx.dispatchChangeEvents()
	tx.committingObservers = false

	// 6. after_transaction event.
	added := make(map[uint64]ClockRange)
	for client, blocks := range tx.newBlocks {
		if len(blocks) == 0 {
			continue
		}
		added[client] = ClockRange{Start: blocks[0].ID.Clock, End: tx.afterClockFor(client)}
	}
	doc.onAfterTransaction.emit(AfterTransactionEvent{
		Doc:         doc,
		Transaction: tx,
		Added:       added,
		Deleted:     tx.deleteSet.Clone(),
	})

	if len(tx.subdocsAdded) > 0 || len(tx.subdocsRemoved) > 0 {
		doc.onSubdocs.emit(SubdocsEvent{Added: tx.subdocsAdded, Removed: tx.subdocsRemoved})
	}

	// 7. Encode and dispatch update payloads, if there is anything new.
	if tx.hasNewBlocks() {
		v1 := EncodeUpdateV1(tx.newBlocks, tx.deleteSet)
		doc.onUpdate.emit(UpdateEvent{Update: v1, Origin: tx.Origin, Doc: doc})
		v2 := EncodeUpdateV2(tx.newBlocks, tx.deleteSet)
		doc.onUpdateV2.emit(UpdateEvent{Update: v2, Origin: tx.Origin, Doc: doc})
	}
}

func (tx *Transaction) hasNewBlocks() bool {
	for _, bs := range tx.newBlocks {
		if len(bs) > 0 {
			return true
		}
	}
	return false
}

func (tx *Transaction) afterClockFor(client uint64) uint32 {
	return tx.doc.store.NextClock(client)
}

func (tx *Transaction) mergeClientRuns(client uint64) {
	blocks := tx.doc.store.Blocks(client)
	for i := 0; i+1 < len(blocks); i++ {
		if tx.doc.store.MergeAdjacent(blocks[i], blocks[i+1]) {
			// The absorbed block leaves the list; drop markers that may
			// still reference it.
			tx.doc.collections.posCache(blocks[i].Parent).invalidate()
			// Re-fetch: indices shifted by one after a merge.
			blocks = tx.doc.store.Blocks(client)
			i--
		}
	}
}

// gcTombstones squashes the content of fully-tombstoned blocks to a
// DeletedContent stub, freeing the payload while preserving clock space
// and YATA origin resolution (spec.md §3 invariant 6). Type/Doc blocks
// are never squashed: children and subdocuments resolve their parent by
// this block's id for as long as the document exists.
func (tx *Transaction) gcTombstones() {
	for client := range tx.touched {
		for _, b := range tx.doc.store.Blocks(client) {
			if !b.Deleted {
				continue
			}
			switch b.Content.Kind() {
			case ContentType, ContentDoc, ContentDeleted:
				continue
			default:
				b.Content = DeletedContent{DelLen: b.Len}
			}
		}
	}
}

// dispatchChangeEvents builds and fires the ChangeEvent for every
// collection touched this transaction, then bubbles each one through
// deep observers on every ancestor and every link quoting in.
func (tx *Transaction) dispatchChangeEvents() {
	for parent, changes := range tx.rawChanges {
		header, ok := tx.doc.branches.Header(parent)
		if !ok {
			continue
		}
		evt := tx.buildEvent(header, changes)
		header.shallow.emit(evt)
		propagateDeep(tx.doc, header, evt, make(map[*TypeHeader]bool))
	}
}

func (tx *Transaction) buildEvent(header *TypeHeader, changes []rawChange) ChangeEvent {
	evt := ChangeEvent{Target: header, Transaction: tx}
	if header.Kind == TypeMap {
		evt.Keys = buildKeyChanges(changes)
		return evt
	}
	evt.Delta = buildDelta(changes)
	return evt
}
