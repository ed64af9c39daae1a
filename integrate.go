package crdt

// pendingQueue buffers blocks whose origin_left, origin_right, or
// parent has not yet been integrated (spec.md §4.2 "Dependency
// handling"). This is explicitly not an error condition (§7,
// IntegrationDependency) — it drains transitively once the missing id
// arrives.
type pendingQueue struct {
	waiting map[ID][]*Block
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{waiting: make(map[ID][]*Block)}
}

func (q *pendingQueue) enqueue(missing ID, block *Block) {
	q.waiting[missing] = append(q.waiting[missing], block)
	log.Debugw("buffering block pending dependency", "block", block.ID, "missing", missing)
}

func (q *pendingQueue) take(id ID) []*Block {
	blocks := q.waiting[id]
	delete(q.waiting, id)
	return blocks
}

// integrator runs the YATA ordering discipline over a doc's collections
// (spec.md §4.2). It is stateless beyond the doc it closes over; all
// mutable state lives in the doc's BlockStore, BranchRegistry and
// collectionIndex.
type integrator struct {
	doc *Doc
}

// integrate attempts to place block into its parent collection. On
// success the block is appended to the BlockStore and threaded into the
// collection's linked list (or map-entry history). On a missing
// dependency it returns that dependency's id and does NOT append the
// block — the caller is responsible for buffering it.
func (in *integrator) integrate(block *Block) (missingID *ID, err error) {
	store := in.doc.store

	if block.OriginLeft != nil {
		if _, gerr := store.GetItem(*block.OriginLeft); gerr != nil {
			if md, ok := gerr.(missingDependency); ok {
				return &md.id, nil
			}
			return nil, gerr
		}
	}
	if block.OriginRight != nil {
		if _, gerr := store.GetItem(*block.OriginRight); gerr != nil {
			if md, ok := gerr.(missingDependency); ok {
				return &md.id, nil
			}
			return nil, gerr
		}
	}
	if block.Parent.IsType() {
		if _, ok := in.doc.branches.Header(block.Parent); !ok {
			return &block.Parent.TypeID, nil
		}
	}

	if block.ParentSub != nil {
		in.integrateMapEntry(block)
	} else {
		if err := in.integrateSequence(block); err != nil {
			return nil, err
		}
	}

	if err := store.Append(block); err != nil {
		return nil, err
	}

	if tc, ok := block.Content.(TypeContent); ok {
		in.doc.branches.RegisterNested(block.ID, tc.Header)
	}
	if _, ok := block.Content.(LinkContent); ok {
		in.doc.registerLink(block)
	}
	if _, ok := block.Content.(MoveContent); ok {
		in.doc.registerMove(block)
	}

	return nil, nil
}

// integrateMapEntry records block in the (parent, key) history. Map
// entries bypass YATA ordering entirely: visibility is resolved at read
// time by scanning the history for the largest non-deleted id (spec.md
// §4.2).
func (in *integrator) integrateMapEntry(block *Block) {
	in.doc.collections.appendMapEntry(block.Parent, *block.ParentSub, block)
}

// integrateSequence runs the YATA scan described in spec.md §4.2 over
// block's parent collection's linked list.
func (in *integrator) integrateSequence(block *Block) error {
	store := in.doc.store
	idx := in.doc.collections

	var ol, or *Block
	var err error
	if block.OriginLeft != nil {
		ol, err = store.GetItem(*block.OriginLeft)
		if err != nil {
			return err
		}
	}
	if block.OriginRight != nil {
		or, err = store.GetItem(*block.OriginRight)
		if err != nil {
			return err
		}
	}

	var c *Block
	if ol != nil {
		c = ol.Right
	} else {
		c = idx.head(block.Parent)
	}
	left := ol

	for c != nil && c != or {
		var cOL *Block
		if c.OriginLeft != nil {
			cOL, err = store.GetItem(*c.OriginLeft)
			if err != nil {
				return err
			}
		}
		if isLeftOf(cOL, ol) {
			break
		}
		// Same origin: the lower client id keeps the earlier position, so
		// stop scanning once c's client is the larger of the two.
		if cOL == ol && c.ID.Client > block.ID.Client {
			break
		}
		left = c
		c = c.Right
	}

	block.Left = left
	block.Right = c
	if left != nil {
		left.Right = block
	} else {
		idx.setHead(block.Parent, block)
	}
	if c != nil {
		c.Left = block
	}
	return nil
}

// isLeftOf reports whether a occupies an earlier position than b in
// parent's current total order. nil represents "start of sequence",
// which precedes everything. Implemented as a bounded walk from a
// rightward looking for b: correctness matters far more than asymptotic
// cost here, since the authoritative O(log N) requirement in spec.md
// §4.4 is about index-to-block resolution (see seq.go's seqWalker and
// poscache.go's search markers), not the YATA integration scan itself.
func isLeftOf(a, b *Block) bool {
	if a == b {
		return false
	}
	if a == nil {
		return true
	}
	if b == nil {
		return false
	}
	for n := a.Right; n != nil; n = n.Right {
		if n == b {
			return true
		}
	}
	return false
}
