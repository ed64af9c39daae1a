package crdt

import (
	"sort"
	"sync"
)

// errMissingDependency is a sentinel, not an EngineError: spec.md §7
// explicitly says IntegrationDependency is NOT an error, it is buffered.
// It never escapes the package — integrate.go turns it into a missing id,
// and codec.go's applyDecoded enqueues the block under that id instead of
// surfacing a failure to the host.
type missingDependency struct{ id ID }

func (missingDependency) Error() string { return "dependency not yet integrated" }

// clientChain holds one client's blocks, ordered and gap-free per
// spec.md §3 invariant 1: blocks[i].EndID() == blocks[i+1].ID for all i.
type clientChain struct {
	blocks []*Block
}

func (c *clientChain) nextClock() uint32 {
	if len(c.blocks) == 0 {
		return 0
	}
	last := c.blocks[len(c.blocks)-1]
	return last.ID.Clock + last.Len
}

// find returns the index of the block covering clock, or -1.
func (c *clientChain) find(clock uint32) int {
	i := sort.Search(len(c.blocks), func(i int) bool {
		return c.blocks[i].ID.Clock > clock
	})
	if i == 0 {
		return -1
	}
	idx := i - 1
	if c.blocks[idx].Covers(clock) {
		return idx
	}
	return -1
}

// BlockStore is the append-only, content-addressed log of Blocks: a
// mapping client_id -> ordered sequence of blocks (spec.md §4.1), plus
// the split/merge/get_item operations the rest of the engine is built
// on.
type BlockStore struct {
	mu      sync.RWMutex
	clients map[uint64]*clientChain
}

func newBlockStore() *BlockStore {
	return &BlockStore{clients: make(map[uint64]*clientChain)}
}

// NextClock returns the next free clock for client.
func (s *BlockStore) NextClock(client uint64) uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextClockLocked(client)
}

func (s *BlockStore) nextClockLocked(client uint64) uint32 {
	c, ok := s.clients[client]
	if !ok {
		return 0
	}
	return c.nextClock()
}

// StateVector computes the current state vector: max(clock+len) per
// client over every integrated block.
func (s *BlockStore) StateVector() StateVector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sv := make(StateVector, len(s.clients))
	for client, chain := range s.clients {
		sv[client] = chain.nextClock()
	}
	return sv
}

// Append adds block to the tail of its client's chain. Rejects blocks
// that don't start exactly at the client's next free clock (spec.md
// §4.1 append contract).
func (s *BlockStore) Append(block *Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[block.ID.Client]
	if !ok {
		c = &clientChain{}
		s.clients[block.ID.Client] = c
	}
	if block.ID.Clock != c.nextClock() {
		return errMalformedUpdate("append: block does not start at client's next free clock")
	}
	c.blocks = append(c.blocks, block)
	return nil
}

// GetItem resolves id to the block currently containing that clock,
// splitting the containing block in place if id falls strictly inside
// it (spec.md §4.1). Returns a missingDependency value (not wrapped
// as an EngineError) if the id has not been integrated yet.
func (s *BlockStore) GetItem(id ID) (*Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getItemLocked(id)
}

func (s *BlockStore) getItemLocked(id ID) (*Block, error) {
	c, ok := s.clients[id.Client]
	if !ok || id.Clock >= c.nextClock() {
		return nil, missingDependency{id: id}
	}
	idx := c.find(id.Clock)
	if idx < 0 {
		return nil, missingDependency{id: id}
	}
	b := c.blocks[idx]
	if b.ID.Clock == id.Clock {
		return b, nil
	}
	offset := id.Clock - b.ID.Clock
	right := s.splitLocked(c, idx, offset)
	return right, nil
}

// splitLocked splits c.blocks[idx] at logical offset `at`, inserting the
// right half immediately after it and relinking the doubly-linked list
// the right half now participates in. Both halves retain the original
// origin_left/origin_right per spec.md §4.1.
func (s *BlockStore) splitLocked(c *clientChain, idx int, at uint32) *Block {
	left := c.blocks[idx]
	leftContent, rightContent := left.Content.Split(at)

	right := &Block{
		ID:          idWithOffset(left.ID, at),
		Len:         left.Len - at,
		OriginLeft:  left.OriginLeft,
		OriginRight: left.OriginRight,
		Parent:      left.Parent,
		ParentSub:   left.ParentSub,
		Content:     rightContent,
		Deleted:     left.Deleted,
	}

	left.Len = at
	left.Content = leftContent

	right.Right = left.Right
	right.Left = left
	if left.Right != nil {
		left.Right.Left = right
	}
	left.Right = right

	tail := append([]*Block{right}, c.blocks[idx+1:]...)
	c.blocks = append(c.blocks[:idx+1], tail...)

	return right
}

// MergeAdjacent opportunistically coalesces two same-client, clock- and
// list-adjacent blocks into one, for compaction only — it must never
// alter observable state (spec.md §4.1). Returns true if merged.
func (s *BlockStore) MergeAdjacent(a, b *Block) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mergeAdjacentLocked(a, b)
}

func (s *BlockStore) mergeAdjacentLocked(a, b *Block) bool {
	if a == nil || b == nil || a == b {
		return false
	}
	if a.ID.Client != b.ID.Client || b.ID.Clock != a.ID.Clock+a.Len {
		return false
	}
	if a.Deleted != b.Deleted || a.Parent != b.Parent {
		return false
	}
	if (a.ParentSub == nil) != (b.ParentSub == nil) {
		return false
	}
	if a.ParentSub != nil && *a.ParentSub != *b.ParentSub {
		return false
	}
	if a.Right != b || b.Left != a {
		return false
	}
	if !originsEqual(b.OriginRight, a.OriginRight) {
		return false
	}
	merged, ok := mergeContent(a.Content, b.Content)
	if !ok {
		return false
	}

	c, exists := s.clients[a.ID.Client]
	if !exists {
		return false
	}
	idx := c.find(a.ID.Clock)
	if idx < 0 || idx+1 >= len(c.blocks) || c.blocks[idx] != a || c.blocks[idx+1] != b {
		return false
	}

	a.Len += b.Len
	a.Content = merged
	a.Right = b.Right
	if b.Right != nil {
		b.Right.Left = a
	}
	c.blocks = append(c.blocks[:idx+1], c.blocks[idx+2:]...)
	return true
}

func originsEqual(a, b *ID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func mergeContent(a, b Content) (Content, bool) {
	if a.Kind() != b.Kind() {
		return nil, false
	}
	switch ac := a.(type) {
	case StringContent:
		bc := b.(StringContent)
		return StringContent{runes: append(append([]rune(nil), ac.runes...), bc.runes...)}, true
	case JSONContent:
		bc := b.(JSONContent)
		return JSONContent{Items: append(append([]any(nil), ac.Items...), bc.Items...)}, true
	case BinaryContent:
		bc := b.(BinaryContent)
		return BinaryContent{Data: append(append([]byte(nil), ac.Data...), bc.Data...)}, true
	case DeletedContent:
		bc := b.(DeletedContent)
		return DeletedContent{DelLen: ac.DelLen + bc.DelLen}, true
	default:
		return nil, false
	}
}

// Blocks returns every block for client, in order, for GC/compaction
// passes and for the encode-from-state-vector codec path.
func (s *BlockStore) Blocks(client uint64) []*Block {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clients[client]
	if !ok {
		return nil
	}
	out := make([]*Block, len(c.blocks))
	copy(out, c.blocks)
	return out
}

// Clients returns every client id with at least one block, ascending.
func (s *BlockStore) Clients() []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uint64, 0, len(s.clients))
	for c := range s.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DeleteSet reconstructs the document's full tombstone set by scanning
// every block's Deleted flag, rather than tracking a second running copy
// alongside it. This is what encode_state_as_update (spec.md §4.5) needs
// to hand a syncing replica: the complete deletion history, not just the
// deletions made by the transaction that happens to be committing, since
// a remote peer may already hold an undeleted copy of a block this
// replica tombstoned in some earlier, already-acknowledged transaction.
func (s *BlockStore) DeleteSet() *IdSet {
	ds := NewIdSet()
	for _, client := range s.Clients() {
		for _, b := range s.Blocks(client) {
			if b.Deleted {
				ds.Add(b.ID.Client, b.ID.Clock, b.Len)
			}
		}
	}
	ds.Coalesce()
	return ds
}
