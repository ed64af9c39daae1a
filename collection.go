package crdt

import "sync"

// mapSlot identifies one (parent, key) map-entry history: every block
// ever assigned to that key, regardless of visibility.
type mapSlot struct {
	parent ParentRef
	key    string
}

// collectionIndex is the doc-wide derived state the integration engine
// and the shared-type views read and mutate: the head of each
// sequence's (Array/Text/Xml) doubly-linked list, and the full history
// of blocks assigned to each map key (spec.md §4.2's map-entry rule
// requires scanning every historical entry, not just the latest
// physical write, to find the currently-visible one).
type collectionIndex struct {
	mu      sync.RWMutex
	heads   map[ParentRef]*Block
	entries map[mapSlot][]*Block
	caches  map[ParentRef]*positionCache
}

func newCollectionIndex() *collectionIndex {
	return &collectionIndex{
		heads:   make(map[ParentRef]*Block),
		entries: make(map[mapSlot][]*Block),
		caches:  make(map[ParentRef]*positionCache),
	}
}

func (c *collectionIndex) head(parent ParentRef) *Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.heads[parent]
}

func (c *collectionIndex) setHead(parent ParentRef, b *Block) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heads[parent] = b
}

func (c *collectionIndex) appendMapEntry(parent ParentRef, key string, b *Block) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot := mapSlot{parent: parent, key: key}
	c.entries[slot] = append(c.entries[slot], b)
}

func (c *collectionIndex) mapHistory(parent ParentRef, key string) []*Block {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Block(nil), c.entries[mapSlot{parent: parent, key: key}]...)
}

func (c *collectionIndex) mapKeys(parent ParentRef) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	seen := make(map[string]bool)
	var keys []string
	for slot := range c.entries {
		if slot.parent == parent && !seen[slot.key] {
			seen[slot.key] = true
			keys = append(keys, slot.key)
		}
	}
	return keys
}

// visibleMapEntry returns the currently-visible (non-deleted) block for
// (parent, key): the one with the largest ID under lexicographic
// (clock, client_id) order (spec.md §4.2).
func visibleMapEntry(history []*Block) *Block {
	var best *Block
	for _, b := range history {
		if b.Deleted {
			continue
		}
		if best == nil || best.ID.Less(b.ID) {
			best = b
		}
	}
	return best
}
