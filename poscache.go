package crdt

import "sync"

// maxMarkers bounds how many search markers a sequence collection keeps,
// mirroring the small fixed-size marker cache Yjs keeps per Array/Text
// instance rather than a full secondary index: a handful of recently
// touched positions is enough to turn most Insert/Delete/Get calls into a
// short walk instead of a walk from the head (spec.md §4.4's O(log N)
// amortized requirement).
const maxMarkers = 8

// searchMarker remembers that `block` is the first block of a run whose
// first visible unit sits at visible index `index` within its
// collection, as of the last time it was refreshed.
type searchMarker struct {
	block *Block
	index int
}

// positionCache holds the search markers for one sequence collection.
// Mutations shift or evict markers so they never point past a
// structural change without being corrected first.
type positionCache struct {
	mu      sync.Mutex
	markers []*searchMarker
}

func newPositionCache() *positionCache { return &positionCache{} }

// nearest returns the cached marker at or closest before index, or nil if
// no marker sits at or before index. Callers walk right from the
// returned block to reach the exact position.
func (p *positionCache) nearest(index int) *searchMarker {
	p.mu.Lock()
	defer p.mu.Unlock()
	var best *searchMarker
	bestDist := -1
	for _, m := range p.markers {
		d := index - m.index
		if d < 0 {
			continue
		}
		if bestDist == -1 || d < bestDist {
			best, bestDist = m, d
		}
	}
	return best
}

// remember records (or refreshes) a marker for block at index, evicting
// the oldest-added entry once the cache is full (refreshing an existing
// marker does not change its place in the eviction order).
func (p *positionCache) remember(block *Block, index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.markers {
		if m.block == block {
			m.index = index
			return
		}
	}
	if len(p.markers) >= maxMarkers {
		p.markers = p.markers[1:]
	}
	p.markers = append(p.markers, &searchMarker{block: block, index: index})
}

// shift adjusts every marker whose index is at or past `from` by delta,
// called after a local insert or delete changes how many visible units
// precede a given point in the sequence. For a delete (delta < 0), a
// marker inside the deleted range [from, from-delta) now points at a
// deleted block whose next visible unit sits at `from`, so it is set to
// `from`. A block split keeps its left half as the marked object, so the
// marker stays valid. Remote integration and commit-time merges drop the
// cache instead (see Transaction.applyRemoteBlock and mergeClientRuns).
func (p *positionCache) shift(from, delta int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.markers {
		switch {
		case delta < 0 && m.index >= from && m.index < from-delta:
			m.index = from
		case m.index >= from:
			m.index += delta
		}
	}
}

// invalidate drops every marker, used when a collection-wide structural
// change (e.g. a Move) makes incremental shifting unsafe to reason about.
func (p *positionCache) invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markers = nil
}

func (c *collectionIndex) posCache(parent ParentRef) *positionCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.caches == nil {
		c.caches = make(map[ParentRef]*positionCache)
	}
	pc, ok := c.caches[parent]
	if !ok {
		pc = newPositionCache()
		c.caches[parent] = pc
	}
	return pc
}
