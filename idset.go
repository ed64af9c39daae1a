package crdt

import (
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// ClockRange is a half-open [Start, End) clock interval.
type ClockRange struct {
	Start uint32
	End   uint32
}

func (r ClockRange) Len() uint32 { return r.End - r.Start }

// IdSet is a compact, coalesced per-client set of clock ranges — the
// representation used for delete-sets (a transaction's, the store's, and
// the one carried by an update). The block store's split/merge decisions
// do not use it; they work from each client's ordered block chain.
//
// clock is a u32, exactly roaring's native element domain, so each
// client's range set is backed by a *roaring.Bitmap rather than a
// hand-rolled interval tree: RunOptimize gives the "maximally coalesced"
// invariant spec.md §3 requires for free, and the bitmap's Iterator
// reconstructs (clock, len) pairs cheaply for the wire codec.
type IdSet struct {
	mu      sync.RWMutex
	clients map[uint64]*roaring.Bitmap
}

// NewIdSet returns an empty set.
func NewIdSet() *IdSet {
	return &IdSet{clients: make(map[uint64]*roaring.Bitmap)}
}

// Add records [clock, clock+length) as present for client.
func (s *IdSet) Add(client uint64, clock, length uint32) {
	if length == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bm, ok := s.clients[client]
	if !ok {
		bm = roaring.New()
		s.clients[client] = bm
	}
	bm.AddRange(uint64(clock), uint64(clock)+uint64(length))
}

// AddID records a single id as present.
func (s *IdSet) AddID(id ID, length uint32) { s.Add(id.Client, id.Clock, length) }

// Contains reports whether clock is present for client.
func (s *IdSet) Contains(client uint64, clock uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bm, ok := s.clients[client]
	if !ok {
		return false
	}
	return bm.Contains(clock)
}

// ContainsRange reports whether the whole [clock, clock+length) range is
// present for client.
func (s *IdSet) ContainsRange(client uint64, clock, length uint32) bool {
	if length == 0 {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	bm, ok := s.clients[client]
	if !ok {
		return false
	}
	want := roaring.New()
	want.AddRange(uint64(clock), uint64(clock)+uint64(length))
	want.And(bm)
	return want.GetCardinality() == uint64(length)
}

// Clients returns the set of client ids with at least one recorded
// range, sorted ascending (deterministic iteration for the codec).
func (s *IdSet) Clients() []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]uint64, 0, len(s.clients))
	for c, bm := range s.clients {
		if !bm.IsEmpty() {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Ranges returns the coalesced, ascending clock ranges recorded for
// client.
func (s *IdSet) Ranges(client uint64) []ClockRange {
	s.mu.RLock()
	bm, ok := s.clients[client]
	s.mu.RUnlock()
	if !ok {
		return nil
	}
	return bitmapRanges(bm)
}

func bitmapRanges(bm *roaring.Bitmap) []ClockRange {
	bm.RunOptimize()
	var ranges []ClockRange
	it := bm.Iterator()
	var cur *ClockRange
	for it.HasNext() {
		v := it.Next()
		if cur != nil && v == cur.End {
			cur.End++
			continue
		}
		if cur != nil {
			ranges = append(ranges, *cur)
		}
		cur = &ClockRange{Start: v, End: v + 1}
	}
	if cur != nil {
		ranges = append(ranges, *cur)
	}
	return ranges
}

// Merge unions other into s, coalescing ranges per client.
func (s *IdSet) Merge(other *IdSet) {
	if other == nil {
		return
	}
	other.mu.RLock()
	snapshot := make(map[uint64]*roaring.Bitmap, len(other.clients))
	for c, bm := range other.clients {
		snapshot[c] = bm.Clone()
	}
	other.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for c, bm := range snapshot {
		existing, ok := s.clients[c]
		if !ok {
			s.clients[c] = bm
			continue
		}
		existing.Or(bm)
	}
}

// Coalesce runs RunOptimize over every client bitmap, guaranteeing the
// "maximally coalesced" invariant before the set is read or encoded.
func (s *IdSet) Coalesce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, bm := range s.clients {
		bm.RunOptimize()
	}
}

// IsEmpty reports whether the set has no recorded ranges at all.
func (s *IdSet) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, bm := range s.clients {
		if !bm.IsEmpty() {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (s *IdSet) Clone() *IdSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := NewIdSet()
	for c, bm := range s.clients {
		out.clients[c] = bm.Clone()
	}
	return out
}
