package crdt

import "sort"

// StateVector summarizes, per client, the smallest clock a replica has
// NOT yet observed — i.e. max(clock+len) over every integrated block of
// that client. The single-byte value `[0]` is the canonical empty state
// vector on the wire (see codec_v1.go).
type StateVector map[uint64]uint32

// Clone returns a shallow copy (values are scalars, so this is a full
// copy in practice).
func (sv StateVector) Clone() StateVector {
	out := make(StateVector, len(sv))
	for k, v := range sv {
		out[k] = v
	}
	return out
}

// Get returns the next-unseen clock for client, 0 if never observed.
func (sv StateVector) Get(client uint64) uint32 { return sv[client] }

// Advance raises client's next-unseen clock to at least clock, never
// lowering it.
func (sv StateVector) Advance(client uint64, clock uint32) {
	if clock > sv[client] {
		sv[client] = clock
	}
}

// Clients returns client ids in ascending order, for deterministic
// encoding and diffing.
func (sv StateVector) Clients() []uint64 {
	out := make([]uint64, 0, len(sv))
	for c := range sv {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Merge takes the pointwise maximum of sv and other, matching vector
// clock join semantics.
func (sv StateVector) Merge(other StateVector) {
	for c, clock := range other {
		sv.Advance(c, clock)
	}
}
