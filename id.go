package crdt

import "fmt"

// ID identifies a single logical unit of content within a document: the
// client that produced it and its position in that client's monotonically
// increasing clock. A Block occupies a contiguous range [ID.Clock,
// ID.Clock+Len) of its client's clock space.
type ID struct {
	Client uint64
	Clock  uint32
}

// String renders the id as "client#clock", useful in logs and panics.
func (id ID) String() string {
	return fmt.Sprintf("%d#%d", id.Client, id.Clock)
}

// Less orders ids first by clock, then by client — the lexicographic
// (clock, client_id) order used to rank map-entry visibility and
// concurrent moves. YATA sequence integration breaks its ties by client
// id alone (see integrateSequence), not by this order.
func (id ID) Less(other ID) bool {
	if id.Clock != other.Clock {
		return id.Clock < other.Clock
	}
	return id.Client < other.Client
}

// After reports whether id is the unit immediately following other
// within the same client's clock space.
func (id ID) After(other ID, otherLen uint32) bool {
	return id.Client == other.Client && id.Clock == other.Clock+otherLen
}

// Within reports whether id is exactly (client, clock); it takes no
// length and does not test a range.
func (id ID) Within(client uint64, clock uint32) bool {
	return id.Client == client && id.Clock == clock
}

// idWithOffset returns the id of the logical unit `offset` past id.
func idWithOffset(id ID, offset uint32) ID {
	return ID{Client: id.Client, Clock: id.Clock + offset}
}
