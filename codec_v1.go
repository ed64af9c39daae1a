package crdt

import "sort"

// EncodeUpdateV1 serializes newBlocks and ds in the legacy, per-structure
// varint layout described in spec.md §6: a client-grouped block section
// followed by the delete-set.
func EncodeUpdateV1(newBlocks map[uint64][]*Block, ds *IdSet) []byte {
	w := &wireWriter{}
	clients := make([]uint64, 0, len(newBlocks))
	for c, bs := range newBlocks {
		if len(bs) > 0 {
			clients = append(clients, c)
		}
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i] < clients[j] })

	w.putUvarint(uint64(len(clients)))
	for _, c := range clients {
		blocks := newBlocks[c]
		w.putUvarint(c)
		w.putUvarint(uint64(len(blocks)))
		w.putUvarint(uint64(blocks[0].ID.Clock))
		for _, b := range blocks {
			writeBlockV1(w, b)
		}
	}
	writeDeleteSet(w, ds)
	return w.bytes()
}

func writeBlockV1(w *wireWriter, b *Block) {
	w.putUvarint(uint64(b.Len))
	flags := byte(0)
	if b.OriginLeft != nil {
		flags |= 1
	}
	if b.OriginRight != nil {
		flags |= 2
	}
	w.putByte(flags)
	if b.OriginLeft != nil {
		w.putID(*b.OriginLeft)
	}
	if b.OriginRight != nil {
		w.putID(*b.OriginRight)
	}
	writeParent(w, b.Parent, b.ParentSub)
	// writeContent ignores encoding errors from jsoniter on values the
	// host itself constructed; a value that fails to marshal here is a
	// host bug, not a wire condition, so it degrades to an empty content
	// blob rather than panicking mid-encode.
	_ = writeContent(w, b.Content)
}

// decodedUpdate is what DecodeUpdateV1/V2 return: the flat list of
// blocks in encounter order (already carrying correct IDs, derived from
// each client group's running clock) plus the trailing delete-set.
type decodedUpdate struct {
	blocks []*Block
	ds     *IdSet
}

// DecodeUpdateV1 parses bytes produced by EncodeUpdateV1.
func DecodeUpdateV1(data []byte) (*decodedUpdate, error) {
	r := newWireReader(data)
	numClients, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	var blocks []*Block
	for i := uint64(0); i < numClients; i++ {
		client, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		numBlocks, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		startClock, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		clock := uint32(startClock)
		for j := uint64(0); j < numBlocks; j++ {
			b, err := readBlockV1(r, client, clock)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, b)
			clock += b.Len
		}
	}
	ds, err := readDeleteSet(r)
	if err != nil {
		return nil, err
	}
	return &decodedUpdate{blocks: blocks, ds: ds}, nil
}

func readBlockV1(r *wireReader, client uint64, clock uint32) (*Block, error) {
	length, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	flags, err := r.byteVal()
	if err != nil {
		return nil, err
	}
	b := &Block{ID: ID{Client: client, Clock: clock}, Len: uint32(length)}
	if flags&1 != 0 {
		id, err := r.id()
		if err != nil {
			return nil, err
		}
		b.OriginLeft = &id
	}
	if flags&2 != 0 {
		id, err := r.id()
		if err != nil {
			return nil, err
		}
		b.OriginRight = &id
	}
	parent, sub, err := readParent(r)
	if err != nil {
		return nil, err
	}
	b.Parent = parent
	b.ParentSub = sub
	content, err := readContent(r, b.Len)
	if err != nil {
		return nil, err
	}
	b.Content = content
	return b, nil
}

// ApplyUpdateV1 decodes and integrates a v1 update payload.
func (d *Doc) ApplyUpdateV1(data []byte, origin any) error {
	decoded, err := DecodeUpdateV1(data)
	if err != nil {
		return err
	}
	return applyDecoded(d, decoded.blocks, decoded.ds, origin)
}

// EncodeStateAsUpdateV1 emits every unit whose clock lies at or above
// sv[client], for every client the doc knows about (spec.md §4.5
// encode_state_as_update). A block that starts below sv[client] but
// extends past it is sent as its trailing slice only (see blockFrom).
func (d *Doc) EncodeStateAsUpdateV1(sv StateVector) []byte {
	byClient := make(map[uint64][]*Block)
	for _, client := range d.store.Clients() {
		known := sv[client]
		for _, b := range d.store.Blocks(client) {
			if b.ID.Clock+b.Len > known {
				byClient[client] = append(byClient[client], blockFrom(b, known))
			}
		}
	}
	return EncodeUpdateV1(byClient, d.store.DeleteSet())
}

// blockFrom returns b itself when it starts at or after clock, and
// otherwise a detached copy of its units from clock onward whose
// origin-left is the unit just before clock. The store is not modified.
func blockFrom(b *Block, clock uint32) *Block {
	if clock <= b.ID.Clock {
		return b
	}
	offset := clock - b.ID.Clock
	_, right := b.Content.Split(offset)
	left := ID{Client: b.ID.Client, Clock: clock - 1}
	return &Block{ID: ID{Client: b.ID.Client, Clock: clock}, Len: b.Len - offset,
		OriginLeft: &left, OriginRight: b.OriginRight, Parent: b.Parent,
		ParentSub: b.ParentSub, Content: right, Deleted: b.Deleted}
}

// EncodeStateVector emits the doc's state vector in the `varuint
// num_clients, (client_id, next_clock)*` layout (spec.md §6). The
// single byte [0] is the canonical empty state vector, which this
// produces naturally when the doc has no clients yet.
func (d *Doc) EncodeStateVector() []byte {
	sv := d.StateVector()
	clients := sv.Clients()
	w := &wireWriter{}
	w.putUvarint(uint64(len(clients)))
	for _, c := range clients {
		w.putUvarint(c)
		w.putUvarint(uint64(sv[c]))
	}
	return w.bytes()
}

// DecodeStateVector parses bytes produced by EncodeStateVector.
func DecodeStateVector(data []byte) (StateVector, error) {
	r := newWireReader(data)
	numClients, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	sv := make(StateVector, numClients)
	for i := uint64(0); i < numClients; i++ {
		client, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		clock, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		sv[client] = uint32(clock)
	}
	return sv, nil
}
