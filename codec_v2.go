package crdt

import "sort"

// EncodeUpdateV2 serializes newBlocks and ds in the columnar layout
// spec.md §6 calls for: parallel arrays (clients, delta-encoded clocks,
// lens, origin-presence flags, then origins and parent refs) followed by
// a single concatenated content stream, instead
// of v1's interleaved per-block records. Grouping same-typed fields
// together is what lets a real v2 implementation run-length/delta
// compress them; this engine does the grouping but leaves the
// varint-per-value encoding as-is rather than adding a second
// compression pass, since spec.md only requires the two layouts to be
// distinct and each self-delimiting, not byte-compatible with a
// specific existing implementation.
func EncodeUpdateV2(newBlocks map[uint64][]*Block, ds *IdSet) []byte {
	var flat []*Block
	clients := make([]uint64, 0, len(newBlocks))
	for c, bs := range newBlocks {
		if len(bs) > 0 {
			clients = append(clients, c)
		}
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i] < clients[j] })
	for _, c := range clients {
		flat = append(flat, newBlocks[c]...)
	}

	w := &wireWriter{}
	w.putUvarint(uint64(len(flat)))

	// Column 1: client ids.
	for _, b := range flat {
		w.putUvarint(b.ID.Client)
	}
	// Column 2: clocks, delta-encoded within each client's run (first
	// occurrence of a client encodes its absolute clock).
	lastClock := make(map[uint64]uint32)
	for _, b := range flat {
		if last, ok := lastClock[b.ID.Client]; ok {
			w.putUvarint(uint64(b.ID.Clock - last))
		} else {
			w.putUvarint(uint64(b.ID.Clock))
		}
		lastClock[b.ID.Client] = b.ID.Clock + b.Len
	}
	// Column 3: lens.
	for _, b := range flat {
		w.putUvarint(uint64(b.Len))
	}
	// Column 4: origin presence flags, run-length is left to the varint
	// encoding of repeated identical bytes compressing well under a
	// generic transport-level compressor; this engine does not implement
	// its own RLE pass.
	for _, b := range flat {
		flags := byte(0)
		if b.OriginLeft != nil {
			flags |= 1
		}
		if b.OriginRight != nil {
			flags |= 2
		}
		w.putByte(flags)
	}
	// Column 5: origins, parent refs.
	for _, b := range flat {
		if b.OriginLeft != nil {
			w.putID(*b.OriginLeft)
		}
		if b.OriginRight != nil {
			w.putID(*b.OriginRight)
		}
		writeParent(w, b.Parent, b.ParentSub)
	}
	// Content stream: concatenated payloads, self-delimiting per value
	// via the same writeContent used by v1.
	for _, b := range flat {
		_ = writeContent(w, b.Content)
	}

	writeDeleteSet(w, ds)
	return w.bytes()
}

// DecodeUpdateV2 parses bytes produced by EncodeUpdateV2.
func DecodeUpdateV2(data []byte) (*decodedUpdate, error) {
	r := newWireReader(data)
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	count := int(n)

	ids := make([]ID, count)
	lens := make([]uint32, count)
	flags := make([]byte, count)

	for i := 0; i < count; i++ {
		c, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		ids[i].Client = c
	}
	// Clocks are read as written (absolute for a client's first block, an
	// offset from the previous block's clock+len after that) and resolved
	// once the lens column is known.
	lastClock := make(map[uint64]uint32)
	for i := 0; i < count; i++ {
		v, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		ids[i].Clock = uint32(v)
	}
	for i := 0; i < count; i++ {
		v, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		lens[i] = uint32(v)
		client := ids[i].Client
		if last, ok := lastClock[client]; ok {
			ids[i].Clock += last
		}
		lastClock[client] = ids[i].Clock + lens[i]
	}
	for i := 0; i < count; i++ {
		f, err := r.byteVal()
		if err != nil {
			return nil, err
		}
		flags[i] = f
	}

	blocks := make([]*Block, count)
	for i := 0; i < count; i++ {
		b := &Block{ID: ids[i], Len: lens[i]}
		if flags[i]&1 != 0 {
			id, err := r.id()
			if err != nil {
				return nil, err
			}
			b.OriginLeft = &id
		}
		if flags[i]&2 != 0 {
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
		blocks[i] = b
	}
	for i := 0; i < count; i++ {
		content, err := readContent(r, blocks[i].Len)
		if err != nil {
			return nil, err
		}
		blocks[i].Content = content
	}

	ds, err := readDeleteSet(r)
	if err != nil {
		return nil, err
	}
	return &decodedUpdate{blocks: blocks, ds: ds}, nil
}

// ApplyUpdateV2 decodes and integrates a v2 update payload.
func (d *Doc) ApplyUpdateV2(data []byte, origin any) error {
	decoded, err := DecodeUpdateV2(data)
	if err != nil {
		return err
	}
	return applyDecoded(d, decoded.blocks, decoded.ds, origin)
}

// EncodeStateAsUpdateV2 is the v2-codec counterpart of
// EncodeStateAsUpdateV1.
func (d *Doc) EncodeStateAsUpdateV2(sv StateVector) []byte {
	byClient := make(map[uint64][]*Block)
	for _, client := range d.store.Clients() {
		known := sv[client]
		for _, b := range d.store.Blocks(client) {
			if b.ID.Clock+b.Len > known {
				byClient[client] = append(byClient[client], blockFrom(b, known))
			}
		}
	}
	return EncodeUpdateV2(byClient, d.store.DeleteSet())
}
