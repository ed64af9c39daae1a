package crdt

import (
	"bytes"
	"encoding/binary"
	"io"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// wireWriter accumulates a v1/v2 update payload. A thin wrapper over
// bytes.Buffer rather than bufio: updates are built once in memory and
// handed to subscribers as a single []byte (spec.md §4.5).
type wireWriter struct{ buf bytes.Buffer }

func (w *wireWriter) putUvarint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	w.buf.Write(tmp[:n])
}

func (w *wireWriter) putBytes(b []byte) {
	w.putUvarint(uint64(len(b)))
	w.buf.Write(b)
}

func (w *wireWriter) putString(s string) { w.putBytes([]byte(s)) }

func (w *wireWriter) putByte(b byte) { w.buf.WriteByte(b) }

func (w *wireWriter) putID(id ID) {
	w.putUvarint(id.Client)
	w.putUvarint(uint64(id.Clock))
}

func (w *wireWriter) bytes() []byte { return w.buf.Bytes() }

// wireReader parses a v1/v2 update payload. Every method returns
// errMalformedUpdate on truncation or a bad length prefix, matching
// spec.md §7's MalformedUpdate contract ("store unchanged").
type wireReader struct{ buf *bytes.Reader }

func newWireReader(data []byte) *wireReader { return &wireReader{buf: bytes.NewReader(data)} }

func (r *wireReader) uvarint() (uint64, error) {
	v, err := binary.ReadUvarint(r.buf)
	if err != nil {
		return 0, errMalformedUpdate("truncated varint")
	}
	return v, nil
}

func (r *wireReader) bytesN() ([]byte, error) {
	n, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(r.buf.Len()) {
		return nil, errMalformedUpdate("length prefix exceeds remaining bytes")
	}
	out := make([]byte, n)
	if _, err := io.ReadFull(r.buf, out); err != nil {
		return nil, errMalformedUpdate("truncated byte string")
	}
	return out, nil
}

func (r *wireReader) string() (string, error) {
	b, err := r.bytesN()
	return string(b), err
}

func (r *wireReader) byteVal() (byte, error) {
	b, err := r.buf.ReadByte()
	if err != nil {
		return 0, errMalformedUpdate("truncated byte")
	}
	return b, nil
}

func (r *wireReader) id() (ID, error) {
	client, err := r.uvarint()
	if err != nil {
		return ID{}, err
	}
	clock, err := r.uvarint()
	if err != nil {
		return ID{}, err
	}
	return ID{Client: client, Clock: uint32(clock)}, nil
}

func (r *wireReader) remaining() int { return r.buf.Len() }

// Parent-ref flags shared by v1 and v2.
const (
	parentFlagIsType    = 1 << 0
	parentFlagHasSub    = 1 << 1
)

func writeParent(w *wireWriter, parent ParentRef, sub *string) {
	flags := byte(0)
	if parent.IsType() {
		flags |= parentFlagIsType
	}
	if sub != nil {
		flags |= parentFlagHasSub
	}
	w.putByte(flags)
	if parent.IsType() {
		w.putID(parent.TypeID)
	} else {
		w.putString(parent.RootName)
	}
	if sub != nil {
		w.putString(*sub)
	}
}

func readParent(r *wireReader) (ParentRef, *string, error) {
	flags, err := r.byteVal()
	if err != nil {
		return ParentRef{}, nil, err
	}
	var parent ParentRef
	if flags&parentFlagIsType != 0 {
		id, err := r.id()
		if err != nil {
			return ParentRef{}, nil, err
		}
		parent = typeParent(id)
	} else {
		name, err := r.string()
		if err != nil {
			return ParentRef{}, nil, err
		}
		parent = rootParent(name)
	}
	var sub *string
	if flags&parentFlagHasSub != 0 {
		s, err := r.string()
		if err != nil {
			return ParentRef{}, nil, err
		}
		sub = &s
	}
	return parent, sub, nil
}

// writeContent serializes a Content value's kind byte and payload.
// JSON-shaped payloads (JSON/Embed/Format values, DocContent options) go
// through jsoniter rather than a hand-rolled encoding, matching how
// other update-producing components in the retrieved pack defer to a
// JSON library for anything schema-free (see DESIGN.md).
func writeContent(w *wireWriter, c Content) error {
	w.putByte(byte(c.Kind()))
	switch v := c.(type) {
	case DeletedContent:
	case JSONContent:
		w.putUvarint(uint64(len(v.Items)))
		for _, item := range v.Items {
			b, err := json.Marshal(item)
			if err != nil {
				return err
			}
			w.putBytes(b)
		}
	case BinaryContent:
		w.putBytes(v.Data)
	case StringContent:
		w.putString(v.String())
	case EmbedContent:
		b, err := json.Marshal(v.Value)
		if err != nil {
			return err
		}
		w.putBytes(b)
	case FormatContent:
		w.putString(v.Key)
		b, err := json.Marshal(v.Value)
		if err != nil {
			return err
		}
		w.putBytes(b)
	case TypeContent:
		w.putByte(byte(v.Header.Kind))
		w.putString(v.Header.Name)
		attrs, err := json.Marshal(v.Header.Attributes)
		if err != nil {
			return err
		}
		w.putBytes(attrs)
	case MoveContent:
		w.putID(v.Start)
		w.putID(v.End)
	case LinkContent:
		flags := byte(0)
		if v.IsKeyLink {
			flags = 1
		}
		w.putByte(flags)
		if v.IsKeyLink {
			writeParent(w, v.TargetParent, nil)
			w.putString(v.Key)
		} else {
			w.putID(v.Start)
			w.putID(v.End)
		}
	case DocContent:
		w.putString(v.GUID)
		b, err := json.Marshal(v.Options)
		if err != nil {
			return err
		}
		w.putBytes(b)
	}
	return nil
}

// readContent parses a Content value of the given length, in logical
// units (needed to reconstruct DeletedContent/BinaryContent whose byte
// length isn't otherwise implied by the wire bytes alone).
func readContent(r *wireReader, length uint32) (Content, error) {
	kindByte, err := r.byteVal()
	if err != nil {
		return nil, err
	}
	switch ContentKind(kindByte) {
	case ContentDeleted:
		return DeletedContent{DelLen: length}, nil
	case ContentJSON:
		n, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		items := make([]any, n)
		for i := range items {
			b, err := r.bytesN()
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal(b, &items[i]); err != nil {
				return nil, errMalformedUpdate("bad json content item")
			}
		}
		return JSONContent{Items: items}, nil
	case ContentBinary:
		b, err := r.bytesN()
		if err != nil {
			return nil, err
		}
		return BinaryContent{Data: b}, nil
	case ContentString:
		s, err := r.string()
		if err != nil {
			return nil, err
		}
		return NewStringContent(s), nil
	case ContentEmbed:
		b, err := r.bytesN()
		if err != nil {
			return nil, err
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, errMalformedUpdate("bad embed content")
		}
		return EmbedContent{Value: v}, nil
	case ContentFormat:
		key, err := r.string()
		if err != nil {
			return nil, err
		}
		b, err := r.bytesN()
		if err != nil {
			return nil, err
		}
		var v any
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, errMalformedUpdate("bad format content")
		}
		return FormatContent{Key: key, Value: v}, nil
	case ContentType:
		kindByte, err := r.byteVal()
		if err != nil {
			return nil, err
		}
		name, err := r.string()
		if err != nil {
			return nil, err
		}
		attrBytes, err := r.bytesN()
		if err != nil {
			return nil, err
		}
		var attrs map[string]any
		if len(attrBytes) > 0 && string(attrBytes) != "null" {
			if err := json.Unmarshal(attrBytes, &attrs); err != nil {
				return nil, errMalformedUpdate("bad type attributes")
			}
		}
		h := newTypeHeader(TypeKind(kindByte), name, false)
		h.Attributes = attrs
		return TypeContent{Header: h}, nil
	case ContentMove:
		start, err := r.id()
		if err != nil {
			return nil, err
		}
		end, err := r.id()
		if err != nil {
			return nil, err
		}
		return MoveContent{Start: start, End: end}, nil
	case ContentLink:
		flags, err := r.byteVal()
		if err != nil {
			return nil, err
		}
		if flags&1 != 0 {
			target, _, err := readParent(r)
			if err != nil {
				return nil, err
			}
			key, err := r.string()
			if err != nil {
				return nil, err
			}
			return LinkContent{IsKeyLink: true, TargetParent: target, Key: key}, nil
		}
		start, err := r.id()
		if err != nil {
			return nil, err
		}
		end, err := r.id()
		if err != nil {
			return nil, err
		}
		return LinkContent{Start: start, End: end}, nil
	case ContentDoc:
		guid, err := r.string()
		if err != nil {
			return nil, err
		}
		b, err := r.bytesN()
		if err != nil {
			return nil, err
		}
		var opts DocOptions
		if err := json.Unmarshal(b, &opts); err != nil {
			return nil, errMalformedUpdate("bad doc content options")
		}
		return DocContent{GUID: guid, Options: opts}, nil
	default:
		return nil, errMalformedUpdate("unknown content kind")
	}
}

func writeDeleteSet(w *wireWriter, ds *IdSet) {
	if ds == nil {
		w.putUvarint(0)
		return
	}
	clients := ds.Clients()
	w.putUvarint(uint64(len(clients)))
	for _, c := range clients {
		ranges := ds.Ranges(c)
		w.putUvarint(c)
		w.putUvarint(uint64(len(ranges)))
		for _, rg := range ranges {
			w.putUvarint(uint64(rg.Start))
			w.putUvarint(uint64(rg.Len()))
		}
	}
}

func readDeleteSet(r *wireReader) (*IdSet, error) {
	ds := NewIdSet()
	numClients, err := r.uvarint()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < numClients; i++ {
		client, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		numRanges, err := r.uvarint()
		if err != nil {
			return nil, err
		}
		for j := uint64(0); j < numRanges; j++ {
			clock, err := r.uvarint()
			if err != nil {
				return nil, err
			}
			length, err := r.uvarint()
			if err != nil {
				return nil, err
			}
			ds.Add(client, uint32(clock), uint32(length))
		}
	}
	return ds, nil
}

// BlockSummary is one decoded block rendered for diagnostic inspection
// (cmd/ydoc-inspect); it is not consulted by the engine itself.
type BlockSummary struct {
	ID          ID
	Len         uint32
	Kind        ContentKind
	Parent      ParentRef
	ParentSub   *string
	OriginLeft  *ID
	OriginRight *ID
}

// UpdateSummary is a decoded update's shape, flattened for display
// rather than integration.
type UpdateSummary struct {
	Blocks    []BlockSummary
	DeleteSet map[uint64][]ClockRange
}

func summarizeDecoded(decoded *decodedUpdate) UpdateSummary {
	sum := UpdateSummary{DeleteSet: make(map[uint64][]ClockRange)}
	for _, b := range decoded.blocks {
		sum.Blocks = append(sum.Blocks, BlockSummary{
			ID:          b.ID,
			Len:         b.Len,
			Kind:        b.Content.Kind(),
			Parent:      b.Parent,
			ParentSub:   b.ParentSub,
			OriginLeft:  b.OriginLeft,
			OriginRight: b.OriginRight,
		})
	}
	if decoded.ds != nil {
		for _, c := range decoded.ds.Clients() {
			sum.DeleteSet[c] = decoded.ds.Ranges(c)
		}
	}
	return sum
}

// DescribeUpdateV1 decodes a v1 update payload without integrating it,
// for offline inspection.
func DescribeUpdateV1(data []byte) (UpdateSummary, error) {
	decoded, err := DecodeUpdateV1(data)
	if err != nil {
		return UpdateSummary{}, err
	}
	return summarizeDecoded(decoded), nil
}

// DescribeUpdateV2 decodes a v2 update payload without integrating it,
// for offline inspection.
func DescribeUpdateV2(data []byte) (UpdateSummary, error) {
	decoded, err := DecodeUpdateV2(data)
	if err != nil {
		return UpdateSummary{}, err
	}
	return summarizeDecoded(decoded), nil
}

// applyDecoded integrates every decoded block through a fresh
// transaction, draining the pending-dependency queue transitively as
// dependencies resolve, then applies the decoded delete-set (spec.md
// §4.5 "Decode-and-apply"). Shared by v1 and v2: only the byte layout
// differs between the two codecs, not the apply semantics.
func applyDecoded(doc *Doc, blocks []*Block, ds *IdSet, origin any) error {
	doc.Transact(origin, func(tx *Transaction) {
		queue := append([]*Block(nil), blocks...)
		for len(queue) > 0 {
			var next []*Block
			for _, b := range queue {
				missing, err := tx.applyRemoteBlock(b)
				if err != nil {
					log.Errorw("dropping malformed remote block", "error", err)
					continue
				}
				if missing != nil {
					doc.pending.enqueue(*missing, b)
					continue
				}
				// A dependency may name any unit of b, not only its first.
				for k := uint32(0); k < b.Len; k++ {
					next = append(next, doc.pending.take(idWithOffset(b.ID, k))...)
				}
			}
			queue = next
		}
		tx.applyDeleteSet(ds)
	})
	return nil
}
