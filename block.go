package crdt

// TypeKind enumerates the shared-collection kinds a Branch can host.
type TypeKind uint8

const (
	TypeArray TypeKind = iota
	TypeMap
	TypeText
	TypeXmlElement
	TypeXmlFragment
	TypeXmlText
)

// TypeHeader is the metadata a Type content block carries for a nested
// (or root) shared collection: its kind, optional name (XML tag name or
// a root's registered name) and the id that anchors it as a parent.
type TypeHeader struct {
	Kind TypeKind
	Name string
	// Anchor is the block id hosting this header, or the zero ID for a
	// root collection (roots are addressed by name, not by block id).
	Anchor ID
	// Attributes holds XML-element attributes (kind == TypeXmlElement).
	Attributes map[string]any

	// Doc is the document this header's collection belongs to; used by
	// shared-type handles to reach the store/transaction (nil for a
	// preliminary, not-yet-attached handle).
	Doc *Doc

	isRoot  bool
	shallow *subscribers[ChangeEvent]
	deep    *subscribers[ChangeEvent]
}

func newTypeHeader(kind TypeKind, name string, isRoot bool) *TypeHeader {
	return &TypeHeader{
		Kind:    kind,
		Name:    name,
		isRoot:  isRoot,
		shallow: newSubscribers[ChangeEvent](),
		deep:    newSubscribers[ChangeEvent](),
	}
}

// AsParent is this header's address as a ParentRef usable by blocks
// that live inside it.
func (h *TypeHeader) AsParent() ParentRef {
	if h.isRoot {
		return rootParent(h.Name)
	}
	return typeParent(h.Anchor)
}

// ParentRef locates the collection a Block belongs to: either a named
// root, or a nested type anchored at a Type content block's id.
type ParentRef struct {
	RootName string
	TypeID   ID
	isType   bool
}

func rootParent(name string) ParentRef      { return ParentRef{RootName: name} }
func typeParent(id ID) ParentRef            { return ParentRef{TypeID: id, isType: true} }
func (p ParentRef) IsRoot() bool            { return !p.isType }
func (p ParentRef) IsType() bool            { return p.isType }

// Block is the atomic, append-only unit of operation described in
// spec.md §3. Blocks are owned exclusively by the BlockStore; every
// other component references them by ID across transaction boundaries
// and only borrows a *Block live within a single transaction's scope.
type Block struct {
	ID  ID
	Len uint32

	OriginLeft  *ID
	OriginRight *ID

	// Left/Right are the block's current neighbors in its containing
	// collection's doubly-linked list. Derived state, recomputed by the
	// integration engine; nil at either end of the sequence.
	Left, Right *Block

	Parent    ParentRef
	ParentSub *string

	Content Content
	Deleted bool

	// movedFrom is not set or read anywhere; move.go's read-time overlay
	// works from the doc's moveIndex, not from a per-block field.
	movedFrom *ID
}

// EndID returns the id immediately past the block's range, i.e. the id
// the next block produced by this client would get.
func (b *Block) EndID() ID { return ID{Client: b.ID.Client, Clock: b.ID.Clock + b.Len} }

// Covers reports whether clock falls within this block's clock range.
func (b *Block) Covers(clock uint32) bool {
	return clock >= b.ID.Clock && clock < b.ID.Clock+b.Len
}

// LastID returns the id of the block's last logical unit.
func (b *Block) LastID() ID { return ID{Client: b.ID.Client, Clock: b.ID.Clock + b.Len - 1} }

// IsDeleted reports whether the block should be treated as invisible to
// readers (tombstoned).
func (b *Block) IsDeleted() bool { return b.Deleted }

// mapKey is a convenience accessor; ParentSub is always non-nil for
// blocks integrated as map entries.
func (b *Block) mapKey() string {
	if b.ParentSub == nil {
		return ""
	}
	return *b.ParentSub
}
