package crdt

// ContentKind tags the variant a Block's payload carries. Kept as a
// discrete enum rather than a shared base type: split rules, delta
// emission and clock accounting genuinely differ per variant, so a
// common-interface hierarchy would just be indirection (see DESIGN.md).
type ContentKind uint8

const (
	ContentDeleted ContentKind = iota
	ContentJSON
	ContentBinary
	ContentString
	ContentEmbed
	ContentFormat
	ContentType
	ContentMove
	ContentLink
	ContentDoc
)

func (k ContentKind) String() string {
	switch k {
	case ContentDeleted:
		return "deleted"
	case ContentJSON:
		return "json"
	case ContentBinary:
		return "binary"
	case ContentString:
		return "string"
	case ContentEmbed:
		return "embed"
	case ContentFormat:
		return "format"
	case ContentType:
		return "type"
	case ContentMove:
		return "move"
	case ContentLink:
		return "link"
	case ContentDoc:
		return "doc"
	default:
		return "unknown"
	}
}

// Content is a Block's payload. Every variant below implements it.
type Content interface {
	Kind() ContentKind
	// Len is the number of logical units the content occupies in its
	// client's clock space.
	Len() uint32
	// IndexLen is the number of visible index slots the content occupies
	// in its parent collection (0 for content that carries clock space
	// but no visible position, e.g. Format markers).
	IndexLen() int
	// Splittable reports whether Split is supported.
	Splittable() bool
	// Split divides content at logical offset `at` (0 < at < Len()).
	Split(at uint32) (left, right Content)
	// Values returns the visible items, one per index slot, for content
	// that occupies index space (used by Array/Text iteration and delta
	// generation). Empty for content with IndexLen()==0.
	Values() []any
}

// DeletedContent is a tombstone-only block: either produced by GC
// squashing a deleted block's payload, or present from the start when a
// remote peer only sent a compacted delete-set without payload.
type DeletedContent struct{ DelLen uint32 }

func (c DeletedContent) Kind() ContentKind   { return ContentDeleted }
func (c DeletedContent) Len() uint32         { return c.DelLen }
func (c DeletedContent) IndexLen() int       { return 0 }
func (c DeletedContent) Splittable() bool    { return true }
func (c DeletedContent) Values() []any       { return nil }
func (c DeletedContent) Split(at uint32) (Content, Content) {
	return DeletedContent{DelLen: at}, DeletedContent{DelLen: c.DelLen - at}
}

// JSONContent holds a run of arbitrary JSON-serializable values, one per
// logical unit — e.g. array items pushed in a single call.
type JSONContent struct{ Items []any }

func (c JSONContent) Kind() ContentKind { return ContentJSON }
func (c JSONContent) Len() uint32       { return uint32(len(c.Items)) }
func (c JSONContent) IndexLen() int     { return len(c.Items) }
func (c JSONContent) Splittable() bool  { return true }
func (c JSONContent) Values() []any     { return c.Items }
func (c JSONContent) Split(at uint32) (Content, Content) {
	return JSONContent{Items: append([]any(nil), c.Items[:at]...)},
		JSONContent{Items: append([]any(nil), c.Items[at:]...)}
}

// BinaryContent holds raw bytes, one byte per logical unit.
type BinaryContent struct{ Data []byte }

func (c BinaryContent) Kind() ContentKind { return ContentBinary }
func (c BinaryContent) Len() uint32       { return uint32(len(c.Data)) }
func (c BinaryContent) IndexLen() int     { return len(c.Data) }
func (c BinaryContent) Splittable() bool  { return true }
func (c BinaryContent) Values() []any {
	vs := make([]any, len(c.Data))
	for i, b := range c.Data {
		vs[i] = b
	}
	return vs
}
func (c BinaryContent) Split(at uint32) (Content, Content) {
	return BinaryContent{Data: append([]byte(nil), c.Data[:at]...)},
		BinaryContent{Data: append([]byte(nil), c.Data[at:]...)}
}

// StringContent holds a run of UTF-8 text, one code point per logical
// unit. Runes are cached so Split doesn't re-decode UTF-8 each time.
type StringContent struct {
	runes []rune
}

// NewStringContent builds a StringContent from a UTF-8 string.
func NewStringContent(s string) StringContent {
	return StringContent{runes: []rune(s)}
}

func (c StringContent) Kind() ContentKind { return ContentString }
func (c StringContent) Len() uint32       { return uint32(len(c.runes)) }
func (c StringContent) IndexLen() int     { return len(c.runes) }
func (c StringContent) Splittable() bool  { return true }
func (c StringContent) Values() []any {
	vs := make([]any, len(c.runes))
	for i, r := range c.runes {
		vs[i] = string(r)
	}
	return vs
}
func (c StringContent) String() string { return string(c.runes) }
func (c StringContent) Split(at uint32) (Content, Content) {
	left := append([]rune(nil), c.runes[:at]...)
	right := append([]rune(nil), c.runes[at:]...)
	return StringContent{runes: left}, StringContent{runes: right}
}

// EmbedContent is a single opaque value occupying exactly one index
// slot; it cannot be split (e.g. an image, a nested rich object).
type EmbedContent struct{ Value any }

func (c EmbedContent) Kind() ContentKind               { return ContentEmbed }
func (c EmbedContent) Len() uint32                     { return 1 }
func (c EmbedContent) IndexLen() int                   { return 1 }
func (c EmbedContent) Splittable() bool                { return false }
func (c EmbedContent) Values() []any                   { return []any{c.Value} }
func (c EmbedContent) Split(uint32) (Content, Content) { panic("crdt: EmbedContent is not splittable") }

// FormatContent marks a text formatting boundary: it occupies clock
// space (for ordering/origin purposes) but no index space.
type FormatContent struct {
	Key   string
	Value any
}

func (c FormatContent) Kind() ContentKind               { return ContentFormat }
func (c FormatContent) Len() uint32                     { return 1 }
func (c FormatContent) IndexLen() int                   { return 0 }
func (c FormatContent) Splittable() bool                { return false }
func (c FormatContent) Values() []any                   { return nil }
func (c FormatContent) Split(uint32) (Content, Content) { panic("crdt: FormatContent is not splittable") }

// TypeContent introduces a nested shared collection (Array, Map, Text,
// XmlElement, XmlFragment, XmlText). The block hosting it acts as the
// collection's parent anchor.
type TypeContent struct{ Header *TypeHeader }

func (c TypeContent) Kind() ContentKind               { return ContentType }
func (c TypeContent) Len() uint32                     { return 1 }
func (c TypeContent) IndexLen() int                   { return 1 }
func (c TypeContent) Splittable() bool                { return false }
func (c TypeContent) Values() []any                   { return []any{c.Header} }
func (c TypeContent) Split(uint32) (Content, Content) { panic("crdt: TypeContent is not splittable") }

// MoveContent records the move of a previously-integrated range to a
// new position; see move.go for conflict resolution.
type MoveContent struct {
	Start ID
	End   ID
}

func (c MoveContent) Kind() ContentKind               { return ContentMove }
func (c MoveContent) Len() uint32                     { return 1 }
func (c MoveContent) IndexLen() int                   { return 0 }
func (c MoveContent) Splittable() bool                { return false }
func (c MoveContent) Values() []any                   { return nil }
func (c MoveContent) Split(uint32) (Content, Content) { panic("crdt: MoveContent is not splittable") }

// LinkContent is a weak reference ("quotation"); see weaklink.go. A
// range link quotes [Start, End] within a sequence (Array/Text/Xml); a
// key link quotes a single Map entry by (TargetParent, Key).
type LinkContent struct {
	IsKeyLink bool

	// Range link fields.
	Start ID
	End   ID

	// Key link fields.
	TargetParent ParentRef
	Key          string
}

func (c LinkContent) Kind() ContentKind               { return ContentLink }
func (c LinkContent) Len() uint32                     { return 1 }
func (c LinkContent) IndexLen() int                   { return 1 }
func (c LinkContent) Splittable() bool                { return false }
func (c LinkContent) Values() []any                   { return []any{c} }
func (c LinkContent) Split(uint32) (Content, Content) { panic("crdt: LinkContent is not splittable") }

// DocContent embeds a subdocument handle.
type DocContent struct {
	GUID    string
	Options DocOptions
}

func (c DocContent) Kind() ContentKind               { return ContentDoc }
func (c DocContent) Len() uint32                     { return 1 }
func (c DocContent) IndexLen() int                   { return 1 }
func (c DocContent) Splittable() bool                { return false }
func (c DocContent) Values() []any                   { return []any{c} }
func (c DocContent) Split(uint32) (Content, Content) { panic("crdt: DocContent is not splittable") }
