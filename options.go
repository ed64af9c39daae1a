package crdt

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/google/uuid"
)

// DocOptions are the recognized options from spec.md §6.
type DocOptions struct {
	ClientID     uint64
	GUID         string
	CollectionID string
	// GC controls whether tombstoned blocks have their payload squashed
	// to a DeletedContent stub once no live reference can observe it.
	// Defaults to true.
	GC bool
	// AutoLoad and ShouldLoad are surfaced for subdocument handling;
	// the core engine does not implement lazy loading itself (that is
	// host/transport territory), it only threads the flags through.
	AutoLoad   bool
	ShouldLoad bool
}

// Option configures a Doc at construction time.
type Option func(*DocOptions)

// WithClientID pins a specific client id instead of a random one.
func WithClientID(id uint64) Option { return func(o *DocOptions) { o.ClientID = id } }

// WithGUID pins a specific guid instead of a random UUID.
func WithGUID(guid string) Option { return func(o *DocOptions) { o.GUID = guid } }

// WithCollectionID sets the collection id grouping subdocuments.
func WithCollectionID(id string) Option { return func(o *DocOptions) { o.CollectionID = id } }

// WithGC toggles tombstone content compaction. Default true.
func WithGC(enabled bool) Option { return func(o *DocOptions) { o.GC = enabled } }

// WithAutoLoad marks subdocuments as eagerly loaded.
func WithAutoLoad(enabled bool) Option { return func(o *DocOptions) { o.AutoLoad = enabled } }

// WithShouldLoad marks whether a subdocument should be loaded at all.
func WithShouldLoad(enabled bool) Option { return func(o *DocOptions) { o.ShouldLoad = enabled } }

func defaultOptions() DocOptions {
	return DocOptions{
		ClientID: randomClientID(),
		GUID:     uuid.NewString(),
		GC:       true,
	}
}

// randomClientID draws uniformly from the 53-bit integer range, per
// spec.md §6 ("client_id if omitted is drawn uniformly at random from
// u53") — the same range JavaScript's Number.MAX_SAFE_INTEGER allows a
// host binding to round-trip losslessly.
func randomClientID() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	v := binary.BigEndian.Uint64(buf[:])
	return v & ((uint64(1) << 53) - 1)
}
