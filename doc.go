package crdt

import "sync"

// Doc is a single replica's handle onto a shared document: the block
// store, branch registry and collection index that back every shared
// type view, plus the transaction/subdocument/event machinery spec.md
// §4.3 and §6 describe. A Doc is single-threaded cooperative (§5): at
// most one Transaction is active at a time.
type Doc struct {
	mu sync.Mutex

	opts DocOptions

	store       *BlockStore
	branches    *BranchRegistry
	collections *collectionIndex
	integrator  *integrator
	links       *linkIndex
	moves       *moveIndex
	pending     *pendingQueue

	curTx *Transaction

	parent       *Doc
	subdocs      map[string]*Doc
	destroyed    bool

	onUpdate           *subscribers[UpdateEvent]
	onUpdateV2         *subscribers[UpdateEvent]
	onAfterTransaction *subscribers[AfterTransactionEvent]
	onSubdocs          *subscribers[SubdocsEvent]
	onDestroy          *subscribers[DestroyEvent]
}

// NewDoc constructs a Doc with the given options applied over the
// spec.md §6 defaults (random client id, random guid, gc enabled).
func NewDoc(opts ...Option) *Doc {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	d := &Doc{
		opts:        o,
		store:       newBlockStore(),
		branches:    newBranchRegistry(),
		collections: newCollectionIndex(),
		links:       newLinkIndex(),
		moves:       newMoveIndex(),
		pending:     newPendingQueue(),
		subdocs:     make(map[string]*Doc),

		onUpdate:           newSubscribers[UpdateEvent](),
		onUpdateV2:         newSubscribers[UpdateEvent](),
		onAfterTransaction: newSubscribers[AfterTransactionEvent](),
		onSubdocs:          newSubscribers[SubdocsEvent](),
		onDestroy:          newSubscribers[DestroyEvent](),
	}
	d.integrator = &integrator{doc: d}
	return d
}

// ClientID returns the replica's client id.
func (d *Doc) ClientID() uint64 { return d.opts.ClientID }

// GUID returns the document's guid.
func (d *Doc) GUID() string { return d.opts.GUID }

// StateVector returns the doc's current state vector (spec.md §3).
func (d *Doc) StateVector() StateVector { return d.store.StateVector() }

// Transact runs fn inside a Transaction, committing on return. Nested
// calls while a transaction is already open reuse the outer scope
// (spec.md §4.3 begin contract) rather than opening a new one.
func (d *Doc) Transact(origin any, fn func(tx *Transaction)) {
	d.mu.Lock()
	if err := d.requireNoActiveCommit(); err != nil {
		d.mu.Unlock()
		panic(err)
	}
	outer := d.curTx
	var tx *Transaction
	if outer != nil {
		tx = outer
	} else {
		tx = newTransaction(d, origin)
		d.curTx = tx
	}
	d.mu.Unlock()

	fn(tx)

	if outer == nil {
		tx.commit()
		d.mu.Lock()
		d.curTx = nil
		d.mu.Unlock()
	}
}

// OnUpdate registers a v1-update observer.
func (d *Doc) OnUpdate(fn func(UpdateEvent)) SubscriptionToken { return d.onUpdate.on(fn) }

// OffUpdate unregisters a v1-update observer.
func (d *Doc) OffUpdate(tok SubscriptionToken) { d.onUpdate.off(tok) }

// OnUpdateV2 registers a v2-update observer.
func (d *Doc) OnUpdateV2(fn func(UpdateEvent)) SubscriptionToken { return d.onUpdateV2.on(fn) }

// OffUpdateV2 unregisters a v2-update observer.
func (d *Doc) OffUpdateV2(tok SubscriptionToken) { d.onUpdateV2.off(tok) }

// OnAfterTransaction registers an after-transaction observer.
func (d *Doc) OnAfterTransaction(fn func(AfterTransactionEvent)) SubscriptionToken {
	return d.onAfterTransaction.on(fn)
}

// OffAfterTransaction unregisters an after-transaction observer.
func (d *Doc) OffAfterTransaction(tok SubscriptionToken) { d.onAfterTransaction.off(tok) }

// OnSubdocs registers a subdocs observer.
func (d *Doc) OnSubdocs(fn func(SubdocsEvent)) SubscriptionToken { return d.onSubdocs.on(fn) }

// OffSubdocs unregisters a subdocs observer.
func (d *Doc) OffSubdocs(tok SubscriptionToken) { d.onSubdocs.off(tok) }

// OnDestroy registers a destroy observer.
func (d *Doc) OnDestroy(fn func(DestroyEvent)) SubscriptionToken { return d.onDestroy.on(fn) }

// OffDestroy unregisters a destroy observer.
func (d *Doc) OffDestroy(tok SubscriptionToken) { d.onDestroy.off(tok) }

// Destroy tears down the doc and notifies subscribers and any parent.
func (d *Doc) Destroy() {
	d.mu.Lock()
	d.destroyed = true
	d.mu.Unlock()
	d.onDestroy.emit(DestroyEvent{Doc: d})
	if d.parent != nil {
		d.parent.onSubdocs.emit(SubdocsEvent{Removed: []*Doc{d}})
	}
}

// AddSubdoc registers a subdocument keyed by guid, matching the Doc
// content block's (guid, options) pair (spec.md §3 Content.Doc).
func (d *Doc) AddSubdoc(sub *Doc) {
	sub.parent = d
	d.mu.Lock()
	d.subdocs[sub.GUID()] = sub
	d.mu.Unlock()
	d.onSubdocs.emit(SubdocsEvent{Added: []*Doc{sub}})
}

// Subdoc returns the subdocument registered under guid, if any.
func (d *Doc) Subdoc(guid string) (*Doc, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.subdocs[guid]
	return s, ok
}

// parentHeaderOf returns the TypeHeader of the collection that contains
// h (i.e. h's own anchor block's parent), or nil for a root.
func (d *Doc) parentHeaderOf(h *TypeHeader) *TypeHeader {
	if h == nil || h.isRoot {
		return nil
	}
	anchorBlock, err := d.store.GetItem(h.Anchor)
	if err != nil {
		return nil
	}
	ph, ok := d.branches.Header(anchorBlock.Parent)
	if !ok {
		return nil
	}
	return ph
}

// rootHeader resolves (creating if necessary) the root TypeHeader
// registered under name with the given kind, panicking on a kind
// mismatch — reinterpreting an existing root under a different shared
// type is a programmer error (spec.md §6).
func (d *Doc) rootHeader(name string, kind TypeKind) *TypeHeader {
	h, err := d.branches.RootOrCreate(d, name, kind)
	if err != nil {
		panic(err)
	}
	return h
}

func (d *Doc) requireNoActiveCommit() error {
	if d.curTx != nil && d.curTx.committingObservers {
		return errTransactionReentry()
	}
	return nil
}
