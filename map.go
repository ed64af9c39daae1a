package crdt

// Map is a shared key/value collection holding arbitrary
// JSON-serializable values (spec.md §4.2's map-entry rule: each Set
// supersedes the previous entry for its key; visibility, once a remote
// concurrent write is involved, falls back to largest-id-wins over every
// non-deleted historical entry for that key).
type Map struct {
	header *TypeHeader
}

// GetMap returns (creating if necessary) the root Map registered under
// name.
func (d *Doc) GetMap(name string) *Map {
	return &Map{header: d.rootHeader(name, TypeMap)}
}

func wrapMap(h *TypeHeader) *Map { return &Map{header: h} }

// Header exposes the underlying TypeHeader.
func (m *Map) Header() *TypeHeader { return m.header }

// Get returns the value stored under key and whether it is currently
// visible (present and not deleted).
func (m *Map) Get(key string) (any, bool) {
	history := m.header.Doc.collections.mapHistory(m.header.AsParent(), key)
	visible := visibleMapEntry(history)
	if visible == nil {
		return nil, false
	}
	values := visible.Content.Values()
	if len(values) == 0 {
		return nil, false
	}
	return resolveContentValue(m.header.Doc, visible, values[0]), true
}

// Has reports whether key currently has a visible entry.
func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Keys returns every key that currently has a visible entry.
func (m *Map) Keys() []string {
	var out []string
	for _, k := range m.header.Doc.collections.mapKeys(m.header.AsParent()) {
		if m.Has(k) {
			out = append(out, k)
		}
	}
	return out
}

// ToMap returns a snapshot copy of every currently-visible key/value
// pair.
func (m *Map) ToMap() map[string]any {
	out := make(map[string]any)
	for _, k := range m.Keys() {
		if v, ok := m.Get(k); ok {
			out[k] = v
		}
	}
	return out
}

// Set assigns value to key, superseding any entry this replica
// previously wrote for key.
func (m *Map) Set(key string, value any) error {
	doc := m.header.Doc
	parent := m.header.AsParent()
	var opErr error
	doc.Transact(nil, func(tx *Transaction) {
		old, _ := m.Get(key)
		m.tombstonePrevious(tx, key)
		if _, err := tx.insertLocal(parent, &key, nil, nil, JSONContent{Items: []any{value}}); err != nil {
			opErr = err
			return
		}
		tx.recordRawChange(rawChange{parent: parent, isMap: true, key: key, oldValue: old, newValue: value})
	})
	return opErr
}

// Delete removes key's currently-visible entry, if any.
func (m *Map) Delete(key string) error {
	doc := m.header.Doc
	parent := m.header.AsParent()
	var opErr error
	doc.Transact(nil, func(tx *Transaction) {
		old, ok := m.Get(key)
		if !ok {
			return
		}
		m.tombstonePrevious(tx, key)
		tx.recordRawChange(rawChange{parent: parent, isMap: true, key: key, oldValue: old, deleted: true})
	})
	return opErr
}

// tombstonePrevious marks every currently-visible historical entry for
// key as deleted, immediately (not deferred to the delete-set pass), so
// a Get issued later in the same transaction observes the change right
// away (spec.md §5 ordering guarantee a).
func (m *Map) tombstonePrevious(tx *Transaction, key string) {
	parent := m.header.AsParent()
	for _, b := range m.header.Doc.collections.mapHistory(parent, key) {
		if !b.Deleted {
			b.Deleted = true
			tx.touched[b.ID.Client] = true
			tx.recordDelete(b.ID, b.Len)
		}
	}
}

// Observe registers a shallow change observer.
func (m *Map) Observe(fn func(ChangeEvent)) (SubscriptionToken, error) { return m.header.Observe(fn) }

// ObserveDeep registers a deep change observer.
func (m *Map) ObserveDeep(fn func(ChangeEvent)) (SubscriptionToken, error) {
	return m.header.ObserveDeep(fn)
}
