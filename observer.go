package crdt

import "sort"

// DeltaOp is one operation in a Quill-style delta (spec.md §4.4/§4.7):
// exactly one of Insert, Retain, Delete is meaningful per op.
type DeltaOp struct {
	Insert     []any
	Retain     int
	Delete     int
	Attributes map[string]any
}

// KeyAction classifies a Map key's change.
type KeyAction string

const (
	KeyAdd    KeyAction = "add"
	KeyUpdate KeyAction = "update"
	KeyDelete KeyAction = "delete"
)

// KeyChange describes one changed Map key.
type KeyChange struct {
	Action   KeyAction
	OldValue any
	NewValue any
}

// ChangeEvent is the event synthesized per affected collection on
// commit (spec.md §4.7). Keys is populated for a Map and Delta for every
// other kind; commit does not fill in AddedIDs, RemovedIDs or Link.
type ChangeEvent struct {
	Target      *TypeHeader
	Transaction *Transaction
	Delta       []DeltaOp
	AddedIDs    []ID
	RemovedIDs  []ID
	Keys        map[string]KeyChange
	Link        *LinkTarget
	// Path is the chain of keys/indices from the root that observeDeep
	// bubbled this event through (empty for the collection the change
	// originated in).
	Path []any
}

// Observe registers a shallow observer on header, firing only for
// changes to header's own collection.
func (h *TypeHeader) Observe(fn func(ChangeEvent)) (SubscriptionToken, error) {
	if h.Doc == nil {
		return 0, errObserveOnPreliminary()
	}
	return h.shallow.on(fn), nil
}

// Unobserve removes a shallow observer.
func (h *TypeHeader) Unobserve(tok SubscriptionToken) { h.shallow.off(tok) }

// ObserveDeep registers a deep observer, firing for changes to header's
// collection and every collection nested beneath it, including ones
// reached only through a weak link (spec.md §4.7).
func (h *TypeHeader) ObserveDeep(fn func(ChangeEvent)) (SubscriptionToken, error) {
	if h.Doc == nil {
		return 0, errObserveOnPreliminary()
	}
	return h.deep.on(fn), nil
}

// UnobserveDeep removes a deep observer.
func (h *TypeHeader) UnobserveDeep(tok SubscriptionToken) { h.deep.off(tok) }

// rawChange is how transaction.go records a mutation as it happens;
// buildDelta/buildKeyChanges turn a parent's recorded raw changes into
// the ChangeEvent the observers receive.
type rawChange struct {
	parent ParentRef
	// sequence op
	index   int
	inserts []any
	delCnt  int
	// map op
	key      string
	oldValue any
	newValue any
	isMap    bool
	deleted  bool
}

// buildDelta folds a parent's recorded sequence ops, in the order they
// were applied, into a Quill-style delta: consecutive ops are merged
// into retain/insert/delete runs.
func buildDelta(changes []rawChange) []DeltaOp {
	sort.SliceStable(changes, func(i, j int) bool { return changes[i].index < changes[j].index })

	var ops []DeltaOp
	cursor := 0
	for _, c := range changes {
		if c.index > cursor {
			ops = append(ops, DeltaOp{Retain: c.index - cursor})
			cursor = c.index
		}
		if len(c.inserts) > 0 {
			ops = append(ops, DeltaOp{Insert: c.inserts})
		}
		if c.delCnt > 0 {
			ops = append(ops, DeltaOp{Delete: c.delCnt})
		}
	}
	return ops
}

// buildKeyChanges folds a parent's recorded map ops into the §4.7 Map
// event shape: key -> {action, oldValue}.
func buildKeyChanges(changes []rawChange) map[string]KeyChange {
	out := make(map[string]KeyChange, len(changes))
	for _, c := range changes {
		action := KeyUpdate
		switch {
		case c.deleted:
			action = KeyDelete
		case c.oldValue == nil:
			action = KeyAdd
		}
		out[c.key] = KeyChange{Action: action, OldValue: c.oldValue, NewValue: c.newValue}
	}
	return out
}

// propagateDeep walks from header up through every ancestor — both
// physical parents and, crucially, every weak link that quotes into
// header's collection — firing deep observers along the way. visited
// guards against cycles among links (spec.md §9, testDeepObserveRecursive).
func propagateDeep(doc *Doc, header *TypeHeader, evt ChangeEvent, visited map[*TypeHeader]bool) {
	if header == nil || visited[header] {
		return
	}
	visited[header] = true
	header.deep.emit(evt)

	for _, linker := range doc.linksQuoting(header) {
		nestedEvt := evt
		nestedEvt.Path = append([]any{linker.key}, evt.Path...)
		propagateDeep(doc, linker.owner, nestedEvt, visited)
	}

	parentHeader := doc.parentHeaderOf(header)
	if parentHeader != nil {
		propagateDeep(doc, parentHeader, evt, visited)
	}
}
