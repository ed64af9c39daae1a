package crdt

import "sync"

// SubscriptionToken is returned by every On*/Observe call; passing it to
// the matching Off/Unobserve unregisters the callback (spec.md §6:
// "each exposes a subscription token that unregisters on invocation").
type SubscriptionToken uint64

// subscribers is a small generic registry of callbacks, invoked in
// registration order (spec.md §4.3/§5 ordering guarantee c). A panic
// from one callback is recovered and logged so it never prevents the
// remaining callbacks from running (spec.md §7: "exceptions inside an
// observer are logged and suppressed").
type subscribers[T any] struct {
	mu   sync.Mutex
	next SubscriptionToken
	fns  map[SubscriptionToken]func(T)
	// order preserves registration order; fns alone (a map) would not.
	order []SubscriptionToken
}

func newSubscribers[T any]() *subscribers[T] {
	return &subscribers[T]{fns: make(map[SubscriptionToken]func(T))}
}

func (s *subscribers[T]) on(fn func(T)) SubscriptionToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	tok := s.next
	s.fns[tok] = fn
	s.order = append(s.order, tok)
	return tok
}

func (s *subscribers[T]) off(tok SubscriptionToken) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fns, tok)
	for i, t := range s.order {
		if t == tok {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *subscribers[T]) emit(value T) {
	s.mu.Lock()
	order := append([]SubscriptionToken(nil), s.order...)
	fns := make([]func(T), 0, len(order))
	for _, t := range order {
		if fn, ok := s.fns[t]; ok {
			fns = append(fns, fn)
		}
	}
	s.mu.Unlock()

	for _, fn := range fns {
		invokeSafely(fn, value)
	}
}

func invokeSafely[T any](fn func(T), value T) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("observer callback panicked; suppressed", "panic", r)
		}
	}()
	fn(value)
}

// AfterTransactionEvent is emitted once per commit (spec.md §4.3 step 6).
type AfterTransactionEvent struct {
	Doc         *Doc
	Transaction *Transaction
	Added       map[uint64]ClockRange
	Deleted     *IdSet
}

// UpdateEvent carries the encoded update payload for a commit that
// produced new blocks (spec.md §4.3 step 7 / §6).
type UpdateEvent struct {
	Update []byte
	Origin any
	Doc    *Doc
}

// SubdocsEvent reports subdocuments added, removed, or loaded this
// transaction.
type SubdocsEvent struct {
	Added   []*Doc
	Removed []*Doc
	Loaded  []*Doc
}

// DestroyEvent is emitted when a Doc is destroyed.
type DestroyEvent struct{ Doc *Doc }
