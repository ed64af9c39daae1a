package crdt

import "github.com/pkg/errors"

// ErrorKind classifies the failure modes named in spec.md §7. Kept as a
// small closed enum rather than sentinel errors per case, so callers can
// switch on Kind() while the wrapped cause (via pkg/errors) carries a
// stack trace and a short reason; decode errors do not record the byte
// offset at which parsing failed.
type ErrorKind uint8

const (
	// ErrMalformedUpdate: the decoder could not parse update bytes. The
	// store is left unchanged.
	ErrMalformedUpdate ErrorKind = iota
	// ErrTypeMismatch: a host reinterpreted an existing root name under a
	// different TypeKind.
	ErrTypeMismatch
	// ErrObserveOnPreliminary: a host registered an observer on a handle
	// not yet attached to a Doc.
	ErrObserveOnPreliminary
	// ErrTransactionReentry: a host started a new transaction while
	// observers from a commit were still running.
	ErrTransactionReentry
	// ErrOutOfBounds: an index exceeded the current collection length.
	ErrOutOfBounds
)

func (k ErrorKind) String() string {
	switch k {
	case ErrMalformedUpdate:
		return "malformed update"
	case ErrTypeMismatch:
		return "type mismatch"
	case ErrObserveOnPreliminary:
		return "observe on preliminary type"
	case ErrTransactionReentry:
		return "transaction re-entry"
	case ErrOutOfBounds:
		return "index out of bounds"
	default:
		return "unknown error"
	}
}

// EngineError is the concrete error type raised for every kind in §7
// except IntegrationDependency, which is never surfaced as an error —
// it is buffered in the pending queue (see integrate.go).
type EngineError struct {
	Kind ErrorKind
	msg  string
}

func (e *EngineError) Error() string {
	if e.msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.msg
}

func newErr(kind ErrorKind, msg string) error {
	return errors.WithStack(&EngineError{Kind: kind, msg: msg})
}

// IsKind reports whether err (or its cause chain) is an EngineError of
// the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var ee *EngineError
	cause := errors.Cause(err)
	if ee, _ = cause.(*EngineError); ee != nil {
		return ee.Kind == kind
	}
	return false
}

func errTypeMismatch(name string, want, got TypeKind) error {
	return newErr(ErrTypeMismatch, errors.Errorf("root %q: expected %v, got %v", name, want, got).Error())
}

func errOutOfBounds(index, length int) error {
	return newErr(ErrOutOfBounds, errors.Errorf("index %d exceeds length %d", index, length).Error())
}

func errObserveOnPreliminary() error {
	return newErr(ErrObserveOnPreliminary, "type handle is not attached to a document")
}

func errTransactionReentry() error {
	return newErr(ErrTransactionReentry, "a transaction is already committing observers for this doc")
}

func errMalformedUpdate(reason string) error {
	return newErr(ErrMalformedUpdate, reason)
}
