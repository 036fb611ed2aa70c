package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures of the commitment and disclosure subsystem.
// Verifiers branch on the kind to make trust decisions, so kinds never overlap:
// when an *Error wraps another, only the outer kind is visible to errors.Is,
// errors.As and KindOf.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindRange
	KindState
	KindNotFound
	KindMerkleInconsistency
	KindOpeningMismatch
	KindSignature
	KindBinding
	KindEncoding
	KindConfig
)

func (k ErrorKind) String() string {
	switch k {
	case KindRange:
		return "range"
	case KindState:
		return "state"
	case KindNotFound:
		return "not_found"
	case KindMerkleInconsistency:
		return "merkle_inconsistency"
	case KindOpeningMismatch:
		return "opening_mismatch"
	case KindSignature:
		return "signature"
	case KindBinding:
		return "binding"
	case KindEncoding:
		return "encoding"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. An *Error matches the sentinel of its kind.
var (
	ErrRange               = &Error{Kind: KindRange}
	ErrState               = &Error{Kind: KindState}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrMerkleInconsistency = &Error{Kind: KindMerkleInconsistency}
	ErrOpeningMismatch     = &Error{Kind: KindOpeningMismatch}
	ErrSignature           = &Error{Kind: KindSignature}
	ErrBinding             = &Error{Kind: KindBinding}
	ErrEncoding            = &Error{Kind: KindEncoding}
	ErrConfig              = &Error{Kind: KindConfig}
)

// Error is the error type returned by every construction and verification
// function. Op names the failing operation, Err keeps the original cause.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op == "" && e.Err == nil:
		return e.Kind.String() + " error"
	case e.Err == nil:
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	case e.Op == "":
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports kind equality so that errors.Is(err, ErrRange) holds for any
// range error regardless of Op or cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

// NewError wraps cause as an error of the given kind. A kind carried by
// cause is replaced by kind.
func NewError(kind ErrorKind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: reclassify(cause)}
}

// Errorf builds an error of the given kind from a format string. %w verbs
// are honoured, so the cause stays reachable through errors.Is/As.
func Errorf(kind ErrorKind, op string, format string, args ...interface{}) *Error {
	return NewError(kind, op, fmt.Errorf(format, args...))
}

// reclassify hides every *Error in cause's chain while keeping its message
// and the rest of the chain.
func reclassify(cause error) error {
	var e *Error
	if cause == nil || !errors.As(cause, &e) {
		return cause
	}
	return &reclassified{cause: cause}
}

type reclassified struct {
	cause error
}

func (r *reclassified) Error() string { return r.cause.Error() }

func (r *reclassified) Is(target error) bool {
	if _, ok := target.(*Error); ok {
		return false
	}
	return errors.Is(r.cause, target)
}

func (r *reclassified) As(target interface{}) bool {
	if _, ok := target.(**Error); ok {
		return false
	}
	return errors.As(r.cause, target)
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
