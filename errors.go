// errors.go - descriptive errors for nefaxer
//
// Adapted from the teacher's errors.go (CopyError) and walk/errors.go
// (Error): same Op/Path/Err/Unwrap shape, extended with a Kind taxonomy
// per spec.md §7.

package nefaxer

import (
	"errors"
	"fmt"
)

// Kind classifies a fatal nefaxer.Error by its place in spec.md §7's
// taxonomy. Kinds are not Go error types of their own; they're a field on
// Error so callers can switch on err.(*Error).Kind without a type
// hierarchy.
type Kind int

const (
	KindInvalidInput Kind = iota + 1
	KindAccess
	KindIO
	KindConsistency
	KindCancelled
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid input"
	case KindAccess:
		return "access error"
	case KindIO:
		return "I/O error"
	case KindConsistency:
		return "consistency error"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error represents a fatal error surfaced by any nefaxer component.
type Error struct {
	Op   string
	Path string
	Kind Kind
	Err  error
}

func newError(op, path string, kind Kind, err error) *Error {
	return &Error{Op: op, Path: path, Kind: kind, Err: err}
}

// Error returns a string representation of Error.
func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("nefaxer: %s: %s: %s", e.Op, e.Kind, e.Err.Error())
	}
	return fmt.Sprintf("nefaxer: %s '%s': %s: %s", e.Op, e.Path, e.Kind, e.Err.Error())
}

// Unwrap returns the underlying wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

var _ error = &Error{}

// IsCancelled reports whether err is (or wraps) a cooperative-abort error.
func IsCancelled(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == KindCancelled
	}
	return errors.Is(err, ErrCancelled)
}

// Sentinel errors wrapped by Error.Err for common cases.
var (
	ErrCancelled  = errors.New("run cancelled")
	errEmptyPath  = errors.New("relative path is empty")
	errBackslash  = errors.New("relative path contains backslash")
	errRooted     = errors.New("relative path must not start with '/'")
	errDotDot     = errors.New("relative path contains '..' segment")
	errMtimeRange = errors.New("mtime_ns out of plausible range")
	errHashSize   = errors.New("hash must be exactly HashSize bytes")
)

// NewInvalidInputError wraps a pre-flight validation failure: a malformed
// `existing` snapshot, nonsense options, or a root that isn't a directory —
// anything spec.md §7 says must fail before any worker is started.
func NewInvalidInputError(op string, err error) *Error {
	return newError(op, "", KindInvalidInput, err)
}

// NewAccessError wraps a per-path access error (permission denied, vanished
// file, broken symlink) for the strict/skip policy of spec.md §2/§7.
func NewAccessError(op, path string, err error) *Error {
	return newError(op, path, KindAccess, err)
}

// NewIOError wraps a fatal I/O failure (read during hashing, store write,
// encryption key rejection).
func NewIOError(op, path string, err error) *Error {
	return newError(op, path, KindIO, err)
}

// NewConsistencyError wraps a fatal store schema/corruption failure.
func NewConsistencyError(op string, err error) *Error {
	return newError(op, "", KindConsistency, err)
}

// NewCancelledError wraps the cooperative-abort condition.
func NewCancelledError(op string) *Error {
	return newError(op, "", KindCancelled, ErrCancelled)
}
