package errkind

import (
	"errors"
	"fmt"
)

// Error is the typed failure leaf operations return. Op names the
// call-site operation (e.g. "store.Set", "cluster.Add") so a caller many
// layers up the stack can log context without re-deriving it.
type Error struct {
	Kind  Kind
	Op    string
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports equality by Kind only, matching errors.Is(err, errkind.New(k, ...))
// style comparisons where Op/Msg don't need to line up.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap constructs an *Error wrapping cause.
func Wrap(kind Kind, op, msg string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Cause: cause}
}

// Is reports whether err is an *Error of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, or OK if err is nil, or INVALID if
// err is a non-nil error that did not originate from this package.
func KindOf(err error) Kind {
	if err == nil {
		return OK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return INVALID
}
