// Package vdberrors defines the error taxonomy shared across vortexdb's
// storage, index and search layers.
package vdberrors

import (
	"errors"
	"fmt"
)

// Kind classifies a vortexdb error the way the design's error handling
// section separates recoverable, call-site and fatal conditions.
type Kind int

const (
	// Unknown is the zero value; Error values constructed through the
	// helpers below never carry it.
	Unknown Kind = iota
	NotFound
	AlreadyExists
	InvalidArgument
	Io
	Corruption
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case AlreadyExists:
		return "already_exists"
	case InvalidArgument:
		return "invalid_argument"
	case Io:
		return "io"
	case Corruption:
		return "corruption"
	default:
		return "unknown"
	}
}

// Error is a typed, wrappable error. Two Errors compare equal under
// errors.Is when their Kind matches, regardless of message or cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is makes errors.Is(err, NotFoundErr) etc. work against the sentinel
// values below without requiring the caller to inspect Kind directly.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrap(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// NotFoundf builds a NotFound error, e.g. for an unknown record key or
// an unrecognized field name.
func NotFoundf(format string, args ...interface{}) error { return newf(NotFound, format, args...) }

// AlreadyExistsf builds an AlreadyExists error, e.g. a duplicate field name
// at schema construction time.
func AlreadyExistsf(format string, args ...interface{}) error {
	return newf(AlreadyExists, format, args...)
}

// InvalidArgumentf builds an InvalidArgument error: dimension mismatch,
// missing centroids, unknown scalar tag, empty key, and similar call-site
// misuse that is rejected rather than silently ignored.
func InvalidArgumentf(format string, args ...interface{}) error {
	return newf(InvalidArgument, format, args...)
}

// IOf wraps an underlying storage engine failure.
func IOf(cause error, format string, args ...interface{}) error {
	return wrap(Io, cause, format, args...)
}

// Corruptionf builds a Corruption error: inconsistent partitions or an
// envelope that fails to decode. Fatal to the containing DB handle.
func Corruptionf(format string, args ...interface{}) error {
	return newf(Corruption, format, args...)
}

// CorruptionWrap wraps an underlying decode error as Corruption.
func CorruptionWrap(cause error, format string, args ...interface{}) error {
	return wrap(Corruption, cause, format, args...)
}

// sentinels for errors.Is comparisons against a specific kind, e.g.
// errors.Is(err, vdberrors.ErrNotFound).
var (
	ErrNotFound        = &Error{Kind: NotFound}
	ErrAlreadyExists   = &Error{Kind: AlreadyExists}
	ErrInvalidArgument = &Error{Kind: InvalidArgument}
	ErrIo              = &Error{Kind: Io}
	ErrCorruption      = &Error{Kind: Corruption}
)

// KindOf extracts the Kind of err if it is (or wraps) a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return Unknown, false
}
