package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrorKind classifies failures so callers can act on them without parsing messages.
type ErrorKind string

const (
	KindNotFound            ErrorKind = "not_found"
	KindInvalidRequest      ErrorKind = "invalid_request"
	KindResourceUnavailable ErrorKind = "resource_unavailable"
	KindResourceInUse       ErrorKind = "resource_in_use"
	KindAlreadyEnrolled     ErrorKind = "already_enrolled_or_waitlisted"
	KindCapacityExceeded    ErrorKind = "capacity_exceeded"
	KindInvalidReorder      ErrorKind = "invalid_reorder"
	KindUnresolvable        ErrorKind = "unresolvable"
	KindNotSupported        ErrorKind = "not_supported"
	KindConflict            ErrorKind = "conflict"
)

// Kind sentinels for errors.Is checks.
var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrInvalidRequest      = &Error{Kind: KindInvalidRequest}
	ErrResourceUnavailable = &Error{Kind: KindResourceUnavailable}
	ErrResourceInUse       = &Error{Kind: KindResourceInUse}
	ErrAlreadyEnrolled     = &Error{Kind: KindAlreadyEnrolled}
	ErrCapacityExceeded    = &Error{Kind: KindCapacityExceeded}
	ErrInvalidReorder      = &Error{Kind: KindInvalidReorder}
	ErrUnresolvable        = &Error{Kind: KindUnresolvable}
	ErrNotSupported        = &Error{Kind: KindNotSupported}
	ErrConflict            = &Error{Kind: KindConflict}
)

// Error is a kinded failure carrying the operation and the ids it concerns.
type Error struct {
	Kind    ErrorKind
	Op      string
	IDs     []uuid.UUID
	Details map[string]string
	Err     error
}

// NewError creates a kinded error.
func NewError(kind ErrorKind, op string, err error, ids ...uuid.UUID) *Error {
	return &Error{Kind: kind, Op: op, IDs: ids, Err: err}
}

// NotFound reports a missing entity of the given type.
func NotFound(op, entity string, id uuid.UUID) *Error {
	return NewError(KindNotFound, op, fmt.Errorf("%s %s not found", entity, id), id)
}

// InvalidRequest reports malformed input.
func InvalidRequest(op, format string, args ...any) *Error {
	return NewError(KindInvalidRequest, op, fmt.Errorf(format, args...))
}

// WithDetails attaches field level details.
func (e *Error) WithDetails(details map[string]string) *Error {
	e.Details = details
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so ErrNotFound matches every not-found error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of err, or "" when it is not a kinded error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
