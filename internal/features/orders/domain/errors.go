package domain

import (
	"errors"
	"fmt"
)

// Kind classifies an order failure so the HTTP boundary can pick a status code.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindForbidden    Kind = "forbidden"
	KindInvalidState Kind = "invalid_state"
	KindConflict     Kind = "conflict"
	KindPersistence  Kind = "persistence"
)

// Error is the typed failure returned by every order operation.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels below, so errors.Is(err, ErrNotFound) holds
// for any not-found error regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

var (
	ErrValidation   = &Error{Kind: KindValidation}
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrInvalidState = &Error{Kind: KindInvalidState}
	ErrConflict     = &Error{Kind: KindConflict}
	ErrPersistence  = &Error{Kind: KindPersistence}
)

// ErrDuplicatePublicID is returned by the repository when the generated
// public id is already taken.
var ErrDuplicatePublicID = errors.New("duplicate order public id")

// NewValidationError reports malformed input.
func NewValidationError(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError reports a missing order.
func NewNotFoundError(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

// NewForbiddenError reports an actor lacking rights on the order.
func NewForbiddenError(message string) error {
	return &Error{Kind: KindForbidden, Message: message}
}

// NewInvalidStateError reports a transition the current status does not allow.
func NewInvalidStateError(format string, args ...any) error {
	return &Error{Kind: KindInvalidState, Message: fmt.Sprintf(format, args...)}
}

// NewConflictError reports a concurrent or duplicate write.
func NewConflictError(message string, err error) error {
	return &Error{Kind: KindConflict, Message: message, Err: err}
}

// NewPersistenceError wraps a store failure.
func NewPersistenceError(message string, err error) error {
	return &Error{Kind: KindPersistence, Message: message, Err: err}
}

// KindOf returns the kind of err, or KindPersistence for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistence
}

// MessageOf returns the client facing message of a typed error.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}
