// Package apperr is the error taxonomy shared by the admission core and the
// HTTP layer. Every Kind maps to exactly one HTTP status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is a machine-readable error class.
type Kind string

const (
	KindUnknown        Kind = "UNKNOWN"
	KindInvalidRequest Kind = "INVALID_REQUEST"
	KindUnauthorized   Kind = "UNAUTHORIZED"
	KindNotFound       Kind = "NOT_FOUND"
	KindConflict       Kind = "CONFLICT"
	KindForbidden      Kind = "FORBIDDEN"
	KindAlreadyUsed    Kind = "ALREADY_USED"
	KindStorage        Kind = "STORAGE_ERROR"
)

// Error carries a Kind, the operation that failed and an optional cause.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg}
}

// Wrap attaches kind to err. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Storage wraps a persistence failure.
func Storage(op string, err error) error {
	return Wrap(KindStorage, op, err)
}

// KindOf extracts the Kind from err, KindUnknown when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a Kind to the transport status the caller should answer with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindAlreadyUsed:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Message is the caller-facing text for err. Storage and unknown errors are
// not leaked.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) || e.Kind == KindStorage {
		return "an unexpected error occurred"
	}
	if e.Msg != "" {
		return e.Msg
	}
	return string(e.Kind)
}
