// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared by guards, handlers and backend clients.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrDuplicate          = errors.New("duplicate entry")
	ErrValidation         = errors.New("validation failed")
	ErrForbidden          = errors.New("forbidden")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrInternal           = errors.New("internal error")
)

// Error carries a client-facing detail for one of the sentinel kinds.
type Error struct {
	Kind   error
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Detail
}

func (e *Error) Unwrap() error { return e.Kind }

// Errorf builds an Error of the given kind with a formatted detail.
func Errorf(kind error, format string, args ...any) error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// Unauthenticated is shorthand for Errorf(ErrUnauthorized, msg).
func Unauthenticated(msg string) error {
	return &Error{Kind: ErrUnauthorized, Detail: msg}
}

// Forbidden is shorthand for Errorf(ErrForbidden, msg).
func Forbidden(msg string) error {
	return &Error{Kind: ErrForbidden, Detail: msg}
}

// Invalid is shorthand for Errorf(ErrValidation, msg).
func Invalid(msg string) error {
	return &Error{Kind: ErrValidation, Detail: msg}
}

// Detail returns the client-facing message attached to err, if any.
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Detail
	}
	return ""
}

// StatusOf maps an error to its HTTP status code.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	detail := Detail(err)
	switch status {
	case http.StatusNotFound:
		Problem(w, status, "Not Found", detail)
	case http.StatusConflict:
		Problem(w, status, "Duplicate", detail)
	case http.StatusBadRequest:
		Problem(w, status, "Validation Failed", detail)
	case http.StatusForbidden:
		Problem(w, status, "Forbidden", detail)
	case http.StatusUnauthorized:
		Problem(w, status, "Unauthorized", detail)
	case http.StatusServiceUnavailable:
		Problem(w, status, "Service Unavailable", detail)
	default:
		Problem(w, status, "Internal Error", "")
	}
}
