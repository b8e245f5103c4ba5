// Package apperrors categorizes failures so the HTTP layer can map them to a
// status code without knowing where they came from.
package apperrors

import (
	"errors"
	"net/http"
)

// Kind is the category of an error.
type Kind string

const (
	KindValidation  Kind = "validation"
	KindNotFound    Kind = "not_found"
	KindPersistence Kind = "persistence"
	KindUpstream    Kind = "upstream"
)

// Error is an error with a category and the HTTP status it maps to.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Validation reports malformed client input.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, StatusCode: http.StatusBadRequest, Message: message}
}

// NotFound reports a missing resource.
func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, StatusCode: http.StatusNotFound, Message: message}
}

// Persistence wraps a store failure. The message is the underlying error text.
func Persistence(cause error) *Error {
	return &Error{Kind: KindPersistence, StatusCode: http.StatusInternalServerError, Message: cause.Error(), Cause: cause}
}

// Upstream wraps a failure talking to the price API.
func Upstream(cause error) *Error {
	return &Error{Kind: KindUpstream, StatusCode: http.StatusInternalServerError, Message: cause.Error(), Cause: cause}
}

// StatusCode returns the HTTP status for err. Uncategorized errors are 500.
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// IsKind reports whether err, or any error it wraps, is of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}
