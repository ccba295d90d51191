package domain

import (
	"errors"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrUpstream      = errors.New("upstream error")
	ErrConfiguration = errors.New("configuration error")
)

// Error tags a failure with one of the sentinel kinds above and keeps the
// caller-facing message apart from the wrapped cause.
type Error struct {
	Kind      error
	Operation string
	Message   string
	Err       error
}

// Wrap builds an *Error. A nil marker is treated as ErrUpstream.
func Wrap(marker error, operation, message string, err error) error {
	if marker == nil {
		marker = ErrUpstream
	}
	return &Error{
		Kind:      marker,
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Err:       err,
	}
}

func (e *Error) Error() string {
	parts := []string{e.Kind.Error()}
	if e.Operation != "" {
		parts = append(parts, e.Operation)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// PublicMessage returns the message safe to show to API callers. Upstream
// details stay in the error chain.
func PublicMessage(err error) string {
	var domainErr *Error
	if errors.As(err, &domainErr) && domainErr.Message != "" {
		return domainErr.Message
	}
	switch {
	case errors.Is(err, ErrValidation):
		return "invalid request"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrUpstream):
		return "upstream service failure"
	default:
		return "internal server error"
	}
}

// UpstreamStatus returns the HTTP status carried by an upstream client error.
func UpstreamStatus(err error) (int, bool) {
	var coded interface{ HTTPStatus() int }
	if errors.As(err, &coded) {
		return coded.HTTPStatus(), true
	}
	return 0, false
}
