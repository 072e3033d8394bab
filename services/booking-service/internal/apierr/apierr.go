package apierr

import (
	"errors"
	"net/http"
)

// Kind classifies a request failure. Every domain-level check in the booking
// flow maps deterministically to one member; anything unexpected from a
// collaborator is downgraded to KindInternal at the handler boundary with
// details going to the log, not the response body.
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindForbidden
	KindConflict
	KindUpstream
	KindInternal
)

type Error struct {
	Kind    Kind
	Message string
	// Missing lists the offending field names for validation failures, in
	// field-check order. Part of the response contract.
	Missing []string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func MissingFields(fields []string) *Error {
	return &Error{Kind: KindValidation, Message: "Missing required fields", Missing: fields}
}

func NotFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func Forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func Upstream(message string, cause error) *Error {
	return &Error{Kind: KindUpstream, Message: message, cause: cause}
}

func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal error", cause: cause}
}

// From extracts an *Error, wrapping anything else as KindInternal.
func From(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal(err)
}
