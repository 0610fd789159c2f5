// Package apperr defines the error taxonomy shared by services,
// repositories and handlers. Every failure that crosses a package
// boundary carries a stable Kind so the HTTP layer can map it to a
// status code without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind identifies a class of failure.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindUnauthorized
	KindForbidden
	KindInvalidToken
	KindExpiredToken
	KindRevokedToken
	KindWrongTokenType
	KindInvalidStateTransition
	KindPaymentGateway
	KindInvalidSignature
	KindMalformedPayload
	KindRateLimited
)

// Error is the concrete error type used across the application.
type Error struct {
	Kind    Kind
	Message string
	Err     error // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf builds an Error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a new Error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from err, or KindInternal when err is not
// an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// HTTPStatus maps an error kind to the HTTP status returned by the API
// boundary.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindMalformedPayload:
		return http.StatusBadRequest
	case KindInvalidSignature:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict, KindInvalidStateTransition:
		return http.StatusConflict
	case KindUnauthorized, KindInvalidToken, KindExpiredToken, KindRevokedToken, KindWrongTokenType:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindPaymentGateway:
		return http.StatusBadGateway
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// kindNames are the stable identifiers serialized in error responses.
var kindNames = map[Kind]string{
	KindInternal:               "internal_error",
	KindValidation:             "validation_error",
	KindNotFound:               "not_found",
	KindConflict:               "conflict",
	KindUnauthorized:           "unauthorized",
	KindForbidden:              "forbidden",
	KindInvalidToken:           "invalid_token",
	KindExpiredToken:           "expired_token",
	KindRevokedToken:           "revoked_token",
	KindWrongTokenType:         "wrong_token_type",
	KindInvalidStateTransition: "invalid_state_transition",
	KindPaymentGateway:         "payment_gateway_error",
	KindInvalidSignature:       "invalid_signature",
	KindMalformedPayload:       "malformed_payload",
	KindRateLimited:            "too_many_requests",
}

// KindName returns the wire identifier for the error's kind.
func KindName(err error) string {
	if name, ok := kindNames[KindOf(err)]; ok {
		return name
	}
	return kindNames[KindInternal]
}

// Message returns the human-readable message for err. Internal causes
// are not leaked to clients.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal server error"
}
