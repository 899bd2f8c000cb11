// Package domainerrors defines the coded error vocabulary for the phase
// ledger core. Services return these so transports can translate them into
// wire responses without string matching.
//
// For infrastructure facts (store misses, conflicts) use
// pkg/platform/sentinel; services translate sentinels into domain errors at
// their boundary.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is the closed set of failure kinds the core can report.
type Code string

const (
	// CodeInvalidInput covers malformed or missing identifiers, unrecognized
	// enum values, and feature vectors that fail admission bounds.
	CodeInvalidInput Code = "invalid_input"

	// CodeConsentRejected covers submissions whose consent descriptor
	// disallows admission (raw classification, no usable scope).
	CodeConsentRejected Code = "consent_rejected"

	// CodeNotFound covers unknown node/group/session ids and empty groups
	// on aggregation.
	CodeNotFound Code = "not_found"

	// CodeIntegrityViolation reports a broken hash chain. Never auto
	// corrected; the offending index is carried in the message.
	CodeIntegrityViolation Code = "integrity_violation"

	// CodeInternal is the fallback for unexpected failures.
	CodeInternal Code = "internal"
)

// Error carries a Code plus a human-readable message.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New constructs a coded domain error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from an error chain, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a code to the HTTP status the transport layer should
// return. Keeping the mapping here ensures every handler agrees.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeInvalidInput:
		return http.StatusBadRequest
	case CodeConsentRejected:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeIntegrityViolation:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
