// Package domainerrors defines the coded error type shared by all custos
// services. Services construct errors with New/Wrap at the point of failure;
// transports translate codes to HTTP statuses with ToHTTPStatus; callers
// branch on codes with HasCode/Is instead of string matching.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code classifies a domain error for callers and transports.
type Code string

const (
	// CodeBadRequest marks requests that are syntactically broken.
	CodeBadRequest Code = "bad_request"
	// CodeValidation marks well-formed input that violates a domain rule
	// (bad country-code length, out-of-range level, non-positive expiry).
	CodeValidation Code = "validation_error"
	// CodeInvalidInput marks malformed values at trust boundaries (IDs, enums).
	CodeInvalidInput Code = "invalid_input"
	// CodeUnauthorized marks missing or unverifiable caller identity.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks callers that lack the required role, capability
	// bit, or whose targeted authority/mint is inactive.
	CodeForbidden Code = "forbidden"
	// CodeEligibility marks KYC/AML gate failures: the request is valid and
	// the caller authorized, but a compliance predicate rejected a party.
	CodeEligibility Code = "not_eligible"
	// CodeNotFound marks absent records.
	CodeNotFound Code = "not_found"
	// CodeConflict marks create-once collisions and duplicate registrations.
	CodeConflict Code = "conflict"
	// CodeTimeout marks transaction or context deadline failures.
	CodeTimeout Code = "timeout"
	// CodeInvariantViolation marks corrupted or impossible internal state.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeInternal marks unexpected infrastructure failures.
	CodeInternal Code = "internal_error"
)

// Error is the value type carried by every coded domain error. It is a value
// (not a pointer) so errors built from the same code and message compare
// equal, which keeps package-level error variables usable with errors.Is.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As chains.
func (e Error) Unwrap() error {
	return e.Err
}

// New builds a coded error with no underlying cause.
func New(code Code, message string) error {
	return Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is checks against sentinel values.
func Wrap(err error, code Code, message string) error {
	return Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is shorthand for HasCode at call sites that read better as a predicate.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the code from an error chain, defaulting to CodeInternal
// for errors that were never classified.
func CodeOf(err error) Code {
	var de Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps a domain error code to the HTTP status transports return.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeEligibility:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeInvariantViolation, CodeInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
