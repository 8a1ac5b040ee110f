// Package domain defines the core domain values for the MBaaS client.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a client error with a structured error code.
// Codes have the form MB-<AREA>-<NNNN>.
type DomainError struct {
	Code    string // Error code (e.g., "MB-HTTP-5020")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Session Errors (SESS)
// ============================================================================

var (
	// ErrSessionNotFound indicates no session token is stored locally.
	ErrSessionNotFound = NewDomainError("MB-SESS-4040", "session not found")
)

// ============================================================================
// Transport Errors (HTTP)
// ============================================================================

var (
	// ErrRequestFailed indicates the request could not be completed or the
	// server answered with a failure.
	ErrRequestFailed = NewDomainError("MB-HTTP-5020", "request failed")

	// ErrMalformedResponse indicates the server answered with an unexpected body.
	ErrMalformedResponse = NewDomainError("MB-HTTP-5021", "malformed response")

	// ErrUnauthorized indicates the server rejected the request credentials.
	ErrUnauthorized = NewDomainError("MB-HTTP-4010", "unauthorized")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrStorage indicates a local storage failure.
	ErrStorage = NewDomainError("MB-SYS-5001", "storage error")

	// ErrSealFailed indicates the stored value could not be sealed or unsealed.
	ErrSealFailed = NewDomainError("MB-SYS-5002", "seal failed")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("MB-ARG-1001", "invalid argument")
)
