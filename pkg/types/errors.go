package types

import (
	"errors"
	"fmt"
)

// ErrorType categorizes admission errors. Every precondition violation maps to
// exactly one type; all of them are recoverable by the caller retrying under
// different conditions.
type ErrorType string

const (
	ErrorTypeAuthorization ErrorType = "authorization"
	ErrorTypeWindow        ErrorType = "window_violation"
	ErrorTypeStateConflict ErrorType = "state_conflict"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeCapacity      ErrorType = "capacity_exceeded"
	ErrorTypeDuplicate     ErrorType = "duplicate_request"
	ErrorTypeNotFound      ErrorType = "not_found"
	ErrorTypeInternal      ErrorType = "internal"
)

// Common error codes
const (
	ErrCodeNotAdmin         = "NOT_ADMIN"
	ErrCodeNotSurgeon       = "NOT_SURGEON"
	ErrCodeNotPatient       = "NOT_PATIENT"
	ErrCodeOutsideWindow    = "OUTSIDE_WINDOW"
	ErrCodeSlotOpen         = "SLOT_ALREADY_OPEN"
	ErrCodeSlotUnavailable  = "SLOT_UNAVAILABLE"
	ErrCodeInvalidInput     = "INVALID_INPUT"
	ErrCodeSlotFull         = "SLOT_FULL"
	ErrCodeAlreadyRequested = "ALREADY_REQUESTED"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeSealingFailed    = "SEALING_FAILED"
)

// AdmissionError is the structured error surfaced by every core operation.
type AdmissionError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *AdmissionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *AdmissionError) Unwrap() error {
	return e.Cause
}

// NewAuthorizationError creates a new authorization error
func NewAuthorizationError(code, message string) *AdmissionError {
	return &AdmissionError{Type: ErrorTypeAuthorization, Code: code, Message: message}
}

// NewWindowViolation creates a new time-window violation error
func NewWindowViolation(message string) *AdmissionError {
	return &AdmissionError{Type: ErrorTypeWindow, Code: ErrCodeOutsideWindow, Message: message}
}

// NewStateConflict creates a new lifecycle state conflict error
func NewStateConflict(code, message string) *AdmissionError {
	return &AdmissionError{Type: ErrorTypeStateConflict, Code: code, Message: message}
}

// NewValidationError creates a new validation error
func NewValidationError(message string, details map[string]interface{}) *AdmissionError {
	return &AdmissionError{Type: ErrorTypeValidation, Code: ErrCodeInvalidInput, Message: message, Details: details}
}

// NewCapacityExceeded creates a new capacity error
func NewCapacityExceeded(message string) *AdmissionError {
	return &AdmissionError{Type: ErrorTypeCapacity, Code: ErrCodeSlotFull, Message: message}
}

// NewDuplicateRequest creates a new duplicate request error
func NewDuplicateRequest(message string) *AdmissionError {
	return &AdmissionError{Type: ErrorTypeDuplicate, Code: ErrCodeAlreadyRequested, Message: message}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AdmissionError {
	return &AdmissionError{Type: ErrorTypeNotFound, Code: ErrCodeNotFound, Message: message}
}

// NewInternalError creates a new internal error wrapping its cause
func NewInternalError(code, message string, cause error) *AdmissionError {
	return &AdmissionError{Type: ErrorTypeInternal, Code: code, Message: message, Cause: cause}
}

// IsErrorType reports whether err is an AdmissionError of the given type.
func IsErrorType(err error, t ErrorType) bool {
	var admErr *AdmissionError
	if errors.As(err, &admErr) {
		return admErr.Type == t
	}
	return false
}

// GetAdmissionError extracts an AdmissionError from a generic error
func GetAdmissionError(err error) (*AdmissionError, bool) {
	var admErr *AdmissionError
	ok := errors.As(err, &admErr)
	return admErr, ok
}
