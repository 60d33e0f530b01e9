// Package errors holds the error definitions shared by the whole backend.
//
// This file provides:
// - Wire protocol error codes
// - Sentinel errors for every failure kind the engine reports
// - Error category checking functions
// - ErrorToCode / CodeToError / HTTPStatus mapping
// - Error wrapping utilities
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ============================================================================
// Wire protocol error codes - carried in error envelopes
// ============================================================================

const (
	CodeUnknown           int32 = 1
	CodeAuthFailed        int32 = 2
	CodeNotAuthenticated  int32 = 3
	CodeInvalidRequest    int32 = 4
	CodeNotFound          int32 = 5
	CodeInvalidIdentifier int32 = 6
	CodeInternal          int32 = 7
	CodeInvalidReference  int32 = 8
	CodeCycleRejected     int32 = 9
	CodeConcurrentMod     int32 = 10
	CodeNothingToMove     int32 = 11
	CodeUnknownOperation  int32 = 12
	CodeTimeout           int32 = 13
)

// CodeName returns a human-readable name for an error code.
func CodeName(code int32) string {
	switch code {
	case CodeUnknown:
		return "Unknown"
	case CodeAuthFailed:
		return "AuthFailed"
	case CodeNotAuthenticated:
		return "NotAuthenticated"
	case CodeInvalidRequest:
		return "InvalidRequest"
	case CodeNotFound:
		return "NotFound"
	case CodeInvalidIdentifier:
		return "InvalidIdentifier"
	case CodeInternal:
		return "Internal"
	case CodeInvalidReference:
		return "InvalidReference"
	case CodeCycleRejected:
		return "CycleRejected"
	case CodeConcurrentMod:
		return "ConcurrentModification"
	case CodeNothingToMove:
		return "NothingToMove"
	case CodeUnknownOperation:
		return "UnknownOperation"
	case CodeTimeout:
		return "Timeout"
	default:
		return fmt.Sprintf("Code(%d)", code)
	}
}

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Lookup errors
	ErrNotFound          = errors.New("not found")
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrInvalidReference  = errors.New("invalid reference")

	// Structural errors
	ErrCycleRejected          = errors.New("move would create a cycle")
	ErrNothingToMove          = errors.New("nothing to move")
	ErrConcurrentModification = errors.New("concurrent modification of the storage hierarchy")

	// Validation errors
	ErrInvalidName   = errors.New("invalid name")
	ErrInvalidValue  = errors.New("invalid value")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingField  = errors.New("missing required field")

	// Request errors
	ErrUnknownOperation = errors.New("unknown operation")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTimeout          = errors.New("timeout")

	// Internal errors
	ErrInternal = errors.New("internal error")
	ErrDatabase = errors.New("database error")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// New is a convenience wrapper for errors.New
var New = errors.New

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrInvalidValue) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingField)
}

// IsStructural returns true if err rejects a change to the hierarchy.
func IsStructural(err error) bool {
	return errors.Is(err, ErrCycleRejected) ||
		errors.Is(err, ErrNothingToMove) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsAuthError returns true if err is an authentication error.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrNotAuthenticated) ||
		errors.Is(err, ErrInvalidToken)
}

// IsRetriable returns true if the caller may retry the same request.
// The engine itself never retries.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrTimeout)
}

// ============================================================================
// Error to wire code / HTTP status mapping
// ============================================================================

// ErrorToCode maps a sentinel error to its wire protocol code.
//
// Malformed identifiers are checked before references so that a malformed
// parent id reports InvalidIdentifier, and references before not-found so
// that a missing parent reports InvalidReference.
func ErrorToCode(err error) int32 {
	if err == nil {
		return CodeUnknown
	}

	switch {
	case Is(err, ErrInvalidToken):
		return CodeAuthFailed
	case Is(err, ErrNotAuthenticated):
		return CodeNotAuthenticated
	case Is(err, ErrInvalidIdentifier):
		return CodeInvalidIdentifier
	case Is(err, ErrInvalidReference):
		return CodeInvalidReference
	case IsNotFound(err):
		return CodeNotFound
	case Is(err, ErrCycleRejected):
		return CodeCycleRejected
	case Is(err, ErrNothingToMove):
		return CodeNothingToMove
	case Is(err, ErrConcurrentModification):
		return CodeConcurrentMod
	case IsValidation(err):
		return CodeInvalidRequest
	case Is(err, ErrUnknownOperation):
		return CodeUnknownOperation
	case Is(err, ErrTimeout):
		return CodeTimeout
	default:
		return CodeInternal
	}
}

// CodeToError maps a wire code to a sentinel error (for clients).
func CodeToError(code int32) error {
	switch code {
	case CodeAuthFailed:
		return ErrInvalidToken
	case CodeNotAuthenticated:
		return ErrNotAuthenticated
	case CodeInvalidRequest:
		return ErrInvalidValue
	case CodeNotFound:
		return ErrNotFound
	case CodeInvalidIdentifier:
		return ErrInvalidIdentifier
	case CodeInvalidReference:
		return ErrInvalidReference
	case CodeCycleRejected:
		return ErrCycleRejected
	case CodeConcurrentMod:
		return ErrConcurrentModification
	case CodeNothingToMove:
		return ErrNothingToMove
	case CodeUnknownOperation:
		return ErrUnknownOperation
	case CodeTimeout:
		return ErrTimeout
	default:
		return ErrInternal
	}
}

// HTTPStatus maps an error to the status code used by the REST layer.
func HTTPStatus(err error) int {
	switch ErrorToCode(err) {
	case CodeAuthFailed, CodeNotAuthenticated:
		return http.StatusUnauthorized
	case CodeInvalidIdentifier, CodeInvalidRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidReference, CodeCycleRejected, CodeNothingToMove:
		return http.StatusUnprocessableEntity
	case CodeConcurrentMod:
		return http.StatusConflict
	case CodeUnknownOperation:
		return http.StatusNotFound
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewNotFound creates a not-found error with context.
func NewNotFound(entityType, id string) error {
	return fmt.Errorf("%s '%s': %w", entityType, id, ErrNotFound)
}

// NewMissingReference reports a referenced entity that does not exist.
// The result matches both ErrInvalidReference and ErrNotFound.
func NewMissingReference(entityType, id string) error {
	return fmt.Errorf("%s '%s': %w: %w", entityType, id, ErrInvalidReference, ErrNotFound)
}

// NewInvalidIdentifier reports a malformed identifier.
func NewInvalidIdentifier(field, id string) error {
	return fmt.Errorf("%s '%s': %w", field, id, ErrInvalidIdentifier)
}

// NewMalformedReference reports a referenced id that is not well-formed.
// The result matches both ErrInvalidReference and ErrInvalidIdentifier.
func NewMalformedReference(field, id string) error {
	return fmt.Errorf("%s '%s': %w: %w", field, id, ErrInvalidReference, ErrInvalidIdentifier)
}

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidValue)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// ============================================================================
// Validation Errors Collection
// ============================================================================

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add adds an error to the collection.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AddField adds a field validation error.
func (v *ValidationErrors) AddField(field, reason string) {
	v.Errors = append(v.Errors, NewValidation(field, reason))
}

// AddMissing adds a missing field error.
func (v *ValidationErrors) AddMissing(field string) {
	v.Errors = append(v.Errors, NewMissingField(field))
}

// HasErrors returns true if there are any errors.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Unwrap returns the collected errors for errors.Is/As support.
func (v *ValidationErrors) Unwrap() []error {
	return v.Errors
}
