// Package shared contains common domain types, errors, and events that are
// used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")
	ErrExpired         = errors.New("expired")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Infrastructure errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "user", "offering", "ranking"
	Op      string // Operation that failed, e.g., "Create", "TogglePrayer"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// User domain errors
var (
	ErrUserNotFound      = NewDomainError("user", "Find", ErrNotFound, "user not found")
	ErrUserAlreadyExists = NewDomainError("user", "Create", ErrAlreadyExists, "user already exists")
	ErrUsernameTaken     = NewDomainError("user", "Create", ErrAlreadyExists, "username already taken")
	ErrEmailTaken        = NewDomainError("user", "Create", ErrAlreadyExists, "email already registered")
	ErrInvalidUsername   = NewDomainError("user", "Validate", ErrInvalidFormat, "invalid username")
	ErrInvalidEmail      = NewDomainError("user", "Validate", ErrInvalidFormat, "invalid email")
	ErrUserNotActive     = NewDomainError("user", "CheckStatus", ErrInvalidState, "user is not active")
	ErrWrongCredentials  = NewDomainError("user", "Authenticate", ErrUnauthorized, "wrong username or password")
)

// Offering domain errors
var (
	ErrOfferingNotFound  = NewDomainError("offering", "Find", ErrNotFound, "offering not found")
	ErrOfferingExists    = NewDomainError("offering", "Create", ErrAlreadyExists, "offering already exists")
	ErrInvalidTitle      = NewDomainError("offering", "Validate", ErrValueOutOfRange, "title must be 1-120 chars")
	ErrInvalidContent    = NewDomainError("offering", "Validate", ErrValueOutOfRange, "content must be 1-4000 chars")
	ErrInvalidGenre      = NewDomainError("offering", "Validate", ErrInvalidInput, "unknown genre")
	ErrNoGenres          = NewDomainError("offering", "Validate", ErrEmptyValue, "at least one genre is required")
	ErrTooManyGenres     = NewDomainError("offering", "Validate", ErrValueOutOfRange, "at most 5 genres allowed")
	ErrGuidanceNotFound  = NewDomainError("offering", "FindGuidance", ErrNotFound, "guidance not found")
	ErrInvalidGuidance   = NewDomainError("offering", "AddGuidance", ErrValueOutOfRange, "guidance must be 1-1000 chars")
	ErrDuplicateGuidance = NewDomainError("offering", "AddGuidance", ErrAlreadyExists, "guidance already attached")
)

// Ranking domain errors
var (
	ErrBoardNotFound    = NewDomainError("ranking", "Find", ErrNotFound, "ranking board not found")
	ErrInvalidWindow    = NewDomainError("ranking", "Validate", ErrInvalidInput, "unknown ranking window")
	ErrSnapshotNotFound = NewDomainError("ranking", "FindSnapshot", ErrNotFound, "snapshot not found")
	ErrBoardStale       = NewDomainError("ranking", "Refresh", ErrExpired, "ranking data is stale")
)

// Search domain errors
var (
	ErrInvalidFilter = NewDomainError("search", "Validate", ErrInvalidInput, "invalid search filter")
	ErrQueryTooLong  = NewDomainError("search", "Validate", ErrValueOutOfRange, "query exceeds 200 chars")
)

// Notification domain errors
var (
	ErrNotificationNotFound = NewDomainError("notification", "Find", ErrNotFound, "notification not found")
	ErrNotificationDisabled = NewDomainError("notification", "Check", ErrForbidden, "notifications disabled by user")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsUnauthorized checks if the error is an authorization failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrTimeout)
}
