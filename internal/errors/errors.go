// Package errors provides centralized error definitions and error handling
// utilities for the Curator codebase. It defines domain-specific errors,
// semantic error types, error constructors with context wrapping, and
// error classification helpers.
//
// # Error Types
//
// The package provides two categories of errors:
//
// Domain-specific errors represent errors from specific subsystems:
//   - WizardError: errors related to campaign draft construction
//   - StoreError: errors related to label store access
//   - InteractionError: errors related to operator interaction handling
//
// Semantic sentinels represent common error conditions:
//   - ErrDraftIncomplete: materialize attempted before every field was set
//   - ErrSchemaConflict: label store data shaped incompatibly with ours
//   - ErrUnknownToken / ErrUnknownOption: stale or replayed interaction
//   - ErrNoMatchingSession: interaction references no live session
//   - ErrUnauthorized: caller is not the configured operator
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewStoreError("failed to apply tag", errors.ErrSchemaConflict).
//		WithItemID("a.png")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrSchemaConflict) { ... }
//
//	var storeErr *errors.StoreError
//	if errors.As(err, &storeErr) { ... }
//
//	if errors.IsStale(err) { ... }
//	if errors.IsUserFacing(err) { ... }
//
// # Correlation
//
// Unexpected errors are wrapped with Correlate, which attaches a unique
// reference id. The operator sees only the reference; the full detail goes
// to the log under the same id.
package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Wizard-related sentinel errors
var (
	// ErrDraftIncomplete indicates materialize was attempted before every
	// required draft field was answered.
	ErrDraftIncomplete = New("draft is incomplete")
	// ErrWrongInputKind indicates text was applied to a choice step or a
	// choice to a text step.
	ErrWrongInputKind = New("input does not match the current step")
	// ErrDraftExists indicates a draft is already in progress for the chat.
	ErrDraftExists = New("a draft is already in progress")
)

// Label-store sentinel errors
var (
	// ErrSchemaConflict indicates the label store contains data shaped
	// incompatibly with what this system writes. It is never auto-repaired.
	ErrSchemaConflict = New("label store schema conflict")
	// ErrItemNotFound indicates the referenced item does not exist in the
	// backing location.
	ErrItemNotFound = New("item not found")
)

// Interaction sentinel errors
var (
	// ErrUnknownToken indicates an interaction referenced a token the
	// identity index does not know. Usually a stale or replayed message.
	ErrUnknownToken = New("no matching item for token")
	// ErrUnknownOption indicates an interaction referenced an option id the
	// identity index does not know.
	ErrUnknownOption = New("no matching option")
	// ErrNoMatchingSession indicates an interaction references no live session.
	ErrNoMatchingSession = New("no matching session")
	// ErrUnauthorized indicates the caller is not the configured operator.
	ErrUnauthorized = New("unauthorized")
)

// General sentinel errors
var (
	// ErrNotFound indicates that a requested resource does not exist.
	ErrNotFound = New("not found")
	// ErrAlreadyExists indicates a resource that was expected to be absent.
	ErrAlreadyExists = New("already exists")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// IsUserFacing returns whether the error is safe to show the operator.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// WizardError represents errors related to campaign draft construction.
type WizardError struct {
	baseError
	Step string
}

// NewWizardError creates a new WizardError.
func NewWizardError(message string, cause error) *WizardError {
	return &WizardError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			userFacing: true,
		},
	}
}

// WithStep adds the wizard step name to the error context.
func (e *WizardError) WithStep(step string) *WizardError {
	e.Step = step
	return e
}

// Error returns the formatted error message.
func (e *WizardError) Error() string {
	prefix := "wizard error"
	if e.Step != "" {
		prefix = fmt.Sprintf("wizard error [step=%s]", e.Step)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *WizardError) Is(target error) bool {
	if _, ok := target.(*WizardError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// StoreError represents errors related to label store access.
//
// Example:
//
//	err := errors.NewStoreError("tags key is not an array", errors.ErrSchemaConflict).
//		WithItemID("a.png").WithKey("tags")
type StoreError struct {
	baseError
	ItemID string
	Key    string
}

// NewStoreError creates a new StoreError.
func NewStoreError(message string, cause error) *StoreError {
	return &StoreError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			userFacing: true,
		},
	}
}

// WithItemID adds the item id to the error context.
func (e *StoreError) WithItemID(id string) *StoreError {
	e.ItemID = id
	return e
}

// WithKey adds the conflicting record key to the error context.
func (e *StoreError) WithKey(key string) *StoreError {
	e.Key = key
	return e
}

// Error returns the formatted error message.
func (e *StoreError) Error() string {
	var parts []string
	if e.ItemID != "" {
		parts = append(parts, fmt.Sprintf("item=%s", e.ItemID))
	}
	if e.Key != "" {
		parts = append(parts, fmt.Sprintf("key=%s", e.Key))
	}

	prefix := "label store error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("label store error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *StoreError) Is(target error) bool {
	if _, ok := target.(*StoreError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// InteractionError represents errors raised while handling a single
// operator interaction. These are always recoverable: the interaction is
// dropped and reported, session state is untouched.
type InteractionError struct {
	baseError
	SessionID int
	Token     int
}

// NewInteractionError creates a new InteractionError.
func NewInteractionError(message string, cause error) *InteractionError {
	return &InteractionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			userFacing: true,
		},
	}
}

// WithSessionID adds the session id to the error context.
func (e *InteractionError) WithSessionID(id int) *InteractionError {
	e.SessionID = id
	return e
}

// WithToken adds the interaction token to the error context.
func (e *InteractionError) WithToken(token int) *InteractionError {
	e.Token = token
	return e
}

// Error returns the formatted error message.
func (e *InteractionError) Error() string {
	var parts []string
	if e.SessionID != 0 {
		parts = append(parts, fmt.Sprintf("session=%d", e.SessionID))
	}
	if e.Token != 0 {
		parts = append(parts, fmt.Sprintf("token=%d", e.Token))
	}

	prefix := "interaction error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("interaction error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *InteractionError) Is(target error) bool {
	if _, ok := target.(*InteractionError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Correlated Errors
// -----------------------------------------------------------------------------

// CorrelatedError wraps an unexpected error with a unique reference id.
// The id is safe to surface to the operator; the wrapped detail is not.
type CorrelatedError struct {
	Ref   string
	cause error
}

// Correlate wraps err with a fresh correlation reference.
// Returns nil if err is nil.
func Correlate(err error) *CorrelatedError {
	if err == nil {
		return nil
	}
	return &CorrelatedError{
		Ref:   uuid.NewString(),
		cause: err,
	}
}

// Error returns the full message including the wrapped detail.
func (e *CorrelatedError) Error() string {
	return fmt.Sprintf("error [ref=%s]: %v", e.Ref, e.cause)
}

// Unwrap returns the wrapped error.
func (e *CorrelatedError) Unwrap() error {
	return e.cause
}

// OperatorMessage returns the opaque text to show the operator.
func (e *CorrelatedError) OperatorMessage() string {
	return fmt.Sprintf("Something went wrong. Reference: %s", e.Ref)
}

// -----------------------------------------------------------------------------
// Classification Helpers
// -----------------------------------------------------------------------------

// IsStale reports whether err indicates a stale or replayed interaction:
// the operator acted on a message the system no longer tracks. Stale
// errors are reported and otherwise ignored; no state is mutated.
func IsStale(err error) bool {
	return Is(err, ErrUnknownToken) ||
		Is(err, ErrUnknownOption) ||
		Is(err, ErrNoMatchingSession)
}

// IsUserFacing returns true if the error message is safe to display to the
// operator. Sentinel errors defined in this package are user facing;
// anything else should be correlated first.
func IsUserFacing(err error) bool {
	type userFacer interface {
		IsUserFacing() bool
	}
	var uf userFacer
	if As(err, &uf) {
		return uf.IsUserFacing()
	}
	return IsStale(err) ||
		Is(err, ErrDraftIncomplete) ||
		Is(err, ErrSchemaConflict) ||
		Is(err, ErrUnauthorized) ||
		Is(err, ErrInvalidInput)
}
