// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/the-mail-must-flow/internal/model"
)

// Common application errors.
var (
	// ErrValidation indicates bad input shape; the caller's fault, no state change.
	ErrValidation = errors.New("invalid input")
	// ErrConflict indicates a record was not in the expected status.
	ErrConflict = errors.New("status conflict")
	// ErrNotFound indicates an unknown record for this user.
	ErrNotFound = errors.New("not found")
	// ErrUpstream indicates an inference or provider call failed or timed out.
	ErrUpstream = errors.New("upstream call failed")
	// ErrPersistence indicates the store is unavailable; fatal to the request.
	ErrPersistence = errors.New("persistence failure")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// StatusConflictError reports a transition attempted from the wrong status.
// It always names expected vs actual so a rejected transition is never
// mistaken for a silent no-op.
type StatusConflictError struct {
	RecordID string
	Expected model.Status
	Actual   model.Status
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("record %s: expected status %s, actual %s", e.RecordID, e.Expected, e.Actual)
}

func (e *StatusConflictError) Unwrap() error {
	return ErrConflict
}

// NewStatusConflict creates a conflict error for a failed transition.
func NewStatusConflict(recordID string, expected, actual model.Status) error {
	return &StatusConflictError{
		RecordID: recordID,
		Expected: expected,
		Actual:   actual,
	}
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	// Check for specific retryable errors
	if errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrUpstream) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	// Check for retryable error type
	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
