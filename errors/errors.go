// Package errors provides error handling for dirjobs.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Details and hints for users
//   - Assertion failures for broken invariants
//
// Usage:
//
//	if err := conn.Bind(ctx, mon); err != nil {
//	    return errors.Wrap(err, "failed to bind connection")
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint       = crdb.WithHint
	WithHintf      = crdb.WithHintf
	WithDetail     = crdb.WithDetail
	WithDetailf    = crdb.WithDetailf
	GetAllDetails  = crdb.GetAllDetails
	GetAllHints    = crdb.GetAllHints
	FlattenDetails = crdb.FlattenDetails
)

// Error inspection
var (
	Is         = crdb.Is
	IsAny      = crdb.IsAny
	As         = crdb.As
	Unwrap     = crdb.Unwrap
	UnwrapOnce = crdb.UnwrapOnce
	UnwrapAll  = crdb.UnwrapAll
	Mark       = crdb.Mark
)

// Assertions and panics
var (
	AssertionFailedf   = crdb.AssertionFailedf
	IsAssertionFailure = crdb.IsAssertionFailure
)

// Sentinel errors for the job coordinator.
// Wrap these with errors.Wrap() or attach them with errors.Mark() to add context
// while keeping errors.Is() checks working.
var (
	// ErrAdmissionConflict indicates a job was held back because a running job
	// of the same type holds an overlapping lock. It is never a job outcome.
	ErrAdmissionConflict = New("admission conflict")

	// ErrConnectionSetup marks connect or bind failures during connection auto-open
	ErrConnectionSetup = New("connection setup failed")

	// ErrPayload marks a failure raised by job payload code, including recovered panics
	ErrPayload = New("payload failed")

	// ErrCancelled indicates the job observed cooperative cancellation
	ErrCancelled = New("cancelled")

	// ErrSchedulerStopped is returned when submitting to a stopped scheduler
	ErrSchedulerStopped = New("scheduler stopped")

	// ErrInvalidRequest indicates a malformed job descriptor or config value
	ErrInvalidRequest = New("invalid request")
)

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Wrap(ErrInvalidRequest, Newf(format, args...).Error())
}
