// Package errors provides error handling for Noema.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - PII-safe error formatting
//
// Usage:
//
//	// Create new error
//	err := errors.New("something went wrong")
//
//	// Wrap with context
//	if err := doSomething(); err != nil {
//	    return errors.Wrap(err, "failed to do something")
//	}
//
//	// Check errors
//	if errors.Is(err, errors.ErrOracleFailure) {
//	    // handle oracle failure
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
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is        = crdb.Is
	IsAny     = crdb.IsAny
	As        = crdb.As
	Unwrap    = crdb.Unwrap
	UnwrapAll = crdb.UnwrapAll
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Failure taxonomy for the ingestion and merge pipelines.
// Use these with errors.Is() for type-safe error checking.
// Wrap these with errors.Wrap() to add context while preserving the type.
var (
	// ErrOracleFailure indicates the external text-generation oracle failed
	// or returned output that could not be parsed. The operation that made
	// the call is aborted with no durable writes; there is no retry.
	ErrOracleFailure = New("oracle failure")

	// ErrNothingToIngest indicates an extraction returned no candidate
	// entities, so no transaction was opened.
	ErrNothingToIngest = New("nothing to ingest")

	// ErrUnresolvedReference indicates a relationship type or endpoint
	// entity name could not be resolved within the current ingestion run.
	// The offending relationship is skipped; ingestion continues.
	ErrUnresolvedReference = New("unresolved reference")

	// ErrValidationRejected indicates a candidate relationship failed the
	// admission gate (guard, hard constraint, or confidence threshold).
	ErrValidationRejected = New("validation rejected")

	// ErrNotFound indicates the requested record does not exist
	ErrNotFound = New("not found")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsOracleFailure checks if an error is or wraps ErrOracleFailure
func IsOracleFailure(err error) bool {
	return err != nil && Is(err, ErrOracleFailure)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Wrap(ErrNotFound, Newf(format, args...).Error())
}
