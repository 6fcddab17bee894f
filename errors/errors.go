// Package errors provides error handling for stubzen.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints and details for user-facing diagnostics
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
//	if errors.Is(err, errors.ErrValidationFailed) {
//	    // handle rejected stub unit
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
	Join      = crdb.Join
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Stack trace access for diagnostics and crash reports
var (
	GetReportableStackTrace = crdb.GetReportableStackTrace
)

// GetStack is an alias for GetReportableStackTrace for convenience.
var GetStack = crdb.GetReportableStackTrace

// Sentinel errors for use across stubzen.
// Use these with errors.Is() for type-safe error checking, and wrap them
// with errors.Wrap() to add context while preserving the type.
var (
	// ErrNoConfig indicates no usable configuration could be loaded
	ErrNoConfig = New("no configuration")

	// ErrClassNotFound indicates a configured class reference did not
	// resolve to a class in the scanned project
	ErrClassNotFound = New("class not found")

	// ErrValidationFailed indicates a rendered stub unit failed the syntax
	// check and was not persisted
	ErrValidationFailed = New("stub validation failed")

	// ErrUnknownStubStyle indicates an unrecognized stub_style value
	ErrUnknownStubStyle = New("unknown stub style")

	// ErrParseFailed indicates a source file could not be parsed at all
	ErrParseFailed = New("parse failed")

	// ErrManifestClosed indicates use of a manifest store after Close
	ErrManifestClosed = New("manifest store closed")
)

// IsValidationError checks if an error is or wraps ErrValidationFailed.
func IsValidationError(err error) bool {
	return err != nil && Is(err, ErrValidationFailed)
}

// NewValidationError creates a validation error carrying the offending
// output path and the first failing line.
func NewValidationError(path string, line int, detail string) error {
	return Wrapf(ErrValidationFailed, "%s:%d: %s", path, line, detail)
}

// WrapClassNotFound wraps an error as a class-not-found error with the
// dotted reference that failed to resolve.
func WrapClassNotFound(ref string) error {
	return Wrapf(ErrClassNotFound, "%s", ref)
}
