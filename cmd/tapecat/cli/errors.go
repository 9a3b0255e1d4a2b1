// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import "fmt"

// ErrorCategory classifies a command failure and selects the exit
// code.
type ErrorCategory string

const (
	// CategoryValidation is bad input: unknown flags, malformed
	// patterns, missing arguments.
	CategoryValidation ErrorCategory = "validation"

	// CategoryNotFound is a tape, path or file that does not exist.
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryInternal is everything else.
	CategoryInternal ErrorCategory = "internal"
)

// CommandError is an error with a category. Use the constructors below
// rather than building one directly.
type CommandError struct {
	Category ErrorCategory
	Err      error
}

func (e *CommandError) Error() string { return e.Err.Error() }

func (e *CommandError) Unwrap() error { return e.Err }

// ExitCode maps the category to the process exit code: 2 for usage
// errors, 3 for missing things, 1 otherwise.
func (e *CommandError) ExitCode() int {
	switch e.Category {
	case CategoryValidation:
		return 2
	case CategoryNotFound:
		return 3
	}
	return 1
}

// Validation returns a validation error. Supports %w.
func Validation(format string, args ...any) *CommandError {
	return &CommandError{Category: CategoryValidation, Err: fmt.Errorf(format, args...)}
}

// NotFound returns a not-found error. Supports %w.
func NotFound(format string, args ...any) *CommandError {
	return &CommandError{Category: CategoryNotFound, Err: fmt.Errorf(format, args...)}
}

// Internal returns an internal error. Supports %w.
func Internal(format string, args ...any) *CommandError {
	return &CommandError{Category: CategoryInternal, Err: fmt.Errorf(format, args...)}
}
