// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

// ExitError signals a non-zero exit code without printing an extra
// error message. The command is expected to have already written its
// own output, as "catalog hash" does when nothing matches.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string { return "" }

// ExitCode returns the exit code.
func (e *ExitError) ExitCode() int { return e.Code }
