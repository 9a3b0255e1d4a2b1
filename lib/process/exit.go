// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"os"
)

// exitCoder is implemented by errors that carry their own exit code,
// such as a command that already printed its findings and only needs
// to signal failure.
type exitCoder interface {
	ExitCode() int
}

// Fatal writes "error: err" to stderr and exits with code 1. This is
// the standard entrypoint error handler. Use it in main() for errors
// from run() where the structured logger may not be initialized.
//
// An error carrying an exit code exits with that code instead, and
// prints nothing when its message is empty.
func Fatal(err error) {
	os.Exit(report(err))
}

func report(err error) int {
	var coded exitCoder
	if errors.As(err, &coded) {
		if message := err.Error(); message != "" {
			fmt.Fprintf(os.Stderr, "error: %s\n", message)
		}
		return coded.ExitCode()
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	return 1
}
