// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/bureau-foundation/tapecat/lib/config"
)

// NewCommandLogger creates the structured logger for a command from
// the log section of the configuration.
//
// With format "auto", stderr gets slog.TextHandler when it is a
// terminal and slog.JSONHandler when piped or redirected. When a log
// file is configured every record is also appended to it, rotated by
// size. The returned closer flushes and closes the file; it is a no-op
// without one.
func NewCommandLogger(stderr io.Writer, options config.LogConfig) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	if options.Level != "" {
		if err := level.UnmarshalText([]byte(options.Level)); err != nil {
			return nil, nil, fmt.Errorf("log level %q: %w", options.Level, err)
		}
	}

	writer := stderr
	var closer io.Closer = nopCloser{}
	if options.File != "" {
		if err := os.MkdirAll(filepath.Dir(options.File), 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
		rotating := &lumberjack.Logger{
			Filename:   options.File,
			MaxSize:    options.MaxSizeMB,
			MaxAge:     options.MaxAgeDays,
			MaxBackups: options.MaxBackups,
			Compress:   options.Compress,
		}
		writer = io.MultiWriter(stderr, rotating)
		closer = rotating
	}

	handlerOptions := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(options.Format) {
	case "json":
		handler = slog.NewJSONHandler(writer, handlerOptions)
	case "text":
		handler = slog.NewTextHandler(writer, handlerOptions)
	default:
		if isTerminal(stderr) {
			handler = slog.NewTextHandler(writer, handlerOptions)
		} else {
			handler = slog.NewJSONHandler(writer, handlerOptions)
		}
	}
	return slog.New(handler), closer, nil
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
