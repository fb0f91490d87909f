// Copyright 2026 The Keyfold Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"log/slog"
	"os"

	"golang.org/x/term"
)

// newLogger creates the session logger on stderr (stdout carries the
// Assuan stream). When stderr is a terminal, uses slog.TextHandler for
// human-readable output; when it is piped or redirected (gpg-agent
// normally inherits its own log sink), uses slog.JSONHandler for
// machine-parseable output. Request arguments and pins are never
// logged at any level.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if term.IsTerminal(int(os.Stderr.Fd())) {
		handler = slog.NewTextHandler(os.Stderr, options)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, options)
	}
	return slog.New(handler)
}
