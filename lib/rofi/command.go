// Copyright 2026 The Keyfold Authors
// SPDX-License-Identifier: Apache-2.0

package rofi

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"unicode"

	"github.com/keyfold/pinentry-rofi/lib/secret"
)

// fallbackDiagnostic is reported when rofi exits non-zero without
// writing anything to stderr.
const fallbackDiagnostic = "rofi"

// Result is the classified outcome of one rofi invocation.
type Result struct {
	// Pin holds the entered passphrase when rofi exited successfully
	// with output. Nil when the user submitted an empty line or the
	// invocation was cancelled. The caller owns the buffer and must
	// Close it after writing the reply.
	Pin *secret.Buffer

	// Cancelled reports that rofi exited non-zero (the user dismissed
	// the prompt or pressed escape).
	Cancelled bool

	// Diagnostic carries rofi's stderr when Cancelled, or the
	// fallback literal when stderr was empty.
	Diagnostic string
}

// Runner invokes the pin picker with the flattened argument list and
// extra KEY=value environment entries for the child process. A non-nil
// error means the picker could not be run at all; cancellation is a
// successful Run with Result.Cancelled set.
type Runner interface {
	Run(arguments, extraEnvironment []string) (*Result, error)
}

// Command runs the real rofi binary.
type Command struct {
	// Path is the rofi executable. Empty means "rofi", resolved via
	// PATH.
	Path string

	// ExtraArgs are appended after the session's arguments, letting a
	// config file pass theming or positioning options through.
	ExtraArgs []string

	// Logger receives invocation outcomes. Arguments and captured
	// output are never logged.
	Logger *slog.Logger
}

// Run spawns rofi and classifies the outcome per the pinentry
// contract: exit 0 with output is an entered pin, exit 0 without
// output is an empty submission, non-zero exit is a cancellation with
// the reason on stderr. The child reads stdin from the null device —
// this process's stdin carries the Assuan stream and must not be
// consumed by the picker.
func (c *Command) Run(arguments, extraEnvironment []string) (*Result, error) {
	path := c.Path
	if path == "" {
		path = "rofi"
	}

	command := exec.Command(path, append(append([]string{}, arguments...), c.ExtraArgs...)...)
	var stdout, stderr bytes.Buffer
	command.Stdout = &stdout
	command.Stderr = &stderr
	// command.Stdin is left nil: os/exec connects the child to the
	// null device.
	if len(extraEnvironment) > 0 {
		command.Env = append(os.Environ(), extraEnvironment...)
	}

	err := command.Run()
	if err != nil {
		var exitError *exec.ExitError
		if !errors.As(err, &exitError) {
			return nil, fmt.Errorf("running %s: %w", path, err)
		}
		diagnostic := strings.TrimSpace(stderr.String())
		if diagnostic == "" {
			diagnostic = fallbackDiagnostic
		}
		c.log("picker cancelled", "exit_code", exitError.ExitCode())
		return &Result{Cancelled: true, Diagnostic: diagnostic}, nil
	}

	captured := stdout.Bytes()
	trimmed := bytes.TrimRightFunc(captured, unicode.IsSpace)
	if len(trimmed) == 0 {
		c.log("picker finished", "pin", false)
		return &Result{}, nil
	}

	// NewFromBytes zeros the trimmed region; erase the trailing
	// whitespace bytes as well so no copy of the capture survives.
	pin, err := secret.NewFromBytes(trimmed)
	secret.Zero(captured)
	if err != nil {
		return nil, fmt.Errorf("storing pin: %w", err)
	}
	c.log("picker finished", "pin", true)
	return &Result{Pin: pin}, nil
}

func (c *Command) log(message string, attributes ...any) {
	if c.Logger != nil {
		c.Logger.Debug(message, attributes...)
	}
}
