// Copyright 2026 The Keyfold Authors
// SPDX-License-Identifier: Apache-2.0

// Package rofi accumulates and executes rofi dmenu invocations for
// passphrase entry.
//
// [Args] is the presentation state: an ordered mapping from rofi option
// name to an optional value, built up by the Assuan session as the
// agent describes the prompt, and flattened to a command line when the
// pin is requested. [Base] seeds the fixed option set every invocation
// carries (dmenu mode, password input, history disabled, zero list
// rows).
//
// [Command] runs the rofi binary and classifies the outcome: a
// successful exit with output is an entered pin (held in a
// [secret.Buffer]), a non-zero exit is a user cancellation with the
// diagnostic taken from stderr. The [Runner] interface lets the session
// layer substitute a fake in tests.
package rofi
