// Copyright 2026 The Keyfold Authors
// SPDX-License-Identifier: Apache-2.0

// Package assuan implements the pinentry side of the Assuan protocol
// spoken by gpg-agent over stdin/stdout.
//
// [Session] is the command interpreter: it greets the agent, reads one
// request line at a time, and dispatches on the action verb. SETPROMPT,
// SETDESC, and SETERROR mutate the rofi argument set (with the
// protocol's text transformations: percent-decoding, newline remapping,
// markup escaping, and error stacking onto the original description);
// GETPIN hands the flattened arguments to a [rofi.Runner] and relays
// the outcome as a D data line or an ERR cancellation; OPTION records
// TTY and locale values in the session [Environment] for GETINFO
// ttyinfo and for the picker's child environment.
//
// One session per process: the loop ends at EOF or, with a BYE reply
// and an [UnknownCommandError], at the first unrecognized command.
// Every reply is a single line written and flushed before the next
// request is read.
package assuan
