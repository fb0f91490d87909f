// Copyright 2026 The Keyfold Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the binary entrypoint error handler.
//
// Stdout belongs to the Assuan protocol stream, so the only legitimate
// raw output channel for errors is stderr. [Fatal] centralizes the one
// place that writes there directly: error reporting from main() when
// the structured logger may not be initialized yet.
package process
