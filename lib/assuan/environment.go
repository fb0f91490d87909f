// Copyright 2026 The Keyfold Authors
// SPDX-License-Identifier: Apache-2.0

package assuan

import "os"

// Environment is the session's view of the TTY and locale variables
// the agent propagates via OPTION. The session writes here instead of
// mutating the process environment; the picker adapter receives the
// writes as KEY=value pairs for the child process, which observes the
// same values it would under a global setenv.
type Environment interface {
	// Set records value under key for the rest of the session.
	Set(key, value string)

	// Lookup returns the value for key and whether it is set.
	Lookup(key string) (string, bool)

	// Overrides returns the session's writes as KEY=value pairs in
	// the order first written, suitable for appending to a child
	// process environment.
	Overrides() []string
}

// ProcessEnvironment overlays session writes on the process
// environment: Lookup prefers a session write and falls back to
// os.LookupEnv.
type ProcessEnvironment struct {
	values map[string]string
	order  []string
}

// NewProcessEnvironment returns an empty overlay over the process
// environment.
func NewProcessEnvironment() *ProcessEnvironment {
	return &ProcessEnvironment{values: make(map[string]string)}
}

// Set records value under key. A repeated key keeps its original
// position in the override order.
func (e *ProcessEnvironment) Set(key, value string) {
	if _, present := e.values[key]; !present {
		e.order = append(e.order, key)
	}
	e.values[key] = value
}

// Lookup returns a session write for key, or the process environment
// value when the session has not written it.
func (e *ProcessEnvironment) Lookup(key string) (string, bool) {
	if value, present := e.values[key]; present {
		return value, true
	}
	return os.LookupEnv(key)
}

// Overrides returns the session's writes as KEY=value pairs.
func (e *ProcessEnvironment) Overrides() []string {
	pairs := make([]string, 0, len(e.order))
	for _, key := range e.order {
		pairs = append(pairs, key+"="+e.values[key])
	}
	return pairs
}
