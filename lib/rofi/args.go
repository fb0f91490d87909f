// Copyright 2026 The Keyfold Authors
// SPDX-License-Identifier: Apache-2.0

package rofi

import (
	"sort"
	"strings"
)

// option is a single rofi command-line option. Flag-only options
// (-dmenu, -password) carry no value.
type option struct {
	value    string
	hasValue bool
}

// Args is the accumulated set of rofi options for one pinentry session.
// Option names map to optional values; flattening emits `name value`
// for valued options and `name` alone for flags. Rofi attaches no
// meaning to the relative order of distinct options, so CommandLine
// sorts by name for deterministic invocations.
//
// Args is owned by a single session and is not safe for concurrent use.
type Args struct {
	options map[string]option
}

// Base returns the fixed option set every rofi pin prompt starts from:
// dmenu mode on the given display, input from /dev/null, password
// masking, history disabled, and zero list rows.
func Base(display string) *Args {
	args := &Args{options: make(map[string]option)}
	args.SetFlag("-dmenu")
	args.Set("-display", display)
	args.Set("-input", "/dev/null")
	args.SetFlag("-password")
	args.SetFlag("-disable-history")
	args.Set("-l", "0")
	return args
}

// Set stores value under name, replacing any previous value or flag.
func (a *Args) Set(name, value string) {
	a.options[name] = option{value: value, hasValue: true}
}

// SetFlag stores name with no value, replacing any previous entry.
func (a *Args) SetFlag(name string) {
	a.options[name] = option{}
}

// SetIfAbsent stores value under name only when name is not already
// present. Used for the prompt, where the first writer wins for the
// rest of the session.
func (a *Args) SetIfAbsent(name, value string) {
	if _, present := a.options[name]; present {
		return
	}
	a.Set(name, value)
}

// PrependError layers an error message onto the value stored under
// name: the new value is message, the separator, then the original
// text. When the current value already carries a stacked error, only
// the text after the last separator is kept, so repeated errors always
// layer onto the original description rather than onto each other.
//
// When name is absent or holds no value there is no description to
// anchor to and the message is dropped.
func (a *Args) PrependError(name, message, separator string) {
	current, present := a.options[name]
	if !present || !current.hasValue {
		return
	}
	original := current.value
	if index := strings.LastIndex(original, separator); index >= 0 {
		original = original[index+len(separator):]
	}
	a.Set(name, message+separator+original)
}

// Value reports the entry stored under name: its value, whether a
// value is attached, and whether the name is present at all.
func (a *Args) Value(name string) (value string, hasValue, present bool) {
	entry, present := a.options[name]
	return entry.value, entry.hasValue, present
}

// CommandLine flattens the option set into argv tokens for rofi.
// Valued options contribute two tokens, flags one. Options are emitted
// in ascending name order.
func (a *Args) CommandLine() []string {
	names := make([]string, 0, len(a.options))
	for name := range a.options {
		names = append(names, name)
	}
	sort.Strings(names)

	tokens := make([]string, 0, 2*len(names))
	for _, name := range names {
		tokens = append(tokens, name)
		if entry := a.options[name]; entry.hasValue {
			tokens = append(tokens, entry.value)
		}
	}
	return tokens
}
