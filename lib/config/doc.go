// Copyright 2026 The Keyfold Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for pinentry-rofi.
//
// Configuration is loaded from a single file specified by either the
// PINENTRY_ROFI_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There are no fallbacks, no ~/.config
// discovery, and no automatic file search; gpg-agent launches this
// binary with a minimal environment, and a config file that appears
// only sometimes would be a debugging trap.
//
// Unlike a service deployment, the config file is optional: a pinentry
// must work with zero setup, so [Load] returns [Default] when the
// environment variable is unset. CLI flags and the DISPLAY /
// PINENTRY_USER_DATA environment variables override file values; that
// precedence is applied by the caller, not here.
//
// This package depends on no other project packages.
package config
