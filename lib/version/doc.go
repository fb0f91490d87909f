// Copyright 2026 The Keyfold Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the
// pinentry-rofi binary.
//
// Four package-level variables are injected at build time via
// -ldflags -X:
//
//   - [GitCommit] -- short git SHA of the build
//   - [GitDirty] -- "true" if there were uncommitted changes
//   - [BuildTime] -- UTC timestamp of the build
//   - [Version] -- semantic version string (set manually for releases)
//
// These default to "unknown" / "0.1.0-dev" when not injected, which
// occurs during development builds and test runs.
//
// [Short] is the value reported to gpg-agent for GETINFO version;
// [Info] feeds --version output.
package version
