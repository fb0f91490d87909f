// Copyright 2026 The Keyfold Authors
// SPDX-License-Identifier: Apache-2.0

// Pinentry-rofi is a pinentry replacement that prompts for passphrases
// with rofi in dmenu mode. It speaks the Assuan pinentry protocol on
// stdin/stdout for gpg-agent (or any compatible credential agent) and
// runs one session per invocation.
//
// Install:
//
//  1. Copy pinentry-rofi to ~/.local/bin (or /usr/bin) and make it
//     executable.
//  2. Point gpg-agent at it in ~/.gnupg/gpg-agent.conf:
//     pinentry-program /home/you/.local/bin/pinentry-rofi
//  3. Restart the agent: gpgconf --kill gpg-agent
//
// The display defaults to $DISPLAY (or :0), the prompt to
// $PINENTRY_USER_DATA; both can be fixed with the -d/--display and
// -p/--prompt flags or a YAML config file named by --config or
// $PINENTRY_ROFI_CONFIG. All logging goes to stderr — stdout carries
// the protocol.
package main
