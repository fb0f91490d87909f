// Copyright 2026 The Keyfold Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the pinentry-rofi settings a user can fix in a file
// instead of passing flags through gpg-agent.conf.
type Config struct {
	// Display is the X display rofi opens on when neither the
	// --display flag nor $DISPLAY provides one.
	Display string `yaml:"display"`

	// Prompt seeds the rofi prompt text when neither the --prompt
	// flag nor $PINENTRY_USER_DATA provides one. The agent's first
	// SETPROMPT still loses to a seeded prompt (first write wins).
	Prompt string `yaml:"prompt"`

	// Rofi configures the picker invocation.
	Rofi RofiConfig `yaml:"rofi"`
}

// RofiConfig configures how the rofi binary is run.
type RofiConfig struct {
	// Path is the rofi executable. Default "rofi", resolved via PATH.
	Path string `yaml:"path"`

	// ExtraArgs are appended to every invocation, after the session's
	// own arguments. Intended for theming and positioning options
	// (-theme, -location, ...).
	ExtraArgs []string `yaml:"extra_args"`
}

// Default returns the built-in configuration: rofi from PATH, no
// display or prompt override.
func Default() *Config {
	return &Config{
		Rofi: RofiConfig{Path: "rofi"},
	}
}

// Load loads configuration from the file named by PINENTRY_ROFI_CONFIG.
// When the variable is unset, the defaults are returned; when it names
// a file that cannot be read or parsed, that is an error rather than a
// silent fallback.
func Load() (*Config, error) {
	path := os.Getenv("PINENTRY_ROFI_CONFIG")
	if path == "" {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, merging the
// file over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if cfg.Rofi.Path == "" {
		cfg.Rofi.Path = "rofi"
	}
	return cfg, nil
}
