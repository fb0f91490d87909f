// Copyright 2026 The Keyfold Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/keyfold/pinentry-rofi/lib/assuan"
	"github.com/keyfold/pinentry-rofi/lib/config"
	"github.com/keyfold/pinentry-rofi/lib/process"
	"github.com/keyfold/pinentry-rofi/lib/rofi"
	"github.com/keyfold/pinentry-rofi/lib/version"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	flagSet := pflag.NewFlagSet("pinentry-rofi", pflag.ContinueOnError)
	displayFlag := flagSet.StringP("display", "d", "", "X display to open rofi on (default: $DISPLAY, then :0)")
	promptFlag := flagSet.StringP("prompt", "p", "", "rofi prompt text (default: $PINENTRY_USER_DATA)")
	configFlag := flagSet.String("config", "", "path to YAML config file (default: $PINENTRY_ROFI_CONFIG)")
	debug := flagSet.Bool("debug", false, "enable debug logging on stderr")
	showVersion := flagSet.Bool("version", false, "print version and exit")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Printf("pinentry-rofi %s\n", version.Info())
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	cfg, err := loadConfig(*configFlag)
	if err != nil {
		return err
	}

	display := resolve(*displayFlag, os.Getenv("DISPLAY"), cfg.Display, ":0")
	prompt := resolve(*promptFlag, os.Getenv("PINENTRY_USER_DATA"), cfg.Prompt, "")

	logger := newLogger(*debug)

	args := rofi.Base(display)
	if prompt != "" {
		args.SetIfAbsent("-p", prompt)
	}

	picker := &rofi.Command{
		Path:      cfg.Rofi.Path,
		ExtraArgs: cfg.Rofi.ExtraArgs,
		Logger:    logger,
	}

	session := assuan.NewSession(args, picker, assuan.NewProcessEnvironment(), logger)
	return session.Serve(os.Stdin, os.Stdout)
}

// loadConfig loads the file named by --config, falling back to
// $PINENTRY_ROFI_CONFIG and then the built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

// resolve picks the first non-empty value: flag, then environment,
// then config file, then the built-in fallback.
func resolve(flagValue, envValue, configValue, fallback string) string {
	for _, value := range []string{flagValue, envValue, configValue} {
		if value != "" {
			return value
		}
	}
	return fallback
}
