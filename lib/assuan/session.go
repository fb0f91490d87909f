// Copyright 2026 The Keyfold Authors
// SPDX-License-Identifier: Apache-2.0

package assuan

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/keyfold/pinentry-rofi/lib/rofi"
	"github.com/keyfold/pinentry-rofi/lib/version"
)

// greeting is sent once, before the first request is read. gpg-agent
// waits for it before issuing commands.
const greeting = "OK Please go ahead"

// errorSeparator joins a SETERROR message to the original description.
// Rofi renders the \r as line breaks, so the stars form a rule between
// the error and the prompt text.
const errorSeparator = "\r***************************\r"

// codeOperationCancelled is GPG_ERR_CANCELED in gpg-error's wire
// encoding (error source GPG_ERR_SOURCE_PINENTRY, code 99).
const codeOperationCancelled = 83886179

// Rofi options the interpreter mutates. The rest of the argument set
// is fixed at session start.
const (
	promptOption  = "-p"
	messageOption = "-mesg"
)

// optionVariables maps recognized OPTION names to the environment
// variables they populate. Unrecognized names are accepted and
// ignored; gpg-agent sends many options this pinentry has no use for.
var optionVariables = map[string]string{
	"ttyname":     "GPG_TTY",
	"ttytype":     "GPG_TERM",
	"lc-ctype":    "LC_CTYPE",
	"lc-messages": "LC_MESSAGES",
}

// markupEscaper entity-escapes the characters rofi's pango markup
// parser would otherwise interpret.
var markupEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// Request is one decoded protocol line: an action verb and the
// remainder of the line. Requests never span lines.
type Request struct {
	Action   string
	Argument string
}

// parseRequest splits a line on the first space. A line with no space
// is an action with an empty argument.
func parseRequest(line string) Request {
	action, argument, _ := strings.Cut(line, " ")
	return Request{Action: action, Argument: argument}
}

// UnknownCommandError reports a request whose action is not in the
// recognized vocabulary. It is the session's normal abnormal ending:
// the BYE reply has already been written when this error is returned.
type UnknownCommandError struct {
	Action   string
	Argument string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown assuan command %q (argument %q)", e.Action, e.Argument)
}

// outcome is a verb handler's verdict on how the request ends.
type outcome int

const (
	// outcomeOK ends the request with the generic OK reply.
	outcomeOK outcome = iota

	// outcomeReplied means the handler wrote the terminal reply for
	// this request itself (the GETPIN cancellation path).
	outcomeReplied

	// outcomeUnknown ends the session: BYE is written and an
	// UnknownCommandError is surfaced.
	outcomeUnknown
)

// Session interprets one pinentry conversation. It owns the rofi
// argument set and the session environment; the picker is injected so
// tests can run the dispatch logic without spawning processes.
type Session struct {
	args        *rofi.Args
	picker      rofi.Runner
	environment Environment
	logger      *slog.Logger
}

// NewSession returns a session over the given argument set. The
// argument set must already carry the base options (and any seeded
// prompt) for the configured display.
func NewSession(args *rofi.Args, picker rofi.Runner, environment Environment, logger *slog.Logger) *Session {
	return &Session{
		args:        args,
		picker:      picker,
		environment: environment,
		logger:      logger,
	}
}

// Serve writes the greeting, then reads requests from input one line
// at a time until EOF, writing replies to output. Each reply line is
// written in a single Write call so the agent sees it before the next
// request is read. Returns nil at EOF, an UnknownCommandError after an
// unrecognized command, or the underlying error for fatal conditions
// (picker spawn failure, missing TTY state, I/O errors).
func (s *Session) Serve(input io.Reader, output io.Writer) error {
	if err := s.send(output, greeting); err != nil {
		return err
	}

	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		request := parseRequest(scanner.Text())
		s.logger.Debug("request", "action", request.Action)
		if err := s.handle(request, output); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading requests: %w", err)
	}
	return nil
}

// handle dispatches one request and writes its closing reply.
func (s *Session) handle(request Request, output io.Writer) error {
	result, err := s.dispatch(request, output)
	if err != nil {
		return err
	}
	switch result {
	case outcomeReplied:
		return nil
	case outcomeUnknown:
		if err := s.send(output, "BYE"); err != nil {
			return err
		}
		return &UnknownCommandError{Action: request.Action, Argument: request.Argument}
	default:
		return s.send(output, "OK")
	}
}

func (s *Session) dispatch(request Request, output io.Writer) (outcome, error) {
	switch request.Action {
	case "OPTION":
		return s.handleOption(request.Argument)
	case "GETINFO":
		return s.handleGetInfo(request.Argument, output)
	case "SETPROMPT":
		s.args.SetIfAbsent(promptOption, strings.ReplaceAll(request.Argument, ":", ""))
		return outcomeOK, nil
	case "SETDESC":
		return s.handleSetDesc(request.Argument)
	case "GETPIN":
		return s.handleGetPin(output)
	case "SETERROR":
		s.args.PrependError(messageOption, request.Argument, errorSeparator)
		return outcomeOK, nil
	case "SETKEYINFO", "BYE":
		return outcomeOK, nil
	default:
		return outcomeUnknown, nil
	}
}

// handleOption splits the argument on the first "=" (an argument with
// no "=" is a bare option name with an empty value) and records
// recognized names in the session environment.
func (s *Session) handleOption(argument string) (outcome, error) {
	name, value, _ := strings.Cut(argument, "=")
	if variable, recognized := optionVariables[name]; recognized {
		s.environment.Set(variable, value)
	}
	return outcomeOK, nil
}

func (s *Session) handleGetInfo(argument string, output io.Writer) (outcome, error) {
	switch argument {
	case "pid":
		return outcomeOK, s.send(output, "D "+strconv.Itoa(os.Getpid()))
	case "ttyinfo":
		ttyName, ok := s.environment.Lookup("GPG_TTY")
		if !ok {
			return 0, fmt.Errorf("GETINFO ttyinfo: GPG_TTY is not set")
		}
		ttyType, _ := s.environment.Lookup("GPG_TERM")
		display, ok := s.environment.Lookup("DISPLAY")
		if !ok {
			return 0, fmt.Errorf("GETINFO ttyinfo: DISPLAY is not set")
		}
		return outcomeOK, s.send(output, fmt.Sprintf("D %s %s %s", ttyName, ttyType, display))
	case "flavor":
		return outcomeOK, s.send(output, "D keyring")
	case "version":
		return outcomeOK, s.send(output, "D "+version.Short())
	default:
		return outcomeUnknown, nil
	}
}

// handleSetDesc applies the description transformation: percent-decode
// (the agent escapes newlines and percent signs), remap literal
// newlines to carriage returns (rofi's -mesg line separator), then
// entity-escape markup characters. The agent is trusted to encode
// correctly, so a malformed percent escape is a fatal contract
// violation rather than a protocol error.
func (s *Session) handleSetDesc(argument string) (outcome, error) {
	decoded, err := url.PathUnescape(argument)
	if err != nil {
		return 0, fmt.Errorf("SETDESC: decoding description: %w", err)
	}
	text := strings.ReplaceAll(decoded, "\n", "\r")
	s.args.Set(messageOption, markupEscaper.Replace(text))
	return outcomeOK, nil
}

// handleGetPin runs the picker with the accumulated arguments. A
// cancellation becomes an ERR reply and suppresses the generic OK; an
// entered pin is relayed verbatim on a D line and erased immediately
// after.
func (s *Session) handleGetPin(output io.Writer) (outcome, error) {
	result, err := s.picker.Run(s.args.CommandLine(), s.environment.Overrides())
	if err != nil {
		return 0, fmt.Errorf("GETPIN: %w", err)
	}

	if result.Cancelled {
		s.logger.Info("pin entry cancelled")
		reply := fmt.Sprintf("ERR %d Operation cancelled <%s>", codeOperationCancelled, result.Diagnostic)
		if err := s.send(output, reply); err != nil {
			return 0, err
		}
		return outcomeReplied, nil
	}

	if result.Pin != nil {
		defer result.Pin.Close()
		if err := s.send(output, "D "+result.Pin.String()); err != nil {
			return 0, err
		}
	}
	s.logger.Info("pin entry completed", "empty", result.Pin == nil)
	return outcomeOK, nil
}

// send writes one reply line. The line and its newline go out in a
// single Write so an unbuffered sink (the stdout pipe to the agent)
// flushes per reply.
func (s *Session) send(output io.Writer, line string) error {
	if _, err := io.WriteString(output, line+"\n"); err != nil {
		return fmt.Errorf("writing reply: %w", err)
	}
	return nil
}
