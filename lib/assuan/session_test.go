// Copyright 2026 The Keyfold Authors
// SPDX-License-Identifier: Apache-2.0

package assuan

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/keyfold/pinentry-rofi/lib/rofi"
	"github.com/keyfold/pinentry-rofi/lib/secret"
	"github.com/keyfold/pinentry-rofi/lib/version"
)

// fakeRunner substitutes for the rofi binary. Each Run records what
// the session passed in and returns the configured outcome.
type fakeRunner struct {
	run       func(arguments, extraEnvironment []string) (*rofi.Result, error)
	arguments []string
	overrides []string
	calls     int
}

func (f *fakeRunner) Run(arguments, extraEnvironment []string) (*rofi.Result, error) {
	f.calls++
	f.arguments = arguments
	f.overrides = extraEnvironment
	if f.run != nil {
		return f.run(arguments, extraEnvironment)
	}
	return &rofi.Result{}, nil
}

// fakeEnvironment is a map-backed Environment with no process
// environment behind it.
type fakeEnvironment struct {
	values map[string]string
	order  []string
}

func newFakeEnvironment(pairs map[string]string) *fakeEnvironment {
	environment := &fakeEnvironment{values: make(map[string]string)}
	for key, value := range pairs {
		environment.values[key] = value
	}
	return environment
}

func (e *fakeEnvironment) Set(key, value string) {
	if _, present := e.values[key]; !present {
		e.order = append(e.order, key)
	}
	e.values[key] = value
}

func (e *fakeEnvironment) Lookup(key string) (string, bool) {
	value, present := e.values[key]
	return value, present
}

func (e *fakeEnvironment) Overrides() []string {
	pairs := make([]string, 0, len(e.order))
	for _, key := range e.order {
		pairs = append(pairs, key+"="+e.values[key])
	}
	return pairs
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// serve runs a full session over the given input and returns the
// session, the raw output, and Serve's error.
func serve(t *testing.T, input string, runner rofi.Runner, environment Environment) (*Session, string, error) {
	t.Helper()
	if runner == nil {
		runner = &fakeRunner{}
	}
	if environment == nil {
		environment = newFakeEnvironment(nil)
	}
	session := NewSession(rofi.Base(":0"), runner, environment, testLogger())
	var output bytes.Buffer
	err := session.Serve(strings.NewReader(input), &output)
	return session, output.String(), err
}

func TestServe_GreetingPrecedesEverything(t *testing.T) {
	_, output, err := serve(t, "", nil, nil)
	if err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	if output != "OK Please go ahead\n" {
		t.Errorf("output = %q, want greeting only", output)
	}
}

func TestSetPrompt(t *testing.T) {
	t.Run("strips colons", func(t *testing.T) {
		session, _, err := serve(t, "SETPROMPT a:b:c\n", nil, nil)
		if err != nil {
			t.Fatalf("Serve failed: %v", err)
		}
		if value, _, _ := session.args.Value("-p"); value != "abc" {
			t.Errorf("-p = %q, want %q", value, "abc")
		}
	})

	t.Run("first write wins", func(t *testing.T) {
		session, output, err := serve(t, "SETPROMPT Passphrase:\nSETPROMPT PIN:\n", nil, nil)
		if err != nil {
			t.Fatalf("Serve failed: %v", err)
		}
		if value, _, _ := session.args.Value("-p"); value != "Passphrase" {
			t.Errorf("-p = %q, want %q", value, "Passphrase")
		}
		// Both requests still succeed.
		if got := strings.Count(output, "\nOK\n"); got != 1 || !strings.HasSuffix(output, "OK\nOK\n") {
			t.Errorf("output = %q, want two OK replies after the greeting", output)
		}
	})
}

func TestSetDesc(t *testing.T) {
	request := "SETDESC Please enter the passphrase for the ssh key%0A  ke:yf:in:ge:rp:ri:nt %22<email@yhoo.com>%22\n"
	session, _, err := serve(t, request, nil, nil)
	if err != nil {
		t.Fatalf("Serve failed: %v", err)
	}

	want := "Please enter the passphrase for the ssh key\r  ke:yf:in:ge:rp:ri:nt &quot;&lt;email@yhoo.com&gt;&quot;"
	if value, _, _ := session.args.Value("-mesg"); value != want {
		t.Errorf("-mesg = %q, want %q", value, want)
	}
}

func TestSetDesc_Replaces(t *testing.T) {
	session, _, err := serve(t, "SETDESC first\nSETDESC second\n", nil, nil)
	if err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	if value, _, _ := session.args.Value("-mesg"); value != "second" {
		t.Errorf("-mesg = %q, want %q", value, "second")
	}
}

func TestSetDesc_MalformedEscapeIsFatal(t *testing.T) {
	_, output, err := serve(t, "SETDESC bad %zz escape\n", nil, nil)
	if err == nil {
		t.Fatal("expected an error for a malformed percent escape")
	}
	if strings.Contains(output[len("OK Please go ahead\n"):], "OK") {
		t.Errorf("output = %q, want no OK for the failed request", output)
	}
}

func TestSetError_StacksOntoOriginalDescription(t *testing.T) {
	input := "SETDESC Y\nSETERROR X\n"
	session, _, err := serve(t, input, nil, nil)
	if err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	want := "X" + errorSeparator + "Y"
	if value, _, _ := session.args.Value("-mesg"); value != want {
		t.Errorf("-mesg = %q, want %q", value, want)
	}

	// A second error replaces the first, not the description.
	session, _, err = serve(t, "SETDESC Y\nSETERROR X\nSETERROR Z\n", nil, nil)
	if err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	want = "Z" + errorSeparator + "Y"
	if value, _, _ := session.args.Value("-mesg"); value != want {
		t.Errorf("-mesg = %q, want %q", value, want)
	}
}

func TestOption(t *testing.T) {
	environment := newFakeEnvironment(nil)
	input := strings.Join([]string{
		"OPTION ttyname=/dev/pts/1",
		"OPTION ttytype=tmux-256color",
		"OPTION lc-ctype=en_US.UTF-8",
		"OPTION lc-messages=C",
		"OPTION grab",
		"OPTION allow-external-password-cache",
		"OPTION default-ok=_OK",
	}, "\n") + "\n"

	_, output, err := serve(t, input, nil, environment)
	if err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	if got := strings.Count(output, "OK\n"); got != 7 {
		t.Errorf("got %d OK replies, want 7 (unrecognized options are accepted)", got)
	}

	wantValues := map[string]string{
		"GPG_TTY":     "/dev/pts/1",
		"GPG_TERM":    "tmux-256color",
		"LC_CTYPE":    "en_US.UTF-8",
		"LC_MESSAGES": "C",
	}
	for key, want := range wantValues {
		if got, ok := environment.Lookup(key); !ok || got != want {
			t.Errorf("%s = (%q, %v), want %q", key, got, ok, want)
		}
	}
	if len(environment.Overrides()) != 4 {
		t.Errorf("overrides = %v, want exactly the four recognized options", environment.Overrides())
	}
}

func TestGetInfo_Pid(t *testing.T) {
	_, output, err := serve(t, "GETINFO pid\n", nil, nil)
	if err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	want := fmt.Sprintf("OK Please go ahead\nD %d\nOK\n", os.Getpid())
	if output != want {
		t.Errorf("output = %q, want %q", output, want)
	}
}

func TestGetInfo_TTYInfo(t *testing.T) {
	t.Run("reflects option writes", func(t *testing.T) {
		environment := newFakeEnvironment(map[string]string{"DISPLAY": ":0"})
		input := "OPTION ttyname=/dev/pts/1\nOPTION ttytype=tmux-256color\nGETINFO ttyinfo\n"
		_, output, err := serve(t, input, nil, environment)
		if err != nil {
			t.Fatalf("Serve failed: %v", err)
		}
		if !strings.Contains(output, "D /dev/pts/1 tmux-256color :0\n") {
			t.Errorf("output = %q, want ttyinfo data line", output)
		}
	})

	t.Run("tty type is optional", func(t *testing.T) {
		environment := newFakeEnvironment(map[string]string{"DISPLAY": ":0"})
		input := "OPTION ttyname=/dev/pts/1\nGETINFO ttyinfo\n"
		_, output, err := serve(t, input, nil, environment)
		if err != nil {
			t.Fatalf("Serve failed: %v", err)
		}
		if !strings.Contains(output, "D /dev/pts/1  :0\n") {
			t.Errorf("output = %q, want empty tty type field", output)
		}
	})

	t.Run("missing tty name is fatal", func(t *testing.T) {
		environment := newFakeEnvironment(map[string]string{"DISPLAY": ":0"})
		_, _, err := serve(t, "GETINFO ttyinfo\n", nil, environment)
		if err == nil || !strings.Contains(err.Error(), "GPG_TTY") {
			t.Errorf("err = %v, want GPG_TTY error", err)
		}
	})

	t.Run("missing display is fatal", func(t *testing.T) {
		environment := newFakeEnvironment(nil)
		_, _, err := serve(t, "OPTION ttyname=/dev/pts/1\nGETINFO ttyinfo\n", nil, environment)
		if err == nil || !strings.Contains(err.Error(), "DISPLAY") {
			t.Errorf("err = %v, want DISPLAY error", err)
		}
	})
}

func TestGetInfo_Flavor(t *testing.T) {
	_, output, err := serve(t, "GETINFO flavor\n", nil, nil)
	if err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	if !strings.Contains(output, "D keyring\nOK\n") {
		t.Errorf("output = %q, want flavor data line", output)
	}
}

func TestGetInfo_Version(t *testing.T) {
	_, output, err := serve(t, "GETINFO version\n", nil, nil)
	if err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	if !strings.Contains(output, "D "+version.Short()+"\nOK\n") {
		t.Errorf("output = %q, want version data line", output)
	}
}

func TestGetInfo_UnknownSubcommand(t *testing.T) {
	_, output, err := serve(t, "GETINFO socket\n", nil, nil)
	var unknown *UnknownCommandError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want UnknownCommandError", err)
	}
	if !strings.HasSuffix(output, "BYE\n") {
		t.Errorf("output = %q, want BYE reply", output)
	}
}

func TestGetPin_Success(t *testing.T) {
	runner := &fakeRunner{run: func(_, _ []string) (*rofi.Result, error) {
		pin, err := secret.NewFromBytes([]byte("hunter2"))
		if err != nil {
			return nil, err
		}
		return &rofi.Result{Pin: pin}, nil
	}}

	session, output, err := serve(t, "SETPROMPT Passphrase:\nGETPIN\n", runner, nil)
	if err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	if !strings.HasSuffix(output, "D hunter2\nOK\n") {
		t.Errorf("output = %q, want pin data line then OK", output)
	}

	// The runner received the flattened argument set.
	want := session.args.CommandLine()
	if strings.Join(runner.arguments, " ") != strings.Join(want, " ") {
		t.Errorf("runner arguments = %v, want %v", runner.arguments, want)
	}
}

func TestGetPin_EmptySubmission(t *testing.T) {
	_, output, err := serve(t, "GETPIN\n", nil, nil)
	if err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	want := "OK Please go ahead\nOK\n"
	if output != want {
		t.Errorf("output = %q, want %q (no data line)", output, want)
	}
}

func TestGetPin_Cancelled(t *testing.T) {
	runner := &fakeRunner{run: func(_, _ []string) (*rofi.Result, error) {
		return &rofi.Result{Cancelled: true, Diagnostic: "cancelled"}, nil
	}}

	_, output, err := serve(t, "GETPIN\nSETKEYINFO x\n", runner, nil)
	if err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	// Exactly one ERR line, no OK for the GETPIN, and the session
	// keeps serving afterwards.
	want := "OK Please go ahead\nERR 83886179 Operation cancelled <cancelled>\nOK\n"
	if output != want {
		t.Errorf("output = %q, want %q", output, want)
	}
}

func TestGetPin_ForwardsEnvironmentOverrides(t *testing.T) {
	runner := &fakeRunner{}
	environment := newFakeEnvironment(nil)

	_, _, err := serve(t, "OPTION lc-ctype=C\nGETPIN\n", runner, environment)
	if err != nil {
		t.Fatalf("Serve failed: %v", err)
	}
	if len(runner.overrides) != 1 || runner.overrides[0] != "LC_CTYPE=C" {
		t.Errorf("overrides = %v, want [LC_CTYPE=C]", runner.overrides)
	}
}

func TestGetPin_SpawnFailureIsFatal(t *testing.T) {
	runner := &fakeRunner{run: func(_, _ []string) (*rofi.Result, error) {
		return nil, errors.New("exec: \"rofi\": executable file not found in $PATH")
	}}

	_, output, err := serve(t, "GETPIN\n", runner, nil)
	if err == nil || !strings.Contains(err.Error(), "GETPIN") {
		t.Fatalf("err = %v, want wrapped spawn failure", err)
	}
	if output != "OK Please go ahead\n" {
		t.Errorf("output = %q, want no reply for the failed request", output)
	}
}

func TestUnknownCommand_EndsSession(t *testing.T) {
	runner := &fakeRunner{}
	_, output, err := serve(t, "FOO bar\nGETPIN\n", runner, nil)

	var unknown *UnknownCommandError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want UnknownCommandError", err)
	}
	if unknown.Action != "FOO" || unknown.Argument != "bar" {
		t.Errorf("unknown = %+v, want action FOO argument bar", unknown)
	}
	if output != "OK Please go ahead\nBYE\n" {
		t.Errorf("output = %q, want greeting then BYE only", output)
	}
	if runner.calls != 0 {
		t.Error("requests after the unknown command must not be processed")
	}
}

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		action   string
		argument string
	}{
		{name: "action and argument", line: "SETPROMPT Passphrase:", action: "SETPROMPT", argument: "Passphrase:"},
		{name: "argument with spaces", line: "SETERROR Bad Passphrase (try 2 of 3)", action: "SETERROR", argument: "Bad Passphrase (try 2 of 3)"},
		{name: "bare action", line: "GETPIN", action: "GETPIN", argument: ""},
		{name: "trailing space", line: "GETPIN ", action: "GETPIN", argument: ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			request := parseRequest(test.line)
			if request.Action != test.action || request.Argument != test.argument {
				t.Errorf("parseRequest(%q) = %+v, want {%s %s}",
					test.line, request, test.action, test.argument)
			}
		})
	}
}
