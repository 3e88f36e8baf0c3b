package main

// Notes:
// - runMain: command dispatch and exit codes. Capture runs go through a
//   stubbed Environment.Run; see capture_test.go for the capture command.

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// TestRunMain - Command dispatch
// ---------------------------------------------------------------------------

func TestRunMain(t *testing.T) {
	t.Run("no arguments prints usage", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		env := &Environment{Stdout: &stdout, Stderr: &stderr}

		if code := runMain(context.Background(), nil, env); code != ExitUsage {
			t.Errorf("exit = %d, want %d", code, ExitUsage)
		}
		if !strings.Contains(stderr.String(), "Usage: html2preview") {
			t.Errorf("stderr = %q", stderr.String())
		}
	})

	t.Run("version", func(t *testing.T) {
		for _, arg := range []string{"version", "--version"} {
			var stdout bytes.Buffer
			env := &Environment{Stdout: &stdout, Stderr: &bytes.Buffer{}}

			if code := runMain(context.Background(), []string{arg}, env); code != ExitSuccess {
				t.Errorf("%s: exit = %d", arg, code)
			}
			if got := stdout.String(); got != "html2preview "+Version+"\n" {
				t.Errorf("%s: stdout = %q", arg, got)
			}
		}
	})

	t.Run("help", func(t *testing.T) {
		var stdout bytes.Buffer
		env := &Environment{Stdout: &stdout, Stderr: &bytes.Buffer{}}

		if code := runMain(context.Background(), []string{"help", "capture"}, env); code != ExitSuccess {
			t.Errorf("exit = %d", code)
		}
		if !strings.Contains(stdout.String(), "--selector") {
			t.Errorf("capture help missing flags:\n%s", stdout.String())
		}
	})

	t.Run("anything else is a capture", func(t *testing.T) {
		env := newTestEnv(t, okReport(), nil)

		if code := runMain(context.Background(), []string{"site"}, env.Environment); code != ExitSuccess {
			t.Errorf("exit = %d; stderr: %s", code, env.stderr)
		}
		if env.stub.calls != 1 || env.stub.cfg.RootDir != "site" {
			t.Errorf("Run calls = %d, cfg = %+v", env.stub.calls, env.stub.cfg)
		}
	})
}
