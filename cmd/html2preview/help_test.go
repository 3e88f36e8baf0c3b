package main

import (
	"bytes"
	"strings"
	"testing"

	flag "github.com/spf13/pflag"
)

// ---------------------------------------------------------------------------
// TestRunHelp
// ---------------------------------------------------------------------------

func TestRunHelp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		args       []string
		wantCode   int
		wantStdout string
		wantStderr string
	}{
		{"no args", nil, ExitSuccess, "Commands:", ""},
		{"capture", []string{"capture"}, ExitSuccess, "--remove-originals", ""},
		{"doctor", []string{"doctor"}, ExitSuccess, "html2preview doctor [--json]", ""},
		{"version", []string{"version"}, ExitSuccess, "Show version information.", ""},
		{"help", []string{"help"}, ExitSuccess, "html2preview help [command]", ""},
		{"unknown", []string{"convert"}, ExitUsage, "", "Unknown command: convert"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var stdout, stderr bytes.Buffer
			code := runHelp(tt.args, &Environment{Stdout: &stdout, Stderr: &stderr})

			if code != tt.wantCode {
				t.Errorf("exit = %d, want %d", code, tt.wantCode)
			}
			if !strings.Contains(stdout.String(), tt.wantStdout) {
				t.Errorf("stdout missing %q:\n%s", tt.wantStdout, stdout.String())
			}
			if !strings.Contains(stderr.String(), tt.wantStderr) {
				t.Errorf("stderr missing %q:\n%s", tt.wantStderr, stderr.String())
			}
		})
	}
}

func TestPrintCaptureUsage_ListsEveryFlag(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printCaptureUsage(&buf)
	usage := buf.String()

	fs := newCaptureFlagSet(&captureFlags{}, &bytes.Buffer{})
	fs.VisitAll(func(fl *flag.Flag) {
		if !strings.Contains(usage, "--"+fl.Name) {
			t.Errorf("usage does not document --%s", fl.Name)
		}
	})
}
