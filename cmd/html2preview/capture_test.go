package main

// Notes:
// - runCapture: driven through a stub Environment.Run, so no browser is
//   launched. Tests isolate the config search by changing into a temp dir
//   and pointing HOME/XDG_CONFIG_HOME at empty dirs, which rules out
//   t.Parallel() for them.
// - mergeFlags/buildRunConfig: precedence and explicit zero/false flags.
// - printReport: text, quiet and JSON modes plus failure hints.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	html2preview "github.com/alnah/go-html2preview"
	"github.com/alnah/go-html2preview/internal/config"
)

// ---------------------------------------------------------------------------
// Test Infrastructure
// ---------------------------------------------------------------------------

// stubRun records the RunConfig it was called with and returns a canned
// report and error.
type stubRun struct {
	calls  int
	cfg    html2preview.RunConfig
	opts   int
	report *html2preview.RunReport
	err    error
}

func (s *stubRun) run(_ context.Context, cfg html2preview.RunConfig, opts ...html2preview.Option) (*html2preview.RunReport, error) {
	s.calls++
	s.cfg = cfg
	s.opts = len(opts)
	return s.report, s.err
}

type testEnv struct {
	*Environment
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	stub   *stubRun
}

// newTestEnv isolates the config search and returns an Environment whose
// Run is stubbed with report.
func newTestEnv(t *testing.T, report *html2preview.RunReport, runErr error) *testEnv {
	t.Helper()

	t.Chdir(t.TempDir())
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("AppData", home)

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	stub := &stubRun{report: report, err: runErr}
	return &testEnv{
		Environment: &Environment{Stdout: stdout, Stderr: stderr, Run: stub.run},
		stdout:      stdout,
		stderr:      stderr,
		stub:        stub,
	}
}

func okReport() *html2preview.RunReport {
	return &html2preview.RunReport{
		Total:     2,
		Succeeded: 2,
		Failed:    []html2preview.JobFailure{},
		Outputs:   []string{"site/images/a.html.png", "site/images/sub___b.html.png"},
	}
}

func mixedReport() *html2preview.RunReport {
	err := fmt.Errorf("%w: %q did not appear", html2preview.ErrElementNotFound, "#card")
	return &html2preview.RunReport{
		Total:     3,
		Succeeded: 2,
		Failed: []html2preview.JobFailure{
			{RelativePath: "bad.html", Reason: "ElementNotFound", Message: err.Error(), Err: err},
		},
		Outputs: []string{"site/images/a.html.png", "site/images/sub___b.html.png"},
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "html2preview.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

// ---------------------------------------------------------------------------
// TestRunCapture - Exit codes and output
// ---------------------------------------------------------------------------

func TestRunCapture_Success(t *testing.T) {
	env := newTestEnv(t, okReport(), nil)

	code := runCapture(context.Background(), []string{"site", "--selector", "#card"}, env.Environment)

	if code != ExitSuccess {
		t.Fatalf("exit = %d, want %d; stderr: %s", code, ExitSuccess, env.stderr)
	}
	if env.stub.calls != 1 {
		t.Fatalf("Run called %d times, want 1", env.stub.calls)
	}
	if env.stub.cfg.RootDir != "site" || env.stub.cfg.CaptureSelector != "#card" {
		t.Errorf("RunConfig = %+v", env.stub.cfg)
	}
	out := env.stdout.String()
	for _, want := range []string{"Created site/images/a.html.png", "2 pages, 2 succeeded, 0 failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout missing %q:\n%s", want, out)
		}
	}
}

func TestRunCapture_JobFailures(t *testing.T) {
	t.Run("tolerated by default", func(t *testing.T) {
		env := newTestEnv(t, mixedReport(), nil)

		code := runCapture(context.Background(), []string{"--selector", "#card", "site"}, env.Environment)

		if code != ExitSuccess {
			t.Errorf("exit = %d, want %d", code, ExitSuccess)
		}
		if !strings.Contains(env.stdout.String(), "FAILED bad.html: ElementNotFound") {
			t.Errorf("stdout missing failure line:\n%s", env.stdout)
		}
		if !strings.Contains(env.stderr.String(), "hint: check that every matched page renders #card") {
			t.Errorf("stderr missing hint:\n%s", env.stderr)
		}
	})

	t.Run("quiet prints failures on stderr only", func(t *testing.T) {
		env := newTestEnv(t, mixedReport(), nil)

		code := runCapture(context.Background(), []string{"-q", "site"}, env.Environment)

		if code != ExitSuccess {
			t.Errorf("exit = %d, want %d", code, ExitSuccess)
		}
		if env.stdout.Len() != 0 {
			t.Errorf("quiet stdout should be empty, got %q", env.stdout)
		}
		if !strings.Contains(env.stderr.String(), "FAILED bad.html") {
			t.Errorf("stderr missing failure:\n%s", env.stderr)
		}
	})
}

func TestRunCapture_RunErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{"browser", &html2preview.FatalError{Stage: html2preview.StateBrowserStarting, Err: html2preview.ErrBrowserLaunch}, ExitBrowser},
		{"server", &html2preview.FatalError{Stage: html2preview.StateServerStarting, Err: html2preview.ErrServerBind}, ExitServer},
		{"discovery", &html2preview.FatalError{Stage: html2preview.StateDiscovering, Err: html2preview.ErrDiscovery}, ExitIO},
		{"interrupted", &html2preview.FatalError{Stage: html2preview.StateCapturing, Err: context.Canceled}, ExitInterrupted},
		{"validation", fmt.Errorf("invalid run configuration: %w", html2preview.ErrInvalidPort), ExitUsage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil, tt.err)

			code := runCapture(context.Background(), []string{"site"}, env.Environment)

			if code != tt.wantCode {
				t.Errorf("exit = %d, want %d", code, tt.wantCode)
			}
			if !strings.Contains(env.stderr.String(), "error: ") {
				t.Errorf("stderr should report the error, got %q", env.stderr)
			}
		})
	}

	t.Run("partial report is printed with the error", func(t *testing.T) {
		env := newTestEnv(t, mixedReport(), &html2preview.FatalError{Stage: html2preview.StateCapturing, Err: context.Canceled})

		code := runCapture(context.Background(), []string{"site"}, env.Environment)

		if code != ExitInterrupted {
			t.Errorf("exit = %d, want %d", code, ExitInterrupted)
		}
		if !strings.Contains(env.stdout.String(), "3 pages, 2 succeeded, 1 failed") {
			t.Errorf("partial summary missing:\n%s", env.stdout)
		}
	})
}

func TestRunCapture_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no root dir", []string{"--selector", "#card"}, ExitUsage},
		{"two root dirs", []string{"a", "b"}, ExitUsage},
		{"unknown flag", []string{"--nope", "site"}, ExitUsage},
		{"bad timeout", []string{"--timeout", "soon", "site"}, ExitUsage},
		{"help flag", []string{"-h"}, ExitSuccess},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, okReport(), nil)

			if code := runCapture(context.Background(), tt.args, env.Environment); code != tt.want {
				t.Errorf("exit = %d, want %d; stderr: %s", code, tt.want, env.stderr)
			}
			if env.stub.calls != 0 {
				t.Error("Run must not be called on usage errors")
			}
		})
	}
}

func TestRunCapture_Config(t *testing.T) {
	t.Run("explicit config file is applied", func(t *testing.T) {
		env := newTestEnv(t, okReport(), nil)
		path := writeConfig(t, "selector: '#og'\nviewport:\n  width: 1200\n  height: 630\nimage:\n  format: jpeg\n")

		code := runCapture(context.Background(), []string{"-c", path, "site"}, env.Environment)

		if code != ExitSuccess {
			t.Fatalf("exit = %d; stderr: %s", code, env.stderr)
		}
		got := env.stub.cfg
		if got.CaptureSelector != "#og" || got.Viewport != (html2preview.Viewport{Width: 1200, Height: 630}) || got.ImageFormat != "jpeg" {
			t.Errorf("RunConfig = %+v", got)
		}
	})

	t.Run("local config file is found", func(t *testing.T) {
		env := newTestEnv(t, okReport(), nil)
		if err := os.WriteFile(config.LocalFileName, []byte("glob: 'cards/**/*.html'\n"), 0o600); err != nil {
			t.Fatal(err)
		}

		if code := runCapture(context.Background(), []string{"site"}, env.Environment); code != ExitSuccess {
			t.Fatalf("exit = %d; stderr: %s", code, env.stderr)
		}
		if env.stub.cfg.GlobPattern != "cards/**/*.html" {
			t.Errorf("GlobPattern = %q", env.stub.cfg.GlobPattern)
		}
	})

	t.Run("flags override config and env", func(t *testing.T) {
		env := newTestEnv(t, okReport(), nil)
		path := writeConfig(t, "selector: '#file'\nremoveOriginals: true\nworkers: 4\n")
		t.Setenv("HTML2PREVIEW_TIMEOUT", "45s")
		t.Setenv("HTML2PREVIEW_WORKERS", "2")

		args := []string{"-c", path, "--selector", "#flag", "--remove-originals=false", "site"}
		if code := runCapture(context.Background(), args, env.Environment); code != ExitSuccess {
			t.Fatalf("exit = %d; stderr: %s", code, env.stderr)
		}
		got := env.stub.cfg
		if got.CaptureSelector != "#flag" {
			t.Errorf("CaptureSelector = %q, want flag value", got.CaptureSelector)
		}
		if got.RemoveOriginalFiles {
			t.Error("explicit --remove-originals=false should override the config file")
		}
		if got.Workers != 4 {
			t.Errorf("Workers = %d, want config value 4 over env", got.Workers)
		}
		if got.Timeout != 45*time.Second {
			t.Errorf("Timeout = %v, want env value 45s", got.Timeout)
		}
	})

	t.Run("config path from env", func(t *testing.T) {
		env := newTestEnv(t, okReport(), nil)
		t.Setenv("HTML2PREVIEW_CONFIG", writeConfig(t, "port: 8123\n"))

		if code := runCapture(context.Background(), []string{"site"}, env.Environment); code != ExitSuccess {
			t.Fatalf("exit = %d; stderr: %s", code, env.stderr)
		}
		if env.stub.cfg.Port != 8123 {
			t.Errorf("Port = %d, want 8123", env.stub.cfg.Port)
		}
	})

	t.Run("missing explicit config", func(t *testing.T) {
		env := newTestEnv(t, okReport(), nil)

		code := runCapture(context.Background(), []string{"-c", "nope.yaml", "site"}, env.Environment)

		if code != ExitUsage {
			t.Errorf("exit = %d, want %d", code, ExitUsage)
		}
		if !strings.Contains(env.stderr.String(), "hint: use --config") {
			t.Errorf("stderr missing config hint:\n%s", env.stderr)
		}
	})

	t.Run("unknown config key", func(t *testing.T) {
		env := newTestEnv(t, okReport(), nil)
		path := writeConfig(t, "selectr: '#card'\n")

		if code := runCapture(context.Background(), []string{"-c", path, "site"}, env.Environment); code != ExitUsage {
			t.Errorf("exit = %d, want %d", code, ExitUsage)
		}
	})
}

func TestRunCapture_PrintConfig(t *testing.T) {
	env := newTestEnv(t, okReport(), nil)
	t.Setenv("HTML2PREVIEW_GLOB", "posts/*.html")

	code := runCapture(context.Background(), []string{"--print-config", "--selector", "#card"}, env.Environment)

	if code != ExitSuccess {
		t.Fatalf("exit = %d; stderr: %s", code, env.stderr)
	}
	if env.stub.calls != 0 {
		t.Error("--print-config must not run the pipeline")
	}
	out := env.stdout.String()
	for _, want := range []string{"posts/*.html", "#card", "viewport:"} {
		if !strings.Contains(out, want) {
			t.Errorf("printed config missing %q:\n%s", want, out)
		}
	}
}

func TestRunCapture_JSON(t *testing.T) {
	env := newTestEnv(t, mixedReport(), nil)

	if code := runCapture(context.Background(), []string{"--json", "site"}, env.Environment); code != ExitSuccess {
		t.Fatalf("exit = %d; stderr: %s", code, env.stderr)
	}

	var got struct {
		Total     int `json:"total"`
		Succeeded int `json:"succeeded"`
		Failed    []struct {
			Path   string `json:"path"`
			Reason string `json:"reason"`
		} `json:"failed"`
		Outputs []string `json:"outputs"`
	}
	if err := json.Unmarshal(env.stdout.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, env.stdout)
	}
	if got.Total != 3 || got.Succeeded != 2 || len(got.Outputs) != 2 {
		t.Errorf("report = %+v", got)
	}
	if len(got.Failed) != 1 || got.Failed[0].Path != "bad.html" || got.Failed[0].Reason != "ElementNotFound" {
		t.Errorf("failed = %+v", got.Failed)
	}
}

func TestRunCapture_Verbose(t *testing.T) {
	env := newTestEnv(t, okReport(), nil)
	var maxProcsCalled bool
	env.SetMaxProcs = func(logf func(string, ...any)) {
		maxProcsCalled = true
		logf("maxprocs: Leaving GOMAXPROCS=%d", 4)
	}

	if code := runCapture(context.Background(), []string{"-v", "site"}, env.Environment); code != ExitSuccess {
		t.Fatalf("exit = %d", code)
	}
	if !maxProcsCalled {
		t.Error("SetMaxProcs should be called")
	}
	if !strings.Contains(env.stderr.String(), "Leaving GOMAXPROCS=4") {
		t.Errorf("verbose stderr missing maxprocs line:\n%s", env.stderr)
	}
	// WithLogger and WithProgress.
	if env.stub.opts != 2 {
		t.Errorf("options passed = %d, want 2", env.stub.opts)
	}
}

// ---------------------------------------------------------------------------
// TestParseCaptureFlags
// ---------------------------------------------------------------------------

func TestParseCaptureFlags(t *testing.T) {
	t.Parallel()

	args := []string{
		"--glob", "*.html", "--selector", "#card", "--remove-originals",
		"-o", "out", "-t", "10s", "-w", "3", "--port", "8080",
		"--width", "1200", "--height", "630",
		"--format", "jpeg", "--quality", "80", "--resize-width", "600",
		"--fail-on-error", "--max-write-failures", "-1", "--stealth",
		"--json", "-q", "site",
	}
	f, rest, err := parseCaptureFlags(args, io.Discard)
	if err != nil {
		t.Fatalf("parseCaptureFlags() error = %v", err)
	}
	if len(rest) != 1 || rest[0] != "site" {
		t.Errorf("positional = %v, want [site]", rest)
	}

	cfg := config.DefaultConfig()
	mergeFlags(f, cfg)
	rc, err := buildRunConfig("site", cfg)
	if err != nil {
		t.Fatal(err)
	}

	want := html2preview.RunConfig{
		RootDir:                     "site",
		GlobPattern:                 "*.html",
		Viewport:                    html2preview.Viewport{Width: 1200, Height: 630},
		CaptureSelector:             "#card",
		RemoveOriginalFiles:         true,
		OutputDir:                   "out",
		Timeout:                     10 * time.Second,
		Workers:                     3,
		Port:                        8080,
		ImageFormat:                 "jpeg",
		JPEGQuality:                 80,
		ResizeWidth:                 600,
		FailOnJobError:              true,
		MaxConsecutiveWriteFailures: -1,
		Stealth:                     true,
	}
	if rc != want {
		t.Errorf("RunConfig =\n%+v\nwant\n%+v", rc, want)
	}
	if !f.jsonOutput || !f.common.quiet {
		t.Errorf("json/quiet = %v/%v", f.jsonOutput, f.common.quiet)
	}
}

// ---------------------------------------------------------------------------
// TestBuildRunConfig
// ---------------------------------------------------------------------------

func TestBuildRunConfig(t *testing.T) {
	t.Parallel()

	t.Run("empty config leaves defaults to NewGenerator", func(t *testing.T) {
		t.Parallel()

		rc, err := buildRunConfig("site", config.DefaultConfig())
		if err != nil {
			t.Fatal(err)
		}
		if rc != (html2preview.RunConfig{RootDir: "site"}) {
			t.Errorf("RunConfig = %+v, want only RootDir", rc)
		}
	})

	t.Run("partial viewport keeps the other default", func(t *testing.T) {
		t.Parallel()

		rc, err := buildRunConfig("site", &config.Config{Viewport: config.ViewportConfig{Width: 1200}})
		if err != nil {
			t.Fatal(err)
		}
		want := html2preview.Viewport{Width: 1200, Height: html2preview.DefaultViewportHeight}
		if rc.Viewport != want {
			t.Errorf("Viewport = %v, want %v", rc.Viewport, want)
		}
	})

	t.Run("invalid timeout", func(t *testing.T) {
		t.Parallel()

		_, err := buildRunConfig("site", &config.Config{Timeout: "0s"})
		if !errors.Is(err, ErrInvalidFlag) {
			t.Errorf("error = %v, want ErrInvalidFlag", err)
		}
	})
}

// ---------------------------------------------------------------------------
// TestResolveRootDir
// ---------------------------------------------------------------------------

func TestResolveRootDir(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		envRoot string
		want    string
		wantErr error
	}{
		{"argument", []string{"site"}, "", "site", nil},
		{"argument wins over env", []string{"site"}, "public", "site", nil},
		{"env fallback", nil, "public", "public", nil},
		{"missing", nil, "", "", ErrNoRootDir},
		{"too many", []string{"a", "b"}, "", "", ErrTooManyArgs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := resolveRootDir(tt.args, &envConfig{RootDir: tt.envRoot})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("root = %q, want %q", got, tt.want)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestFailureHints
// ---------------------------------------------------------------------------

func TestFailureHints(t *testing.T) {
	t.Parallel()

	report := &html2preview.RunReport{Failed: []html2preview.JobFailure{
		{Err: fmt.Errorf("%w: load", html2preview.ErrNavigationTimeout)},
		{Err: fmt.Errorf("%w: disk full", html2preview.ErrWrite)},
		{Err: fmt.Errorf("%w: load", html2preview.ErrNavigationTimeout)},
	}}

	got := failureHints(report, "#card")

	if strings.Count(got, "hint:") != 2 {
		t.Errorf("want one hint per failure class, got %q", got)
	}
	if !strings.Contains(got, "--timeout") || !strings.Contains(got, "--output") {
		t.Errorf("hints = %q", got)
	}
	if failureHints(okReport(), "#card") != "" {
		t.Error("no failures should give no hints")
	}
}

// ---------------------------------------------------------------------------
// TestNewLogger
// ---------------------------------------------------------------------------

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		quiet, verbose bool
		wantInfo       bool
		wantDebug      bool
	}{
		{"default", false, false, true, false},
		{"verbose", false, true, true, true},
		{"quiet", true, false, false, false},
		{"quiet wins", true, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			l := newLogger(&buf, tt.quiet, tt.verbose)
			l.Info("info-line")
			l.Debug("debug-line")
			l.Warn("warn-line")

			out := buf.String()
			if strings.Contains(out, "info-line") != tt.wantInfo {
				t.Errorf("info logged = %v, want %v", !tt.wantInfo, tt.wantInfo)
			}
			if strings.Contains(out, "debug-line") != tt.wantDebug {
				t.Errorf("debug logged = %v, want %v", !tt.wantDebug, tt.wantDebug)
			}
			if !strings.Contains(out, "warn-line") {
				t.Error("warnings must always be logged")
			}
		})
	}
}
