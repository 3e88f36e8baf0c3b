package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	html2preview "github.com/alnah/go-html2preview"
	"github.com/alnah/go-html2preview/internal/config"
	"github.com/alnah/go-html2preview/internal/hints"
	flag "github.com/spf13/pflag"
)

// runCapture runs the capture command: load config, merge overrides,
// run the pipeline and print the report.
func runCapture(ctx context.Context, args []string, env *Environment) int {
	flags, positional, err := parseCaptureFlags(args, env.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		return ExitUsage
	}

	logger := newLogger(env.Stderr, flags.common.quiet, flags.common.verbose)
	if env.SetMaxProcs != nil {
		env.SetMaxProcs(func(format string, v ...any) {
			logger.Debug(fmt.Sprintf(format, v...))
		})
	}
	if !flags.common.quiet {
		warnUnknownEnvVars(env.Stderr)
	}

	envCfg := loadEnvConfig()
	configPath := flags.common.config
	if configPath == "" {
		configPath = envCfg.ConfigPath
	}

	cfg, source, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(env.Stderr, "error: loading config: %v", err)
		if errors.Is(err, config.ErrConfigNotFound) {
			fmt.Fprint(env.Stderr, hints.ForConfigNotFound(config.SearchPaths()))
		}
		fmt.Fprintln(env.Stderr)
		return exitCodeFor(err)
	}
	if source != "" {
		logger.Debug("config loaded", "path", source)
	}

	applyEnvConfig(envCfg, cfg)
	mergeFlags(flags, cfg)

	if flags.printConfig {
		return printConfig(env.Stdout, env.Stderr, cfg)
	}

	rootDir, err := resolveRootDir(positional, envCfg)
	if err != nil {
		fmt.Fprintf(env.Stderr, "error: %v\n", err)
		printCaptureUsage(env.Stderr)
		return exitCodeFor(err)
	}

	runCfg, err := buildRunConfig(rootDir, cfg)
	if err != nil {
		fmt.Fprintf(env.Stderr, "error: %v\n", err)
		return exitCodeFor(err)
	}

	opts := []html2preview.Option{html2preview.WithLogger(logger)}
	if flags.common.verbose {
		opts = append(opts, html2preview.WithProgress(progressLogger(logger)))
	}

	report, runErr := env.Run(ctx, runCfg, opts...)
	if report != nil {
		printReport(env, report, runCfg, flags)
	}
	if runErr != nil {
		fmt.Fprintf(env.Stderr, "error: %v\n", runErr)
		return exitCodeFor(runErr)
	}
	if err := report.Err(); err != nil {
		fmt.Fprintf(env.Stderr, "error: %v\n", err)
		return exitCodeFor(err)
	}
	return ExitSuccess
}

// newLogger returns a text logger on w: Info by default, Debug with
// verbose, Warn with quiet.
func newLogger(w io.Writer, quiet, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case quiet:
		level = slog.LevelWarn
	case verbose:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// progressLogger reports each job phase change at debug level.
func progressLogger(logger *slog.Logger) html2preview.ProgressFunc {
	return func(p html2preview.Progress) {
		if p.Err != nil {
			logger.Debug("page", "page", p.RelativePath, "phase", p.Phase.String(), "err", p.Err)
			return
		}
		logger.Debug("page", "page", p.RelativePath, "phase", p.Phase.String())
	}
}

// mergeFlags applies flags set on the command line to cfg. Flags always
// win over env vars and the config file.
func mergeFlags(f *captureFlags, cfg *config.Config) {
	changed := f.changed
	if changed == nil {
		changed = func(string) bool { return false }
	}

	if changed("glob") {
		cfg.Glob = f.glob
	}
	if changed("selector") {
		cfg.Selector = f.selector
	}
	if changed("remove-originals") {
		cfg.RemoveOriginals = f.removeOriginals
	}
	if changed("output") {
		cfg.Output = f.output
	}
	if changed("timeout") {
		cfg.Timeout = f.timeout
	}
	if changed("workers") {
		cfg.Workers = f.workers
	}
	if changed("port") {
		cfg.Port = f.port
	}
	if changed("fail-on-error") {
		cfg.FailOnError = f.failOnError
	}
	if changed("max-write-failures") {
		cfg.MaxWriteFailures = f.maxWriteFailures
	}
	if changed("stealth") {
		cfg.Stealth = f.stealth
	}
	if changed("width") {
		cfg.Viewport.Width = f.viewport.width
	}
	if changed("height") {
		cfg.Viewport.Height = f.viewport.height
	}
	if changed("format") {
		cfg.Image.Format = f.image.format
	}
	if changed("quality") {
		cfg.Image.Quality = f.image.quality
	}
	if changed("resize-width") {
		cfg.Image.ResizeWidth = f.image.resizeWidth
	}
}

// resolveRootDir picks the site directory: the single positional
// argument, else HTML2PREVIEW_ROOT.
func resolveRootDir(args []string, env *envConfig) (string, error) {
	switch len(args) {
	case 0:
		if env.RootDir != "" {
			return env.RootDir, nil
		}
		return "", ErrNoRootDir
	case 1:
		return args[0], nil
	default:
		return "", fmt.Errorf("%w, got %d", ErrTooManyArgs, len(args))
	}
}

// buildRunConfig converts the merged config into a RunConfig. Range
// checks are left to NewGenerator.
func buildRunConfig(rootDir string, cfg *config.Config) (html2preview.RunConfig, error) {
	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return html2preview.RunConfig{}, fmt.Errorf("%w: %v", ErrInvalidFlag, err)
	}

	rc := html2preview.RunConfig{
		RootDir:                     rootDir,
		GlobPattern:                 cfg.Glob,
		CaptureSelector:             cfg.Selector,
		RemoveOriginalFiles:         cfg.RemoveOriginals,
		OutputDir:                   cfg.Output,
		Timeout:                     timeout,
		Workers:                     cfg.Workers,
		Port:                        cfg.Port,
		ImageFormat:                 cfg.Image.Format,
		JPEGQuality:                 cfg.Image.Quality,
		ResizeWidth:                 cfg.Image.ResizeWidth,
		FailOnJobError:              cfg.FailOnError,
		MaxConsecutiveWriteFailures: cfg.MaxWriteFailures,
		Stealth:                     cfg.Stealth,
	}
	// A partial viewport keeps the default for the missing side.
	if cfg.Viewport.Width != 0 || cfg.Viewport.Height != 0 {
		rc.Viewport = html2preview.Viewport{Width: cfg.Viewport.Width, Height: cfg.Viewport.Height}
		if rc.Viewport.Width == 0 {
			rc.Viewport.Width = html2preview.DefaultViewportWidth
		}
		if rc.Viewport.Height == 0 {
			rc.Viewport.Height = html2preview.DefaultViewportHeight
		}
	}
	return rc, nil
}

// printConfig writes cfg as YAML, for --print-config.
func printConfig(stdout, stderr io.Writer, cfg *config.Config) int {
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitCodeFor(err)
	}
	data, err := cfg.Marshal()
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return ExitGeneral
	}
	_, _ = stdout.Write(data)
	return ExitSuccess
}

// printReport outputs the run report: JSON on stdout, or created files
// and the summary, then hints for the failure classes seen on stderr.
// Quiet mode keeps only failures.
func printReport(env *Environment, report *html2preview.RunReport, rc html2preview.RunConfig, flags *captureFlags) {
	if flags.jsonOutput {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(report)
		return
	}

	switch {
	case !flags.common.quiet:
		for _, out := range report.Outputs {
			fmt.Fprintf(env.Stdout, "Created %s\n", out)
		}
		report.WriteSummary(env.Stdout)
	case report.FailedCount() > 0:
		report.WriteSummary(env.Stderr)
	}

	if hint := failureHints(report, rc.CaptureSelector); hint != "" {
		fmt.Fprintln(env.Stderr, strings.TrimPrefix(hint, "\n"))
	}
}

// failureHints returns one hint per failure class present in report.
func failureHints(report *html2preview.RunReport, selector string) string {
	var notFound, timedOut, writeFailed bool
	for _, f := range report.Failed {
		switch {
		case errors.Is(f.Err, html2preview.ErrElementNotFound):
			notFound = true
		case errors.Is(f.Err, html2preview.ErrNavigationTimeout):
			timedOut = true
		case errors.Is(f.Err, html2preview.ErrWrite):
			writeFailed = true
		}
	}

	var out string
	if notFound {
		out += hints.ForElementNotFound(selector)
	}
	if timedOut {
		out += hints.ForTimeout()
	}
	if writeFailed {
		out += hints.ForOutputDirectory()
	}
	return out
}
