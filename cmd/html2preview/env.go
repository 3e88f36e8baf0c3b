package main

import (
	"context"
	"fmt"
	"io"
	"os"

	html2preview "github.com/alnah/go-html2preview"
)

// runFunc executes one capture run.
type runFunc func(ctx context.Context, cfg html2preview.RunConfig, opts ...html2preview.Option) (*html2preview.RunReport, error)

// Environment holds injectable dependencies for testability.
type Environment struct {
	Stdout io.Writer
	Stderr io.Writer

	// Run executes the pipeline. Tests replace it to avoid a browser.
	Run runFunc

	// SetMaxProcs tunes GOMAXPROCS once flags are parsed. Nil skips it.
	SetMaxProcs func(logf func(format string, args ...any))
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Run:         runGenerator,
		SetMaxProcs: setMaxProcs,
	}
}

// runGenerator builds a Generator and runs it once.
func runGenerator(ctx context.Context, cfg html2preview.RunConfig, opts ...html2preview.Option) (*html2preview.RunReport, error) {
	g, err := html2preview.NewGenerator(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("invalid run configuration: %w", err)
	}
	return g.Run(ctx)
}
