package main

import (
	"context"
	"errors"
	"os"

	html2preview "github.com/alnah/go-html2preview"
	"github.com/alnah/go-html2preview/internal/config"
)

// Exit codes for the html2preview CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, custom codes < 126,
// and 128+SIGINT for an interrupted run.
const (
	ExitSuccess     = 0   // Every page captured, or failures tolerated
	ExitGeneral     = 1   // General/unexpected error
	ExitUsage       = 2   // Invalid flags, config, or validation
	ExitIO          = 3   // Discovery failure or repeated write failures
	ExitBrowser     = 4   // Browser could not be launched
	ExitServer      = 5   // Static server could not bind
	ExitJobsFailed  = 6   // Pages failed and --fail-on-error is set
	ExitInterrupted = 130 // Interrupted by a signal
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}

	if errors.Is(err, html2preview.ErrBrowserLaunch) {
		return ExitBrowser
	}

	if errors.Is(err, html2preview.ErrServerBind) {
		return ExitServer
	}

	if errors.Is(err, html2preview.ErrJobsFailed) {
		return ExitJobsFailed
	}

	// I/O errors (exit 3)
	if errors.Is(err, html2preview.ErrDiscovery) ||
		errors.Is(err, html2preview.ErrWriteEscalated) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission) {
		return ExitIO
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, ErrNoRootDir) ||
		errors.Is(err, ErrTooManyArgs) ||
		errors.Is(err, ErrInvalidFlag) ||
		errors.Is(err, html2preview.ErrEmptyRootDir) ||
		errors.Is(err, html2preview.ErrInvalidViewport) ||
		errors.Is(err, html2preview.ErrInvalidTimeout) ||
		errors.Is(err, html2preview.ErrInvalidWorkers) ||
		errors.Is(err, html2preview.ErrInvalidPort) ||
		errors.Is(err, html2preview.ErrInvalidFormat) ||
		errors.Is(err, html2preview.ErrInvalidQuality) ||
		errors.Is(err, html2preview.ErrInvalidResize) ||
		errors.Is(err, html2preview.ErrInvalidGlob) {
		return ExitUsage
	}

	return ExitGeneral
}
