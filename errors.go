package html2preview

import (
	"context"
	"errors"
	"fmt"
)

// Fatal errors: infrastructure could not be established, no page can be captured.
var (
	ErrDiscovery      = errors.New("page discovery failed")
	ErrServerBind     = errors.New("failed to bind static server")
	ErrBrowserLaunch  = errors.New("failed to launch browser")
	ErrWriteEscalated = errors.New("too many consecutive write failures")
)

// Job errors: recorded in the RunReport, the run continues.
var (
	ErrNavigationTimeout = errors.New("navigation timed out")
	ErrElementNotFound   = errors.New("capture element not found")
	ErrCapture           = errors.New("screenshot capture failed")
	ErrWrite             = errors.New("failed to write image")
	ErrDeleteOriginal    = errors.New("failed to delete original file")
)

// ErrJobsFailed is returned by RunReport.Err when FailOnJobError is set.
var ErrJobsFailed = errors.New("one or more pages failed")

// Run configuration validation errors.
var (
	ErrEmptyRootDir      = errors.New("root directory cannot be empty")
	ErrInvalidViewport   = errors.New("invalid viewport")
	ErrInvalidTimeout    = errors.New("invalid timeout")
	ErrInvalidWorkers    = errors.New("invalid worker count")
	ErrInvalidPort       = errors.New("invalid port")
	ErrInvalidFormat     = errors.New("invalid image format")
	ErrInvalidQuality    = errors.New("invalid JPEG quality")
	ErrInvalidResize     = errors.New("invalid resize width")
	ErrInvalidGlob       = errors.New("invalid glob pattern")
	ErrPathOutsideRoot   = errors.New("path escapes root directory")
	ErrGeneratorConsumed = errors.New("generator already ran")
)

// FatalError reports the run stage at which the pipeline had to abort.
type FatalError struct {
	Stage State
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err belongs to the fatal error class.
func IsFatal(err error) bool {
	var fe *FatalError
	if errors.As(err, &fe) {
		return true
	}
	return errors.Is(err, ErrDiscovery) ||
		errors.Is(err, ErrServerBind) ||
		errors.Is(err, ErrBrowserLaunch) ||
		errors.Is(err, ErrWriteEscalated)
}

// Reason returns the short failure class used in reports.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNavigationTimeout):
		return "NavigationTimeout"
	case errors.Is(err, ErrElementNotFound):
		return "ElementNotFound"
	case errors.Is(err, ErrWrite):
		return "WriteError"
	case errors.Is(err, ErrDeleteOriginal):
		return "DeleteError"
	case errors.Is(err, ErrCapture):
		return "CaptureError"
	case errors.Is(err, ErrWriteEscalated):
		return "Skipped"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Canceled"
	default:
		return "CaptureError"
	}
}
