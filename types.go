package html2preview

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultGlobPattern matches every built HTML page under the root directory.
const DefaultGlobPattern = "**/*.{html,htm}"

// DefaultOutputDirName is the directory created under RootDir when OutputDir is empty.
const DefaultOutputDirName = "images"

// Viewport defaults match the social preview card size the pages are authored for.
const (
	DefaultViewportWidth  = 480
	DefaultViewportHeight = 360
	MaxViewportDimension  = 8192
)

// Image format constants.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
)

// JPEG quality bounds.
const (
	MinJPEGQuality     = 1
	MaxJPEGQuality     = 100
	DefaultJPEGQuality = 90
)

// Timing and policy defaults.
const (
	DefaultTimeout                     = 30 * time.Second
	DefaultMaxConsecutiveWriteFailures = 3
	MaxPort                            = 65535
)

// Viewport is the browser window size used for every page.
type Viewport struct {
	Width  int
	Height int
}

// Validate checks that both dimensions are positive and bounded.
func (v Viewport) Validate() error {
	if v.Width <= 0 || v.Height <= 0 {
		return fmt.Errorf("%w: %dx%d (dimensions must be positive)", ErrInvalidViewport, v.Width, v.Height)
	}
	if v.Width > MaxViewportDimension || v.Height > MaxViewportDimension {
		return fmt.Errorf("%w: %dx%d (maximum is %d)", ErrInvalidViewport, v.Width, v.Height, MaxViewportDimension)
	}
	return nil
}

func (v Viewport) String() string {
	return fmt.Sprintf("%dx%d", v.Width, v.Height)
}

// RunConfig parameterizes one pipeline run. It is copied by NewGenerator
// and never mutated afterwards.
type RunConfig struct {
	RootDir             string        // Built site directory (required)
	GlobPattern         string        // Pages to capture, relative to RootDir (default: DefaultGlobPattern)
	Viewport            Viewport      // Browser viewport (default: 480x360)
	CaptureSelector     string        // CSS selector to capture; empty captures the viewport
	RemoveOriginalFiles bool          // Delete each HTML file once its image is written
	OutputDir           string        // Image directory (default: <RootDir>/images)
	Timeout             time.Duration // Bound for each navigation and element wait
	Workers             int           // Concurrent browsing contexts (0 = auto, 1 = sequential)
	Port                int           // Static server port (0 = OS-assigned)
	ImageFormat         string        // "png" or "jpeg"
	JPEGQuality         int           // 1-100, jpeg only
	ResizeWidth         int           // Downscale images to this width (0 = keep captured size)
	FailOnJobError      bool          // Make RunReport.Err fail when any page failed

	// MaxConsecutiveWriteFailures escalates repeated write errors to a fatal
	// error. Zero uses the default, negative disables escalation.
	MaxConsecutiveWriteFailures int

	// Stealth creates pages with evasions for scripts that refuse to render
	// under a headless user agent.
	Stealth bool
}

// withDefaults returns a copy of c with zero values replaced by defaults.
func (c RunConfig) withDefaults() RunConfig {
	if c.GlobPattern == "" {
		c.GlobPattern = DefaultGlobPattern
	}
	if c.Viewport == (Viewport{}) {
		c.Viewport = Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}
	}
	if c.OutputDir == "" && c.RootDir != "" {
		c.OutputDir = filepath.Join(c.RootDir, DefaultOutputDirName)
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.ImageFormat == "" {
		c.ImageFormat = FormatPNG
	}
	c.ImageFormat = strings.ToLower(c.ImageFormat)
	if c.ImageFormat == "jpg" {
		c.ImageFormat = FormatJPEG
	}
	if c.JPEGQuality == 0 {
		c.JPEGQuality = DefaultJPEGQuality
	}
	if c.MaxConsecutiveWriteFailures == 0 {
		c.MaxConsecutiveWriteFailures = DefaultMaxConsecutiveWriteFailures
	}
	return c
}

// Validate checks the configuration after defaults are applied.
func (c RunConfig) Validate() error {
	if c.RootDir == "" {
		return ErrEmptyRootDir
	}
	if !doublestar.ValidatePattern(c.GlobPattern) {
		return fmt.Errorf("%w: %q", ErrInvalidGlob, c.GlobPattern)
	}
	if err := c.Viewport.Validate(); err != nil {
		return err
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: %v (must be positive)", ErrInvalidTimeout, c.Timeout)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: %d (must be >= 0, 0 means auto)", ErrInvalidWorkers, c.Workers)
	}
	if c.Workers > MaxPoolSize {
		return fmt.Errorf("%w: %d (maximum is %d)", ErrInvalidWorkers, c.Workers, MaxPoolSize)
	}
	if c.Port < 0 || c.Port > MaxPort {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	switch c.ImageFormat {
	case FormatPNG, FormatJPEG:
	default:
		return fmt.Errorf("%w: %q (must be png or jpeg)", ErrInvalidFormat, c.ImageFormat)
	}
	if c.JPEGQuality < MinJPEGQuality || c.JPEGQuality > MaxJPEGQuality {
		return fmt.Errorf("%w: %d (must be between %d and %d)", ErrInvalidQuality, c.JPEGQuality, MinJPEGQuality, MaxJPEGQuality)
	}
	if c.ResizeWidth < 0 || c.ResizeWidth > MaxViewportDimension {
		return fmt.Errorf("%w: %d", ErrInvalidResize, c.ResizeWidth)
	}
	return nil
}

// PageJob is one discovered page waiting to be captured.
type PageJob struct {
	RelativePath string // Forward-slash path relative to RootDir
	URL          string // Address of the page on the static server
}

// CaptureResult is the terminal outcome of one PageJob.
type CaptureResult struct {
	Job        PageJob
	OutputPath string // Written image path (empty on failure)
	Err        error  // nil on success
	Duration   time.Duration
}

// Succeeded reports whether the job produced an image.
func (r CaptureResult) Succeeded() bool {
	return r.Err == nil
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the structured logger. A nil logger is ignored and
// the Generator keeps discarding logs.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithProgress registers fn to observe job phase changes.
func WithProgress(fn ProgressFunc) Option {
	return func(g *Generator) {
		g.progress = fn
	}
}

// withServerStarter replaces the static server (tests).
func withServerStarter(s serverStarter) Option {
	return func(g *Generator) {
		g.startServer = s
	}
}

// withBrowserLauncher replaces the browser (tests).
func withBrowserLauncher(l browserLauncher) Option {
	return func(g *Generator) {
		g.launchBrowser = l
	}
}

// withCapturer replaces the page capturer (tests).
func withCapturer(c pageCapturer) Option {
	return func(g *Generator) {
		g.capturer = c
	}
}
