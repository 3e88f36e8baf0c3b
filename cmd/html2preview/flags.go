package main

import (
	"errors"
	"io"

	flag "github.com/spf13/pflag"
)

// Sentinel errors for argument handling.
var (
	ErrNoRootDir   = errors.New("no root directory specified")
	ErrTooManyArgs = errors.New("expected a single root directory")
	ErrInvalidFlag = errors.New("invalid flag value")
)

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// viewportFlags holds the browser window size.
type viewportFlags struct {
	width  int
	height int
}

// imageFlags holds output image flags.
type imageFlags struct {
	format      string
	quality     int
	resizeWidth int
}

// captureFlags holds all flags for the capture command.
type captureFlags struct {
	common           commonFlags
	glob             string
	selector         string
	removeOriginals  bool
	output           string
	timeout          string
	workers          int
	port             int
	failOnError      bool
	maxWriteFailures int
	stealth          bool
	jsonOutput       bool
	printConfig      bool
	viewport         viewportFlags
	image            imageFlags

	// changed reports whether a flag was set on the command line, so that
	// an explicit false or zero still overrides the config file.
	changed func(name string) bool
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show per-page progress")
}

// addViewportFlags adds viewport flags to a FlagSet.
func addViewportFlags(fs *flag.FlagSet, f *viewportFlags) {
	fs.IntVar(&f.width, "width", 0, "viewport width in CSS pixels (default: 480)")
	fs.IntVar(&f.height, "height", 0, "viewport height in CSS pixels (default: 360)")
}

// addImageFlags adds image flags to a FlagSet.
func addImageFlags(fs *flag.FlagSet, f *imageFlags) {
	fs.StringVar(&f.format, "format", "", "image format: png, jpeg")
	fs.IntVar(&f.quality, "quality", 0, "JPEG quality (1-100, default: 90)")
	fs.IntVar(&f.resizeWidth, "resize-width", 0, "downscale images to this width")
}

// newCaptureFlagSet registers every capture flag on a new FlagSet bound to f.
func newCaptureFlagSet(f *captureFlags, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("html2preview", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&f.glob, "glob", "", "pages to capture, relative to the root (default: **/*.{html,htm})")
	fs.StringVar(&f.selector, "selector", "", "CSS selector to capture (empty = viewport)")
	fs.BoolVar(&f.removeOriginals, "remove-originals", false, "delete each page once its image is written")
	fs.StringVarP(&f.output, "output", "o", "", "image directory (default: <root>/images)")
	fs.StringVarP(&f.timeout, "timeout", "t", "", "per-page navigation and wait timeout (e.g., 30s, 1m)")
	fs.IntVarP(&f.workers, "workers", "w", 0, "parallel browsing contexts (0 = auto)")
	fs.IntVar(&f.port, "port", 0, "static server port (0 = any free port)")
	fs.BoolVar(&f.failOnError, "fail-on-error", false, "exit non-zero when any page fails")
	fs.IntVar(&f.maxWriteFailures, "max-write-failures", 0, "abort after this many consecutive write failures (-1 = never)")
	fs.BoolVar(&f.stealth, "stealth", false, "hide headless browser signals from page scripts")
	fs.BoolVar(&f.jsonOutput, "json", false, "print the run report as JSON")
	fs.BoolVar(&f.printConfig, "print-config", false, "print the merged configuration and exit")

	addCommonFlags(fs, &f.common)
	addViewportFlags(fs, &f.viewport)
	addImageFlags(fs, &f.image)

	fs.Usage = func() { printCaptureUsage(stderr) }
	return fs
}

// parseCaptureFlags parses capture flags and returns positional args.
// Parse errors and the usage text are written to stderr.
func parseCaptureFlags(args []string, stderr io.Writer) (*captureFlags, []string, error) {
	f := &captureFlags{}
	fs := newCaptureFlagSet(f, stderr)

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	f.changed = fs.Changed

	return f, fs.Args(), nil
}
