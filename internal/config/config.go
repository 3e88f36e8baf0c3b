// Package config loads the html2preview YAML configuration file.
//
// A config file carries project defaults so a site's build script can run
// html2preview with only a root directory. Flags and environment variables
// override it; see cmd/html2preview.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-html2preview/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrConfigParse    = errors.New("failed to parse config")
	ErrFieldTooLong   = errors.New("field exceeds maximum length")
	ErrInvalidValue   = errors.New("invalid config value")
)

// File names searched when no explicit path is given.
const (
	LocalFileName = "html2preview.yaml"
	UserDirName   = "html2preview"
	UserFileName  = "config.yaml"
)

// Field length limits.
const (
	MaxGlobLength     = 1024
	MaxSelectorLength = 1024
	MaxPathLength     = 4096
	MaxFormatLength   = 10
	MaxTimeoutLength  = 32
)

// Config mirrors the run options that make sense to pin per project.
// Zero values mean "not set" and leave the built-in default in place.
type Config struct {
	Glob             string         `yaml:"glob"`
	Selector         string         `yaml:"selector"`
	RemoveOriginals  bool           `yaml:"removeOriginals"`
	Output           string         `yaml:"output"`
	Viewport         ViewportConfig `yaml:"viewport"`
	Timeout          string         `yaml:"timeout"` // Go duration, e.g. "30s"
	Workers          int            `yaml:"workers"`
	Port             int            `yaml:"port"`
	Image            ImageConfig    `yaml:"image"`
	FailOnError      bool           `yaml:"failOnError"`
	MaxWriteFailures int            `yaml:"maxWriteFailures"` // negative disables escalation
	Stealth          bool           `yaml:"stealth"`
}

// ViewportConfig is the browser window size.
type ViewportConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// ImageConfig controls the written files.
type ImageConfig struct {
	Format      string `yaml:"format"`      // "png" or "jpeg"
	Quality     int    `yaml:"quality"`     // 1-100, jpeg only
	ResizeWidth int    `yaml:"resizeWidth"` // 0 keeps the captured width
}

// DefaultConfig returns an empty configuration: every field unset.
func DefaultConfig() *Config {
	return &Config{}
}

// Validate checks the values a file can get wrong on its own. Cross-field
// and range checks against the run happen in html2preview.RunConfig.Validate.
func (c *Config) Validate() error {
	fields := []struct {
		name  string
		value string
		max   int
	}{
		{"glob", c.Glob, MaxGlobLength},
		{"selector", c.Selector, MaxSelectorLength},
		{"output", c.Output, MaxPathLength},
		{"timeout", c.Timeout, MaxTimeoutLength},
		{"image.format", c.Image.Format, MaxFormatLength},
	}
	for _, f := range fields {
		if err := validateFieldLength(f.name, f.value, f.max); err != nil {
			return err
		}
	}

	if _, err := c.TimeoutDuration(); err != nil {
		return err
	}
	if c.Viewport.Width < 0 || c.Viewport.Height < 0 {
		return fmt.Errorf("%w: viewport %dx%d (dimensions must be positive)", ErrInvalidValue, c.Viewport.Width, c.Viewport.Height)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers %d (must be >= 0)", ErrInvalidValue, c.Workers)
	}
	if c.Port < 0 {
		return fmt.Errorf("%w: port %d (must be >= 0)", ErrInvalidValue, c.Port)
	}
	if c.Image.Format != "" {
		switch strings.ToLower(c.Image.Format) {
		case "png", "jpeg", "jpg":
		default:
			return fmt.Errorf("%w: image.format %q (must be png or jpeg)", ErrInvalidValue, c.Image.Format)
		}
	}
	if c.Image.Quality < 0 || c.Image.Quality > 100 {
		return fmt.Errorf("%w: image.quality %d (must be between 1 and 100)", ErrInvalidValue, c.Image.Quality)
	}
	if c.Image.ResizeWidth < 0 {
		return fmt.Errorf("%w: image.resizeWidth %d (must be >= 0)", ErrInvalidValue, c.Image.ResizeWidth)
	}
	return nil
}

// TimeoutDuration parses Timeout. An empty value returns 0.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("%w: timeout %q (use a duration like 30s or 1m)", ErrInvalidValue, c.Timeout)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: timeout %q (must be positive)", ErrInvalidValue, c.Timeout)
	}
	return d, nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// Load reads the configuration file.
//
// With an explicit path the file must exist. Without one, SearchPaths is
// tried in order and a missing file is not an error: Load returns
// DefaultConfig and an empty source path.
func Load(path string) (*Config, string, error) {
	if path != "" {
		cfg, err := loadFile(path)
		if err != nil {
			return nil, "", err
		}
		return cfg, path, nil
	}

	for _, candidate := range SearchPaths() {
		if !fileExists(candidate) {
			continue
		}
		cfg, err := loadFile(candidate)
		if err != nil {
			return nil, "", err
		}
		return cfg, candidate, nil
	}
	return DefaultConfig(), "", nil
}

// SearchPaths lists the implicit config locations in lookup order: the
// working directory, then the user config directory.
func SearchPaths() []string {
	paths := []string{LocalFileName}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, UserDirName, UserFileName))
	}
	return paths
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	// An empty file is a valid "everything default" config.
	if len(strings.TrimSpace(string(data))) == 0 {
		return cfg, nil
	}
	if err := yamlutil.Decode(data, cfg, yamlutil.Options{Strict: true}); err != nil {
		return nil, fmt.Errorf("%w: %s\n%s", ErrConfigParse, path, yamlutil.Describe(err))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Marshal renders c as YAML, for --print-config.
func (c *Config) Marshal() ([]byte, error) {
	return yamlutil.Encode(c)
}

// fileExists returns true if the path exists and is a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
