package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-html2preview/internal/config"
)

const envPrefix = "HTML2PREVIEW_"

// envConfig holds configuration from environment variables.
// Provides CI/CD-friendly overrides without requiring YAML files.
type envConfig struct {
	ConfigPath string        // HTML2PREVIEW_CONFIG: config file path
	RootDir    string        // HTML2PREVIEW_ROOT: site directory when no argument is given
	Glob       string        // HTML2PREVIEW_GLOB: pages to capture
	Selector   string        // HTML2PREVIEW_SELECTOR: element to capture
	OutputDir  string        // HTML2PREVIEW_OUTPUT_DIR: image directory
	Format     string        // HTML2PREVIEW_FORMAT: png or jpeg
	Timeout    time.Duration // HTML2PREVIEW_TIMEOUT: per-page timeout
	Workers    int           // HTML2PREVIEW_WORKERS: parallel contexts
	Port       int           // HTML2PREVIEW_PORT: static server port
	Stealth    bool          // HTML2PREVIEW_STEALTH: stealth pages
}

// knownEnvVars lists valid HTML2PREVIEW_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"HTML2PREVIEW_CONFIG":     true,
	"HTML2PREVIEW_ROOT":       true,
	"HTML2PREVIEW_GLOB":       true,
	"HTML2PREVIEW_SELECTOR":   true,
	"HTML2PREVIEW_OUTPUT_DIR": true,
	"HTML2PREVIEW_FORMAT":     true,
	"HTML2PREVIEW_TIMEOUT":    true,
	"HTML2PREVIEW_WORKERS":    true,
	"HTML2PREVIEW_PORT":       true,
	"HTML2PREVIEW_STEALTH":    true,
	"HTML2PREVIEW_CONTAINER":  true, // read by doctor
}

// loadEnvConfig reads configuration from environment variables.
// Malformed numbers and durations are ignored, like unset variables.
func loadEnvConfig() *envConfig {
	cfg := &envConfig{
		ConfigPath: os.Getenv("HTML2PREVIEW_CONFIG"),
		RootDir:    os.Getenv("HTML2PREVIEW_ROOT"),
		Glob:       os.Getenv("HTML2PREVIEW_GLOB"),
		Selector:   os.Getenv("HTML2PREVIEW_SELECTOR"),
		OutputDir:  os.Getenv("HTML2PREVIEW_OUTPUT_DIR"),
		Format:     os.Getenv("HTML2PREVIEW_FORMAT"),
	}

	if timeout := os.Getenv("HTML2PREVIEW_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	if workers := os.Getenv("HTML2PREVIEW_WORKERS"); workers != "" {
		if w, err := strconv.Atoi(workers); err == nil && w > 0 {
			cfg.Workers = w
		}
	}
	if port := os.Getenv("HTML2PREVIEW_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			cfg.Port = p
		}
	}
	if stealth := os.Getenv("HTML2PREVIEW_STEALTH"); stealth != "" {
		if b, err := strconv.ParseBool(stealth); err == nil {
			cfg.Stealth = b
		}
	}

	return cfg
}

// warnUnknownEnvVars logs warnings for unrecognized HTML2PREVIEW_* variables.
// Helps catch typos like HTML2PREVIEW_SELECT instead of HTML2PREVIEW_SELECTOR.
func warnUnknownEnvVars(w io.Writer) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, envPrefix) {
			name := strings.SplitN(env, "=", 2)[0]
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig applies environment variable values to config.
// Only sets values if the env var is set AND the config value is empty/zero.
// This ensures: CLI flags > env vars > config file > defaults
// (CLI flags are applied later via mergeFlags)
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.Glob != "" && cfg.Glob == "" {
		cfg.Glob = env.Glob
	}
	if env.Selector != "" && cfg.Selector == "" {
		cfg.Selector = env.Selector
	}
	if env.OutputDir != "" && cfg.Output == "" {
		cfg.Output = env.OutputDir
	}
	if env.Format != "" && cfg.Image.Format == "" {
		cfg.Image.Format = env.Format
	}
	if env.Timeout > 0 && cfg.Timeout == "" {
		cfg.Timeout = env.Timeout.String()
	}
	if env.Workers > 0 && cfg.Workers == 0 {
		cfg.Workers = env.Workers
	}
	if env.Port > 0 && cfg.Port == 0 {
		cfg.Port = env.Port
	}
	if env.Stealth {
		cfg.Stealth = true
	}
}
