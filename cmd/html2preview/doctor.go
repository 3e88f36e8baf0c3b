package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"

	html2preview "github.com/alnah/go-html2preview"
	"github.com/alnah/go-html2preview/internal/config"
	"github.com/alnah/go-html2preview/internal/fileutil"
	"github.com/alnah/go-html2preview/internal/hints"
	"github.com/go-rod/rod/lib/launcher"
	flag "github.com/spf13/pflag"
)

// Doctor statuses, worst last.
const (
	statusReady    = "ready"
	statusWarnings = "warnings"
	statusErrors   = "errors"
)

// doctorResult is everything doctor found, in the shape printed by --json.
type doctorResult struct {
	Status   string      `json:"status"`
	Browser  browserInfo `json:"browser"`
	Host     hostInfo    `json:"host"`
	Config   configInfo  `json:"config"`
	Site     *siteInfo   `json:"site,omitempty"` // only with a root directory
	Network  networkInfo `json:"network"`
	Warnings []string    `json:"warnings,omitempty"`
	Errors   []string    `json:"errors,omitempty"`
}

type browserInfo struct {
	Found   bool   `json:"found"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Sandbox bool   `json:"sandbox"`
}

type hostInfo struct {
	OS            string `json:"os"`
	Arch          string `json:"arch"`
	Container     bool   `json:"container"`
	ContainerHint string `json:"container_hint,omitempty"`
	CI            bool   `json:"ci"`
	TempWritable  bool   `json:"temp_writable"`
}

// configInfo describes where the effective configuration comes from.
type configInfo struct {
	Source   string            `json:"source,omitempty"` // empty = built-in defaults
	Searched []string          `json:"searched"`
	Valid    bool              `json:"valid"`
	EnvVars  map[string]string `json:"env_vars,omitempty"`
	Unknown  []string          `json:"unknown_env_vars,omitempty"`
}

// siteInfo is the dry run of discovery and output checks for one root.
type siteInfo struct {
	Root           string `json:"root"`
	Glob           string `json:"glob"`
	Pages          int    `json:"pages"`
	OutputDir      string `json:"output_dir"`
	OutputWritable bool   `json:"output_writable"`
}

type networkInfo struct {
	Loopback bool `json:"loopback"`
	Port     int  `json:"port"` // 0 = any free port
	PortFree bool `json:"port_free"`
}

// doctor accumulates findings across checks.
type doctor struct {
	result *doctorResult
	cfg    *config.Config
	root   string
}

func (d *doctor) warn(format string, args ...any) {
	d.result.Warnings = append(d.result.Warnings, fmt.Sprintf(format, args...))
}

func (d *doctor) fail(format string, args ...any) {
	d.result.Errors = append(d.result.Errors, fmt.Sprintf(format, args...))
}

// runDoctorCmd executes the doctor command and returns an exit code:
// 0 when a capture run could start (warnings included), 1 otherwise.
func runDoctorCmd(args []string, env *Environment) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(env.Stderr)
	jsonOutput := fs.Bool("json", false, "print the diagnosis as JSON")
	configPath := fs.StringP("config", "c", "", "config file to check")
	fs.Usage = func() { printDoctorUsage(env.Stderr) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitSuccess
		}
		return ExitUsage
	}
	if fs.NArg() > 1 {
		fmt.Fprintf(env.Stderr, "error: %v, got %d\n", ErrTooManyArgs, fs.NArg())
		return ExitUsage
	}

	result := runDoctor(*configPath, fs.Args())

	if *jsonOutput {
		enc := json.NewEncoder(env.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
	} else {
		printDoctorResult(env.Stdout, result)
	}

	if result.Status == statusErrors {
		return ExitGeneral
	}
	return ExitSuccess
}

// runDoctor resolves configuration the way capture does, then checks
// everything a run depends on before the first page is opened.
func runDoctor(configPath string, args []string) *doctorResult {
	d := &doctor{result: &doctorResult{Status: statusReady}}

	envCfg := loadEnvConfig()
	if configPath == "" {
		configPath = envCfg.ConfigPath
	}
	d.checkConfig(configPath, envCfg)
	if root, err := resolveRootDir(args, envCfg); err == nil {
		d.root = root
	}

	d.checkBrowser()
	d.checkHost()
	d.checkNetwork()
	if d.root != "" {
		d.checkSite()
	}

	switch {
	case len(d.result.Errors) > 0:
		d.result.Status = statusErrors
	case len(d.result.Warnings) > 0:
		d.result.Status = statusWarnings
	}
	return d.result
}

// checkConfig loads the config file and reports HTML2PREVIEW_* overrides.
func (d *doctor) checkConfig(path string, envCfg *envConfig) {
	info := &d.result.Config
	info.Searched = config.SearchPaths()
	if path != "" {
		info.Searched = []string{path}
	}

	for _, kv := range os.Environ() {
		name, value, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(name, envPrefix) {
			continue
		}
		if !knownEnvVars[name] {
			info.Unknown = append(info.Unknown, name)
			d.warn("Unknown environment variable %s (typo?)", name)
			continue
		}
		if info.EnvVars == nil {
			info.EnvVars = map[string]string{}
		}
		info.EnvVars[name] = value
	}
	slices.Sort(info.Unknown)

	cfg, source, err := config.Load(path)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, config.ErrConfigNotFound) {
			msg += hints.ForConfigNotFound(config.SearchPaths())
		}
		d.fail("Config: %s", msg)
		cfg = config.DefaultConfig()
	} else {
		info.Source = source
		info.Valid = true
	}

	applyEnvConfig(envCfg, cfg)
	d.cfg = cfg
}

// checkBrowser finds the browser rod would launch.
func (d *doctor) checkBrowser() {
	b := &d.result.Browser
	b.Sandbox = os.Getenv("ROD_NO_SANDBOX") != "1"

	path := os.Getenv("ROD_BROWSER_BIN")
	if path == "" {
		var found bool
		if path, found = launcher.LookPath(); !found {
			// rod downloads a browser on first launch.
			d.warn("Chrome/Chromium not found; a browser will be downloaded on first run%s", hints.ForBrowserLaunch())
			return
		}
	} else if !fileutil.FileExists(path) {
		d.fail("ROD_BROWSER_BIN points to a missing file: %s", path)
		return
	}

	b.Found = true
	b.Path = path
	out, err := exec.Command(path, "--version").Output() // #nosec G204 -- path comes from ROD_BROWSER_BIN or rod's lookup
	if err != nil {
		d.warn("Could not get browser version: %v", err)
		return
	}
	b.Version = strings.TrimSpace(string(out))
}

// ciVars are set by the common CI providers.
var ciVars = []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "CIRCLECI"}

// checkHost records the platform, container and CI signals, and the temp dir.
func (d *doctor) checkHost() {
	h := &d.result.Host
	h.OS, h.Arch = runtime.GOOS, runtime.GOARCH
	h.Container, h.ContainerHint = isContainer()
	h.CI = slices.ContainsFunc(ciVars, func(v string) bool { return os.Getenv(v) != "" })

	// Chrome's sandbox needs user namespaces, rarely available there.
	if (h.Container || h.CI) && d.result.Browser.Sandbox {
		d.warn("Container/CI detected but ROD_NO_SANDBOX not set. Set ROD_NO_SANDBOX=1")
	}

	if h.TempWritable = fileutil.DirWritable(os.TempDir()); !h.TempWritable {
		d.fail("Temp directory not writable: %s", os.TempDir())
	}
}

// isContainer reports whether we run in a container and which signal said so.
// The explicit override wins over detection.
func isContainer() (bool, string) {
	switch {
	case os.Getenv("HTML2PREVIEW_CONTAINER") == "1":
		return true, "HTML2PREVIEW_CONTAINER=1"
	case hints.IsInContainer():
		return true, "/.dockerenv"
	case os.Getenv("container") != "": // podman, systemd-nspawn
		return true, "container=" + os.Getenv("container")
	case os.Getenv("KUBERNETES_SERVICE_HOST") != "":
		return true, "KUBERNETES_SERVICE_HOST"
	}
	return false, ""
}

// checkNetwork binds the port the static server would use.
func (d *doctor) checkNetwork() {
	n := &d.result.Network
	n.Port = d.cfg.Port
	if n.Port < 0 || n.Port > html2preview.MaxPort {
		d.fail("Port %d out of range (0-%d)", n.Port, html2preview.MaxPort)
		return
	}

	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(n.Port)))
	if err != nil {
		if n.Port == 0 {
			d.fail("Cannot listen on loopback: %v", err)
			return
		}
		// A busy fixed port still proves loopback works.
		n.Loopback = probeLoopback()
		d.fail("Port %d is not available: %v%s", n.Port, err, hints.ForPortInUse())
		return
	}
	_ = ln.Close()
	n.Loopback = true
	n.PortFree = true
}

func probeLoopback() bool {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}

// checkSite dry-runs discovery and checks the output directory. A missing
// output directory is fine as long as it can be created.
func (d *doctor) checkSite() {
	s := &siteInfo{Root: d.root, Glob: d.cfg.Glob, OutputDir: d.cfg.Output}
	d.result.Site = s
	if s.Glob == "" {
		s.Glob = html2preview.DefaultGlobPattern
	}
	if s.OutputDir == "" {
		s.OutputDir = filepath.Join(d.root, html2preview.DefaultOutputDirName)
	}

	pages, err := html2preview.Discover(d.root, s.Glob)
	if err != nil {
		d.fail("Site: %v", err)
		return
	}
	s.Pages = len(pages)
	if s.Pages == 0 {
		d.warn("No page under %s matches %s", d.root, s.Glob)
	}

	if s.OutputWritable = fileutil.DirWritable(nearestDir(s.OutputDir)); !s.OutputWritable {
		d.fail("Output directory not writable: %s%s", s.OutputDir, hints.ForOutputDirectory())
	}
}

// nearestDir returns dir or its closest existing ancestor.
func nearestDir(dir string) string {
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

// printDoctorResult writes the human-readable report, one section per check.
func printDoctorResult(w io.Writer, r *doctorResult) {
	fmt.Fprintln(w, "html2preview doctor")

	section(w, "Chrome/Chromium")
	if r.Browser.Found {
		line(w, "OK", "Found at %s", r.Browser.Path)
		if r.Browser.Version != "" {
			line(w, "OK", "Version: %s", r.Browser.Version)
		}
	} else {
		line(w, "WARN", "Not found")
	}
	if r.Browser.Sandbox {
		line(w, "OK", "Sandbox: enabled")
	} else {
		line(w, "OK", "Sandbox: disabled (ROD_NO_SANDBOX=1)")
	}

	section(w, "Host")
	line(w, "OK", "Platform: %s/%s", r.Host.OS, r.Host.Arch)
	if r.Host.Container {
		line(w, "OK", "Container: detected (%s)", r.Host.ContainerHint)
	}
	if r.Host.CI {
		line(w, "OK", "CI: detected")
	}
	line(w, okOr(r.Host.TempWritable, "ERROR"), "Temp directory: %s", yesNo(r.Host.TempWritable, "writable", "not writable"))

	section(w, "Config")
	if r.Config.Source != "" {
		line(w, okOr(r.Config.Valid, "ERROR"), "File: %s", r.Config.Source)
	} else {
		line(w, okOr(r.Config.Valid, "ERROR"), "File: none (searched %s)", strings.Join(r.Config.Searched, ", "))
	}
	names := make([]string, 0, len(r.Config.EnvVars))
	for name := range r.Config.EnvVars {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		line(w, "OK", "%s=%s", name, r.Config.EnvVars[name])
	}

	section(w, "Network")
	line(w, okOr(r.Network.Loopback, "ERROR"), "Loopback: %s", yesNo(r.Network.Loopback, "available", "unavailable"))
	if r.Network.Port != 0 {
		line(w, okOr(r.Network.PortFree, "ERROR"), "Port %d: %s", r.Network.Port, yesNo(r.Network.PortFree, "free", "in use"))
	}

	if s := r.Site; s != nil {
		section(w, "Site")
		line(w, "OK", "Root: %s", s.Root)
		line(w, okOr(s.Pages > 0, "WARN"), "Pages matching %s: %d", s.Glob, s.Pages)
		line(w, okOr(s.OutputWritable, "ERROR"), "Output: %s (%s)", s.OutputDir, yesNo(s.OutputWritable, "writable", "not writable"))
	}

	list(w, "Warnings:", "WARN", r.Warnings)
	list(w, "Errors:", "ERROR", r.Errors)

	fmt.Fprintln(w)
	switch r.Status {
	case statusReady:
		fmt.Fprintln(w, "Status: Ready to capture")
	case statusWarnings:
		fmt.Fprintln(w, "Status: Ready with warnings")
	case statusErrors:
		fmt.Fprintln(w, "Status: Not ready (see errors above)")
	}
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n", title)
}

func line(w io.Writer, level, format string, args ...any) {
	fmt.Fprintf(w, "  [%s] %s\n", level, fmt.Sprintf(format, args...))
}

func list(w io.Writer, title, level string, items []string) {
	if len(items) == 0 {
		return
	}
	section(w, title)
	for _, item := range items {
		line(w, level, "%s", item)
	}
}

func okOr(ok bool, level string) string {
	if ok {
		return "OK"
	}
	return level
}

func yesNo(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
