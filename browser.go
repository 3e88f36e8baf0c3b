package html2preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/alnah/go-html2preview/internal/hints"
	"github.com/alnah/go-html2preview/internal/process"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// browserSession abstracts the run-scoped browser so the orchestrator can be tested without Chrome.
type browserSession interface {
	NewContext() (browsingContext, error)
	Close() error
}

// browsingContext is an isolated cookie and storage jar used by a single job.
type browsingContext interface {
	Close() error
}

// browserLauncher starts the browserSession for a run.
type browserLauncher func(ctx context.Context, opts BrowserOptions) (browserSession, error)

// Compile-time interface checks.
var (
	_ browserSession  = (*BrowserSession)(nil)
	_ browsingContext = (*BrowsingContext)(nil)
)

// BrowserOptions configures LaunchBrowser.
type BrowserOptions struct {
	Viewport Viewport
	Stealth  bool   // Create pages with headless-detection evasions
	Bin      string // Browser binary (default: ROD_BROWSER_BIN, then rod's lookup/download)
	Logger   *slog.Logger
}

// BrowserSession owns the single headless browser process of a run.
// Launch and Close are run-scoped; NewContext is safe for concurrent use.
type BrowserSession struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	opts     BrowserOptions
	logger   *slog.Logger

	mu       sync.Mutex
	closed   bool
	contexts map[*BrowsingContext]struct{}
}

// LaunchBrowser spawns one headless browser and connects to it.
// Set ROD_NO_SANDBOX=1 (or run with CI=true) in containers.
func LaunchBrowser(ctx context.Context, opts BrowserOptions) (*BrowserSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrowserLaunch, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	l := launcher.New().Headless(true)

	bin := opts.Bin
	if bin == "" {
		bin = os.Getenv("ROD_BROWSER_BIN")
	}
	if bin != "" {
		l = l.Bin(bin)
	}

	// Sandbox is unavailable in most containers and CI runners
	if os.Getenv("ROD_NO_SANDBOX") == "1" || os.Getenv("CI") == "true" {
		l = l.NoSandbox(true)
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %v%s", ErrBrowserLaunch, err, hints.ForBrowserLaunch())
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		_ = killLauncher(l)
		return nil, fmt.Errorf("%w: %v%s", ErrBrowserLaunch, err, hints.ForBrowserLaunch())
	}

	logger.Debug("browser launched", "pid", l.PID(), "stealth", opts.Stealth)
	return &BrowserSession{
		browser:  browser,
		launcher: l,
		opts:     opts,
		logger:   logger,
		contexts: make(map[*BrowsingContext]struct{}),
	}, nil
}

// NewContext creates an incognito browsing context with its own cookies and storage.
func (s *BrowserSession) NewContext() (browsingContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("%w: browser session closed", ErrCapture)
	}

	inc, err := s.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("%w: creating browsing context: %v", ErrCapture, err)
	}

	bc := &BrowsingContext{
		browser:  inc,
		viewport: s.opts.Viewport,
		stealth:  s.opts.Stealth,
		session:  s,
	}
	s.contexts[bc] = struct{}{}
	return bc, nil
}

// Close disposes every open context, closes the browser and kills its
// process group. It is idempotent and safe after failed captures.
func (s *BrowserSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	open := make([]*BrowsingContext, 0, len(s.contexts))
	for bc := range s.contexts {
		open = append(open, bc)
	}
	s.contexts = nil
	s.mu.Unlock()

	var errs []error
	for _, bc := range open {
		if err := bc.dispose(); err != nil {
			errs = append(errs, err)
		}
	}

	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.launcher != nil {
		if err := killLauncher(s.launcher); err != nil {
			errs = append(errs, err)
		}
	}

	s.logger.Debug("browser closed")
	// The process is gone either way; close errors are informational.
	return errors.Join(errs...)
}

// PID returns the browser process id, 0 once unknown.
func (s *BrowserSession) PID() int {
	if s.launcher == nil {
		return 0
	}
	return s.launcher.PID()
}

// forget removes bc from the open set once it has been closed by its job.
func (s *BrowserSession) forget(bc *BrowsingContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, bc)
}

// killLauncher terminates the browser process tree and removes its profile directory.
func killLauncher(l *launcher.Launcher) error {
	var err error
	if pid := l.PID(); pid > 0 {
		err = process.KillGroup(pid)
	}
	// Kill covers platforms where the group kill is partial.
	l.Kill()
	l.Cleanup()
	return err
}

// BrowsingContext is one incognito context. Each job owns exactly one.
type BrowsingContext struct {
	browser  *rod.Browser
	viewport Viewport
	stealth  bool
	session  *BrowserSession

	once sync.Once
	err  error
}

// newPage opens a tab in this context sized to the configured viewport.
func (bc *BrowsingContext) newPage(ctx context.Context) (*rod.Page, error) {
	var (
		page *rod.Page
		err  error
	)
	b := bc.browser.Context(ctx)
	if bc.stealth {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{})
	}
	if err != nil {
		return nil, err
	}

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             bc.viewport.Width,
		Height:            bc.viewport.Height,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		_ = page.Close()
		return nil, err
	}
	return page, nil
}

// Close disposes the context and all of its pages.
func (bc *BrowsingContext) Close() error {
	err := bc.dispose()
	if bc.session != nil {
		bc.session.forget(bc)
	}
	return err
}

func (bc *BrowsingContext) dispose() error {
	bc.once.Do(func() {
		bc.err = bc.browser.Close()
	})
	return bc.err
}

// launchBrowser adapts LaunchBrowser to the browserLauncher signature.
func launchBrowser(ctx context.Context, opts BrowserOptions) (browserSession, error) {
	s, err := LaunchBrowser(ctx, opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}
