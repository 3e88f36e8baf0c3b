package html2preview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Generator runs the preview pipeline for one RunConfig. It owns the run's
// static server and browser session; nothing is shared between Generators,
// so several can run concurrently in one process.
//
// A Generator runs once. Create a new one for every run.
type Generator struct {
	cfg      RunConfig
	logger   *slog.Logger
	progress ProgressFunc
	writer   *ArtifactWriter

	startServer   serverStarter
	launchBrowser browserLauncher
	capturer      pageCapturer

	mu    sync.Mutex
	state State
	ran   bool
}

// NewGenerator validates cfg, applies defaults and returns a Generator.
func NewGenerator(cfg RunConfig, opts ...Option) (*Generator, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Generator{
		cfg:           cfg,
		logger:        slog.New(slog.DiscardHandler),
		startServer:   startServer,
		launchBrowser: launchBrowser,
		writer: &ArtifactWriter{
			RootDir:     cfg.RootDir,
			OutputDir:   cfg.OutputDir,
			Format:      cfg.ImageFormat,
			JPEGQuality: cfg.JPEGQuality,
			ResizeWidth: cfg.ResizeWidth,
		},
	}

	for _, opt := range opts {
		opt(g)
	}

	// Create capturer if not injected (e.g., by tests)
	if g.capturer == nil {
		g.capturer = newRodCapturer(cfg.Timeout, cfg.ImageFormat, cfg.JPEGQuality)
	}

	return g, nil
}

// Config returns the effective configuration, defaults included.
func (g *Generator) Config() RunConfig {
	return g.cfg
}

// State returns the current run state. Safe to call from any goroutine.
func (g *Generator) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Generator) setState(s State) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
	g.logger.Debug("run state", "state", s.String())
}

// Run discovers pages, captures each one and returns the report.
//
// Page failures are recorded in the report and never abort the run.
// Fatal errors (discovery, server bind, browser launch, repeated write
// failures) and cancellation are returned as *FatalError together with the
// partial report. The browser and the server are always released before
// Run returns, whatever the outcome.
func (g *Generator) Run(ctx context.Context) (*RunReport, error) {
	g.mu.Lock()
	if g.ran {
		g.mu.Unlock()
		return nil, ErrGeneratorConsumed
	}
	g.ran = true
	g.mu.Unlock()

	var (
		srv     staticServer
		browser browserSession
	)
	defer func() {
		g.setState(StateStopping)
		g.teardown(ctx, browser, srv)
		g.setState(StateDone)
	}()

	g.setState(StateDiscovering)
	paths, err := Discover(g.cfg.RootDir, g.cfg.GlobPattern)
	if err != nil {
		return newRunReport(0, nil, g.cfg.FailOnJobError), g.fatal(StateDiscovering, err)
	}
	g.logger.Info("pages discovered", "root", g.cfg.RootDir, "pattern", g.cfg.GlobPattern, "count", len(paths))
	if len(paths) == 0 {
		return newRunReport(0, nil, g.cfg.FailOnJobError), nil
	}

	g.setState(StateServerStarting)
	if err := ctx.Err(); err != nil {
		return newRunReport(len(paths), nil, g.cfg.FailOnJobError), g.fatal(StateServerStarting, err)
	}
	srv, err = g.startServer(ctx, g.cfg.RootDir, g.cfg.Port, g.logger)
	if err != nil {
		return newRunReport(len(paths), nil, g.cfg.FailOnJobError), g.fatal(StateServerStarting, err)
	}

	// The server is accepting connections before the browser is asked to navigate.
	g.setState(StateBrowserStarting)
	if err := ctx.Err(); err != nil {
		return newRunReport(len(paths), nil, g.cfg.FailOnJobError), g.fatal(StateBrowserStarting, err)
	}
	browser, err = g.launchBrowser(ctx, BrowserOptions{
		Viewport: g.cfg.Viewport,
		Stealth:  g.cfg.Stealth,
		Logger:   g.logger,
	})
	if err != nil {
		return newRunReport(len(paths), nil, g.cfg.FailOnJobError), g.fatal(StateBrowserStarting, err)
	}

	g.setState(StateCapturing)
	results, err := g.captureAll(ctx, srv, browser, paths)
	report := newRunReport(len(paths), results, g.cfg.FailOnJobError)
	if err != nil {
		return report, g.fatal(StateCapturing, err)
	}
	return report, nil
}

func (g *Generator) fatal(stage State, err error) error {
	g.logger.Error("run aborted", "stage", stage.String(), "err", err)
	return &FatalError{Stage: stage, Err: err}
}

// teardown closes the browser, then stops the server. It ignores ctx
// cancellation so an interrupted run still releases both.
func (g *Generator) teardown(ctx context.Context, browser browserSession, srv staticServer) {
	if browser != nil {
		if err := browser.Close(); err != nil {
			g.logger.Warn("closing browser", "err", err)
		}
	}
	if srv != nil {
		if err := srv.Stop(context.WithoutCancel(ctx)); err != nil {
			g.logger.Warn("stopping static server", "err", err)
		}
	}
}

// captureAll processes every page with a bounded pool of workers, each job
// in its own browsing context. Results are indexed in discovery order.
func (g *Generator) captureAll(ctx context.Context, srv staticServer, browser browserSession, paths []string) ([]CaptureResult, error) {
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	concurrency := min(ResolvePoolSize(g.cfg.Workers), len(paths))
	g.logger.Debug("capturing", "pages", len(paths), "workers", concurrency)

	results := make([]CaptureResult, len(paths))
	guard := newWriteGuard(g.cfg.MaxConsecutiveWriteFailures)
	jobs := make(chan int, len(paths))

	var wg sync.WaitGroup
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for idx := range jobs {
				job := PageJob{RelativePath: paths[idx], URL: srv.URL(paths[idx])}
				if runCtx.Err() != nil {
					results[idx] = CaptureResult{Job: job, Err: context.Cause(runCtx)}
					g.notify(Progress{RelativePath: job.RelativePath, Phase: PhaseFailed, Err: results[idx].Err})
					continue
				}

				results[idx] = g.processJob(runCtx, browser, job)

				if guard.record(results[idx].Err) {
					cancel(fmt.Errorf("%w: %d in a row, last: %v", ErrWriteEscalated, guard.limit, results[idx].Err))
				}
			}
		}()
	}

	for i := range paths {
		jobs <- i
	}
	close(jobs)

	// Stopping waits for every in-flight job to reach a terminal state.
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return results, err
	}
	if cause := context.Cause(runCtx); cause != nil && errors.Is(cause, ErrWriteEscalated) {
		return results, cause
	}
	return results, nil
}

// processJob captures, writes and optionally deletes one page. It never
// panics and always closes its browsing context.
func (g *Generator) processJob(ctx context.Context, browser browserSession, job PageJob) (res CaptureResult) {
	start := time.Now()
	res = CaptureResult{Job: job}
	log := g.logger.With("page", job.RelativePath)

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("%w: internal error: %v", ErrCapture, r)
			res.OutputPath = ""
		}
		res.Duration = time.Since(start)
		if res.Err != nil {
			log.Warn("page failed", "reason", Reason(res.Err), "err", res.Err, "duration", res.Duration)
			g.notify(Progress{RelativePath: job.RelativePath, Phase: PhaseFailed, Err: res.Err})
			return
		}
		log.Debug("page captured", "output", res.OutputPath, "duration", res.Duration)
		g.notify(Progress{RelativePath: job.RelativePath, Phase: PhaseSucceeded})
	}()

	bc, err := browser.NewContext()
	if err != nil {
		res.Err = err
		return res
	}
	closed := false
	closeContext := func() {
		if closed {
			return
		}
		closed = true
		if err := bc.Close(); err != nil {
			log.Debug("closing browsing context", "err", err)
		}
	}
	defer closeContext()

	onPhase := func(p JobPhase) {
		g.notify(Progress{RelativePath: job.RelativePath, Phase: p})
	}

	img, err := g.capturer.Capture(ctx, bc, job.URL, g.cfg.CaptureSelector, onPhase)
	// Release the renderer before touching the disk.
	closeContext()
	if err != nil {
		res.Err = err
		return res
	}

	onPhase(PhaseWriting)
	path, err := g.writer.Write(job.RelativePath, img)
	if err != nil {
		res.Err = err
		return res
	}
	res.OutputPath = path

	if g.cfg.RemoveOriginalFiles {
		onPhase(PhaseDeletingOriginal)
		if err := g.writer.DeleteOriginal(job.RelativePath); err != nil {
			res.Err = err
			return res
		}
	}
	return res
}

func (g *Generator) notify(p Progress) {
	if g.progress != nil {
		g.progress(p)
	}
}

// writeGuard counts consecutive write failures across workers.
type writeGuard struct {
	mu          sync.Mutex
	limit       int
	consecutive int
	tripped     bool
}

func newWriteGuard(limit int) *writeGuard {
	return &writeGuard{limit: limit}
}

// record updates the counter with a job outcome and reports whether the
// limit was just reached. Only write outcomes move the counter.
func (w *writeGuard) record(err error) bool {
	if w.limit <= 0 {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case err == nil:
		w.consecutive = 0
	case errors.Is(err, ErrWrite):
		w.consecutive++
	default:
		return false
	}

	if w.consecutive >= w.limit && !w.tripped {
		w.tripped = true
		return true
	}
	return false
}
