package html2preview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// networkIdleWindow is how long the page must go without requests to count as idle.
const networkIdleWindow = 500 * time.Millisecond

// pageCapturer renders one URL in a browsing context and returns the encoded image.
type pageCapturer interface {
	Capture(ctx context.Context, bc browsingContext, url, selector string, onPhase func(JobPhase)) ([]byte, error)
}

// Compile-time interface check.
var _ pageCapturer = (*rodCapturer)(nil)

// rodCapturer implements pageCapturer with go-rod.
type rodCapturer struct {
	timeout time.Duration
	format  proto.PageCaptureScreenshotFormat
	quality int
}

// newRodCapturer creates a capturer bounded by timeout for each wait.
func newRodCapturer(timeout time.Duration, format string, quality int) *rodCapturer {
	c := &rodCapturer{
		timeout: timeout,
		format:  proto.PageCaptureScreenshotFormatPng,
	}
	if format == FormatJPEG {
		c.format = proto.PageCaptureScreenshotFormatJpeg
		c.quality = quality
	}
	return c
}

// Capture navigates a fresh tab to url and screenshots either the element
// matching selector or, when selector is empty, the viewport.
//
// Each suspension point (load, element) is bounded by the capturer timeout.
// Failures wrap ErrNavigationTimeout, ErrElementNotFound or ErrCapture.
// Cancellation of ctx is returned as its cause (see context.Cause). onPhase may be nil.
func (c *rodCapturer) Capture(ctx context.Context, bc browsingContext, url, selector string, onPhase func(JobPhase)) ([]byte, error) {
	if onPhase == nil {
		onPhase = func(JobPhase) {}
	}
	rbc, ok := bc.(*BrowsingContext)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported browsing context %T", ErrCapture, bc)
	}
	if ctx.Err() != nil {
		return nil, canceled(ctx)
	}

	page, err := rbc.newPage(ctx)
	if err != nil {
		return nil, captureError(ctx, err)
	}
	defer func() { _ = page.Close() }()

	onPhase(PhaseNavigating)
	// The element wait settles a selector capture; only viewport shots wait
	// for the network to go idle.
	if err := c.navigate(ctx, page, url, selector == ""); err != nil {
		return nil, err
	}

	if selector == "" {
		onPhase(PhaseScreenshotting)
		return c.screenshotViewport(ctx, page)
	}

	onPhase(PhaseWaitingForTarget)
	el, err := c.waitElement(ctx, page, selector)
	if err != nil {
		return nil, err
	}
	onPhase(PhaseScreenshotting)
	return c.screenshotElement(ctx, el)
}

// navigate loads url and waits for the load event. With waitIdle it then
// waits for the network to go idle within whatever is left of the same bound.
func (c *rodCapturer) navigate(ctx context.Context, page *rod.Page, url string, waitIdle bool) error {
	navCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	p := page.Context(navCtx)
	idle := func() {}
	if waitIdle {
		idle = p.WaitRequestIdle(networkIdleWindow, nil, nil, nil)
	}

	if err := p.Navigate(url); err != nil {
		return navigationError(ctx, navCtx, err)
	}
	if err := p.WaitLoad(); err != nil {
		return navigationError(ctx, navCtx, err)
	}

	// Pages with long-polling never go idle; the load event is enough.
	idle()
	if ctx.Err() != nil {
		return canceled(ctx)
	}
	return nil
}

// waitElement waits until selector matches an element.
func (c *rodCapturer) waitElement(ctx context.Context, page *rod.Page, selector string) (*rod.Element, error) {
	elCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	el, err := page.Context(elCtx).Element(selector)
	if err == nil {
		return el, nil
	}
	if ctx.Err() != nil {
		return nil, canceled(ctx)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(elCtx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %q not found within %v", ErrElementNotFound, selector, c.timeout)
	}
	return nil, fmt.Errorf("%w: %v", ErrCapture, err)
}

// screenshotElement captures the element's rendered bounding box.
func (c *rodCapturer) screenshotElement(ctx context.Context, el *rod.Element) ([]byte, error) {
	shotCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := el.Context(shotCtx).Screenshot(c.format, c.quality)
	if err != nil {
		return nil, captureError(ctx, err)
	}
	return data, nil
}

// screenshotViewport captures the configured viewport only.
func (c *rodCapturer) screenshotViewport(ctx context.Context, page *rod.Page) ([]byte, error) {
	shotCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := &proto.PageCaptureScreenshot{Format: c.format}
	if c.format == proto.PageCaptureScreenshotFormatJpeg {
		q := c.quality
		req.Quality = &q
	}

	data, err := page.Context(shotCtx).Screenshot(false, req)
	if err != nil {
		return nil, captureError(ctx, err)
	}
	return data, nil
}

// navigationError classifies a navigation failure.
func navigationError(ctx, navCtx context.Context, err error) error {
	if ctx.Err() != nil {
		return canceled(ctx)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(navCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrNavigationTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrCapture, err)
}

// captureError wraps err as ErrCapture unless the run itself was canceled.
func captureError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return canceled(ctx)
	}
	return fmt.Errorf("%w: %v", ErrCapture, err)
}

// canceled returns the reason ctx was canceled. A run stopped by write
// escalation yields ErrWriteEscalated, so in-flight jobs report Skipped.
func canceled(ctx context.Context) error {
	if cause := context.Cause(ctx); cause != nil {
		return cause
	}
	return ctx.Err()
}
