// Package capture executes a single screenshot request end-to-end against
// the shared browser pool.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/Ambro19/pixelperfect-sub000/internal/browser"
	"github.com/Ambro19/pixelperfect-sub000/internal/screenshot"
)

// Config controls pipeline behavior.
type Config struct {
	// NavigationTimeout bounds the whole navigate-and-settle phase.
	NavigationTimeout time.Duration
	// QuietWindow is how long the network must stay idle before navigation
	// counts as settled.
	QuietWindow time.Duration
	// MaxDelay bounds the client-requested pre-capture delay.
	MaxDelay time.Duration
	// MaxViewport bounds requested viewport dimensions.
	MaxViewport int
}

func (c Config) withDefaults() Config {
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 30 * time.Second
	}
	if c.QuietWindow <= 0 {
		c.QuietWindow = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 10 * time.Second
	}
	if c.MaxViewport <= 0 {
		c.MaxViewport = 7680
	}
	return c
}

// Pipeline turns one validated CaptureRequest into raw image bytes.
type Pipeline struct {
	pool   *browser.Pool
	cfg    Config
	logger *zap.Logger
}

// New constructs a Pipeline on top of the shared session pool.
func New(pool *browser.Pool, cfg Config, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		pool:   pool,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// Validate enforces semantic option pairings before any browser resource is
// touched. URL well-formedness is the caller's responsibility.
func (p *Pipeline) Validate(req screenshot.CaptureRequest) error {
	if !req.Format.Valid() {
		return fmt.Errorf("%w: unsupported format %q", screenshot.ErrInvalidRequest, req.Format)
	}
	if req.Format == screenshot.FormatJPEG {
		// Quality is mandatory for jpeg; zero would hand Chrome a maximally
		// degraded encode.
		if req.Quality < 1 || req.Quality > 100 {
			return fmt.Errorf("%w: jpeg quality %d out of range [1,100]", screenshot.ErrInvalidRequest, req.Quality)
		}
	} else if req.Quality != 0 {
		return fmt.Errorf("%w: quality only applies to jpeg output", screenshot.ErrInvalidRequest)
	}
	if req.Width <= 0 || req.Height <= 0 {
		return fmt.Errorf("%w: viewport %dx%d", screenshot.ErrInvalidRequest, req.Width, req.Height)
	}
	if req.Width > p.cfg.MaxViewport || req.Height > p.cfg.MaxViewport {
		return fmt.Errorf("%w: viewport %dx%d exceeds maximum %d", screenshot.ErrInvalidRequest, req.Width, req.Height, p.cfg.MaxViewport)
	}
	if req.DelaySecs < 0 || time.Duration(req.DelaySecs*float64(time.Second)) > p.cfg.MaxDelay {
		return fmt.Errorf("%w: delay %.1fs out of range", screenshot.ErrInvalidRequest, req.DelaySecs)
	}
	for _, sel := range req.HideElements {
		if strings.TrimSpace(sel) == "" {
			return fmt.Errorf("%w: empty selector", screenshot.ErrInvalidRequest)
		}
	}
	return nil
}

// Capture runs the full sequence: session acquire, navigate, DOM cleanup,
// delay, screenshot. The session is released on every exit path. No retries
// happen here; retry policy belongs to the caller.
func (p *Pipeline) Capture(ctx context.Context, req screenshot.CaptureRequest) (screenshot.CaptureResult, error) {
	if err := p.Validate(req); err != nil {
		return screenshot.CaptureResult{}, err
	}

	session, err := p.pool.NewSession(ctx, req.Width, req.Height, req.DarkMode)
	if err != nil {
		return screenshot.CaptureResult{}, err
	}
	defer session.Close()

	start := time.Now()
	data, err := p.run(ctx, session, req)
	if err != nil {
		return screenshot.CaptureResult{}, err
	}
	if len(data) == 0 {
		return screenshot.CaptureResult{}, fmt.Errorf("%w: empty screenshot payload", screenshot.ErrRender)
	}

	return screenshot.CaptureResult{
		Data:        data,
		ContentType: req.Format.ContentType(),
		ByteSize:    len(data),
		Duration:    time.Since(start),
	}, nil
}

func (p *Pipeline) run(reqCtx context.Context, session *browser.Session, req screenshot.CaptureRequest) ([]byte, error) {
	navCtx, cancelNav := context.WithTimeout(session.Context(), p.cfg.NavigationTimeout)
	defer cancelNav()

	// Client disconnects abort the tab at the next suspension point.
	stopForward := forwardCancel(reqCtx, cancelNav)
	defer stopForward()

	settle := newNetworkSettle(p.cfg.QuietWindow)
	chromedp.ListenTarget(navCtx, settle.observe)

	if err := chromedp.Run(navCtx,
		network.Enable(),
		chromedp.Navigate(req.URL),
		settle.waitAction(),
	); err != nil {
		if errors.Is(navCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s did not settle within %s", screenshot.ErrNavigationTimeout, req.URL, p.cfg.NavigationTimeout)
		}
		return nil, fmt.Errorf("navigate %s: %w", req.URL, err)
	}

	if err := p.removeElements(session.Context(), req.HideElements); err != nil {
		return nil, err
	}

	if req.DelaySecs > 0 {
		delay := time.Duration(req.DelaySecs * float64(time.Second))
		if err := chromedp.Run(session.Context(), chromedp.Sleep(delay)); err != nil {
			return nil, fmt.Errorf("capture delay: %w", err)
		}
	}

	var data []byte
	shoot := chromedp.ActionFunc(func(ctx context.Context) error {
		params := page.CaptureScreenshot().
			WithFormat(page.CaptureScreenshotFormat(req.Format)).
			WithCaptureBeyondViewport(req.FullPage).
			WithFromSurface(true)
		if req.Format == screenshot.FormatJPEG {
			params = params.WithQuality(int64(req.Quality))
		}
		buf, err := params.Do(ctx)
		if err != nil {
			return err
		}
		data = buf
		return nil
	})
	if err := chromedp.Run(session.Context(), shoot); err != nil {
		return nil, fmt.Errorf("%w: %v", screenshot.ErrRender, err)
	}
	return data, nil
}

// removeElements deletes every DOM node matching each selector. A selector
// matching nothing is fine; a syntactically invalid one is rejected.
func (p *Pipeline) removeElements(ctx context.Context, selectors []string) error {
	for _, sel := range selectors {
		script := fmt.Sprintf(`document.querySelectorAll(%q).forEach((el) => el.remove())`, sel)
		if err := chromedp.Run(ctx, chromedp.Evaluate(script, nil)); err != nil {
			return fmt.Errorf("%w: selector %q: %v", screenshot.ErrInvalidRequest, sel, err)
		}
	}
	return nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
