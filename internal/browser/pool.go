// Package browser owns the shared headless Chrome process and issues
// isolated per-request browsing sessions from it.
package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/Ambro19/pixelperfect-sub000/internal/metrics"
	"github.com/Ambro19/pixelperfect-sub000/internal/screenshot"
)

// Config controls the behavior of the session pool.
type Config struct {
	// MaxSessions caps the number of concurrently open browsing sessions.
	// Requests beyond the cap are rejected, not queued.
	MaxSessions int
	UserAgent   string
}

// Pool manages a single long-lived headless Chrome process for the service's
// lifetime. Sessions are cheap tab contexts created per request; the browser
// process itself is the singleton bottleneck resource.
type Pool struct {
	cfg    Config
	logger *zap.Logger
	sem    chan struct{}

	mu            sync.Mutex
	started       bool
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// New creates a Pool. The browser process is not launched until Start or the
// first NewSession call.
func New(cfg Config, logger *zap.Logger) *Pool {
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = 4
	}
	return &Pool{
		cfg:    cfg,
		logger: logger,
		sem:    make(chan struct{}, cfg.MaxSessions),
	}
}

// Start launches the browser process. Calling Start while already running is
// a no-op. The sandbox is disabled for containerized deployments.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startLocked(ctx)
}

func (p *Pool) startLocked(_ context.Context) error {
	if p.started {
		return nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if p.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(p.cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("%w: chromedp warmup: %v", screenshot.ErrLaunch, err)
	}

	p.allocCancel = allocCancel
	p.browserCtx = browserCtx
	p.browserCancel = browserCancel
	p.started = true
	p.logger.Info("browser process started", zap.Int("max_sessions", p.cfg.MaxSessions))
	return nil
}

// Stop closes outstanding sessions and the browser process. Safe to call
// before Start and safe to call twice.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.browserCancel()
	p.allocCancel()
	p.started = false
	p.logger.Info("browser process stopped")
}

// NewSession returns an isolated browsing session sized to the requested
// viewport. The pool lazily starts the browser on first use. When all
// session slots are in flight the call fails with ErrCapacityExceeded.
func (p *Pool) NewSession(ctx context.Context, width, height int, darkMode bool) (*Session, error) {
	p.mu.Lock()
	if err := p.startLocked(ctx); err != nil {
		p.mu.Unlock()
		return nil, err
	}
	browserCtx := p.browserCtx
	p.mu.Unlock()

	select {
	case p.sem <- struct{}{}:
	default:
		return nil, fmt.Errorf("%w: %d sessions in flight", screenshot.ErrCapacityExceeded, cap(p.sem))
	}

	tabCtx, tabCancel := chromedp.NewContext(browserCtx)
	metrics.IncActiveSessions()
	s := &Session{
		ctx:    tabCtx,
		cancel: tabCancel,
		release: func() {
			metrics.DecActiveSessions()
			select {
			case <-p.sem:
			default:
			}
		},
	}

	if err := chromedp.Run(tabCtx, viewportActions(width, height, darkMode)...); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: session setup: %v", screenshot.ErrLaunch, err)
	}
	return s, nil
}

func viewportActions(width, height int, darkMode bool) []chromedp.Action {
	scheme := "light"
	if darkMode {
		scheme = "dark"
	}
	return []chromedp.Action{
		chromedp.EmulateViewport(int64(width), int64(height)),
		emulation.SetEmulatedMedia().WithFeatures([]*emulation.MediaFeature{
			{Name: "prefers-color-scheme", Value: scheme},
		}),
	}
}

// Session is an isolated tab context with its own viewport and cookies.
// Sessions are never shared across requests.
type Session struct {
	ctx     context.Context
	cancel  context.CancelFunc
	release func()
	once    sync.Once
}

// Context returns the chromedp tab context for running actions.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Close tears down the tab and releases the pool slot. Safe to call twice.
func (s *Session) Close() {
	s.once.Do(func() {
		s.cancel()
		s.release()
	})
}
