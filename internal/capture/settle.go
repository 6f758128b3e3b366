package capture

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// networkSettle tracks in-flight document requests so navigation completion
// can be defined as "no network activity for a quiet window" rather than the
// load event alone.
type networkSettle struct {
	quiet time.Duration

	mu           sync.Mutex
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
	loaded       bool
}

func newNetworkSettle(quiet time.Duration) *networkSettle {
	return &networkSettle{
		quiet:        quiet,
		inflight:     make(map[network.RequestID]struct{}),
		lastActivity: time.Now(),
	}
}

func (n *networkSettle) observe(ev any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		n.inflight[e.RequestID] = struct{}{}
		n.lastActivity = time.Now()
	case *network.EventLoadingFinished:
		delete(n.inflight, e.RequestID)
		n.lastActivity = time.Now()
	case *network.EventLoadingFailed:
		delete(n.inflight, e.RequestID)
		n.lastActivity = time.Now()
	case *page.EventLoadEventFired:
		n.loaded = true
		n.lastActivity = time.Now()
	}
}

func (n *networkSettle) settled() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.loaded && len(n.inflight) == 0 && time.Since(n.lastActivity) >= n.quiet
}

// waitAction blocks until the network has settled or the context expires.
// The network domain must already be enabled when navigation begins.
func (n *networkSettle) waitAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if n.settled() {
					return nil
				}
			}
		}
	})
}
