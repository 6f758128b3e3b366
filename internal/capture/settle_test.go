package capture

import (
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettleRequiresLoadEvent(t *testing.T) {
	t.Parallel()

	n := newNetworkSettle(time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	assert.False(t, n.settled(), "must not settle before the load event")

	n.observe(&page.EventLoadEventFired{})
	require.Eventually(t, n.settled, time.Second, time.Millisecond)
}

func TestSettleWaitsForInflightRequests(t *testing.T) {
	t.Parallel()

	n := newNetworkSettle(time.Millisecond)
	n.observe(&page.EventLoadEventFired{})
	n.observe(&network.EventRequestWillBeSent{RequestID: "r1"})
	n.observe(&network.EventRequestWillBeSent{RequestID: "r2"})

	time.Sleep(5 * time.Millisecond)
	assert.False(t, n.settled(), "in-flight requests must block settling")

	n.observe(&network.EventLoadingFinished{RequestID: "r1"})
	time.Sleep(5 * time.Millisecond)
	assert.False(t, n.settled(), "one request still in flight")

	n.observe(&network.EventLoadingFailed{RequestID: "r2"})
	require.Eventually(t, n.settled, time.Second, time.Millisecond)
}

func TestSettleQuietWindowResetsOnActivity(t *testing.T) {
	t.Parallel()

	n := newNetworkSettle(50 * time.Millisecond)
	n.observe(&page.EventLoadEventFired{})

	// Fresh activity keeps pushing the quiet window out.
	n.observe(&network.EventRequestWillBeSent{RequestID: "late"})
	n.observe(&network.EventLoadingFinished{RequestID: "late"})
	assert.False(t, n.settled())

	require.Eventually(t, n.settled, time.Second, 5*time.Millisecond)
}
