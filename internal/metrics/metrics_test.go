package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveCapture(t *testing.T) {
	Init()

	before := testutil.ToFloat64(capturesTotal.WithLabelValues("pro", "ok"))
	bytesBefore := testutil.ToFloat64(captureBytesTotal)

	ObserveCapture("pro", "ok", "png", 2*time.Second, 1024)
	ObserveCapture("pro", "error", "png", 0, 0)

	assert.Equal(t, before+1, testutil.ToFloat64(capturesTotal.WithLabelValues("pro", "ok")))
	assert.Equal(t, bytesBefore+1024, testutil.ToFloat64(captureBytesTotal),
		"failed captures must not count bytes")
}

func TestQuotaAndFallbackCounters(t *testing.T) {
	Init()

	denialsBefore := testutil.ToFloat64(quotaDeniedTotal.WithLabelValues("free", "screenshot"))
	fallbacksBefore := testutil.ToFloat64(storageFallbackTotal)

	IncQuotaDenied("free", "screenshot")
	IncStorageFallback()

	assert.Equal(t, denialsBefore+1, testutil.ToFloat64(quotaDeniedTotal.WithLabelValues("free", "screenshot")))
	assert.Equal(t, fallbacksBefore+1, testutil.ToFloat64(storageFallbackTotal))
}

func TestSessionGauge(t *testing.T) {
	Init()

	before := testutil.ToFloat64(browserSessionsActive)
	IncActiveSessions()
	IncActiveSessions()
	DecActiveSessions()
	assert.Equal(t, before+1, testutil.ToFloat64(browserSessionsActive))
	DecActiveSessions()
}

func TestInitIdempotent(t *testing.T) {
	Init()
	Init() // must not panic on duplicate registration
}
