// Package metrics exposes Prometheus collectors for the screenshot service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	capturesTotal              *prometheus.CounterVec
	captureDurationSeconds     *prometheus.HistogramVec
	captureBytesTotal          prometheus.Counter
	storageFallbackTotal       prometheus.Counter
	quotaDeniedTotal           *prometheus.CounterVec
	browserSessionsActive      prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		capturesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screenshot_captures_total",
				Help: "Total captures attempted, labeled by tier and outcome.",
			},
			[]string{"tier", "status"},
		)

		captureDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "screenshot_capture_duration_seconds",
				Help:    "Histogram of end-to-end capture latency, labeled by format.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30},
			},
			[]string{"format"},
		)

		captureBytesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "screenshot_capture_bytes_total",
				Help: "Total bytes of image data produced.",
			},
		)

		storageFallbackTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "screenshot_storage_fallback_total",
				Help: "Times a remote storage put degraded to the local disk.",
			},
		)

		quotaDeniedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screenshot_quota_denied_total",
				Help: "Admission denials by the quota ledger, labeled by tier and operation.",
			},
			[]string{"tier", "operation"},
		)

		browserSessionsActive = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "screenshot_browser_sessions_active",
				Help: "Browsing sessions currently open against the shared browser.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCapture records one capture attempt and, for successes, its latency
// and payload size.
func ObserveCapture(tier, status, format string, duration time.Duration, bytes int) {
	capturesTotal.WithLabelValues(tier, status).Inc()
	if status == "ok" {
		captureDurationSeconds.WithLabelValues(format).Observe(duration.Seconds())
		captureBytesTotal.Add(float64(bytes))
	}
}

// IncStorageFallback counts a remote-to-local storage degradation.
func IncStorageFallback() {
	storageFallbackTotal.Inc()
}

// IncQuotaDenied counts a quota admission denial.
func IncQuotaDenied(tier, operation string) {
	quotaDeniedTotal.WithLabelValues(tier, operation).Inc()
}

// IncActiveSessions increments the active browser session gauge.
func IncActiveSessions() {
	browserSessionsActive.Inc()
}

// DecActiveSessions decrements the active browser session gauge.
func DecActiveSessions() {
	browserSessionsActive.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
