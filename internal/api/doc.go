// Package api hosts the HTTP server, middleware, and REST handlers. Notable
// routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/capture and /v1/capture/batch for screenshot requests.
//   - GET /v1/usage for the caller's current-period consumption.
package api
