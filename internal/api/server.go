package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Ambro19/pixelperfect-sub000/internal/metrics"
	"github.com/Ambro19/pixelperfect-sub000/internal/ratelimit"
	"github.com/Ambro19/pixelperfect-sub000/internal/screenshot"
	"github.com/Ambro19/pixelperfect-sub000/internal/service"
)

// Config carries the HTTP-layer knobs.
type Config struct {
	AuthEnabled    bool
	RequestTimeout time.Duration
	MaxBatchSize   int
	// LocalFilesDir, when set, is served under LocalFilesPrefix so URLs from
	// the local blob store resolve. Unused when storage is remote.
	LocalFilesDir    string
	LocalFilesPrefix string
}

func (c Config) withDefaults() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 120 * time.Second
	}
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = 50
	}
	if c.LocalFilesPrefix == "" {
		c.LocalFilesPrefix = "/files"
	}
	return c
}

// Server wires HTTP handlers to the screenshot service.
type Server struct {
	router  chi.Router
	svc     *service.Service
	users   screenshot.UserStore
	limiter *ratelimit.Limiter
	logger  *zap.Logger
	cfg     Config
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	svc *service.Service,
	users screenshot.UserStore,
	limiter *ratelimit.Limiter,
	logger *zap.Logger,
	cfg Config,
) *Server {
	s := &Server{
		svc:     svc,
		users:   users,
		limiter: limiter,
		logger:  logger,
		cfg:     cfg.withDefaults(),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metricsMiddleware)
	r.Use(timeoutMiddleware(s.cfg.RequestTimeout))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if s.cfg.LocalFilesDir != "" {
		files := http.StripPrefix(s.cfg.LocalFilesPrefix+"/", http.FileServer(http.Dir(s.cfg.LocalFilesDir)))
		r.Method(http.MethodGet, s.cfg.LocalFilesPrefix+"/*", files)
	}

	r.Route("/v1", func(r chi.Router) {
		if s.cfg.AuthEnabled {
			r.Use(s.authMiddleware)
		}
		r.Post("/capture", s.capture)
		r.Post("/capture/batch", s.captureBatch)
		r.Get("/usage", s.usage)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ready"})
}

type captureRequest struct {
	URL          string   `json:"url"`
	Width        int      `json:"width"`
	Height       int      `json:"height"`
	FullPage     bool     `json:"full_page"`
	Format       string   `json:"format"`
	Quality      int      `json:"quality"`
	DelaySecs    float64  `json:"delay"`
	DarkMode     bool     `json:"dark_mode"`
	HideElements []string `json:"hide_elements"`
}

func (r captureRequest) toDomain() screenshot.CaptureRequest {
	format := screenshot.ImageFormat(r.Format)
	if r.Format == "" {
		format = screenshot.FormatPNG
	}
	return screenshot.CaptureRequest{
		URL:          r.URL,
		Width:        r.Width,
		Height:       r.Height,
		FullPage:     r.FullPage,
		Format:       format,
		Quality:      r.Quality,
		DelaySecs:    r.DelaySecs,
		DarkMode:     r.DarkMode,
		HideElements: r.HideElements,
	}
}

type batchRequest struct {
	Requests []captureRequest `json:"requests"`
}

type batchItemResponse struct {
	Index  int                       `json:"index"`
	Result *screenshot.CaptureResult `json:"result,omitempty"`
	Error  string                    `json:"error,omitempty"`
}

func (s *Server) capture(w http.ResponseWriter, r *http.Request) {
	user, ok := s.callerFrom(r)
	if !ok {
		writeError(s.logger, w, http.StatusUnauthorized, "unknown API key")
		return
	}

	var req captureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
		return
	}

	result, err := s.svc.Capture(r.Context(), user.ID, req.toDomain())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	if r.URL.Query().Get("inline") == "1" {
		w.Header().Set("Content-Type", result.ContentType)
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(result.Data); err != nil {
			s.logger.Error("write image failed", zap.Error(err))
		}
		return
	}
	writeJSON(s.logger, w, http.StatusOK, result)
}

func (s *Server) captureBatch(w http.ResponseWriter, r *http.Request) {
	user, ok := s.callerFrom(r)
	if !ok {
		writeError(s.logger, w, http.StatusUnauthorized, "unknown API key")
		return
	}

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(s.logger, w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Requests) == 0 {
		writeError(s.logger, w, http.StatusBadRequest, "requests must not be empty")
		return
	}
	if len(req.Requests) > s.cfg.MaxBatchSize {
		writeError(s.logger, w, http.StatusBadRequest, "batch too large")
		return
	}

	reqs := make([]screenshot.CaptureRequest, len(req.Requests))
	for i, item := range req.Requests {
		reqs[i] = item.toDomain()
	}

	items, err := s.svc.CaptureBatch(r.Context(), user.ID, reqs)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	resp := make([]batchItemResponse, len(items))
	for i, item := range items {
		entry := batchItemResponse{Index: item.Index}
		if item.Err != nil {
			entry.Error = item.Err.Error()
		} else {
			entry.Result = item.Result
		}
		resp[i] = entry
	}
	writeJSON(s.logger, w, http.StatusOK, map[string]any{"items": resp})
}

func (s *Server) usage(w http.ResponseWriter, r *http.Request) {
	user, ok := s.callerFrom(r)
	if !ok {
		writeError(s.logger, w, http.StatusUnauthorized, "unknown API key")
		return
	}

	report, err := s.svc.CurrentUsage(r.Context(), user.ID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(s.logger, w, http.StatusOK, report)
}

// writeDomainError translates the domain error taxonomy onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, screenshot.ErrInvalidRequest):
		writeError(s.logger, w, http.StatusBadRequest, err.Error())
	case errors.Is(err, screenshot.ErrQuotaExceeded):
		writeError(s.logger, w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, screenshot.ErrCapacityExceeded):
		writeError(s.logger, w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, screenshot.ErrNavigationTimeout):
		writeError(s.logger, w, http.StatusGatewayTimeout, err.Error())
	case errors.Is(err, screenshot.ErrRender), errors.Is(err, screenshot.ErrStorage), errors.Is(err, screenshot.ErrLaunch):
		writeError(s.logger, w, http.StatusBadGateway, err.Error())
	case errors.Is(err, screenshot.ErrUserNotFound):
		writeError(s.logger, w, http.StatusUnauthorized, "unknown user")
	default:
		s.logger.Error("unhandled service error", zap.Error(err))
		writeError(s.logger, w, http.StatusInternalServerError, "internal server error")
	}
}

type callerKey struct{}

// authMiddleware resolves the API key to a user and applies the per-user rate
// limit. The resolved user rides the request context so handlers never touch
// the key again.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}
		if key == "" {
			writeError(s.logger, w, http.StatusUnauthorized, "missing API key")
			return
		}
		user, err := s.users.GetUserByAPIKey(r.Context(), key)
		if err != nil {
			writeError(s.logger, w, http.StatusUnauthorized, "unknown API key")
			return
		}
		if s.limiter != nil && !s.limiter.Allow(user.ID) {
			writeError(s.logger, w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		ctx := contextWithCaller(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) callerFrom(r *http.Request) (screenshot.User, bool) {
	if !s.cfg.AuthEnabled {
		// Dev mode: a fixed identity keeps quota accounting coherent.
		return screenshot.User{ID: "dev"}, true
	}
	user, ok := r.Context().Value(callerKey{}).(screenshot.User)
	return user, ok
}

func contextWithCaller(ctx context.Context, user screenshot.User) context.Context {
	return context.WithValue(ctx, callerKey{}, user)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(s.logger, w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = "unknown"
		}
		metrics.ObserveHTTPRequest(r.Method, routePattern, ww.status, time.Since(start))
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func writeJSON(logger *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(logger *zap.Logger, w http.ResponseWriter, status int, msg string) {
	writeJSON(logger, w, status, map[string]string{"error": msg})
}
