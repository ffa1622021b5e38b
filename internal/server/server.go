// Package server exposes the access layer over HTTP: the browser-facing
// /cache endpoint plus health and metrics routes.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/LavishGent/catalogfetch/internal/config"
	"github.com/LavishGent/catalogfetch/internal/types"
)

const defaultCacheMaxAge = time.Hour

// Fetcher is the part of the fetch facade the server needs. FetchShared
// keeps every cacheable response in the shared server tier.
type Fetcher interface {
	FetchShared(ctx context.Context, endpoint string, params types.Params, priority types.Priority) (json.RawMessage, error)
	Health(ctx context.Context) *types.HealthMetrics
}

// Server routes HTTP requests to a Fetcher.
type Server struct {
	cfg     config.ServerConfig
	fetcher Fetcher
	metrics http.Handler
	logger  *slog.Logger
	router  chi.Router
	http    *http.Server
}

// New builds the router. metricsHandler may be nil, in which case /metrics
// is not mounted.
func New(cfg config.ServerConfig, fetcher Fetcher, metricsHandler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CacheMaxAge <= 0 {
		cfg.CacheMaxAge = defaultCacheMaxAge
	}

	s := &Server{
		cfg:     cfg,
		fetcher: fetcher,
		metrics: metricsHandler,
		logger:  logger.With("component", "http-server"),
	}
	s.router = s.routes()
	s.http = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/cache", s.handleCache)
	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks serving on the configured address. It returns nil
// after Shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", "address", s.cfg.Address)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	endpoint := strings.TrimSpace(q.Get("endpoint"))
	if endpoint == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Missing endpoint parameter"})
		return
	}

	params, err := types.ParamsFromQuery(q, "endpoint", "priority")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	priority := types.ParsePriority(q.Get("priority"))

	payload, err := s.fetcher.FetchShared(ctx, endpoint, params, priority)
	if err != nil {
		s.writeFetchError(w, r, endpoint, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(s.cfg.CacheMaxAge.Seconds())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *Server) writeFetchError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	ctx := r.Context()

	switch {
	case errors.Is(err, types.ErrInvalidParams), errors.Is(err, types.ErrInvalidEndpoint):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	case ctx.Err() != nil:
		// Client went away; nobody reads the response.
		s.logger.DebugContext(ctx, "Client disconnected before fetch settled",
			"request_id", middleware.GetReqID(ctx),
			"endpoint", endpoint,
		)
		return
	case errors.Is(err, types.ErrQueueFull), errors.Is(err, types.ErrClosed):
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "Service busy", Details: err.Error()})
		return
	}

	s.logger.ErrorContext(ctx, "Fetch failed",
		"request_id", middleware.GetReqID(ctx),
		"endpoint", endpoint,
		"error", err,
	)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to fetch data", Details: err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	h := s.fetcher.Health(r.Context())
	status := http.StatusOK
	if h.Status == types.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
