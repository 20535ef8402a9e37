// Package http exposes the service's operational endpoints: health,
// readiness, Prometheus metrics, and an on-demand recommendation run.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/river-flood-recommender/internal/domain"
	"github.com/couchcryptid/river-flood-recommender/internal/recommender"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Runner executes one recommendation pass on demand.
type Runner interface {
	Recommend(ctx context.Context, opts recommender.RunOptions) ([]domain.HazardEvent, error)
}

// Server exposes health, readiness, metrics, and run-trigger HTTP endpoints.
type Server struct {
	httpServer *http.Server
	runner     Runner
	defaults   recommender.RunOptions
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// POST /run routes. The run endpoint executes a recommendation pass with the
// configured defaults, overridable per request.
func NewServer(addr string, ready ReadinessChecker, runner Runner, defaults recommender.RunOptions, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		runner:   runner,
		defaults: defaults,
		logger:   logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /run", s.handleRun)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// runRequest is the optional POST /run body.
type runRequest struct {
	ForecastConfidencePercentage *int  `json:"forecastConfidencePercentage"`
	IncludeNonFloodPoints        *bool `json:"includeNonFloodPoints"`
}

// runResponse is the POST /run reply.
type runResponse struct {
	Hazards []domain.HazardEvent `json:"hazards"`
	Count   int                  `json:"count"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	opts := s.defaults
	if r.ContentLength > 0 {
		var req runRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if req.ForecastConfidencePercentage != nil {
			opts.ForecastConfidencePercentage = *req.ForecastConfidencePercentage
		}
		if req.IncludeNonFloodPoints != nil {
			opts.IncludeNonFloodPoints = *req.IncludeNonFloodPoints
		}
	}
	if opts.ForecastConfidencePercentage < 0 || opts.ForecastConfidencePercentage > 100 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "forecastConfidencePercentage must be in 0-100",
		})
		return
	}

	hazards, err := s.runner.Recommend(r.Context(), opts)
	if err != nil {
		s.logger.Error("on-demand run failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, runResponse{Hazards: hazards, Count: len(hazards)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort health response
}
