// Package ops provides the operational HTTP surface of the scheduler service:
// a health endpoint for orchestration probes and an admin trigger for running
// a promotion lifecycle sweep on demand.
package ops

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// healthCheckTimeout bounds the database probe so a wedged pool cannot hang
// the orchestrator's liveness check.
const healthCheckTimeout = 2 * time.Second

// Pinger is the database liveness dependency, satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LifecycleRunner triggers one promotion lifecycle sweep outside the
// recurring schedule. Satisfied by *scheduler.PromoLifecycleService.
type LifecycleRunner interface {
	RunOnce(ctx context.Context) (int, error)
}

// Server is the ops HTTP server. It carries no domain state; every handler
// delegates to an injected dependency.
type Server struct {
	db        Pinger
	lifecycle LifecycleRunner
	logger    *slog.Logger
	router    *chi.Mux
}

// NewServer builds the ops server and mounts its routes.
func NewServer(db Pinger, lifecycle LifecycleRunner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		db:        db,
		lifecycle: lifecycle,
		logger:    logger,
		router:    chi.NewRouter(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Post("/admin/promotions/sweep", s.handleSweep)

	return s
}

// Handler returns the http.Handler for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// handleHealth reports process and database liveness. 200 when the pool
// answers a ping within the timeout, 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		s.logger.ErrorContext(r.Context(), "health check database ping failed",
			"error", err,
		)
		s.writeJSON(w, http.StatusServiceUnavailable, healthResponse{
			Status:   "unhealthy",
			Database: "unreachable",
		})
		return
	}

	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:   "healthy",
		Database: "ok",
	})
}

type sweepResponse struct {
	Updated int `json:"updated"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleSweep runs one promotion lifecycle sweep immediately and reports the
// number of rows flipped. The sweep is idempotent, so a repeated trigger is
// harmless.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	updated, err := s.lifecycle.RunOnce(r.Context())
	if err != nil {
		s.logger.ErrorContext(r.Context(), "manual lifecycle sweep failed",
			"updated", updated,
			"error", err,
		)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error: "lifecycle sweep failed",
		})
		return
	}

	s.logger.InfoContext(r.Context(), "manual lifecycle sweep complete",
		"updated", updated,
	)
	s.writeJSON(w, http.StatusOK, sweepResponse{Updated: updated})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to write response body", "error", err)
	}
}
