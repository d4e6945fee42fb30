// Package core provides the API chassis for the crop radar service.
// It creates a chi router and enforces cross-cutting concerns (request ids,
// logging, metrics, error rendering) before requests reach the outbreak
// handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"cropradar/internal/config"
)

// MetricsCollector defines the interface for recording API telemetry.
type MetricsCollector interface {
	// RecordRequest records one served request. endpoint is the chi route
	// pattern, not the raw path, to keep label cardinality bounded.
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// RouteRegistrar mounts a group of handlers onto the /v1 router.
type RouteRegistrar func(r chi.Router)

// Server encapsulates all dependencies for the HTTP API, allowing for easy
// injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler

	// HealthProbes are executed by GET /health.
	HealthProbes []HealthProbe

	// V1RouteRegistrars are populated by the entry point before MountRoutes.
	// This indirection avoids import cycles between core and handler packages.
	V1RouteRegistrars []RouteRegistrar

	// Closers are released in order by Shutdown.
	Closers []func()

	router *chi.Mux
}

// NewServer validates the required dependencies and prepares the router.
// The caller mounts routes via MountRoutes after wiring the optional fields.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases server resources registered in Closers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown initiated")

	for _, closeFn := range s.Closers {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("shutdown interrupted: %w", err)
		}
		closeFn()
	}

	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
