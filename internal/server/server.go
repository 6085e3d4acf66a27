// Package server exposes a generated snapshot to the dashboard over a
// read-only JSON API.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"

	"phdash/internal/config"
	"phdash/internal/core"
	"phdash/internal/store"
)

// SnapshotReader reads the artifacts of a generation run. Every call goes to
// disk so that a regenerated snapshot is served without a restart.
type SnapshotReader interface {
	Dir() string
	LoadPHData() (*core.PHData, error)
	LoadPointCloud() (*core.PointCloud, error)
	LoadBaseConfig() (map[string]any, error)
	LoadDistanceMatrix(metric string) (*mat.Dense, error)
	LoadProjection(kind core.ProjectionKind) (*mat.Dense, error)
	LoadManifest() (*store.Manifest, error)
}

// Server represents the HTTP server
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	store      SnapshotReader
	config     config.Server
	log        zerolog.Logger
}

// New creates a new HTTP server instance
func New(st SnapshotReader, cfg config.Server, log zerolog.Logger) *Server {
	s := &Server{
		router: chi.NewRouter(),
		store:  st,
		config: cfg,
		log:    log,
	}

	// Setup middleware
	s.setupMiddleware()

	// Setup routes
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)

	// Structured request logging
	for _, mw := range s.loggingMiddleware() {
		s.router.Use(mw)
	}

	s.router.Use(middleware.Recoverer)
	if s.config.WriteTimeout > 0 {
		s.router.Use(middleware.Timeout(s.config.WriteTimeout))
	}

	// The dashboard is served from a single origin and sends credentials
	if s.config.CORSOrigin != "" {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{s.config.CORSOrigin},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

// setupRoutes configures routes for the server
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleRoot)
	s.router.Get("/health", s.handleHealth)

	s.router.Get("/config", s.handleConfig)
	s.router.Get("/manifest", s.handleManifest)

	s.router.Get("/data/{metric}", s.handleData)
	s.router.Get("/cluster_data/{metric}", s.handleClusterData)
	s.router.Get("/distance_matrix/{metric}", s.handleDistanceMatrix)

	for _, kind := range core.ProjectionKinds() {
		s.router.Get("/"+string(kind), s.handleProjection(kind))
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().
		Str("addr", s.httpServer.Addr).
		Str("data_dir", s.store.Dir()).
		Dur("read_timeout", s.config.ReadTimeout).
		Dur("write_timeout", s.config.WriteTimeout).
		Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed to start: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server gracefully...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.log.Info().Msg("HTTP server stopped")
	return nil
}

// Router returns the chi router instance (useful for testing)
func (s *Server) Router() *chi.Mux {
	return s.router
}
