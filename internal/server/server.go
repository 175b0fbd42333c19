// Package server provides the HTTP server and routing for the Trend View console.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/quantlens/trendview/internal/backup"
	"github.com/quantlens/trendview/internal/clientdata"
	"github.com/quantlens/trendview/internal/control"
	"github.com/quantlens/trendview/internal/events"
	"github.com/quantlens/trendview/internal/prefs"
	"github.com/quantlens/trendview/internal/snapshot"
	"github.com/quantlens/trendview/internal/trendapi"
)

// Config holds server configuration
type Config struct {
	Log       zerolog.Logger
	Port      int
	DevMode   bool
	API       *trendapi.Client
	Runner    *control.Runner
	Repo      *clientdata.Repository
	Prefs     *prefs.Store
	Snapshots *snapshot.Store
	Bus       *events.Bus
	Backup    *backup.Service // nil when backups are not configured
}

// Server represents the HTTP server
type Server struct {
	router    *chi.Mux
	server    *http.Server
	log       zerolog.Logger
	api       *trendapi.Client
	runner    *control.Runner
	repo      *clientdata.Repository
	prefs     *prefs.Store
	snapshots *snapshot.Store
	bus       *events.Bus
	backup    *backup.Service
	startedAt time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "server").Logger(),
		api:       cfg.API,
		runner:    cfg.Runner,
		repo:      cfg.Repo,
		prefs:     cfg.Prefs,
		snapshots: cfg.Snapshots,
		bus:       cfg.Bus,
		backup:    cfg.Backup,
		startedAt: time.Now(),
	}

	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	s.setupRoutes()

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: s.router,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/events/stream", s.handleEventsStream)

		r.Route("/control", func(r chi.Router) {
			r.Get("/status", s.handleControlStatus)
			r.Get("/runs", s.handleRecentRuns)
			r.Post("/sync/{job}", s.handleTriggerSync)
			r.Post("/backup", s.handleTriggerBackup)
		})

		r.Get("/datasets/{name}", s.handleDataset)

		r.Route("/prefs", func(r chi.Router) {
			r.Get("/language", s.handleGetLanguage)
			r.Put("/language", s.handleSetLanguage)
		})

		r.Route("/snapshots", func(r chi.Router) {
			r.Get("/", s.handleListSnapshots)
			r.Post("/", s.handleAddSnapshot)
			r.Delete("/{id}", s.handleRemoveSnapshot)
		})

		r.Route("/analysis", func(r chi.Router) {
			r.Get("/trend", s.handleTrend)
			r.Get("/correlation", s.handleCorrelation)
		})

		r.Get("/system/status", s.handleSystemStatus)
	})
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins serving; blocks until the listener fails or Shutdown runs.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "trendview-console",
		"uptime":  time.Since(s.startedAt).String(),
	})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error body with the backend's detail convention
func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]interface{}{"detail": err.Error()})
}
