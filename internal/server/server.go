// Package server provides the HTTP server and routing for FolioSync.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/foliolabs/foliosync/internal/events"
	"github.com/foliolabs/foliosync/internal/orchestrator"
	"github.com/foliolabs/foliosync/internal/registry"
)

// Config holds server configuration
type Config struct {
	Port         int
	Log          zerolog.Logger
	Registry     *registry.Registry
	Orchestrator *orchestrator.Orchestrator
	Events       *events.Manager
	DevMode      bool
}

// Server represents the HTTP server
type Server struct {
	router   *chi.Mux
	server   *http.Server
	log      zerolog.Logger
	handlers *Handlers
	system   *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		log:      cfg.Log.With().Str("component", "server").Logger(),
		handlers: NewHandlers(cfg.Registry, cfg.Orchestrator, cfg.Events, cfg.Log),
		system:   NewSystemHandlers(cfg.Log),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Route("/connections", func(r chi.Router) {
			r.Get("/", s.handlers.ListConnections)
			r.Post("/", s.handlers.AddConnection)
			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", s.handlers.RemoveConnection)
				r.Post("/connect", s.handlers.Connect)
				r.Post("/disconnect", s.handlers.Disconnect)
				r.Get("/capabilities", s.handlers.GetCapabilities)
				r.Get("/transactions", s.handlers.GetTransactions)
				r.Post("/import", s.handlers.ImportPortfolio)
				r.Put("/positions", s.handlers.UpsertPosition)
				r.Delete("/positions/{ticker}", s.handlers.RemovePosition)
				r.Put("/cash", s.handlers.SetCashBalances)
			})
		})

		r.Post("/sync", s.handlers.SyncAll)
		r.Post("/sync/{id}", s.handlers.SyncBroker)

		r.Get("/portfolio", s.handlers.GetAggregatedPortfolio)
		r.Get("/portfolio/{id}", s.handlers.GetCachedPortfolio)

		r.Get("/system/health", s.system.Health)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
