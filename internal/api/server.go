// Package api wires the HTTP routes of the settle-up gateway.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mmynk/settleup/internal/api/handlers"
	"github.com/mmynk/settleup/internal/metrics"
	"github.com/mmynk/settleup/internal/middleware"
	"github.com/mmynk/settleup/internal/service"
)

// Config holds API server configuration.
type Config struct {
	Addr           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// DefaultConfig returns sensible defaults for the API server.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   30 * time.Second,
	}
}

// Server is the HTTP API server.
type Server struct {
	config     Config
	router     chi.Router
	httpServer *http.Server
	logger     *slog.Logger
	svc        *service.BalanceService
	upstream   handlers.BreakerStater
	metrics    *metrics.Metrics
}

// NewServer creates a new API server. upstream and m may be nil.
func NewServer(cfg Config, svc *service.BalanceService, upstream handlers.BreakerStater, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config:   cfg,
		router:   chi.NewRouter(),
		logger:   logger,
		svc:      svc,
		upstream: upstream,
		metrics:  m,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures global middleware.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.Recoverer)

	cors := middleware.DefaultCORSConfig()
	if len(s.config.AllowedOrigins) > 0 {
		cors.AllowedOrigins = s.config.AllowedOrigins
	}
	cors.ExposedHeaders = []string{handlers.HeaderStale, handlers.HeaderFetchedAt, handlers.HeaderRejected}
	s.router.Use(middleware.CORS(cors))

	s.router.Use(middleware.Logging(s.logger))
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health check and metrics (no /api prefix)
	s.router.Get("/health", handlers.NewHealthHandler(s.upstream).ServeHTTP)
	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		balances := handlers.NewBalancesHandler(s.svc, s.logger)
		r.Get("/balances", balances.Balances)
		r.Get("/settlement-suggestions", balances.Suggestions)

		records := handlers.NewRecordsHandler(s.svc, s.logger)
		r.Get("/expenses", records.Expenses)
		r.Get("/settlements", records.Settlements)

		recompute := handlers.NewRecomputeHandler(s.svc, s.logger)
		r.Post("/recompute", recompute.Recompute)

		consistency := handlers.NewConsistencyHandler(s.svc, s.logger)
		r.Get("/consistency", consistency.Check)
	})
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.logger.Info("Starting API server", "addr", s.config.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}
