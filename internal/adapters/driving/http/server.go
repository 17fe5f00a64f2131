package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Pulkit07/metric-health-backend/internal/core/domain"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driven"
	"github.com/Pulkit07/metric-health-backend/internal/core/ports/driving"
)

// Pinger is a simple health check interface
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	maxUpload  int64
	runtime    *domain.RuntimeConfig
	logger     *slog.Logger

	// Services
	ingestion   driving.IngestionService
	connections driving.ConnectionService

	// Infrastructure
	taskQueue driven.TaskQueue
	auth      driven.AuthAdapter
	db        Pinger // PostgreSQL health check
	redis     Pinger // Redis health check (optional)
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// MaxUploadBytes caps device upload bodies
	MaxUploadBytes int64
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		MaxUploadBytes: 10 << 20,
	}
}

// Deps carries the services and infrastructure the server routes to.
// DB and Redis may be nil.
type Deps struct {
	Ingestion   driving.IngestionService
	Connections driving.ConnectionService
	TaskQueue   driven.TaskQueue
	Auth        driven.AuthAdapter
	DB          Pinger
	Redis       Pinger
	Runtime     *domain.RuntimeConfig // optional, reported by /version
	Logger      *slog.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, deps Deps) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		router:      http.NewServeMux(),
		version:     cfg.Version,
		maxUpload:   cfg.MaxUploadBytes,
		runtime:     deps.Runtime,
		logger:      logger,
		ingestion:   deps.Ingestion,
		connections: deps.Connections,
		taskQueue:   deps.TaskQueue,
		auth:        deps.Auth,
		db:          deps.DB,
		redis:       deps.Redis,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// Handler returns the router wrapped in recovery and request logging
func (s *Server) Handler() http.Handler {
	return NewRecoveryMiddleware(s.logger).Handler(
		NewLoggingMiddleware(s.logger).Handler(s.router))
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.auth)

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Device uploads, authenticated by the account key
	s.router.HandleFunc("POST /v1/healthkit/upload", s.handleHealthKitUpload)

	// Provider push endpoints, authenticated by verify token or signature
	s.router.HandleFunc("GET /v1/strava/webhook", s.handleStravaVerify)
	s.router.HandleFunc("POST /v1/strava/webhook", s.handleStravaEvent)
	s.router.HandleFunc("GET /v1/fitbit/webhook", s.handleFitbitVerify)
	s.router.HandleFunc("POST /v1/fitbit/webhook", s.handleFitbitNotification)

	// Admin triggers
	s.router.Handle("POST /v1/admin/sync/{provider}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleTriggerProviderSync)))
	s.router.Handle("POST /v1/admin/links/{id}/sync",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleTriggerLinkSync)))
	s.router.Handle("POST /v1/admin/replay",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleTriggerReplay)))
	s.router.Handle("POST /v1/admin/purge",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleTriggerPurge)))
	s.router.Handle("GET /v1/admin/queue",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleQueueStats)))
	s.router.Handle("GET /v1/admin/tasks/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleGetTask)))

	// Admin link management
	s.router.Handle("POST /v1/admin/links",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleConnect)))
	s.router.Handle("GET /v1/admin/links/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleLinkStatus)))
	s.router.Handle("DELETE /v1/admin/links/{id}",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleDisconnect)))
}

// Start starts the HTTP server with graceful shutdown
func (s *Server) Start() error {
	// Channel to listen for OS signals
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
