package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"faultline-hq/faultline/pkg/config"
	"faultline-hq/faultline/pkg/history"
	"faultline-hq/faultline/pkg/inject"
)

// Server is the admin HTTP server for the fault injector.
type Server struct {
	config   *config.ServerConfig
	metrics  *config.MetricsConfig
	injector *inject.Injector
	store    history.Store
	gatherer prometheus.Gatherer
	logger   *slog.Logger

	httpServer   *http.Server
	shutdownChan chan struct{}
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
}

// Options configures optional server dependencies.
type Options struct {
	// Store serves the events endpoint. Nil disables it.
	Store history.Store

	// Gatherer serves the metrics endpoint. Nil disables it even when the
	// metrics config enables it.
	Gatherer prometheus.Gatherer

	// Metrics controls the metrics endpoint. Nil uses defaults.
	Metrics *config.MetricsConfig
}

// NewServer creates an admin server for inj.
func NewServer(cfg *config.ServerConfig, inj *inject.Injector, opts Options) *Server {
	metricsCfg := opts.Metrics
	if metricsCfg == nil {
		metricsCfg = &config.MetricsConfig{Enabled: true, Path: "/metrics"}
	}

	return &Server{
		config:       cfg,
		metrics:      metricsCfg,
		injector:     inj,
		store:        opts.Store,
		gatherer:     opts.Gatherer,
		logger:       slog.Default().With("component", "server"),
		shutdownChan: make(chan struct{}),
	}
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.isRunning = true
	s.mu.Unlock()

	s.httpServer = &http.Server{
		Addr:         s.config.ListenAddress,
		Handler:      s.setupRoutes(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting admin server", "address", s.config.ListenAddress)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	case <-s.shutdownChan:
		s.logger.Info("shutdown requested")
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		if !s.isRunning {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if s.httpServer != nil {
			if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
				s.logger.Error("error during server shutdown", "error", err)
				shutdownErr = fmt.Errorf("server shutdown error: %w", err)
			}
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("admin server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Handler returns the configured HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// setupRoutes configures the HTTP routes.
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/faults", s.handleFaults)
	mux.HandleFunc("/v1/blocked", s.handleBlocked)
	mux.HandleFunc("/v1/unblock", s.handleUnblock)
	mux.HandleFunc("/v1/unblock-all", s.handleUnblockAll)
	mux.HandleFunc("/healthz", s.handleHealth)

	if s.store != nil {
		mux.HandleFunc("/v1/events", s.handleEvents)
	}

	if s.metrics.Enabled && s.gatherer != nil {
		mux.Handle(s.metrics.Path, promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return mux
}
