// Package server implements the HTTP server for the resume queue service.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hirewire/resumeq/internal/config"
)

// Server wraps an HTTP server with graceful shutdown capabilities.
type Server struct {
	ctx    context.Context
	server *http.Server
	logger *slog.Logger
}

// NewServer creates a new HTTP server with the given configuration and
// handler dependencies.
func NewServer(ctx context.Context, cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	router := NewRouter(cfg, deps, logger)

	return &Server{
		ctx: ctx,
		server: &http.Server{
			Addr:    ":" + cfg.ServerPort,
			Handler: router,
			// WriteTimeout must outlast a blocking insert+process cycle,
			// which includes the webhook client's 5 minute deadline.
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 6 * time.Minute,
			IdleTimeout:  120 * time.Second,
		},
		logger: logger,
	}
}

// Start starts the HTTP server and blocks until shutdown or error.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "address", s.server.Addr)

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the server with a 30-second timeout.
func (s *Server) Stop() error {
	s.logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}
