// Package server provides the HTTP server with graceful shutdown.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"streamgate/pkg/config"
	"streamgate/pkg/logging"
)

// Server wraps http.Server with lifecycle management.
type Server struct {
	httpServer *http.Server
	log        *logging.Logger
}

// New creates a server for the given handler.
func New(cfg *config.Config, handler http.Handler, log *logging.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log.WithComponent("server"),
	}
}

// Start begins listening. Blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info("server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight
// requests up to the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
