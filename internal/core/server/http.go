// Package server provides HTTP server lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kidase-app/kidase-rules/internal/core/api"
	"github.com/kidase-app/kidase-rules/internal/core/config"
)

// HTTPServer manages the API server lifecycle.
type HTTPServer struct {
	server *http.Server
	config *config.Config
}

// NewHTTPServer creates the server with the service's router mounted.
func NewHTTPServer(cfg *config.Config, service *api.Service) (*HTTPServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           service.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &HTTPServer{server: server, config: cfg}, nil
}

// Start serves requests until Shutdown is called.
func (s *HTTPServer) Start(ctx context.Context) error {
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests with a 30-second ceiling.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
