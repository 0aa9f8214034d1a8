package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/internal/config"
	"github.com/petersalomonsen/near-treasury-bulk-payment-contract/pkg/logger"
)

// Server runs the REST API as a lifecycle-managed service.
type Server struct {
	srv *http.Server
	log *logger.Logger
}

// NewServer creates the HTTP server for the given handler.
func NewServer(cfg config.ServerConfig, log *logger.Logger, handler http.Handler) *Server {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Server{
		log: log,
		srv: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      handler,
			ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		},
	}
}

// Name implements system.Service.
func (s *Server) Name() string { return "httpapi" }

// Start begins serving in the background. Listen errors after startup are
// logged; the daemon keeps running so background services stay up.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		s.log.Infof("HTTP API listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("HTTP server error: %v", err)
		}
	}()
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
