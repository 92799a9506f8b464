package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/systmms/keygate/internal/logging"
)

// ServerConfig holds the Prometheus listener settings.
type ServerConfig struct {
	Enabled bool
	Port    int
	Path    string
}

// Server serves the Prometheus scrape endpoint on its own listener, separate
// from the API port.
type Server struct {
	config ServerConfig
	logger *logging.Logger
	server *http.Server
}

// NewServer creates a metrics server. Start is a no-op when disabled.
func NewServer(config ServerConfig, logger *logging.Logger) *Server {
	if config.Path == "" {
		config.Path = "/metrics"
	}
	return &Server{config: config, logger: logger}
}

// Start registers the keygate metrics and begins serving scrapes.
func (s *Server) Start() error {
	if !s.config.Enabled {
		return nil
	}

	Init()

	mux := http.NewServeMux()
	mux.Handle(s.config.Path, promhttp.Handler())

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			// Metrics are non-critical; log and keep the service up.
			s.logger.Error("metrics server error: %v", err)
		}
	}()

	s.logger.Info("serving metrics on :%d%s", s.config.Port, s.config.Path)
	return nil
}

// Stop gracefully shuts down the metrics listener.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
