package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"margin_maker/internal/core"
	"margin_maker/internal/infrastructure/health"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exports Prometheus metrics on /metrics and component health on /health
type Server struct {
	port   int
	logger core.ILogger
	health *health.HealthManager
	srv    *http.Server
}

// NewServer creates a new metrics server. hm may be nil.
func NewServer(port int, hm *health.HealthManager, logger core.ILogger) *Server {
	return &Server{
		port:   port,
		health: hm,
		logger: logger.WithField("component", "metrics_server"),
	}
}

// Handler builds the server's routes
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", s.handleHealth)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := health.Report{Healthy: true, CheckedAt: time.Now()}
	if s.health != nil {
		report = s.health.Check()
	}

	w.Header().Set("Content-Type", "application/json")
	if !report.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(report)
}

// Run serves until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting Prometheus metrics server", "port", s.port)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("metrics server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Stopping metrics server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
