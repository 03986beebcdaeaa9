// Package graceful runs the observability HTTP server with clean shutdown.
package graceful

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m-orlov/tgsentinel/internal/health"
	"github.com/m-orlov/tgsentinel/pkg/config"
)

const defaultShutdownTimeout = 5 * time.Second

// Server wraps http.Server with context-driven graceful shutdown.
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	log             *slog.Logger
}

// NewObservability builds the server exposing Prometheus metrics on
// /metrics and the aggregated health report on /healthz.
func NewObservability(cfg config.MetricsConfig, checker *health.Checker, log *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if checker != nil {
		mux.HandleFunc("/healthz", checker.Handler())
	}

	return NewServer(&http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}, cfg.ShutdownTimeout, log)
}

// NewServer wraps srv. A non-positive shutdownTimeout gets a sane default.
func NewServer(srv *http.Server, shutdownTimeout time.Duration, log *slog.Logger) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	if log == nil {
		log = slog.Default()
	}

	return &Server{
		httpServer:      srv,
		shutdownTimeout: shutdownTimeout,
		log:             log,
	}
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("http server listening", slog.String("addr", s.httpServer.Addr))

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}

		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()

	s.log.Info("shutting down http server", slog.Duration("timeout", s.shutdownTimeout))

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	return <-errCh
}
