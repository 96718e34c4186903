// =============================================================================
// Ledger Upload Reformatter - Upload Server
// =============================================================================
//
// This module serves the reformatter over HTTP so finance staff can convert
// an export from the browser instead of the command line.
//
// ROUTES:
//   GET  /                 Upload page with the transformation steps
//   POST /api/v1/preview   Multipart "file"; JSON preview of source and result
//   POST /api/v1/convert   Multipart "file"; converted_data.csv attachment
//   GET  /api/v1/labels    Invoice type label table as JSON
//   GET  /health           Liveness
//   GET  /metrics          Prometheus metrics
//
// =============================================================================

package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ginjaninja78/ledger-upload-reformatter/internal/config"
	"github.com/ginjaninja78/ledger-upload-reformatter/internal/metrics"
)

// Server is the upload server.
type Server struct {
	httpCfg config.HTTPConfig
	csv     config.CSVSettings
	workers int
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewServer creates a Server from the application configuration.
// A nil m gets a private metrics registry.
func NewServer(cfg *config.MainConfig, logger zerolog.Logger, m *metrics.Metrics) *Server {
	if m == nil {
		m = metrics.New(nil)
	}
	return &Server{
		httpCfg: cfg.HTTP,
		csv:     cfg.CSV,
		workers: cfg.RowWorkers,
		metrics: m,
		logger:  logger,
	}
}

// Router returns the HTTP handler with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	logging := &loggingMiddleware{logger: s.logger}
	instrument := &metricsMiddleware{metrics: s.metrics}

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(logging.Wrap)
	r.Use(instrument.Wrap)
	r.Use(chimiddleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/preview", s.handlePreview)
		r.Post("/convert", s.handleConvert)
		r.Get("/labels", s.handleLabels)
	})

	return r
}

// ListenAndServe serves on the configured address until ctx is cancelled,
// then shuts down gracefully within the configured timeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpCfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpCfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:      s.Router(),
		ReadTimeout:  s.httpCfg.ReadTimeout,
		WriteTimeout: s.httpCfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", ln.Addr().String()).Msg("starting server")
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.httpCfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info().Msg("server stopped")
	return nil
}
