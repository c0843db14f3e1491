// Package api exposes the complaint portal over HTTP.
//
// Endpoints:
//
//	GET  /health                  liveness probe
//	GET  /ready                   readiness probe (vector store reachable)
//	POST /api/complaints/upload   submit a complaint document (multipart)
//	POST /api/complaints/text     submit a typed-in complaint
//	POST /api/complaints/backfill index an already-accepted complaint
//	GET  /api/complaints/search   semantic search with optional filters
//	GET  /api/complaints/{id}     full complaint record
//	GET  /api/stats               dashboard distributions
//
// File structure:
//   - server.go: HTTP server setup and lifecycle
//   - middleware.go: HTTP middleware (logging, recovery)
//   - health.go: health check endpoints
//   - complaints.go: intake endpoints
//   - search.go: search, details and stats endpoints
//   - response.go: JSON response helpers
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/civicdesk/civicdesk/internal/pipeline"
	"github.com/civicdesk/civicdesk/internal/search"
	"github.com/civicdesk/civicdesk/internal/vecstore"
)

const (
	// DefaultAddr is the default address for the HTTP server.
	DefaultAddr = "127.0.0.1:8800"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout prevents Slowloris-style header trickling.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	// Uploads are size-capped, not time-generous.
	ReadTimeout = 60 * time.Second

	// WriteTimeout covers classification and embedding round trips, which
	// dominate response time on the intake endpoints.
	WriteTimeout = 120 * time.Second

	// IdleTimeout is the keep-alive limit between requests.
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP server for the complaint portal REST API.
type Server struct {
	mux *http.ServeMux

	health     *HealthHandler
	complaints *ComplaintHandler
	search     *SearchHandler
}

// NewServer creates an HTTP server with all routes registered. uploadDir is
// where complaint documents are saved before extraction.
func NewServer(p *pipeline.Pipeline, facade *search.Facade, index vecstore.Index, uploadDir string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	s := &Server{
		mux:        mux,
		health:     NewHealthHandler(index, logger),
		complaints: NewComplaintHandler(p, uploadDir, logger),
		search:     NewSearchHandler(facade, logger),
	}

	s.health.RegisterRoutes(mux)
	s.complaints.RegisterRoutes(mux)
	s.search.RegisterRoutes(mux)

	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery → logging → handler
func (s *Server) Handler() http.Handler {
	return chain(s.mux, recoveryMiddleware, loggingMiddleware)
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
