// Package httpapi serves a memory over HTTP: questions, search, document
// management and Prometheus metrics.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/custodia-labs/ragmem/internal/core/ports/driving"
	"github.com/custodia-labs/ragmem/internal/logger"
	"github.com/custodia-labs/ragmem/internal/metrics"
)

const (
	maxBodyBytes    int64 = 1 << 20
	shutdownTimeout       = 10 * time.Second
)

// Server is the HTTP API of one memory.
type Server struct {
	handler http.Handler
}

// NewServer builds the router over memory.
func NewServer(memory driving.MemoryService) *Server {
	return &Server{handler: NewRouter(memory)}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// NewRouter registers the API routes.
func NewRouter(memory driving.MemoryService) http.Handler {
	h := &handlers{memory: memory}
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(AccessLog)
	r.Use(middleware.Recoverer)
	r.Use(MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/ask", h.ask)
	r.Post("/ask/stream", h.askStream)
	r.Post("/search", h.search)

	r.Route("/documents", func(r chi.Router) {
		r.Post("/", h.importDocument)
		r.Get("/", h.listDocuments)
		r.Get("/{id}", h.getDocument)
		r.Delete("/{id}", h.deleteDocument)
	})
	r.Get("/jobs", h.listJobs)

	return r
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
// started, if non-nil, receives the bound address once listening.
func (s *Server) Run(ctx context.Context, addr string, started func(addr string)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	if started != nil {
		started(ln.Addr().String())
	}
	logger.Info("HTTP API listening on %s", ln.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
