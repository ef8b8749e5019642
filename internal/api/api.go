// Package api provides the HTTP interface the UI layer uses to enqueue share
// requests, trigger drains, and manage endpoint account links.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/groundupworks/wings/internal/endpoint"
	"github.com/groundupworks/wings/internal/outbox"
	"github.com/groundupworks/wings/internal/worker"
)

// Server timeouts.
const (
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// Server exposes the Wings HTTP API.
type Server struct {
	addr     string
	queue    *outbox.Queue
	worker   *worker.Worker
	registry *endpoint.Registry
}

// NewServer creates an API server listening on addr.
func NewServer(addr string, queue *outbox.Queue, w *worker.Worker, registry *endpoint.Registry) *Server {
	return &Server{addr: addr, queue: queue, worker: w, registry: registry}
}

// Handler returns the API route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/shares", s.sharesHandler)
	mux.HandleFunc("/drain", s.drainHandler)
	mux.HandleFunc("/endpoints", s.endpointsHandler)
	mux.HandleFunc("/endpoints/", s.endpointActionHandler)
	return mux
}

// Run serves the API until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  DefaultReadTimeout,
		WriteTimeout: DefaultWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
