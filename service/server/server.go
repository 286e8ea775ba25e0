package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StateFunc reports the current stream connection state.
type StateFunc func() string

// Server is the operational HTTP server of a watcher: health, metrics, and a
// live SSE feed of buy events.
type Server struct {
	addr        string
	gatherer    prometheus.Gatherer
	state       StateFunc
	broadcaster *Broadcaster
	logger      *slog.Logger
	server      *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The gatherer is optional - if nil, the metrics endpoint won't be available.
// The broadcaster is optional - if nil, the SSE endpoint won't be available.
func New(addr string, gatherer prometheus.Gatherer, state StateFunc, broadcaster *Broadcaster, logger *slog.Logger) *Server {
	return &Server{
		addr:        addr,
		gatherer:    gatherer,
		state:       state,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Handler builds the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /health", handleHealth(s.state))

	if s.broadcaster != nil {
		mux.Handle("GET /api/v1/stream/buys", handleStreamBuys(s.broadcaster, s.logger))
	}

	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		// No WriteTimeout: SSE responses stay open.
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// corsMiddleware adds CORS headers so browser clients can consume the SSE feed.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
