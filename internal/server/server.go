// Package server implements the HTTP status API, middleware, and request handlers.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/woozymasta/bedrock-status/internal/game"
)

// New creates a new Server serving snapshots from source.
func New(source StatusSource, opts Options) *Server {
	s := &Server{
		source:         source,
		address:        opts.Address,
		authToken:      opts.AuthToken,
		trustProxy:     opts.TrustProxy,
		hardLimitCount: opts.RateCount,
		hardLimitWin:   opts.RateWindow,
		queryTimeout:   opts.QueryTimeout,
		query: game.Options{
			BufferSize: opts.QueryBufferSize,
			Strict:     opts.QueryStrict,
		},
	}
	s.handler = s.routes()

	return s
}

// Handler returns the main handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	status := http.Handler(http.HandlerFunc(s.handleStatus))
	if s.authToken != "" {
		status = AdminAuthMiddleware(s.authToken, status)
		mux.Handle("GET /api/query", AdminAuthMiddleware(s.authToken, http.HandlerFunc(s.handleServerQuery)))
	}
	mux.Handle("GET /api/status", status)
	mux.Handle("GET /api/version", http.HandlerFunc(s.handleVersion))
	mux.Handle("GET /healthz", http.HandlerFunc(s.handleHealth))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s.LoggingMiddleware(s.RateLimitMiddleware(mux))
}

// Serve listens on the configured address until ctx is done. It is a suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.address,
		Handler:      s.handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: s.queryTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("address", s.address).Msg("HTTP server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server forced to shutdown")
	}

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// String implements fmt.Stringer, used by suture in its log events.
func (s *Server) String() string {
	return "server(" + s.address + ")"
}
