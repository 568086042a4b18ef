// Package server exposes the HTTP boundary of the triscribe comparison
// service: the multipart upload endpoint, the realtime websocket channel,
// health probes, and the Prometheus scrape endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/triscribe/triscribe/internal/config"
	"github.com/triscribe/triscribe/internal/health"
	"github.com/triscribe/triscribe/internal/observe"
	"github.com/triscribe/triscribe/pkg/stt"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// Server wires the HTTP surface over the configured provider instances.
// providers holds one entry per vendor with a configured credential.
type Server struct {
	cfg       *config.Config
	providers map[string]stt.Provider
	metrics   *observe.Metrics
	health    *health.Handler
}

// New creates a Server. The providers map must contain only vendors whose
// credentials are configured; requests naming other vendors skip them.
func New(cfg *config.Config, providers map[string]stt.Provider, m *observe.Metrics, h *health.Handler) *Server {
	return &Server{
		cfg:       cfg,
		providers: providers,
		metrics:   m,
		health:    h,
	}
}

// Handler builds the full route table wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/transcribe", s.handleTranscribe)
	mux.HandleFunc("GET /ws", s.handleStream)
	mux.Handle("GET /metrics", promhttp.Handler())
	s.health.Register(mux)

	return observe.Middleware(s.metrics)(mux)
}

// Run serves HTTP on the configured listen address until ctx is cancelled,
// then drains in-flight requests within shutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}

// writeJSON encodes v with the given status. Encoding failures are only
// logged; the status line has already been written at that point. ctx is the
// request context so the log line carries the request's trace correlation.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		observe.Logger(ctx).Warn("encode response", "err", err)
	}
}

// writeError sends a JSON error body with the given status.
func writeError(ctx context.Context, w http.ResponseWriter, status int, msg string) {
	writeJSON(ctx, w, status, errorResponse{Error: msg})
}
