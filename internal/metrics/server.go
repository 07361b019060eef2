package metrics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server runs an HTTP server exposing /metrics, /healthz and any extra
// handlers mounted on Mux.
type Server struct {
	Mux  *http.ServeMux
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server. gatherer may be nil for
// the default registry.
func NewServer(addr string, health *HealthStatus, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)

	return &Server{
		Mux:  mux,
		addr: addr,
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("http server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
