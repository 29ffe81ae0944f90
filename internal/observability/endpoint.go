package observability

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tsanev/camguard-go/internal/logging"
)

// Endpoint serves the metrics registry over HTTP for scraping.
type Endpoint struct {
	server *http.Server
	logger *slog.Logger
}

// NewEndpoint creates a metrics endpoint listening on the given address.
func NewEndpoint(listen string, metrics *Metrics) *Endpoint {
	logger := logging.ForService("observability")
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	return &Endpoint{
		server: &http.Server{
			Addr:              listen,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start begins serving in a background goroutine.
func (e *Endpoint) Start() {
	go func() {
		e.logger.Info("metrics endpoint listening", "addr", e.server.Addr)
		if err := e.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			e.logger.Error("metrics endpoint failed", "error", err)
		}
	}()
}

// Shutdown stops the endpoint, waiting for in-flight scrapes.
func (e *Endpoint) Shutdown(ctx context.Context) error {
	if err := e.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics endpoint shutdown: %w", err)
	}
	return nil
}
