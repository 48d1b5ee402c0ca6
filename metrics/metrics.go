// Package metrics exposes Prometheus counters for the document pipeline
// and a standalone metrics HTTP server.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UploadsTotal counts upload attempts by outcome (ok, partial, failed).
	UploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docvault_uploads_total",
		Help: "Document upload attempts by outcome.",
	}, []string{"outcome"})

	// DownloadsTotal counts download attempts by outcome (ok, unverified, failed).
	DownloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docvault_downloads_total",
		Help: "Document download attempts by outcome.",
	}, []string{"outcome"})

	// CacheEventsTotal counts cache hits and misses per cache (record, content).
	CacheEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docvault_cache_events_total",
		Help: "Cache hits and misses.",
	}, []string{"cache", "event"})

	// BackendOpsTotal counts per-backend storage operations by result.
	BackendOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docvault_backend_ops_total",
		Help: "Storage backend operations by backend name, op and result.",
	}, []string{"backend", "op", "result"})

	// LedgerOpsTotal counts ledger registrar calls by op and result.
	LedgerOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "docvault_ledger_ops_total",
		Help: "Ledger registrar operations by op and result.",
	}, []string{"op", "result"})
)

// MetricsServer serves the Prometheus scrape endpoint on its own listener.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server for the given listen address. The name is
// kept for log correlation only.
func New(name, listenAddr string) (*MetricsServer, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		srv: &http.Server{
			Addr:         listenAddr,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}, nil
}

func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
