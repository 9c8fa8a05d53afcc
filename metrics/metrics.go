// Package metrics exposes Prometheus metrics for the whitelist service and
// runs the standalone metrics HTTP server next to the API server.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "whitelist"

var (
	// LinksCreated counts successfully created identity-wallet links.
	LinksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "links_created_total",
		Help:      "Number of identity-wallet links created.",
	})

	// LinkConflicts counts link attempts rejected due to uniqueness violations.
	LinkConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "link_conflicts_total",
		Help:      "Number of link attempts rejected because either side was already linked.",
	})

	// ProofsIssued counts mint proofs signed and returned to callers.
	ProofsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "proofs_issued_total",
		Help:      "Number of mint authorization signatures issued.",
	})

	// ProofsRejected counts proof requests rejected, labeled by reason.
	ProofsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "proofs_rejected_total",
		Help:      "Number of mint proof requests rejected.",
	}, []string{"reason"})
)

// MetricsServer serves the Prometheus scrape endpoint.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server listening on listenAddr. The service name is
// published as a constant-value info gauge so dashboards can key on it.
func New(name, listenAddr string) (*MetricsServer, error) {
	info := promauto.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "service_info",
		Help:        "Constant gauge carrying service identity labels.",
		ConstLabels: prometheus.Labels{"name": name},
	})
	info.Set(1)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		srv: &http.Server{
			Addr:    listenAddr,
			Handler: mux,
		},
	}, nil
}

func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
