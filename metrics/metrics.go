// Package metrics exposes the Prometheus collectors of the provisioning backend
// and the server that publishes them.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ruteri/snippet-provisioning-backend/common"
)

const namespace = "snippet_provisioner"

// Registry holds every collector of this package plus the Go and process collectors.
var Registry = prometheus.NewRegistry()

var (
	provisioningRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provisioning_requests_total",
			Help:      "Total number of provisioning requests by service and outcome status",
		},
		[]string{"service", "status"},
	)

	provisioningDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provisioning_duration_seconds",
			Help:      "Duration of provisioning requests in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		},
		[]string{"service"},
	)

	fleetCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fleet",
			Name:      "calls_total",
			Help:      "Total number of control plane calls by operation and result",
		},
		[]string{"op", "result"},
	)

	fleetCallLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fleet",
			Name:      "call_latency_seconds",
			Help:      "Latency of control plane calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"op"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Always 1, labelled with the application name and version",
		},
		[]string{"app", "version"},
	)

	catalogSkippedBundlesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "catalog",
			Name:      "skipped_bundles_total",
			Help:      "Total number of bundles skipped during catalog scans because their descriptor could not be read",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		provisioningRequestsTotal,
		provisioningDuration,
		fleetCallsTotal,
		fleetCallLatency,
		catalogSkippedBundlesTotal,
		buildInfo,
	)
}

// RecordProvisioning records one finished provisioning request.
func RecordProvisioning(service, status string, duration time.Duration) {
	provisioningRequestsTotal.WithLabelValues(service, status).Inc()
	provisioningDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordFleetCall records one control plane call. result is "ok" or a failure kind.
func RecordFleetCall(op, result string, latency time.Duration) {
	fleetCallsTotal.WithLabelValues(op, result).Inc()
	fleetCallLatency.WithLabelValues(op).Observe(latency.Seconds())
}

// RecordSkippedBundle counts a bundle dropped from a catalog scan.
func RecordSkippedBundle() {
	catalogSkippedBundlesTotal.Inc()
}

// MetricsServer serves the registry on /metrics.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server listening on addr. name is published in the build_info series.
func New(name, addr string) (*MetricsServer, error) {
	buildInfo.WithLabelValues(name, common.Version).Set(1)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))

	return &MetricsServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *MetricsServer) Handler() http.Handler {
	return m.srv.Handler
}

// ListenAndServe starts serving metrics. It blocks until the server stops.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
