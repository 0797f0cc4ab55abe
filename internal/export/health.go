package export

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// HealthConfig configures the Prometheus health metrics server.
type HealthConfig struct {
	// Addr is the listen address for the health metrics server.
	// Defaults to ":9090". Set to "-" to disable the server.
	Addr string `yaml:"addr"`
}

// Enabled reports whether the health server should be started.
func (c HealthConfig) Enabled() bool {
	return c.Addr != "-"
}

// StatusFunc enumerates status stats as (source, name, value).
type StatusFunc func(write func(source, name string, value int64))

// HealthMetrics exposes Prometheus metrics for the flush pipeline.
type HealthMetrics struct {
	log      logrus.FieldLogger
	addr     string
	server   *http.Server
	listener net.Listener
	registry *prometheus.Registry
	status   StatusFunc

	// Flush cycle.
	FlushesTotal       prometheus.Counter
	LastFlushTimestamp prometheus.Gauge
	DocumentsBuilt     *prometheus.CounterVec // category
	SnapshotErrors     prometheus.Counter

	// Bulk delivery.
	BulkRequests        *prometheus.CounterVec // outcome
	BulkItemFailures    prometheus.Counter
	BulkRequestDuration prometheus.Histogram
	BulkPayloadBytes    prometheus.Histogram
	BulkQueueDropped    prometheus.Counter

	running atomic.Bool
}

// NewHealthMetrics creates a new health metrics server.
func NewHealthMetrics(
	log logrus.FieldLogger,
	cfg HealthConfig,
) *HealthMetrics {
	reg := prometheus.NewRegistry()

	h := &HealthMetrics{
		log:      log.WithField("component", "health"),
		addr:     cfg.Addr,
		registry: reg,

		FlushesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statsd_elastic",
			Name:      "flushes_total",
			Help:      "Total flush cycles invoked.",
		}),
		LastFlushTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "statsd_elastic",
			Name:      "last_flush_timestamp_seconds",
			Help:      "Unix time of the last flush cycle.",
		}),
		DocumentsBuilt: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "statsd_elastic",
				Name:      "documents_built_total",
				Help:      "Total documents built by category.",
			},
			[]string{"category"},
		),
		SnapshotErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statsd_elastic",
			Name:      "snapshot_errors_total",
			Help:      "Total snapshot reads that failed, skipping the cycle.",
		}),
		BulkRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "statsd_elastic",
				Name:      "bulk_requests_total",
				Help:      "Total bulk requests by delivery outcome.",
			},
			[]string{"outcome"},
		),
		BulkItemFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statsd_elastic",
			Name:      "bulk_item_failures_total",
			Help:      "Total items reported as failed inside accepted bulk responses.",
		}),
		BulkRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "statsd_elastic",
			Name:      "bulk_request_duration_seconds",
			Help:      "Bulk request round trip time.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30}, // 5ms-30s
		}),
		BulkPayloadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "statsd_elastic",
			Name:      "bulk_payload_bytes",
			Help:      "Uncompressed bulk payload size.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8), // 1KiB-16MiB
		}),
		BulkQueueDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "statsd_elastic",
			Name:      "bulk_queue_dropped_total",
			Help:      "Total flush cycles dropped before dispatch.",
		}),
	}

	reg.MustRegister(
		h.FlushesTotal,
		h.LastFlushTimestamp,
		h.DocumentsBuilt,
		h.SnapshotErrors,
		h.BulkRequests,
		h.BulkItemFailures,
		h.BulkRequestDuration,
		h.BulkPayloadBytes,
		h.BulkQueueDropped,
	)

	return h
}

// SetStatus registers the enumeration served on /status.
// Must be called before Start.
func (h *HealthMetrics) SetStatus(fn StatusFunc) {
	h.status = fn
}

// Start begins serving the /metrics endpoint.
func (h *HealthMetrics) Start(_ context.Context) error {
	if h.addr == "" {
		h.addr = ":9090"
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(
		h.registry,
		promhttp.HandlerOpts{},
	))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	mux.HandleFunc("/status", h.serveStatus)

	// pprof endpoints for CPU/memory profiling.
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	ln, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", h.addr, err)
	}

	h.listener = ln

	h.server = &http.Server{
		Handler: mux,
	}

	h.running.Store(true)

	go func() {
		h.log.WithField("addr", ln.Addr().String()).
			Info("Health metrics server started")

		if err := h.server.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			h.log.WithError(err).
				Error("Health metrics server error")
		}

		h.running.Store(false)
	}()

	return nil
}

// serveStatus renders the status enumeration as {"source": {"name": value}}.
func (h *HealthMetrics) serveStatus(w http.ResponseWriter, _ *http.Request) {
	out := make(map[string]map[string]int64, 1)

	if h.status != nil {
		h.status(func(source, name string, value int64) {
			if out[source] == nil {
				out[source] = make(map[string]int64, 2)
			}

			out[source][name] = value
		})
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(out); err != nil {
		h.log.WithError(err).Debug("Writing status response failed")
	}
}

// Addr returns the actual listener address. Useful when started
// with ":0" to get the OS-assigned port.
func (h *HealthMetrics) Addr() string {
	if h.listener != nil {
		return h.listener.Addr().String()
	}

	return h.addr
}

// Stop gracefully shuts down the health metrics server.
func (h *HealthMetrics) Stop() error {
	if h.server == nil {
		return nil
	}

	return h.server.Close()
}
