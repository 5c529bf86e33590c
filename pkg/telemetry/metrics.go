package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the ordering graph and the
// lifecycle tracker. It implements ordering.Recorder.
type Metrics struct {
	config MetricsConfig

	// Graph metrics
	addsTotal         *prometheus.CounterVec
	addDuration       *prometheus.HistogramVec
	typesRegistered   prometheus.Gauge
	snapshotRefreshes prometheus.Counter
	snapshotEntries   prometheus.Gauge

	// Lifecycle metrics
	recordsTracked *prometheus.CounterVec
	recordsDeleted *prometheus.CounterVec

	// Schema metrics
	schemaReloads *prometheus.CounterVec

	registry *prometheus.Registry
	server   *http.Server
	listener net.Listener
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// No-op instance; every recording method checks for nil collectors.
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		addsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "graph",
				Name:      "adds_total",
				Help:      "Total number of Add calls by outcome",
			},
			[]string{"outcome"},
		),
		addDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "graph",
				Name:      "add_duration_seconds",
				Help:      "Duration of Add calls in seconds",
				Buckets:   buckets,
			},
			[]string{"outcome"},
		),
		typesRegistered: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "graph",
				Name:      "types_registered",
				Help:      "Current number of registered entity types",
			},
		),
		snapshotRefreshes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "graph",
				Name:      "snapshot_refreshes_total",
				Help:      "Total number of creation-order snapshot rebuilds",
			},
		),
		snapshotEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "graph",
				Name:      "snapshot_entries",
				Help:      "Number of entries in the latest snapshot",
			},
		),

		recordsTracked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "records_tracked_total",
				Help:      "Total number of records registered for cleanup",
			},
			[]string{"entity_type"},
		),
		recordsDeleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lifecycle",
				Name:      "records_deleted_total",
				Help:      "Total number of cleanup deletions by status",
			},
			[]string{"entity_type", "status"},
		),

		schemaReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "schema",
				Name:      "reloads_total",
				Help:      "Total number of schema file reloads by status",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.addsTotal,
		m.addDuration,
		m.typesRegistered,
		m.snapshotRefreshes,
		m.snapshotEntries,
		m.recordsTracked,
		m.recordsDeleted,
		m.schemaReloads,
	)

	return m, nil
}

// Graph Metrics

// ObserveAdd records a completed Add call.
func (m *Metrics) ObserveAdd(outcome string, elapsed time.Duration) {
	if m.addsTotal == nil {
		return
	}
	m.addsTotal.WithLabelValues(outcome).Inc()
	m.addDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveSnapshot records a snapshot refresh.
func (m *Metrics) ObserveSnapshot(entries int) {
	if m.snapshotRefreshes == nil {
		return
	}
	m.snapshotRefreshes.Inc()
	m.snapshotEntries.Set(float64(entries))
}

// SetTypes sets the number of registered types.
func (m *Metrics) SetTypes(n int) {
	if m.typesRegistered == nil {
		return
	}
	m.typesRegistered.Set(float64(n))
}

// Lifecycle Metrics

// RecordTracked records a record registered for cleanup.
func (m *Metrics) RecordTracked(entityType string) {
	if m.recordsTracked == nil {
		return
	}
	m.recordsTracked.WithLabelValues(entityType).Inc()
}

// RecordDeleted records a cleanup deletion attempt.
func (m *Metrics) RecordDeleted(entityType, status string) {
	if m.recordsDeleted == nil {
		return
	}
	m.recordsDeleted.WithLabelValues(entityType, status).Inc()
}

// Schema Metrics

// RecordSchemaReload records a schema file reload attempt.
func (m *Metrics) RecordSchemaReload(status string) {
	if m.schemaReloads == nil {
		return
	}
	m.schemaReloads.WithLabelValues(status).Inc()
}

// Registry returns the underlying registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer binds the listen address and serves metrics in the
// background. It does nothing when metrics are disabled or no listen address
// is configured.
func (m *Metrics) StartMetricsServer(logger *Logger) error {
	if !m.config.Enabled || m.config.ListenAddress == "" {
		return nil
	}

	ln, err := net.Listen("tcp", m.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", m.config.ListenAddress, err)
	}
	m.listener = ln

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	m.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := m.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// Serving metrics is best effort.
			logger.WithError(err).Error("Metrics server stopped")
		}
	}()

	logger.Infof("Serving metrics on %s%s", m.config.ListenAddress, m.config.Path)
	return nil
}

// Shutdown stops the metrics server if it is running.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	err := m.server.Shutdown(ctx)
	// Serve may not have taken ownership of the listener yet.
	if cerr := m.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
		err = errors.Join(err, cerr)
	}
	return err
}
