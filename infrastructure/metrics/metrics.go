// Package metrics provides Prometheus metrics collection for the pipeline
// orchestrator (C10), following the
// NewWithRegistry/global-instance pattern of the teacher's own
// infrastructure/metrics package.
package metrics

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors. The orchestrator records into
// NodesExecutedTotal and NodesFailedTotal only; AnomaliesTotal,
// ComplianceBypass and LayerDuration are registered but nothing in the
// pipeline records into them.
type Metrics struct {
	NodesExecutedTotal *prometheus.CounterVec
	NodesFailedTotal   *prometheus.CounterVec
	AnomaliesTotal     *prometheus.CounterVec
	ComplianceBypass   *prometheus.CounterVec
	LayerDuration      *prometheus.HistogramVec

	ServiceInfo *prometheus.GaugeVec
}

// New creates a new Metrics instance with all collectors registered
// against the default Prometheus registry.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new Metrics instance with a custom registry.
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		NodesExecutedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verity_nodes_executed_total",
				Help: "Total number of model/node executions completed successfully",
			},
			[]string{"service", "node", "layer"},
		),
		NodesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verity_nodes_failed_total",
				Help: "Total number of model/node executions that failed",
			},
			[]string{"service", "node"},
		),
		AnomaliesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verity_anomalies_total",
				Help: "Total number of compliance anomalies detected (row-count or z-score drift)",
			},
			[]string{"service", "node", "check"},
		),
		ComplianceBypass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verity_compliance_bypass_total",
				Help: "Total number of anomalies bypassed because strict mode was off",
			},
			[]string{"service", "node"},
		),
		LayerDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "verity_layer_duration_seconds",
				Help:    "Wall-clock duration of a single scheduling layer",
				Buckets: []float64{.1, .5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"service", "layer"},
		),
		ServiceInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "service_info",
				Help: "Service information",
			},
			[]string{"service", "version"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.NodesExecutedTotal,
			m.NodesFailedTotal,
			m.AnomaliesTotal,
			m.ComplianceBypass,
			m.LayerDuration,
			m.ServiceInfo,
		)
	}

	m.ServiceInfo.WithLabelValues(serviceName, "1.0.0").Set(1)

	return m
}

// RecordNodeExecuted records a single successful node execution under its
// node and layer labels; duration is accepted but not recorded, and the
// service label is always "verity".
func (m *Metrics) RecordNodeExecuted(node, layer string, duration time.Duration) {
	m.NodesExecutedTotal.WithLabelValues("verity", node, layer).Inc()
}

// RecordNodeFailed records a single failed node execution.
func (m *Metrics) RecordNodeFailed(node string) {
	m.NodesFailedTotal.WithLabelValues("verity", node).Inc()
}

// RecordAnomaly records a tripped compliance check (§4.8).
func (m *Metrics) RecordAnomaly(node, check string) {
	m.AnomaliesTotal.WithLabelValues("verity", node, check).Inc()
}

// RecordBypass records a severity-error anomaly that was downgraded to a
// warning because strict mode was off.
func (m *Metrics) RecordBypass(node string) {
	m.ComplianceBypass.WithLabelValues("verity", node).Inc()
}

// RecordLayerDuration records how long one scheduling layer took to drain.
func (m *Metrics) RecordLayerDuration(layer string, duration time.Duration) {
	m.LayerDuration.WithLabelValues("verity", layer).Observe(duration.Seconds())
}

// Enabled returns whether Prometheus metrics should be exposed, controlled
// by the METRICS_ENABLED environment variable (defaults to enabled).
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	if raw == "" {
		return true
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Global metrics instance
var (
	globalMetrics *Metrics
	globalMu      sync.Mutex
)

// Init initializes the global metrics instance
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New(serviceName)
	}
	return globalMetrics
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalMetrics == nil {
		globalMetrics = New("verity")
	}
	return globalMetrics
}
