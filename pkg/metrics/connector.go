package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/skonto/filesource/pkg/connector"
)

// connectorMetrics is the Prometheus implementation of connector.Metrics.
type connectorMetrics struct {
	discoveries       *prometheus.CounterVec
	discoveryDuration prometheus.Histogram
	discoveryFailures *prometheus.CounterVec
	freshnessChecks   *prometheus.CounterVec
	freshnessDuration prometheus.Histogram
	accessChecks      *prometheus.CounterVec
	accessProbes      prometheus.Counter
	accessDuration    prometheus.Histogram
	tablesDropped     prometheus.Counter
	viewOperations    *prometheus.CounterVec
}

// NewConnectorMetrics creates a Prometheus-backed connector.Metrics.
//
// Returns nil when metrics are not enabled (InitRegistry not called),
// which makes the connector use its no-op implementation.
func NewConnectorMetrics() connector.Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	durationBuckets := []float64{
		0.001, // 1ms
		0.005, // 5ms
		0.01,  // 10ms
		0.05,  // 50ms
		0.1,   // 100ms
		0.5,   // 500ms
		1,
		5,
		10,
	}

	return &connectorMetrics{
		discoveries: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filesource_discoveries_total",
				Help: "Total number of successful dataset discoveries",
			},
			[]string{"format"},
		),
		discoveryDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "filesource_discovery_duration_seconds",
				Help:    "Duration of successful dataset discoveries in seconds",
				Buckets: durationBuckets,
			},
		),
		discoveryFailures: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filesource_discovery_failures_total",
				Help: "Total number of failed dataset discoveries",
			},
			[]string{"reason"},
		),
		freshnessChecks: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filesource_freshness_checks_total",
				Help: "Total number of freshness checks by verdict",
			},
			[]string{"status"},
		),
		freshnessDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "filesource_freshness_check_duration_seconds",
				Help:    "Duration of freshness checks in seconds",
				Buckets: durationBuckets,
			},
		),
		accessChecks: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filesource_access_checks_total",
				Help: "Total number of permission verifications by outcome",
			},
			[]string{"outcome"},
		),
		accessProbes: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "filesource_access_probes_total",
				Help: "Total number of individual path permission probes",
			},
		),
		accessDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "filesource_access_check_duration_seconds",
				Help:    "Duration of permission verifications in seconds",
				Buckets: durationBuckets,
			},
		),
		tablesDropped: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "filesource_tables_dropped_total",
				Help: "Total number of tables dropped",
			},
		),
		viewOperations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "filesource_view_operations_total",
				Help: "Total number of view operations by kind",
			},
			[]string{"op"},
		),
	}
}

func (m *connectorMetrics) DatasetDiscovered(format string, splits int, duration time.Duration) {
	m.discoveries.WithLabelValues(format).Inc()
	m.discoveryDuration.Observe(duration.Seconds())
}

func (m *connectorMetrics) DiscoveryFailed(reason string) {
	m.discoveryFailures.WithLabelValues(reason).Inc()
}

func (m *connectorMetrics) FreshnessChecked(status connector.UpdateStatus, duration time.Duration) {
	m.freshnessChecks.WithLabelValues(status.String()).Inc()
	m.freshnessDuration.Observe(duration.Seconds())
}

func (m *connectorMetrics) AccessVerified(granted bool, probes int, duration time.Duration) {
	outcome := "denied"
	if granted {
		outcome = "granted"
	}
	m.accessChecks.WithLabelValues(outcome).Inc()
	m.accessProbes.Add(float64(probes))
	m.accessDuration.Observe(duration.Seconds())
}

func (m *connectorMetrics) TableDropped() {
	m.tablesDropped.Inc()
}

func (m *connectorMetrics) ViewOperation(op string) {
	m.viewOperations.WithLabelValues(op).Inc()
}
