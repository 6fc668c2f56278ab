package aggregate

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for decision log scans.
type Metrics struct {
	ObjectsTotal    *prometheus.CounterVec
	PartitionsTotal prometheus.Counter
	ScanDuration    *prometheus.HistogramVec
}

// NewMetrics registers and returns aggregation metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ObjectsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triagedesk_scan_objects_total",
			Help: "Decision records fetched during aggregation by outcome.",
		}, []string{"outcome"}),
		PartitionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "triagedesk_scan_partitions_total",
			Help: "Day partitions listed during aggregation.",
		}),
		ScanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "triagedesk_scan_duration_seconds",
			Help:    "Duration of metrics and history scans in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms .. ~102s
		}, []string{"view", "outcome"}),
	}

	reg.MustRegister(
		m.ObjectsTotal,
		m.PartitionsTotal,
		m.ScanDuration,
	)

	return m
}

// Hooks returns Hooks that record into m.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnObject: func(outcome string) {
			m.ObjectsTotal.WithLabelValues(outcome).Inc()
		},
		OnPartition: func() {
			m.PartitionsTotal.Inc()
		},
		OnScan: func(view, outcome string, seconds float64) {
			m.ScanDuration.WithLabelValues(view, outcome).Observe(seconds)
		},
	}
}
