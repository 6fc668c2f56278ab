package review

import "github.com/prometheus/client_golang/prometheus"

// Saga step labels for StepFailuresTotal.
const (
	stepLogPatch = "log_patch"
	stepFeedback = "feedback"
	stepNotify   = "notify"
)

// Metrics holds Prometheus metrics for the review subsystem. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	ResolutionsTotal  *prometheus.CounterVec
	StepFailuresTotal *prometheus.CounterVec
	EnrichmentsTotal  *prometheus.CounterVec
	PendingListed     prometheus.Histogram
	StatsItemsScanned prometheus.Histogram
}

// NewMetrics registers and returns review metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ResolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triagedesk_resolutions_total",
			Help: "Total committed verdict resolutions by verdict.",
		}, []string{"verdict"}),
		StepFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triagedesk_resolution_step_failures_total",
			Help: "Best-effort resolution steps that failed after the queue update committed.",
		}, []string{"step"}),
		EnrichmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "triagedesk_enrichments_total",
			Help: "Pending item enrichment attempts by outcome.",
		}, []string{"outcome"}),
		PendingListed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "triagedesk_pending_listed",
			Help:    "Pending items returned per listing.",
			Buckets: prometheus.LinearBuckets(0, 10, 11), // 0 .. 100
		}),
		StatsItemsScanned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "triagedesk_stats_items_scanned",
			Help:    "Queue items scanned per stats request.",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8), // 10 .. ~163840
		}),
	}

	reg.MustRegister(
		m.ResolutionsTotal,
		m.StepFailuresTotal,
		m.EnrichmentsTotal,
		m.PendingListed,
		m.StatsItemsScanned,
	)

	return m
}

func (m *Metrics) resolved(v Verdict) {
	if m == nil {
		return
	}
	m.ResolutionsTotal.WithLabelValues(string(v)).Inc()
}

func (m *Metrics) stepFailed(step string) {
	if m == nil {
		return
	}
	m.StepFailuresTotal.WithLabelValues(step).Inc()
}

func (m *Metrics) enrichment(outcome string) {
	if m == nil {
		return
	}
	m.EnrichmentsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) listed(n int) {
	if m == nil {
		return
	}
	m.PendingListed.Observe(float64(n))
}

func (m *Metrics) statsScanned(n int) {
	if m == nil {
		return
	}
	m.StatsItemsScanned.Observe(float64(n))
}
