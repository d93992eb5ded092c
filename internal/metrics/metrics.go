package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Gateway metrics
	GatewayReads *prometheus.CounterVec

	// Watcher metrics
	WatcherOutcomes *prometheus.CounterVec
	WatcherAttempts prometheus.Histogram

	// Reconciliation metrics
	ReconcileCandidates *prometheus.CounterVec
	ReconcileDuration   prometheus.Histogram
	MetadataFallbacks   prometheus.Counter
}

// New creates and registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		GatewayReads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "yieldscope_gateway_reads_total",
			Help: "Ledger reads by endpoint, operation and result",
		}, []string{"endpoint", "op", "result"}),

		WatcherOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "yieldscope_watcher_outcomes_total",
			Help: "Transaction watcher results by final state",
		}, []string{"state"}),
		WatcherAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "yieldscope_watcher_attempts",
			Help:    "Polling attempts needed per watched transaction",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 60},
		}),

		ReconcileCandidates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "yieldscope_reconcile_candidates_total",
			Help: "Reconciliation candidates by result (owned, transferred_out, dropped)",
		}, []string{"result"}),
		ReconcileDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "yieldscope_reconcile_duration_seconds",
			Help:    "Duration of a reconciliation pass",
			Buckets: prometheus.DefBuckets,
		}),
		MetadataFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "yieldscope_metadata_fallbacks_total",
			Help: "Records that used a synthesized display name",
		}),
	}
}

func (m *Metrics) ObserveRead(endpoint, op, result string) {
	if m == nil {
		return
	}
	m.GatewayReads.WithLabelValues(endpoint, op, result).Inc()
}

func (m *Metrics) ObserveConfirmation(state string, attempts int) {
	if m == nil {
		return
	}
	m.WatcherOutcomes.WithLabelValues(state).Inc()
	m.WatcherAttempts.Observe(float64(attempts))
}

func (m *Metrics) ObserveCandidate(result string) {
	if m == nil {
		return
	}
	m.ReconcileCandidates.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveReconcile(seconds float64) {
	if m == nil {
		return
	}
	m.ReconcileDuration.Observe(seconds)
}

func (m *Metrics) ObserveMetadataFallback() {
	if m == nil {
		return
	}
	m.MetadataFallbacks.Inc()
}
