package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/codewandler/pactor/core/metrics"
	"github.com/codewandler/pactor/core/runtime"
)

// runtimeMetrics implements runtime.Metrics using Prometheus.
type runtimeMetrics struct {
	dispatchDuration *prometheus.HistogramVec
	dispatchTotal    *prometheus.CounterVec
	panicTotal       *prometheus.CounterVec
	appendedTotal    *prometheus.CounterVec
	replayLag        *prometheus.GaugeVec
	cacheLookups     *prometheus.CounterVec
}

// NewMetrics creates a Prometheus implementation of runtime.Metrics and
// registers its collectors with reg.
func NewMetrics(reg prometheus.Registerer) runtime.Metrics {
	m := &runtimeMetrics{
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pactor_dispatch_duration_seconds",
			Help:    "Handler invocation time in seconds",
			Buckets: defaultBuckets,
		}, []string{"actor_kind", "message_kind"}),

		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pactor_dispatch_total",
			Help: "Total number of handler invocations by outcome",
		}, []string{"actor_kind", "message_kind", "outcome"}),

		panicTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pactor_dispatch_panics_total",
			Help: "Total number of handler panics",
		}, []string{"actor_kind", "message_kind"}),

		appendedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pactor_messages_appended_total",
			Help: "Total number of outgoing messages appended to logs",
		}, []string{"actor_kind"}),

		replayLag: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pactor_replay_lag",
			Help: "Log entries an actor has not consumed yet",
		}, []string{"actor_id"}),

		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pactor_cache_lookups_total",
			Help: "Total number of storage cache lookups",
		}, []string{"actor_kind", "hit"}),
	}

	reg.MustRegister(
		m.dispatchDuration,
		m.dispatchTotal,
		m.panicTotal,
		m.appendedTotal,
		m.replayLag,
		m.cacheLookups,
	)

	return m
}

func (m *runtimeMetrics) DispatchDuration(actorKind, msgKind string) metrics.Timer {
	return newTimer(m.dispatchDuration.WithLabelValues(actorKind, msgKind))
}

func (m *runtimeMetrics) DispatchCompleted(actorKind, msgKind, outcome string) {
	m.dispatchTotal.WithLabelValues(actorKind, msgKind, outcome).Inc()
}

func (m *runtimeMetrics) DispatchPanic(actorKind, msgKind string) {
	m.panicTotal.WithLabelValues(actorKind, msgKind).Inc()
}

func (m *runtimeMetrics) MessagesAppended(actorKind string, n int) {
	m.appendedTotal.WithLabelValues(actorKind).Add(float64(n))
}

func (m *runtimeMetrics) ReplayLag(actorID string, lag uint64) {
	m.replayLag.WithLabelValues(actorID).Set(float64(lag))
}

func (m *runtimeMetrics) CacheLookup(actorKind string, hit bool) {
	m.cacheLookups.WithLabelValues(actorKind, boolToStr(hit)).Inc()
}

var _ runtime.Metrics = (*runtimeMetrics)(nil)
