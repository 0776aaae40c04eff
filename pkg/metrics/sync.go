package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records reconciliation, gateway and local-store outcomes.
type SyncMetrics struct {
	duration       *prometheus.HistogramVec
	items          *prometheus.CounterVec
	gatewayFailure *prometheus.CounterVec
	storeFailure   *prometheus.CounterVec
	skipped        *prometheus.CounterVec
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
// A nil registerer yields a no-op collector.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sync_routine_duration_seconds",
		Help:    "Duration of sync routines in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"routine"})
	items := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_items_total",
		Help: "Items processed by sync routines, by outcome.",
	}, []string{"routine", "outcome"})
	gatewayFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_remote_failures_total",
		Help: "Remote calls issued by mutation gateways that failed.",
	}, []string{"operation"})
	storeFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "local_store_failures_total",
		Help: "Durable local store operations that failed and were degraded to no-ops.",
	}, []string{"key", "op"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_routine_skipped_total",
		Help: "Sync routines skipped because their precondition did not hold or a run was in flight.",
	}, []string{"routine", "reason"})
	reg.MustRegister(duration, items, gatewayFailure, storeFailure, skipped)
	return &SyncMetrics{
		duration:       duration,
		items:          items,
		gatewayFailure: gatewayFailure,
		storeFailure:   storeFailure,
		skipped:        skipped,
	}
}

// ObserveDuration records the duration for the named routine.
func (m *SyncMetrics) ObserveDuration(routine string, duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(routine)).Observe(duration.Seconds())
}

// IncItem counts one processed item.
func (m *SyncMetrics) IncItem(routine string, success bool) {
	if m == nil || m.items == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.items.WithLabelValues(normalizeLabel(routine), outcome).Inc()
}

// IncGatewayFailure counts a failed remote call made by a mutation gateway.
func (m *SyncMetrics) IncGatewayFailure(operation string) {
	if m == nil || m.gatewayFailure == nil {
		return
	}
	m.gatewayFailure.WithLabelValues(normalizeLabel(operation)).Inc()
}

// IncStoreFailure counts a swallowed local store failure.
func (m *SyncMetrics) IncStoreFailure(key, op string) {
	if m == nil || m.storeFailure == nil {
		return
	}
	m.storeFailure.WithLabelValues(normalizeLabel(key), normalizeLabel(op)).Inc()
}

// IncSkipped counts a routine that did not run.
func (m *SyncMetrics) IncSkipped(routine, reason string) {
	if m == nil || m.skipped == nil {
		return
	}
	m.skipped.WithLabelValues(normalizeLabel(routine), normalizeLabel(reason)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
