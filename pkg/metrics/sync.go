package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SyncMetrics records sync engine outcomes. All methods are safe on a nil
// receiver so library embedders can opt out of metrics entirely.
type SyncMetrics struct {
	drainDuration prometheus.Histogram
	queueDepth    prometheus.Gauge
	synced        prometheus.Counter
	failed        prometheus.Counter
	deadLettered  prometheus.Counter
}

// NewSyncMetrics registers the sync metrics on the provided registerer.
func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		return &SyncMetrics{}
	}
	drainDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_drain_duration_seconds",
		Help:    "Duration of sync drain passes in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sync_queue_depth",
		Help: "Events awaiting sync.",
	})
	synced := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_events_synced_total",
		Help: "Events acknowledged by the remote authority.",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_events_failed_total",
		Help: "Transient push failures.",
	})
	deadLettered := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_events_dead_lettered_total",
		Help: "Events parked for operator review.",
	})
	reg.MustRegister(drainDuration, queueDepth, synced, failed, deadLettered)
	return &SyncMetrics{
		drainDuration: drainDuration,
		queueDepth:    queueDepth,
		synced:        synced,
		failed:        failed,
		deadLettered:  deadLettered,
	}
}

// ObserveDrainDuration records the duration of one drain pass.
func (m *SyncMetrics) ObserveDrainDuration(d time.Duration) {
	if m == nil || m.drainDuration == nil {
		return
	}
	m.drainDuration.Observe(d.Seconds())
}

// SetQueueDepth records the current pending backlog.
func (m *SyncMetrics) SetQueueDepth(depth int) {
	if m == nil || m.queueDepth == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

// IncSynced increments the acknowledged-event counter.
func (m *SyncMetrics) IncSynced() {
	if m == nil || m.synced == nil {
		return
	}
	m.synced.Inc()
}

// IncFailed increments the transient-failure counter.
func (m *SyncMetrics) IncFailed() {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.Inc()
}

// IncDeadLettered increments the dead-letter counter.
func (m *SyncMetrics) IncDeadLettered() {
	if m == nil || m.deadLettered == nil {
		return
	}
	m.deadLettered.Inc()
}
