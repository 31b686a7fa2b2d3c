// Package metrics exposes the Prometheus instrumentation surrounding the
// streaming pipeline and REST framework: notification throughput, REST
// latency, and snapshot-reconciliation aborts. None of it sits on the
// matching engine's hot path (the engine never imports this package) --
// it instruments the venue adapters and the client-facing framework only.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// NotificationsTotal counts notifications delivered per venue and
	// category (limit_updates, trade, order_confirmation, order_update,
	// order_expiration).
	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "xchg_notifications_total",
		Help: "Total notifications delivered on the normalized stream, by venue and category.",
	}, []string{"venue", "category"})

	// RestLatencySeconds observes REST round-trip latency by venue and
	// endpoint path.
	RestLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xchg_rest_latency_seconds",
		Help:    "REST request latency in seconds, by venue and endpoint.",
		Buckets: prometheus.DefBuckets,
	}, []string{"venue", "endpoint"})

	// SnapshotReconciliationAbortsTotal counts fatal sequence-invariant
	// violations that aborted a connection during snapshot reconciliation,
	// by venue.
	SnapshotReconciliationAbortsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "xchg_snapshot_reconciliation_aborts_total",
		Help: "Fatal snapshot reconciliation sequence violations, by venue.",
	}, []string{"venue"})
)

func init() {
	prometheus.MustRegister(NotificationsTotal, RestLatencySeconds, SnapshotReconciliationAbortsTotal)
}

// ObserveNotification increments the per-venue, per-category notification
// counter.
func ObserveNotification(venue, category string) {
	NotificationsTotal.WithLabelValues(venue, category).Inc()
}

// ObserveRestLatency records one REST call's round-trip latency.
func ObserveRestLatency(venue, endpoint string, seconds float64) {
	RestLatencySeconds.WithLabelValues(venue, endpoint).Observe(seconds)
}

// ObserveSnapshotAbort records a fatal snapshot reconciliation failure.
func ObserveSnapshotAbort(venue string) {
	SnapshotReconciliationAbortsTotal.WithLabelValues(venue).Inc()
}
