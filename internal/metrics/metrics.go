// Package metrics exposes Prometheus instruments for the deletion engine.
// Register must be called once at startup; before that, the record helpers
// are no-ops, which keeps unit tests free of registry setup.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	deletionsTotal  *prometheus.CounterVec
	retriesTotal    prometheus.Counter
	purgedTotal     prometheus.Counter
	pendingMessages prometheus.Gauge
	recoveryBacklog prometheus.Gauge
)

// Register creates and registers all instruments on the given registry (the
// default registry when nil).
func Register(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	deletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "autodelete",
			Name:      "deletions_total",
			Help:      "Delete attempts by final outcome.",
		},
		[]string{"outcome"},
	)
	retriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "autodelete",
		Name:      "retries_total",
		Help:      "Transient delete failures that were retried.",
	})
	purgedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "autodelete",
		Name:      "purged_total",
		Help:      "Tracked records purged due to configuration changes.",
	})
	pendingMessages = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "autodelete",
		Name:      "pending_messages",
		Help:      "Tracked records awaiting deletion.",
	})
	recoveryBacklog = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "autodelete",
		Name:      "recovery_backlog",
		Help:      "Overdue deletions applied by the last recovery pass.",
	})

	reg.MustRegister(deletionsTotal, retriesTotal, purgedTotal, pendingMessages, recoveryBacklog)
}

// RecordDeletion counts one finished delete attempt by final outcome.
func RecordDeletion(outcome string) {
	if deletionsTotal != nil {
		deletionsTotal.WithLabelValues(outcome).Inc()
	}
}

// RecordRetry counts one transient-failure retry.
func RecordRetry() {
	if retriesTotal != nil {
		retriesTotal.Inc()
	}
}

// RecordPurged counts records purged by a generation sweep.
func RecordPurged(n int64) {
	if purgedTotal != nil && n > 0 {
		purgedTotal.Add(float64(n))
	}
}

// SetPending updates the live tracked-record gauge.
func SetPending(n int64) {
	if pendingMessages != nil {
		pendingMessages.Set(float64(n))
	}
}

// SetRecoveryBacklog records the size of the startup catch-up backlog.
func SetRecoveryBacklog(n int64) {
	if recoveryBacklog != nil {
		recoveryBacklog.Set(float64(n))
	}
}
