package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		reconcileTotal,
		callbackDuration,
		sweepRunsTotal,
	)
}

var (
	// entry: success|fail|cancel|ipn|sweep
	// result: paid|already_paid|failed|already_failed|missing_val_id|unknown_order|gateway_error|error
	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconcile_total",
			Help: "Reconciliation attempts by entry point and result.",
		},
		[]string{"entry", "result"},
	)

	// Latency of callback handlers grouped by entry.
	callbackDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_callback_duration_seconds",
			Help:    "Duration of payment callback handlers in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"entry"},
	)

	// result: ok|skipped|error
	sweepRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_sweep_runs_total",
			Help: "Stale pending order sweeps by result.",
		},
		[]string{"result"},
	)
)

func IncReconcile(entry, result string) {
	reconcileTotal.WithLabelValues(norm(entry), norm(result)).Inc()
}

func ObserveCallback(entry string, seconds float64) {
	callbackDuration.WithLabelValues(norm(entry)).Observe(seconds)
}

func IncSweepRun(result string) {
	sweepRunsTotal.WithLabelValues(norm(result)).Inc()
}
