package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		gatewayCallDuration,
		callbackSignatureTotal,
		sideEffectsTotal,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payments by status (initiated/init_failed/paid/failed).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "The total monetary value of successful payments, labeled by currency.",
		},
		[]string{"currency"},
	)

	// op: init|validate|query ; result: ok|error
	gatewayCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_call_duration_seconds",
			Help:    "Duration of outbound payment gateway calls in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
		},
		[]string{"op", "result"},
	)

	callbackSignatureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_callback_signature_total",
			Help: "Callback signature checks by result.",
		},
		[]string{"result"},
	)

	// effect: event|receipt|archive ; result: ok|error|dropped
	sideEffectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_side_effects_total",
			Help: "Post-payment side effects by kind and result.",
		},
		[]string{"effect", "result"},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount float64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(amount)
}

func ObserveGatewayCall(op, result string, d time.Duration) {
	gatewayCallDuration.WithLabelValues(norm(op), norm(result)).Observe(d.Seconds())
}

func IncCallbackSignature(result string) {
	callbackSignatureTotal.WithLabelValues(norm(result)).Inc()
}

func IncSideEffect(effect, result string) {
	sideEffectsTotal.WithLabelValues(norm(effect), norm(result)).Inc()
}
