package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		accessDecisionsTotal,
		quotaDecisionsTotal,
	)
}

var (
	// reason: free_flag|first_chapter|subject_first_free|chapter_purchase|course_purchase|locked
	accessDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_decisions_total",
			Help: "Chapter access decisions by reason.",
		},
		[]string{"reason"},
	)

	// result: allowed|premium|blocked|error
	quotaDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quota_decisions_total",
			Help: "AI usage quota decisions by usage type and result.",
		},
		[]string{"usage_type", "result"},
	)
)

func IncAccessDecision(reason string) {
	accessDecisionsTotal.WithLabelValues(norm(reason)).Inc()
}

func IncQuotaDecision(usageType, result string) {
	quotaDecisionsTotal.WithLabelValues(norm(usageType), norm(result)).Inc()
}
