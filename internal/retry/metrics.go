package retry

import "github.com/prometheus/client_golang/prometheus"

// Decision label values.
const (
	decisionRetry     = "retry"
	decisionExhausted = "exhausted"
	decisionFiltered  = "filtered"
)

var decisionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "cadence_retry_decisions_total",
		Help: "Total number of retry decisions by outcome.",
	},
	[]string{"decision"},
)

func init() {
	prometheus.MustRegister(decisionsTotal)

	for _, d := range []string{decisionRetry, decisionExhausted, decisionFiltered} {
		decisionsTotal.WithLabelValues(d)
	}
}
