package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cadence_runs_total",
		Help: "Completed runs by outcome.",
	}, []string{"outcome"})

	attemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cadence_attempts_total",
		Help: "Test case attempts by step result status.",
	}, []string{"status"})

	runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cadence_run_duration_seconds",
		Help:    "Wall-clock duration of runs.",
		Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
	})
)

const (
	outcomePassed = "passed"
	outcomeFailed = "failed"
	outcomeError  = "error"
)

func init() {
	prometheus.MustRegister(runsTotal, attemptsTotal, runDuration)

	for _, o := range []string{outcomePassed, outcomeFailed, outcomeError} {
		runsTotal.WithLabelValues(o)
	}
}
