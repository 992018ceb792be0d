package plugin

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_plugin_dispatch_total",
			Help: "Total number of dispatch calls by event key and kind.",
		},
		[]string{"key", "kind"},
	)

	handlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cadence_plugin_handler_duration_seconds",
			Help:    "Duration of individual plugin handler invocations, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"key"},
	)

	handlerErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_plugin_handler_errors_total",
			Help: "Total number of plugin handler invocations that returned an error.",
		},
		[]string{"key"},
	)

	handlerTimeoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cadence_plugin_handler_timeouts_total",
			Help: "Total number of time-bounded handler invocations whose result was dropped.",
		},
	)

	cleanupFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cadence_plugin_cleanup_failures_total",
			Help: "Total number of plugin cleanup callbacks that returned an error.",
		},
	)
)

func init() {
	prometheus.MustRegister(dispatchTotal)
	prometheus.MustRegister(handlerDuration)
	prometheus.MustRegister(handlerErrorsTotal)
	prometheus.MustRegister(handlerTimeoutsTotal)
	prometheus.MustRegister(cleanupFailuresTotal)

	// Pre-initialize label combinations so every catalog key shows up in
	// /metrics with value 0 from startup.
	for _, k := range catalog {
		dispatchTotal.WithLabelValues(k.Name(), k.Kind().String())
		handlerErrorsTotal.WithLabelValues(k.Name())
	}
}

// observe records the duration and outcome of one handler invocation.
func observe(key EventKey, start time.Time, err error) {
	handlerDuration.WithLabelValues(key.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		handlerErrorsTotal.WithLabelValues(key.Name()).Inc()
	}
}
