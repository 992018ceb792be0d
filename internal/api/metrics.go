package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const unmatched = "unmatched"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	// Excludes SSE streams, which are observed by httpStreamDuration.
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cadence_http_request_duration_seconds",
			Help:    "Duration of non-streaming HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	httpStreamDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cadence_http_stream_duration_seconds",
			Help:    "Lifetime of run message streams in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
		},
	)

	httpActiveStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cadence_http_active_streams",
			Help: "Run message streams currently open.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpStreamDuration, httpActiveStreams)
}

// metricsMiddleware records every request under its chi route pattern, so
// run ids never become label values.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := routePattern(r)
		httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()

		elapsed := time.Since(start).Seconds()
		if isStreamRoute(route) {
			httpStreamDuration.Observe(elapsed)
			return
		}
		httpRequestDuration.WithLabelValues(r.Method, route).Observe(elapsed)
	})
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return unmatched
}

func isStreamRoute(route string) bool {
	return strings.HasSuffix(route, "/stream")
}

func metricsHandler() http.Handler {
	return promhttp.Handler()
}
