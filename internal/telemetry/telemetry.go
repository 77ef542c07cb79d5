// Package telemetry owns the Prometheus collectors for the enrichment agent.
package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xfix_fetch_attempts_total",
			Help: "Fetch strategy attempts, labeled by strategy and outcome kind.",
		},
		[]string{"strategy", "outcome"},
	)

	fetchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xfix_fetch_duration_seconds",
			Help:    "Histogram of fetch strategy latencies.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"strategy"},
	)

	rateLimitDelaySeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "xfix_rate_limit_delay_seconds",
			Help:    "Histogram of pacing waits before each fetch.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)

	backoffDelaySeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "xfix_backoff_delay_seconds",
			Help: "Current Fibonacci backoff delay; zero when not backing off.",
		},
	)

	adminRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xfix_admin_requests_total",
			Help: "Admin API requests, labeled by method, route and status code.",
		},
		[]string{"method", "route", "code"},
	)

	adminRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "xfix_admin_request_duration_seconds",
			Help:    "Histogram of admin API latencies, labeled by method and route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	syncRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "xfix_sync_requests_total",
			Help: "Long-poll sync calls against the bookmark store, labeled by result.",
		},
		[]string{"result"},
	)
)

// Handler returns the standard Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records the outcome of one strategy attempt. An empty
// outcome means success.
func ObserveFetch(strategy, outcome string, duration time.Duration) {
	if outcome == "" {
		outcome = "success"
	}
	fetchAttemptsTotal.WithLabelValues(strategy, outcome).Inc()
	fetchDurationSeconds.WithLabelValues(strategy).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a pacing wait.
func ObserveRateLimitDelay(duration time.Duration) {
	rateLimitDelaySeconds.Observe(duration.Seconds())
}

// SetBackoffDelay publishes the current backoff delay.
func SetBackoffDelay(delay time.Duration) {
	backoffDelaySeconds.Set(delay.Seconds())
}

// ObserveSync records the result of a long-poll call.
func ObserveSync(result string) {
	syncRequestsTotal.WithLabelValues(result).Inc()
}

// ObserveAdminRequest records one admin API request.
func ObserveAdminRequest(method, route string, code int, duration time.Duration) {
	adminRequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	adminRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
