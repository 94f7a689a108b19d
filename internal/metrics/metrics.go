// Package metrics exposes Prometheus collectors for scraping runs.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	searchOutcomesTotal        *prometheus.CounterVec
	searchDurationSeconds      *prometheus.HistogramVec
	captchaSolvesTotal         *prometheus.CounterVec
	captchaSolveSeconds        prometheus.Histogram
	itemsCompletedTotal        prometheus.Counter
	itemsQualifiedTotal        prometheus.Counter
	itemsInProgress            prometheus.Gauge
	activeWorkers              prometheus.Gauge
	sessionResetFailuresTotal  prometheus.Counter
	sinkErrorsTotal            *prometheus.CounterVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		searchOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "heirfinder_search_outcomes_total",
				Help: "Identity searches finished, labeled by portal and status.",
			},
			[]string{"portal", "status"},
		)

		searchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "heirfinder_search_duration_seconds",
				Help:    "Histogram of identity search latencies including reset.",
				Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"portal"},
		)

		captchaSolvesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "heirfinder_captcha_solves_total",
				Help: "CAPTCHA solve attempts, labeled by kind and result.",
			},
			[]string{"kind", "result"},
		)

		captchaSolveSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "heirfinder_captcha_solve_seconds",
				Help:    "Histogram of CAPTCHA vendor round trips.",
				Buckets: []float64{5, 10, 20, 40, 60, 120, 180},
			},
		)

		itemsCompletedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "heirfinder_items_completed_total",
				Help: "Work items fully processed.",
			},
		)

		itemsQualifiedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "heirfinder_items_qualified_total",
				Help: "Work items written to the qualified output.",
			},
		)

		itemsInProgress = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "heirfinder_items_in_progress",
				Help: "Work items currently held by a worker.",
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "heirfinder_active_workers",
				Help: "Workers with a live browser session.",
			},
		)

		sessionResetFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "heirfinder_session_reset_failures_total",
				Help: "Failed attempts to return a session to the search form.",
			},
		)

		sinkErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "heirfinder_sink_errors_total",
				Help: "Optional outcome sink failures, labeled by sink.",
			},
			[]string{"sink"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "heirfinder_rate_limit_delays_seconds",
				Help:    "Histogram of submit pacing waits.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSearch records one finished identity search.
func ObserveSearch(portal, status string, duration time.Duration) {
	Init()
	searchOutcomesTotal.WithLabelValues(portal, status).Inc()
	searchDurationSeconds.WithLabelValues(portal).Observe(duration.Seconds())
}

// ObserveCaptcha records one vendor solve attempt.
func ObserveCaptcha(kind string, solved bool, duration time.Duration) {
	Init()
	result := "failed"
	if solved {
		result = "solved"
	}
	captchaSolvesTotal.WithLabelValues(kind, result).Inc()
	captchaSolveSeconds.Observe(duration.Seconds())
}

// ItemStarted marks a work item as picked up.
func ItemStarted() {
	Init()
	itemsInProgress.Inc()
}

// ItemFinished marks a work item as done.
func ItemFinished() {
	Init()
	itemsInProgress.Dec()
	itemsCompletedTotal.Inc()
}

// ItemQualified counts a work item written to qualified output.
func ItemQualified() {
	Init()
	itemsQualifiedTotal.Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveResetFailure counts a failed session reset.
func ObserveResetFailure() {
	Init()
	sessionResetFailuresTotal.Inc()
}

// ObserveSinkError counts a failed optional sink write.
func ObserveSinkError(sink string) {
	Init()
	sinkErrorsTotal.WithLabelValues(sink).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
