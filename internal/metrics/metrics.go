// Package metrics exposes Prometheus collectors for the scrape worker.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	dispatchDecisionsTotal   *prometheus.CounterVec
	jobsTotal                *prometheus.CounterVec
	jobDurationSeconds       *prometheus.HistogramVec
	extractorOutcomesTotal   *prometheus.CounterVec
	browserSessionsActive    prometheus.Gauge
	browserPagesOpenedTotal  prometheus.Counter
	browserPagesClosedTotal  prometheus.Counter
	storeErrorsTotal         *prometheus.CounterVec
	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDurationHisto *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors. It is safe to call more than once.
func Init() {
	once.Do(func() {
		dispatchDecisionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wee_dispatch_decisions_total",
				Help: "Task messages handled by the dispatcher, labeled by decision.",
			},
			[]string{"decision"},
		)

		jobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wee_jobs_total",
				Help: "Jobs that reached a terminal state, labeled by task type and status.",
			},
			[]string{"type", "status"},
		)

		jobDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wee_job_duration_seconds",
				Help:    "Pipeline duration per task type.",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			},
			[]string{"type"},
		)

		extractorOutcomesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wee_extractor_outcomes_total",
				Help: "Settled extractor calls, labeled by extractor and result code.",
			},
			[]string{"extractor", "code"},
		)

		storeErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wee_store_errors_total",
				Help: "Failed job state store calls, labeled by operation.",
			},
			[]string{"op"},
		)

		browserSessionsActive = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "wee_browser_sessions_active",
				Help: "Browser sessions currently held by jobs.",
			},
		)

		browserPagesOpenedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "wee_browser_pages_opened_total",
				Help: "Browser pages opened.",
			},
		)

		browserPagesClosedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "wee_browser_pages_closed_total",
				Help: "Browser pages closed.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationHisto = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

func ObserveDispatch(decision string) {
	Init()
	dispatchDecisionsTotal.WithLabelValues(decision).Inc()
}

func ObserveJob(taskType, status string, duration time.Duration) {
	Init()
	jobsTotal.WithLabelValues(taskType, status).Inc()
	jobDurationSeconds.WithLabelValues(taskType).Observe(duration.Seconds())
}

// ObserveExtractor records a settled extractor call. code is "ok" or the marker status.
func ObserveExtractor(extractor, code string) {
	Init()
	extractorOutcomesTotal.WithLabelValues(extractor, code).Inc()
}

// ObserveStoreError counts a failed job store call. op is "get" or "set".
func ObserveStoreError(op string) {
	Init()
	storeErrorsTotal.WithLabelValues(op).Inc()
}

func IncSessions() {
	Init()
	browserSessionsActive.Inc()
}

func DecSessions() {
	Init()
	browserSessionsActive.Dec()
}

func ObservePageOpened() {
	Init()
	browserPagesOpenedTotal.Inc()
}

func ObservePageClosed() {
	Init()
	browserPagesClosedTotal.Inc()
}

func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationHisto.WithLabelValues(method, route).Observe(duration.Seconds())
}
