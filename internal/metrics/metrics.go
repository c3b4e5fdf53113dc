// Package metrics exposes Prometheus collectors for the ingestion
// pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	tasksPublishedTotal   *prometheus.CounterVec
	publishFailuresTotal  prometheus.Counter
	tasksConsumedTotal    *prometheus.CounterVec
	tasksAckedTotal       *prometheus.CounterVec
	tasksRejectedTotal    *prometheus.CounterVec
	applicantsUpserted    prometheus.Counter
	watermarkAdvances     *prometheus.CounterVec
	taskDurationSeconds   *prometheus.HistogramVec
	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDurationMs *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. It is safe to call
// multiple times; the Observe helpers call it themselves.
func Init() {
	once.Do(func() {
		tasksPublishedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_tasks_published_total",
				Help: "Total task messages accepted by the broker, labeled by kind.",
			},
			[]string{"kind"},
		)

		publishFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pipeline_publish_failures_total",
				Help: "Total publish attempts that failed before broker acceptance.",
			},
		)

		tasksConsumedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_tasks_consumed_total",
				Help: "Total task messages received by the worker, labeled by kind.",
			},
			[]string{"kind"},
		)

		tasksAckedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_tasks_acked_total",
				Help: "Total task messages committed and acked, labeled by kind.",
			},
			[]string{"kind"},
		)

		tasksRejectedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_tasks_rejected_total",
				Help: "Total task messages rejected without requeue, labeled by reason.",
			},
			[]string{"reason"},
		)

		applicantsUpserted = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "pipeline_applicants_upserted_total",
				Help: "Total applicant rows actually inserted (conflicts excluded).",
			},
		)

		watermarkAdvances = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_watermark_advances_total",
				Help: "Total watermark updates, labeled by source.",
			},
			[]string{"source"},
		)

		taskDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_task_duration_seconds",
				Help:    "Histogram of end-to-end task handling latency, labeled by kind.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 60},
			},
			[]string{"kind"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pipeline_http_requests_total",
				Help: "Total HTTP requests to the trigger API, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationMs = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pipeline_http_request_duration_seconds",
				Help:    "Histogram of trigger API request latencies, labeled by route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler exposing the Prometheus registry.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObservePublish increments the published-task counter.
func ObservePublish(kind string) {
	Init()
	tasksPublishedTotal.WithLabelValues(kind).Inc()
}

// ObservePublishFailure increments the publish failure counter.
func ObservePublishFailure() {
	Init()
	publishFailuresTotal.Inc()
}

// ObserveTaskConsumed increments the consumed-task counter.
func ObserveTaskConsumed(kind string) {
	Init()
	tasksConsumedTotal.WithLabelValues(kind).Inc()
}

// ObserveTaskAcked increments the acked-task counter.
func ObserveTaskAcked(kind string) {
	Init()
	tasksAckedTotal.WithLabelValues(kind).Inc()
}

// ObserveTaskRejected increments the rejected-task counter for a reason.
func ObserveTaskRejected(reason string) {
	Init()
	tasksRejectedTotal.WithLabelValues(reason).Inc()
}

// ObserveRowsUpserted adds freshly inserted applicant rows.
func ObserveRowsUpserted(n int64) {
	Init()
	if n > 0 {
		applicantsUpserted.Add(float64(n))
	}
}

// ObserveWatermarkAdvance counts a watermark update for a source.
func ObserveWatermarkAdvance(source string) {
	Init()
	watermarkAdvances.WithLabelValues(source).Inc()
}

// ObserveTaskDuration records the handling latency for a task kind.
func ObserveTaskDuration(kind string, d time.Duration) {
	Init()
	taskDurationSeconds.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveHTTPRequest records one trigger API request.
func ObserveHTTPRequest(method, route string, code int, d time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, httpCode(code)).Inc()
	httpRequestDurationMs.WithLabelValues(method, route).Observe(d.Seconds())
}

func httpCode(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
