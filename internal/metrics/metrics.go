// Package metrics defines the Prometheus instrumentation shared by the
// scheduler, worker pool and HTTP layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExpressionsCompiled counts calendar expressions accepted by the parser.
	ExpressionsCompiled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calsched_expressions_compiled_total",
		Help: "Total number of calendar expressions successfully compiled.",
	})

	// ExpressionsRejected counts expressions the parser refused.
	ExpressionsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calsched_expressions_rejected_total",
		Help: "Total number of calendar expressions rejected by the parser.",
	})

	// OccurrencesComputed counts next-occurrence computations.
	OccurrencesComputed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calsched_occurrences_computed_total",
		Help: "Total number of schedule occurrences computed.",
	})

	// JobsDispatched counts jobs handed to the worker pool.
	JobsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calsched_jobs_dispatched_total",
		Help: "Total number of due jobs dispatched for delivery.",
	})

	// JobsCompleted counts successful webhook deliveries.
	JobsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calsched_jobs_completed_total",
		Help: "Total number of webhook deliveries that succeeded.",
	})

	// JobsFailed counts failed webhook delivery attempts.
	JobsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calsched_jobs_failed_total",
		Help: "Total number of webhook delivery attempts that failed.",
	})

	// JobsExhausted counts jobs whose schedule produced its final occurrence.
	JobsExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calsched_jobs_exhausted_total",
		Help: "Total number of jobs whose schedules ran out of occurrences.",
	})

	// WebhookDuration tracks end-to-end webhook request latency.
	WebhookDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "calsched_webhook_duration_seconds",
		Help:    "Duration of webhook delivery requests in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	// TasksInFlight gauges tasks currently being processed by workers.
	TasksInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "calsched_tasks_in_flight",
		Help: "Number of tasks currently being processed by the worker pool.",
	})

	// TasksDeadLettered counts tasks that exhausted their retries.
	TasksDeadLettered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "calsched_tasks_dead_lettered_total",
		Help: "Total number of tasks moved to the dead letter queue.",
	})

	// HTTPRequests counts API requests by method, path and status.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "calsched_http_requests_total",
		Help: "Total number of HTTP requests handled by the API server.",
	}, []string{"method", "path", "status"})
)
