package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	jobsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_created_total",
			Help:      "Jobs created, by type and origin (api or fanout).",
		},
		[]string{"type", "origin"},
	)

	jobsRateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_rate_limited_total",
			Help:      "Job creations rejected by the rate limiter, by type.",
		},
		[]string{"type"},
	)

	jobTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_transitions_total",
			Help:      "Job status transitions applied by the processor, by type and new status.",
		},
		[]string{"type", "status"},
	)

	jobHandlerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_handler_duration_seconds",
			Help:      "Handler execution time, by type and outcome.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"type", "outcome"},
	)

	jobsRecovered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_recovered_total",
			Help:      "Stale processing jobs moved by the watchdog, by new status.",
		},
		[]string{"status"},
	)
)

func init() {
	register(jobsCreated, jobsRateLimited, jobTransitions, jobHandlerDuration, jobsRecovered)
}

// IncJobCreated counts a created job.
func IncJobCreated(jobType, origin string) {
	jobsCreated.WithLabelValues(norm(jobType), norm(origin)).Inc()
}

// AddJobsCreated counts n created jobs.
func AddJobsCreated(jobType, origin string, n int) {
	jobsCreated.WithLabelValues(norm(jobType), norm(origin)).Add(float64(n))
}

// IncRateLimited counts a rejected creation.
func IncRateLimited(jobType string) {
	jobsRateLimited.WithLabelValues(norm(jobType)).Inc()
}

// IncTransition counts a status change.
func IncTransition(jobType, status string) {
	jobTransitions.WithLabelValues(norm(jobType), norm(status)).Inc()
}

// ObserveHandler records handler duration. outcome is success, retry or failed.
func ObserveHandler(jobType, outcome string, d time.Duration) {
	jobHandlerDuration.WithLabelValues(norm(jobType), norm(outcome)).Observe(d.Seconds())
}

// IncRecovered counts a watchdog recovery.
func IncRecovered(status string) {
	jobsRecovered.WithLabelValues(norm(status)).Inc()
}
