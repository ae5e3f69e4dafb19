// Copyright 2025 James Ross
package obs

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jrossdev/cogsim/internal/config"
)

var (
	JobsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobs_consumed_total",
		Help: "Total number of queued jobs claimed by a worker",
	})
	JobsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobs_completed_total",
		Help: "Total number of jobs that finished in the completed state",
	})
	JobsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobs_failed_total",
		Help: "Total number of adapter runs that returned status=failed",
	})
	JobsRetried = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobs_retried_total",
		Help: "Total number of jobs requeued for retry after a failed attempt",
	})
	JobsDeadLetter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jobs_dead_letter_total",
		Help: "Total number of jobs that exhausted their attempt budget",
	})
	JobProcessingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "job_processing_duration_seconds",
		Help:    "Histogram of adapter run durations",
		Buckets: prometheus.DefBuckets,
	})
	QueueDepth = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "queue_depth",
		Help: "Current count of queue records by state",
	}, []string{"state"})
	CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "circuit_breaker_state",
		Help: "0 Closed, 1 HalfOpen, 2 Open, per backend",
	}, []string{"backend"})
	CircuitBreakerTrips = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "circuit_breaker_trips_total",
		Help: "Count of times a backend's circuit breaker transitioned to Open",
	}, []string{"backend"})
	SweeperReclaimed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_reclaimed_total",
		Help: "Total number of stranded running records the sweeper returned to queued",
	})
	WorkerActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "worker_active",
		Help: "Number of active worker goroutines",
	})
	ExperimentsProposed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "experiments_proposed_total",
		Help: "Total number of RunResults produced by experiment iterations",
	}, []string{"domain", "status"})
)

func init() {
	prometheus.MustRegister(
		JobsConsumed, JobsCompleted, JobsFailed, JobsRetried, JobsDeadLetter,
		JobProcessingDuration, QueueDepth, CircuitBreakerState, CircuitBreakerTrips,
		SweeperReclaimed, WorkerActive, ExperimentsProposed,
	)
}

// StartMetricsServer exposes /metrics and returns a server for controlled
// shutdown. Retained alongside StartHTTPServer for callers that only want
// the metrics endpoint (e.g. a worker-only process).
func StartMetricsServer(cfg *config.Config) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Observability.MetricsPort), Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
