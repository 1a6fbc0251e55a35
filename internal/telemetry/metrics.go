// Package telemetry exposes the Prometheus metrics for the job system.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsProcessed counts finished jobs by queue and result
	// (completed, retried, dead).
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storyloom_jobs_processed_total",
		Help: "Count of processed jobs by queue and result.",
	}, []string{"queue", "result"})

	// JobDuration observes handler execution time by queue and job name.
	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storyloom_job_duration_seconds",
		Help:    "Handler execution time.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"queue", "job"})

	// QueueDepth tracks the number of ready jobs per queue.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "storyloom_queue_depth",
		Help: "Number of ready jobs per queue.",
	}, []string{"queue"})

	// SweeperReaped counts rows reaped by the cleanup sweepers.
	SweeperReaped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storyloom_sweeper_reaped_total",
		Help: "Rows reaped by cleanup sweepers, by sweep type.",
	}, []string{"sweep"})
)
