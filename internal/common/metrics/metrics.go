package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	ItemsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apply_items_total",
			Help: "Items processed per flow by outcome (succeeded, failed, ineligible, not_attempted)",
		},
		[]string{"flow", "outcome"},
	)

	StepsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "apply_steps_total",
			Help: "Submission steps that reached a terminal status",
		},
		[]string{"flow", "step", "status"},
	)

	StepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apply_step_duration_seconds",
			Help:    "Duration of a single submission step",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"flow", "step"},
	)

	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "apply_batch_duration_seconds",
			Help:    "Wall time of a batch run",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"flow"},
	)

	ActiveBatches = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "apply_batches_active",
			Help: "Batches currently running",
		},
		[]string{"flow"},
	)
)
