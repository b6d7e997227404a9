package camunda

import (
	"context"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"
)

// JobHandler is implemented by every task handler in internal/workers.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job) error
}

// WorkerOptions tunes the job worker opened for one task type.
type WorkerOptions struct {
	MaxJobsActive int
	Timeout       time.Duration
	Concurrency   int
}

type CamundaWorker struct {
	worker   worker.JobWorker
	logger   *zap.Logger
	taskType string
}

// NewWorker opens a job worker for taskType. Batches run for minutes, so the
// job timeout must be at least the expected batch duration.
func NewWorker(client zbc.Client, taskType string, opts WorkerOptions, handler JobHandler, logger *zap.Logger) *CamundaWorker {
	if opts.MaxJobsActive <= 0 {
		opts.MaxJobsActive = 5
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}

	step := client.NewJobWorker().
		JobType(taskType).
		Handler(func(c worker.JobClient, job entities.Job) {
			if err := handler.Handle(c, job); err != nil {
				logger.Error("Handler returned error",
					zap.Error(err),
					zap.String("taskType", taskType),
					zap.Int64("jobKey", job.Key),
				)
			}
		}).
		MaxJobsActive(opts.MaxJobsActive).
		Concurrency(opts.Concurrency)
	if opts.Timeout > 0 {
		step = step.Timeout(opts.Timeout)
	}

	w := &CamundaWorker{worker: step.Open(), logger: logger, taskType: taskType}
	logger.Info("worker started",
		zap.String("taskType", taskType),
		zap.Int("maxJobsActive", opts.MaxJobsActive),
		zap.Duration("timeout", opts.Timeout),
	)
	return w
}

func (w *CamundaWorker) TaskType() string {
	return w.taskType
}

// Stop closes the worker and waits for in-flight handlers.
func (w *CamundaWorker) Stop(ctx context.Context) {
	w.logger.Info("stopping worker", zap.String("taskType", w.taskType))
	done := make(chan struct{})
	go func() {
		w.worker.Close()
		w.worker.AwaitClose()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("worker did not stop in time", zap.String("taskType", w.taskType))
	}
}
