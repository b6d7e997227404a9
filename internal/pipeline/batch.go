package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "jobapply-workers/internal/common/errors"
	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/common/metrics"
	"jobapply-workers/internal/common/observability"
	"jobapply-workers/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// BatchReporter receives the finalized result exactly once per batch.
type BatchReporter interface {
	OnBatchComplete(ctx context.Context, result *BatchResult)
}

type BatchReporterFunc func(ctx context.Context, result *BatchResult)

func (f BatchReporterFunc) OnBatchComplete(ctx context.Context, result *BatchResult) {
	f(ctx, result)
}

// BatchReporters calls each reporter in order.
type BatchReporters []BatchReporter

func (r BatchReporters) OnBatchComplete(ctx context.Context, result *BatchResult) {
	for _, rep := range r {
		if rep != nil {
			rep.OnBatchComplete(ctx, result)
		}
	}
}

// Batch is the input of one run. Excluded holds identifiers the caller
// already rejected, for example unknown ids; they are reported as ineligible.
type Batch struct {
	ID        string
	UserID    string
	Applicant models.Applicant
	Items     []models.JobLead
	Excluded  []Exclusion
}

// Dependencies are injected into the coordinator. Only Flow is required.
type Dependencies struct {
	Flow          Flow
	Hook          SuccessHook
	Reporter      BatchReporter
	Observer      Observer
	Logger        logger.Logger
	Observability *observability.Observability
	Now           func() time.Time
	NewID         func() string
}

// Coordinator runs the eligible items of a batch one after another.
type Coordinator struct {
	deps   Dependencies
	logger logger.Logger
}

func NewCoordinator(deps Dependencies) (*Coordinator, error) {
	if err := deps.Flow.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flow: %w", err)
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	return &Coordinator{
		deps:   deps,
		logger: logger.ForComponent(deps.Logger, "coordinator"),
	}, nil
}

func (c *Coordinator) Flow() Flow {
	return c.deps.Flow
}

// RunBatch never fails as a whole. Item failures are recorded and the next
// item starts; a cancelled context stops before the next step or item and
// leaves the remaining eligible items in NotAttempted.
func (c *Coordinator) RunBatch(ctx context.Context, batch Batch) *BatchResult {
	if batch.ID == "" {
		batch.ID = c.deps.NewID()
	}
	flow := c.deps.Flow
	log := c.logger.WithFields(map[string]interface{}{
		"batchId": batch.ID,
		"flow":    flow.Name,
		"userId":  batch.UserID,
	})

	ctx, span := tracer.Start(ctx, "pipeline.batch", trace.WithAttributes(
		attribute.String("batch.id", batch.ID),
		attribute.String("flow", flow.Name),
		attribute.Int("batch.items", len(batch.Items)),
	))
	defer span.End()

	metrics.ActiveBatches.WithLabelValues(flow.Name).Inc()
	defer metrics.ActiveBatches.WithLabelValues(flow.Name).Dec()

	result := newBatchResult(batch.ID, flow.Name, batch.UserID, c.deps.Now())

	items, excluded := c.dedupe(batch, log)
	for _, ex := range excluded {
		result.exclude(ex)
	}
	eligible, ineligible := Partition(items)
	for _, item := range ineligible {
		result.exclude(ExclusionFromError(item.ID,
			apperrors.NewIneligibleItemError(item.ID, string(item.ApplicationMethod))))
	}
	result.Total = len(eligible)

	log.Info("batch started", map[string]interface{}{
		"eligible":   len(eligible),
		"ineligible": len(result.Ineligible),
	})

	for i, item := range eligible {
		if err := ctx.Err(); err != nil {
			for _, rest := range eligible[i:] {
				result.NotAttempted = append(result.NotAttempted, rest.ID)
			}
			result.Cancelled = true
			log.Warn("batch cancelled", map[string]interface{}{
				"notAttempted": len(result.NotAttempted),
				"error":        err,
			})
			break
		}

		req := &Request{
			BatchID:      batch.ID,
			SubmissionID: c.deps.NewID(),
			Flow:         flow.Name,
			UserID:       batch.UserID,
			Item:         item,
			Applicant:    batch.Applicant,
		}
		sub := NewItemSubmission(flow, req, SubmissionOptions{
			Observer: c.deps.Observer,
			Hook:     c.deps.Hook,
			Logger:   log,
			Now:      c.deps.Now,
			Position: Position{Index: i, Total: len(eligible), Completed: result.Completed},
		})

		outcome := sub.Run(ctx)
		result.Completed++
		if outcome == OutcomeSucceeded {
			result.Successful = append(result.Successful, item.ID)
			if number := req.Artifacts.Get(ArtifactConfirmationNumber); number != "" {
				result.Confirmations[item.ID] = number
			}
		} else {
			result.Failed = append(result.Failed, item.ID)
			result.Failures = append(result.Failures, failureOf(sub))
		}
		metrics.ItemsSubmitted.WithLabelValues(flow.Name, string(outcome)).Inc()

		notify(ctx, c.deps.Observer, Progress{
			BatchID:    batch.ID,
			Flow:       flow.Name,
			Kind:       ProgressItemFinished,
			ItemID:     item.ID,
			ItemIndex:  i,
			TotalItems: len(eligible),
			TotalSteps: len(flow.Steps),
			Outcome:    outcome,
			Completed:  result.Completed,
			Total:      result.Total,
			At:         c.deps.Now(),
		}, log)
	}

	result.FinishedAt = c.deps.Now()
	c.record(ctx, result)

	log.Info("batch finished", map[string]interface{}{
		"successful":   len(result.Successful),
		"failed":       len(result.Failed),
		"ineligible":   len(result.Ineligible),
		"notAttempted": len(result.NotAttempted),
		"durationMs":   result.Duration().Milliseconds(),
	})

	c.report(ctx, result, log)
	return result
}

// dedupe drops repeated identifiers, keeping the first occurrence. Caller
// exclusions win over items with the same identifier.
func (c *Coordinator) dedupe(batch Batch, log logger.Logger) ([]models.JobLead, []Exclusion) {
	seen := make(map[string]bool, len(batch.Items)+len(batch.Excluded))
	excluded := make([]Exclusion, 0, len(batch.Excluded))
	for _, ex := range batch.Excluded {
		if seen[ex.ItemID] {
			continue
		}
		seen[ex.ItemID] = true
		excluded = append(excluded, ex)
	}

	items := make([]models.JobLead, 0, len(batch.Items))
	for _, item := range batch.Items {
		if seen[item.ID] {
			log.Warn("duplicate item dropped", map[string]interface{}{"itemId": item.ID})
			continue
		}
		seen[item.ID] = true
		items = append(items, item)
	}
	return items, excluded
}

func (c *Coordinator) record(ctx context.Context, result *BatchResult) {
	flow := result.Flow
	metrics.BatchDuration.WithLabelValues(flow).Observe(result.Duration().Seconds())
	metrics.ItemsSubmitted.WithLabelValues(flow, "ineligible").Add(float64(len(result.Ineligible)))
	metrics.ItemsSubmitted.WithLabelValues(flow, "not_attempted").Add(float64(len(result.NotAttempted)))
	c.deps.Observability.RecordBatchProcessed(ctx, flow, result.SetSizes())
	c.deps.Observability.RecordBatchDuration(ctx, flow, result.Duration())
}

func (c *Coordinator) report(ctx context.Context, result *BatchResult, log logger.Logger) {
	if c.deps.Reporter == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("batch reporter panicked", map[string]interface{}{"panic": fmt.Sprint(r)})
		}
	}()
	c.deps.Reporter.OnBatchComplete(context.WithoutCancel(ctx), result)
}

func failureOf(sub *ItemSubmission) ItemFailure {
	f := ItemFailure{ItemID: sub.Item.ID, StepID: sub.FailedStep}
	err := sub.Err()
	if err == nil {
		f.Code = "INTERNAL_ERROR"
		return f
	}
	f.Message = err.Error()

	var se *apperrors.StandardError
	if errors.As(err, &se) {
		f.Code = string(se.Code)
		f.Retryable = se.Retryable
		if cause, ok := se.Metadata["causeCode"].(string); ok {
			f.CauseCode = cause
		}
		if se.Details != "" {
			f.Message = se.Details
		}
		return f
	}
	f.Code = "INTERNAL_ERROR"
	return f
}
