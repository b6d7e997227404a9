package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "jobapply-workers/internal/common/errors"
	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/common/metrics"
	"jobapply-workers/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Outcome string

const (
	OutcomeNotStarted Outcome = "not_started"
	OutcomeInProgress Outcome = "in_progress"
	OutcomeSucceeded  Outcome = "succeeded"
	OutcomeFailed     Outcome = "failed"
)

var ErrNotRetryable = errors.New("SUBMISSION_NOT_RETRYABLE")

var tracer = otel.Tracer("jobapply-workers/pipeline")

// SuccessHook is the caller's side effect for an item whose steps all
// completed. It is invoked at most once per ItemSubmission.
type SuccessHook interface {
	OnSuccess(ctx context.Context, item models.JobLead, at time.Time) error
}

type SuccessHookFunc func(ctx context.Context, item models.JobLead, at time.Time) error

func (f SuccessHookFunc) OnSuccess(ctx context.Context, item models.JobLead, at time.Time) error {
	return f(ctx, item, at)
}

// Position places a submission inside its batch for progress reporting.
type Position struct {
	Index     int
	Total     int
	Completed int
}

type SubmissionOptions struct {
	Observer Observer
	Hook     SuccessHook
	Logger   logger.Logger
	Now      func() time.Time
	Position Position
}

// ItemSubmission drives one item through the steps of a flow.
type ItemSubmission struct {
	ID         string         `json:"id"`
	Item       models.JobLead `json:"item"`
	Steps      []*Step        `json:"steps"`
	Outcome    Outcome        `json:"outcome"`
	FailedStep string         `json:"failedStep,omitempty"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`

	flow      Flow
	req       *Request
	opts      SubmissionOptions
	logger    logger.Logger
	err       error
	hookFired bool
	hookErr   error
}

func NewItemSubmission(flow Flow, req *Request, opts SubmissionOptions) *ItemSubmission {
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if req.Artifacts == nil {
		req.Artifacts = Artifacts{}
	}
	if req.Flow == "" {
		req.Flow = flow.Name
	}

	return &ItemSubmission{
		ID:      req.SubmissionID,
		Item:    req.Item,
		Steps:   flow.newSteps(),
		Outcome: OutcomeNotStarted,
		flow:    flow,
		req:     req,
		opts:    opts,
		logger: opts.Logger.WithFields(map[string]interface{}{
			"itemId":       req.Item.ID,
			"submissionId": req.SubmissionID,
		}),
	}
}

// Run executes the steps in order and stops at the first failure. Calling
// Run again after it returned only reports the outcome.
func (s *ItemSubmission) Run(ctx context.Context) Outcome {
	if s.Outcome != OutcomeNotStarted {
		return s.Outcome
	}
	s.StartedAt = s.opts.Now()
	return s.drive(ctx, 0)
}

// Retry resumes a failed submission. The failed step is reset to Pending and
// execution continues from it; completed steps are not repeated.
func (s *ItemSubmission) Retry(ctx context.Context) (Outcome, error) {
	if s.Outcome != OutcomeFailed {
		return s.Outcome, fmt.Errorf("%w: outcome is %s", ErrNotRetryable, s.Outcome)
	}

	from := len(s.Steps)
	for i, step := range s.Steps {
		if step.Status == StepFailed {
			if err := step.Reset(); err != nil {
				return s.Outcome, err
			}
			from = i
			break
		}
		if step.Status == StepPending {
			from = i
			break
		}
	}

	s.err = nil
	s.FailedStep = ""
	s.logger.Info("retrying submission", map[string]interface{}{"fromStep": from})
	return s.drive(ctx, from), nil
}

func (s *ItemSubmission) Err() error {
	return s.err
}

// HookError is the error returned by the success hook, if any.
func (s *ItemSubmission) HookError() error {
	return s.hookErr
}

func (s *ItemSubmission) drive(ctx context.Context, from int) Outcome {
	s.Outcome = OutcomeInProgress

	ctx, span := tracer.Start(ctx, "pipeline.item", trace.WithAttributes(
		attribute.String("batch.id", s.req.BatchID),
		attribute.String("flow", s.flow.Name),
		attribute.String("item.id", s.Item.ID),
		attribute.Int("item.index", s.opts.Position.Index),
	))
	defer span.End()

	for i := from; i < len(s.Steps); i++ {
		if err := ctx.Err(); err != nil {
			s.fail(span, s.Steps[i].ID, apperrors.NewCancelledError(err))
			return s.Outcome
		}
		if err := s.runStep(ctx, i); err != nil {
			s.fail(span, s.Steps[i].ID, err)
			return s.Outcome
		}
	}

	s.Outcome = OutcomeSucceeded
	s.FinishedAt = s.opts.Now()
	s.logger.Info("submission succeeded", map[string]interface{}{
		"durationMs": s.FinishedAt.Sub(s.StartedAt).Milliseconds(),
	})
	s.fireHook(ctx)
	return s.Outcome
}

func (s *ItemSubmission) runStep(ctx context.Context, i int) error {
	def := s.flow.Steps[i]
	step := s.Steps[i]

	stepCtx, cancel := ctx, context.CancelFunc(func() {})
	if def.Timeout > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, def.Timeout)
	}
	defer cancel()

	stepCtx, span := tracer.Start(stepCtx, "pipeline.step", trace.WithAttributes(
		attribute.String("step.id", def.ID),
		attribute.String("step.label", def.Label),
	))
	defer span.End()

	if err := step.Start(s.opts.Now()); err != nil {
		return err
	}
	s.emit(ctx, ProgressStepStarted, i)

	err := s.invoke(stepCtx, def)
	if err != nil && def.Timeout > 0 && errors.Is(stepCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = apperrors.NewStepTimeoutError(def.ID, def.Timeout)
	}

	if err != nil {
		failure := apperrors.NewStepFailedError(def.ID, err)
		_ = step.Fail(s.opts.Now(), failure)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.observeStep(step)
		s.logger.Warn("step failed", map[string]interface{}{
			"stepId": def.ID,
			"error":  err,
		})
		s.emit(ctx, ProgressStepFinished, i)
		return failure
	}

	_ = step.Complete(s.opts.Now())
	s.observeStep(step)
	s.logger.Debug("step completed", map[string]interface{}{
		"stepId":     def.ID,
		"durationMs": step.Duration().Milliseconds(),
	})
	s.emit(ctx, ProgressStepFinished, i)
	return nil
}

func (s *ItemSubmission) invoke(ctx context.Context, def StepDefinition) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("step %s panicked: %v", def.ID, r)
		}
	}()
	return def.Executor.Execute(ctx, s.req)
}

func (s *ItemSubmission) observeStep(step *Step) {
	metrics.StepsExecuted.WithLabelValues(s.flow.Name, step.ID, string(step.Status)).Inc()
	metrics.StepDuration.WithLabelValues(s.flow.Name, step.ID).Observe(step.Duration().Seconds())
}

func (s *ItemSubmission) fail(span trace.Span, stepID string, err error) {
	s.Outcome = OutcomeFailed
	s.FailedStep = stepID
	s.err = err
	s.FinishedAt = s.opts.Now()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.logger.Warn("submission failed", map[string]interface{}{
		"stepId": stepID,
		"error":  err,
	})
}

func (s *ItemSubmission) fireHook(ctx context.Context) {
	if s.hookFired {
		return
	}
	s.hookFired = true
	if s.opts.Hook == nil {
		return
	}

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("success hook panicked: %v", r)
			}
		}()
		return s.opts.Hook.OnSuccess(context.WithoutCancel(ctx), s.Item, s.FinishedAt)
	}()
	if err != nil {
		s.hookErr = err
		s.logger.Error("post-success hook failed", map[string]interface{}{"error": err})
	}
}

func (s *ItemSubmission) emit(ctx context.Context, kind ProgressKind, stepIndex int) {
	step := s.Steps[stepIndex]
	notify(ctx, s.opts.Observer, Progress{
		BatchID:    s.req.BatchID,
		Flow:       s.flow.Name,
		Kind:       kind,
		ItemID:     s.Item.ID,
		ItemIndex:  s.opts.Position.Index,
		TotalItems: s.opts.Position.Total,
		StepID:     step.ID,
		StepLabel:  step.Label,
		StepIndex:  stepIndex,
		TotalSteps: len(s.Steps),
		StepStatus: step.Status,
		Outcome:    s.Outcome,
		Completed:  s.opts.Position.Completed,
		Total:      s.opts.Position.Total,
		At:         s.opts.Now(),
	}, s.logger)
}

// notify shields the pipeline from observer panics. Events still go out
// after the batch context is cancelled.
func notify(ctx context.Context, obs Observer, p Progress, log logger.Logger) {
	if obs == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Error("progress observer panicked", map[string]interface{}{
				"kind":  string(p.Kind),
				"panic": fmt.Sprint(r),
			})
		}
	}()
	obs.OnProgress(context.WithoutCancel(ctx), p)
}
