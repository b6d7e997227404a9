// Package apply loads the caller's records and runs them through the
// submission flows.
package apply

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	apperrors "jobapply-workers/internal/common/errors"
	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/common/observability"
	"jobapply-workers/internal/pipeline"
	"jobapply-workers/internal/store"
	"jobapply-workers/pkg/registry"

	"github.com/google/uuid"
)

type Dependencies struct {
	Registry      *registry.FlowRegistry
	Executors     map[string]pipeline.Executor
	Jobs          store.JobStore
	Applicants    store.ApplicantStore
	Hook          pipeline.SuccessHook
	Reporter      pipeline.BatchReporter
	Observer      pipeline.Observer
	Logger        logger.Logger
	Observability *observability.Observability
	StepTimeout   time.Duration
	NewID         func() string
}

// Service owns one coordinator per registered flow.
type Service struct {
	coordinators map[string]*pipeline.Coordinator
	jobs         store.JobStore
	applicants   store.ApplicantStore
	logger       logger.Logger
	newID        func() string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(deps Dependencies) (*Service, error) {
	if deps.Registry == nil {
		deps.Registry = registry.Default()
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}
	if deps.Jobs == nil || deps.Applicants == nil {
		return nil, fmt.Errorf("job and applicant stores are required")
	}

	coordinators := make(map[string]*pipeline.Coordinator, len(deps.Registry.Flows))
	for _, spec := range deps.Registry.Flows {
		flow, err := BuildFlow(spec, deps.Executors, deps.StepTimeout)
		if err != nil {
			return nil, err
		}
		coord, err := pipeline.NewCoordinator(pipeline.Dependencies{
			Flow:          flow,
			Hook:          deps.Hook,
			Reporter:      deps.Reporter,
			Observer:      deps.Observer,
			Logger:        deps.Logger,
			Observability: deps.Observability,
			NewID:         deps.NewID,
		})
		if err != nil {
			return nil, err
		}
		coordinators[spec.Name] = coord
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		coordinators: coordinators,
		jobs:         deps.Jobs,
		applicants:   deps.Applicants,
		logger:       logger.ForComponent(deps.Logger, "apply"),
		newID:        deps.NewID,
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// Flows returns the registered flow names in sorted order.
func (s *Service) Flows() []string {
	names := make([]string, 0, len(s.coordinators))
	for name := range s.coordinators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SpeedApply runs the bulk flow over the user's job leads and blocks until
// the batch is finished.
func (s *Service) SpeedApply(ctx context.Context, userID string, jobIDs []string) (*pipeline.BatchResult, error) {
	return s.Run(ctx, pipeline.FlowSpeedApply, userID, jobIDs, "")
}

// WorkdayApply runs the portal flow for a single job lead.
func (s *Service) WorkdayApply(ctx context.Context, userID, jobID string) (*pipeline.BatchResult, error) {
	return s.Run(ctx, pipeline.FlowWorkday, userID, []string{jobID}, "")
}

// Run executes one batch. Errors are returned only when the batch could not
// be set up; item failures are part of the result.
func (s *Service) Run(ctx context.Context, flow, userID string, jobIDs []string, batchID string) (*pipeline.BatchResult, error) {
	coord, batch, err := s.prepare(ctx, flow, userID, jobIDs, batchID)
	if err != nil {
		return nil, err
	}
	return coord.RunBatch(ctx, batch), nil
}

// Start sets the batch up and runs it in the background. The returned id
// keys progress and the final result.
func (s *Service) Start(ctx context.Context, flow, userID string, jobIDs []string) (string, error) {
	coord, batch, err := s.prepare(ctx, flow, userID, jobIDs, s.newID())
	if err != nil {
		return "", err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		coord.RunBatch(s.ctx, batch)
	}()

	s.logger.Info("batch scheduled", map[string]interface{}{
		"batchId": batch.ID,
		"flow":    flow,
		"items":   len(jobIDs),
	})
	return batch.ID, nil
}

// Shutdown cancels background batches and waits for them to report.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) prepare(ctx context.Context, flow, userID string, jobIDs []string, batchID string) (*pipeline.Coordinator, pipeline.Batch, error) {
	coord, ok := s.coordinators[flow]
	if !ok {
		return nil, pipeline.Batch{}, apperrors.NewFlowNotFoundError(flow)
	}
	if userID == "" {
		return nil, pipeline.Batch{}, apperrors.NewInvalidInputError("userId is required")
	}
	if len(jobIDs) == 0 {
		return nil, pipeline.Batch{}, apperrors.NewInvalidInputError("at least one job id is required")
	}
	for _, id := range jobIDs {
		if id == "" {
			return nil, pipeline.Batch{}, apperrors.NewInvalidInputError("job ids must not be empty")
		}
	}

	applicant, err := s.applicants.GetApplicant(ctx, userID)
	if err != nil {
		return nil, pipeline.Batch{}, err
	}
	jobs, missing, err := s.jobs.GetJobs(ctx, userID, jobIDs)
	if err != nil {
		return nil, pipeline.Batch{}, err
	}

	excluded := make([]pipeline.Exclusion, 0, len(missing))
	for _, id := range missing {
		excluded = append(excluded, pipeline.ExclusionFromError(id, apperrors.NewItemNotFoundError(id)))
	}
	if len(missing) > 0 {
		s.logger.Warn("unknown job ids excluded", map[string]interface{}{
			"userId":  userID,
			"missing": missing,
		})
	}

	return coord, pipeline.Batch{
		ID:        batchID,
		UserID:    userID,
		Applicant: applicant,
		Items:     jobs,
		Excluded:  excluded,
	}, nil
}
