package apply

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "jobapply-workers/internal/common/errors"
	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/models"
	"jobapply-workers/internal/pipeline"
	"jobapply-workers/internal/store"
	"jobapply-workers/internal/tracker"
	"jobapply-workers/pkg/registry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	steps   []string
	results chan *pipeline.BatchResult
}

func newRecorder() *recorder {
	return &recorder{results: make(chan *pipeline.BatchResult, 4)}
}

func (r *recorder) executor(id string, fail map[string]bool) pipeline.Executor {
	return pipeline.ExecutorFunc(func(ctx context.Context, req *pipeline.Request) error {
		r.mu.Lock()
		r.steps = append(r.steps, req.Item.ID+":"+id)
		r.mu.Unlock()
		if fail[req.Item.ID+":"+id] {
			return errors.New("boom")
		}
		return nil
	})
}

func (r *recorder) executors(fail map[string]bool) map[string]pipeline.Executor {
	out := make(map[string]pipeline.Executor)
	for id := range registry.KnownSteps {
		out[id] = r.executor(id, fail)
	}
	return out
}

func (r *recorder) OnBatchComplete(ctx context.Context, result *pipeline.BatchResult) {
	r.results <- result
}

func seed() *store.Memory {
	mem := store.NewMemory()
	mem.PutApplicant("u1", models.Applicant{ID: "u1", FullName: "Ada Lovelace", Email: "ada@example.com"})
	mem.PutJob(models.JobLead{ID: "j1", UserID: "u1", Title: "Engineer", Company: "Acme", CanApplyInApp: true, Status: models.StatusSaved})
	mem.PutJob(models.JobLead{ID: "j2", UserID: "u1", Title: "Analyst", Company: "Globex", CanApplyInApp: false, Status: models.StatusSaved})
	mem.PutJob(models.JobLead{ID: "j3", UserID: "u1", Title: "Designer", Company: "Initech", CanApplyInApp: true, Status: models.StatusSaved})
	mem.PutJob(models.JobLead{ID: "other", UserID: "u2", Title: "Ops", Company: "Umbrella", CanApplyInApp: true})
	return mem
}

func newService(t *testing.T, mem *store.Memory, rec *recorder, fail map[string]bool) *Service {
	t.Helper()
	trk := tracker.New(mem, mem, 0, logger.NewTestLogger(t))
	svc, err := NewService(Dependencies{
		Executors:  rec.executors(fail),
		Jobs:       mem,
		Applicants: mem,
		Hook:       trk,
		Reporter:   pipeline.BatchReporters{trk, rec},
		Logger:     logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return svc
}

func TestService_SpeedApply(t *testing.T) {
	mem := seed()
	rec := newRecorder()
	svc := newService(t, mem, rec, map[string]bool{"j3:upload": true})

	result, err := svc.SpeedApply(context.Background(), "u1", []string{"j1", "j2", "j3", "missing", "other", "j1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"j1"}, result.Successful)
	assert.Equal(t, []string{"j3"}, result.Failed)
	assert.ElementsMatch(t, []string{"missing", "other", "j2"}, result.Ineligible)
	for _, ex := range result.Exclusions {
		if ex.ItemID == "missing" {
			assert.Equal(t, string(apperrors.ErrCodeItemNotFound), ex.Code)
			assert.Equal(t, "Job lead not found", ex.Reason)
		}
	}
	assert.Empty(t, result.NotAttempted)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Completed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "upload", result.Failures[0].StepID)

	assert.Equal(t, []string{
		"j1:format", "j1:autofill", "j1:upload", "j1:submit", "j1:message",
		"j3:format", "j3:autofill", "j3:upload",
	}, rec.steps)

	j1, _ := mem.Job("j1")
	assert.Equal(t, models.StatusApplied, j1.Status)
	require.NotNil(t, j1.AppliedDate)
	j3, _ := mem.Job("j3")
	assert.Equal(t, models.StatusSaved, j3.Status)

	notes := mem.Notifications("u1")
	require.Len(t, notes, 1)
	assert.Equal(t, tracker.SummaryTitle, notes[0].Title)

	select {
	case reported := <-rec.results:
		assert.Same(t, result, reported)
	default:
		t.Fatal("result not reported")
	}
}

func TestService_WorkdayApply(t *testing.T) {
	mem := seed()
	rec := newRecorder()
	svc := newService(t, mem, rec, nil)

	result, err := svc.WorkdayApply(context.Background(), "u1", "j1")
	require.NoError(t, err)
	assert.Equal(t, pipeline.FlowWorkday, result.Flow)
	assert.Equal(t, []string{"j1"}, result.Successful)
	assert.Equal(t, []string{"j1:format", "j1:login", "j1:submit", "j1:confirm"}, rec.steps)

	// no summary notification outside the bulk flow
	assert.Empty(t, mem.Notifications("u1"))
}

func TestService_SetupErrors(t *testing.T) {
	mem := seed()
	svc := newService(t, mem, newRecorder(), nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		flow   string
		userID string
		ids    []string
		code   apperrors.ErrorCode
	}{
		{"unknown flow", "greenhouse", "u1", []string{"j1"}, apperrors.ErrCodeFlowNotFound},
		{"missing user", pipeline.FlowSpeedApply, "", []string{"j1"}, apperrors.ErrCodeInvalidInput},
		{"no ids", pipeline.FlowSpeedApply, "u1", nil, apperrors.ErrCodeInvalidInput},
		{"blank id", pipeline.FlowSpeedApply, "u1", []string{"j1", ""}, apperrors.ErrCodeInvalidInput},
		{"unknown applicant", pipeline.FlowSpeedApply, "nobody", []string{"j1"}, apperrors.ErrCodeApplicantNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Run(ctx, tt.flow, tt.userID, tt.ids, "")
			require.Error(t, err)
			assert.Equal(t, tt.code, apperrors.CodeOf(err))
		})
	}
}

func TestService_StartRunsInBackground(t *testing.T) {
	mem := seed()
	rec := newRecorder()
	svc := newService(t, mem, rec, nil)

	id, err := svc.Start(context.Background(), pipeline.FlowSpeedApply, "u1", []string{"j1", "j3"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	select {
	case result := <-rec.results:
		assert.Equal(t, id, result.BatchID)
		assert.Equal(t, []string{"j1", "j3"}, result.Successful)
	case <-time.After(2 * time.Second):
		t.Fatal("background batch did not finish")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, svc.Shutdown(ctx))
}

func TestService_ShutdownCancelsBackgroundBatch(t *testing.T) {
	mem := seed()
	rec := newRecorder()
	release := make(chan struct{})
	executors := rec.executors(nil)
	executors[registry.StepFormat] = pipeline.ExecutorFunc(func(ctx context.Context, req *pipeline.Request) error {
		close(release)
		<-ctx.Done()
		return ctx.Err()
	})

	svc, err := NewService(Dependencies{
		Executors:  executors,
		Jobs:       mem,
		Applicants: mem,
		Reporter:   rec,
		Logger:     logger.NewTestLogger(t),
	})
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), pipeline.FlowSpeedApply, "u1", []string{"j1", "j3"})
	require.NoError(t, err)
	<-release

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))

	result := <-rec.results
	assert.Equal(t, []string{"j1"}, result.Failed)
	assert.Equal(t, []string{"j3"}, result.NotAttempted)
	assert.True(t, result.Cancelled)
}

func TestBuildFlow(t *testing.T) {
	rec := newRecorder()
	spec, err := registry.Default().Flow("speed-apply")
	require.NoError(t, err)
	spec.Steps[1].Timeout = ""

	flow, err := BuildFlow(spec, rec.executors(nil), 45*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"format", "autofill", "upload", "submit", "message"}, flow.StepIDs())
	assert.Equal(t, 30*time.Second, flow.Steps[0].Timeout)
	assert.Equal(t, 45*time.Second, flow.Steps[1].Timeout)
	assert.Equal(t, "Sending message to hiring manager", flow.Steps[4].Label)

	executors := rec.executors(nil)
	delete(executors, registry.StepMessage)
	_, err = BuildFlow(spec, executors, 0)
	assert.ErrorContains(t, err, "no executor for step message")
}
