package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var speedSteps = []string{"format", "autofill", "upload", "submit", "message"}

// callSpy records every executor call as "<item>:<step>" in call order.
type callSpy struct {
	mu    sync.Mutex
	calls []string
	// failures maps an item id to the step that returns an error.
	failures map[string]string
}

func newCallSpy() *callSpy {
	return &callSpy{failures: map[string]string{}}
}

func (s *callSpy) executor(stepID string) Executor {
	return ExecutorFunc(func(ctx context.Context, req *Request) error {
		s.mu.Lock()
		s.calls = append(s.calls, req.Item.ID+":"+stepID)
		fail := s.failures[req.Item.ID] == stepID
		s.mu.Unlock()
		if fail {
			return fmt.Errorf("%s rejected by portal", stepID)
		}
		req.Artifacts.Set(stepID+".done", "true")
		return nil
	})
}

func (s *callSpy) callsFor(itemID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, c := range s.calls {
		if len(c) > len(itemID) && c[:len(itemID)+1] == itemID+":" {
			out = append(out, c[len(itemID)+1:])
		}
	}
	return out
}

func (s *callSpy) items() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	seen := map[string]bool{}
	for _, c := range s.calls {
		for i := 0; i < len(c); i++ {
			if c[i] == ':' {
				id := c[:i]
				if !seen[id] {
					seen[id] = true
					out = append(out, id)
				}
				break
			}
		}
	}
	return out
}

func testFlow(spy *callSpy) Flow {
	flow := Flow{Name: FlowSpeedApply}
	for _, id := range speedSteps {
		flow.Steps = append(flow.Steps, StepDefinition{ID: id, Label: "Step " + id, Executor: spy.executor(id)})
	}
	return flow
}

// hookCounter counts post-success hook calls per item.
type hookCounter struct {
	mu    sync.Mutex
	calls map[string]int
}

func newHookCounter() *hookCounter {
	return &hookCounter{calls: map[string]int{}}
}

func (h *hookCounter) OnSuccess(ctx context.Context, item models.JobLead, at time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls[item.ID]++
	return nil
}

func (h *hookCounter) count(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls[id]
}

type progressRecorder struct {
	mu     sync.Mutex
	events []Progress
}

func (r *progressRecorder) OnProgress(ctx context.Context, p Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, p)
}

func (r *progressRecorder) ofKind(kind ProgressKind) []Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Progress
	for _, p := range r.events {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

type reportCounter struct {
	calls   int
	results []*BatchResult
}

func (r *reportCounter) OnBatchComplete(ctx context.Context, result *BatchResult) {
	r.calls++
	r.results = append(r.results, result)
}

func lead(id string, eligible bool) models.JobLead {
	return models.JobLead{ID: id, Title: "Engineer " + id, Company: "Acme", Status: models.StatusSaved, CanApplyInApp: eligible}
}

func newTestCoordinator(t *testing.T, spy *callSpy, hook SuccessHook, obs Observer, rep BatchReporter) *Coordinator {
	t.Helper()
	c, err := NewCoordinator(Dependencies{
		Flow:     testFlow(spy),
		Hook:     hook,
		Observer: obs,
		Reporter: rep,
		Logger:   logger.NewTestLogger(t),
	})
	require.NoError(t, err)
	return c
}

func ids(items []models.JobLead) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestPartition(t *testing.T) {
	items := []models.JobLead{lead("a", true), lead("b", false), lead("c", true), lead("d", false), lead("e", true)}

	eligible, ineligible := Partition(items)
	assert.Equal(t, []string{"a", "c", "e"}, ids(eligible))
	assert.Equal(t, []string{"b", "d"}, ids(ineligible))

	again, _ := Partition(items)
	assert.Equal(t, ids(eligible), ids(again))

	eligible, ineligible = Partition(nil)
	assert.Empty(t, eligible)
	assert.Empty(t, ineligible)
}

func TestStep_Transitions(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		from    StepStatus
		apply   func(s *Step) error
		want    StepStatus
		wantErr bool
	}{
		{"start pending", StepPending, func(s *Step) error { return s.Start(at) }, StepInProgress, false},
		{"complete in progress", StepInProgress, func(s *Step) error { return s.Complete(at) }, StepCompleted, false},
		{"fail in progress", StepInProgress, func(s *Step) error { return s.Fail(at, errors.New("x")) }, StepFailed, false},
		{"reset failed", StepFailed, func(s *Step) error { return s.Reset() }, StepPending, false},
		{"complete pending", StepPending, func(s *Step) error { return s.Complete(at) }, StepPending, true},
		{"fail pending", StepPending, func(s *Step) error { return s.Fail(at, nil) }, StepPending, true},
		{"start completed", StepCompleted, func(s *Step) error { return s.Start(at) }, StepCompleted, true},
		{"reset completed", StepCompleted, func(s *Step) error { return s.Reset() }, StepCompleted, true},
		{"complete failed", StepFailed, func(s *Step) error { return s.Complete(at) }, StepFailed, true},
		{"start in progress", StepInProgress, func(s *Step) error { return s.Start(at) }, StepInProgress, true},
		{"reset pending", StepPending, func(s *Step) error { return s.Reset() }, StepPending, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStep("upload", "Uploading resume")
			s.Status = tt.from
			err := tt.apply(s)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTransition)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, s.Status)
		})
	}
}

func TestStep_FailRecordsCause(t *testing.T) {
	s := NewStep("submit", "Submitting application")
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.Start(start))
	cause := errors.New("503 from portal")
	require.NoError(t, s.Fail(start.Add(2*time.Second), cause))

	assert.True(t, s.Terminal())
	assert.Equal(t, cause, s.Err())
	assert.Equal(t, 2*time.Second, s.Duration())
	assert.Equal(t, 1, s.Attempts)

	require.NoError(t, s.Reset())
	assert.Nil(t, s.Err())
	assert.Empty(t, s.Error)
	assert.False(t, s.Terminal())
}

func TestItemSubmission_AllStepsSucceed(t *testing.T) {
	spy := newCallSpy()
	hooks := newHookCounter()
	rec := &progressRecorder{}

	sub := NewItemSubmission(testFlow(spy), &Request{BatchID: "b1", SubmissionID: "s1", Item: lead("a", true)}, SubmissionOptions{
		Observer: rec,
		Hook:     hooks,
		Logger:   logger.NewTestLogger(t),
		Position: Position{Index: 0, Total: 1},
	})

	assert.Equal(t, OutcomeSucceeded, sub.Run(context.Background()))
	assert.Equal(t, speedSteps, spy.callsFor("a"))
	assert.Equal(t, 1, hooks.count("a"))
	for _, step := range sub.Steps {
		assert.Equal(t, StepCompleted, step.Status, step.ID)
	}

	finished := rec.ofKind(ProgressStepFinished)
	require.Len(t, finished, len(speedSteps))
	for i, p := range finished {
		assert.Equal(t, speedSteps[i], p.StepID)
		assert.Equal(t, "Step "+speedSteps[i], p.StepLabel)
		assert.Equal(t, StepCompleted, p.StepStatus)
	}

	// A second Run reports the outcome without re-running steps or the hook.
	assert.Equal(t, OutcomeSucceeded, sub.Run(context.Background()))
	assert.Len(t, spy.callsFor("a"), len(speedSteps))
	assert.Equal(t, 1, hooks.count("a"))
}

func TestItemSubmission_HaltsAtFailedStep(t *testing.T) {
	for k, failing := range speedSteps {
		t.Run(failing, func(t *testing.T) {
			spy := newCallSpy()
			spy.failures["a"] = failing
			hooks := newHookCounter()

			sub := NewItemSubmission(testFlow(spy), &Request{Item: lead("a", true)}, SubmissionOptions{Hook: hooks})

			assert.Equal(t, OutcomeFailed, sub.Run(context.Background()))
			assert.Equal(t, speedSteps[:k+1], spy.callsFor("a"))
			assert.Equal(t, failing, sub.FailedStep)
			assert.Equal(t, 0, hooks.count("a"))

			for i, step := range sub.Steps {
				switch {
				case i < k:
					assert.Equal(t, StepCompleted, step.Status)
				case i == k:
					assert.Equal(t, StepFailed, step.Status)
				default:
					assert.Equal(t, StepPending, step.Status)
				}
			}
			require.Error(t, sub.Err())
			assert.Contains(t, sub.Err().Error(), "STEP_FAILED")
		})
	}
}

func TestItemSubmission_Retry(t *testing.T) {
	spy := newCallSpy()
	spy.failures["a"] = "upload"
	hooks := newHookCounter()

	sub := NewItemSubmission(testFlow(spy), &Request{Item: lead("a", true)}, SubmissionOptions{Hook: hooks})
	require.Equal(t, OutcomeFailed, sub.Run(context.Background()))

	delete(spy.failures, "a")
	outcome, err := sub.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeSucceeded, outcome)
	assert.Equal(t, []string{"format", "autofill", "upload", "upload", "submit", "message"}, spy.callsFor("a"))
	assert.Equal(t, 2, sub.Steps[2].Attempts)
	assert.Equal(t, 1, hooks.count("a"))

	_, err = sub.Retry(context.Background())
	assert.ErrorIs(t, err, ErrNotRetryable)
	assert.Equal(t, 1, hooks.count("a"))
}

func TestItemSubmission_StepTimeout(t *testing.T) {
	flow := Flow{Name: FlowWorkday, Steps: []StepDefinition{{
		ID:      "login",
		Label:   "Login",
		Timeout: 20 * time.Millisecond,
		Executor: ExecutorFunc(func(ctx context.Context, req *Request) error {
			<-ctx.Done()
			return ctx.Err()
		}),
	}}}

	sub := NewItemSubmission(flow, &Request{Item: lead("w", true)}, SubmissionOptions{})
	assert.Equal(t, OutcomeFailed, sub.Run(context.Background()))

	f := failureOf(sub)
	assert.Equal(t, "STEP_FAILED", f.Code)
	assert.Equal(t, "STEP_TIMEOUT", f.CauseCode)
	assert.Equal(t, "login", f.StepID)
	assert.True(t, f.Retryable)
}

func TestItemSubmission_PanicAndHookError(t *testing.T) {
	flow := Flow{Name: "panicky", Steps: []StepDefinition{{
		ID: "format", Label: "Format",
		Executor: ExecutorFunc(func(ctx context.Context, req *Request) error { panic("nil resume") }),
	}}}
	sub := NewItemSubmission(flow, &Request{Item: lead("p", true)}, SubmissionOptions{})
	assert.Equal(t, OutcomeFailed, sub.Run(context.Background()))
	assert.Contains(t, failureOf(sub).Message, "panicked")

	okFlow := Flow{Name: "ok", Steps: []StepDefinition{{
		ID: "format", Label: "Format",
		Executor: ExecutorFunc(func(ctx context.Context, req *Request) error { return nil }),
	}}}
	calls := 0
	sub = NewItemSubmission(okFlow, &Request{Item: lead("h", true)}, SubmissionOptions{
		Hook: SuccessHookFunc(func(ctx context.Context, item models.JobLead, at time.Time) error {
			calls++
			return errors.New("store offline")
		}),
	})
	assert.Equal(t, OutcomeSucceeded, sub.Run(context.Background()))
	assert.Equal(t, 1, calls)
	assert.EqualError(t, sub.HookError(), "store offline")
}

func TestCoordinator_AllSucceed(t *testing.T) {
	spy := newCallSpy()
	hooks := newHookCounter()
	rec := &progressRecorder{}
	rep := &reportCounter{}
	c := newTestCoordinator(t, spy, hooks, rec, rep)

	result := c.RunBatch(context.Background(), Batch{ID: "batch-1", Items: []models.JobLead{lead("A", true), lead("B", true), lead("C", true)}})

	assert.Equal(t, []string{"A", "B", "C"}, result.Successful)
	assert.Empty(t, result.Failed)
	assert.Empty(t, result.Ineligible)
	completed, total := result.Progress()
	assert.Equal(t, 3, completed)
	assert.Equal(t, 3, total)
	assert.True(t, result.Done())

	for _, id := range []string{"A", "B", "C"} {
		assert.Equal(t, 1, hooks.count(id))
	}
	assert.Equal(t, 1, rep.calls)
	assert.Same(t, result, rep.results[0])

	itemEvents := rec.ofKind(ProgressItemFinished)
	require.Len(t, itemEvents, 3)
	for i, p := range itemEvents {
		assert.Equal(t, []string{"A", "B", "C"}[i], p.ItemID)
		assert.Equal(t, i, p.ItemIndex)
		assert.Equal(t, i+1, p.Completed)
		assert.Equal(t, 3, p.Total)
	}
}

func TestCoordinator_ProgressNeverInterleaves(t *testing.T) {
	spy := newCallSpy()
	rec := &progressRecorder{}
	c := newTestCoordinator(t, spy, nil, rec, nil)

	c.RunBatch(context.Background(), Batch{Items: []models.JobLead{lead("A", true), lead("B", true), lead("C", true)}})

	// Every event of item N precedes every event of item N+1, and each
	// item's events end with its item-finished event.
	var order []string
	for _, p := range rec.events {
		if len(order) == 0 || order[len(order)-1] != p.ItemID {
			order = append(order, p.ItemID)
		}
	}
	assert.Equal(t, []string{"A", "B", "C"}, order)

	perItem := 2*len(speedSteps) + 1
	require.Len(t, rec.events, 3*perItem)
	for i := 0; i < 3; i++ {
		assert.Equal(t, ProgressItemFinished, rec.events[(i+1)*perItem-1].Kind)
	}
	assert.Equal(t, []string{"A", "B", "C"}, spy.items())
}

func TestCoordinator_SecondItemFailsAtSecondStep(t *testing.T) {
	spy := newCallSpy()
	spy.failures["B"] = "autofill"
	hooks := newHookCounter()
	c := newTestCoordinator(t, spy, hooks, nil, nil)

	result := c.RunBatch(context.Background(), Batch{Items: []models.JobLead{lead("A", true), lead("B", true)}})

	assert.Equal(t, []string{"A"}, result.Successful)
	assert.Equal(t, []string{"B"}, result.Failed)
	assert.Equal(t, 1, hooks.count("A"))
	assert.Equal(t, 0, hooks.count("B"))
	assert.Equal(t, []string{"format", "autofill"}, spy.callsFor("B"))

	require.Len(t, result.Failures, 1)
	assert.Equal(t, "B", result.Failures[0].ItemID)
	assert.Equal(t, "autofill", result.Failures[0].StepID)
	assert.Equal(t, "STEP_FAILED", result.Failures[0].Code)
	assert.Contains(t, result.Failures[0].Message, "autofill rejected by portal")
	assert.Equal(t, 2, result.Completed)
}

func TestCoordinator_IneligibleNeverEnterPipeline(t *testing.T) {
	spy := newCallSpy()
	hooks := newHookCounter()
	c := newTestCoordinator(t, spy, hooks, nil, nil)

	items := []models.JobLead{lead("1", true), lead("2", false), lead("3", true), lead("4", false), lead("5", true)}
	result := c.RunBatch(context.Background(), Batch{Items: items})

	assert.Equal(t, []string{"1", "3", "5"}, spy.items())
	assert.ElementsMatch(t, []string{"2", "4"}, result.Ineligible)
	assert.Equal(t, []string{"1", "3", "5"}, result.Successful)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 0, hooks.count("2"))
	assert.Equal(t, 0, hooks.count("4"))
	for _, ex := range result.Exclusions {
		assert.Equal(t, "INELIGIBLE_ITEM", ex.Code)
		assert.Equal(t, "Item requires external application", ex.Reason)
	}
}

// Every combination of eligibility and failure for four items must account
// for each identifier exactly once.
func TestCoordinator_PartitionInvariant(t *testing.T) {
	const n = 4
	for mask := 0; mask < 1<<(2*n); mask++ {
		spy := newCallSpy()
		var items []models.JobLead
		for i := 0; i < n; i++ {
			id := fmt.Sprintf("job-%d", i)
			eligible := mask&(1<<i) != 0
			if mask&(1<<(n+i)) != 0 {
				spy.failures[id] = speedSteps[i%len(speedSteps)]
			}
			items = append(items, lead(id, eligible))
		}

		hooks := newHookCounter()
		c := newTestCoordinator(t, spy, hooks, nil, nil)
		result := c.RunBatch(context.Background(), Batch{Items: items})

		require.Equal(t, n, result.Accounted(), "mask %b", mask)
		seen := map[string]int{}
		for _, set := range [][]string{result.Successful, result.Failed, result.Ineligible, result.NotAttempted} {
			for _, id := range set {
				seen[id]++
			}
		}
		for _, item := range items {
			require.Equal(t, 1, seen[item.ID], "mask %b item %s", mask, item.ID)
			if !item.CanApplyInApp {
				assert.Contains(t, result.Ineligible, item.ID)
				assert.Empty(t, spy.callsFor(item.ID))
			}
		}
		for _, id := range result.Successful {
			assert.Equal(t, 1, hooks.count(id))
		}
		for _, id := range result.Failed {
			assert.Equal(t, 0, hooks.count(id))
		}
	}
}

func TestCoordinator_Cancellation(t *testing.T) {
	spy := newCallSpy()
	rep := &reportCounter{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hook := SuccessHookFunc(func(hctx context.Context, item models.JobLead, at time.Time) error {
		if item.ID == "A" {
			cancel()
		}
		return hctx.Err()
	})
	c := newTestCoordinator(t, spy, hook, nil, rep)

	result := c.RunBatch(ctx, Batch{Items: []models.JobLead{lead("A", true), lead("B", true), lead("C", true), lead("X", false)}})

	assert.Equal(t, []string{"A"}, result.Successful)
	assert.Empty(t, result.Failed)
	assert.Equal(t, []string{"B", "C"}, result.NotAttempted)
	assert.Equal(t, []string{"X"}, result.Ineligible)
	assert.True(t, result.Cancelled)
	assert.False(t, result.Done())
	assert.Equal(t, 1, result.Completed)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 4, result.Accounted())
	assert.Empty(t, spy.callsFor("B"))
	assert.Equal(t, 1, rep.calls)
}

func TestCoordinator_CancelBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var ran []string
	flow := Flow{Name: FlowWorkday}
	for _, id := range []string{"format", "login", "submit", "confirm"} {
		id := id
		flow.Steps = append(flow.Steps, StepDefinition{ID: id, Label: id, Executor: ExecutorFunc(func(ctx context.Context, req *Request) error {
			ran = append(ran, id)
			if id == "login" {
				cancel()
			}
			return nil
		})})
	}
	c, err := NewCoordinator(Dependencies{Flow: flow})
	require.NoError(t, err)

	result := c.RunBatch(ctx, Batch{Items: []models.JobLead{lead("W", true), lead("Z", true)}})

	assert.Equal(t, []string{"format", "login"}, ran)
	assert.Equal(t, []string{"W"}, result.Failed)
	assert.Equal(t, []string{"Z"}, result.NotAttempted)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "SUBMISSION_CANCELLED", result.Failures[0].Code)
	assert.Equal(t, "submit", result.Failures[0].StepID)
}

func TestCoordinator_ProgressAfterCancelGetsLiveContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	flow := Flow{Name: FlowWorkday, Steps: []StepDefinition{
		{ID: "format", Label: "Format", Executor: ExecutorFunc(func(ctx context.Context, req *Request) error {
			cancel()
			return nil
		})},
		{ID: "submit", Label: "Submit", Executor: ExecutorFunc(func(ctx context.Context, req *Request) error { return nil })},
	}}

	var mu sync.Mutex
	var afterCancel []ProgressKind
	obs := ObserverFunc(func(octx context.Context, p Progress) {
		if ctx.Err() == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		afterCancel = append(afterCancel, p.Kind)
		assert.NoError(t, octx.Err(), "observer context for %s", p.Kind)
	})
	c, err := NewCoordinator(Dependencies{Flow: flow, Observer: obs, Logger: logger.NewTestLogger(t)})
	require.NoError(t, err)

	result := c.RunBatch(ctx, Batch{Items: []models.JobLead{lead("W", true)}})

	assert.Equal(t, []string{"W"}, result.Failed)
	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, afterCancel, ProgressItemFinished)
}

func TestCoordinator_ExclusionsAndDuplicates(t *testing.T) {
	spy := newCallSpy()
	c := newTestCoordinator(t, spy, nil, nil, nil)

	result := c.RunBatch(context.Background(), Batch{
		Items:    []models.JobLead{lead("A", true), lead("A", true), lead("B", true)},
		Excluded: []Exclusion{{ItemID: "gone", Code: "ITEM_NOT_FOUND", Reason: "unknown job id"}, {ItemID: "gone", Code: "ITEM_NOT_FOUND"}},
	})

	assert.Equal(t, []string{"A", "B"}, result.Successful)
	assert.Equal(t, []string{"gone"}, result.Ineligible)
	assert.Equal(t, 3, result.Accounted())
	assert.Equal(t, []string{"A", "B"}, spy.items())
}

func TestCoordinator_ObserverPanicIsContained(t *testing.T) {
	spy := newCallSpy()
	obs := ObserverFunc(func(ctx context.Context, p Progress) { panic("render failed") })
	c := newTestCoordinator(t, spy, nil, obs, nil)

	result := c.RunBatch(context.Background(), Batch{Items: []models.JobLead{lead("A", true), lead("B", true)}})
	assert.Equal(t, []string{"A", "B"}, result.Successful)
}

func TestCoordinator_EmptyBatch(t *testing.T) {
	rep := &reportCounter{}
	c := newTestCoordinator(t, newCallSpy(), nil, nil, rep)

	result := c.RunBatch(context.Background(), Batch{})
	assert.NotEmpty(t, result.BatchID)
	assert.True(t, result.Done())
	assert.Equal(t, 0, result.Accounted())
	assert.Equal(t, 1, rep.calls)

	vars, err := result.ToVariables()
	require.NoError(t, err)
	assert.Equal(t, []interface{}{}, vars["successful"])
}

func TestCoordinator_CollectsConfirmations(t *testing.T) {
	spy := newCallSpy()
	spy.failures["j2"] = "submit"
	flow := testFlow(spy)
	flow.Steps = append(flow.Steps, StepDefinition{
		ID:    "confirm",
		Label: "Confirmation",
		Executor: ExecutorFunc(func(ctx context.Context, req *Request) error {
			req.Artifacts.Set(ArtifactConfirmationNumber, "WD-"+req.Item.ID)
			return nil
		}),
	})
	c, err := NewCoordinator(Dependencies{Flow: flow, Logger: logger.NewTestLogger(t)})
	require.NoError(t, err)

	result := c.RunBatch(context.Background(), Batch{Items: []models.JobLead{lead("j1", true), lead("j2", true)}})
	assert.Equal(t, map[string]string{"j1": "WD-j1"}, result.Confirmations)
}

func TestNewCoordinator_RejectsInvalidFlow(t *testing.T) {
	noop := ExecutorFunc(func(ctx context.Context, req *Request) error { return nil })
	tests := []struct {
		name string
		flow Flow
	}{
		{"no name", Flow{Steps: []StepDefinition{{ID: "a", Executor: noop}}}},
		{"no steps", Flow{Name: "x"}},
		{"duplicate", Flow{Name: "x", Steps: []StepDefinition{{ID: "a", Executor: noop}, {ID: "a", Executor: noop}}}},
		{"no executor", Flow{Name: "x", Steps: []StepDefinition{{ID: "a"}}}},
		{"bad id", Flow{Name: "x", Steps: []StepDefinition{{ID: "Upload", Executor: noop}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCoordinator(Dependencies{Flow: tt.flow})
			assert.Error(t, err)
		})
	}
}

func TestProgress_Percent(t *testing.T) {
	assert.Equal(t, float64(100), Progress{}.Percent())
	p := Progress{Kind: ProgressStepFinished, Completed: 1, Total: 2, StepIndex: 1, TotalSteps: 4}
	assert.InDelta(t, 75.0, p.Percent(), 0.001)
	p = Progress{Kind: ProgressItemFinished, Completed: 2, Total: 2, TotalSteps: 4}
	assert.InDelta(t, 100.0, p.Percent(), 0.001)
}
