// Package tracker is the owner of the job leads a batch works on. It applies
// the status change for each successful submission and tells the user how
// the batch went.
package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/models"
	"jobapply-workers/internal/pipeline"
	"jobapply-workers/internal/store"

	"github.com/google/uuid"
)

const (
	DefaultFollowUpAfter = 7 * 24 * time.Hour
	SummaryTitle         = "Bulk Application Complete"
)

type Tracker struct {
	jobs          store.JobStore
	notifications store.NotificationStore
	followUpAfter time.Duration
	newID         func() string
	logger        logger.Logger
}

func New(jobs store.JobStore, notifications store.NotificationStore, followUpAfter time.Duration, log logger.Logger) *Tracker {
	if followUpAfter <= 0 {
		followUpAfter = DefaultFollowUpAfter
	}
	return &Tracker{
		jobs:          jobs,
		notifications: notifications,
		followUpAfter: followUpAfter,
		newID:         uuid.NewString,
		logger:        logger.ForComponent(log, "tracker"),
	}
}

// OnSuccess marks the lead applied at the given time and schedules the
// follow up.
func (t *Tracker) OnSuccess(ctx context.Context, item models.JobLead, at time.Time) error {
	item.MarkApplied(at, t.followUpAfter)
	if err := t.jobs.UpdateJob(ctx, item); err != nil {
		return fmt.Errorf("mark %s applied: %w", item.ID, err)
	}
	t.logger.Info("job marked applied", map[string]interface{}{
		"jobId":        item.ID,
		"followUpDate": item.FollowUpDate,
	})
	return nil
}

// OnBatchComplete adds the summary notification for bulk runs that applied
// to at least one job.
func (t *Tracker) OnBatchComplete(ctx context.Context, result *pipeline.BatchResult) {
	if result.Flow != pipeline.FlowSpeedApply || len(result.Successful) == 0 {
		return
	}
	n := models.Notification{
		ID:      t.newID(),
		UserID:  result.UserID,
		Type:    models.NotificationAISuggestion,
		Title:   SummaryTitle,
		Message: SummaryMessage(len(result.Successful), len(result.Ineligible), len(result.Failed)),
		Date:    result.FinishedAt,
	}
	if err := t.notifications.AddNotification(ctx, n); err != nil {
		t.logger.Error("summary notification not stored", map[string]interface{}{
			"batchId": result.BatchID,
			"error":   err,
		})
	}
}

// SummaryMessage renders the text of the batch summary notification.
func SummaryMessage(successful, external, failed int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Successfully applied to %s.", jobs(successful))
	if external > 0 {
		fmt.Fprintf(&b, " %s require external application.", jobs(external))
	}
	if failed > 0 {
		fmt.Fprintf(&b, " %s could not be submitted.", jobs(failed))
	}
	return b.String()
}

func jobs(n int) string {
	if n == 1 {
		return "1 job"
	}
	return fmt.Sprintf("%d jobs", n)
}
