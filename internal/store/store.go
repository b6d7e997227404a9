// Package store holds the caller-owned records the pipeline reads and the
// tracker writes: job leads, applicant profiles and notifications.
package store

import (
	"context"

	"jobapply-workers/internal/models"
)

type JobStore interface {
	// GetJobs returns the leads of userID with the given ids in request
	// order. Unknown ids are reported in missing.
	GetJobs(ctx context.Context, userID string, ids []string) (jobs []models.JobLead, missing []string, err error)
	UpdateJob(ctx context.Context, job models.JobLead) error
}

type ApplicantStore interface {
	GetApplicant(ctx context.Context, userID string) (models.Applicant, error)
}

type NotificationStore interface {
	AddNotification(ctx context.Context, n models.Notification) error
}
