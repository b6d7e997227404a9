package store

import (
	"context"
	"sort"
	"sync"

	apperrors "jobapply-workers/internal/common/errors"
	"jobapply-workers/internal/models"
)

// Memory keeps everything in process. It backs tests and the local profile.
type Memory struct {
	mu            sync.RWMutex
	jobs          map[string]models.JobLead
	applicants    map[string]models.Applicant
	notifications []models.Notification
}

func NewMemory() *Memory {
	return &Memory{
		jobs:       make(map[string]models.JobLead),
		applicants: make(map[string]models.Applicant),
	}
}

func (m *Memory) PutJob(job models.JobLead) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job
}

func (m *Memory) PutApplicant(userID string, a models.Applicant) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applicants[userID] = a
}

func (m *Memory) Job(id string) (models.JobLead, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[id]
	return job, ok
}

// Jobs returns the leads of a user ordered by id.
func (m *Memory) Jobs(userID string) []models.JobLead {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.JobLead
	for _, job := range m.jobs {
		if job.UserID == userID {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Memory) GetJobs(ctx context.Context, userID string, ids []string) ([]models.JobLead, []string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	jobs := make([]models.JobLead, 0, len(ids))
	var missing []string
	for _, id := range ids {
		job, ok := m.jobs[id]
		if !ok || job.UserID != userID {
			missing = append(missing, id)
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, missing, nil
}

func (m *Memory) UpdateJob(ctx context.Context, job models.JobLead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.jobs[job.ID]
	if !ok || existing.UserID != job.UserID {
		return apperrors.NewItemNotFoundError(job.ID)
	}
	m.jobs[job.ID] = job
	return nil
}

func (m *Memory) GetApplicant(ctx context.Context, userID string) (models.Applicant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.applicants[userID]
	if !ok {
		return models.Applicant{}, apperrors.NewApplicantNotFoundError(userID)
	}
	return a, nil
}

func (m *Memory) AddNotification(ctx context.Context, n models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *Memory) Notifications(userID string) []models.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Notification
	for _, n := range m.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}
