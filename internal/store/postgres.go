package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	apperrors "jobapply-workers/internal/common/errors"
	"jobapply-workers/internal/models"

	"github.com/lib/pq"
)

// Postgres implements the three stores over the tables created by
// database.Migrate.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const jobColumns = `id, user_id, title, company, posting_date, application_link,
	hiring_manager, hiring_manager_email, status, notes, applied_date, salary,
	location, application_method, follow_up_date, last_contact_date,
	can_apply_in_app, speed_apply, cover_letter`

func (p *Postgres) GetJobs(ctx context.Context, userID string, ids []string) ([]models.JobLead, []string, error) {
	if len(ids) == 0 {
		return []models.JobLead{}, nil, nil
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM job_leads WHERE user_id = $1 AND id = ANY($2)`,
		userID, pq.Array(ids))
	if err != nil {
		return nil, nil, apperrors.NewQueryExecutionFailedError("get_jobs", err)
	}
	defer rows.Close()

	found := make(map[string]models.JobLead, len(ids))
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, nil, apperrors.NewQueryExecutionFailedError("get_jobs", err)
		}
		found[job.ID] = job
	}
	if err := rows.Err(); err != nil {
		return nil, nil, apperrors.NewQueryExecutionFailedError("get_jobs", err)
	}

	jobs := make([]models.JobLead, 0, len(found))
	var missing []string
	for _, id := range ids {
		if job, ok := found[id]; ok {
			jobs = append(jobs, job)
		} else {
			missing = append(missing, id)
		}
	}
	return jobs, missing, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(s scanner) (models.JobLead, error) {
	var job models.JobLead
	var postingDate, appliedDate, followUpDate, lastContact sql.NullTime
	var link, manager, managerEmail, notes, salary, location, coverLetter sql.NullString
	var status, method string
	err := s.Scan(
		&job.ID, &job.UserID, &job.Title, &job.Company, &postingDate, &link,
		&manager, &managerEmail, &status, &notes, &appliedDate, &salary,
		&location, &method, &followUpDate, &lastContact,
		&job.CanApplyInApp, &job.SpeedApply, &coverLetter,
	)
	if err != nil {
		return job, err
	}
	job.Status = models.JobStatus(status)
	job.ApplicationMethod = models.ApplicationMethod(method)
	job.ApplicationLink = link.String
	job.HiringManager = manager.String
	job.HiringManagerEmail = managerEmail.String
	job.Notes = notes.String
	job.Salary = salary.String
	job.Location = location.String
	job.CoverLetter = coverLetter.String
	job.PostingDate = timePtr(postingDate)
	job.AppliedDate = timePtr(appliedDate)
	job.FollowUpDate = timePtr(followUpDate)
	job.LastContactDate = timePtr(lastContact)
	return job, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// UpdateJob writes back the fields the tracker changes after a successful
// submission.
func (p *Postgres) UpdateJob(ctx context.Context, job models.JobLead) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE job_leads
		SET status = $1, applied_date = $2, last_contact_date = $3,
		    follow_up_date = $4, updated_at = NOW()
		WHERE id = $5 AND user_id = $6`,
		string(job.Status), job.AppliedDate, job.LastContactDate, job.FollowUpDate,
		job.ID, job.UserID,
	)
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("update_job", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewQueryExecutionFailedError("update_job", err)
	}
	if n == 0 {
		return apperrors.NewItemNotFoundError(job.ID)
	}
	return nil
}

func (p *Postgres) GetApplicant(ctx context.Context, userID string) (models.Applicant, error) {
	var a models.Applicant
	var phone, location, coverLetter sql.NullString
	err := p.db.QueryRowContext(ctx, `
		SELECT id, full_name, email, phone, location, cover_letter
		FROM applicants WHERE id = $1`, userID,
	).Scan(&a.ID, &a.FullName, &a.Email, &phone, &location, &coverLetter)
	if err == sql.ErrNoRows {
		return a, apperrors.NewApplicantNotFoundError(userID)
	}
	if err != nil {
		return a, apperrors.NewQueryExecutionFailedError("get_applicant", err)
	}
	a.Phone = phone.String
	a.Location = location.String
	a.CoverLetter = coverLetter.String

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, file_path, file_type, is_active, uploaded_at
		FROM resumes WHERE applicant_id = $1
		ORDER BY uploaded_at DESC`, userID)
	if err != nil {
		return a, apperrors.NewQueryExecutionFailedError("get_resumes", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r models.Resume
		if err := rows.Scan(&r.ID, &r.Name, &r.FilePath, &r.FileType, &r.IsActive, &r.UploadedAt); err != nil {
			return a, apperrors.NewQueryExecutionFailedError("get_resumes", err)
		}
		a.Resumes = append(a.Resumes, r)
	}
	if err := rows.Err(); err != nil {
		return a, apperrors.NewQueryExecutionFailedError("get_resumes", err)
	}
	return a, nil
}

func (p *Postgres) AddNotification(ctx context.Context, n models.Notification) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, date, read, job_id, actionable, action)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		n.ID, n.UserID, string(n.Type), n.Title, n.Message, n.Date, n.Read,
		nullString(n.JobID), n.Actionable, nullString(n.Action),
	)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError(fmt.Errorf("insert notification: %w", err))
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
