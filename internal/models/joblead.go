package models

import "time"

// JobStatus is the lifecycle status of a job lead.
type JobStatus string

const (
	StatusSaved        JobStatus = "saved"
	StatusApplied      JobStatus = "applied"
	StatusInterviewing JobStatus = "interviewing"
	StatusOffered      JobStatus = "offered"
	StatusRejected     JobStatus = "rejected"
)

func (s JobStatus) Valid() bool {
	switch s {
	case StatusSaved, StatusApplied, StatusInterviewing, StatusOffered, StatusRejected:
		return true
	}
	return false
}

// ApplicationMethod records how the user applies to a lead.
type ApplicationMethod string

const (
	MethodInApp    ApplicationMethod = "in-app"
	MethodExternal ApplicationMethod = "external"
	MethodEmail    ApplicationMethod = "email"
)

// JobLead is a job the user is tracking. CanApplyInApp decides whether the
// automated submission pipeline may handle it.
type JobLead struct {
	ID                 string            `json:"id"`
	UserID             string            `json:"userId"`
	Title              string            `json:"title"`
	Company            string            `json:"company"`
	PostingDate        *time.Time        `json:"postingDate,omitempty"`
	ApplicationLink    string            `json:"applicationLink,omitempty"`
	HiringManager      string            `json:"hiringManager,omitempty"`
	HiringManagerEmail string            `json:"hiringManagerEmail,omitempty"`
	Status             JobStatus         `json:"status"`
	Notes              string            `json:"notes,omitempty"`
	AppliedDate        *time.Time        `json:"appliedDate,omitempty"`
	Salary             string            `json:"salary,omitempty"`
	Location           string            `json:"location,omitempty"`
	ApplicationMethod  ApplicationMethod `json:"applicationMethod"`
	FollowUpDate       *time.Time        `json:"followUpDate,omitempty"`
	LastContactDate    *time.Time        `json:"lastContactDate,omitempty"`
	CanApplyInApp      bool              `json:"canApplyInApp"`
	SpeedApply         bool              `json:"speedApply"`
	CoverLetter        string            `json:"coverLetter,omitempty"`
}

// MarkApplied stamps the lead as applied at the given time and schedules the
// follow up.
func (j *JobLead) MarkApplied(at time.Time, followUpAfter time.Duration) {
	applied := at
	contact := at
	followUp := at.Add(followUpAfter)

	j.Status = StatusApplied
	j.AppliedDate = &applied
	j.LastContactDate = &contact
	j.FollowUpDate = &followUp
}
