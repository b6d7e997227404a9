package models

import (
	"path/filepath"
	"strings"
	"time"
)

// Applicant is the profile used to fill application forms.
type Applicant struct {
	ID          string   `json:"id"`
	FullName    string   `json:"fullName"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone,omitempty"`
	Location    string   `json:"location,omitempty"`
	CoverLetter string   `json:"coverLetter,omitempty"`
	Resumes     []Resume `json:"resumes,omitempty"`
}

type Resume struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	FilePath   string    `json:"filePath"`
	FileType   string    `json:"fileType"`
	IsActive   bool      `json:"isActive"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// Extension returns the lowercase file type, falling back to the path suffix.
func (r Resume) Extension() string {
	if r.FileType != "" {
		return strings.ToLower(strings.TrimPrefix(r.FileType, "."))
	}
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(r.FilePath), "."))
}

// ActiveResume returns the resume marked active, or the most recently
// uploaded one when none is marked.
func (a *Applicant) ActiveResume() (Resume, bool) {
	if len(a.Resumes) == 0 {
		return Resume{}, false
	}
	latest := a.Resumes[0]
	for _, r := range a.Resumes {
		if r.IsActive {
			return r, true
		}
		if r.UploadedAt.After(latest.UploadedAt) {
			latest = r
		}
	}
	return latest, true
}
