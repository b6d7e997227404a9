package pipeline

import (
	"context"
	"fmt"
	"time"

	"jobapply-workers/internal/common/validation"
	"jobapply-workers/internal/models"
)

const (
	FlowSpeedApply = "speed-apply"
	FlowWorkday    = "workday"
)

// Artifact keys written by the built-in step executors.
const (
	ArtifactResumeText         = "resume.text"
	ArtifactResumePages        = "resume.pages"
	ArtifactResumeName         = "resume.name"
	ArtifactForm               = "form"
	ArtifactUploadID           = "upload.id"
	ArtifactApplicationID      = "application.id"
	ArtifactMessageStatus      = "message.status"
	ArtifactMessageID          = "message.id"
	ArtifactPortalToken        = "portal.token"
	ArtifactConfirmationNumber = "confirmation.number"
)

// Artifacts carries values produced by earlier steps to later ones.
type Artifacts map[string]string

func (a Artifacts) Get(key string) string {
	return a[key]
}

func (a Artifacts) Set(key, value string) {
	a[key] = value
}

// Request is handed to every executor of one item submission. Item and
// Applicant are copies; executors must not expect changes to flow back.
type Request struct {
	BatchID      string
	SubmissionID string
	Flow         string
	UserID       string
	Item         models.JobLead
	Applicant    models.Applicant
	Artifacts    Artifacts
}

// Executor performs the work of one step.
type Executor interface {
	Execute(ctx context.Context, req *Request) error
}

type ExecutorFunc func(ctx context.Context, req *Request) error

func (f ExecutorFunc) Execute(ctx context.Context, req *Request) error {
	return f(ctx, req)
}

type StepDefinition struct {
	ID       string
	Label    string
	Executor Executor
	Timeout  time.Duration
}

// Flow is the fixed, ordered list of steps every item of a batch goes through.
type Flow struct {
	Name  string
	Steps []StepDefinition
}

func (f Flow) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("flow name is empty")
	}
	if len(f.Steps) == 0 {
		return fmt.Errorf("flow %s has no steps", f.Name)
	}
	seen := make(map[string]bool, len(f.Steps))
	for i, def := range f.Steps {
		if err := validation.ValidateStepID(def.ID); err != nil {
			return fmt.Errorf("flow %s step %d: %w", f.Name, i, err)
		}
		if seen[def.ID] {
			return fmt.Errorf("flow %s: duplicate step id %s", f.Name, def.ID)
		}
		seen[def.ID] = true
		if def.Executor == nil {
			return fmt.Errorf("flow %s: step %s has no executor", f.Name, def.ID)
		}
		if def.Timeout < 0 {
			return fmt.Errorf("flow %s: step %s has a negative timeout", f.Name, def.ID)
		}
	}
	return nil
}

// StepIDs returns the step identifiers in execution order.
func (f Flow) StepIDs() []string {
	ids := make([]string, len(f.Steps))
	for i, def := range f.Steps {
		ids[i] = def.ID
	}
	return ids
}

func (f Flow) newSteps() []*Step {
	steps := make([]*Step, len(f.Steps))
	for i, def := range f.Steps {
		steps[i] = NewStep(def.ID, def.Label)
	}
	return steps
}
