package pipeline

import (
	"errors"
	"fmt"
	"time"
)

type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

var ErrInvalidTransition = errors.New("INVALID_STEP_TRANSITION")

// Step is one stage of an item's submission. Transitions only move forward:
// Pending, InProgress, then Completed or Failed. Reset is the only way back
// and it is only valid from Failed.
type Step struct {
	ID         string     `json:"id"`
	Label      string     `json:"label"`
	Status     StepStatus `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"startedAt,omitempty"`
	FinishedAt time.Time  `json:"finishedAt,omitempty"`
	Attempts   int        `json:"attempts"`

	err error
}

func NewStep(id, label string) *Step {
	return &Step{ID: id, Label: label, Status: StepPending}
}

func (s *Step) transition(from, to StepStatus) error {
	if s.Status != from {
		return fmt.Errorf("%w: step %s cannot move from %s to %s", ErrInvalidTransition, s.ID, s.Status, to)
	}
	s.Status = to
	return nil
}

func (s *Step) Start(at time.Time) error {
	if err := s.transition(StepPending, StepInProgress); err != nil {
		return err
	}
	s.StartedAt = at
	s.Attempts++
	return nil
}

func (s *Step) Complete(at time.Time) error {
	if err := s.transition(StepInProgress, StepCompleted); err != nil {
		return err
	}
	s.FinishedAt = at
	return nil
}

func (s *Step) Fail(at time.Time, cause error) error {
	if err := s.transition(StepInProgress, StepFailed); err != nil {
		return err
	}
	s.FinishedAt = at
	s.err = cause
	if cause != nil {
		s.Error = cause.Error()
	}
	return nil
}

// Reset moves a failed step back to Pending for an explicit retry.
func (s *Step) Reset() error {
	if err := s.transition(StepFailed, StepPending); err != nil {
		return err
	}
	s.err = nil
	s.Error = ""
	s.StartedAt = time.Time{}
	s.FinishedAt = time.Time{}
	return nil
}

func (s *Step) Terminal() bool {
	return s.Status == StepCompleted || s.Status == StepFailed
}

// Err is the cause recorded by Fail.
func (s *Step) Err() error {
	return s.err
}

func (s *Step) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
