package pipeline

import (
	"context"
	"time"
)

type ProgressKind string

const (
	ProgressStepStarted  ProgressKind = "step-started"
	ProgressStepFinished ProgressKind = "step-finished"
	ProgressItemFinished ProgressKind = "item-finished"
)

// Progress is an observational snapshot. ItemIndex is zero based within the
// eligible items; Completed and Total count eligible items only.
type Progress struct {
	BatchID    string       `json:"batchId"`
	Flow       string       `json:"flow"`
	Kind       ProgressKind `json:"kind"`
	ItemID     string       `json:"itemId"`
	ItemIndex  int          `json:"itemIndex"`
	TotalItems int          `json:"totalItems"`
	StepID     string       `json:"stepId,omitempty"`
	StepLabel  string       `json:"stepLabel,omitempty"`
	StepIndex  int          `json:"stepIndex"`
	TotalSteps int          `json:"totalSteps"`
	StepStatus StepStatus   `json:"stepStatus,omitempty"`
	Outcome    Outcome      `json:"outcome,omitempty"`
	Completed  int          `json:"completed"`
	Total      int          `json:"total"`
	At         time.Time    `json:"at"`
}

// Percent is the share of finished work including partial progress through
// the current item.
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 100
	}
	done := float64(p.Completed)
	if p.Kind != ProgressItemFinished && p.TotalSteps > 0 {
		finished := p.StepIndex
		if p.Kind == ProgressStepFinished {
			finished++
		}
		done += float64(finished) / float64(p.TotalSteps)
	}
	return done / float64(p.Total) * 100
}

// Observer receives progress. It must not block for long and cannot change
// the course of the batch.
type Observer interface {
	OnProgress(ctx context.Context, p Progress)
}

type ObserverFunc func(ctx context.Context, p Progress)

func (f ObserverFunc) OnProgress(ctx context.Context, p Progress) {
	f(ctx, p)
}

// Observers fans progress out in order.
type Observers []Observer

func (o Observers) OnProgress(ctx context.Context, p Progress) {
	for _, obs := range o {
		if obs != nil {
			obs.OnProgress(ctx, p)
		}
	}
}
