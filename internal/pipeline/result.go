package pipeline

import (
	"encoding/json"
	"time"

	apperrors "jobapply-workers/internal/common/errors"
)

// Exclusion explains why an item never entered the pipeline.
type Exclusion struct {
	ItemID string `json:"itemId"`
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

// ExclusionFromError records err as the reason itemID was excluded.
func ExclusionFromError(itemID string, err error) Exclusion {
	se := apperrors.Normalize(err)
	return Exclusion{ItemID: itemID, Code: string(se.Code), Reason: se.Message}
}

// ItemFailure explains why an item ended in Failed.
type ItemFailure struct {
	ItemID    string `json:"itemId"`
	StepID    string `json:"stepId,omitempty"`
	Code      string `json:"code"`
	CauseCode string `json:"causeCode,omitempty"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// BatchResult is the outcome of one batch. Every distinct input identifier
// appears in exactly one of Successful, Failed, Ineligible or NotAttempted.
// Confirmations maps successful items to the number the portal issued.
type BatchResult struct {
	BatchID       string            `json:"batchId"`
	Flow          string            `json:"flow"`
	UserID        string            `json:"userId"`
	Successful    []string          `json:"successful"`
	Failed        []string          `json:"failed"`
	Ineligible    []string          `json:"ineligible"`
	NotAttempted  []string          `json:"notAttempted"`
	Failures      []ItemFailure     `json:"failures"`
	Exclusions    []Exclusion       `json:"exclusions"`
	Confirmations map[string]string `json:"confirmations,omitempty"`
	Completed     int               `json:"completed"`
	Total         int               `json:"total"`
	Cancelled     bool              `json:"cancelled"`
	StartedAt     time.Time         `json:"startedAt"`
	FinishedAt    time.Time         `json:"finishedAt"`
}

func newBatchResult(batchID, flow, userID string, startedAt time.Time) *BatchResult {
	return &BatchResult{
		BatchID:       batchID,
		Flow:          flow,
		UserID:        userID,
		Successful:    []string{},
		Failed:        []string{},
		Ineligible:    []string{},
		NotAttempted:  []string{},
		Failures:      []ItemFailure{},
		Exclusions:    []Exclusion{},
		Confirmations: map[string]string{},
		StartedAt:     startedAt,
	}
}

func (r *BatchResult) exclude(ex Exclusion) {
	r.Ineligible = append(r.Ineligible, ex.ItemID)
	r.Exclusions = append(r.Exclusions, ex)
}

// Progress returns the (completed, total) counters over eligible items.
func (r *BatchResult) Progress() (completed, total int) {
	return r.Completed, r.Total
}

// Done reports whether every eligible item reached a terminal outcome.
func (r *BatchResult) Done() bool {
	return r.Completed == r.Total
}

// Accounted is the number of identifiers across all four sets.
func (r *BatchResult) Accounted() int {
	return len(r.Successful) + len(r.Failed) + len(r.Ineligible) + len(r.NotAttempted)
}

func (r *BatchResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SetSizes returns the size of each set keyed by its metric label.
func (r *BatchResult) SetSizes() map[string]int {
	return map[string]int{
		"succeeded":     len(r.Successful),
		"failed":        len(r.Failed),
		"ineligible":    len(r.Ineligible),
		"not_attempted": len(r.NotAttempted),
	}
}

// ToVariables converts the result into process variables.
func (r *BatchResult) ToVariables() (map[string]interface{}, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var vars map[string]interface{}
	if err := json.Unmarshal(raw, &vars); err != nil {
		return nil, err
	}
	return vars, nil
}
