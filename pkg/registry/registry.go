package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"jobapply-workers/internal/common/validation"
)

var ErrFlowNotFound = errors.New("FLOW_NOT_FOUND")

func LoadRegistry(path string) (*FlowRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg FlowRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("failed to parse registry %s: %w", path, err)
	}
	return &reg, nil
}

// LoadOrDefault falls back to the built-in flows when path does not exist.
func LoadOrDefault(path string) (*FlowRegistry, error) {
	reg, err := LoadRegistry(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	if err := Validate(reg); err != nil {
		return nil, err
	}
	return reg, nil
}

func Save(reg *FlowRegistry, path string) error {
	reg.LastUpdated = time.Now().UTC().Format(time.RFC3339)
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write registry file: %w", err)
	}
	return nil
}

// Default returns the speed-apply and workday flows.
func Default() *FlowRegistry {
	return &FlowRegistry{
		Version: "1.0.0",
		Flows: []FlowSpec{
			{
				Name:        "speed-apply",
				DisplayName: "Speed Apply",
				Description: "Bulk in-app application to saved job leads",
				TaskType:    "speed-apply",
				Steps: []StepSpec{
					{ID: StepFormat, Label: "Formatting resume for ATS parsing", Timeout: "30s", ErrorCodes: []string{"RESUME_UNREADABLE"}},
					{ID: StepAutofill, Label: "Auto-filling application form fields", Timeout: "10s", ErrorCodes: []string{"FORM_VALIDATION_FAILED"}},
					{ID: StepUpload, Label: "Uploading resume", Timeout: "30s", ErrorCodes: []string{"DATABASE_INSERT_FAILED"}},
					{ID: StepSubmit, Label: "Submitting application", Timeout: "30s", ErrorCodes: []string{"DUPLICATE_APPLICATION", "DATABASE_INSERT_FAILED"}},
					{ID: StepMessage, Label: "Sending message to hiring manager", Timeout: "15s", ErrorCodes: []string{"NOTIFICATION_SEND_FAILED"}},
				},
			},
			{
				Name:        "workday",
				DisplayName: "Workday Apply",
				Description: "Single job application through a Workday portal",
				TaskType:    "workday-apply",
				Steps: []StepSpec{
					{ID: StepFormat, Label: "Resume Format", Timeout: "30s", ErrorCodes: []string{"RESUME_UNREADABLE"}},
					{ID: StepLogin, Label: "Login", Timeout: "15s", ErrorCodes: []string{"PORTAL_AUTH_FAILED"}},
					{ID: StepSubmit, Label: "Submit", Timeout: "30s", ErrorCodes: []string{"DUPLICATE_APPLICATION", "DATABASE_INSERT_FAILED"}},
					{ID: StepConfirm, Label: "Confirmation", Timeout: "15s", ErrorCodes: []string{"DATABASE_INSERT_FAILED"}},
				},
			},
		},
	}
}

// Validate rejects empty registries, empty flows, duplicate or unknown step
// ids and unparsable timeouts.
func Validate(reg *FlowRegistry) error {
	if len(reg.Flows) == 0 {
		return fmt.Errorf("registry contains no flows")
	}

	names := make(map[string]bool)
	for _, flow := range reg.Flows {
		if flow.Name == "" {
			return fmt.Errorf("flow missing required field: name")
		}
		if names[flow.Name] {
			return fmt.Errorf("duplicate flow name: %s", flow.Name)
		}
		names[flow.Name] = true

		if flow.TaskType == "" {
			return fmt.Errorf("flow %s missing required field: taskType", flow.Name)
		}
		if len(flow.Steps) == 0 {
			return fmt.Errorf("flow %s has no steps", flow.Name)
		}

		steps := make(map[string]bool)
		for _, step := range flow.Steps {
			if err := validation.ValidateStepID(step.ID); err != nil {
				return fmt.Errorf("flow %s: %w", flow.Name, err)
			}
			if !KnownSteps[step.ID] {
				return fmt.Errorf("flow %s: unknown step id %s", flow.Name, step.ID)
			}
			if steps[step.ID] {
				return fmt.Errorf("flow %s: duplicate step id %s", flow.Name, step.ID)
			}
			steps[step.ID] = true
			if step.Label == "" {
				return fmt.Errorf("flow %s: step %s missing label", flow.Name, step.ID)
			}
			if _, err := step.TimeoutOr(0); err != nil {
				return fmt.Errorf("flow %s: step %s: %w", flow.Name, step.ID, err)
			}
		}
	}
	return nil
}

func (r *FlowRegistry) Flow(name string) (FlowSpec, error) {
	for _, flow := range r.Flows {
		if flow.Name == name {
			return flow, nil
		}
	}
	return FlowSpec{}, fmt.Errorf("%w: %s", ErrFlowNotFound, name)
}

// Upsert replaces the flow with the same name or appends it.
func (r *FlowRegistry) Upsert(flow FlowSpec) {
	for i := range r.Flows {
		if r.Flows[i].Name == flow.Name {
			r.Flows[i] = flow
			return
		}
	}
	r.Flows = append(r.Flows, flow)
}

// TimeoutOr parses Timeout, returning def when it is empty.
func (s StepSpec) TimeoutOr(def time.Duration) (time.Duration, error) {
	if s.Timeout == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s.Timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative timeout %q", s.Timeout)
	}
	return d, nil
}
