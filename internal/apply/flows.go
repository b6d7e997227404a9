package apply

import (
	"fmt"
	"time"

	"jobapply-workers/internal/pipeline"
	"jobapply-workers/pkg/registry"
)

// BuildFlow binds the steps of a registry entry to their executors. Steps
// without a timeout in the registry get defaultTimeout.
func BuildFlow(spec registry.FlowSpec, executors map[string]pipeline.Executor, defaultTimeout time.Duration) (pipeline.Flow, error) {
	flow := pipeline.Flow{Name: spec.Name, Steps: make([]pipeline.StepDefinition, 0, len(spec.Steps))}
	for _, step := range spec.Steps {
		exec, ok := executors[step.ID]
		if !ok || exec == nil {
			return pipeline.Flow{}, fmt.Errorf("flow %s: no executor for step %s", spec.Name, step.ID)
		}
		timeout, err := step.TimeoutOr(defaultTimeout)
		if err != nil {
			return pipeline.Flow{}, fmt.Errorf("flow %s: step %s: %w", spec.Name, step.ID, err)
		}
		flow.Steps = append(flow.Steps, pipeline.StepDefinition{
			ID:       step.ID,
			Label:    step.Label,
			Executor: exec,
			Timeout:  timeout,
		})
	}
	if err := flow.Validate(); err != nil {
		return pipeline.Flow{}, err
	}
	return flow, nil
}
