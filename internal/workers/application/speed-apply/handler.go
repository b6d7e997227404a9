package speedapply

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "jobapply-workers/internal/common/errors"
	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/pipeline"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/xeipuuv/gojsonschema"
)

const TaskType = "speed-apply"

// Runner is satisfied by *apply.Service.
type Runner interface {
	Run(ctx context.Context, flow, userID string, jobIDs []string, batchID string) (*pipeline.BatchResult, error)
}

type Handler struct {
	config       *Config
	runner       Runner
	schema       *gojsonschema.Schema
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, runner Runner, log logger.Logger) (*Handler, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(inputSchema))
	if err != nil {
		return nil, fmt.Errorf("compile input schema: %w", err)
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		runner:       runner,
		schema:       schema,
		errorHandler: apperrors.NewErrorHandler(log),
		logger:       log,
	}, nil
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx := context.Background()
	if h.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.Timeout)
		defer cancel()
	}

	result, err := h.Execute(ctx, job.Variables)
	if err != nil {
		h.errorHandler.HandleJobError(context.Background(), client, job, err)
		return err
	}
	return h.completeJob(client, job, result)
}

// Execute validates the process variables and runs the bulk flow. Failed
// and ineligible items are part of the result, not an error.
func (h *Handler) Execute(ctx context.Context, variables string) (*pipeline.BatchResult, error) {
	input, err := h.parse(variables)
	if err != nil {
		return nil, err
	}
	return h.runner.Run(ctx, pipeline.FlowSpeedApply, input.UserID, input.JobIDs, input.BatchID)
}

func (h *Handler) parse(variables string) (*Input, error) {
	res, err := h.schema.Validate(gojsonschema.NewStringLoader(variables))
	if err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse variables: %v", err))
	}
	if !res.Valid() {
		msgs := make([]string, len(res.Errors()))
		for i, desc := range res.Errors() {
			msgs[i] = desc.String()
		}
		return nil, apperrors.NewInvalidInputError(strings.Join(msgs, "; "))
	}

	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewInvalidInputError(fmt.Sprintf("parse variables: %v", err))
	}
	return &input, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, result *pipeline.BatchResult) error {
	vars, err := result.ToVariables()
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	cmd, err := client.NewCompleteJobCommand().JobKey(job.Key).VariablesFromMap(vars)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{"error": err})
		return err
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{"error": err})
		return err
	}
	h.logger.Info("job completed", map[string]interface{}{
		"jobKey":     job.Key,
		"batchId":    result.BatchID,
		"successful": len(result.Successful),
		"failed":     len(result.Failed),
		"ineligible": len(result.Ineligible),
	})
	return nil
}
