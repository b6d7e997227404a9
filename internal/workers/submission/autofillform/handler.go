package autofillform

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	apperrors "jobapply-workers/internal/common/errors"
	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/common/validation"
	"jobapply-workers/internal/models"
	"jobapply-workers/internal/pipeline"
)

const StepID = "autofill"

type Handler struct {
	config *Config
	schema validation.JSONSchema
	logger logger.Logger
}

func NewHandler(config *Config, log logger.Logger) (*Handler, error) {
	schema, err := validation.GetSchemaFromJSON(formSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("form schema: %w", err)
	}
	if config.DefaultCoverLetter == "" {
		config.DefaultCoverLetter = defaultCoverLetter
	}
	if config.MaxCoverLetterLen > 0 {
		max := config.MaxCoverLetterLen
		prop := schema.Properties["coverLetter"]
		prop.MaxLength = &max
		schema.Properties["coverLetter"] = prop
	}
	return &Handler{
		config: config,
		schema: schema,
		logger: log.WithFields(map[string]interface{}{"stepId": StepID}),
	}, nil
}

// Execute fills the application form from the applicant profile and the lead
// and stores it as JSON for the submit step.
func (h *Handler) Execute(ctx context.Context, req *pipeline.Request) error {
	form := h.Fill(req.Applicant, req.Item, req.Artifacts.Get(pipeline.ArtifactResumeName))

	result, err := validation.ValidateStruct(form, h.schema)
	if err != nil {
		return apperrors.NewFormValidationFailedError(err.Error())
	}
	if !result.Valid {
		return apperrors.NewFormValidationFailedError(strings.Join(result.GetErrorMessages(), "; ")).
			WithMetadata("fields", result.Errors)
	}

	data, err := json.Marshal(form)
	if err != nil {
		return apperrors.NewFormValidationFailedError(err.Error())
	}
	req.Artifacts.Set(pipeline.ArtifactForm, string(data))

	h.logger.Debug("form filled", map[string]interface{}{
		"itemId":  req.Item.ID,
		"company": form.Company,
	})
	return nil
}

func (h *Handler) Fill(a models.Applicant, job models.JobLead, resumeName string) models.ApplicationForm {
	if resumeName == "" {
		if r, ok := a.ActiveResume(); ok {
			resumeName = r.Name
		}
	}

	letter := job.CoverLetter
	if letter == "" {
		letter = a.CoverLetter
	}
	if letter == "" {
		letter = h.config.DefaultCoverLetter
	}

	return models.ApplicationForm{
		FullName:      strings.TrimSpace(a.FullName),
		Email:         strings.TrimSpace(a.Email),
		Phone:         strings.TrimSpace(a.Phone),
		Location:      strings.TrimSpace(a.Location),
		JobTitle:      job.Title,
		Company:       job.Company,
		ResumeName:    resumeName,
		CoverLetter:   RenderCoverLetter(letter, a, job),
		HiringManager: job.HiringManager,
	}
}

// RenderCoverLetter replaces the {{company}}, {{title}}, {{hiringManager}}
// and {{applicant}} placeholders.
func RenderCoverLetter(tmpl string, a models.Applicant, job models.JobLead) string {
	manager := job.HiringManager
	if manager == "" {
		manager = "Hiring Manager"
	}
	return strings.NewReplacer(
		"{{company}}", job.Company,
		"{{title}}", job.Title,
		"{{hiringManager}}", manager,
		"{{applicant}}", a.FullName,
	).Replace(tmpl)
}
