package messagemanager

import (
	"context"
	"fmt"
	"strings"

	apperrors "jobapply-workers/internal/common/errors"
	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/common/validation"
	"jobapply-workers/internal/models"
	"jobapply-workers/internal/pipeline"
)

const StepID = "message"

const (
	StatusSent     = "sent"
	StatusSkipped  = "skipped"
	StatusDisabled = "disabled"
)

// Mailer is satisfied by aws.SESClient.
type Mailer interface {
	SendText(ctx context.Context, to, subject, body string) (string, error)
}

type Handler struct {
	config *Config
	mailer Mailer
	logger logger.Logger
}

func NewHandler(config *Config, mailer Mailer, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		mailer: mailer,
		logger: log.WithFields(map[string]interface{}{"stepId": StepID}),
	}
}

// Execute emails the hiring manager when the lead names one with an address.
// Leads without an address complete the step with status skipped.
func (h *Handler) Execute(ctx context.Context, req *pipeline.Request) error {
	if !h.config.Enabled || h.mailer == nil {
		req.Artifacts.Set(pipeline.ArtifactMessageStatus, StatusDisabled)
		return nil
	}
	to := strings.TrimSpace(req.Item.HiringManagerEmail)
	if to == "" || !validation.ValidateEmail(to) {
		req.Artifacts.Set(pipeline.ArtifactMessageStatus, StatusSkipped)
		h.logger.Debug("no hiring manager address", map[string]interface{}{"itemId": req.Item.ID})
		return nil
	}

	subject, body := Compose(req.Applicant, req.Item)
	msgID, err := h.mailer.SendText(ctx, to, subject, body)
	if err != nil {
		return apperrors.NewNotificationSendFailedError("email", err)
	}

	req.Artifacts.Set(pipeline.ArtifactMessageStatus, StatusSent)
	req.Artifacts.Set(pipeline.ArtifactMessageID, msgID)
	h.logger.Info("hiring manager messaged", map[string]interface{}{
		"itemId":    req.Item.ID,
		"messageId": msgID,
	})
	return nil
}

func Compose(a models.Applicant, job models.JobLead) (subject, body string) {
	subject = fmt.Sprintf("Application for %s - %s", job.Title, a.FullName)

	greeting := "Hello"
	if job.HiringManager != "" {
		greeting = "Hello " + job.HiringManager
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s,\n\n", greeting)
	fmt.Fprintf(&b, "I have just applied for the %s role at %s and wanted to introduce myself directly. ", job.Title, job.Company)
	b.WriteString("I would be glad to talk about the position whenever it suits you.\n\n")
	fmt.Fprintf(&b, "Kind regards,\n%s\n%s", a.FullName, a.Email)
	if a.Phone != "" {
		fmt.Fprintf(&b, "\n%s", a.Phone)
	}
	return subject, b.String()
}
