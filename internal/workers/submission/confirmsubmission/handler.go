package confirmsubmission

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	apperrors "jobapply-workers/internal/common/errors"
	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/models"
	"jobapply-workers/internal/pipeline"
)

const StepID = "confirm"

type Handler struct {
	config *Config
	db     *sql.DB
	logger logger.Logger
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) *Handler {
	if config.Prefix == "" {
		config.Prefix = "WD-"
	}
	return &Handler{
		config: config,
		db:     db,
		logger: log.WithFields(map[string]interface{}{"stepId": StepID}),
	}
}

// ConfirmationNumber derives the portal confirmation number from the job id.
func (h *Handler) ConfirmationNumber(jobID string) string {
	id := strings.ReplaceAll(jobID, "-", "")
	if len(id) > 8 {
		id = id[:8]
	}
	return h.config.Prefix + strings.ToUpper(id)
}

// Execute marks the application recorded by the submit step as confirmed.
func (h *Handler) Execute(ctx context.Context, req *pipeline.Request) error {
	appID := req.Artifacts.Get(pipeline.ArtifactApplicationID)
	if appID == "" {
		return apperrors.NewDatabaseInsertFailedError(fmt.Errorf("no application recorded for item %s", req.Item.ID))
	}

	number := h.ConfirmationNumber(req.Item.ID)
	res, err := h.db.ExecContext(ctx, `
		UPDATE applications
		SET status = $1, confirmation_number = $2, updated_at = $3
		WHERE id = $4 AND user_id = $5`,
		models.ApplicationStatusConfirmed, number, time.Now().UTC(), appID, req.UserID,
	)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError(fmt.Errorf("confirm application: %w", err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewDatabaseInsertFailedError(fmt.Errorf("application %s not found", appID))
	}

	req.Artifacts.Set(pipeline.ArtifactConfirmationNumber, number)
	h.logger.Info("application confirmed", map[string]interface{}{
		"applicationId":      appID,
		"confirmationNumber": number,
	})
	return nil
}
