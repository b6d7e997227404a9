package submitapplication

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "jobapply-workers/internal/common/errors"
	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/models"
	"jobapply-workers/internal/pipeline"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const StepID = "submit"

const uniqueViolation = "23505"

type Handler struct {
	config *Config
	db     *sql.DB
	logger logger.Logger
	newID  func() string
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) *Handler {
	if config.Status == "" {
		config.Status = models.ApplicationStatusSubmitted
	}
	return &Handler{
		config: config,
		db:     db,
		logger: log.WithFields(map[string]interface{}{"stepId": StepID}),
		newID:  uuid.NewString,
	}
}

// Execute records the application for the lead. A user applies to a job at
// most once; an earlier submission that never completed its flow is resumed.
func (h *Handler) Execute(ctx context.Context, req *pipeline.Request) error {
	var existingID, existingStatus string
	err := h.db.QueryRowContext(ctx, `
		SELECT id, status FROM applications
		WHERE user_id = $1 AND job_id = $2`, req.UserID, req.Item.ID,
	).Scan(&existingID, &existingStatus)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return apperrors.NewDatabaseInsertFailedError(fmt.Errorf("duplicate check: %w", err))
	case existingStatus != models.ApplicationStatusSubmitted || req.Item.Status == models.StatusApplied:
		return apperrors.NewDuplicateApplicationError(req.UserID, req.Item.ID)
	default:
		return h.resume(ctx, existingID, req)
	}

	appID := h.newID()
	now := time.Now().UTC()
	_, err = h.db.ExecContext(ctx, `
		INSERT INTO applications (
			id, user_id, job_id, batch_id, upload_id, form_data,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		appID,
		req.UserID,
		req.Item.ID,
		req.BatchID,
		nullString(req.Artifacts.Get(pipeline.ArtifactUploadID)),
		formData(req),
		h.config.Status,
		now,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return apperrors.NewDuplicateApplicationError(req.UserID, req.Item.ID)
		}
		return apperrors.NewDatabaseInsertFailedError(fmt.Errorf("insert application: %w", err))
	}
	req.Artifacts.Set(pipeline.ArtifactApplicationID, appID)

	h.audit(ctx, appID, "application_submitted", req, now)

	h.logger.Info("application submitted", map[string]interface{}{
		"applicationId": appID,
		"itemId":        req.Item.ID,
		"batchId":       req.BatchID,
	})
	return nil
}

// resume takes over a row left in submitted by a run that failed in a later
// step. The status guard keeps a concurrent confirmation from being undone.
func (h *Handler) resume(ctx context.Context, appID string, req *pipeline.Request) error {
	now := time.Now().UTC()
	res, err := h.db.ExecContext(ctx, `
		UPDATE applications
		SET batch_id = $1, upload_id = $2, form_data = $3, updated_at = $4
		WHERE id = $5 AND status = $6`,
		req.BatchID,
		nullString(req.Artifacts.Get(pipeline.ArtifactUploadID)),
		formData(req),
		now,
		appID,
		models.ApplicationStatusSubmitted,
	)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError(fmt.Errorf("resume application: %w", err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return apperrors.NewDuplicateApplicationError(req.UserID, req.Item.ID)
	}
	req.Artifacts.Set(pipeline.ArtifactApplicationID, appID)

	h.audit(ctx, appID, "application_resubmitted", req, now)

	h.logger.Info("unfinished application resumed", map[string]interface{}{
		"applicationId": appID,
		"itemId":        req.Item.ID,
		"batchId":       req.BatchID,
	})
	return nil
}

func formData(req *pipeline.Request) []byte {
	data := []byte(req.Artifacts.Get(pipeline.ArtifactForm))
	if len(data) == 0 {
		return []byte("{}")
	}
	return data
}

// audit failures are logged only.
func (h *Handler) audit(ctx context.Context, appID, action string, req *pipeline.Request, at time.Time) {
	details, err := json.Marshal(auditDetails{
		UserID:   req.UserID,
		JobID:    req.Item.ID,
		BatchID:  req.BatchID,
		Flow:     req.Flow,
		UploadID: req.Artifacts.Get(pipeline.ArtifactUploadID),
		Company:  req.Item.Company,
		Title:    req.Item.Title,
	})
	if err != nil {
		h.logger.Warn("failed to marshal audit log details", map[string]interface{}{"error": err})
		details = []byte("{}")
	}

	_, err = h.db.ExecContext(ctx, `
		INSERT INTO audit_log (entity_type, entity_id, action, actor_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		"application", appID, action, req.UserID, details, at,
	)
	if err != nil {
		h.logger.Warn("audit log insert failed", map[string]interface{}{
			"error":         err,
			"applicationId": appID,
		})
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
