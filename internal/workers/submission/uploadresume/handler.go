package uploadresume

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "jobapply-workers/internal/common/errors"
	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/pipeline"

	"github.com/google/uuid"
)

const StepID = "upload"

type Handler struct {
	config *Config
	db     *sql.DB
	logger logger.Logger
	newID  func() string
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		db:     db,
		logger: log.WithFields(map[string]interface{}{"stepId": StepID}),
		newID:  uuid.NewString,
	}
}

// Execute registers the formatted resume for the application and records
// its digest so the submission can reference it.
func (h *Handler) Execute(ctx context.Context, req *pipeline.Request) error {
	text := req.Artifacts.Get(pipeline.ArtifactResumeText)
	if text == "" {
		return apperrors.NewResumeUnreadableError("", fmt.Errorf("resume was not formatted before upload"))
	}

	name := req.Artifacts.Get(pipeline.ArtifactResumeName)
	if name == "" {
		name = "resume"
	}
	sum := sha256.Sum256([]byte(text))
	digest := hex.EncodeToString(sum[:])
	uploadID := h.newID()

	if h.config.ArchiveDir != "" {
		if !safePathSegment(req.UserID) {
			return apperrors.NewInvalidInputError(fmt.Sprintf("user id %q cannot name an archive directory", req.UserID))
		}
		if err := h.archive(req.UserID, uploadID, text); err != nil {
			return apperrors.NewDatabaseInsertFailedError(fmt.Errorf("archive resume: %w", err))
		}
	}

	_, err := h.db.ExecContext(ctx, `
		INSERT INTO resume_uploads (id, user_id, job_id, file_name, sha256, size_bytes, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uploadID, req.UserID, req.Item.ID, name, digest, len(text), time.Now().UTC(),
	)
	if err != nil {
		return apperrors.NewDatabaseInsertFailedError(fmt.Errorf("insert resume upload: %w", err))
	}

	req.Artifacts.Set(pipeline.ArtifactUploadID, uploadID)
	h.logger.Info("resume uploaded", map[string]interface{}{
		"itemId":   req.Item.ID,
		"uploadId": uploadID,
		"sha256":   digest,
	})
	return nil
}

// safePathSegment reports whether id is a single directory name that stays
// inside ArchiveDir.
func safePathSegment(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return filepath.Base(id) == id && !strings.ContainsAny(id, `/\`)
}

func (h *Handler) archive(userID, uploadID, text string) error {
	dir := filepath.Join(h.config.ArchiveDir, userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, uploadID+".txt"), []byte(text), 0o644)
}
