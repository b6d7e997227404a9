package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name        string
		err         *StandardError
		wantCode    string
		wantRetries int
	}{
		{"insert failure retries", NewDatabaseInsertFailedError(errors.New("conn reset")), "DATABASE_INSERT_FAILED", 3},
		{"duplicate does not retry", NewDuplicateApplicationError("u-1", "j-1"), "DUPLICATE_APPLICATION", 0},
		{"step failure mapped", NewStepFailedError("submit", errors.New("503")), "SUBMISSION_STEP_FAILED", 0},
		{"portal auth retries", NewPortalAuthFailedError("workday", errors.New("401")), "PORTAL_AUTH_FAILED", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.wantCode, bpmn.Code)
			assert.Equal(t, tt.wantRetries, bpmn.Retries)
			vars := bpmn.ToErrorVariables()
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
		})
	}
}

func TestStepFailedErrorKeepsCause(t *testing.T) {
	cause := NewResumeUnreadableError("/tmp/cv.pdf", errors.New("bad xref"))
	err := NewStepFailedError("format", cause)

	assert.Equal(t, ErrCodeStepFailed, err.Code)
	assert.Equal(t, "RESUME_UNREADABLE", err.Metadata["causeCode"])
	assert.True(t, errors.Is(err, cause))

	var inner *StandardError
	require.True(t, errors.As(err.Unwrap(), &inner))
	assert.Equal(t, ErrCodeResumeUnreadable, inner.Code)
}

func TestNormalize(t *testing.T) {
	wrapped := fmt.Errorf("lookup: %w", NewItemNotFoundError("job-9"))
	assert.Equal(t, ErrCodeItemNotFound, Normalize(wrapped).Code)
	assert.Equal(t, ErrorCode("INTERNAL_ERROR"), Normalize(errors.New("plain")).Code)
	assert.Equal(t, ErrCodeItemNotFound, CodeOf(wrapped))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "PIPELINE", GetErrorCategory(ErrCodeStepFailed))
	assert.Equal(t, "ELIGIBILITY", GetErrorCategory(ErrCodeIneligibleItem))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodeDuplicateApplication))
	assert.Equal(t, "DOCUMENT", GetErrorCategory(ErrCodeResumeUnreadable))
	assert.Equal(t, "COMMUNICATION", GetErrorCategory(ErrCodeNotificationSendFailed))
	assert.Equal(t, "AUTH", GetErrorCategory(ErrCodePortalAuthFailed))
	assert.True(t, IsRetryableErrorCode(ErrCodeQueryExecutionFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeInvalidInput))
}
