package workdayapply

import (
	"context"
	"errors"
	"testing"

	apperrors "jobapply-workers/internal/common/errors"
	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, flow, userID string, jobIDs []string, batchID string) (*pipeline.BatchResult, error) {
	args := m.Called(ctx, flow, userID, jobIDs, batchID)
	if r := args.Get(0); r != nil {
		return r.(*pipeline.BatchResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name         string
		result       *pipeline.BatchResult
		applied      bool
		confirmation string
	}{
		{
			name: "applied",
			result: &pipeline.BatchResult{
				Successful:    []string{"j1"},
				Confirmations: map[string]string{"j1": "WD-J1"},
			},
			applied:      true,
			confirmation: "WD-J1",
		},
		{
			name:   "submission failed",
			result: &pipeline.BatchResult{Failed: []string{"j1"}},
		},
		{
			name:   "external only",
			result: &pipeline.BatchResult{Ineligible: []string{"j1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := new(MockRunner)
			runner.On("Run", mock.Anything, pipeline.FlowWorkday, "u1", []string{"j1"}, "").Return(tt.result, nil)

			h, err := NewHandler(&Config{}, runner, logger.NewTestLogger(t))
			require.NoError(t, err)

			result, output, err := h.Execute(context.Background(), `{"userId":"u1","jobId":"j1"}`)
			require.NoError(t, err)
			assert.Same(t, tt.result, result)
			assert.Equal(t, tt.applied, output.Applied)
			assert.Equal(t, tt.confirmation, output.ConfirmationNumber)
			runner.AssertExpectations(t)
		})
	}
}

func TestHandler_Execute_Errors(t *testing.T) {
	runner := new(MockRunner)
	h, err := NewHandler(&Config{}, runner, logger.NewTestLogger(t))
	require.NoError(t, err)

	_, _, err = h.Execute(context.Background(), `{"userId":"u1"}`)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))

	_, _, err = h.Execute(context.Background(), `{"userId":"u1","jobId":7}`)
	assert.Equal(t, apperrors.ErrCodeInvalidInput, apperrors.CodeOf(err))

	runner.On("Run", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))
	_, _, err = h.Execute(context.Background(), `{"userId":"u1","jobId":"j1"}`)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorCode("INTERNAL_ERROR"), apperrors.CodeOf(err))
}
