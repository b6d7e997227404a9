package progress

import (
	"context"
	"time"

	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/pipeline"
)

// BatchCompletedMessage is caught by intermediate message events waiting for
// a batch started outside the process, correlated by batch id.
const BatchCompletedMessage = "batch-completed"

// MessagePublisher is satisfied by camunda.Client.
type MessagePublisher interface {
	PublishMessage(ctx context.Context, name, correlationKey string, ttl time.Duration, vars map[string]interface{}) error
}

// ZeebeNotifier publishes the finished result as a Zeebe message so a
// process that started a batch over HTTP can resume.
type ZeebeNotifier struct {
	publisher MessagePublisher
	ttl       time.Duration
	logger    logger.Logger
}

func NewZeebeNotifier(publisher MessagePublisher, ttl time.Duration, log logger.Logger) *ZeebeNotifier {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ZeebeNotifier{
		publisher: publisher,
		ttl:       ttl,
		logger:    logger.ForComponent(log, "progress-zeebe"),
	}
}

func (z *ZeebeNotifier) OnBatchComplete(ctx context.Context, result *pipeline.BatchResult) {
	vars, err := result.ToVariables()
	if err != nil {
		z.logger.Warn("result not encoded", map[string]interface{}{"batchId": result.BatchID, "error": err})
		return
	}
	if err := z.publisher.PublishMessage(ctx, BatchCompletedMessage, result.BatchID, z.ttl, vars); err != nil {
		z.logger.Warn("batch completion not published", map[string]interface{}{
			"batchId": result.BatchID,
			"error":   err,
		})
		return
	}
	z.logger.Debug("batch completion published", map[string]interface{}{"batchId": result.BatchID})
}
