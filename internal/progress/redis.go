// Package progress makes batch progress visible outside the process running
// the batch: the latest snapshot and final result are kept in redis and live
// events are pushed to websocket subscribers.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/pipeline"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 24 * time.Hour

func ProgressKey(batchID string) string { return fmt.Sprintf("batch:%s:progress", batchID) }
func ResultKey(batchID string) string   { return fmt.Sprintf("batch:%s:result", batchID) }
func EventsChannel(batchID string) string {
	return fmt.Sprintf("batch:%s:events", batchID)
}

// RedisPublisher is both a pipeline.Observer and a pipeline.BatchReporter.
// Write failures are logged and never reach the batch.
type RedisPublisher struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisPublisher(client *redis.Client, ttl time.Duration, log logger.Logger) *RedisPublisher {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisPublisher{
		client: client,
		ttl:    ttl,
		logger: logger.ForComponent(log, "progress-redis"),
	}
}

func (p *RedisPublisher) OnProgress(ctx context.Context, ev pipeline.Progress) {
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("progress not encoded", map[string]interface{}{"batchId": ev.BatchID, "error": err})
		return
	}
	pipe := p.client.TxPipeline()
	pipe.Set(ctx, ProgressKey(ev.BatchID), data, p.ttl)
	pipe.Publish(ctx, EventsChannel(ev.BatchID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		p.logger.Warn("progress not published", map[string]interface{}{"batchId": ev.BatchID, "error": err})
	}
}

func (p *RedisPublisher) OnBatchComplete(ctx context.Context, result *pipeline.BatchResult) {
	data, err := json.Marshal(result)
	if err != nil {
		p.logger.Warn("result not encoded", map[string]interface{}{"batchId": result.BatchID, "error": err})
		return
	}
	if err := p.client.Set(ctx, ResultKey(result.BatchID), data, p.ttl).Err(); err != nil {
		p.logger.Warn("result not stored", map[string]interface{}{"batchId": result.BatchID, "error": err})
	}
}

// Latest returns the last snapshot, or nil when none is stored.
func (p *RedisPublisher) Latest(ctx context.Context, batchID string) (*pipeline.Progress, error) {
	var ev pipeline.Progress
	ok, err := p.get(ctx, ProgressKey(batchID), &ev)
	if !ok {
		return nil, err
	}
	return &ev, nil
}

// Result returns the final result, or nil while the batch is still running
// or after the TTL expired.
func (p *RedisPublisher) Result(ctx context.Context, batchID string) (*pipeline.BatchResult, error) {
	var res pipeline.BatchResult
	ok, err := p.get(ctx, ResultKey(batchID), &res)
	if !ok {
		return nil, err
	}
	return &res, nil
}

func (p *RedisPublisher) get(ctx context.Context, key string, v interface{}) (bool, error) {
	raw, err := p.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}
