package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"jobapply-workers/internal/common/logger"
	"jobapply-workers/internal/pipeline"

	"github.com/elastic/go-elasticsearch/v8"
)

// BatchIndex keeps finished batch results searchable per user.
type BatchIndex struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewBatchIndex(client *elasticsearch.Client, index string, log logger.Logger) *BatchIndex {
	return &BatchIndex{
		client: client,
		index:  index,
		logger: logger.ForComponent(log, "batch-index"),
	}
}

func (b *BatchIndex) Index(ctx context.Context, result *pipeline.BatchResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal batch result: %w", err)
	}
	res, err := b.client.Index(
		b.index,
		bytes.NewReader(body),
		b.client.Index.WithContext(ctx),
		b.client.Index.WithDocumentID(result.BatchID),
	)
	if err != nil {
		return fmt.Errorf("index batch %s: %w", result.BatchID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index batch %s: %s", result.BatchID, res.Status())
	}
	return nil
}

// Get returns a previously indexed result, or nil when it is unknown.
func (b *BatchIndex) Get(ctx context.Context, batchID string) (*pipeline.BatchResult, error) {
	res, err := b.client.Get(b.index, batchID, b.client.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("get batch %s: %w", batchID, err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("get batch %s: %s", batchID, res.Status())
	}

	var doc struct {
		Source pipeline.BatchResult `json:"_source"`
	}
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode batch %s: %w", batchID, err)
	}
	return &doc.Source, nil
}

// OnBatchComplete lets the index act as a batch reporter.
func (b *BatchIndex) OnBatchComplete(ctx context.Context, result *pipeline.BatchResult) {
	if err := b.Index(ctx, result); err != nil {
		b.logger.Warn("batch result not indexed", map[string]interface{}{
			"batchId": result.BatchID,
			"error":   err,
		})
	}
}
