package database

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"jobapply-workers/internal/common/config"

	"github.com/elastic/go-elasticsearch/v8"
)

// ElasticsearchClient wraps the client that stores finished batch results.
type ElasticsearchClient struct {
	Client *elasticsearch.Client
}

func NewElasticsearch(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	addresses := cfg.Addresses
	if len(addresses) == 0 && cfg.URL != "" {
		addresses = []string{cfg.URL}
	}

	esCfg := elasticsearch.Config{Addresses: addresses}
	if cfg.Username != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	es, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &ElasticsearchClient{Client: es}, nil
}

func (c *ElasticsearchClient) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := c.Client.Ping(c.Client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping error: %s", res.Status())
	}
	return nil
}

const batchIndexMapping = `{
  "mappings": {
    "properties": {
      "batchId":      {"type": "keyword"},
      "userId":       {"type": "keyword"},
      "flow":         {"type": "keyword"},
      "successful":   {"type": "keyword"},
      "failed":       {"type": "keyword"},
      "ineligible":   {"type": "keyword"},
      "notAttempted": {"type": "keyword"},
      "completed":    {"type": "integer"},
      "total":        {"type": "integer"},
      "startedAt":    {"type": "date"},
      "finishedAt":   {"type": "date"}
    }
  }
}`

// EnsureIndex creates the batch index with its mapping when it is missing.
func (c *ElasticsearchClient) EnsureIndex(ctx context.Context, index string) error {
	res, err := c.Client.Indices.Exists([]string{index}, c.Client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("index exists check failed: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = c.Client.Indices.Create(
		index,
		c.Client.Indices.Create.WithContext(ctx),
		c.Client.Indices.Create.WithBody(strings.NewReader(batchIndexMapping)),
	)
	if err != nil {
		return fmt.Errorf("index create failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != http.StatusBadRequest {
		return fmt.Errorf("index create error: %s", res.Status())
	}
	return nil
}
