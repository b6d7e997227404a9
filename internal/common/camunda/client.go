package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"jobapply-workers/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Client wraps the Zeebe gateway client used by the job workers and the
// batch completion messages.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
	RetryConfig            *RetryConfig
}

// RetryConfig bounds the backoff applied to gateway commands.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = &RetryConfig{
	MaxRetries: 3,
	BaseDelay:  500 * time.Millisecond,
	MaxDelay:   5 * time.Second,
}

// NewClientWithConfig creates the gateway client and verifies it with a
// topology request.
func NewClientWithConfig(config *ClientConfig) (*Client, error) {
	if config.RetryConfig == nil {
		config.RetryConfig = DefaultRetryConfig
	}
	if config.ConnectionTimeout <= 0 {
		config.ConnectionTimeout = 10 * time.Second
	}

	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectionTimeout)
	defer cancel()

	if _, err := zeebeClient.NewTopologyCommand().Send(ctx); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", config.GatewayAddress, err)
	}

	return &Client{
		client: zeebeClient,
		config: config,
	}, nil
}

// GetClient returns the raw Zeebe client for opening job workers.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}

// PublishMessage correlates a message to the process instance waiting on
// correlationKey. Each attempt is bounded by RequestTimeout.
func (c *Client) PublishMessage(ctx context.Context, name, correlationKey string, ttl time.Duration, vars map[string]interface{}) error {
	return withRetry(ctx, c.config.RetryConfig, "publish "+name, func(ctx context.Context) error {
		cmd, err := c.client.NewPublishMessageCommand().
			MessageName(name).
			CorrelationKey(correlationKey).
			TimeToLive(ttl).
			VariablesFromMap(vars)
		if err != nil {
			return err
		}
		if c.config.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
			defer cancel()
		}
		_, err = cmd.Send(ctx)
		return err
	})
}

// withRetry runs op with exponential backoff, retrying transient gateway
// errors only. The final error is a StandardError.
func withRetry(ctx context.Context, cfg *RetryConfig, operation string, op func(context.Context) error) error {
	if cfg == nil {
		cfg = DefaultRetryConfig
	}
	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !isTransient(err) || attempt >= cfg.MaxRetries {
			return gatewayError(operation, attempt+1, err)
		}

		delay := cfg.BaseDelay << attempt
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return errors.NewTimeoutError("zeebe", fmt.Errorf("%s cancelled after %d attempts: %w", operation, attempt+1, ctx.Err()))
		}
	}
}

var transientPhrases = []string{
	"connection refused",
	"connection reset",
	"deadline exceeded",
	"timeout",
	"unavailable",
	"resource_exhausted",
}

func isTransient(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, phrase := range transientPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

func gatewayError(operation string, attempts int, err error) error {
	wrapped := fmt.Errorf("zeebe %s failed after %d attempt(s): %w", operation, attempts, err)
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "deadline exceeded") || strings.Contains(msg, "timeout"):
		return errors.NewTimeoutError("zeebe", wrapped)
	case strings.Contains(msg, "already exists"):
		return errors.NewBusinessRuleError(wrapped.Error(), "message with this id was already published")
	case strings.Contains(msg, "permission denied") || strings.Contains(msg, "unauthenticated"):
		return errors.NewAuthenticationError(wrapped.Error())
	default:
		return errors.NewExternalServiceError("zeebe", wrapped)
	}
}
