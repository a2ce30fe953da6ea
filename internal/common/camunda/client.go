// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"geoincra-portal/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Client is the broker connection shared by the job workers and the
// proposal-generated publisher.
type Client struct {
	client     zbc.Client
	timeout    time.Duration
	messageTTL time.Duration
	retry      RetryConfig
}

type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
	// MessageTTL keeps a published message around until a process instance
	// with the matching correlation key reaches its catch event.
	MessageTTL time.Duration
	Retry      *RetryConfig
}

type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = RetryConfig{
	MaxRetries: 3,
	BaseDelay:  500 * time.Millisecond,
	MaxDelay:   5 * time.Second,
}

const defaultMessageTTL = time.Hour

// NewClientWithConfig dials the gateway and checks the topology before
// returning.
func NewClientWithConfig(cfg *ClientConfig) (*Client, error) {
	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         cfg.GatewayAddress,
		UsePlaintextConnection: cfg.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	c := newClient(zeebeClient, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectionTimeout)
	defer cancel()
	if _, err := zeebeClient.NewTopologyCommand().Send(ctx); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", cfg.GatewayAddress, err)
	}
	return c, nil
}

func newClient(zc zbc.Client, cfg *ClientConfig) *Client {
	c := &Client{
		client:     zc,
		timeout:    cfg.RequestTimeout,
		messageTTL: cfg.MessageTTL,
		retry:      DefaultRetryConfig,
	}
	if cfg.Retry != nil {
		c.retry = *cfg.Retry
	}
	if c.timeout <= 0 {
		c.timeout = 30 * time.Second
	}
	if c.messageTTL <= 0 {
		c.messageTTL = defaultMessageTTL
	}
	return c
}

// GetClient returns the raw Zeebe client the job workers poll with.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// PublishMessage correlates name with the process instance waiting on
// correlationKey. Transient broker errors are retried.
func (c *Client) PublishMessage(ctx context.Context, name, correlationKey string, variables map[string]interface{}) error {
	return c.withRetry(ctx, name, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		cmd, err := c.client.NewPublishMessageCommand().
			MessageName(name).
			CorrelationKey(correlationKey).
			TimeToLive(c.messageTTL).
			VariablesFromMap(variables)
		if err != nil {
			return err
		}
		_, err = cmd.Send(ctx)
		return err
	})
}

// HealthCheck is the readiness check for the broker.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe health check failed: %w", err)
	}
	return nil
}

// withRetry runs op with exponential backoff while the broker reports a
// transient failure, and maps the final error to WORKFLOW_PUBLISH_FAILED.
func (c *Client) withRetry(ctx context.Context, operation string, op func(context.Context) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if !isRetryableZeebeError(err) || attempt >= c.retry.MaxRetries {
			return mapZeebeError(err, operation, attempt+1)
		}

		delay := c.retry.BaseDelay << attempt
		if delay > c.retry.MaxDelay {
			delay = c.retry.MaxDelay
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return mapZeebeError(ctx.Err(), operation, attempt+1)
		}
	}
}

var retryablePhrases = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"deadline exceeded",
	"unavailable",
	"resource_exhausted",
	"resource exhausted",
	"broken pipe",
}

func isRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, phrase := range retryablePhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

func mapZeebeError(err error, operation string, attempts int) error {
	wrapped := fmt.Errorf("after %d attempt(s): %w", attempts, err)
	stdErr := errors.NewWorkflowPublishFailedError(operation, wrapped)
	if !isRetryableZeebeError(err) {
		stdErr.Retryable = false
	}
	return stdErr
}
