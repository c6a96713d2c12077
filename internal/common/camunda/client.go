// internal/common/camunda/client.go
package camunda

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ucap-workers/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// Client owns the gateway connection shared by the query workers.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	// RequestTimeout bounds each attempt of a gateway command; 0 leaves it to the caller.
	RequestTimeout time.Duration
	Retry          RetryPolicy
}

// RetryPolicy controls how transient gateway failures are retried.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryPolicy = RetryPolicy{
	MaxRetries: 3,
	BaseDelay:  time.Second,
	MaxDelay:   10 * time.Second,
}

// backoff returns the wait before retry number attempt+1.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay << attempt
	if delay <= 0 || (p.MaxDelay > 0 && delay > p.MaxDelay) {
		return p.MaxDelay
	}
	return delay
}

// NewClientWithConfig dials the gateway and verifies it answers a topology request.
func NewClientWithConfig(config *ClientConfig) (*Client, error) {
	if config.Retry == (RetryPolicy{}) {
		config.Retry = DefaultRetryPolicy
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

	c := &Client{client: zeebeClient, config: config}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectionTimeout)
	defer cancel()
	if err := c.topology(ctx); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", config.GatewayAddress, err)
	}

	return c, nil
}

// GetClient returns the raw Zeebe client used to open job workers.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Ping reports whether the gateway is reachable, retrying transient failures.
// It backs the zeebe entry of the /ready check.
func (c *Client) Ping(ctx context.Context) error {
	_, err := Retry(ctx, c.config, "topology", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.topology(ctx)
	})
	return err
}

func (c *Client) topology(ctx context.Context) error {
	_, err := c.client.NewTopologyCommand().Send(ctx)
	return err
}

// Retry runs a gateway command until it succeeds, fails permanently or the
// policy is exhausted. Failures come back as StandardErrors.
func Retry[T any](ctx context.Context, cfg *ClientConfig, operation string, command func(context.Context) (T, error)) (T, error) {
	var zero T
	policy := cfg.Retry

	for attempt := 0; ; attempt++ {
		result, err := runAttempt(ctx, cfg.RequestTimeout, command)
		if err == nil {
			return result, nil
		}
		if !isRetryableZeebeError(err) || attempt >= policy.MaxRetries {
			return zero, mapZeebeError(err, operation, attempt)
		}

		select {
		case <-time.After(policy.backoff(attempt)):
		case <-ctx.Done():
			return zero, fmt.Errorf("zeebe %s cancelled after %d attempts: %w", operation, attempt+1, ctx.Err())
		}
	}
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, command func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return command(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return command(attemptCtx)
}

var (
	unreachablePhrases = []string{"connection refused", "connection reset", "unavailable", "unreachable", "broken pipe"}
	timeoutPhrases     = []string{"timeout", "deadline exceeded"}
)

func containsAny(msg string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

func isRetryableZeebeError(err error) bool {
	msg := strings.ToLower(err.Error())
	return containsAny(msg, unreachablePhrases) || containsAny(msg, timeoutPhrases)
}

func mapZeebeError(err error, operation string, attempt int) error {
	wrapped := fmt.Errorf("zeebe %s failed: %w", operation, err)
	if attempt > 0 {
		wrapped = fmt.Errorf("zeebe %s failed after %d attempts: %w", operation, attempt+1, err)
	}

	if containsAny(strings.ToLower(err.Error()), timeoutPhrases) {
		return errors.NewTimeoutError("zeebe", wrapped)
	}
	return errors.NewExternalServiceError("zeebe", wrapped)
}
