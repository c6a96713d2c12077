package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "ucap-workers/internal/common/errors"
)

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"rpc error: code = Unavailable desc = connection refused", true},
		{"context deadline exceeded", true},
		{"write: broken pipe", true},
		{"NOT_FOUND: job 42 not found", false},
		{"permission denied", false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableZeebeError(errors.New(tt.msg)))
		})
	}
}

func TestMapZeebeError(t *testing.T) {
	timeout := mapZeebeError(errors.New("deadline exceeded"), "complete-job", 2)
	stdErr, ok := apperrors.AsStandardError(timeout)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorCode("TIMEOUT_ERROR"), stdErr.Code)
	assert.Contains(t, stdErr.Details, "after 3 attempts")

	other := mapZeebeError(errors.New("job not found"), "complete-job", 0)
	stdErr, ok = apperrors.AsStandardError(other)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorCode("EXTERNAL_SERVICE_ERROR"), stdErr.Code)
	assert.Equal(t, "zeebe complete-job failed: job not found", stdErr.Details)
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := RetryPolicy{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	assert.Equal(t, 100*time.Millisecond, p.backoff(0))
	assert.Equal(t, 400*time.Millisecond, p.backoff(2))
	assert.Equal(t, time.Second, p.backoff(5))
}

func TestRetry(t *testing.T) {
	cfg := &ClientConfig{Retry: RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   2 * time.Millisecond,
	}}

	t.Run("recovers from transient errors", func(t *testing.T) {
		attempts := 0
		out, err := Retry(context.Background(), cfg, "topology", func(ctx context.Context) (string, error) {
			attempts++
			if attempts < 3 {
				return "", errors.New("connection reset by peer")
			}
			return "ok", nil
		})

		require.NoError(t, err)
		assert.Equal(t, "ok", out)
		assert.Equal(t, 3, attempts)
	})

	t.Run("stops on permanent errors", func(t *testing.T) {
		attempts := 0
		_, err := Retry(context.Background(), cfg, "topology", func(ctx context.Context) (int, error) {
			attempts++
			return 0, errors.New("invalid argument")
		})

		require.Error(t, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		attempts := 0
		_, err := Retry(context.Background(), cfg, "topology", func(ctx context.Context) (int, error) {
			attempts++
			return 0, errors.New("unavailable")
		})

		require.Error(t, err)
		assert.Equal(t, 4, attempts)
		stdErr, ok := apperrors.AsStandardError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrorCode("EXTERNAL_SERVICE_ERROR"), stdErr.Code)
	})

	t.Run("bounds each attempt by the request timeout", func(t *testing.T) {
		bounded := &ClientConfig{RequestTimeout: 10 * time.Millisecond, Retry: cfg.Retry}
		_, err := Retry(context.Background(), bounded, "topology", func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})

		stdErr, ok := apperrors.AsStandardError(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.ErrorCode("TIMEOUT_ERROR"), stdErr.Code)
	})

	t.Run("caller cancellation stops retries", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		slow := &ClientConfig{Retry: RetryPolicy{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}}
		attempts := 0
		_, err := Retry(ctx, slow, "topology", func(ctx context.Context) (int, error) {
			attempts++
			cancel()
			return 0, errors.New("connection refused")
		})

		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, attempts)
	})
}
