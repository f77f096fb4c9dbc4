package connector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry(t *testing.T) {
	errRefused := errors.New("connection refused")

	tests := []struct {
		name          string
		opts          RetryConfig
		failures      int
		expectError   bool
		expectedCalls int
	}{
		{name: "FirstAttempt", opts: RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond}, failures: 0, expectedCalls: 1},
		{name: "RecoversAfterFailures", opts: RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond}, failures: 2, expectedCalls: 3},
		{name: "Exhausted", opts: RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond}, failures: 5, expectError: true, expectedCalls: 3},
		{name: "NoRetries", opts: RetryConfig{}, failures: 1, expectError: true, expectedCalls: 1},
		{name: "CappedDelay", opts: RetryConfig{MaxRetries: 4, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Backoff: 10}, failures: 4, expectedCalls: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			result, err := retry(context.Background(), tt.opts, func(context.Context) (int, error) {
				calls++
				if calls <= tt.failures {
					return 0, errRefused
				}
				return 42, nil
			})

			assert.Equal(t, tt.expectedCalls, calls)
			if tt.expectError {
				assert.ErrorIs(t, err, errRefused)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 42, result)
		})
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := retry(ctx, RetryConfig{MaxRetries: 10, BaseDelay: time.Hour}, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errors.New("connection refused")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
