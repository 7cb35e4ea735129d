// ABOUTME: Tests for the transient-error retry policy.
// ABOUTME: Only rate-limit errors retry; everything else returns immediately.

package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: attempts,
		MinWait:     time.Millisecond,
		MaxWait:     4 * time.Millisecond,
	}
}

func TestRetryPolicy_SucceedsFirstTry(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), slog.Default(), func() error {
		calls++
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_RetriesRateLimited(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), slog.Default(), func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("backend: %w", ErrRateLimited)
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), slog.Default(), func() error {
		calls++
		return fmt.Errorf("backend: %w", ErrRateLimited)
	})

	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_NonTransientErrorReturnsImmediately(t *testing.T) {
	fatal := errors.New("model not found")
	calls := 0
	err := fastPolicy(3).Do(context.Background(), slog.Default(), func() error {
		calls++
		return fatal
	})

	assert.ErrorIs(t, err, fatal)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_CanceledContextStopsBackoff(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, MinWait: time.Minute, MaxWait: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := policy.Do(ctx, slog.Default(), func() error {
		return fmt.Errorf("backend: %w", ErrRateLimited)
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
