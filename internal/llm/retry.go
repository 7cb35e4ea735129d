// ABOUTME: Bounded exponential backoff for transient provider errors
// ABOUTME: Retries rate-limited calls before the router's fallback chain runs

package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RetryPolicy controls how transient provider errors are retried.
// Only errors matching ErrRateLimited are retried; everything else is
// returned immediately so the fallback chain can take over.
type RetryPolicy struct {
	MaxAttempts int
	MinWait     time.Duration
	MaxWait     time.Duration
}

// DefaultRetryPolicy mirrors the backend rate-limit policy: up to 3
// attempts with exponential backoff between 2s and 60s.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 3,
	MinWait:     2 * time.Second,
	MaxWait:     60 * time.Second,
}

// Do runs fn, retrying transient failures per the policy. The last error
// is returned once attempts are exhausted or a non-transient error occurs.
func (p RetryPolicy) Do(ctx context.Context, logger *slog.Logger, fn func() error) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	wait := p.MinWait
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrRateLimited) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}

		logger.Warn("provider rate limited, backing off",
			"attempt", attempt,
			"wait", wait,
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		wait *= 2
		if wait > p.MaxWait {
			wait = p.MaxWait
		}
	}
	return err
}
