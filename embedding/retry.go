package embedding

import (
	"context"
	"errors"
	"time"

	"github.com/poiesic/vectorpipe/core"
)

// RetryPolicy is a bounded exponential backoff schedule.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BaseDelay is the delay before the first retry; each later retry doubles it.
	BaseDelay time.Duration
}

// Delay returns the wait before retry number attempt+1, i.e. BaseDelay * 2^attempt
// where attempt is the zero-based index of the attempt that just failed.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return p.BaseDelay << uint(attempt)
}

// TotalDelay returns the sum of the delays of the first n retries.
func (p RetryPolicy) TotalDelay(n int) time.Duration {
	var total time.Duration
	for i := 0; i < n; i++ {
		total += p.Delay(i)
	}
	return total
}

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	return errors.Is(err, core.ErrTransientProvider)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the default Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs operation until it succeeds, fails with a non-retryable error,
// or the retry budget is spent. onRetry, if set, is called before each wait.
// Returns the error from the last attempt if all attempts fail.
func (p RetryPolicy) Do(ctx context.Context, sleep Sleeper, operation func(attempt int) error, onRetry func(attempt int, delay time.Duration, err error)) error {
	if p.MaxRetries < 0 {
		return ErrInvalidMaxAttempts
	}
	if sleep == nil {
		sleep = SleepContext
	}

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation(attempt)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) || attempt == p.MaxRetries {
			break
		}

		delay := p.Delay(attempt)
		if onRetry != nil {
			onRetry(attempt, delay, lastErr)
		}
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}
