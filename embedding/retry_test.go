package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/vectorpipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transient() error {
	return &core.ProviderError{StatusCode: 429, Transient: true, Err: errors.New("too many requests")}
}

func TestRetryPolicy_Delay(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, BaseDelay: time.Second}
	assert.Equal(t, time.Second, p.Delay(0))
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, time.Second, p.Delay(-1))
	assert.Equal(t, 3*time.Second, p.TotalDelay(2))
	assert.Equal(t, time.Duration(0), p.TotalDelay(0))
}

func TestRetryPolicy_EventualSuccess(t *testing.T) {
	var slept []time.Duration
	sleep := func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	attempts := 0
	var retried []int
	p := RetryPolicy{MaxRetries: 3, BaseDelay: 10 * time.Millisecond}
	err := p.Do(context.Background(), sleep, func(attempt int) error {
		attempts++
		if attempts < 3 {
			return transient()
		}
		return nil
	}, func(attempt int, delay time.Duration, err error) {
		retried = append(retried, attempt)
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "should succeed on third attempt")
	assert.Equal(t, []int{0, 1}, retried)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, slept)
}

func TestRetryPolicy_AllAttemptsFail(t *testing.T) {
	attempts := 0
	p := RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond}
	err := p.Do(context.Background(), nil, func(int) error {
		attempts++
		return transient()
	}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrTransientProvider)
	assert.Equal(t, 3, attempts, "should attempt once plus MaxRetries")
}

func TestRetryPolicy_NonRetryableStopsImmediately(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"validation", core.NewValidationError("text", "empty")},
		{"quota", &core.QuotaExceededError{Limit: 1}},
		{"permanent provider", &core.ProviderError{StatusCode: 401, Err: errors.New("bad key")}},
		{"plain", errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := 0
			p := RetryPolicy{MaxRetries: 5, BaseDelay: time.Millisecond}
			err := p.Do(context.Background(), nil, func(int) error {
				attempts++
				return tt.err
			}, nil)
			assert.Equal(t, tt.err, err)
			assert.Equal(t, 1, attempts)
		})
	}
}

func TestRetryPolicy_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	p := RetryPolicy{MaxRetries: 10, BaseDelay: 10 * time.Millisecond}
	err := p.Do(ctx, nil, func(int) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return transient()
	}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, attempts, 2, "should stop when context is canceled")
}

func TestRetryPolicy_InvalidMaxRetries(t *testing.T) {
	p := RetryPolicy{MaxRetries: -1}
	err := p.Do(context.Background(), nil, func(int) error { return nil }, nil)
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
}
