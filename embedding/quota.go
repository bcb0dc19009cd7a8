package embedding

import (
	"context"
	"sync"
	"time"

	"github.com/poiesic/vectorpipe/core"
)

const (
	minuteWindow = time.Minute
	dayWindow    = 24 * time.Hour
)

// QuotaUsage is a snapshot of the current windows.
type QuotaUsage struct {
	MinuteUsed  int
	MinuteLimit int
	DayUsed     int
	DayLimit    int
	DayResetAt  time.Time
}

// QuotaLimiter enforces per-minute and per-day request caps over sliding
// windows: a request counts against a cap until a full window has passed
// since it was admitted.
type QuotaLimiter struct {
	perMinute int
	perDay    int
	now       func() time.Time
	sleep     Sleeper

	mu     sync.Mutex
	minute []time.Time
	day    []time.Time
}

// NewQuotaLimiter creates a limiter. now and sleep may be nil to use the wall clock.
func NewQuotaLimiter(perMinute, perDay int, now func() time.Time, sleep Sleeper) *QuotaLimiter {
	if now == nil {
		now = time.Now
	}
	if sleep == nil {
		sleep = SleepContext
	}
	return &QuotaLimiter{perMinute: perMinute, perDay: perDay, now: now, sleep: sleep}
}

// Acquire reserves one request. When the minute cap is reached it sleeps until
// the oldest request leaves the window and tries again, calling onWait with
// the wait duration. When the day cap is reached it returns a
// *core.QuotaExceededError immediately.
func (q *QuotaLimiter) Acquire(ctx context.Context, onWait func(time.Duration)) error {
	for {
		wait, err := q.tryAcquire()
		if err != nil {
			return err
		}
		if wait == 0 {
			return nil
		}
		if onWait != nil {
			onWait(wait)
		}
		if err := q.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (q *QuotaLimiter) tryAcquire() (time.Duration, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	q.prune(now)

	if len(q.day) >= q.perDay {
		return 0, &core.QuotaExceededError{Limit: q.perDay, ResetAt: q.dayResetAt(now)}
	}
	if len(q.minute) >= q.perMinute {
		wait := q.minute[0].Add(minuteWindow).Sub(now)
		if wait <= 0 {
			wait = time.Millisecond
		}
		return wait, nil
	}

	q.minute = append(q.minute, now)
	q.day = append(q.day, now)
	return 0, nil
}

// prune drops requests that have aged out of their window. The lock must be held.
func (q *QuotaLimiter) prune(now time.Time) {
	q.minute = expire(q.minute, now, minuteWindow)
	q.day = expire(q.day, now, dayWindow)
}

func expire(log []time.Time, now time.Time, window time.Duration) []time.Time {
	i := 0
	for i < len(log) && now.Sub(log[i]) >= window {
		i++
	}
	if i == 0 {
		return log
	}
	// Copy down so the backing array does not grow without bound.
	return append(log[:0], log[i:]...)
}

// dayResetAt is when the oldest counted request leaves the day window.
func (q *QuotaLimiter) dayResetAt(now time.Time) time.Time {
	if len(q.day) == 0 {
		return now.Add(dayWindow)
	}
	return q.day[0].Add(dayWindow)
}

// Exhausted reports whether the day cap has been reached.
func (q *QuotaLimiter) Exhausted() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.prune(q.now())
	return len(q.day) >= q.perDay
}

// Usage returns the requests currently counted in each window.
func (q *QuotaLimiter) Usage() QuotaUsage {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	q.prune(now)
	return QuotaUsage{
		MinuteUsed:  len(q.minute),
		MinuteLimit: q.perMinute,
		DayUsed:     len(q.day),
		DayLimit:    q.perDay,
		DayResetAt:  q.dayResetAt(now),
	}
}
