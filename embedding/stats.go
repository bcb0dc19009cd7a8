package embedding

import (
	"sync"
	"time"
)

const latencyWindow = 100

// Stats is a snapshot of Client counters.
type Stats struct {
	Requests        int64
	CacheHits       int64
	CacheMisses     int64
	Successes       int64
	Failures        int64
	ProviderErrors  int64
	Retries         int64
	RateLimitWaits  int64
	QuotaRejections int64
	EstimatedTokens int64
	EstimatedCost   float64
	AverageLatency  time.Duration
	InFlight        int
	Quota           QuotaUsage
}

// counters is the mutable state behind Stats.
type counters struct {
	mu              sync.Mutex
	requests        int64
	cacheHits       int64
	cacheMisses     int64
	successes       int64
	failures        int64
	providerErrors  int64
	retries         int64
	rateLimitWaits  int64
	quotaRejections int64
	tokens          int64
	cost            float64
	inFlight        int
	latencies       [latencyWindow]time.Duration
	latencyNext     int
	latencyCount    int
}

func (c *counters) update(fn func(c *counters)) {
	c.mu.Lock()
	fn(c)
	c.mu.Unlock()
}

// recordLatency must be called with the lock held.
func (c *counters) recordLatency(d time.Duration) {
	c.latencies[c.latencyNext] = d
	c.latencyNext = (c.latencyNext + 1) % latencyWindow
	if c.latencyCount < latencyWindow {
		c.latencyCount++
	}
}

func (c *counters) snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var avg time.Duration
	if c.latencyCount > 0 {
		var sum time.Duration
		for i := 0; i < c.latencyCount; i++ {
			sum += c.latencies[i]
		}
		avg = sum / time.Duration(c.latencyCount)
	}

	return Stats{
		Requests:        c.requests,
		CacheHits:       c.cacheHits,
		CacheMisses:     c.cacheMisses,
		Successes:       c.successes,
		Failures:        c.failures,
		ProviderErrors:  c.providerErrors,
		Retries:         c.retries,
		RateLimitWaits:  c.rateLimitWaits,
		QuotaRejections: c.quotaRejections,
		EstimatedTokens: c.tokens,
		EstimatedCost:   c.cost,
		AverageLatency:  avg,
		InFlight:        c.inFlight,
	}
}
