package vectorstore

import (
	"sync"
	"time"
)

// OpMetrics are running totals for one operation.
type OpMetrics struct {
	Calls        int64
	Errors       int64
	SlowQueries  int64
	TotalLatency time.Duration
}

// AverageLatency returns TotalLatency / Calls.
func (m OpMetrics) AverageLatency() time.Duration {
	if m.Calls == 0 {
		return 0
	}
	return m.TotalLatency / time.Duration(m.Calls)
}

// Metrics are running totals across all operations.
type Metrics struct {
	OpMetrics
	CacheHits int64
	ByOp      map[string]OpMetrics
}

type metricsRecorder struct {
	mu        sync.Mutex
	total     OpMetrics
	cacheHits int64
	byOp      map[string]OpMetrics
}

func newMetricsRecorder() *metricsRecorder {
	return &metricsRecorder{byOp: make(map[string]OpMetrics)}
}

func (r *metricsRecorder) record(op string, latency time.Duration, failed, slow bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m := r.byOp[op]
	for _, t := range []*OpMetrics{&r.total, &m} {
		t.Calls++
		t.TotalLatency += latency
		if failed {
			t.Errors++
		}
		if slow {
			t.SlowQueries++
		}
	}
	r.byOp[op] = m
}

func (r *metricsRecorder) cacheHit() {
	r.mu.Lock()
	r.cacheHits++
	r.mu.Unlock()
}

func (r *metricsRecorder) snapshot() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	byOp := make(map[string]OpMetrics, len(r.byOp))
	for k, v := range r.byOp {
		byOp[k] = v
	}
	return Metrics{OpMetrics: r.total, CacheHits: r.cacheHits, ByOp: byOp}
}
