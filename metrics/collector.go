// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exports embedding, vector store and job events to Prometheus.
package metrics

import (
	"errors"
	"net/http"
	"strings"

	"github.com/poiesic/vectorpipe/embedding"
	"github.com/poiesic/vectorpipe/orchestrator"
	"github.com/poiesic/vectorpipe/vectorstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vectorpipe"

// Collector owns a registry and implements the observer interfaces of the
// embedding client, the vector store client and the orchestrator.
type Collector struct {
	registry *prometheus.Registry

	embeddingEvents  *prometheus.CounterVec
	embeddingLatency prometheus.Histogram
	embeddingTokens  prometheus.Counter
	rateLimitWait    prometheus.Histogram

	storeCalls   *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec
	storeSlow    *prometheus.CounterVec

	jobs        *prometheus.CounterVec
	jobDuration *prometheus.HistogramVec
}

var (
	_ embedding.Observer    = (*Collector)(nil)
	_ vectorstore.Observer  = (*Collector)(nil)
	_ orchestrator.Observer = (*Collector)(nil)
)

// NewCollector creates a collector with its own registry.
func NewCollector() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		embeddingEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "embedding_events_total",
				Help:      "Embedding client events by type.",
			},
			[]string{"event"},
		),
		embeddingLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_latency_seconds",
			Help:      "Latency of successful provider calls.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		embeddingTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_tokens_total",
			Help:      "Estimated tokens sent to the embedding provider.",
		}),
		rateLimitWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_rate_limit_wait_seconds",
			Help:      "Time spent waiting for the per-minute quota.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		storeCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_calls_total",
				Help:      "Vector store calls by operation and outcome.",
			},
			[]string{"op", "outcome"},
		),
		storeLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_latency_seconds",
				Help:      "Vector store call latency by operation.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		storeSlow: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_slow_queries_total",
				Help:      "Vector store calls slower than the slow query threshold.",
			},
			[]string{"op"},
		),
		jobs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "jobs_total",
				Help:      "Job lifecycle events by type.",
			},
			[]string{"event"},
		),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Wall-clock time from job start to a terminal state.",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
			},
			[]string{"status"},
		),
	}

	err := errors.Join(
		c.registry.Register(c.embeddingEvents),
		c.registry.Register(c.embeddingLatency),
		c.registry.Register(c.embeddingTokens),
		c.registry.Register(c.rateLimitWait),
		c.registry.Register(c.storeCalls),
		c.registry.Register(c.storeLatency),
		c.registry.Register(c.storeSlow),
		c.registry.Register(c.jobs),
		c.registry.Register(c.jobDuration),
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// OnEmbeddingEvent records an embedding client event.
func (c *Collector) OnEmbeddingEvent(e embedding.Event) {
	c.embeddingEvents.WithLabelValues(norm(string(e.Type))).Inc()
	switch e.Type {
	case embedding.EventEmbedded:
		c.embeddingLatency.Observe(e.Latency.Seconds())
		c.embeddingTokens.Add(float64(e.Tokens))
	case embedding.EventRateLimitWait:
		c.rateLimitWait.Observe(e.Wait.Seconds())
	}
}

// OnStoreCall records a vector store call.
func (c *Collector) OnStoreCall(e vectorstore.CallEvent) {
	outcome := "ok"
	switch {
	case e.CacheHit:
		outcome = "cache_hit"
	case e.Err != nil:
		outcome = "error"
	}
	c.storeCalls.WithLabelValues(e.Op, outcome).Inc()
	if e.CacheHit {
		return
	}
	c.storeLatency.WithLabelValues(e.Op).Observe(e.Latency.Seconds())
	if e.Slow {
		c.storeSlow.WithLabelValues(e.Op).Inc()
	}
}

// OnJobEvent records a job lifecycle event.
func (c *Collector) OnJobEvent(e orchestrator.Event) {
	c.jobs.WithLabelValues(string(e.Type)).Inc()
	if e.Job == nil || e.Job.StartedAt == nil || e.Job.CompletedAt == nil {
		return
	}
	if e.Type == orchestrator.EventJobCompleted || e.Type == orchestrator.EventJobFailed {
		d := e.Job.CompletedAt.Sub(*e.Job.StartedAt)
		c.jobDuration.WithLabelValues(string(e.Job.Status)).Observe(d.Seconds())
	}
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
