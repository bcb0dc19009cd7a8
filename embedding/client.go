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

package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/poiesic/vectorpipe/ai"
	"github.com/poiesic/vectorpipe/cache"
	"github.com/poiesic/vectorpipe/core"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Options are per-call embedding options. They are part of the cache key.
type Options struct {
	// Model selects a registered model. Empty means the client's default model.
	Model string

	// Normalize scales the returned vector to unit length.
	Normalize bool
}

// Client is the rate-limited, caching, retrying front of an embedding provider.
type Client struct {
	config       *Config
	defaultModel string
	embedders    map[string]ai.Embedder
	dims         int
	cache        *cache.Cache[string, []float32]
	quota        *QuotaLimiter
	sem          *semaphore.Weighted
	retry        RetryPolicy
	tokens       TokenEstimator
	observers    []Observer
	now          func() time.Time
	sleep        Sleeper
	stats        counters
	logger       *slog.Logger
}

// Option configures a Client.
type Option func(*Client) error

// WithConfig replaces the default Config.
func WithConfig(cfg *Config) Option {
	return func(c *Client) error {
		if cfg == nil {
			return errors.New("embedding config is nil")
		}
		c.config = cfg
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// WithObserver registers an event observer. May be given more than once.
func WithObserver(o Observer) Option {
	return func(c *Client) error {
		if o != nil {
			c.observers = append(c.observers, o)
		}
		return nil
	}
}

// WithTokenEstimator replaces the heuristic token estimator.
func WithTokenEstimator(t TokenEstimator) Option {
	return func(c *Client) error {
		if t != nil {
			c.tokens = t
		}
		return nil
	}
}

// WithClock overrides the time source used for quotas and latency.
func WithClock(now func() time.Time) Option {
	return func(c *Client) error {
		if now != nil {
			c.now = now
		}
		return nil
	}
}

// WithSleeper overrides how the client waits for quota windows and backoff.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) error {
		if s != nil {
			c.sleep = s
		}
		return nil
	}
}

// WithAdditionalProvider registers another model the client may be asked for.
// Its vectors must have the same dimension as the default provider's.
func WithAdditionalProvider(p ai.AIProvider) Option {
	return func(c *Client) error {
		if p == nil {
			return ErrProviderRequired
		}
		if p.Dimensions() != c.dims {
			return &core.DimensionMismatchError{Expected: c.dims, Actual: p.Dimensions()}
		}
		c.embedders[p.Model()] = p.Embedder()
		return nil
	}
}

// NewClient creates an embedding client around provider.
func NewClient(provider ai.AIProvider, opts ...Option) (*Client, error) {
	if provider == nil {
		return nil, ErrProviderRequired
	}

	c := &Client{
		config:       DefaultConfig(),
		defaultModel: provider.Model(),
		embedders:    map[string]ai.Embedder{provider.Model(): provider.Embedder()},
		dims:         provider.Dimensions(),
		tokens:       HeuristicEstimator{},
		now:          time.Now,
		sleep:        SleepContext,
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if err := c.config.Validate(); err != nil {
		return nil, err
	}

	c.cache = cache.New[string, []float32](c.config.CacheSize, c.config.CacheTTL)
	c.quota = NewQuotaLimiter(c.config.RequestsPerMinute, c.config.RequestsPerDay, c.now, c.sleep)
	c.sem = semaphore.NewWeighted(int64(c.config.MaxConcurrent))
	c.retry = RetryPolicy{MaxRetries: c.config.MaxRetries, BaseDelay: c.config.RetryBaseDelay}
	c.logger = c.logger.With("component", "embedding-client", "model", c.defaultModel)

	return c, nil
}

// Dimensions returns the vector length every call returns.
func (c *Client) Dimensions() int {
	return c.dims
}

// DefaultModel returns the model used when Options.Model is empty.
func (c *Client) DefaultModel() string {
	return c.defaultModel
}

// RetryPolicy returns the client's backoff schedule.
func (c *Client) RetryPolicy() RetryPolicy {
	return c.retry
}

// Embed returns the embedding of text.
//
// Invalid input fails with a *core.ValidationError without any provider call.
// A cached vector is returned without consuming quota. An exhausted daily quota
// fails with *core.QuotaExceededError. Transient provider failures are retried
// up to Config.MaxRetries times.
func (c *Client) Embed(ctx context.Context, text string, opts Options) ([]float32, error) {
	model, embedder, err := c.resolve(text, opts)
	if err != nil {
		return nil, err
	}

	c.stats.update(func(s *counters) { s.requests++ })

	key := core.Fingerprint(model, strconv.FormatBool(opts.Normalize), text)
	if v, ok := c.cache.Get(key); ok {
		c.stats.update(func(s *counters) { s.cacheHits++ })
		c.emit(Event{Type: EventCacheHit, Model: model, Fingerprint: key})
		return slices.Clone(v), nil
	}
	c.stats.update(func(s *counters) { s.cacheMisses++ })

	var vector []float32
	var latency time.Duration
	err = c.retry.Do(ctx, c.sleep, func(attempt int) error {
		v, d, callErr := c.call(ctx, embedder, text)
		if callErr != nil {
			return callErr
		}
		vector, latency = v, d
		return nil
	}, func(attempt int, delay time.Duration, retryErr error) {
		c.stats.update(func(s *counters) { s.retries++ })
		c.logger.Debug("retrying embedding", "attempt", attempt+1, "delay", delay, "err", retryErr)
		c.emit(Event{Type: EventRetry, Model: model, Fingerprint: key, Attempt: attempt + 1, Wait: delay, Err: retryErr})
	})
	if err != nil {
		c.stats.update(func(s *counters) { s.failures++ })
		c.logger.Warn("embedding failed", "err", err)
		c.emit(Event{Type: EventError, Model: model, Fingerprint: key, Err: err})
		return nil, err
	}

	tokens := c.tokens.Estimate(text)
	c.stats.update(func(s *counters) {
		s.successes++
		s.tokens += int64(tokens)
		s.cost += float64(tokens) / 1000 * c.config.CostPer1KTokens
		s.recordLatency(latency)
	})
	c.emit(Event{Type: EventEmbedded, Model: model, Fingerprint: key, Latency: latency, Tokens: tokens})

	if opts.Normalize {
		vector = Normalize(vector)
	}
	c.cache.Put(key, vector)
	return slices.Clone(vector), nil
}

// call performs one quota-checked, admission-controlled provider call.
func (c *Client) call(ctx context.Context, embedder ai.Embedder, text string) ([]float32, time.Duration, error) {
	err := c.quota.Acquire(ctx, func(wait time.Duration) {
		c.stats.update(func(s *counters) { s.rateLimitWaits++ })
		c.logger.Info("per-minute quota reached, waiting", "wait", wait)
		c.emit(Event{Type: EventRateLimitWait, Model: c.defaultModel, Wait: wait})
	})
	if err != nil {
		if errors.Is(err, core.ErrQuotaExceeded) {
			c.stats.update(func(s *counters) { s.quotaRejections++ })
			c.emit(Event{Type: EventQuotaExceeded, Model: c.defaultModel, Err: err})
		}
		return nil, 0, err
	}

	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, 0, err
	}
	defer c.sem.Release(1)

	c.stats.update(func(s *counters) { s.inFlight++ })
	defer c.stats.update(func(s *counters) { s.inFlight-- })

	start := c.now()
	vector, err := embedder.EmbedText(ctx, text)
	latency := c.now().Sub(start)
	if err != nil {
		c.stats.update(func(s *counters) { s.providerErrors++ })
		return nil, latency, ai.ClassifyError(err)
	}
	if len(vector) != c.dims {
		return nil, latency, &core.DimensionMismatchError{Expected: c.dims, Actual: len(vector)}
	}
	return vector, latency, nil
}

// resolve validates the call and returns the model and embedder to use.
func (c *Client) resolve(text string, opts Options) (string, ai.Embedder, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil, core.NewValidationError("text", "must not be empty or whitespace")
	}
	if n := utf8.RuneCountInString(text); n > c.config.MaxTextLength {
		return "", nil, core.NewValidationError("text", "length %d exceeds maximum %d", n, c.config.MaxTextLength)
	}

	model := opts.Model
	if model == "" {
		model = c.defaultModel
	}
	embedder, ok := c.embedders[model]
	if !ok {
		return "", nil, core.NewValidationError("model", "unknown embedding model %q", model)
	}
	return model, embedder, nil
}

// BatchResult holds per-text outcomes of EmbedBatch, aligned with the input.
type BatchResult struct {
	Vectors [][]float32
	Errors  []error
}

// Failed returns the number of texts that could not be embedded.
func (r *BatchResult) Failed() int {
	n := 0
	for _, err := range r.Errors {
		if err != nil {
			n++
		}
	}
	return n
}

// EmbedBatch embeds every text, bounded by Config.MaxConcurrent goroutines.
// A failure for one text does not affect the others. The returned error is
// non-nil only when ctx ended before the batch finished.
func (c *Client) EmbedBatch(ctx context.Context, texts []string, opts Options) (*BatchResult, error) {
	result := &BatchResult{
		Vectors: make([][]float32, len(texts)),
		Errors:  make([]error, len(texts)),
	}

	var g errgroup.Group
	g.SetLimit(c.config.MaxConcurrent)
	for i, text := range texts {
		g.Go(func() error {
			result.Vectors[i], result.Errors[i] = c.Embed(ctx, text, opts)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("embed batch: %w", err)
	}
	return result, nil
}

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() Stats {
	s := c.stats.snapshot()
	s.Quota = c.quota.Usage()
	return s
}

// CacheStats returns embedding cache counters.
func (c *Client) CacheStats() cache.Stats {
	return c.cache.Stats()
}

// Health describes whether the client can currently serve requests.
type Health struct {
	Healthy bool
	Status  string
	Message string
	Stats   Stats
}

// HealthCheck reports unhealthy once the daily quota is exhausted.
func (c *Client) HealthCheck() Health {
	stats := c.Stats()
	if c.quota.Exhausted() {
		return Health{
			Healthy: false,
			Status:  "quota_exhausted",
			Message: fmt.Sprintf("daily quota of %d requests reached", stats.Quota.DayLimit),
			Stats:   stats,
		}
	}
	return Health{Healthy: true, Status: "ok", Stats: stats}
}

func (c *Client) emit(e Event) {
	for _, o := range c.observers {
		o.OnEmbeddingEvent(e)
	}
}
