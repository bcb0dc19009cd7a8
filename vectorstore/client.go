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

package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/poiesic/vectorpipe/cache"
	"github.com/poiesic/vectorpipe/core"
	"github.com/poiesic/vectorpipe/storage"
)

// BreakerName identifies the document store breaker in errors and metrics.
const BreakerName = "document-store"

// Client fronts a storage.DocumentStore.
type Client struct {
	store     storage.DocumentStore
	config    *Config
	breaker   *CircuitBreaker
	queries   *cache.Cache[string, []*core.ScoredDocument]
	cacheMu   sync.Mutex
	cacheGen  uint64
	metrics   *metricsRecorder
	observers []Observer
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client) error

// WithConfig replaces the default Config.
func WithConfig(cfg *Config) Option {
	return func(c *Client) error {
		if cfg == nil {
			return errors.New("vectorstore config is nil")
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

// WithObserver registers a call observer. May be given more than once.
func WithObserver(o Observer) Option {
	return func(c *Client) error {
		if o != nil {
			c.observers = append(c.observers, o)
		}
		return nil
	}
}

// NewClient creates a client around store.
func NewClient(store storage.DocumentStore, opts ...Option) (*Client, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	c := &Client{
		store:   store,
		config:  DefaultConfig(),
		metrics: newMetricsRecorder(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if err := c.config.Validate(); err != nil {
		return nil, err
	}

	c.logger = c.logger.With("component", "vectorstore")
	c.queries = cache.New[string, []*core.ScoredDocument](c.config.QueryCacheSize, c.config.QueryCacheTTL)
	c.breaker = NewCircuitBreaker(BreakerName, c.config.BreakerThreshold, c.config.BreakerReset,
		func(from, to core.CircuitState) {
			c.logger.Warn("circuit breaker state change", "from", from, "to", to)
		})
	return c, nil
}

// Dimensions returns the vector length the client enforces.
func (c *Client) Dimensions() int {
	return c.config.Dimensions
}

// Upsert validates and writes documents, then purges the query cache.
// Nothing is written if any document fails validation.
func (c *Client) Upsert(ctx context.Context, docs ...*core.VectorDocument) error {
	if len(docs) == 0 {
		return nil
	}
	for _, doc := range docs {
		if err := core.ValidateDocument(doc, c.config.Dimensions); err != nil {
			return err
		}
	}
	_, err := c.do(OpUpsert, func() (any, error) {
		return nil, c.store.Upsert(ctx, docs...)
	})
	c.invalidate()
	return err
}

// Insert is Upsert for a single document.
func (c *Client) Insert(ctx context.Context, doc *core.VectorDocument) error {
	return c.Upsert(ctx, doc)
}

// Update replaces an existing document. Returns storage.ErrNotFound if
// no document with doc.ID exists.
func (c *Client) Update(ctx context.Context, doc *core.VectorDocument) error {
	if err := core.ValidateDocument(doc, c.config.Dimensions); err != nil {
		return err
	}
	if _, err := c.Get(ctx, doc.ID); err != nil {
		return err
	}
	return c.Upsert(ctx, doc)
}

// Get returns a document by ID.
func (c *Client) Get(ctx context.Context, id string) (*core.VectorDocument, error) {
	v, err := c.do(OpGet, func() (any, error) {
		return c.store.Get(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*core.VectorDocument), nil
}

// Delete removes documents by ID and purges the query cache.
func (c *Client) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := c.do(OpDelete, func() (any, error) {
		return nil, c.store.Delete(ctx, ids...)
	})
	c.invalidate()
	return err
}

// DeleteByFilter removes every matching document and purges the query cache.
func (c *Client) DeleteByFilter(ctx context.Context, filter core.Filter) (int, error) {
	if filter.IsEmpty() {
		return 0, storage.ErrInvalidQuery
	}
	v, err := c.do(OpDeleteByFilter, func() (any, error) {
		return c.store.DeleteByFilter(ctx, filter)
	})
	c.invalidate()
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// BulkResult reports the outcome of BulkUpsert.
type BulkResult struct {
	Inserted int
	Failed   map[string]error
}

// BulkUpsert writes every valid document. Documents that fail validation are
// reported in Failed and do not block the rest. A store failure fails the
// whole write and is returned as the error.
func (c *Client) BulkUpsert(ctx context.Context, docs []*core.VectorDocument) (*BulkResult, error) {
	result := &BulkResult{Failed: make(map[string]error)}
	valid := make([]*core.VectorDocument, 0, len(docs))
	for i, doc := range docs {
		if err := core.ValidateDocument(doc, c.config.Dimensions); err != nil {
			key := ""
			if doc != nil {
				key = doc.ID
			}
			if key == "" {
				key = "#" + strconv.Itoa(i)
			}
			result.Failed[key] = err
			continue
		}
		valid = append(valid, doc)
	}
	if len(valid) == 0 {
		return result, nil
	}
	if err := c.Upsert(ctx, valid...); err != nil {
		return result, err
	}
	result.Inserted = len(valid)
	return result, nil
}

// VectorSearch returns up to limit documents ranked by cosine similarity.
func (c *Client) VectorSearch(ctx context.Context, vector []float32, filter core.Filter, limit int) ([]*core.ScoredDocument, error) {
	if err := c.checkQuery(vector, limit); err != nil {
		return nil, err
	}
	key := queryKey(OpVectorSearch, vector, "", filter, limit, Weights{})
	return c.cached(key, OpVectorSearch, func() ([]*core.ScoredDocument, error) {
		return c.vectorQuery(ctx, vector, filter, limit)
	})
}

// TextSearch returns up to limit documents ranked by text relevance.
func (c *Client) TextSearch(ctx context.Context, text string, filter core.Filter, limit int) ([]*core.ScoredDocument, error) {
	if strings.TrimSpace(text) == "" {
		return nil, core.NewValidationError("query", "must not be empty")
	}
	if limit <= 0 {
		return nil, core.NewValidationError("limit", "must be positive, got %d", limit)
	}
	key := queryKey(OpTextSearch, nil, text, filter, limit, Weights{})
	return c.cached(key, OpTextSearch, func() ([]*core.ScoredDocument, error) {
		return c.textQuery(ctx, text, filter, limit)
	})
}

// HybridSearch combines vector and text relevance. Zero weights mean
// Config.Weights.
func (c *Client) HybridSearch(ctx context.Context, vector []float32, text string, weights Weights, filter core.Filter, limit int) ([]*core.ScoredDocument, error) {
	if err := c.checkQuery(vector, limit); err != nil {
		return nil, err
	}
	if weights == (Weights{}) {
		weights = c.config.Weights
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	key := queryKey("hybrid_search", vector, text, filter, limit, weights)
	return c.cached(key, "hybrid_search", func() ([]*core.ScoredDocument, error) {
		vectorHits, err := c.vectorQuery(ctx, vector, filter, limit)
		if err != nil {
			return nil, err
		}
		var textHits []*core.ScoredDocument
		if strings.TrimSpace(text) != "" && len(core.Tokenize(text)) > 0 {
			textHits, err = c.textQuery(ctx, text, filter, limit)
			if err != nil {
				return nil, err
			}
		}
		return Merge(vectorHits, textHits, weights, limit), nil
	})
}

// Count returns the number of documents matching filter.
func (c *Client) Count(ctx context.Context, filter core.Filter) (int, error) {
	v, err := c.do(OpCount, func() (any, error) {
		return c.store.Count(ctx, filter)
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// Stats returns collection statistics.
func (c *Client) Stats(ctx context.Context) (*core.CollectionStats, error) {
	v, err := c.do(OpStats, func() (any, error) {
		return c.store.Stats(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*core.CollectionStats), nil
}

// IndexExists reports whether the store has the named index.
func (c *Client) IndexExists(ctx context.Context, name string) (bool, error) {
	v, err := c.do(OpIndexExists, func() (any, error) {
		return c.store.IndexExists(ctx, name)
	})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Metrics returns running call totals.
func (c *Client) Metrics() Metrics {
	return c.metrics.snapshot()
}

// Breaker returns the circuit breaker state.
func (c *Client) Breaker() core.CircuitBreakerState {
	return c.breaker.State()
}

// Health summarises the client for health checks.
type Health struct {
	Healthy bool
	Status  string
	Breaker core.CircuitBreakerState
	Metrics Metrics
}

// Health reports unhealthy while the circuit is open.
func (c *Client) Health() Health {
	state := c.breaker.State()
	h := Health{Healthy: true, Status: "ok", Breaker: state, Metrics: c.metrics.snapshot()}
	switch state.State {
	case core.CircuitOpen:
		h.Healthy, h.Status = false, "circuit_open"
	case core.CircuitHalfOpen:
		h.Status = "circuit_half_open"
	}
	return h
}

// Close closes the underlying store.
func (c *Client) Close() error {
	c.queries.Purge()
	return c.store.Close()
}

func (c *Client) checkQuery(vector []float32, limit int) error {
	if err := core.ValidateVector(vector, c.config.Dimensions); err != nil {
		return err
	}
	if limit <= 0 {
		return core.NewValidationError("limit", "must be positive, got %d", limit)
	}
	return nil
}

func (c *Client) vectorQuery(ctx context.Context, vector []float32, filter core.Filter, limit int) ([]*core.ScoredDocument, error) {
	v, err := c.do(OpVectorSearch, func() (any, error) {
		return c.store.VectorQuery(ctx, storage.VectorQuery{
			Vector:     vector,
			Candidates: limit * c.config.CandidateMultiplier,
			Limit:      limit,
			Filter:     filter,
		})
	})
	if err != nil {
		return nil, err
	}
	return v.([]*core.ScoredDocument), nil
}

func (c *Client) textQuery(ctx context.Context, text string, filter core.Filter, limit int) ([]*core.ScoredDocument, error) {
	v, err := c.do(OpTextSearch, func() (any, error) {
		return c.store.TextQuery(ctx, storage.TextQuery{Text: text, Limit: limit, Filter: filter})
	})
	if err != nil {
		return nil, err
	}
	return v.([]*core.ScoredDocument), nil
}

// cached serves key from the query cache or runs fn and caches its result.
func (c *Client) cached(key, op string, fn func() ([]*core.ScoredDocument, error)) ([]*core.ScoredDocument, error) {
	if hits, ok := c.queries.Get(key); ok {
		c.metrics.cacheHit()
		c.emit(CallEvent{Op: op, CacheHit: true})
		return cloneResults(hits), nil
	}
	c.cacheMu.Lock()
	gen := c.cacheGen
	c.cacheMu.Unlock()

	hits, err := fn()
	if err != nil {
		return nil, err
	}

	// A write that landed while fn ran may not be reflected in hits.
	c.cacheMu.Lock()
	if c.cacheGen == gen {
		c.queries.Put(key, hits)
	}
	c.cacheMu.Unlock()
	return cloneResults(hits), nil
}

// do runs one store call through the breaker and records it.
func (c *Client) do(op string, fn func() (any, error)) (any, error) {
	start := time.Now()
	v, err := c.breaker.Execute(fn)
	latency := time.Since(start)

	err = wrapStoreError(op, err)
	failed := err != nil && !countsAsSuccess(err)
	slow := latency > c.config.SlowQueryThreshold
	c.metrics.record(op, latency, failed, slow)
	if slow {
		c.logger.Warn("slow store call", "op", op, "latency", latency)
	}
	if failed {
		c.logger.Error("store call failed", "op", op, "err", err)
	}
	c.emit(CallEvent{Op: op, Latency: latency, Err: err, Slow: slow})
	return v, err
}

func (c *Client) invalidate() {
	c.cacheMu.Lock()
	c.cacheGen++
	c.queries.Purge()
	c.cacheMu.Unlock()
}

func (c *Client) emit(e CallEvent) {
	for _, o := range c.observers {
		o.OnStoreCall(e)
	}
}

// wrapStoreError wraps backend failures in *core.StorageError. Errors that
// already carry a classification pass through.
func wrapStoreError(op string, err error) error {
	if err == nil ||
		errors.Is(err, core.ErrCircuitOpen) ||
		errors.Is(err, core.ErrValidation) ||
		errors.Is(err, core.ErrDimensionMismatch) ||
		errors.Is(err, storage.ErrNotFound) ||
		errors.Is(err, storage.ErrInvalidQuery) {
		return err
	}
	return &core.StorageError{Op: op, Err: err}
}

type queryParams struct {
	Op      string            `json:"op"`
	Vector  []float32         `json:"vector,omitempty"`
	Text    string            `json:"text,omitempty"`
	Filter  core.Filter       `json:"filter"`
	Limit   int               `json:"limit"`
	Weights Weights           `json:"weights"`
}

// queryKey fingerprints normalized query parameters.
func queryKey(op string, vector []float32, text string, filter core.Filter, limit int, weights Weights) string {
	p := queryParams{
		Op:      op,
		Vector:  vector,
		Text:    strings.Join(strings.Fields(strings.ToLower(text)), " "),
		Filter:  filter,
		Limit:   limit,
		Weights: weights,
	}
	data, err := json.Marshal(p)
	if err != nil {
		// unreachable for validated vectors
		return core.Fingerprint(op, time.Now().String())
	}
	return core.Fingerprint(string(data))
}

func cloneResults(hits []*core.ScoredDocument) []*core.ScoredDocument {
	out := make([]*core.ScoredDocument, len(hits))
	for i, h := range hits {
		cp := *h
		if h.Document != nil {
			doc := *h.Document
			cp.Document = &doc
		}
		out[i] = &cp
	}
	return out
}
