package vectorstore

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/vectorpipe/core"
	"github.com/poiesic/vectorpipe/storage"
	"github.com/poiesic/vectorpipe/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDims = 3

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Dimensions = testDims
	cfg.BreakerThreshold = 3
	cfg.BreakerReset = 40 * time.Millisecond
	return cfg
}

func newBadgerClient(t *testing.T) *Client {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })

	c, err := NewClient(repos.Documents, WithConfig(testConfig()))
	require.NoError(t, err)
	return c
}

func newFakeClient(t *testing.T, mutate func(*Config)) (*Client, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	cfg := testConfig()
	if mutate != nil {
		mutate(cfg)
	}
	c, err := NewClient(store, WithConfig(cfg))
	require.NoError(t, err)
	return c, store
}

func doc(id, content string, vector ...float32) *core.VectorDocument {
	return &core.VectorDocument{
		ID:         id,
		SourceType: "campaigns",
		SourceID:   id,
		Content:    content,
		Embedding:  vector,
		Status:     core.DocumentActive,
	}
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil)
	assert.ErrorIs(t, err, ErrStoreRequired)

	cfg := testConfig()
	cfg.Weights = Weights{}
	_, err = NewClient(newFakeStore(), WithConfig(cfg))
	assert.ErrorIs(t, err, ErrInvalidWeights)
}

func TestClient_DimensionCheckBeforeStoreCall(t *testing.T) {
	c, store := newFakeClient(t, nil)
	ctx := context.Background()

	err := c.Upsert(ctx, doc("a", "x", 1, 2))
	var dm *core.DimensionMismatchError
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, "a", dm.DocumentID)

	_, err = c.VectorSearch(ctx, []float32{1, 2, 3, 4}, core.Filter{}, 5)
	require.ErrorIs(t, err, core.ErrDimensionMismatch)

	_, err = c.HybridSearch(ctx, []float32{1}, "hello", Weights{}, core.Filter{}, 5)
	require.ErrorIs(t, err, core.ErrDimensionMismatch)

	assert.Zero(t, store.count(OpUpsert))
	assert.Zero(t, store.count(OpVectorSearch))
	assert.Equal(t, core.CircuitClosed, c.Breaker().State)
}

func TestClient_UpsertAndSearch(t *testing.T) {
	c := newBadgerClient(t)
	ctx := context.Background()

	require.NoError(t, c.Upsert(ctx,
		doc("campaigns_1", "summer sale campaign on ethereum", 1, 0, 0),
		doc("campaigns_2", "winter sale campaign", 0, 1, 0),
		doc("campaigns_3", "unrelated analytics event", 0, 0, 1),
	))

	hits, err := c.VectorSearch(ctx, []float32{1, 0.1, 0}, core.Filter{}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "campaigns_1", hits[0].Document.ID)

	hits, err = c.TextSearch(ctx, "sale campaign", core.Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	count, err := c.Count(ctx, core.Filter{SourceType: "campaigns"})
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalDocuments)

	exists, err := c.IndexExists(ctx, badger.IndexVector)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestClient_HybridSearch(t *testing.T) {
	c := newBadgerClient(t)
	ctx := context.Background()

	require.NoError(t, c.Upsert(ctx,
		doc("campaigns_1", "wallet onboarding flow", 1, 0, 0),
		doc("campaigns_2", "transaction failed on contract", 0, 1, 0),
	))

	hits, err := c.HybridSearch(ctx, []float32{1, 0, 0}, "transaction failed", Weights{}, core.Filter{}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "campaigns_1", hits[0].Document.ID)
	assert.InDelta(t, 0.7, hits[0].Score, 1e-6)
	assert.Zero(t, hits[0].TextScore)
	assert.Zero(t, hits[1].VectorScore)
	assert.Greater(t, hits[1].TextScore, 0.0)

	hits, err = c.HybridSearch(ctx, []float32{1, 0, 0}, "transaction failed", Weights{Vector: 0.1, Text: 0.9}, core.Filter{}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "campaigns_2", hits[0].Document.ID)
}

func TestClient_QueryCacheInvalidatedByWrites(t *testing.T) {
	c, store := newFakeClient(t, nil)
	ctx := context.Background()
	store.hits = []*core.ScoredDocument{{Document: doc("a", "x", 1, 0, 0), Score: 1, VectorScore: 1}}
	query := []float32{1, 0, 0}

	_, err := c.VectorSearch(ctx, query, core.Filter{}, 5)
	require.NoError(t, err)
	hits, err := c.VectorSearch(ctx, query, core.Filter{}, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, store.count(OpVectorSearch))
	assert.Equal(t, int64(1), c.Metrics().CacheHits)

	// cached results are copies
	hits[0].Document.Content = "mutated"
	again, err := c.VectorSearch(ctx, query, core.Filter{}, 5)
	require.NoError(t, err)
	assert.Equal(t, "x", again[0].Document.Content)

	// different parameters miss
	_, err = c.VectorSearch(ctx, query, core.Filter{SourceType: "campaigns"}, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, store.count(OpVectorSearch))

	require.NoError(t, c.Delete(ctx, "a"))
	_, err = c.VectorSearch(ctx, query, core.Filter{}, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, store.count(OpVectorSearch))

	require.NoError(t, c.Upsert(ctx, doc("b", "y", 0, 1, 0)))
	_, err = c.VectorSearch(ctx, query, core.Filter{}, 5)
	require.NoError(t, err)
	assert.Equal(t, 4, store.count(OpVectorSearch))
}

func TestClient_CircuitBreaker(t *testing.T) {
	c, store := newFakeClient(t, nil)
	ctx := context.Background()
	store.setFailing(true)

	for i := 0; i < 3; i++ {
		_, err := c.Count(ctx, core.Filter{})
		var se *core.StorageError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, OpCount, se.Op)
		assert.ErrorIs(t, err, errBackend)
	}
	assert.False(t, c.Health().Healthy)
	assert.Equal(t, "circuit_open", c.Health().Status)

	_, err := c.Count(ctx, core.Filter{})
	require.ErrorIs(t, err, core.ErrCircuitOpen)
	assert.Equal(t, 3, store.count(OpCount))

	store.setFailing(false)
	time.Sleep(60 * time.Millisecond)

	_, err = c.Count(ctx, core.Filter{})
	require.NoError(t, err)
	assert.Equal(t, core.CircuitClosed, c.Breaker().State)
	assert.True(t, c.Health().Healthy)

	m := c.Metrics()
	assert.Equal(t, int64(5), m.ByOp[OpCount].Calls)
	assert.Equal(t, int64(4), m.ByOp[OpCount].Errors)
}

func TestClient_UpdateRequiresExisting(t *testing.T) {
	c := newBadgerClient(t)
	ctx := context.Background()

	err := c.Update(ctx, doc("campaigns_9", "x", 1, 0, 0))
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, c.Insert(ctx, doc("campaigns_9", "x", 1, 0, 0)))
	require.NoError(t, c.Update(ctx, doc("campaigns_9", "updated", 1, 0, 0)))

	got, err := c.Get(ctx, "campaigns_9")
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Content)
}

func TestClient_BulkUpsertPartial(t *testing.T) {
	c := newBadgerClient(t)
	ctx := context.Background()

	result, err := c.BulkUpsert(ctx, []*core.VectorDocument{
		doc("campaigns_1", "ok", 1, 0, 0),
		doc("campaigns_2", "short vector", 1, 0),
		doc("campaigns_3", "ok", 0, 1, 0),
		nil,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Inserted)
	require.Len(t, result.Failed, 2)
	assert.ErrorIs(t, result.Failed["campaigns_2"], core.ErrDimensionMismatch)
	assert.ErrorIs(t, result.Failed["#3"], core.ErrValidation)

	count, err := c.Count(ctx, core.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestClient_DeleteByFilter(t *testing.T) {
	c := newBadgerClient(t)
	ctx := context.Background()

	_, err := c.DeleteByFilter(ctx, core.Filter{})
	require.ErrorIs(t, err, storage.ErrInvalidQuery)

	a := doc("analytics_1", "x", 1, 0, 0)
	a.SourceType = "analytics"
	require.NoError(t, c.Upsert(ctx, a, doc("campaigns_1", "y", 0, 1, 0)))

	n, err := c.DeleteByFilter(ctx, core.Filter{SourceType: "analytics"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	count, err := c.Count(ctx, core.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestClient_SlowQueriesAndObserver(t *testing.T) {
	c, store := newFakeClient(t, func(cfg *Config) { cfg.SlowQueryThreshold = 5 * time.Millisecond })
	var events []CallEvent
	c.observers = append(c.observers, ObserverFunc(func(e CallEvent) { events = append(events, e) }))
	store.delay = 15 * time.Millisecond

	_, err := c.Stats(context.Background())
	require.NoError(t, err)

	m := c.Metrics()
	assert.Equal(t, int64(1), m.SlowQueries)
	assert.Equal(t, int64(1), m.ByOp[OpStats].SlowQueries)
	assert.GreaterOrEqual(t, m.AverageLatency(), 15*time.Millisecond)

	require.Len(t, events, 1)
	assert.Equal(t, OpStats, events[0].Op)
	assert.True(t, events[0].Slow)
}

func TestClient_SearchValidation(t *testing.T) {
	c, _ := newFakeClient(t, nil)
	ctx := context.Background()

	_, err := c.TextSearch(ctx, "  ", core.Filter{}, 5)
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = c.VectorSearch(ctx, []float32{1, 0, 0}, core.Filter{}, 0)
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = c.HybridSearch(ctx, []float32{1, 0, 0}, "x", Weights{Vector: -1, Text: 1}, core.Filter{}, 5)
	assert.ErrorIs(t, err, ErrInvalidWeights)
}

func TestClient_WriteDuringSearchIsNotCached(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })
	store := newPausingStore(repos.Documents)
	c, err := NewClient(store, WithConfig(testConfig()))
	require.NoError(t, err)

	ctx := context.Background()
	query := []float32{1, 0.1, 0}
	require.NoError(t, c.Upsert(ctx, doc("a", "first", 1, 0, 0)))

	type result struct {
		hits []*core.ScoredDocument
		err  error
	}
	inFlight := make(chan result, 1)
	go func() {
		hits, err := c.VectorSearch(ctx, query, core.Filter{}, 10)
		inFlight <- result{hits, err}
	}()

	<-store.read
	require.NoError(t, c.Upsert(ctx, doc("b", "second", 1, 1, 0)))
	close(store.release)

	stale := <-inFlight
	require.NoError(t, stale.err)
	assert.Len(t, stale.hits, 1)

	hits, err := c.VectorSearch(ctx, query, core.Filter{}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}
