package metrics

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/vectorpipe/ai/mock"
	"github.com/poiesic/vectorpipe/core"
	"github.com/poiesic/vectorpipe/embedding"
	"github.com/poiesic/vectorpipe/orchestrator"
	"github.com/poiesic/vectorpipe/storage/badger"
	"github.com/poiesic/vectorpipe/vectorstore"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_EmbeddingEvents(t *testing.T) {
	c, err := NewCollector()
	require.NoError(t, err)

	provider := mock.NewMockProvider(4)
	client, err := embedding.NewClient(provider, embedding.WithObserver(c))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = client.Embed(ctx, "hello world", embedding.Options{})
	require.NoError(t, err)
	_, err = client.Embed(ctx, "hello world", embedding.Options{})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.embeddingEvents.WithLabelValues("embedded")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.embeddingEvents.WithLabelValues("cache_hit")))
	assert.Greater(t, testutil.ToFloat64(c.embeddingTokens), 0.0)
	assert.Equal(t, 1, testutil.CollectAndCount(c.embeddingLatency))
}

func TestCollector_StoreCalls(t *testing.T) {
	c, err := NewCollector()
	require.NoError(t, err)

	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	cfg := vectorstore.DefaultConfig()
	cfg.Dimensions = 2
	store, err := vectorstore.NewClient(repos.Documents, vectorstore.WithConfig(cfg), vectorstore.WithObserver(c))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, &core.VectorDocument{ID: "a_1", SourceType: "a", Embedding: []float32{1, 0}, Content: "alpha"}))
	_, err = store.VectorSearch(ctx, []float32{1, 0}, core.Filter{}, 5)
	require.NoError(t, err)
	_, err = store.VectorSearch(ctx, []float32{1, 0}, core.Filter{}, 5)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.storeCalls.WithLabelValues(vectorstore.OpUpsert, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.storeCalls.WithLabelValues(vectorstore.OpVectorSearch, "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.storeCalls.WithLabelValues(vectorstore.OpVectorSearch, "cache_hit")))

	c.OnStoreCall(vectorstore.CallEvent{Op: vectorstore.OpCount, Latency: 2 * time.Second, Err: errors.New("x"), Slow: true})
	assert.Equal(t, 1.0, testutil.ToFloat64(c.storeCalls.WithLabelValues(vectorstore.OpCount, "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.storeSlow.WithLabelValues(vectorstore.OpCount)))
}

func TestCollector_JobEvents(t *testing.T) {
	c, err := NewCollector()
	require.NoError(t, err)

	start := time.Now()
	end := start.Add(3 * time.Second)
	job := &core.Job{ID: "j1", Status: core.JobCompleted, StartedAt: &start, CompletedAt: &end}

	c.OnJobEvent(orchestrator.Event{Type: orchestrator.EventJobQueued, Job: &core.Job{ID: "j1"}})
	c.OnJobEvent(orchestrator.Event{Type: orchestrator.EventJobCompleted, Job: job})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobs.WithLabelValues("job_queued")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.jobs.WithLabelValues("job_completed")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.jobDuration))
}

func TestCollector_Handler(t *testing.T) {
	c, err := NewCollector()
	require.NoError(t, err)
	c.OnJobEvent(orchestrator.Event{Type: orchestrator.EventJobFailed, Job: &core.Job{ID: "j"}})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `vectorpipe_jobs_total{event="job_failed"} 1`))
}
