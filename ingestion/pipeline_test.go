package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/vectorpipe/ai/mock"
	"github.com/poiesic/vectorpipe/chunking"
	"github.com/poiesic/vectorpipe/core"
	"github.com/poiesic/vectorpipe/embedding"
	"github.com/poiesic/vectorpipe/storage/badger"
	"github.com/poiesic/vectorpipe/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDims = 4

var errPoison = errors.New("status code: 400, bad input")

type testStack struct {
	pipeline *Pipeline
	embedder *mock.MockEmbedder
	store    *vectorstore.Client
}

func newTestStack(t *testing.T, opts ...Option) *testStack {
	t.Helper()

	provider := mock.NewMockProvider(testDims)
	embedder := provider.GetMockEmbedder()
	embedder.WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		if strings.Contains(text, "poison") {
			return nil, errPoison
		}
		return mock.Vector(text, testDims), nil
	})

	embCfg := embedding.DefaultConfig()
	embCfg.MaxRetries = 0
	embClient, err := embedding.NewClient(provider, embedding.WithConfig(embCfg))
	require.NoError(t, err)

	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })

	vsCfg := vectorstore.DefaultConfig()
	vsCfg.Dimensions = testDims
	store, err := vectorstore.NewClient(repos.Documents, vectorstore.WithConfig(vsCfg))
	require.NoError(t, err)

	chunker, err := chunking.NewChunker()
	require.NoError(t, err)

	opts = append([]Option{WithBatchDelay(0)}, opts...)
	p, err := NewPipeline(chunker, embClient, store, opts...)
	require.NoError(t, err)
	return &testStack{pipeline: p, embedder: embedder, store: store}
}

func record(key, text string) core.Record {
	return core.Record{Key: key, Fields: map[string]any{"description": text, "teamId": "team-1"}}
}

func TestNewPipeline_RequiresDependencies(t *testing.T) {
	chunker, err := chunking.NewChunker()
	require.NoError(t, err)

	_, err = NewPipeline(nil, nil, nil)
	assert.ErrorIs(t, err, ErrChunkerRequired)
	_, err = NewPipeline(chunker, nil, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}

func TestPipeline_ProcessStoresDocuments(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	b := NewBatch("campaigns", []core.Record{
		record("1", "Summer sale"),
		record("2", "Winter sale"),
		record("3", "Spring sale"),
	}, core.DefaultChunkConfig(), 2)

	require.NoError(t, s.pipeline.Process(ctx, b))
	require.NoError(t, b.Err())
	assert.Equal(t, 3, b.Succeeded())
	assert.Equal(t, []string{"campaigns_1", "campaigns_2", "campaigns_3"}, b.DocumentIDs)

	doc, err := s.store.Get(ctx, "campaigns_2")
	require.NoError(t, err)
	assert.Equal(t, "campaigns", doc.SourceCollection)
	assert.Equal(t, "2", doc.SourceID)
	assert.Equal(t, "team-1", doc.TeamID)
	assert.Equal(t, core.DocumentActive, doc.Status)
	assert.Equal(t, "Winter sale", doc.Content)
	assert.Equal(t, "mock-embedding", doc.Metadata["embedding_model"])
	assert.Len(t, doc.Embedding, testDims)

	quality, ok := doc.Metadata["quality_score"].(float64)
	require.True(t, ok, "quality_score should be recorded")
	assert.GreaterOrEqual(t, quality, 0.7)
	assert.LessOrEqual(t, quality, 1.0)
	assert.GreaterOrEqual(t, b.AverageQuality(), 0.7)
}

func TestBatch_AverageQualityIgnoresMissingVectors(t *testing.T) {
	b := &Batch{
		Vectors: [][]float32{{1}, nil, {1}},
		Quality: []float64{0.5, 0, 1.0},
	}
	assert.InDelta(t, 0.75, b.AverageQuality(), 1e-9)
	assert.Zero(t, (&Batch{}).AverageQuality())
}

func TestPipeline_PerRecordFailuresIsolated(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	b := NewBatch("campaigns", []core.Record{
		record("good", "fine content"),
		record("bad", "poison content"),
		{Key: "empty"},
	}, core.DefaultChunkConfig(), 10)

	require.NoError(t, s.pipeline.Process(ctx, b))
	require.NoError(t, b.Err())
	assert.Equal(t, 1, b.Succeeded())
	assert.Equal(t, 1, b.FailedRecords())
	assert.Equal(t, 1, b.Skipped)
	require.Len(t, b.Failures, 1)
	assert.Equal(t, "bad", b.Failures[0].RecordID)
	assert.Equal(t, "ProviderError", b.Failures[0].Type)
	assert.Equal(t, []string{"campaigns_good"}, b.DocumentIDs)
}

func TestPipeline_AllFailed(t *testing.T) {
	s := newTestStack(t)
	b := NewBatch("campaigns", []core.Record{record("a", "poison"), record("b", "more poison")}, core.DefaultChunkConfig(), 10)

	require.NoError(t, s.pipeline.Process(context.Background(), b))
	err := b.Err()
	require.ErrorIs(t, err, ErrAllRecordsFailed)
	assert.ErrorIs(t, err, core.ErrProvider)
	assert.Empty(t, b.DocumentIDs)
}

func TestPipeline_MultiChunkRecordFailsAsAUnit(t *testing.T) {
	s := newTestStack(t)
	ctx := context.Background()

	text := strings.Repeat("Clean sentence here. ", 10) + "poison tail sentence."
	b := NewBatch("analytics", []core.Record{record("r1", text)}, core.ChunkConfig{ChunkSize: 60, Overlap: 10}, 2)

	require.NoError(t, s.pipeline.Process(ctx, b))
	assert.Equal(t, 1, b.FailedRecords())
	assert.Empty(t, b.DocumentIDs)

	n, err := s.store.Count(ctx, core.Filter{SourceType: "analytics"})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPipeline_EmbedRespectsBatchDelay(t *testing.T) {
	s := newTestStack(t, WithBatchDelay(20*time.Millisecond))
	b := NewBatch("campaigns", []core.Record{
		record("1", "one"), record("2", "two"), record("3", "three"),
	}, core.DefaultChunkConfig(), 1)

	start := time.Now()
	s.pipeline.Chunk(b)
	require.NoError(t, s.pipeline.Embed(context.Background(), b))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	for _, v := range b.Vectors {
		assert.Len(t, v, testDims)
	}
}

func TestPipeline_EmbedUsesSleeperBetweenSubBatches(t *testing.T) {
	var waits []time.Duration
	sleeper := func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	s := newTestStack(t, WithBatchDelay(time.Hour), WithSleeper(sleeper))
	b := NewBatch("campaigns", []core.Record{
		record("1", "one"), record("2", "two"), record("3", "three"),
	}, core.DefaultChunkConfig(), 1)

	s.pipeline.Chunk(b)
	require.NoError(t, s.pipeline.Embed(context.Background(), b))
	assert.Equal(t, []time.Duration{time.Hour, time.Hour}, waits)
}

func TestPipeline_CancelledContext(t *testing.T) {
	s := newTestStack(t, WithBatchDelay(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	b := NewBatch("campaigns", []core.Record{record("1", "one"), record("2", "two")}, core.DefaultChunkConfig(), 1)

	s.pipeline.Chunk(b)
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := s.pipeline.Embed(ctx, b)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewDocument_DeterministicIDs(t *testing.T) {
	rec := core.Record{Key: "42", Fields: map[string]any{"userId": "u7"}}
	ch := core.Chunk{Content: "x", Source: "sessions", RecordID: "42", Index: 2, TimeBucket: "2025-01", Importance: 0.6}
	now := time.Now()

	doc := NewDocument(rec, ch, []float32{1}, "m", now)
	assert.Equal(t, "sessions_42_2", doc.ID)
	assert.Equal(t, "u7", doc.OwnerID)
	assert.Equal(t, "2025-01", doc.Metadata["time_bucket"])
	assert.Equal(t, 0.6, doc.Metadata["importance"])
	assert.Equal(t, doc.ID, NewDocument(rec, ch, []float32{1}, "m", now).ID)
}
