package migration

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/poiesic/vectorpipe/ai/mock"
	"github.com/poiesic/vectorpipe/chunking"
	"github.com/poiesic/vectorpipe/core"
	"github.com/poiesic/vectorpipe/embedding"
	"github.com/poiesic/vectorpipe/ingestion"
	"github.com/poiesic/vectorpipe/source"
	"github.com/poiesic/vectorpipe/storage/badger"
	redisstore "github.com/poiesic/vectorpipe/storage/redis"
	"github.com/poiesic/vectorpipe/vectorstore"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDims = 4

// countingSource records how often each key is returned by Scan and can
// fail or trigger a callback after a given key.
type countingSource struct {
	source.Source

	mu       sync.Mutex
	seen     map[string]int
	failFrom string
	after    map[string]func()
}

func newCountingSource(t *testing.T, name, prefix string, n int) *countingSource {
	t.Helper()
	var records []core.Record
	for i := 1; i <= n; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		records = append(records, core.Record{Key: key, Fields: map[string]any{
			"description": fmt.Sprintf("%s record number %d describing activity", name, i),
		}})
	}
	inner, err := source.NewMemorySource(name, records...)
	require.NoError(t, err)
	return &countingSource{Source: inner, seen: map[string]int{}, after: map[string]func(){}}
}

func (s *countingSource) Scan(ctx context.Context, after string, limit int) ([]core.Record, error) {
	s.mu.Lock()
	if s.failFrom != "" && after == s.failFrom {
		s.mu.Unlock()
		return nil, &core.StorageError{Op: "scan", Err: errors.New("cursor lost")}
	}
	s.mu.Unlock()

	page, err := s.Source.Scan(ctx, after, limit)
	if err != nil {
		return nil, err
	}
	var hooks []func()
	s.mu.Lock()
	for _, rec := range page {
		s.seen[rec.Key]++
		if fn, ok := s.after[rec.Key]; ok {
			hooks = append(hooks, fn)
		}
	}
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
	return page, nil
}

func (s *countingSource) counts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.seen))
	for k, v := range s.seen {
		out[k] = v
	}
	return out
}

type testEnv struct {
	migrator  *Migrator
	manager   *Manager
	store     *vectorstore.Client
	repos     *badger.Repositories
	embedder  *mock.MockEmbedder
	analytics *countingSource
	sessions  *countingSource
	progress  *bytes.Buffer
}

func testMigrationConfig() *Config {
	cfg := DefaultConfig()
	cfg.BatchSize = 2
	cfg.CheckpointInterval = 1
	cfg.ReportInterval = 1
	cfg.SampleSize = 5
	return cfg
}

func newTestEnv(t *testing.T, cfg *Config, opts ...Option) *testEnv {
	t.Helper()

	provider := mock.NewMockProvider(testDims)
	embedder := provider.GetMockEmbedder()
	embedder.WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
		if strings.Contains(text, "poison") {
			return nil, errors.New("status code: 400, rejected")
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
	pipeline, err := ingestion.NewPipeline(chunker, embClient, store, ingestion.WithBatchDelay(0))
	require.NoError(t, err)

	analytics := newCountingSource(t, "analytics", "a", 5)
	sessions := newCountingSource(t, "sessions", "s", 3)
	sources, err := source.NewRegistry(analytics, sessions)
	require.NoError(t, err)

	manager, err := NewManager(repos.Checkpoints, nil)
	require.NoError(t, err)

	var progress bytes.Buffer
	opts = append([]Option{
		WithConfig(cfg),
		WithProgressOutput(&progress),
		WithValidation(store, embClient),
	}, opts...)
	m, err := NewMigrator(manager, sources, pipeline, opts...)
	require.NoError(t, err)

	return &testEnv{
		migrator:  m,
		manager:   manager,
		store:     store,
		repos:     repos,
		embedder:  embedder,
		analytics: analytics,
		sessions:  sessions,
		progress:  &progress,
	}
}

func (e *testEnv) count(t *testing.T, sourceType string) int {
	t.Helper()
	n, err := e.store.Count(context.Background(), core.Filter{SourceType: sourceType})
	require.NoError(t, err)
	return n
}

func TestNewMigrator_RequiresDependencies(t *testing.T) {
	_, err := NewMigrator(nil, nil, nil)
	assert.ErrorIs(t, err, ErrCheckpointsRequired)

	_, err = NewManager(nil, nil)
	assert.ErrorIs(t, err, ErrCheckpointsRequired)
}

func TestMigrator_RunCompletes(t *testing.T) {
	env := newTestEnv(t, testMigrationConfig())
	ctx := context.Background()

	status, err := env.migrator.Run(ctx, "m1", []string{"analytics", "sessions"})
	require.NoError(t, err)

	assert.True(t, status.Completed)
	assert.False(t, status.Running)
	assert.Equal(t, []string{"analytics", "sessions"}, status.CompletedSources)
	assert.Equal(t, 8, status.Counters.TotalRecords)
	assert.Equal(t, 8, status.Counters.ProcessedRecords)
	assert.Equal(t, 8, status.Counters.SuccessfulRecords)
	assert.Equal(t, 8, status.Counters.DocumentsWritten)
	assert.Equal(t, float64(100), status.Percentage)
	assert.Equal(t, float64(100), status.SuccessRate)

	assert.Equal(t, 5, env.count(t, "analytics"))
	assert.Equal(t, 3, env.count(t, "sessions"))
	assert.Contains(t, env.progress.String(), "8/8 (100.0%)")

	cp, err := env.manager.Load(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, cp.Completed)
	assert.Empty(t, cp.CurrentSource)
}

func TestMigrator_PauseAndResumeProcessesEachRecordOnce(t *testing.T) {
	env := newTestEnv(t, testMigrationConfig())
	ctx := context.Background()

	env.analytics.after["a2"] = func() { require.NoError(t, env.migrator.Pause("m1")) }

	status, err := env.migrator.Run(ctx, "m1", []string{"analytics", "sessions"})
	require.NoError(t, err)
	assert.True(t, status.Paused)
	assert.False(t, status.Completed)
	assert.Equal(t, "analytics", status.CurrentSource)
	assert.Equal(t, "a2", status.LastKey)
	assert.Equal(t, 2, status.Counters.ProcessedRecords)
	assert.Equal(t, 2, env.count(t, "analytics"))

	cp, err := env.manager.Load(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, cp.Paused)
	assert.Equal(t, "a2", cp.LastKey)

	delete(env.analytics.after, "a2")
	status, err = env.migrator.Resume(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, status.Completed)
	assert.Equal(t, 8, status.Counters.ProcessedRecords)
	assert.Equal(t, 8, status.Counters.DocumentsWritten)

	for key, n := range env.analytics.counts() {
		assert.Equal(t, 1, n, "analytics record %s", key)
	}
	for key, n := range env.sessions.counts() {
		assert.Equal(t, 1, n, "sessions record %s", key)
	}
	assert.Len(t, env.analytics.counts(), 5)
	assert.Equal(t, 8, env.embedder.CallCount())
	assert.Equal(t, 5, env.count(t, "analytics"))
}

func TestMigrator_ResumeAfterFailureDoesNotDuplicate(t *testing.T) {
	env := newTestEnv(t, testMigrationConfig())
	ctx := context.Background()

	env.sessions.failFrom = "s2"
	_, err := env.migrator.Run(ctx, "m1", []string{"analytics", "sessions"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrStorage)

	status, err := env.migrator.Status(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"analytics"}, status.CompletedSources)
	assert.Equal(t, "sessions", status.CurrentSource)
	assert.Equal(t, "s2", status.LastKey)
	assert.Equal(t, 7, status.Counters.ProcessedRecords)

	env.sessions.failFrom = ""
	status, err = env.migrator.Resume(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, status.Completed)
	assert.Equal(t, 8, status.Counters.ProcessedRecords)
	assert.Equal(t, 5, env.count(t, "analytics"))
	assert.Equal(t, 3, env.count(t, "sessions"))
	assert.Equal(t, 1, env.analytics.counts()["a1"])
}

func TestMigrator_RecordFailuresAreCounted(t *testing.T) {
	cfg := testMigrationConfig()
	cfg.MaxRecentErrors = 2
	env := newTestEnv(t, cfg)
	ctx := context.Background()

	poison, err := source.NewMemorySource("campaigns",
		core.Record{Key: "c1", Fields: map[string]any{"description": "poison one"}},
		core.Record{Key: "c2", Fields: map[string]any{"description": "healthy campaign text"}},
		core.Record{Key: "c3", Fields: map[string]any{"description": "poison two"}},
		core.Record{Key: "c4", Fields: map[string]any{"description": "poison three"}},
	)
	require.NoError(t, err)
	require.NoError(t, env.migrator.sources.Register(poison))

	status, err := env.migrator.Run(ctx, "", []string{"campaigns"})
	require.NoError(t, err)
	assert.NotEmpty(t, status.MigrationID)
	assert.True(t, status.Completed)
	assert.Equal(t, 4, status.Counters.ProcessedRecords)
	assert.Equal(t, 1, status.Counters.SuccessfulRecords)
	assert.Equal(t, 3, status.Counters.FailedRecords)
	assert.Equal(t, float64(25), status.SuccessRate)
	require.Len(t, status.RecentErrors, 2)
	assert.Equal(t, "c4", status.RecentErrors[1].RecordID)
}

func TestMigrator_RunErrors(t *testing.T) {
	env := newTestEnv(t, testMigrationConfig())
	ctx := context.Background()

	_, err := env.migrator.Run(ctx, "m1", nil)
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = env.migrator.Run(ctx, "m1", []string{"missing"})
	assert.ErrorIs(t, err, core.ErrValidation)
	_, err = env.migrator.Run(ctx, "m1", []string{"analytics", "analytics"})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = env.migrator.Resume(ctx, "nope")
	assert.ErrorIs(t, err, ErrCheckpointNotFound)
	assert.ErrorIs(t, env.migrator.Pause("nope"), ErrNotRunning)

	env.analytics.after["a2"] = func() { _ = env.migrator.Pause("m1") }
	_, err = env.migrator.Run(ctx, "m1", []string{"analytics"})
	require.NoError(t, err)
	_, err = env.migrator.Run(ctx, "m1", []string{"analytics"})
	assert.ErrorIs(t, err, ErrInProgress)

	delete(env.analytics.after, "a2")
	_, err = env.migrator.Resume(ctx, "m1")
	require.NoError(t, err)
	_, err = env.migrator.Resume(ctx, "m1")
	assert.ErrorIs(t, err, ErrAlreadyCompleted)

	// A completed migration may be run again from scratch.
	status, err := env.migrator.Run(ctx, "m1", []string{"sessions"})
	require.NoError(t, err)
	assert.Equal(t, 3, status.Counters.ProcessedRecords)
}

func TestMigrator_StatusWhileRunning(t *testing.T) {
	env := newTestEnv(t, testMigrationConfig())
	ctx := context.Background()

	var live *Status
	env.analytics.after["a3"] = func() {
		s, err := env.migrator.Status(ctx, "m1")
		require.NoError(t, err)
		live = s
	}
	_, err := env.migrator.Run(ctx, "m1", []string{"analytics"})
	require.NoError(t, err)

	require.NotNil(t, live)
	assert.True(t, live.Running)
	assert.Equal(t, 2, live.Counters.ProcessedRecords)
	assert.InDelta(t, 40.0, live.Percentage, 0.001)
}

func TestMigrator_Lock(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	env := newTestEnv(t, testMigrationConfig(), WithLocker(redisstore.NewLock(client)))
	ctx := context.Background()

	other := redisstore.NewLock(client)
	ok, err := other.Acquire(ctx, "migration:m1", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = env.migrator.Run(ctx, "m1", []string{"analytics"})
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, other.Release(ctx, "migration:m1"))
	status, err := env.migrator.Run(ctx, "m1", []string{"analytics"})
	require.NoError(t, err)
	assert.True(t, status.Completed)
	assert.False(t, mr.Exists("vectorpipe:lock:migration:m1"))
}

func TestMigrator_Validate(t *testing.T) {
	env := newTestEnv(t, testMigrationConfig())
	ctx := context.Background()

	_, err := env.migrator.Validate(ctx, "m1")
	assert.ErrorIs(t, err, ErrCheckpointNotFound)

	_, err = env.migrator.Run(ctx, "m1", []string{"analytics", "sessions"})
	require.NoError(t, err)

	report, err := env.migrator.Validate(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, report.Valid, report.Issues)
	assert.Equal(t, 8, report.Sampled)
	assert.InDelta(t, 1.0, report.AverageSimilarity, 1e-6)
	require.Len(t, report.Sources, 2)
	assert.Equal(t, SourceReport{Source: "analytics", Records: 5, Indexed: 5, Documents: 5, Sampled: 5}, report.Sources[0])

	doc, err := env.store.Get(ctx, "analytics_a1")
	require.NoError(t, err)
	for i := range doc.Embedding {
		doc.Embedding[i] = -doc.Embedding[i]
	}
	require.NoError(t, env.store.Upsert(ctx, doc))
	require.NoError(t, env.store.Delete(ctx, "sessions_s3"))

	report, err = env.migrator.Validate(ctx, "m1")
	require.NoError(t, err)
	assert.False(t, report.Valid)
	assert.Len(t, report.Issues, 2)
	assert.Equal(t, 2, report.Sources[1].Indexed)
}

func TestMigrator_ValidateUnavailable(t *testing.T) {
	env := newTestEnv(t, testMigrationConfig(), WithValidation(nil, nil))
	_, err := env.migrator.Validate(context.Background(), "m1")
	assert.ErrorIs(t, err, ErrValidationUnavailable)
}
