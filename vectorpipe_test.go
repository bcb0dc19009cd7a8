package vectorpipe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/vectorpipe/ai"
	"github.com/poiesic/vectorpipe/ai/mock"
	"github.com/poiesic/vectorpipe/config"
	"github.com/poiesic/vectorpipe/core"
	"github.com/poiesic/vectorpipe/source"
)

const testDims = 16

const recordsYAML = `
campaigns:
  - id: c1
    name: Spring
    description: Spring sale on sneakers
  - id: c2
    name: Summer
    description: Summer launch of sandals
analytics:
  - id: a1
    event_type: click
    description: Clicked the sandals banner
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Provider.Name = ai.ProviderMock
	cfg.Provider.Model = "mock-embedding"
	cfg.Provider.Dimensions = testDims
	cfg.Store.Path = filepath.Join(t.TempDir(), "data")
	cfg.Jobs.BatchDelay = 0
	cfg.Jobs.HealthInterval = 0
	cfg.Jobs.RetryDelay = 10 * time.Millisecond

	file := filepath.Join(t.TempDir(), "records.yaml")
	require.NoError(t, os.WriteFile(file, []byte(recordsYAML), 0o644))
	cfg.Sources.File = file
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	app, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Close(ctx)
	})
	return app
}

func TestNew(t *testing.T) {
	t.Run("wires every service", func(t *testing.T) {
		app := newTestApp(t, testConfig(t))

		assert.NotNil(t, app.Embedding())
		assert.NotNil(t, app.Store())
		assert.NotNil(t, app.Pipeline())
		assert.NotNil(t, app.Orchestrator())
		assert.NotNil(t, app.Checkpoints())
		assert.NotNil(t, app.Migrator())
		assert.NotNil(t, app.Metrics())
		assert.Equal(t, testDims, app.Store().Dimensions())
		assert.Equal(t, []string{"analytics", "campaigns"}, app.Sources().Names())
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Store.Backend = "cassandra"
		app, err := New(context.Background(), cfg)
		assert.Error(t, err)
		assert.Nil(t, app)
	})

	t.Run("error with store path that is a file", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Store.Path = filepath.Join(t.TempDir(), "not_a_dir")
		require.NoError(t, os.WriteFile(cfg.Store.Path, []byte("test"), 0o644))

		app, err := New(context.Background(), cfg)
		assert.Error(t, err)
		assert.Nil(t, app)
	})

	t.Run("missing records file", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Sources.File = filepath.Join(t.TempDir(), "missing.yaml")
		_, err := New(context.Background(), cfg)
		assert.Error(t, err)
	})

	t.Run("extra source and injected provider", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Sources.File = ""
		src, err := source.NewMemorySource("sessions", core.Record{Key: "s1", Fields: map[string]any{"description": "first session"}})
		require.NoError(t, err)
		provider := mock.NewMockProvider(testDims)

		app := newTestApp(t, cfg, WithSource(src), WithProvider(provider))
		assert.Equal(t, []string{"sessions"}, app.Sources().Names())
	})
}

func TestApp_IngestAndSearch(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	ctx := context.Background()

	id, err := app.Orchestrator().Enqueue(ctx, &core.Job{
		Source:    "campaigns",
		BatchSize: 10,
		Chunking:  core.DefaultChunkConfig(),
	})
	require.NoError(t, err)

	var job *core.Job
	require.Eventually(t, func() bool {
		job, err = app.Orchestrator().Get(ctx, id)
		return err == nil && job.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
	require.Equal(t, core.JobCompleted, job.Status)
	assert.Equal(t, 2, job.Progress.Processed)

	doc, err := app.Store().Get(ctx, core.DocumentID("campaigns", "c1", 0))
	require.NoError(t, err)
	assert.Equal(t, "campaigns", doc.SourceType)

	hits, err := app.Search(ctx, "Summer launch of sandals", core.Filter{}, 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	var matched *core.ScoredDocument
	for _, h := range hits {
		if h.Document.ID == core.DocumentID("campaigns", "c2", 0) {
			matched = h
		}
	}
	require.NotNil(t, matched)
	assert.Greater(t, matched.TextScore, 0.0)

	_, err = app.Search(ctx, "   ", core.Filter{}, 5)
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestApp_MigrateAndValidate(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	ctx := context.Background()

	status, err := app.Migrator().Run(ctx, "m1", []string{"campaigns", "analytics"})
	require.NoError(t, err)
	assert.True(t, status.Completed)
	assert.Equal(t, 3, status.Counters.ProcessedRecords)

	cp, err := app.Checkpoints().Load(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, cp.Completed)

	report, err := app.Migrator().Validate(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, report.Valid, "issues: %v", report.Issues)
}

func TestApp_RedisCheckpoints(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Redis.Addr = mr.Addr()
	cfg.Migration.Checkpoints = "redis"

	app := newTestApp(t, cfg)
	ctx := context.Background()

	_, err := app.Migrator().Run(ctx, "m-redis", []string{"analytics"})
	require.NoError(t, err)

	keys := mr.Keys()
	assert.NotEmpty(t, keys)
	cp, err := app.Checkpoints().Load(ctx, "m-redis")
	require.NoError(t, err)
	assert.Equal(t, []string{"analytics"}, cp.CompletedSources)
}

func TestApp_RedisUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Addr = "127.0.0.1:1"

	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestApp_HealthHandler(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	rec := httptest.NewRecorder()
	app.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy\n", rec.Body.String())
}

func TestApp_Routes(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	_, err := app.Search(context.Background(), "warm up the metrics", core.Filter{}, 1)
	require.NoError(t, err)

	srv := httptest.NewServer(app.routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "vectorpipe_embedding_events_total")

	resp2, err := http.Post(srv.URL+"/healthz", "text/plain", nil)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp2.StatusCode)
}

func TestApp_CloseTwice(t *testing.T) {
	app, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, app.Close(ctx))
	assert.NoError(t, app.Close(ctx))
}
