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

// Package vectorpipe wires the ingestion services into one application:
// embedding client, vector store, chunker, job orchestrator and the
// checkpointed migrator, all built from a single config.Config.
package vectorpipe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/poiesic/vectorpipe/ai"
	"github.com/poiesic/vectorpipe/ai/gemini"
	"github.com/poiesic/vectorpipe/ai/mock"
	"github.com/poiesic/vectorpipe/ai/openai"
	"github.com/poiesic/vectorpipe/chunking"
	"github.com/poiesic/vectorpipe/config"
	"github.com/poiesic/vectorpipe/core"
	"github.com/poiesic/vectorpipe/embedding"
	"github.com/poiesic/vectorpipe/ingestion"
	"github.com/poiesic/vectorpipe/metrics"
	"github.com/poiesic/vectorpipe/migration"
	"github.com/poiesic/vectorpipe/orchestrator"
	"github.com/poiesic/vectorpipe/source"
	"github.com/poiesic/vectorpipe/source/postgres"
	"github.com/poiesic/vectorpipe/storage"
	"github.com/poiesic/vectorpipe/storage/badger"
	redisstore "github.com/poiesic/vectorpipe/storage/redis"
	"github.com/poiesic/vectorpipe/storage/surreal"
	"github.com/poiesic/vectorpipe/vectorstore"
)

// App holds every service of a running vectorpipe instance.
type App struct {
	config      *config.Config
	logger      *slog.Logger
	progressOut io.Writer

	provider ai.AIProvider
	repos    *badger.Repositories
	docs     storage.DocumentStore
	redis    *goredis.Client
	pgPool   *pgxpool.Pool
	extra    []source.Source

	embedding    *embedding.Client
	store        *vectorstore.Client
	chunker      *chunking.Chunker
	pipeline     *ingestion.Pipeline
	sources      *source.Registry
	orchestrator *orchestrator.Orchestrator
	checkpoints  *migration.Manager
	migrator     *migration.Migrator
	metrics      *metrics.Collector
	server       *http.Server
}

// Option configures an App.
type Option func(*App) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
		return nil
	}
}

// WithProvider uses p instead of building one from the provider config.
// The App takes ownership and closes p.
func WithProvider(p ai.AIProvider) Option {
	return func(a *App) error {
		if p == nil {
			return errors.New("provider is nil")
		}
		a.provider = p
		return nil
	}
}

// WithSource registers an additional record source.
func WithSource(s source.Source) Option {
	return func(a *App) error {
		if s == nil {
			return errors.New("source is nil")
		}
		a.extra = append(a.extra, s)
		return nil
	}
}

// WithProgressOutput sets where migrations print progress lines.
func WithProgressOutput(w io.Writer) Option {
	return func(a *App) error {
		a.progressOut = w
		return nil
	}
}

// New builds an App from cfg. Everything opened before a failure is closed again.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (app *App, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &App{config: cfg, logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	defer func() {
		if err == nil {
			return
		}
		if a.orchestrator != nil {
			_ = a.orchestrator.Shutdown(context.Background())
		}
		_ = a.closeResources()
	}()

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"provider", a.openProvider},
		{"metrics", a.openMetrics},
		{"storage", a.openStorage},
		{"embedding client", a.openEmbedding},
		{"vector store", a.openVectorStore},
		{"pipeline", a.openPipeline},
		{"sources", a.openSources},
		{"orchestrator", a.openOrchestrator},
		{"migrator", a.openMigrator},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", step.name, err)
		}
	}

	if n, err := a.orchestrator.Recover(ctx); err != nil {
		a.logger.Warn("failed to recover queued jobs", "err", err)
	} else if n > 0 {
		a.logger.Info("recovered unfinished jobs", "count", n)
	}

	a.serveMetrics()
	return a, nil
}

func (a *App) openProvider(ctx context.Context) error {
	if a.provider != nil {
		return nil
	}
	aiCfg := a.config.AIConfig()
	if err := aiCfg.Validate(); err != nil {
		return err
	}

	var err error
	switch aiCfg.Provider {
	case ai.ProviderGemini:
		a.provider, err = gemini.NewProvider(ctx, aiCfg)
	case ai.ProviderMock:
		a.provider = mock.NewMockProvider(aiCfg.Dimensions)
	default:
		a.provider, err = openai.NewProvider(aiCfg)
	}
	return err
}

func (a *App) openMetrics(context.Context) error {
	c, err := metrics.NewCollector()
	if err != nil {
		return err
	}
	a.metrics = c
	return nil
}

// openStorage opens the badger backend that always holds jobs, and holds
// documents and checkpoints unless surreal and redis are configured.
func (a *App) openStorage(ctx context.Context) error {
	backend, err := badger.OpenBackend(a.config.Store.Path, false, badger.WithLogger(a.logger))
	if err != nil {
		return err
	}
	a.repos = badger.NewRepositories(backend)
	a.docs = a.repos.Documents

	if a.config.Store.Backend == config.BackendSurreal {
		scfg := a.config.Store.Surreal
		scfg.Dimensions = a.provider.Dimensions()
		docs, err := surreal.Open(ctx, scfg, a.logger)
		if err != nil {
			return err
		}
		a.docs = docs
	}

	if a.config.Redis.Addr != "" {
		a.redis = goredis.NewClient(&goredis.Options{
			Addr:     a.config.Redis.Addr,
			Password: a.config.Redis.Password,
			DB:       a.config.Redis.DB,
		})
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}
	return nil
}

func (a *App) openEmbedding(context.Context) error {
	opts := []embedding.Option{
		embedding.WithConfig(a.config.EmbeddingConfig()),
		embedding.WithLogger(a.logger),
		embedding.WithObserver(a.metrics),
	}
	if a.config.Provider.Name == ai.ProviderOpenAI {
		if est, err := embedding.NewTiktokenEstimator(a.provider.Model()); err != nil {
			a.logger.Warn("tiktoken unavailable, using heuristic token estimates", "err", err)
		} else {
			opts = append(opts, embedding.WithTokenEstimator(est))
		}
	}

	c, err := embedding.NewClient(a.provider, opts...)
	if err != nil {
		return err
	}
	a.embedding = c
	return nil
}

func (a *App) openVectorStore(context.Context) error {
	c, err := vectorstore.NewClient(a.docs,
		vectorstore.WithConfig(a.config.VectorStoreConfig(a.provider.Dimensions())),
		vectorstore.WithLogger(a.logger),
		vectorstore.WithObserver(a.metrics),
	)
	if err != nil {
		return err
	}
	a.store = c
	return nil
}

func (a *App) openPipeline(context.Context) error {
	chunker, err := chunking.NewChunker(chunking.WithLogger(a.logger))
	if err != nil {
		return err
	}
	p, err := ingestion.NewPipeline(chunker, a.embedding, a.store,
		ingestion.WithBatchDelay(a.config.Jobs.BatchDelay),
		ingestion.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}
	a.chunker, a.pipeline = chunker, p
	return nil
}

func (a *App) openSources(ctx context.Context) error {
	reg, err := source.NewRegistry(a.extra...)
	if err != nil {
		return err
	}

	if path := a.config.Sources.File; path != "" {
		loaded, err := source.LoadFile(path)
		if err != nil {
			return err
		}
		for _, name := range loaded.Names() {
			src, _ := loaded.Get(name)
			if err := reg.Register(src); err != nil {
				return err
			}
		}
	}

	if pg := a.config.Sources.Postgres; pg.DSN != "" {
		pool, err := postgres.Connect(ctx, pg.DSN)
		if err != nil {
			return err
		}
		a.pgPool = pool
		if err := postgres.Register(reg, pool, pg.Tables, a.logger); err != nil {
			return err
		}
	}

	a.sources = reg
	return nil
}

func (a *App) openOrchestrator(context.Context) error {
	o, err := orchestrator.New(a.repos.Jobs, a.sources, a.pipeline,
		orchestrator.WithConfig(a.config.OrchestratorConfig()),
		orchestrator.WithLogger(a.logger),
		orchestrator.WithObserver(a.metrics),
		orchestrator.WithHealthCheck(orchestrator.EmbeddingHealth(a.embedding)),
		orchestrator.WithHealthCheck(orchestrator.StoreHealth(a.store)),
	)
	if err != nil {
		return err
	}
	a.orchestrator = o
	return nil
}

func (a *App) openMigrator(context.Context) error {
	var repo storage.CheckpointRepository = a.repos.Checkpoints
	opts := []migration.Option{
		migration.WithConfig(a.config.MigrationConfig()),
		migration.WithLogger(a.logger),
		migration.WithValidation(a.store, a.embedding),
	}
	if a.progressOut != nil {
		opts = append(opts, migration.WithProgressOutput(a.progressOut))
	}
	if a.redis != nil {
		if a.config.Migration.Checkpoints == "redis" {
			repo = redisstore.NewCheckpointRepository(a.redis, a.config.Redis.CheckpointTTL)
		}
		opts = append(opts, migration.WithLocker(redisstore.NewLock(a.redis)))
	}

	manager, err := migration.NewManager(repo, a.logger)
	if err != nil {
		return err
	}
	m, err := migration.NewMigrator(manager, a.sources, a.pipeline, opts...)
	if err != nil {
		return err
	}
	a.checkpoints, a.migrator = manager, m
	return nil
}

func (a *App) serveMetrics() {
	addr := a.config.Metrics.Addr
	if addr == "" {
		return
	}
	a.server = &http.Server{Addr: addr, Handler: a.routes(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server stopped", "addr", addr, "err", err)
		}
	}()
	a.logger.Info("serving metrics", "addr", addr)
}

func (a *App) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())
	r.Get("/healthz", a.healthHandler)
	return r
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	h := a.orchestrator.Health(r.Context())
	if h.Status == orchestrator.StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	fmt.Fprintln(w, h.Status)
}

// Config returns the configuration the App was built from.
func (a *App) Config() *config.Config {
	return a.config
}

// Embedding returns the embedding client.
func (a *App) Embedding() *embedding.Client {
	return a.embedding
}

// Store returns the vector store client.
func (a *App) Store() *vectorstore.Client {
	return a.store
}

// Pipeline returns the ingestion pipeline.
func (a *App) Pipeline() *ingestion.Pipeline {
	return a.pipeline
}

// Sources returns the source registry.
func (a *App) Sources() *source.Registry {
	return a.sources
}

// Orchestrator returns the job orchestrator.
func (a *App) Orchestrator() *orchestrator.Orchestrator {
	return a.orchestrator
}

// Checkpoints returns the checkpoint manager.
func (a *App) Checkpoints() *migration.Manager {
	return a.checkpoints
}

// Migrator returns the bulk migrator.
func (a *App) Migrator() *migration.Migrator {
	return a.migrator
}

// Metrics returns the Prometheus collector.
func (a *App) Metrics() *metrics.Collector {
	return a.metrics
}

// Search embeds query and runs a hybrid search over the store.
func (a *App) Search(ctx context.Context, query string, filter core.Filter, limit int) ([]*core.ScoredDocument, error) {
	vector, err := a.embedding.Embed(ctx, query, embedding.Options{})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return a.store.HybridSearch(ctx, vector, query, vectorstore.Weights{}, filter, limit)
}

// Close stops the orchestrator, waiting for running jobs until ctx ends,
// then releases every resource in reverse order of creation.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.orchestrator != nil {
		if err := a.orchestrator.Shutdown(ctx); err != nil {
			a.logger.Error("failed to shut down orchestrator", "err", err)
			errs = append(errs, err)
		}
	}
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Error("failed to stop metrics server", "err", err)
			errs = append(errs, err)
		}
	}
	if err := a.closeResources(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// closeResources closes stores and connections. Errors are logged and joined.
func (a *App) closeResources() error {
	var errs []error
	closeOne := func(name string, fn func() error) {
		if err := fn(); err != nil {
			a.logger.Error("failed to close "+name, "err", err)
			errs = append(errs, err)
		}
	}

	if a.pgPool != nil {
		a.pgPool.Close()
		a.pgPool = nil
	}
	if a.redis != nil {
		closeOne("redis client", a.redis.Close)
		a.redis = nil
	}
	if a.store != nil {
		closeOne("vector store", a.store.Close)
		a.store, a.docs = nil, nil
	} else if a.docs != nil {
		closeOne("document store", a.docs.Close)
		a.docs = nil
	}
	if a.repos != nil {
		closeOne("badger backend", a.repos.Close)
		a.repos = nil
	}
	if a.provider != nil {
		closeOne("AI provider", a.provider.Close)
		a.provider = nil
	}
	return errors.Join(errs...)
}
