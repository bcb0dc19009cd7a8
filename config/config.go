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

// Package config loads application configuration from a YAML file and
// VECTORPIPE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/vectorpipe/ai"
	"github.com/poiesic/vectorpipe/core"
	"github.com/poiesic/vectorpipe/embedding"
	"github.com/poiesic/vectorpipe/migration"
	"github.com/poiesic/vectorpipe/orchestrator"
	"github.com/poiesic/vectorpipe/source/postgres"
	"github.com/poiesic/vectorpipe/storage/surreal"
	"github.com/poiesic/vectorpipe/vectorstore"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendBadger  = "badger"
	BackendSurreal = "surreal"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VECTORPIPE_"

// Config holds all configuration values.
type Config struct {
	Log       LogConfig        `yaml:"log"`
	Provider  ProviderConfig   `yaml:"provider"`
	Embedding EmbeddingConfig  `yaml:"embedding"`
	Store     StoreConfig      `yaml:"store"`
	Jobs      JobsConfig       `yaml:"jobs"`
	Chunking  core.ChunkConfig `yaml:"chunking"`
	Migration MigrationConfig  `yaml:"migration"`
	Sources   SourcesConfig    `yaml:"sources"`
	Redis     RedisConfig      `yaml:"redis"`
	Metrics   MetricsConfig    `yaml:"metrics"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ProviderConfig selects the embedding provider.
type ProviderConfig struct {
	Name       string `yaml:"name"`
	Host       string `yaml:"host"`
	APIKey     string `yaml:"api_key"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// EmbeddingConfig bounds the embedding client.
type EmbeddingConfig struct {
	MaxTextLength     int           `yaml:"max_text_length"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	RequestsPerDay    int           `yaml:"requests_per_day"`
	MaxConcurrent     int           `yaml:"max_concurrent"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryBaseDelay    time.Duration `yaml:"retry_base_delay"`
	CacheTTL          time.Duration `yaml:"cache_ttl"`
	CacheSize         int           `yaml:"cache_size"`
	CostPer1KTokens   float64       `yaml:"cost_per_1k_tokens"`
}

// StoreConfig selects and tunes the document store.
type StoreConfig struct {
	Backend             string              `yaml:"backend"`
	Path                string              `yaml:"path"`
	Surreal             surreal.Config      `yaml:"surreal"`
	BreakerThreshold    int                 `yaml:"breaker_threshold"`
	BreakerReset        time.Duration       `yaml:"breaker_reset"`
	QueryCacheTTL       time.Duration       `yaml:"query_cache_ttl"`
	QueryCacheSize      int                 `yaml:"query_cache_size"`
	SlowQuery           time.Duration       `yaml:"slow_query"`
	CandidateMultiplier int                 `yaml:"candidate_multiplier"`
	Weights             vectorstore.Weights `yaml:"weights"`
}

// JobsConfig tunes the orchestrator.
type JobsConfig struct {
	MaxConcurrent  int           `yaml:"max_concurrent"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	HealthInterval time.Duration `yaml:"health_interval"`
	BatchSize      int           `yaml:"batch_size"`
	BatchDelay     time.Duration `yaml:"batch_delay"`
}

// MigrationConfig tunes bulk migrations.
type MigrationConfig struct {
	BatchSize          int     `yaml:"batch_size"`
	CheckpointInterval int     `yaml:"checkpoint_interval"`
	SampleSize         int     `yaml:"sample_size"`
	MinSimilarity      float64 `yaml:"min_similarity"`
	Checkpoints        string  `yaml:"checkpoints"`
}

// SourcesConfig lists where records come from.
type SourcesConfig struct {
	File     string         `yaml:"file"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig maps Postgres tables to sources.
type PostgresConfig struct {
	DSN    string           `yaml:"dsn"`
	Tables []postgres.Table `yaml:"tables"`
}

// RedisConfig is used for checkpoints and migration locks when Addr is set.
type RedisConfig struct {
	Addr          string        `yaml:"addr"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	CheckpointTTL time.Duration `yaml:"checkpoint_ttl"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	p := ai.DefaultConfig()
	e := embedding.DefaultConfig()
	v := vectorstore.DefaultConfig()
	o := orchestrator.DefaultConfig()
	m := migration.DefaultConfig()

	return &Config{
		Log: LogConfig{Level: "info"},
		Provider: ProviderConfig{
			Name:       p.Provider,
			Host:       p.EmbeddingHost,
			Model:      p.EmbeddingModel,
			Dimensions: p.Dimensions,
		},
		Embedding: EmbeddingConfig{
			MaxTextLength:     e.MaxTextLength,
			RequestsPerMinute: e.RequestsPerMinute,
			RequestsPerDay:    e.RequestsPerDay,
			MaxConcurrent:     e.MaxConcurrent,
			MaxRetries:        e.MaxRetries,
			RetryBaseDelay:    e.RetryBaseDelay,
			CacheTTL:          e.CacheTTL,
			CacheSize:         e.CacheSize,
			CostPer1KTokens:   e.CostPer1KTokens,
		},
		Store: StoreConfig{
			Backend: BackendBadger,
			Path:    "./data",
			Surreal: surreal.Config{
				URL:       "ws://localhost:8000/rpc",
				Namespace: "vectorpipe",
				Database:  "vectors",
				Username:  "root",
				Password:  "root",
				AuthLevel: "root",
			},
			BreakerThreshold:    v.BreakerThreshold,
			BreakerReset:        v.BreakerReset,
			QueryCacheTTL:       v.QueryCacheTTL,
			QueryCacheSize:      v.QueryCacheSize,
			SlowQuery:           v.SlowQueryThreshold,
			CandidateMultiplier: v.CandidateMultiplier,
			Weights:             v.Weights,
		},
		Jobs: JobsConfig{
			MaxConcurrent:  o.MaxConcurrentJobs,
			Timeout:        o.JobTimeout,
			MaxRetries:     o.MaxRetries,
			RetryDelay:     o.RetryDelay,
			HealthInterval: o.HealthInterval,
			BatchSize:      100,
			BatchDelay:     100 * time.Millisecond,
		},
		Chunking: core.DefaultChunkConfig(),
		Migration: MigrationConfig{
			BatchSize:          m.BatchSize,
			CheckpointInterval: m.CheckpointInterval,
			SampleSize:         m.SampleSize,
			MinSimilarity:      m.MinSimilarity,
			Checkpoints:        BackendBadger,
		},
	}
}

// Load reads path (if not empty) over the defaults, then applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from VECTORPIPE_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)
	str("PROVIDER", &c.Provider.Name)
	str("EMBEDDING_HOST", &c.Provider.Host)
	str("API_KEY", &c.Provider.APIKey)
	str("MODEL", &c.Provider.Model)
	num("DIMENSIONS", &c.Provider.Dimensions)
	num("REQUESTS_PER_MINUTE", &c.Embedding.RequestsPerMinute)
	num("REQUESTS_PER_DAY", &c.Embedding.RequestsPerDay)
	str("STORE_BACKEND", &c.Store.Backend)
	str("DATA_DIR", &c.Store.Path)
	str("SURREAL_URL", &c.Store.Surreal.URL)
	str("SURREAL_USER", &c.Store.Surreal.Username)
	str("SURREAL_PASS", &c.Store.Surreal.Password)
	str("RECORDS_FILE", &c.Sources.File)
	str("POSTGRES_URL", &c.Sources.Postgres.DSN)
	str("REDIS_ADDR", &c.Redis.Addr)
	str("REDIS_PASSWORD", &c.Redis.Password)
	str("METRICS_ADDR", &c.Metrics.Addr)
	num("MAX_CONCURRENT_JOBS", &c.Jobs.MaxConcurrent)
	return errors.Join(errs...)
}

// Validate checks the configuration by building every package config.
func (c *Config) Validate() error {
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Store.Backend {
	case BackendBadger:
		if c.Store.Path == "" {
			return errors.New("config: store.path is required for badger")
		}
	case BackendSurreal:
		if c.Store.Surreal.URL == "" {
			return errors.New("config: store.surreal.url is required")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}
	switch c.Migration.Checkpoints {
	case BackendBadger:
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("config: redis.addr is required for redis checkpoints")
		}
	default:
		return fmt.Errorf("config: unknown checkpoint backend %q", c.Migration.Checkpoints)
	}
	if c.Jobs.BatchSize < core.MinBatchSize || c.Jobs.BatchSize > core.MaxBatchSize {
		return fmt.Errorf("config: jobs.batch_size must be between %d and %d", core.MinBatchSize, core.MaxBatchSize)
	}

	return errors.Join(
		c.AIConfig().Validate(),
		c.EmbeddingConfig().Validate(),
		c.VectorStoreConfig(c.Provider.Dimensions).Validate(),
		c.OrchestratorConfig().Validate(),
		c.MigrationConfig().Validate(),
	)
}

// AIConfig returns the provider configuration.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithProvider(strings.ToLower(c.Provider.Name)),
		ai.WithEmbeddingHost(c.Provider.Host),
		ai.WithAPIKey(c.Provider.APIKey),
		ai.WithEmbeddingModel(c.Provider.Model),
		ai.WithDimensions(c.Provider.Dimensions),
	)
}

// EmbeddingConfig returns the embedding client configuration.
func (c *Config) EmbeddingConfig() *embedding.Config {
	e := c.Embedding
	return &embedding.Config{
		MaxTextLength:     e.MaxTextLength,
		RequestsPerMinute: e.RequestsPerMinute,
		RequestsPerDay:    e.RequestsPerDay,
		MaxConcurrent:     e.MaxConcurrent,
		MaxRetries:        e.MaxRetries,
		RetryBaseDelay:    e.RetryBaseDelay,
		CacheTTL:          e.CacheTTL,
		CacheSize:         e.CacheSize,
		CostPer1KTokens:   e.CostPer1KTokens,
	}
}

// VectorStoreConfig returns the store client configuration for vectors of dims.
func (c *Config) VectorStoreConfig(dims int) *vectorstore.Config {
	s := c.Store
	return &vectorstore.Config{
		Dimensions:          dims,
		BreakerThreshold:    s.BreakerThreshold,
		BreakerReset:        s.BreakerReset,
		QueryCacheTTL:       s.QueryCacheTTL,
		QueryCacheSize:      s.QueryCacheSize,
		SlowQueryThreshold:  s.SlowQuery,
		CandidateMultiplier: s.CandidateMultiplier,
		Weights:             s.Weights,
	}
}

// OrchestratorConfig returns the orchestrator configuration.
func (c *Config) OrchestratorConfig() *orchestrator.Config {
	j := c.Jobs
	return &orchestrator.Config{
		MaxConcurrentJobs: j.MaxConcurrent,
		JobTimeout:        j.Timeout,
		MaxRetries:        j.MaxRetries,
		RetryDelay:        j.RetryDelay,
		HealthInterval:    j.HealthInterval,
	}
}

// MigrationConfig returns the migrator configuration.
func (c *Config) MigrationConfig() *migration.Config {
	m := migration.DefaultConfig()
	m.BatchSize = c.Migration.BatchSize
	m.CheckpointInterval = c.Migration.CheckpointInterval
	m.SampleSize = c.Migration.SampleSize
	m.MinSimilarity = c.Migration.MinSimilarity
	m.Chunking = c.Chunking
	return m
}
