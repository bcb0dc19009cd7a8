package migration

import (
	"errors"
	"time"

	"github.com/poiesic/vectorpipe/core"
)

// Config holds migration settings.
type Config struct {
	// BatchSize is the page size used to read each source.
	BatchSize int

	// CheckpointInterval is the number of pages between checkpoints.
	CheckpointInterval int

	// Chunking is applied to every record.
	Chunking core.ChunkConfig

	// MaxRecentErrors bounds the per-record failures kept in the checkpoint.
	MaxRecentErrors int

	// ReportInterval is how many records pass between progress lines.
	ReportInterval int

	// SampleSize is the number of records per source Validate re-embeds.
	SampleSize int

	// MinSimilarity is the cosine similarity a re-embedded sample must reach.
	MinSimilarity float64

	// LockTTL bounds how long a crashed process can hold the migration lock.
	LockTTL time.Duration
}

// DefaultConfig returns the default migration settings.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:          100,
		CheckpointInterval: 10,
		Chunking:           core.DefaultChunkConfig(),
		MaxRecentErrors:    10,
		ReportInterval:     100,
		SampleSize:         10,
		MinSimilarity:      0.99,
		LockTTL:            time.Hour,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.BatchSize < core.MinBatchSize || c.BatchSize > core.MaxBatchSize {
		return core.NewValidationError("batch_size", "must be between %d and %d, got %d", core.MinBatchSize, core.MaxBatchSize, c.BatchSize)
	}
	if c.CheckpointInterval <= 0 {
		return errors.New("migration config: CheckpointInterval must be positive")
	}
	if c.MaxRecentErrors <= 0 || c.ReportInterval <= 0 {
		return errors.New("migration config: MaxRecentErrors and ReportInterval must be positive")
	}
	if c.SampleSize < 0 || c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		return errors.New("migration config: invalid sample settings")
	}
	return core.ValidateChunkConfig(c.Chunking)
}
