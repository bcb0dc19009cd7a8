package storage

import (
	"context"

	"github.com/poiesic/vectorpipe/core"
)

// Generic index names every DocumentStore answers in IndexExists.
const (
	IndexVector = "vector"
	IndexText   = "text"
	IndexSource = "source"
)

// VectorQuery is a vector-similarity query.
type VectorQuery struct {
	// Vector is the query embedding. Its length is checked by the caller.
	Vector []float32

	// Candidates is the number of nearest neighbours the index considers
	// before filtering and truncation. Zero means Limit.
	Candidates int

	// Limit caps the number of returned documents.
	Limit int

	Filter core.Filter
}

// TextQuery is a text-relevance query.
type TextQuery struct {
	Text   string
	Limit  int
	Filter core.Filter
}

// DocumentStore is a vector document collection.
// Implementations must be thread-safe and support concurrent access.
type DocumentStore interface {
	// Upsert inserts or replaces documents by ID.
	// CreatedAt is preserved for documents that already exist.
	Upsert(ctx context.Context, docs ...*core.VectorDocument) error

	// Get retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	Get(ctx context.Context, id string) (*core.VectorDocument, error)

	// Delete removes documents by ID. Missing IDs are ignored.
	Delete(ctx context.Context, ids ...string) error

	// DeleteByFilter removes every document matching filter and returns how many were removed.
	// An empty filter is rejected with ErrInvalidQuery.
	DeleteByFilter(ctx context.Context, filter core.Filter) (int, error)

	// VectorQuery returns documents ordered by cosine similarity, highest first.
	// ScoredDocument.VectorScore and Score carry the similarity.
	VectorQuery(ctx context.Context, query VectorQuery) ([]*core.ScoredDocument, error)

	// TextQuery returns documents ordered by text relevance, highest first.
	// Documents that do not match any query term are omitted.
	TextQuery(ctx context.Context, query TextQuery) ([]*core.ScoredDocument, error)

	// Count returns the number of documents matching filter.
	Count(ctx context.Context, filter core.Filter) (int, error)

	// Stats returns collection statistics.
	Stats(ctx context.Context) (*core.CollectionStats, error)

	// IndexExists reports whether the named index is available.
	IndexExists(ctx context.Context, name string) (bool, error)

	// Close releases resources held by the store.
	Close() error
}

// JobRepository persists orchestrator jobs.
type JobRepository interface {
	// SaveJob inserts or replaces a job.
	SaveJob(ctx context.Context, job *core.Job) error

	// GetJob retrieves a job by ID.
	// Returns ErrNotFound if the job doesn't exist.
	GetJob(ctx context.Context, id string) (*core.Job, error)

	// ListJobs returns all jobs ordered by creation time.
	ListJobs(ctx context.Context) ([]*core.Job, error)

	// DeleteJob removes a job. Missing jobs are ignored.
	DeleteJob(ctx context.Context, id string) error
}

// CheckpointRepository persists migration checkpoints.
// A saved checkpoint supersedes any previous checkpoint with the same MigrationID.
type CheckpointRepository interface {
	// SaveCheckpoint persists a checkpoint and stamps UpdatedAt.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for a migration.
	// Returns ErrNotFound if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, migrationID string) (*core.Checkpoint, error)

	// DeleteCheckpoint removes a checkpoint. Missing checkpoints are ignored.
	DeleteCheckpoint(ctx context.Context, migrationID string) error
}
