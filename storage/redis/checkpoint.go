// Package redis stores migration checkpoints and migration locks in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/vectorpipe/core"
	"github.com/poiesic/vectorpipe/storage"
	"github.com/redis/go-redis/v9"
)

// Verify interface compliance
var _ storage.CheckpointRepository = (*CheckpointRepository)(nil)

const checkpointPrefix = "vectorpipe:checkpoint:"

// CheckpointRepository implements storage.CheckpointRepository on a Redis string key per migration.
type CheckpointRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCheckpointRepository creates a Redis-backed checkpoint repository.
// A ttl of zero keeps checkpoints until they are deleted.
func NewCheckpointRepository(client *redis.Client, ttl time.Duration) *CheckpointRepository {
	return &CheckpointRepository{client: client, ttl: ttl}
}

// SaveCheckpoint replaces the checkpoint stored for the migration.
func (r *CheckpointRepository) SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error {
	checkpoint.UpdatedAt = time.Now().UTC()
	value, err := storage.MarshalCheckpoint(checkpoint)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, checkpointPrefix+checkpoint.MigrationID, value, r.ttl).Err(); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", checkpoint.MigrationID, err)
	}
	return nil
}

// LoadCheckpoint returns storage.ErrNotFound when no checkpoint is stored.
func (r *CheckpointRepository) LoadCheckpoint(ctx context.Context, migrationID string) (*core.Checkpoint, error) {
	data, err := r.client.Get(ctx, checkpointPrefix+migrationID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", migrationID, err)
	}
	return storage.UnmarshalCheckpoint(data)
}

// DeleteCheckpoint removes the checkpoint for the migration.
func (r *CheckpointRepository) DeleteCheckpoint(ctx context.Context, migrationID string) error {
	if err := r.client.Del(ctx, checkpointPrefix+migrationID).Err(); err != nil {
		return fmt.Errorf("delete checkpoint %s: %w", migrationID, err)
	}
	return nil
}
