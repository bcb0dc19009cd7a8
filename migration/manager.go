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

package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/poiesic/vectorpipe/core"
	"github.com/poiesic/vectorpipe/storage"
)

// Manager saves and loads migration checkpoints.
type Manager struct {
	repo   storage.CheckpointRepository
	logger *slog.Logger
}

// NewManager creates a checkpoint manager over repo.
func NewManager(repo storage.CheckpointRepository, logger *slog.Logger) (*Manager, error) {
	if repo == nil {
		return nil, ErrCheckpointsRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{repo: repo, logger: logger.With("component", "checkpoints")}, nil
}

// Save persists state as the checkpoint of id, replacing any previous one.
func (m *Manager) Save(ctx context.Context, id string, state *core.Checkpoint) error {
	if id == "" {
		return core.NewValidationError("migration_id", "must not be empty")
	}
	cp := cloneCheckpoint(state)
	cp.MigrationID = id
	if err := m.repo.SaveCheckpoint(ctx, cp); err != nil {
		return fmt.Errorf("save checkpoint %s: %w", id, err)
	}
	m.logger.Debug("checkpoint saved", "migration", id, "source", cp.CurrentSource, "last_key", cp.LastKey,
		"processed", cp.Counters.ProcessedRecords)
	return nil
}

// Load returns the checkpoint of id, or ErrCheckpointNotFound.
func (m *Manager) Load(ctx context.Context, id string) (*core.Checkpoint, error) {
	cp, err := m.repo.LoadCheckpoint(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCheckpointNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", id, err)
	}
	return cp, nil
}

// Delete removes the checkpoint of id.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.repo.DeleteCheckpoint(ctx, id)
}

func cloneCheckpoint(cp *core.Checkpoint) *core.Checkpoint {
	c := *cp
	c.Sources = slices.Clone(cp.Sources)
	c.CompletedSources = slices.Clone(cp.CompletedSources)
	c.RecentErrors = slices.Clone(cp.RecentErrors)
	return &c
}
