package migration

import (
	"context"
	"testing"

	"github.com/poiesic/vectorpipe/core"
	"github.com/poiesic/vectorpipe/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_SaveLoad(t *testing.T) {
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer repos.Close()

	m, err := NewManager(repos.Checkpoints, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = m.Load(ctx, "m1")
	assert.ErrorIs(t, err, ErrCheckpointNotFound)

	state := &core.Checkpoint{
		Sources:          []string{"analytics", "sessions"},
		CurrentSource:    "sessions",
		CompletedSources: []string{"analytics"},
		LastKey:          "s-10",
		BatchSize:        50,
		Chunking:         core.DefaultChunkConfig(),
		Counters:         core.MigrationCounters{TotalRecords: 30, ProcessedRecords: 20},
	}
	require.NoError(t, m.Save(ctx, "m1", state))
	assert.Empty(t, state.MigrationID, "save must not mutate the caller's state")

	loaded, err := m.Load(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", loaded.MigrationID)
	assert.Equal(t, "s-10", loaded.LastKey)
	assert.Equal(t, state.Sources, loaded.Sources)
	assert.Equal(t, state.Chunking, loaded.Chunking)
	assert.Equal(t, 20, loaded.Counters.ProcessedRecords)
	assert.True(t, loaded.SourceCompleted("analytics"))

	state.LastKey = "s-20"
	require.NoError(t, m.Save(ctx, "m1", state))
	loaded, err = m.Load(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "s-20", loaded.LastKey)

	require.NoError(t, m.Delete(ctx, "m1"))
	_, err = m.Load(ctx, "m1")
	assert.ErrorIs(t, err, ErrCheckpointNotFound)

	assert.ErrorIs(t, m.Save(ctx, "", state), core.ErrValidation)
}
