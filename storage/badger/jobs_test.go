package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/vectorpipe/core"
	"github.com/poiesic/vectorpipe/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobRepository(t *testing.T) {
	repos := newTestRepos(t)
	jobs := repos.Jobs
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	second := &core.Job{ID: "b", Source: "sessions", Status: core.JobQueued, CreatedAt: base.Add(time.Minute)}
	first := &core.Job{ID: "a", Source: "campaigns", Status: core.JobQueued, CreatedAt: base}
	require.NoError(t, jobs.SaveJob(ctx, second))
	require.NoError(t, jobs.SaveJob(ctx, first))

	first.Status = core.JobCompleted
	first.Progress = core.Progress{Stage: core.StageDone, Percentage: 100}
	require.NoError(t, jobs.SaveJob(ctx, first))

	got, err := jobs.GetJob(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, core.JobCompleted, got.Status)
	assert.Equal(t, 100.0, got.Progress.Percentage)

	list, err := jobs.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)

	require.NoError(t, jobs.DeleteJob(ctx, "a"))
	_, err = jobs.GetJob(ctx, "a")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
