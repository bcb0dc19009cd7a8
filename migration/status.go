package migration

import (
	"context"
	"slices"
	"time"

	"github.com/poiesic/vectorpipe/core"
)

// Status reports the progress of a migration.
type Status struct {
	MigrationID      string                 `json:"migration_id"`
	Running          bool                   `json:"running"`
	Paused           bool                   `json:"paused"`
	Completed        bool                   `json:"completed"`
	Sources          []string               `json:"sources"`
	CurrentSource    string                 `json:"current_source,omitempty"`
	CompletedSources []string               `json:"completed_sources"`
	LastKey          string                 `json:"last_key,omitempty"`
	Counters         core.MigrationCounters `json:"counters"`
	Percentage       float64                `json:"percentage"`
	SuccessRate      float64                `json:"success_rate"`
	RecordsPerSecond float64                `json:"records_per_second"`
	RecentErrors     []core.RecordFailure   `json:"recent_errors,omitempty"`
	StartedAt        time.Time              `json:"started_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
}

// Status returns the live status of a running migration, or the status
// recorded in its checkpoint.
func (m *Migrator) Status(ctx context.Context, id string) (*Status, error) {
	m.mu.Lock()
	r, ok := m.running[id]
	m.mu.Unlock()
	if ok {
		return m.snapshot(r.cp, true), nil
	}

	cp, err := m.checkpoints.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.snapshot(cp, false), nil
}

func (m *Migrator) snapshot(cp *core.Checkpoint, running bool) *Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := &Status{
		MigrationID:      cp.MigrationID,
		Running:          running,
		Paused:           cp.Paused,
		Completed:        cp.Completed,
		Sources:          slices.Clone(cp.Sources),
		CurrentSource:    cp.CurrentSource,
		CompletedSources: slices.Clone(cp.CompletedSources),
		LastKey:          cp.LastKey,
		Counters:         cp.Counters,
		RecentErrors:     slices.Clone(cp.RecentErrors),
		StartedAt:        cp.StartedAt,
		UpdatedAt:        cp.UpdatedAt,
	}
	if n := len(s.RecentErrors) - m.config.MaxRecentErrors; n > 0 {
		s.RecentErrors = s.RecentErrors[n:]
	}

	c := cp.Counters
	if c.TotalRecords > 0 {
		s.Percentage = float64(c.ProcessedRecords) / float64(c.TotalRecords) * 100
	}
	if c.ProcessedRecords > 0 {
		s.SuccessRate = float64(c.SuccessfulRecords) / float64(c.ProcessedRecords) * 100
	}

	end := cp.UpdatedAt
	if running {
		end = m.now()
	}
	if elapsed := end.Sub(cp.StartedAt).Seconds(); elapsed > 0 {
		s.RecordsPerSecond = float64(c.ProcessedRecords) / elapsed
	}
	return s
}
