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
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/vectorpipe/core"
	"github.com/poiesic/vectorpipe/ingestion"
	"github.com/poiesic/vectorpipe/source"
)

// Locker keeps two processes from running the same migration.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// Migrator runs checkpointed bulk migrations.
type Migrator struct {
	checkpoints *Manager
	sources     *source.Registry
	pipeline    *ingestion.Pipeline
	config      *Config
	lock        Locker
	docs        DocumentReader
	embedder    Reembedder
	progressOut io.Writer
	now         func() time.Time
	logger      *slog.Logger

	mu      sync.Mutex
	running map[string]*activeRun
}

type activeRun struct {
	cp      *core.Checkpoint
	pause   atomic.Bool
	started time.Time
}

// Option configures a Migrator.
type Option func(*Migrator) error

// WithConfig replaces the default Config.
func WithConfig(cfg *Config) Option {
	return func(m *Migrator) error {
		if cfg == nil {
			return errors.New("migration config is nil")
		}
		m.config = cfg
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Migrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
		return nil
	}
}

// WithLocker guards each run with a distributed lock.
func WithLocker(l Locker) Option {
	return func(m *Migrator) error {
		m.lock = l
		return nil
	}
}

// WithProgressOutput writes progress lines to w.
func WithProgressOutput(w io.Writer) Option {
	return func(m *Migrator) error {
		m.progressOut = w
		return nil
	}
}

// WithValidation enables Validate.
func WithValidation(docs DocumentReader, embedder Reembedder) Option {
	return func(m *Migrator) error {
		m.docs = docs
		m.embedder = embedder
		return nil
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Migrator) error {
		if now != nil {
			m.now = now
		}
		return nil
	}
}

// NewMigrator creates a migrator.
func NewMigrator(checkpoints *Manager, sources *source.Registry, pipeline *ingestion.Pipeline, opts ...Option) (*Migrator, error) {
	if checkpoints == nil {
		return nil, ErrCheckpointsRequired
	}
	if sources == nil {
		return nil, ErrSourcesRequired
	}
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}

	m := &Migrator{
		checkpoints: checkpoints,
		sources:     sources,
		pipeline:    pipeline,
		config:      DefaultConfig(),
		progressOut: io.Discard,
		now:         time.Now,
		logger:      slog.Default(),
		running:     make(map[string]*activeRun),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	if err := m.config.Validate(); err != nil {
		return nil, err
	}
	m.logger = m.logger.With("component", "migrator")
	return m, nil
}

// Run starts migration id over sources, in the given order. An empty id gets
// a generated one. A previous completed checkpoint of the same id is replaced;
// an unfinished one fails with ErrInProgress.
func (m *Migrator) Run(ctx context.Context, id string, sources []string) (*Status, error) {
	if len(sources) == 0 {
		return nil, core.NewValidationError("sources", "at least one source is required")
	}
	seen := make(map[string]bool, len(sources))
	for _, name := range sources {
		if _, err := m.sources.Get(name); err != nil {
			return nil, core.NewValidationError("sources", "%v", err)
		}
		if seen[name] {
			return nil, core.NewValidationError("sources", "source %q listed twice", name)
		}
		seen[name] = true
	}
	if id == "" {
		id = uuid.NewString()
	}

	prev, err := m.checkpoints.Load(ctx, id)
	switch {
	case err == nil && !prev.Completed:
		return nil, fmt.Errorf("%w: %s", ErrInProgress, id)
	case err != nil && !errors.Is(err, ErrCheckpointNotFound):
		return nil, err
	}

	now := m.now().UTC()
	cp := &core.Checkpoint{
		MigrationID: id,
		Sources:     slices.Clone(sources),
		BatchSize:   m.config.BatchSize,
		Chunking:    m.config.Chunking,
		StartedAt:   now,
		UpdatedAt:   now,
	}
	m.logger.Info("starting migration", "migration", id, "sources", strings.Join(sources, ","))
	return m.execute(ctx, cp)
}

// Resume continues a paused or interrupted migration from its checkpoint.
func (m *Migrator) Resume(ctx context.Context, id string) (*Status, error) {
	cp, err := m.checkpoints.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if cp.Completed {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyCompleted, id)
	}
	cp.Paused = false
	m.logger.Info("resuming migration", "migration", id, "source", cp.CurrentSource, "after", cp.LastKey,
		"processed", cp.Counters.ProcessedRecords)
	return m.execute(ctx, cp)
}

// Pause asks a running migration to stop at its next page boundary.
// The run saves a checkpoint and returns with Status.Paused set.
func (m *Migrator) Pause(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.running[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRunning, id)
	}
	r.pause.Store(true)
	return nil
}

// execute walks the checkpoint's remaining sources.
func (m *Migrator) execute(ctx context.Context, cp *core.Checkpoint) (*Status, error) {
	id := cp.MigrationID
	r, err := m.begin(cp)
	if err != nil {
		return nil, err
	}
	defer m.end(id)

	if m.lock != nil {
		ok, err := m.lock.Acquire(ctx, "migration:"+id, m.config.LockTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrLocked, id)
		}
		defer func() {
			if err := m.lock.Release(context.WithoutCancel(ctx), "migration:"+id); err != nil {
				m.logger.Warn("release migration lock", "migration", id, "err", err)
			}
		}()
	}

	if cp.Counters.TotalRecords == 0 {
		total, err := m.countRecords(ctx, cp.Sources)
		if err != nil {
			return nil, err
		}
		m.advance(func() { cp.Counters.TotalRecords = total })
	}

	tracker := NewProgressTracker(m.progressOut, cp.Counters.TotalRecords, m.config.ReportInterval, m.now)
	tracker.Start(cp.Counters.ProcessedRecords)

	pages := 0
	for _, name := range cp.Sources {
		if cp.SourceCompleted(name) {
			continue
		}
		if cp.CurrentSource != name {
			m.advance(func() {
				cp.CurrentSource = name
				cp.LastKey = ""
				cp.BatchIndex = 0
			})
		}
		tracker.SetLabel(name)

		src, err := m.sources.Get(name)
		if err != nil {
			return m.stop(ctx, r, tracker, err)
		}

		for {
			if r.pause.Load() {
				m.advance(func() { cp.Paused = true })
				m.logger.Info("migration paused", "migration", id, "source", name, "last_key", cp.LastKey)
				return m.stop(ctx, r, tracker, nil)
			}
			if err := ctx.Err(); err != nil {
				return m.stop(ctx, r, tracker, err)
			}

			page, err := src.Scan(ctx, cp.LastKey, cp.BatchSize)
			if err != nil {
				return m.stop(ctx, r, tracker, fmt.Errorf("scan %s after %q: %w", name, cp.LastKey, err))
			}
			if len(page) == 0 {
				break
			}

			b := ingestion.NewBatch(name, page, cp.Chunking, cp.BatchSize)
			if err := m.pipeline.Process(ctx, b); err != nil {
				return m.stop(ctx, r, tracker, fmt.Errorf("process %s page %d: %w", name, cp.BatchIndex, err))
			}
			m.advance(func() { m.applyPage(cp, b) })
			tracker.Update(cp.Counters.ProcessedRecords)

			pages++
			if pages%m.config.CheckpointInterval == 0 {
				if err := m.save(ctx, cp); err != nil {
					return nil, err
				}
			}
			if len(page) < cp.BatchSize {
				break
			}
		}

		m.advance(func() {
			cp.CompletedSources = append(cp.CompletedSources, name)
			cp.LastKey = ""
			cp.BatchIndex = 0
		})
		if err := m.save(ctx, cp); err != nil {
			return nil, err
		}
		m.logger.Info("source migrated", "migration", id, "source", name)
	}

	m.advance(func() {
		cp.Completed = true
		cp.CurrentSource = ""
	})
	if err := m.save(ctx, cp); err != nil {
		return nil, err
	}
	tracker.Finish(true)
	m.logger.Info("migration completed", "migration", id,
		"processed", cp.Counters.ProcessedRecords,
		"failed", cp.Counters.FailedRecords,
		"documents", cp.Counters.DocumentsWritten)
	return m.snapshot(r.cp, false), nil
}

// applyPage folds a processed page into the checkpoint counters.
func (m *Migrator) applyPage(cp *core.Checkpoint, b *ingestion.Batch) {
	cp.Counters.ProcessedRecords += len(b.Records)
	cp.Counters.SuccessfulRecords += b.Succeeded()
	cp.Counters.FailedRecords += b.FailedRecords()
	cp.Counters.SkippedRecords += b.Skipped
	cp.Counters.DocumentsWritten += len(b.DocumentIDs)
	cp.RecentErrors = append(cp.RecentErrors, b.Failures...)
	if n := len(cp.RecentErrors) - m.config.MaxRecentErrors; n > 0 {
		cp.RecentErrors = slices.Clone(cp.RecentErrors[n:])
	}
	cp.LastKey = b.Records[len(b.Records)-1].Key
	cp.BatchIndex++
}

// stop saves the checkpoint so the run can be resumed and returns cause.
func (m *Migrator) stop(ctx context.Context, r *activeRun, tracker *ProgressTracker, cause error) (*Status, error) {
	if err := m.save(context.WithoutCancel(ctx), r.cp); err != nil {
		return nil, errors.Join(cause, err)
	}
	tracker.Finish(false)
	if cause != nil {
		m.logger.Error("migration stopped", "migration", r.cp.MigrationID, "err", cause)
		return nil, cause
	}
	return m.snapshot(r.cp, false), nil
}

func (m *Migrator) save(ctx context.Context, cp *core.Checkpoint) error {
	m.mu.Lock()
	cp.UpdatedAt = m.now().UTC()
	snapshot := cloneCheckpoint(cp)
	m.mu.Unlock()
	return m.checkpoints.Save(ctx, snapshot.MigrationID, snapshot)
}

// advance mutates the live checkpoint under the lock Status reads with.
func (m *Migrator) advance(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn()
}

func (m *Migrator) begin(cp *core.Checkpoint) (*activeRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.running[cp.MigrationID]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, cp.MigrationID)
	}
	r := &activeRun{cp: cp, started: m.now()}
	m.running[cp.MigrationID] = r
	return r, nil
}

func (m *Migrator) end(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.running, id)
}

func (m *Migrator) countRecords(ctx context.Context, names []string) (int, error) {
	total := 0
	for _, name := range names {
		src, err := m.sources.Get(name)
		if err != nil {
			return 0, err
		}
		n, err := src.Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("count %s: %w", name, err)
		}
		total += n
	}
	return total, nil
}
