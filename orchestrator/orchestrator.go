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

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/vectorpipe/core"
	"github.com/poiesic/vectorpipe/ingestion"
	"github.com/poiesic/vectorpipe/source"
	"github.com/poiesic/vectorpipe/storage"
)

// Stage boundary percentages.
const (
	percentFetched  = 0
	percentChunked  = 30
	percentEmbedded = 70
	percentStored   = 100
)

// Orchestrator queues and runs ingestion jobs.
type Orchestrator struct {
	config    *Config
	jobs      storage.JobRepository
	sources   *source.Registry
	pipeline  *ingestion.Pipeline
	checks    []HealthCheck
	observers []Observer
	pool      *ants.Pool
	now       func() time.Time
	logger    *slog.Logger

	baseCtx    context.Context
	cancelBase context.CancelFunc
	wake       chan struct{}
	done       chan struct{}
	wg         sync.WaitGroup

	mu         sync.Mutex
	state      map[string]*core.Job
	queue      []string
	active     int
	nextToken  uint64
	live       map[string]uint64
	cancels    map[string]context.CancelFunc
	timers     map[string]*time.Timer
	closed     bool
	lastHealth *Health
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithConfig replaces the default Config.
func WithConfig(cfg *Config) Option {
	return func(o *Orchestrator) error {
		if cfg == nil {
			return errors.New("orchestrator config is nil")
		}
		o.config = cfg
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// WithObserver registers a lifecycle observer. May be given more than once.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) error {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
		return nil
	}
}

// WithHealthCheck registers a dependency health check. May be given more than once.
func WithHealthCheck(hc HealthCheck) Option {
	return func(o *Orchestrator) error {
		if hc.Check == nil {
			return errors.New("health check function is nil")
		}
		o.checks = append(o.checks, hc)
		return nil
	}
}

// WithClock overrides the time source for job timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) error {
		if now != nil {
			o.now = now
		}
		return nil
	}
}

// New creates an orchestrator and starts its processing loop.
func New(jobs storage.JobRepository, sources *source.Registry, pipeline *ingestion.Pipeline, opts ...Option) (*Orchestrator, error) {
	if jobs == nil {
		return nil, ErrJobRepositoryRequired
	}
	if sources == nil {
		return nil, ErrSourcesRequired
	}
	if pipeline == nil {
		return nil, ErrPipelineRequired
	}

	o := &Orchestrator{
		config:   DefaultConfig(),
		jobs:     jobs,
		sources:  sources,
		pipeline: pipeline,
		now:      time.Now,
		logger:   slog.Default(),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
		state:    make(map[string]*core.Job),
		live:     make(map[string]uint64),
		cancels:  make(map[string]context.CancelFunc),
		timers:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if err := o.config.Validate(); err != nil {
		return nil, err
	}
	o.logger = o.logger.With("component", "orchestrator")

	pool, err := ants.NewPool(o.config.MaxConcurrentJobs, ants.WithPanicHandler(func(p any) {
		o.logger.Error("job worker panicked", "panic", p)
	}))
	if err != nil {
		return nil, err
	}
	o.pool = pool
	o.baseCtx, o.cancelBase = context.WithCancel(context.Background())

	go o.loop()
	if o.config.HealthInterval > 0 {
		go o.monitor(o.config.HealthInterval)
	}
	return o, nil
}

// Enqueue validates and queues a job built from the submission fields of req
// (Source, RecordIDs, BatchSize, Priority, Chunking) and returns its ID.
func (o *Orchestrator) Enqueue(ctx context.Context, req *core.Job) (string, error) {
	if err := core.ValidateJob(req); err != nil {
		return "", err
	}
	if _, err := o.sources.Get(req.Source); err != nil {
		return "", core.NewValidationError("source", "%v", err)
	}

	now := o.now().UTC()
	job := &core.Job{
		ID:        uuid.NewString(),
		Source:    req.Source,
		RecordIDs: slices.Clone(req.RecordIDs),
		BatchSize: req.BatchSize,
		Priority:  req.Priority,
		Chunking:  req.Chunking,
		Status:    core.JobQueued,
		Progress:  core.Progress{Stage: core.StageQueued},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if job.Priority == "" {
		job.Priority = core.PriorityNormal
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return "", ErrShutdown
	}
	o.mu.Unlock()

	if err := o.jobs.SaveJob(ctx, job); err != nil {
		return "", fmt.Errorf("save job: %w", err)
	}

	o.mu.Lock()
	o.state[job.ID] = job
	o.queue = append(o.queue, job.ID)
	snapshot := job.Clone()
	o.mu.Unlock()

	o.logger.Info("job queued", "job", job.ID, "source", job.Source, "priority", job.Priority)
	o.emit(EventJobQueued, snapshot, nil)
	o.notify()
	return job.ID, nil
}

// Recover re-queues persisted jobs that were queued, retrying or processing
// when a previous process stopped. It returns the number of jobs re-queued.
func (o *Orchestrator) Recover(ctx context.Context) (int, error) {
	jobs, err := o.jobs.ListJobs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list jobs: %w", err)
	}

	var pending []*core.Job
	o.mu.Lock()
	for _, job := range jobs {
		if job.Status.IsTerminal() {
			continue
		}
		if _, known := o.state[job.ID]; known {
			continue
		}
		pending = append(pending, job)
	}
	o.mu.Unlock()

	// Stored status flips to queued before a worker can see the job.
	var recovered []*core.Job
	var saveErr error
	for _, job := range pending {
		job.Status = core.JobQueued
		job.UpdatedAt = o.now().UTC()
		if err := o.jobs.SaveJob(ctx, job); err != nil {
			saveErr = fmt.Errorf("save job %s: %w", job.ID, err)
			break
		}
		recovered = append(recovered, job)
	}

	o.mu.Lock()
	for _, job := range recovered {
		o.state[job.ID] = job
		o.queue = append(o.queue, job.ID)
	}
	o.mu.Unlock()

	n := len(recovered)
	if n > 0 {
		o.logger.Info("recovered jobs", "count", n)
		o.notify()
	}
	return n, saveErr
}

// Get returns a snapshot of a job.
func (o *Orchestrator) Get(ctx context.Context, id string) (*core.Job, error) {
	o.mu.Lock()
	job, ok := o.state[id]
	if ok {
		snapshot := job.Clone()
		o.mu.Unlock()
		return snapshot, nil
	}
	o.mu.Unlock()

	job, err := o.jobs.GetJob(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	return job, err
}

// List returns every known job ordered by creation time.
func (o *Orchestrator) List(ctx context.Context) ([]*core.Job, error) {
	jobs, err := o.jobs.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for i, job := range jobs {
		if live, ok := o.state[job.ID]; ok {
			jobs[i] = live.Clone()
		}
	}
	return jobs, nil
}

// Cancel fails a queued, retrying or processing job with ErrJobCancelled.
// A processing attempt is abandoned at its next stage boundary.
func (o *Orchestrator) Cancel(ctx context.Context, id string) error {
	o.mu.Lock()
	job, ok := o.state[id]
	if !ok {
		o.mu.Unlock()
		if _, err := o.jobs.GetJob(ctx, id); err == nil {
			return ErrJobFinished
		}
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if job.Status.IsTerminal() {
		o.mu.Unlock()
		return ErrJobFinished
	}

	o.queue = slices.DeleteFunc(o.queue, func(q string) bool { return q == id })
	if t, ok := o.timers[id]; ok {
		t.Stop()
		delete(o.timers, id)
	}
	if cancel, ok := o.cancels[id]; ok {
		cancel()
		delete(o.cancels, id)
	}
	delete(o.live, id)

	now := o.now().UTC()
	job.Status = core.JobFailed
	job.LastError = &core.JobError{Message: ErrJobCancelled.Error(), Type: "Cancelled"}
	job.CompletedAt = &now
	job.UpdatedAt = now
	snapshot := job.Clone()
	o.mu.Unlock()

	o.persist(snapshot)
	o.logger.Info("job cancelled", "job", id)
	o.emit(EventJobFailed, snapshot, ErrJobCancelled)
	return nil
}

// Stats reports queue occupancy.
type Stats struct {
	ActiveJobs  int
	QueueLength int
}

// Stats returns current queue occupancy.
func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Stats{ActiveJobs: o.active, QueueLength: len(o.queue)}
}

// Shutdown stops accepting jobs and waits for active jobs until ctx ends.
// Jobs still queued stay queued in the repository for Recover.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	for id, t := range o.timers {
		t.Stop()
		delete(o.timers, id)
	}
	o.mu.Unlock()

	waited := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(waited)
	}()

	var err error
	select {
	case <-waited:
	case <-ctx.Done():
		o.logger.Warn("shutdown grace period expired, abandoning active jobs")
		err = ctx.Err()
	}

	o.cancelBase()
	close(o.done)
	o.pool.Release()
	return err
}

// loop dispatches queued jobs whenever it is woken.
func (o *Orchestrator) loop() {
	for {
		select {
		case <-o.done:
			return
		case <-o.wake:
			o.dispatch()
		}
	}
}

func (o *Orchestrator) notify() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// dispatch starts queued jobs while slots are free.
func (o *Orchestrator) dispatch() {
	for {
		o.mu.Lock()
		if o.closed || o.active >= o.config.MaxConcurrentJobs || len(o.queue) == 0 {
			o.mu.Unlock()
			return
		}
		id := o.queue[0]
		o.queue = o.queue[1:]
		job, ok := o.state[id]
		if !ok || job.Status.IsTerminal() {
			o.mu.Unlock()
			continue
		}

		o.nextToken++
		token := o.nextToken
		o.live[id] = token
		o.active++
		o.wg.Add(1)
		ctx, cancel := context.WithTimeout(o.baseCtx, o.config.JobTimeout)
		o.cancels[id] = cancel
		o.mu.Unlock()

		if err := o.pool.Submit(func() { o.run(ctx, id, token) }); err != nil {
			o.logger.Error("submit job", "job", id, "err", err)
			cancel()
			o.release()
			o.finish(id, token, nil, err)
		}
	}
}

func (o *Orchestrator) release() {
	o.mu.Lock()
	o.active--
	o.mu.Unlock()
	o.wg.Done()
	o.notify()
}

// run executes one attempt of a job and records its outcome.
func (o *Orchestrator) run(ctx context.Context, id string, token uint64) {
	defer o.release()

	job, ok := o.update(id, token, func(j *core.Job) {
		now := o.now().UTC()
		j.Status = core.JobProcessing
		if j.StartedAt == nil {
			j.StartedAt = &now
		}
	})
	if !ok {
		return
	}
	o.logger.Info("job started", "job", id, "source", job.Source, "attempt", job.RetryCount+1)
	o.emit(EventJobStarted, job, nil)

	type outcome struct {
		batch *ingestion.Batch
		err   error
	}
	results := make(chan outcome, 1)
	go func() {
		b, err := o.execute(ctx, id, token, job)
		results <- outcome{b, err}
	}()

	var res outcome
	select {
	case res = <-results:
	case <-ctx.Done():
		res.err = ctx.Err()
	}
	if res.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.err = &core.TimeoutError{JobID: id, Timeout: o.config.JobTimeout}
	}
	o.finish(id, token, res.batch, res.err)
}

// execute fetches, chunks, embeds and stores the job's records.
func (o *Orchestrator) execute(ctx context.Context, id string, token uint64, job *core.Job) (*ingestion.Batch, error) {
	if err := o.progress(ctx, id, token, core.StageFetching, percentFetched, 0); err != nil {
		return nil, err
	}
	src, err := o.sources.Get(job.Source)
	if err != nil {
		return nil, core.NewValidationError("source", "%v", err)
	}
	records, err := fetchRecords(ctx, src, job)
	if err != nil {
		return nil, fmt.Errorf("fetch records: %w", err)
	}

	b := ingestion.NewBatch(job.Source, records, job.Chunking, job.BatchSize)
	if err := o.progress(ctx, id, token, core.StageChunking, percentFetched, len(records)); err != nil {
		return b, err
	}
	o.pipeline.Chunk(b)

	if err := o.progress(ctx, id, token, core.StageEmbed, percentChunked, len(records)); err != nil {
		return b, err
	}
	if err := o.pipeline.Embed(ctx, b); err != nil {
		return b, err
	}

	if err := o.progress(ctx, id, token, core.StageStore, percentEmbedded, len(records)); err != nil {
		return b, err
	}
	if err := o.pipeline.Store(ctx, b); err != nil {
		return b, err
	}
	return b, b.Err()
}

// fetchRecords returns the job's explicit records, or every record of the
// source read in pages of BatchSize.
func fetchRecords(ctx context.Context, src source.Source, job *core.Job) ([]core.Record, error) {
	if len(job.RecordIDs) > 0 {
		return src.Fetch(ctx, job.RecordIDs)
	}
	var all []core.Record
	after := ""
	for {
		page, err := src.Scan(ctx, after, job.BatchSize)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < job.BatchSize {
			return all, nil
		}
		after = page[len(page)-1].Key
	}
}

// progress records a stage boundary. It fails with errAbandoned when the
// attempt is no longer live.
func (o *Orchestrator) progress(ctx context.Context, id string, token uint64, stage core.Stage, pct float64, total int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	job, ok := o.update(id, token, func(j *core.Job) {
		j.Progress.Stage = stage
		j.Progress.Percentage = max(j.Progress.Percentage, pct)
		j.Progress.Total = total
	})
	if !ok {
		return errAbandoned
	}
	o.emit(EventJobProgress, job, nil)
	return nil
}

// update applies fn to a live job, persists it and returns a snapshot.
func (o *Orchestrator) update(id string, token uint64, fn func(j *core.Job)) (*core.Job, bool) {
	o.mu.Lock()
	job, ok := o.state[id]
	if !ok || o.live[id] != token {
		o.mu.Unlock()
		return nil, false
	}
	fn(job)
	job.UpdatedAt = o.now().UTC()
	snapshot := job.Clone()
	o.mu.Unlock()

	o.persist(snapshot)
	return snapshot, true
}

// finish records the outcome of an attempt and schedules a retry when allowed.
func (o *Orchestrator) finish(id string, token uint64, b *ingestion.Batch, err error) {
	o.mu.Lock()
	job, ok := o.state[id]
	if !ok || o.live[id] != token {
		o.mu.Unlock()
		return
	}
	delete(o.live, id)
	if cancel, ok := o.cancels[id]; ok {
		cancel()
		delete(o.cancels, id)
	}

	now := o.now().UTC()
	job.UpdatedAt = now
	if b != nil {
		job.Failures = b.Failures
		job.DocumentIDs = b.DocumentIDs
		job.Progress.Processed = b.Succeeded()
		job.Progress.Total = len(b.Records)
	}

	var event EventType
	switch {
	case err == nil:
		job.Status = core.JobCompleted
		job.Progress.Stage = core.StageDone
		job.Progress.Percentage = percentStored
		job.CompletedAt = &now
		event = EventJobCompleted
	case core.IsRetryable(err) && job.RetryCount < o.config.MaxRetries && !o.closed:
		job.RetryCount++
		job.Status = core.JobRetrying
		job.LastError = &core.JobError{Message: err.Error(), Type: core.ErrorType(err)}
		delay := o.config.RetryDelay * time.Duration(job.RetryCount)
		o.timers[id] = time.AfterFunc(delay, func() { o.requeue(id) })
		event = EventJobRetrying
	default:
		job.Status = core.JobFailed
		job.LastError = &core.JobError{Message: err.Error(), Type: core.ErrorType(err)}
		job.CompletedAt = &now
		event = EventJobFailed
	}
	snapshot := job.Clone()
	o.mu.Unlock()

	o.persist(snapshot)
	switch event {
	case EventJobCompleted:
		o.logger.Info("job completed", "job", id, "documents", len(snapshot.DocumentIDs), "failures", len(snapshot.Failures))
	case EventJobRetrying:
		o.logger.Warn("job failed, retrying", "job", id, "retry", snapshot.RetryCount, "err", err)
	default:
		o.logger.Error("job failed", "job", id, "retries", snapshot.RetryCount, "err", err)
	}
	o.emit(event, snapshot, err)
}

func (o *Orchestrator) requeue(id string) {
	o.mu.Lock()
	delete(o.timers, id)
	job, ok := o.state[id]
	if o.closed || !ok || job.Status != core.JobRetrying {
		o.mu.Unlock()
		return
	}
	o.queue = append(o.queue, id)
	o.mu.Unlock()
	o.notify()
}

func (o *Orchestrator) persist(job *core.Job) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.jobs.SaveJob(ctx, job); err != nil {
		o.logger.Error("persist job", "job", job.ID, "err", err)
	}
}

func (o *Orchestrator) emit(t EventType, job *core.Job, err error) {
	e := Event{Type: t, Job: job, Err: err, At: o.now()}
	for _, obs := range o.observers {
		obs.OnJobEvent(e)
	}
}
