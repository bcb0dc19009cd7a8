package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/poiesic/vectorpipe/chunking"
	"github.com/poiesic/vectorpipe/core"
	"github.com/poiesic/vectorpipe/embedding"
	"github.com/poiesic/vectorpipe/vectorstore"
)

// Embedder embeds texts. *embedding.Client implements it.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string, opts embedding.Options) (*embedding.BatchResult, error)
	DefaultModel() string
	Dimensions() int
}

// Writer persists documents. *vectorstore.Client implements it.
type Writer interface {
	BulkUpsert(ctx context.Context, docs []*core.VectorDocument) (*vectorstore.BulkResult, error)
}

var (
	_ Embedder = (*embedding.Client)(nil)
	_ Writer   = (*vectorstore.Client)(nil)
)

// Pipeline runs batches of records through chunking, embedding and storage.
type Pipeline struct {
	chunker    *chunking.Chunker
	embedder   Embedder
	writer     Writer
	batchDelay time.Duration
	sleep      embedding.Sleeper
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithBatchDelay sets the pause between embedding sub-batches.
// Default is 100ms.
func WithBatchDelay(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d < 0 {
			return fmt.Errorf("batch delay must not be negative, got %s", d)
		}
		p.batchDelay = d
		return nil
	}
}

// WithClock overrides the time source for document timestamps and failures.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) error {
		if now != nil {
			p.now = now
		}
		return nil
	}
}

// WithSleeper overrides how the pipeline waits between sub-batches.
func WithSleeper(sleep embedding.Sleeper) Option {
	return func(p *Pipeline) error {
		if sleep != nil {
			p.sleep = sleep
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a pipeline.
func NewPipeline(chunker *chunking.Chunker, embedder Embedder, writer Writer, opts ...Option) (*Pipeline, error) {
	if chunker == nil {
		return nil, ErrChunkerRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if writer == nil {
		return nil, ErrWriterRequired
	}

	p := &Pipeline{
		chunker:    chunker,
		embedder:   embedder,
		writer:     writer,
		batchDelay: 100 * time.Millisecond,
		sleep:      embedding.SleepContext,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "ingestion")
	return p, nil
}

// Process runs all three stages.
func (p *Pipeline) Process(ctx context.Context, b *Batch) error {
	p.Chunk(b)
	if err := p.Embed(ctx, b); err != nil {
		return err
	}
	return p.Store(ctx, b)
}

// Chunk splits every record. Records that fail to chunk are marked failed;
// records without content are skipped.
func (p *Pipeline) Chunk(b *Batch) {
	for _, rec := range b.Records {
		chunks, err := p.chunker.Chunk(rec, b.Source, b.Chunking)
		if err != nil {
			b.fail(rec.Key, err, p.now())
			continue
		}
		if len(chunks) == 0 {
			b.Skipped++
			continue
		}
		b.Chunks = append(b.Chunks, chunks...)
	}
	p.logger.Debug("chunked records", "source", b.Source, "records", len(b.Records), "chunks", len(b.Chunks))
}

// Embed embeds pending chunks in sub-batches of BatchSize, pausing between
// sub-batches. A chunk that fails marks its record failed.
func (p *Pipeline) Embed(ctx context.Context, b *Batch) error {
	b.Vectors = make([][]float32, len(b.Chunks))
	b.Quality = make([]float64, len(b.Chunks))
	dims := p.embedder.Dimensions()
	size := max(b.BatchSize, 1)

	for start := 0; start < len(b.Chunks); start += size {
		if start > 0 && p.batchDelay > 0 {
			if err := p.sleep(ctx, p.batchDelay); err != nil {
				return fmt.Errorf("embed: %w", err)
			}
		}
		end := min(start+size, len(b.Chunks))

		var texts []string
		var positions []int
		for i := start; i < end; i++ {
			if !b.failed[b.Chunks[i].RecordID] {
				texts = append(texts, b.Chunks[i].Content)
				positions = append(positions, i)
			}
		}
		if len(texts) == 0 {
			continue
		}

		result, err := p.embedder.EmbedBatch(ctx, texts, embedding.Options{})
		if err != nil {
			return fmt.Errorf("embed: %w", err)
		}
		for j, pos := range positions {
			if result.Errors[j] != nil {
				b.fail(b.Chunks[pos].RecordID, result.Errors[j], p.now())
				continue
			}
			b.Vectors[pos] = result.Vectors[j]
			b.Quality[pos] = embedding.Quality(result.Vectors[j], b.Chunks[pos].Content, dims)
		}
	}
	p.logger.Debug("embedded chunks", "source", b.Source, "chunks", len(b.Chunks), "average_quality", b.AverageQuality())
	return nil
}

// Store builds documents for records with every chunk embedded and writes
// them in sub-batches of BatchSize.
func (p *Pipeline) Store(ctx context.Context, b *Batch) error {
	model := p.embedder.DefaultModel()
	now := p.now().UTC()
	records := b.recordsByKey()

	var docs []*core.VectorDocument
	for i, ch := range b.Chunks {
		if b.failed[ch.RecordID] || b.Vectors[i] == nil {
			continue
		}
		doc := NewDocument(records[ch.RecordID], ch, b.Vectors[i], model, now)
		doc.Metadata["quality_score"] = b.Quality[i]
		docs = append(docs, doc)
	}

	size := max(b.BatchSize, 1)
	for start := 0; start < len(docs); start += size {
		end := min(start+size, len(docs))
		result, err := p.writer.BulkUpsert(ctx, docs[start:end])
		if err != nil {
			return fmt.Errorf("store: %w", err)
		}
		failedDocs := make(map[string]bool, len(result.Failed))
		for id, ferr := range result.Failed {
			failedDocs[id] = true
			b.fail(recordOf(docs[start:end], id), ferr, p.now())
		}
		for _, d := range docs[start:end] {
			if !failedDocs[d.ID] {
				b.DocumentIDs = append(b.DocumentIDs, d.ID)
			}
		}
	}

	p.logger.Debug("stored documents", "source", b.Source, "documents", len(b.DocumentIDs), "failed", len(b.Failures))
	return nil
}

// NewDocument builds the vector document for one chunk of rec.
func NewDocument(rec core.Record, ch core.Chunk, vector []float32, model string, now time.Time) *core.VectorDocument {
	md := make(map[string]any, len(ch.Metadata)+6)
	maps.Copy(md, ch.Metadata)
	md["content_type"] = ch.ContentType
	md["importance"] = ch.Importance
	md["embedding_model"] = model
	if ch.TimeBucket != "" {
		md["time_bucket"] = ch.TimeBucket
	}

	return &core.VectorDocument{
		ID:               core.DocumentID(ch.Source, ch.RecordID, ch.Index),
		SourceType:       ch.Source,
		SourceID:         ch.RecordID,
		SourceCollection: ch.Source,
		OwnerID:          firstString(rec, "ownerId", "owner_id", "userId", "siteId"),
		TeamID:           firstString(rec, "teamId", "team_id"),
		Embedding:        vector,
		Content:          ch.Content,
		Metadata:         md,
		Tags:             ch.Tags,
		Keywords:         ch.Keywords,
		Status:           core.DocumentActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func firstString(rec core.Record, fields ...string) string {
	for _, f := range fields {
		if s := rec.String(f); s != "" {
			return s
		}
	}
	return ""
}

func recordOf(docs []*core.VectorDocument, id string) string {
	for _, d := range docs {
		if d.ID == id {
			return d.SourceID
		}
	}
	return id
}

// Batch is a unit of ingestion work and its outcome.
type Batch struct {
	Source    string
	Records   []core.Record
	Chunking  core.ChunkConfig
	BatchSize int

	Chunks      []core.Chunk
	Vectors     [][]float32
	Quality     []float64
	DocumentIDs []string
	Failures    []core.RecordFailure
	Skipped     int

	failed   map[string]bool
	firstErr error
}

// NewBatch creates a batch for records of source.
func NewBatch(source string, records []core.Record, cfg core.ChunkConfig, batchSize int) *Batch {
	return &Batch{
		Source:    source,
		Records:   records,
		Chunking:  cfg,
		BatchSize: batchSize,
		failed:    make(map[string]bool),
	}
}

// Succeeded returns the number of records that produced documents.
func (b *Batch) Succeeded() int {
	return len(b.Records) - len(b.failed) - b.Skipped
}

// AverageQuality returns the mean embedding quality score of the chunks
// embedded so far, or 0 when none were.
func (b *Batch) AverageQuality() float64 {
	var sum float64
	n := 0
	for i, v := range b.Vectors {
		if v == nil || i >= len(b.Quality) {
			continue
		}
		sum += b.Quality[i]
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// FailedRecords returns the number of failed records.
func (b *Batch) FailedRecords() int {
	return len(b.failed)
}

// Err returns an error wrapping ErrAllRecordsFailed and the first failure
// when the batch had records and every one of them failed.
func (b *Batch) Err() error {
	if len(b.Records) == 0 || len(b.failed) < len(b.Records) {
		return nil
	}
	return errors.Join(ErrAllRecordsFailed, b.firstErr)
}

func (b *Batch) fail(recordID string, err error, at time.Time) {
	if b.failed[recordID] {
		return
	}
	b.failed[recordID] = true
	if b.firstErr == nil {
		b.firstErr = err
	}
	b.Failures = append(b.Failures, core.RecordFailure{
		RecordID: recordID,
		Message:  err.Error(),
		Type:     core.ErrorType(err),
		At:       at,
	})
}

func (b *Batch) recordsByKey() map[string]core.Record {
	m := make(map[string]core.Record, len(b.Records))
	for _, r := range b.Records {
		m[r.Key] = r
	}
	return m
}
