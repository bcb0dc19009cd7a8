package core

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// DefaultDimensions is the embedding dimension used when none is configured.
const DefaultDimensions = 1536

// Record is a raw record read from a source collection.
// Key is the stable ordering key used for paging and checkpoints.
type Record struct {
	Key    string
	Fields map[string]any
}

// String returns the string value of a field, or "" when absent.
func (r Record) String(field string) string {
	v, ok := r.Fields[field]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// DocumentID returns the deterministic document ID for a chunk of a source record.
// The first chunk of a record gets "{sourceType}_{recordID}" so that single-chunk
// records keep the plain form; later chunks are suffixed with their index.
func DocumentID(sourceType, recordID string, chunkIndex int) string {
	if chunkIndex == 0 {
		return sourceType + "_" + recordID
	}
	return fmt.Sprintf("%s_%s_%d", sourceType, recordID, chunkIndex)
}

// Fingerprint returns a stable hex digest of the given parts using BLAKE2b-256.
// Parts are NUL-separated so ("ab","c") and ("a","bc") differ.
func Fingerprint(parts ...string) string {
	h, _ := blake2b.New(32, nil)
	h.Write([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(h.Sum(nil))
}

// ChunkConfig controls how record content is split.
type ChunkConfig struct {
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`
	Overlap   int `json:"overlap" yaml:"overlap"`
}

// DefaultChunkConfig returns the default chunking parameters.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{ChunkSize: 1000, Overlap: 200}
}

// Chunk is a bounded slice of a record's text content plus derived metadata.
type Chunk struct {
	Content     string
	ContentType string
	RecordID    string
	Source      string
	Index       int
	Metadata    map[string]any
	Tags        []string
	TimeBucket  string
	Keywords    []string
	Importance  float64
}

// DocumentStatus is the lifecycle status of a vector document.
type DocumentStatus string

const (
	DocumentActive   DocumentStatus = "active"
	DocumentArchived DocumentStatus = "archived"
)

// VectorDocument is a chunk persisted with its embedding.
type VectorDocument struct {
	ID               string         `json:"id"`
	SourceType       string         `json:"source_type"`
	SourceID         string         `json:"source_id"`
	SourceCollection string         `json:"source_collection"`
	OwnerID          string         `json:"owner_id,omitempty"`
	TeamID           string         `json:"team_id,omitempty"`
	Embedding        []float32      `json:"embedding"`
	Content          string         `json:"content"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	Tags             []string       `json:"tags,omitempty"`
	Keywords         []string       `json:"keywords,omitempty"`
	Status           DocumentStatus `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// ScoredDocument is a search hit.
type ScoredDocument struct {
	Document    *VectorDocument
	Score       float64
	VectorScore float64
	TextScore   float64
}

// Filter restricts searches and bulk deletes. Empty fields match everything.
type Filter struct {
	SourceType string            `json:"source_type,omitempty"`
	Status     DocumentStatus    `json:"status,omitempty"`
	OwnerID    string            `json:"owner_id,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// IsEmpty reports whether the filter has no predicates.
func (f Filter) IsEmpty() bool {
	return f.SourceType == "" && f.Status == "" && f.OwnerID == "" && len(f.Metadata) == 0
}

// Matches reports whether the document satisfies every predicate of the filter.
func (f Filter) Matches(doc *VectorDocument) bool {
	if doc == nil {
		return false
	}
	if f.SourceType != "" && doc.SourceType != f.SourceType {
		return false
	}
	if f.Status != "" && doc.Status != f.Status {
		return false
	}
	if f.OwnerID != "" && doc.OwnerID != f.OwnerID {
		return false
	}
	for k, want := range f.Metadata {
		got, ok := doc.Metadata[k]
		if !ok || fmt.Sprint(got) != want {
			return false
		}
	}
	return true
}

// CollectionStats summarises the contents of a document store.
type CollectionStats struct {
	TotalDocuments int            `json:"total_documents"`
	BySourceType   map[string]int `json:"by_source_type"`
	ByStatus       map[string]int `json:"by_status"`
}

// JobStatus is the state of a job in the orchestrator state machine.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobRetrying   JobStatus = "retrying"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transitions are possible.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobPriority orders nothing today but is validated and reported.
type JobPriority string

const (
	PriorityLow    JobPriority = "low"
	PriorityNormal JobPriority = "normal"
	PriorityHigh   JobPriority = "high"
)

// Stage names a step of job execution.
type Stage string

const (
	StageQueued   Stage = "queued"
	StageFetching Stage = "fetching"
	StageChunking Stage = "chunking"
	StageEmbed    Stage = "embedding"
	StageStore    Stage = "storing"
	StageDone     Stage = "completed"
)

// Progress is the externally visible progress of a job.
type Progress struct {
	Stage      Stage   `json:"stage"`
	Percentage float64 `json:"percentage"`
	Processed  int     `json:"processed"`
	Total      int     `json:"total"`
}

// JobError describes the last failure of a job.
type JobError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// RecordFailure is a per-record failure collected during a job or migration.
type RecordFailure struct {
	RecordID string    `json:"record_id"`
	Message  string    `json:"message"`
	Type     string    `json:"type"`
	At       time.Time `json:"at"`
}

// Job is an ingestion request tracked by the orchestrator.
type Job struct {
	ID          string          `json:"id"`
	Source      string          `json:"source"`
	RecordIDs   []string        `json:"record_ids,omitempty"`
	BatchSize   int             `json:"batch_size"`
	Priority    JobPriority     `json:"priority"`
	Chunking    ChunkConfig     `json:"chunking"`
	Status      JobStatus       `json:"status"`
	Progress    Progress        `json:"progress"`
	RetryCount  int             `json:"retry_count"`
	LastError   *JobError       `json:"last_error,omitempty"`
	Failures    []RecordFailure `json:"failures,omitempty"`
	DocumentIDs []string        `json:"document_ids,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Clone returns a deep copy safe to hand to callers.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	c := *j
	c.RecordIDs = append([]string(nil), j.RecordIDs...)
	c.Failures = append([]RecordFailure(nil), j.Failures...)
	c.DocumentIDs = append([]string(nil), j.DocumentIDs...)
	if j.LastError != nil {
		e := *j.LastError
		c.LastError = &e
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// MigrationCounters are the running totals of a bulk migration.
type MigrationCounters struct {
	TotalRecords      int `json:"total_records"`
	ProcessedRecords  int `json:"processed_records"`
	SuccessfulRecords int `json:"successful_records"`
	FailedRecords     int `json:"failed_records"`
	SkippedRecords    int `json:"skipped_records"`
	DocumentsWritten  int `json:"documents_written"`
}

// Checkpoint is a durable snapshot of migration progress.
// A new checkpoint for the same ID replaces the previous one.
type Checkpoint struct {
	MigrationID      string            `json:"migration_id"`
	CurrentSource    string            `json:"current_source"`
	CompletedSources []string          `json:"completed_sources"`
	BatchIndex       int               `json:"batch_index"`
	LastKey          string            `json:"last_key"`
	Counters         MigrationCounters `json:"counters"`
	RecentErrors     []RecordFailure   `json:"recent_errors,omitempty"`
	Sources          []string          `json:"sources"`
	BatchSize        int               `json:"batch_size"`
	Chunking         ChunkConfig       `json:"chunking"`
	Paused           bool              `json:"paused"`
	Completed        bool              `json:"completed"`
	StartedAt        time.Time         `json:"started_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// SourceCompleted reports whether the named source was fully processed.
func (c *Checkpoint) SourceCompleted(source string) bool {
	for _, s := range c.CompletedSources {
		if s == source {
			return true
		}
	}
	return false
}

// CircuitState is the state of a circuit breaker.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half-open"
)

// CircuitBreakerState is a point-in-time view of a breaker.
type CircuitBreakerState struct {
	State       CircuitState `json:"state"`
	Failures    int          `json:"failures"`
	LastFailure time.Time    `json:"last_failure"`
	NextRetryAt time.Time    `json:"next_retry_at"`
}
