package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentID_Deterministic(t *testing.T) {
	tests := []struct {
		name       string
		sourceType string
		recordID   string
		chunk      int
		want       string
	}{
		{name: "first chunk", sourceType: "campaigns", recordID: "abc", chunk: 0, want: "campaigns_abc"},
		{name: "later chunk", sourceType: "campaigns", recordID: "abc", chunk: 2, want: "campaigns_abc_2"},
		{name: "analytics", sourceType: "analytics", recordID: "42", chunk: 0, want: "analytics_42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DocumentID(tt.sourceType, tt.recordID, tt.chunk))
			assert.Equal(t, DocumentID(tt.sourceType, tt.recordID, tt.chunk), DocumentID(tt.sourceType, tt.recordID, tt.chunk))
		})
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("hello", "model-a")
	b := Fingerprint("hello", "model-a")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	assert.NotEqual(t, a, Fingerprint("hello", "model-b"))
	assert.NotEqual(t, Fingerprint("ab", "c"), Fingerprint("a", "bc"))
}

func TestRecordString(t *testing.T) {
	r := Record{Key: "1", Fields: map[string]any{"name": "x", "count": 3, "nil": nil}}
	assert.Equal(t, "x", r.String("name"))
	assert.Equal(t, "3", r.String("count"))
	assert.Equal(t, "", r.String("nil"))
	assert.Equal(t, "", r.String("missing"))
}

func TestFilterMatches(t *testing.T) {
	doc := &VectorDocument{
		ID:         "campaigns_1",
		SourceType: "campaigns",
		Status:     DocumentActive,
		OwnerID:    "u1",
		Metadata:   map[string]any{"chain_id": 1, "event_type": "click"},
	}

	assert.True(t, Filter{}.Matches(doc))
	assert.True(t, Filter{SourceType: "campaigns"}.Matches(doc))
	assert.False(t, Filter{SourceType: "analytics"}.Matches(doc))
	assert.False(t, Filter{Status: DocumentArchived}.Matches(doc))
	assert.True(t, Filter{Metadata: map[string]string{"chain_id": "1"}}.Matches(doc))
	assert.False(t, Filter{Metadata: map[string]string{"missing": "1"}}.Matches(doc))
	assert.False(t, Filter{}.Matches(nil))
	assert.True(t, Filter{}.IsEmpty())
	assert.False(t, Filter{OwnerID: "u1"}.IsEmpty())
}

func TestJobClone_Independent(t *testing.T) {
	now := time.Now()
	job := &Job{
		ID:        "j1",
		RecordIDs: []string{"a"},
		LastError: &JobError{Message: "boom"},
		StartedAt: &now,
	}
	clone := job.Clone()
	clone.RecordIDs[0] = "b"
	clone.LastError.Message = "changed"

	assert.Equal(t, "a", job.RecordIDs[0])
	assert.Equal(t, "boom", job.LastError.Message)
	assert.Nil(t, (*Job)(nil).Clone())
}

func TestCheckpointSourceCompleted(t *testing.T) {
	cp := &Checkpoint{CompletedSources: []string{"analytics"}}
	assert.True(t, cp.SourceCompleted("analytics"))
	assert.False(t, cp.SourceCompleted("sessions"))
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		typ      string
		retry    bool
	}{
		{"validation", NewValidationError("text", "empty"), ErrValidation, "ValidationError", false},
		{"quota", &QuotaExceededError{Limit: 10}, ErrQuotaExceeded, "QuotaExceeded", false},
		{"rate limited", &RateLimitedError{RetryAfter: time.Second}, ErrRateLimited, "RateLimited", true},
		{"transient", &ProviderError{StatusCode: 503, Transient: true, Err: errors.New("x")}, ErrTransientProvider, "TransientProviderError", true},
		{"permanent", &ProviderError{StatusCode: 400, Err: errors.New("x")}, ErrProvider, "ProviderError", true},
		{"circuit", &CircuitOpenError{Name: "store"}, ErrCircuitOpen, "CircuitOpenError", true},
		{"dimension", &DimensionMismatchError{Expected: 3, Actual: 2}, ErrDimensionMismatch, "DimensionMismatchError", false},
		{"timeout", &TimeoutError{JobID: "j", Timeout: time.Second}, ErrTimeout, "Timeout", true},
		{"storage", &StorageError{Op: "upsert", Err: errors.New("disk")}, ErrStorage, "StorageError", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := errors.Join(errors.New("context"), tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.Equal(t, tt.typ, ErrorType(wrapped))
			assert.Equal(t, tt.retry, IsRetryable(wrapped))
			assert.NotEmpty(t, tt.err.Error())
		})
	}

	assert.Equal(t, "", ErrorType(nil))
	assert.Equal(t, "Error", ErrorType(errors.New("plain")))
}

func TestProviderErrorUnwrap(t *testing.T) {
	inner := errors.New("socket closed")
	err := &ProviderError{Transient: true, Err: inner}
	require.ErrorIs(t, err, inner)
	assert.NotErrorIs(t, err, ErrProvider)
}
