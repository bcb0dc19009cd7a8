package chunking

import (
	"testing"
	"time"

	"github.com/poiesic/vectorpipe/core"
	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	assert.Equal(t, "hello world! ok?", CleanText("  hello\n\n world! \x00ok?​ "))
	assert.Equal(t, "price: 5 | tag #a", CleanText("price: 5 | tag #a™"))
	assert.Equal(t, "", CleanText(""))
}

func TestTags_Deduplicated(t *testing.T) {
	tags := Tags("Analytics", "analytics visitor error, user failed", map[string]any{
		"status":     "analytics",
		"event_type": "Click",
	})
	assert.Equal(t, []string{"analytics", "user", "error", "click"}, tags)
}

func TestKeywords_TopFrequent(t *testing.T) {
	content := "wallet wallet wallet chain chain token the the the and abc abc abc"
	assert.Equal(t, []string{"wallet", "chain", "token"}, Keywords(content))

	many := "alpha bravo charlie delta echoes foxtrot golfs hotel india juliet kilos limas"
	assert.Len(t, Keywords(many), MaxKeywords)
	assert.Equal(t, "alpha", Keywords(many)[0])
}

func TestRecordTimeAndBucket(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
		want   string
	}{
		{"time value", map[string]any{"timestamp": time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)}, "2024-03"},
		{"rfc3339", map[string]any{"createdAt": "2023-11-30T23:00:00Z"}, "2023-11"},
		{"date only", map[string]any{"created_at": "2022-01-05"}, "2022-01"},
		{"unix seconds", map[string]any{"timestamp": int64(0)}, "1970-01"},
		{"precedence", map[string]any{"timestamp": "2021-02-01", "createdAt": "2020-01-01"}, "2021-02"},
		{"garbage", map[string]any{"timestamp": "yesterday"}, ""},
		{"missing", map[string]any{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TimeBucket(RecordTime(core.Record{Fields: tt.fields})))
		})
	}
}
