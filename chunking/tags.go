package chunking

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/poiesic/vectorpipe/core"
)

// MaxKeywords caps the keywords kept per chunk.
const MaxKeywords = 10

// tagRules maps a tag to the content words that earn it.
var tagRules = []struct {
	tag   string
	words []string
}{
	{"transaction", []string{"transaction", "tx_hash"}},
	{"user", []string{"user", "wallet"}},
	{"analytics", []string{"analytics", "visitor", "page view"}},
	{"smart-contract", []string{"contract"}},
	{"ethereum", []string{"ethereum", " eth", "erc20", "erc-20"}},
	{"error", []string{"error", "failed"}},
}

// tagFields are metadata keys whose values become tags.
var tagFields = []string{"event_type", "status", "chain", "blockchain", "type", "category", "channel"}

// Tags returns the deduplicated tags for a chunk, source name first.
func Tags(source, content string, metadata map[string]any) []string {
	tags := []string{strings.ToLower(source)}
	lower := " " + strings.ToLower(content)

	for _, rule := range tagRules {
		for _, w := range rule.words {
			if strings.Contains(lower, w) {
				tags = append(tags, rule.tag)
				break
			}
		}
	}
	for _, field := range tagFields {
		if v, ok := metadata[field]; ok && v != nil {
			if s := strings.ToLower(strings.TrimSpace(fmt.Sprint(v))); s != "" {
				tags = append(tags, s)
			}
		}
	}

	out := tags[:0]
	for _, t := range tags {
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// Keywords returns the MaxKeywords most frequent non-stopword tokens longer
// than three characters. Equal counts keep first-occurrence order.
func Keywords(content string) []string {
	counts := make(map[string]int)
	var order []string
	for _, tok := range core.Tokenize(content) {
		if utf8.RuneCountInString(tok) <= 3 {
			continue
		}
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > MaxKeywords {
		order = order[:MaxKeywords]
	}
	return order
}

// TimestampFields are checked in order for a record's timestamp.
var TimestampFields = []string{"timestamp", "createdAt", "created_at"}

// RecordTime returns the record timestamp, or the zero time when absent or unparseable.
func RecordTime(rec core.Record) time.Time {
	for _, field := range TimestampFields {
		if t, ok := parseTime(rec.Fields[field]); ok {
			return t
		}
	}
	return time.Time{}
}

// TimeBucket returns "YYYY-MM" for t, or "" for the zero time.
func TimeBucket(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01")
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

func parseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t != nil {
			return *t, !t.IsZero()
		}
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	case int:
		return time.Unix(int64(t), 0), true
	case int64:
		return time.Unix(t, 0), true
	case uint64:
		return time.Unix(int64(t), 0), true
	case float64:
		return time.Unix(int64(t), 0), true
	}
	return time.Time{}, false
}
