package source

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/poiesic/vectorpipe/core"
)

// MemorySource holds records in insertion order, which is its key order.
type MemorySource struct {
	name string

	mu      sync.RWMutex
	records []core.Record
	index   map[string]int
}

var _ Source = (*MemorySource)(nil)

// NewMemorySource creates a source holding records. Keys must be unique.
func NewMemorySource(name string, records ...core.Record) (*MemorySource, error) {
	s := &MemorySource{name: name, index: make(map[string]int)}
	if err := s.Add(records...); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MemorySource) Name() string { return s.name }

// Add appends records after the existing ones.
func (s *MemorySource) Add(records ...core.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		if rec.Key == "" {
			return fmt.Errorf("source %s: record without key", s.name)
		}
		if _, ok := s.index[rec.Key]; ok {
			return fmt.Errorf("source %s: duplicate key %q", s.name, rec.Key)
		}
		s.index[rec.Key] = len(s.records)
		s.records = append(s.records, rec)
	}
	return nil
}

func (s *MemorySource) Fetch(ctx context.Context, keys []string) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	positions := make([]int, 0, len(keys))
	seen := make(map[int]bool, len(keys))
	for _, k := range keys {
		if i, ok := s.index[k]; ok && !seen[i] {
			seen[i] = true
			positions = append(positions, i)
		}
	}
	slices.Sort(positions)

	out := make([]core.Record, len(positions))
	for i, p := range positions {
		out[i] = s.records[p]
	}
	return out, nil
}

func (s *MemorySource) Scan(ctx context.Context, after string, limit int) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if after != "" {
		i, ok := s.index[after]
		if !ok {
			return nil, fmt.Errorf("source %s: unknown key %q", s.name, after)
		}
		start = i + 1
	}
	end := min(start+limit, len(s.records))
	if start >= end {
		return nil, nil
	}
	out := make([]core.Record, end-start)
	copy(out, s.records[start:end])
	return out, nil
}

func (s *MemorySource) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}
