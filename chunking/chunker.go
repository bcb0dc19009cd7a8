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

package chunking

import (
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/poiesic/vectorpipe/core"
)

// Content types recorded on chunks.
const (
	ContentText       = "text"
	ContentStructured = "structured"
)

// Chunker splits records into chunks with derived metadata.
type Chunker struct {
	registry   *Registry
	importance ImportanceConfig
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Chunker.
type Option func(*Chunker) error

// WithRegistry replaces the built-in source registry.
func WithRegistry(r *Registry) Option {
	return func(c *Chunker) error {
		if r != nil {
			c.registry = r
		}
		return nil
	}
}

// WithImportance replaces the default importance heuristic.
func WithImportance(cfg ImportanceConfig) Option {
	return func(c *Chunker) error {
		c.importance = cfg
		return nil
	}
}

// WithClock overrides the time source used for recency scoring.
func WithClock(now func() time.Time) Option {
	return func(c *Chunker) error {
		if now != nil {
			c.now = now
		}
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chunker) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewChunker creates a chunker with the built-in registry.
func NewChunker(opts ...Option) (*Chunker, error) {
	c := &Chunker{
		registry:   NewRegistry(),
		importance: DefaultImportanceConfig(),
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "chunker")
	return c, nil
}

// Registry returns the chunker's source registry.
func (c *Chunker) Registry() *Registry {
	return c.registry
}

// Chunk splits rec into ordered chunks. The result is empty only when the
// record yields no text at all.
func (c *Chunker) Chunk(rec core.Record, source string, cfg core.ChunkConfig) ([]core.Chunk, error) {
	if strings.TrimSpace(source) == "" {
		return nil, ErrEmptySource
	}
	if err := core.ValidateChunkConfig(cfg); err != nil {
		return nil, err
	}

	text, ok := ExtractText(rec)
	contentType := ContentText
	if !ok {
		text = CleanText(c.registry.Content(source, rec))
		contentType = ContentStructured
	}
	pieces := Split(text, cfg)
	if len(pieces) == 0 {
		c.logger.Debug("record has no content", "source", source, "record", rec.Key)
		return nil, nil
	}

	extracted := c.registry.Extractor(source).Extract(rec)
	recordTime := RecordTime(rec)
	bucket := TimeBucket(recordTime)
	now := c.now()

	chunks := make([]core.Chunk, len(pieces))
	for i, piece := range pieces {
		md := make(map[string]any, len(extracted)+7)
		for k, v := range extracted {
			md[k] = v
		}
		md["source"] = source
		md["record_id"] = rec.Key
		md["chunk_index"] = i
		md["chunk_count"] = len(pieces)
		md["length"] = utf8.RuneCountInString(piece)
		md["word_count"] = len(strings.Fields(piece))
		importance := c.importance.Importance(piece, recordTime, now)
		md["importance"] = importance

		chunks[i] = core.Chunk{
			Content:     piece,
			ContentType: contentType,
			RecordID:    rec.Key,
			Source:      source,
			Index:       i,
			Metadata:    md,
			Tags:        Tags(source, piece, md),
			TimeBucket:  bucket,
			Keywords:    Keywords(piece),
			Importance:  importance,
		}
	}
	return chunks, nil
}
