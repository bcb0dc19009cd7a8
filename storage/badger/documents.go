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

package badger

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/vectorpipe/core"
	"github.com/poiesic/vectorpipe/storage"
)

// Index names reported by IndexExists. Both searches are exhaustive scans
// over the document keyspace; the source index is a real secondary index.
const (
	IndexVector = storage.IndexVector
	IndexText   = storage.IndexText
	IndexSource = storage.IndexSource
)

// DocumentStore implements storage.DocumentStore for BadgerDB.
// Vector search is a brute-force cosine scan; text search scores term frequency.
type DocumentStore struct {
	backend *Backend
	now     func() time.Time
}

var _ storage.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore creates a new DocumentStore.
func NewDocumentStore(backend *Backend) *DocumentStore {
	return &DocumentStore{
		backend: backend,
		now:     time.Now,
	}
}

// Close is a no-op; the backend is owned by the caller.
func (s *DocumentStore) Close() error {
	return nil
}

// Upsert inserts or replaces documents.
func (s *DocumentStore) Upsert(ctx context.Context, docs ...*core.VectorDocument) error {
	return s.backend.Update(func(tx *badger.Txn) error {
		now := s.now().UTC()
		for _, doc := range docs {
			if err := ctx.Err(); err != nil {
				return err
			}

			existing, err := readDocument(tx, doc.ID)
			switch {
			case err == nil:
				doc.CreatedAt = existing.CreatedAt
				if existing.SourceType != doc.SourceType {
					if err := tx.Delete(makeDocumentSourceKey(existing.SourceType, doc.ID)); err != nil {
						return err
					}
				}
			case errors.Is(err, storage.ErrNotFound):
				if doc.CreatedAt.IsZero() {
					doc.CreatedAt = now
				}
			default:
				return err
			}
			doc.UpdatedAt = now
			if doc.Status == "" {
				doc.Status = core.DocumentActive
			}

			value, err := storage.MarshalDocument(doc)
			if err != nil {
				return err
			}
			if err := tx.Set(makeDocumentKey(doc.ID), value); err != nil {
				return err
			}
			if err := tx.Set(makeDocumentSourceKey(doc.SourceType, doc.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// Get retrieves a single document by ID.
func (s *DocumentStore) Get(ctx context.Context, id string) (*core.VectorDocument, error) {
	var doc *core.VectorDocument
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		doc, err = readDocument(tx, id)
		return err
	}, false)
	return doc, err
}

// Delete removes documents by ID, ignoring missing ones.
func (s *DocumentStore) Delete(ctx context.Context, ids ...string) error {
	return s.backend.Update(func(tx *badger.Txn) error {
		for _, id := range ids {
			if err := deleteDocument(tx, id); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteByFilter removes every document matching filter.
func (s *DocumentStore) DeleteByFilter(ctx context.Context, filter core.Filter) (int, error) {
	if filter.IsEmpty() {
		return 0, storage.ErrInvalidQuery
	}

	var ids []string
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		return scanDocuments(ctx, tx, func(doc *core.VectorDocument) error {
			if filter.Matches(doc) {
				ids = append(ids, doc.ID)
			}
			return nil
		})
	}, false)
	if err != nil {
		return 0, err
	}

	if err := s.Delete(ctx, ids...); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// VectorQuery returns the documents most similar to the query vector.
func (s *DocumentStore) VectorQuery(ctx context.Context, query storage.VectorQuery) ([]*core.ScoredDocument, error) {
	if len(query.Vector) == 0 || query.Limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.ScoredDocument
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		return scanDocuments(ctx, tx, func(doc *core.VectorDocument) error {
			if !query.Filter.Matches(doc) || len(doc.Embedding) != len(query.Vector) {
				return nil
			}
			score := core.CosineSimilarity(query.Vector, doc.Embedding)
			results = append(results, &core.ScoredDocument{
				Document:    doc,
				Score:       score,
				VectorScore: score,
			})
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}

	return topN(results, query.Limit), nil
}

// TextQuery returns documents ranked by term-frequency relevance.
func (s *DocumentStore) TextQuery(ctx context.Context, query storage.TextQuery) ([]*core.ScoredDocument, error) {
	if len(core.Tokenize(query.Text)) == 0 || query.Limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	var results []*core.ScoredDocument
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		return scanDocuments(ctx, tx, func(doc *core.VectorDocument) error {
			if !query.Filter.Matches(doc) {
				return nil
			}
			score := core.TextRelevance(query.Text, doc.Content)
			if score == 0 {
				return nil
			}
			results = append(results, &core.ScoredDocument{
				Document:  doc,
				Score:     score,
				TextScore: score,
			})
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}

	return topN(results, query.Limit), nil
}

// Count returns the number of documents matching filter.
// A filter on source type alone is answered from the source index.
func (s *DocumentStore) Count(ctx context.Context, filter core.Filter) (int, error) {
	n := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		if filter.IsEmpty() {
			n = countPrefix(tx, documentScanPrefix())
			return nil
		}
		if onlySourceType(filter) {
			n = countPrefix(tx, makePartialDocumentSourceKey(filter.SourceType))
			return nil
		}
		return scanDocuments(ctx, tx, func(doc *core.VectorDocument) error {
			if filter.Matches(doc) {
				n++
			}
			return nil
		})
	}, false)
	return n, err
}

// Stats returns collection statistics.
func (s *DocumentStore) Stats(ctx context.Context) (*core.CollectionStats, error) {
	stats := &core.CollectionStats{
		BySourceType: make(map[string]int),
		ByStatus:     make(map[string]int),
	}
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		return scanDocuments(ctx, tx, func(doc *core.VectorDocument) error {
			stats.TotalDocuments++
			stats.BySourceType[doc.SourceType]++
			stats.ByStatus[string(doc.Status)]++
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// IndexExists reports whether name is one of the built-in indexes.
func (s *DocumentStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if s.backend.IsClosed() {
		return false, storage.ErrStorageClosed
	}
	switch name {
	case IndexVector, IndexText, IndexSource:
		return true, nil
	}
	return false, nil
}

// onlySourceType reports whether SourceType is the filter's only predicate.
func onlySourceType(filter core.Filter) bool {
	return filter.SourceType != "" && filter.Status == "" && filter.OwnerID == "" && len(filter.Metadata) == 0
}

func readDocument(tx *badger.Txn, id string) (*core.VectorDocument, error) {
	item, err := tx.Get(makeDocumentKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}

	var doc *core.VectorDocument
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		doc, unmarshalErr = storage.UnmarshalDocument(val)
		return unmarshalErr
	})
	return doc, err
}

func deleteDocument(tx *badger.Txn, id string) error {
	doc, err := readDocument(tx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := tx.Delete(makeDocumentKey(id)); err != nil {
		return err
	}
	return tx.Delete(makeDocumentSourceKey(doc.SourceType, id))
}

func scanDocuments(ctx context.Context, tx *badger.Txn, fn func(doc *core.VectorDocument) error) error {
	return scanPrefix(tx, documentScanPrefix(), func(_, val []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		doc, err := storage.UnmarshalDocument(val)
		if err != nil {
			return err
		}
		return fn(doc)
	})
}

// topN sorts by score descending, keeping scan order for ties, and truncates to limit.
func topN(results []*core.ScoredDocument, limit int) []*core.ScoredDocument {
	slices.SortStableFunc(results, func(a, b *core.ScoredDocument) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}
