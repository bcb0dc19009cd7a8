package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/vectorpipe/core"
	"github.com/poiesic/vectorpipe/embedding"
	"github.com/poiesic/vectorpipe/storage"
)

// DocumentReader reads migrated documents back.
type DocumentReader interface {
	Get(ctx context.Context, id string) (*core.VectorDocument, error)
	Count(ctx context.Context, filter core.Filter) (int, error)
}

// Reembedder recomputes embeddings for sampled documents.
type Reembedder interface {
	Embed(ctx context.Context, text string, opts embedding.Options) ([]float32, error)
	Dimensions() int
}

// SourceReport compares one source with what was written for it.
type SourceReport struct {
	Source    string `json:"source"`
	Records   int    `json:"records"`
	Indexed   int    `json:"indexed"`
	Documents int    `json:"documents"`
	Sampled   int    `json:"sampled"`
}

// Report is the outcome of Validate.
type Report struct {
	MigrationID       string         `json:"migration_id"`
	Sources           []SourceReport `json:"sources"`
	Sampled           int            `json:"sampled"`
	AverageSimilarity float64        `json:"average_similarity"`
	DimensionErrors   int            `json:"dimension_errors"`
	Issues            []string       `json:"issues,omitempty"`
	Valid             bool           `json:"valid"`
}

// Validate checks a migration against its sources: records with a document
// against source counts, and for a sample of records per source that the
// stored embedding has the right length and matches a fresh embedding of the
// stored content.
func (m *Migrator) Validate(ctx context.Context, id string) (*Report, error) {
	if m.docs == nil || m.embedder == nil {
		return nil, ErrValidationUnavailable
	}
	cp, err := m.checkpoints.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	report := &Report{MigrationID: id}
	var similarity float64
	missing := 0
	for _, name := range cp.Sources {
		sr, sum, err := m.validateSource(ctx, name, report)
		if err != nil {
			return nil, err
		}
		similarity += sum
		missing += sr.Records - sr.Indexed
		report.Sources = append(report.Sources, sr)
	}

	if report.Sampled > 0 {
		report.AverageSimilarity = similarity / float64(report.Sampled)
	}
	if allowed := cp.Counters.FailedRecords + cp.Counters.SkippedRecords; missing > allowed {
		report.Issues = append(report.Issues,
			fmt.Sprintf("%d records have no document, only %d failed or were skipped", missing, allowed))
	}
	if !cp.Completed {
		report.Issues = append(report.Issues, "migration has not completed")
	}
	report.Valid = len(report.Issues) == 0

	m.logger.Info("migration validated", "migration", id, "valid", report.Valid, "issues", len(report.Issues),
		"sampled", report.Sampled, "similarity", report.AverageSimilarity)
	return report, nil
}

// validateSource fills the per-source counts and samples. It returns the sum
// of sample similarities.
func (m *Migrator) validateSource(ctx context.Context, name string, report *Report) (SourceReport, float64, error) {
	sr := SourceReport{Source: name}
	src, err := m.sources.Get(name)
	if err != nil {
		return sr, 0, err
	}
	if sr.Records, err = src.Count(ctx); err != nil {
		return sr, 0, fmt.Errorf("count %s: %w", name, err)
	}
	if sr.Documents, err = m.docs.Count(ctx, core.Filter{SourceType: name}); err != nil {
		return sr, 0, err
	}
	firstChunks := core.Filter{SourceType: name, Metadata: map[string]string{"chunk_index": "0"}}
	if sr.Indexed, err = m.docs.Count(ctx, firstChunks); err != nil {
		return sr, 0, err
	}
	if m.config.SampleSize == 0 {
		return sr, 0, nil
	}

	sample, err := src.Scan(ctx, "", m.config.SampleSize)
	if err != nil {
		return sr, 0, fmt.Errorf("sample %s: %w", name, err)
	}
	var sum float64
	for _, rec := range sample {
		docID := core.DocumentID(name, rec.Key, 0)
		doc, err := m.docs.Get(ctx, docID)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return sr, 0, err
		}

		if len(doc.Embedding) != m.embedder.Dimensions() {
			report.DimensionErrors++
			report.Issues = append(report.Issues, (&core.DimensionMismatchError{
				DocumentID: docID, Expected: m.embedder.Dimensions(), Actual: len(doc.Embedding),
			}).Error())
			continue
		}

		fresh, err := m.embedder.Embed(ctx, doc.Content, embedding.Options{})
		if err != nil {
			report.Issues = append(report.Issues, fmt.Sprintf("re-embed %s: %v", docID, err))
			continue
		}
		sim := core.CosineSimilarity(doc.Embedding, fresh)
		if sim < m.config.MinSimilarity {
			report.Issues = append(report.Issues, fmt.Sprintf("%s: similarity %.3f below %.3f", docID, sim, m.config.MinSimilarity))
		}
		sum += sim
		sr.Sampled++
		report.Sampled++
	}
	return sr, sum, nil
}
