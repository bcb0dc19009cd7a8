package vectorstore

import (
	"slices"

	"github.com/poiesic/vectorpipe/core"
)

// Merge combines vector and text hits into one ranking.
//
// Each document scores weights.Vector*VectorScore + weights.Text*TextScore,
// with 0 for a side it is missing from. Ties keep merge order: vector hits
// first in their original order, then text-only hits.
func Merge(vectorHits, textHits []*core.ScoredDocument, weights Weights, limit int) []*core.ScoredDocument {
	merged := make([]*core.ScoredDocument, 0, len(vectorHits)+len(textHits))
	byID := make(map[string]*core.ScoredDocument, len(vectorHits)+len(textHits))

	for _, h := range vectorHits {
		if h == nil || h.Document == nil {
			continue
		}
		if _, seen := byID[h.Document.ID]; seen {
			continue
		}
		sd := &core.ScoredDocument{Document: h.Document, VectorScore: h.VectorScore}
		byID[h.Document.ID] = sd
		merged = append(merged, sd)
	}
	for _, h := range textHits {
		if h == nil || h.Document == nil {
			continue
		}
		if sd, ok := byID[h.Document.ID]; ok {
			sd.TextScore = h.TextScore
			continue
		}
		sd := &core.ScoredDocument{Document: h.Document, TextScore: h.TextScore}
		byID[h.Document.ID] = sd
		merged = append(merged, sd)
	}

	for _, sd := range merged {
		sd.Score = weights.Vector*sd.VectorScore + weights.Text*sd.TextScore
	}
	slices.SortStableFunc(merged, func(a, b *core.ScoredDocument) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}
