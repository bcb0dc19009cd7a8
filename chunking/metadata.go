package chunking

import (
	"sync"

	"github.com/poiesic/vectorpipe/core"
)

// Extractor derives source-specific metadata from a record.
type Extractor interface {
	Extract(rec core.Record) map[string]any
}

// ExtractorFunc adapts a function to Extractor.
type ExtractorFunc func(rec core.Record) map[string]any

func (f ExtractorFunc) Extract(rec core.Record) map[string]any { return f(rec) }

// fieldExtractor copies record paths to metadata keys. Absent paths are skipped.
type fieldExtractor map[string]string

func (e fieldExtractor) Extract(rec core.Record) map[string]any {
	md := make(map[string]any, len(e))
	for key, path := range e {
		if v, ok := lookup(rec.Fields, path); ok {
			md[key] = v
		}
	}
	return md
}

// GenericExtractor reads type, status and category when present.
var GenericExtractor Extractor = fieldExtractor{
	"type":     "type",
	"status":   "status",
	"category": "category",
}

// Registry maps source names to extractors and content builders.
// Unknown sources use GenericExtractor and sorted key: value content.
type Registry struct {
	mu         sync.RWMutex
	extractors map[string]Extractor
	builders   map[string]ContentBuilder
}

// NewRegistry returns a registry preloaded with the built-in sources.
func NewRegistry() *Registry {
	return &Registry{
		extractors: defaultExtractors(),
		builders:   defaultBuilders(),
	}
}

// Register sets the extractor for source.
func (r *Registry) Register(source string, e Extractor) error {
	if source == "" {
		return ErrEmptySource
	}
	if e == nil {
		return ErrNilExtractor
	}
	r.mu.Lock()
	r.extractors[source] = e
	r.mu.Unlock()
	return nil
}

// RegisterBuilder sets the content builder for source.
func (r *Registry) RegisterBuilder(source string, b ContentBuilder) error {
	if source == "" {
		return ErrEmptySource
	}
	if b == nil {
		return ErrNilExtractor
	}
	r.mu.Lock()
	r.builders[source] = b
	r.mu.Unlock()
	return nil
}

// Extractor returns the extractor for source, falling back to GenericExtractor.
func (r *Registry) Extractor(source string) Extractor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.extractors[source]; ok {
		return e
	}
	return GenericExtractor
}

// Content builds text for a record without a content field.
func (r *Registry) Content(source string, rec core.Record) string {
	r.mu.RLock()
	b, ok := r.builders[source]
	r.mu.RUnlock()
	if ok {
		return b.Build(rec)
	}
	return genericContent(rec)
}

func defaultExtractors() map[string]Extractor {
	return map[string]Extractor{
		"analytics": fieldExtractor{
			"site_id":        "siteId",
			"event_type":     "eventType",
			"total_visitors": "totalVisitors",
			"web3_visitors":  "web3Visitors",
		},
		"sessions": fieldExtractor{
			"site_id":      "siteId",
			"user_id":      "userId",
			"is_web3_user": "isWeb3User",
			"chain":        "wallet.chainName",
			"utm_source":   "utmData.source",
		},
		"transactions": fieldExtractor{
			"contract_id": "contractId",
			"tx_hash":     "tx_hash",
			"status":      "status",
			"chain":       "chain",
			"chain_id":    "chainId",
			"token":       "token_symbol",
		},
		"campaigns": fieldExtractor{
			"campaign_name": "name",
			"status":        "status",
			"channel":       "channel",
			"start_date":    "startDate",
			"end_date":      "endDate",
		},
		"smart_contracts": fieldExtractor{
			"contract_address": "address",
			"blockchain":       "blockchain",
			"chain_id":         "chainId",
			"type":             "type",
		},
		"granular_events": fieldExtractor{
			"event_type": "eventType",
			"site_id":    "siteId",
			"chain_id":   "chainId",
		},
	}
}
