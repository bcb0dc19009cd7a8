package ai

import (
	"maps"
	"slices"
	"sync"
)

var (
	modelsMu sync.RWMutex

	// knownModels maps embedding model identifiers to their native dimension.
	knownModels = map[string]int{
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		"text-embedding-004":     768,
		"gemini-embedding-001":   3072,
		"embeddinggemma":         768,
		"nomic-embed-text":       768,
		"mxbai-embed-large":      1024,
		"all-minilm":             384,
	}
)

// RegisterModel adds or replaces a model in the known model table.
func RegisterModel(name string, dims int) {
	modelsMu.Lock()
	defer modelsMu.Unlock()
	knownModels[name] = dims
}

// ModelDimensions returns the native dimension of a known model.
func ModelDimensions(name string) (int, bool) {
	modelsMu.RLock()
	defer modelsMu.RUnlock()
	dims, ok := knownModels[name]
	return dims, ok
}

// IsKnownModel reports whether name is in the known model table.
func IsKnownModel(name string) bool {
	_, ok := ModelDimensions(name)
	return ok
}

// KnownModels returns the sorted list of known model identifiers.
func KnownModels() []string {
	modelsMu.RLock()
	defer modelsMu.RUnlock()
	return slices.Sorted(maps.Keys(knownModels))
}
