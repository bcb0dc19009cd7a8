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

// Package source reads raw records from the collections being vectorized.
//
// A Source pages through its records in a stable key order so a migration
// can stop after any record and later continue with the one after it.
package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/poiesic/vectorpipe/core"
)

var (
	// ErrUnknownSource is returned by Registry.Get for an unregistered name.
	ErrUnknownSource = errors.New("unknown source")

	// ErrDuplicateSource is returned when registering a name twice.
	ErrDuplicateSource = errors.New("source already registered")
)

// Source is a collection of raw records.
// Implementations must be thread-safe.
type Source interface {
	// Name is the source type recorded on vector documents.
	Name() string

	// Fetch returns the records with the given keys in key order.
	// Unknown keys are skipped.
	Fetch(ctx context.Context, keys []string) ([]core.Record, error)

	// Scan returns up to limit records that come after the record with key
	// after, in key order. An empty after starts from the beginning.
	Scan(ctx context.Context, after string, limit int) ([]core.Record, error)

	// Count returns the number of records.
	Count(ctx context.Context) (int, error)
}

// Registry maps source names to sources.
type Registry struct {
	mu      sync.RWMutex
	sources map[string]Source
}

// NewRegistry creates a registry holding sources.
func NewRegistry(sources ...Source) (*Registry, error) {
	r := &Registry{sources: make(map[string]Source)}
	for _, s := range sources {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds s under s.Name().
func (r *Registry) Register(s Source) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sources[s.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, s.Name())
	}
	r.sources[s.Name()] = s
	return nil
}

// Get returns the named source.
func (r *Registry) Get(name string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sources[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, name)
	}
	return s, nil
}

// Names returns the registered source names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
