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

// Package storage defines the persistence ports of vectorpipe.
//
// Three repositories decouple the pipeline from any particular backend:
//
//   - DocumentStore: the vector document collection (upsert, delete, vector query,
//     text query, statistics)
//   - JobRepository: durable job state for the orchestrator
//   - CheckpointRepository: migration checkpoints keyed by migration ID
//
// Implementations live in sub-packages: badger (embedded, default), surreal
// (SurrealDB with HNSW and BM25 indexes) and redis (checkpoints only).
//
// # Usage
//
// Open an embedded store:
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	docs := badger.NewDocumentStore(backend)
//
// Use in tests with in-memory storage:
//
//	backend, err := badger.OpenBackend("", true)
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
