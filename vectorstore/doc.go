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

// Package vectorstore is the resilience layer in front of a storage.DocumentStore.
//
// Every call is dimension-checked before it reaches the store, runs through a
// circuit breaker, and is timed into running metrics. Search results are cached
// by operation and parameters; any write purges the whole query cache.
//
// Hybrid search merges a vector query and a text query:
//
//	combined = Wv*vectorScore + Wt*textScore
//
// where a document missing from one side scores 0 on that side.
package vectorstore
