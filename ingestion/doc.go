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

// Package ingestion turns raw source records into stored vector documents.
//
// A Pipeline runs a Batch through three stages:
//   - Chunk splits each record into chunks with derived metadata
//   - Embed embeds chunk contents in sub-batches through the embedding client
//   - Store writes the resulting documents through the vector store client
//
// Failures are tracked per record. A record whose chunk fails to embed or
// store is reported in Batch.Failures and contributes no documents; its
// siblings are unaffected. Stage errors (context cancellation, a store that
// is down) fail the whole batch.
package ingestion
