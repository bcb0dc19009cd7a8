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

// Package embedding implements the rate-limited embedding client.
//
// The Client wraps an ai.AIProvider and adds, in call order:
//
//   - input validation (empty text, maximum length, unknown model)
//   - a TTL cache keyed by a fingerprint of text and options
//   - per-minute and per-day quotas; the minute cap blocks, the day cap fails fast
//   - a FIFO semaphore bounding concurrent provider calls
//   - bounded retries with exponential backoff for transient provider errors
//
// Every step reports typed events to registered Observers and updates the
// counters returned by Stats.
package embedding
