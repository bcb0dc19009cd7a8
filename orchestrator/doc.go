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

// Package orchestrator runs ingestion jobs.
//
// A job moves through
//
//	queued -> processing -> completed
//	                     -> retrying -> processing ...
//	                     -> failed
//
// Jobs wait in a FIFO queue and run concurrently on a bounded worker pool.
// Each attempt has a wall-clock timeout. Retryable failures are re-queued
// after RetryDelay*retryCount until MaxRetries is reached; a retry re-runs
// the whole job. Every state change is persisted through a
// storage.JobRepository and reported to observers.
package orchestrator
