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

// Package migration runs long, resumable bulk migrations of source records
// into the vector store.
//
// A migration walks its sources in declared order and each source in pages
// ordered by record key. After every CheckpointInterval pages, at every source
// boundary and whenever the run is paused, the position is written to a
// checkpoint:
//
//	{current source, completed sources, last processed key, counters}
//
// Resume continues with the records after the last processed key and skips
// sources already completed. Documents are keyed by source type and record
// key, so a page replayed after a crash overwrites rather than duplicates.
package migration
