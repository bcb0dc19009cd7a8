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

// Package chunking turns raw source records into chunks ready for embedding.
//
// For each record the Chunker:
//   - extracts text from the first present content field, or builds it from
//     the record's known fields when there is none
//   - splits the text into overlapping windows, preferring sentence ends
//   - extracts source-specific metadata through a Registry
//   - scores importance and derives tags, keywords and a time bucket
//
// Sources are open for extension: register an Extractor or a ContentBuilder
// under a source name to change how its records are read.
package chunking
