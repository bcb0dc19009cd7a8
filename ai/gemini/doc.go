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

// Package gemini provides the embedding provider for Google Gemini.
//
// It implements ai.AIProvider on top of the google.golang.org/genai SDK
// using the Gemini API backend. Output dimensionality is requested from
// the API so that models with a larger native size can be truncated to the
// dimension configured for the vector store.
package gemini
