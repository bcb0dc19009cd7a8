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

// Package ai provides the embedding provider abstraction used by vectorpipe.
//
// The package defines the Embedder and AIProvider interfaces, the provider
// configuration, the table of known embedding models and the classification
// of raw provider failures into the error taxonomy in package core.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible APIs (OpenAI, Ollama, LocalAI, vLLM) via langchaingo
//   - ai/gemini: Google Gemini embeddings via the genai SDK
//   - ai/mock: deterministic test doubles with scripted failures
//
// Public constructors return interface types. Mock constructors return
// concrete types so tests can script behavior and assert on call counts.
//
// # Usage Example
//
//	cfg := ai.NewConfig(
//	    ai.WithEmbeddingHost("http://localhost:11434/v1"),
//	    ai.WithEmbeddingModel("nomic-embed-text"),
//	    ai.WithDimensions(768),
//	)
//	provider, err := openai.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "wallet connected")
//
// Raw errors returned by implementations are passed through ClassifyError,
// which decides whether the failure is transient (network errors, HTTP
// 429/500/502/503/504, "rate limit" or "timeout" messages) or permanent.
package ai
