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

package mock

import "github.com/poiesic/vectorpipe/ai"

// MockProvider is a test double for ai.AIProvider.
type MockProvider struct {
	embedder *MockEmbedder
	model    string
}

var _ ai.AIProvider = (*MockProvider)(nil)

// NewMockProvider creates a mock provider whose embedder produces vectors of length dims.
//
// Use GetMockEmbedder() to access the concrete embedder for test assertions.
func NewMockProvider(dims int) *MockProvider {
	return &MockProvider{
		embedder: NewMockEmbedder(dims),
		model:    "mock-embedding",
	}
}

// NewMockProviderWithEmbedder creates a mock provider around an existing mock embedder.
func NewMockProviderWithEmbedder(embedder *MockEmbedder) *MockProvider {
	return &MockProvider{embedder: embedder, model: "mock-embedding"}
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// Model returns the mock model identifier.
func (p *MockProvider) Model() string {
	return p.model
}

// Dimensions returns the mock vector length.
func (p *MockProvider) Dimensions() int {
	return p.embedder.Dimensions()
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}
