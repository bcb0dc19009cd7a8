package gemini

import (
	"context"
	"log/slog"

	"github.com/poiesic/vectorpipe/ai"
)

// Provider implements ai.AIProvider using Gemini embeddings.
type Provider struct {
	config   *ai.Config
	embedder *Embedder
	logger   *slog.Logger
}

var _ ai.AIProvider = (*Provider)(nil)

// NewProvider creates a Gemini provider. The config must carry an API key.
func NewProvider(ctx context.Context, config *ai.Config) (ai.AIProvider, error) {
	embedder, err := newEmbedder(ctx, config)
	if err != nil {
		return nil, err
	}
	return &Provider{
		config:   config,
		embedder: embedder,
		logger:   slog.Default().With("component", "gemini-provider"),
	}, nil
}

// Embedder returns the text embedding service.
func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

// Model returns the configured embedding model.
func (p *Provider) Model() string {
	return p.config.EmbeddingModel
}

// Dimensions returns the requested output dimensionality.
func (p *Provider) Dimensions() int {
	return p.config.Dimensions
}

// Close is a no-op; the genai client holds no long-lived connections.
func (p *Provider) Close() error {
	p.logger.Debug("closing Gemini provider")
	return nil
}
