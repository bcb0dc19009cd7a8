package gemini

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/vectorpipe/ai"
	"google.golang.org/genai"
)

// taskType tells the API the vectors are stored for later retrieval.
const taskType = "RETRIEVAL_DOCUMENT"

// Embedder implements ai.Embedder using the Gemini embedContent API.
type Embedder struct {
	client *genai.Client
	model  string
	dims   int32
	logger *slog.Logger
}

var _ ai.Embedder = (*Embedder)(nil)

func newEmbedder(ctx context.Context, config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.EmbeddingHost != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: config.EmbeddingHost}
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, err
	}

	return &Embedder{
		client: client,
		model:  config.EmbeddingModel,
		dims:   int32(config.Dimensions),
		logger: slog.Default().With("component", "gemini-embedder", "model", config.EmbeddingModel),
	}, nil
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple texts in one request.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, &genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: t}},
		})
	}

	dims := e.dims
	resp, err := e.client.Models.EmbedContent(ctx, e.model, contents, &genai.EmbedContentConfig{
		TaskType:             taskType,
		OutputDimensionality: &dims,
	})
	if err != nil {
		e.logger.Warn("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, ai.ClassifyError(err)
	}
	if resp == nil || len(resp.Embeddings) != len(texts) {
		got := 0
		if resp != nil {
			got = len(resp.Embeddings)
		}
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ai.ErrEmptyResponse, got, len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, emb := range resp.Embeddings {
		if emb == nil {
			return nil, fmt.Errorf("%w: missing vector %d", ai.ErrEmptyResponse, i)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}
