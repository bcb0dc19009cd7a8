// Package mock provides test double implementations of the ai interfaces.
//
// The mocks let tests run without external AI services and make provider
// behavior deterministic, including scripted failure sequences used to
// exercise retry and backoff.
//
// # Usage in Tests
//
//	// Deterministic vectors of the configured size
//	embedder := mock.NewMockEmbedder(8)
//	vec, err := embedder.EmbedText(ctx, "test")
//
//	// Fail twice with HTTP 429, then succeed
//	embedder.FailNext(2, errors.New("API returned unexpected status code: 429"))
//
//	// Full control
//	embedder.WithEmbedTextFunc(func(ctx context.Context, text string) ([]float32, error) {
//	    return []float32{0.1, 0.2, 0.3}, nil
//	})
//
//	count := embedder.CallCount()
package mock
