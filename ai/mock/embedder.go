package mock

import (
	"context"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"github.com/poiesic/vectorpipe/ai"
)

// MockEmbedder is a test double for ai.Embedder.
// It is safe for concurrent use.
type MockEmbedder struct {
	// EmbedTextFunc allows custom behavior for EmbedText.
	// If nil, uses default deterministic behavior.
	EmbedTextFunc func(ctx context.Context, text string) ([]float32, error)

	// EmbedTextsFunc allows custom behavior for EmbedTexts.
	// If nil, each text is embedded as EmbedText would.
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	// Latency is slept (context-aware) before every call.
	Latency time.Duration

	dims      int
	mu        sync.Mutex
	callCount int
	failures  []error
	inFlight  int
	maxFlight int
}

var _ ai.Embedder = (*MockEmbedder)(nil)

// NewMockEmbedder creates a mock embedder producing vectors of length dims.
// Note: Returns concrete type to allow test assertions.
func NewMockEmbedder(dims int) *MockEmbedder {
	if dims <= 0 {
		dims = 384
	}
	return &MockEmbedder{dims: dims}
}

// WithEmbedTextFunc sets custom behavior for EmbedText and returns the mock.
func (m *MockEmbedder) WithEmbedTextFunc(fn func(ctx context.Context, text string) ([]float32, error)) *MockEmbedder {
	m.EmbedTextFunc = fn
	return m
}

// FailNext makes the next n calls return err before any default behavior runs.
func (m *MockEmbedder) FailNext(n int, err error) *MockEmbedder {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		m.failures = append(m.failures, err)
	}
	return m
}

// EmbedText generates a deterministic embedding based on text hash.
func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if err := m.begin(ctx); err != nil {
		return nil, err
	}
	defer m.end()

	if m.EmbedTextFunc != nil {
		return m.EmbedTextFunc(ctx, text)
	}
	return Vector(text, m.dims), nil
}

// EmbedTexts generates deterministic embeddings for multiple texts.
func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := m.begin(ctx); err != nil {
		return nil, err
	}
	defer m.end()

	if m.EmbedTextsFunc != nil {
		return m.EmbedTextsFunc(ctx, texts)
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		if m.EmbedTextFunc != nil {
			v, err := m.EmbedTextFunc(ctx, text)
			if err != nil {
				return nil, err
			}
			vectors[i] = v
			continue
		}
		vectors[i] = Vector(text, m.dims)
	}
	return vectors, nil
}

func (m *MockEmbedder) begin(ctx context.Context) error {
	m.mu.Lock()
	m.callCount++
	var scripted error
	if len(m.failures) > 0 {
		scripted = m.failures[0]
		m.failures = m.failures[1:]
	}
	m.inFlight++
	if m.inFlight > m.maxFlight {
		m.maxFlight = m.inFlight
	}
	latency := m.Latency
	m.mu.Unlock()

	if latency > 0 {
		timer := time.NewTimer(latency)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.end()
			return ctx.Err()
		case <-timer.C:
		}
	}
	if scripted != nil {
		m.end()
		return ai.ClassifyError(scripted)
	}
	return nil
}

func (m *MockEmbedder) end() {
	m.mu.Lock()
	m.inFlight--
	m.mu.Unlock()
}

// CallCount returns the number of times any method was called.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// MaxConcurrent returns the highest number of overlapping calls observed.
func (m *MockEmbedder) MaxConcurrent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxFlight
}

// Dimensions returns the vector length produced by default behavior.
func (m *MockEmbedder) Dimensions() int {
	return m.dims
}

// Reset clears call counts, scripted failures and custom functions.
func (m *MockEmbedder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.maxFlight = 0
	m.failures = nil
	m.EmbedTextFunc = nil
	m.EmbedTextsFunc = nil
}

// Vector creates a deterministic unit vector from text.
// The same text always produces the same vector.
func Vector(text string, dims int) []float32 {
	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vector := make([]float32, dims)
	var sumSquares float64
	for i := 0; i < dims; i++ {
		seed = seed*1664525 + 1013904223 // LCG constants
		vector[i] = float32(seed%1000)/1000.0 + 0.001
		sumSquares += float64(vector[i]) * float64(vector[i])
	}

	norm := float32(1 / math.Sqrt(sumSquares))
	for i := range vector {
		vector[i] *= norm
	}
	return vector
}
