package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"quick", "brown", "fox"}, Tokenize("The quick, brown (fox)!"))
	assert.Empty(t, Tokenize("the and of"))
	assert.True(t, IsStopWord("the"))
	assert.False(t, IsStopWord("wallet"))
}

func TestTextRelevance(t *testing.T) {
	assert.Equal(t, 0.0, TextRelevance("", "anything"))
	assert.Equal(t, 0.0, TextRelevance("wallet", "nothing relevant here"))

	one := TextRelevance("wallet", "wallet connected")
	many := TextRelevance("wallet", "wallet wallet wallet connected")
	assert.Greater(t, many, one)
	assert.Less(t, many, 1.0)

	partial := TextRelevance("wallet swap", "wallet connected")
	assert.InDelta(t, one/2, partial, 1e-9)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, CosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, CosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}
