package embedding

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHeuristicEstimator(t *testing.T) {
	var e HeuristicEstimator
	assert.Equal(t, 0, e.Estimate(""))
	assert.Equal(t, 1, e.Estimate("abc"))
	assert.Equal(t, 1, e.Estimate("abcd"))
	assert.Equal(t, 2, e.Estimate("abcde"))
	assert.Equal(t, 1, e.Estimate("héé"), "counts runes, not bytes")
}
