package vectorstore

import (
	"errors"
	"time"

	"github.com/poiesic/vectorpipe/core"
)

// Weights weigh the two sides of a hybrid search.
type Weights struct {
	Vector float64 `yaml:"vector"`
	Text   float64 `yaml:"text"`
}

// DefaultWeights returns 0.7 vector / 0.3 text.
func DefaultWeights() Weights {
	return Weights{Vector: 0.7, Text: 0.3}
}

// Validate checks that both weights are non-negative and at least one is positive.
func (w Weights) Validate() error {
	if w.Vector < 0 || w.Text < 0 || (w.Vector == 0 && w.Text == 0) {
		return ErrInvalidWeights
	}
	return nil
}

// Config holds Client settings.
type Config struct {
	// Dimensions is the required length of every stored and queried vector.
	Dimensions int

	// BreakerThreshold is the number of consecutive failures that opens the circuit.
	BreakerThreshold int

	// BreakerReset is how long the circuit stays open before a half-open trial.
	BreakerReset time.Duration

	// QueryCacheTTL and QueryCacheSize bound the search result cache.
	QueryCacheTTL  time.Duration
	QueryCacheSize int

	// SlowQueryThreshold marks calls slower than this as slow queries.
	SlowQueryThreshold time.Duration

	// CandidateMultiplier sets vector-query candidates to limit*CandidateMultiplier.
	CandidateMultiplier int

	// Weights are the default hybrid search weights.
	Weights Weights
}

// DefaultConfig returns the default client settings.
func DefaultConfig() *Config {
	return &Config{
		Dimensions:          core.DefaultDimensions,
		BreakerThreshold:    5,
		BreakerReset:        60 * time.Second,
		QueryCacheTTL:       5 * time.Minute,
		QueryCacheSize:      1000,
		SlowQueryThreshold:  1 * time.Second,
		CandidateMultiplier: 10,
		Weights:             DefaultWeights(),
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Dimensions <= 0 {
		return errors.New("vectorstore config: Dimensions must be positive")
	}
	if c.BreakerThreshold <= 0 {
		return errors.New("vectorstore config: BreakerThreshold must be positive")
	}
	if c.BreakerReset <= 0 {
		return errors.New("vectorstore config: BreakerReset must be positive")
	}
	if c.QueryCacheSize <= 0 {
		return errors.New("vectorstore config: QueryCacheSize must be positive")
	}
	if c.CandidateMultiplier <= 0 {
		return errors.New("vectorstore config: CandidateMultiplier must be positive")
	}
	return c.Weights.Validate()
}
