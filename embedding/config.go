package embedding

import (
	"errors"
	"time"
)

// Config holds the tunables of a Client.
type Config struct {
	// MaxTextLength is the maximum number of characters accepted per text.
	MaxTextLength int

	// RequestsPerMinute caps provider calls per minute window. Callers over the cap wait.
	RequestsPerMinute int

	// RequestsPerDay caps provider calls per day window. Callers over the cap fail.
	RequestsPerDay int

	// MaxConcurrent bounds in-flight provider calls.
	MaxConcurrent int

	// MaxRetries is the number of retries after the first attempt for transient failures.
	MaxRetries int

	// RetryBaseDelay is the base of the exponential backoff (base * 2^attempt).
	RetryBaseDelay time.Duration

	// CacheTTL and CacheSize bound the embedding cache.
	CacheTTL  time.Duration
	CacheSize int

	// CostPer1KTokens is used for the running cost estimate, in USD.
	CostPer1KTokens float64
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxTextLength:     8000,
		RequestsPerMinute: 60,
		RequestsPerDay:    10000,
		MaxConcurrent:     5,
		MaxRetries:        3,
		RetryBaseDelay:    1 * time.Second,
		CacheTTL:          1 * time.Hour,
		CacheSize:         10000,
		CostPer1KTokens:   0.00002,
	}
}

// Validate checks that every bound is usable.
func (c *Config) Validate() error {
	if c.MaxTextLength <= 0 {
		return errors.New("embedding config: MaxTextLength must be positive")
	}
	if c.RequestsPerMinute <= 0 || c.RequestsPerDay <= 0 {
		return errors.New("embedding config: request quotas must be positive")
	}
	if c.MaxConcurrent <= 0 {
		return errors.New("embedding config: MaxConcurrent must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("embedding config: MaxRetries must not be negative")
	}
	if c.CacheSize <= 0 {
		return errors.New("embedding config: CacheSize must be positive")
	}
	return nil
}
