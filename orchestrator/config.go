package orchestrator

import (
	"errors"
	"time"
)

// Config holds orchestrator settings.
type Config struct {
	// MaxConcurrentJobs bounds the number of jobs processing at once.
	MaxConcurrentJobs int

	// JobTimeout is the wall-clock budget of one attempt.
	JobTimeout time.Duration

	// MaxRetries is the number of re-runs after the first failed attempt.
	MaxRetries int

	// RetryDelay is multiplied by the retry count to get the re-queue delay.
	RetryDelay time.Duration

	// HealthInterval is how often health is checked in the background.
	// Zero disables the background check.
	HealthInterval time.Duration
}

// DefaultConfig returns the default settings.
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrentJobs: 3,
		JobTimeout:        10 * time.Minute,
		MaxRetries:        3,
		RetryDelay:        5 * time.Second,
		HealthInterval:    30 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxConcurrentJobs <= 0 {
		return errors.New("orchestrator config: MaxConcurrentJobs must be positive")
	}
	if c.JobTimeout <= 0 {
		return errors.New("orchestrator config: JobTimeout must be positive")
	}
	if c.MaxRetries < 0 {
		return errors.New("orchestrator config: MaxRetries must not be negative")
	}
	if c.RetryDelay < 0 || c.HealthInterval < 0 {
		return errors.New("orchestrator config: delays must not be negative")
	}
	return nil
}
