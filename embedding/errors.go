package embedding

import "errors"

var (
	// ErrProviderRequired indicates a nil provider was passed to NewClient.
	ErrProviderRequired = errors.New("embedding provider is required")

	// ErrInvalidMaxAttempts indicates a retry policy with a negative retry count.
	ErrInvalidMaxAttempts = errors.New("max retries must not be negative")
)
