package chunking

import "errors"

var (
	// ErrEmptySource is returned when a record is chunked without a source name.
	ErrEmptySource = errors.New("source name is required")

	// ErrNilExtractor is returned when registering a nil extractor or builder.
	ErrNilExtractor = errors.New("extractor is nil")
)
