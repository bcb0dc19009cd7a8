package ingestion

import "errors"

var (
	// ErrChunkerRequired is returned when a chunker is not provided.
	ErrChunkerRequired = errors.New("chunker required")

	// ErrEmbedderRequired is returned when an embedding client is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrWriterRequired is returned when a document writer is not provided.
	ErrWriterRequired = errors.New("document writer required")

	// ErrAllRecordsFailed is returned by Batch.Err when no record succeeded.
	ErrAllRecordsFailed = errors.New("all records failed")
)
