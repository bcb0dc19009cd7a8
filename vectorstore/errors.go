package vectorstore

import "errors"

var (
	// ErrStoreRequired is returned when creating a client without a document store.
	ErrStoreRequired = errors.New("document store is required")

	// ErrInvalidWeights is returned when hybrid weights are negative or both zero.
	ErrInvalidWeights = errors.New("hybrid weights must be non-negative and not both zero")
)
