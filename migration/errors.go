package migration

import "errors"

var (
	// ErrCheckpointsRequired is returned when a checkpoint repository is not provided.
	ErrCheckpointsRequired = errors.New("checkpoint repository required")

	// ErrSourcesRequired is returned when a source registry is not provided.
	ErrSourcesRequired = errors.New("source registry required")

	// ErrPipelineRequired is returned when an ingestion pipeline is not provided.
	ErrPipelineRequired = errors.New("ingestion pipeline required")

	// ErrCheckpointNotFound is returned when no checkpoint exists for a migration.
	ErrCheckpointNotFound = errors.New("checkpoint not found")

	// ErrInProgress is returned by Run when an unfinished checkpoint exists.
	ErrInProgress = errors.New("migration has an unfinished checkpoint; resume it instead")

	// ErrAlreadyCompleted is returned by Resume for a finished migration.
	ErrAlreadyCompleted = errors.New("migration already completed")

	// ErrAlreadyRunning is returned when the migration is running in this process.
	ErrAlreadyRunning = errors.New("migration already running")

	// ErrNotRunning is returned by Pause when the migration is not running.
	ErrNotRunning = errors.New("migration not running")

	// ErrLocked is returned when another process holds the migration lock.
	ErrLocked = errors.New("migration locked by another process")

	// ErrValidationUnavailable is returned by Validate without a document reader.
	ErrValidationUnavailable = errors.New("validation requires a document reader and embedder")
)
