package orchestrator

import "errors"

var (
	// ErrJobRepositoryRequired is returned when a job repository is not provided.
	ErrJobRepositoryRequired = errors.New("job repository required")

	// ErrSourcesRequired is returned when a source registry is not provided.
	ErrSourcesRequired = errors.New("source registry required")

	// ErrPipelineRequired is returned when an ingestion pipeline is not provided.
	ErrPipelineRequired = errors.New("ingestion pipeline required")

	// ErrJobNotFound is returned when a job ID is unknown.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobFinished is returned when cancelling a completed or failed job.
	ErrJobFinished = errors.New("job already finished")

	// ErrJobCancelled is the failure recorded on a cancelled job.
	ErrJobCancelled = errors.New("job cancelled")

	// ErrShutdown is returned when enqueueing after Shutdown.
	ErrShutdown = errors.New("orchestrator is shut down")

	// errAbandoned stops an attempt that was cancelled or timed out.
	errAbandoned = errors.New("job attempt abandoned")
)
