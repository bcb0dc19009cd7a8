package badger

import (
	"context"
	"errors"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/vectorpipe/core"
	"github.com/poiesic/vectorpipe/storage"
)

// JobRepository implements storage.JobRepository for BadgerDB.
type JobRepository struct {
	backend *Backend
}

var _ storage.JobRepository = (*JobRepository)(nil)

// NewJobRepository creates a new JobRepository.
func NewJobRepository(backend *Backend) *JobRepository {
	return &JobRepository{backend: backend}
}

// SaveJob inserts or replaces a job.
func (r *JobRepository) SaveJob(ctx context.Context, job *core.Job) error {
	value, err := storage.MarshalJob(job)
	if err != nil {
		return err
	}
	return r.backend.Update(func(tx *badger.Txn) error {
		return tx.Set(makeJobKey(job.ID), value)
	})
}

// GetJob retrieves a job by ID.
func (r *JobRepository) GetJob(ctx context.Context, id string) (*core.Job, error) {
	var job *core.Job
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeJobKey(id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			job, unmarshalErr = storage.UnmarshalJob(val)
			return unmarshalErr
		})
	}, false)
	return job, err
}

// ListJobs returns all jobs ordered by creation time.
func (r *JobRepository) ListJobs(ctx context.Context) ([]*core.Job, error) {
	var jobs []*core.Job
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(jobPrefix+":"), func(_, val []byte) error {
			job, err := storage.UnmarshalJob(val)
			if err != nil {
				return err
			}
			jobs = append(jobs, job)
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(jobs, func(a, b *core.Job) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return jobs, nil
}

// DeleteJob removes a job.
func (r *JobRepository) DeleteJob(ctx context.Context, id string) error {
	return r.backend.Update(func(tx *badger.Txn) error {
		return tx.Delete(makeJobKey(id))
	})
}
