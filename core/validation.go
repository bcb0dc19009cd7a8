// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"errors"
	"math"
	"strings"
)

const (
	// MinBatchSize and MaxBatchSize bound Job.BatchSize.
	MinBatchSize = 1
	MaxBatchSize = 1000
)

// ValidateJob validates a job submission.
//
// Validation rules:
//   - Source must not be empty
//   - Priority must be low, normal or high (empty means normal)
//   - BatchSize must be within [1, 1000]
//   - Chunk overlap must be smaller than chunk size
//
// NOT validated (assigned by the orchestrator):
//   - ID, Status, Progress, timestamps
func ValidateJob(job *Job) error {
	if job == nil {
		return NewValidationError("job", "job is nil")
	}
	if strings.TrimSpace(job.Source) == "" {
		return NewValidationError("source", "must not be empty")
	}
	if err := ValidatePriority(job.Priority); err != nil {
		return err
	}
	if job.BatchSize < MinBatchSize || job.BatchSize > MaxBatchSize {
		return NewValidationError("batch_size", "must be between %d and %d, got %d", MinBatchSize, MaxBatchSize, job.BatchSize)
	}
	return ValidateChunkConfig(job.Chunking)
}

// ValidatePriority validates a JobPriority value.
func ValidatePriority(p JobPriority) error {
	switch p {
	case "", PriorityLow, PriorityNormal, PriorityHigh:
		return nil
	}
	return NewValidationError("priority", "unknown priority %q", p)
}

// ValidateChunkConfig validates chunking parameters.
func ValidateChunkConfig(cfg ChunkConfig) error {
	if cfg.ChunkSize <= 0 {
		return NewValidationError("chunk_size", "must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.ChunkSize {
		return NewValidationError("overlap", "must be in [0, chunk_size), got %d", cfg.Overlap)
	}
	return nil
}

// ValidateVector checks that a vector has exactly dims finite components.
func ValidateVector(vector []float32, dims int) error {
	if len(vector) != dims {
		return &DimensionMismatchError{Expected: dims, Actual: len(vector)}
	}
	for i, v := range vector {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return NewValidationError("embedding", "component %d is not finite", i)
		}
	}
	return nil
}

// ValidateDocument validates a vector document before persistence.
func ValidateDocument(doc *VectorDocument, dims int) error {
	if doc == nil {
		return NewValidationError("document", "document is nil")
	}
	if doc.ID == "" {
		return NewValidationError("id", "must not be empty")
	}
	if doc.Status != "" && doc.Status != DocumentActive && doc.Status != DocumentArchived {
		return NewValidationError("status", "unknown status %q", doc.Status)
	}
	if err := ValidateVector(doc.Embedding, dims); err != nil {
		var dm *DimensionMismatchError
		if errors.As(err, &dm) {
			dm.DocumentID = doc.ID
		}
		return err
	}
	return nil
}
