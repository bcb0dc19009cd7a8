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
	"fmt"
	"time"
)

// Error classes. Every typed error below matches exactly one of these via errors.Is.
var (
	// ErrValidation indicates bad input. Never retried.
	ErrValidation = errors.New("validation error")

	// ErrQuotaExceeded indicates the daily provider quota is spent. Never retried.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrRateLimited indicates the per-minute quota was hit. Callers wait it out.
	ErrRateLimited = errors.New("rate limited")

	// ErrTransientProvider indicates a provider failure that may succeed on retry.
	ErrTransientProvider = errors.New("transient provider error")

	// ErrProvider indicates a provider failure that will not succeed on retry.
	ErrProvider = errors.New("provider error")

	// ErrCircuitOpen indicates the store circuit breaker rejected the call.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrDimensionMismatch indicates a vector of the wrong length.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrTimeout indicates a job attempt exceeded its wall-clock budget.
	ErrTimeout = errors.New("timeout")

	// ErrStorage indicates a document store read or write failure.
	ErrStorage = errors.New("storage error")
)

// ValidationError reports invalid input on a named field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError builds a ValidationError.
func NewValidationError(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// QuotaExceededError reports an exhausted daily quota.
type QuotaExceededError struct {
	Limit   int
	ResetAt time.Time
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded: daily limit of %d requests reached, resets at %s",
		e.Limit, e.ResetAt.Format(time.RFC3339))
}

func (e *QuotaExceededError) Is(target error) bool { return target == ErrQuotaExceeded }

// RateLimitedError reports a per-minute limit hit and how long until it frees up.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
}

func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

// ProviderError wraps a failure of the embedding provider.
type ProviderError struct {
	StatusCode int
	Transient  bool
	Err        error
}

func (e *ProviderError) Error() string {
	kind := "provider error"
	if e.Transient {
		kind = "transient provider error"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %v", kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Is(target error) bool {
	if e.Transient {
		return target == ErrTransientProvider
	}
	return target == ErrProvider
}

// CircuitOpenError reports a call rejected by an open breaker.
type CircuitOpenError struct {
	Name        string
	NextRetryAt time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit %q open until %s", e.Name, e.NextRetryAt.Format(time.RFC3339))
}

func (e *CircuitOpenError) Is(target error) bool { return target == ErrCircuitOpen }

// DimensionMismatchError reports a vector whose length differs from the configured dimension.
type DimensionMismatchError struct {
	DocumentID string
	Expected   int
	Actual     int
}

func (e *DimensionMismatchError) Error() string {
	if e.DocumentID != "" {
		return fmt.Sprintf("dimension mismatch for %s: expected %d, got %d", e.DocumentID, e.Expected, e.Actual)
	}
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Is(target error) bool { return target == ErrDimensionMismatch }

// TimeoutError reports a job attempt that ran past its deadline.
type TimeoutError struct {
	JobID   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s timed out after %s", e.JobID, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// StorageError wraps a document store failure.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// ErrorType returns the taxonomy name of err for status reporting.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	case errors.Is(err, ErrQuotaExceeded):
		return "QuotaExceeded"
	case errors.Is(err, ErrRateLimited):
		return "RateLimited"
	case errors.Is(err, ErrTransientProvider):
		return "TransientProviderError"
	case errors.Is(err, ErrProvider):
		return "ProviderError"
	case errors.Is(err, ErrCircuitOpen):
		return "CircuitOpenError"
	case errors.Is(err, ErrDimensionMismatch):
		return "DimensionMismatchError"
	case errors.Is(err, ErrTimeout):
		return "Timeout"
	case errors.Is(err, ErrStorage):
		return "StorageError"
	default:
		return "Error"
	}
}

// IsRetryable reports whether a job-level retry could plausibly succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrValidation) && !errors.Is(err, ErrQuotaExceeded) && !errors.Is(err, ErrDimensionMismatch)
}
