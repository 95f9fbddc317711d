// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"

	"github.com/jittakal/bufemit/pkg/event"
)

// Sentinel errors for common conditions.
var (
	ErrConsumerClosed  = errors.New("consumer is closed")
	ErrInvalidRecord   = errors.New("invalid record")
	ErrManagerClosed   = errors.New("emitter manager is closed")
	ErrWriterClosed    = errors.New("storage writer is closed")
	ErrPublisherClosed = errors.New("dlq publisher is closed")
	ErrEmptyBatch      = errors.New("empty batch")
	ErrConnectionLost  = errors.New("connection lost")
)

// ProcessingError represents an error while buffering a record.
type ProcessingError struct {
	PartitionID event.PartitionID
	Offset      int64
	Err         error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing error: partition=%s offset=%d: %v",
		e.PartitionID, e.Offset, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// ValidationError represents a record validation failure.
type ValidationError struct {
	PartitionID event.PartitionID
	Offset      int64
	Field       string
	Reason      string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: partition=%s offset=%d field=%s: %s",
		e.PartitionID, e.Offset, e.Field, e.Reason)
}

// Is reports ErrInvalidRecord as a match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRecord
}

// StorageError represents a storage operation failure.
type StorageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: operation=%s path=%s: %v",
		e.Operation, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// SinkError reports a batch that could not be persisted.
type SinkError struct {
	PartitionID event.PartitionID
	Seq         uint64
	FirstOffset int64
	LastOffset  int64
	Err         error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink error: partition=%s batch=%d offsets=%d-%d: %v",
		e.PartitionID, e.Seq, e.FirstOffset, e.LastOffset, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// CommitError represents an offset commit failure.
type CommitError struct {
	PartitionID event.PartitionID
	Offset      int64
	Err         error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit error: partition=%s offset=%d: %v",
		e.PartitionID, e.Offset, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable.
// It first checks if the error implements the Retryable interface,
// then falls back to checking sentinel errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	return errors.Is(err, ErrConnectionLost)
}

// IsRetryable determines if a StorageError is retryable based on the operation type.
func (e *StorageError) IsRetryable() bool {
	// Write and upload operations are generally retryable
	return e.Operation == "write" || e.Operation == "upload" || e.Operation == "create"
}

// IsRetryable determines if a ProcessingError is retryable.
func (e *ProcessingError) IsRetryable() bool {
	return IsRetryable(e.Err)
}

// IsRetryable reports whether the underlying storage failure is retryable.
func (e *SinkError) IsRetryable() bool {
	return IsRetryable(e.Err)
}
