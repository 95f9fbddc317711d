// Package storage defines interfaces for batch storage operations.
//
// This package provides abstractions for writing record batches to various
// storage backends (S3, Azure Blob, GCS, local filesystem).
package storage

import (
	"context"
	"time"

	"github.com/jittakal/bufemit/pkg/event"
)

// Writer writes record batches to storage.
type Writer interface {
	// Write writes records to storage under the specified path prefix.
	// Returns the full object path and the number of bytes written.
	Write(ctx context.Context, records []event.Record, path string, format event.FileFormat) (string, int64, error)

	// Close closes the writer and releases resources.
	Close() error
}

// Router determines storage paths for batches.
type Router interface {
	// Route returns the storage prefix for a batch of a partition whose
	// cycle started at cycleStart.
	Route(partitionID event.PartitionID, cycleStart time.Time) string
}
