// Package storage implements the batch writers for the local filesystem,
// S3, Azure Blob Storage and Google Cloud Storage, plus the Hive-style router
// that decides where a partition's batch lands.
package storage

import (
	"fmt"
	"os"
	"strings"
	"time"

	apperrors "github.com/jittakal/bufemit/internal/errors"
	pkgencoder "github.com/jittakal/bufemit/pkg/encoder"
	"github.com/jittakal/bufemit/pkg/event"
)

// MetricsCollector defines metrics operations for storage.
type MetricsCollector interface {
	IncFilesWritten(topic string, partition int32, format string, status string)
	ObserveFileSize(topic string, partition int32, format string, size float64)
	ObserveStorageWriteDuration(topic string, partition int32, duration float64)
	IncStorageErrors(backend string, operation string)
}

// objectName names a batch file after the offsets it holds, so a retried
// batch overwrites its earlier attempt instead of duplicating it.
func objectName(records []event.Record, ext string) string {
	first, last := event.OffsetRange(records)
	return fmt.Sprintf("part-%019d-%019d%s", first, last, ext)
}

// objectKey strips "scheme://bucket/" from a routed path, leaving the key
// prefix inside the bucket.
func objectKey(path, scheme string) string {
	rest, ok := strings.CutPrefix(path, scheme+"://")
	if !ok {
		return strings.TrimPrefix(path, "/")
	}
	_, key, found := strings.Cut(rest, "/")
	if !found {
		return ""
	}
	return key
}

// joinKey appends name to prefix with exactly one separator.
func joinKey(prefix, name string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// encodeTemp encodes records into a temporary file. The caller removes it.
func encodeTemp(enc pkgencoder.Encoder, records []event.Record, backend string) (string, *event.FileStats, error) {
	f, err := os.CreateTemp("", backend+"-upload-*"+enc.FileExtension())
	if err != nil {
		return "", nil, err
	}
	name := f.Name()
	f.Close()

	stats, err := enc.Encode(name, records)
	if err != nil {
		os.Remove(name)
		return "", nil, err
	}
	return name, stats, nil
}

// batchReporter records per-batch metrics for one backend.
type batchReporter struct {
	backend string
	metrics MetricsCollector
}

func (r batchReporter) fail(operation, path string, err error) error {
	if r.metrics != nil {
		r.metrics.IncStorageErrors(r.backend, operation)
	}
	return &apperrors.StorageError{Operation: operation, Path: path, Err: err}
}

func (r batchReporter) success(records []event.Record, format event.FileFormat, size int64, started time.Time) {
	if r.metrics == nil || len(records) == 0 {
		return
	}
	topic, partition := records[0].Topic, records[0].Partition
	r.metrics.IncFilesWritten(topic, partition, string(format), "success")
	r.metrics.ObserveFileSize(topic, partition, string(format), float64(size))
	r.metrics.ObserveStorageWriteDuration(topic, partition, time.Since(started).Seconds())
}

func checkBatch(records []event.Record, closed bool) error {
	if closed {
		return apperrors.ErrWriterClosed
	}
	if len(records) == 0 {
		return apperrors.ErrEmptyBatch
	}
	return nil
}
