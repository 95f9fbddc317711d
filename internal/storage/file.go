package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jittakal/bufemit/internal/encoder"
	"github.com/jittakal/bufemit/pkg/event"
	"github.com/jittakal/bufemit/pkg/storage"
)

var _ storage.Writer = (*FileWriter)(nil)

// FileConfig contains local filesystem configuration.
type FileConfig struct {
	BasePath string
}

// FileWriter writes batches below a base directory on the local filesystem.
type FileWriter struct {
	basePath       string
	encoderFactory *encoder.Factory
	logger         *slog.Logger
	report         batchReporter
	closed         atomic.Bool
}

// NewFileWriter creates a new filesystem storage writer.
func NewFileWriter(
	config FileConfig,
	format event.FileFormat,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*FileWriter, error) {
	if err := os.MkdirAll(config.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	encoderFactory := encoder.NewFactory(format, compression)
	if _, err := encoderFactory.CreateEncoder(); err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	logger.Info("filesystem writer created",
		"base_path", config.BasePath,
		"format", format,
		"compression", compression,
	)

	return &FileWriter{
		basePath:       config.BasePath,
		encoderFactory: encoderFactory,
		logger:         logger,
		report:         batchReporter{backend: "file", metrics: metrics},
	}, nil
}

// Write encodes records into a file under path, which may carry a file://
// prefix, and returns the file's location.
func (w *FileWriter) Write(
	ctx context.Context,
	records []event.Record,
	path string,
	format event.FileFormat,
) (string, int64, error) {
	if err := checkBatch(records, w.closed.Load()); err != nil {
		return "", 0, err
	}
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	started := time.Now()

	enc, err := w.encoderFactory.CreateEncoder()
	if err != nil {
		return "", 0, w.report.fail("encoder_create", path, err)
	}

	dir := filepath.Join(w.basePath, filepath.FromSlash(strings.TrimPrefix(path, "file://")))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, w.report.fail("mkdir", dir, err)
	}
	fullPath := filepath.Join(dir, objectName(records, enc.FileExtension()))

	stats, err := enc.Encode(fullPath, records)
	if err != nil {
		return "", 0, w.report.fail("write", fullPath, err)
	}

	w.logger.Debug("wrote batch to file",
		"path", fullPath,
		"record_count", stats.RecordCount,
		"file_size", stats.SizeBytes,
		"format", format,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	w.report.success(records, format, stats.SizeBytes, started)

	return fullPath, stats.SizeBytes, nil
}

// Close marks the writer closed. Later writes fail with ErrWriterClosed.
func (w *FileWriter) Close() error {
	if w.closed.CompareAndSwap(false, true) {
		w.logger.Info("closing filesystem writer")
	}
	return nil
}
