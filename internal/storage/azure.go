package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/jittakal/bufemit/internal/encoder"
	"github.com/jittakal/bufemit/pkg/event"
	"github.com/jittakal/bufemit/pkg/storage"
)

var _ storage.Writer = (*AzureWriter)(nil)

// AzureConfig contains Azure Blob Storage configuration.
type AzureConfig struct {
	AccountName   string
	AccountKey    string
	ContainerName string
	Endpoint      string
}

// connectionString builds the shared-key connection string for cfg.
func (cfg AzureConfig) connectionString() string {
	if cfg.Endpoint != "" {
		return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;BlobEndpoint=%s",
			cfg.AccountName, cfg.AccountKey, cfg.Endpoint)
	}
	return fmt.Sprintf("DefaultEndpointsProtocol=https;AccountName=%s;AccountKey=%s;EndpointSuffix=core.windows.net",
		cfg.AccountName, cfg.AccountKey)
}

// AzureWriter uploads batches as block blobs into one container.
type AzureWriter struct {
	client         *azblob.Client
	containerName  string
	encoderFactory *encoder.Factory
	logger         *slog.Logger
	report         batchReporter
	closed         atomic.Bool
}

// NewAzureWriter creates a new Azure Blob storage writer.
func NewAzureWriter(
	cfg AzureConfig,
	format event.FileFormat,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*AzureWriter, error) {
	client, err := azblob.NewClientFromConnectionString(cfg.connectionString(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure client: %w", err)
	}

	encoderFactory := encoder.NewFactory(format, compression)
	if _, err := encoderFactory.CreateEncoder(); err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	logger.Info("Azure writer created",
		"container", cfg.ContainerName,
		"account", cfg.AccountName,
		"format", format,
		"compression", compression,
	)

	return &AzureWriter{
		client:         client,
		containerName:  cfg.ContainerName,
		encoderFactory: encoderFactory,
		logger:         logger,
		report:         batchReporter{backend: "azure", metrics: metrics},
	}, nil
}

// Write encodes records and uploads them below path, a wasbs:// URI or a
// bare blob prefix. It returns the wasbs:// URI of the blob.
func (w *AzureWriter) Write(ctx context.Context, records []event.Record, path string, format event.FileFormat) (string, int64, error) {
	if err := checkBatch(records, w.closed.Load()); err != nil {
		return "", 0, err
	}

	started := time.Now()

	enc, err := w.encoderFactory.CreateEncoder()
	if err != nil {
		return "", 0, w.report.fail("encoder_create", path, err)
	}

	blob := joinKey(objectKey(path, "wasbs"), objectName(records, enc.FileExtension()))

	tempFile, stats, err := encodeTemp(enc, records, "azure")
	if err != nil {
		return "", 0, w.report.fail("write", blob, err)
	}
	defer os.Remove(tempFile)

	file, err := os.Open(tempFile)
	if err != nil {
		return "", 0, w.report.fail("file_open", tempFile, err)
	}
	defer file.Close()

	if _, err := w.client.UploadFile(ctx, w.containerName, blob, file, nil); err != nil {
		return "", 0, w.report.fail("upload", blob, err)
	}

	w.logger.Debug("uploaded batch to Azure Blob",
		"container", w.containerName,
		"blob", blob,
		"record_count", stats.RecordCount,
		"file_size", stats.SizeBytes,
		"format", format,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	w.report.success(records, format, stats.SizeBytes, started)

	return fmt.Sprintf("wasbs://%s/%s", w.containerName, blob), stats.SizeBytes, nil
}

// Close marks the writer closed. Later writes fail with ErrWriterClosed.
func (w *AzureWriter) Close() error {
	if w.closed.CompareAndSwap(false, true) {
		w.logger.Info("Azure writer closed")
	}
	return nil
}
