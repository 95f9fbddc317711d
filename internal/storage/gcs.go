package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/jittakal/bufemit/internal/encoder"
	"github.com/jittakal/bufemit/pkg/event"
	pkgstorage "github.com/jittakal/bufemit/pkg/storage"
)

var _ pkgstorage.Writer = (*GCSWriter)(nil)

// GCSConfig contains Google Cloud Storage configuration.
type GCSConfig struct {
	Bucket               string
	ProjectID            string
	CredentialsFile      string
	CredentialsJSON      string
	Endpoint             string
	UseDefaultCredential bool
}

// clientOptions picks the credential source. Default credentials win when
// requested, then inline JSON, then a credentials file.
func (cfg GCSConfig) clientOptions(logger *slog.Logger) []option.ClientOption {
	var opts []option.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	switch {
	case cfg.UseDefaultCredential:
		logger.Info("using default GCP credentials")
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
		logger.Info("using GCP credentials from JSON string")
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
		logger.Info("using GCP credentials from file", "file", cfg.CredentialsFile)
	default:
		logger.Info("no explicit credentials provided, using default GCP credentials")
	}
	return opts
}

// contentType returns the object content type for a file format.
func contentType(format event.FileFormat) string {
	if format == event.FormatAvro {
		return "application/avro"
	}
	return "application/octet-stream"
}

// GCSWriter uploads batches as objects into one bucket.
type GCSWriter struct {
	client         *storage.Client
	bucket         string
	encoderFactory *encoder.Factory
	logger         *slog.Logger
	report         batchReporter
	closed         atomic.Bool
}

// NewGCSWriter creates a new Google Cloud Storage writer.
func NewGCSWriter(
	cfg GCSConfig,
	format event.FileFormat,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*GCSWriter, error) {
	client, err := storage.NewClient(context.Background(), cfg.clientOptions(logger)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	encoderFactory := encoder.NewFactory(format, compression)
	if _, err := encoderFactory.CreateEncoder(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	logger.Info("GCS writer created",
		"bucket", cfg.Bucket,
		"project_id", cfg.ProjectID,
		"format", format,
		"compression", compression,
	)

	return &GCSWriter{
		client:         client,
		bucket:         cfg.Bucket,
		encoderFactory: encoderFactory,
		logger:         logger,
		report:         batchReporter{backend: "gcs", metrics: metrics},
	}, nil
}

// Write encodes records and uploads them below path, a gs:// URI or a bare
// object prefix. It returns the gs:// URI of the object.
func (w *GCSWriter) Write(
	ctx context.Context,
	records []event.Record,
	path string,
	format event.FileFormat,
) (string, int64, error) {
	if err := checkBatch(records, w.closed.Load()); err != nil {
		return "", 0, err
	}

	started := time.Now()

	enc, err := w.encoderFactory.CreateEncoder()
	if err != nil {
		return "", 0, w.report.fail("encoder_create", path, err)
	}

	object := joinKey(objectKey(path, "gs"), objectName(records, enc.FileExtension()))

	tempFile, stats, err := encodeTemp(enc, records, "gcs")
	if err != nil {
		return "", 0, w.report.fail("write", object, err)
	}
	defer os.Remove(tempFile)

	file, err := os.Open(tempFile)
	if err != nil {
		return "", 0, w.report.fail("file_open", tempFile, err)
	}
	defer file.Close()

	ow := w.client.Bucket(w.bucket).Object(object).NewWriter(ctx)
	ow.ContentType = contentType(format)

	written, err := io.Copy(ow, file)
	if err != nil {
		ow.Close()
		return "", 0, w.report.fail("upload", object, err)
	}
	if err := ow.Close(); err != nil {
		return "", 0, w.report.fail("upload", object, err)
	}

	w.logger.Debug("uploaded batch to GCS",
		"bucket", w.bucket,
		"object", object,
		"record_count", stats.RecordCount,
		"bytes_written", written,
		"format", format,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	w.report.success(records, format, stats.SizeBytes, started)

	return fmt.Sprintf("gs://%s/%s", w.bucket, object), stats.SizeBytes, nil
}

// Close closes the underlying client. It is safe to call more than once.
func (w *GCSWriter) Close() error {
	if !w.closed.CompareAndSwap(false, true) {
		return nil
	}
	w.logger.Info("closing GCS writer")
	if w.client != nil {
		return w.client.Close()
	}
	return nil
}
