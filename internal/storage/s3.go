package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/jittakal/bufemit/internal/encoder"
	"github.com/jittakal/bufemit/pkg/event"
	"github.com/jittakal/bufemit/pkg/storage"
)

var _ storage.Writer = (*S3Writer)(nil)

// S3Config contains AWS S3 configuration.
type S3Config struct {
	Bucket       string
	Region       string
	Endpoint     string
	UsePathStyle bool
	SSEEnabled   bool
	SSEKMSKeyID  string
}

// S3Writer uploads batches to an S3 bucket through the multipart upload
// manager, with optional server-side encryption.
type S3Writer struct {
	uploader       *manager.Uploader
	bucket         string
	sseEnabled     bool
	sseKMSKeyID    string
	encoderFactory *encoder.Factory
	logger         *slog.Logger
	report         batchReporter
	closed         atomic.Bool
}

// NewS3Writer creates a new S3 storage writer.
func NewS3Writer(
	cfg S3Config,
	format event.FileFormat,
	compression string,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*S3Writer, error) {
	awsConfig, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 10 * 1024 * 1024
		u.Concurrency = 5
	})

	encoderFactory := encoder.NewFactory(format, compression)
	if _, err := encoderFactory.CreateEncoder(); err != nil {
		return nil, fmt.Errorf("failed to create encoder: %w", err)
	}

	logger.Info("S3 writer created",
		"bucket", cfg.Bucket,
		"region", cfg.Region,
		"format", format,
		"compression", compression,
		"sse_enabled", cfg.SSEEnabled,
	)

	return &S3Writer{
		uploader:       uploader,
		bucket:         cfg.Bucket,
		sseEnabled:     cfg.SSEEnabled,
		sseKMSKeyID:    cfg.SSEKMSKeyID,
		encoderFactory: encoderFactory,
		logger:         logger,
		report:         batchReporter{backend: "s3", metrics: metrics},
	}, nil
}

// putInput builds the upload request for key, applying the SSE settings.
func (w *S3Writer) putInput(key string, body *os.File) *s3.PutObjectInput {
	in := &s3.PutObjectInput{
		Bucket: aws.String(w.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if w.sseEnabled {
		if w.sseKMSKeyID != "" {
			in.ServerSideEncryption = types.ServerSideEncryptionAwsKms
			in.SSEKMSKeyId = aws.String(w.sseKMSKeyID)
		} else {
			in.ServerSideEncryption = types.ServerSideEncryptionAes256
		}
	}
	return in
}

// Write encodes records and uploads them below path, an s3:// URI or a bare
// key prefix. It returns the s3:// URI of the uploaded object.
func (w *S3Writer) Write(
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

	key := joinKey(objectKey(path, "s3"), objectName(records, enc.FileExtension()))

	tempFile, stats, err := encodeTemp(enc, records, "s3")
	if err != nil {
		return "", 0, w.report.fail("write", key, err)
	}
	defer os.Remove(tempFile)

	file, err := os.Open(tempFile)
	if err != nil {
		return "", 0, w.report.fail("file_open", tempFile, err)
	}
	defer file.Close()

	result, err := w.uploader.Upload(ctx, w.putInput(key, file))
	if err != nil {
		return "", 0, w.report.fail("upload", key, err)
	}

	w.logger.Debug("uploaded batch to S3",
		"bucket", w.bucket,
		"key", key,
		"record_count", stats.RecordCount,
		"file_size", stats.SizeBytes,
		"format", format,
		"location", result.Location,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	w.report.success(records, format, stats.SizeBytes, started)

	return fmt.Sprintf("s3://%s/%s", w.bucket, key), stats.SizeBytes, nil
}

// Close marks the writer closed. Later writes fail with ErrWriterClosed.
func (w *S3Writer) Close() error {
	if w.closed.CompareAndSwap(false, true) {
		w.logger.Info("closing S3 writer")
	}
	return nil
}
