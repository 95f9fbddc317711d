package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jittakal/bufemit/internal/config"
	"github.com/jittakal/bufemit/internal/config/dto"
	apperrors "github.com/jittakal/bufemit/internal/errors"
	"github.com/jittakal/bufemit/internal/kafka"
	"github.com/jittakal/bufemit/internal/observability"
	"github.com/jittakal/bufemit/internal/partition"
	"github.com/jittakal/bufemit/internal/server"
	"github.com/jittakal/bufemit/internal/sink"
	"github.com/jittakal/bufemit/internal/storage"
	"github.com/jittakal/bufemit/internal/validator"
	"github.com/jittakal/bufemit/pkg/backend"
	"github.com/jittakal/bufemit/pkg/consumer"
	"github.com/jittakal/bufemit/pkg/emitter"
	"github.com/jittakal/bufemit/pkg/event"
	pkgstorage "github.com/jittakal/bufemit/pkg/storage"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	// Priority: CLI flag > CONFIG_PATH env var > default path
	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = os.Getenv("CONFIG_PATH")
	}
	if cfgPath == "" {
		cfgPath = "config/application.yaml"
	}

	cfg, err := config.NewLoader().Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:     cfg.Observability.Logging.Level,
		Format:    cfg.Observability.Logging.Format,
		Output:    cfg.Observability.Logging.Output,
		AddSource: cfg.Observability.Logging.AddSource,
	})
	logger.Info("starting bufemit",
		"version", cfg.Application.Version,
		"environment", cfg.Application.Environment,
		"emitter_mode", cfg.Emitter.Mode,
		"emitter_size", cfg.Emitter.Size,
	)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	probe := server.NewProbe()

	// Cleanups run in reverse registration order.
	var cleanups []func()
	addCleanup := func(name string, fn func() error) {
		cleanups = append(cleanups, func() {
			if err := fn(); err != nil {
				logger.Error("cleanup failed", "component", name, "error", err)
			}
		})
	}
	defer func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}()

	format := event.FileFormat(cfg.Storage.Format)
	writer, router, err := newStorage(cfg, format, logger, metrics)
	if err != nil {
		return err
	}
	addCleanup("storage-writer", writer.Close)

	security := kafka.SecurityConfig{
		Protocol:           cfg.Kafka.SecurityProtocol,
		SASLMechanism:      cfg.Kafka.SASLMechanism,
		SASLUsername:       cfg.Kafka.SASLUsername,
		SASLPassword:       cfg.Kafka.SASLPassword,
		AWSRegion:          cfg.Kafka.AWSRegion,
		InsecureSkipVerify: cfg.Kafka.InsecureSkipVerify,
	}

	dlq, err := kafka.NewDLQPublisher(cfg.Kafka.BootstrapServers, security, kafka.DLQConfig{
		Enabled:     cfg.Kafka.DLQ.Enabled,
		TopicSuffix: cfg.Kafka.DLQ.TopicSuffix,
		MaxRetries:  cfg.Kafka.DLQ.MaxRetries,
	}, logger, metrics, cfg.Application.Name)
	if err != nil {
		return fmt.Errorf("failed to create DLQ publisher: %w", err)
	}
	addCleanup("dlq-publisher", dlq.Close)

	kafkaConsumer, err := kafka.NewSaramaConsumer(kafka.ConsumerConfig{
		BootstrapServers:    cfg.Kafka.BootstrapServers,
		GroupID:             cfg.Kafka.Consumer.GroupID,
		Security:            security,
		AutoOffsetReset:     cfg.Kafka.Consumer.AutoOffsetReset,
		EnableAutoCommit:    cfg.Kafka.Consumer.EnableAutoCommit,
		MaxPollIntervalMS:   cfg.Kafka.Consumer.MaxPollIntervalMS,
		SessionTimeoutMS:    cfg.Kafka.Consumer.SessionTimeoutMS,
		HeartbeatIntervalMS: cfg.Kafka.Consumer.HeartbeatIntervalMS,
		ChannelBufferSize:   cfg.Kafka.Consumer.ChannelBufferSize,
	}, logger, metrics)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	addCleanup("kafka-consumer", kafkaConsumer.Close)

	// Without a DLQ, failed batches are reported as lost instead of
	// dead-lettered.
	var sinkDLQ consumer.DLQPublisher
	if cfg.Kafka.DLQ.Enabled {
		sinkDLQ = dlq
	}
	s := sink.New(writer, router, sinkDLQ, sink.Config{
		Format:       format,
		WriteTimeout: cfg.Sink.WriteTimeout(),
		MaxAttempts:  cfg.Sink.MaxAttempts,
		RetryBackoff: cfg.Sink.RetryBackoff(),
	}, logger)

	factory, err := newEmitterFactory(cfg.Emitter, s, kafkaConsumer, logger, metrics)
	if err != nil {
		return err
	}
	manager := partition.NewManager(factory, logger, metrics)
	addCleanup("partition-manager", manager.Close)
	kafkaConsumer.OnRevoke(manager.Revoke)

	probe.AddCheck("emitters", func(context.Context) error {
		if manager.Closed() {
			return apperrors.ErrManagerClosed
		}
		return nil
	})

	httpServer := server.NewServer(server.Config{
		HealthPort:    cfg.Observability.Health.Port,
		MetricsPort:   cfg.Observability.Metrics.Port,
		LivenessPath:  cfg.Observability.Health.LivenessPath,
		ReadinessPath: cfg.Observability.Health.ReadinessPath,
		MetricsPath:   cfg.Observability.Metrics.Path,
		StatsPath:     cfg.Observability.Health.StatsPath,
	}, probe, manager, registry, logger)
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	addCleanup("http-server", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(ctx)
	})

	if err := kafkaConsumer.Subscribe(context.Background(), cfg.Kafka.Consumer.Topics); err != nil {
		return fmt.Errorf("failed to subscribe to topics: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	records, errs, err := kafkaConsumer.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	probe.SetReady(true)
	logger.Info("application started successfully")

	p := &pipeline{
		validator: validator.NewRecordValidator(validator.Config{
			MaxRecordBytes:  cfg.Validation.MaxRecordBytes,
			RequireKey:      cfg.Validation.RequireKey,
			RequiredHeaders: cfg.Validation.RequiredHeaders,
		}),
		manager: manager,
		dlq:     dlq,
		logger:  logger,
		metrics: metrics,
	}
	consumeErr := p.run(ctx, records, errs)

	logger.Info("initiating graceful shutdown")
	probe.SetReady(false)
	cancel()
	drainEmitters(manager, cfg.Shutdown.GracePeriod(), logger)

	if consumeErr != nil {
		return consumeErr
	}
	logger.Info("application stopped successfully")
	return nil
}

// newStorage builds the writer for the configured backend and a router whose
// prefixes that writer understands.
func newStorage(
	cfg *dto.ApplicationConfig,
	format event.FileFormat,
	logger *slog.Logger,
	metrics storage.MetricsCollector,
) (pkgstorage.Writer, pkgstorage.Router, error) {
	compression := cfg.Storage.Compression
	version := cfg.Storage.Version

	switch cfg.Storage.Backend {
	case "file":
		w, err := storage.NewFileWriter(storage.FileConfig{BasePath: cfg.Storage.File.BasePath}, format, compression, logger, metrics)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create filesystem writer: %w", err)
		}
		return w, storage.NewRouter("file", "", "", version), nil
	case "s3":
		c := cfg.Storage.S3
		w, err := storage.NewS3Writer(storage.S3Config{
			Bucket:       c.Bucket,
			Region:       c.Region,
			Endpoint:     c.Endpoint,
			UsePathStyle: c.UsePathStyle,
			SSEEnabled:   c.SSEEnabled,
			SSEKMSKeyID:  c.SSEKMSKeyID,
		}, format, compression, logger, metrics)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create S3 writer: %w", err)
		}
		return w, storage.NewRouter("s3", c.Bucket, c.BasePath, version), nil
	case "azure":
		c := cfg.Storage.Azure
		w, err := storage.NewAzureWriter(storage.AzureConfig{
			AccountName:   c.AccountName,
			AccountKey:    c.AccountKey,
			ContainerName: c.Container,
			Endpoint:      c.Endpoint,
		}, format, compression, logger, metrics)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Azure Blob writer: %w", err)
		}
		return w, storage.NewRouter("wasbs", c.Container, c.BasePath, version), nil
	case "gcs":
		c := cfg.Storage.GCS
		w, err := storage.NewGCSWriter(storage.GCSConfig{
			Bucket:               c.Bucket,
			ProjectID:            c.ProjectID,
			CredentialsFile:      c.CredentialsFile,
			CredentialsJSON:      c.CredentialsJSON,
			Endpoint:             c.Endpoint,
			UseDefaultCredential: c.UseDefaultCredential,
		}, format, compression, logger, metrics)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create GCS writer: %w", err)
		}
		return w, storage.NewRouter("gs", c.Bucket, c.BasePath, version), nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage backend: %s (supported: file, s3, azure, gcs)", cfg.Storage.Backend)
	}
}

// newSampler returns nil when no cooldown is configured.
func newSampler(c dto.SamplerConfig) emitter.Sampler {
	switch c.Kind {
	case "fixed":
		return emitter.Fixed(dto.Seconds(c.Seconds))
	case "uniform":
		return emitter.Uniform(dto.Seconds(c.MinSeconds), dto.Seconds(c.MaxSeconds))
	default:
		return nil
	}
}

// newEmitterFactory returns the per-partition emitter constructor. In
// process mode the sink is registered once and looked up by name.
func newEmitterFactory(
	c dto.EmitterConfig,
	s *sink.Sink,
	committer sink.Committer,
	logger *slog.Logger,
	metrics *observability.Metrics,
) (partition.EmitterFactory, error) {
	mode, err := emitter.ParseMode(c.Mode)
	if err != nil {
		return nil, err
	}

	fn := emitter.ProcessFunc[[]event.Record, sink.Result](s.Process)
	if mode == emitter.ModeProcess {
		emitter.Register[[]event.Record, sink.Result](sink.ProcessName, fn)
		fn = nil
	}

	return func(pid event.PartitionID) (*partition.Emitter, error) {
		return emitter.New[[]event.Record, sink.Result](fn, backend.ListFactory[event.Record](c.Size),
			emitter.Options[[]event.Record, sink.Result]{
				Size:           c.Size,
				SendValue:      c.SendValue,
				Clip:           c.Clip,
				Sampler:        newSampler(c.Sampler),
				Mode:           mode,
				PoolSize:       c.PoolSize,
				OnDone:         s.OnDone(pid, committer),
				ProcessName:    sink.ProcessName,
				SpareBuffers:   c.SpareBuffers,
				AbandonOnClose: !c.CloseWait,
				Logger:         logger.With("partition", pid.String()),
				Metrics:        metrics.ForPartition(pid),
			})
	}, nil
}

// pipeline validates consumed records and feeds them to the partition
// emitters.
type pipeline struct {
	validator event.Validator
	manager   *partition.Manager
	dlq       consumer.DLQPublisher
	logger    *slog.Logger
	metrics   interface {
		IncRecordsRejected(topic string, reason string)
	}
}

func (p *pipeline) run(ctx context.Context, records <-chan *event.Record, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("context cancelled, stopping processing")
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			p.logger.Error("consumer error", "error", err)
			return err
		case record, ok := <-records:
			if !ok {
				p.logger.Info("record channel closed")
				return nil
			}
			if err := p.handle(ctx, record); err != nil {
				return err
			}
		}
	}
}

// handle returns an error only when the pipeline must stop.
func (p *pipeline) handle(ctx context.Context, record *event.Record) error {
	if err := p.validator.Validate(record); err != nil {
		p.reject(ctx, record, "validation_failed", err)
		return nil
	}

	err := p.manager.Write(record)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, emitter.ErrDispatch):
		// Already reported through OnDone or the emitter log; the
		// buffer has been swapped and writes continue.
		return nil
	case errors.Is(err, apperrors.ErrManagerClosed):
		return err
	default:
		p.reject(ctx, record, "emitter_write_failed", err)
		return nil
	}
}

// reject sends record to the DLQ. Its offset is not committed here; a later
// persisted batch of the partition covers it.
func (p *pipeline) reject(ctx context.Context, record *event.Record, reason string, cause error) {
	p.logger.Warn("record rejected",
		"partition", record.PartitionID().String(),
		"offset", record.Offset,
		"reason", reason,
		"error", cause,
	)
	p.metrics.IncRecordsRejected(record.Topic, reason)
	if err := p.dlq.Publish(ctx, record, reason+": "+cause.Error()); err != nil {
		p.logger.Error("failed to publish rejected record to DLQ",
			"partition", record.PartitionID().String(),
			"offset", record.Offset,
			"error", err,
		)
	}
}

// drainEmitters closes every emitter, giving in-flight batches up to grace
// to finish.
func drainEmitters(manager *partition.Manager, grace time.Duration, logger *slog.Logger) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = manager.Close()
	}()

	select {
	case <-done:
	case <-time.After(grace):
		logger.Warn("grace period elapsed with batches still in flight", "grace_period", grace)
	}
}
