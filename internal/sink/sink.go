// Package sink persists emitter cycles: each cycle's records are encoded
// and written to storage under the router's path, failed batches go to the
// dead letter queue, and completed batches commit their offsets in order.
package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/jittakal/bufemit/internal/errors"
	"github.com/jittakal/bufemit/pkg/consumer"
	"github.com/jittakal/bufemit/pkg/emitter"
	"github.com/jittakal/bufemit/pkg/event"
	"github.com/jittakal/bufemit/pkg/storage"
)

// ProcessName is the name Sink.Process is registered under for
// process-mode emitters.
const ProcessName = "bufemit.sink"

// Result describes one persisted batch.
type Result struct {
	Seq          uint64    `msgpack:"seq"`
	Topic        string    `msgpack:"topic"`
	Partition    int32     `msgpack:"partition"`
	Path         string    `msgpack:"path"`
	Records      int       `msgpack:"records"`
	Bytes        int64     `msgpack:"bytes"`
	FirstOffset  int64     `msgpack:"first_offset"`
	LastOffset   int64     `msgpack:"last_offset"`
	CycleStart   time.Time `msgpack:"cycle_start"`
	DeadLettered bool      `msgpack:"dead_lettered"`
}

// Config tunes a Sink.
type Config struct {
	Format       event.FileFormat
	WriteTimeout time.Duration
	MaxAttempts  int
	RetryBackoff time.Duration
}

// Sink writes record batches to storage.
type Sink struct {
	writer storage.Writer
	router storage.Router
	dlq    consumer.DLQPublisher
	cfg    Config
	logger *slog.Logger
	sleep  func(time.Duration)
}

// New creates a sink. dlq may be nil.
func New(writer storage.Writer, router storage.Router, dlq consumer.DLQPublisher, cfg Config, logger *slog.Logger) *Sink {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Minute
	}
	return &Sink{
		writer: writer,
		router: router,
		dlq:    dlq,
		cfg:    cfg,
		logger: logger.With("component", "sink"),
		sleep:  time.Sleep,
	}
}

// Process is the emitter processing function. It writes the cycle's records
// under the path routed from cycleStart. When storage keeps failing the
// batch is published to the DLQ and reported as dead-lettered; a
// *SinkError is returned only if that fails as well.
func (s *Sink) Process(payload emitter.Payload[[]event.Record], cycleStart time.Time) (Result, error) {
	records := payload.Value()
	if len(records) == 0 {
		return Result{Seq: payload.Seq(), FirstOffset: -1, LastOffset: -1}, nil
	}

	pid := records[0].PartitionID()
	first, last := event.OffsetRange(records)
	res := Result{
		Seq:         payload.Seq(),
		Topic:       pid.Topic,
		Partition:   pid.Partition,
		Records:     len(records),
		FirstOffset: first,
		LastOffset:  last,
		CycleStart:  cycleStart,
	}

	path, size, err := s.write(records, s.router.Route(pid, cycleStart))
	if err == nil {
		res.Path, res.Bytes = path, size
		return res, nil
	}

	s.logger.Warn("batch write failed",
		"partition", pid.String(),
		"seq", res.Seq,
		"first_offset", first,
		"last_offset", last,
		"error", err,
	)

	if s.dlq != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
		defer cancel()
		dlqErr := s.dlq.PublishBatch(ctx, records, err.Error())
		if dlqErr == nil {
			res.DeadLettered = true
			return res, nil
		}
		err = errors.Join(err, fmt.Errorf("dlq: %w", dlqErr))
	}

	return res, &apperrors.SinkError{
		PartitionID: pid,
		Seq:         res.Seq,
		FirstOffset: first,
		LastOffset:  last,
		Err:         err,
	}
}

// write attempts the storage write, retrying retryable failures.
func (s *Sink) write(records []event.Record, prefix string) (string, int64, error) {
	var err error
	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			s.sleep(s.cfg.RetryBackoff * time.Duration(attempt-1))
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WriteTimeout)
		var (
			path string
			size int64
		)
		path, size, err = s.writer.Write(ctx, records, prefix, s.cfg.Format)
		cancel()
		if err == nil {
			return path, size, nil
		}
		if !apperrors.IsRetryable(err) {
			break
		}
	}
	return "", 0, err
}
