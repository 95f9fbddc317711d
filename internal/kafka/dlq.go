package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/jittakal/bufemit/internal/errors"
	"github.com/jittakal/bufemit/pkg/consumer"
	"github.com/jittakal/bufemit/pkg/event"
)

var _ consumer.DLQPublisher = (*DLQPublisher)(nil)

// DLQMessage is the JSON envelope written to the dead letter topic.
type DLQMessage struct {
	OriginalTopic     string            `json:"original_topic"`
	OriginalPartition int32             `json:"original_partition"`
	OriginalOffset    int64             `json:"original_offset"`
	OriginalKey       []byte            `json:"original_key,omitempty"`
	OriginalValue     []byte            `json:"original_value"`
	OriginalHeaders   map[string]string `json:"original_headers,omitempty"`
	OriginalTimestamp time.Time         `json:"original_timestamp"`
	FailureReason     string            `json:"failure_reason"`
	FailureTimestamp  time.Time         `json:"failure_timestamp"`
	ProcessorID       string            `json:"processor_id"`
}

// DLQConfig contains DLQ configuration.
type DLQConfig struct {
	Enabled     bool
	TopicSuffix string
	MaxRetries  int
}

// DLQMetrics records DLQ publish outcomes.
type DLQMetrics interface {
	IncDLQPublished(topic string, reason string, status string)
}

// DLQPublisher publishes rejected records and failed batches to
// "<topic><suffix>". A disabled publisher accepts and discards everything.
type DLQPublisher struct {
	producer    sarama.SyncProducer
	config      DLQConfig
	logger      *slog.Logger
	metrics     DLQMetrics
	processorID string
	now         func() time.Time

	mu     sync.RWMutex
	closed bool
}

// NewDLQPublisher creates a new DLQ publisher.
func NewDLQPublisher(
	bootstrapServers []string,
	security SecurityConfig,
	dlqConfig DLQConfig,
	logger *slog.Logger,
	metrics DLQMetrics,
	processorID string,
) (*DLQPublisher, error) {
	if !dlqConfig.Enabled {
		logger.Info("DLQ is disabled")
		return newDLQPublisher(nil, dlqConfig, logger, metrics, processorID), nil
	}

	sc := sarama.NewConfig()
	sc.Version = sarama.V2_8_0_0
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 5
	if dlqConfig.MaxRetries > 0 {
		sc.Producer.Retry.Max = dlqConfig.MaxRetries
	}
	sc.Producer.Return.Successes = true
	sc.Producer.Return.Errors = true
	sc.Producer.Compression = sarama.CompressionSnappy
	sc.Producer.Idempotent = true
	sc.Net.MaxOpenRequests = 1

	if err := configureSecurity(sc, security); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}

	producer, err := sarama.NewSyncProducer(bootstrapServers, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync producer: %w", err)
	}

	logger.Info("DLQ publisher created",
		"bootstrap_servers", bootstrapServers,
		"topic_suffix", dlqConfig.TopicSuffix,
	)
	return newDLQPublisher(producer, dlqConfig, logger, metrics, processorID), nil
}

func newDLQPublisher(producer sarama.SyncProducer, cfg DLQConfig, logger *slog.Logger, metrics DLQMetrics, processorID string) *DLQPublisher {
	return &DLQPublisher{
		producer:    producer,
		config:      cfg,
		logger:      logger,
		metrics:     metrics,
		processorID: processorID,
		now:         time.Now,
	}
}

// Publish sends a single record to the DLQ.
func (p *DLQPublisher) Publish(ctx context.Context, record *event.Record, reason string) error {
	if record == nil {
		return nil
	}
	return p.PublishBatch(ctx, []event.Record{*record}, reason)
}

// PublishBatch sends every record of a failed batch in one producer call.
func (p *DLQPublisher) PublishBatch(ctx context.Context, records []event.Record, reason string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return errors.ErrPublisherClosed
	}
	if !p.config.Enabled || len(records) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msgs := make([]*sarama.ProducerMessage, 0, len(records))
	for i := range records {
		msg, err := p.message(&records[i], reason)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}

	topic := records[0].Topic
	if err := p.producer.SendMessages(msgs); err != nil {
		p.record(topic, reason, "failure")
		p.logger.Error("failed to publish to DLQ",
			"error", err,
			"dlq_topic", msgs[0].Topic,
			"records", len(msgs),
		)
		return fmt.Errorf("failed to send messages to DLQ: %w", err)
	}

	p.record(topic, reason, "success")
	first, last := event.OffsetRange(records)
	p.logger.Info("published records to DLQ",
		"dlq_topic", msgs[0].Topic,
		"records", len(msgs),
		"first_offset", first,
		"last_offset", last,
		"reason", reason,
	)
	return nil
}

func (p *DLQPublisher) record(topic, reason, status string) {
	if p.metrics != nil {
		p.metrics.IncDLQPublished(topic, reason, status)
	}
}

func (p *DLQPublisher) message(r *event.Record, reason string) (*sarama.ProducerMessage, error) {
	now := p.now().UTC()
	body, err := json.Marshal(DLQMessage{
		OriginalTopic:     r.Topic,
		OriginalPartition: r.Partition,
		OriginalOffset:    r.Offset,
		OriginalKey:       r.Key,
		OriginalValue:     r.Value,
		OriginalHeaders:   r.Headers,
		OriginalTimestamp: r.Timestamp,
		FailureReason:     reason,
		FailureTimestamp:  now,
		ProcessorID:       p.processorID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal DLQ message: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: r.Topic + p.config.TopicSuffix,
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("failure_reason"), Value: []byte(reason)},
			{Key: []byte("original_topic"), Value: []byte(r.Topic)},
			{Key: []byte("processor_id"), Value: []byte(p.processorID)},
		},
		Timestamp: now,
	}
	if r.Key != nil {
		msg.Key = sarama.ByteEncoder(r.Key)
	}
	return msg, nil
}

// Close closes the DLQ publisher.
func (p *DLQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.logger.Info("closing DLQ publisher")

	if p.producer != nil {
		if err := p.producer.Close(); err != nil {
			p.logger.Error("error closing producer", "error", err)
			return err
		}
	}
	return nil
}
