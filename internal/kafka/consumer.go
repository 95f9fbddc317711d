// Package kafka implements the Sarama consumer group that feeds partition
// emitters and the dead letter queue producer.
package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/jittakal/bufemit/internal/errors"
	"github.com/jittakal/bufemit/pkg/consumer"
	"github.com/jittakal/bufemit/pkg/event"
)

var _ consumer.Consumer = (*SaramaConsumer)(nil)

// ConsumerConfig contains Kafka consumer configuration.
type ConsumerConfig struct {
	BootstrapServers    []string
	GroupID             string
	Security            SecurityConfig
	AutoOffsetReset     string
	EnableAutoCommit    bool
	MaxPollIntervalMS   int
	SessionTimeoutMS    int
	HeartbeatIntervalMS int
	ChannelBufferSize   int
}

// MetricsCollector defines metrics operations for Kafka consumer.
type MetricsCollector interface {
	IncMessagesConsumed(topic string, partition int32)
	IncRebalances(groupID string)
	IncOffsetCommits(topic string, partition int32, status string)
	ObserveRebalanceDuration(groupID string, duration float64)
	ObserveCommitLatency(topic string, partition int32, duration float64)
	SetPartitionsAssigned(topic string, count float64)
}

// SaramaConsumer reads records through a Sarama consumer group. Offsets are
// only marked through Commit, once the batch holding them is persisted.
type SaramaConsumer struct {
	consumerGroup sarama.ConsumerGroup
	config        ConsumerConfig
	logger        *slog.Logger
	metrics       MetricsCollector
	topics        []string
	ready         chan struct{}

	mu       sync.RWMutex
	closed   bool
	session  sarama.ConsumerGroupSession
	onRevoke func([]event.PartitionID)
}

// saramaConfig translates cfg into a Sarama client configuration.
func saramaConfig(cfg ConsumerConfig) (*sarama.Config, error) {
	sc := sarama.NewConfig()
	sc.Version = sarama.V2_8_0_0
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = offsetInitial(cfg.AutoOffsetReset)
	sc.Consumer.Offsets.AutoCommit.Enable = cfg.EnableAutoCommit
	sc.Consumer.Return.Errors = true

	if cfg.SessionTimeoutMS > 0 {
		sc.Consumer.Group.Session.Timeout = time.Duration(cfg.SessionTimeoutMS) * time.Millisecond
	}
	if cfg.HeartbeatIntervalMS > 0 {
		sc.Consumer.Group.Heartbeat.Interval = time.Duration(cfg.HeartbeatIntervalMS) * time.Millisecond
	}
	if cfg.MaxPollIntervalMS > 0 {
		sc.Consumer.MaxProcessingTime = time.Duration(cfg.MaxPollIntervalMS) * time.Millisecond
	} else {
		sc.Consumer.MaxProcessingTime = 5 * time.Minute
	}
	if cfg.ChannelBufferSize > 0 {
		sc.ChannelBufferSize = cfg.ChannelBufferSize
	}

	if err := configureSecurity(sc, cfg.Security); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}
	return sc, nil
}

// NewSaramaConsumer creates a new Kafka consumer using Sarama library.
func NewSaramaConsumer(
	config ConsumerConfig,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*SaramaConsumer, error) {
	sc, err := saramaConfig(config)
	if err != nil {
		return nil, err
	}

	group, err := sarama.NewConsumerGroup(config.BootstrapServers, config.GroupID, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	logger.Info("kafka consumer created",
		"group_id", config.GroupID,
		"bootstrap_servers", config.BootstrapServers,
		"session_timeout_ms", config.SessionTimeoutMS,
		"max_poll_interval_ms", config.MaxPollIntervalMS,
	)

	return newSaramaConsumer(group, config, logger, metrics), nil
}

func newSaramaConsumer(group sarama.ConsumerGroup, config ConsumerConfig, logger *slog.Logger, metrics MetricsCollector) *SaramaConsumer {
	return &SaramaConsumer{
		consumerGroup: group,
		config:        config,
		logger:        logger,
		metrics:       metrics,
		ready:         make(chan struct{}),
	}
}

// Subscribe subscribes to the specified topics.
func (c *SaramaConsumer) Subscribe(ctx context.Context, topics []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrConsumerClosed
	}

	c.topics = topics
	c.logger.Info("subscribed to topics", "topics", topics)
	return nil
}

// OnRevoke registers the handler run from the group session cleanup.
func (c *SaramaConsumer) OnRevoke(fn func([]event.PartitionID)) {
	c.mu.Lock()
	c.onRevoke = fn
	c.mu.Unlock()
}

// Consume joins the group and streams records until ctx is cancelled or the
// group fails. It returns once the first session is set up.
func (c *SaramaConsumer) Consume(ctx context.Context) (<-chan *event.Record, <-chan error, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, nil, errors.ErrConsumerClosed
	}
	topics := c.topics
	c.mu.RUnlock()

	records := make(chan *event.Record, 100)
	errs := make(chan error, 10)

	handler := &consumerGroupHandler{
		consumer: c,
		records:  records,
		ready:    c.ready,
	}

	go func() {
		defer close(records)
		defer close(errs)

		for ctx.Err() == nil {
			if err := c.consumerGroup.Consume(ctx, topics, handler); err != nil {
				c.logger.Error("consumer group error", "error", err)
				errs <- err
				return
			}
		}
		c.logger.Info("consumer context cancelled")
	}()

	go func() {
		for err := range c.consumerGroup.Errors() {
			c.logger.Warn("consumer group reported error", "error", err)
		}
	}()

	select {
	case <-c.ready:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}

	c.logger.Info("kafka consumer started and ready")
	return records, errs, nil
}

// Commit marks offset+1 as the next offset to read for partition on the
// active session, flushing it at once unless auto-commit is enabled. It is a
// no-op when the partition is no longer claimed.
func (c *SaramaConsumer) Commit(ctx context.Context, partition event.PartitionID, offset int64) error {
	start := time.Now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return errors.ErrConsumerClosed
	}
	if c.session == nil || !claims(c.session, partition) {
		c.logger.Debug("skipping commit for unclaimed partition",
			"partition", partition.String(),
			"offset", offset,
		)
		return nil
	}

	c.session.MarkOffset(partition.Topic, partition.Partition, offset+1, "")
	if !c.config.EnableAutoCommit {
		c.session.Commit()
	}

	if c.metrics != nil {
		c.metrics.ObserveCommitLatency(partition.Topic, partition.Partition, time.Since(start).Seconds())
		c.metrics.IncOffsetCommits(partition.Topic, partition.Partition, "success")
	}
	return nil
}

func claims(session sarama.ConsumerGroupSession, pid event.PartitionID) bool {
	for _, p := range session.Claims()[pid.Topic] {
		if p == pid.Partition {
			return true
		}
	}
	return false
}

// Close closes the consumer and releases resources.
func (c *SaramaConsumer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.logger.Info("closing kafka consumer")
	if err := c.consumerGroup.Close(); err != nil {
		c.logger.Error("error closing consumer group", "error", err)
		return err
	}
	c.logger.Info("kafka consumer closed")
	return nil
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler.
type consumerGroupHandler struct {
	consumer       *SaramaConsumer
	records        chan<- *event.Record
	ready          chan struct{}
	readyOnce      sync.Once
	rebalanceStart time.Time
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (h *consumerGroupHandler) Setup(session sarama.ConsumerGroupSession) error {
	c := h.consumer
	h.rebalanceStart = time.Now()

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	c.logger.Info("consumer group session setup",
		"member_id", session.MemberID(),
		"generation_id", session.GenerationID(),
		"claims", session.Claims(),
	)

	if c.metrics != nil {
		c.metrics.IncRebalances(c.config.GroupID)
		for topic, partitions := range session.Claims() {
			c.metrics.SetPartitionsAssigned(topic, float64(len(partitions)))
		}
	}

	h.readyOnce.Do(func() { close(h.ready) })
	return nil
}

// Cleanup runs once every ConsumeClaim has returned. The revoke handler runs
// while the session can still mark offsets.
func (h *consumerGroupHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	c := h.consumer

	c.mu.RLock()
	onRevoke := c.onRevoke
	c.mu.RUnlock()

	if onRevoke != nil {
		onRevoke(claimedPartitions(session.Claims()))
	}

	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()

	if c.metrics != nil && !h.rebalanceStart.IsZero() {
		c.metrics.ObserveRebalanceDuration(c.config.GroupID, time.Since(h.rebalanceStart).Seconds())
	}
	c.logger.Info("consumer group session cleanup", "member_id", session.MemberID())
	return nil
}

func claimedPartitions(claims map[string][]int32) []event.PartitionID {
	var out []event.PartitionID
	for topic, partitions := range claims {
		for _, p := range partitions {
			out = append(out, event.PartitionID{Topic: topic, Partition: p})
		}
	}
	return out
}

// ConsumeClaim forwards the messages of one partition.
func (h *consumerGroupHandler) ConsumeClaim(
	session sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim,
) error {
	c := h.consumer
	c.logger.Info("started consuming partition",
		"topic", claim.Topic(),
		"partition", claim.Partition(),
		"initial_offset", claim.InitialOffset(),
	)

	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			record := toRecord(message, time.Now())
			select {
			case h.records <- record:
				if c.metrics != nil {
					c.metrics.IncMessagesConsumed(message.Topic, message.Partition)
				}
			case <-session.Context().Done():
				return nil
			}

		case <-session.Context().Done():
			c.logger.Info("session context done, stopping partition consumption",
				"topic", claim.Topic(),
				"partition", claim.Partition(),
			)
			return nil
		}
	}
}

// toRecord converts a Sarama message. Key and value are kept as received.
func toRecord(message *sarama.ConsumerMessage, receivedAt time.Time) *event.Record {
	var headers map[string]string
	if len(message.Headers) > 0 {
		headers = make(map[string]string, len(message.Headers))
		for _, h := range message.Headers {
			if h != nil {
				headers[string(h.Key)] = string(h.Value)
			}
		}
	}
	return &event.Record{
		Topic:      message.Topic,
		Partition:  message.Partition,
		Offset:     message.Offset,
		Key:        message.Key,
		Value:      message.Value,
		Headers:    headers,
		Timestamp:  message.Timestamp,
		ReceivedAt: receivedAt,
	}
}
