package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jittakal/bufemit/pkg/emitter"
	"github.com/jittakal/bufemit/pkg/event"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Consumer metrics
	MessagesConsumed   *prometheus.CounterVec
	OffsetCommits      *prometheus.CounterVec
	Rebalances         *prometheus.CounterVec
	RebalanceDuration  *prometheus.HistogramVec
	PartitionsAssigned *prometheus.GaugeVec
	CommitLatency      *prometheus.HistogramVec

	// Emitter metrics
	RecordsRejected  *prometheus.CounterVec
	Cycles           *prometheus.CounterVec
	DroppedWrites    *prometheus.CounterVec
	BatchSize        *prometheus.HistogramVec
	DispatchDuration *prometheus.HistogramVec
	DispatchErrors   *prometheus.CounterVec
	ActiveEmitters   prometheus.Gauge

	// Storage metrics
	FilesWritten         *prometheus.CounterVec
	StorageWriteDuration *prometheus.HistogramVec
	FileSize             *prometheus.HistogramVec
	StorageErrors        *prometheus.CounterVec
	DLQPublished         *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		// Consumer metrics
		MessagesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_messages_consumed_total",
				Help: "Total number of messages consumed from Kafka",
			},
			[]string{"topic", "partition"},
		),
		OffsetCommits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_offset_commit_total",
				Help: "Total number of offset commits",
			},
			[]string{"topic", "partition", "status"},
		),
		Rebalances: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_rebalance_total",
				Help: "Total number of consumer group rebalances",
			},
			[]string{"group"},
		),
		RebalanceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kafka_rebalance_duration_seconds",
				Help:    "Duration of consumer group rebalances",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"group"},
		),
		PartitionsAssigned: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kafka_partitions_assigned",
				Help: "Number of partitions currently assigned to this consumer",
			},
			[]string{"topic"},
		),
		CommitLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kafka_commit_latency_seconds",
				Help:    "Latency of offset commit operations",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"topic", "partition"},
		),

		// Emitter metrics
		RecordsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "records_rejected_total",
				Help: "Total number of records rejected before buffering",
			},
			[]string{"topic", "reason"},
		),
		Cycles: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emitter_cycles_total",
				Help: "Total number of buffer cycles emitted",
			},
			[]string{"topic", "partition", "mode"},
		),
		DroppedWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emitter_dropped_writes_total",
				Help: "Total number of writes dropped during cooldown",
			},
			[]string{"topic", "partition"},
		),
		BatchSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "emitter_batch_records",
				Help:    "Number of records per emitted batch",
				Buckets: prometheus.ExponentialBuckets(10, 2, 12),
			},
			[]string{"topic", "partition"},
		),
		DispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "emitter_dispatch_duration_seconds",
				Help:    "Duration from dispatch to completion of a batch",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"topic", "mode"},
		),
		DispatchErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emitter_dispatch_errors_total",
				Help: "Total number of batches whose processing failed",
			},
			[]string{"topic", "partition", "mode"},
		),
		ActiveEmitters: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "emitter_active",
				Help: "Number of partition emitters currently open",
			},
		),

		// Storage metrics
		FilesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "files_written_total",
				Help: "Total number of files written to storage",
			},
			[]string{"topic", "partition", "format", "status"},
		),
		StorageWriteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storage_write_duration_seconds",
				Help:    "Duration of complete storage write operations including encoding",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"topic", "partition"},
		),
		FileSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "file_size_bytes",
				Help:    "Size of files written to storage",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KB to 256MB
			},
			[]string{"topic", "partition", "format"},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_errors_total",
				Help: "Total number of storage errors",
			},
			[]string{"backend", "error_type"},
		),
		DLQPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dlq_records_published_total",
				Help: "Total number of records published to the dead letter queue",
			},
			[]string{"topic", "reason", "status"},
		),
	}
}

func partitionLabel(partition int32) string {
	return strconv.FormatInt(int64(partition), 10)
}

// IncMessagesConsumed increments messages consumed counter.
func (m *Metrics) IncMessagesConsumed(topic string, partition int32) {
	m.MessagesConsumed.WithLabelValues(topic, partitionLabel(partition)).Inc()
}

// IncRebalances increments rebalances counter.
func (m *Metrics) IncRebalances(groupID string) {
	m.Rebalances.WithLabelValues(groupID).Inc()
}

// IncOffsetCommits increments offset commits counter.
func (m *Metrics) IncOffsetCommits(topic string, partition int32, status string) {
	m.OffsetCommits.WithLabelValues(topic, partitionLabel(partition), status).Inc()
}

// ObserveRebalanceDuration observes rebalance duration.
func (m *Metrics) ObserveRebalanceDuration(groupID string, duration float64) {
	m.RebalanceDuration.WithLabelValues(groupID).Observe(duration)
}

// ObserveCommitLatency observes commit latency.
func (m *Metrics) ObserveCommitLatency(topic string, partition int32, duration float64) {
	m.CommitLatency.WithLabelValues(topic, partitionLabel(partition)).Observe(duration)
}

// SetPartitionsAssigned sets partitions assigned gauge.
func (m *Metrics) SetPartitionsAssigned(topic string, count float64) {
	m.PartitionsAssigned.WithLabelValues(topic).Set(count)
}

// IncRecordsRejected counts a record refused by validation or buffering.
func (m *Metrics) IncRecordsRejected(topic string, reason string) {
	m.RecordsRejected.WithLabelValues(topic, reason).Inc()
}

// SetActiveEmitters sets the number of open partition emitters.
func (m *Metrics) SetActiveEmitters(n int) {
	m.ActiveEmitters.Set(float64(n))
}

// IncFilesWritten increments files written counter.
func (m *Metrics) IncFilesWritten(topic string, partition int32, format string, status string) {
	m.FilesWritten.WithLabelValues(topic, partitionLabel(partition), format, status).Inc()
}

// ObserveFileSize observes file size.
func (m *Metrics) ObserveFileSize(topic string, partition int32, format string, size float64) {
	m.FileSize.WithLabelValues(topic, partitionLabel(partition), format).Observe(size)
}

// ObserveStorageWriteDuration observes storage write duration.
func (m *Metrics) ObserveStorageWriteDuration(topic string, partition int32, duration float64) {
	m.StorageWriteDuration.WithLabelValues(topic, partitionLabel(partition)).Observe(duration)
}

// IncStorageErrors increments storage errors counter.
func (m *Metrics) IncStorageErrors(backend string, operation string) {
	m.StorageErrors.WithLabelValues(backend, operation).Inc()
}

// IncDLQPublished counts a record sent to the dead letter queue.
func (m *Metrics) IncDLQPublished(topic string, reason string, status string) {
	m.DLQPublished.WithLabelValues(topic, reason, status).Inc()
}

// ForPartition returns an emitter.MetricsCollector that labels emitter
// telemetry with the given partition.
func (m *Metrics) ForPartition(pid event.PartitionID) emitter.MetricsCollector {
	return &partitionMetrics{
		metrics:   m,
		topic:     pid.Topic,
		partition: partitionLabel(pid.Partition),
	}
}

type partitionMetrics struct {
	metrics   *Metrics
	topic     string
	partition string
}

var _ emitter.MetricsCollector = (*partitionMetrics)(nil)

func (p *partitionMetrics) IncCycles(mode string) {
	p.metrics.Cycles.WithLabelValues(p.topic, p.partition, mode).Inc()
}

func (p *partitionMetrics) IncDroppedWrites() {
	p.metrics.DroppedWrites.WithLabelValues(p.topic, p.partition).Inc()
}

func (p *partitionMetrics) ObservePayloadSize(size int) {
	p.metrics.BatchSize.WithLabelValues(p.topic, p.partition).Observe(float64(size))
}

func (p *partitionMetrics) ObserveDispatchDuration(mode string, seconds float64) {
	p.metrics.DispatchDuration.WithLabelValues(p.topic, mode).Observe(seconds)
}

func (p *partitionMetrics) IncDispatchErrors(mode string) {
	p.metrics.DispatchErrors.WithLabelValues(p.topic, p.partition, mode).Inc()
}
