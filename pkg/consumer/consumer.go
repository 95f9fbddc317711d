// Package consumer defines interfaces for Kafka record consumption.
//
// This package provides abstractions for consuming records from Kafka
// and routing rejected records to a dead letter queue.
package consumer

import (
	"context"

	"github.com/jittakal/bufemit/pkg/event"
)

// Consumer reads records from Kafka topics.
type Consumer interface {
	// Subscribe subscribes to one or more topics.
	Subscribe(ctx context.Context, topics []string) error

	// Consume starts consuming messages from subscribed topics.
	// Returns channels for records and errors.
	Consume(ctx context.Context) (<-chan *event.Record, <-chan error, error)

	// Commit marks every record of partition up to and including offset as
	// processed. Call it only once those records are persisted.
	Commit(ctx context.Context, partition event.PartitionID, offset int64) error

	// OnRevoke registers fn to run when partitions are taken away by a
	// rebalance, before another member can claim them.
	OnRevoke(fn func(partitions []event.PartitionID))

	// Close closes the consumer and releases resources.
	Close() error
}

// DLQPublisher publishes failed records to a dead letter queue.
type DLQPublisher interface {
	// Publish sends a record to the DLQ with error information.
	Publish(ctx context.Context, record *event.Record, reason string) error

	// PublishBatch sends every record of a failed batch to the DLQ.
	PublishBatch(ctx context.Context, records []event.Record, reason string) error

	// Close closes the publisher and releases resources.
	Close() error
}
