// Package event defines the record types that flow from Kafka through the
// partition emitters into storage.
package event

import (
	"fmt"
	"time"
)

// Record is a single Kafka message as buffered by a partition emitter.
// Field tags keep records transferable to process-mode workers.
type Record struct {
	Topic      string            `msgpack:"topic"`
	Partition  int32             `msgpack:"partition"`
	Offset     int64             `msgpack:"offset"`
	Key        []byte            `msgpack:"key"`
	Value      []byte            `msgpack:"value"`
	Headers    map[string]string `msgpack:"headers"`
	Timestamp  time.Time         `msgpack:"timestamp"`
	ReceivedAt time.Time         `msgpack:"received_at"`
}

// PartitionID uniquely identifies a Kafka partition.
type PartitionID struct {
	Topic     string
	Partition int32
}

// String returns a string representation of the partition ID in the format "topic-partition".
func (p PartitionID) String() string {
	return fmt.Sprintf("%s-%d", p.Topic, p.Partition)
}

// PartitionID returns the partition the record was read from.
func (r *Record) PartitionID() PartitionID {
	return PartitionID{Topic: r.Topic, Partition: r.Partition}
}

// Size returns the payload size of the record in bytes.
func (r *Record) Size() int {
	return len(r.Key) + len(r.Value)
}

// EventTime returns the producer timestamp, falling back to the time the
// record was received when the producer did not set one.
func (r *Record) EventTime() time.Time {
	if r.Timestamp.IsZero() {
		return r.ReceivedAt
	}
	return r.Timestamp
}

// FileStats describes one encoded batch file.
type FileStats struct {
	RecordCount int
	SizeBytes   int64
	FirstOffset int64
	LastOffset  int64
}

// FileFormat represents the storage file format.
type FileFormat string

const (
	FormatParquet FileFormat = "parquet"
	FormatAvro    FileFormat = "avro"
)

// Validator validates records before they are buffered.
type Validator interface {
	Validate(record *Record) error
}

// OffsetRange returns the first and last offsets of records.
// Both are -1 for an empty slice.
func OffsetRange(records []Record) (first, last int64) {
	if len(records) == 0 {
		return -1, -1
	}
	first, last = records[0].Offset, records[0].Offset
	for _, r := range records[1:] {
		if r.Offset < first {
			first = r.Offset
		}
		if r.Offset > last {
			last = r.Offset
		}
	}
	return first, last
}
