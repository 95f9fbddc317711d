// Package event defines the record types exchanged between the Kafka
// consumer, the partition emitters and the storage sink.
//
// # Records
//
// Record carries a Kafka message and its metadata:
//
//	record := event.Record{
//	    Topic:     "orders",
//	    Partition: 0,
//	    Offset:    12345,
//	    Key:       []byte("order-1"),
//	    Value:     []byte(`{"total": 10}`),
//	    Timestamp: time.Now(),
//	}
//
// Records are buffered per partition and handed to the sink as []Record
// batches. Every field is msgpack-tagged so a batch can be sent to an
// isolated worker.
//
// # Partition Identification
//
//	pid := record.PartitionID()
//	key := pid.String() // "orders-0"
//
// # File Formats
//
//	event.FormatParquet  // Columnar format for analytics
//	event.FormatAvro     // Row-based format with schema
package event
