package encoder_test

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jittakal/bufemit/internal/encoder"
	"github.com/jittakal/bufemit/pkg/event"
)

func exampleRecords() []event.Record {
	now := time.Now()
	return []event.Record{
		{Topic: "example-topic", Partition: 0, Offset: 100, Value: []byte(`{"message":"hello"}`), Timestamp: now, ReceivedAt: now},
		{Topic: "example-topic", Partition: 0, Offset: 101, Value: []byte(`{"message":"world"}`), Timestamp: now, ReceivedAt: now},
	}
}

func Example_parquetEncoder() {
	enc := encoder.NewParquetEncoder("snappy")

	dir, _ := os.MkdirTemp("", "encoder-example")
	defer os.RemoveAll(dir)

	stats, err := enc.Encode(filepath.Join(dir, "batch.parquet"), exampleRecords())
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	fmt.Printf("Encoded %d records, offsets %d-%d\n", stats.RecordCount, stats.FirstOffset, stats.LastOffset)
	fmt.Printf("File extension: %s\n", enc.FileExtension())

	// Output:
	// Encoded 2 records, offsets 100-101
	// File extension: .parquet
}

func Example_encoderFactory() {
	enc, err := encoder.NewFactory(event.FormatAvro, "").CreateEncoder()
	if err != nil {
		fmt.Println("Error:", err)
		return
	}

	fmt.Printf("Format: %s\n", enc.Format())
	fmt.Printf("File extension: %s\n", enc.FileExtension())

	// Output:
	// Format: avro
	// File extension: .avro.gz
}
