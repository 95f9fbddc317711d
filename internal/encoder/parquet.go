package encoder

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jittakal/bufemit/pkg/encoder"
	"github.com/jittakal/bufemit/pkg/event"
	"github.com/parquet-go/parquet-go"
)

var _ encoder.Encoder = (*ParquetEncoder)(nil)

// RecordParquet is the Parquet row layout of a buffered Kafka record.
// Timestamps use TIMESTAMP_MICROS so the files stay queryable from Athena.
type RecordParquet struct {
	Topic      string    `parquet:"topic,dict"`
	Partition  int32     `parquet:"partition"`
	Offset     int64     `parquet:"offset"`
	Key        []byte    `parquet:"key,optional"`
	Value      []byte    `parquet:"value"`
	Headers    string    `parquet:"headers"`
	Timestamp  time.Time `parquet:"timestamp,timestamp(microsecond)"`
	ReceivedAt time.Time `parquet:"received_at,timestamp(microsecond)"`
}

// ParquetEncoder writes record batches as Apache Parquet files.
// Supported codecs are SNAPPY (default), GZIP, LZ4 and ZSTD.
type ParquetEncoder struct {
	compressionName string
}

// NewParquetEncoder creates a new Parquet encoder with specified compression.
func NewParquetEncoder(compression string) *ParquetEncoder {
	return &ParquetEncoder{
		compressionName: compression,
	}
}

func compressionCodec(compression string) parquet.WriterOption {
	switch compression {
	case "snappy", "SNAPPY":
		return parquet.Compression(&parquet.Snappy)
	case "gzip", "GZIP":
		return parquet.Compression(&parquet.Gzip)
	case "lz4", "LZ4":
		return parquet.Compression(&parquet.Lz4Raw)
	case "zstd", "ZSTD":
		return parquet.Compression(&parquet.Zstd)
	case "uncompressed", "UNCOMPRESSED", "none", "NONE":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Snappy)
	}
}

// Encode writes records to a Parquet file at filePath.
func (e *ParquetEncoder) Encode(filePath string, records []event.Record) (*event.FileStats, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	rows := make([]RecordParquet, len(records))
	for i := range records {
		row, err := toParquetRow(&records[i])
		if err != nil {
			return nil, fmt.Errorf("failed to convert record %d: %w", i, err)
		}
		rows[i] = row
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	writer := parquet.NewGenericWriter[RecordParquet](
		file,
		parquet.SchemaOf(new(RecordParquet)),
		compressionCodec(e.compressionName),
		parquet.CreatedBy("bufemit", "1.0", "0"),
	)

	if _, err := writer.Write(rows); err != nil {
		writer.Close()
		file.Close()
		return nil, fmt.Errorf("failed to write records: %w", err)
	}
	if err := writer.Close(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	first, last := event.OffsetRange(records)
	return &event.FileStats{
		RecordCount: len(records),
		SizeBytes:   info.Size(),
		FirstOffset: first,
		LastOffset:  last,
	}, nil
}

func toParquetRow(r *event.Record) (RecordParquet, error) {
	headers, err := headersJSON(r.Headers)
	if err != nil {
		return RecordParquet{}, err
	}
	return RecordParquet{
		Topic:      r.Topic,
		Partition:  r.Partition,
		Offset:     r.Offset,
		Key:        r.Key,
		Value:      r.Value,
		Headers:    headers,
		Timestamp:  r.EventTime(),
		ReceivedAt: r.ReceivedAt,
	}, nil
}

// headersJSON renders headers as a JSON object; nil headers become "{}".
func headersJSON(h map[string]string) (string, error) {
	if len(h) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("failed to marshal headers: %w", err)
	}
	return string(b), nil
}

// Format returns the file format.
func (e *ParquetEncoder) Format() event.FileFormat {
	return event.FormatParquet
}

// FileExtension returns the file extension.
func (e *ParquetEncoder) FileExtension() string {
	return ".parquet"
}
