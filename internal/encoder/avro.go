package encoder

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jittakal/bufemit/pkg/encoder"
	"github.com/jittakal/bufemit/pkg/event"
	"github.com/klauspost/compress/gzip"
	"github.com/linkedin/goavro/v2"
)

var _ encoder.Encoder = (*AvroEncoder)(nil)

// AvroEncoder writes record batches as Avro Object Container Files,
// optionally wrapped in gzip.
type AvroEncoder struct {
	codec       *goavro.Codec
	compression string
}

// NewAvroEncoder creates a new Avro encoder with specified compression.
func NewAvroEncoder(compression string) (*AvroEncoder, error) {
	codec, err := goavro.NewCodec(avroSchema)
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}

	return &AvroEncoder{
		codec:       codec,
		compression: compression,
	}, nil
}

const avroSchema = `{
	"type": "record",
	"name": "BufferedRecord",
	"namespace": "io.bufemit",
	"fields": [
		{"name": "topic", "type": "string"},
		{"name": "partition", "type": "int"},
		{"name": "offset", "type": "long"},
		{"name": "key", "type": ["null", "bytes"], "default": null},
		{"name": "value", "type": "bytes"},
		{"name": "headers", "type": {"type": "map", "values": "string"}},
		{"name": "timestamp", "type": "string"},
		{"name": "received_at", "type": "string"}
	]
}`

func (e *AvroEncoder) gzipped() bool {
	return strings.EqualFold(e.compression, "gzip")
}

// Encode writes records to an Avro file at filePath.
func (e *AvroEncoder) Encode(filePath string, records []event.Record) (*event.FileStats, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	if err := e.encodeTo(file, records); err != nil {
		file.Close()
		return nil, err
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

// EncodeToBytes encodes records into memory.
func (e *AvroEncoder) EncodeToBytes(records []event.Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	var buf bytes.Buffer
	if err := e.encodeTo(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *AvroEncoder) encodeTo(w io.Writer, records []event.Record) error {
	var gz *gzip.Writer
	if e.gzipped() {
		gz = gzip.NewWriter(w)
		w = gz
	}

	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:     w,
		Codec: e.codec,
	})
	if err != nil {
		return fmt.Errorf("failed to create OCF writer: %w", err)
	}

	datums := make([]interface{}, len(records))
	for i := range records {
		datums[i] = toAvroMap(&records[i])
	}
	if err := ocf.Append(datums); err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}

	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("failed to close gzip writer: %w", err)
		}
	}
	return nil
}

func toAvroMap(r *event.Record) map[string]interface{} {
	headers := make(map[string]interface{}, len(r.Headers))
	for k, v := range r.Headers {
		headers[k] = v
	}

	m := map[string]interface{}{
		"topic":       r.Topic,
		"partition":   r.Partition,
		"offset":      r.Offset,
		"value":       r.Value,
		"headers":     headers,
		"timestamp":   r.EventTime().Format(time.RFC3339Nano),
		"received_at": r.ReceivedAt.Format(time.RFC3339Nano),
	}
	if r.Key != nil {
		m["key"] = goavro.Union("bytes", r.Key)
	} else {
		m["key"] = nil
	}
	return m
}

// Format returns the file format.
func (e *AvroEncoder) Format() event.FileFormat {
	return event.FormatAvro
}

// FileExtension returns the file extension.
func (e *AvroEncoder) FileExtension() string {
	if e.gzipped() {
		return ".avro.gz"
	}
	return ".avro"
}
