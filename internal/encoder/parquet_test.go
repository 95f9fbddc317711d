package encoder

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jittakal/bufemit/pkg/event"
	"github.com/parquet-go/parquet-go"
)

func TestParquetEncoder_Encode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.parquet")
	records := sampleRecords(5, 40)

	stats, err := NewParquetEncoder("snappy").Encode(path, records)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if stats.RecordCount != 5 {
		t.Errorf("RecordCount = %d, want 5", stats.RecordCount)
	}
	if stats.FirstOffset != 40 || stats.LastOffset != 44 {
		t.Errorf("offsets = [%d, %d], want [40, 44]", stats.FirstOffset, stats.LastOffset)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if stats.SizeBytes != info.Size() {
		t.Errorf("SizeBytes = %d, file is %d", stats.SizeBytes, info.Size())
	}

	rows, err := parquet.ReadFile[RecordParquet](path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(rows) != len(records) {
		t.Fatalf("rows = %d, want %d", len(rows), len(records))
	}
	for i, row := range rows {
		want := records[i]
		if row.Topic != want.Topic || row.Partition != want.Partition || row.Offset != want.Offset {
			t.Errorf("row %d = %s/%d@%d", i, row.Topic, row.Partition, row.Offset)
		}
		if string(row.Value) != string(want.Value) {
			t.Errorf("row %d value = %q, want %q", i, row.Value, want.Value)
		}
		if !row.Timestamp.Equal(want.Timestamp) {
			t.Errorf("row %d timestamp = %v, want %v", i, row.Timestamp, want.Timestamp)
		}
		var headers map[string]string
		if err := json.Unmarshal([]byte(row.Headers), &headers); err != nil {
			t.Fatalf("headers not JSON: %v", err)
		}
		if headers["source"] != "test" {
			t.Errorf("row %d headers = %v", i, headers)
		}
	}
}

func TestParquetEncoder_NullKeyAndMissingTimestamp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nulls.parquet")
	records := sampleRecords(1, 0)
	records[0].Key = nil
	records[0].Headers = nil
	records[0].Timestamp = time.Time{}

	if _, err := NewParquetEncoder("zstd").Encode(path, records); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	rows, err := parquet.ReadFile[RecordParquet](path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(rows[0].Key) != 0 {
		t.Errorf("key = %q, want empty", rows[0].Key)
	}
	if rows[0].Headers != "{}" {
		t.Errorf("headers = %q, want {}", rows[0].Headers)
	}
	if !rows[0].Timestamp.Equal(records[0].ReceivedAt) {
		t.Errorf("timestamp = %v, want received time %v", rows[0].Timestamp, records[0].ReceivedAt)
	}
}

func TestParquetEncoder_CompressionCodecs(t *testing.T) {
	dir := t.TempDir()
	records := sampleRecords(20, 0)

	for _, codec := range []string{"snappy", "gzip", "lz4", "zstd", "uncompressed"} {
		t.Run(codec, func(t *testing.T) {
			path := filepath.Join(dir, codec+".parquet")
			if _, err := NewParquetEncoder(codec).Encode(path, records); err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			rows, err := parquet.ReadFile[RecordParquet](path)
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if len(rows) != 20 {
				t.Errorf("rows = %d, want 20", len(rows))
			}
		})
	}
}

func TestParquetEncoder_EmptyBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.parquet")
	if _, err := NewParquetEncoder("snappy").Encode(path, nil); err == nil {
		t.Error("expected error for empty batch")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("no file should be created for an empty batch")
	}
}

func TestParquetEncoder_Format(t *testing.T) {
	enc := NewParquetEncoder("snappy")
	if enc.Format() != event.FormatParquet {
		t.Errorf("Format() = %v", enc.Format())
	}
	if enc.FileExtension() != ".parquet" {
		t.Errorf("FileExtension() = %v", enc.FileExtension())
	}
}
