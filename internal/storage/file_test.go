package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/jittakal/bufemit/internal/errors"
	"github.com/jittakal/bufemit/pkg/event"
)

func TestNewFileWriter(t *testing.T) {
	tests := []struct {
		name        string
		format      event.FileFormat
		compression string
		wantErr     bool
	}{
		{"parquet snappy", event.FormatParquet, "snappy", false},
		{"avro gzip", event.FormatAvro, "gzip", false},
		{"avro default codec", event.FormatAvro, "", false},
		{"avro snappy unsupported", event.FormatAvro, "snappy", true},
		{"unknown format", event.FileFormat("csv"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := NewFileWriter(FileConfig{BasePath: t.TempDir()}, tt.format, tt.compression, testLogger(), nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewFileWriter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if w != nil {
				w.Close()
			}
		})
	}
}

func TestFileWriter_Write(t *testing.T) {
	base := t.TempDir()
	metrics := &mockMetricsCollector{}
	w, err := NewFileWriter(FileConfig{BasePath: base}, event.FormatParquet, "snappy", testLogger(), metrics)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}
	defer w.Close()

	router := NewRouter("file", "local", "events", "")
	records := testRecords("orders", 2, 100, 101, 102)
	prefix := router.Route(event.PartitionID{Topic: "orders", Partition: 2}, records[0].Timestamp)

	path, size, err := w.Write(context.Background(), records, prefix, event.FormatParquet)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	want := filepath.Join(base, "local", "events", "orders", "dt=2024-05-02", "pid=2",
		"part-0000000000000000100-0000000000000000102.parquet")
	if path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != size {
		t.Errorf("size = %d, file is %d", size, info.Size())
	}
	if metrics.filesWritten != 1 || metrics.lastFormat != "parquet" {
		t.Errorf("metrics = %+v", metrics)
	}

	// Same offsets land on the same file.
	again, _, err := w.Write(context.Background(), records, prefix, event.FormatParquet)
	if err != nil {
		t.Fatalf("second Write() error = %v", err)
	}
	if again != path {
		t.Errorf("rewrite path = %q, want %q", again, path)
	}
}

func TestFileWriter_WriteErrors(t *testing.T) {
	w, err := NewFileWriter(FileConfig{BasePath: t.TempDir()}, event.FormatAvro, "gzip", testLogger(), nil)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}

	if _, _, err := w.Write(context.Background(), nil, "x/", event.FormatAvro); !errors.Is(err, apperrors.ErrEmptyBatch) {
		t.Errorf("empty batch error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := w.Write(ctx, testRecords("t", 0, 1), "x/", event.FormatAvro); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context error = %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if _, _, err := w.Write(context.Background(), testRecords("t", 0, 1), "x/", event.FormatAvro); !errors.Is(err, apperrors.ErrWriterClosed) {
		t.Errorf("closed writer error = %v", err)
	}
}

func TestFileWriter_AvroExtension(t *testing.T) {
	w, err := NewFileWriter(FileConfig{BasePath: t.TempDir()}, event.FormatAvro, "gzip", testLogger(), nil)
	if err != nil {
		t.Fatalf("NewFileWriter() error = %v", err)
	}
	defer w.Close()

	path, _, err := w.Write(context.Background(), testRecords("t", 0, 5), "file://b/t/", event.FormatAvro)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !strings.HasSuffix(path, ".avro.gz") {
		t.Errorf("path = %q, want .avro.gz suffix", path)
	}
}
