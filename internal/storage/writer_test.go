package storage

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	apperrors "github.com/jittakal/bufemit/internal/errors"
	"github.com/jittakal/bufemit/pkg/event"
)

// mockMetricsCollector implements MetricsCollector for testing
type mockMetricsCollector struct {
	mu                 sync.Mutex
	filesWritten       int
	fileSizes          []float64
	storageDurations   []float64
	storageErrors      int
	lastTopic          string
	lastPartition      int32
	lastFormat         string
	lastErrorBackend   string
	lastErrorOperation string
}

func (m *mockMetricsCollector) IncFilesWritten(topic string, partition int32, format string, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filesWritten++
	m.lastTopic = topic
	m.lastPartition = partition
	m.lastFormat = format
}

func (m *mockMetricsCollector) ObserveFileSize(topic string, partition int32, format string, size float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fileSizes = append(m.fileSizes, size)
}

func (m *mockMetricsCollector) ObserveStorageWriteDuration(topic string, partition int32, duration float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storageDurations = append(m.storageDurations, duration)
}

func (m *mockMetricsCollector) IncStorageErrors(backend string, operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.storageErrors++
	m.lastErrorBackend = backend
	m.lastErrorOperation = operation
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRecords(topic string, partition int32, offsets ...int64) []event.Record {
	now := time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC)
	records := make([]event.Record, len(offsets))
	for i, off := range offsets {
		records[i] = event.Record{
			Topic:      topic,
			Partition:  partition,
			Offset:     off,
			Value:      []byte(`{"ok":true}`),
			Timestamp:  now,
			ReceivedAt: now,
		}
	}
	return records
}

func TestObjectName(t *testing.T) {
	got := objectName(testRecords("t", 0, 12, 10, 11), ".parquet")
	want := "part-0000000000000000010-0000000000000000012.parquet"
	if got != want {
		t.Errorf("objectName() = %q, want %q", got, want)
	}
}

func TestObjectKey(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		scheme string
		want   string
	}{
		{"full uri", "s3://bucket/events/orders/dt=2024-05-02/pid=3/", "s3", "events/orders/dt=2024-05-02/pid=3/"},
		{"bucket only", "gs://bucket", "gs", ""},
		{"bucket root", "wasbs://container/", "wasbs", ""},
		{"bare prefix", "/events/orders/", "s3", "events/orders/"},
		{"other scheme kept", "gs://bucket/x/", "s3", "gs://bucket/x/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := objectKey(tt.path, tt.scheme); got != tt.want {
				t.Errorf("objectKey(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestJoinKey(t *testing.T) {
	tests := []struct {
		prefix, name, want string
	}{
		{"", "a.avro", "a.avro"},
		{"events/", "a.avro", "events/a.avro"},
		{"/events", "a.avro", "events/a.avro"},
	}
	for _, tt := range tests {
		if got := joinKey(tt.prefix, tt.name); got != tt.want {
			t.Errorf("joinKey(%q, %q) = %q, want %q", tt.prefix, tt.name, got, tt.want)
		}
	}
}

func TestCheckBatch(t *testing.T) {
	if err := checkBatch(nil, false); !errors.Is(err, apperrors.ErrEmptyBatch) {
		t.Errorf("empty batch error = %v", err)
	}
	if err := checkBatch(testRecords("t", 0, 1), true); !errors.Is(err, apperrors.ErrWriterClosed) {
		t.Errorf("closed writer error = %v", err)
	}
	if err := checkBatch(testRecords("t", 0, 1), false); err != nil {
		t.Errorf("checkBatch() = %v", err)
	}
}

func TestBatchReporter(t *testing.T) {
	metrics := &mockMetricsCollector{}
	r := batchReporter{backend: "s3", metrics: metrics}

	err := r.fail("upload", "events/x", errors.New("boom"))
	var storageErr *apperrors.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("fail() = %T, want *StorageError", err)
	}
	if !storageErr.IsRetryable() {
		t.Error("upload failures should be retryable")
	}
	if metrics.lastErrorBackend != "s3" || metrics.lastErrorOperation != "upload" {
		t.Errorf("error metric = %s/%s", metrics.lastErrorBackend, metrics.lastErrorOperation)
	}

	r.success(testRecords("orders", 4, 1, 2), event.FormatAvro, 512, time.Now())
	if metrics.filesWritten != 1 || metrics.lastTopic != "orders" || metrics.lastPartition != 4 {
		t.Errorf("files metric = %d %s/%d", metrics.filesWritten, metrics.lastTopic, metrics.lastPartition)
	}
	if len(metrics.fileSizes) != 1 || metrics.fileSizes[0] != 512 {
		t.Errorf("file sizes = %v", metrics.fileSizes)
	}

	batchReporter{backend: "file"}.success(testRecords("t", 0, 1), event.FormatAvro, 1, time.Now())
}
