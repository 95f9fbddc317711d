package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jittakal/bufemit/pkg/event"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestMetrics_ConsumerCounters(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.IncMessagesConsumed("orders", 0)
	metrics.IncMessagesConsumed("orders", 0)
	metrics.IncMessagesConsumed("orders", 1)
	metrics.IncOffsetCommits("orders", 0, "success")
	metrics.IncRebalances("group-1")

	if got := testutil.ToFloat64(metrics.MessagesConsumed.WithLabelValues("orders", "0")); got != 2 {
		t.Errorf("messages consumed (orders/0) = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.OffsetCommits.WithLabelValues("orders", "0", "success")); got != 1 {
		t.Errorf("offset commits = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.Rebalances.WithLabelValues("group-1")); got != 1 {
		t.Errorf("rebalances = %v, want 1", got)
	}
}

func TestMetrics_ForPartition(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	collector := metrics.ForPartition(event.PartitionID{Topic: "orders", Partition: 3})

	collector.IncCycles("thread")
	collector.IncCycles("thread")
	collector.IncDroppedWrites()
	collector.ObservePayloadSize(500)
	collector.ObserveDispatchDuration("thread", 0.25)
	collector.IncDispatchErrors("thread")

	if got := testutil.ToFloat64(metrics.Cycles.WithLabelValues("orders", "3", "thread")); got != 2 {
		t.Errorf("cycles = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.DroppedWrites.WithLabelValues("orders", "3")); got != 1 {
		t.Errorf("dropped writes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.DispatchErrors.WithLabelValues("orders", "3", "thread")); got != 1 {
		t.Errorf("dispatch errors = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(metrics.BatchSize); got != 1 {
		t.Errorf("batch size series = %d, want 1", got)
	}
	if got := testutil.CollectAndCount(metrics.DispatchDuration); got != 1 {
		t.Errorf("dispatch duration series = %d, want 1", got)
	}
}

func TestMetrics_StorageAndDLQ(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.IncFilesWritten("orders", 0, "parquet", "success")
	metrics.ObserveFileSize("orders", 0, "parquet", 2048)
	metrics.ObserveStorageWriteDuration("orders", 0, 0.4)
	metrics.IncStorageErrors("s3", "upload")
	metrics.IncDLQPublished("orders", "storage_failed", "success")
	metrics.IncRecordsRejected("orders", "validation_failed")

	if got := testutil.ToFloat64(metrics.FilesWritten.WithLabelValues("orders", "0", "parquet", "success")); got != 1 {
		t.Errorf("files written = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.StorageErrors.WithLabelValues("s3", "upload")); got != 1 {
		t.Errorf("storage errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.DLQPublished.WithLabelValues("orders", "storage_failed", "success")); got != 1 {
		t.Errorf("dlq published = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.RecordsRejected.WithLabelValues("orders", "validation_failed")); got != 1 {
		t.Errorf("records rejected = %v, want 1", got)
	}
}

func TestMetrics_ActiveEmitters(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())

	metrics.SetActiveEmitters(4)
	metrics.SetActiveEmitters(2)

	if got := testutil.ToFloat64(metrics.ActiveEmitters); got != 2 {
		t.Errorf("active emitters = %v, want 2", got)
	}
}

func TestMetrics_Registered(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.IncRebalances("group")
	metrics.ForPartition(event.PartitionID{Topic: "t", Partition: 0}).IncCycles("inline")

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	want := map[string]bool{"kafka_rebalance_total": false, "emitter_cycles_total": false}
	for _, mf := range families {
		if _, ok := want[mf.GetName()]; ok {
			want[mf.GetName()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("metric %s not registered", name)
		}
	}
}
