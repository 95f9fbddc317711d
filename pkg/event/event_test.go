package event

import (
	"testing"
	"time"
)

func TestPartitionID_String(t *testing.T) {
	tests := []struct {
		name      string
		partition PartitionID
		want      string
	}{
		{
			name:      "basic partition",
			partition: PartitionID{Topic: "test-topic", Partition: 0},
			want:      "test-topic-0",
		},
		{
			name:      "partition 10",
			partition: PartitionID{Topic: "my-topic", Partition: 10},
			want:      "my-topic-10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.partition.String(); got != tt.want {
				t.Errorf("PartitionID.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecord_PartitionID(t *testing.T) {
	r := Record{Topic: "orders", Partition: 3}
	if got := r.PartitionID(); got != (PartitionID{Topic: "orders", Partition: 3}) {
		t.Errorf("PartitionID() = %v", got)
	}
}

func TestRecord_Size(t *testing.T) {
	r := Record{Key: []byte("key"), Value: []byte("value")}
	if got := r.Size(); got != 8 {
		t.Errorf("Size() = %d, want 8", got)
	}
}

func TestRecord_EventTime(t *testing.T) {
	produced := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	received := produced.Add(time.Minute)

	tests := []struct {
		name   string
		record Record
		want   time.Time
	}{
		{"producer timestamp", Record{Timestamp: produced, ReceivedAt: received}, produced},
		{"fallback to received", Record{ReceivedAt: received}, received},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.EventTime(); !got.Equal(tt.want) {
				t.Errorf("EventTime() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOffsetRange(t *testing.T) {
	tests := []struct {
		name      string
		records   []Record
		wantFirst int64
		wantLast  int64
	}{
		{"empty", nil, -1, -1},
		{"single", []Record{{Offset: 4}}, 4, 4},
		{"unordered", []Record{{Offset: 10}, {Offset: 2}, {Offset: 7}}, 2, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, last := OffsetRange(tt.records)
			if first != tt.wantFirst || last != tt.wantLast {
				t.Errorf("OffsetRange() = (%d, %d), want (%d, %d)", first, last, tt.wantFirst, tt.wantLast)
			}
		})
	}
}
