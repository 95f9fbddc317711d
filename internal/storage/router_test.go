package storage

import (
	"testing"
	"time"

	"github.com/jittakal/bufemit/pkg/event"
)

func TestDefaultRouter_Route(t *testing.T) {
	cycleStart := time.Date(2024, 12, 31, 23, 30, 0, 0, time.FixedZone("UTC-2", -2*3600))
	pid := event.PartitionID{Topic: "orders", Partition: 7}

	tests := []struct {
		name     string
		protocol string
		bucket   string
		basePath string
		version  string
		want     string
	}{
		{
			name:     "s3 with base and version",
			protocol: "s3", bucket: "lake", basePath: "raw/events", version: "v1",
			want: "s3://lake/raw/events/orders/v1/dt=2025-01-01/pid=7/",
		},
		{
			name:     "no version",
			protocol: "gs", bucket: "lake", basePath: "raw",
			want: "gs://lake/raw/orders/dt=2025-01-01/pid=7/",
		},
		{
			name:     "no base path",
			protocol: "wasbs", bucket: "container", basePath: "", version: "v2",
			want: "wasbs://container/orders/v2/dt=2025-01-01/pid=7/",
		},
		{
			name:     "slashes trimmed",
			protocol: "file", bucket: "local", basePath: "/data/", version: "/v1/",
			want: "file://local/data/orders/v1/dt=2025-01-01/pid=7/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(tt.protocol, tt.bucket, tt.basePath, tt.version)
			if got := r.Route(pid, cycleStart); got != tt.want {
				t.Errorf("Route() = %q, want %q", got, tt.want)
			}
		})
	}
}
