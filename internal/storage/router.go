package storage

import (
	"strconv"
	"strings"
	"time"

	"github.com/jittakal/bufemit/pkg/event"
	"github.com/jittakal/bufemit/pkg/storage"
)

var _ storage.Router = (*DefaultRouter)(nil)

// DefaultRouter lays batches out with Hive-style partitioning:
//
//	protocol://bucket/basePath/topic[/version]/dt=YYYY-MM-DD/pid=N/
//
// Empty basePath and version segments are omitted.
type DefaultRouter struct {
	protocol string
	bucket   string
	basePath string
	version  string
}

// NewRouter creates a new storage router.
func NewRouter(protocol, bucket, basePath, version string) *DefaultRouter {
	return &DefaultRouter{
		protocol: protocol,
		bucket:   bucket,
		basePath: strings.Trim(basePath, "/"),
		version:  strings.Trim(version, "/"),
	}
}

// Route returns the prefix for a batch whose emitter cycle started at
// cycleStart. The date partition is taken in UTC.
func (r *DefaultRouter) Route(partitionID event.PartitionID, cycleStart time.Time) string {
	var b strings.Builder
	b.WriteString(r.protocol)
	b.WriteString("://")
	b.WriteString(r.bucket)
	b.WriteByte('/')
	for _, seg := range []string{r.basePath, partitionID.Topic, r.version} {
		if seg != "" {
			b.WriteString(seg)
			b.WriteByte('/')
		}
	}
	b.WriteString("dt=")
	b.WriteString(cycleStart.UTC().Format("2006-01-02"))
	b.WriteString("/pid=")
	b.WriteString(strconv.Itoa(int(partitionID.Partition)))
	b.WriteByte('/')
	return b.String()
}
