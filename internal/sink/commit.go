package sink

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/jittakal/bufemit/internal/errors"
	"github.com/jittakal/bufemit/pkg/emitter"
	"github.com/jittakal/bufemit/pkg/event"
)

// Committer marks offsets as processed.
type Committer interface {
	Commit(ctx context.Context, partition event.PartitionID, offset int64) error
}

// tracker releases commits in cycle order: an offset is handed out only once
// every earlier cycle of the partition has finished.
type tracker struct {
	mu      sync.Mutex
	next    uint64
	pending map[uint64]int64
}

func newTracker() *tracker {
	return &tracker{next: 1, pending: make(map[uint64]int64)}
}

// complete records that cycle seq is finished with last as its highest
// offset (-1 for none) and returns the highest offset that may now be
// committed, or -1.
func (t *tracker) complete(seq uint64, last int64) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if seq < t.next {
		return -1
	}
	t.pending[seq] = last

	commit := int64(-1)
	for {
		off, ok := t.pending[t.next]
		if !ok {
			break
		}
		delete(t.pending, t.next)
		t.next++
		if off > commit {
			commit = off
		}
	}
	return commit
}

// OnDone returns the completion callback for one partition's emitter. It
// logs every cycle and commits offsets through committer once all earlier
// cycles have finished. Failed cycles are logged and skipped.
func (s *Sink) OnDone(pid event.PartitionID, committer Committer) emitter.DoneFunc[Result] {
	t := newTracker()
	logger := s.logger.With("partition", pid.String())

	return func(res Result, err error) {
		seq, last := res.Seq, res.LastOffset
		if err != nil {
			var derr *emitter.DispatchError
			if errors.As(err, &derr) {
				seq = derr.Seq
			}
			last = -1
			logFailure(logger, err)
		} else {
			logger.Info("batch persisted",
				"seq", res.Seq,
				"path", res.Path,
				"records", res.Records,
				"bytes", res.Bytes,
				"first_offset", res.FirstOffset,
				"last_offset", res.LastOffset,
				"dead_lettered", res.DeadLettered,
			)
		}

		if seq == 0 {
			return
		}
		offset := t.complete(seq, last)
		if offset < 0 || committer == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := committer.Commit(ctx, pid, offset); err != nil {
			logger.Error("offset commit failed", "offset", offset, "error", err)
		}
	}
}

func logFailure(logger *slog.Logger, err error) {
	var serr *apperrors.SinkError
	if errors.As(err, &serr) {
		logger.Error("batch lost",
			"seq", serr.Seq,
			"first_offset", serr.FirstOffset,
			"last_offset", serr.LastOffset,
			"error", serr.Err,
		)
		return
	}
	logger.Error("batch failed", "error", err)
}
