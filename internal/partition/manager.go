package partition

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	apperrors "github.com/jittakal/bufemit/internal/errors"
	"github.com/jittakal/bufemit/internal/sink"
	"github.com/jittakal/bufemit/pkg/emitter"
	"github.com/jittakal/bufemit/pkg/event"
)

// Emitter is the emitter type owned per partition.
type Emitter = emitter.Emitter[[]event.Record, sink.Result]

// EmitterFactory builds the emitter for a newly seen partition.
type EmitterFactory func(pid event.PartitionID) (*Emitter, error)

// MetricsCollector receives manager telemetry.
type MetricsCollector interface {
	SetActiveEmitters(n int)
}

// entry serialises writes with the close issued by a revoke.
type entry struct {
	mu sync.Mutex
	em *Emitter
}

// Manager owns one emitter per Kafka partition, creating them on demand.
// Uses double-checked locking for the common lookup path.
type Manager struct {
	factory EmitterFactory
	logger  *slog.Logger
	metrics MetricsCollector

	mu       sync.RWMutex
	emitters map[event.PartitionID]*entry
	closed   bool
}

// NewManager creates a manager. metrics may be nil.
func NewManager(factory EmitterFactory, logger *slog.Logger, metrics MetricsCollector) *Manager {
	return &Manager{
		factory:  factory,
		logger:   logger.With("component", "partition_manager"),
		metrics:  metrics,
		emitters: make(map[event.PartitionID]*entry),
	}
}

func (m *Manager) getOrCreate(pid event.PartitionID) (*entry, error) {
	m.mu.RLock()
	e, ok := m.emitters[pid]
	closed := m.closed
	m.mu.RUnlock()

	if closed {
		return nil, apperrors.ErrManagerClosed
	}
	if ok {
		return e, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, apperrors.ErrManagerClosed
	}
	// Double-check after acquiring write lock
	if e, ok := m.emitters[pid]; ok {
		return e, nil
	}

	em, err := m.factory(pid)
	if err != nil {
		return nil, fmt.Errorf("create emitter for %s: %w", pid, err)
	}
	e = &entry{em: em}
	m.emitters[pid] = e
	m.reportActive()
	m.logger.Info("emitter created", "partition", pid.String(), "emitter", em.String())
	return e, nil
}

// GetOrCreate returns the partition's emitter, creating it if needed.
func (m *Manager) GetOrCreate(pid event.PartitionID) (*Emitter, error) {
	e, err := m.getOrCreate(pid)
	if err != nil {
		return nil, err
	}
	return e.em, nil
}

// Write appends record to its partition's emitter on the emitter's clock.
// A write that lands on an emitter closed by a concurrent revoke is retried
// once on a fresh emitter.
func (m *Manager) Write(record *event.Record) error {
	pid := record.PartitionID()
	for attempt := 0; ; attempt++ {
		e, err := m.getOrCreate(pid)
		if err != nil {
			return err
		}

		e.mu.Lock()
		err = e.em.Write([]event.Record{*record})
		e.mu.Unlock()

		if errors.Is(err, emitter.ErrClosed) && attempt == 0 {
			m.forget(pid, e)
			continue
		}
		return err
	}
}

// forget drops e from the map if it is still the partition's entry.
func (m *Manager) forget(pid event.PartitionID, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.emitters[pid] == e {
		delete(m.emitters, pid)
		m.reportActive()
	}
}

// Revoke closes the emitters of partitions this member no longer owns.
// Close waits for in-flight cycles unless the emitters abandon them, so
// completed batches can still commit before the partitions move.
func (m *Manager) Revoke(pids []event.PartitionID) {
	m.mu.Lock()
	revoked := make([]*entry, 0, len(pids))
	for _, pid := range pids {
		if e, ok := m.emitters[pid]; ok {
			revoked = append(revoked, e)
			delete(m.emitters, pid)
		}
	}
	m.reportActive()
	m.mu.Unlock()

	for _, e := range revoked {
		m.closeEntry(e)
	}
	if len(revoked) > 0 {
		m.logger.Info("partitions revoked", "partitions", len(pids), "emitters_closed", len(revoked))
	}
}

func (m *Manager) closeEntry(e *entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.em.Close(); err != nil {
		m.logger.Warn("emitter close failed", "emitter", e.em.String(), "error", err)
	}
}

// Closed reports whether Close was called.
func (m *Manager) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Len returns the number of live emitters.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.emitters)
}

// Stats returns a snapshot of every live emitter.
func (m *Manager) Stats() map[event.PartitionID]emitter.Stats {
	m.mu.RLock()
	entries := make(map[event.PartitionID]*entry, len(m.emitters))
	for pid, e := range m.emitters {
		entries[pid] = e
	}
	m.mu.RUnlock()

	out := make(map[event.PartitionID]emitter.Stats, len(entries))
	for pid, e := range entries {
		e.mu.Lock()
		out[pid] = e.em.Stats()
		e.mu.Unlock()
	}
	return out
}

// Close closes every emitter. Buffered records below the threshold are
// discarded; their offsets were never committed. Later writes return
// ErrManagerClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	entries := m.emitters
	m.emitters = make(map[event.PartitionID]*entry)
	m.reportActive()
	m.mu.Unlock()

	for _, e := range entries {
		m.closeEntry(e)
	}
	m.logger.Info("partition manager closed", "emitters", len(entries))
	return nil
}

// reportActive must be called with mu held.
func (m *Manager) reportActive() {
	if m.metrics != nil {
		m.metrics.SetActiveEmitters(len(m.emitters))
	}
}
