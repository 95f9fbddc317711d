package emitter

import (
	"fmt"
	"log/slog"
	"time"
)

// Mode selects where the processing function runs.
type Mode string

const (
	// ModeInline runs the processing function on the writing goroutine.
	ModeInline Mode = "inline"
	// ModeThread runs it on a bounded goroutine pool.
	ModeThread Mode = "thread"
	// ModeProcess runs a registered function on an isolated pool that
	// exchanges only msgpack-encoded payloads and results.
	ModeProcess Mode = "process"
)

// DefaultPoolSize is the worker count used when PoolSize is zero.
const DefaultPoolSize = 10

// ParseMode converts a configuration string to a Mode. An empty string
// selects ModeInline.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeInline:
		return ModeInline, nil
	case ModeThread, ModeProcess:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown dispatch mode %q", s)
	}
}

// ProcessFunc handles one cycle. cycleStart is the timestamp of the write
// that opened the cycle.
type ProcessFunc[T, R any] func(payload Payload[T], cycleStart time.Time) (R, error)

// DoneFunc receives the outcome of every dispatched cycle exactly once. A
// non-nil err is a *DispatchError.
type DoneFunc[R any] func(result R, err error)

// MetricsCollector receives emitter telemetry. Implementations must be safe
// for concurrent use; pooled completions report from worker goroutines.
type MetricsCollector interface {
	IncCycles(mode string)
	IncDroppedWrites()
	ObservePayloadSize(size int)
	ObserveDispatchDuration(mode string, seconds float64)
	IncDispatchErrors(mode string)
}

// Options configures an Emitter.
type Options[T, R any] struct {
	// Size is the buffer length that triggers a cycle. Required.
	Size int

	// SendValue hands the processing function a copy of the buffer contents
	// instead of the buffer itself.
	SendValue bool

	// Clip truncates each filled buffer to exactly Size and carries the
	// overflow into the next buffer. With a Sampler set the overflow is
	// dropped instead.
	Clip bool

	// Sampler sets the cooldown after each cycle. Writes during the cooldown
	// are dropped.
	Sampler Sampler

	Mode     Mode
	PoolSize int

	OnDone DoneFunc[R]

	// ProcessName names the function registered with Register. Required in
	// ModeProcess.
	ProcessName string

	// SpareBuffers bounds the buffer free-list. Zero uses the bufpool default.
	SpareBuffers int

	// AbandonOnClose makes Close return without waiting for in-flight cycles.
	AbandonOnClose bool

	Now     func() time.Time
	Logger  *slog.Logger
	Metrics MetricsCollector
}
