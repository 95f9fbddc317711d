package emitter

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrConfiguration is matched by every *ConfigurationError.
	ErrConfiguration = errors.New("invalid emitter configuration")

	// ErrDispatch is matched by every *DispatchError.
	ErrDispatch = errors.New("dispatch failed")

	// ErrClosed is returned by writes to a closed or uninitialised emitter.
	ErrClosed = errors.New("emitter closed")

	// ErrNotRegistered is returned when a process-mode function name is unknown.
	ErrNotRegistered = errors.New("processing function not registered")
)

// ConfigurationError reports an option that prevents the emitter from being
// built. It is fatal to that emitter instance.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("emitter config %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("emitter config %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// Is reports ErrConfiguration as a match.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// DispatchError reports a processing function failure for one cycle.
// Failures are never retried.
type DispatchError struct {
	Mode Mode
	Seq  uint64
	Err  error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch cycle %d (%s): %v", e.Seq, e.Mode, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Is reports ErrDispatch as a match.
func (e *DispatchError) Is(target error) bool {
	return target == ErrDispatch
}

func configError(field, reason string) error {
	return &ConfigurationError{Field: field, Reason: reason}
}
