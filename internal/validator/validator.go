// Package validator provides record validation ahead of buffering.
package validator

import (
	"fmt"

	"github.com/jittakal/bufemit/internal/errors"
	"github.com/jittakal/bufemit/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ event.Validator = (*RecordValidator)(nil)

// Config controls which records are accepted.
type Config struct {
	// MaxRecordBytes rejects records whose key plus value exceed it. Zero disables the check.
	MaxRecordBytes int
	RequireKey     bool
	// RequiredHeaders lists header names every record must carry.
	RequiredHeaders []string
}

// RecordValidator validates Kafka records.
type RecordValidator struct {
	config Config
}

// NewRecordValidator creates a new record validator.
func NewRecordValidator(config Config) *RecordValidator {
	return &RecordValidator{config: config}
}

// Validate validates a record.
func (v *RecordValidator) Validate(r *event.Record) error {
	if r == nil {
		return &errors.ValidationError{Field: "record", Reason: "record is nil"}
	}

	invalid := func(field, reason string) error {
		return &errors.ValidationError{
			PartitionID: r.PartitionID(),
			Offset:      r.Offset,
			Field:       field,
			Reason:      reason,
		}
	}

	if r.Topic == "" {
		return invalid("topic", "required field is missing")
	}

	if len(r.Value) == 0 {
		return invalid("value", "empty payload")
	}

	if v.config.RequireKey && len(r.Key) == 0 {
		return invalid("key", "required field is missing")
	}

	if v.config.MaxRecordBytes > 0 && r.Size() > v.config.MaxRecordBytes {
		return invalid("value", fmt.Sprintf("record size %d exceeds limit %d", r.Size(), v.config.MaxRecordBytes))
	}

	for _, name := range v.config.RequiredHeaders {
		if _, ok := r.Headers[name]; !ok {
			return invalid("headers", fmt.Sprintf("missing header %q", name))
		}
	}

	return nil
}
