package journal

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyDataset is returned when there are no records to analyze.
	ErrEmptyDataset = errors.New("empty dataset")
	// ErrInvalidDate is returned for a missing or unparseable record date.
	ErrInvalidDate = errors.New("invalid date")
	// ErrMissingID is returned for a record without an id.
	ErrMissingID = errors.New("missing record id")
	// ErrDuplicateID is returned when two records share an id.
	ErrDuplicateID = errors.New("duplicate record id")
	// ErrDimensionMismatch is returned when the encoder produces vectors of
	// inconsistent or unexpected length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrBackendUnavailable is returned when the embedding backend cannot be reached.
	ErrBackendUnavailable = errors.New("embedding backend unavailable")
)

// InputError reports a malformed input record.
type InputError struct {
	Index    int
	RecordID string
	Err      error
}

func (e *InputError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("record %d (%s): %v", e.Index, e.RecordID, e.Err)
	}
	if e.Index >= 0 {
		return fmt.Sprintf("record %d: %v", e.Index, e.Err)
	}
	return e.Err.Error()
}

func (e *InputError) Unwrap() error { return e.Err }

// ModelError reports a vectorization failure.
type ModelError struct {
	RecordID string
	Err      error
}

func (e *ModelError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("embedding record %s: %v", e.RecordID, e.Err)
	}
	return fmt.Sprintf("embedding: %v", e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// ConfigError reports an invalid analysis setting.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsInputError reports whether err contains an InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// IsModelError reports whether err contains a ModelError.
func IsModelError(err error) bool {
	var me *ModelError
	return errors.As(err, &me)
}

// IsConfigError reports whether err contains a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
