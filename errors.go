package sift

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrProviderUnavailable marks transport failures from a provider:
	// timeouts, refused connections, non-2xx responses.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrSchemaMismatch marks a structured completion that never produced
	// a valid object.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrConfiguration marks a missing credential or provider setting.
	ErrConfiguration = errors.New("configuration error")
)

// ProviderError is a transport-level failure from a provider.
type ProviderError struct {
	Provider   string
	StatusCode int // zero when no response was received
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: http %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrProviderUnavailable) hold.
func (e *ProviderError) Is(target error) bool { return target == ErrProviderUnavailable }

// SchemaMismatchError is returned when both structured completion attempts
// fail validation. Err is the last validation error.
type SchemaMismatchError struct {
	Schema     string
	Attempts   int
	LastOutput string
	Err        error
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("no valid %s after %d attempts: %v", e.Schema, e.Attempts, e.Err)
}

func (e *SchemaMismatchError) Unwrap() error { return e.Err }

func (e *SchemaMismatchError) Is(target error) bool { return target == ErrSchemaMismatch }

// StepError identifies the pipeline step that failed.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ConfigError names a setting that is missing or invalid.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }
