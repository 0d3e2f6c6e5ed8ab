// Package errors defines the error types shared across codescan.
//
// Two conditions are surfaced to callers as typed errors:
//   - ConfigError: a windowing, retry or concurrency setting is invalid. It is
//     raised before any remote call is made.
//   - IncompleteResultsError: the aggregator was handed fewer window results
//     than windows. This indicates a coordinator bug and is never expected in
//     normal operation.
//
// Both wrap a sentinel so callers can use errors.Is without caring about the
// concrete type:
//
//	if errors.Is(err, errors.ErrConfig) { ... }
//
//	var cfgErr *errors.ConfigError
//	if errors.As(err, &cfgErr) { fmt.Println(cfgErr.Field) }
//
// Per-window call failures are not errors at this level; they are recorded in
// the report.
package errors

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Re-exported so callers only need one errors import.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

var (
	// ErrConfig is wrapped by every ConfigError.
	ErrConfig = New("invalid configuration")
	// ErrIncompleteResults is wrapped by IncompleteResultsError.
	ErrIncompleteResults = New("incomplete window results")
)

// ConfigError reports a single invalid configuration value.
type ConfigError struct {
	Field   string
	Value   any
	Message string
}

// NewConfigError creates a ConfigError.
func NewConfigError(field string, value any, message string) *ConfigError {
	return &ConfigError{Field: field, Value: value, Message: message}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

func (e *ConfigError) Unwrap() error { return ErrConfig }

// ConfigErrors collects every ConfigError found during validation.
type ConfigErrors []*ConfigError

func (e ConfigErrors) Error() string {
	switch len(e) {
	case 0:
		return ""
	case 1:
		return e[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d configuration errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Unwrap exposes each contained error to errors.Is and errors.As.
func (e ConfigErrors) Unwrap() []error {
	out := make([]error, len(e))
	for i, err := range e {
		out[i] = err
	}
	return out
}

// OrNil returns nil when no errors were collected.
func (e ConfigErrors) OrNil() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// IncompleteResultsError lists the window indices that had no result.
type IncompleteResultsError struct {
	Missing []int
}

func (e *IncompleteResultsError) Error() string {
	parts := make([]string, len(e.Missing))
	for i, idx := range e.Missing {
		parts[i] = strconv.Itoa(idx)
	}
	return fmt.Sprintf("missing results for %d window(s): [%s]", len(e.Missing), strings.Join(parts, ", "))
}

func (e *IncompleteResultsError) Unwrap() error { return ErrIncompleteResults }
