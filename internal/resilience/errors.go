// Package resilience classifies source failures so that one missing or
// malformed input fails only the sections that depend on it.
package resilience

import (
	"errors"
	"fmt"
	"os"
)

// SourceUnavailableError reports an input file or layer that could not be
// located or parsed.
type SourceUnavailableError struct {
	Source string // logical source, e.g. "raster", "boundaries", "vehicle_mobility"
	Path   string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
	}
	return fmt.Sprintf("source %s unavailable (%s): %v", e.Source, e.Path, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}

// NewSourceUnavailable wraps err as a SourceUnavailableError. A nil err
// yields nil.
func NewSourceUnavailable(source, path string, err error) error {
	if err == nil {
		return nil
	}
	return &SourceUnavailableError{Source: source, Path: path, Err: err}
}

// IsSourceUnavailable returns true if the error (or any error in its chain) is
// a SourceUnavailableError, or a bare not-exist error from the filesystem.
func IsSourceUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var se *SourceUnavailableError
	if errors.As(err, &se) {
		return true
	}
	return errors.Is(err, os.ErrNotExist)
}

// SchemaMismatchError reports a tabular source missing an expected column.
type SchemaMismatchError struct {
	Kind   string
	Column string
	Header []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: %s is missing column %q (header %q)", e.Kind, e.Column, e.Header)
}

// IsSchemaMismatch returns true if the error chain holds a SchemaMismatchError.
func IsSchemaMismatch(err error) bool {
	var sm *SchemaMismatchError
	return err != nil && errors.As(err, &sm)
}

// Kind returns a short label for logging and metrics: "source_unavailable",
// "schema_mismatch", "cancelled" or "error".
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsSchemaMismatch(err):
		return "schema_mismatch"
	case IsSourceUnavailable(err):
		return "source_unavailable"
	case isCancelled(err):
		return "cancelled"
	default:
		return "error"
	}
}
