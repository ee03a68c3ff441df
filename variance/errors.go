/*
errors.go - Error taxonomy for variance runs

ERROR KINDS:
  missing_file       An input path does not exist
  unparseable_value  A field could not be coerced (date, number)
  schema_mismatch    A canonical column could not be located by alias
  unhandled          Anything else during load, join, rules or write

POLICY:
  unparseable_value and schema_mismatch degrade per field or per rule and
  never abort a run. missing_file and unhandled abort the run; the pipeline
  converts them into a one-row fallback report.

USAGE:
  if variance.KindOf(err) == variance.KindMissingFile { ... }

SEE ALSO:
  - pipeline/pipeline.go: Top-level classification and fallback
*/
package variance

import (
	"errors"
	"fmt"
	"io/fs"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMissingFile is returned when an input source does not exist.
	ErrMissingFile = errors.New("input file not found")

	// ErrUnparseableValue marks a value that could not be coerced.
	ErrUnparseableValue = errors.New("unparseable value")

	// ErrSchemaMismatch marks a required column that no alias matched.
	ErrSchemaMismatch = errors.New("schema mismatch")

	// ErrUnhandled wraps any other failure, including recovered panics.
	ErrUnhandled = errors.New("unhandled failure")

	// ErrUnsupportedFormat is returned for a tabular format other than csv/xlsx.
	ErrUnsupportedFormat = errors.New("unsupported tabular format")

	// ErrUnknownRule is returned when configuration names a rule that does not exist.
	ErrUnknownRule = errors.New("unknown rule")

	// ErrUnknownField is returned when configuration names a column that does not exist.
	ErrUnknownField = errors.New("unknown field")
)

type ErrorKind string

const (
	KindMissingFile      ErrorKind = "missing_file"
	KindUnparseableValue ErrorKind = "unparseable_value"
	KindSchemaMismatch   ErrorKind = "schema_mismatch"
	KindUnhandled        ErrorKind = "unhandled"
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// RunError tags a failure with its kind and the operation that hit it.
type RunError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *RunError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// KindOf classifies err into the run error taxonomy.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var re *RunError
	if errors.As(err, &re) && re.Kind != "" {
		return re.Kind
	}
	switch {
	case errors.Is(err, ErrMissingFile), errors.Is(err, fs.ErrNotExist):
		return KindMissingFile
	case errors.Is(err, ErrUnparseableValue):
		return KindUnparseableValue
	case errors.Is(err, ErrSchemaMismatch):
		return KindSchemaMismatch
	default:
		return KindUnhandled
	}
}

// IsFatal returns true for the kinds that abort a run.
func IsFatal(kind ErrorKind) bool {
	return kind == KindMissingFile || kind == KindUnhandled
}
