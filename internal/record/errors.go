// =============================================================================
// Ledger Upload Reformatter - Record Errors
// =============================================================================
//
// Every failure the derivation rules can produce is one of four kinds:
//
//   MissingField          - a required source value is null or blank
//   InvalidAmount         - the amount cannot be read as a decimal number
//   InvalidDate           - the posting date is not a calendar date
//   UnrecognizedCategory  - the invoice type is not one of the known codes
//
// Rules return errors wrapping one of the sentinels below. The transformer
// wraps them again in a RowError that names the row and the column, so
// callers can both print a precise message and branch with errors.Is.
//
// =============================================================================

package record

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR KINDS
// =============================================================================

var (
	// ErrMissingField is returned when a required source value is absent.
	ErrMissingField = errors.New("missing field")

	// ErrInvalidAmount is returned when the amount is not numeric.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidDate is returned when the posting date cannot be parsed.
	ErrInvalidDate = errors.New("invalid date")

	// ErrUnrecognizedCategory is returned for invoice types outside the
	// fixed category set.
	ErrUnrecognizedCategory = errors.New("unrecognized invoice type")

	// ErrMissingColumn is a dataset-level error: the source has no column
	// for one of the required fields.
	ErrMissingColumn = errors.New("missing column")
)

// Kind returns the taxonomy name of a row-level error, or "Unknown".
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrMissingField):
		return "MissingField"
	case errors.Is(err, ErrInvalidAmount):
		return "InvalidAmount"
	case errors.Is(err, ErrInvalidDate):
		return "InvalidDate"
	case errors.Is(err, ErrUnrecognizedCategory):
		return "UnrecognizedCategory"
	default:
		return "Unknown"
	}
}

// =============================================================================
// ROW ERROR
// =============================================================================

// RowError reports a failed derivation rule for a single source row.
type RowError struct {
	// Index is the 0-based position of the row in the dataset.
	Index int

	// Line is the 1-based line (or sheet row) the row came from.
	// Zero when the source did not report one.
	Line int

	// Column is the source column header the failing value was read from.
	Column string

	// Field is the target column the rule was deriving.
	Field string

	// Err is the underlying rule error. It wraps one of the Err* kinds.
	Err error
}

// Error implements the error interface.
func (e *RowError) Error() string {
	where := fmt.Sprintf("row %d", e.Index+1)
	if e.Line > 0 {
		where = fmt.Sprintf("row %d (line %d)", e.Index+1, e.Line)
	}
	return fmt.Sprintf("%s, %s -> %s: %v", where, e.Column, e.Field, e.Err)
}

// Unwrap exposes the rule error to errors.Is and errors.As.
func (e *RowError) Unwrap() error {
	return e.Err
}

// Kind returns the taxonomy name of the wrapped error.
func (e *RowError) Kind() string {
	return Kind(e.Err)
}

// MissingColumnError reports a required header that is absent from the source.
func MissingColumnError(column string) error {
	return fmt.Errorf("%w: %q", ErrMissingColumn, column)
}
