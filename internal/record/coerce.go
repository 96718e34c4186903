// =============================================================================
// Ledger Upload Reformatter - Value Coercion
// =============================================================================
//
// Sources hand the reformatter loosely typed cell values: spreadsheets give
// numbers and dates, CSV exports give strings, tests give whatever they like.
// The functions in this file turn those values into text, decimals and
// calendar dates, and fail with a typed error when they cannot.
//
// BLANK VALUES:
//   nil, and strings that are empty after trimming, are treated as missing.
//   A non-blank string is never trimmed when used as text.
//
// AMOUNTS:
//   Parsed into shopspring/decimal values so the sign test and the
//   two-digit rounding work on the exact number the ledger shows, never on
//   a binary float approximation. String amounts may carry thousands
//   separators, currency symbols, accounting parentheses "(12.50)" or a
//   trailing minus "12.50-". A comma is only accepted as a thousands
//   separator in correctly grouped digits; "1234,56" is an invalid amount.
//
// DATES:
//   time.Time values keep their calendar fields as-is (no zone conversion).
//   Strings are tried against an ordered list of layouts. Slash dates are
//   read month-first, falling back to day-first when month-first is not a
//   valid date (13/01/2024 is the 13th of January).
//
// =============================================================================

package record

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// numericPattern validates a cleaned amount string.
// Matches integers, decimals and scientific notation.
var numericPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// groupedPattern is the only shape in which commas are accepted: thousands
// groups in front of an optional dot decimal part. Decimal commas such as
// "1234,56" do not match and are rejected rather than misread.
var groupedPattern = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d*)?$`)

// =============================================================================
// TEXT
// =============================================================================

// toText returns the textual form of a cell value.
// The boolean is false when the value is missing.
func toText(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		if strings.TrimSpace(x) == "" {
			return "", false
		}
		return x, true
	case []byte:
		return toText(string(x))
	case int:
		return strconv.FormatInt(int64(x), 10), true
	case int8:
		return strconv.FormatInt(int64(x), 10), true
	case int16:
		return strconv.FormatInt(int64(x), 10), true
	case int32:
		return strconv.FormatInt(int64(x), 10), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case uint:
		return strconv.FormatUint(uint64(x), 10), true
	case uint8:
		return strconv.FormatUint(uint64(x), 10), true
	case uint16:
		return strconv.FormatUint(uint64(x), 10), true
	case uint32:
		return strconv.FormatUint(uint64(x), 10), true
	case uint64:
		return strconv.FormatUint(x, 10), true
	case float32:
		if math.IsNaN(float64(x)) {
			return "", false
		}
		return strconv.FormatFloat(float64(x), 'f', -1, 32), true
	case float64:
		if math.IsNaN(x) {
			return "", false
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case decimal.Decimal:
		return x.String(), true
	case json.Number:
		return toText(string(x))
	case bool:
		return strconv.FormatBool(x), true
	case fmt.Stringer:
		return toText(x.String())
	default:
		return fmt.Sprint(x), true
	}
}

// =============================================================================
// AMOUNTS
// =============================================================================

// toDecimal converts a cell value to an exact decimal amount.
//
// RETURNS:
//   - The amount.
//   - An error wrapping ErrMissingField for nil or blank values, or
//     ErrInvalidAmount for anything that is not a finite number.
func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, ErrMissingField
	case decimal.Decimal:
		return x, nil
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero, ErrMissingField
		}
		return *x, nil
	case string:
		return parseAmount(x)
	case []byte:
		return parseAmount(string(x))
	case json.Number:
		return parseAmount(string(x))
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int8:
		return decimal.NewFromInt(int64(x)), nil
	case int16:
		return decimal.NewFromInt(int64(x)), nil
	case int32:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case uint:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(x)), 0), nil
	case uint8:
		return decimal.NewFromInt(int64(x)), nil
	case uint16:
		return decimal.NewFromInt(int64(x)), nil
	case uint32:
		return decimal.NewFromInt(int64(x)), nil
	case uint64:
		return decimal.NewFromBigInt(new(big.Int).SetUint64(x), 0), nil
	case float32:
		if math.IsNaN(float64(x)) {
			return decimal.Zero, ErrMissingField
		}
		if math.IsInf(float64(x), 0) {
			return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, x)
		}
		return decimal.NewFromFloat32(x), nil
	case float64:
		if math.IsNaN(x) {
			return decimal.Zero, ErrMissingField
		}
		if math.IsInf(x, 0) {
			return decimal.Zero, fmt.Errorf("%w: %v", ErrInvalidAmount, x)
		}
		return decimal.NewFromFloat(x), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %v (%T)", ErrInvalidAmount, x, x)
	}
}

// parseAmount parses a textual amount as spreadsheets and ledger exports
// write it.
func parseAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, ErrMissingField
	}

	negative := false

	// Accounting format "(123.45)".
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	// Trailing minus "123.45-", common in ledger text exports.
	if len(s) > 1 && strings.HasSuffix(s, "-") {
		negative = !negative
		s = strings.TrimSpace(s[:len(s)-1])
	}

	// Currency symbols, then thousands separators.
	s = strings.NewReplacer("$", "", "€", "", "£", "").Replace(s)
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		if !groupedPattern.MatchString(s) {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
		}
		s = strings.ReplaceAll(s, ",", "")
	}

	if !numericPattern.MatchString(s) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}

	if negative {
		d = d.Neg()
	}
	return d, nil
}

// =============================================================================
// DATES
// =============================================================================

// dateLayouts are tried in order for unambiguous date strings.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006/01/02",
	"2006/01/02 15:04:05",
	"02.01.2006",
	"2.1.2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"20060102",
}

// monthFirstLayouts are tried for slash dates before dayFirstLayouts.
var monthFirstLayouts = []string{
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
}

var dayFirstLayouts = []string{
	"2/1/2006",
	"2/1/2006 15:04",
	"2/1/2006 15:04:05",
}

// toDate converts a cell value to a calendar date at midnight UTC.
//
// RETURNS:
//   - The date.
//   - An error wrapping ErrInvalidDate for nil, blank or unparseable values.
func toDate(v any) (time.Time, error) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, fmt.Errorf("%w: value is missing", ErrInvalidDate)
	case time.Time:
		if x.IsZero() {
			return time.Time{}, fmt.Errorf("%w: zero time", ErrInvalidDate)
		}
		return dateOnly(x), nil
	case *time.Time:
		if x == nil {
			return time.Time{}, fmt.Errorf("%w: value is missing", ErrInvalidDate)
		}
		return toDate(*x)
	case string:
		return parseDate(x)
	case []byte:
		return parseDate(string(x))
	default:
		return time.Time{}, fmt.Errorf("%w: %v (%T)", ErrInvalidDate, x, x)
	}
}

// parseDate parses a date string using the package layouts.
func parseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: value is missing", ErrInvalidDate)
	}

	if isShortSlashDate(s) {
		for _, layouts := range [][]string{monthFirstLayouts, dayFirstLayouts} {
			for _, layout := range layouts {
				if t, err := time.Parse(layout, s); err == nil {
					return dateOnly(t), nil
				}
			}
		}
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return dateOnly(t), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}

// isShortSlashDate reports whether s looks like D/M/Y or M/D/Y, as opposed
// to Y/M/D.
func isShortSlashDate(s string) bool {
	first, _, found := strings.Cut(s, "/")
	return found && len(first) <= 2
}

// dateOnly drops the clock and zone, keeping the calendar fields as written.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
