// =============================================================================
// Ledger Upload Reformatter - CSV Sink
// =============================================================================
//
// This module writes the import file. The layout is the contract with the
// importing system and never varies:
//
//   Debtor Reference,Transaction Type,Document Number,Document Date,Document Balance
//   C100_T&M Billing - R3,CRD,1800000042,03/01/2024,-150.50
//
// One header row, one line per record, comma separated, standard CSV
// quoting, "\n" line endings, no index column.
//
// =============================================================================

package csvsink

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/ginjaninja78/ledger-upload-reformatter/internal/record"
)

// ErrHeaderMismatch is returned by Read when the header row is not the
// import header.
var ErrHeaderMismatch = errors.New("unexpected header row")

// FileName is the conventional name of a converted file.
const FileName = "converted_data.csv"

// errorReportHeader is the header of best-effort error reports.
var errorReportHeader = []string{"Row", "Line", "Column", "Field", "Kind", "Message"}

// Write writes the header and one line per record to w.
func Write(w io.Writer, records []record.TargetRecord) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(record.Header()); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, rec := range records {
		if err := cw.Write(rec.Values()); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i+1, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// Read parses a file produced by Write.
//
// RETURNS:
//   - The records in file order.
//   - ErrHeaderMismatch for a foreign header, or a parse error.
func Read(r io.Reader) ([]record.TargetRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(record.Header())

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: file is empty", ErrHeaderMismatch)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if !slices.Equal(header, record.Header()) {
		return nil, fmt.Errorf("%w: %q", ErrHeaderMismatch, header)
	}

	records := []record.TargetRecord{}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		records = append(records, record.TargetRecord{
			DebtorReference: row[0],
			TransactionType: record.TransactionType(row[1]),
			DocumentNumber:  row[2],
			DocumentDate:    row[3],
			DocumentBalance: row[4],
		})
	}

	return records, nil
}

// WriteErrorReport writes best-effort failures as CSV, one line per failed
// rule, in the order given.
func WriteErrorReport(w io.Writer, failures []*record.RowError) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(errorReportHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, f := range failures {
		line := ""
		if f.Line > 0 {
			line = strconv.Itoa(f.Line)
		}
		if err := cw.Write([]string{
			strconv.Itoa(f.Index + 1),
			line,
			f.Column,
			f.Field,
			f.Kind(),
			f.Err.Error(),
		}); err != nil {
			return fmt.Errorf("failed to write error report: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
