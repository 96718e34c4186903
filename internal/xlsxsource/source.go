// =============================================================================
// Ledger Upload Reformatter - XLSX Source
// =============================================================================
//
// This module reads the ledger's Excel export into a record.Dataset.
//
// WORKBOOK LAYOUT:
//   - Only the first sheet is read.
//   - Row 1 holds the headers; data starts on row 2.
//   - Columns may appear in any order and extra columns are ignored.
//
//   | Company Code | Custome | Invoice Type | Posting Date | Reference Document | Amount in Company Code Currency |
//   |--------------|---------|--------------|--------------|--------------------|---------------------------------|
//   | 1000         | C100    | T&M          | 03/01/2024   | 1800000042         | -150.50                         |
//
// CELL VALUES:
//   Cells are read raw (unformatted) so amounts keep the precision Excel
//   stored, not the two decimals the sheet happens to display. Numeric
//   posting dates are Excel serial dates and are converted to time.Time
//   using the workbook's date system (1900 or 1904). Blank cells are nil.
//
// =============================================================================

package xlsxsource

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/ginjaninja78/ledger-upload-reformatter/internal/record"
)

var (
	// ErrUnsupportedFormat is returned for files that are not Office Open
	// XML workbooks, such as legacy .xls files.
	ErrUnsupportedFormat = errors.New("unsupported workbook format (expected .xlsx)")

	// ErrEmptyWorkbook is returned when the first sheet has no header row.
	ErrEmptyWorkbook = errors.New("workbook has no header row")
)

// File signatures.
var (
	zipMagic = []byte("PK\x03\x04")
	cfbMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// =============================================================================
// READER FUNCTIONS
// =============================================================================

// ReadFile reads an .xlsx ledger export from disk.
//
// PARAMETERS:
//   - path: The path to the workbook. A .xls extension is rejected.
//
// RETURNS:
//   - The dataset.
//   - An error if the file cannot be opened or is not a usable export.
func ReadFile(path string) (*record.Dataset, error) {
	if strings.EqualFold(filepath.Ext(path), ".xls") {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrUnsupportedFormat)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer file.Close()

	ds, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return ds, nil
}

// Read reads an .xlsx ledger export from r.
//
// RETURNS:
//   - The dataset, rows in sheet order with their sheet row numbers.
//   - ErrUnsupportedFormat, ErrEmptyWorkbook, a record.ErrMissingColumn
//     error, or an excelize error for corrupt workbooks.
func Read(r io.Reader) (*record.Dataset, error) {
	br := bufio.NewReader(r)

	// Legacy BIFF workbooks and password protected .xlsx files are both
	// compound documents; neither can be read.
	magic, _ := br.Peek(len(cfbMagic))
	if bytes.HasPrefix(magic, cfbMagic) {
		return nil, fmt.Errorf("%w: legacy .xls or encrypted workbook", ErrUnsupportedFormat)
	}
	if !bytes.HasPrefix(magic, zipMagic) {
		return nil, ErrUnsupportedFormat
	}

	f, err := excelize.OpenReader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, ErrEmptyWorkbook
	}

	rows, err := f.GetRows(sheetName, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	if len(rows) == 0 || isRowEmpty(rows[0]) {
		return nil, ErrEmptyWorkbook
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(h)
	}

	index, err := record.ColumnIndex(headers)
	if err != nil {
		return nil, err
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}

	sheet := &sheetReader{
		file:     f,
		sheet:    sheetName,
		dateCol:  index[record.ColumnPostingDate],
		date1904: date1904,
	}

	ds := &record.Dataset{
		Headers: headers,
		Rows:    []record.SourceRecord{},
		Lines:   []int{},
		Raw:     []map[string]string{},
	}

	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isRowEmpty(row) {
			continue
		}

		line := i + 1
		values := make([]any, len(row))
		raw := make(map[string]string, len(headers))

		for col, cell := range row {
			if col < len(headers) {
				raw[headers[col]] = cell
			}
			if strings.TrimSpace(cell) == "" {
				continue
			}

			if col == sheet.dateCol {
				value, err := sheet.postingDate(col, line, cell)
				if err != nil {
					return nil, err
				}
				values[col] = value
				continue
			}
			values[col] = cell
		}

		ds.Rows = append(ds.Rows, record.FromValues(values, index))
		ds.Lines = append(ds.Lines, line)
		ds.Raw = append(ds.Raw, raw)
	}

	return ds, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// sheetReader resolves typed cell values on one sheet.
type sheetReader struct {
	file     *excelize.File
	sheet    string
	dateCol  int
	date1904 bool
}

// postingDate returns a time.Time for numeric date cells and the raw text
// for everything else. Text that is not a date is left for the derivation
// rule to reject.
func (s *sheetReader) postingDate(col, line int, raw string) (any, error) {
	cell, err := excelize.CoordinatesToCellName(col+1, line)
	if err != nil {
		return nil, err
	}

	cellType, err := s.file.GetCellType(s.sheet, cell)
	if err != nil {
		return nil, fmt.Errorf("failed to read cell %s: %w", cell, err)
	}

	switch cellType {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeBool, excelize.CellTypeError:
		return raw, nil
	}

	serial, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return raw, nil
	}

	t, err := excelize.ExcelDateToTime(serial, s.date1904)
	if err != nil {
		// Negative or out-of-range serials stay numeric and fail the rule.
		return serial, nil
	}
	return t, nil
}

// isRowEmpty checks if a row contains only empty values.
func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
