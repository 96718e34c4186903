// =============================================================================
// Ledger Upload Reformatter - CSV Source
// =============================================================================
//
// This module reads ledger exports saved as CSV into a record.Dataset. It
// handles the layouts finance teams actually produce when they "Save As"
// from the ledger:
//   - Different delimiters (comma, semicolon, pipe, tab)
//   - Multi-line headers
//   - Extra rows between the header and the data
//   - A UTF-8 byte order mark in front of the first header
//
// Values are handed to the transformer as strings; blank cells become nil.
// The derivation rules do all numeric and date coercion.
//
// =============================================================================

package csvparser

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ginjaninja78/ledger-upload-reformatter/internal/config"
	"github.com/ginjaninja78/ledger-upload-reformatter/internal/record"
)

// ErrEmptyFile is returned when the file has no header row.
var ErrEmptyFile = errors.New("CSV file is empty")

// utf8BOM is stripped from the first header cell.
const utf8BOM = "\ufeff"

// =============================================================================
// PARSER FUNCTIONS
// =============================================================================

// Parse reads a CSV ledger export from disk.
//
// PARAMETERS:
//   - filePath: The path to the CSV file.
//   - settings: The CSV parsing settings.
//
// RETURNS:
//   - The dataset, rows in file order with their 1-based line numbers.
//   - An error if the file cannot be read or a required column is missing.
func Parse(filePath string, settings config.CSVSettings) (*record.Dataset, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	ds, err := ParseReader(file, settings)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return ds, nil
}

// ParseReader reads a CSV ledger export from r.
//
// PARSING PROCESS:
//   1. Configure the CSV reader with the delimiter from settings
//   2. Read and merge the header rows
//   3. Resolve the required source columns
//   4. Read data rows from DataStartRow on, skipping fully blank rows
func ParseReader(r io.Reader, settings config.CSVSettings) (*record.Dataset, error) {
	settings = withDefaults(settings)

	csvReader := csv.NewReader(bufio.NewReader(r))
	configureReader(csvReader, settings)

	// Header rows.
	headerRows := make([][]string, 0, settings.HeaderRows)
	for len(headerRows) < settings.HeaderRows {
		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV header: %w", err)
		}
		headerRows = append(headerRows, row)
	}
	if len(headerRows) == 0 {
		return nil, ErrEmptyFile
	}
	if len(headerRows) < settings.HeaderRows {
		return nil, fmt.Errorf("file has fewer rows than header_rows setting (%d)", settings.HeaderRows)
	}

	headers := mergeHeaders(headerRows)
	index, err := record.ColumnIndex(headers)
	if err != nil {
		return nil, err
	}

	ds := &record.Dataset{
		Headers: headers,
		Rows:    []record.SourceRecord{},
		Lines:   []int{},
		Raw:     []map[string]string{},
	}

	// Data rows. Rows are counted from 1; the header rows are already read.
	rowNumber := settings.HeaderRows
	for {
		row, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		rowNumber++

		if rowNumber < settings.DataStartRow || isRowEmpty(row) {
			continue
		}

		line, _ := csvReader.FieldPos(0)

		values := make([]any, len(row))
		raw := make(map[string]string, len(headers))
		for i, cell := range row {
			if strings.TrimSpace(cell) != "" {
				values[i] = cell
			}
			if i < len(headers) {
				raw[headers[i]] = cell
			}
		}

		ds.Rows = append(ds.Rows, record.FromValues(values, index))
		ds.Lines = append(ds.Lines, line)
		ds.Raw = append(ds.Raw, raw)
	}

	return ds, nil
}

// withDefaults fills unset settings.
func withDefaults(settings config.CSVSettings) config.CSVSettings {
	if settings.HeaderRows <= 0 {
		settings.HeaderRows = 1
	}
	if settings.DataStartRow <= settings.HeaderRows {
		settings.DataStartRow = settings.HeaderRows + 1
	}
	return settings
}

// configureReader configures the CSV reader based on the settings.
func configureReader(reader *csv.Reader, settings config.CSVSettings) {
	switch strings.ToLower(settings.Delimiter) {
	case "\\t", "\t", "tab":
		reader.Comma = '\t'
	case "|", "pipe":
		reader.Comma = '|'
	case ";", "semicolon":
		reader.Comma = ';'
	default:
		if len(settings.Delimiter) > 0 {
			reader.Comma = rune(settings.Delimiter[0])
		} else {
			reader.Comma = ','
		}
	}

	// Ledger exports pad short rows inconsistently.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	// Cells are passed on verbatim; only headers are trimmed, in
	// mergeHeaders.
}

// mergeHeaders merges multi-line headers into one header per column.
//
// MULTI-LINE HEADER HANDLING:
//   Row 1: "Amount in", "Posting"
//   Row 2: "Company Code Currency", "Date"
//   Result: "Amount in Company Code Currency", "Posting Date"
func mergeHeaders(rows [][]string) []string {
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], utf8BOM)
	}

	maxCols := 0
	for _, row := range rows {
		maxCols = max(maxCols, len(row))
	}

	headers := make([]string, maxCols)
	for col := 0; col < maxCols; col++ {
		var parts []string
		for _, row := range rows {
			if col < len(row) {
				if value := strings.TrimSpace(row[col]); value != "" {
					parts = append(parts, value)
				}
			}
		}
		headers[col] = strings.Join(parts, " ")
	}

	return cleanHeaders(headers)
}

// cleanHeaders trims headers and names empty ones by position.
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		cleaned[i] = header
	}
	return cleaned
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
