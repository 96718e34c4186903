// =============================================================================
// Ledger Upload Reformatter - Record Types
// =============================================================================
//
// This file defines the two record shapes the reformatter deals with:
//
//   SourceRecord - one row of the ledger export, values as the source
//                  delivered them (strings, numbers, dates or nil)
//   TargetRecord - one row of the import file, five text columns in a
//                  fixed order
//
// SOURCE COLUMNS:
//   | Field              | Export header                      |
//   |--------------------|------------------------------------|
//   | CustomerCode       | Custome (alias: Customer)          |
//   | InvoiceType        | Invoice Type                       |
//   | Amount             | Amount in Company Code Currency    |
//   | ReferenceDocument  | Reference Document                 |
//   | PostingDate        | Posting Date                       |
//
// TARGET COLUMNS (order is part of the import contract):
//   Debtor Reference, Transaction Type, Document Number, Document Date,
//   Document Balance
//
// =============================================================================

package record

import "strings"

// =============================================================================
// SOURCE COLUMN HEADERS
// =============================================================================

const (
	// ColumnCustomer is the customer code header as the ledger exports it.
	ColumnCustomer = "Custome"

	// ColumnInvoiceType is the invoice type header.
	ColumnInvoiceType = "Invoice Type"

	// ColumnAmount is the signed amount header.
	ColumnAmount = "Amount in Company Code Currency"

	// ColumnReferenceDocument is the reference document header.
	ColumnReferenceDocument = "Reference Document"

	// ColumnPostingDate is the posting date header.
	ColumnPostingDate = "Posting Date"
)

// columnAliases lists alternative headers accepted for a source column.
var columnAliases = map[string][]string{
	ColumnCustomer: {"Customer"},
}

// SourceColumns returns the required source headers in export order.
func SourceColumns() []string {
	return []string{
		ColumnCustomer,
		ColumnInvoiceType,
		ColumnAmount,
		ColumnReferenceDocument,
		ColumnPostingDate,
	}
}

// =============================================================================
// TARGET COLUMN HEADERS
// =============================================================================

const (
	FieldDebtorReference = "Debtor Reference"
	FieldTransactionType = "Transaction Type"
	FieldDocumentNumber  = "Document Number"
	FieldDocumentDate    = "Document Date"
	FieldDocumentBalance = "Document Balance"
)

// Header returns the target header row in import order.
func Header() []string {
	return []string{
		FieldDebtorReference,
		FieldTransactionType,
		FieldDocumentNumber,
		FieldDocumentDate,
		FieldDocumentBalance,
	}
}

// =============================================================================
// TRANSACTION TYPE
// =============================================================================

// TransactionType classifies a movement as an invoice or a credit note.
type TransactionType string

const (
	// Invoice is used for amounts greater than or equal to zero.
	Invoice TransactionType = "INV"

	// CreditNote is used for negative amounts.
	CreditNote TransactionType = "CRD"
)

// =============================================================================
// RECORDS
// =============================================================================

// SourceRecord is one row of the ledger export.
// Values are kept as delivered by the source; the derivation rules coerce
// them explicitly.
type SourceRecord struct {
	CustomerCode      any
	InvoiceType       any
	Amount            any
	ReferenceDocument any
	PostingDate       any
}

// TargetRecord is one row of the import file.
type TargetRecord struct {
	DebtorReference string
	TransactionType TransactionType
	DocumentNumber  string
	DocumentDate    string
	DocumentBalance string
}

// Values returns the record's columns in header order.
func (r TargetRecord) Values() []string {
	return []string{
		r.DebtorReference,
		string(r.TransactionType),
		r.DocumentNumber,
		r.DocumentDate,
		r.DocumentBalance,
	}
}

// =============================================================================
// DATASET
// =============================================================================

// Dataset is an ordered, in-memory table of source rows.
type Dataset struct {
	// Headers are the source headers as read, in file order.
	Headers []string

	// Rows are the source rows in file order.
	Rows []SourceRecord

	// Lines holds the 1-based file line (or sheet row) of each entry in
	// Rows. It is either empty or the same length as Rows.
	Lines []int

	// Raw keeps every source row by header for previews. Optional.
	Raw []map[string]string
}

// Line returns the source line of row i, or 0 if unknown.
func (d *Dataset) Line(i int) int {
	if i < 0 || i >= len(d.Lines) {
		return 0
	}
	return d.Lines[i]
}

// ColumnIndex resolves each required source column to its position in
// headers. Headers are compared after trimming surrounding whitespace.
//
// RETURNS:
//   - A map from the canonical column name to its index.
//   - A MissingColumnError for the first required column not found.
func ColumnIndex(headers []string) (map[string]int, error) {
	positions := make(map[string]int, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if _, seen := positions[h]; !seen {
			positions[h] = i
		}
	}

	index := make(map[string]int, 5)
	for _, column := range SourceColumns() {
		if pos, ok := positions[column]; ok {
			index[column] = pos
			continue
		}
		found := false
		for _, alias := range columnAliases[column] {
			if pos, ok := positions[alias]; ok {
				index[column] = pos
				found = true
				break
			}
		}
		if !found {
			return nil, MissingColumnError(column)
		}
	}

	return index, nil
}

// FromValues builds a SourceRecord from a row of cell values using an
// index produced by ColumnIndex. Cells beyond the end of the row are nil.
func FromValues(values []any, index map[string]int) SourceRecord {
	get := func(column string) any {
		pos := index[column]
		if pos < len(values) {
			return values[pos]
		}
		return nil
	}

	return SourceRecord{
		CustomerCode:      get(ColumnCustomer),
		InvoiceType:       get(ColumnInvoiceType),
		Amount:            get(ColumnAmount),
		ReferenceDocument: get(ColumnReferenceDocument),
		PostingDate:       get(ColumnPostingDate),
	}
}
