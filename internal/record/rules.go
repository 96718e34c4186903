// =============================================================================
// Ledger Upload Reformatter - Field Derivation Rules
// =============================================================================
//
// Each target column is derived by one rule. Rules are pure: they read only
// their own inputs and share no state, so they can run in any order and on
// any number of rows at once.
//
//   | Target column    | Rule                | Source columns              |
//   |------------------|---------------------|-----------------------------|
//   | Debtor Reference | DebtorReference     | Custome, Invoice Type       |
//   | Transaction Type | ClassifyTransaction | Amount                      |
//   | Document Number  | DocumentNumber      | Reference Document          |
//   | Document Date    | DocumentDate        | Posting Date                |
//   | Document Balance | DocumentBalance     | Amount                      |
//
// ROUNDING:
//   Document Balance rounds half away from zero to two decimals on the
//   exact decimal value: 2.675 -> 2.68, -2.675 -> -2.68, 99.999 -> 100.00.
//   A negative amount that rounds to zero prints as -0.00.
//
// =============================================================================

package record

import (
	"fmt"
	"strings"
)

// DocumentDateLayout is the output layout of Document Date (DD/MM/YYYY).
const DocumentDateLayout = "02/01/2006"

// DebtorReference joins the customer code and the invoice type label with
// an underscore, e.g. "C100" and "T&M" give "C100_T&M Billing - R3".
func DebtorReference(customerCode, invoiceType any) (string, error) {
	customer, ok := toText(customerCode)
	if !ok {
		return "", fmt.Errorf("%w: customer code is empty", ErrMissingField)
	}

	code, ok := toText(invoiceType)
	if !ok {
		return "", fmt.Errorf("%w: invoice type is empty", ErrMissingField)
	}

	label, err := Label(code)
	if err != nil {
		return "", err
	}

	return customer + "_" + label, nil
}

// ClassifyTransaction returns Invoice for amounts >= 0 and CreditNote for
// negative amounts. Zero is an invoice.
func ClassifyTransaction(amount any) (TransactionType, error) {
	d, err := toDecimal(amount)
	if err != nil {
		return "", amountError(err)
	}

	if d.Sign() < 0 {
		return CreditNote, nil
	}
	return Invoice, nil
}

// DocumentNumber returns the reference document as text, verbatim.
func DocumentNumber(referenceDocument any) (string, error) {
	number, ok := toText(referenceDocument)
	if !ok {
		return "", fmt.Errorf("%w: reference document is empty", ErrMissingField)
	}
	return number, nil
}

// DocumentDate formats the posting date as DD/MM/YYYY.
func DocumentDate(postingDate any) (string, error) {
	t, err := toDate(postingDate)
	if err != nil {
		return "", err
	}
	return t.Format(DocumentDateLayout), nil
}

// DocumentBalance formats the amount with exactly two decimals. Negative
// values keep their minus sign, also when they round to zero ("-0.00"), so
// the balance agrees with a CRD transaction type. Positive values get no
// plus sign.
func DocumentBalance(amount any) (string, error) {
	d, err := toDecimal(amount)
	if err != nil {
		return "", amountError(err)
	}

	balance := d.StringFixed(2)
	if d.Sign() < 0 && !strings.HasPrefix(balance, "-") {
		balance = "-" + balance
	}
	return balance, nil
}

// amountError adds context to a bare ErrMissingField from toDecimal.
func amountError(err error) error {
	if err == ErrMissingField {
		return fmt.Errorf("%w: amount is empty", ErrMissingField)
	}
	return err
}
