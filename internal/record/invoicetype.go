package record

import "fmt"

// invoiceTypeLabels maps the ledger's invoice type codes to the labels the
// import system expects in the debtor reference. Never mutated.
var invoiceTypeLabels = map[string]string{
	"PM":       "Regular Charges",
	"T&M":      "T&M Billing - R3",
	"Projects": "Constr Proj - R3",
	"Quote":    "QTN Billing - R3",
}

// invoiceTypeCodes is the display order of the recognized codes.
var invoiceTypeCodes = []string{"PM", "T&M", "Projects", "Quote"}

// Label returns the display label for an invoice type code.
// The match is exact: no trimming, no case folding.
func Label(code string) (string, error) {
	label, ok := invoiceTypeLabels[code]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnrecognizedCategory, code)
	}
	return label, nil
}

// Codes returns the recognized invoice type codes in display order.
func Codes() []string {
	codes := make([]string, len(invoiceTypeCodes))
	copy(codes, invoiceTypeCodes)
	return codes
}
