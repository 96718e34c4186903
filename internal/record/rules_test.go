package record

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabel(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"PM", "Regular Charges"},
		{"T&M", "T&M Billing - R3"},
		{"Projects", "Constr Proj - R3"},
		{"Quote", "QTN Billing - R3"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, err := Label(tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, code := range []string{"Bogus", "pm", " PM", ""} {
		_, err := Label(code)
		assert.ErrorIs(t, err, ErrUnrecognizedCategory, "code %q", code)
	}
}

func TestCodesReturnsCopy(t *testing.T) {
	codes := Codes()
	require.Equal(t, []string{"PM", "T&M", "Projects", "Quote"}, codes)

	codes[0] = "changed"
	assert.Equal(t, "PM", Codes()[0])
}

func TestDebtorReference(t *testing.T) {
	tests := []struct {
		name     string
		customer any
		invoice  any
		want     string
		wantErr  error
	}{
		{name: "string code", customer: "C100", invoice: "T&M", want: "C100_T&M Billing - R3"},
		{name: "integer code", customer: 4711, invoice: "PM", want: "4711_Regular Charges"},
		{name: "whole float code", customer: 100.0, invoice: "Quote", want: "100_QTN Billing - R3"},
		{name: "int64 code", customer: int64(9000001), invoice: "Projects", want: "9000001_Constr Proj - R3"},
		{name: "code kept verbatim", customer: " C7 ", invoice: "PM", want: " C7 _Regular Charges"},
		{name: "nil customer", customer: nil, invoice: "PM", wantErr: ErrMissingField},
		{name: "blank customer", customer: "   ", invoice: "PM", wantErr: ErrMissingField},
		{name: "NaN customer", customer: math.NaN(), invoice: "PM", wantErr: ErrMissingField},
		{name: "nil invoice type", customer: "C1", invoice: nil, wantErr: ErrMissingField},
		{name: "unknown invoice type", customer: "C1", invoice: "Bogus", wantErr: ErrUnrecognizedCategory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DebtorReference(tt.customer, tt.invoice)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDebtorReferenceNeverEmitsNullLabel(t *testing.T) {
	got, err := DebtorReference("C100", "Bogus")
	require.Error(t, err)
	assert.NotContains(t, got, "None")
	assert.NotContains(t, got, "null")
	assert.Equal(t, "UnrecognizedCategory", Kind(err))
}

func TestClassifyTransaction(t *testing.T) {
	tests := []struct {
		name   string
		amount any
		want   TransactionType
	}{
		{"zero int", 0, Invoice},
		{"zero string", "0.00", Invoice},
		{"negative zero string", "-0.00", Invoice},
		{"negative zero float", math.Copysign(0, -1), Invoice},
		{"one cent", 0.01, Invoice},
		{"large positive", "1,250,000.00", Invoice},
		{"negative float", -150.5, CreditNote},
		{"negative cent", "-0.01", CreditNote},
		{"accounting negative", "(12.50)", CreditNote},
		{"trailing minus", "12.50-", CreditNote},
		{"decimal value", decimal.RequireFromString("-3"), CreditNote},
		{"json number", json.Number("42.1"), Invoice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClassifyTransaction(tt.amount)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyTransactionErrors(t *testing.T) {
	tests := []struct {
		name    string
		amount  any
		wantErr error
	}{
		{"nil", nil, ErrMissingField},
		{"blank", " ", ErrMissingField},
		{"text", "abc", ErrInvalidAmount},
		{"two dots", "1.2.3", ErrInvalidAmount},
		{"decimal comma", "1234,56", ErrInvalidAmount},
		{"negative decimal comma", "-150,5", ErrInvalidAmount},
		{"european grouping", "1.234,56", ErrInvalidAmount},
		{"misplaced commas", "1,2,3", ErrInvalidAmount},
		{"short group", "12,34.5", ErrInvalidAmount},
		{"infinity", math.Inf(1), ErrInvalidAmount},
		{"bool", true, ErrInvalidAmount},
		{"date", time.Now(), ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ClassifyTransaction(tt.amount)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDocumentNumber(t *testing.T) {
	tests := []struct {
		name string
		ref  any
		want string
	}{
		{"string", "INV-0001", "INV-0001"},
		{"leading zeros kept", "000123", "000123"},
		{"spaces kept", " 12 ", " 12 "},
		{"integer", 5100001234, "5100001234"},
		{"whole float", 5100001234.0, "5100001234"},
		{"fractional float", 12.5, "12.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DocumentNumber(tt.ref)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := DocumentNumber(nil)
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = DocumentNumber("")
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestDocumentDate(t *testing.T) {
	tests := []struct {
		name    string
		posting any
		want    string
	}{
		{"time value", time.Date(2024, time.January, 3, 0, 0, 0, 0, time.UTC), "03/01/2024"},
		{"timestamp keeps calendar day", time.Date(2024, time.January, 3, 23, 59, 0, 0, time.FixedZone("AEST", 10*3600)), "03/01/2024"},
		{"iso date", "2024-01-03", "03/01/2024"},
		{"iso date time", "2024-01-03 00:00:00", "03/01/2024"},
		{"rfc3339 with offset", "2024-01-03T22:00:00-05:00", "03/01/2024"},
		{"year first slashes", "2024/01/03", "03/01/2024"},
		{"dotted day first", "03.01.2024", "03/01/2024"},
		{"slash month first", "1/3/2024", "03/01/2024"},
		{"slash falls back to day first", "25/12/2024", "25/12/2024"},
		{"slash with time", "01/03/2024 00:00", "03/01/2024"},
		{"month name", "Jan 3, 2024", "03/01/2024"},
		{"day month name", "3 Jan 2024", "03/01/2024"},
		{"ledger style", "03-Jan-2024", "03/01/2024"},
		{"compact", "20240103", "03/01/2024"},
		{"leap day", "2024-02-29", "29/02/2024"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DocumentDate(tt.posting)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDocumentDateErrors(t *testing.T) {
	for _, posting := range []any{
		nil,
		"",
		"not a date",
		"2023-02-29",
		"31/31/2024",
		time.Time{},
		45294,
	} {
		_, err := DocumentDate(posting)
		assert.ErrorIs(t, err, ErrInvalidDate, "posting date %#v", posting)
	}
}

func TestDocumentBalance(t *testing.T) {
	tests := []struct {
		name   string
		amount any
		want   string
	}{
		{"pads one decimal", 1234.5, "1234.50"},
		{"negative integer", -7, "-7.00"},
		{"rounds up to next integer", 99.999, "100.00"},
		{"half away from zero", "2.675", "2.68"},
		{"negative half away from zero", "-2.675", "-2.68"},
		{"float half", 0.125, "0.13"},
		{"truncates below half", "10.004", "10.00"},
		{"zero", 0, "0.00"},
		{"tiny negative keeps its sign", "-0.001", "-0.00"},
		{"accounting tiny negative", "(0.004)", "-0.00"},
		{"negative zero stays unsigned", "-0.00", "0.00"},
		{"no plus sign", "+5", "5.00"},
		{"thousands separators", "1,234,567.891", "1234567.89"},
		{"currency symbol", "$19.9", "19.90"},
		{"accounting negative", "(1,000)", "-1000.00"},
		{"scientific", "1.5e3", "1500.00"},
		{"decimal", decimal.New(-12345, -3), "-12.35"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DocumentBalance(tt.amount)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := DocumentBalance("12,5o")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	for _, amount := range []string{"1234,56", "-150,5", "1.234,56", "1,2,3"} {
		_, err := DocumentBalance(amount)
		assert.ErrorIs(t, err, ErrInvalidAmount, "amount %q", amount)
	}

	_, err = DocumentBalance(nil)
	assert.ErrorIs(t, err, ErrMissingField)
}
