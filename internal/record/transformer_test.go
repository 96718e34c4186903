package record

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRow(i int) SourceRecord {
	return SourceRecord{
		CustomerCode:      fmt.Sprintf("C%03d", i),
		InvoiceType:       Codes()[i%4],
		Amount:            float64(i) - 50.5,
		ReferenceDocument: 5100000000 + i,
		PostingDate:       time.Date(2024, time.January, 1+i%28, 0, 0, 0, 0, time.UTC),
	}
}

func validRows(n int) []SourceRecord {
	rows := make([]SourceRecord, n)
	for i := range rows {
		rows[i] = validRow(i)
	}
	return rows
}

type countingObserver struct {
	mu         sync.Mutex
	ok         int
	failedRows int
	failed     map[string]int
}

func (o *countingObserver) RowTransformed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ok++
}

func (o *countingObserver) RowFailed(kinds []string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failed == nil {
		o.failed = make(map[string]int)
	}
	o.failedRows++
	for _, kind := range kinds {
		o.failed[kind]++
	}
}

func TestTransformSingleRow(t *testing.T) {
	rows := []SourceRecord{{
		CustomerCode:      "C100",
		InvoiceType:       "T&M",
		Amount:            -150.5,
		ReferenceDocument: "1800000042",
		PostingDate:       "2024-01-03",
	}}

	res, err := NewTransformer().Transform(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, res.Records, 1)

	assert.Equal(t, TargetRecord{
		DebtorReference: "C100_T&M Billing - R3",
		TransactionType: CreditNote,
		DocumentNumber:  "1800000042",
		DocumentDate:    "03/01/2024",
		DocumentBalance: "-150.50",
	}, res.Records[0])
	assert.Equal(t, []string{"C100_T&M Billing - R3", "CRD", "1800000042", "03/01/2024", "-150.50"}, res.Records[0].Values())
	assert.Equal(t, 1, res.Total)
	assert.Empty(t, res.Failures)
}

func TestTransformEmptyInput(t *testing.T) {
	for _, rows := range [][]SourceRecord{nil, {}} {
		res, err := NewTransformer(WithPolicy(BestEffort)).Transform(context.Background(), rows)
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.NotNil(t, res.Records)
		assert.Empty(t, res.Records)
		assert.Empty(t, res.Failures)
		assert.Zero(t, res.Total)
	}
}

func TestTransformPreservesOrderAcrossWorkers(t *testing.T) {
	rows := validRows(1000)

	sequential, err := NewTransformer().Transform(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, sequential.Records, len(rows))

	for _, workers := range []int{2, 3, 7, 16, 5000} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			res, err := NewTransformer(WithWorkers(workers)).Transform(context.Background(), rows)
			require.NoError(t, err)
			assert.Equal(t, sequential.Records, res.Records)
		})
	}

	for i, rec := range sequential.Records {
		assert.Equal(t, fmt.Sprintf("%d", 5100000000+i), rec.DocumentNumber)
	}
}

func TestTransformFailFastReportsLowestRow(t *testing.T) {
	rows := validRows(400)
	rows[350].PostingDate = "not a date"
	rows[120].InvoiceType = "Bogus"
	rows[121].Amount = "abc"

	for _, workers := range []int{1, 4, 32} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			res, err := NewTransformer(WithWorkers(workers)).Transform(context.Background(), rows)
			require.Error(t, err)
			assert.Nil(t, res)

			var rowErr *RowError
			require.True(t, errors.As(err, &rowErr))
			assert.Equal(t, 120, rowErr.Index)
			assert.Equal(t, FieldDebtorReference, rowErr.Field)
			assert.Equal(t, "UnrecognizedCategory", rowErr.Kind())
			assert.ErrorIs(t, err, ErrUnrecognizedCategory)
			assert.Contains(t, err.Error(), "row 121")
		})
	}
}

func TestTransformBestEffortSkipsAndReports(t *testing.T) {
	rows := validRows(10)
	rows[2].Amount = "abc"
	rows[5].PostingDate = nil
	rows[5].ReferenceDocument = nil
	rows[9].CustomerCode = ""

	obs := &countingObserver{}
	res, err := NewTransformer(
		WithPolicy(BestEffort),
		WithWorkers(3),
		WithObserver(obs),
	).Transform(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, 10, res.Total)
	require.Len(t, res.Records, 7)
	assert.Equal(t, "C000_Regular Charges", res.Records[0].DebtorReference)
	assert.Equal(t, "C003_QTN Billing - R3", res.Records[2].DebtorReference)

	got := make([]string, 0, len(res.Failures))
	for _, f := range res.Failures {
		got = append(got, fmt.Sprintf("%d:%s:%s", f.Index, f.Field, f.Kind()))
	}
	assert.Equal(t, []string{
		"2:Transaction Type:InvalidAmount",
		"2:Document Balance:InvalidAmount",
		"5:Document Number:MissingField",
		"5:Document Date:InvalidDate",
		"9:Debtor Reference:MissingField",
	}, got)

	assert.Equal(t, 7, obs.ok)
	assert.Equal(t, 3, obs.failedRows, "a row with two failed rules is one failed row")
	assert.Equal(t, map[string]int{"InvalidAmount": 2, "MissingField": 2, "InvalidDate": 1}, obs.failed)
}

func TestTransformDatasetCarriesLines(t *testing.T) {
	ds := &Dataset{
		Rows:  validRows(3),
		Lines: []int{2, 3, 5},
	}
	ds.Rows[2].PostingDate = "31/31/2024"

	_, err := NewTransformer().TransformDataset(context.Background(), ds)
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Equal(t, 2, rowErr.Index)
	assert.Equal(t, 5, rowErr.Line)
	assert.Equal(t, ColumnPostingDate, rowErr.Column)
	assert.Equal(t, `row 3 (line 5), Posting Date -> Document Date: invalid date: "31/31/2024"`, err.Error())
}

func TestDatasetLine(t *testing.T) {
	ds := &Dataset{Rows: validRows(2), Lines: []int{4, 9}}
	assert.Equal(t, 4, ds.Line(0))
	assert.Equal(t, 9, ds.Line(1))
	assert.Equal(t, 0, ds.Line(2))
	assert.Equal(t, 0, ds.Line(-1))

	rows := validRows(2)
	rows[1].Amount = nil
	_, err := NewTransformer().Transform(context.Background(), rows)
	var rowErr *RowError
	require.ErrorAs(t, err, &rowErr)
	assert.Zero(t, rowErr.Line, "rows without a dataset have no line")
	assert.Equal(t, "row 2, Amount in Company Code Currency -> Transaction Type: missing field: amount is empty", err.Error())
}

func TestTransformCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewTransformer(WithWorkers(4)).Transform(ctx, validRows(100))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransformRowFailFastStopsAtFirstRule(t *testing.T) {
	row := SourceRecord{}

	_, errs := NewTransformer().TransformRow(0, row)
	require.Len(t, errs, 1)
	assert.Equal(t, FieldDebtorReference, errs[0].Field)

	_, errs = NewTransformer(WithPolicy(BestEffort)).TransformRow(0, row)
	assert.Len(t, errs, 5)
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in   string
		want Policy
	}{
		{"", FailFast},
		{"fail_fast", FailFast},
		{"FAIL-FAST", FailFast},
		{"best_effort", BestEffort},
		{" best-effort ", BestEffort},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParsePolicy("sometimes")
	assert.Error(t, err)

	assert.Equal(t, "best_effort", BestEffort.String())
	assert.Equal(t, "fail_fast", FailFast.String())
}

func TestColumnIndex(t *testing.T) {
	headers := []string{"Company Code", " Customer ", "Invoice Type", "Posting Date", "Reference Document", "Amount in Company Code Currency"}

	index, err := ColumnIndex(headers)
	require.NoError(t, err)
	assert.Equal(t, 1, index[ColumnCustomer])
	assert.Equal(t, 5, index[ColumnAmount])

	rec := FromValues([]any{"1000", "C9", "PM", "2024-01-03", "42"}, index)
	assert.Equal(t, "C9", rec.CustomerCode)
	assert.Equal(t, "42", rec.ReferenceDocument)
	assert.Nil(t, rec.Amount)

	_, err = ColumnIndex([]string{"Custome", "Invoice Type"})
	assert.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), ColumnAmount)
}
