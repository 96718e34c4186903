// =============================================================================
// Ledger Upload Reformatter - Record Transformer
// =============================================================================
//
// The transformer applies the five derivation rules to every source row and
// assembles the target records in the original row order.
//
// FAILURE POLICIES:
//   FailFast   - Any failed rule aborts the whole dataset. The error returned
//                is the RowError of the lowest failing row; no records are
//                returned. This is the default.
//   BestEffort - Rows with a failed rule are left out of the output and every
//                failure is reported in Result.Failures, in row order.
//
// CONCURRENCY:
//   A row's output depends only on that row, so rows are split into
//   contiguous chunks and transformed by up to Workers goroutines. Each
//   goroutine writes only its own slots of pre-sized slices; the final pass
//   walks the slots in index order, so output order never depends on
//   completion order. In FailFast mode a chunk stops at its first failure and
//   chunks past the lowest known failure stop early; the reported error is
//   the same one a sequential run would report.
//
// =============================================================================

package record

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// POLICY
// =============================================================================

// Policy selects how row-level failures affect a transformation.
type Policy int

const (
	// FailFast aborts on the first failing row.
	FailFast Policy = iota

	// BestEffort skips failing rows and reports them.
	BestEffort
)

// String returns the configuration name of the policy.
func (p Policy) String() string {
	switch p {
	case BestEffort:
		return "best_effort"
	default:
		return "fail_fast"
	}
}

// ParsePolicy parses "fail_fast" or "best_effort" (dashes are accepted too).
// An empty string yields FailFast.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_") {
	case "", "fail_fast":
		return FailFast, nil
	case "best_effort":
		return BestEffort, nil
	default:
		return FailFast, fmt.Errorf("unknown failure policy %q (want fail_fast or best_effort)", s)
	}
}

// =============================================================================
// RESULT
// =============================================================================

// Result is the outcome of a transformation.
type Result struct {
	// Records are the transformed rows in source order.
	Records []TargetRecord

	// Failures lists every failed rule, in row order. Always empty under
	// FailFast, since a failure is returned as the error instead.
	Failures []*RowError

	// Total is the number of source rows.
	Total int
}

// Observer receives per-row outcomes. The transformer calls it from a
// single goroutine, once per source row.
type Observer interface {
	RowTransformed()

	// RowFailed reports a rejected row with the kind of every rule that
	// failed on it.
	RowFailed(kinds []string)
}

// =============================================================================
// TRANSFORMER
// =============================================================================

// Transformer applies the derivation rules to datasets.
// A Transformer holds no per-call state and may be shared.
type Transformer struct {
	policy   Policy
	workers  int
	logger   zerolog.Logger
	observer Observer
}

// Option configures a Transformer.
type Option func(*Transformer)

// WithPolicy sets the failure policy.
func WithPolicy(p Policy) Option {
	return func(t *Transformer) { t.policy = p }
}

// WithWorkers sets the maximum number of goroutines per transformation.
// Values below 1 mean 1.
func WithWorkers(n int) Option {
	return func(t *Transformer) {
		if n < 1 {
			n = 1
		}
		t.workers = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Transformer) { t.logger = logger }
}

// WithObserver registers an Observer for row outcomes.
func WithObserver(o Observer) Option {
	return func(t *Transformer) { t.observer = o }
}

// NewTransformer creates a fail-fast, single-worker Transformer unless
// options say otherwise.
func NewTransformer(opts ...Option) *Transformer {
	t := &Transformer{
		policy:  FailFast,
		workers: 1,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Policy returns the configured failure policy.
func (t *Transformer) Policy() Policy {
	return t.policy
}

// =============================================================================
// RULE TABLE
// =============================================================================

// fieldRule binds a derivation rule to its source and target columns.
type fieldRule struct {
	column string
	field  string
	apply  func(dst *TargetRecord, src SourceRecord) error
}

// fieldRules run in target column order.
var fieldRules = []fieldRule{
	{
		column: ColumnCustomer + ", " + ColumnInvoiceType,
		field:  FieldDebtorReference,
		apply: func(dst *TargetRecord, src SourceRecord) (err error) {
			dst.DebtorReference, err = DebtorReference(src.CustomerCode, src.InvoiceType)
			return err
		},
	},
	{
		column: ColumnAmount,
		field:  FieldTransactionType,
		apply: func(dst *TargetRecord, src SourceRecord) (err error) {
			dst.TransactionType, err = ClassifyTransaction(src.Amount)
			return err
		},
	},
	{
		column: ColumnReferenceDocument,
		field:  FieldDocumentNumber,
		apply: func(dst *TargetRecord, src SourceRecord) (err error) {
			dst.DocumentNumber, err = DocumentNumber(src.ReferenceDocument)
			return err
		},
	},
	{
		column: ColumnPostingDate,
		field:  FieldDocumentDate,
		apply: func(dst *TargetRecord, src SourceRecord) (err error) {
			dst.DocumentDate, err = DocumentDate(src.PostingDate)
			return err
		},
	},
	{
		column: ColumnAmount,
		field:  FieldDocumentBalance,
		apply: func(dst *TargetRecord, src SourceRecord) (err error) {
			dst.DocumentBalance, err = DocumentBalance(src.Amount)
			return err
		},
	},
}

// =============================================================================
// TRANSFORMATION
// =============================================================================

// TransformRow applies every rule to one row.
//
// PARAMETERS:
//   - index: The 0-based position of the row, used in errors.
//   - row: The source row.
//
// RETURNS:
//   - The target record. Only meaningful when no errors are returned.
//   - The failed rules. Under FailFast at most one.
func (t *Transformer) TransformRow(index int, row SourceRecord) (TargetRecord, []*RowError) {
	var (
		rec  TargetRecord
		errs []*RowError
	)

	for _, r := range fieldRules {
		if err := r.apply(&rec, row); err != nil {
			errs = append(errs, &RowError{
				Index:  index,
				Column: r.column,
				Field:  r.field,
				Err:    err,
			})
			if t.policy == FailFast {
				break
			}
		}
	}

	if len(errs) > 0 {
		return TargetRecord{}, errs
	}
	return rec, nil
}

// Transform applies the rules to every row.
//
// RETURNS:
//   - The result. Under FailFast it is nil whenever the error is non-nil.
//   - A *RowError under FailFast when a row fails, or the context error if
//     ctx is cancelled.
func (t *Transformer) Transform(ctx context.Context, rows []SourceRecord) (*Result, error) {
	return t.transform(ctx, &Dataset{Rows: rows})
}

// TransformDataset is Transform over a dataset. Row errors carry the
// dataset's source line numbers.
func (t *Transformer) TransformDataset(ctx context.Context, ds *Dataset) (*Result, error) {
	return t.transform(ctx, ds)
}

func (t *Transformer) transform(ctx context.Context, ds *Dataset) (*Result, error) {
	start := time.Now()
	rows := ds.Rows
	n := len(rows)

	result := &Result{
		Records:  make([]TargetRecord, 0, n),
		Failures: make([]*RowError, 0),
		Total:    n,
	}
	if n == 0 {
		return result, nil
	}

	out := make([]TargetRecord, n)
	rowErrs := make([][]*RowError, n)

	workers := t.workers
	if workers > n {
		workers = n
	}
	chunkSize := (n + workers - 1) / workers

	// Lowest failing index seen so far, FailFast only.
	var firstFailure atomic.Int64
	firstFailure.Store(int64(n))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for lo := 0; lo < n; lo += chunkSize {
		lo, hi := lo, min(lo+chunkSize, n)

		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				if t.policy == FailFast && int64(i) > firstFailure.Load() {
					return nil
				}

				rec, errs := t.TransformRow(i, rows[i])
				if len(errs) == 0 {
					out[i] = rec
					continue
				}

				for _, e := range errs {
					e.Line = ds.Line(i)
				}
				rowErrs[i] = errs

				if t.policy == FailFast {
					lowerFailure(&firstFailure, int64(i))
					return nil
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i := 0; i < n; i++ {
		if errs := rowErrs[i]; errs != nil {
			t.observeFailure(errs)
			if t.policy == FailFast {
				t.logger.Debug().
					Int("row", i+1).
					Str("kind", errs[0].Kind()).
					Msg("transformation aborted")
				return nil, errs[0]
			}
			result.Failures = append(result.Failures, errs...)
			continue
		}

		result.Records = append(result.Records, out[i])
		if t.observer != nil {
			t.observer.RowTransformed()
		}
	}

	t.logger.Debug().
		Int("rows", n).
		Int("records", len(result.Records)).
		Int("failures", len(result.Failures)).
		Str("policy", t.policy.String()).
		Dur("duration", time.Since(start)).
		Msg("transformation complete")

	return result, nil
}

// observeFailure logs the failed rules of one row and reports the row to
// the observer once.
func (t *Transformer) observeFailure(errs []*RowError) {
	kinds := make([]string, len(errs))
	for i, e := range errs {
		kinds[i] = e.Kind()
		if t.policy == BestEffort {
			t.logger.Warn().
				Int("row", e.Index+1).
				Int("line", e.Line).
				Str("column", e.Column).
				Str("kind", kinds[i]).
				Err(e.Err).
				Msg("row skipped")
		}
	}
	if t.observer != nil {
		t.observer.RowFailed(kinds)
	}
}

// lowerFailure stores i in v if it is lower than the current value.
func lowerFailure(v *atomic.Int64, i int64) {
	for {
		cur := v.Load()
		if i >= cur || v.CompareAndSwap(cur, i) {
			return
		}
	}
}
