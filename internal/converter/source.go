package converter

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/ginjaninja78/ledger-upload-reformatter/internal/config"
	"github.com/ginjaninja78/ledger-upload-reformatter/internal/csvparser"
	"github.com/ginjaninja78/ledger-upload-reformatter/internal/metrics"
	"github.com/ginjaninja78/ledger-upload-reformatter/internal/record"
	"github.com/ginjaninja78/ledger-upload-reformatter/internal/xlsxsource"
)

// isCSV reports whether name should be read as a CSV export. Everything
// else goes to the workbook reader, which rejects what it cannot open.
func isCSV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

// LoadFile reads a ledger export from disk, choosing the reader by file
// extension.
func LoadFile(path string, settings config.CSVSettings) (*record.Dataset, error) {
	if isCSV(path) {
		return csvparser.Parse(path, settings)
	}
	return xlsxsource.ReadFile(path)
}

// Load reads an uploaded export from r. name is the client's file name and
// only its extension is used.
func Load(name string, r io.Reader, settings config.CSVSettings) (*record.Dataset, error) {
	if isCSV(name) {
		return csvparser.ParseReader(r, settings)
	}
	return xlsxsource.Read(r)
}

// Transform runs t over ds and records the duration on m, if set.
func Transform(ctx context.Context, t *record.Transformer, ds *record.Dataset, m *metrics.Metrics) (*record.Result, error) {
	start := time.Now()
	res, err := t.TransformDataset(ctx, ds)
	if m != nil {
		m.ObserveTransform(time.Since(start))
	}
	return res, err
}
