package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *FileManager {
	t.Helper()
	root := t.TempDir()
	fm := NewFileManager(
		filepath.Join(root, "input"),
		filepath.Join(root, "output"),
		filepath.Join(root, "input_archive"),
		filepath.Join(root, "output_archive"),
	)
	require.NoError(t, fm.EnsureDirectories())
	return fm
}

func TestDiscoverInputFiles(t *testing.T) {
	fm := newTestManager(t)

	for _, name := range []string{"b.xlsx", "a.CSV", "~$b.xlsx", ".hidden.csv", "notes.txt", "legacy.xls"} {
		require.NoError(t, os.WriteFile(filepath.Join(fm.InputDir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(fm.InputDir, "nested.csv"), 0o755))

	files, err := fm.DiscoverInputFiles()
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(fm.InputDir, "a.CSV"),
		filepath.Join(fm.InputDir, "b.xlsx"),
	}, files)
}

func TestDiscoverInputFilesMissingDir(t *testing.T) {
	fm := NewFileManager(filepath.Join(t.TempDir(), "nope"), "", "", "")
	_, err := fm.DiscoverInputFiles()
	assert.ErrorContains(t, err, "failed to scan input directory")
}

func TestArchiveInputFile(t *testing.T) {
	fm := newTestManager(t)
	src := filepath.Join(fm.InputDir, "ledger.xlsx")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	archived, err := fm.ArchiveInputFile(src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.InputArchiveDir, "ledger.xlsx"), archived)
	assert.False(t, FileExists(src))

	data, err := os.ReadFile(archived)
	require.NoError(t, err)
	assert.Equal(t, "data", string(data))
}

func TestArchiveOutputFileWithTimestampSubdirs(t *testing.T) {
	fm := newTestManager(t)
	fm.UseTimestampSubdirs = true
	fm.now = func() time.Time { return time.Date(2024, time.January, 5, 9, 0, 0, 0, time.UTC) }

	out := filepath.Join(fm.OutputDir, "ledger_converted.csv")
	require.NoError(t, os.WriteFile(out, []byte("data"), 0o644))

	archived, err := fm.ArchiveOutputFile(out)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(fm.OutputArchiveDir, "2024", "01", "05", "ledger_converted.csv"), archived)
	assert.True(t, FileExists(out), "output stays in place")
	assert.True(t, FileExists(archived))
}

func TestArchiveDisabled(t *testing.T) {
	fm := newTestManager(t)
	fm.ArchiveOnSuccess = false
	src := filepath.Join(fm.InputDir, "ledger.csv")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	archived, err := fm.ArchiveInputFile(src)
	require.NoError(t, err)
	assert.Equal(t, src, archived)
	assert.True(t, FileExists(src))
}

func TestGenerateOutputFileName(t *testing.T) {
	name := GenerateOutputFileName("{original}_converted_{date}", map[string]string{"original": "ledger_jan"})
	assert.True(t, strings.HasPrefix(name, "ledger_jan_converted_"))
	assert.True(t, strings.HasSuffix(name, ".csv"))
	assert.Len(t, name, len("ledger_jan_converted_20240115.csv"))

	assert.Equal(t, "fixed.CSV", GenerateOutputFileName("fixed.CSV", nil))
	assert.Equal(t, "a_b.csv", GenerateOutputFileName("{original}.csv", map[string]string{"original": "a/b"}))
	assert.Len(t, GenerateOutputFileName("{uuid}", nil), 36+len(".csv"))
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "ledger.jan", BaseName("/in/ledger.jan.xlsx"))
	assert.Equal(t, "ledger", BaseName("ledger"))
}

func TestWriteErrorLog(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteErrorLog(nil, dir)
	require.NoError(t, err)
	assert.Empty(t, path)

	path, err = WriteErrorLog([]ErrorLogEntry{{
		Timestamp:    time.Now(),
		FileName:     "ledger.xlsx",
		ErrorType:    "InvalidDate",
		ErrorMessage: `invalid date: "31/31/2024"`,
		RowNumber:    3,
		LineNumber:   5,
		ColumnName:   "Posting Date",
		FieldName:    "Document Date",
	}}, dir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Total Errors: 1")
	assert.Contains(t, text, "Error Type:     InvalidDate")
	assert.Contains(t, text, "Row Number:     3")
	assert.Contains(t, text, "Line Number:    5")
	assert.Contains(t, text, "Column:         Posting Date")
	assert.Contains(t, text, "Field:          Document Date")
}

func TestWriteSummaryLog(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2024, time.January, 5, 9, 0, 0, 0, time.UTC)

	path, err := WriteSummaryLog(ProcessingSummary{
		StartTime:       start,
		EndTime:         start.Add(2 * time.Second),
		TotalFiles:      2,
		SuccessfulFiles: 1,
		FailedFiles:     1,
		TotalRows:       10,
		TotalRecords:    9,
		RowErrors:       1,
		ProcessedFiles: []ProcessedFileInfo{{
			InputFile: "a.xlsx", OutputFile: "a_converted.csv", Rows: 10, Records: 9, RowErrors: 1,
		}},
		FailedFilesList: []FailedFileInfo{{InputFile: "b.xlsx", ErrorType: "InvalidAmount", ErrorMessage: "boom"}},
	}, dir)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Duration:       2s")
	assert.Contains(t, text, "Total Records:  9")
	assert.Contains(t, text, "Output:       a_converted.csv")
	assert.Contains(t, text, "Kind:  InvalidAmount")
	assert.Contains(t, text, "Error: boom")
}
