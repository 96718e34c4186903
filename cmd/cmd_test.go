package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ginjaninja78/ledger-upload-reformatter/internal/config"
	"github.com/ginjaninja78/ledger-upload-reformatter/internal/csvsink"
)

const ledgerHeader = "Custome,Invoice Type,Posting Date,Reference Document,Amount in Company Code Currency\n"

const convertedHeader = "Debtor Reference,Transaction Type,Document Number,Document Date,Document Balance\n"

// execute runs the CLI with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	// Flag variables outlive a single Execute.
	cfgFile, verbose = config.DefaultConfigFile, false
	convertOutput, convertBestEffort, convertWorkers, convertPreview, convertErrors = csvsink.FileName, false, 0, 0, ""
	dryRun, filePath, serveAddr = false, "", ""

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Ledger Upload Reformatter")
	assert.Contains(t, out, "Version:    "+Version)
}

func TestLabels(t *testing.T) {
	out, _, err := execute(t, "labels")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "INVOICE TYPE"))
	assert.Contains(t, lines[2], "T&M Billing - R3")
	assert.Contains(t, lines[2], "C100_T&M Billing - R3")
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "ledger.csv"), ledgerHeader+
		"C100,T&M,2024-01-03,1800000042,-150.5\n"+
		"C200,PM,2024-01-04,1800000043,0\n")
	output := filepath.Join(dir, "out.csv")

	_, stderr, err := execute(t, "convert", input, "--output", output, "--workers", "2", "--preview", "1")
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, convertedHeader+
		"C100_T&M Billing - R3,CRD,1800000042,03/01/2024,-150.50\n"+
		"C200_Regular Charges,INV,1800000043,04/01/2024,0.00\n",
		string(data))

	assert.Contains(t, stderr, "Original Data Preview")
	assert.Contains(t, stderr, "Converted Data Preview")
	assert.Contains(t, stderr, "C100_T&M Billing - R3")
	assert.NotContains(t, stderr, "C200_Regular Charges")
}

func TestConvertToStdout(t *testing.T) {
	input := writeFile(t, filepath.Join(t.TempDir(), "ledger.csv"), ledgerHeader+"C1,Quote,2024-01-03,9,99.999\n")

	out, _, err := execute(t, "convert", input, "-o", "-")
	require.NoError(t, err)
	assert.Equal(t, convertedHeader+"C1_QTN Billing - R3,INV,9,03/01/2024,100.00\n", out)
}

func TestConvertFailFast(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "ledger.csv"), ledgerHeader+
		"C100,PM,2024-01-03,1,10\n"+
		"C200,PM,31/31/2024,2,20\n")
	output := filepath.Join(dir, "out.csv")

	_, _, err := execute(t, "convert", input, "-o", output)
	require.Error(t, err)
	assert.Equal(t, `row 2 (line 3), Posting Date -> Document Date: invalid date: "31/31/2024"`, err.Error())

	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr), "nothing is written when a row fails")
}

func TestConvertBestEffort(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "ledger.csv"), ledgerHeader+
		"C100,PM,2024-01-03,1,10\n"+
		"C200,PM,2024-01-04,2,ten\n")
	output := filepath.Join(dir, "out.csv")
	report := filepath.Join(dir, "errors.csv")

	_, _, err := execute(t, "convert", input, "-o", output, "--best-effort", "--errors", report)
	require.NoError(t, err)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, convertedHeader+"C100_Regular Charges,INV,1,03/01/2024,10.00\n", string(data))

	data, err = os.ReadFile(report)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3, "one line per failed rule")
	assert.Contains(t, lines[1], "InvalidAmount")
	assert.Contains(t, lines[2], "InvalidAmount")
}

func TestConvertMissingArgument(t *testing.T) {
	_, _, err := execute(t, "convert")
	assert.Error(t, err)
}

func TestConvertBadConfig(t *testing.T) {
	input := writeFile(t, filepath.Join(t.TempDir(), "ledger.csv"), ledgerHeader)
	_, _, err := execute(t, "convert", input, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to load config")
}

func TestProcess(t *testing.T) {
	root := t.TempDir()
	inputDir := filepath.Join(root, "input")
	outputDir := filepath.Join(root, "output")
	require.NoError(t, os.MkdirAll(inputDir, 0o755))

	cfg := writeFile(t, filepath.Join(root, "config.yaml"), "input_dir: "+inputDir+"\n"+
		"output_dir: "+outputDir+"\n"+
		"input_archive_dir: "+filepath.Join(root, "input_archive")+"\n"+
		"output_archive_dir: "+filepath.Join(root, "output_archive")+"\n"+
		"output_file_format: \"{original}_converted.csv\"\n"+
		"log_level: error\n"+
		"max_concurrency: 2\n")

	writeFile(t, filepath.Join(inputDir, "good.csv"), ledgerHeader+"C100,PM,2024-01-03,1,10\n")
	writeFile(t, filepath.Join(inputDir, "bad.csv"), ledgerHeader+"C100,Nope,2024-01-03,1,10\n")
	writeFile(t, filepath.Join(inputDir, "notes.txt"), "ignored")

	_, _, err := execute(t, "process", "--config", cfg)
	require.Error(t, err)
	assert.Equal(t, "1 of 2 file(s) failed", err.Error())

	data, err := os.ReadFile(filepath.Join(outputDir, "good_converted.csv"))
	require.NoError(t, err)
	assert.Equal(t, convertedHeader+"C100_Regular Charges,INV,1,03/01/2024,10.00\n", string(data))

	assert.FileExists(t, filepath.Join(root, "input_archive", "good.csv"))
	assert.FileExists(t, filepath.Join(inputDir, "bad.csv"))

	summaries, err := filepath.Glob(filepath.Join(outputDir, "processing_summary_*.txt"))
	require.NoError(t, err)
	assert.Len(t, summaries, 1)

	logs, err := filepath.Glob(filepath.Join(outputDir, "error_log_*.txt"))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	data, err = os.ReadFile(logs[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "UnrecognizedCategory")
	assert.Contains(t, string(data), "bad.csv")
}

func TestProcessDryRun(t *testing.T) {
	root := t.TempDir()
	inputDir := filepath.Join(root, "input")
	outputDir := filepath.Join(root, "output")
	require.NoError(t, os.MkdirAll(inputDir, 0o755))

	cfg := writeFile(t, filepath.Join(root, "config.yaml"), "input_dir: "+inputDir+"\n"+
		"output_dir: "+outputDir+"\n"+
		"log_level: error\n")
	input := writeFile(t, filepath.Join(inputDir, "good.csv"), ledgerHeader+"C100,PM,2024-01-03,1,10\n")

	_, _, err := execute(t, "process", "--config", cfg, "--dry-run")
	require.NoError(t, err)

	assert.FileExists(t, input)
	assert.NoDirExists(t, outputDir)
}
