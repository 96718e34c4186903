// =============================================================================
// Ledger Upload Reformatter - Converter Module
// =============================================================================
//
// This module contains the batch conversion logic. It orchestrates the
// pipeline for a single ledger export, from reading the source file to
// writing the import CSV.
//
// CONVERSION PIPELINE:
//   1. Read the export (.xlsx or .csv) into a dataset
//   2. Transform every row with the record transformer
//   3. Write the converted CSV to the output directory
//   4. Write an error report for skipped rows (best-effort only)
//   5. Archive the processed files
//
// CONCURRENCY:
//   Each file is processed by its own Converter. Converters share nothing
//   but the metrics, which are safe for concurrent use, so the process
//   command can run several of them at once.
//
// =============================================================================

package converter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ginjaninja78/ledger-upload-reformatter/internal/config"
	"github.com/ginjaninja78/ledger-upload-reformatter/internal/csvsink"
	"github.com/ginjaninja78/ledger-upload-reformatter/internal/metrics"
	"github.com/ginjaninja78/ledger-upload-reformatter/internal/record"
	"github.com/ginjaninja78/ledger-upload-reformatter/pkg/utils"
)

// =============================================================================
// RESULT STRUCTURE
// =============================================================================

// Result represents the outcome of processing a single file.
type Result struct {
	// FilePath is the path to the input file that was processed.
	FilePath string

	// OutputFile is the path to the generated CSV file.
	// This is empty if processing failed or was a dry run.
	OutputFile string

	// ErrorReport is the path to the CSV listing skipped rows, if any.
	ErrorReport string

	// ArchivePath is where the input file was archived, if it was.
	ArchivePath string

	// Success indicates whether the processing was successful.
	Success bool

	// DryRun is set when nothing was written.
	DryRun bool

	// Error contains the error if processing failed.
	Error error

	// Failures lists the rows that failed a derivation rule. Under
	// fail-fast it holds at most the one row that rejected the file.
	Failures []*record.RowError

	// Stats contains processing statistics.
	Stats ProcessingStats
}

// ProcessingStats contains statistics about the processing.
type ProcessingStats struct {
	// Rows is the number of source rows read.
	Rows int

	// Records is the number of target records written.
	Records int

	// RowErrors is the number of failed derivation rules.
	RowErrors int

	// ProcessingTime is the time taken to process the file.
	ProcessingTime time.Duration
}

// =============================================================================
// CONVERTER STRUCTURE
// =============================================================================

// Converter handles the conversion of a single ledger export.
type Converter struct {
	inputPath   string
	cfg         *config.MainConfig
	files       *utils.FileManager
	transformer *record.Transformer
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	dryRun      bool
}

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Converter) { c.logger = logger }
}

// WithMetrics records row, file and timing metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Converter) { c.metrics = m }
}

// WithFileManager sets the file manager used for archiving.
// The default is built from the configured directories.
func WithFileManager(fm *utils.FileManager) Option {
	return func(c *Converter) { c.files = fm }
}

// WithDryRun reads and transforms the file but writes and moves nothing.
func WithDryRun(dryRun bool) Option {
	return func(c *Converter) { c.dryRun = dryRun }
}

// =============================================================================
// CONSTRUCTOR
// =============================================================================

// New creates a new Converter instance.
//
// PARAMETERS:
//   - inputPath: The path to the ledger export.
//   - cfg: The application configuration. Its failure policy, row workers,
//          CSV settings and output naming apply.
//   - opts: Optional settings.
//
// RETURNS:
//   - A new Converter instance.
func New(inputPath string, cfg *config.MainConfig, opts ...Option) *Converter {
	c := &Converter{
		inputPath: inputPath,
		cfg:       cfg,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.files == nil {
		c.files = utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir, cfg.OutputArchiveDir)
		c.files.ArchiveOnSuccess = cfg.ArchiveOnSuccess
	}

	c.logger = c.logger.With().Str("file", filepath.Base(inputPath)).Logger()

	transformerOpts := []record.Option{
		record.WithPolicy(cfg.Policy()),
		record.WithWorkers(cfg.RowWorkers),
		record.WithLogger(c.logger),
	}
	if c.metrics != nil {
		transformerOpts = append(transformerOpts, record.WithObserver(c.metrics))
	}
	c.transformer = record.NewTransformer(transformerOpts...)

	return c
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// Run executes the conversion pipeline for the file.
//
// RETURNS:
//   - A Result struct containing the outcome of the processing.
//
// A file converts cleanly when every row transformed. Only clean files are
// archived; a best-effort file with skipped rows keeps its input in place
// next to the error report so it can be fixed and dropped in again.
func (c *Converter) Run(ctx context.Context) (result Result) {
	startTime := time.Now()
	result = Result{
		FilePath: c.inputPath,
		DryRun:   c.dryRun,
	}

	defer func() {
		result.Stats.ProcessingTime = time.Since(startTime)
		c.countFile(result)
	}()

	c.logger.Info().Str("policy", c.transformer.Policy().String()).Msg("processing file")

	// =========================================================================
	// STEP 1: READ THE EXPORT
	// =========================================================================

	ds, err := LoadFile(c.inputPath, c.cfg.CSV)
	if err != nil {
		result.Error = fmt.Errorf("failed to read export: %w", err)
		return result
	}

	result.Stats.Rows = len(ds.Rows)
	c.logger.Debug().Int("rows", len(ds.Rows)).Msg("read export")

	// =========================================================================
	// STEP 2: TRANSFORM
	// =========================================================================

	res, err := Transform(ctx, c.transformer, ds, c.metrics)
	if err != nil {
		var rowErr *record.RowError
		if errors.As(err, &rowErr) {
			result.Failures = []*record.RowError{rowErr}
			result.Stats.RowErrors = 1
		}
		result.Error = err
		return result
	}

	result.Failures = res.Failures
	result.Stats.Records = len(res.Records)
	result.Stats.RowErrors = len(res.Failures)

	for _, f := range res.Failures {
		c.logger.Warn().
			Int("row", f.Index+1).
			Int("line", f.Line).
			Str("kind", f.Kind()).
			Msg(f.Error())
	}

	if c.dryRun {
		c.logger.Info().
			Int("records", len(res.Records)).
			Int("row_errors", len(res.Failures)).
			Msg("dry run, nothing written")
		result.Success = true
		return result
	}

	// =========================================================================
	// STEP 3: WRITE OUTPUT
	// =========================================================================

	outputPath, err := c.writeOutput(res.Records)
	if err != nil {
		result.Error = fmt.Errorf("failed to write output: %w", err)
		return result
	}
	result.OutputFile = outputPath

	// =========================================================================
	// STEP 4: ERROR REPORT
	// =========================================================================

	if len(res.Failures) > 0 {
		reportPath, err := c.writeErrorReport(outputPath, res.Failures)
		if err != nil {
			result.Error = fmt.Errorf("failed to write error report: %w", err)
			return result
		}
		result.ErrorReport = reportPath
		result.Success = true

		c.logger.Warn().
			Str("output", outputPath).
			Str("report", reportPath).
			Int("skipped", len(res.Failures)).
			Msg("converted with skipped rows, input left in place")
		return result
	}

	// =========================================================================
	// STEP 5: ARCHIVE FILES
	// =========================================================================

	// Archival problems are logged but don't fail the processing.
	if archived, err := c.files.ArchiveInputFile(c.inputPath); err != nil {
		c.logger.Warn().Err(err).Msg("failed to archive input file")
	} else if archived != c.inputPath {
		result.ArchivePath = archived
	}
	if _, err := c.files.ArchiveOutputFile(outputPath); err != nil {
		c.logger.Warn().Err(err).Msg("failed to archive output file")
	}

	result.Success = true
	c.logger.Info().
		Str("output", outputPath).
		Int("records", len(res.Records)).
		Msg("wrote output")

	return result
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// writeOutput writes the records to a new file in the output directory.
//
// FILE NAMING:
//   The output file is named according to OutputFileFormat; {original}
//   is the input file name without its extension.
func (c *Converter) writeOutput(records []record.TargetRecord) (string, error) {
	fileName := utils.GenerateOutputFileName(c.cfg.OutputFileFormat, map[string]string{
		"original": utils.BaseName(c.inputPath),
	})
	outputPath := filepath.Join(c.cfg.OutputDir, fileName)

	if err := writeFile(outputPath, func(f *os.File) error {
		return csvsink.Write(f, records)
	}); err != nil {
		return "", err
	}

	return outputPath, nil
}

// writeErrorReport writes the skipped rows next to the output file as
// <output>_errors.csv.
func (c *Converter) writeErrorReport(outputPath string, failures []*record.RowError) (string, error) {
	base := strings.TrimSuffix(outputPath, filepath.Ext(outputPath))
	reportPath := base + "_errors.csv"

	if err := writeFile(reportPath, func(f *os.File) error {
		return csvsink.WriteErrorReport(f, failures)
	}); err != nil {
		return "", err
	}

	return reportPath, nil
}

// writeFile creates path, fills it with write and removes it again if
// anything fails, so a half-written file is never left behind.
func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := write(f); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}

	return nil
}

// countFile records the file's final status.
func (c *Converter) countFile(result Result) {
	if c.metrics == nil {
		return
	}
	switch {
	case !result.Success:
		c.metrics.FileProcessed(metrics.FileFailed)
	case result.DryRun:
		c.metrics.FileProcessed(metrics.FileSkipped)
	default:
		c.metrics.FileProcessed(metrics.FileSucceeded)
	}
}
