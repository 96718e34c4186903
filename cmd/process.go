// =============================================================================
// Ledger Upload Reformatter - Process Command
// =============================================================================
//
// This file defines the 'process' command, the unattended batch mode. It
// converts every ledger export waiting in the input directory.
//
// COMMAND USAGE:
//   reformatter process [flags]
//
// FLAGS:
//   --dry-run     : Read and convert, but write and move nothing
//   --file        : Process only this file instead of scanning input_dir
//
// PROCESSING PIPELINE:
//   1. Create the working directories
//   2. Discover .xlsx and .csv files in the input directory
//   3. Convert each file concurrently (max_concurrency at a time)
//   4. Write an error log and a processing summary to the output directory
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ginjaninja78/ledger-upload-reformatter/internal/converter"
	"github.com/ginjaninja78/ledger-upload-reformatter/internal/metrics"
	"github.com/ginjaninja78/ledger-upload-reformatter/internal/record"
	"github.com/ginjaninja78/ledger-upload-reformatter/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// dryRun simulates processing without writing output files.
var dryRun bool

// filePath is a single file to process instead of scanning input_dir.
var filePath string

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

// processCmd represents the 'process' command.
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Convert every ledger export in the input directory",
	Long: `The process command scans the input directory for .xlsx and .csv ledger
exports and converts each of them to an import CSV in the output directory.

Files are processed concurrently and independently; a failure in one file
does not affect the others unless continue_on_error is false.

On successful processing:
  - The converted CSV is placed in the output directory
  - The original export is moved to the input archive
  - A copy of the CSV goes to the output archive

On error:
  - The error is written to an error log in the output directory
  - The original export remains in the input directory

A processing summary is written to the output directory after every run.`,

	RunE: func(cmd *cobra.Command, args []string) error {
		return runProcess(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Simulate processing without writing output files")
	processCmd.Flags().StringVar(&filePath, "file", "", "Path to a specific file to process")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(ctx context.Context) error {
	startTime := time.Now()
	cfg := appConfig

	fm := utils.NewFileManager(cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir, cfg.OutputArchiveDir)
	fm.ArchiveOnSuccess = cfg.ArchiveOnSuccess

	// =========================================================================
	// STEP 1: DIRECTORIES
	// =========================================================================

	if !dryRun {
		if err := fm.EnsureDirectories(); err != nil {
			return err
		}
	}

	// =========================================================================
	// STEP 2: DISCOVER INPUT FILES
	// =========================================================================

	var inputFiles []string
	if filePath != "" {
		inputFiles = []string{filePath}
	} else {
		files, err := fm.DiscoverInputFiles()
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
		inputFiles = files
	}

	if len(inputFiles) == 0 {
		logger.Info().Str("input_dir", cfg.InputDir).Msg("no ledger exports found")
		return nil
	}

	logger.Info().
		Int("files", len(inputFiles)).
		Int("max_concurrency", cfg.MaxConcurrency).
		Bool("dry_run", dryRun).
		Msg("processing files")

	// =========================================================================
	// STEP 3: PROCESS FILES CONCURRENTLY
	// =========================================================================

	m := metrics.New(nil)
	results := make([]converter.Result, len(inputFiles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.MaxConcurrency)

	for i, file := range inputFiles {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			conv := converter.New(file, cfg,
				converter.WithLogger(logger),
				converter.WithMetrics(m),
				converter.WithFileManager(fm),
				converter.WithDryRun(dryRun),
			)
			results[i] = conv.Run(gctx)

			// Cancelling the group stops files that have not started yet.
			if results[i].Error != nil && !cfg.ContinueOnError {
				return fmt.Errorf("%s: %w", filepath.Base(file), results[i].Error)
			}
			return nil
		})
	}

	groupErr := g.Wait()

	// =========================================================================
	// STEP 4: ERROR LOG AND SUMMARY
	// =========================================================================

	summary := summarize(results, startTime)

	for _, r := range results {
		switch {
		case r.FilePath == "":
			// Never started.
		case r.Success:
			logger.Info().Str("file", filepath.Base(r.FilePath)).Str("output", r.OutputFile).Msg("converted")
		default:
			logger.Error().Str("file", filepath.Base(r.FilePath)).Err(r.Error).Msg("failed")
		}
	}

	logger.Info().
		Int("total", summary.TotalFiles).
		Int("succeeded", summary.SuccessfulFiles).
		Int("failed", summary.FailedFiles).
		Int("records", summary.TotalRecords).
		Int("row_errors", summary.RowErrors).
		Dur("elapsed", summary.EndTime.Sub(summary.StartTime)).
		Msg("processing complete")

	if !dryRun {
		if path, err := utils.WriteErrorLog(errorLogEntries(results), cfg.OutputDir); err != nil {
			logger.Warn().Err(err).Msg("failed to write error log")
		} else if path != "" {
			logger.Info().Str("path", path).Msg("wrote error log")
		}

		if path, err := utils.WriteSummaryLog(summary, cfg.OutputDir); err != nil {
			logger.Warn().Err(err).Msg("failed to write summary")
		} else {
			logger.Info().Str("path", path).Msg("wrote summary")
		}
	}

	if groupErr != nil {
		return groupErr
	}
	if summary.FailedFiles > 0 {
		return fmt.Errorf("%d of %d file(s) failed", summary.FailedFiles, summary.TotalFiles)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// summarize builds the processing summary from the per-file results.
// Results of files that never started are left out.
func summarize(results []converter.Result, startTime time.Time) utils.ProcessingSummary {
	summary := utils.ProcessingSummary{
		StartTime: startTime,
		EndTime:   time.Now(),
	}

	for _, r := range results {
		if r.FilePath == "" {
			continue
		}
		summary.TotalFiles++
		summary.TotalRows += r.Stats.Rows
		summary.RowErrors += r.Stats.RowErrors

		if !r.Success {
			summary.FailedFiles++
			info := utils.FailedFileInfo{InputFile: r.FilePath, ErrorMessage: r.Error.Error()}
			if len(r.Failures) > 0 {
				info.ErrorType = r.Failures[0].Kind()
			}
			summary.FailedFilesList = append(summary.FailedFilesList, info)
			continue
		}

		summary.SuccessfulFiles++
		summary.TotalRecords += r.Stats.Records
		summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
			InputFile:   r.FilePath,
			OutputFile:  r.OutputFile,
			ArchivePath: r.ArchivePath,
			Rows:        r.Stats.Rows,
			Records:     r.Stats.Records,
			RowErrors:   r.Stats.RowErrors,
			ProcessTime: r.Stats.ProcessingTime,
		})
	}

	return summary
}

// errorLogEntries turns failed files and skipped rows into error log entries.
func errorLogEntries(results []converter.Result) []utils.ErrorLogEntry {
	var entries []utils.ErrorLogEntry
	now := time.Now()

	for _, r := range results {
		if r.FilePath == "" {
			continue
		}
		name := filepath.Base(r.FilePath)

		if !r.Success && len(r.Failures) == 0 {
			entries = append(entries, utils.ErrorLogEntry{
				Timestamp:    now,
				FileName:     name,
				ErrorType:    "FileError",
				ErrorMessage: r.Error.Error(),
			})
			continue
		}

		for _, f := range r.Failures {
			entries = append(entries, rowErrorEntry(now, name, f))
		}
	}

	return entries
}

func rowErrorEntry(now time.Time, name string, f *record.RowError) utils.ErrorLogEntry {
	return utils.ErrorLogEntry{
		Timestamp:    now,
		FileName:     name,
		ErrorType:    f.Kind(),
		ErrorMessage: f.Err.Error(),
		RowNumber:    f.Index + 1,
		LineNumber:   f.Line,
		ColumnName:   f.Column,
		FieldName:    f.Field,
	}
}
