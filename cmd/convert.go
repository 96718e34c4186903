// =============================================================================
// Ledger Upload Reformatter - Convert Command
// =============================================================================
//
// This file defines the 'convert' command, which converts a single ledger
// export the way the finance team uses the tool day to day.
//
// COMMAND USAGE:
//   reformatter convert <file> [flags]
//
// FLAGS:
//   --output, -o   : Output path (default converted_data.csv, "-" for stdout)
//   --best-effort  : Skip rows that cannot be converted instead of failing
//   --workers      : Row workers (default: row_workers from config)
//   --preview      : Print the first N source and converted rows to stderr
//   --errors       : Write skipped rows to this CSV file (best-effort only)
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/ledger-upload-reformatter/internal/converter"
	"github.com/ginjaninja78/ledger-upload-reformatter/internal/csvsink"
	"github.com/ginjaninja78/ledger-upload-reformatter/internal/record"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	convertOutput     string
	convertBestEffort bool
	convertWorkers    int
	convertPreview    int
	convertErrors     string
)

// convertCmd represents the 'convert' command.
var convertCmd = &cobra.Command{
	Use:   "convert <file>",
	Short: "Convert one ledger export (.xlsx or .csv) to the import CSV",
	Long: `Convert reads one ledger export and writes the import CSV.

By default any row that cannot be converted rejects the whole file and
nothing is written. With --best-effort those rows are left out, reported
as warnings and, with --errors, written to a separate CSV.`,
	Args: cobra.ExactArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		return runConvert(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", csvsink.FileName, `Output file ("-" for stdout)`)
	convertCmd.Flags().BoolVar(&convertBestEffort, "best-effort", false, "Skip rows that cannot be converted")
	convertCmd.Flags().IntVar(&convertWorkers, "workers", 0, "Row workers (default: row_workers from config)")
	convertCmd.Flags().IntVar(&convertPreview, "preview", 0, "Print the first N source and converted rows to stderr")
	convertCmd.Flags().StringVar(&convertErrors, "errors", "", "Write skipped rows to this CSV file")
}

// =============================================================================
// MAIN FUNCTION
// =============================================================================

func runConvert(cmd *cobra.Command, inputPath string) error {
	policy := appConfig.Policy()
	if convertBestEffort {
		policy = record.BestEffort
	}

	workers := appConfig.RowWorkers
	if convertWorkers > 0 {
		workers = convertWorkers
	}

	ds, err := converter.LoadFile(inputPath, appConfig.CSV)
	if err != nil {
		return err
	}
	logger.Debug().Str("file", inputPath).Int("rows", len(ds.Rows)).Msg("read export")

	t := record.NewTransformer(
		record.WithPolicy(policy),
		record.WithWorkers(workers),
		record.WithLogger(logger),
	)

	res, err := converter.Transform(cmd.Context(), t, ds, nil)
	if err != nil {
		return err
	}

	if convertPreview > 0 {
		printPreview(cmd.ErrOrStderr(), ds, res.Records, convertPreview)
	}

	for _, f := range res.Failures {
		logger.Warn().Str("kind", f.Kind()).Msg(f.Error())
	}

	if err := writeConverted(cmd.OutOrStdout(), convertOutput, res.Records); err != nil {
		return err
	}

	if convertErrors != "" && len(res.Failures) > 0 {
		if err := writeReport(convertErrors, res.Failures); err != nil {
			return err
		}
	}

	logger.Info().
		Str("output", convertOutput).
		Int("rows", res.Total).
		Int("records", len(res.Records)).
		Int("skipped", len(res.Failures)).
		Msg("conversion complete")

	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// writeConverted writes records to path, or to stdout for "-".
func writeConverted(stdout io.Writer, path string, records []record.TargetRecord) error {
	if path == "-" {
		return csvsink.Write(stdout, records)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := csvsink.Write(f, records); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// writeReport writes the best-effort error report to path.
func writeReport(path string, failures []*record.RowError) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create error report: %w", err)
	}
	if err := csvsink.WriteErrorReport(f, failures); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// printPreview prints the first n source rows and converted records as
// aligned tables.
func printPreview(w io.Writer, ds *record.Dataset, records []record.TargetRecord, n int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "Original Data Preview")
	fmt.Fprintln(tw, strings.Join(ds.Headers, "\t"))
	for i, raw := range ds.Raw {
		if i >= n {
			break
		}
		cells := make([]string, len(ds.Headers))
		for j, h := range ds.Headers {
			cells[j] = raw[h]
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "Converted Data Preview")
	fmt.Fprintln(tw, strings.Join(record.Header(), "\t"))
	for i, rec := range records {
		if i >= n {
			break
		}
		fmt.Fprintln(tw, strings.Join(rec.Values(), "\t"))
	}

	tw.Flush()
}
