// =============================================================================
// Ledger Upload Reformatter - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. All other commands
// are attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (reformatter)
//   ├── convertCmd (reformatter convert <file>)
//   ├── processCmd (reformatter process)
//   ├── serveCmd   (reformatter serve)
//   ├── labelsCmd  (reformatter labels)
//   └── versionCmd (reformatter version)
//
// CONFIGURATION:
//   Before any subcommand runs, the root command:
//   1. Loads config.yaml (or --config) and REFORMATTER_* overrides
//   2. Sets up the zerolog logger on stderr
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/ledger-upload-reformatter/internal/config"
	"github.com/ginjaninja78/ledger-upload-reformatter/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose enables debug logging regardless of log_level.
var verbose bool

// appConfig is the loaded configuration, set before any subcommand runs.
var appConfig *config.MainConfig

// logger is the application logger, set before any subcommand runs.
var logger = zerolog.Nop()

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "reformatter",
	Short: "Ledger Upload Reformatter - Turn ledger exports into import-ready CSV",
	Long: `Ledger Upload Reformatter converts the accounting ledger's receivables
export (.xlsx or .csv) into the five-column CSV the import system expects:

  Debtor Reference, Transaction Type, Document Number, Document Date,
  Document Balance

Example Usage:
  reformatter convert ledger.xlsx                # Writes converted_data.csv
  reformatter convert ledger.xlsx --best-effort  # Skip rows that cannot convert
  reformatter process                            # Convert every file in input_dir
  reformatter serve                              # Upload page on :8080
  reformatter labels                             # Show the invoice type labels`,

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
// SIGINT and SIGTERM cancel the command's context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		config.DefaultConfigFile,
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// initConfig loads the configuration and builds the logger.
func initConfig(cmd *cobra.Command) error {
	cfg, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if verbose {
		cfg.LogLevel = "debug"
	}

	appConfig = cfg
	logger = logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Out:    cmd.ErrOrStderr(),
	})

	logger.Debug().
		Str("config", cfgFile).
		Str("policy", cfg.FailurePolicy).
		Msg("configuration loaded")

	return nil
}
