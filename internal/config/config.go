// =============================================================================
// Ledger Upload Reformatter - Configuration Module
// =============================================================================
//
// This module loads the application configuration. Settings come from three
// layers, later layers winning:
//
//   1. Built-in defaults (DefaultMainConfig)
//   2. The YAML file (config.yaml by default)
//   3. Environment variables prefixed with REFORMATTER_
//      e.g. REFORMATTER_LOG_LEVEL=debug, REFORMATTER_HTTP_ADDR=:9090
//
// The mapping rules themselves (column names, invoice type labels, output
// layout) are fixed and are deliberately not configurable here.
//
// =============================================================================

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/ledger-upload-reformatter/internal/record"
)

// DefaultConfigFile is the config path used when --config is not given.
// A missing default file is not an error; built-in defaults apply.
const DefaultConfigFile = "config.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "REFORMATTER_"

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS (batch processing)
	// =========================================================================

	// InputDir is scanned for .xlsx and .csv ledger exports.
	// Default: "./input"
	InputDir string `yaml:"input_dir" env:"INPUT_DIR"`

	// OutputDir receives converted CSV files, error logs and summaries.
	// Default: "./output"
	OutputDir string `yaml:"output_dir" env:"OUTPUT_DIR"`

	// InputArchiveDir receives input files after successful processing.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir" env:"INPUT_ARCHIVE_DIR"`

	// OutputArchiveDir receives a copy of every converted file.
	// Default: "./output_archive"
	OutputArchiveDir string `yaml:"output_archive_dir" env:"OUTPUT_ARCHIVE_DIR"`

	// ArchiveOnSuccess moves inputs and copies outputs to the archive
	// directories when a file converts cleanly.
	// Default: true
	ArchiveOnSuccess bool `yaml:"archive_on_success" env:"ARCHIVE_ON_SUCCESS"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`

	// LogFormat selects "console" or "json" log lines.
	// Default: "console"
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`

	// =========================================================================
	// OUTPUT SETTINGS
	// =========================================================================

	// OutputFileFormat defines the batch output file names.
	// Placeholders:
	//   {original}  - Input file name without extension
	//   {uuid}      - A random UUID
	//   {timestamp} - Current timestamp (YYYYMMDD_HHMMSS)
	//   {date}      - Current date (YYYYMMDD)
	// Default: "{original}_converted_{timestamp}.csv"
	OutputFileFormat string `yaml:"output_file_format" env:"OUTPUT_FILE_FORMAT"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency is the maximum number of files converted at once.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency" env:"MAX_CONCURRENCY"`

	// RowWorkers is the number of goroutines transforming rows of one file.
	// Default: 1
	RowWorkers int `yaml:"row_workers" env:"ROW_WORKERS"`

	// FailurePolicy is "fail_fast" (a bad row rejects the file) or
	// "best_effort" (bad rows are skipped and reported).
	// Default: "fail_fast"
	FailurePolicy string `yaml:"failure_policy" env:"FAILURE_POLICY"`

	// ContinueOnError keeps processing other files when one file fails.
	// Default: true
	ContinueOnError bool `yaml:"continue_on_error" env:"CONTINUE_ON_ERROR"`

	// CSV holds parsing settings for .csv ledger exports.
	CSV CSVSettings `yaml:"csv" envPrefix:"CSV_"`

	// =========================================================================
	// HTTP SETTINGS (serve command)
	// =========================================================================

	HTTP HTTPConfig `yaml:"http" envPrefix:"HTTP_"`
}

// =============================================================================
// CSV SETTINGS STRUCTURE
// =============================================================================

// CSVSettings contains settings for parsing CSV ledger exports.
type CSVSettings struct {
	// Delimiter separates fields. Accepts a single character or one of
	// "tab", "pipe", "semicolon".
	// Default: ","
	Delimiter string `yaml:"delimiter" env:"DELIMITER"`

	// HeaderRows is the number of header rows. Multi-row headers are merged
	// column by column with a space.
	// Default: 1
	HeaderRows int `yaml:"header_rows" env:"HEADER_ROWS"`

	// DataStartRow is the 1-based row where data begins.
	// Default: HeaderRows + 1
	DataStartRow int `yaml:"data_start_row" env:"DATA_START_ROW"`
}

// DefaultCSVSettings returns settings for a plain one-header CSV file.
func DefaultCSVSettings() CSVSettings {
	return CSVSettings{Delimiter: ",", HeaderRows: 1, DataStartRow: 2}
}

// HTTPConfig holds the upload server settings.
type HTTPConfig struct {
	// Addr is the listen address. Default: ":8080"
	Addr string `yaml:"addr" env:"ADDR"`

	// MaxUploadBytes caps the size of an uploaded export. Default: 32 MiB
	MaxUploadBytes int64 `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`

	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// DefaultMainConfig returns the built-in defaults.
func DefaultMainConfig() *MainConfig {
	return &MainConfig{
		InputDir:         "./input",
		OutputDir:        "./output",
		InputArchiveDir:  "./input_archive",
		OutputArchiveDir: "./output_archive",
		ArchiveOnSuccess: true,
		LogLevel:         "info",
		LogFormat:        "console",
		OutputFileFormat: "{original}_converted_{timestamp}.csv",
		MaxConcurrency:   4,
		RowWorkers:       1,
		FailurePolicy:    record.FailFast.String(),
		ContinueOnError:  true,
		CSV:              DefaultCSVSettings(),
		HTTP: HTTPConfig{
			Addr:            ":8080",
			MaxUploadBytes:  32 << 20,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the configuration from a YAML file and the
// environment.
//
// PARAMETERS:
//   - configPath: The path to the YAML file. If it is DefaultConfigFile and
//     the file does not exist, only defaults and environment apply.
//
// RETURNS:
//   - A pointer to the validated MainConfig.
//   - An error if the file cannot be read or parsed, or a value is invalid.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	config := DefaultMainConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && configPath == DefaultConfigFile:
		// Defaults only.
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	applyMainConfigDefaults(config)

	if err := validateMainConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyMainConfigDefaults fills values that the file or environment blanked.
func applyMainConfigDefaults(config *MainConfig) {
	defaults := DefaultMainConfig()

	if config.InputDir == "" {
		config.InputDir = defaults.InputDir
	}
	if config.OutputDir == "" {
		config.OutputDir = defaults.OutputDir
	}
	if config.InputArchiveDir == "" {
		config.InputArchiveDir = defaults.InputArchiveDir
	}
	if config.OutputArchiveDir == "" {
		config.OutputArchiveDir = defaults.OutputArchiveDir
	}
	if config.LogLevel == "" {
		config.LogLevel = defaults.LogLevel
	}
	if config.LogFormat == "" {
		config.LogFormat = defaults.LogFormat
	}
	if config.OutputFileFormat == "" {
		config.OutputFileFormat = defaults.OutputFileFormat
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = defaults.MaxConcurrency
	}
	if config.RowWorkers == 0 {
		config.RowWorkers = defaults.RowWorkers
	}
	if config.FailurePolicy == "" {
		config.FailurePolicy = defaults.FailurePolicy
	}
	if config.CSV.Delimiter == "" {
		config.CSV.Delimiter = defaults.CSV.Delimiter
	}
	if config.CSV.HeaderRows == 0 {
		config.CSV.HeaderRows = defaults.CSV.HeaderRows
	}
	if config.CSV.DataStartRow == 0 {
		config.CSV.DataStartRow = config.CSV.HeaderRows + 1
	}
	if config.HTTP.Addr == "" {
		config.HTTP.Addr = defaults.HTTP.Addr
	}
	if config.HTTP.MaxUploadBytes == 0 {
		config.HTTP.MaxUploadBytes = defaults.HTTP.MaxUploadBytes
	}
	if config.HTTP.ReadTimeout == 0 {
		config.HTTP.ReadTimeout = defaults.HTTP.ReadTimeout
	}
	if config.HTTP.WriteTimeout == 0 {
		config.HTTP.WriteTimeout = defaults.HTTP.WriteTimeout
	}
	if config.HTTP.ShutdownTimeout == 0 {
		config.HTTP.ShutdownTimeout = defaults.HTTP.ShutdownTimeout
	}
}

// validateMainConfig validates the main configuration.
func validateMainConfig(config *MainConfig) error {
	if _, err := record.ParsePolicy(config.FailurePolicy); err != nil {
		return err
	}

	switch strings.ToLower(config.LogFormat) {
	case "console", "json":
	default:
		return fmt.Errorf("unknown log_format %q (want console or json)", config.LogFormat)
	}

	if config.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be at least 1, got %d", config.MaxConcurrency)
	}
	if config.RowWorkers < 1 {
		return fmt.Errorf("row_workers must be at least 1, got %d", config.RowWorkers)
	}
	if config.CSV.HeaderRows < 1 {
		return fmt.Errorf("csv.header_rows must be at least 1, got %d", config.CSV.HeaderRows)
	}
	if config.CSV.DataStartRow <= config.CSV.HeaderRows {
		return fmt.Errorf("csv.data_start_row must come after the header rows, got %d", config.CSV.DataStartRow)
	}
	if config.HTTP.MaxUploadBytes < 0 {
		return fmt.Errorf("http.max_upload_bytes must be positive, got %d", config.HTTP.MaxUploadBytes)
	}

	return nil
}

// Policy returns the parsed failure policy.
func (c *MainConfig) Policy() record.Policy {
	p, _ := record.ParsePolicy(c.FailurePolicy)
	return p
}
