// =============================================================================
// Ledger Upload Reformatter - Logging
// =============================================================================
//
// Every component takes a zerolog.Logger in its constructor. This package
// builds the root logger from the configured level and format.
//
// FORMATS:
//   console - human readable, coloured when the output is a terminal
//   json    - one JSON object per line, for log shippers
//
// =============================================================================

package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // console, json

	// Out is where log lines go. Defaults to os.Stderr so that converted
	// CSV written to stdout stays clean.
	Out io.Writer
}

// New creates a zerolog logger from cfg.
func New(cfg Config) zerolog.Logger {
	out := cfg.Out
	if out == nil {
		out = os.Stderr
	}

	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
			NoColor:    cfg.Out != nil,
		}
	}

	return zerolog.New(out).
		Level(ParseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
}

// ParseLevel maps a level name to a zerolog level. Unknown names give info.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
