package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"unknown", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.input), tt.input)
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Out: &buf})

	log.Debug().Str("file", "ledger.xlsx").Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["message"])
	assert.Equal(t, "ledger.xlsx", line["file"])
	assert.Equal(t, "debug", line["level"])
	assert.Contains(t, line, "time")
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "console", Out: &buf})

	log.Info().Msg("hello")
	log.Debug().Msg("hidden")

	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.NotContains(t, out, "hidden")
	assert.False(t, strings.HasPrefix(strings.TrimSpace(out), "{"))
}
