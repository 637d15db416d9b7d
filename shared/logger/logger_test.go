package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, config Config) (*Logger, *bytes.Buffer) {
	t.Helper()
	output := &bytes.Buffer{}
	config.writer = output
	logger, err := New(&config)
	require.NoError(t, err)
	require.NotNil(t, logger)
	return logger, output
}

func decodeLines(t *testing.T, output *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(output.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNew_JSONLevelFiltering(t *testing.T) {
	tests := []struct {
		level     string
		wantLevel []string
	}{
		{level: "debug", wantLevel: []string{"DEBUG", "INFO", "WARN", "ERROR"}},
		{level: "info", wantLevel: []string{"INFO", "WARN", "ERROR"}},
		{level: "warn", wantLevel: []string{"WARN", "ERROR"}},
		{level: "error", wantLevel: []string{"ERROR"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, output := newBufferLogger(t, Config{Level: tt.level, Format: "json"})

			logger.Debug("offer queued", slog.String("job_id", "J1"))
			logger.Info("offer delivered", slog.String("job_id", "J1"))
			logger.Warn("offer dropped", slog.String("job_id", "J1"))
			logger.Error("settlement failed", slog.String("job_id", "J1"))

			entries := decodeLines(t, output)
			require.Len(t, entries, len(tt.wantLevel))
			for i, entry := range entries {
				assert.Equal(t, tt.wantLevel[i], entry["level"])
				assert.Equal(t, "J1", entry["job_id"])
				assert.Contains(t, entry, "time")
			}
		})
	}
}

func TestNew_ConsoleFormats(t *testing.T) {
	for _, format := range []string{"console", "text", ""} {
		t.Run("format "+format, func(t *testing.T) {
			logger, output := newBufferLogger(t, Config{Level: "info", Format: format})

			logger.Info("laborer connected", slog.String("laborer_id", "L1"))

			// tint abbreviates levels; a buffer is never a terminal so no colour codes
			line := output.String()
			assert.Contains(t, line, "INF laborer connected")
			assert.Contains(t, line, "laborer_id=L1")
			assert.NotContains(t, line, "\x1b[")
		})
	}
}

func TestNew_UnknownFormatFallsBackToJSON(t *testing.T) {
	logger, output := newBufferLogger(t, Config{Format: "xml"})

	logger.Info("job posted")

	entries := decodeLines(t, output)
	require.Len(t, entries, 1)
	assert.Equal(t, "job posted", entries[0]["msg"])
}

func TestNew_SourceLocation(t *testing.T) {
	logger, output := newBufferLogger(t, Config{Format: "json", EnableSource: true})

	logger.Info("with source")

	entries := decodeLines(t, output)
	require.Len(t, entries, 1)
	source, ok := entries[0]["source"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, source, "file")
	assert.Contains(t, source, "line")
}

func TestNewDefault(t *testing.T) {
	logger := NewDefault()
	require.NotNil(t, logger)
	assert.NotNil(t, logger.Logger)
	assert.NoError(t, logger.Close())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" info ", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"Error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.level))
		})
	}
}

func TestLogger_Derived(t *testing.T) {
	logger, output := newBufferLogger(t, Config{Format: "json"})

	logger.WithGroup("settlement").Info("payment recorded", slog.Int64("net", 630000))
	logger.WithAttrs(slog.String("worker_id", "settlement-worker")).Info("worker started")
	logger.With("job_id", "J2", "attempt", 2).Info("requeued")

	entries := decodeLines(t, output)
	require.Len(t, entries, 3)

	group, ok := entries[0]["settlement"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(630000), group["net"])

	assert.Equal(t, "settlement-worker", entries[1]["worker_id"])

	assert.Equal(t, "J2", entries[2]["job_id"])
	assert.Equal(t, float64(2), entries[2]["attempt"])
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "api.log")

	logger, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)

	logger.Info("written to file", slog.String("laborer_id", "L1"))
	// derived loggers share the file
	logger.With("job_id", "J1").Info("second line")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	entries := decodeLines(t, bytes.NewBuffer(data))
	require.Len(t, entries, 2)
	assert.Equal(t, "written to file", entries[0]["msg"])
	assert.Equal(t, "L1", entries[0]["laborer_id"])
	assert.Equal(t, "J1", entries[1]["job_id"])
}

func TestNew_FileOutputError(t *testing.T) {
	_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "api.log")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open log file")
}
