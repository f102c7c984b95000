package logging

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reconcile/internal/config"
)

func TestNew_FileOutputJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "reconcile.log")
	logger, closer, err := New(config.LogConfig{
		Level:      "debug",
		Format:     "json",
		Output:     "file",
		FilePath:   path,
		MaxSizeMB:  1,
		MaxBackups: 1,
	})
	require.NoError(t, err)

	logger.Debug("poll tick reconciled", "worker", "etl-1", "updated", 2)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	line := strings.TrimSpace(string(data))

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	assert.Equal(t, "poll tick reconciled", entry["msg"])
	assert.Equal(t, "etl-1", entry["worker"])
	assert.Equal(t, "DEBUG", entry["level"])
}

func TestNew_LevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reconcile.log")
	logger, closer, err := New(config.LogConfig{Level: "warn", Format: "text", Output: "file", FilePath: path})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "hidden")
	assert.Contains(t, string(data), "msg=shown")
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.LogConfig
		want string
	}{
		{"bad level", config.LogConfig{Level: "loud"}, "unknown log level"},
		{"bad format", config.LogConfig{Format: "xml"}, "invalid log format"},
		{"bad output", config.LogConfig{Output: "syslog"}, "invalid log output"},
		{"file without path", config.LogConfig{Output: "file"}, "log file path is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := New(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARNING")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)
}
