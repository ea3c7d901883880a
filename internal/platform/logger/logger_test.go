package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/technerv/election-monitor/internal/platform/config"
)

func TestNewWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.LoggingConfig{Level: "warn", Format: "json"})

	log.Info("dropped at warn level")
	log.Warn("subscriber overflow", "connection_id", "c-1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "subscriber overflow", entry["msg"])
	assert.Equal(t, "c-1", entry["connection_id"])
}

func TestNewWithWriterText(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, config.LoggingConfig{Level: "debug", Format: "text"})
	log.Debug("fetch scheduled", "url", "https://example.org")
	assert.Contains(t, buf.String(), "msg=\"fetch scheduled\"")
}

func TestNewRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.log")
	log := New(config.LoggingConfig{Level: "info", File: path, MaxSizeMB: 1})
	log.Info("started")
	assert.FileExists(t, path)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}
