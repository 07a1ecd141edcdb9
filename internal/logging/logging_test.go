package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prasenjit/go-mockapi/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		" warn": slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("chatty")
	assert.Error(t, err)
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, config.LoggingConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "path", "/pets")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "/pets", entry["path"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, config.LoggingConfig{Format: "text"})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("hello")
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "msg=hello")
}

func TestNewUnknownLevelWarns(t *testing.T) {
	var buf bytes.Buffer
	_, err := New(&buf, config.LoggingConfig{Level: "chatty"})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "using info level")
}

func TestNewUnknownFormat(t *testing.T) {
	_, err := New(&bytes.Buffer{}, config.LoggingConfig{Format: "xml"})
	assert.Error(t, err)
}
