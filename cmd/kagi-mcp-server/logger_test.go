// ABOUTME: Tests for the stderr log handler
// ABOUTME: Checks level filtering, component tags, groups and color detection on the log stream

package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/kagi-mcp/internal/config"
)

func TestSetupLogger_TextLayout(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "info"}, &buf)

	logger.With("component", "tools").Info("tool call complete", "tool_name", "kagi_search_fetch", "results", 5)
	logger.Debug("hidden")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, " INF [tools] tool call complete")
	assert.Contains(t, out, " tool_name=kagi_search_fetch results=5")
	assert.NotContains(t, out, "component=")
	assert.NotContains(t, out, "\x1b[", "buffers never get color")
}

func TestSetupLogger_ComponentOnRecord(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "debug"}, &buf)

	logger.Debug("cache miss", "component", "cache", "key", "abc")
	assert.Contains(t, buf.String(), "DBG [cache] cache miss key=abc")
}

func TestSetupLogger_Groups(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "warn"}, &buf)

	logger.WithGroup("upstream").Warn("slow response", "status", 200, slog.Group("timing", "ms", 1500))
	line := buf.String()
	assert.Contains(t, line, "WRN slow response")
	assert.Contains(t, line, " upstream.status=200")
	assert.Contains(t, line, " upstream.timing.ms=1500")
}

func TestSetupLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "error", Format: "json"}, &buf)

	logger.Warn("dropped")
	logger.Error("boom", "component", "mcp")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"component":"mcp"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel(" DEBUG "))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestColorEnabled(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	t.Setenv("TERM", "xterm")

	assert.False(t, colorEnabled(&bytes.Buffer{}))

	f, err := os.Create(filepath.Join(t.TempDir(), "log"))
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, colorEnabled(f), "regular files are not terminals")

	t.Setenv("NO_COLOR", "1")
	assert.False(t, colorEnabled(os.Stderr))
}

func TestStderrHandler_ForcedColor(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newStderrHandler(&buf, slog.LevelInfo, true))

	logger.Error("failed", "component", "kagi")
	out := buf.String()
	assert.Contains(t, out, "\x1b[")
	assert.Contains(t, out, "[kagi]")
	assert.Contains(t, out, "failed")
}
