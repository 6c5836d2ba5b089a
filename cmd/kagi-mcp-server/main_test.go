// ABOUTME: Tests for the kagi-mcp-server command tree
// ABOUTME: Drives serve over in-memory stdio and checks the tools, config, usage and version subcommands

package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/kagi-mcp/internal/store"
)

// isolateEnv clears variables that would leak the developer's setup into tests.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"KAGI_API_KEY", "KAGI_MCP_CONFIG", "KAGI_SUMMARIZER_ENGINE", "KAGI_MCP_USAGE_DB",
		"KAGI_MCP_USAGE_ENABLED", "KAGI_MCP_OTEL_ENABLED", "KAGI_ENRICH_NEWS_ENABLED",
	} {
		t.Setenv(name, "")
	}
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	cmd := newRootCmd()
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	// A nil slice makes cobra fall back to os.Args
	cmd.SetArgs(append([]string{}, args...))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func TestVersionCmd(t *testing.T) {
	originalVersion := version
	version = "test-version-1.0.0"
	defer func() { version = originalVersion }()

	out, _, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "kagi-mcp-server version test-version-1.0.0")
}

func TestServe_RequiresAPIKey(t *testing.T) {
	isolateEnv(t)

	_, _, err := execute(t, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api_key is required")
}

func TestServe_StdioSession(t *testing.T) {
	isolateEnv(t)
	t.Setenv("KAGI_BASE_URL", "http://127.0.0.1:1")

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","capabilities":{},"clientInfo":{"name":"test","version":"1"}}}`,
		`{"jsonrpc":"2.0","method":"notifications/initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
	}, "\n") + "\n"

	out, stderr, err := execute(t, input, "--api-key", "sk-test-key")
	require.NoError(t, err, stderr)

	responses := map[float64]map[string]any{}
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var msg map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &msg), scanner.Text())
		responses[msg["id"].(float64)] = msg
	}
	require.Len(t, responses, 2, "stdout must carry only protocol frames")

	initResult := responses[1]["result"].(map[string]any)
	assert.Equal(t, "2024-11-05", initResult["protocolVersion"])
	serverInfo := initResult["serverInfo"].(map[string]any)
	assert.Equal(t, "kagi-mcp-server", serverInfo["name"])

	listed := responses[2]["result"].(map[string]any)["tools"].([]any)
	assert.Len(t, listed, 5)

	assert.Contains(t, stderr, "starting kagi-mcp-server")
	assert.NotContains(t, stderr, "sk-test-key")
}

func TestServe_WarnsOnUnknownEngine(t *testing.T) {
	isolateEnv(t)

	_, stderr, err := execute(t, "", "--api-key", "k", "--summarizer-engine", "gpt9")
	require.NoError(t, err)
	assert.Contains(t, stderr, "unknown summarizer engine")

	_, stderr, err = execute(t, "", "--api-key", "k", "--summarizer-engine", "Cecil")
	require.NoError(t, err)
	assert.NotContains(t, stderr, "unknown summarizer engine")
}

func TestToolsCmd(t *testing.T) {
	isolateEnv(t)

	t.Run("lists enabled tools", func(t *testing.T) {
		out, _, err := execute(t, "", "tools")
		require.NoError(t, err)
		for _, name := range []string{"kagi_search_fetch", "kagi_summarizer", "kagi_fastgpt", "kagi_enrich_web", "kagi_enrich_news"} {
			assert.Contains(t, out, name)
		}
	})

	t.Run("omits disabled tools", func(t *testing.T) {
		t.Setenv("KAGI_ENRICH_NEWS_ENABLED", "false")
		out, _, err := execute(t, "", "tools")
		require.NoError(t, err)
		assert.NotContains(t, out, "kagi_enrich_news")
		assert.Contains(t, out, "kagi_enrich_web")
	})

	t.Run("json descriptors", func(t *testing.T) {
		out, _, err := execute(t, "", "tools", "--json")
		require.NoError(t, err)

		var listed []map[string]any
		require.NoError(t, json.Unmarshal([]byte(out), &listed))
		require.Len(t, listed, 5)
		assert.Equal(t, "kagi_search_fetch", listed[0]["name"])
		assert.Contains(t, listed[0], "inputSchema")
	})
}

func TestConfigCmd(t *testing.T) {
	isolateEnv(t)

	t.Run("yaml masks the key", func(t *testing.T) {
		out, _, err := execute(t, "", "config", "--api-key", "sk-very-secret")
		require.NoError(t, err)
		assert.NotContains(t, out, "sk-very-secret")
		assert.Contains(t, out, "********")
		assert.Contains(t, out, "summarizer_engine: cecil")
	})

	t.Run("toml format", func(t *testing.T) {
		out, _, err := execute(t, "", "config", "--format", "toml", "--api-key", "sk-very-secret")
		require.NoError(t, err)
		assert.NotContains(t, out, "sk-very-secret")
		assert.Contains(t, out, "[kagi]")
	})

	t.Run("flags override file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, writeFile(path, "kagi:\n  summarizer_engine: agnes\n"))

		out, _, err := execute(t, "", "config", "--config", path)
		require.NoError(t, err)
		assert.Contains(t, out, "summarizer_engine: agnes")

		out, _, err = execute(t, "", "config", "--config", path, "--summarizer-engine", "muriel")
		require.NoError(t, err)
		assert.Contains(t, out, "summarizer_engine: muriel")
	})

	t.Run("engine flag is case insensitive", func(t *testing.T) {
		out, _, err := execute(t, "", "config", "--summarizer-engine", " Cecil ")
		require.NoError(t, err)
		assert.Contains(t, out, "summarizer_engine: cecil")
	})

	t.Run("invalid config warns", func(t *testing.T) {
		_, stderr, err := execute(t, "", "config")
		require.NoError(t, err)
		assert.Contains(t, stderr, "api_key is required")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, _, err := execute(t, "", "config", "--format", "xml")
		require.Error(t, err)
	})
}

func TestUsageCmd(t *testing.T) {
	isolateEnv(t)
	dbPath := filepath.Join(t.TempDir(), "usage.db")
	t.Setenv("KAGI_MCP_USAGE_DB", dbPath)

	t.Run("missing database", func(t *testing.T) {
		out, _, err := execute(t, "", "usage")
		require.NoError(t, err)
		assert.Contains(t, out, "No usage recorded")
	})

	st, err := store.NewSQLiteStore(dbPath)
	require.NoError(t, err)
	balance := 4.25
	now := time.Now().UTC()
	calls := []*store.CallRecord{
		{ID: "1", ToolName: "kagi_search_fetch", Status: store.StatusOK, Duration: 100 * time.Millisecond, APIBalance: &balance, CreatedAt: now.Add(-time.Minute)},
		{ID: "2", ToolName: "kagi_search_fetch", Status: store.StatusOK, Duration: time.Millisecond, Cached: true, CreatedAt: now.Add(-30 * time.Second)},
		{ID: "3", ToolName: "kagi_fastgpt", Status: store.StatusToolError, ErrorClass: "rate_limit", Duration: 50 * time.Millisecond, CreatedAt: now},
	}
	for _, c := range calls {
		require.NoError(t, st.RecordCall(context.Background(), c))
	}
	require.NoError(t, st.Close())

	t.Run("summary", func(t *testing.T) {
		out, _, err := execute(t, "", "usage")
		require.NoError(t, err)
		assert.Contains(t, out, "kagi_search_fetch")
		assert.Contains(t, out, "kagi_fastgpt")
		assert.Contains(t, out, "API balance: $4.25")
	})

	t.Run("tool filter and recent calls", func(t *testing.T) {
		out, _, err := execute(t, "", "usage", "--tool", "kagi_fastgpt", "--recent", "2")
		require.NoError(t, err)
		assert.Contains(t, out, "Recent calls:")
		assert.Contains(t, out, "rate_limit")
	})
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
