package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avencourt/memtext-mcp/internal/embedder"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	// The deterministic local provider keeps tests offline
	t.Setenv(embedder.EnvProvider, embedder.ProviderLocal)

	s, err := NewServer(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.storage.Close() })
	return s
}

func toolRequest(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

// decodeResult unmarshals the JSON text payload of a tool result
func decodeResult(t *testing.T, result *mcp.CallToolResult) map[string]interface{} {
	t.Helper()

	require.NotNil(t, result)
	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "tool results are text content")

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(text.Text), &payload))
	return payload
}

func assertMCPError(t *testing.T, err error, code int) {
	t.Helper()

	require.Error(t, err)
	var mcpErr *MCPError
	require.ErrorAs(t, err, &mcpErr)
	assert.Equal(t, code, mcpErr.Code)
}

func TestNewServer_WiresComponents(t *testing.T) {
	s := newTestServer(t)

	assert.NotNil(t, s.mcp)
	assert.NotNil(t, s.storage)
	assert.NotNil(t, s.indexer)
	assert.NotNil(t, s.searcher)
}

func TestHandleIndexDocument_InlineContent(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, err := s.handleIndexDocument(ctx, toolRequest(map[string]interface{}{
		"path":    "inline/session.md",
		"content": "# Session\n\n## Decisions\n\nWe chose sqlite for persistence.\n",
	}))
	require.NoError(t, err)

	payload := decodeResult(t, result)
	assert.Equal(t, true, payload["indexed"])
	assert.Equal(t, float64(1), payload["documents_indexed"])
	assert.Equal(t, float64(2), payload["chunks_created"])
	assert.Equal(t, float64(2), payload["chunks_embedded"])
}

func TestHandleIndexDocument_FileAndDirectory(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	dir := t.TempDir()

	path := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("# Doc\n\nFile body text.\n"), 0644))

	result, err := s.handleIndexDocument(ctx, toolRequest(map[string]interface{}{"path": path}))
	require.NoError(t, err)
	payload := decodeResult(t, result)
	assert.Equal(t, float64(1), payload["documents_indexed"])

	// Recursive over the same directory skips the unchanged file
	result, err = s.handleIndexDocument(ctx, toolRequest(map[string]interface{}{
		"path":      dir,
		"recursive": true,
	}))
	require.NoError(t, err)
	payload = decodeResult(t, result)
	assert.Equal(t, float64(0), payload["documents_indexed"])
	assert.Equal(t, float64(1), payload["documents_skipped"])
}

func TestHandleIndexDocument_ParamErrors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleIndexDocument(ctx, toolRequest(map[string]interface{}{}))
	assertMCPError(t, err, ErrorCodeInvalidParams)

	_, err = s.handleIndexDocument(ctx, toolRequest(map[string]interface{}{
		"path": filepath.Join(t.TempDir(), "missing.md"),
	}))
	assertMCPError(t, err, ErrorCodePathNotFound)

	_, err = s.handleIndexDocument(ctx, toolRequest(map[string]interface{}{
		"path":      filepath.Join(t.TempDir(), "missing-dir"),
		"recursive": true,
	}))
	assertMCPError(t, err, ErrorCodePathNotFound)
}

func TestHandleSearchMemory(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleIndexDocument(ctx, toolRequest(map[string]interface{}{
		"path":    "inline/notes.md",
		"content": "# Notes\n\n## Storage\n\nSqlite keeps everything in one file.\n",
	}))
	require.NoError(t, err)

	result, err := s.handleSearchMemory(ctx, toolRequest(map[string]interface{}{
		"query": "sqlite",
		"limit": float64(5), // JSON numbers arrive as float64
	}))
	require.NoError(t, err)

	payload := decodeResult(t, result)
	assert.Equal(t, false, payload["cache_hit"])
	require.GreaterOrEqual(t, payload["total_results"], float64(1))

	results := payload["results"].([]interface{})
	top := results[0].(map[string]interface{})
	assert.Equal(t, float64(1), top["rank"])
	assert.Contains(t, top["content"], "Sqlite")
	assert.Equal(t, "Notes > Storage", top["heading_path"])

	doc := top["document"].(map[string]interface{})
	assert.Equal(t, "inline/notes.md", doc["path"])
	assert.Equal(t, "Notes", doc["title"])

	// The identical request is served from cache
	result, err = s.handleSearchMemory(ctx, toolRequest(map[string]interface{}{
		"query": "sqlite",
		"limit": float64(5),
	}))
	require.NoError(t, err)
	payload = decodeResult(t, result)
	assert.Equal(t, true, payload["cache_hit"])
}

func TestHandleSearchMemory_ParamErrors(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleSearchMemory(ctx, toolRequest(map[string]interface{}{}))
	assertMCPError(t, err, ErrorCodeEmptyQuery)

	_, err = s.handleSearchMemory(ctx, toolRequest(map[string]interface{}{
		"query": "ok",
		"limit": float64(0),
	}))
	assertMCPError(t, err, ErrorCodeInvalidParams)

	_, err = s.handleSearchMemory(ctx, toolRequest(map[string]interface{}{
		"query": "ok",
		"limit": float64(101),
	}))
	assertMCPError(t, err, ErrorCodeInvalidParams)
}

func TestHandleGetStats(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleIndexDocument(ctx, toolRequest(map[string]interface{}{
		"path":    "inline/doc.md",
		"content": "# Doc\n\nSome body text.\n",
	}))
	require.NoError(t, err)

	result, err := s.handleGetStats(ctx, toolRequest(nil))
	require.NoError(t, err)

	payload := decodeResult(t, result)
	index := payload["index"].(map[string]interface{})
	assert.Equal(t, float64(1), index["documents"])
	assert.Equal(t, float64(1), index["chunks"])

	search := payload["search"].(map[string]interface{})
	assert.Equal(t, true, search["semantic_available"])
	assert.Equal(t, 0.7, search["semantic_weight"])
	assert.Equal(t, 0.3, search["keyword_weight"])

	cache := payload["cache"].(map[string]interface{})
	assert.Contains(t, cache, "hit_rate")
}

func TestHandleClearIndex(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleIndexDocument(ctx, toolRequest(map[string]interface{}{
		"path":    "inline/doc.md",
		"content": "# Doc\n\nSome body text.\n",
	}))
	require.NoError(t, err)

	// The confirm gate rejects anything but an explicit true
	_, err = s.handleClearIndex(ctx, toolRequest(map[string]interface{}{}))
	assertMCPError(t, err, ErrorCodeInvalidParams)
	_, err = s.handleClearIndex(ctx, toolRequest(map[string]interface{}{"confirm": false}))
	assertMCPError(t, err, ErrorCodeInvalidParams)

	result, err := s.handleClearIndex(ctx, toolRequest(map[string]interface{}{"confirm": true}))
	require.NoError(t, err)
	assert.Equal(t, true, decodeResult(t, result)["cleared"])

	statsResult, err := s.handleGetStats(ctx, toolRequest(nil))
	require.NoError(t, err)
	index := decodeResult(t, statsResult)["index"].(map[string]interface{})
	assert.Equal(t, float64(0), index["documents"])
}

func TestHandleConfigureSearch(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	result, err := s.handleConfigureSearch(ctx, toolRequest(map[string]interface{}{
		"semantic_weight": 0.5,
		"keyword_weight":  0.5,
	}))
	require.NoError(t, err)
	assert.Equal(t, true, decodeResult(t, result)["configured"])
	assert.Equal(t, 0.5, s.searcher.Config().SemanticWeight)

	_, err = s.handleConfigureSearch(ctx, toolRequest(map[string]interface{}{
		"semantic_weight": 0.9,
		"keyword_weight":  0.3,
	}))
	assertMCPError(t, err, ErrorCodeInvalidWeights)
	assert.Equal(t, 0.5, s.searcher.Config().SemanticWeight, "a rejected config leaves the weights alone")

	_, err = s.handleConfigureSearch(ctx, toolRequest(map[string]interface{}{
		"semantic_weight": 0.5,
	}))
	assertMCPError(t, err, ErrorCodeInvalidParams)
}

func TestParamHelpers(t *testing.T) {
	args := map[string]interface{}{
		"flag":    true,
		"count":   float64(7),
		"whole":   3,
		"name":    "value",
		"badType": "oops",
	}

	assert.True(t, getBoolDefault(args, "flag", false))
	assert.False(t, getBoolDefault(args, "missing", false))
	assert.False(t, getBoolDefault(args, "badType", false))

	assert.Equal(t, 7, getIntDefault(args, "count", 0))
	assert.Equal(t, 3, getIntDefault(args, "whole", 0))
	assert.Equal(t, 9, getIntDefault(args, "missing", 9))

	assert.Equal(t, "value", getStringDefault(args, "name", ""))
	assert.Equal(t, "fallback", getStringDefault(args, "missing", "fallback"))
}
