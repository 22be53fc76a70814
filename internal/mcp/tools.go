package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/avencourt/memtext-mcp/internal/indexer"
	"github.com/avencourt/memtext-mcp/internal/searcher"
)

// MCP error codes
const (
	ErrorCodeInvalidParams  = -32602 // Invalid method parameters
	ErrorCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrorCodeEmptyQuery     = -32001 // Query parameter is empty
	ErrorCodeInvalidWeights = -32002 // Fusion weights do not sum to 1.0
	ErrorCodePathNotFound   = -32003 // Document path does not exist
)

// handleIndexDocument handles the index_document tool invocation
func (s *Server) handleIndexDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	content := getStringDefault(args, "content", "")
	recursive := getBoolDefault(args, "recursive", false)
	skipEmbeddings := getBoolDefault(args, "skip_embeddings", false)

	config := &indexer.Config{SkipEmbeddings: skipEmbeddings}

	var stats *indexer.Statistics
	var err error
	switch {
	case content != "":
		stats, err = s.indexer.IndexContent(ctx, path, content, config)
	case recursive:
		if info, statErr := os.Stat(path); statErr != nil || !info.IsDir() {
			return nil, newMCPError(ErrorCodePathNotFound, "path is not a readable directory", map[string]interface{}{
				"param": "path",
				"value": path,
			})
		}
		stats, err = s.indexer.IndexDirectory(ctx, path, config)
	default:
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, newMCPError(ErrorCodePathNotFound, "path does not exist", map[string]interface{}{
				"param": "path",
				"value": path,
			})
		}
		stats, err = s.indexer.IndexFile(ctx, path, config)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	// Indexed content invalidates cached query results
	s.searcher.InvalidateCache()

	response := map[string]interface{}{
		"indexed":            true,
		"documents_indexed":  stats.DocumentsIndexed,
		"documents_skipped":  stats.DocumentsSkipped,
		"documents_failed":   stats.DocumentsFailed,
		"chunks_created":     stats.ChunksCreated,
		"chunks_embedded":    stats.ChunksEmbedded,
		"embedding_failures": stats.EmbeddingFailures,
		"duration_ms":        stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchMemory handles the search_memory tool invocation
func (s *Server) handleSearchMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > searcher.MaxLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", searcher.MaxLimit), map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	useCache := getBoolDefault(args, "use_cache", true)

	resp, err := s.searcher.Search(ctx, searcher.SearchRequest{
		Query:    query,
		Limit:    limit,
		UseCache: useCache,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	results := make([]map[string]interface{}, len(resp.Results))
	for i, r := range resp.Results {
		entry := map[string]interface{}{
			"rank":       r.Rank,
			"similarity": r.Similarity,
			"content":    r.Content,
		}
		if r.Document != nil {
			entry["document"] = map[string]interface{}{
				"uid":   r.Document.UID,
				"path":  r.Document.Path,
				"title": r.Document.Title,
			}
		}
		if r.HeadingPath != "" {
			entry["heading_path"] = r.HeadingPath
		}
		if r.Context != "" {
			entry["context"] = r.Context
		}
		if r.Snippet != "" {
			entry["snippet"] = r.Snippet
		}
		results[i] = entry
	}

	response := map[string]interface{}{
		"results":       results,
		"total_results": resp.TotalResults,
		"cache_hit":     resp.CacheHit,
		"duration_ms":   resp.Duration.Milliseconds(),
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStats handles the get_stats tool invocation
func (s *Server) handleGetStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.searcher.Stats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get stats", map[string]interface{}{
			"error": err.Error(),
		})
	}

	config := s.searcher.Config()

	response := map[string]interface{}{
		"index": map[string]interface{}{
			"documents":     stats.Documents,
			"chunks":        stats.Chunks,
			"embeddings":    stats.Embeddings,
			"index_size_mb": fmt.Sprintf("%.2f", stats.IndexSizeMB),
		},
		"search": map[string]interface{}{
			"semantic_available": stats.SemanticAvailable,
			"semantic_weight":    config.SemanticWeight,
			"keyword_weight":     config.KeywordWeight,
		},
		"cache": map[string]interface{}{
			"hits":      stats.Cache.Hits,
			"misses":    stats.Cache.Misses,
			"evictions": stats.Cache.Evictions,
			"size":      stats.Cache.Size,
			"max_size":  stats.Cache.MaxSize,
			"hit_rate":  fmt.Sprintf("%.3f", stats.Cache.HitRate),
		},
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleClearIndex handles the clear_index tool invocation
func (s *Server) handleClearIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	if confirm := getBoolDefault(args, "confirm", false); !confirm {
		return nil, newMCPError(ErrorCodeInvalidParams, "confirm must be true to clear the index", map[string]interface{}{
			"param": "confirm",
		})
	}

	if err := s.searcher.ClearIndex(ctx); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to clear index", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"cleared": true,
	})), nil
}

// handleConfigureSearch handles the configure_search tool invocation
func (s *Server) handleConfigureSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	semanticWeight, ok := args["semantic_weight"].(float64)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "semantic_weight is required", map[string]interface{}{
			"param": "semantic_weight",
		})
	}
	keywordWeight, ok := args["keyword_weight"].(float64)
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "keyword_weight is required", map[string]interface{}{
			"param": "keyword_weight",
		})
	}

	err := s.searcher.Reconfigure(searcher.HybridConfig{
		SemanticWeight: semanticWeight,
		KeywordWeight:  keywordWeight,
	})
	if err != nil {
		if errors.Is(err, searcher.ErrInvalidWeights) {
			return nil, newMCPError(ErrorCodeInvalidWeights, err.Error(), map[string]interface{}{
				"semantic_weight": semanticWeight,
				"keyword_weight":  keywordWeight,
			})
		}
		return nil, newMCPError(ErrorCodeInternalError, "failed to reconfigure search", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"configured":      true,
		"semantic_weight": semanticWeight,
		"keyword_weight":  keywordWeight,
	})), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}
