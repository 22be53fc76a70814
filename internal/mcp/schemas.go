package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexDocumentTool returns the tool definition for index_document
func indexDocumentTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_document",
		Description: "Index a text or markdown document (by path or inline content) to make it searchable",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Path identifying the document. If content is omitted, the file is read from this path.",
				},
				"content": map[string]interface{}{
					"type":        "string",
					"description": "Inline document content. When set, nothing is read from disk.",
				},
				"recursive": map[string]interface{}{
					"type":        "boolean",
					"description": "If true and path is a directory, index every markdown/text file under it",
					"default":     false,
				},
				"skip_embeddings": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, store chunks without generating embeddings (keyword search only)",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchMemoryTool returns the tool definition for search_memory
func searchMemoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_memory",
		Description: "Search indexed documents with a hybrid of semantic similarity and keyword matching",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"use_cache": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, serve repeated queries from the result cache",
					"default":     true,
				},
			},
			Required: []string{"query"},
		},
	}
}

// getStatsTool returns the tool definition for get_stats
func getStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_stats",
		Description: "Report index counts, embedding provider availability, and query cache statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// clearIndexTool returns the tool definition for clear_index
func clearIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "clear_index",
		Description: "Remove all indexed documents, chunks, and embeddings",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"confirm": map[string]interface{}{
					"type":        "boolean",
					"description": "Must be true to clear the index",
				},
			},
			Required: []string{"confirm"},
		},
	}
}

// configureSearchTool returns the tool definition for configure_search
func configureSearchTool() mcp.Tool {
	return mcp.Tool{
		Name:        "configure_search",
		Description: "Set the hybrid fusion weights. Weights must sum to 1.0.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"semantic_weight": map[string]interface{}{
					"type":        "number",
					"description": "Weight for semantic similarity scores (0.0-1.0)",
					"minimum":     0.0,
					"maximum":     1.0,
				},
				"keyword_weight": map[string]interface{}{
					"type":        "number",
					"description": "Weight for keyword match scores (0.0-1.0)",
					"minimum":     0.0,
					"maximum":     1.0,
				},
			},
			Required: []string{"semantic_weight", "keyword_weight"},
		},
	}
}
