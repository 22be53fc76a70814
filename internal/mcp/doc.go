// Package mcp implements the Model Context Protocol (MCP) server for memtext.
//
// The MCP server exposes five tools to AI assistants:
//   - index_document: Ingest a document (file, directory, or inline content)
//   - search_memory: Hybrid semantic + keyword search over indexed documents
//   - get_stats: Index counts, provider availability, cache statistics
//   - clear_index: Remove all indexed data
//   - configure_search: Adjust the hybrid fusion weights
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport. The server reads
// requests on stdin and writes responses to stdout; all logging goes to
// stderr.
//
// # MCP Client Configuration
//
//	{
//	  "mcpServers": {
//	    "memtext": {
//	      "command": "/usr/local/bin/memtext",
//	      "env": {
//	        "MEMTEXT_EMBEDDING_PROVIDER": "ollama"
//	      }
//	    }
//	  }
//	}
//
// # Error Handling
//
// Tools return standard JSON-RPC error responses:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (database, filesystem, provider)
//   - -32001: Empty query
//   - -32002: Fusion weights do not sum to 1.0
//   - -32003: Document path not found
package mcp
