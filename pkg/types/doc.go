// Package types provides shared type definitions for the memtext MCP server.
//
// This package defines the domain types used across components: documents,
// headings, chunks, and search results.
//
// Document represents a unit of long-form text (a transcript or a manuscript
// file) tracked by the index. Chunk represents a bounded, independently
// retrievable slice of a document, annotated with the heading ancestry it
// falls under:
//
//	chunk := &types.Chunk{
//	    DocumentID:   doc.ID,
//	    OrdinalIndex: 0,
//	    HeadingPath:  types.HeadingPathPtr("Design > Storage"),
//	    Content:      sectionText,
//	}
//
// Ordinals are contiguous 0..n-1 within a document and offsets are
// non-decreasing across ordinals. Chunks are immutable once produced:
// re-chunking a document replaces its full chunk set.
//
// SearchResult is the caller-visible record produced by a query. Similarity
// is normalized to the [0, 1] range, with higher values indicating better
// matches; the per-index scores that produced it are not exposed.
package types
