package types

import "time"

// Document represents a tracked long-form text source: a conversation
// transcript or a manuscript/markdown file.
type Document struct {
	ID          int64
	UID         string // Stable external identifier, assigned at first ingestion
	Path        string // Source path, or a synthetic name for inline content
	Title       string
	Content     string
	ContentHash [32]byte // SHA-256 hash for change detection
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Heading is a single heading extracted from a document, in document order.
type Heading struct {
	Text  string
	Level int // 1 for top-level headings, increasing with nesting depth
	Line  int // 0-based line index into the document content
}
