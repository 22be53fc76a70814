package types

// SearchResult represents a single search result returned to callers. It
// carries the fused similarity plus the chunk and document payload; the
// per-index scores that produced the fusion are internal to the searcher.
type SearchResult struct {
	// Identification
	ChunkID int64
	Rank    int // Position in result set (1-based)

	// Scoring
	Similarity float64 // Fused score, normalized to [0, 1]

	// Payload
	Document    *DocumentInfo
	Content     string
	HeadingPath string // Empty when the chunk has no heading ancestry
	Context     string // Adjacent-chunk context, when requested
	Snippet     string // Highlighted keyword excerpt, when requested
}

// DocumentInfo contains document metadata for a search result.
type DocumentInfo struct {
	UID   string
	Path  string
	Title string
}

// Validate checks if the search result is valid.
func (sr *SearchResult) Validate() error {
	if sr.ChunkID == 0 {
		return ErrInvalidChunkID
	}

	if sr.Rank < 1 {
		return ErrInvalidRank
	}

	if sr.Similarity < 0 || sr.Similarity > 1 {
		return ErrInvalidSimilarity
	}

	if sr.Document == nil {
		return ErrMissingDocumentInfo
	}

	if sr.Content == "" {
		return ErrEmptyContent
	}

	return nil
}
