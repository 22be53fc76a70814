package types

import "errors"

// Validation errors for search results
var (
	ErrInvalidChunkID      = errors.New("chunk ID must be non-zero")
	ErrInvalidRank         = errors.New("rank must be 1-based")
	ErrInvalidSimilarity   = errors.New("similarity must be in [0, 1]")
	ErrMissingDocumentInfo = errors.New("document info is required")
	ErrEmptyContent        = errors.New("content cannot be empty")
)
