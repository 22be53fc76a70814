package types

import (
	"errors"
	"math"
)

// TokensPerWord is the heuristic ratio for estimating token counts from word
// counts in prose.
const TokensPerWord = 1.3

// Chunk represents a bounded, independently retrievable slice of a document,
// annotated with the heading ancestry it falls under.
type Chunk struct {
	// Identification
	ID         int64
	DocumentID int64

	// Position within the document. Ordinals are contiguous 0..n-1;
	// offsets are byte offsets into the document content and are
	// non-decreasing across ordinals.
	OrdinalIndex int
	StartOffset  int
	EndOffset    int

	// Content
	Content     string
	HeadingPath *string // Nil for preamble chunks and heading-less documents
	WordCount   int
	TokenCount  int
}

// ComputeTokenCount derives the token estimate from the word count.
func (c *Chunk) ComputeTokenCount() int {
	c.TokenCount = int(math.Ceil(float64(c.WordCount) * TokensPerWord))
	return c.TokenCount
}

// Validate performs comprehensive validation of the chunk.
func (c *Chunk) Validate() error {
	if c.Content == "" {
		return errors.New("chunk content cannot be empty")
	}

	if c.DocumentID == 0 {
		return errors.New("document ID is required")
	}

	if c.OrdinalIndex < 0 {
		return errors.New("ordinal index cannot be negative")
	}

	if c.StartOffset < 0 || c.EndOffset < c.StartOffset {
		return errors.New("offsets must be non-negative and ordered")
	}

	if c.WordCount <= 0 {
		return errors.New("word count must be positive")
	}

	return nil
}

// HeadingPathPtr is a convenience for building chunks with a literal heading
// path.
func HeadingPathPtr(path string) *string {
	return &path
}
