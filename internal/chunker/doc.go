// Package chunker splits document text into bounded, retrievable chunks.
//
// Content is partitioned at heading line boundaries (content before the
// first heading becomes a preamble chunk with no heading path), and any
// section exceeding the word budget is split into sliding windows that share
// exactly OverlapSize words at each boundary:
//
//	c := chunker.New(chunker.DefaultConfig())
//	chunks := c.Chunk(doc.Content, headings)
//
// Each chunk records its ordinal position, byte offsets into the source,
// word count, and the ">"-joined ancestor heading path it falls under.
// Chunking is a pure function of (content, headings, config): the same
// inputs always produce the same chunk list.
package chunker
