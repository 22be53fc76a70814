package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avencourt/memtext-mcp/internal/parser"
	"github.com/avencourt/memtext-mcp/pkg/types"
)

func TestNew_AppliesDefaults(t *testing.T) {
	c := New(Config{})
	require.NotNil(t, c)
	assert.Equal(t, DefaultMaxChunkSize, c.config.MaxChunkSize)
	assert.Equal(t, DefaultOverlapSize, c.config.OverlapSize)
}

func TestChunk_EmptyContent(t *testing.T) {
	c := New(DefaultConfig())

	assert.Empty(t, c.Chunk("", nil))
	assert.Empty(t, c.Chunk("   \n\t\n  ", nil))
}

func TestChunk_SingleSmallDocument(t *testing.T) {
	c := New(DefaultConfig())

	content := "The quick brown fox jumps over the lazy dog."
	chunks := c.Chunk(content, nil)

	require.Len(t, chunks, 1)
	assert.Equal(t, content, chunks[0].Content)
	assert.Equal(t, 0, chunks[0].OrdinalIndex)
	assert.Nil(t, chunks[0].HeadingPath)
	assert.Equal(t, 9, chunks[0].WordCount)
	assert.Equal(t, 0, chunks[0].StartOffset)
	assert.Equal(t, len(content), chunks[0].EndOffset)
}

func TestChunk_SlidingWindowOverlap(t *testing.T) {
	c := New(Config{MaxChunkSize: 10, OverlapSize: 3, SplitOnHeadings: true})

	words := make([]string, 24)
	for i := range words {
		words[i] = string(rune('a' + i))
	}
	content := strings.Join(words, " ")

	chunks := c.Chunk(content, nil)
	require.Greater(t, len(chunks), 1)

	// Consecutive windows share exactly overlapSize words
	for i := 1; i < len(chunks); i++ {
		prevWords := strings.Fields(chunks[i-1].Content)
		curWords := strings.Fields(chunks[i].Content)
		tail := prevWords[len(prevWords)-3:]
		head := curWords[:3]
		assert.Equal(t, tail, head, "window %d should start with the previous window's last 3 words", i)
	}

	// Ordinals are sequential
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.OrdinalIndex)
	}
}

func TestChunk_HeadingPaths(t *testing.T) {
	c := New(DefaultConfig())
	p := parser.New()

	content := `# Grandparent

Intro words here.

## Parent

Middle section body.

### Heading

Deep section body.
`
	headings := p.ParseHeadings(content)
	chunks := c.Chunk(content, headings)
	require.Len(t, chunks, 3)

	require.NotNil(t, chunks[0].HeadingPath)
	assert.Equal(t, "Grandparent", *chunks[0].HeadingPath)
	require.NotNil(t, chunks[1].HeadingPath)
	assert.Equal(t, "Grandparent > Parent", *chunks[1].HeadingPath)
	require.NotNil(t, chunks[2].HeadingPath)
	assert.Equal(t, "Grandparent > Parent > Heading", *chunks[2].HeadingPath)
}

func TestChunk_PreambleBeforeFirstHeading(t *testing.T) {
	c := New(DefaultConfig())
	p := parser.New()

	content := `Opening remarks before any heading.

# First

Section body text.
`
	chunks := c.Chunk(content, p.ParseHeadings(content))
	require.Len(t, chunks, 2)

	assert.Nil(t, chunks[0].HeadingPath)
	assert.Equal(t, 0, chunks[0].OrdinalIndex)
	assert.Contains(t, chunks[0].Content, "Opening remarks")

	require.NotNil(t, chunks[1].HeadingPath)
	assert.Equal(t, "First", *chunks[1].HeadingPath)
	assert.Equal(t, 1, chunks[1].OrdinalIndex)
}

func TestChunk_SiblingHeadingsPopStack(t *testing.T) {
	c := New(DefaultConfig())
	p := parser.New()

	content := `# Top

## Alpha

Alpha body.

## Beta

Beta body.
`
	chunks := c.Chunk(content, p.ParseHeadings(content))
	require.Len(t, chunks, 3)
	assert.Equal(t, "Top", *chunks[0].HeadingPath)
	assert.Equal(t, "# Top", chunks[0].Content)
	assert.Equal(t, "Top > Alpha", *chunks[1].HeadingPath)
	assert.Equal(t, "Top > Beta", *chunks[2].HeadingPath)
}

func TestChunk_HeadingWordsStayInContent(t *testing.T) {
	c := New(DefaultConfig())
	p := parser.New()

	// A term that appears only in the heading must survive into chunk
	// content, or it can never match a keyword query.
	content := "## Zebra Configuration\n\nbody text only here.\n"
	chunks := c.Chunk(content, p.ParseHeadings(content))

	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "Zebra Configuration")
	require.NotNil(t, chunks[0].HeadingPath)
	assert.Equal(t, "Zebra Configuration", *chunks[0].HeadingPath)
}

func TestChunk_OverlapGuard(t *testing.T) {
	// overlap >= max window would never advance; the chunker emits a
	// single capped window instead
	c := New(Config{MaxChunkSize: 5, OverlapSize: 5, SplitOnHeadings: true})

	content := strings.Repeat("word ", 20)
	chunks := c.Chunk(content, nil)

	require.Len(t, chunks, 1)
	assert.Equal(t, 5, chunks[0].WordCount)
}

func TestChunk_SplitOnHeadingsDisabled(t *testing.T) {
	c := New(Config{MaxChunkSize: 500, OverlapSize: 50, SplitOnHeadings: false})
	p := parser.New()

	content := `# One

First body.

# Two

Second body.
`
	chunks := c.Chunk(content, p.ParseHeadings(content))
	require.Len(t, chunks, 1)
	assert.Nil(t, chunks[0].HeadingPath)
	assert.Contains(t, chunks[0].Content, "First body")
	assert.Contains(t, chunks[0].Content, "Second body")
}

func TestChunk_TokenCountEstimate(t *testing.T) {
	c := New(DefaultConfig())

	chunks := c.Chunk("one two three four five six seven eight nine ten", nil)
	require.Len(t, chunks, 1)
	assert.Equal(t, 10, chunks[0].WordCount)
	// ceil(10 * 1.3) = 13
	assert.Equal(t, 13, chunks[0].TokenCount)
}

func TestChunk_ByteOffsetsMatchSource(t *testing.T) {
	c := New(DefaultConfig())
	p := parser.New()

	content := `# Title

Alpha beta gamma.

## Sub

Delta epsilon.
`
	chunks := c.Chunk(content, p.ParseHeadings(content))
	require.NotEmpty(t, chunks)

	for _, chunk := range chunks {
		chunk.DocumentID = 1
		require.NoError(t, chunk.Validate())
		assert.Equal(t, chunk.Content, content[chunk.StartOffset:chunk.EndOffset],
			"offsets must slice the original document back to the chunk content")
	}
}

func TestChunk_ValidatesAgainstTypes(t *testing.T) {
	c := New(DefaultConfig())

	chunks := c.Chunk("plain text with several words in it", nil)
	require.Len(t, chunks, 1)

	chunk := chunks[0]
	chunk.DocumentID = 1
	assert.NoError(t, chunk.Validate())
	assert.IsType(t, &types.Chunk{}, chunk)
}
