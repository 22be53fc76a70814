package chunker

import (
	"strings"
	"unicode"

	"github.com/avencourt/memtext-mcp/pkg/types"
)

const (
	// DefaultMaxChunkSize is the target maximum word count per chunk
	DefaultMaxChunkSize = 500

	// DefaultOverlapSize is the number of words repeated between adjacent
	// windows when a section must be split
	DefaultOverlapSize = 50

	// HeadingPathSeparator joins ancestor heading titles into a path
	HeadingPathSeparator = " > "
)

// Config controls how documents are split into chunks. The zero value is not
// usable; call DefaultConfig and override fields as needed.
type Config struct {
	MaxChunkSize    int  // Words per chunk
	OverlapSize     int  // Words shared between adjacent split windows
	SplitOnHeadings bool // Partition at heading boundaries when headings exist
	PreserveContext bool // Use the full ancestor heading path, not just the leaf
}

// DefaultConfig returns the standard chunking configuration.
func DefaultConfig() Config {
	return Config{
		MaxChunkSize:    DefaultMaxChunkSize,
		OverlapSize:     DefaultOverlapSize,
		SplitOnHeadings: true,
		PreserveContext: true,
	}
}

// Chunker splits document text into bounded, context-preserving chunks.
type Chunker struct {
	config Config
}

// New creates a Chunker with the given configuration. Non-positive sizes fall
// back to the defaults.
func New(config Config) *Chunker {
	if config.MaxChunkSize <= 0 {
		config.MaxChunkSize = DefaultMaxChunkSize
	}
	if config.OverlapSize <= 0 {
		config.OverlapSize = DefaultOverlapSize
	}
	return &Chunker{config: config}
}

// Chunk splits content into an ordered chunk list. Headings must be in
// document order. Empty or whitespace-only content yields an empty list.
func (c *Chunker) Chunk(content string, headings []types.Heading) []*types.Chunk {
	if strings.TrimSpace(content) == "" {
		return []*types.Chunk{}
	}

	sections := c.partition(content, headings)

	chunks := make([]*types.Chunk, 0, len(sections))
	ordinal := 0
	for _, sec := range sections {
		for _, win := range c.window(sec) {
			win.OrdinalIndex = ordinal
			win.ComputeTokenCount()
			chunks = append(chunks, win)
			ordinal++
		}
	}

	return chunks
}

// section is a contiguous region of the document sharing one heading path.
type section struct {
	headingPath *string
	source      string // The section's text
	base        int    // Byte offset of source within the full document
	words       []word
}

// word is a single whitespace-delimited token with its byte offsets into the
// original content.
type word struct {
	start int
	end   int
}

// partition splits content at heading line boundaries. Content before the
// first heading becomes a preamble section with a nil heading path. When no
// headings exist (or heading splitting is disabled) the whole document is one
// section.
func (c *Chunker) partition(content string, headings []types.Heading) []section {
	if !c.config.SplitOnHeadings || len(headings) == 0 {
		return []section{{headingPath: nil, source: content, base: 0, words: scanWords(content, 0)}}
	}

	lineOffsets := computeLineOffsets(content)
	lineStart := func(line int) int {
		if line >= len(lineOffsets) {
			return len(content)
		}
		return lineOffsets[line]
	}

	sections := make([]section, 0, len(headings)+1)

	// Preamble: everything before the first heading line.
	if pre := content[:lineStart(headings[0].Line)]; strings.TrimSpace(pre) != "" {
		sections = append(sections, section{headingPath: nil, source: pre, base: 0, words: scanWords(pre, 0)})
	}

	// Ancestor stack for heading path composition.
	type ancestor struct {
		level int
		text  string
	}
	stack := make([]ancestor, 0, 6)

	for i, h := range headings {
		for len(stack) > 0 && stack[len(stack)-1].level >= h.Level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, ancestor{level: h.Level, text: h.Text})

		var path string
		if c.config.PreserveContext {
			parts := make([]string, len(stack))
			for j, a := range stack {
				parts[j] = a.text
			}
			path = strings.Join(parts, HeadingPathSeparator)
		} else {
			path = h.Text
		}

		// A section spans from its heading line to the next heading line,
		// heading included, so heading words stay reachable by text search.
		start := lineStart(h.Line)
		end := len(content)
		if i+1 < len(headings) {
			end = lineStart(headings[i+1].Line)
		}

		body := content[start:end]
		sections = append(sections, section{
			headingPath: &path,
			source:      body,
			base:        start,
			words:       scanWords(body, start),
		})
	}

	return sections
}

// window applies the sliding-window split to one section. Sections within the
// size budget become exactly one chunk; oversized sections are split into
// windows sharing exactly OverlapSize words at each boundary.
func (c *Chunker) window(sec section) []*types.Chunk {
	if len(sec.words) == 0 {
		return nil
	}

	maxSize := c.config.MaxChunkSize
	step := maxSize - c.config.OverlapSize

	if len(sec.words) <= maxSize || step <= 0 {
		// Within budget, or a degenerate overlap configuration that would
		// never advance the window: emit a single window and stop.
		end := len(sec.words)
		if end > maxSize {
			end = maxSize
		}
		return []*types.Chunk{c.buildChunk(sec, 0, end)}
	}

	var chunks []*types.Chunk
	for start := 0; start < len(sec.words); start += step {
		end := start + maxSize
		if end > len(sec.words) {
			end = len(sec.words)
		}
		chunks = append(chunks, c.buildChunk(sec, start, end))
		if end == len(sec.words) {
			break
		}
	}
	return chunks
}

// buildChunk assembles a chunk from a word window. Content is the exact
// substring spanning the window so offsets stay faithful to the source.
func (c *Chunker) buildChunk(sec section, from, to int) *types.Chunk {
	first := sec.words[from]
	last := sec.words[to-1]

	return &types.Chunk{
		HeadingPath: sec.headingPath,
		Content:     sec.source[first.start-sec.base : last.end-sec.base],
		StartOffset: first.start,
		EndOffset:   last.end,
		WordCount:   to - from,
	}
}

// scanWords tokenizes text on unicode whitespace, recording absolute byte
// offsets (base is the text's offset within the full document).
func scanWords(text string, base int) []word {
	words := make([]word, 0, len(text)/6)
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				words = append(words, word{start: base + start, end: base + i})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, word{start: base + start, end: base + len(text)})
	}
	return words
}

// computeLineOffsets returns the byte offset of the start of each line.
func computeLineOffsets(content string) []int {
	offsets := []int{0}
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}
