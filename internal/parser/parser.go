package parser

import (
	"strings"

	"github.com/avencourt/memtext-mcp/pkg/types"
)

// MaxHeadingLevel is the deepest ATX heading level recognized.
const MaxHeadingLevel = 6

// Parser extracts heading structure from markdown and transcript text.
type Parser struct{}

// New creates a new Parser instance.
func New() *Parser {
	return &Parser{}
}

// ParseHeadings scans content line by line and returns every ATX heading
// ("#" through "######") with its level and 0-based line index, in document
// order. Headings inside fenced code blocks are ignored.
func (p *Parser) ParseHeadings(content string) []types.Heading {
	headings := make([]types.Heading, 0)

	inFence := false
	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimLeft(line, " \t")

		if strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		level, text, ok := parseATXLine(trimmed)
		if !ok {
			continue
		}

		headings = append(headings, types.Heading{
			Text:  text,
			Level: level,
			Line:  i,
		})
	}

	return headings
}

// Title returns the text of the first top-level heading, or an empty string
// when the document has none.
func (p *Parser) Title(content string) string {
	for _, h := range p.ParseHeadings(content) {
		if h.Level == 1 {
			return h.Text
		}
	}
	return ""
}

// parseATXLine parses a single line as an ATX heading. The marker run must be
// 1-6 "#" characters followed by a space or end of line.
func parseATXLine(line string) (level int, text string, ok bool) {
	if line == "" || line[0] != '#' {
		return 0, "", false
	}

	for level < len(line) && line[level] == '#' {
		level++
	}
	if level > MaxHeadingLevel {
		return 0, "", false
	}
	if level < len(line) && line[level] != ' ' && line[level] != '\t' {
		return 0, "", false
	}

	text = strings.TrimSpace(line[level:])
	// Trailing closing markers ("## Heading ##") are not part of the title.
	text = strings.TrimRight(strings.TrimRight(text, "#"), " \t")

	if text == "" {
		return 0, "", false
	}
	return level, text, true
}
