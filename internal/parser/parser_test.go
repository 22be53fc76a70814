package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avencourt/memtext-mcp/pkg/types"
)

func TestParseHeadings_AllLevels(t *testing.T) {
	p := New()

	content := `# One
## Two
### Three
#### Four
##### Five
###### Six`

	headings := p.ParseHeadings(content)
	require.Len(t, headings, 6)

	for i, h := range headings {
		assert.Equal(t, i+1, h.Level)
		assert.Equal(t, i, h.Line, "line indices are 0-based")
	}
	assert.Equal(t, "One", headings[0].Text)
	assert.Equal(t, "Six", headings[5].Text)
}

func TestParseHeadings_RejectsSevenMarkers(t *testing.T) {
	p := New()

	headings := p.ParseHeadings("####### Too deep")
	assert.Empty(t, headings)
}

func TestParseHeadings_RequiresSpaceAfterMarkers(t *testing.T) {
	p := New()

	headings := p.ParseHeadings("#NoSpace\n# With space")
	require.Len(t, headings, 1)
	assert.Equal(t, "With space", headings[0].Text)
	assert.Equal(t, 1, headings[0].Line)
}

func TestParseHeadings_TrimsTrailingMarkers(t *testing.T) {
	p := New()

	headings := p.ParseHeadings("## Closed heading ##")
	require.Len(t, headings, 1)
	assert.Equal(t, "Closed heading", headings[0].Text)
	assert.Equal(t, 2, headings[0].Level)
}

func TestParseHeadings_SkipsFencedCodeBlocks(t *testing.T) {
	p := New()

	content := "# Real\n```\n# Not a heading\n```\n## Also real\n~~~\n### Hidden\n~~~\n"
	headings := p.ParseHeadings(content)

	require.Len(t, headings, 2)
	assert.Equal(t, "Real", headings[0].Text)
	assert.Equal(t, "Also real", headings[1].Text)
}

func TestParseHeadings_ToleratesLeadingWhitespace(t *testing.T) {
	p := New()

	headings := p.ParseHeadings("   # Indented")
	require.Len(t, headings, 1)
	assert.Equal(t, "Indented", headings[0].Text)
}

func TestParseHeadings_RejectsEmptyText(t *testing.T) {
	p := New()

	assert.Empty(t, p.ParseHeadings("#"))
	assert.Empty(t, p.ParseHeadings("##   "))
	assert.Empty(t, p.ParseHeadings("# ##"))
}

func TestParseHeadings_EmptyContent(t *testing.T) {
	p := New()

	headings := p.ParseHeadings("")
	assert.Empty(t, headings)
	assert.IsType(t, []types.Heading{}, headings)
}

func TestTitle(t *testing.T) {
	p := New()

	content := "Some preamble.\n\n## Subheading first\n\n# The Title\n\n# Second H1\n"
	assert.Equal(t, "The Title", p.Title(content))

	assert.Equal(t, "", p.Title("## Only subheadings here\n"))
	assert.Equal(t, "", p.Title(""))
}
