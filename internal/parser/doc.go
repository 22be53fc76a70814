// Package parser extracts heading structure from markdown and transcript
// text. It produces the ordered heading list the chunker consumes; it does
// not build a full markdown AST.
package parser
