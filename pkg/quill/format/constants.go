// Package format pretty-prints Quill scripts from their syntax tree.
package format

// Indentation: spaces only, since the lexer rejects widths that are not a
// multiple of the configured indent size.
const (
	IndentWidth  = 4
	IndentString = "    "
)

// MaxBlankLines is the most blank lines kept between two statements.
const MaxBlankLines = 1
