package main

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	qerrors "github.com/sambeau/quill/pkg/quill/errors"
)

// reportError prints err and, when source is known, the offending line with
// a caret under the column.
func reportError(w io.Writer, err error, source string) {
	qerr, ok := err.(*qerrors.QuillError)
	if !ok {
		fmt.Fprintf(w, "Error: %v\n", err)
		return
	}

	fmt.Fprintln(w, qerr.PrettyString())
	if source != "" && qerr.Line > 0 {
		printSourceContext(w, strings.Split(source, "\n"), qerr.Line, qerr.Column)
	}
}

// printSourceContext shows one source line, trimmed of its indentation,
// with a pointer to colNum.
func printSourceContext(w io.Writer, lines []string, lineNum, colNum int) {
	if lineNum <= 0 || lineNum > len(lines) {
		return
	}

	sourceLine := strings.TrimRight(lines[lineNum-1], "\r")

	trimCount := 0
	for i := 0; i < len(sourceLine); i++ {
		if sourceLine[i] != ' ' && sourceLine[i] != '\t' {
			break
		}
		trimCount++
	}

	fmt.Fprintf(w, "    %s\n", sourceLine[trimCount:])

	if colNum > 0 {
		// Columns count runes; the trimmed prefix is ASCII
		visualCol := min(colNum-1, utf8.RuneCountInString(sourceLine))
		adjustedCol := max(visualCol-trimCount, 0)
		fmt.Fprintf(w, "    %s^\n", strings.Repeat(" ", adjustedCol))
	}
}
