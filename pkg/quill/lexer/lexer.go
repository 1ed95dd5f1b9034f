// Package lexer turns Quill source into a flat token stream.
//
// Block structure is indentation based: the lexer tracks an indent stack and
// emits INDENT and DEDENT tokens when the leading whitespace of a line grows
// or shrinks. Every non-empty line ends with a NEWLINE token and the stream
// always ends with EOF.
package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	qerrors "github.com/sambeau/quill/pkg/quill/errors"
)

// TokenType represents different types of tokens
type TokenType int

const (
	// Special tokens
	ILLEGAL TokenType = iota
	EOF
	NEWLINE
	INDENT
	DEDENT

	// Identifiers and literals
	IDENT    // kacey, greet, mood
	NUMBER   // 12, -3.5, 1e3
	STRING   // "text", 'text', """text""", p"""text"""
	NARRATOR // _

	// Operators and punctuation
	FUNC_DECL   // ==>
	EQ          // ==
	ASSIGN      // =
	DOUBLE_DASH // --
	DOLLAR      // $
	LPAREN      // (
	RPAREN      // )
	LBRACKET    // [
	RBRACKET    // ]
	LBRACE      // {
	RBRACE      // }
	COMMA       // ,
	COLON       // :

	// Keywords
	TRUE  // "true"
	FALSE // "false"
	NULL  // "null"
	IF    // "if"
	ELSE  // "else"
)

// CommentMarker starts a comment that runs to the end of the line.
const CommentMarker = ";;"

// DefaultIndentSize is the number of columns one block level is indented by.
const DefaultIndentSize = 4

// Token represents a single token
type Token struct {
	Type      TokenType
	Literal   string
	Line      int
	Column    int
	Preserved bool // STRING only: p"""...""" keeps its line breaks

	// Trivia, attached to the first token of a line (or EOF) for the formatter.
	BlankLinesBefore int
	LeadingComments  []string
	TrailingComment  string
}

// String returns a string representation of the token
func (t Token) String() string {
	return fmt.Sprintf("{Type: %s, Literal: %q, Line: %d, Column: %d}",
		t.Type.String(), t.Literal, t.Line, t.Column)
}

// Describe renders the token for error messages, e.g. `STRING "Hi"`.
func (t Token) Describe() string {
	switch t.Type {
	case EOF, NEWLINE, INDENT, DEDENT:
		return t.Type.String()
	case STRING:
		return fmt.Sprintf("STRING %q", truncate(t.Literal, 24))
	default:
		return fmt.Sprintf("%s '%s'", t.Type, t.Literal)
	}
}

// String returns a string representation of the token type
func (tt TokenType) String() string {
	switch tt {
	case ILLEGAL:
		return "ILLEGAL"
	case EOF:
		return "EOF"
	case NEWLINE:
		return "NEWLINE"
	case INDENT:
		return "INDENT"
	case DEDENT:
		return "DEDENT"
	case IDENT:
		return "IDENT"
	case NUMBER:
		return "NUMBER"
	case STRING:
		return "STRING"
	case NARRATOR:
		return "NARRATOR"
	case FUNC_DECL:
		return "==>"
	case EQ:
		return "=="
	case ASSIGN:
		return "="
	case DOUBLE_DASH:
		return "--"
	case DOLLAR:
		return "$"
	case LPAREN:
		return "("
	case RPAREN:
		return ")"
	case LBRACKET:
		return "["
	case RBRACKET:
		return "]"
	case LBRACE:
		return "{"
	case RBRACE:
		return "}"
	case COMMA:
		return ","
	case COLON:
		return ":"
	case TRUE:
		return "TRUE"
	case FALSE:
		return "FALSE"
	case NULL:
		return "NULL"
	case IF:
		return "IF"
	case ELSE:
		return "ELSE"
	default:
		return "UNKNOWN"
	}
}

var keywords = map[string]TokenType{
	"true":  TRUE,
	"false": FALSE,
	"null":  NULL,
	"if":    IF,
	"else":  ELSE,
}

// LookupIdent checks if an identifier is a keyword
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Option configures a Lexer.
type Option func(*Lexer)

// WithIndentSize sets the column width of one indentation level.
func WithIndentSize(n int) Option {
	return func(l *Lexer) {
		if n > 0 {
			l.indentSize = n
		}
	}
}

// WithFilename records the file name on lexical errors.
func WithFilename(name string) Option {
	return func(l *Lexer) {
		l.filename = name
	}
}

// Lexer represents the lexical analyzer
type Lexer struct {
	filename     string
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination (first byte)
	chRune       rune // current character as a rune
	chSize       int  // byte size of current character
	line         int  // line of the current char
	column       int  // column of the current char

	indentSize int
	indents    []int // widths of open blocks; indents[0] == 0
	tokens     []Token

	pendingComments   []string
	pendingBlankLines int
	err               *qerrors.QuillError
}

// New creates a new lexer instance
func New(input string, opts ...Option) *Lexer {
	l := &Lexer{
		input:      input,
		line:       1,
		indentSize: DefaultIndentSize,
		indents:    []int{0},
	}
	for _, opt := range opts {
		opt(l)
	}
	l.readChar()
	return l
}

// Tokenize lexes input with the given options.
func Tokenize(input string, opts ...Option) ([]Token, error) {
	return New(input, opts...).Tokenize()
}

// Tokenize consumes the whole input and returns the token stream, or the
// first lexical error.
func (l *Lexer) Tokenize() ([]Token, error) {
	for l.ch != 0 {
		l.lexLine()
		if l.err != nil {
			return nil, l.err
		}
	}

	for len(l.indents) > 1 {
		l.indents = l.indents[:len(l.indents)-1]
		l.emit(Token{Type: DEDENT, Line: l.line, Column: 1})
	}

	eof := Token{Type: EOF, Line: l.line, Column: l.column}
	eof.LeadingComments = l.pendingComments
	eof.BlankLinesBefore = l.pendingBlankLines
	l.emit(eof)

	return l.tokens, nil
}

// readChar reads the next character and advances position.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}

	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.chRune = 0
		l.chSize = 0
		l.position = l.readPosition
		l.column++
		return
	}

	b := l.input[l.readPosition]
	l.position = l.readPosition
	l.column++

	if b < utf8.RuneSelf {
		l.ch = b
		l.chRune = rune(b)
		l.chSize = 1
		l.readPosition++
		return
	}

	r, size := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = b
	l.chRune = r
	l.chSize = size
	l.readPosition += size
}

func (l *Lexer) peekChar() byte {
	return l.peekCharN(1)
}

// peekCharN returns the byte n characters ahead of the current one.
func (l *Lexer) peekCharN(n int) byte {
	pos := l.readPosition + n - 1
	if pos >= len(l.input) {
		return 0
	}
	return l.input[pos]
}

func (l *Lexer) fail(code string, line, column int, data map[string]any) {
	err := qerrors.NewWithPosition(code, line, column, data)
	if l.filename != "" {
		err.File = l.filename
	}
	l.err = err
}

func (l *Lexer) emit(tok Token) {
	l.tokens = append(l.tokens, tok)
}

// lexLine handles one physical line starting at column 1. Blank and
// comment-only lines produce no tokens; their comments are kept as trivia
// for the next token.
func (l *Lexer) lexLine() {
	line := l.line
	width := 0
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
		switch l.ch {
		case ' ':
			width++
		case '\t':
			width += l.indentSize
		}
		l.readChar()
	}

	switch {
	case l.ch == 0:
		return
	case l.ch == '\n':
		if len(l.tokens) > 0 || len(l.pendingComments) > 0 {
			l.pendingBlankLines = 1
		}
		l.readChar()
		return
	case l.atComment():
		l.pendingComments = append(l.pendingComments, l.readComment())
		if l.ch == '\n' {
			l.readChar()
		}
		return
	}

	if !l.applyIndent(width, line) {
		return
	}

	first := len(l.tokens)
	trailing := ""
	for {
		l.skipHorizontalWhitespace()
		if l.ch == '\n' || l.ch == 0 {
			break
		}
		if l.atComment() {
			trailing = l.readComment()
			break
		}
		tok, ok := l.nextToken()
		if !ok {
			return
		}
		l.emit(tok)
	}

	if first < len(l.tokens) {
		l.tokens[first].LeadingComments = l.pendingComments
		l.tokens[first].BlankLinesBefore = l.pendingBlankLines
		l.tokens[first].TrailingComment = trailing
		l.pendingComments = nil
		l.pendingBlankLines = 0
	}

	l.emit(Token{Type: NEWLINE, Literal: "\n", Line: l.line, Column: l.column})
	if l.ch == '\n' {
		l.readChar()
	}
}

// applyIndent compares width against the indent stack and emits INDENT or
// DEDENT tokens. It reports false after recording a lexical error.
func (l *Lexer) applyIndent(width, line int) bool {
	top := l.indents[len(l.indents)-1]

	switch {
	case width > top:
		if (width-top)%l.indentSize != 0 {
			l.fail("LEX-0001", line, 1, map[string]any{"Width": width, "Top": top, "Size": l.indentSize})
			return false
		}
		l.indents = append(l.indents, width)
		l.emit(Token{Type: INDENT, Line: line, Column: 1})

	case width < top:
		for len(l.indents) > 1 && l.indents[len(l.indents)-1] > width {
			l.indents = l.indents[:len(l.indents)-1]
			l.emit(Token{Type: DEDENT, Line: line, Column: 1})
		}
		if l.indents[len(l.indents)-1] != width {
			l.fail("LEX-0002", line, 1, map[string]any{"Width": width})
			return false
		}
	}
	return true
}

func (l *Lexer) skipHorizontalWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *Lexer) atComment() bool {
	return l.ch == ';' && l.peekChar() == ';'
}

// readComment reads from the marker to end of line, excluding the newline.
func (l *Lexer) readComment() string {
	start := l.position
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
	return strings.TrimRight(l.input[start:l.position], " \t\r")
}

// nextToken scans one token starting at the current character.
func (l *Lexer) nextToken() (Token, bool) {
	line, column := l.line, l.column
	simple := func(t TokenType, lit string) (Token, bool) {
		for range lit {
			l.readChar()
		}
		return Token{Type: t, Literal: lit, Line: line, Column: column}, true
	}

	switch l.ch {
	case '=':
		if l.peekChar() == '=' && l.peekCharN(2) == '>' {
			return simple(FUNC_DECL, "==>")
		}
		if l.peekChar() == '=' {
			return simple(EQ, "==")
		}
		return simple(ASSIGN, "=")
	case '-':
		if l.peekChar() == '-' {
			return simple(DOUBLE_DASH, "--")
		}
		if l.startsNumber(1) {
			return l.readNumber(line, column)
		}
	case '+':
		if l.startsNumber(1) {
			return l.readNumber(line, column)
		}
	case '$':
		return simple(DOLLAR, "$")
	case '(':
		return simple(LPAREN, "(")
	case ')':
		return simple(RPAREN, ")")
	case '[':
		return simple(LBRACKET, "[")
	case ']':
		return simple(RBRACKET, "]")
	case '{':
		return simple(LBRACE, "{")
	case '}':
		return simple(RBRACE, "}")
	case ',':
		return simple(COMMA, ",")
	case ':':
		return simple(COLON, ":")
	case '"':
		if l.peekChar() == '"' && l.peekCharN(2) == '"' {
			return l.readTripleString(line, column, false)
		}
		return l.readString(line, column)
	case '\'':
		return l.readString(line, column)
	}

	if l.startsNumber(0) {
		return l.readNumber(line, column)
	}

	if l.ch == 'p' && l.peekChar() == '"' && l.peekCharN(2) == '"' && l.peekCharN(3) == '"' {
		l.readChar()
		return l.readTripleString(line, column, true)
	}

	if isLetterRune(l.chRune) {
		ident := l.readIdentifier()
		if ident == "_" {
			return Token{Type: NARRATOR, Literal: ident, Line: line, Column: column}, true
		}
		return Token{Type: LookupIdent(ident), Literal: ident, Line: line, Column: column}, true
	}

	l.fail("LEX-0004", line, column, map[string]any{"Char": string(l.chRune)})
	return Token{}, false
}

// startsNumber reports whether a number begins offset characters ahead.
func (l *Lexer) startsNumber(offset int) bool {
	at := func(n int) byte {
		if n == 0 {
			return l.ch
		}
		return l.peekCharN(n)
	}
	if isDigit(at(offset)) {
		return true
	}
	return at(offset) == '.' && isDigit(at(offset+1))
}

// readIdentifier reads an identifier or keyword.
func (l *Lexer) readIdentifier() string {
	position := l.position
	for isLetterRune(l.chRune) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[position:l.position]
}

// readNumber reads an optionally signed decimal with optional exponent.
func (l *Lexer) readNumber(line, column int) (Token, bool) {
	position := l.position
	if l.ch == '+' || l.ch == '-' {
		l.readChar()
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(l.peekCharN(2))) {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}

	if isLetterRune(l.chRune) || l.ch == '.' {
		for isLetterRune(l.chRune) || isDigit(l.ch) || l.ch == '.' {
			l.readChar()
		}
		l.fail("LEX-0005", line, column, map[string]any{"Literal": l.input[position:l.position]})
		return Token{}, false
	}

	return Token{Type: NUMBER, Literal: l.input[position:l.position], Line: line, Column: column}, true
}

// readString reads a single-line string delimited by the current quote
// character, processing escape sequences.
func (l *Lexer) readString(line, column int) (Token, bool) {
	quote := l.ch
	var result []byte
	l.readChar()

	for l.ch != quote {
		if l.ch == 0 || l.ch == '\n' {
			l.fail("LEX-0003", line, column, nil)
			return Token{}, false
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				result = append(result, '\n')
			case 't':
				result = append(result, '\t')
			case '\\', '"', '\'':
				result = append(result, l.ch)
			case 0, '\n':
				l.fail("LEX-0003", line, column, nil)
				return Token{}, false
			default:
				result = append(result, '\\')
				result = l.appendCurrentChar(result)
			}
		} else {
			result = l.appendCurrentChar(result)
		}
		l.readChar()
	}
	l.readChar() // closing quote

	return Token{Type: STRING, Literal: string(result), Line: line, Column: column}, true
}

// readTripleString reads a """ string that may span lines. Unless preserved,
// runs of whitespace collapse to one space and the ends are trimmed.
func (l *Lexer) readTripleString(line, column int, preserved bool) (Token, bool) {
	l.readChar()
	l.readChar()
	l.readChar()

	start := l.position
	for !(l.ch == '"' && l.peekChar() == '"' && l.peekCharN(2) == '"') {
		if l.ch == 0 {
			l.fail("LEX-0003", line, column, nil)
			return Token{}, false
		}
		l.readChar()
	}
	raw := l.input[start:l.position]
	l.readChar()
	l.readChar()
	l.readChar()

	text := raw
	if !preserved {
		text = strings.Join(strings.Fields(raw), " ")
	}
	return Token{Type: STRING, Literal: text, Line: line, Column: column, Preserved: preserved}, true
}

func (l *Lexer) appendCurrentChar(result []byte) []byte {
	if l.chSize <= 1 {
		return append(result, l.ch)
	}
	return append(result, l.input[l.position:l.position+l.chSize]...)
}

// isLetterRune checks if a rune can start or continue an identifier.
func isLetterRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
