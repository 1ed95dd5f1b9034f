// Package parser builds a Quill AST from a token stream.
package parser

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/sambeau/quill/pkg/quill/ast"
	qerrors "github.com/sambeau/quill/pkg/quill/errors"
	"github.com/sambeau/quill/pkg/quill/lexer"
)

// DefaultCallables are names always parsed as calls in the direct
// `name "text"` form, even without a matching ==> declaration.
var DefaultCallables = []string{"print"}

var interpolationPattern = regexp.MustCompile(`\$\{([\p{L}_][\p{L}\p{Nd}_]*)\}`)

// Option configures a Parser.
type Option func(*Parser)

// WithCallables registers extra builtin names, so `name "text"` calls them
// instead of being read as dialogue.
func WithCallables(names ...string) Option {
	return func(p *Parser) {
		for _, name := range names {
			p.callables[name] = true
		}
	}
}

// WithFilename records the file name on parse errors.
func WithFilename(name string) Option {
	return func(p *Parser) {
		p.filename = name
	}
}

type Parser struct {
	tokens []lexer.Token
	pos    int

	callables        map[string]bool
	filename         string
	structuredErrors []*qerrors.QuillError
}

// New creates a parser over tokens, which must end with EOF.
func New(tokens []lexer.Token, opts ...Option) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != lexer.EOF {
		tokens = append(tokens[:len(tokens):len(tokens)], lexer.Token{Type: lexer.EOF})
	}
	p := &Parser{
		tokens:    tokens,
		callables: map[string]bool{},
	}
	for _, name := range DefaultCallables {
		p.callables[name] = true
	}
	for i := 0; i+1 < len(tokens); i++ {
		if tokens[i].Type == lexer.FUNC_DECL && tokens[i+1].Type == lexer.IDENT {
			p.callables[tokens[i+1].Literal] = true
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse is a convenience wrapper returning the program or the first error.
func Parse(tokens []lexer.Token, opts ...Option) (*ast.Program, error) {
	p := New(tokens, opts...)
	program := p.ParseProgram()
	if errs := p.StructuredErrors(); len(errs) > 0 {
		return nil, errs[0]
	}
	return program, nil
}

// Errors returns parser errors as strings (convenience method for tests).
func (p *Parser) Errors() []string {
	result := make([]string, len(p.structuredErrors))
	for i, err := range p.structuredErrors {
		if err.Line > 0 {
			result[i] = fmt.Sprintf("line %d, column %d: %s", err.Line, err.Column, err.Message)
		} else {
			result[i] = err.Message
		}
	}
	return result
}

// StructuredErrors returns parser errors as structured QuillError objects.
func (p *Parser) StructuredErrors() []*qerrors.QuillError {
	return p.structuredErrors
}

// addError records a catalog error at tok. Only the first error is kept;
// parsing stops there.
func (p *Parser) addError(code string, tok lexer.Token, data map[string]any) {
	if len(p.structuredErrors) > 0 {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	data["TokenType"] = tok.Type.String()
	err := qerrors.NewWithPosition(code, tok.Line, tok.Column, data)
	err.File = p.filename
	p.structuredErrors = append(p.structuredErrors, err)
}

func (p *Parser) failed() bool {
	return len(p.structuredErrors) > 0
}

func (p *Parser) cur() lexer.Token {
	return p.peek(0)
}

// peek returns the token n positions ahead, clamped to EOF.
func (p *Parser) peek(n int) lexer.Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool {
	return p.cur().Type == t
}

func (p *Parser) nextToken() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
}

// expect checks that the current token has type t, consumes it and returns
// it. what names the token in the error message.
func (p *Parser) expect(t lexer.TokenType, what string) (lexer.Token, bool) {
	tok := p.cur()
	if tok.Type != t {
		p.addError("PARSE-0001", tok, map[string]any{"Expected": what, "Got": tok.Describe()})
		return tok, false
	}
	p.nextToken()
	return tok, true
}

func (p *Parser) skipNewlines() {
	for p.curTokenIs(lexer.NEWLINE) {
		p.nextToken()
	}
}

func isEndOfStatement(t lexer.TokenType) bool {
	switch t {
	case lexer.NEWLINE, lexer.EOF, lexer.DEDENT, lexer.INDENT, lexer.COLON:
		return true
	}
	return false
}

// endStatement consumes the NEWLINE that terminates a simple statement.
func (p *Parser) endStatement() bool {
	switch p.cur().Type {
	case lexer.NEWLINE:
		p.nextToken()
		return true
	case lexer.EOF:
		return true
	}
	tok := p.cur()
	p.addError("PARSE-0001", tok, map[string]any{"Expected": "end of line", "Got": tok.Describe()})
	return false
}

// ParseProgram parses the program and returns the AST
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{Statements: []ast.Statement{}}

	for !p.failed() {
		p.skipNewlines()
		if p.curTokenIs(lexer.EOF) {
			program.EOF = p.cur()
			break
		}
		stmt := p.parseStatement()
		if stmt == nil {
			break
		}
		program.Statements = append(program.Statements, stmt)
	}

	return program
}

func (p *Parser) parseStatement() ast.Statement {
	switch p.cur().Type {
	case lexer.FUNC_DECL:
		return nilIfFailed(p, p.parseFunctionDeclaration())
	case lexer.DOLLAR:
		return p.parseVariableStatement()
	case lexer.IF:
		return nilIfFailed(p, p.parseIfStatement())
	case lexer.IDENT, lexer.NARRATOR:
		if split, ok := p.isDialogue(); ok {
			return nilIfFailed(p, p.parseDialogueStatement(split))
		}
		if p.curTokenIs(lexer.NARRATOR) {
			tok := p.peek(1)
			p.addError("PARSE-0001", tok, map[string]any{"Expected": "a string after _", "Got": tok.Describe()})
			return nil
		}
		return nilIfFailed(p, p.parseFunctionCall())
	default:
		tok := p.cur()
		p.addError("PARSE-0002", tok, map[string]any{"Got": tok.Describe()})
		return nil
	}
}

// nilIfFailed converts a typed nil or a partially built node into a nil
// interface once an error has been recorded.
func nilIfFailed[T ast.Statement](p *Parser, stmt T) ast.Statement {
	if p.failed() {
		return nil
	}
	return stmt
}

// isDialogue applies the dialogue lookahead at an IDENT or NARRATOR: one
// STRING follows, directly or after a single NEWLINE, and the string ends
// the statement. The direct form of a known callable is a call instead.
// split reports the NEWLINE form.
func (p *Parser) isDialogue() (split bool, ok bool) {
	speaker := p.cur()

	if p.peek(1).Type == lexer.STRING && isEndOfStatement(p.peek(2).Type) {
		if speaker.Type == lexer.IDENT && p.callables[speaker.Literal] {
			return false, false
		}
		return false, true
	}
	if p.peek(1).Type == lexer.NEWLINE && p.peek(2).Type == lexer.STRING && isEndOfStatement(p.peek(3).Type) {
		return true, true
	}
	return false, false
}

func (p *Parser) parseDialogueStatement(split bool) *ast.DialogueStatement {
	stmt := &ast.DialogueStatement{Token: p.cur(), Split: split}
	if p.curTokenIs(lexer.IDENT) {
		stmt.Speaker = &ast.Identifier{Token: p.cur(), Value: p.cur().Literal}
	}
	p.nextToken()
	if split {
		p.nextToken()
	}

	strTok := p.cur()
	stmt.Text = p.parseStringLiteral(strTok)
	stmt.Preserve = strTok.Preserved
	p.nextToken()

	p.endStatement()
	return stmt
}

func (p *Parser) parseFunctionDeclaration() *ast.FunctionDeclaration {
	stmt := &ast.FunctionDeclaration{Token: p.cur()}
	p.nextToken()

	nameTok, ok := p.expect(lexer.IDENT, "a function name")
	if !ok {
		return nil
	}
	stmt.Name = &ast.Identifier{Token: nameTok, Value: nameTok.Literal}

	if _, ok := p.expect(lexer.NEWLINE, "end of line after function name"); !ok {
		return nil
	}
	if !p.curTokenIs(lexer.INDENT) {
		tok := p.cur()
		p.addError("PARSE-0001", tok, map[string]any{"Expected": "an indented function body", "Got": tok.Describe()})
		return nil
	}

	body := p.parseBlock()
	if body == nil {
		return nil
	}

	statements := body.Statements
	for len(statements) > 0 {
		param, ok := statements[0].(*ast.ParameterDeclaration)
		if !ok {
			break
		}
		stmt.Params = append(stmt.Params, param)
		statements = statements[1:]
	}
	for _, s := range statements {
		if param, ok := s.(*ast.ParameterDeclaration); ok {
			p.addError("PARSE-0003", param.Token, map[string]any{
				"Name":     param.Name.Value,
				"Function": stmt.Name.Value,
			})
			return nil
		}
	}
	body.Statements = statements
	stmt.Body = body

	return stmt
}

// parseVariableStatement parses `$name = expr` or a bare `$name`.
func (p *Parser) parseVariableStatement() ast.Statement {
	dollar := p.cur()
	p.nextToken()

	nameTok, ok := p.expect(lexer.IDENT, "a variable name after $")
	if !ok {
		return nil
	}
	name := &ast.Identifier{Token: nameTok, Value: nameTok.Literal}

	if isEndOfStatement(p.cur().Type) {
		if !p.endStatement() {
			return nil
		}
		return &ast.ParameterDeclaration{Token: dollar, Name: name}
	}

	if _, ok := p.expect(lexer.ASSIGN, "'=' or end of line"); !ok {
		return nil
	}
	value := p.parseExpression()
	if value == nil || !p.endStatement() {
		return nil
	}

	return &ast.VariableAssignment{Token: dollar, Name: name, Value: value, Declaration: true}
}

func (p *Parser) parseIfStatement() *ast.IfStatement {
	stmt := &ast.IfStatement{Token: p.cur()}
	p.nextToken()

	if _, ok := p.expect(lexer.LPAREN, "'(' after if"); !ok {
		return nil
	}
	stmt.Condition = p.parseExpression()
	if stmt.Condition == nil {
		return nil
	}
	if _, ok := p.expect(lexer.RPAREN, "')'"); !ok {
		return nil
	}
	stmt.Consequence = p.parseBlockHeader("if")
	if stmt.Consequence == nil {
		return nil
	}

	// else may follow blank lines
	i := p.pos
	for i < len(p.tokens) && p.tokens[i].Type == lexer.NEWLINE {
		i++
	}
	if i < len(p.tokens) && p.tokens[i].Type == lexer.ELSE {
		p.pos = i
		elseTok := p.cur()
		p.nextToken()
		body := p.parseBlockHeader("else")
		if body == nil {
			return nil
		}
		stmt.Alternative = &ast.ElseBlock{Token: elseTok, Body: body}
	}

	return stmt
}

// parseBlockHeader parses `: NEWLINE block` after an if condition or else.
func (p *Parser) parseBlockHeader(keyword string) *ast.Block {
	if _, ok := p.expect(lexer.COLON, "':' after "+keyword); !ok {
		return nil
	}
	if _, ok := p.expect(lexer.NEWLINE, "end of line after ':'"); !ok {
		return nil
	}
	if !p.curTokenIs(lexer.INDENT) {
		tok := p.cur()
		p.addError("PARSE-0001", tok, map[string]any{"Expected": "an indented block after " + keyword, "Got": tok.Describe()})
		return nil
	}
	return p.parseBlock()
}

// parseBlock parses INDENT statement* DEDENT.
func (p *Parser) parseBlock() *ast.Block {
	block := &ast.Block{Token: p.cur(), Statements: []ast.Statement{}}
	p.nextToken()

	for {
		p.skipNewlines()
		switch p.cur().Type {
		case lexer.DEDENT:
			p.nextToken()
			return block
		case lexer.EOF:
			tok := p.cur()
			p.addError("PARSE-0001", tok, map[string]any{"Expected": "end of block", "Got": tok.Describe()})
			return nil
		}
		stmt := p.parseStatement()
		if stmt == nil {
			return nil
		}
		block.Statements = append(block.Statements, stmt)
	}
}

// parseFunctionCall parses `name arg* (--param value)*` to end of line.
func (p *Parser) parseFunctionCall() *ast.FunctionCall {
	stmt := &ast.FunctionCall{Token: p.cur(), Callee: &ast.Identifier{Token: p.cur(), Value: p.cur().Literal}}
	p.nextToken()

	for !isEndOfStatement(p.cur().Type) {
		if p.curTokenIs(lexer.DOUBLE_DASH) {
			arg := &ast.NamedArgument{Token: p.cur()}
			p.nextToken()
			nameTok, ok := p.expect(lexer.IDENT, "a parameter name after --")
			if !ok {
				return nil
			}
			arg.Name = &ast.Identifier{Token: nameTok, Value: nameTok.Literal}
			arg.Value = p.parseExpression()
			if arg.Value == nil {
				return nil
			}
			stmt.Arguments = append(stmt.Arguments, arg)
			continue
		}

		expr := p.parseExpression()
		if expr == nil {
			return nil
		}
		stmt.Arguments = append(stmt.Arguments, expr)
	}

	if !p.endStatement() {
		return nil
	}
	return stmt
}

// parseExpression parses assignment, the lowest precedence level.
func (p *Parser) parseExpression() ast.Expression {
	if p.curTokenIs(lexer.IDENT) && p.peek(1).Type == lexer.ASSIGN {
		nameTok := p.cur()
		p.nextToken()
		p.nextToken()
		value := p.parseExpression()
		if value == nil {
			return nil
		}
		return &ast.VariableAssignment{
			Token: nameTok,
			Name:  &ast.Identifier{Token: nameTok, Value: nameTok.Literal},
			Value: value,
		}
	}

	left := p.parseEquality()
	if left == nil {
		return nil
	}
	if p.curTokenIs(lexer.ASSIGN) {
		p.addError("PARSE-0005", p.cur(), map[string]any{"Got": left.String()})
		return nil
	}
	return left
}

func (p *Parser) parseEquality() ast.Expression {
	left := p.parsePrimary()
	for left != nil && p.curTokenIs(lexer.EQ) {
		op := p.cur()
		p.nextToken()
		right := p.parsePrimary()
		if right == nil {
			return nil
		}
		left = &ast.BinaryExpression{Token: op, Left: left, Operator: op.Literal, Right: right}
	}
	return left
}

func (p *Parser) parsePrimary() ast.Expression {
	tok := p.cur()

	switch tok.Type {
	case lexer.STRING:
		p.nextToken()
		return p.parseStringLiteral(tok)
	case lexer.NUMBER:
		value, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.addError("PARSE-0002", tok, map[string]any{"Got": tok.Describe()})
			return nil
		}
		p.nextToken()
		return &ast.Literal{Token: tok, Value: value}
	case lexer.TRUE, lexer.FALSE:
		p.nextToken()
		return &ast.Literal{Token: tok, Value: tok.Type == lexer.TRUE}
	case lexer.NULL:
		p.nextToken()
		return &ast.Literal{Token: tok, Value: nil}
	case lexer.IDENT:
		p.nextToken()
		return &ast.Identifier{Token: tok, Value: tok.Literal}
	case lexer.LBRACKET:
		return p.parseArrayLiteral()
	case lexer.LBRACE:
		return p.parseObjectLiteral()
	case lexer.LPAREN:
		p.nextToken()
		expr := p.parseExpression()
		if expr == nil {
			return nil
		}
		if _, ok := p.expect(lexer.RPAREN, "')'"); !ok {
			return nil
		}
		return expr
	case lexer.DOLLAR:
		p.addError("PARSE-0004", tok, map[string]any{"Name": p.peek(1).Literal})
		return nil
	}

	p.addError("PARSE-0001", tok, map[string]any{"Expected": "an expression", "Got": tok.Describe()})
	return nil
}

func (p *Parser) parseArrayLiteral() ast.Expression {
	array := &ast.ArrayLiteral{Token: p.cur(), Elements: []ast.Expression{}}
	p.nextToken()

	for !p.curTokenIs(lexer.RBRACKET) {
		elem := p.parseExpression()
		if elem == nil {
			return nil
		}
		array.Elements = append(array.Elements, elem)
		if !p.curTokenIs(lexer.COMMA) {
			break
		}
		p.nextToken()
	}

	if _, ok := p.expect(lexer.RBRACKET, "',' or ']'"); !ok {
		return nil
	}
	return array
}

func (p *Parser) parseObjectLiteral() ast.Expression {
	object := &ast.ObjectLiteral{Token: p.cur(), Properties: []*ast.ObjectProperty{}}
	p.nextToken()

	for !p.curTokenIs(lexer.RBRACE) {
		keyTok := p.cur()
		if keyTok.Type != lexer.IDENT && keyTok.Type != lexer.STRING {
			p.addError("PARSE-0001", keyTok, map[string]any{"Expected": "an object key", "Got": keyTok.Describe()})
			return nil
		}
		p.nextToken()
		if _, ok := p.expect(lexer.COLON, "':' after object key"); !ok {
			return nil
		}
		value := p.parseExpression()
		if value == nil {
			return nil
		}
		object.Properties = append(object.Properties, &ast.ObjectProperty{KeyToken: keyTok, Key: keyTok.Literal, Value: value})
		if !p.curTokenIs(lexer.COMMA) {
			break
		}
		p.nextToken()
	}

	if _, ok := p.expect(lexer.RBRACE, "',' or '}'"); !ok {
		return nil
	}
	return object
}

// parseStringLiteral splits ${name} markers out of a STRING token. A string
// without markers collapses to a plain *ast.Literal.
func (p *Parser) parseStringLiteral(tok lexer.Token) ast.Expression {
	text := tok.Literal
	matches := interpolationPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return &ast.Literal{Token: tok, Value: text}
	}

	interp := &ast.InterpolatedString{Token: tok}
	last := 0
	for _, m := range matches {
		if m[0] > last {
			interp.Parts = append(interp.Parts, &ast.Literal{Token: tok, Value: text[last:m[0]]})
		}
		name := text[m[2]:m[3]]
		identTok := lexer.Token{Type: lexer.IDENT, Literal: name, Line: tok.Line, Column: tok.Column + 1 + m[2]}
		interp.Parts = append(interp.Parts, &ast.Identifier{Token: identTok, Value: name})
		last = m[1]
	}
	if last < len(text) {
		interp.Parts = append(interp.Parts, &ast.Literal{Token: tok, Value: text[last:]})
	}
	return interp
}
