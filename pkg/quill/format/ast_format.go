package format

import (
	"strconv"
	"strings"

	"github.com/sambeau/quill/pkg/quill/ast"
	"github.com/sambeau/quill/pkg/quill/lexer"
)

// stringEscaper undoes the lexer's escape processing for a double-quoted string.
var stringEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\t", `\t`,
)

// FormatProgram formats an entire Quill program. Comments and single blank
// lines from the source are kept. Formatting the output again is a no-op.
func FormatProgram(prog *ast.Program) string {
	if prog == nil {
		return ""
	}
	if len(prog.Statements) == 0 && len(prog.EOF.LeadingComments) == 0 {
		return ""
	}
	p := NewPrinter()
	p.formatProgram(prog)
	return p.String()
}

// FormatNode formats a single statement or expression without trivia.
func FormatNode(node ast.Node) string {
	if node == nil {
		return ""
	}
	p := NewPrinter()
	switch n := node.(type) {
	case *ast.Program:
		p.formatProgram(n)
	case ast.Statement:
		p.formatStatement(n)
	case ast.Expression:
		p.write(p.formatExpression(n))
	}
	return p.String()
}

func (p *Printer) formatProgram(prog *ast.Program) {
	for i, stmt := range prog.Statements {
		tok := getStatementToken(stmt)

		// The lexer only counts a blank line at the top of the file once a
		// comment has been seen, so it goes after the comments.
		if i == 0 {
			p.writeComments(tok)
			if tok.BlankLinesBefore > 0 && len(tok.LeadingComments) > 0 {
				p.newline()
			}
		} else {
			p.writeBlankLineIfNeeded(tok)
			p.writeComments(tok)
		}

		p.formatStatement(stmt)
	}

	if len(prog.EOF.LeadingComments) > 0 {
		if len(prog.Statements) > 0 {
			p.writeBlankLineIfNeeded(&prog.EOF)
		}
		p.indent = 0
		p.writeComments(&prog.EOF)
	}
}

// formatBlock writes statements one level deeper than the current line.
// Blank lines directly under a block header are dropped.
func (p *Printer) formatBlock(stmts []ast.Statement) {
	p.indentInc()
	for i, stmt := range stmts {
		tok := getStatementToken(stmt)
		if i > 0 {
			p.writeBlankLineIfNeeded(tok)
		}
		p.writeComments(tok)
		p.formatStatement(stmt)
	}
	p.indentDec()
}

func (p *Printer) formatStatement(stmt ast.Statement) {
	switch s := stmt.(type) {
	case *ast.FunctionDeclaration:
		p.line(&s.Token, "==> "+s.Name.Value)
		body := make([]ast.Statement, 0, len(s.Params)+len(s.Body.Statements))
		for _, param := range s.Params {
			body = append(body, param)
		}
		body = append(body, s.Body.Statements...)
		p.formatBlock(body)

	case *ast.ParameterDeclaration:
		p.line(&s.Token, "$"+s.Name.Value)

	case *ast.VariableAssignment:
		text := s.Name.Value + " = " + p.formatExpression(s.Value)
		if s.Declaration {
			text = "$" + text
		}
		p.line(&s.Token, text)

	case *ast.DialogueStatement:
		p.formatDialogue(s)

	case *ast.IfStatement:
		p.line(&s.Token, "if ("+p.formatExpression(s.Condition)+"):")
		p.formatBlock(s.Consequence.Statements)
		if s.Alternative != nil {
			p.writeBlankLineIfNeeded(&s.Alternative.Token)
			p.writeComments(&s.Alternative.Token)
			p.line(&s.Alternative.Token, "else:")
			p.formatBlock(s.Alternative.Body.Statements)
		}

	case *ast.FunctionCall:
		var out strings.Builder
		out.WriteString(s.Callee.Value)
		for _, arg := range s.Arguments {
			out.WriteString(" ")
			out.WriteString(p.formatExpression(arg))
		}
		p.line(&s.Token, out.String())
	}
}

func (p *Printer) formatDialogue(s *ast.DialogueStatement) {
	speaker := "_"
	if s.Speaker != nil {
		speaker = s.Speaker.Value
	}
	text := p.formatExpression(s.Text)

	if !s.Split {
		p.line(&s.Token, speaker+" "+text)
		return
	}

	// The text line sits at the speaker's indentation; a deeper line would
	// open a block.
	p.line(&s.Token, speaker)
	textTok := stringToken(s.Text)
	p.writeComments(textTok)
	p.line(textTok, text)
}

// line writes one indented source line with the token's trailing comment.
func (p *Printer) line(tok *lexer.Token, text string) {
	p.writeIndent()
	p.write(text)
	p.writeTrailingComment(tok)
	p.newline()
}

func (p *Printer) formatExpression(expr ast.Expression) string {
	switch e := expr.(type) {
	case *ast.Literal:
		switch v := e.Value.(type) {
		case string:
			return quote(v, e.Token.Preserved)
		case float64:
			if e.Token.Type == lexer.NUMBER {
				return e.Token.Literal
			}
			return strconv.FormatFloat(v, 'g', -1, 64)
		case bool:
			return strconv.FormatBool(v)
		case nil:
			return "null"
		}
		return e.Token.Literal

	case *ast.InterpolatedString:
		return quote(ast.RawText(e), e.Token.Preserved)

	case *ast.Identifier:
		return e.Value

	case *ast.ArrayLiteral:
		elems := make([]string, len(e.Elements))
		for i, el := range e.Elements {
			elems[i] = p.formatExpression(el)
		}
		return "[" + strings.Join(elems, ", ") + "]"

	case *ast.ObjectLiteral:
		props := make([]string, len(e.Properties))
		for i, prop := range e.Properties {
			key := prop.Key
			if prop.KeyToken.Type == lexer.STRING {
				key = quote(prop.Key, false)
			}
			props[i] = key + ": " + p.formatExpression(prop.Value)
		}
		return "{" + strings.Join(props, ", ") + "}"

	case *ast.BinaryExpression:
		left := p.formatExpression(e.Left)
		if _, ok := e.Left.(*ast.VariableAssignment); ok {
			left = "(" + left + ")"
		}
		right := p.formatExpression(e.Right)
		switch e.Right.(type) {
		case *ast.BinaryExpression, *ast.VariableAssignment:
			right = "(" + right + ")"
		}
		return left + " " + e.Operator + " " + right

	case *ast.VariableAssignment:
		return e.Name.Value + " = " + p.formatExpression(e.Value)

	case *ast.NamedArgument:
		return "--" + e.Name.Value + " " + p.formatExpression(e.Value)
	}
	return expr.String()
}

// quote renders string text as source. Preserved text keeps its line breaks
// inside p"""...""".
func quote(s string, preserved bool) string {
	if preserved {
		return `p"""` + s + `"""`
	}
	return `"` + stringEscaper.Replace(s) + `"`
}

// stringToken returns the STRING token behind a dialogue's text.
func stringToken(expr ast.Expression) *lexer.Token {
	switch e := expr.(type) {
	case *ast.Literal:
		return &e.Token
	case *ast.InterpolatedString:
		return &e.Token
	}
	return &lexer.Token{}
}

// getStatementToken returns the token that carries a statement's trivia:
// the first token on its line.
func getStatementToken(stmt ast.Statement) *lexer.Token {
	switch s := stmt.(type) {
	case *ast.FunctionDeclaration:
		return &s.Token
	case *ast.ParameterDeclaration:
		return &s.Token
	case *ast.VariableAssignment:
		return &s.Token
	case *ast.DialogueStatement:
		return &s.Token
	case *ast.IfStatement:
		return &s.Token
	case *ast.FunctionCall:
		return &s.Token
	}
	return &lexer.Token{}
}

// writeComments outputs a token's leading comments, one per line
func (p *Printer) writeComments(tok *lexer.Token) {
	if tok == nil {
		return
	}
	for _, comment := range tok.LeadingComments {
		p.writeIndent()
		p.write(comment)
		p.newline()
	}
}

// writeTrailingComment outputs a same-line comment after the statement text
func (p *Printer) writeTrailingComment(tok *lexer.Token) {
	if tok == nil || tok.TrailingComment == "" {
		return
	}
	p.write(" ")
	p.write(tok.TrailingComment)
}

// writeBlankLineIfNeeded outputs a blank line if the token had one before it
func (p *Printer) writeBlankLineIfNeeded(tok *lexer.Token) {
	if tok != nil && tok.BlankLinesBefore > 0 {
		for i := 0; i < min(tok.BlankLinesBefore, MaxBlankLines); i++ {
			p.newline()
		}
	}
}
