// Package ast defines the syntax tree produced by the parser.
//
// The node set is closed: the marker methods are unexported, so only types in
// this package can be Statements or Expressions.
package ast

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/sambeau/quill/pkg/quill/lexer"
)

// Location is a 1-based source position.
type Location struct {
	Line   int
	Column int
}

func locationOf(tok lexer.Token) Location {
	return Location{Line: tok.Line, Column: tok.Column}
}

// Node represents any node in the AST
type Node interface {
	TokenLiteral() string
	String() string
	Pos() Location
}

// Statement represents statement nodes
type Statement interface {
	Node
	statementNode()
}

// Expression represents expression nodes
type Expression interface {
	Node
	expressionNode()
}

// Container is a node that owns an ordered statement list the interpreter
// can step through: the Program and every Block.
type Container interface {
	Node
	StatementList() []Statement
}

// Program represents the root node of every AST
type Program struct {
	Statements []Statement
	EOF        lexer.Token // carries comments after the last statement
}

func (p *Program) TokenLiteral() string {
	if len(p.Statements) > 0 {
		return p.Statements[0].TokenLiteral()
	}
	return ""
}

func (p *Program) Pos() Location {
	if len(p.Statements) > 0 {
		return p.Statements[0].Pos()
	}
	return Location{Line: 1, Column: 1}
}

func (p *Program) StatementList() []Statement { return p.Statements }

func (p *Program) String() string {
	lines := make([]string, 0, len(p.Statements))
	for _, s := range p.Statements {
		lines = append(lines, s.String())
	}
	return strings.Join(lines, "\n")
}

// Block is an indented statement list.
type Block struct {
	Token      lexer.Token // the INDENT token
	Statements []Statement
}

func (b *Block) TokenLiteral() string       { return b.Token.Literal }
func (b *Block) Pos() Location              { return locationOf(b.Token) }
func (b *Block) StatementList() []Statement { return b.Statements }
func (b *Block) String() string {
	lines := make([]string, 0, len(b.Statements))
	for _, s := range b.Statements {
		lines = append(lines, indent(s.String()))
	}
	return strings.Join(lines, "\n")
}

// FunctionDeclaration represents `==> name` followed by an indented body.
type FunctionDeclaration struct {
	Token  lexer.Token // the ==> token
	Name   *Identifier
	Params []*ParameterDeclaration
	Body   *Block
}

func (fd *FunctionDeclaration) statementNode()       {}
func (fd *FunctionDeclaration) TokenLiteral() string { return fd.Token.Literal }
func (fd *FunctionDeclaration) Pos() Location        { return locationOf(fd.Token) }

// ParamNames returns the declared parameter names in order.
func (fd *FunctionDeclaration) ParamNames() []string {
	names := make([]string, len(fd.Params))
	for i, p := range fd.Params {
		names[i] = p.Name.Value
	}
	return names
}

func (fd *FunctionDeclaration) String() string {
	var out bytes.Buffer
	out.WriteString("==> ")
	out.WriteString(fd.Name.String())
	for _, p := range fd.Params {
		out.WriteString("\n")
		out.WriteString(indent(p.String()))
	}
	if body := fd.Body.String(); body != "" {
		out.WriteString("\n")
		out.WriteString(body)
	}
	return out.String()
}

// ParameterDeclaration is a bare `$name` line. At the head of a function body
// it declares a parameter; elsewhere it binds name to null.
type ParameterDeclaration struct {
	Token lexer.Token // the $ token
	Name  *Identifier
}

func (pd *ParameterDeclaration) statementNode()       {}
func (pd *ParameterDeclaration) TokenLiteral() string { return pd.Token.Literal }
func (pd *ParameterDeclaration) Pos() Location        { return locationOf(pd.Token) }
func (pd *ParameterDeclaration) String() string       { return "$" + pd.Name.Value }

// DialogueStatement is a line spoken by a character, or by the narrator when
// Speaker is nil. Text is a *Literal or an *InterpolatedString.
type DialogueStatement struct {
	Token    lexer.Token // the speaker identifier or _ token
	Speaker  *Identifier
	Text     Expression
	Preserve bool
	Split    bool // speaker and text were on separate lines
}

func (ds *DialogueStatement) statementNode()       {}
func (ds *DialogueStatement) TokenLiteral() string { return ds.Token.Literal }
func (ds *DialogueStatement) Pos() Location        { return locationOf(ds.Token) }

// SpeakerName returns the speaker's name, or "" for the narrator.
func (ds *DialogueStatement) SpeakerName() string {
	if ds.Speaker == nil {
		return ""
	}
	return ds.Speaker.Value
}

func (ds *DialogueStatement) String() string {
	speaker := "_"
	if ds.Speaker != nil {
		speaker = ds.Speaker.Value
	}
	sep := " "
	if ds.Split {
		sep = "\n"
	}
	if ds.Preserve {
		return speaker + sep + `p"""` + rawText(ds.Text) + `"""`
	}
	return speaker + sep + ds.Text.String()
}

// VariableAssignment binds a value to a name. As a statement (`$x = v`) it
// defines x in the current scope; as an expression (`x = v`) it updates an
// existing binding and yields the value.
type VariableAssignment struct {
	Token       lexer.Token // the $ token, or the identifier for expression form
	Name        *Identifier
	Value       Expression
	Declaration bool
}

func (va *VariableAssignment) statementNode()       {}
func (va *VariableAssignment) expressionNode()      {}
func (va *VariableAssignment) TokenLiteral() string { return va.Token.Literal }
func (va *VariableAssignment) Pos() Location        { return locationOf(va.Token) }
func (va *VariableAssignment) String() string {
	prefix := ""
	if va.Declaration {
		prefix = "$"
	}
	return prefix + va.Name.Value + " = " + va.Value.String()
}

// IfStatement represents `if (cond):` with an optional else block.
type IfStatement struct {
	Token       lexer.Token // the if token
	Condition   Expression
	Consequence *Block
	Alternative *ElseBlock
}

func (is *IfStatement) statementNode()       {}
func (is *IfStatement) TokenLiteral() string { return is.Token.Literal }
func (is *IfStatement) Pos() Location        { return locationOf(is.Token) }
func (is *IfStatement) String() string {
	var out bytes.Buffer
	out.WriteString("if (")
	out.WriteString(is.Condition.String())
	out.WriteString("):\n")
	out.WriteString(is.Consequence.String())
	if is.Alternative != nil {
		out.WriteString("\n")
		out.WriteString(is.Alternative.String())
	}
	return out.String()
}

// ElseBlock is the `else:` branch of an IfStatement.
type ElseBlock struct {
	Token lexer.Token // the else token
	Body  *Block
}

func (eb *ElseBlock) TokenLiteral() string { return eb.Token.Literal }
func (eb *ElseBlock) Pos() Location        { return locationOf(eb.Token) }
func (eb *ElseBlock) String() string       { return "else:\n" + eb.Body.String() }

// FunctionCall invokes a user function or builtin. Arguments holds
// positional expressions and *NamedArgument values in source order.
type FunctionCall struct {
	Token     lexer.Token // the callee identifier
	Callee    *Identifier
	Arguments []Expression
}

func (fc *FunctionCall) statementNode()       {}
func (fc *FunctionCall) TokenLiteral() string { return fc.Token.Literal }
func (fc *FunctionCall) Pos() Location        { return locationOf(fc.Token) }
func (fc *FunctionCall) String() string {
	parts := []string{fc.Callee.Value}
	for _, a := range fc.Arguments {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, " ")
}

// NamedArgument is `--name value` in a call.
type NamedArgument struct {
	Token lexer.Token // the -- token
	Name  *Identifier
	Value Expression
}

func (na *NamedArgument) expressionNode()      {}
func (na *NamedArgument) TokenLiteral() string { return na.Token.Literal }
func (na *NamedArgument) Pos() Location        { return locationOf(na.Token) }
func (na *NamedArgument) String() string       { return "--" + na.Name.Value + " " + na.Value.String() }

// Identifier is a bare name.
type Identifier struct {
	Token lexer.Token
	Value string
}

func (i *Identifier) expressionNode()      {}
func (i *Identifier) TokenLiteral() string { return i.Token.Literal }
func (i *Identifier) Pos() Location        { return locationOf(i.Token) }
func (i *Identifier) String() string       { return i.Value }

// Literal holds a string, float64, bool or nil value.
type Literal struct {
	Token lexer.Token
	Value any
}

func (l *Literal) expressionNode()      {}
func (l *Literal) TokenLiteral() string { return l.Token.Literal }
func (l *Literal) Pos() Location        { return locationOf(l.Token) }
func (l *Literal) String() string {
	switch v := l.Value.(type) {
	case string:
		return strconv.Quote(v)
	case float64:
		if l.Token.Type == lexer.NUMBER {
			return l.Token.Literal
		}
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return "null"
	default:
		return l.Token.Literal
	}
}

// ArrayLiteral is `[a, b, c]`.
type ArrayLiteral struct {
	Token    lexer.Token // the [ token
	Elements []Expression
}

func (al *ArrayLiteral) expressionNode()      {}
func (al *ArrayLiteral) TokenLiteral() string { return al.Token.Literal }
func (al *ArrayLiteral) Pos() Location        { return locationOf(al.Token) }
func (al *ArrayLiteral) String() string {
	elems := make([]string, len(al.Elements))
	for i, e := range al.Elements {
		elems[i] = e.String()
	}
	return "[" + strings.Join(elems, ", ") + "]"
}

// ObjectProperty is one key/value pair of an ObjectLiteral.
type ObjectProperty struct {
	KeyToken lexer.Token
	Key      string
	Value    Expression
}

// ObjectLiteral is `{key: value, ...}` with properties in source order.
type ObjectLiteral struct {
	Token      lexer.Token // the { token
	Properties []*ObjectProperty
}

func (ol *ObjectLiteral) expressionNode()      {}
func (ol *ObjectLiteral) TokenLiteral() string { return ol.Token.Literal }
func (ol *ObjectLiteral) Pos() Location        { return locationOf(ol.Token) }
func (ol *ObjectLiteral) String() string {
	props := make([]string, len(ol.Properties))
	for i, p := range ol.Properties {
		key := p.Key
		if p.KeyToken.Type == lexer.STRING {
			key = strconv.Quote(p.Key)
		}
		props[i] = key + ": " + p.Value.String()
	}
	return "{" + strings.Join(props, ", ") + "}"
}

// InterpolatedString is a string containing ${name} markers. Parts are
// *Literal chunks and *Identifier references in source order.
type InterpolatedString struct {
	Token lexer.Token // the STRING token
	Parts []Expression
}

func (is *InterpolatedString) expressionNode()      {}
func (is *InterpolatedString) TokenLiteral() string { return is.Token.Literal }
func (is *InterpolatedString) Pos() Location        { return locationOf(is.Token) }
func (is *InterpolatedString) String() string       { return strconv.Quote(rawText(is)) }

// BinaryExpression is `left op right`. Only == exists today.
type BinaryExpression struct {
	Token    lexer.Token // the operator token
	Left     Expression
	Operator string
	Right    Expression
}

func (be *BinaryExpression) expressionNode()      {}
func (be *BinaryExpression) TokenLiteral() string { return be.Token.Literal }
func (be *BinaryExpression) Pos() Location        { return locationOf(be.Token) }
func (be *BinaryExpression) String() string {
	right := be.Right.String()
	switch be.Right.(type) {
	case *BinaryExpression, *VariableAssignment:
		right = "(" + right + ")"
	}
	left := be.Left.String()
	if _, ok := be.Left.(*VariableAssignment); ok {
		left = "(" + left + ")"
	}
	return left + " " + be.Operator + " " + right
}

// rawText rebuilds the unquoted source text of a string expression,
// restoring ${name} markers.
func rawText(e Expression) string {
	switch v := e.(type) {
	case *Literal:
		s, _ := v.Value.(string)
		return s
	case *InterpolatedString:
		var out strings.Builder
		for _, part := range v.Parts {
			switch p := part.(type) {
			case *Literal:
				s, _ := p.Value.(string)
				out.WriteString(s)
			case *Identifier:
				out.WriteString("${" + p.Value + "}")
			}
		}
		return out.String()
	}
	return e.String()
}

// RawText returns the unquoted text of a string literal or interpolated
// string, with ${name} markers restored.
func RawText(e Expression) string {
	return rawText(e)
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = "    " + line
		}
	}
	return strings.Join(lines, "\n")
}
