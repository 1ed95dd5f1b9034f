// Package errors provides structured error types for the Quill language.
//
// QuillError is the single error type returned by the lexer, the parser and
// the interpreter. Messages are rendered from a catalog keyed by error code so
// hosts can match on codes rather than message text.
package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// ErrorClass categorizes errors for filtering and templating.
type ErrorClass string

const (
	ClassLex       ErrorClass = "lex"       // Tokenization errors
	ClassParse     ErrorClass = "parse"     // Syntax errors
	ClassUndefined ErrorClass = "undefined" // Unbound variable or function
	ClassArity     ErrorClass = "arity"     // Parameter binding mismatches
	ClassOperator  ErrorClass = "operator"  // Unknown operator or bad target
	ClassType      ErrorClass = "type"      // Unrecognized node or value
	ClassState     ErrorClass = "state"     // Invalid interpreter lifecycle transition
	ClassIO        ErrorClass = "io"        // Loading scripts and config
)

// QuillError represents any error from lexing, parsing or execution.
type QuillError struct {
	Class   ErrorClass     `json:"class"`
	Code    string         `json:"code"` // e.g. "PARSE-0001"
	Message string         `json:"message"`
	Hints   []string       `json:"hints,omitempty"`
	Line    int            `json:"line"`   // 1-based line (0 if unknown)
	Column  int            `json:"column"` // 1-based column (0 if unknown)
	File    string         `json:"file,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *QuillError) Error() string {
	return e.String()
}

// String returns a single-line representation followed by any hints.
func (e *QuillError) String() string {
	var sb strings.Builder

	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteString(": ")
	}
	if e.Line > 0 {
		sb.WriteString(fmt.Sprintf("line %d, column %d: ", e.Line, e.Column))
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// PrettyString returns a multi-line formatted string for display.
func (e *QuillError) PrettyString() string {
	var sb strings.Builder

	switch e.Class {
	case ClassLex:
		sb.WriteString("Lexer error")
	case ClassParse:
		sb.WriteString("Parser error")
	case ClassIO:
		sb.WriteString("I/O error")
	default:
		sb.WriteString("Runtime error")
	}

	if e.File != "" {
		sb.WriteString(":\n  in: ")
		sb.WriteString(e.File)
		if e.Line > 0 {
			sb.WriteString(fmt.Sprintf("\n  at: line %d, column %d", e.Line, e.Column))
		}
		sb.WriteString("\n  ")
	} else if e.Line > 0 {
		sb.WriteString(fmt.Sprintf(": line %d, column %d\n  ", e.Line, e.Column))
	} else {
		sb.WriteString(":\n  ")
	}

	sb.WriteString(e.Message)

	for _, hint := range e.Hints {
		sb.WriteString("\n  ")
		sb.WriteString(hint)
	}

	return sb.String()
}

// ToJSON returns the error as JSON bytes.
func (e *QuillError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// WithFile returns a copy of the error with the file path set.
func (e *QuillError) WithFile(file string) *QuillError {
	c := *e
	c.File = file
	return &c
}

// WithPosition returns a copy of the error with line and column set.
func (e *QuillError) WithPosition(line, column int) *QuillError {
	c := *e
	c.Line = line
	c.Column = column
	return &c
}

// IsCompileError reports whether the error came from the lexer or parser.
func (e *QuillError) IsCompileError() bool {
	return e.Class == ClassLex || e.Class == ClassParse
}

// IsRuntimeError reports whether the error was raised while executing.
func (e *QuillError) IsRuntimeError() bool {
	return !e.IsCompileError() && e.Class != ClassIO
}

// ErrorDef defines an error in the catalog.
type ErrorDef struct {
	Class    ErrorClass
	Template string   // Message template with {{.placeholders}}
	Hints    []string // Hint templates
}

// ErrorCatalog maps error codes to their definitions.
var ErrorCatalog = map[string]ErrorDef{
	// Lexer
	"LEX-0001": {
		Class:    ClassLex,
		Template: "inconsistent indentation: width {{.Width}} is not {{.Top}} plus a multiple of {{.Size}}",
		Hints:    []string{"indent blocks by {{.Size}} spaces"},
	},
	"LEX-0002": {
		Class:    ClassLex,
		Template: "dedent to width {{.Width}} does not match any enclosing block",
	},
	"LEX-0003": {
		Class:    ClassLex,
		Template: "unterminated string",
	},
	"LEX-0004": {
		Class:    ClassLex,
		Template: "unexpected character '{{.Char}}'",
	},
	"LEX-0005": {
		Class:    ClassLex,
		Template: "invalid number literal: {{.Literal}}",
	},

	// Parser
	"PARSE-0001": {
		Class:    ClassParse,
		Template: "expected {{.Expected}}, got {{.Got}}",
	},
	"PARSE-0002": {
		Class:    ClassParse,
		Template: "unexpected token {{.Got}}",
	},
	"PARSE-0003": {
		Class:    ClassParse,
		Template: "parameter declaration ${{.Name}} must come before other statements in '{{.Function}}'",
		Hints:    []string{"move ${{.Name}} to the top of the function body"},
	},
	"PARSE-0004": {
		Class:    ClassParse,
		Template: "variables are referenced by bare name inside expressions",
		Hints:    []string{"write {{.Name}} instead of ${{.Name}}"},
	},
	"PARSE-0005": {
		Class:    ClassParse,
		Template: "invalid assignment target {{.Got}}",
	},

	// Runtime
	"UNDEF-0001": {
		Class:    ClassUndefined,
		Template: "undefined variable: {{.Name}}",
	},
	"UNDEF-0002": {
		Class:    ClassUndefined,
		Template: "undefined function: {{.Name}}",
	},
	"UNDEF-0003": {
		Class:    ClassUndefined,
		Template: "cannot assign to undeclared variable: {{.Name}}",
		Hints:    []string{"declare it first with ${{.Name}} = ..."},
	},
	"ARITY-0001": {
		Class:    ClassArity,
		Template: "'{{.Function}}' takes {{.Want}} argument(s) but {{.Got}} positional were given",
	},
	"ARITY-0002": {
		Class:    ClassArity,
		Template: "'{{.Function}}' has no parameter named '{{.Name}}'",
	},
	"ARITY-0003": {
		Class:    ClassArity,
		Template: "parameter '{{.Name}}' of '{{.Function}}' is bound more than once",
	},
	"OP-0001": {
		Class:    ClassOperator,
		Template: "unknown operator: {{.Operator}}",
	},
	"OP-0002": {
		Class:    ClassOperator,
		Template: "invalid assignment target",
	},
	"TYPE-0001": {
		Class:    ClassType,
		Template: "unrecognized node type: {{.Node}}",
	},
	"TYPE-0002": {
		Class:    ClassType,
		Template: "'{{.Function}}' is a builtin and cannot be called with named arguments",
	},
	"STATE-0001": {
		Class:    ClassState,
		Template: "cannot resume: interpreter is {{.State}}, not paused",
	},
	"STATE-0002": {
		Class:    ClassState,
		Template: "cannot execute: interpreter is {{.State}}, not idle",
	},

	// Loading
	"IO-0001": {
		Class:    ClassIO,
		Template: "failed to read {{.Path}}: {{.Error}}",
	},
}

// New creates a QuillError from the catalog.
// If the code is not found, creates a generic error with the message.
func New(code string, data map[string]any) *QuillError {
	def, ok := ErrorCatalog[code]
	if !ok {
		msg := code
		if data != nil {
			if m, ok := data["message"].(string); ok {
				msg = m
			}
		}
		return &QuillError{
			Class:   ClassType,
			Code:    code,
			Message: msg,
			Data:    data,
		}
	}

	msg := renderTemplate(def.Template, data)

	var hints []string
	for _, hintTmpl := range def.Hints {
		if rendered := renderTemplate(hintTmpl, data); rendered != "" {
			hints = append(hints, rendered)
		}
	}

	return &QuillError{
		Class:   def.Class,
		Code:    code,
		Message: msg,
		Hints:   hints,
		Data:    data,
	}
}

// NewWithPosition creates a QuillError with position information.
func NewWithPosition(code string, line, column int, data map[string]any) *QuillError {
	err := New(code, data)
	err.Line = line
	err.Column = column
	return err
}

// NewSimple creates an error without using the catalog.
func NewSimple(class ErrorClass, message string) *QuillError {
	return &QuillError{
		Class:   class,
		Message: message,
	}
}

func renderTemplate(tmplStr string, data map[string]any) string {
	if data == nil {
		return tmplStr
	}

	tmpl, err := template.New("").Parse(tmplStr)
	if err != nil {
		return tmplStr
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return tmplStr
	}

	return buf.String()
}

// FindClosestMatch returns the best fuzzy match for input among candidates,
// or "" when nothing is close enough. Exact matches are never suggested.
func FindClosestMatch(input string, candidates []string) string {
	if input == "" || len(candidates) == 0 {
		return ""
	}

	threshold := 1
	if len(input) >= 4 && len(input) <= 6 {
		threshold = 2
	} else if len(input) >= 7 {
		threshold = 3
	}

	best := ""
	bestDistance := -1
	for _, candidate := range candidates {
		if strings.EqualFold(candidate, input) {
			continue
		}
		d := fuzzy.LevenshteinDistance(strings.ToLower(input), strings.ToLower(candidate))
		if d > threshold {
			// Still accept abbreviations: "narr" for "narrator".
			if !fuzzy.MatchFold(input, candidate) {
				continue
			}
			d = threshold
		}
		if bestDistance == -1 || d < bestDistance {
			best = candidate
			bestDistance = d
		}
	}
	return best
}

// NewUndefinedIdentifier creates an undefined variable error with a
// "Did you mean" hint when a close candidate exists.
func NewUndefinedIdentifier(name string, available []string) *QuillError {
	err := New("UNDEF-0001", map[string]any{"Name": name})
	if suggestion := FindClosestMatch(name, available); suggestion != "" {
		err.Hints = append(err.Hints, "Did you mean `"+suggestion+"`?")
	}
	return err
}

// NewUndefinedFunction creates an undefined function error with a
// "Did you mean" hint when a close candidate exists.
func NewUndefinedFunction(name string, available []string) *QuillError {
	err := New("UNDEF-0002", map[string]any{"Name": name})
	if suggestion := FindClosestMatch(name, available); suggestion != "" {
		err.Hints = append(err.Hints, "Did you mean `"+suggestion+"`?")
	}
	return err
}
