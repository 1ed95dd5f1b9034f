package parser

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/sambeau/quill/pkg/quill/ast"
	qerrors "github.com/sambeau/quill/pkg/quill/errors"
	"github.com/sambeau/quill/pkg/quill/lexer"
)

func parse(t *testing.T, input string, opts ...Option) *ast.Program {
	t.Helper()
	tokens, err := lexer.Tokenize(input)
	if err != nil {
		t.Fatalf("lexer error: %v", err)
	}
	p := New(tokens, opts...)
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) > 0 {
		t.Fatalf("parser errors for %q: %v", input, errs)
	}
	return program
}

func parseError(t *testing.T, input string) *qerrors.QuillError {
	t.Helper()
	tokens, err := lexer.Tokenize(input)
	if err != nil {
		t.Fatalf("lexer error: %v", err)
	}
	_, err = Parse(tokens)
	if err == nil {
		t.Fatalf("expected parse error for %q", input)
	}
	return err.(*qerrors.QuillError)
}

func TestFunctionDeclaration(t *testing.T) {
	program := parse(t, "==> greet\n    $msg\n    $mood\n    print msg\ngreet \"hello\"")

	if len(program.Statements) != 2 {
		t.Fatalf("got %d statements, want 2", len(program.Statements))
	}

	fn, ok := program.Statements[0].(*ast.FunctionDeclaration)
	if !ok {
		t.Fatalf("statement 0 is %T", program.Statements[0])
	}
	if fn.Name.Value != "greet" {
		t.Errorf("name = %q", fn.Name.Value)
	}
	if diff := cmp.Diff([]string{"msg", "mood"}, fn.ParamNames()); diff != "" {
		t.Errorf("params (-want +got):\n%s", diff)
	}
	if len(fn.Body.Statements) != 1 {
		t.Fatalf("body has %d statements", len(fn.Body.Statements))
	}
	call, ok := fn.Body.Statements[0].(*ast.FunctionCall)
	if !ok || call.Callee.Value != "print" {
		t.Fatalf("body statement is %s", fn.Body.Statements[0])
	}
	if ident, ok := call.Arguments[0].(*ast.Identifier); !ok || ident.Value != "msg" {
		t.Errorf("print argument = %s", call.Arguments[0])
	}

	greet, ok := program.Statements[1].(*ast.FunctionCall)
	if !ok {
		t.Fatalf("statement 1 is %T, want call", program.Statements[1])
	}
	if lit, ok := greet.Arguments[0].(*ast.Literal); !ok || lit.Value != "hello" {
		t.Errorf("greet argument = %s", greet.Arguments[0])
	}
}

func TestDialogueForms(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		speaker  string
		text     string
		preserve bool
		split    bool
	}{
		{"direct", `kacey "Hi"`, "kacey", "Hi", false, false},
		{"narrator", `_ "The door creaks."`, "", "The door creaks.", false, false},
		{"split", "kacey\n\"Hi\"", "kacey", "Hi", false, true},
		{"split narrator", "_\n'Silence.'", "", "Silence.", false, true},
		{"preserved", "kacey p\"\"\"one\ntwo\"\"\"", "kacey", "one\ntwo", true, false},
		{"builtin name on split form", "print\n\"yes\"", "print", "yes", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			program := parse(t, tt.input)
			if len(program.Statements) != 1 {
				t.Fatalf("got %d statements", len(program.Statements))
			}
			stmt, ok := program.Statements[0].(*ast.DialogueStatement)
			if !ok {
				t.Fatalf("statement is %T, want dialogue", program.Statements[0])
			}
			if stmt.SpeakerName() != tt.speaker {
				t.Errorf("speaker = %q, want %q", stmt.SpeakerName(), tt.speaker)
			}
			if tt.speaker == "" && stmt.Speaker != nil {
				t.Errorf("narrator should have nil speaker")
			}
			if got := ast.RawText(stmt.Text); got != tt.text {
				t.Errorf("text = %q, want %q", got, tt.text)
			}
			if stmt.Preserve != tt.preserve {
				t.Errorf("preserve = %v", stmt.Preserve)
			}
			if stmt.Split != tt.split {
				t.Errorf("split = %v", stmt.Split)
			}
		})
	}
}

func TestCallOrDialogue(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		isCall bool
	}{
		{"builtin direct", `print "yes"`, true},
		{"declared function direct", "==> greet\n    print \"x\"\ngreet \"hello\"", true},
		{"declared later", "shout \"hey\"\n==> shout\n    print \"!\"", true},
		{"unknown speaker", `kacey "hello"`, false},
		{"two strings", `kacey "a" "b"`, true},
		{"no arguments", `wave`, true},
		{"number argument", `kacey 3`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			program := parse(t, tt.input)
			var first ast.Statement
			for _, s := range program.Statements {
				if _, ok := s.(*ast.FunctionDeclaration); !ok {
					first = s
					break
				}
			}
			_, isCall := first.(*ast.FunctionCall)
			if isCall != tt.isCall {
				t.Errorf("got %T, want call=%v", first, tt.isCall)
			}
		})
	}
}

func TestWithCallables(t *testing.T) {
	program := parse(t, `shout "hey"`)
	if _, ok := program.Statements[0].(*ast.DialogueStatement); !ok {
		t.Fatalf("without option got %T", program.Statements[0])
	}

	program = parse(t, `shout "hey"`, WithCallables("shout"))
	if _, ok := program.Statements[0].(*ast.FunctionCall); !ok {
		t.Fatalf("with option got %T", program.Statements[0])
	}
}

func TestNamedArguments(t *testing.T) {
	program := parse(t, "greet \"hi\" --mood \"happy\" --times 2")
	call := program.Statements[0].(*ast.FunctionCall)
	if len(call.Arguments) != 3 {
		t.Fatalf("got %d arguments", len(call.Arguments))
	}
	named, ok := call.Arguments[1].(*ast.NamedArgument)
	if !ok || named.Name.Value != "mood" {
		t.Fatalf("argument 1 = %s", call.Arguments[1])
	}
	if named.Value.String() != `"happy"` {
		t.Errorf("named value = %s", named.Value)
	}
	if call.String() != `greet "hi" --mood "happy" --times 2` {
		t.Errorf("String() = %s", call.String())
	}
}

func TestIfElse(t *testing.T) {
	input := "$x = 1\nif (x == 1):\n    print \"yes\"\nelse:\n    print \"no\""
	program := parse(t, input)

	if len(program.Statements) != 2 {
		t.Fatalf("got %d statements", len(program.Statements))
	}
	assign := program.Statements[0].(*ast.VariableAssignment)
	if !assign.Declaration || assign.Name.Value != "x" {
		t.Errorf("assignment = %s", assign)
	}

	ifStmt, ok := program.Statements[1].(*ast.IfStatement)
	if !ok {
		t.Fatalf("statement 1 is %T", program.Statements[1])
	}
	cond, ok := ifStmt.Condition.(*ast.BinaryExpression)
	if !ok || cond.Operator != "==" {
		t.Fatalf("condition = %s", ifStmt.Condition)
	}
	if len(ifStmt.Consequence.Statements) != 1 {
		t.Errorf("consequence has %d statements", len(ifStmt.Consequence.Statements))
	}
	if ifStmt.Alternative == nil || len(ifStmt.Alternative.Body.Statements) != 1 {
		t.Fatalf("missing else block")
	}
	if program.String() != input {
		t.Errorf("String() =\n%s\nwant\n%s", program.String(), input)
	}
}

func TestIfWithoutElseFollowedByStatement(t *testing.T) {
	program := parse(t, "if (true):\n    print \"a\"\n\nprint \"b\"")
	if len(program.Statements) != 2 {
		t.Fatalf("got %d statements", len(program.Statements))
	}
	if program.Statements[0].(*ast.IfStatement).Alternative != nil {
		t.Errorf("unexpected else")
	}
}

func TestNestedBlocks(t *testing.T) {
	input := `==> outer
    $a
    ==> inner
        if (a):
            _ "deep"
    inner
outer --a true`
	program := parse(t, input)
	outer := program.Statements[0].(*ast.FunctionDeclaration)
	if len(outer.Body.Statements) != 2 {
		t.Fatalf("outer body has %d statements", len(outer.Body.Statements))
	}
	inner := outer.Body.Statements[0].(*ast.FunctionDeclaration)
	ifStmt := inner.Body.Statements[0].(*ast.IfStatement)
	if _, ok := ifStmt.Consequence.Statements[0].(*ast.DialogueStatement); !ok {
		t.Errorf("innermost statement is %T", ifStmt.Consequence.Statements[0])
	}
}

func TestAssignmentExpression(t *testing.T) {
	program := parse(t, "$x = 1\nif (x = 2):\n    print x")
	cond, ok := program.Statements[1].(*ast.IfStatement).Condition.(*ast.VariableAssignment)
	if !ok {
		t.Fatalf("condition is %T", program.Statements[1].(*ast.IfStatement).Condition)
	}
	if cond.Declaration {
		t.Error("expression assignment must not be a declaration")
	}
	if cond.Name.Value != "x" {
		t.Errorf("target = %q", cond.Name.Value)
	}
}

func TestTopLevelBareVariable(t *testing.T) {
	program := parse(t, "$mood")
	decl, ok := program.Statements[0].(*ast.ParameterDeclaration)
	if !ok || decl.Name.Value != "mood" {
		t.Fatalf("got %s (%T)", program.Statements[0], program.Statements[0])
	}
}

func TestLiterals(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`$x = [1, 2, {a: 3, "b c": true}]`, `$x = [1, 2, {a: 3, "b c": true}]`},
		{`$x = [1, 2,]`, `$x = [1, 2]`},
		{`$x = {a: null, b: -1.5,}`, `$x = {a: null, b: -1.5}`},
		{`$x = []`, `$x = []`},
		{`$x = {}`, `$x = {}`},
		{`$x = (y == [1])`, `$x = y == [1]`},
		{`$x = a == (b == c)`, `$x = a == (b == c)`},
		{`$x = 'single'`, `$x = "single"`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			program := parse(t, tt.input)
			if got := program.String(); got != tt.want {
				t.Errorf("String() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestInterpolation(t *testing.T) {
	program := parse(t, `kacey "Hello ${name}, you are ${mood}!"`)
	stmt := program.Statements[0].(*ast.DialogueStatement)
	interp, ok := stmt.Text.(*ast.InterpolatedString)
	if !ok {
		t.Fatalf("text is %T", stmt.Text)
	}

	var kinds []string
	for _, part := range interp.Parts {
		switch p := part.(type) {
		case *ast.Literal:
			kinds = append(kinds, "lit:"+p.Value.(string))
		case *ast.Identifier:
			kinds = append(kinds, "var:"+p.Value)
		}
	}
	want := []string{"lit:Hello ", "var:name", "lit:, you are ", "var:mood", "lit:!"}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Errorf("parts (-want +got):\n%s", diff)
	}

	plain := parse(t, `kacey "costs $5 {not} ${ spaced }"`)
	if _, ok := plain.Statements[0].(*ast.DialogueStatement).Text.(*ast.Literal); !ok {
		t.Errorf("string without valid markers should stay a literal")
	}
}

func TestParseTwiceIsIdentical(t *testing.T) {
	input := `;; intro
==> meet
    $who
    $mood
    if (mood == "happy"):
        kacey "Hi ${who}!"
    else:
        kacey
        "Oh. It's you."
$people = ["ana", {name: "bo", tags: [1, 2]}]
meet "ana" --mood "happy"`

	tokens, err := lexer.Tokenize(input)
	if err != nil {
		t.Fatal(err)
	}
	first, err := Parse(tokens)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Parse(tokens)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("ASTs differ (-first +second):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  string
		line  int
	}{
		{"parameter after statement", "==> f\n    print \"x\"\n    $late", "PARSE-0003", 3},
		{"dollar in expression", "$x = $y", "PARSE-0004", 1},
		{"invalid assignment target", "print 1 = 2", "PARSE-0005", 1},
		{"stray token", ")", "PARSE-0002", 1},
		{"if without paren", "if x:\n    print x", "PARSE-0001", 1},
		{"if without colon", "if (x)\n    print x", "PARSE-0001", 1},
		{"function without body", "==> f\nprint \"x\"", "PARSE-0001", 2},
		{"function without name", "==> \"f\"", "PARSE-0001", 1},
		{"dangling else", "else:\n    print x", "PARSE-0002", 1},
		{"unclosed array", "$x = [1, 2", "PARSE-0001", 1},
		{"bad object key", "$x = {1: 2}", "PARSE-0001", 1},
		{"narrator without text", "_ 5", "PARSE-0001", 1},
		{"variable without name", "$ = 1", "PARSE-0001", 1},
		{"unexpected indent", "print 1\n    print 2", "PARSE-0002", 2},
		{"missing expression", "$x =", "PARSE-0001", 1},
		{"dialogue then colon", "kacey \"Hi\":", "PARSE-0001", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := parseError(t, tt.input)
			if err.Code != tt.code {
				t.Errorf("code = %s, want %s (%s)", err.Code, tt.code, err.Message)
			}
			if err.Class != qerrors.ClassParse {
				t.Errorf("class = %s", err.Class)
			}
			if err.Line != tt.line {
				t.Errorf("line = %d, want %d (%s)", err.Line, tt.line, err.Message)
			}
			if _, ok := err.Data["TokenType"]; !ok {
				t.Errorf("error data missing token type")
			}
		})
	}
}

func TestOnlyFirstErrorKept(t *testing.T) {
	tokens, _ := lexer.Tokenize(")\n)\n)")
	p := New(tokens)
	p.ParseProgram()
	if len(p.Errors()) != 1 {
		t.Errorf("got %d errors, want 1", len(p.Errors()))
	}
}

func TestFilenameOnError(t *testing.T) {
	tokens, _ := lexer.Tokenize(")")
	_, err := Parse(tokens, WithFilename("scene.quill"))
	if err.(*qerrors.QuillError).File != "scene.quill" {
		t.Errorf("file not recorded: %v", err)
	}
}
