package format

import (
	"testing"

	"github.com/sambeau/quill/pkg/quill/ast"
	"github.com/sambeau/quill/pkg/quill/lexer"
	"github.com/sambeau/quill/pkg/quill/parser"
)

func parse(t *testing.T, src string, opts ...lexer.Option) *ast.Program {
	t.Helper()
	tokens, err := lexer.Tokenize(src, opts...)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	prog, err := parser.Parse(tokens)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return prog
}

func TestFormatProgram(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "dialogue",
			input:    "kacey   \"Hello there.\"\n_ \"The door opens.\"\n",
			expected: "kacey \"Hello there.\"\n_ \"The door opens.\"\n",
		},
		{
			name:     "single quotes and escapes",
			input:    "_ 'it\\'s \"late\"'\n",
			expected: "_ \"it's \\\"late\\\"\"\n",
		},
		{
			name:     "triple string collapses",
			input:    "kacey \"\"\"  lots   of\n      space \"\"\"\n",
			expected: "kacey \"lots of space\"\n",
		},
		{
			name:     "preserved string kept verbatim",
			input:    "_ p\"\"\"Keep\n  this\"\"\"\n",
			expected: "_ p\"\"\"Keep\n  this\"\"\"\n",
		},
		{
			name:     "split dialogue",
			input:    "mr_smith\n\"Line one\"\n",
			expected: "mr_smith\n\"Line one\"\n",
		},
		{
			name:     "interpolation markers",
			input:    "kacey \"Hi ${name}, ${mood}!\"\n",
			expected: "kacey \"Hi ${name}, ${mood}!\"\n",
		},
		{
			name:     "assignments",
			input:    "$n = 2.50\n$same=mood==\"calm\"\n$empty\n",
			expected: "$n = 2.50\n$same = mood == \"calm\"\n$empty\n",
		},
		{
			name:     "call with literals",
			input:    "print \"a\" [1,2]  {name:\"x\", \"two words\": true} --sep null\n",
			expected: "print \"a\" [1, 2] {name: \"x\", \"two words\": true} --sep null\n",
		},
		{
			name:     "blank lines collapse",
			input:    "kacey \"One\"\n\n\n\nkacey \"Two\"\n",
			expected: "kacey \"One\"\n\nkacey \"Two\"\n",
		},
		{
			name: "if else",
			input: "if (mood == \"calm\"):\n" +
				"    kacey \"Good.\"\n" +
				"else:\n" +
				"    kacey \"Oh.\"\n",
			expected: "if (mood == \"calm\"):\n" +
				"    kacey \"Good.\"\n" +
				"else:\n" +
				"    kacey \"Oh.\"\n",
		},
		{
			name: "function with params",
			input: "==> greet\n" +
				"    $name\n" +
				"    $mood\n" +
				"\n" +
				"    kacey \"Hi ${name}\"\n" +
				"greet \"Sam\" --mood \"calm\"\n",
			expected: "==> greet\n" +
				"    $name\n" +
				"    $mood\n" +
				"\n" +
				"    kacey \"Hi ${name}\"\n" +
				"greet \"Sam\" --mood \"calm\"\n",
		},
		{
			name:     "blank line under header dropped",
			input:    "==> f\n\n    print 1\n",
			expected: "==> f\n    print 1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatProgram(parse(t, tt.input))
			if got != tt.expected {
				t.Errorf("FormatProgram() =\n%q\nwant\n%q", got, tt.expected)
			}
		})
	}
}

func TestFormatReindents(t *testing.T) {
	input := "==> greet\n  $name\n  if (name):\n    print name\n"
	expected := "==> greet\n    $name\n    if (name):\n        print name\n"

	got := FormatProgram(parse(t, input, lexer.WithIndentSize(2)))
	if got != expected {
		t.Errorf("FormatProgram() =\n%q\nwant\n%q", got, expected)
	}
}

func TestFormatComments(t *testing.T) {
	input := ";; intro\n" +
		"\n" +
		"kacey \"Hi\" ;; greeting\n" +
		"\n" +
		"\n" +
		"$mood = \"calm\"\n" +
		"if (mood == \"calm\"): ;; check\n" +
		"    ;; inside\n" +
		"    kacey \"Good.\"\n" +
		";; before else\n" +
		"else:\n" +
		"    kacey \"Oh.\"\n" +
		";; the end\n"
	expected := ";; intro\n" +
		"\n" +
		"kacey \"Hi\" ;; greeting\n" +
		"\n" +
		"$mood = \"calm\"\n" +
		"if (mood == \"calm\"): ;; check\n" +
		"    ;; inside\n" +
		"    kacey \"Good.\"\n" +
		";; before else\n" +
		"else:\n" +
		"    kacey \"Oh.\"\n" +
		";; the end\n"

	got := FormatProgram(parse(t, input))
	if got != expected {
		t.Errorf("FormatProgram() =\n%s\nwant\n%s", got, expected)
	}
}

func TestFormatIsIdempotent(t *testing.T) {
	inputs := []string{
		";; only a comment\n",
		"kacey \"Hi\"\n\n;; trailing\n",
		"==> f\n  $a\n  print a\nf 1\n",
		"_ p\"\"\"one\n    two\"\"\" ;; kept\nmr_smith\n;; between\n\"split\"\n",
		"if (a = 3):\n    print a\n\nelse:\n    print \"no\"\n",
		"print (x = 1) == 1 --tag [1, \"two\", {k: null}]\n",
	}

	for _, input := range inputs {
		first := FormatProgram(parse(t, input, lexer.WithIndentSize(2)))
		second := FormatProgram(parse(t, first))
		if first != second {
			t.Errorf("formatting is not stable for %q:\nfirst:\n%s\nsecond:\n%s", input, first, second)
		}
	}
}

func TestFormatEmpty(t *testing.T) {
	if got := FormatProgram(parse(t, "")); got != "" {
		t.Errorf("expected empty output, got %q", got)
	}
	if got := FormatProgram(nil); got != "" {
		t.Errorf("expected empty output for nil, got %q", got)
	}
}

func TestFormatNode(t *testing.T) {
	prog := parse(t, "$x = [1, {a: \"b\"}]\n")
	assign := prog.Statements[0].(*ast.VariableAssignment)

	if got := FormatNode(assign.Value); got != "[1, {a: \"b\"}]" {
		t.Errorf("FormatNode(expr) = %q", got)
	}
	if got := FormatNode(assign); got != "$x = [1, {a: \"b\"}]\n" {
		t.Errorf("FormatNode(stmt) = %q", got)
	}
}
