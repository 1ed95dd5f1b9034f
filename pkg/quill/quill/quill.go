// Package quill provides the public API for embedding the Quill dialogue
// scripting language: compile a script, load it from a filesystem, and run
// it with an interpreter that pauses at every dialogue line.
package quill

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sambeau/quill/pkg/quill/ast"
	qerrors "github.com/sambeau/quill/pkg/quill/errors"
	"github.com/sambeau/quill/pkg/quill/format"
	"github.com/sambeau/quill/pkg/quill/interpreter"
	"github.com/sambeau/quill/pkg/quill/lexer"
	"github.com/sambeau/quill/pkg/quill/parser"
)

// Extension is the conventional file extension for scripts.
const Extension = ".quill"

type compileConfig struct {
	indentSize int
	filename   string
	callables  []string
}

// CompileOption configures Compile.
type CompileOption func(*compileConfig)

// WithIndentSize sets the number of columns one block level occupies.
func WithIndentSize(n int) CompileOption {
	return func(c *compileConfig) {
		if n > 0 {
			c.indentSize = n
		}
	}
}

// WithFilename records name on compile errors.
func WithFilename(name string) CompileOption {
	return func(c *compileConfig) {
		c.filename = name
	}
}

// WithCallables adds host builtin names that the parser should treat as
// calls in the direct `name "text"` form.
func WithCallables(names ...string) CompileOption {
	return func(c *compileConfig) {
		c.callables = append(c.callables, names...)
	}
}

// Compile lexes and parses src. The error, if any, is a *errors.QuillError.
func Compile(src string, opts ...CompileOption) (*ast.Program, error) {
	cfg := compileConfig{indentSize: lexer.DefaultIndentSize}
	for _, opt := range opts {
		opt(&cfg)
	}

	tokens, err := lexer.Tokenize(src,
		lexer.WithIndentSize(cfg.indentSize),
		lexer.WithFilename(cfg.filename),
	)
	if err != nil {
		return nil, err
	}
	return parser.Parse(tokens,
		parser.WithCallables(cfg.callables...),
		parser.WithFilename(cfg.filename),
	)
}

// Format compiles src and returns it pretty-printed with four-space
// indentation. Comments and single blank lines are kept.
func Format(src string, opts ...CompileOption) (string, error) {
	program, err := Compile(src, opts...)
	if err != nil {
		return "", err
	}
	return format.FormatProgram(program), nil
}

// Script is a compiled source file.
type Script struct {
	Path    string
	Source  string
	Program *ast.Program
}

// Loader reads and compiles scripts from a filesystem.
type Loader struct {
	Fs      afero.Fs
	Options []CompileOption
}

// NewLoader returns a Loader over the operating system filesystem.
func NewLoader(opts ...CompileOption) *Loader {
	return &Loader{Fs: afero.NewOsFs(), Options: opts}
}

// Load reads path and compiles it. Read failures are reported as IO-0001.
func (l *Loader) Load(path string) (*Script, error) {
	data, err := afero.ReadFile(l.Fs, path)
	if err != nil {
		return nil, qerrors.New("IO-0001", map[string]any{"Path": path, "Error": err.Error()}).WithFile(path)
	}

	opts := append([]CompileOption{WithFilename(path)}, l.Options...)
	program, err := Compile(string(data), opts...)
	if err != nil {
		return nil, err
	}
	return &Script{Path: path, Source: string(data), Program: program}, nil
}

// CheckFiles compiles every path concurrently and returns the failures in
// the order the paths were given. The error is non-nil only when ctx was
// cancelled before every file was checked.
func CheckFiles(ctx context.Context, fs afero.Fs, paths []string, opts ...CompileOption) ([]*qerrors.QuillError, error) {
	loader := &Loader{Fs: fs, Options: opts}
	results := make([]*qerrors.QuillError, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := loader.Load(path); err != nil {
				results[i] = asQuillError(err).WithFile(path)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var failures []*qerrors.QuillError
	for _, r := range results {
		if r != nil {
			failures = append(failures, r)
		}
	}
	return failures, nil
}

// FindScripts returns every script under root, sorted.
func FindScripts(fs afero.Fs, root string) ([]string, error) {
	var paths []string
	err := afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == Extension {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// NewInterpreter creates an interpreter for program that logs to logger.
// A nil logger discards diagnostics.
func NewInterpreter(program *ast.Program, logger *zap.Logger, opts ...interpreter.Option) *interpreter.Interpreter {
	if logger != nil {
		opts = append([]interpreter.Option{interpreter.WithLogger(logger)}, opts...)
	}
	return interpreter.New(program, opts...)
}

func asQuillError(err error) *qerrors.QuillError {
	var qerr *qerrors.QuillError
	if stderrors.As(err, &qerr) {
		return qerr
	}
	return qerrors.NewSimple(qerrors.ClassIO, err.Error())
}
