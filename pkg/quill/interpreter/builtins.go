package interpreter

import (
	"github.com/sambeau/quill/pkg/quill/ast"
	qerrors "github.com/sambeau/quill/pkg/quill/errors"
)

// BuiltinFunction runs synchronously and must not pause.
type BuiltinFunction func(in *Interpreter, call *ast.FunctionCall, scope *Scope) error

// Builtin is a native function callable from scripts.
type Builtin struct {
	Name    string
	Execute BuiltinFunction
}

// DefaultBuiltins returns the builtins every interpreter starts with.
func DefaultBuiltins() map[string]*Builtin {
	return map[string]*Builtin{
		"print": {Name: "print", Execute: builtinPrint},
	}
}

// builtinPrint evaluates its arguments and emits them as a print event.
func builtinPrint(in *Interpreter, call *ast.FunctionCall, scope *Scope) error {
	args, err := in.EvaluateArguments(call, scope)
	if err != nil {
		return err
	}
	in.emitter.Emit(PrintEvent{Args: args})
	return nil
}

// EvaluateArguments evaluates the positional arguments of a builtin call.
// Builtins have no declared parameters, so named arguments are an error.
func (in *Interpreter) EvaluateArguments(call *ast.FunctionCall, scope *Scope) ([]Object, error) {
	args := make([]Object, 0, len(call.Arguments))
	for _, arg := range call.Arguments {
		if na, ok := arg.(*ast.NamedArgument); ok {
			return nil, withPosition(qerrors.New("TYPE-0002", map[string]any{"Function": call.Callee.Value}), na)
		}
		val, err := in.Evaluate(arg, scope)
		if err != nil {
			return nil, err
		}
		args = append(args, val)
	}
	return args, nil
}

// Emit queues an event from a builtin. It is delivered with the rest of the
// step's events.
func (in *Interpreter) Emit(ev Event) {
	in.emitter.Emit(ev)
}
