// Package interpreter executes a Quill program.
//
// Execution never recurses through the Go call stack for statements.
// Entering an if branch or a function body pushes a Frame recording where to
// continue afterwards, so the interpreter can stop at any dialogue line,
// return to the host, and carry on from the same place when Resume is
// called.
package interpreter

import (
	stderrors "errors"

	"github.com/qmuntal/stateless"
	"go.uber.org/zap"

	"github.com/sambeau/quill/pkg/quill/ast"
	qerrors "github.com/sambeau/quill/pkg/quill/errors"
)

// PauseReasonDialogue is the reason carried by pauses at dialogue lines.
const PauseReasonDialogue = "dialogue"

// Frame is a saved continuation: the block and index to return to, and the
// scope stack depth to restore.
type Frame struct {
	ReturnBlock      ast.Container
	ReturnIndex      int
	ScopeDepth       int
	IsFunctionReturn bool
	FunctionName     string
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithLogger sets the diagnostic logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(in *Interpreter) {
		if logger != nil {
			in.logger = logger
		}
	}
}

// WithoutDefaultBuiltins skips registering print.
func WithoutDefaultBuiltins() Option {
	return func(in *Interpreter) {
		in.noDefaults = true
	}
}

type Interpreter struct {
	program    *ast.Program
	logger     *zap.Logger
	emitter    *Emitter
	lifecycle  *stateless.StateMachine
	state      State
	noDefaults bool
	err        *qerrors.QuillError

	globalScope           *Scope
	scopeStack            []*Scope
	executionStack        []Frame
	currentBlock          ast.Container
	currentStatementIndex int
	isRunning             bool
	isPaused              bool

	// set by executeStatement when it switched currentBlock
	enteredBlock bool
}

// New creates an interpreter for program with a fresh global scope.
func New(program *ast.Program, opts ...Option) *Interpreter {
	in := &Interpreter{
		program: program,
		logger:  zap.NewNop(),
		emitter: NewEmitter(),
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(in)
	}

	in.globalScope = NewScope(nil)
	in.scopeStack = []*Scope{in.globalScope}
	in.lifecycle = newLifecycle(&in.state, in.logger)

	if !in.noDefaults {
		for name, b := range DefaultBuiltins() {
			in.AddBuiltin(name, b)
		}
	}
	return in
}

// On registers a listener for one event kind.
func (in *Interpreter) On(kind EventKind, fn Listener) {
	in.emitter.On(kind, fn)
}

// OnAny registers a listener for every event.
func (in *Interpreter) OnAny(fn Listener) {
	in.emitter.OnAny(fn)
}

// OnDialogue registers a typed dialogue listener.
func (in *Interpreter) OnDialogue(fn func(DialogueEvent)) {
	in.emitter.On(EventDialogue, func(ev Event) { fn(ev.(DialogueEvent)) })
}

// OnPrint registers a typed print listener.
func (in *Interpreter) OnPrint(fn func(PrintEvent)) {
	in.emitter.On(EventPrint, func(ev Event) { fn(ev.(PrintEvent)) })
}

// OnError registers a typed error listener.
func (in *Interpreter) OnError(fn func(*qerrors.QuillError)) {
	in.emitter.On(EventError, func(ev Event) { fn(ev.(ErrorEvent).Err) })
}

// AddBuiltin registers a native function in the global scope.
func (in *Interpreter) AddBuiltin(name string, b *Builtin) {
	if b.Name == "" {
		b.Name = name
	}
	in.globalScope.DefineBuiltin(name, b)
}

// BuiltinNames lists the registered builtins.
func (in *Interpreter) BuiltinNames() []string {
	var names []string
	for _, name := range in.globalScope.AllFunctionNames() {
		if fn := in.globalScope.GetFunction(name); fn.IsBuiltin() {
			names = append(names, name)
		}
	}
	return names
}

// State returns the lifecycle state.
func (in *Interpreter) State() State { return in.state }

func (in *Interpreter) IsPaused() bool  { return in.isPaused }
func (in *Interpreter) IsRunning() bool { return in.isRunning }

// Scope returns the global scope.
func (in *Interpreter) Scope() *Scope { return in.globalScope }

// CurrentScope returns the innermost active scope.
func (in *Interpreter) CurrentScope() *Scope {
	return in.scopeStack[len(in.scopeStack)-1]
}

// Depth returns the number of saved continuation frames.
func (in *Interpreter) Depth() int { return len(in.executionStack) }

// Err returns the error that halted the run, if any.
func (in *Interpreter) Err() error {
	if in.err == nil {
		return nil
	}
	return in.err
}

// Execute starts the program and runs until the first pause, the end, or
// an error. Events are delivered before Execute returns. A runtime error is
// both emitted as an error event and returned.
func (in *Interpreter) Execute() error {
	if in.state != StateIdle {
		return qerrors.New("STATE-0002", map[string]any{"State": string(in.state)})
	}
	if err := in.lifecycle.Fire(triggerExecute); err != nil {
		return err
	}

	in.currentBlock = in.program
	in.currentStatementIndex = 0
	in.isRunning = true

	in.run()
	in.emitter.Flush()
	return in.Err()
}

// Resume continues a paused run from the statement after the pause.
func (in *Interpreter) Resume() error {
	if in.state != StatePaused {
		err := qerrors.New("STATE-0001", map[string]any{"State": string(in.state)})
		in.logger.Warn("resume called while not paused", zap.String("state", string(in.state)))
		return err
	}
	if err := in.lifecycle.Fire(triggerResume); err != nil {
		return err
	}

	in.isPaused = false
	in.emitter.Emit(ResumeEvent{})

	in.run()
	in.emitter.Flush()
	return in.Err()
}

// run is the step loop. It returns when the run pauses, ends or fails.
func (in *Interpreter) run() {
	for in.currentBlock != nil && in.isRunning && !in.isPaused {
		statements := in.currentBlock.StatementList()

		if in.currentStatementIndex < len(statements) {
			stmt := statements[in.currentStatementIndex]
			in.enteredBlock = false

			if err := in.executeStatement(stmt); err != nil {
				in.fail(err, stmt)
				return
			}

			switch {
			case in.isPaused:
				in.currentStatementIndex++
				in.emitter.Emit(PauseEvent{Reason: PauseReasonDialogue})
				if err := in.lifecycle.Fire(triggerPause); err != nil {
					in.fail(err, stmt)
				}
				return
			case in.enteredBlock:
				continue
			default:
				in.currentStatementIndex++
			}
			continue
		}

		if len(in.executionStack) == 0 {
			in.finish()
			return
		}
		in.popFrame()
	}
}

func (in *Interpreter) popFrame() {
	frame := in.executionStack[len(in.executionStack)-1]
	in.executionStack = in.executionStack[:len(in.executionStack)-1]

	in.currentBlock = frame.ReturnBlock
	in.currentStatementIndex = frame.ReturnIndex
	in.scopeStack = in.scopeStack[:frame.ScopeDepth]

	if frame.IsFunctionReturn {
		in.emitter.Emit(FunctionCallEndEvent{Name: frame.FunctionName})
	}
}

// enterBlock saves the continuation after the current statement and moves
// the cursor to the start of block.
func (in *Interpreter) enterBlock(block ast.Container, scopeDepth int, functionName string) {
	in.executionStack = append(in.executionStack, Frame{
		ReturnBlock:      in.currentBlock,
		ReturnIndex:      in.currentStatementIndex + 1,
		ScopeDepth:       scopeDepth,
		IsFunctionReturn: functionName != "",
		FunctionName:     functionName,
	})
	in.currentBlock = block
	in.currentStatementIndex = 0
	in.enteredBlock = true
}

func (in *Interpreter) finish() {
	in.isRunning = false
	in.currentBlock = nil
	if err := in.lifecycle.Fire(triggerFinish); err != nil {
		in.logger.Error("lifecycle", zap.Error(err))
	}
	in.emitter.Emit(EndEvent{})
}

// fail halts the run permanently and reports err.
func (in *Interpreter) fail(err error, node ast.Node) {
	var qerr *qerrors.QuillError
	if !stderrors.As(err, &qerr) {
		qerr = qerrors.NewSimple(qerrors.ClassType, err.Error())
	}
	qerr = withPosition(qerr, node)

	in.logger.Error("runtime error",
		zap.String("code", qerr.Code),
		zap.Int("line", qerr.Line),
		zap.Int("column", qerr.Column),
		zap.String("message", qerr.Message),
	)

	in.err = qerr
	in.isRunning = false
	in.isPaused = false
	if ferr := in.lifecycle.Fire(triggerFail); ferr != nil {
		in.logger.Error("lifecycle", zap.Error(ferr))
	}
	in.emitter.Emit(ErrorEvent{Err: qerr})
}

// withPosition fills in the node's location when err has none.
func withPosition(err *qerrors.QuillError, node ast.Node) *qerrors.QuillError {
	if err.Line > 0 || node == nil {
		return err
	}
	pos := node.Pos()
	return err.WithPosition(pos.Line, pos.Column)
}

func (in *Interpreter) executeStatement(stmt ast.Statement) error {
	scope := in.CurrentScope()

	switch s := stmt.(type) {
	case *ast.VariableAssignment:
		if !s.Declaration {
			_, err := in.Evaluate(s, scope)
			return err
		}
		val, err := in.Evaluate(s.Value, scope)
		if err != nil {
			return err
		}
		scope.Define(s.Name.Value, val)
		in.emitter.Emit(VariableAssignmentEvent{Name: s.Name.Value, Value: val})

	case *ast.ParameterDeclaration:
		scope.Define(s.Name.Value, NULL)
		in.emitter.Emit(VariableAssignmentEvent{Name: s.Name.Value, Value: NULL})

	case *ast.FunctionDeclaration:
		scope.DefineFunction(s.Name.Value, s, scope)
		in.emitter.Emit(FunctionDefinitionEvent{Name: s.Name.Value})

	case *ast.DialogueStatement:
		text, err := in.Evaluate(s.Text, scope)
		if err != nil {
			return err
		}
		in.emitter.Emit(DialogueEvent{
			Speaker:            s.Speaker,
			Text:               Stringify(text),
			PreserveLinebreaks: s.Preserve,
			Location:           s.Pos(),
		})
		in.isPaused = true

	case *ast.IfStatement:
		cond, err := in.Evaluate(s.Condition, scope)
		if err != nil {
			return err
		}
		depth := len(in.scopeStack)
		if IsTruthy(cond) {
			in.enterBlock(s.Consequence, depth, "")
		} else if s.Alternative != nil {
			in.enterBlock(s.Alternative.Body, depth, "")
		}

	case *ast.FunctionCall:
		return in.callFunction(s, scope)

	default:
		return qerrors.New("TYPE-0001", map[string]any{"Node": nodeName(stmt)})
	}
	return nil
}

func (in *Interpreter) callFunction(call *ast.FunctionCall, scope *Scope) error {
	name := call.Callee.Value
	binding := scope.GetFunction(name)
	if binding == nil {
		return withPosition(qerrors.NewUndefinedFunction(name, scope.AllFunctionNames()), call)
	}

	in.emitter.Emit(FunctionCallStartEvent{Name: name, Args: call.Arguments})

	if binding.IsBuiltin() {
		if err := binding.Builtin.Execute(in, call, scope); err != nil {
			return err
		}
		in.emitter.Emit(FunctionCallEndEvent{Name: name})
		return nil
	}

	callScope, err := in.bindArguments(binding, call, scope)
	if err != nil {
		return err
	}

	depth := len(in.scopeStack)
	in.scopeStack = append(in.scopeStack, callScope)
	in.enterBlock(binding.Declaration.Body, depth, name)
	return nil
}

// bindArguments creates the call scope as a child of the function's
// definition scope. Declared parameters start as null; positional arguments
// bind in order and named arguments by name. Argument expressions are
// evaluated in the caller's scope.
func (in *Interpreter) bindArguments(binding *FunctionBinding, call *ast.FunctionCall, caller *Scope) (*Scope, error) {
	decl := binding.Declaration
	params := decl.ParamNames()
	callScope := NewScope(binding.Scope)
	for _, p := range params {
		callScope.Define(p, NULL)
	}

	var positional []ast.Expression
	var named []*ast.NamedArgument
	for _, arg := range call.Arguments {
		if na, ok := arg.(*ast.NamedArgument); ok {
			named = append(named, na)
		} else {
			positional = append(positional, arg)
		}
	}

	if len(positional) > len(params) {
		return nil, withPosition(qerrors.New("ARITY-0001", map[string]any{
			"Function": decl.Name.Value,
			"Want":     len(params),
			"Got":      len(positional),
		}), call)
	}

	bound := make(map[string]bool, len(params))
	for i, arg := range positional {
		val, err := in.Evaluate(arg, caller)
		if err != nil {
			return nil, err
		}
		callScope.Define(params[i], val)
		bound[params[i]] = true
	}

	for _, arg := range named {
		pname := arg.Name.Value
		if !contains(params, pname) {
			err := qerrors.New("ARITY-0002", map[string]any{"Function": decl.Name.Value, "Name": pname})
			if suggestion := qerrors.FindClosestMatch(pname, params); suggestion != "" {
				err.Hints = append(err.Hints, "Did you mean `--"+suggestion+"`?")
			}
			return nil, withPosition(err, arg)
		}
		if bound[pname] {
			return nil, withPosition(qerrors.New("ARITY-0003", map[string]any{
				"Function": decl.Name.Value,
				"Name":     pname,
			}), arg)
		}
		val, err := in.Evaluate(arg.Value, caller)
		if err != nil {
			return nil, err
		}
		callScope.Define(pname, val)
		bound[pname] = true
	}

	return callScope, nil
}

// Evaluate computes the value of expr in scope. Builtins use it to evaluate
// their arguments.
func (in *Interpreter) Evaluate(expr ast.Expression, scope *Scope) (Object, error) {
	switch e := expr.(type) {
	case *ast.Literal:
		return FromNative(e.Value), nil

	case *ast.Identifier:
		val, err := scope.Get(e.Value)
		if err != nil {
			return nil, withPosition(err.(*qerrors.QuillError), e)
		}
		return val, nil

	case *ast.ArrayLiteral:
		arr := &Array{Elements: make([]Object, 0, len(e.Elements))}
		for _, el := range e.Elements {
			val, err := in.Evaluate(el, scope)
			if err != nil {
				return nil, err
			}
			arr.Elements = append(arr.Elements, val)
		}
		return arr, nil

	case *ast.ObjectLiteral:
		dict := NewDictionary()
		for _, prop := range e.Properties {
			val, err := in.Evaluate(prop.Value, scope)
			if err != nil {
				return nil, err
			}
			dict.Pairs.Set(prop.Key, val)
		}
		return dict, nil

	case *ast.InterpolatedString:
		return &String{Value: in.interpolate(e, scope)}, nil

	case *ast.BinaryExpression:
		left, err := in.Evaluate(e.Left, scope)
		if err != nil {
			return nil, err
		}
		right, err := in.Evaluate(e.Right, scope)
		if err != nil {
			return nil, err
		}
		switch e.Operator {
		case "==":
			return nativeBoolToBooleanObject(DeepEquals(left, right)), nil
		}
		return nil, withPosition(qerrors.New("OP-0001", map[string]any{"Operator": e.Operator}), e)

	case *ast.VariableAssignment:
		if e.Name == nil {
			return nil, withPosition(qerrors.New("OP-0002", nil), e)
		}
		val, err := in.Evaluate(e.Value, scope)
		if err != nil {
			return nil, err
		}
		if err := scope.Assign(e.Name.Value, val); err != nil {
			return nil, withPosition(err.(*qerrors.QuillError), e)
		}
		in.emitter.Emit(VariableAssignmentEvent{Name: e.Name.Value, Value: val})
		return val, nil
	}

	return nil, withPosition(qerrors.New("TYPE-0001", map[string]any{"Node": nodeName(expr)}), expr)
}

// interpolate joins literal chunks and variable values. A missing or null
// variable renders as "" and logs a warning.
func (in *Interpreter) interpolate(s *ast.InterpolatedString, scope *Scope) string {
	var out []byte
	for _, part := range s.Parts {
		switch p := part.(type) {
		case *ast.Literal:
			text, _ := p.Value.(string)
			out = append(out, text...)
		case *ast.Identifier:
			val, ok := scope.Lookup(p.Value)
			if !ok || val.Type() == NULL_OBJ {
				in.logger.Warn("interpolated variable is missing or null",
					zap.String("variable", p.Value),
					zap.Int("line", p.Token.Line),
					zap.Int("column", p.Token.Column),
				)
				continue
			}
			out = append(out, Stringify(val)...)
		}
	}
	return string(out)
}

func nodeName(node ast.Node) string {
	if node == nil {
		return "nil"
	}
	switch node.(type) {
	case *ast.NamedArgument:
		return "NamedArgument"
	case *ast.ElseBlock:
		return "ElseBlock"
	case *ast.Block:
		return "Block"
	}
	return node.TokenLiteral()
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
