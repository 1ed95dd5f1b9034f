package interpreter

import (
	"sort"

	"github.com/sambeau/quill/pkg/quill/ast"
	qerrors "github.com/sambeau/quill/pkg/quill/errors"
)

// FunctionBinding is a callable bound in a Scope: either a user function
// paired with the scope it was declared in, or a native builtin.
type FunctionBinding struct {
	Declaration *ast.FunctionDeclaration
	Scope       *Scope // lexical definition scope, nil for builtins
	Builtin     *Builtin
}

// IsBuiltin reports whether the binding is a native function.
func (fb *FunctionBinding) IsBuiltin() bool {
	return fb.Builtin != nil
}

// Scope is one frame of the lexical environment. Function bindings keep a
// pointer to their defining Scope, which stays reachable for as long as the
// function does.
type Scope struct {
	parent    *Scope
	variables map[string]Object
	functions map[string]*FunctionBinding
}

// NewScope creates a scope whose lookups fall back to parent.
func NewScope(parent *Scope) *Scope {
	return &Scope{
		parent:    parent,
		variables: make(map[string]Object),
		functions: make(map[string]*FunctionBinding),
	}
}

// Parent returns the enclosing scope, or nil for the global scope.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Define binds name in this scope, shadowing any outer binding.
func (s *Scope) Define(name string, val Object) {
	s.variables[name] = val
}

// Lookup searches the scope chain for name.
func (s *Scope) Lookup(name string) (Object, bool) {
	for scope := s; scope != nil; scope = scope.parent {
		if val, ok := scope.variables[name]; ok {
			return val, true
		}
	}
	return nil, false
}

// Get returns the value bound to name anywhere in the chain.
func (s *Scope) Get(name string) (Object, error) {
	if val, ok := s.Lookup(name); ok {
		return val, nil
	}
	return nil, qerrors.NewUndefinedIdentifier(name, s.AllIdentifiers())
}

// Assign updates the nearest existing binding of name. It never creates one.
func (s *Scope) Assign(name string, val Object) error {
	for scope := s; scope != nil; scope = scope.parent {
		if _, ok := scope.variables[name]; ok {
			scope.variables[name] = val
			return nil
		}
	}
	err := qerrors.New("UNDEF-0003", map[string]any{"Name": name})
	if suggestion := qerrors.FindClosestMatch(name, s.AllIdentifiers()); suggestion != "" {
		err.Hints = append(err.Hints, "Did you mean `"+suggestion+"`?")
	}
	return err
}

// DefineFunction binds a user function together with its defining scope.
func (s *Scope) DefineFunction(name string, decl *ast.FunctionDeclaration, definitionScope *Scope) {
	s.functions[name] = &FunctionBinding{Declaration: decl, Scope: definitionScope}
}

// DefineBuiltin binds a native function.
func (s *Scope) DefineBuiltin(name string, b *Builtin) {
	s.functions[name] = &FunctionBinding{Builtin: b}
}

// GetFunction returns the nearest function binding for name, or nil.
func (s *Scope) GetFunction(name string) *FunctionBinding {
	for scope := s; scope != nil; scope = scope.parent {
		if fn, ok := scope.functions[name]; ok {
			return fn
		}
	}
	return nil
}

// AllIdentifiers returns every variable name visible from this scope.
func (s *Scope) AllIdentifiers() []string {
	return collectNames(s, func(scope *Scope) []string {
		names := make([]string, 0, len(scope.variables))
		for name := range scope.variables {
			names = append(names, name)
		}
		return names
	})
}

// AllFunctionNames returns every function name visible from this scope.
func (s *Scope) AllFunctionNames() []string {
	return collectNames(s, func(scope *Scope) []string {
		names := make([]string, 0, len(scope.functions))
		for name := range scope.functions {
			names = append(names, name)
		}
		return names
	})
}

func collectNames(s *Scope, names func(*Scope) []string) []string {
	seen := make(map[string]bool)
	var result []string
	for scope := s; scope != nil; scope = scope.parent {
		for _, name := range names(scope) {
			if !seen[name] {
				seen[name] = true
				result = append(result, name)
			}
		}
	}
	sort.Strings(result)
	return result
}
