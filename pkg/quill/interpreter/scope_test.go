package interpreter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "github.com/sambeau/quill/pkg/quill/errors"
)

func TestScopeLookupWalksParents(t *testing.T) {
	global := NewScope(nil)
	global.Define("a", FromNative(1))
	child := NewScope(global)
	child.Define("b", FromNative(2))

	val, ok := child.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "1", val.Inspect())

	_, ok = global.Lookup("b")
	assert.False(t, ok)
	assert.Same(t, global, child.Parent())
}

func TestScopeDefineShadows(t *testing.T) {
	global := NewScope(nil)
	global.Define("x", FromNative("outer"))
	child := NewScope(global)
	child.Define("x", FromNative("inner"))

	val, _ := child.Lookup("x")
	assert.Equal(t, "inner", Stringify(val))
	val, _ = global.Lookup("x")
	assert.Equal(t, "outer", Stringify(val))
}

func TestScopeAssignUpdatesNearestBinding(t *testing.T) {
	global := NewScope(nil)
	global.Define("x", FromNative(1))
	child := NewScope(global)

	require.NoError(t, child.Assign("x", FromNative(2)))
	val, _ := global.Lookup("x")
	assert.Equal(t, "2", val.Inspect())

	_, ok := child.variables["x"]
	assert.False(t, ok, "assign must not create a local binding")
}

func TestScopeErrors(t *testing.T) {
	global := NewScope(nil)
	global.Define("speaker", FromNative("kacey"))

	_, err := global.Get("speakr")
	require.Error(t, err)
	qerr := err.(*qerrors.QuillError)
	assert.Equal(t, "UNDEF-0001", qerr.Code)
	require.Len(t, qerr.Hints, 1)
	assert.Contains(t, qerr.Hints[0], "speaker")

	err = global.Assign("nobody", NULL)
	require.Error(t, err)
	assert.Equal(t, "UNDEF-0003", err.(*qerrors.QuillError).Code)
}

func TestScopeFunctions(t *testing.T) {
	global := NewScope(nil)
	global.DefineBuiltin("print", DefaultBuiltins()["print"])
	child := NewScope(global)

	fn := child.GetFunction("print")
	require.NotNil(t, fn)
	assert.True(t, fn.IsBuiltin())
	assert.Nil(t, child.GetFunction("missing"))
}

func TestScopeNamesAreSortedAndUnique(t *testing.T) {
	global := NewScope(nil)
	global.Define("b", NULL)
	global.Define("a", NULL)
	child := NewScope(global)
	child.Define("a", NULL)
	child.Define("c", NULL)

	assert.Equal(t, []string{"a", "b", "c"}, child.AllIdentifiers())
}
