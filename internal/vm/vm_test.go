package vm

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loxlang/loxvm/internal/object"
)

func interpret(t *testing.T, source string) (string, InterpretResult, error) {
	t.Helper()
	v := New()
	defer v.Free()
	var out bytes.Buffer
	v.Stdout = &out
	res, err := v.Interpret(source)
	return out.String(), res, err
}

func TestPrintAndPrintln(t *testing.T) {
	out, res, err := interpret(t, `print("a"); println("b"); print(1);`)
	require.NoError(t, err)
	assert.Equal(t, InterpretOK, res)
	assert.Equal(t, "ab\n1", out)
}

func TestNativeFunctionPrintsWithoutItsName(t *testing.T) {
	out, res, err := interpret(t, `println(clock);`)
	require.NoError(t, err)
	assert.Equal(t, InterpretOK, res)
	assert.Equal(t, "<native fn>\n", out)
}

func TestTruthiness(t *testing.T) {
	out, res, err := interpret(t, `
println(!nil);
println(!false);
println(!0);
println(!"");
`)
	require.NoError(t, err)
	assert.Equal(t, InterpretOK, res)
	assert.Equal(t, "true\ntrue\nfalse\nfalse\n", out)
}

func TestUndefinedGlobalReadIsRuntimeError(t *testing.T) {
	_, res, err := interpret(t, `println(nope);`)
	require.Error(t, err)
	assert.Equal(t, InterpretRuntimeError, res)
}

func TestUndefinedGlobalAssignIsRuntimeError(t *testing.T) {
	_, res, err := interpret(t, `nope = 1;`)
	require.Error(t, err)
	assert.Equal(t, InterpretRuntimeError, res)
}

func TestCallingNonCallableIsRuntimeError(t *testing.T) {
	_, res, err := interpret(t, `var x = 1; x();`)
	require.Error(t, err)
	assert.Equal(t, InterpretRuntimeError, res)
}

func TestFieldCreatedOnFirstAssignment(t *testing.T) {
	out, res, err := interpret(t, `
class Box {}
var b = Box();
b.value = 10;
println(b.value);
`)
	require.NoError(t, err)
	assert.Equal(t, InterpretOK, res)
	assert.Equal(t, "10\n", out)
}

func TestMethodAccessedAsPropertyYieldsBoundMethod(t *testing.T) {
	out, res, err := interpret(t, `
class Greeter { greet() { return "hi"; } }
var g = Greeter();
var m = g.greet;
println(m());
`)
	require.NoError(t, err)
	assert.Equal(t, InterpretOK, res)
	assert.Equal(t, "hi\n", out)
}

func TestGCStressDoesNotChangeObservableOutput(t *testing.T) {
	v := New()
	defer v.Free()
	var out bytes.Buffer
	v.Stdout = &out
	v.nextGC = 0 // collect on the next allocation; the threshold then tracks twice the small live heap, so collections recur throughout the run

	src := `
class Node {
  init(value) { this.value = value; }
}
var total = 0;
var i = 0;
while (i < 50) {
  var n = Node(i);
  total = total + n.value;
  i = i + 1;
}
println(total);
`
	res, err := v.Interpret(src)
	require.NoError(t, err)
	assert.Equal(t, InterpretOK, res)
	assert.Equal(t, "1225\n", out.String())
}

func TestStringInterningSharesBackingObject(t *testing.T) {
	v := New()
	defer v.Free()
	a := v.InternString("shared")
	b := v.InternString("shared")
	assert.Same(t, a, b)
}

func TestDefineNativeIsCallableFromLox(t *testing.T) {
	v := New()
	defer v.Free()
	var out bytes.Buffer
	v.Stdout = &out

	v.DefineNative("addOne", func(args []object.Value) (object.Value, error) {
		return object.Number(args[0].Num + 1), nil
	})

	res, err := v.Interpret(`println(addOne(41));`)
	require.NoError(t, err)
	assert.Equal(t, InterpretOK, res)
	assert.Equal(t, "42\n", out.String())
}
