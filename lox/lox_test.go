package lox_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loxlang/loxvm/lox"
)

func run(t *testing.T, source string) (string, lox.Result, error) {
	t.Helper()
	vm := lox.New()
	defer vm.Free()
	var out bytes.Buffer
	vm.SetOutput(&out)
	res, err := vm.Interpret(source)
	return out.String(), res, err
}

func TestClosureCapture(t *testing.T) {
	src := `
fun outer() {
  var x = "value";
  fun middle() {
    fun inner() { println(x); }
    return inner;
  }
  return middle;
}
outer()()();
`
	out, res, err := run(t, src)
	require.NoError(t, err)
	assert.Equal(t, lox.OK, res)
	assert.Equal(t, "value\n", out)
}

func TestUpvalueUpdateVisibleAfterReturn(t *testing.T) {
	src := `
fun make() {
  var i = 0;
  fun inc() { i = i + 1; return i; }
  return inc;
}
var f = make();
println(f());
println(f());
println(f());
`
	out, res, err := run(t, src)
	require.NoError(t, err)
	assert.Equal(t, lox.OK, res)
	assert.Equal(t, "1\n2\n3\n", out)
}

func TestInheritanceAndSuper(t *testing.T) {
	src := `
class A { speak() { println("A"); } }
class B < A { speak() { super.speak(); println("B"); } }
B().speak();
`
	out, res, err := run(t, src)
	require.NoError(t, err)
	assert.Equal(t, lox.OK, res)
	assert.Equal(t, "A\nB\n", out)
}

func TestInitializerReturnsInstance(t *testing.T) {
	src := `
class P { init(x) { this.x = x; } }
var p = P(42);
println(p.x);
`
	out, res, err := run(t, src)
	require.NoError(t, err)
	assert.Equal(t, lox.OK, res)
	assert.Equal(t, "42\n", out)
}

func TestStringInterningAndEquality(t *testing.T) {
	src := `
var a = "ab" + "c";
var b = "abc";
println(a == b);
`
	out, res, err := run(t, src)
	require.NoError(t, err)
	assert.Equal(t, lox.OK, res)
	assert.Equal(t, "true\n", out)
}

func TestFibonacci(t *testing.T) {
	src := `
fun fib(n) { if (n < 2) return n; return fib(n-1) + fib(n-2); }
println(fib(10));
`
	out, res, err := run(t, src)
	require.NoError(t, err)
	assert.Equal(t, lox.OK, res)
	assert.Equal(t, "55\n", out)
}

func TestBreakExitsEnclosingLoop(t *testing.T) {
	src := `
var i = 0;
while (true) {
  i = i + 1;
  if (i == 3) break;
}
println(i);
`
	out, res, err := run(t, src)
	require.NoError(t, err)
	assert.Equal(t, lox.OK, res)
	assert.Equal(t, "3\n", out)
}

func TestAddStringsAndNumbersRuntimeError(t *testing.T) {
	_, res, err := run(t, `1 + "a";`)
	require.Error(t, err)
	assert.Equal(t, lox.RuntimeError, res)
}

func TestClassInheritFromItselfCompileError(t *testing.T) {
	_, res, err := run(t, `class X < X {}`)
	require.Error(t, err)
	assert.Equal(t, lox.CompileError, res)
}

func TestReadLocalInOwnInitializerCompileError(t *testing.T) {
	_, res, err := run(t, `{ var x = x; }`)
	require.Error(t, err)
	assert.Equal(t, lox.CompileError, res)
}

func TestStackOverflow(t *testing.T) {
	src := `
fun recurse() { return recurse(); }
recurse();
`
	_, res, err := run(t, src)
	require.Error(t, err)
	assert.Equal(t, lox.RuntimeError, res)
}

func TestDefineNative(t *testing.T) {
	vm := lox.New()
	defer vm.Free()
	var out bytes.Buffer
	vm.SetOutput(&out)

	vm.DefineNative("double", func(args []lox.Value) (lox.Value, error) {
		n := args[0].Num * 2
		return lox.Value{Kind: args[0].Kind, Num: n}, nil
	})

	res, err := vm.Interpret(`println(double(21));`)
	require.NoError(t, err)
	assert.Equal(t, lox.OK, res)
	assert.Equal(t, "42\n", out.String())
}
