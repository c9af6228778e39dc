// Package lox is the public entry point to the Lox compiler/VM pair:
// construct a VM, optionally register native functions, then Interpret
// source text. The command-line front end, line editor, self-test
// harness and disassembler driver are intentionally not part of this
// package — they are external collaborators that talk to it only
// through the surface below.
package lox

import (
	"io"

	"github.com/loxlang/loxvm/internal/object"
	"github.com/loxlang/loxvm/internal/vm"
)

// Result is the three-way outcome of interpreting a script.
type Result = vm.InterpretResult

const (
	OK           = vm.InterpretOK
	CompileError = vm.InterpretCompileError
	RuntimeError = vm.InterpretRuntimeError
)

// Value is a Lox runtime value, as passed to and returned from native
// functions.
type Value = object.Value

// NativeFn is the signature a host function must implement to be
// registered with DefineNative.
type NativeFn = object.NativeFn

// VM is an independent Lox interpreter: its own value stack, call
// frames, globals, string-intern table and heap. Running unrelated
// scripts in separate VMs keeps them from seeing each other's globals.
type VM struct {
	inner *vm.VM
}

// New constructs a VM with the standard native functions (clock,
// print, println) already registered, and stdout wired to os.Stdout.
func New() *VM {
	return &VM{inner: vm.New()}
}

// SetOutput redirects where print/println write, primarily for tests.
func (v *VM) SetOutput(w io.Writer) {
	v.inner.Stdout = w
}

// DefineNative registers fn as a global callable under name, usable
// from Lox source as a normal function call.
func (v *VM) DefineNative(name string, fn NativeFn) {
	v.inner.DefineNative(name, fn)
}

// Interpret compiles and runs source to completion.
func (v *VM) Interpret(source string) (Result, error) {
	return v.inner.Interpret(source)
}

// Free drops the VM's heap. The VM is unusable after this; construct a
// new one to run more source.
func (v *VM) Free() {
	v.inner.Free()
}
