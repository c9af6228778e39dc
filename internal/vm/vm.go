// Package vm implements the frame-stack interpreter: it dispatches
// compiled bytecode, owns the object heap and its mark-sweep collector,
// and exposes the host-facing interpret/native-registration surface.
package vm

import (
	"io"
	"os"
	"unsafe"

	"github.com/loxlang/loxvm/internal/compiler"
	"github.com/loxlang/loxvm/internal/object"
)

const (
	framesMax = 64
	stackMax  = framesMax * 256
)

// InterpretResult mirrors clox's three-way result of running a script.
type InterpretResult int

const (
	InterpretOK InterpretResult = iota
	InterpretCompileError
	InterpretRuntimeError
)

type frame struct {
	closure *object.Closure
	ip      int
	slots   int // base index into vm.stack for this call's locals
	lastOp  int // offset of the instruction currently executing, for error reporting
}

// VM holds all interpreter state: the value stack, call frames, global
// variables, the intern table, and the object heap with its collector.
//
// The value stack is a fixed-size array, not a growable slice: open
// upvalues hold raw *object.Value pointers into it, and a slice
// reallocation on append would silently invalidate every such pointer.
type VM struct {
	stack    [stackMax]object.Value
	stackTop int

	frames     [framesMax]frame
	frameCount int

	globals *object.Table
	strings *object.Table

	openUpvalues *object.Upvalue

	objects        object.Obj
	bytesAllocated int
	nextGC         int
	grayStack      []object.Obj

	initString *object.String

	compilerRoots []*object.Function

	lastErr error
	Stdout  io.Writer
}

// New constructs a VM ready to Interpret source. GC heap growth uses a
// factor of 2.0 between collections (see DESIGN.md for the 1.5-vs-2.0
// discussion); the first collection is deferred until 1MiB has been
// allocated so short scripts never pay for one.
func New() *VM {
	vm := &VM{
		globals: object.NewTable(),
		strings: object.NewTable(),
		nextGC:  1024 * 1024,
		Stdout:  os.Stdout,
	}
	vm.initString = vm.InternString("init")
	vm.defineNatives()
	return vm
}

// Free drops every reference the VM holds to its heap so the host
// language's own GC can reclaim it; there is no manual free() in Go.
func (vm *VM) Free() {
	vm.objects = nil
	vm.grayStack = nil
	vm.globals = object.NewTable()
	vm.strings = object.NewTable()
	vm.openUpvalues = nil
	vm.stackTop = 0
	vm.frameCount = 0
}

// DefineNative registers a host function under name as a global.
func (vm *VM) DefineNative(name string, fn object.NativeFn) {
	native := &object.Native{Name: name, Fn: fn}
	vm.TrackObject(native)
	vm.push(object.ObjVal(native)) // root native before InternString can allocate
	key := vm.InternString(name)
	vm.globals.Set(key, object.ObjVal(native))
	vm.pop()
}

// Interpret compiles and runs source to completion, mirroring clox's
// interpret(): compilation runs in full before any bytecode executes.
func (vm *VM) Interpret(source string) (InterpretResult, error) {
	fn, err := compiler.Compile(source, vm)
	if err != nil {
		return InterpretCompileError, err
	}

	closure := &object.Closure{Function: fn}
	vm.TrackObject(closure)
	vm.push(object.ObjVal(closure))
	if !vm.callValue(object.ObjVal(closure), 0) {
		return InterpretRuntimeError, vm.lastErr
	}

	return vm.run()
}

// --- stack helpers ---------------------------------------------------

func (vm *VM) push(v object.Value) {
	vm.stack[vm.stackTop] = v
	vm.stackTop++
}

func (vm *VM) pop() object.Value {
	vm.stackTop--
	return vm.stack[vm.stackTop]
}

func (vm *VM) peek(distance int) object.Value {
	return vm.stack[vm.stackTop-1-distance]
}

func (vm *VM) resetStack() {
	vm.stackTop = 0
	vm.frameCount = 0
	vm.openUpvalues = nil
}

// --- compiler.Interner ------------------------------------------------

// InternString returns the canonical *object.String for s, allocating
// and tracking a new one only if s has never been seen before.
func (vm *VM) InternString(s string) *object.String {
	hash := object.HashString(s)
	if existing := vm.strings.FindString(s, hash); existing != nil {
		return existing
	}
	str := &object.String{Chars: s, Hash: hash}
	vm.TrackObject(str)
	vm.strings.Set(str, object.Nil)
	return str
}

// TrackObject links o onto the VM's object list and accounts for its
// (approximate) size against the next GC threshold.
//
// The threshold check and any resulting collection run before o is
// linked in, mirroring clox's reallocate(): a collection triggered by
// o's own allocation must not be able to see (and sweep) o itself,
// since at that point nothing roots it yet. Callers are still
// responsible for rooting o (pushing it on the stack, or otherwise
// making it reachable) before any further allocation.
func (vm *VM) TrackObject(o object.Obj) {
	vm.bytesAllocated += approxSize(o)
	if vm.bytesAllocated > vm.nextGC {
		vm.collectGarbage()
	}
	o.SetNext(vm.objects)
	vm.objects = o
}

func (vm *VM) PushCompilerRoot(fn *object.Function) {
	vm.compilerRoots = append(vm.compilerRoots, fn)
}

func (vm *VM) PopCompilerRoot() {
	vm.compilerRoots = vm.compilerRoots[:len(vm.compilerRoots)-1]
}

func approxSize(o object.Obj) int {
	switch v := o.(type) {
	case *object.String:
		return 32 + len(v.Chars)
	case *object.Function:
		return 64
	case *object.Closure:
		return 32 + 8*len(v.Upvalues)
	case *object.Upvalue:
		return 24
	case *object.Native:
		return 24
	case *object.Class:
		return 32
	case *object.Instance:
		return 32
	case *object.BoundMethod:
		return 32
	default:
		return 16
	}
}

// --- calling ------------------------------------------------------------

func (vm *VM) currentFrame() *frame { return &vm.frames[vm.frameCount-1] }

func (vm *VM) callValue(callee object.Value, argCount int) bool {
	if callee.IsObj() {
		switch fn := callee.Obj.(type) {
		case *object.Closure:
			return vm.call(fn, argCount)
		case *object.Native:
			args := vm.stack[vm.stackTop-argCount : vm.stackTop]
			res, err := fn.Fn(args)
			if err != nil {
				vm.runtimeError("%s", err.Error())
				return false
			}
			vm.stackTop -= argCount + 1
			vm.push(res)
			return true
		case *object.Class:
			inst := &object.Instance{Class: fn, Fields: object.NewTable()}
			vm.TrackObject(inst)
			vm.stack[vm.stackTop-argCount-1] = object.ObjVal(inst)
			if initializer, ok := fn.Methods.Get(vm.initString); ok {
				return vm.call(initializer.Obj.(*object.Closure), argCount)
			} else if argCount != 0 {
				vm.runtimeError("Expected 0 arguments but got %d.", argCount)
				return false
			}
			return true
		case *object.BoundMethod:
			vm.stack[vm.stackTop-argCount-1] = fn.Receiver
			return vm.call(fn.Method, argCount)
		}
	}
	vm.runtimeError("Can only call functions and classes.")
	return false
}

func (vm *VM) call(closure *object.Closure, argCount int) bool {
	if argCount != closure.Function.Arity {
		vm.runtimeError("Expected %d arguments but got %d.", closure.Function.Arity, argCount)
		return false
	}
	if vm.frameCount == framesMax {
		vm.runtimeError("Stack overflow.")
		return false
	}
	fr := &vm.frames[vm.frameCount]
	vm.frameCount++
	fr.closure = closure
	fr.ip = 0
	fr.slots = vm.stackTop - argCount - 1
	fr.lastOp = -1
	return true
}

func (vm *VM) invoke(name *object.String, argCount int) bool {
	receiver := vm.peek(argCount)
	if !receiver.IsObj() {
		vm.runtimeError("Only instances have methods.")
		return false
	}
	inst, ok := receiver.Obj.(*object.Instance)
	if !ok {
		vm.runtimeError("Only instances have methods.")
		return false
	}
	if field, ok := inst.Fields.Get(name); ok {
		vm.stack[vm.stackTop-argCount-1] = field
		return vm.callValue(field, argCount)
	}
	return vm.invokeFromClass(inst.Class, name, argCount)
}

func (vm *VM) invokeFromClass(klass *object.Class, name *object.String, argCount int) bool {
	method, ok := klass.Methods.Get(name)
	if !ok {
		vm.runtimeError("Undefined property '%s'.", name.Chars)
		return false
	}
	return vm.call(method.Obj.(*object.Closure), argCount)
}

func (vm *VM) bindMethod(klass *object.Class, name *object.String) bool {
	method, ok := klass.Methods.Get(name)
	if !ok {
		vm.runtimeError("Undefined property '%s'.", name.Chars)
		return false
	}
	bound := &object.BoundMethod{Receiver: vm.peek(0), Method: method.Obj.(*object.Closure)}
	vm.TrackObject(bound)
	vm.pop()
	vm.push(object.ObjVal(bound))
	return true
}

// --- upvalues ------------------------------------------------------------

func (vm *VM) captureUpvalue(local *object.Value) *object.Upvalue {
	var prev *object.Upvalue
	cur := vm.openUpvalues
	for cur != nil && locationAddr(cur.Location) > locationAddr(local) {
		prev = cur
		cur = cur.NextOpen
	}
	if cur != nil && cur.Location == local {
		return cur
	}
	created := &object.Upvalue{Location: local}
	vm.TrackObject(created)
	created.NextOpen = cur
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.NextOpen = created
	}
	return created
}

// locationAddr gives open upvalues a total order by stack address so
// the list stays sorted deepest-slot-first. The stack is a fixed-size
// array for exactly this reason: slots never move, so raw addresses
// are stable for the lifetime of the VM.
func locationAddr(v *object.Value) uintptr {
	return uintptr(unsafe.Pointer(v))
}

func (vm *VM) closeUpvalues(last *object.Value) {
	for vm.openUpvalues != nil && locationAddr(vm.openUpvalues.Location) >= locationAddr(last) {
		uv := vm.openUpvalues
		uv.Closed = *uv.Location
		uv.Location = &uv.Closed
		vm.openUpvalues = uv.NextOpen
	}
}

// --- native helpers -------------------------------------------------

func (vm *VM) defineNatives() {
	vm.DefineNative("clock", nativeClock)
	vm.DefineNative("print", vm.nativePrint)
	vm.DefineNative("println", vm.nativePrintln)
}
