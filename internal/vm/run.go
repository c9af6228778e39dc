package vm

import (
	"github.com/loxlang/loxvm/internal/bytecode"
	"github.com/loxlang/loxvm/internal/object"
)

func (vm *VM) readByte(fr *frame) byte {
	b := fr.closure.Function.Chunk.Code[fr.ip]
	fr.ip++
	return b
}

func (vm *VM) readU16(fr *frame) uint16 {
	hi := vm.readByte(fr)
	lo := vm.readByte(fr)
	return uint16(hi)<<8 | uint16(lo)
}

func (vm *VM) readConstant(fr *frame, idx uint16) object.Value {
	return fr.closure.Function.Chunk.Constants[idx]
}

// run is the VM's single dispatch loop: it decodes and executes one
// instruction at a time until the top-level call frame returns.
func (vm *VM) run() (InterpretResult, error) {
	fr := vm.currentFrame()

	for {
		fr.lastOp = fr.ip
		op := bytecode.OpCode(vm.readByte(fr))

		switch op {
		case bytecode.OpConstant:
			idx := vm.readU16(fr)
			vm.push(vm.readConstant(fr, idx))

		case bytecode.OpNil:
			vm.push(object.Nil)
		case bytecode.OpTrue:
			vm.push(object.BoolVal(true))
		case bytecode.OpFalse:
			vm.push(object.BoolVal(false))
		case bytecode.OpPop:
			vm.pop()

		case bytecode.OpGetLocal:
			slot := vm.readByte(fr)
			vm.push(vm.stack[fr.slots+int(slot)])
		case bytecode.OpSetLocal:
			slot := vm.readByte(fr)
			vm.stack[fr.slots+int(slot)] = vm.peek(0)

		case bytecode.OpGetUpvalue:
			slot := vm.readByte(fr)
			vm.push(*fr.closure.Upvalues[slot].Location)
		case bytecode.OpSetUpvalue:
			slot := vm.readByte(fr)
			*fr.closure.Upvalues[slot].Location = vm.peek(0)

		case bytecode.OpGetGlobal:
			idx := vm.readU16(fr)
			name := vm.readConstant(fr, idx).AsString()
			val, ok := vm.globals.Get(name)
			if !ok {
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
			vm.push(val)
		case bytecode.OpSetGlobal:
			idx := vm.readU16(fr)
			name := vm.readConstant(fr, idx).AsString()
			if vm.globals.Set(name, vm.peek(0)) {
				vm.globals.Delete(name)
				return vm.runtimeError("Undefined variable '%s'.", name.Chars)
			}
		case bytecode.OpDefineGlobal:
			idx := vm.readU16(fr)
			name := vm.readConstant(fr, idx).AsString()
			vm.globals.Set(name, vm.pop())

		case bytecode.OpGetProperty:
			idx := vm.readU16(fr)
			name := vm.readConstant(fr, idx).AsString()
			if !vm.peek(0).IsObj() {
				return vm.runtimeError("Only instances have properties.")
			}
			inst, ok := vm.peek(0).Obj.(*object.Instance)
			if !ok {
				return vm.runtimeError("Only instances have properties.")
			}
			if val, ok := inst.Fields.Get(name); ok {
				vm.pop()
				vm.push(val)
				break
			}
			if !vm.bindMethod(inst.Class, name) {
				return InterpretRuntimeError, vm.lastErr
			}
		case bytecode.OpSetProperty:
			idx := vm.readU16(fr)
			name := vm.readConstant(fr, idx).AsString()
			if !vm.peek(1).IsObj() {
				return vm.runtimeError("Only instances have fields.")
			}
			inst, ok := vm.peek(1).Obj.(*object.Instance)
			if !ok {
				return vm.runtimeError("Only instances have fields.")
			}
			inst.Fields.Set(name, vm.peek(0))
			val := vm.pop()
			vm.pop()
			vm.push(val)
		case bytecode.OpGetSuper:
			idx := vm.readU16(fr)
			name := vm.readConstant(fr, idx).AsString()
			superclass := vm.pop().Obj.(*object.Class)
			if !vm.bindMethod(superclass, name) {
				return InterpretRuntimeError, vm.lastErr
			}

		case bytecode.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(object.BoolVal(object.Equal(a, b)))
		case bytecode.OpGreater:
			if res, ok := vm.numericBinary(func(a, b float64) object.Value { return object.BoolVal(a > b) }); ok {
				vm.push(res)
			} else {
				return InterpretRuntimeError, vm.lastErr
			}
		case bytecode.OpLess:
			if res, ok := vm.numericBinary(func(a, b float64) object.Value { return object.BoolVal(a < b) }); ok {
				vm.push(res)
			} else {
				return InterpretRuntimeError, vm.lastErr
			}

		case bytecode.OpAdd:
			if !vm.add() {
				return InterpretRuntimeError, vm.lastErr
			}
		case bytecode.OpSubtract:
			if res, ok := vm.numericBinary(func(a, b float64) object.Value { return object.Number(a - b) }); ok {
				vm.push(res)
			} else {
				return InterpretRuntimeError, vm.lastErr
			}
		case bytecode.OpMultiply:
			if res, ok := vm.numericBinary(func(a, b float64) object.Value { return object.Number(a * b) }); ok {
				vm.push(res)
			} else {
				return InterpretRuntimeError, vm.lastErr
			}
		case bytecode.OpDivide:
			if res, ok := vm.numericBinary(func(a, b float64) object.Value { return object.Number(a / b) }); ok {
				vm.push(res)
			} else {
				return InterpretRuntimeError, vm.lastErr
			}

		case bytecode.OpNot:
			vm.push(object.BoolVal(vm.pop().IsFalsey()))
		case bytecode.OpNegate:
			if !vm.peek(0).IsNumber() {
				return vm.runtimeError("Operand must be a number.")
			}
			vm.push(object.Number(-vm.pop().Num))

		case bytecode.OpJump:
			offset := vm.readU16(fr)
			fr.ip += int(offset)
		case bytecode.OpJumpIfFalse:
			offset := vm.readU16(fr)
			if vm.peek(0).IsFalsey() {
				fr.ip += int(offset)
			}
		case bytecode.OpLoop:
			offset := vm.readU16(fr)
			fr.ip -= int(offset)

		case bytecode.OpCall:
			argCount := int(vm.readByte(fr))
			if !vm.callValue(vm.peek(argCount), argCount) {
				return InterpretRuntimeError, vm.lastErr
			}
			fr = vm.currentFrame()

		case bytecode.OpInvoke:
			idx := vm.readU16(fr)
			name := vm.readConstant(fr, idx).AsString()
			argCount := int(vm.readByte(fr))
			if !vm.invoke(name, argCount) {
				return InterpretRuntimeError, vm.lastErr
			}
			fr = vm.currentFrame()

		case bytecode.OpSuperInvoke:
			idx := vm.readU16(fr)
			name := vm.readConstant(fr, idx).AsString()
			argCount := int(vm.readByte(fr))
			superclass := vm.pop().Obj.(*object.Class)
			if !vm.invokeFromClass(superclass, name, argCount) {
				return InterpretRuntimeError, vm.lastErr
			}
			fr = vm.currentFrame()

		case bytecode.OpClosure:
			idx := vm.readU16(fr)
			fn := vm.readConstant(fr, idx).Obj.(*object.Function)
			closure := &object.Closure{Function: fn, Upvalues: make([]*object.Upvalue, fn.UpvalueCount)}
			vm.TrackObject(closure)
			// Push before capturing upvalues: capturing can allocate and
			// trigger a collection, which must not sweep this closure
			// before it has any other root.
			vm.push(object.ObjVal(closure))
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := vm.readByte(fr)
				index := vm.readByte(fr)
				if isLocal == 1 {
					closure.Upvalues[i] = vm.captureUpvalue(&vm.stack[fr.slots+int(index)])
				} else {
					closure.Upvalues[i] = fr.closure.Upvalues[index]
				}
			}
		case bytecode.OpCloseUpvalue:
			vm.closeUpvalues(&vm.stack[vm.stackTop-1])
			vm.pop()

		case bytecode.OpClass:
			idx := vm.readU16(fr)
			name := vm.readConstant(fr, idx).AsString()
			class := &object.Class{Name: name, Methods: object.NewTable()}
			vm.TrackObject(class)
			vm.push(object.ObjVal(class))
		case bytecode.OpMethod:
			idx := vm.readU16(fr)
			name := vm.readConstant(fr, idx).AsString()
			method := vm.peek(0)
			class := vm.peek(1).Obj.(*object.Class)
			class.Methods.Set(name, method)
			vm.pop()
		case bytecode.OpInherit:
			superVal := vm.peek(1)
			superclass, ok := superVal.Obj.(*object.Class)
			if !ok {
				return vm.runtimeError("Superclass must be a class.")
			}
			subclass := vm.peek(0).Obj.(*object.Class)
			subclass.Methods.AddAll(superclass.Methods)
			vm.pop() // the subclass copy consumed here; compiler re-fetches a fresh one for the method loop

		case bytecode.OpReturn:
			result := vm.pop()
			vm.closeUpvalues(&vm.stack[fr.slots])
			vm.frameCount--
			if vm.frameCount == 0 {
				vm.pop()
				return InterpretOK, nil
			}
			vm.stackTop = fr.slots
			vm.push(result)
			fr = vm.currentFrame()

		default:
			return vm.runtimeError("Unknown opcode.")
		}
	}
}

func (vm *VM) numericBinary(f func(a, b float64) object.Value) (object.Value, bool) {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		vm.runtimeError("Operands must be numbers.")
		return object.Value{}, false
	}
	b := vm.pop()
	a := vm.pop()
	return f(a.Num, b.Num), true
}

func (vm *VM) add() bool {
	if vm.peek(0).IsString() && vm.peek(1).IsString() {
		b := vm.pop().AsString()
		a := vm.pop().AsString()
		vm.push(object.ObjVal(vm.InternString(a.Chars + b.Chars)))
		return true
	}
	if vm.peek(0).IsNumber() && vm.peek(1).IsNumber() {
		b := vm.pop()
		a := vm.pop()
		vm.push(object.Number(a.Num + b.Num))
		return true
	}
	vm.runtimeError("Operands must be two numbers or two strings.")
	return false
}
