package vm

import (
	"fmt"
	"strings"
)

// RuntimeError carries the call stack at the moment a VM operation
// failed, formatted the way clox's runtime_error prints to stderr: the
// message, then each frame from innermost to outermost.
type RuntimeError struct {
	Message string
	Stack   []string
}

func (e *RuntimeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, line := range e.Stack {
		b.WriteByte('\n')
		b.WriteString(line)
	}
	return b.String()
}

// runtimeError formats a runtime failure, captures the current call
// stack, resets the VM's stack (so a REPL-style caller can recover),
// and returns the tuple Interpret/run expect.
func (vm *VM) runtimeError(format string, args ...interface{}) (InterpretResult, error) {
	msg := fmt.Sprintf(format, args...)

	var stack []string
	for i := vm.frameCount - 1; i >= 0; i-- {
		fr := &vm.frames[i]
		fn := fr.closure.Function
		line := fn.Chunk.LineAt(fr.lastOp)
		name := "script"
		if fn.Name != nil && fn.Name.Chars != "" {
			name = fn.Name.Chars + "()"
		}
		stack = append(stack, fmt.Sprintf("[line %d] in %s", line, name))
	}

	err := &RuntimeError{Message: msg, Stack: stack}
	vm.lastErr = err
	vm.resetStack()
	return InterpretRuntimeError, err
}
