package vm

import (
	"fmt"
	"time"

	"github.com/loxlang/loxvm/internal/object"
)

// nativeClock returns the number of seconds elapsed since the Unix
// epoch, in place of clox's clock_native (which reports process CPU time
// via C's clock()); wall-clock seconds is the closest Go equivalent a
// host embedding can rely on without platform-specific CPU timers.
func nativeClock(args []object.Value) (object.Value, error) {
	return object.Number(float64(time.Now().UnixNano()) / 1e9), nil
}

// nativePrint writes its single argument's printed form to the VM's
// configured writer, with no trailing newline, and returns nil.
func (vm *VM) nativePrint(args []object.Value) (object.Value, error) {
	if len(args) != 1 {
		return object.Nil, fmt.Errorf("print() takes exactly 1 argument but got %d", len(args))
	}
	fmt.Fprint(vm.Stdout, object.Print(args[0]))
	return object.Nil, nil
}

// nativePrintln is print() followed by a newline.
func (vm *VM) nativePrintln(args []object.Value) (object.Value, error) {
	if len(args) != 1 {
		return object.Nil, fmt.Errorf("println() takes exactly 1 argument but got %d", len(args))
	}
	fmt.Fprintln(vm.Stdout, object.Print(args[0]))
	return object.Nil, nil
}
