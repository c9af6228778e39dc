package bytecode

import (
	"fmt"
	"io"

	"github.com/loxlang/loxvm/internal/object"
)

// Disassembler writes a readable assembly-style dump of chunks, purely
// as a debugging aid; nothing in the compiler or VM depends on it.
type Disassembler struct {
	w       io.Writer
	visited map[*object.Chunk]bool
}

// NewDisassembler returns a Disassembler writing to w.
func NewDisassembler(w io.Writer) *Disassembler {
	return &Disassembler{w: w, visited: make(map[*object.Chunk]bool)}
}

// Disassemble dumps a named chunk and, recursively, every nested
// function prototype found in its constant pool.
func (d *Disassembler) Disassemble(name string, chunk *object.Chunk) {
	if chunk == nil || d.visited[chunk] {
		return
	}
	d.visited[chunk] = true
	fmt.Fprintf(d.w, "== %s ==\n", name)
	for offset := 0; offset < len(chunk.Code); {
		offset = d.instruction(chunk, offset)
	}
	for _, c := range chunk.Constants {
		if c.IsObj() {
			if fn, ok := c.Obj.(*object.Function); ok {
				n := "<script>"
				if fn.Name != nil {
					n = fn.Name.Chars
				}
				d.Disassemble(n, fn.Chunk)
			}
		}
	}
}

func (d *Disassembler) instruction(chunk *object.Chunk, offset int) int {
	line := chunk.LineAt(offset)
	fmt.Fprintf(d.w, "%04d %4d ", offset, line)
	op := OpCode(chunk.Code[offset])
	switch op {
	case OpConstant, OpGetGlobal, OpSetGlobal, OpDefineGlobal,
		OpGetProperty, OpSetProperty, OpClass, OpMethod, OpGetSuper:
		return d.constantInstr(chunk, op, offset)
	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue, OpCall:
		return d.byteInstr(chunk, op, offset)
	case OpInvoke, OpSuperInvoke:
		return d.invokeInstr(chunk, op, offset)
	case OpJump, OpJumpIfFalse, OpLoop:
		return d.jumpInstr(chunk, op, offset)
	case OpClosure:
		return d.closureInstr(chunk, offset)
	default:
		fmt.Fprintf(d.w, "%s\n", Name(op))
		return offset + 1
	}
}

func (d *Disassembler) constantInstr(chunk *object.Chunk, op OpCode, offset int) int {
	idx := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
	fmt.Fprintf(d.w, "%-18s %4d '%s'\n", Name(op), idx, object.Print(chunk.Constants[idx]))
	return offset + 3
}

func (d *Disassembler) byteInstr(chunk *object.Chunk, op OpCode, offset int) int {
	slot := chunk.Code[offset+1]
	fmt.Fprintf(d.w, "%-18s %4d\n", Name(op), slot)
	return offset + 2
}

func (d *Disassembler) invokeInstr(chunk *object.Chunk, op OpCode, offset int) int {
	idx := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
	argc := chunk.Code[offset+3]
	fmt.Fprintf(d.w, "%-18s (%d args) %4d '%s'\n", Name(op), argc, idx, object.Print(chunk.Constants[idx]))
	return offset + 4
}

func (d *Disassembler) jumpInstr(chunk *object.Chunk, op OpCode, offset int) int {
	jump := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
	sign := 1
	if op == OpLoop {
		sign = -1
	}
	fmt.Fprintf(d.w, "%-18s %4d -> %d\n", Name(op), offset, offset+3+sign*jump)
	return offset + 3
}

func (d *Disassembler) closureInstr(chunk *object.Chunk, offset int) int {
	idx := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
	fmt.Fprintf(d.w, "%-18s %4d '%s'\n", Name(OpClosure), idx, object.Print(chunk.Constants[idx]))
	offset += 3
	fn := chunk.Constants[idx].Obj.(*object.Function)
	for i := 0; i < fn.UpvalueCount; i++ {
		isLocal := chunk.Code[offset]
		index := chunk.Code[offset+1]
		kind := "upvalue"
		if isLocal == 1 {
			kind = "local"
		}
		fmt.Fprintf(d.w, "%04d      |                     %s %d\n", offset, kind, index)
		offset += 2
	}
	return offset
}
