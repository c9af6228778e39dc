// Package compiler implements Lox's single-pass Pratt parser: it
// consumes tokens directly from the lexer and emits bytecode into a
// Chunk as it goes, with no intermediate AST. Nested function, method
// and class contexts are tracked on an explicit compiler stack so the
// garbage collector can walk in-progress compilation roots.
package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/loxlang/loxvm/internal/bytecode"
	"github.com/loxlang/loxvm/internal/lexer"
	"github.com/loxlang/loxvm/internal/object"
	"github.com/loxlang/loxvm/internal/token"
)

// Interner is the minimal string-interning surface the compiler needs;
// the VM satisfies it so every identifier/literal constant the
// compiler allocates is immediately visible to (and tracked by) the GC.
type Interner interface {
	InternString(s string) *object.String
	TrackObject(o object.Obj)

	// PushCompilerRoot/PopCompilerRoot let the collector see in-progress
	// function prototypes as roots: they aren't yet reachable from any
	// VM stack slot or global, but an allocation triggered while
	// compiling a nested function must not sweep it away.
	PushCompilerRoot(fn *object.Function)
	PopCompilerRoot()
}

type funcType int

const (
	typeFunction funcType = iota
	typeInitializer
	typeMethod
	typeScript
)

type local struct {
	name       string
	depth      int
	isCaptured bool
}

type classCompiler struct {
	enclosing     *classCompiler
	hasSuperclass bool
}

// fnCompiler tracks the state needed to compile one function body:
// its locals, upvalue descriptors, and the chunk being emitted into.
type fnCompiler struct {
	enclosing *fnCompiler
	fn        *object.Function
	fnType    funcType

	locals     []local
	scopeDepth int
	upvalues   []object.UpvalueDesc
}

// Compiler drives a single top-to-bottom compilation of one source
// string into a top-level script Function.
type Compiler struct {
	lex     *lexer.Lexer
	interns Interner

	current   *fnCompiler
	class     *classCompiler
	breaks    *breakTargets
	prev, cur token.Token

	hadError  bool
	panicMode bool
	errs      []error
}

// CompileError is one syntax error found during a compile, tagged with
// its source line.
type CompileError struct {
	Line    int
	Message string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("[line %d] Error: %s", e.Line, e.Message)
}

// Compile compiles source into a top-level script Function, or returns
// a non-nil error if the source has syntax errors; its message is the
// text of every *CompileError found, one per line. interns is used to intern every
// identifier/string literal the compiler allocates.
func Compile(source string, interns Interner) (*object.Function, error) {
	c := &Compiler{lex: lexer.New(source), interns: interns}
	c.current = newFnCompiler(nil, typeScript, interns.InternString(""))
	interns.PushCompilerRoot(c.current.fn)

	c.advance()
	for !c.match(token.EOF) {
		c.declaration()
	}
	fn := c.endCompiler()
	interns.PopCompilerRoot()
	interns.TrackObject(fn)

	if c.hadError {
		var b strings.Builder
		for i, e := range c.errs {
			if i > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(e.Error())
		}
		return nil, fmt.Errorf("%s", b.String())
	}
	return fn, nil
}

func newFnCompiler(enclosing *fnCompiler, t funcType, name *object.String) *fnCompiler {
	fn := &object.Function{Chunk: object.NewChunk(), Name: name}
	fc := &fnCompiler{enclosing: enclosing, fn: fn, fnType: t}
	// Slot 0 is reserved for the receiver in methods/initializers, and
	// for the function itself (unused) at top level/plain functions.
	slotName := ""
	if t == typeMethod || t == typeInitializer {
		slotName = "this"
	}
	fc.locals = append(fc.locals, local{name: slotName, depth: 0})
	return fc
}

// --- token stream plumbing -------------------------------------------------

func (c *Compiler) advance() {
	c.prev = c.cur
	for {
		c.cur = c.lex.Next()
		if c.cur.Type != token.Error {
			break
		}
		c.errorAtCurrent(c.cur.Message)
	}
}

func (c *Compiler) check(t token.Type) bool { return c.cur.Type == t }

func (c *Compiler) match(t token.Type) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t token.Type, msg string) {
	if c.cur.Type == t {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.cur, msg) }
func (c *Compiler) error(msg string)          { c.errorAt(c.prev, msg) }

func (c *Compiler) errorAt(t token.Token, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true
	c.errs = append(c.errs, &CompileError{Line: t.Line, Message: msg})
}

// synchronize discards tokens until a likely statement boundary, so a
// single syntax error doesn't cascade into a wall of spurious ones.
func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.cur.Type != token.EOF {
		if c.prev.Type == token.Semicolon {
			return
		}
		switch c.cur.Type {
		case token.Class, token.Fun, token.Var, token.For, token.If, token.While, token.Return:
			return
		}
		c.advance()
	}
}

// --- emission ---------------------------------------------------------

func (c *Compiler) chunk() *object.Chunk { return c.current.fn.Chunk }

func (c *Compiler) emitByte(b byte) { c.chunk().Write(b, c.prev.Line) }
func (c *Compiler) emitOp(op bytecode.OpCode) { c.emitByte(byte(op)) }
func (c *Compiler) emitBytes(b1, b2 byte) {
	c.emitByte(b1)
	c.emitByte(b2)
}
func (c *Compiler) emitOpByte(op bytecode.OpCode, b byte) { c.emitBytes(byte(op), b) }
func (c *Compiler) emitU16(op bytecode.OpCode, v uint16) {
	c.emitByte(byte(op))
	c.emitByte(byte(v >> 8))
	c.emitByte(byte(v))
}

func (c *Compiler) makeConstant(v object.Value) uint16 {
	idx := c.chunk().AddConstant(v)
	if idx > 0xFFFF {
		c.error("Too many constants in one chunk.")
		return 0
	}
	return uint16(idx)
}

func (c *Compiler) emitConstant(v object.Value) { c.emitU16(bytecode.OpConstant, c.makeConstant(v)) }

func (c *Compiler) emitJump(op bytecode.OpCode) int {
	c.emitByte(byte(op))
	c.emitByte(0xff)
	c.emitByte(0xff)
	return len(c.chunk().Code) - 2
}

func (c *Compiler) patchJump(offset int) {
	jump := len(c.chunk().Code) - offset - 2
	if jump > 0xFFFF {
		c.error("Too much code to jump over.")
	}
	c.chunk().Code[offset] = byte(jump >> 8)
	c.chunk().Code[offset+1] = byte(jump)
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emitByte(byte(bytecode.OpLoop))
	offset := len(c.chunk().Code) - loopStart + 2
	if offset > 0xFFFF {
		c.error("Loop body too large.")
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset))
}

func (c *Compiler) emitReturn() {
	if c.current.fnType == typeInitializer {
		c.emitOpByte(bytecode.OpGetLocal, 0)
	} else {
		c.emitOp(bytecode.OpNil)
	}
	c.emitOp(bytecode.OpReturn)
}

func (c *Compiler) endCompiler() *object.Function {
	c.emitReturn()
	fn := c.current.fn
	c.current = c.current.enclosing
	return fn
}

// --- scopes & locals ----------------------------------------------------

func (c *Compiler) beginScope() { c.current.scopeDepth++ }

func (c *Compiler) endScope() {
	c.current.scopeDepth--
	for len(c.current.locals) > 0 && c.current.locals[len(c.current.locals)-1].depth > c.current.scopeDepth {
		last := c.current.locals[len(c.current.locals)-1]
		if last.isCaptured {
			c.emitOp(bytecode.OpCloseUpvalue)
		} else {
			c.emitOp(bytecode.OpPop)
		}
		c.current.locals = c.current.locals[:len(c.current.locals)-1]
	}
}

func (c *Compiler) identifierConstant(name string) uint16 {
	return c.makeConstant(object.ObjVal(c.interns.InternString(name)))
}

func (c *Compiler) addLocal(name string) {
	if len(c.current.locals) >= 256 {
		c.error("Too many local variables in function.")
		return
	}
	c.current.locals = append(c.current.locals, local{name: name, depth: -1})
}

func (c *Compiler) declareVariable(name string) {
	if c.current.scopeDepth == 0 {
		return
	}
	for i := len(c.current.locals) - 1; i >= 0; i-- {
		l := c.current.locals[i]
		if l.depth != -1 && l.depth < c.current.scopeDepth {
			break
		}
		if l.name == name {
			c.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

func (c *Compiler) markInitialized() {
	if c.current.scopeDepth == 0 {
		return
	}
	c.current.locals[len(c.current.locals)-1].depth = c.current.scopeDepth
}

func resolveLocal(fc *fnCompiler, name string) int {
	for i := len(fc.locals) - 1; i >= 0; i-- {
		if fc.locals[i].name == name {
			if fc.locals[i].depth == -1 {
				return -2 // used before its own initializer finished
			}
			return i
		}
	}
	return -1
}

func addUpvalue(fc *fnCompiler, index uint8, isLocal bool) int {
	for i, uv := range fc.upvalues {
		if uv.Index == index && uv.IsLocal == isLocal {
			return i
		}
	}
	if len(fc.upvalues) >= 256 {
		return 0
	}
	fc.upvalues = append(fc.upvalues, object.UpvalueDesc{IsLocal: isLocal, Index: index})
	fc.fn.UpvalueCount = len(fc.upvalues)
	return len(fc.upvalues) - 1
}

func resolveUpvalue(fc *fnCompiler, name string) int {
	if fc.enclosing == nil {
		return -1
	}
	if local := resolveLocal(fc.enclosing, name); local >= 0 {
		fc.enclosing.locals[local].isCaptured = true
		return addUpvalue(fc, uint8(local), true)
	}
	if up := resolveUpvalue(fc.enclosing, name); up >= 0 {
		return addUpvalue(fc, uint8(up), false)
	}
	return -1
}

// --- declarations & statements -----------------------------------------

func (c *Compiler) declaration() {
	switch {
	case c.match(token.Class):
		c.classDeclaration()
	case c.match(token.Fun):
		c.funDeclaration()
	case c.match(token.Var):
		c.varDeclaration()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) classDeclaration() {
	c.consume(token.Identifier, "Expect class name.")
	name := c.prev.Lexeme
	nameConst := c.identifierConstant(name)
	c.declareVariable(name)

	c.emitU16(bytecode.OpClass, nameConst)
	c.defineVariable(nameConst)

	cc := &classCompiler{enclosing: c.class}
	c.class = cc

	if c.match(token.Less) {
		c.consume(token.Identifier, "Expect superclass name.")
		c.variableExpr(false)
		if c.prev.Lexeme == name {
			c.error("A class can't inherit from itself.")
		}
		c.beginScope()
		c.addLocal("super")
		c.markInitialized()
		c.namedVariable(name, false)
		c.emitOp(bytecode.OpInherit)
		cc.hasSuperclass = true
	}

	c.namedVariable(name, false)
	c.consume(token.LeftBrace, "Expect '{' before class body.")
	for !c.check(token.RightBrace) && !c.check(token.EOF) {
		c.method()
	}
	c.consume(token.RightBrace, "Expect '}' after class body.")
	c.emitOp(bytecode.OpPop)

	if cc.hasSuperclass {
		c.endScope()
	}
	c.class = cc.enclosing
}

func (c *Compiler) method() {
	c.consume(token.Identifier, "Expect method name.")
	name := c.prev.Lexeme
	nameConst := c.identifierConstant(name)

	t := typeMethod
	if name == "init" {
		t = typeInitializer
	}
	c.function(t, name)
	c.emitU16(bytecode.OpMethod, nameConst)
}

func (c *Compiler) funDeclaration() {
	c.consume(token.Identifier, "Expect function name.")
	name := c.prev.Lexeme
	c.declareVariable(name)
	global := uint16(0)
	if c.current.scopeDepth == 0 {
		global = c.identifierConstant(name)
	}
	c.markInitialized()
	c.function(typeFunction, name)
	c.defineVariable(global)
}

func (c *Compiler) function(t funcType, name string) {
	c.current = newFnCompiler(c.current, t, c.interns.InternString(name))
	c.interns.PushCompilerRoot(c.current.fn)
	c.beginScope()
	enclosingBreaks := c.breaks
	c.breaks = nil

	c.consume(token.LeftParen, "Expect '(' after function name.")
	if !c.check(token.RightParen) {
		for {
			c.current.fn.Arity++
			if c.current.fn.Arity > 255 {
				c.error("Can't have more than 255 parameters.")
			}
			c.consume(token.Identifier, "Expect parameter name.")
			c.declareVariable(c.prev.Lexeme)
			c.markInitialized()
			if !c.match(token.Comma) {
				break
			}
		}
	}
	c.consume(token.RightParen, "Expect ')' after parameters.")
	c.consume(token.LeftBrace, "Expect '{' before function body.")
	c.block()
	c.breaks = enclosingBreaks

	fc := c.current
	fn := c.endCompiler()
	c.interns.PopCompilerRoot()
	c.interns.TrackObject(fn)
	idx := c.makeConstant(object.ObjVal(fn))
	c.emitByte(byte(bytecode.OpClosure))
	c.emitByte(byte(idx >> 8))
	c.emitByte(byte(idx))
	for _, uv := range fc.upvalues {
		if uv.IsLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(uv.Index)
	}
}

func (c *Compiler) varDeclaration() {
	c.consume(token.Identifier, "Expect variable name.")
	name := c.prev.Lexeme
	c.declareVariable(name)

	global := uint16(0)
	if c.current.scopeDepth == 0 {
		global = c.identifierConstant(name)
	}

	if c.match(token.Equal) {
		c.expression()
	} else {
		c.emitOp(bytecode.OpNil)
	}
	c.consume(token.Semicolon, "Expect ';' after variable declaration.")

	if c.current.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitU16(bytecode.OpDefineGlobal, global)
}

func (c *Compiler) defineVariable(global uint16) {
	if c.current.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitU16(bytecode.OpDefineGlobal, global)
}

func (c *Compiler) statement() {
	switch {
	case c.match(token.If):
		c.ifStatement()
	case c.match(token.While):
		c.whileStatement()
	case c.match(token.For):
		c.forStatement()
	case c.match(token.Return):
		c.returnStatement()
	case c.match(token.Break):
		c.breakStatement()
	case c.match(token.LeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	for !c.check(token.RightBrace) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RightBrace, "Expect '}' after block.")
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(token.Semicolon, "Expect ';' after expression.")
	c.emitOp(bytecode.OpPop)
}

func (c *Compiler) ifStatement() {
	c.consume(token.LeftParen, "Expect '(' after 'if'.")
	c.expression()
	c.consume(token.RightParen, "Expect ')' after condition.")

	thenJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emitOp(bytecode.OpPop)
	c.statement()

	elseJump := c.emitJump(bytecode.OpJump)
	c.patchJump(thenJump)
	c.emitOp(bytecode.OpPop)

	if c.match(token.Else) {
		c.statement()
	}
	c.patchJump(elseJump)
}

// breakTargets accumulates the jump offsets emitted by `break` inside
// the loop currently being compiled, patched once the loop's end is known.
type breakTargets struct {
	enclosing *breakTargets
	jumps     []int
}

func (c *Compiler) whileStatement() {
	loopStart := len(c.chunk().Code)
	c.consume(token.LeftParen, "Expect '(' after 'while'.")
	c.expression()
	c.consume(token.RightParen, "Expect ')' after condition.")

	exitJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emitOp(bytecode.OpPop)

	bt := &breakTargets{enclosing: c.breaks}
	c.breaks = bt
	c.statement()
	c.breaks = bt.enclosing

	c.emitLoop(loopStart)
	c.patchJump(exitJump)
	c.emitOp(bytecode.OpPop)
	for _, j := range bt.jumps {
		c.patchJump(j)
	}
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(token.LeftParen, "Expect '(' after 'for'.")
	switch {
	case c.match(token.Semicolon):
		// no initializer
	case c.match(token.Var):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := len(c.chunk().Code)
	exitJump := -1
	if !c.match(token.Semicolon) {
		c.expression()
		c.consume(token.Semicolon, "Expect ';' after loop condition.")
		exitJump = c.emitJump(bytecode.OpJumpIfFalse)
		c.emitOp(bytecode.OpPop)
	}

	if !c.match(token.RightParen) {
		bodyJump := c.emitJump(bytecode.OpJump)
		incrementStart := len(c.chunk().Code)
		c.expression()
		c.emitOp(bytecode.OpPop)
		c.consume(token.RightParen, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	bt := &breakTargets{enclosing: c.breaks}
	c.breaks = bt
	c.statement()
	c.breaks = bt.enclosing

	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(bytecode.OpPop)
	}
	for _, j := range bt.jumps {
		c.patchJump(j)
	}
	c.endScope()
}

func (c *Compiler) returnStatement() {
	if c.current.fnType == typeScript {
		c.error("Can't return from top-level code.")
	}
	if c.match(token.Semicolon) {
		c.emitReturn()
		return
	}
	if c.current.fnType == typeInitializer {
		c.error("Can't return a value from an initializer.")
	}
	c.expression()
	c.consume(token.Semicolon, "Expect ';' after return value.")
	c.emitOp(bytecode.OpReturn)
}

func (c *Compiler) breakStatement() {
	if c.breaks == nil {
		c.error("Can't use 'break' outside of a loop.")
	}
	c.consume(token.Semicolon, "Expect ';' after 'break'.")
	j := c.emitJump(bytecode.OpJump)
	if c.breaks != nil {
		c.breaks.jumps = append(c.breaks.jumps, j)
	}
}

// --- expressions --------------------------------------------------------

type precedence int

const (
	precNone       precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * /
	precUnary                 // ! -
	precCall                  // . ()
	precPrimary
)

type parseFn func(c *Compiler, canAssign bool)

type rule struct {
	prefix, infix parseFn
	prec          precedence
}

var rules map[token.Type]rule

func init() {
	rules = map[token.Type]rule{
		token.LeftParen:    {(*Compiler).grouping, (*Compiler).call, precCall},
		token.Dot:          {nil, (*Compiler).dot, precCall},
		token.Minus:        {(*Compiler).unary, (*Compiler).binary, precTerm},
		token.Plus:         {nil, (*Compiler).binary, precTerm},
		token.Slash:        {nil, (*Compiler).binary, precFactor},
		token.Star:         {nil, (*Compiler).binary, precFactor},
		token.Bang:         {(*Compiler).unary, nil, precNone},
		token.BangEqual:    {nil, (*Compiler).binary, precEquality},
		token.EqualEqual:   {nil, (*Compiler).binary, precEquality},
		token.Greater:      {nil, (*Compiler).binary, precComparison},
		token.GreaterEqual: {nil, (*Compiler).binary, precComparison},
		token.Less:         {nil, (*Compiler).binary, precComparison},
		token.LessEqual:    {nil, (*Compiler).binary, precComparison},
		token.Identifier:   {(*Compiler).variableExpr, nil, precNone},
		token.String:       {(*Compiler).string, nil, precNone},
		token.Number:       {(*Compiler).number, nil, precNone},
		token.And:          {nil, (*Compiler).and, precAnd},
		token.Or:           {nil, (*Compiler).or, precOr},
		token.False:        {(*Compiler).literal, nil, precNone},
		token.Nil:          {(*Compiler).literal, nil, precNone},
		token.True:         {(*Compiler).literal, nil, precNone},
		token.This:         {(*Compiler).this, nil, precNone},
		token.Super:        {(*Compiler).super, nil, precNone},
	}
}

func (c *Compiler) expression() { c.parsePrecedence(precAssignment) }

func (c *Compiler) parsePrecedence(p precedence) {
	c.advance()
	prefix := rules[c.prev.Type].prefix
	if prefix == nil {
		c.error("Expect expression.")
		return
	}
	canAssign := p <= precAssignment
	prefix(c, canAssign)

	for p <= rules[c.cur.Type].prec {
		c.advance()
		infix := rules[c.prev.Type].infix
		infix(c, canAssign)
	}

	if canAssign && c.match(token.Equal) {
		c.error("Invalid assignment target.")
	}
}

func (c *Compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(token.RightParen, "Expect ')' after expression.")
}

func (c *Compiler) unary(canAssign bool) {
	op := c.prev.Type
	c.parsePrecedence(precUnary)
	switch op {
	case token.Bang:
		c.emitOp(bytecode.OpNot)
	case token.Minus:
		c.emitOp(bytecode.OpNegate)
	}
}

func (c *Compiler) binary(canAssign bool) {
	op := c.prev.Type
	r := rules[op]
	c.parsePrecedence(r.prec + 1)
	switch op {
	case token.BangEqual:
		c.emitOp(bytecode.OpEqual)
		c.emitOp(bytecode.OpNot)
	case token.EqualEqual:
		c.emitOp(bytecode.OpEqual)
	case token.Greater:
		c.emitOp(bytecode.OpGreater)
	case token.GreaterEqual:
		c.emitOp(bytecode.OpLess)
		c.emitOp(bytecode.OpNot)
	case token.Less:
		c.emitOp(bytecode.OpLess)
	case token.LessEqual:
		c.emitOp(bytecode.OpGreater)
		c.emitOp(bytecode.OpNot)
	case token.Plus:
		c.emitOp(bytecode.OpAdd)
	case token.Minus:
		c.emitOp(bytecode.OpSubtract)
	case token.Star:
		c.emitOp(bytecode.OpMultiply)
	case token.Slash:
		c.emitOp(bytecode.OpDivide)
	}
}

func (c *Compiler) and(canAssign bool) {
	endJump := c.emitJump(bytecode.OpJumpIfFalse)
	c.emitOp(bytecode.OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or(canAssign bool) {
	elseJump := c.emitJump(bytecode.OpJumpIfFalse)
	endJump := c.emitJump(bytecode.OpJump)
	c.patchJump(elseJump)
	c.emitOp(bytecode.OpPop)
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func (c *Compiler) literal(canAssign bool) {
	switch c.prev.Type {
	case token.False:
		c.emitOp(bytecode.OpFalse)
	case token.Nil:
		c.emitOp(bytecode.OpNil)
	case token.True:
		c.emitOp(bytecode.OpTrue)
	}
}

func (c *Compiler) number(canAssign bool) {
	lexeme := lexer.NumberLexeme(c.prev.Lexeme)
	n, err := strconv.ParseFloat(lexeme, 64)
	if err != nil {
		c.error("Invalid number literal.")
		return
	}
	c.emitConstant(object.Number(n))
}

func (c *Compiler) string(canAssign bool) {
	raw := c.prev.Lexeme
	s := raw[1 : len(raw)-1] // strip quotes; Lox strings have no escapes
	c.emitConstant(object.ObjVal(c.interns.InternString(s)))
}

func (c *Compiler) variableExpr(canAssign bool) { c.namedVariable(c.prev.Lexeme, canAssign) }

func (c *Compiler) namedVariable(name string, canAssign bool) {
	var getOp, setOp bytecode.OpCode
	var arg int

	if slot := resolveLocal(c.current, name); slot == -2 {
		c.error("Can't read local variable in its own initializer.")
		return
	} else if slot != -1 {
		getOp, setOp, arg = bytecode.OpGetLocal, bytecode.OpSetLocal, slot
	} else if slot := resolveUpvalue(c.current, name); slot != -1 {
		getOp, setOp, arg = bytecode.OpGetUpvalue, bytecode.OpSetUpvalue, slot
	} else {
		arg = int(c.identifierConstant(name))
		getOp, setOp = bytecode.OpGetGlobal, bytecode.OpSetGlobal
	}

	if canAssign && c.match(token.Equal) {
		c.expression()
		if getOp == bytecode.OpGetGlobal {
			c.emitU16(setOp, uint16(arg))
		} else {
			c.emitOpByte(setOp, byte(arg))
		}
		return
	}
	if getOp == bytecode.OpGetGlobal {
		c.emitU16(getOp, uint16(arg))
	} else {
		c.emitOpByte(getOp, byte(arg))
	}
}

func (c *Compiler) call(canAssign bool) {
	argc := c.argumentList()
	c.emitOpByte(bytecode.OpCall, byte(argc))
}

func (c *Compiler) argumentList() int {
	argc := 0
	if !c.check(token.RightParen) {
		for {
			c.expression()
			if argc == 255 {
				c.error("Can't have more than 255 arguments.")
			}
			argc++
			if !c.match(token.Comma) {
				break
			}
		}
	}
	c.consume(token.RightParen, "Expect ')' after arguments.")
	return argc
}

func (c *Compiler) dot(canAssign bool) {
	c.consume(token.Identifier, "Expect property name after '.'.")
	name := c.identifierConstant(c.prev.Lexeme)

	if canAssign && c.match(token.Equal) {
		c.expression()
		c.emitU16(bytecode.OpSetProperty, name)
		return
	}
	if c.match(token.LeftParen) {
		argc := c.argumentList()
		c.emitByte(byte(bytecode.OpInvoke))
		c.emitByte(byte(name >> 8))
		c.emitByte(byte(name))
		c.emitByte(byte(argc))
		return
	}
	c.emitU16(bytecode.OpGetProperty, name)
}

func (c *Compiler) this(canAssign bool) {
	if c.class == nil {
		c.error("Can't use 'this' outside of a class.")
		return
	}
	c.variableExpr(false)
}

func (c *Compiler) super(canAssign bool) {
	if c.class == nil {
		c.error("Can't use 'super' outside of a class.")
	} else if !c.class.hasSuperclass {
		c.error("Can't use 'super' in a class with no superclass.")
	}
	c.consume(token.Dot, "Expect '.' after 'super'.")
	c.consume(token.Identifier, "Expect superclass method name.")
	name := c.identifierConstant(c.prev.Lexeme)

	c.namedVariable("this", false)
	if c.match(token.LeftParen) {
		argc := c.argumentList()
		c.namedVariable("super", false)
		c.emitByte(byte(bytecode.OpSuperInvoke))
		c.emitByte(byte(name >> 8))
		c.emitByte(byte(name))
		c.emitByte(byte(argc))
		return
	}
	c.namedVariable("super", false)
	c.emitU16(bytecode.OpGetSuper, name)
}
