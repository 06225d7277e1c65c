// Package compiler lowers the expression tree to bytecode. It is a
// visitor over the AST: each Visit method emits the instructions whose
// net effect is to leave the expression's value on the stack.
package compiler

import (
	"github.com/josharian/intern"
	"github.com/sirupsen/logrus"

	"vela/ast"
	"vela/token"
	"vela/value"
)

const (
	// MaxLocals is bounded by the per-frame local slot array.
	MaxLocals = 256

	// MaxUpvals bounds the capture plan of a single function.
	MaxUpvals = 256

	// MaxConstants is bounded by the 2-byte constant-slot operand.
	MaxConstants = 65535
)

// local is one reserved slot in the frame the enclosing function
// executes in. captured marks slots a nested function closed over, so
// scope exit knows to close upvalues.
type local struct {
	name     string
	depth    int
	mutable  bool
	captured bool
}

// upvalEntry is one step of a function's capture plan: either a local
// slot of the directly enclosing function (isLocal) or an index into
// the enclosing function's own upvalues (a transitive capture).
type upvalEntry struct {
	index   int
	isLocal bool
}

// funcCompiler carries the per-function compilation state. Nested fn
// literals push a new funcCompiler whose enclosing link resolution
// walks when a name is not local.
type funcCompiler struct {
	enclosing  *funcCompiler
	proto      *value.ObjFunction
	bytecode   *value.Bytecode
	locals     []local
	scopeDepth int
	upvals     []upvalEntry
}

// Compiler compiles an expression tree into the bytecode of a package,
// allocating prototypes and string constants on the engine's heap.
type Compiler struct {
	heap *value.Heap
	pkg  *value.Package
	curr *funcCompiler

	// const-declared global names; assignment to them is rejected.
	immutableGlobals map[string]bool
}

// New creates a compiler targeting the given package. Global names
// already present on the package (stdlib bindings, earlier compilations
// of the same package) resolve to their existing slots.
func New(heap *value.Heap, pkg *value.Package) *Compiler {
	return &Compiler{
		heap:             heap,
		pkg:              pkg,
		immutableGlobals: make(map[string]bool),
	}
}

// Compile lowers an expression list into the package's bytecode. Each
// top-level expression's value is discarded, so the value stack is
// balanced when the top-level frame returns.
func (c *Compiler) Compile(first ast.Expr) (err error) {
	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case CompileError:
				err = v
			default:
				err = CompileError{Message: logMessage(r)}
			}
		}
	}()

	c.curr = &funcCompiler{bytecode: &c.pkg.Bytecode}

	endIdx := 0
	for expr := first; expr != nil; expr = expr.Next() {
		expr.Accept(c)
		c.emit(OP_POP_STACK, expr.CharIdx())
		endIdx = expr.CharIdx()
	}
	c.emit(OP_RETURN, endIdx)
	return nil
}

func logMessage(r any) string {
	if entry, ok := r.(*logrus.Entry); ok {
		return entry.Message
	}
	if err, ok := r.(error); ok {
		return err.Error()
	}
	if s, ok := r.(string); ok {
		return s
	}
	return "internal compiler error"
}

func (c *Compiler) semanticError(message string, charIdx int) {
	panic(CompileError{Message: message, CharIdx: charIdx, Source: c.pkg.Source})
}

// emit assembles one instruction and appends it to the current
// function's bytecode, pairing every byte with the source character
// index responsible for it.
func (c *Compiler) emit(opcode Opcode, charIdx int, operands ...int) {
	instruction := MakeInstruction(opcode, operands...)
	for _, byt := range instruction {
		c.curr.bytecode.Write(byt, charIdx)
	}
}

// addConstant appends a value to the current function's constant pool
// and returns its slot.
func (c *Compiler) addConstant(v value.Value) int {
	if len(c.curr.bytecode.Constants) >= MaxConstants {
		logrus.Panicln("too many constants in one chunk")
	}
	return c.curr.bytecode.AddConstant(v)
}

// emitConstant appends a constant and emits the OP_CONST pushing it.
func (c *Compiler) emitConstant(v value.Value, charIdx int) {
	c.emit(OP_CONST, charIdx, c.addConstant(v))
}

// emitJump emits a jump instruction with a placeholder distance and
// returns the offset of the opcode byte for later patching.
func (c *Compiler) emitJump(opcode Opcode, charIdx int) int {
	offset := len(c.curr.bytecode.Code)
	c.emit(opcode, charIdx, 0)
	return offset
}

// patchJump back-fills a jump distance so the instruction lands on the
// current end of the bytecode. The distance is measured from the
// opcode byte; the interpreter subtracts the three instruction bytes
// it has already consumed.
func (c *Compiler) patchJump(offset int) {
	dist := len(c.curr.bytecode.Code) - offset
	c.curr.bytecode.Code[offset+1] = byte(dist >> 8)
	c.curr.bytecode.Code[offset+2] = byte(dist)
}

func (c *Compiler) beginScope() {
	c.curr.scopeDepth++
}

// endScope discards the scope's locals. If any of them escaped into a
// closure, their upvalues are closed before the slots are reused.
func (c *Compiler) endScope(charIdx int) {
	captured := false
	kept := len(c.curr.locals)
	for kept > 0 && c.curr.locals[kept-1].depth == c.curr.scopeDepth {
		if c.curr.locals[kept-1].captured {
			captured = true
		}
		kept--
	}
	c.curr.locals = c.curr.locals[:kept]
	c.curr.scopeDepth--

	if captured {
		c.emit(OP_CLOSE_UPVALS, charIdx)
	}
}

// addLocal reserves a frame slot for a declared name.
func (c *Compiler) addLocal(name token.Token, mutable bool) int {
	for i := len(c.curr.locals) - 1; i >= 0; i-- {
		if c.curr.locals[i].depth != c.curr.scopeDepth {
			break
		}
		if c.curr.locals[i].name == name.Lexeme {
			c.semanticError("Variable '"+name.Lexeme+"' already declared in this scope.", name.CharIdx)
		}
	}
	if len(c.curr.locals) >= MaxLocals {
		logrus.Panicln("too many local variables in function")
	}
	c.curr.locals = append(c.curr.locals, local{
		name:    intern.String(name.Lexeme),
		depth:   c.curr.scopeDepth,
		mutable: mutable,
	})
	return len(c.curr.locals) - 1
}

// resolveLocal finds the innermost local slot bound to name, or -1.
func resolveLocal(fc *funcCompiler, name string) int {
	for i := len(fc.locals) - 1; i >= 0; i-- {
		if fc.locals[i].name == name {
			return i
		}
	}
	return -1
}

// addUpval records one capture in a function's plan, deduplicating
// repeated references to the same variable.
func (c *Compiler) addUpval(fc *funcCompiler, index int, isLocal bool) int {
	for i, upval := range fc.upvals {
		if upval.index == index && upval.isLocal == isLocal {
			return i
		}
	}
	if len(fc.upvals) >= MaxUpvals {
		logrus.Panicln("too many captured variables in function")
	}
	fc.upvals = append(fc.upvals, upvalEntry{index: index, isLocal: isLocal})
	return len(fc.upvals) - 1
}

// resolveUpval resolves a name against enclosing functions. A hit in
// the directly enclosing function exposes that local slot as a new
// upvalue; a hit further out forwards the enclosing function's own
// upvalue, so captures chain transitively through every nesting level.
func (c *Compiler) resolveUpval(fc *funcCompiler, name string) int {
	if fc.enclosing == nil {
		return -1
	}

	if slot := resolveLocal(fc.enclosing, name); slot != -1 {
		fc.enclosing.locals[slot].captured = true
		return c.addUpval(fc, slot, true)
	}

	if upval := c.resolveUpval(fc.enclosing, name); upval != -1 {
		return c.addUpval(fc, upval, false)
	}
	return -1
}

// resolveGlobal returns the package slot for a name, binding a fresh
// slot on first mention. The cell itself is grown lazily by the VM, so
// a global read before any assignment yields nil.
func (c *Compiler) resolveGlobal(name string) int {
	if slot := c.pkg.GlobalSlot(name); slot != -1 {
		return slot
	}
	return c.pkg.AddGlobalName(intern.String(name))
}

// compileTarget emits the ptr push for a name used as either a read or
// an assignment target: local, then upvalue, then global.
func (c *Compiler) compileTarget(name token.Token, forWrite bool) {
	if slot := resolveLocal(c.curr, name.Lexeme); slot != -1 {
		if forWrite && !c.curr.locals[slot].mutable {
			c.semanticError("Cannot assign to immutable variable '"+name.Lexeme+"'.", name.CharIdx)
		}
		c.emit(OP_GET_STACK, name.CharIdx, slot)
		return
	}
	if upval := c.resolveUpval(c.curr, name.Lexeme); upval != -1 {
		c.emit(OP_GET_UPVAL, name.CharIdx, upval)
		return
	}
	if forWrite && c.immutableGlobals[name.Lexeme] {
		c.semanticError("Cannot assign to immutable variable '"+name.Lexeme+"'.", name.CharIdx)
	}
	c.emit(OP_GET_GLOBAL, name.CharIdx, c.resolveGlobal(name.Lexeme))
}

func (c *Compiler) VisitLiteral(literal *ast.Literal) any {
	switch literal.Token.TokenType {
	case token.NUM:
		c.emitConstant(value.Num(literal.Token.Literal.(float64)), literal.CharIdx())
	case token.STRING:
		str := c.heap.NewString(literal.Token.Literal.(string))
		c.emitConstant(value.ObjVal(str), literal.CharIdx())
	case token.TRUE:
		c.emitConstant(value.Bool(true), literal.CharIdx())
	case token.FALSE:
		c.emitConstant(value.Bool(false), literal.CharIdx())
	case token.NIL:
		c.emitConstant(value.Nil(), literal.CharIdx())
	}
	return nil
}

func (c *Compiler) VisitVariable(variable *ast.Variable) any {
	c.compileTarget(variable.Name, false)
	return nil
}

func (c *Compiler) VisitVarAssign(assign *ast.VarAssign) any {
	c.compileTarget(assign.Name, true)
	assign.Value.Accept(c)
	c.emit(OP_SET, assign.CharIdx())
	return nil
}

func (c *Compiler) VisitVarDecl(decl *ast.VarDecl) any {
	// Reserve the slot before compiling the initializer so a fn value
	// can capture its own binding and call itself recursively.
	if c.curr.enclosing != nil || c.curr.scopeDepth > 0 {
		slot := c.addLocal(decl.Name, decl.Mutable)
		c.emit(OP_GET_STACK, decl.CharIdx(), slot)
	} else {
		slot := c.resolveGlobal(decl.Name.Lexeme)
		if !decl.Mutable {
			c.immutableGlobals[intern.String(decl.Name.Lexeme)] = true
		}
		c.emit(OP_GET_GLOBAL, decl.CharIdx(), slot)
	}

	decl.Value.Accept(c)
	c.emit(OP_SET, decl.CharIdx())
	return nil
}

func (c *Compiler) VisitSubscript(subscript *ast.Subscript) any {
	subscript.Target.Accept(c)
	name := c.heap.NewString(subscript.Name.Lexeme)
	c.emit(OP_GET_IDX, subscript.CharIdx(), c.addConstant(value.ObjVal(name)))
	return nil
}

func (c *Compiler) VisitSubscriptSet(subscriptSet *ast.SubscriptSet) any {
	subscriptSet.Target.Accept(c)
	name := c.heap.NewString(subscriptSet.Name.Lexeme)
	c.emit(OP_GET_IDX, subscriptSet.CharIdx(), c.addConstant(value.ObjVal(name)))
	subscriptSet.Value.Accept(c)
	c.emit(OP_SET, subscriptSet.CharIdx())
	return nil
}

func (c *Compiler) VisitCall(call *ast.Call) any {
	call.Callee.Accept(c)

	argc := 0
	for arg := call.FirstArg; arg != nil; arg = arg.Next() {
		arg.Accept(c)
		argc++
	}
	c.emit(OP_CALL, call.CharIdx(), argc)
	return nil
}

func (c *Compiler) VisitUnary(unary *ast.Unary) any {
	unary.Value.Accept(c)
	switch unary.Op.TokenType {
	case token.SUB:
		c.emit(OP_NEGATE, unary.CharIdx())
	case token.BANG:
		c.emit(OP_NOT, unary.CharIdx())
	}
	return nil
}

func (c *Compiler) VisitBinary(binary *ast.Binary) any {
	// Left expression is compiled first to ensure correct evaluation order
	binary.Left.Accept(c)
	binary.Right.Accept(c)

	charIdx := binary.CharIdx()
	switch binary.Op.TokenType {
	case token.ADD:
		c.emit(OP_ADD, charIdx)
	case token.SUB:
		c.emit(OP_SUB, charIdx)
	case token.MULT:
		c.emit(OP_MUL, charIdx)
	case token.DIV:
		c.emit(OP_DIV, charIdx)
	case token.MOD:
		c.emit(OP_MOD, charIdx)

	case token.EQUAL_EQUAL:
		c.emit(OP_EQUAL, charIdx)
	case token.NOT_EQUAL:
		c.emit(OP_EQUAL, charIdx)
		c.emit(OP_NOT, charIdx)
	case token.LARGER:
		c.emit(OP_GREATER, charIdx)
	case token.LESS:
		c.emit(OP_LESS, charIdx)
	case token.LARGER_EQUAL:
		c.emit(OP_LESS, charIdx)
		c.emit(OP_NOT, charIdx)
	case token.LESS_EQUAL:
		c.emit(OP_GREATER, charIdx)
		c.emit(OP_NOT, charIdx)
	}
	return nil
}

func (c *Compiler) VisitIf(ifExpr *ast.If) any {
	ifExpr.Condition.Accept(c)
	jumpFalse := c.emitJump(OP_JUMP_FALSE, ifExpr.CharIdx())

	ifExpr.Then.Accept(c)
	jumpEnd := c.emitJump(OP_JUMP, ifExpr.CharIdx())

	c.patchJump(jumpFalse)
	if ifExpr.Else != nil {
		ifExpr.Else.Accept(c)
	} else {
		// Without an else arm the expression yields nil on a false
		// condition.
		c.emitConstant(value.Nil(), ifExpr.CharIdx())
	}
	c.patchJump(jumpEnd)
	return nil
}

func (c *Compiler) VisitBlock(block *ast.Block) any {
	c.beginScope()

	if block.First == nil {
		c.emitConstant(value.Nil(), block.CharIdx())
	}
	for expr := block.First; expr != nil; expr = expr.Next() {
		expr.Accept(c)
		// The block's value is the value of its last expression;
		// everything before it is discarded.
		if expr.Next() != nil {
			c.emit(OP_POP_STACK, expr.CharIdx())
		}
	}

	c.endScope(block.CharIdx())
	return nil
}

func (c *Compiler) VisitImport(importExpr *ast.Import) any {
	name := c.heap.NewString(importExpr.PackageName.Lexeme)
	c.emit(OP_IMPORT, importExpr.CharIdx(), c.addConstant(value.ObjVal(name)))
	return nil
}

func (c *Compiler) VisitFunction(fn *ast.Function) any {
	proto := c.heap.NewFunction(len(fn.Params))
	inner := &funcCompiler{
		enclosing: c.curr,
		proto:     proto,
		bytecode:  &proto.Bytecode,
	}

	// The call protocol deposits the arguments into local slots
	// 0..arity, so the parameters are the function's first locals.
	for _, param := range fn.Params {
		inner.locals = append(inner.locals, local{
			name:    intern.String(param.Lexeme),
			mutable: true,
		})
	}

	c.curr = inner
	fn.Body.Accept(c)

	captured := false
	for _, l := range inner.locals {
		if l.captured {
			captured = true
			break
		}
	}
	if captured {
		c.emit(OP_CLOSE_UPVALS, fn.CharIdx())
	}
	c.emit(OP_RETURN, fn.CharIdx())
	c.curr = inner.enclosing

	// The prototype is a constant of the enclosing function; CLOSURE
	// wraps it with the capture plan at runtime.
	c.emit(OP_CONST, fn.CharIdx(), c.addConstant(value.ObjVal(proto)))
	c.emit(OP_CLOSURE, fn.CharIdx(), len(inner.upvals))
	for _, upval := range inner.upvals {
		c.curr.bytecode.Write(byte(upval.index>>8), fn.CharIdx())
		c.curr.bytecode.Write(byte(upval.index), fn.CharIdx())
		isLocal := byte(0)
		if upval.isLocal {
			isLocal = 1
		}
		c.curr.bytecode.Write(isLocal, fn.CharIdx())
	}
	return nil
}
