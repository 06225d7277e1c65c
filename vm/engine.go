// Package vm is the runtime environment where Vela bytecode gets
// executed: a stack machine with call frames, first-class closures,
// upvalue capture, and a mark-and-sweep collector over the engine's
// heap.
package vm

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"vela/strutil"
	"vela/value"
)

const (
	// StackSize is the fixed capacity of the value stack.
	StackSize = 256

	// MaxFrames bounds the call depth. The last frame index is the
	// overflow sentinel: a call that would occupy it is rejected.
	MaxFrames = 256

	// FrameSlots is the local-variable capacity of one call frame.
	FrameSlots = 256
)

// Frame is the interpreter state of one active call: the bytecode being
// executed, the instruction pointer, the previous instruction pointer
// (for error reporting), the local slot array, and the closure whose
// upvalues GET_UPVAL resolves against.
type Frame struct {
	bytecode *value.Bytecode
	ip       int
	prevIp   int
	varStack [FrameSlots]value.Value
	closure  *value.ObjClosure
}

// ErrorSink receives every formatted error fragment the engine emits.
type ErrorSink func(format string, args ...any)

// DebugContext holds the assertion counters the debug built-ins
// maintain. They live on the engine so independent engines in one
// process never share totals.
type DebugContext struct {
	Assertions    int
	AssertionsMet int
}

// Engine is the root container of one interpreter: the value stack, the
// call frames, the heap, the open-upvalue list, the package registry
// and the host-facing sinks. One engine serves one goroutine.
type Engine struct {
	stack    [StackSize]value.Value
	stackTop int

	frames    [MaxFrames]Frame
	currFrame int

	heap       *value.Heap
	openUpvals *value.ObjUpval

	hadError       bool
	currentPackage *value.Package
	packages       map[string]*value.Package

	printError ErrorSink
	out        io.Writer
	in         *bufio.Reader

	// Debug carries the assertion counters for the debug built-ins.
	Debug DebugContext
}

// NewEngine creates an engine bound to the given error sink. Output
// defaults to stdout and input to stdin; both are configurable so
// hosts and tests can capture them.
func NewEngine(printError ErrorSink) *Engine {
	return &Engine{
		heap:       value.NewHeap(),
		packages:   make(map[string]*value.Package),
		printError: printError,
		out:        os.Stdout,
		in:         bufio.NewReader(os.Stdin),
	}
}

// Heap exposes the engine's heap for allocation and inspection.
func (e *Engine) Heap() *value.Heap { return e.heap }

// HadError reports whether the last execution aborted with a runtime
// error.
func (e *Engine) HadError() bool { return e.hadError }

// Output returns the writer built-ins print to.
func (e *Engine) Output() io.Writer { return e.out }

// SetOutput redirects the built-ins' output.
func (e *Engine) SetOutput(w io.Writer) { e.out = w }

// Input returns the reader the input built-in consumes.
func (e *Engine) Input() *bufio.Reader { return e.in }

// SetInput redirects the input built-in.
func (e *Engine) SetInput(r io.Reader) { e.in = bufio.NewReader(r) }

// CreatePackage creates an empty package owned by this engine.
func (e *Engine) CreatePackage() *value.Package {
	return &value.Package{}
}

// RegisterPackage makes a package resolvable by the IMPORT instruction
// under its name. Only packages whose top-level code has already run
// (or that have none, like the built-in libraries) should be
// registered.
func (e *Engine) RegisterPackage(pkg *value.Package) {
	e.packages[pkg.Name] = pkg
}

// LookupPackage resolves a registered package by name.
func (e *Engine) LookupPackage(name string) *value.Package {
	return e.packages[name]
}

// DefineGlobal installs a named global on a package, creating the slot
// if the name is new.
func (e *Engine) DefineGlobal(pkg *value.Package, name string, v value.Value) {
	slot := pkg.GlobalSlot(name)
	if slot == -1 {
		slot = pkg.AddGlobalName(name)
	}
	cell := pkg.EnsureGlobal(slot)
	*cell = v
}

// MakeNative wraps a host routine into a callable heap object.
func (e *Engine) MakeNative(fn value.Native) value.Obj {
	return e.heap.NewNative(fn)
}

// TakeString moves a host string onto the heap.
func (e *Engine) TakeString(s string) value.Obj {
	return e.heap.NewString(s)
}

// NewPackageObj wraps a package into a value the stack can carry.
func (e *Engine) NewPackageObj(pkg *value.Package) value.Obj {
	return e.heap.NewPackageObj(pkg)
}

// PrintError forwards one formatted fragment to the error sink.
func (e *Engine) PrintError(format string, args ...any) {
	e.printError(format, args...)
}

// RuntimeError reports a runtime error through the sink with the
// offending source line and a caret under the instruction's character
// index, then flags the engine so the dispatch loop terminates.
func (e *Engine) RuntimeError(format string, args ...any) {
	e.printError(format, args...)
	e.printError("\n")

	frame := &e.frames[e.currFrame]
	if frame.bytecode != nil && frame.prevIp < len(frame.bytecode.CharIdxs) && e.currentPackage != nil {
		charIdx := frame.bytecode.CharIdxs[frame.prevIp]
		line := strutil.GetLine(e.currentPackage.Source, charIdx)
		prefix := fmt.Sprintf("[line %d] ", line.Line+1)
		e.printError("%s%s\n", prefix, strutil.LineText(e.currentPackage.Source, line))
		pad := len(prefix) + charIdx - line.Start
		e.printError("%s^\n", strings.Repeat(" ", pad))
	}

	e.hadError = true
}

func (e *Engine) pushStack(v value.Value) {
	if e.stackTop >= StackSize {
		e.RuntimeError("Stack overflow.")
		return
	}
	e.stack[e.stackTop] = v
	e.stackTop++
}

func (e *Engine) popStack() value.Value {
	if e.stackTop == 0 {
		e.RuntimeError("Stack underflow.")
		return value.Nil()
	}
	e.stackTop--
	return e.stack[e.stackTop]
}

func (e *Engine) peekStack() value.Value {
	return e.stack[e.stackTop-1]
}

// StackDepth reports the number of live values on the stack. It exists
// for the stack-balance invariant checks in tests.
func (e *Engine) StackDepth() int { return e.stackTop }

// newUpval wraps a live cell into an open upvalue threaded onto the
// engine's open list, innermost capture first.
func (e *Engine) newUpval(cell *value.Value) *value.ObjUpval {
	upval := e.heap.NewUpval(cell)
	upval.Next = e.openUpvals
	e.openUpvals = upval
	return upval
}

// OpenUpvals reports the number of open upvalues; after CLOSE_UPVALS it
// is always zero.
func (e *Engine) OpenUpvals() int {
	n := 0
	for u := e.openUpvals; u != nil; u = u.Next {
		n++
	}
	return n
}

// ExecutePackage runs a package's top-level bytecode, returning whether
// it completed without a runtime error.
func (e *Engine) ExecutePackage(pkg *value.Package) bool {
	e.currentPackage = pkg
	ok := e.ExecuteBytecode(&pkg.Bytecode)
	pkg.Executed = true
	return ok
}

// ExecuteBytecode runs bytecode on a fresh frame 0 with an empty value
// stack.
func (e *Engine) ExecuteBytecode(bytecode *value.Bytecode) bool {
	e.currFrame = 0
	e.frames[0].ip = 0
	e.frames[0].prevIp = 0
	e.frames[0].bytecode = bytecode
	e.frames[0].closure = nil
	e.stackTop = 0
	e.openUpvals = nil
	return e.run()
}
