package vm

import (
	"vela/value"
)

// CollectGarbage runs one mark-and-sweep cycle over the engine's heap.
// It is only safe at quiescent points: between opcodes and outside
// native re-entrancy, because the root set is defined in terms of the
// current stack top and frame index.
func (e *Engine) CollectGarbage() {
	e.heap.ClearMarks()
	e.markRoots()
	e.heap.Sweep()
}

// markRoots marks everything directly reachable from engine state:
// the live stack cells, the local slots and closure of every active
// frame, the current package, and every registered package. Open
// upvalues need no dedicated root; they are reachable through the
// closures that own them.
func (e *Engine) markRoots() {
	for i := 0; i < e.stackTop; i++ {
		value.MarkValue(e.stack[i])
	}

	for i := 0; i <= e.currFrame; i++ {
		frame := &e.frames[i]
		for j := range frame.varStack {
			value.MarkValue(frame.varStack[j])
		}
		if frame.closure != nil {
			value.MarkObj(frame.closure)
		}
	}

	if e.currentPackage != nil {
		value.MarkPackage(e.currentPackage)
	}
	for _, pkg := range e.packages {
		value.MarkPackage(pkg)
	}
}
