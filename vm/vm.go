package vm

import (
	"math"

	"vela/compiler"
	"vela/value"
)

// readByte consumes the next instruction byte of the current frame.
// Running off the end of a code stream reads as RETURN so a truncated
// stream halts instead of faulting.
func (e *Engine) readByte() byte {
	frame := &e.frames[e.currFrame]
	if frame.ip >= len(frame.bytecode.Code) {
		return byte(compiler.OP_RETURN)
	}
	byt := frame.bytecode.Code[frame.ip]
	frame.ip++
	return byt
}

// readParam consumes one 2-byte big-endian operand.
func (e *Engine) readParam() int {
	return int(e.readByte())<<8 + int(e.readByte())
}

func (e *Engine) readConstant() value.Value {
	return e.frames[e.currFrame].bytecode.Constants[e.readParam()]
}

// run is the dispatch loop. It executes one instruction per iteration
// until frame 0 returns or a runtime error flags the engine.
func (e *Engine) run() bool {
	e.hadError = false
	for {
		frame := &e.frames[e.currFrame]
		frame.prevIp = frame.ip
		opcode := compiler.Opcode(e.readByte())

		switch opcode {
		case compiler.OP_RETURN:
			if e.currFrame == 0 {
				return true
			}
			e.currFrame--
			resumed := &e.frames[e.currFrame]
			resumed.prevIp = resumed.ip
			// The callee left its result on the shared stack; hand the
			// caller an r-value.
			if e.stackTop > 0 {
				value.Evaporate(&e.stack[e.stackTop-1])
			}

		case compiler.OP_CONST:
			e.pushStack(e.readConstant())

		case compiler.OP_ADD:
			a := e.popStack()
			b := e.popStack()
			value.Evaporate(&a)
			value.Evaporate(&b)
			if !a.IsNum() || !b.IsNum() {
				e.RuntimeError("Cannot add %s and %s.", a.TypeName(), b.TypeName())
				break
			}
			e.pushStack(value.Num(b.AsNum() + a.AsNum()))

		case compiler.OP_SUB:
			a := e.popStack()
			b := e.popStack()
			value.Evaporate(&a)
			value.Evaporate(&b)
			if !a.IsNum() || !b.IsNum() {
				e.RuntimeError("Cannot subtract %s from %s.", a.TypeName(), b.TypeName())
				break
			}
			e.pushStack(value.Num(b.AsNum() - a.AsNum()))

		case compiler.OP_MUL:
			a := e.popStack()
			b := e.popStack()
			value.Evaporate(&a)
			value.Evaporate(&b)
			if !a.IsNum() || !b.IsNum() {
				e.RuntimeError("Cannot multiply %s by %s.", b.TypeName(), a.TypeName())
				break
			}
			e.pushStack(value.Num(b.AsNum() * a.AsNum()))

		case compiler.OP_DIV:
			a := e.popStack()
			b := e.popStack()
			value.Evaporate(&a)
			value.Evaporate(&b)
			if !a.IsNum() || !b.IsNum() {
				e.RuntimeError("Cannot divide %s by %s.", b.TypeName(), a.TypeName())
				break
			}
			e.pushStack(value.Num(b.AsNum() / a.AsNum()))

		case compiler.OP_MOD:
			a := e.popStack()
			b := e.popStack()
			value.Evaporate(&a)
			value.Evaporate(&b)
			if !a.IsNum() || !b.IsNum() {
				e.RuntimeError("Cannot modulo %s by %s.", b.TypeName(), a.TypeName())
				break
			}
			e.pushStack(value.Num(math.Mod(b.AsNum(), a.AsNum())))

		case compiler.OP_NEGATE:
			val := e.popStack()
			value.Evaporate(&val)
			if !val.IsNum() {
				e.RuntimeError("Cannot negate %s.", val.TypeName())
				break
			}
			e.pushStack(value.Num(-val.AsNum()))

		case compiler.OP_EQUAL:
			a := e.popStack()
			value.Evaporate(&a)
			b := e.popStack()
			value.Evaporate(&b)
			e.pushStack(value.Bool(value.Equals(a, b)))

		case compiler.OP_GREATER:
			a := e.popStack()
			value.Evaporate(&a)
			b := e.popStack()
			value.Evaporate(&b)
			if !a.IsNum() || !b.IsNum() {
				e.RuntimeError("Cannot compare %s and %s.", a.TypeName(), b.TypeName())
				break
			}
			e.pushStack(value.Bool(b.AsNum() > a.AsNum()))

		case compiler.OP_LESS:
			a := e.popStack()
			value.Evaporate(&a)
			b := e.popStack()
			value.Evaporate(&b)
			if !a.IsNum() || !b.IsNum() {
				e.RuntimeError("Cannot compare %s and %s.", a.TypeName(), b.TypeName())
				break
			}
			e.pushStack(value.Bool(b.AsNum() < a.AsNum()))

		case compiler.OP_NOT:
			val := e.popStack()
			value.Evaporate(&val)
			if !val.IsBool() {
				e.RuntimeError("Cannot negate %s.", val.TypeName())
				break
			}
			e.pushStack(value.Bool(!val.AsBool()))

		case compiler.OP_POP_STACK:
			e.popStack()

		case compiler.OP_GET_STACK:
			slot := e.readParam()
			e.pushStack(value.Ptr(&frame.varStack[slot]))

		case compiler.OP_GET_GLOBAL:
			slot := e.readParam()
			e.pushStack(value.Ptr(e.currentPackage.EnsureGlobal(slot)))

		case compiler.OP_SET:
			val := e.popStack()
			value.Evaporate(&val)
			target := e.popStack()
			if !target.IsPtr() {
				e.RuntimeError("Cannot assign to %s.", target.TypeName())
				break
			}
			*target.AsPtr() = val
			e.pushStack(val)

		case compiler.OP_JUMP:
			jumpDist := e.readParam()
			frame.ip += jumpDist - 3

		case compiler.OP_JUMP_FALSE:
			jumpDist := e.readParam()
			condition := e.popStack()
			value.Evaporate(&condition)
			if !condition.IsBool() {
				e.RuntimeError("Condition must be a boolean.")
				break
			}
			if !condition.AsBool() {
				frame.ip += jumpDist - 3
			}

		case compiler.OP_CALL:
			e.opCall()

		case compiler.OP_CLOSURE:
			val := e.popStack()
			funcObj := val.AsObj().(*value.ObjFunction)
			upvals := e.readParam()
			closure := e.heap.NewClosure(funcObj, upvals)
			for i := 0; i < upvals; i++ {
				slot := e.readParam()
				if e.readByte() != 0 {
					closure.Upvals[i] = e.newUpval(&frame.varStack[slot])
				} else {
					closure.Upvals[i] = frame.closure.Upvals[slot]
				}
			}
			e.pushStack(value.ObjVal(closure))

		case compiler.OP_GET_UPVAL:
			slot := e.readParam()
			e.pushStack(value.Ptr(frame.closure.Upvals[slot].ValPtr))

		case compiler.OP_CLOSE_UPVALS:
			for e.openUpvals != nil {
				upval := e.openUpvals
				e.openUpvals = upval.Next
				upval.Close()
			}

		case compiler.OP_GET_IDX:
			name := e.readConstant().AsObj().(*value.ObjString).Str
			target := e.popStack()
			value.Evaporate(&target)
			if !target.IsObj() || target.AsObj().ObjType() != value.OBJ_PACKAGE {
				e.RuntimeError("Cannot index %s.", target.TypeName())
				break
			}
			pkg := target.AsObj().(*value.ObjPackage).Pkg
			slot := pkg.GlobalSlot(name)
			if slot == -1 {
				// Members bind lazily, like global slots: reading an
				// unassigned member yields nil and assignment through
				// the ptr creates the binding.
				slot = pkg.AddGlobalName(name)
			}
			e.pushStack(value.Ptr(pkg.EnsureGlobal(slot)))

		case compiler.OP_IMPORT:
			name := e.readConstant().AsObj().(*value.ObjString).Str
			pkg := e.packages[name]
			if pkg == nil {
				e.RuntimeError("Unknown package '%s'.", name)
				break
			}
			e.pushStack(value.ObjVal(e.heap.NewPackageObj(pkg)))

		default:
			e.RuntimeError("Unknown opcode.")
		}

		if e.hadError {
			return false
		}
	}
}

// opCall implements the call protocol: the frame index advances, the
// arguments transfer right to left into the callee's local slots
// (evaporating on the way in), and only then is the callable inspected
// so every failure path can undo the frame advance.
func (e *Engine) opCall() {
	argCount := e.readParam()
	if argCount > FrameSlots {
		e.RuntimeError("Too many arguments.")
		return
	}

	e.currFrame++
	callee := &e.frames[e.currFrame]
	for i := argCount - 1; i >= 0; i-- {
		callee.varStack[i] = e.popStack()
		value.Evaporate(&callee.varStack[i])
	}
	fn := e.popStack()
	value.Evaporate(&fn)

	if e.currFrame == MaxFrames-1 {
		e.currFrame--
		e.RuntimeError("Recursion stack overflow.")
		return
	}

	if !fn.IsObj() || (fn.AsObj().ObjType() != value.OBJ_CLOSURE && fn.AsObj().ObjType() != value.OBJ_NATIVE_FN) {
		e.currFrame--
		e.RuntimeError("Cannot call %s.", fn.TypeName())
		return
	}

	if closure, ok := fn.AsObj().(*value.ObjClosure); ok {
		if closure.Prototype.Arity != argCount {
			e.currFrame--
			e.RuntimeError("Wrong argument count.")
			return
		}
		callee.ip = 0
		callee.prevIp = 0
		callee.bytecode = &closure.Prototype.Bytecode
		callee.closure = closure
		return
	}

	native := fn.AsObj().(*value.ObjNativeFn)
	e.currFrame--
	e.pushStack(native.Native(argCount, e.frames[e.currFrame+1].varStack[:argCount]))
}
