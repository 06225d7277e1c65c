package value

// Heap owns every object the engine allocates, threaded into a single
// intrusive list through the object headers. The collector clears marks
// over the list, marks from the engine's roots, then sweeps: marked
// objects are re-threaded into a fresh list, unmarked ones are unlinked
// and released.
type Heap struct {
	objs Obj
}

func NewHeap() *Heap {
	return &Heap{}
}

func (h *Heap) track(o Obj) {
	o.header().nextObj = h.objs
	h.objs = o
}

// Count returns the number of objects currently on the heap list.
func (h *Heap) Count() int {
	n := 0
	for o := h.objs; o != nil; o = o.header().nextObj {
		n++
	}
	return n
}

// Contains reports whether o is on the heap list.
func (h *Heap) Contains(o Obj) bool {
	for curr := h.objs; curr != nil; curr = curr.header().nextObj {
		if curr == o {
			return true
		}
	}
	return false
}

func (h *Heap) NewFunction(arity int) *ObjFunction {
	f := &ObjFunction{Arity: arity}
	h.track(f)
	return f
}

func (h *Heap) NewClosure(proto *ObjFunction, upvalCount int) *ObjClosure {
	c := &ObjClosure{Prototype: proto, Upvals: make([]*ObjUpval, upvalCount)}
	h.track(c)
	return c
}

func (h *Heap) NewUpval(cell *Value) *ObjUpval {
	u := &ObjUpval{ValPtr: cell, Open: true}
	h.track(u)
	return u
}

func (h *Heap) NewNative(fn Native) *ObjNativeFn {
	n := &ObjNativeFn{Native: fn}
	h.track(n)
	return n
}

func (h *Heap) NewArray() *ObjArray {
	a := &ObjArray{}
	h.track(a)
	return a
}

func (h *Heap) NewString(s string) *ObjString {
	str := &ObjString{Str: s}
	h.track(str)
	return str
}

func (h *Heap) NewPackageObj(pkg *Package) *ObjPackage {
	p := &ObjPackage{Pkg: pkg}
	h.track(p)
	return p
}

// ClearMarks resets the mark bit on every object before a mark phase.
func (h *Heap) ClearMarks() {
	for o := h.objs; o != nil; o = o.header().nextObj {
		o.header().marked = false
	}
}

// Sweep unlinks every unmarked object and re-threads the survivors into
// a fresh list that replaces the old head. Released objects drop their
// owned resources so the host allocator can reclaim them.
func (h *Heap) Sweep() {
	var survivors Obj
	curr := h.objs
	for curr != nil {
		next := curr.header().nextObj
		if curr.header().marked {
			curr.header().nextObj = survivors
			survivors = curr
		} else {
			releaseObj(curr)
		}
		curr = next
	}
	h.objs = survivors
}

func releaseObj(o Obj) {
	switch obj := o.(type) {
	case *ObjFunction:
		obj.Bytecode = Bytecode{}
	case *ObjClosure:
		obj.Upvals = nil
		obj.Prototype = nil
	case *ObjUpval:
		obj.ValPtr = nil
		obj.Next = nil
	case *ObjArray:
		obj.Elems = nil
	case *ObjNativeFn:
		obj.Native = nil
	case *ObjPackage:
		obj.Pkg = nil
	}
	o.header().nextObj = nil
}

// MarkValue marks the object a value refers to, if any. Ptr values are
// not traversed here: the cells they alias are themselves roots (frame
// slots, globals) or upvalue cells reachable through their owning
// closure.
func MarkValue(v Value) {
	if v.IsObj() {
		MarkObj(v.AsObj())
	}
}

// MarkObj marks an object and traces its references. The object graph
// is cyclic (closures reach upvalues whose cells can hold the closure),
// so the mark bit doubles as the visited set.
func MarkObj(o Obj) {
	if o == nil || o.header().marked {
		return
	}
	o.header().marked = true

	switch obj := o.(type) {
	case *ObjArray:
		for _, elem := range obj.Elems {
			MarkValue(elem)
		}
	case *ObjFunction:
		for _, c := range obj.Bytecode.Constants {
			MarkValue(c)
		}
	case *ObjUpval:
		if obj.ValPtr != nil {
			MarkValue(*obj.ValPtr)
		}
	case *ObjClosure:
		MarkObj(obj.Prototype)
		for _, upval := range obj.Upvals {
			MarkObj(upval)
		}
	case *ObjPackage:
		MarkPackage(obj.Pkg)
	}
}

// MarkPackage marks everything a package keeps alive: its bytecode
// constants and its global cells.
func MarkPackage(p *Package) {
	if p == nil {
		return
	}
	for _, c := range p.Bytecode.Constants {
		MarkValue(c)
	}
	for _, cell := range p.Globals {
		MarkValue(*cell)
	}
}
