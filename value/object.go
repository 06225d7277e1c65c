package value

type ObjType int

const (
	OBJ_FUNC ObjType = iota
	OBJ_CLOSURE
	OBJ_UPVAL
	OBJ_NATIVE_FN
	OBJ_ARRAY
	OBJ_STRING
	OBJ_PACKAGE
)

// Obj is a heap object. Every object carries a header threading it onto
// the owning heap's intrusive list; the collector walks that list.
type Obj interface {
	ObjType() ObjType
	header() *objHeader
}

type objHeader struct {
	marked  bool
	nextObj Obj
}

func (h *objHeader) header() *objHeader { return h }

// ObjFunction is a function prototype: the immutable arity and bytecode
// a closure pairs with its captured upvalues.
type ObjFunction struct {
	objHeader
	Arity    int
	Bytecode Bytecode
}

func (f *ObjFunction) ObjType() ObjType { return OBJ_FUNC }

// ObjClosure pairs a prototype with the upvalues captured when the
// CLOSURE instruction ran.
type ObjClosure struct {
	objHeader
	Prototype *ObjFunction
	Upvals    []*ObjUpval
}

func (c *ObjClosure) ObjType() ObjType { return OBJ_CLOSURE }

// ObjUpval is a captured variable. While open, ValPtr aliases a live
// frame's local slot and Next threads the engine's open-upvalue list;
// once closed, ValPtr points at a heap cell the upvalue owns.
type ObjUpval struct {
	objHeader
	ValPtr *Value
	Open   bool
	Next   *ObjUpval
}

func (u *ObjUpval) ObjType() ObjType { return OBJ_UPVAL }

// Close promotes an open upvalue: the referenced value moves into a heap
// cell owned by the upvalue, so the captured variable outlives its frame.
func (u *ObjUpval) Close() {
	cell := new(Value)
	*cell = *u.ValPtr
	u.ValPtr = cell
	u.Open = false
	u.Next = nil
}

// Native is a host routine exposed to the language. Implementations
// close over the engine they were registered on.
type Native func(argc int, args []Value) Value

type ObjNativeFn struct {
	objHeader
	Native Native
}

func (n *ObjNativeFn) ObjType() ObjType { return OBJ_NATIVE_FN }

// ObjArray is a growable sequence of values.
type ObjArray struct {
	objHeader
	Elems []Value
}

func (a *ObjArray) ObjType() ObjType { return OBJ_ARRAY }

// ObjString owns an immutable string payload.
type ObjString struct {
	objHeader
	Str string
}

func (s *ObjString) ObjType() ObjType { return OBJ_STRING }

// ObjPackage wraps a Package so package values can flow through the
// stack; subscript resolves member names against the package's globals.
type ObjPackage struct {
	objHeader
	Pkg *Package
}

func (p *ObjPackage) ObjType() ObjType { return OBJ_PACKAGE }
