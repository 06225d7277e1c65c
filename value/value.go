// Package value defines the runtime data model: the tagged value, the
// heap object types, the bytecode a function prototype owns, and the
// intrusive heap list the collector sweeps.
package value

import (
	"fmt"
	"io"
)

type ValueType int

const (
	TYPE_NIL ValueType = iota
	TYPE_BOOL
	TYPE_NUM

	// A ptr is the language's lvalue: a reference to a value cell
	// (a frame local slot, a package global cell, or a closed upvalue
	// cell). Consumers flatten ptrs away; assignment targets keep them.
	TYPE_PTR
	TYPE_OBJ
)

// Value is the tagged union flowing through the stack machine.
type Value struct {
	valueType ValueType
	num       float64
	boolean   bool
	ptr       *Value
	obj       Obj
}

func Nil() Value            { return Value{valueType: TYPE_NIL} }
func Bool(b bool) Value     { return Value{valueType: TYPE_BOOL, boolean: b} }
func Num(n float64) Value   { return Value{valueType: TYPE_NUM, num: n} }
func Ptr(cell *Value) Value { return Value{valueType: TYPE_PTR, ptr: cell} }
func ObjVal(o Obj) Value    { return Value{valueType: TYPE_OBJ, obj: o} }

func (v Value) Type() ValueType { return v.valueType }

func (v Value) IsNil() bool  { return v.valueType == TYPE_NIL }
func (v Value) IsBool() bool { return v.valueType == TYPE_BOOL }
func (v Value) IsNum() bool  { return v.valueType == TYPE_NUM }
func (v Value) IsPtr() bool  { return v.valueType == TYPE_PTR }
func (v Value) IsObj() bool  { return v.valueType == TYPE_OBJ }

func (v Value) AsBool() bool { return v.boolean }
func (v Value) AsNum() float64 {
	return v.num
}
func (v Value) AsPtr() *Value { return v.ptr }
func (v Value) AsObj() Obj    { return v.obj }

// Evaporate flattens a ptr chain down to the value it refers to. A ptr
// to a cell holding another ptr is flattened too, so the result is never
// a ptr. Evaporating a non-ptr is the identity.
func Evaporate(v *Value) {
	for v.IsPtr() {
		*v = *v.AsPtr()
	}
}

// TypeName returns the name runtime diagnostics use for a value.
func (v Value) TypeName() string {
	switch v.valueType {
	case TYPE_NIL:
		return "nil"
	case TYPE_NUM:
		return "number"
	case TYPE_BOOL:
		return "bool"
	case TYPE_PTR:
		return "ptr"
	case TYPE_OBJ:
		switch v.obj.ObjType() {
		case OBJ_FUNC:
			return "raw fn"
		case OBJ_CLOSURE:
			return "fn"
		case OBJ_NATIVE_FN:
			return "native fn"
		case OBJ_STRING:
			return "str"
		case OBJ_ARRAY:
			return "array"
		case OBJ_UPVAL:
			return "upvalue"
		case OBJ_PACKAGE:
			return "package"
		}
	}
	return "Unknown"
}

// Print writes the value's display form. Numbers use the fixed six
// decimal form runtime output is pinned to.
func (v Value) Print(w io.Writer) {
	switch v.valueType {
	case TYPE_NIL:
		fmt.Fprintf(w, "nil")
	case TYPE_NUM:
		fmt.Fprintf(w, "%f", v.num)
	case TYPE_BOOL:
		if v.boolean {
			fmt.Fprintf(w, "true")
		} else {
			fmt.Fprintf(w, "false")
		}
	case TYPE_PTR:
		fmt.Fprintf(w, "<ptr>")
	case TYPE_OBJ:
		printObj(w, v.obj)
	}
}

func printObj(w io.Writer, o Obj) {
	switch obj := o.(type) {
	case *ObjFunction:
		fmt.Fprintf(w, "<fn %d>", obj.Arity)
	case *ObjClosure:
		fmt.Fprintf(w, "<fn %d>", obj.Prototype.Arity)
	case *ObjNativeFn:
		fmt.Fprintf(w, "<native fn>")
	case *ObjString:
		fmt.Fprintf(w, "%s", obj.Str)
	case *ObjPackage:
		fmt.Fprintf(w, "<package %s>", obj.Pkg.Name)
	case *ObjArray:
		fmt.Fprintf(w, "[")
		for i, elem := range obj.Elems {
			if i > 0 {
				fmt.Fprintf(w, ", ")
			}
			elem.Print(w)
		}
		fmt.Fprintf(w, "]")
	}
}

// Equals implements the language's equality: numbers and bools compare
// by value, nil equals nil, and every other pairing — including two heap
// objects — is false.
func Equals(a, b Value) bool {
	if a.IsNum() && b.IsNum() {
		return a.AsNum() == b.AsNum()
	}
	if a.IsBool() && b.IsBool() {
		return a.AsBool() == b.AsBool()
	}
	if a.IsNil() && b.IsNil() {
		return true
	}
	return false
}
