package value

import (
	"strings"
	"testing"
)

func TestEvaporate(t *testing.T) {
	cell := new(Value)
	*cell = Num(42)

	v := Ptr(cell)
	Evaporate(&v)
	if !v.IsNum() || v.AsNum() != 42 {
		t.Errorf("evaporated ptr - got: %v, want: 42", v)
	}

	// a ptr to a cell containing another ptr is flattened all the way
	inner := new(Value)
	*inner = Bool(true)
	outer := new(Value)
	*outer = Ptr(inner)
	chained := Ptr(outer)
	Evaporate(&chained)
	if !chained.IsBool() || !chained.AsBool() {
		t.Errorf("chained ptr - got: %v, want: true", chained)
	}
}

func TestEvaporateIsIdempotent(t *testing.T) {
	cell := new(Value)
	*cell = Num(7)

	v := Ptr(cell)
	Evaporate(&v)
	once := v
	Evaporate(&v)
	if v != once {
		t.Errorf("evaporation not idempotent - got: %v, want: %v", v, once)
	}
}

func TestEquality(t *testing.T) {
	heap := NewHeap()
	str := ObjVal(heap.NewString("a"))
	strAgain := ObjVal(heap.NewString("a"))

	tests := []struct {
		name     string
		a, b     Value
		expected bool
	}{
		{"numbers equal", Num(1), Num(1), true},
		{"numbers unequal", Num(1), Num(2), false},
		{"bools equal", Bool(true), Bool(true), true},
		{"bools unequal", Bool(true), Bool(false), false},
		{"nil equals nil", Nil(), Nil(), true},
		{"cross kind", Num(1), Bool(true), false},
		{"nil against number", Nil(), Num(0), false},
		{"equal strings are not equal values", str, strAgain, false},
		{"object against itself", str, str, false},
	}

	for _, tt := range tests {
		if got := Equals(tt.a, tt.b); got != tt.expected {
			t.Errorf("%s - got: %v, want: %v", tt.name, got, tt.expected)
		}
	}
}

func TestTypeNames(t *testing.T) {
	heap := NewHeap()
	cell := new(Value)

	tests := []struct {
		v        Value
		expected string
	}{
		{Nil(), "nil"},
		{Num(1), "number"},
		{Bool(false), "bool"},
		{Ptr(cell), "ptr"},
		{ObjVal(heap.NewFunction(0)), "raw fn"},
		{ObjVal(heap.NewClosure(heap.NewFunction(0), 0)), "fn"},
		{ObjVal(heap.NewNative(nil)), "native fn"},
		{ObjVal(heap.NewString("s")), "str"},
		{ObjVal(heap.NewArray()), "array"},
		{ObjVal(heap.NewPackageObj(&Package{Name: "p"})), "package"},
	}

	for _, tt := range tests {
		if got := tt.v.TypeName(); got != tt.expected {
			t.Errorf("type name - got: %q, want: %q", got, tt.expected)
		}
	}
}

func TestPrint(t *testing.T) {
	heap := NewHeap()

	tests := []struct {
		v        Value
		expected string
	}{
		{Num(7), "7.000000"},
		{Num(1.5), "1.500000"},
		{Bool(true), "true"},
		{Bool(false), "false"},
		{Nil(), "nil"},
		{ObjVal(heap.NewString("hi")), "hi"},
		{ObjVal(heap.NewClosure(heap.NewFunction(2), 0)), "<fn 2>"},
		{ObjVal(heap.NewNative(nil)), "<native fn>"},
		{ObjVal(heap.NewPackageObj(&Package{Name: "io"})), "<package io>"},
	}

	for _, tt := range tests {
		var builder strings.Builder
		tt.v.Print(&builder)
		if builder.String() != tt.expected {
			t.Errorf("print - got: %q, want: %q", builder.String(), tt.expected)
		}
	}
}

func TestEnsureGlobalCellsAreStable(t *testing.T) {
	pkg := &Package{}
	cell := pkg.EnsureGlobal(0)
	*cell = Num(1)

	// growing the table must not move earlier cells
	pkg.EnsureGlobal(100)
	if pkg.Globals[0] != cell {
		t.Errorf("cell 0 moved after growth")
	}
	if !pkg.Globals[0].IsNum() || pkg.Globals[0].AsNum() != 1 {
		t.Errorf("cell 0 lost its value after growth")
	}
	if !pkg.Globals[50].IsNil() {
		t.Errorf("lazily grown slot is not nil")
	}
}

func TestGlobalSlots(t *testing.T) {
	pkg := &Package{}
	if slot := pkg.GlobalSlot("x"); slot != -1 {
		t.Errorf("missing name - got: %d, want: -1", slot)
	}
	slot := pkg.AddGlobalName("x")
	if pkg.GlobalSlot("x") != slot {
		t.Errorf("slot lookup mismatch")
	}
}

func TestUpvalClose(t *testing.T) {
	heap := NewHeap()
	local := new(Value)
	*local = Num(3)

	upval := heap.NewUpval(local)
	if !upval.Open || upval.ValPtr != local {
		t.Fatalf("new upvalue should alias the local cell")
	}

	upval.Close()
	if upval.Open {
		t.Errorf("closed upvalue still marked open")
	}
	if upval.ValPtr == local {
		t.Errorf("closed upvalue still aliases the local cell")
	}
	if !upval.ValPtr.IsNum() || upval.ValPtr.AsNum() != 3 {
		t.Errorf("closed upvalue lost the captured value")
	}

	// writes through the old cell no longer reach the upvalue
	*local = Num(99)
	if upval.ValPtr.AsNum() != 3 {
		t.Errorf("closed upvalue tracks the dead local slot")
	}
}

func TestHeapSweep(t *testing.T) {
	heap := NewHeap()
	kept := heap.NewString("kept")
	heap.NewString("dropped")
	heap.NewString("dropped too")

	if heap.Count() != 3 {
		t.Fatalf("heap count - got: %d, want: 3", heap.Count())
	}

	heap.ClearMarks()
	MarkObj(kept)
	heap.Sweep()

	if heap.Count() != 1 {
		t.Errorf("heap count after sweep - got: %d, want: 1", heap.Count())
	}
	if !heap.Contains(kept) {
		t.Errorf("marked object swept")
	}
}

func TestMarkHandlesCycles(t *testing.T) {
	heap := NewHeap()
	proto := heap.NewFunction(0)
	closure := heap.NewClosure(proto, 1)

	// the upvalue's cell holds the closure itself
	cell := new(Value)
	*cell = ObjVal(closure)
	upval := heap.NewUpval(cell)
	upval.Close()
	*upval.ValPtr = ObjVal(closure)
	closure.Upvals[0] = upval

	heap.ClearMarks()
	MarkObj(closure) // must terminate despite the cycle
	heap.Sweep()

	if heap.Count() != 3 {
		t.Errorf("cyclic group partially swept - got: %d objects, want: 3", heap.Count())
	}
}
