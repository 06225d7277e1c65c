package value

// Package is a named unit of top-level code: its source text, the
// bytecode compiled from it, and its globals. Globals are addressed by
// stable integer slot; GlobalNames maps slot index to name for the
// compiler and for subscript resolution.
//
// Each global lives in its own heap-allocated cell so a ptr handed out
// for a slot stays valid when the table grows.
type Package struct {
	Name        string
	Source      string
	Bytecode    Bytecode
	Globals     []*Value
	GlobalNames []string
	Executed    bool
}

// GlobalSlot returns the slot bound to name, or -1 if the package has
// no such global.
func (p *Package) GlobalSlot(name string) int {
	for i, n := range p.GlobalNames {
		if n == name {
			return i
		}
	}
	return -1
}

// AddGlobalName binds a new global name and returns its slot. The cell
// itself is created lazily by EnsureGlobal.
func (p *Package) AddGlobalName(name string) int {
	p.GlobalNames = append(p.GlobalNames, name)
	return len(p.GlobalNames) - 1
}

// EnsureGlobal grows the globals table with nil-filled cells up to
// slot+1 and returns the cell at slot. A slot referenced before any
// assignment therefore reads as nil.
func (p *Package) EnsureGlobal(slot int) *Value {
	for len(p.Globals) <= slot {
		cell := new(Value)
		*cell = Nil()
		p.Globals = append(p.Globals, cell)
	}
	return p.Globals[slot]
}
