package compiler

import (
	"encoding/binary"
	"fmt"
)

type Opcode byte

// opcodes
// iota generates a distinct byte for each instruction
const (
	// Terminates the current frame. On frame 0 execution halts;
	// otherwise the frame is popped and the return value on the stack
	// top is evaporated.
	OP_RETURN Opcode = iota

	// Pushes constant-pool[slot]. Single 2-byte operand.
	OP_CONST

	// Arithmetic over two popped, evaporated numbers.
	OP_ADD
	OP_SUB
	OP_MUL
	OP_DIV
	OP_MOD

	// Arithmetic negation of one popped, evaporated number.
	OP_NEGATE

	// Equality and ordering. EQUAL compares any two values under the
	// language's equality rules; GREATER and LESS require numbers and
	// compare left against right.
	OP_EQUAL
	OP_GREATER
	OP_LESS

	// Boolean negation of one popped, evaporated bool.
	OP_NOT

	// Discards the stack top.
	OP_POP_STACK

	// Push a ptr to the current frame's local slot. 2-byte slot.
	OP_GET_STACK

	// Grow the current package's globals with nil up to slot+1, push a
	// ptr to that cell. 2-byte slot.
	OP_GET_GLOBAL

	// Pop a value (evaporated), pop a target (must be a ptr), store
	// the value through the ptr and push the value back.
	OP_SET

	// Unconditional and conditional forward jumps. The 2-byte distance
	// is measured from the opcode byte; the interpreter has already
	// advanced past the three instruction bytes when it applies it.
	OP_JUMP
	OP_JUMP_FALSE

	// Call the evaporated callable under argc popped arguments.
	// 2-byte argc.
	OP_CALL

	// Create a closure over the prototype on the stack top. A 2-byte
	// upvalue count is followed inline by one (2-byte slot, 1-byte
	// is-local flag) pair per capture: a set flag wraps a new upvalue
	// over the live local slot, a clear flag forwards the enclosing
	// closure's upvalue at that index.
	OP_CLOSURE

	// Push a ptr to the current closure's upvalue cell. 2-byte slot.
	OP_GET_UPVAL

	// Close every open upvalue: copy each referenced value into a heap
	// cell owned by its upvalue and empty the open list.
	OP_CLOSE_UPVALS

	// Pop a package value and push a ptr to its named global cell.
	// 2-byte constant slot holding the member name.
	OP_GET_IDX

	// Resolve a registered package by name and push its package
	// object. 2-byte constant slot holding the package name.
	OP_IMPORT
)

// OpCodeDefinition describes one opcode for the assembler and the
// disassembler.
// Fields:
//   - Name: The human-readable name for the opcode e.g "OP_CONST"
//   - OperandWidths: The number of bytes each operand takes up.
type OpCodeDefinition struct {
	Name          string
	OperandWidths []int
}

var definitions = map[Opcode]*OpCodeDefinition{
	OP_RETURN:       {Name: "OP_RETURN", OperandWidths: []int{}},
	OP_CONST:        {Name: "OP_CONST", OperandWidths: []int{2}},
	OP_ADD:          {Name: "OP_ADD", OperandWidths: []int{}},
	OP_SUB:          {Name: "OP_SUB", OperandWidths: []int{}},
	OP_MUL:          {Name: "OP_MUL", OperandWidths: []int{}},
	OP_DIV:          {Name: "OP_DIV", OperandWidths: []int{}},
	OP_MOD:          {Name: "OP_MOD", OperandWidths: []int{}},
	OP_NEGATE:       {Name: "OP_NEGATE", OperandWidths: []int{}},
	OP_EQUAL:        {Name: "OP_EQUAL", OperandWidths: []int{}},
	OP_GREATER:      {Name: "OP_GREATER", OperandWidths: []int{}},
	OP_LESS:         {Name: "OP_LESS", OperandWidths: []int{}},
	OP_NOT:          {Name: "OP_NOT", OperandWidths: []int{}},
	OP_POP_STACK:    {Name: "OP_POP_STACK", OperandWidths: []int{}},
	OP_GET_STACK:    {Name: "OP_GET_STACK", OperandWidths: []int{2}},
	OP_GET_GLOBAL:   {Name: "OP_GET_GLOBAL", OperandWidths: []int{2}},
	OP_SET:          {Name: "OP_SET", OperandWidths: []int{}},
	OP_JUMP:         {Name: "OP_JUMP", OperandWidths: []int{2}},
	OP_JUMP_FALSE:   {Name: "OP_JUMP_FALSE", OperandWidths: []int{2}},
	OP_CALL:         {Name: "OP_CALL", OperandWidths: []int{2}},
	OP_CLOSURE:      {Name: "OP_CLOSURE", OperandWidths: []int{2}},
	OP_GET_UPVAL:    {Name: "OP_GET_UPVAL", OperandWidths: []int{2}},
	OP_CLOSE_UPVALS: {Name: "OP_CLOSE_UPVALS", OperandWidths: []int{}},
	OP_GET_IDX:      {Name: "OP_GET_IDX", OperandWidths: []int{2}},
	OP_IMPORT:       {Name: "OP_IMPORT", OperandWidths: []int{2}},
}

// Get retrieves the definition for an opcode.
func Get(op Opcode) (*OpCodeDefinition, error) {
	def, ok := definitions[op]
	if !ok {
		return nil, fmt.Errorf("opcode: '%d' undefined", op)
	}
	return def, nil
}

// MakeInstruction constructs a bytecode instruction from an opcode and
// its operands. The resulting byte slice always begins with the opcode,
// followed by each operand encoded according to its defined width in
// big-endian order: a uint16 operand is stored most significant byte
// first.
//
// The OP_CLOSURE capture pairs are not part of the definition table;
// the compiler appends them to the instruction stream directly after
// the upvalue count.
func MakeInstruction(op Opcode, operands ...int) []byte {
	def, err := Get(op)
	if err != nil {
		return []byte{}
	}

	byteOffset := 1
	instructionLength := byteOffset // starts at one for the opcode
	for _, width := range def.OperandWidths {
		instructionLength += width
	}

	instruction := make([]byte, instructionLength)
	instruction[0] = byte(op)

	for i, operand := range operands {
		if i >= len(def.OperandWidths) {
			break
		}
		width := def.OperandWidths[i]
		switch width {
		case 2:
			binary.BigEndian.PutUint16(instruction[byteOffset:], uint16(operand))
		case 1:
			instruction[byteOffset] = byte(operand)
		}
		byteOffset += width
	}
	return instruction
}
