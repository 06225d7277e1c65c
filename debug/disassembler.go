// Package debug renders compiled bytecode in a human readable form.
package debug

import (
	"fmt"
	"strings"

	"vela/compiler"
	"vela/value"
)

// DisassembleBytecode renders every instruction of a bytecode stream
// with its offset, opcode name, operands and referenced constants.
func DisassembleBytecode(bytecode *value.Bytecode) string {
	var builder strings.Builder

	ip := 0
	for ip < len(bytecode.Code) {
		ip = disassembleInstruction(&builder, bytecode, ip)
	}
	return builder.String()
}

func disassembleInstruction(builder *strings.Builder, bytecode *value.Bytecode, ip int) int {
	opcode := compiler.Opcode(bytecode.Code[ip])
	def, err := compiler.Get(opcode)
	if err != nil {
		fmt.Fprintf(builder, "%04d UNKNOWN (%d)\n", ip, bytecode.Code[ip])
		return ip + 1
	}

	fmt.Fprintf(builder, "%04d %s", ip, def.Name)
	offset := ip + 1
	var operands []int
	for _, width := range def.OperandWidths {
		operand := 0
		for i := 0; i < width; i++ {
			operand = operand<<8 + int(bytecode.Code[offset])
			offset++
		}
		operands = append(operands, operand)
		fmt.Fprintf(builder, " %d", operand)
	}

	switch opcode {
	case compiler.OP_CONST, compiler.OP_GET_IDX, compiler.OP_IMPORT:
		var valueText strings.Builder
		bytecode.Constants[operands[0]].Print(&valueText)
		fmt.Fprintf(builder, ", value: %s", valueText.String())

	case compiler.OP_CLOSURE:
		// The capture plan follows inline: one (slot, is-local) pair
		// per upvalue.
		for i := 0; i < operands[0]; i++ {
			slot := int(bytecode.Code[offset])<<8 + int(bytecode.Code[offset+1])
			isLocal := bytecode.Code[offset+2] != 0
			offset += 3
			if isLocal {
				fmt.Fprintf(builder, " (local %d)", slot)
			} else {
				fmt.Fprintf(builder, " (upval %d)", slot)
			}
		}
	}

	builder.WriteString("\n")
	return offset
}
