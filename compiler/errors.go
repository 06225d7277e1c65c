package compiler

import (
	"fmt"
	"strings"

	"vela/strutil"
)

// CompileError is a semantic error raised while lowering the expression
// tree to bytecode. Error renders the message with the offending line
// and a caret when the compiler had a source position to anchor it at.
type CompileError struct {
	Message string
	CharIdx int
	Source  string
}

func (e CompileError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("💥 CompileError: %s", e.Message)
	}
	line := strutil.GetLine(e.Source, e.CharIdx)
	prefix := fmt.Sprintf("[line %d] ", line.Line+1)
	pad := len(prefix) + e.CharIdx - line.Start
	return fmt.Sprintf("💥 CompileError: %s\n%s%s\n%s^",
		e.Message, prefix, strutil.LineText(e.Source, line), strings.Repeat(" ", pad))
}
