package parser

import (
	"fmt"
	"strings"

	"vela/strutil"
)

// SyntaxError is a single parse error anchored at a source character
// offset. Error renders the message together with the offending line
// and a caret under the offending position.
type SyntaxError struct {
	Message string
	CharIdx int
	Source  string
}

func CreateSyntaxError(message string, charIdx int, source string) SyntaxError {
	return SyntaxError{
		Message: message,
		CharIdx: charIdx,
		Source:  source,
	}
}

func (e SyntaxError) Error() string {
	line := strutil.GetLine(e.Source, e.CharIdx)
	prefix := fmt.Sprintf("[line %d] ", line.Line+1)
	pad := len(prefix) + e.CharIdx - line.Start
	return fmt.Sprintf("%s\n%s%s\n%s^",
		e.Message, prefix, strutil.LineText(e.Source, line), strings.Repeat(" ", pad))
}
