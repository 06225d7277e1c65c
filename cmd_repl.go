package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"vela/compiler"
	"vela/lexer"
	"vela/parser"
	"vela/stdlib"
	"vela/token"
	"vela/value"
	"vela/vm"
)

// replCmd implements the interactive REPL.
type replCmd struct {
	dumpAST bool
}

func (*replCmd) Name() string     { return "repl" }
func (*replCmd) Synopsis() string { return "Start interactive REPL session" }
func (*replCmd) Usage() string {
	return `repl [-dumpAST]:
  Start an interactive REPL session.
`
}

func (r *replCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.dumpAST, "dumpAST", false, "print the AST as JSON for every submission")
}

func (r *replCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	fmt.Println("\nWelcome to Vela!")

	rl, err := readline.New(">>> ")
	if err != nil {
		logrus.WithError(err).Error("failed to initialize readline")
		return subcommands.ExitFailure
	}
	defer rl.Close()

	engine := vm.NewEngine(stderrSink)
	pkg := engine.CreatePackage()
	pkg.Name = "repl"
	stdlib.Install(engine, pkg)

	var buffer strings.Builder
	for {
		if buffer.Len() == 0 {
			rl.SetPrompt(">>> ")
		} else {
			rl.SetPrompt("... ")
		}

		line, readErr := rl.Readline()
		if readErr == readline.ErrInterrupt {
			buffer.Reset()
			continue
		}
		if readErr == io.EOF {
			return subcommands.ExitSuccess
		}
		if readErr != nil {
			logrus.WithError(readErr).Error("read error")
			return subcommands.ExitFailure
		}

		if strings.TrimSpace(line) == "exit" && buffer.Len() == 0 {
			return subcommands.ExitSuccess
		}

		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(line)
		source := buffer.String()

		// Wait for more input while braces are open or the last token
		// expects an operand.
		if !isInputReady(source) {
			continue
		}
		buffer.Reset()

		pkg.Source = source
		pkg.Bytecode = value.Bytecode{}

		p := parser.Make(source)
		exprs, parseErr := p.Parse()
		if parseErr != nil {
			fmt.Fprintln(os.Stderr, parseErr)
			continue
		}

		if r.dumpAST {
			if printErr := parser.PrintASTJSON(exprs); printErr != nil {
				logrus.WithError(printErr).Error("failed to dump AST")
			}
		}

		c := compiler.New(engine.Heap(), pkg)
		if compileErr := c.Compile(exprs); compileErr != nil {
			fmt.Fprintln(os.Stderr, compileErr)
			continue
		}

		engine.ExecutePackage(pkg)
		engine.CollectGarbage()
	}
}

// isInputReady checks whether a submission is complete: parentheses and
// braces balance out, and the last significant token does not expect
// more input. For example, after `if x > 5 {` the REPL keeps reading
// until the block is closed.
func isInputReady(source string) bool {
	lex := lexer.New(source)

	parenBalance := 0
	braceBalance := 0
	last := token.CreateToken(token.EOF, 0)
	for {
		tok := lex.NextToken()
		if tok.TokenType == token.EOF {
			break
		}
		switch tok.TokenType {
		case token.LPA:
			parenBalance++
		case token.RPA:
			parenBalance--
		case token.LCUR:
			braceBalance++
		case token.RCUR:
			braceBalance--
		}
		if tok.TokenType != token.NEWLINE {
			last = tok
		}
	}

	if braceBalance > 0 || parenBalance > 0 {
		return false
	}

	switch last.TokenType {
	case token.ASSIGN,
		token.ADD,
		token.SUB,
		token.MULT,
		token.DIV,
		token.MOD,
		token.BANG,
		token.EQUAL_EQUAL,
		token.NOT_EQUAL,
		token.LESS,
		token.LESS_EQUAL,
		token.LARGER,
		token.LARGER_EQUAL,
		token.COMMA,
		token.DOT,
		token.IF,
		token.ELSE,
		token.IMPORT,
		token.AS,
		token.VAR,
		token.CONST,
		token.FUNC:
		return false
	}
	return true
}
