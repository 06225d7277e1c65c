package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"vela/compiler"
	"vela/parser"
	"vela/stdlib"
	"vela/value"
	"vela/vm"
)

// runCmd executes Vela code from one or more source files. When several
// files are given, all but the last are registered as importable
// packages under their base name before the last one runs.
type runCmd struct {
	disassembleFlag bool
	dumpAST         bool
}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "Execute Vela code from a source file" }
func (*runCmd) Usage() string {
	return `run [-disassemble] [-dumpAST] <file> [<file> ...]:
  Execute Vela code. The last file is the entry point; earlier files
  are loaded as importable packages.
`
}

func (r *runCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&r.disassembleFlag, "disassemble", false, "print the compiled bytecode before executing")
	f.BoolVar(&r.dumpAST, "dumpAST", false, "print the AST as JSON before executing")
}

func stderrSink(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format, args...)
}

// packageName derives the import name of a source file from its base
// name without the extension.
func packageName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// loadPackage parses, compiles and executes one source file on the
// engine, returning the package on success.
func loadPackage(e *vm.Engine, name string, source string, opts *runCmd) (*value.Package, bool) {
	pkg := e.CreatePackage()
	pkg.Name = name
	pkg.Source = source
	stdlib.Install(e, pkg)

	p := parser.Make(source)
	exprs, err := p.Parse()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, false
	}

	if opts != nil && opts.dumpAST {
		if printErr := parser.PrintASTJSON(exprs); printErr != nil {
			logrus.WithError(printErr).Error("failed to dump AST")
		}
	}

	c := compiler.New(e.Heap(), pkg)
	if err := c.Compile(exprs); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, false
	}

	if opts != nil && opts.disassembleFlag {
		printDisassembly(pkg)
	}

	if !e.ExecutePackage(pkg) {
		return nil, false
	}
	e.CollectGarbage()
	return pkg, true
}

func (r *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 File not provided\n")
		return subcommands.ExitUsageError
	}

	engine := vm.NewEngine(stderrSink)

	for i, filename := range args {
		data, err := os.ReadFile(filename)
		if err != nil {
			logrus.WithError(err).Error("failed to read file")
			return subcommands.ExitFailure
		}

		var opts *runCmd
		if i == len(args)-1 {
			opts = r
		}
		pkg, ok := loadPackage(engine, packageName(filename), string(data), opts)
		if !ok {
			return subcommands.ExitFailure
		}
		engine.RegisterPackage(pkg)
	}
	return subcommands.ExitSuccess
}
