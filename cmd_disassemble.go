package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"vela/compiler"
	"vela/debug"
	"vela/parser"
	"vela/stdlib"
	"vela/value"
	"vela/vm"
)

// disassembleCmd compiles a source file and prints its bytecode without
// executing it.
type disassembleCmd struct{}

func (*disassembleCmd) Name() string     { return "disassemble" }
func (*disassembleCmd) Synopsis() string { return "Compile a source file and print its bytecode" }
func (*disassembleCmd) Usage() string {
	return `disassemble <file>:
  Compile Vela code and print the bytecode listing.
`
}

func (d *disassembleCmd) SetFlags(f *flag.FlagSet) {}

func printDisassembly(pkg *value.Package) {
	fmt.Println(debug.DisassembleBytecode(&pkg.Bytecode))
	for _, constant := range pkg.Bytecode.Constants {
		if constant.IsObj() {
			if proto, ok := constant.AsObj().(*value.ObjFunction); ok {
				fmt.Printf("-- <fn %d> --\n", proto.Arity)
				fmt.Println(debug.DisassembleBytecode(&proto.Bytecode))
			}
		}
	}
}

func (d *disassembleCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	args := f.Args()
	if len(args) < 1 {
		fmt.Fprintf(os.Stderr, "💥 File not provided\n")
		return subcommands.ExitUsageError
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		logrus.WithError(err).Error("failed to read file")
		return subcommands.ExitFailure
	}

	engine := vm.NewEngine(stderrSink)
	pkg := engine.CreatePackage()
	pkg.Name = packageName(args[0])
	pkg.Source = string(data)
	stdlib.Install(engine, pkg)

	p := parser.Make(pkg.Source)
	exprs, parseErr := p.Parse()
	if parseErr != nil {
		fmt.Fprintln(os.Stderr, parseErr)
		return subcommands.ExitFailure
	}

	c := compiler.New(engine.Heap(), pkg)
	if compileErr := c.Compile(exprs); compileErr != nil {
		fmt.Fprintln(os.Stderr, compileErr)
		return subcommands.ExitFailure
	}

	printDisassembly(pkg)
	return subcommands.ExitSuccess
}
