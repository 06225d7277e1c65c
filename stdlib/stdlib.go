// Package stdlib provides the built-in packages every Vela program can
// import: io, time and debug. Each is a package of native functions
// registered on an engine.
package stdlib

import (
	"fmt"
	"strings"

	"vela/debug"
	"vela/value"
	"vela/vm"
)

// Install registers the io, time and debug libraries on the engine and
// binds each of them as a global of the given package, so programs can
// use them directly or re-import them by name.
func Install(e *vm.Engine, pkg *value.Package) {
	for _, lib := range []*value.Package{AddIOLib(e), AddTimeLib(e), AddDebugLib(e)} {
		e.DefineGlobal(pkg, lib.Name, value.ObjVal(e.NewPackageObj(lib)))
	}
}

// AddIOLib registers the io package: print and input.
func AddIOLib(e *vm.Engine) *value.Package {
	io := e.CreatePackage()
	io.Name = "io"
	io.Executed = true
	e.DefineGlobal(io, "print", value.ObjVal(e.MakeNative(printNative(e))))
	e.DefineGlobal(io, "input", value.ObjVal(e.MakeNative(inputNative(e))))
	e.RegisterPackage(io)
	return io
}

func printNative(e *vm.Engine) value.Native {
	return func(argc int, args []value.Value) value.Value {
		for i := 0; i < argc; i++ {
			args[i].Print(e.Output())
			fmt.Fprintf(e.Output(), " ")
		}
		fmt.Fprintf(e.Output(), "\n")
		return value.Nil()
	}
}

func inputNative(e *vm.Engine) value.Native {
	return func(argc int, args []value.Value) value.Value {
		if argc != 0 {
			e.RuntimeError("Wrong argument count.")
			return value.Nil()
		}

		line, err := e.Input().ReadString('\n')
		if err != nil && line == "" {
			return value.ObjVal(e.TakeString(""))
		}
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")
		return value.ObjVal(e.TakeString(line))
	}
}

// AddTimeLib registers the time package: clock and sleep.
func AddTimeLib(e *vm.Engine) *value.Package {
	timeLib := e.CreatePackage()
	timeLib.Name = "time"
	timeLib.Executed = true
	e.DefineGlobal(timeLib, "clock", value.ObjVal(e.MakeNative(clockNative(e))))
	e.DefineGlobal(timeLib, "sleep", value.ObjVal(e.MakeNative(sleepNative(e))))
	e.RegisterPackage(timeLib)
	return timeLib
}

func clockNative(e *vm.Engine) value.Native {
	return func(argc int, args []value.Value) value.Value {
		if argc != 0 {
			e.RuntimeError("Wrong argument count.")
		}
		return value.Num(cpuSeconds())
	}
}

func sleepNative(e *vm.Engine) value.Native {
	return func(argc int, args []value.Value) value.Value {
		if argc != 1 {
			e.RuntimeError("Wrong argument count.")
		} else if !args[0].IsNum() {
			e.RuntimeError("Sleep time must be a number.")
		} else {
			start := cpuSeconds()
			for cpuSeconds()-start < args[0].AsNum() {
			}
		}
		return value.Nil()
	}
}

// AddDebugLib registers the debug package: disassemble, assert and
// printAssertionResults. The assertion counters live on the engine.
func AddDebugLib(e *vm.Engine) *value.Package {
	debugLib := e.CreatePackage()
	debugLib.Name = "debug"
	debugLib.Executed = true
	e.DefineGlobal(debugLib, "disassemble", value.ObjVal(e.MakeNative(disassembleNative(e))))
	e.DefineGlobal(debugLib, "assert", value.ObjVal(e.MakeNative(assertNative(e))))
	e.DefineGlobal(debugLib, "printAssertionResults", value.ObjVal(e.MakeNative(printAssertionResultsNative(e))))
	e.RegisterPackage(debugLib)
	return debugLib
}

func disassembleNative(e *vm.Engine) value.Native {
	return func(argc int, args []value.Value) value.Value {
		if argc != 1 {
			e.RuntimeError("Wrong argument count.")
			return value.Nil()
		}
		val := args[0]
		if !val.IsObj() || val.AsObj().ObjType() != value.OBJ_CLOSURE {
			e.RuntimeError("Cannot disassemble %s.", val.TypeName())
			return value.Nil()
		}
		closure := val.AsObj().(*value.ObjClosure)
		fmt.Fprint(e.Output(), debug.DisassembleBytecode(&closure.Prototype.Bytecode))
		return value.Nil()
	}
}

func assertNative(e *vm.Engine) value.Native {
	return func(argc int, args []value.Value) value.Value {
		if argc != 1 {
			e.RuntimeError("Wrong argument count.")
			return value.Nil()
		}
		if !args[0].IsBool() {
			e.RuntimeError("Expected assertion to be a boolean.")
			return value.Nil()
		}

		e.Debug.Assertions++
		if args[0].AsBool() {
			e.Debug.AssertionsMet++
			fmt.Fprintf(e.Output(), "\x1b[32m[OK]\x1b[0m ASSERTION MET\n")
		} else {
			fmt.Fprintf(e.Output(), "\x1b[31m[ERROR]\x1b[0m ASSERTION FAILED\n")
		}
		return value.Nil()
	}
}

func printAssertionResultsNative(e *vm.Engine) value.Native {
	return func(argc int, args []value.Value) value.Value {
		if argc != 0 {
			e.RuntimeError("Wrong argument count.")
			return value.Nil()
		}
		if e.Debug.AssertionsMet == e.Debug.Assertions {
			fmt.Fprintf(e.Output(), "\x1b[32m%d / %d ASSERTIONS MET! ALL OK\x1b[0m\n", e.Debug.AssertionsMet, e.Debug.Assertions)
		} else {
			fmt.Fprintf(e.Output(), "\x1b[31m%d / %d ASSERTIONS MET.\x1b[0m\n", e.Debug.AssertionsMet, e.Debug.Assertions)
		}
		return value.Nil()
	}
}
