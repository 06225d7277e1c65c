package vm_test

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vela/compiler"
	"vela/parser"
	"vela/stdlib"
	"vela/value"
	"vela/vm"
)

// fixture is one engine with a main package and the standard libraries
// installed, its output and error streams captured.
type fixture struct {
	engine *vm.Engine
	pkg    *value.Package
	out    *bytes.Buffer
	errOut *bytes.Buffer
}

func newFixture() *fixture {
	f := &fixture{
		out:    &bytes.Buffer{},
		errOut: &bytes.Buffer{},
	}
	f.engine = vm.NewEngine(func(format string, args ...any) {
		fmt.Fprintf(f.errOut, format, args...)
	})
	f.engine.SetOutput(f.out)
	f.pkg = f.engine.CreatePackage()
	f.pkg.Name = "main"
	stdlib.Install(f.engine, f.pkg)
	return f
}

// run compiles and executes source on the fixture's package,
// returning whether execution succeeded.
func (f *fixture) run(t *testing.T, source string) bool {
	t.Helper()
	f.pkg.Source = source
	f.pkg.Bytecode = value.Bytecode{}

	first, err := parser.Make(source).Parse()
	require.NoError(t, err)

	c := compiler.New(f.engine.Heap(), f.pkg)
	require.NoError(t, c.Compile(first))

	return f.engine.ExecutePackage(f.pkg)
}

func runProgram(t *testing.T, source string) *fixture {
	t.Helper()
	f := newFixture()
	require.True(t, f.run(t, source), "execution failed: %s", f.errOut.String())
	return f
}

func TestScenarioArithmetic(t *testing.T) {
	f := runProgram(t, "io.print(1 + 2 * 3)")
	assert.Equal(t, "7.000000 \n", f.out.String())
}

func TestScenarioMutation(t *testing.T) {
	f := runProgram(t, "var x = 10  x = x - 4  io.print(x)")
	assert.Equal(t, "6.000000 \n", f.out.String())
}

func TestScenarioRecursiveFib(t *testing.T) {
	f := runProgram(t, "var f = fn(n) { if n < 2 n else f(n - 1) + f(n - 2) }  io.print(f(10))")
	assert.Equal(t, "55.000000 \n", f.out.String())
}

func TestScenarioAddTypeError(t *testing.T) {
	f := newFixture()
	ok := f.run(t, "io.print(1 + true)")

	assert.False(t, ok)
	assert.True(t, f.engine.HadError())
	assert.Contains(t, f.errOut.String(), "Cannot add bool and number.")
	assert.Contains(t, f.errOut.String(), "[line 1] io.print(1 + true)")
	assert.Contains(t, f.errOut.String(), "^")
	assert.Empty(t, f.out.String(), "the call must not run")
}

func TestScenarioCounterClosure(t *testing.T) {
	f := runProgram(t, "var mk = fn() { var c = 0  fn() { c = c + 1  c } }  var g = mk()  io.print(g())  io.print(g())")
	assert.Equal(t, "1.000000 \n2.000000 \n", f.out.String())
}

func TestScenarioTopLevelIfBalancesStack(t *testing.T) {
	f := runProgram(t, "if true 1 else 2")
	assert.Equal(t, 0, f.engine.StackDepth())
}

func TestStackBalancedAfterPrograms(t *testing.T) {
	sources := []string{
		"1 + 2",
		"var x = 1  x = x + 1",
		"io.print(3)",
		"{ var a = 1\na + 1 }",
		"var f = fn(n) { n * 2 }  f(21)",
	}
	for _, source := range sources {
		f := runProgram(t, source)
		assert.Equal(t, 0, f.engine.StackDepth(), "unbalanced stack after %q", source)
	}
}

func TestIndependentCounterClosures(t *testing.T) {
	// each call to mk captures a fresh cell, so the two counters do not
	// observe each other's writes
	f := runProgram(t, `var mk = fn() { var c = 0  fn() { c = c + 1  c } }
var a = mk()
var b = mk()
io.print(a())
io.print(a())
io.print(b())`)
	assert.Equal(t, "1.000000 \n2.000000 \n1.000000 \n", f.out.String())
}

func TestUpvaluesClosedAfterScopeExit(t *testing.T) {
	f := runProgram(t, "var mk = fn() { var c = 0  fn() { c } }  var g = mk()")
	assert.Equal(t, 0, f.engine.OpenUpvals())
}

func TestRecursionThroughLocalBinding(t *testing.T) {
	// the closure captures the enclosing block's binding of itself
	f := runProgram(t, `var r = {
	var f = fn(n) { if n == 0 0 else f(n - 1) }
	f
}
io.print(r(5))`)
	assert.Equal(t, "0.000000 \n", f.out.String())
}

func TestCallDepthBoundary(t *testing.T) {
	// frame 0 plus 254 nested calls fills the usable frames
	f := runProgram(t, "var f = fn(n) { if n == 0 0 else f(n - 1) }  io.print(f(253))")
	assert.Equal(t, "0.000000 \n", f.out.String())

	deep := newFixture()
	ok := deep.run(t, "var f = fn(n) { if n == 0 0 else f(n - 1) }  f(254)")
	assert.False(t, ok)
	assert.Contains(t, deep.errOut.String(), "Recursion stack overflow.")
}

func TestArityMismatch(t *testing.T) {
	for _, call := range []string{"f(1, 2)", "f()"} {
		f := newFixture()
		ok := f.run(t, "var f = fn(a) { a }  "+call)
		assert.False(t, ok, "call %q should fail", call)
		assert.Contains(t, f.errOut.String(), "Wrong argument count.")
	}
}

func TestUninitializedGlobalIsNil(t *testing.T) {
	f := runProgram(t, "io.print(missing)")
	assert.Equal(t, "nil \n", f.out.String())
}

func TestStringEqualityIsFalse(t *testing.T) {
	f := runProgram(t, `io.print("a" == "a")`)
	assert.Equal(t, "false \n", f.out.String())
}

func TestIdentityEquality(t *testing.T) {
	f := runProgram(t, "var x = 5  io.print(x == x)  var b = true  io.print(b == b)  io.print(nil == nil)")
	assert.Equal(t, "true \ntrue \ntrue \n", f.out.String())
}

func TestComparisonResults(t *testing.T) {
	f := runProgram(t, "io.print(2 < 10)  io.print(10 > 2)  io.print(2 >= 3)  io.print(3 <= 3)")
	assert.Equal(t, "true \ntrue \nfalse \ntrue \n", f.out.String())
}

func TestUnaryOperators(t *testing.T) {
	f := runProgram(t, "io.print(-4 + 6)  io.print(!false)")
	assert.Equal(t, "2.000000 \ntrue \n", f.out.String())
}

func TestModulo(t *testing.T) {
	f := runProgram(t, "io.print(10 % 3)")
	assert.Equal(t, "1.000000 \n", f.out.String())
}

func TestBlockYieldsLastValue(t *testing.T) {
	f := runProgram(t, "var x = { 1\n2\n3 }  io.print(x)")
	assert.Equal(t, "3.000000 \n", f.out.String())
}

func TestIfWithoutElseYieldsNil(t *testing.T) {
	f := runProgram(t, "var x = if false 1  io.print(x)")
	assert.Equal(t, "nil \n", f.out.String())
}

func TestImportExpression(t *testing.T) {
	f := runProgram(t, `import "io" as stdout
stdout.print(9)`)
	assert.Equal(t, "9.000000 \n", f.out.String())
}

func TestUnknownImport(t *testing.T) {
	f := newFixture()
	ok := f.run(t, `import "nope"`)
	assert.False(t, ok)
	assert.Contains(t, f.errOut.String(), "Unknown package 'nope'.")
}

func TestUnknownPackageMemberReadsNil(t *testing.T) {
	// members bind lazily, so calling an unassigned one fails on the
	// nil value rather than the lookup
	f := newFixture()
	ok := f.run(t, "io.nonsense(1)")
	assert.False(t, ok)
	assert.Contains(t, f.errOut.String(), "Cannot call nil.")
}

func TestSubscriptSetOnPackage(t *testing.T) {
	f := runProgram(t, "io.extra = 5  io.print(io.extra)")
	assert.Equal(t, "5.000000 \n", f.out.String())
}

func TestCannotIndexNumber(t *testing.T) {
	f := newFixture()
	ok := f.run(t, "var x = 1  x.y")
	assert.False(t, ok)
	assert.Contains(t, f.errOut.String(), "Cannot index number.")
}

func TestCallNonCallableReportsTypeName(t *testing.T) {
	f := newFixture()
	ok := f.run(t, "var x = true  x()")
	assert.False(t, ok)
	assert.Contains(t, f.errOut.String(), "Cannot call bool.")
}

func TestGarbageCollectionKeepsReachableObjects(t *testing.T) {
	f := runProgram(t, "var mk = fn() { var c = 0  fn() { c = c + 1  c } }  var g = mk()  g()")
	f.engine.CollectGarbage()

	// the closure bound to g survives collection and still works
	require.True(t, f.run(t, "io.print(g())"), f.errOut.String())
	assert.Equal(t, "2.000000 \n", f.out.String())
}

func TestGarbageCollectionDropsUnreachableObjects(t *testing.T) {
	f := newFixture()
	// root the main package so its stdlib bindings survive
	f.engine.RegisterPackage(f.pkg)
	before := f.engine.Heap().Count()

	// allocate a string reachable from nothing
	f.engine.TakeString("ephemeral")
	require.Equal(t, before+1, f.engine.Heap().Count())

	f.engine.CollectGarbage()
	assert.Equal(t, before, f.engine.Heap().Count())
}

func TestGarbageCollectionIsStableAcrossRuns(t *testing.T) {
	f := runProgram(t, "var mk = fn() { var c = 0  fn() { c } }  var g = mk()")
	f.engine.CollectGarbage()
	first := f.engine.Heap().Count()

	f.engine.CollectGarbage()
	assert.Equal(t, first, f.engine.Heap().Count(), "a second collection must be a no-op")
}

func TestParseErrorKeepsEngineUsable(t *testing.T) {
	f := newFixture()
	_, err := parser.Make("var = ").Parse()
	require.Error(t, err)

	// the engine was never touched; a valid program still runs
	require.True(t, f.run(t, "io.print(1)"))
	assert.Equal(t, "1.000000 \n", f.out.String())
}

func TestChainedCalls(t *testing.T) {
	f := runProgram(t, "var add = fn(a) { fn(b) { a + b } }  io.print(add(2)(3))")
	assert.Equal(t, "5.000000 \n", f.out.String())
}

func TestStringsFlowThroughTheStack(t *testing.T) {
	f := runProgram(t, `var s = "hello"  io.print(s, "world")`)
	assert.Equal(t, "hello world \n", f.out.String())
}

func TestNestedBlocksAndShadowing(t *testing.T) {
	f := runProgram(t, `var x = { var a = 1
{ var a = 10
a + 1 } }
io.print(x)`)
	assert.Equal(t, "11.000000 \n", f.out.String())
}

func TestPointerEvaporationThroughGlobals(t *testing.T) {
	// y = x stores x's value, not an alias
	f := runProgram(t, "var x = 1  var y = x  x = 2  io.print(y)")
	assert.Equal(t, "1.000000 \n", f.out.String())
}

func TestConditionMustBeBool(t *testing.T) {
	f := newFixture()
	ok := f.run(t, "if 1 2 else 3")
	assert.False(t, ok)
	assert.Contains(t, f.errOut.String(), "Condition must be a boolean.")
}

func TestRuntimeErrorLineNumbers(t *testing.T) {
	f := newFixture()
	ok := f.run(t, "var x = 1\nvar y = 2\nio.print(x + true)")
	assert.False(t, ok)
	assert.Contains(t, f.errOut.String(), "[line 3] io.print(x + true)")

	// caret alignment: the pad is the prefix width plus the offset of
	// the + within its line
	line := "io.print(x + true)"
	pad := len("[line 3] ") + strings.Index(line, "+")
	assert.Contains(t, f.errOut.String(), "\n"+strings.Repeat(" ", pad)+"^\n")
}
