package interpreter_test

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"lunette/pkg/chunk"
	"lunette/pkg/interpreter"
	"lunette/pkg/opcode"
	"lunette/pkg/parser"
)

type scenario struct {
	Name    string `yaml:"name"`
	Source  string `yaml:"source"`
	Args    []any  `yaml:"args"`
	Results []any  `yaml:"results"`
	Error   string `yaml:"error"`
}

func load(t *testing.T, source string, globals map[string]interpreter.Value, opts ...interpreter.Option) *interpreter.Closure {
	t.Helper()
	b, err := parser.Compile(source, "=test")
	if err != nil {
		t.Fatalf("compile failed: %v", err)
	}
	main, err := interpreter.Load(b, globals, opts...)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	return main
}

func run(t *testing.T, source string, args ...interpreter.Value) ([]interpreter.Value, error) {
	t.Helper()
	return load(t, source, nil).Call(args...)
}

// expected converts a fixture value to the representation the engine uses
func expected(v any) interpreter.Value {
	if n, ok := v.(int); ok {
		return float64(n)
	}

	return v
}

func expectResults(t *testing.T, got []interpreter.Value, want ...any) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d results %v, got %d %v", len(want), want, len(got), got)
	}
	for i := range want {
		if !interpreter.RawEquals(expected(want[i]), got[i]) {
			t.Errorf("result %d: expected %v, got %v", i+1, want[i], got[i])
		}
	}
}

func TestScenarios(t *testing.T) {
	data, err := os.ReadFile("testdata/scenarios.yaml")
	if err != nil {
		t.Fatalf("cannot read fixtures: %v", err)
	}
	var scenarios []scenario
	if err := yaml.Unmarshal(data, &scenarios); err != nil {
		t.Fatalf("cannot decode fixtures: %v", err)
	}

	for _, sc := range scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			args := make([]interpreter.Value, len(sc.Args))
			for i, a := range sc.Args {
				args[i] = a
			}
			results, err := run(t, sc.Source, args...)

			if sc.Error != "" {
				if err == nil {
					t.Fatalf("expected error %q, got results %v", sc.Error, results)
				}
				if err.Error() != sc.Error {
					t.Errorf("expected error %q, got %q", sc.Error, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			expectResults(t, results, sc.Results...)
		})
	}
}

func TestRuntimeErrorType(t *testing.T) {
	_, err := run(t, "local t\nreturn t.x")
	var rerr *interpreter.RuntimeError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *RuntimeError, got %T", err)
	}
	if rerr.Source != "test" || rerr.Line != 2 {
		t.Errorf("expected position test:2, got %s:%d", rerr.Source, rerr.Line)
	}
	if !strings.Contains(rerr.Err.Error(), "attempt to index local 't'") {
		t.Errorf("unexpected cause %v", rerr.Err)
	}
}

func TestHostFunctions(t *testing.T) {
	var printed []string
	globals := map[string]interpreter.Value{
		"add": func(args ...interpreter.Value) ([]interpreter.Value, error) {
			return []interpreter.Value{args[0].(float64) + args[1].(float64)}, nil
		},
		"print": interpreter.HostFunction(func(args ...interpreter.Value) ([]interpreter.Value, error) {
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = interpreter.ToDisplay(a)
			}
			printed = append(printed, strings.Join(parts, "\t"))
			return nil, nil
		}),
		"n": 5,
	}

	results, err := load(t, `print("sum", add(n, 2), nil, true) return add(1, 2), type`, globals).Call()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectResults(t, results, 3, nil)
	if len(printed) != 1 || printed[0] != "sum\t7\tnil\ttrue" {
		t.Errorf("unexpected output %q", printed)
	}
}

func TestHostErrorsCarryPosition(t *testing.T) {
	boom := errors.New("boom")
	globals := map[string]interpreter.Value{
		"fail": interpreter.HostFunction(func(args ...interpreter.Value) ([]interpreter.Value, error) {
			return nil, boom
		}),
	}

	_, err := load(t, "local x = 1\nfail()", globals).Call()
	if !errors.Is(err, boom) {
		t.Fatalf("expected the host error, got %v", err)
	}
	if err.Error() != "test:2: boom" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestHostCallsClosures(t *testing.T) {
	results, err := run(t, "return function(a, b) return a * b, a .. b end")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fn, ok := results[0].(*interpreter.Closure)
	if !ok {
		t.Fatalf("expected a closure, got %T", results[0])
	}
	if interpreter.TypeName(fn) != "function" {
		t.Errorf("unexpected type name %s", interpreter.TypeName(fn))
	}

	out, err := interpreter.Call(fn, 6, int64(7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectResults(t, out, 42, "67")

	_, err = interpreter.Call("not a function")
	if err == nil {
		t.Error("expected an error calling a string")
	}
}

func TestGlobalsAreShared(t *testing.T) {
	globals := map[string]interpreter.Value{"gone": true}
	if _, err := load(t, "x = 42 gone = nil", globals).Call(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if globals["x"] != 42.0 {
		t.Errorf("expected x = 42, got %v", globals["x"])
	}
	if _, ok := globals["gone"]; ok {
		t.Error("assigning nil did not remove the global")
	}
}

func TestMaxSteps(t *testing.T) {
	main := load(t, "while true do end", nil, interpreter.WithMaxSteps(1000))
	_, err := main.Call()
	if !errors.Is(err, interpreter.ErrMaxStepsExceeded) {
		t.Fatalf("expected ErrMaxStepsExceeded, got %v", err)
	}

	main = load(t, "local s = 0 for i = 1, 10 do s = s + i end return s", nil, interpreter.WithMaxSteps(1000))
	results, err := main.Call()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectResults(t, results, 55)
}

func TestStepsAndReset(t *testing.T) {
	it := interpreter.NewInterpreter(nil)
	b, err := parser.Compile("local a = 1 return a", "=test")
	if err != nil {
		t.Fatal(err)
	}
	main, err := it.Load(b)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := main.Call(); err != nil {
		t.Fatal(err)
	}
	if it.Steps() != 2 {
		t.Errorf("expected 2 steps, got %d", it.Steps())
	}
	it.Reset()
	if it.Steps() != 0 {
		t.Errorf("expected 0 steps after reset, got %d", it.Steps())
	}
}

func TestTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)
	logger.SetLevel(log.DebugLevel)

	main := load(t, "return 1", nil, interpreter.WithLogger(logger), interpreter.WithTrace(true))
	if _, err := main.Call(); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "exec") {
		t.Errorf("trace output missing:\n%s", buf.String())
	}
}

func TestLargeConstructor(t *testing.T) {
	// more than 511 batches stores the batch number in an extra word
	n := opcode.FieldsPerFlush*(opcode.MaxArgC+1) + 3
	items := make([]string, n)
	for i := range items {
		items[i] = fmt.Sprint(i + 1)
	}
	results, err := run(t, "local t = {"+strings.Join(items, ",")+"} return #t, t[1], t["+fmt.Sprint(n)+"]")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expectResults(t, results, n, 1, n)
}

func TestLoadErrors(t *testing.T) {
	if _, err := interpreter.Load([]byte("print(1)"), nil); !errors.Is(err, chunk.ErrSignature) {
		t.Errorf("expected ErrSignature, got %v", err)
	}

	ret := opcode.CreateABC(opcode.OpReturn, 0, 1, 0)
	tests := []struct {
		name  string
		proto *chunk.Prototype
	}{
		{"register out of range", &chunk.Prototype{
			Code: []opcode.Instruction{opcode.CreateABC(opcode.OpMove, 5, 0, 0), ret},
		}},
		{"constant out of range", &chunk.Prototype{
			Code: []opcode.Instruction{opcode.CreateABx(opcode.OpLoadK, 0, 3), ret},
		}},
		{"global name is not a string", &chunk.Prototype{
			Code:      []opcode.Instruction{opcode.CreateABx(opcode.OpGetGlobal, 0, 0), ret},
			Constants: []chunk.Constant{1.0},
		}},
		{"jump out of range", &chunk.Prototype{
			Code: []opcode.Instruction{opcode.CreateAsBx(opcode.OpJmp, 0, 100), ret},
		}},
		{"test without jump", &chunk.Prototype{
			Code: []opcode.Instruction{opcode.CreateABC(opcode.OpEq, 0, 0, 1), ret},
		}},
		{"missing function", &chunk.Prototype{
			Code: []opcode.Instruction{opcode.CreateABx(opcode.OpClosure, 0, 0), ret},
		}},
		{"upvalue out of range", &chunk.Prototype{
			Code: []opcode.Instruction{opcode.CreateABC(opcode.OpGetUpval, 0, 0, 0), ret},
		}},
		{"main function with upvalues", &chunk.Prototype{
			NumUpvalues: 1,
			Code:        []opcode.Instruction{ret},
		}},
		{"bad opcode", &chunk.Prototype{
			Code: []opcode.Instruction{opcode.Instruction(63), ret},
		}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p := test.proto
			p.Source = "=bad"
			p.MaxStackSize = 2
			p.IsVararg = chunk.VarargIsVararg

			var buf bytes.Buffer
			if err := chunk.Dump(&buf, p); err != nil {
				t.Fatalf("dump failed: %v", err)
			}
			if _, err := interpreter.Load(buf.Bytes(), nil); !errors.Is(err, chunk.ErrFormat) {
				t.Errorf("expected ErrFormat, got %v", err)
			}
		})
	}
}

func TestChunkRunsAfterRoundTrip(t *testing.T) {
	source := "local function fib(n) if n < 2 then return n end return fib(n-1) + fib(n-2) end return fib(15)"
	p, err := parser.Parse(source, "=test")
	if err != nil {
		t.Fatal(err)
	}

	for _, strip := range []bool{false, true} {
		var buf bytes.Buffer
		if err := chunk.Dump(&buf, p, chunk.WithStrip(strip)); err != nil {
			t.Fatal(err)
		}
		main, err := interpreter.Load(buf.Bytes(), nil)
		if err != nil {
			t.Fatalf("load failed (strip=%v): %v", strip, err)
		}
		results, err := main.Call()
		if err != nil {
			t.Fatalf("unexpected error (strip=%v): %v", strip, err)
		}
		expectResults(t, results, 610)
	}
}

func TestStrippedErrorsHaveNoLine(t *testing.T) {
	p, err := parser.Parse("local t return t.x", "=test")
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := chunk.Dump(&buf, p, chunk.WithStrip(true)); err != nil {
		t.Fatal(err)
	}
	main, err := interpreter.Load(buf.Bytes(), nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = main.Call()
	if err == nil || err.Error() != "?:?: attempt to index a nil value" {
		t.Errorf("unexpected error %v", err)
	}
}

func TestToDisplay(t *testing.T) {
	tests := []struct {
		v        interpreter.Value
		expected string
	}{
		{nil, "nil"},
		{true, "true"},
		{3.0, "3"},
		{0.1, "0.1"},
		{"s", "s"},
	}
	for _, test := range tests {
		if got := interpreter.ToDisplay(test.v); got != test.expected {
			t.Errorf("ToDisplay(%v): expected %q, got %q", test.v, test.expected, got)
		}
	}
	if !strings.HasPrefix(interpreter.ToDisplay(interpreter.NewTable(0, 0)), "table: ") {
		t.Error("tables should display as table: <address>")
	}
}
