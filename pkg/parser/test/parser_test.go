package parser_test

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"lunette/pkg/chunk"
	"lunette/pkg/opcode"
	"lunette/pkg/parser"
)

type ins struct {
	op      opcode.OpCode
	a, b, c int
}

func compile(t *testing.T, source string) *chunk.Prototype {
	t.Helper()
	p, err := parser.Parse(source, "=test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return p
}

// expectCode compares ABC instructions; ABx and AsBx operands are compared
// through b.
func expectCode(t *testing.T, p *chunk.Prototype, expected []ins) {
	t.Helper()
	if len(p.Code) != len(expected) {
		t.Fatalf("expected %d instructions, got %d:\n%s", len(expected), len(p.Code), dumpCode(p))
	}
	for pc, e := range expected {
		i := p.Code[pc]
		var got ins
		switch i.OpCode().Mode() {
		case opcode.ModeABx:
			got = ins{i.OpCode(), i.A(), i.Bx(), 0}
		case opcode.ModeAsBx:
			got = ins{i.OpCode(), i.A(), i.SBx(), 0}
		default:
			got = ins{i.OpCode(), i.A(), i.B(), i.C()}
		}
		if got != e {
			t.Errorf("instruction %d: expected %s %d %d %d, got %s", pc+1, e.op, e.a, e.b, e.c, i)
		}
	}
}

func dumpCode(p *chunk.Prototype) string {
	var sb strings.Builder
	for pc, i := range p.Code {
		fmt.Fprintf(&sb, "\t%d\t%s\n", pc+1, i)
	}

	return sb.String()
}

func TestConstantFolding(t *testing.T) {
	p := compile(t, "local a = 1 + 1")
	expectCode(t, p, []ins{
		{opcode.OpLoadK, 0, 0, 0},
		{opcode.OpReturn, 0, 1, 0},
	})
	if len(p.Constants) != 1 || p.Constants[0] != 2.0 {
		t.Errorf("expected constants [2], got %v", p.Constants)
	}

	p = compile(t, "local a = -(2 * 3) ^ 2")
	if len(p.Constants) != 1 || p.Constants[0] != -36.0 {
		t.Errorf("expected constants [-36], got %v", p.Constants)
	}
}

func TestDivisionByZeroIsNotFolded(t *testing.T) {
	p := compile(t, "local a = 10 / 0")
	expectCode(t, p, []ins{
		{opcode.OpDiv, 0, opcode.RKAsK(1), opcode.RKAsK(0)},
		{opcode.OpReturn, 0, 1, 0},
	})

	p = compile(t, "local a = 10 % 0")
	if p.Code[0].OpCode() != opcode.OpMod {
		t.Errorf("expected MOD, got %s", p.Code[0])
	}
}

func TestRegisterAllocation(t *testing.T) {
	p := compile(t, "local a, b = 1, 2\nlocal c = a + b")
	expectCode(t, p, []ins{
		{opcode.OpLoadK, 0, 0, 0},
		{opcode.OpLoadK, 1, 1, 0},
		{opcode.OpAdd, 2, 0, 1},
		{opcode.OpReturn, 0, 1, 0},
	})
	if p.MaxStackSize != 3 {
		t.Errorf("expected max stack 3, got %d", p.MaxStackSize)
	}
	if len(p.LocVars) != 3 || p.LocVars[2].Name != "c" || p.LocVars[2].StartPC != 3 {
		t.Errorf("unexpected locals %+v", p.LocVars)
	}
}

func TestGlobalCall(t *testing.T) {
	p := compile(t, `print("hi")`)
	expectCode(t, p, []ins{
		{opcode.OpGetGlobal, 0, 0, 0},
		{opcode.OpLoadK, 1, 1, 0},
		{opcode.OpCall, 0, 2, 1},
		{opcode.OpReturn, 0, 1, 0},
	})
	if p.Constants[0] != "print" || p.Constants[1] != "hi" {
		t.Errorf("unexpected constants %v", p.Constants)
	}
}

func TestTableConstructor(t *testing.T) {
	p := compile(t, "local t = {1, 2, 3}")
	expectCode(t, p, []ins{
		{opcode.OpNewTable, 0, 3, 0},
		{opcode.OpLoadK, 1, 0, 0},
		{opcode.OpLoadK, 2, 1, 0},
		{opcode.OpLoadK, 3, 2, 0},
		{opcode.OpSetList, 0, 3, 1},
		{opcode.OpReturn, 0, 1, 0},
	})
	if p.MaxStackSize != 4 {
		t.Errorf("expected max stack 4, got %d", p.MaxStackSize)
	}
}

func TestLargeConstructorFlushes(t *testing.T) {
	items := make([]string, 120)
	for i := range items {
		items[i] = "0"
	}
	p := compile(t, "local t = {"+strings.Join(items, ", ")+"}")

	var batches []int
	for _, i := range p.Code {
		if i.OpCode() == opcode.OpSetList {
			batches = append(batches, i.C())
		}
	}
	if len(batches) != 3 || batches[0] != 1 || batches[1] != 2 || batches[2] != 3 {
		t.Errorf("expected SETLIST batches [1 2 3], got %v", batches)
	}
}

func TestClosureUpvalues(t *testing.T) {
	p := compile(t, "local x = 1\nfunction f() return x end")
	expectCode(t, p, []ins{
		{opcode.OpLoadK, 0, 0, 0},
		{opcode.OpClosure, 1, 0, 0},
		{opcode.OpMove, 0, 0, 0},
		{opcode.OpSetGlobal, 1, 1, 0},
		{opcode.OpReturn, 0, 1, 0},
	})

	child := p.Protos[0]
	expectCode(t, child, []ins{
		{opcode.OpGetUpval, 0, 0, 0},
		{opcode.OpReturn, 0, 2, 0},
		{opcode.OpReturn, 0, 1, 0},
	})
	if child.NumUpvalues != 1 || len(child.Upvalues) != 1 || child.Upvalues[0] != "x" {
		t.Errorf("unexpected upvalues %d %v", child.NumUpvalues, child.Upvalues)
	}
	if child.LineDefined != 2 || child.LastLineDefined != 2 {
		t.Errorf("unexpected line range %d-%d", child.LineDefined, child.LastLineDefined)
	}
}

func TestVarargFlags(t *testing.T) {
	p := compile(t, "function f(a, ...) return ... end")
	if p.IsVararg != chunk.VarargIsVararg {
		t.Errorf("main function: expected vararg flags %d, got %d", chunk.VarargIsVararg, p.IsVararg)
	}
	child := p.Protos[0]
	if child.IsVararg != chunk.VarargIsVararg|chunk.VarargNeedsArg {
		t.Errorf("f: unexpected vararg flags %d", child.IsVararg)
	}
	if child.NumParams != 1 {
		t.Errorf("f: expected 1 parameter, got %d", child.NumParams)
	}
}

func TestLineInfo(t *testing.T) {
	p := compile(t, "local a = 1\nlocal b = 2")
	want := []int{1, 2, 2}
	if len(p.LineInfo) != len(want) {
		t.Fatalf("expected %v, got %v", want, p.LineInfo)
	}
	for i := range want {
		if p.LineInfo[i] != want[i] {
			t.Errorf("expected %v, got %v", want, p.LineInfo)
			break
		}
	}
}

func TestConditionalJumps(t *testing.T) {
	p := compile(t, "local a, b\nif a < b then a = b end")
	// fresh registers are already nil, so no LOADNIL
	ops := []opcode.OpCode{opcode.OpLt, opcode.OpJmp, opcode.OpMove, opcode.OpReturn}
	if len(p.Code) != len(ops) {
		t.Fatalf("unexpected code:\n%s", dumpCode(p))
	}
	for pc, op := range ops {
		if p.Code[pc].OpCode() != op {
			t.Errorf("instruction %d: expected %s, got %s", pc+1, op, p.Code[pc])
		}
	}
	if p.Code[1].SBx() != 1 {
		t.Errorf("expected the jump to skip one instruction, got %d", p.Code[1].SBx())
	}
}

func TestSyntaxErrors(t *testing.T) {
	tests := []struct {
		source   string
		expected string
	}{
		{"x = ", "test:1: unexpected symbol near '<eof>'"},
		{"local 1", "test:1: '<name>' expected near '1'"},
		{"if x then", "test:1: 'end' expected near '<eof>'"},
		{"while true do\n\nx = 1", "test:3: 'end' expected (to close 'while' at line 1) near '<eof>'"},
		{"break", "test:1: no loop to break near '<eof>'"},
		{"f() = 1", "test:1: syntax error near '='"},
		{"function f() return ... end", "test:1: cannot use '...' outside a vararg function near '...'"},
		{"for i do end", "test:1: '=' or 'in' expected near 'do'"},
		{"x = 'abc", "test:1: unfinished string near '<eof>'"},
		{"return 1 x = 2", "test:1: '<eof>' expected near 'x'"},
	}

	for _, test := range tests {
		_, err := parser.Parse(test.source, "=test")
		if err == nil {
			t.Errorf("%q: expected an error", test.source)
			continue
		}
		var perr *parser.Error
		if !errors.As(err, &perr) {
			t.Errorf("%q: expected *parser.Error, got %T", test.source, err)
			continue
		}
		if err.Error() != test.expected {
			t.Errorf("%q: expected %q, got %q", test.source, test.expected, err.Error())
		}
	}
}

func TestTooManyLocals(t *testing.T) {
	names := make([]string, 201)
	for i := range names {
		names[i] = fmt.Sprintf("v%d", i)
	}
	_, err := parser.Parse("local "+strings.Join(names, ", "), "=test")
	if err == nil || err.Error() != "test:1: main function has more than 200 local variables" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestControlStructureTooLong(t *testing.T) {
	source := "while true do\n" + strings.Repeat("x = 1\n", 70000) + "end"
	_, err := parser.Parse(source, "=test")
	if err == nil || !strings.Contains(err.Error(), "control structure too long") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCompileWritesChunk(t *testing.T) {
	b, err := parser.Compile("return 1", "=test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.HasPrefix(b, []byte(chunk.Signature)) {
		t.Errorf("chunk does not start with the signature")
	}
}
