package opcode_test

import (
	"testing"

	"lunette/pkg/opcode"
)

func TestFieldLayout(t *testing.T) {
	i := opcode.CreateABC(opcode.OpAdd, 1, 2, 3)
	want := opcode.Instruction(uint32(opcode.OpAdd) | 1<<6 | 3<<14 | 2<<23)
	if i != want {
		t.Fatalf("expected %#08x, got %#08x", uint32(want), uint32(i))
	}
	if i.OpCode() != opcode.OpAdd || i.A() != 1 || i.B() != 2 || i.C() != 3 {
		t.Errorf("decoded %s", i)
	}
}

func TestABxAndSBx(t *testing.T) {
	i := opcode.CreateABx(opcode.OpLoadK, 7, opcode.MaxArgBx)
	if i.A() != 7 || i.Bx() != opcode.MaxArgBx {
		t.Errorf("expected A=7 Bx=%d, got %s", opcode.MaxArgBx, i)
	}

	for _, sbx := range []int{0, 1, -1, opcode.MaxArgSBx, -opcode.MaxArgSBx} {
		j := opcode.CreateAsBx(opcode.OpJmp, 0, sbx)
		if j.SBx() != sbx {
			t.Errorf("sBx %d decoded as %d", sbx, j.SBx())
		}
	}
	if opcode.MaxArgSBx != 131071 {
		t.Errorf("expected sBx bias 131071, got %d", opcode.MaxArgSBx)
	}
}

func TestSetters(t *testing.T) {
	i := opcode.CreateABC(opcode.OpMove, 0, 0, 0)
	i.SetOpCode(opcode.OpCall)
	i.SetA(5)
	i.SetB(opcode.MaxArgB)
	i.SetC(2)
	if i.OpCode() != opcode.OpCall || i.A() != 5 || i.B() != opcode.MaxArgB || i.C() != 2 {
		t.Errorf("unexpected fields after set: %s", i)
	}
	i.SetB(0)
	if i.B() != 0 || i.C() != 2 || i.A() != 5 {
		t.Errorf("SetB disturbed other fields: %s", i)
	}
}

func TestRK(t *testing.T) {
	k := opcode.RKAsK(3)
	if !opcode.IsK(k) || opcode.IndexK(k) != 3 {
		t.Errorf("RK constant 3 encoded as %d", k)
	}
	if opcode.IsK(opcode.MaxIndexRK) {
		t.Errorf("register %d reported as a constant", opcode.MaxIndexRK)
	}
	if opcode.BitRK != 256 {
		t.Errorf("expected BitRK 256, got %d", opcode.BitRK)
	}
}

func TestFloatingPointByte(t *testing.T) {
	for x := 0; x < 16; x++ {
		if got := opcode.FB2Int(opcode.Int2FB(x)); got != x {
			t.Errorf("small size %d round-tripped to %d", x, got)
		}
	}
	for _, x := range []int{16, 17, 50, 100, 1000, 123456} {
		got := opcode.FB2Int(opcode.Int2FB(x))
		if got < x {
			t.Errorf("size %d encoded below itself as %d", x, got)
		}
		if got > x+x/8+1 {
			t.Errorf("size %d encoded too coarsely as %d", x, got)
		}
	}
}

func TestOpcodeTable(t *testing.T) {
	tests := []struct {
		op   opcode.OpCode
		name string
		mode opcode.Mode
		test bool
	}{
		{opcode.OpMove, "MOVE", opcode.ModeABC, false},
		{opcode.OpLoadK, "LOADK", opcode.ModeABx, false},
		{opcode.OpJmp, "JMP", opcode.ModeAsBx, false},
		{opcode.OpEq, "EQ", opcode.ModeABC, true},
		{opcode.OpTestSet, "TESTSET", opcode.ModeABC, true},
		{opcode.OpTForLoop, "TFORLOOP", opcode.ModeABC, true},
		{opcode.OpClosure, "CLOSURE", opcode.ModeABx, false},
		{opcode.OpVararg, "VARARG", opcode.ModeABC, false},
	}

	for _, test := range tests {
		if test.op.String() != test.name {
			t.Errorf("expected %s, got %s", test.name, test.op)
		}
		if test.op.Mode() != test.mode {
			t.Errorf("%s: unexpected mode %d", test.name, test.op.Mode())
		}
		if test.op.IsTest() != test.test {
			t.Errorf("%s: IsTest = %v", test.name, test.op.IsTest())
		}
	}

	if opcode.NumOpcodes != 38 {
		t.Errorf("expected 38 opcodes, got %d", opcode.NumOpcodes)
	}
	if int(opcode.OpVararg) != 37 || int(opcode.OpClosure) != 36 {
		t.Errorf("opcode numbering does not match the chunk format")
	}
	if opcode.OpCode(38).Valid() {
		t.Errorf("opcode 38 reported valid")
	}
}
