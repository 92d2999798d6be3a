package chunk_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"lunette/pkg/chunk"
	"lunette/pkg/color"
	"lunette/pkg/opcode"
	"lunette/pkg/parser"
)

const program = `
local function counter(start)
  local n = start
  return function(step) n = n + (step or 1) return n end
end
local t = {1, 2.5, "three", true}
t.name = "x"
print(counter(10)(), #t, nil)
`

func parse(t *testing.T, source string) *chunk.Prototype {
	t.Helper()
	p, err := parser.Parse(source, "=test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return p
}

func dump(t *testing.T, p *chunk.Prototype, opts ...chunk.DumpOption) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := chunk.Dump(&buf, p, opts...); err != nil {
		t.Fatalf("dump failed: %v", err)
	}

	return buf.Bytes()
}

func TestHeader(t *testing.T) {
	b := dump(t, parse(t, "return"))
	want := []byte{0x1b, 'L', 'u', 'a', 0x51, 0, 1, 4, 8, 4, 8, 0}
	if !bytes.Equal(b[:12], want) {
		t.Errorf("expected header % x, got % x", want, b[:12])
	}

	b = dump(t, parse(t, "return"), chunk.WithByteOrder(binary.BigEndian))
	if b[6] != 0 {
		t.Errorf("expected big endian flag 0, got %d", b[6])
	}
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		opts []chunk.DumpOption
	}{
		{"little endian", nil},
		{"big endian", []chunk.DumpOption{chunk.WithByteOrder(binary.BigEndian)}},
		{"stripped", []chunk.DumpOption{chunk.WithStrip(true)}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			first := dump(t, parse(t, program), test.opts...)
			p, err := chunk.Undump(first)
			if err != nil {
				t.Fatalf("undump failed: %v", err)
			}
			second := dump(t, p, test.opts...)
			if !bytes.Equal(first, second) {
				t.Errorf("chunk changed after a round trip (%d vs %d bytes)", len(first), len(second))
			}
		})
	}
}

func TestUndumpContents(t *testing.T) {
	orig := parse(t, program)
	p, err := chunk.Undump(dump(t, orig))
	if err != nil {
		t.Fatalf("undump failed: %v", err)
	}

	if p.Source != "=test" {
		t.Errorf("expected source =test, got %q", p.Source)
	}
	if len(p.Protos) != 1 || p.Protos[0].Source != "=test" {
		t.Fatalf("nested function did not inherit the source")
	}
	if len(p.Code) != len(orig.Code) || len(p.LineInfo) != len(orig.LineInfo) {
		t.Errorf("code or line info lost")
	}
	for i, k := range orig.Constants {
		if p.Constants[i] != k {
			t.Errorf("constant %d: expected %v, got %v", i, k, p.Constants[i])
		}
	}
	inner := p.Protos[0].Protos[0]
	if inner.NumUpvalues != 1 || inner.Upvalues[0] != "n" {
		t.Errorf("unexpected upvalues %v", inner.Upvalues)
	}
}

func TestStripDropsDebugInfo(t *testing.T) {
	full := dump(t, parse(t, program))
	stripped := dump(t, parse(t, program), chunk.WithStrip(true))
	if len(stripped) >= len(full) {
		t.Errorf("stripped chunk is not smaller: %d >= %d", len(stripped), len(full))
	}

	p, err := chunk.Undump(stripped)
	if err != nil {
		t.Fatalf("undump failed: %v", err)
	}
	if len(p.LineInfo) != 0 || len(p.LocVars) != 0 || len(p.Upvalues) != 0 {
		t.Errorf("debug information survived stripping")
	}
	if p.Source != "=?" {
		t.Errorf("expected placeholder source, got %q", p.Source)
	}
}

func TestHeaderErrors(t *testing.T) {
	good := dump(t, parse(t, "return 1"))
	patch := func(offset int, v byte) []byte {
		b := append([]byte(nil), good...)
		b[offset] = v
		return b
	}

	tests := []struct {
		name  string
		input []byte
		err   error
	}{
		{"empty", nil, chunk.ErrSignature},
		{"signature", patch(1, 'X'), chunk.ErrSignature},
		{"version", patch(4, 0x52), chunk.ErrVersion},
		{"format", patch(5, 1), chunk.ErrFormat},
		{"endianness", patch(6, 2), chunk.ErrFormat},
		{"int size", patch(7, 3), chunk.ErrFormat},
		{"size_t size", patch(8, 2), chunk.ErrFormat},
		{"instruction size", patch(9, 8), chunk.ErrFormat},
		{"number size", patch(10, 5), chunk.ErrNumberFormat},
		{"integral flag", patch(11, 2), chunk.ErrNumberFormat},
		{"truncated", good[:len(good)-1], chunk.ErrTruncated},
	}

	for _, test := range tests {
		_, err := chunk.Undump(test.input)
		if !errors.Is(err, test.err) {
			t.Errorf("%s: expected %v, got %v", test.name, test.err, err)
		}
	}
}

func TestEveryTruncationFails(t *testing.T) {
	b := dump(t, parse(t, program))
	for n := 0; n < len(b); n++ {
		if _, err := chunk.Undump(b[:n]); err == nil {
			t.Fatalf("prefix of %d bytes accepted", n)
		}
	}
}

func TestHugeArrayCounts(t *testing.T) {
	// little endian, 8-byte ints and sizes, 8-byte float numbers
	header := func() *bytes.Buffer {
		var buf bytes.Buffer
		buf.WriteString(chunk.Signature)
		buf.Write([]byte{0x51, 0, 1, 8, 8, 4, 8, 0})
		return &buf
	}
	u64 := func(buf *bytes.Buffer, v uint64) {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v)
		buf.Write(b[:])
	}
	function := func(buf *bytes.Buffer) {
		u64(buf, 0)                   // no source
		u64(buf, 0)                   // line defined
		u64(buf, 0)                   // last line defined
		buf.Write([]byte{0, 0, 2, 2}) // upvalues, params, vararg, stack
	}

	for _, n := range []uint64{1 << 62, 1<<62 + 1, 1 << 63, math.MaxUint64} {
		code := header()
		function(code)
		u64(code, n)

		constants := header()
		function(constants)
		u64(constants, 1)
		binary.Write(constants, binary.LittleEndian, uint32(opcode.CreateABC(opcode.OpReturn, 0, 1, 0)))
		u64(constants, n)

		for name, b := range map[string][]byte{"code": code.Bytes(), "constants": constants.Bytes()} {
			if _, err := chunk.Undump(b); !errors.Is(err, chunk.ErrTruncated) {
				t.Errorf("%s count %#x: expected ErrTruncated, got %v", name, n, err)
			}
		}
	}
}

func TestForeignMachineChunk(t *testing.T) {
	// big endian, 8-byte ints and sizes, 4-byte integral numbers
	var buf bytes.Buffer
	order := binary.BigEndian
	u64 := func(v uint64) {
		var b [8]byte
		order.PutUint64(b[:], v)
		buf.Write(b[:])
	}
	u32 := func(v uint32) {
		var b [4]byte
		order.PutUint32(b[:], v)
		buf.Write(b[:])
	}

	buf.WriteString(chunk.Signature)
	buf.Write([]byte{0x51, 0, 0, 8, 8, 4, 4, 1})
	u64(3)
	buf.WriteString("=x\x00")
	u64(0)                        // line defined
	u64(0)                        // last line defined
	buf.Write([]byte{0, 0, 2, 2}) // upvalues, params, vararg, stack
	u64(2)
	u32(uint32(opcode.CreateABx(opcode.OpLoadK, 0, 0)))
	u32(uint32(opcode.CreateABC(opcode.OpReturn, 0, 2, 0)))
	u64(1)
	buf.WriteByte(chunk.TypeNumber)
	u32(uint32(0xfffffff9)) // -7
	u64(0)                  // functions
	u64(0)                  // line info
	u64(0)                  // locals
	u64(0)                  // upvalues

	p, err := chunk.Undump(buf.Bytes())
	if err != nil {
		t.Fatalf("undump failed: %v", err)
	}
	if p.Source != "=x" || len(p.Code) != 2 {
		t.Errorf("unexpected prototype %+v", p)
	}
	if len(p.Constants) != 1 || p.Constants[0] != -7.0 {
		t.Errorf("expected constant -7, got %v", p.Constants)
	}
}

func TestListingText(t *testing.T) {
	color.EnableColor(false)
	var sb strings.Builder
	if err := chunk.NewListing(parse(t, `local a = 1 + x`)).Write(&sb, chunk.FormatText); err != nil {
		t.Fatalf("listing failed: %v", err)
	}
	out := sb.String()

	for _, want := range []string{
		"main <test:0,0> (3 instructions)",
		"0+ params, 2 slots, 0 upvalues, 1 locals, 2 constants, 0 functions",
		"GETGLOBAL",
		`; "x"`,
		"; 1 -",
		"constants (2):",
		"locals (1):",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("listing lacks %q:\n%s", want, out)
		}
	}
}

func TestListingYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := chunk.NewListing(parse(t, program)).Write(&buf, chunk.FormatYAML); err != nil {
		t.Fatalf("listing failed: %v", err)
	}

	var l chunk.FunctionListing
	if err := yaml.Unmarshal(buf.Bytes(), &l); err != nil {
		t.Fatalf("listing is not valid YAML: %v", err)
	}
	if l.Kind != "main" || !l.IsVararg || len(l.Functions) != 1 {
		t.Errorf("unexpected main listing %+v", l)
	}
	if l.Functions[0].Kind != "function" || len(l.Functions[0].Functions) != 1 {
		t.Errorf("unexpected nested listing %+v", l.Functions[0])
	}
	last := l.Code[len(l.Code)-1]
	if last.Op != "RETURN" || len(last.Operands) != 2 {
		t.Errorf("unexpected last instruction %+v", last)
	}
}

func TestListingUnknownFormat(t *testing.T) {
	err := chunk.NewListing(parse(t, "return")).Write(&bytes.Buffer{}, "xml")
	if err == nil {
		t.Error("expected an error")
	}
}

func TestFormatConstant(t *testing.T) {
	tests := []struct {
		k        chunk.Constant
		expected string
	}{
		{nil, "nil"},
		{true, "true"},
		{3.0, "3"},
		{math.Inf(1), "inf"},
		{"a\nb", `"a\nb"`},
	}

	for _, test := range tests {
		if got := chunk.FormatConstant(test.k); got != test.expected {
			t.Errorf("FormatConstant(%v): expected %q, got %q", test.k, test.expected, got)
		}
	}
}
