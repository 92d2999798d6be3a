package opcode

import "fmt"

// Operand widths and positions of the 32-bit instruction word
const (
	SizeOp = 6
	SizeA  = 8
	SizeB  = 9
	SizeC  = 9
	SizeBx = SizeB + SizeC

	PosOp = 0
	PosA  = PosOp + SizeOp
	PosC  = PosA + SizeA
	PosB  = PosC + SizeC
	PosBx = PosC

	MaxArgA   = 1<<SizeA - 1
	MaxArgB   = 1<<SizeB - 1
	MaxArgC   = 1<<SizeC - 1
	MaxArgBx  = 1<<SizeBx - 1
	MaxArgSBx = MaxArgBx >> 1

	// BitRK marks an RK operand as a constant index
	BitRK      = 1 << (SizeB - 1)
	MaxIndexRK = BitRK - 1

	// NoReg is an invalid register that fits in operand A
	NoReg = MaxArgA

	// FieldsPerFlush is the number of list items accumulated before a SETLIST
	FieldsPerFlush = 50
)

// Instruction is one encoded code word
type Instruction uint32

func mask(size, pos uint) uint32 {
	return (1<<size - 1) << pos
}

// CreateABC encodes an instruction using the A, B, C layout
func CreateABC(op OpCode, a, b, c int) Instruction {
	return Instruction(uint32(op)<<PosOp |
		uint32(a)<<PosA |
		uint32(b)<<PosB |
		uint32(c)<<PosC)
}

// CreateABx encodes an instruction using the A, Bx layout
func CreateABx(op OpCode, a, bx int) Instruction {
	return Instruction(uint32(op)<<PosOp |
		uint32(a)<<PosA |
		uint32(bx)<<PosBx)
}

// CreateAsBx encodes an instruction using the A, signed Bx layout
func CreateAsBx(op OpCode, a, sbx int) Instruction {
	return CreateABx(op, a, sbx+MaxArgSBx)
}

func (i Instruction) get(size, pos uint) int {
	return int((uint32(i) & mask(size, pos)) >> pos)
}

func (i *Instruction) set(v int, size, pos uint) {
	*i = Instruction((uint32(*i) &^ mask(size, pos)) | (uint32(v)<<pos)&mask(size, pos))
}

func (i Instruction) OpCode() OpCode { return OpCode(i.get(SizeOp, PosOp)) }
func (i Instruction) A() int         { return i.get(SizeA, PosA) }
func (i Instruction) B() int         { return i.get(SizeB, PosB) }
func (i Instruction) C() int         { return i.get(SizeC, PosC) }
func (i Instruction) Bx() int        { return i.get(SizeBx, PosBx) }
func (i Instruction) SBx() int       { return i.Bx() - MaxArgSBx }

func (i *Instruction) SetOpCode(op OpCode) { i.set(int(op), SizeOp, PosOp) }
func (i *Instruction) SetA(a int)          { i.set(a, SizeA, PosA) }
func (i *Instruction) SetB(b int)          { i.set(b, SizeB, PosB) }
func (i *Instruction) SetC(c int)          { i.set(c, SizeC, PosC) }
func (i *Instruction) SetBx(bx int)        { i.set(bx, SizeBx, PosBx) }
func (i *Instruction) SetSBx(sbx int)      { i.SetBx(sbx + MaxArgSBx) }

// String renders the instruction with operands decoded by its layout
func (i Instruction) String() string {
	op := i.OpCode()
	if !op.Valid() {
		return fmt.Sprintf("DATA %d", uint32(i))
	}

	switch op.Mode() {
	case ModeABx:
		return fmt.Sprintf("%-9s %d %d", op, i.A(), i.Bx())
	case ModeAsBx:
		return fmt.Sprintf("%-9s %d %d", op, i.A(), i.SBx())
	default:
		return fmt.Sprintf("%-9s %d %d %d", op, i.A(), i.B(), i.C())
	}
}

// IsK reports whether an RK operand refers to a constant
func IsK(x int) bool {
	return x&BitRK != 0
}

// IndexK extracts the constant index from an RK operand
func IndexK(x int) int {
	return x &^ BitRK
}

// RKAsK encodes a constant index as an RK operand
func RKAsK(x int) int {
	return x | BitRK
}

// Int2FB converts an integer to a "floating point byte" (eeeeexxx),
// the encoding NEWTABLE uses for its size hints.
func Int2FB(x int) int {
	e := 0
	for x >= 16 {
		x = (x + 1) >> 1
		e++
	}
	if x < 8 {
		return x
	}

	return ((e + 1) << 3) | (x - 8)
}

// FB2Int is the inverse of Int2FB
func FB2Int(x int) int {
	e := (x >> 3) & 31
	if e == 0 {
		return x
	}

	return ((x & 7) + 8) << (e - 1)
}
