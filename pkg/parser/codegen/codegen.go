package codegen

import (
	"fmt"

	"lunette/pkg/chunk"
	"lunette/pkg/lexer"
	"lunette/pkg/opcode"
	"lunette/pkg/parser/stack"
)

// Compiler limits
const (
	MaxVars     = 200
	MaxUpvalues = 60
	MaxStack    = 250
)

// Reporter is the part of the lexer code generation depends on: the line
// to attribute to new instructions and the builders for diagnostics.
type Reporter interface {
	LastLine() int
	SyntaxError(msg string) *lexer.Error
	ErrorAt(msg string) *lexer.Error
}

type upvalDesc struct {
	local bool // captured from the enclosing function's registers
	index int  // register or enclosing upvalue index
}

// nilKey stands in for nil in the constant cache
type nilKey struct{}

// FuncState is the compile context of one function
type FuncState struct {
	Proto  *chunk.Prototype
	Parent *FuncState

	ls         Reporter
	kcache     map[any]int          // constant value -> index in Proto.Constants
	lastTarget int                  // pc of the last jump target
	jpc        int                  // jumps pending to the current pc
	FreeReg    int                  // first free register
	NumActive  int                  // number of active locals
	actvar     *stack.Stack[int]    // LocVars index of each declared local
	upvals     []upvalDesc          // how each upvalue is captured
	blocks     *stack.Stack[*Block] // enclosing blocks, innermost on top
}

// Open creates the compile context of a function nested in parent
// (nil for the main chunk).
func Open(parent *FuncState, ls Reporter, source string) *FuncState {
	return &FuncState{
		Proto: &chunk.Prototype{
			Source:       source,
			MaxStackSize: 2, // registers 0/1 are always valid
		},
		Parent:     parent,
		ls:         ls,
		kcache:     make(map[any]int),
		lastTarget: -1,
		jpc:        NoJump,
		actvar:     stack.NewStack[int](),
		blocks:     stack.NewStack[*Block](),
	}
}

// Close finishes the function with its final return and yields the
// prototype.
func (fs *FuncState) Close() *chunk.Prototype {
	fs.RemoveVars(0)
	fs.Ret(0, 0)
	fs.Proto.NumUpvalues = len(fs.upvals)

	return fs.Proto
}

// PC returns the index of the next instruction
func (fs *FuncState) PC() int {
	return len(fs.Proto.Code)
}

// Instruction returns a pointer to the instruction of a relocatable,
// call or vararg expression.
func (fs *FuncState) Instruction(e *ExpDesc) *opcode.Instruction {
	switch k := e.Kind.(type) {
	case RelocExp:
		return &fs.Proto.Code[k.PC]
	case CallExp:
		return &fs.Proto.Code[k.PC]
	case VarargExp:
		return &fs.Proto.Code[k.PC]
	}

	panic("codegen: expression has no instruction")
}

func (fs *FuncState) code(i opcode.Instruction, line int) int {
	fs.dischargeJPC()
	fs.Proto.Code = append(fs.Proto.Code, i)
	fs.Proto.LineInfo = append(fs.Proto.LineInfo, line)

	return len(fs.Proto.Code) - 1
}

// CodeABC emits an instruction in the A, B, C layout
func (fs *FuncState) CodeABC(op opcode.OpCode, a, b, c int) int {
	return fs.code(opcode.CreateABC(op, a, b, c), fs.ls.LastLine())
}

// CodeABx emits an instruction in the A, Bx layout
func (fs *FuncState) CodeABx(op opcode.OpCode, a, bx int) int {
	return fs.code(opcode.CreateABx(op, a, bx), fs.ls.LastLine())
}

// CodeAsBx emits an instruction in the A, sBx layout
func (fs *FuncState) CodeAsBx(op opcode.OpCode, a, sbx int) int {
	return fs.code(opcode.CreateAsBx(op, a, sbx), fs.ls.LastLine())
}

// FixLine changes the line of the last emitted instruction
func (fs *FuncState) FixLine(line int) {
	fs.Proto.LineInfo[len(fs.Proto.LineInfo)-1] = line
}

// dropLast removes the last emitted instruction
func (fs *FuncState) dropLast() {
	n := len(fs.Proto.Code) - 1
	fs.Proto.Code = fs.Proto.Code[:n]
	fs.Proto.LineInfo = fs.Proto.LineInfo[:n]
}

// Nil emits code setting n registers starting at from to nil, merging
// with a directly preceding LOADNIL when no jump lands in between.
func (fs *FuncState) Nil(from, n int) {
	if fs.PC() > fs.lastTarget {
		if fs.PC() == 0 {
			if from >= fs.NumActive {
				return // registers of a fresh function are already nil
			}
		} else {
			prev := &fs.Proto.Code[fs.PC()-1]
			if prev.OpCode() == opcode.OpLoadNil {
				pfrom, pto := prev.A(), prev.B()
				if pfrom <= from && from <= pto+1 {
					if from+n-1 > pto {
						prev.SetB(from + n - 1)
					}
					return
				}
			}
		}
	}
	fs.CodeABC(opcode.OpLoadNil, from, from+n-1, 0)
}

// Ret emits a return of nret values starting at first
func (fs *FuncState) Ret(first, nret int) {
	fs.CodeABC(opcode.OpReturn, first, nret+1, 0)
}

// CheckStack makes room for n more registers
func (fs *FuncState) CheckStack(n int) {
	newStack := fs.FreeReg + n
	if newStack > fs.Proto.MaxStackSize {
		if newStack >= MaxStack {
			panic(fs.ls.SyntaxError("function or expression too complex"))
		}
		fs.Proto.MaxStackSize = newStack
	}
}

// ReserveRegs allocates n registers
func (fs *FuncState) ReserveRegs(n int) {
	fs.CheckStack(n)
	fs.FreeReg += n
}

// freeReg releases reg, which must be the last allocated register
func (fs *FuncState) freeReg(reg int) {
	if !opcode.IsK(reg) && reg >= fs.NumActive {
		fs.FreeReg--
		if reg != fs.FreeReg {
			panic(fmt.Sprintf("codegen: freeing register %d out of order (free register %d)", reg, fs.FreeReg))
		}
	}
}

// EndStatement releases the registers a statement still holds. The
// watermark must lie between the active locals and the stack size.
func (fs *FuncState) EndStatement() {
	if fs.FreeReg < fs.NumActive || fs.FreeReg > fs.Proto.MaxStackSize {
		panic(fmt.Sprintf("codegen: free register %d outside [%d, %d]", fs.FreeReg, fs.NumActive, fs.Proto.MaxStackSize))
	}
	fs.FreeReg = fs.NumActive
}

// DiscardResults makes the call e a statement: it keeps no results and
// releases its base register.
func (fs *FuncState) DiscardResults(e *ExpDesc) {
	i := fs.Instruction(e)
	i.SetC(1)
	fs.freeReg(i.A())
}

func (fs *FuncState) freeExp(e *ExpDesc) {
	if k, ok := e.Kind.(NonRelocExp); ok {
		fs.freeReg(k.Reg)
	}
}

func (fs *FuncState) addK(key, value any) int {
	if idx, ok := fs.kcache[key]; ok {
		return idx
	}
	idx := len(fs.Proto.Constants)
	if idx > opcode.MaxArgBx {
		panic(fs.ls.ErrorAt("constant table overflow"))
	}
	fs.Proto.Constants = append(fs.Proto.Constants, value)
	fs.kcache[key] = idx

	return idx
}

// StringK returns the constant index of s
func (fs *FuncState) StringK(s string) int {
	return fs.addK(s, s)
}

// NumberK returns the constant index of n
func (fs *FuncState) NumberK(n float64) int {
	return fs.addK(n, n)
}

func (fs *FuncState) boolK(b bool) int {
	return fs.addK(b, b)
}

func (fs *FuncState) nilK() int {
	return fs.addK(nilKey{}, nil)
}

// SetList emits a SETLIST flushing tostore items at base+1 as batch
// ending with item nelems.
func (fs *FuncState) SetList(base, nelems, tostore int) {
	c := (nelems-1)/opcode.FieldsPerFlush + 1
	b := tostore
	if tostore == MultRet {
		b = 0
	}
	if c <= opcode.MaxArgC {
		fs.CodeABC(opcode.OpSetList, base, b, c)
	} else {
		fs.CodeABC(opcode.OpSetList, base, b, 0)
		fs.code(opcode.Instruction(c), fs.ls.LastLine())
	}
	fs.FreeReg = base + 1
}

// Closure emits the CLOSURE for child, followed by the pseudo
// instructions describing how each of its upvalues is captured.
func (fs *FuncState) Closure(child *FuncState) ExpDesc {
	fs.Proto.Protos = append(fs.Proto.Protos, child.Proto)
	if len(fs.Proto.Protos) > opcode.MaxArgBx {
		panic(fs.ls.ErrorAt("constant table overflow"))
	}
	e := NewExp(RelocExp{PC: fs.CodeABx(opcode.OpClosure, 0, len(fs.Proto.Protos)-1)})
	for _, u := range child.upvals {
		op := opcode.OpGetUpval
		if u.local {
			op = opcode.OpMove
		}
		fs.CodeABC(op, 0, u.index, 0)
	}

	return e
}
