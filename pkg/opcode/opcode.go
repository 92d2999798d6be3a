package opcode

import "fmt"

type OpCode uint8

// Opcodes, numbered exactly as the binary chunk format stores them
const (
	OpMove     OpCode = iota // R(A) := R(B)
	OpLoadK                  // R(A) := Kst(Bx)
	OpLoadBool               // R(A) := (Bool)B; if (C) pc++
	OpLoadNil                // R(A) := ... := R(B) := nil
	OpGetUpval               // R(A) := UpValue[B]
	OpGetGlobal              // R(A) := Gbl[Kst(Bx)]
	OpGetTable               // R(A) := R(B)[RK(C)]
	OpSetGlobal              // Gbl[Kst(Bx)] := R(A)
	OpSetUpval               // UpValue[B] := R(A)
	OpSetTable               // R(A)[RK(B)] := RK(C)
	OpNewTable               // R(A) := {} (size = B,C)
	OpSelf                   // R(A+1) := R(B); R(A) := R(B)[RK(C)]
	OpAdd                    // R(A) := RK(B) + RK(C)
	OpSub                    // R(A) := RK(B) - RK(C)
	OpMul                    // R(A) := RK(B) * RK(C)
	OpDiv                    // R(A) := RK(B) / RK(C)
	OpMod                    // R(A) := RK(B) % RK(C)
	OpPow                    // R(A) := RK(B) ^ RK(C)
	OpUnm                    // R(A) := -R(B)
	OpNot                    // R(A) := not R(B)
	OpLen                    // R(A) := length of R(B)
	OpConcat                 // R(A) := R(B).. ... ..R(C)
	OpJmp                    // pc += sBx
	OpEq                     // if ((RK(B) == RK(C)) ~= A) then pc++
	OpLt                     // if ((RK(B) <  RK(C)) ~= A) then pc++
	OpLe                     // if ((RK(B) <= RK(C)) ~= A) then pc++
	OpTest                   // if not (R(A) <=> C) then pc++
	OpTestSet                // if (R(B) <=> C) then R(A) := R(B) else pc++
	OpCall                   // R(A), ... ,R(A+C-2) := R(A)(R(A+1), ... ,R(A+B-1))
	OpTailCall               // return R(A)(R(A+1), ... ,R(A+B-1))
	OpReturn                 // return R(A), ... ,R(A+B-2)
	OpForLoop                // R(A)+=R(A+2); if R(A) <?= R(A+1) then { pc+=sBx; R(A+3)=R(A) }
	OpForPrep                // R(A)-=R(A+2); pc+=sBx
	OpTForLoop               // R(A+3), ... ,R(A+2+C) := R(A)(R(A+1), R(A+2)); if R(A+3) ~= nil then R(A+2)=R(A+3) else pc++
	OpSetList                // R(A)[(C-1)*FPF+i] := R(A+i), 1 <= i <= B
	OpClose                  // close all variables in the stack up to (>=) R(A)
	OpClosure                // R(A) := closure(KPROTO[Bx], R(A), ... ,R(A+n))
	OpVararg                 // R(A), R(A+1), ..., R(A+B-1) = vararg

	NumOpcodes = int(OpVararg) + 1
)

// Mode is the operand layout of an instruction
type Mode uint8

const (
	ModeABC Mode = iota
	ModeABx
	ModeAsBx
)

// ArgMode describes how the B or C operand is interpreted
type ArgMode uint8

const (
	ArgN ArgMode = iota // argument is not used
	ArgU                // argument is used as a plain number
	ArgR                // argument is a register or a jump offset
	ArgK                // argument is a constant or register/constant
)

type opInfo struct {
	name  string
	test  bool // next instruction is a jump
	setsA bool // instruction writes register A
	b, c  ArgMode
	mode  Mode
}

var infos = [NumOpcodes]opInfo{
	OpMove:      {"MOVE", false, true, ArgR, ArgN, ModeABC},
	OpLoadK:     {"LOADK", false, true, ArgK, ArgN, ModeABx},
	OpLoadBool:  {"LOADBOOL", false, true, ArgU, ArgU, ModeABC},
	OpLoadNil:   {"LOADNIL", false, true, ArgR, ArgN, ModeABC},
	OpGetUpval:  {"GETUPVAL", false, true, ArgU, ArgN, ModeABC},
	OpGetGlobal: {"GETGLOBAL", false, true, ArgK, ArgN, ModeABx},
	OpGetTable:  {"GETTABLE", false, true, ArgR, ArgK, ModeABC},
	OpSetGlobal: {"SETGLOBAL", false, false, ArgK, ArgN, ModeABx},
	OpSetUpval:  {"SETUPVAL", false, false, ArgU, ArgN, ModeABC},
	OpSetTable:  {"SETTABLE", false, false, ArgK, ArgK, ModeABC},
	OpNewTable:  {"NEWTABLE", false, true, ArgU, ArgU, ModeABC},
	OpSelf:      {"SELF", false, true, ArgR, ArgK, ModeABC},
	OpAdd:       {"ADD", false, true, ArgK, ArgK, ModeABC},
	OpSub:       {"SUB", false, true, ArgK, ArgK, ModeABC},
	OpMul:       {"MUL", false, true, ArgK, ArgK, ModeABC},
	OpDiv:       {"DIV", false, true, ArgK, ArgK, ModeABC},
	OpMod:       {"MOD", false, true, ArgK, ArgK, ModeABC},
	OpPow:       {"POW", false, true, ArgK, ArgK, ModeABC},
	OpUnm:       {"UNM", false, true, ArgR, ArgN, ModeABC},
	OpNot:       {"NOT", false, true, ArgR, ArgN, ModeABC},
	OpLen:       {"LEN", false, true, ArgR, ArgN, ModeABC},
	OpConcat:    {"CONCAT", false, true, ArgR, ArgR, ModeABC},
	OpJmp:       {"JMP", false, false, ArgR, ArgN, ModeAsBx},
	OpEq:        {"EQ", true, false, ArgK, ArgK, ModeABC},
	OpLt:        {"LT", true, false, ArgK, ArgK, ModeABC},
	OpLe:        {"LE", true, false, ArgK, ArgK, ModeABC},
	OpTest:      {"TEST", true, true, ArgR, ArgU, ModeABC},
	OpTestSet:   {"TESTSET", true, true, ArgR, ArgU, ModeABC},
	OpCall:      {"CALL", false, true, ArgU, ArgU, ModeABC},
	OpTailCall:  {"TAILCALL", false, true, ArgU, ArgU, ModeABC},
	OpReturn:    {"RETURN", false, false, ArgU, ArgN, ModeABC},
	OpForLoop:   {"FORLOOP", false, true, ArgR, ArgN, ModeAsBx},
	OpForPrep:   {"FORPREP", false, true, ArgR, ArgN, ModeAsBx},
	OpTForLoop:  {"TFORLOOP", true, false, ArgN, ArgU, ModeABC},
	OpSetList:   {"SETLIST", false, false, ArgU, ArgU, ModeABC},
	OpClose:     {"CLOSE", false, false, ArgN, ArgN, ModeABC},
	OpClosure:   {"CLOSURE", false, true, ArgU, ArgN, ModeABx},
	OpVararg:    {"VARARG", false, true, ArgU, ArgN, ModeABC},
}

// Valid reports whether op names one of the fixed opcodes
func (op OpCode) Valid() bool {
	return int(op) < NumOpcodes
}

// String returns the opcode mnemonic
func (op OpCode) String() string {
	if !op.Valid() {
		return fmt.Sprintf("UNKNOWN(%d)", int(op))
	}

	return infos[op].name
}

// Mode returns the operand layout of op
func (op OpCode) Mode() Mode {
	return infos[op].mode
}

// BMode returns how operand B (or Bx) is used
func (op OpCode) BMode() ArgMode {
	return infos[op].b
}

// CMode returns how operand C is used
func (op OpCode) CMode() ArgMode {
	return infos[op].c
}

// SetsA reports whether op writes register A
func (op OpCode) SetsA() bool {
	return infos[op].setsA
}

// IsTest reports whether op is a test whose next instruction is a jump
func (op OpCode) IsTest() bool {
	return infos[op].test
}
