package interpreter

import (
	"fmt"

	"lunette/pkg/chunk"
	"lunette/pkg/lexer"
	"lunette/pkg/opcode"
)

// op is the engine's own dense opcode numbering, grouped by category
type op uint8

const (
	opMove op = iota
	opLoadK
	opLoadBool
	opLoadNil
	opGetGlobal
	opSetGlobal
	opGetUpval
	opSetUpval
	opNewTable
	opGetTable
	opSetTable
	opSelf
	opAdd
	opSub
	opMul
	opDiv
	opMod
	opPow
	opUnm
	opNot
	opLen
	opConcat
	opEq
	opLt
	opLe
	opTest
	opTestSet
	opJmp
	opForPrep
	opForLoop
	opTForLoop
	opCall
	opTailCall
	opReturn
	opClose
	opClosure
	opSetList
	opVararg
	opData // raw operand word following a SETLIST with C == 0
)

// remap translates the chunk format's numbering to the engine's
var remap = [opcode.NumOpcodes]op{
	opcode.OpMove:      opMove,
	opcode.OpLoadK:     opLoadK,
	opcode.OpLoadBool:  opLoadBool,
	opcode.OpLoadNil:   opLoadNil,
	opcode.OpGetUpval:  opGetUpval,
	opcode.OpGetGlobal: opGetGlobal,
	opcode.OpGetTable:  opGetTable,
	opcode.OpSetGlobal: opSetGlobal,
	opcode.OpSetUpval:  opSetUpval,
	opcode.OpSetTable:  opSetTable,
	opcode.OpNewTable:  opNewTable,
	opcode.OpSelf:      opSelf,
	opcode.OpAdd:       opAdd,
	opcode.OpSub:       opSub,
	opcode.OpMul:       opMul,
	opcode.OpDiv:       opDiv,
	opcode.OpMod:       opMod,
	opcode.OpPow:       opPow,
	opcode.OpUnm:       opUnm,
	opcode.OpNot:       opNot,
	opcode.OpLen:       opLen,
	opcode.OpConcat:    opConcat,
	opcode.OpJmp:       opJmp,
	opcode.OpEq:        opEq,
	opcode.OpLt:        opLt,
	opcode.OpLe:        opLe,
	opcode.OpTest:      opTest,
	opcode.OpTestSet:   opTestSet,
	opcode.OpCall:      opCall,
	opcode.OpTailCall:  opTailCall,
	opcode.OpReturn:    opReturn,
	opcode.OpForLoop:   opForLoop,
	opcode.OpForPrep:   opForPrep,
	opcode.OpTForLoop:  opTForLoop,
	opcode.OpSetList:   opSetList,
	opcode.OpClose:     opClose,
	opcode.OpClosure:   opClosure,
	opcode.OpVararg:    opVararg,
}

// instruction is a decoded instruction. For RK operands kb and kc record
// whether b and c index the constant pool, so dispatch needs no mode checks.
type instruction struct {
	op      op
	source  opcode.OpCode
	a, b, c int
	bx, sbx int
	kb, kc  bool
	raw     opcode.Instruction
}

type proto struct {
	source      string // chunk id used in error messages
	lineInfo    []int
	locVars     []chunk.LocVar
	upvalNames  []string
	numParams   int
	isVararg    bool
	maxStack    int
	numUpvalues int
	code        []instruction
	constants   []Value
	protos      []*proto
}

func (p *proto) line(pc int) int {
	if pc < 0 || pc >= len(p.lineInfo) {
		return 0
	}

	return p.lineInfo[pc]
}

// Load reads a binary chunk and returns its main function as a closure
// over the interpreter's globals.
func (i *Interpreter) Load(b []byte) (*Closure, error) {
	cp, err := chunk.Undump(b)
	if err != nil {
		return nil, err
	}

	p, err := convert(cp)
	if err != nil {
		return nil, err
	}
	if p.numUpvalues != 0 {
		return nil, fmt.Errorf("%w: main function has %d upvalues", chunk.ErrFormat, p.numUpvalues)
	}
	i.logger.Debug("Chunk loaded", "source", p.source, "functions", countProtos(p), "bytes", len(b))

	return &Closure{proto: p, it: i}, nil
}

func countProtos(p *proto) int {
	n := 1
	for _, child := range p.protos {
		n += countProtos(child)
	}

	return n
}

func formatError(p *proto, pc int, format string, args ...any) error {
	return fmt.Errorf("%w: %s: instruction %d: %s", chunk.ErrFormat, p.source, pc+1, fmt.Sprintf(format, args...))
}

// convert decodes cp and checks that every operand stays inside its
// prototype: registers, constants, nested functions and jump targets.
func convert(cp *chunk.Prototype) (*proto, error) {
	p := &proto{
		source:      lexer.ChunkID(cp.Source),
		lineInfo:    cp.LineInfo,
		locVars:     cp.LocVars,
		upvalNames:  cp.Upvalues,
		numParams:   cp.NumParams,
		isVararg:    cp.IsVararg&chunk.VarargIsVararg != 0,
		maxStack:    cp.MaxStackSize,
		numUpvalues: cp.NumUpvalues,
		code:        make([]instruction, len(cp.Code)),
		constants:   make([]Value, len(cp.Constants)),
		protos:      make([]*proto, len(cp.Protos)),
	}
	for k, v := range cp.Constants {
		p.constants[k] = v
	}
	for k, child := range cp.Protos {
		var err error
		if p.protos[k], err = convert(child); err != nil {
			return nil, err
		}
	}

	for pc := 0; pc < len(cp.Code); pc++ {
		raw := cp.Code[pc]
		src := raw.OpCode()
		if !src.Valid() {
			return nil, formatError(p, pc, "bad opcode %d", src)
		}
		in := instruction{
			op:     remap[src],
			source: src,
			a:      raw.A(),
			b:      raw.B(),
			c:      raw.C(),
			bx:     raw.Bx(),
			sbx:    raw.SBx(),
			raw:    raw,
		}
		if src.Mode() == opcode.ModeABC {
			if src.BMode() == opcode.ArgK && opcode.IsK(in.b) {
				in.kb, in.b = true, opcode.IndexK(in.b)
			}
			if src.CMode() == opcode.ArgK && opcode.IsK(in.c) {
				in.kc, in.c = true, opcode.IndexK(in.c)
			}
		}
		p.code[pc] = in

		if err := p.check(pc); err != nil {
			return nil, err
		}
		if src.IsTest() && (pc+1 >= len(cp.Code) || cp.Code[pc+1].OpCode() != opcode.OpJmp) {
			return nil, formatError(p, pc, "%s is not followed by a jump", src)
		}

		switch {
		case in.op == opSetList && in.c == 0:
			if pc+1 >= len(cp.Code) {
				return nil, formatError(p, pc, "missing SETLIST batch word")
			}
			pc++
			p.code[pc] = instruction{op: opData, raw: cp.Code[pc], bx: int(cp.Code[pc])}
		case in.op == opClosure:
			n := p.protos[in.bx].numUpvalues
			if pc+n >= len(cp.Code) {
				return nil, formatError(p, pc, "missing upvalue descriptors")
			}
			for j := 1; j <= n; j++ {
				desc := cp.Code[pc+j].OpCode()
				if desc != opcode.OpMove && desc != opcode.OpGetUpval {
					return nil, formatError(p, pc+j, "bad upvalue descriptor %s", desc)
				}
			}
		}
	}

	return p, nil
}

// check validates the operands of the instruction at pc
func (p *proto) check(pc int) error {
	in := p.code[pc]
	reg := func(r int) error {
		if r < 0 || r >= p.maxStack {
			return formatError(p, pc, "%s register %d out of range", in.source, r)
		}
		return nil
	}
	rk := func(x int, k bool) error {
		if k {
			if x >= len(p.constants) {
				return formatError(p, pc, "%s constant %d out of range", in.source, x)
			}
			return nil
		}
		return reg(x)
	}

	switch in.source.Mode() {
	case opcode.ModeABx:
		switch in.op {
		case opLoadK, opGetGlobal, opSetGlobal:
			if in.bx >= len(p.constants) {
				return formatError(p, pc, "%s constant %d out of range", in.source, in.bx)
			}
			if in.op != opLoadK {
				if _, ok := p.constants[in.bx].(string); !ok {
					return formatError(p, pc, "%s needs a string constant", in.source)
				}
			}
		case opClosure:
			if in.bx >= len(p.protos) {
				return formatError(p, pc, "CLOSURE function %d out of range", in.bx)
			}
		}
		return reg(in.a)

	case opcode.ModeAsBx:
		if target := pc + 1 + in.sbx; target < 0 || target >= len(p.code) {
			return formatError(p, pc, "%s target %d out of range", in.source, target+1)
		}
		if in.op == opForPrep || in.op == opForLoop {
			return reg(in.a + 3)
		}
		return nil
	}

	if (in.op == opGetUpval || in.op == opSetUpval) && in.b >= p.numUpvalues {
		return formatError(p, pc, "%s upvalue %d out of range", in.source, in.b)
	}
	switch in.source.BMode() {
	case opcode.ArgR:
		if err := reg(in.b); err != nil {
			return err
		}
	case opcode.ArgK:
		if err := rk(in.b, in.kb); err != nil {
			return err
		}
	}
	switch in.source.CMode() {
	case opcode.ArgR:
		if err := reg(in.c); err != nil {
			return err
		}
	case opcode.ArgK:
		if err := rk(in.c, in.kc); err != nil {
			return err
		}
	}

	// highest register the instruction touches through A
	switch in.op {
	case opEq, opLt, opLe:
		return nil
	case opSelf:
		return reg(in.a + 1)
	case opTForLoop:
		return reg(in.a + 2 + max(in.c, 1))
	case opCall, opTailCall:
		return reg(in.a + max(in.b-1, in.c-2, 0))
	case opReturn, opVararg:
		return reg(in.a + max(in.b-2, 0))
	case opSetList:
		return reg(in.a + in.b)
	}

	return reg(in.a)
}
