package interpreter

import "fmt"

// typeError reports an operation on a value of the wrong type, naming the
// variable held in register reg when it can be recovered
func (f *Frame) typeError(reg int, v Value, op string) error {
	if info := f.varInfo(reg, f.pc-1); info != "" {
		return fmt.Errorf("attempt to %s %s (a %s value)", op, info, TypeName(v))
	}

	return fmt.Errorf("attempt to %s a %s value", op, TypeName(v))
}

// operandError is typeError for an RK operand; constants have no name
func (f *Frame) operandError(x int, k bool, v Value, op string) error {
	if k {
		return fmt.Errorf("attempt to %s a %s value", op, TypeName(v))
	}

	return f.typeError(x, v, op)
}

// varInfo describes where the value in register reg came from, such as
// "global 'print'" or "local 't'"
func (f *Frame) varInfo(reg, pc int) string {
	p := f.closure.proto
	if name := p.localName(reg, pc); name != "" {
		return fmt.Sprintf("local '%s'", name)
	}

	setter := p.findSetReg(pc, reg)
	if setter < 0 {
		return ""
	}
	in := p.code[setter]
	switch in.op {
	case opGetGlobal:
		return fmt.Sprintf("global '%s'", p.constants[in.bx])
	case opMove:
		if in.b < in.a {
			return f.varInfo(in.b, pc)
		}
	case opGetTable:
		return fmt.Sprintf("field '%s'", p.constantName(in.c, in.kc))
	case opGetUpval:
		name := "?"
		if in.b < len(p.upvalNames) {
			name = p.upvalNames[in.b]
		}
		return fmt.Sprintf("upvalue '%s'", name)
	case opSelf:
		return fmt.Sprintf("method '%s'", p.constantName(in.c, in.kc))
	}

	return ""
}

func (p *proto) constantName(x int, k bool) string {
	if k {
		if s, ok := p.constants[x].(string); ok {
			return s
		}
	}

	return "?"
}

// localName returns the name of the reg-th active local at pc
func (p *proto) localName(reg, pc int) string {
	n := reg + 1
	for _, v := range p.locVars {
		if v.StartPC > pc {
			break
		}
		if pc < v.EndPC {
			n--
			if n == 0 {
				return v.Name
			}
		}
	}

	return ""
}

// findSetReg returns the pc of the last instruction before lastpc that
// wrote reg, following forward jumps, or -1
func (p *proto) findSetReg(lastpc, reg int) int {
	last := -1
	for pc := 0; pc < lastpc; pc++ {
		in := &p.code[pc]
		switch in.op {
		case opData:
		case opLoadNil:
			if in.a <= reg && reg <= in.b {
				last = pc
			}
		case opTForLoop:
			if reg >= in.a+2 {
				last = pc
			}
		case opCall, opTailCall:
			if reg >= in.a {
				last = pc
			}
		case opSelf:
			if reg == in.a || reg == in.a+1 {
				last = pc
			}
		case opJmp:
			if dest := pc + 1 + in.sbx; pc < dest && dest <= lastpc {
				pc += in.sbx
			}
		case opClosure:
			if reg == in.a {
				last = pc
			}
			pc += p.protos[in.bx].numUpvalues
		default:
			if in.source.SetsA() && reg == in.a {
				last = pc
			}
		}
	}

	return last
}
