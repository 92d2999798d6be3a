package codegen

import (
	"math"

	"lunette/pkg/opcode"
)

func (fs *FuncState) invertJump(e *ExpDesc) {
	i := fs.getJumpControl(e.Kind.(JumpExp).PC)
	if i.A() == 0 {
		i.SetA(1)
	} else {
		i.SetA(0)
	}
}

func (fs *FuncState) jumpOnCond(e *ExpDesc, cond int) int {
	if r, ok := e.Kind.(RelocExp); ok {
		ie := fs.Proto.Code[r.PC]
		if ie.OpCode() == opcode.OpNot {
			// test the operand of the NOT with the condition inverted
			fs.dropLast()
			return fs.condJump(opcode.OpTest, ie.B(), 0, 1-cond)
		}
	}
	fs.discharge2anyreg(e)
	fs.freeExp(e)

	return fs.condJump(opcode.OpTestSet, opcode.NoReg, e.Reg(), cond)
}

// GoIfTrue emits code that falls through when e is true and jumps to
// its false list otherwise.
func (fs *FuncState) GoIfTrue(e *ExpDesc) {
	fs.DischargeVars(e)
	var pc int
	switch k := e.Kind.(type) {
	case ConstExp, NumberExp, TrueExp:
		pc = NoJump // always true
	case FalseExp:
		pc = fs.Jump() // always jump
	case JumpExp:
		fs.invertJump(e)
		pc = k.PC
	default:
		pc = fs.jumpOnCond(e, 0)
	}
	fs.Concat(&e.F, pc)
	fs.PatchToHere(e.T)
	e.T = NoJump
}

// GoIfFalse emits code that falls through when e is false and jumps to
// its true list otherwise.
func (fs *FuncState) GoIfFalse(e *ExpDesc) {
	fs.DischargeVars(e)
	var pc int
	switch k := e.Kind.(type) {
	case NilExp, FalseExp:
		pc = NoJump // always false
	case TrueExp:
		pc = fs.Jump() // always jump
	case JumpExp:
		pc = k.PC
	default:
		pc = fs.jumpOnCond(e, 1)
	}
	fs.Concat(&e.T, pc)
	fs.PatchToHere(e.F)
	e.F = NoJump
}

func (fs *FuncState) codeNot(e *ExpDesc) {
	fs.DischargeVars(e)
	switch e.Kind.(type) {
	case NilExp, FalseExp:
		e.Kind = TrueExp{}
	case ConstExp, NumberExp, TrueExp:
		e.Kind = FalseExp{}
	case JumpExp:
		fs.invertJump(e)
	case RelocExp, NonRelocExp:
		fs.discharge2anyreg(e)
		fs.freeExp(e)
		e.Kind = RelocExp{PC: fs.CodeABC(opcode.OpNot, 0, e.Reg(), 0)}
	default:
		panic("codegen: cannot negate expression")
	}
	e.T, e.F = e.F, e.T
	fs.removeValues(e.F)
	fs.removeValues(e.T)
}

func constFolding(op opcode.OpCode, e1, e2 *ExpDesc) bool {
	v1, ok1 := e1.numeral()
	v2, ok2 := e2.numeral()
	if !ok1 || !ok2 {
		return false
	}

	var r float64
	switch op {
	case opcode.OpAdd:
		r = v1 + v2
	case opcode.OpSub:
		r = v1 - v2
	case opcode.OpMul:
		r = v1 * v2
	case opcode.OpDiv:
		if v2 == 0 {
			return false // do not attempt to divide by 0
		}
		r = v1 / v2
	case opcode.OpMod:
		if v2 == 0 {
			return false
		}
		r = v1 - math.Floor(v1/v2)*v2
	case opcode.OpPow:
		r = math.Pow(v1, v2)
	case opcode.OpUnm:
		r = -v1
	default:
		return false
	}
	if math.IsNaN(r) {
		return false
	}
	e1.Kind = NumberExp{Value: r}

	return true
}

func (fs *FuncState) codeArith(op opcode.OpCode, e1, e2 *ExpDesc) {
	if constFolding(op, e1, e2) {
		return
	}
	o2 := 0
	if op != opcode.OpUnm && op != opcode.OpLen {
		o2 = fs.Exp2RK(e2)
	}
	o1 := fs.Exp2RK(e1)
	// release registers in the reverse order they were taken
	if o1 > o2 {
		fs.freeExp(e1)
		fs.freeExp(e2)
	} else {
		fs.freeExp(e2)
		fs.freeExp(e1)
	}
	e1.Kind = RelocExp{PC: fs.CodeABC(op, 0, o1, o2)}
}

func (fs *FuncState) codeComp(op opcode.OpCode, cond int, e1, e2 *ExpDesc) {
	o1 := fs.Exp2RK(e1)
	o2 := fs.Exp2RK(e2)
	fs.freeExp(e2)
	fs.freeExp(e1)
	if cond == 0 && op != opcode.OpEq {
		// a > b is b < a, a >= b is b <= a
		o1, o2 = o2, o1
		cond = 1
	}
	e1.Kind = JumpExp{PC: fs.condJump(op, cond, o1, o2)}
}

// Prefix applies a unary operator to e
func (fs *FuncState) Prefix(op UnOpr, e *ExpDesc) {
	e2 := NewExp(NumberExp{Value: 0})
	switch op {
	case OprMinus:
		if _, ok := e.numeral(); !ok {
			fs.Exp2AnyReg(e) // cannot operate on non-numeric constants
		}
		fs.codeArith(opcode.OpUnm, e, &e2)
	case OprNot:
		fs.codeNot(e)
	case OprLen:
		fs.Exp2AnyReg(e)
		fs.codeArith(opcode.OpLen, e, &e2)
	}
}

// Infix prepares the left operand v before the right one is parsed
func (fs *FuncState) Infix(op BinOpr, v *ExpDesc) {
	switch op {
	case OprAnd:
		fs.GoIfTrue(v)
	case OprOr:
		fs.GoIfFalse(v)
	case OprConcat:
		fs.Exp2NextReg(v) // operand must be on the stack
	case OprAdd, OprSub, OprMul, OprDiv, OprMod, OprPow:
		if _, ok := v.numeral(); !ok {
			fs.Exp2RK(v)
		}
	default:
		fs.Exp2RK(v)
	}
}

// Posfix combines both operands of a binary operator into e1
func (fs *FuncState) Posfix(op BinOpr, e1, e2 *ExpDesc) {
	switch op {
	case OprAnd:
		fs.DischargeVars(e2)
		fs.Concat(&e2.F, e1.F)
		*e1 = *e2
	case OprOr:
		fs.DischargeVars(e2)
		fs.Concat(&e2.T, e1.T)
		*e1 = *e2
	case OprConcat:
		fs.Exp2Val(e2)
		if r, ok := e2.Kind.(RelocExp); ok && fs.Proto.Code[r.PC].OpCode() == opcode.OpConcat {
			// extend the range of the CONCAT on the right down to e1
			fs.freeExp(e1)
			fs.Proto.Code[r.PC].SetB(e1.Reg())
			e1.Kind = RelocExp{PC: r.PC}
		} else {
			fs.Exp2NextReg(e2)
			fs.codeArith(opcode.OpConcat, e1, e2)
		}
	case OprAdd, OprSub, OprMul, OprDiv, OprMod, OprPow:
		fs.codeArith(arithOps[op], e1, e2)
	case OprEq:
		fs.codeComp(opcode.OpEq, 1, e1, e2)
	case OprNe:
		fs.codeComp(opcode.OpEq, 0, e1, e2)
	case OprLt:
		fs.codeComp(opcode.OpLt, 1, e1, e2)
	case OprLe:
		fs.codeComp(opcode.OpLe, 1, e1, e2)
	case OprGt:
		fs.codeComp(opcode.OpLt, 0, e1, e2)
	case OprGe:
		fs.codeComp(opcode.OpLe, 0, e1, e2)
	}
}
