package codegen

import (
	"lunette/pkg/opcode"
)

// SetReturns fixes the number of results of a multi-value expression
func (fs *FuncState) SetReturns(e *ExpDesc, nresults int) {
	switch k := e.Kind.(type) {
	case CallExp:
		fs.Proto.Code[k.PC].SetC(nresults + 1)
	case VarargExp:
		i := &fs.Proto.Code[k.PC]
		i.SetB(nresults + 1)
		i.SetA(fs.FreeReg)
		fs.ReserveRegs(1)
	}
}

// SetMultRet leaves the number of results of e open
func (fs *FuncState) SetMultRet(e *ExpDesc) {
	fs.SetReturns(e, MultRet)
}

// SetOneRet truncates a multi-value expression to its first value
func (fs *FuncState) SetOneRet(e *ExpDesc) {
	switch k := e.Kind.(type) {
	case CallExp:
		e.Kind = NonRelocExp{Reg: fs.Proto.Code[k.PC].A()}
	case VarargExp:
		fs.Proto.Code[k.PC].SetB(2)
		e.Kind = RelocExp{PC: k.PC}
	}
}

// DischargeVars turns a variable reference into a value
func (fs *FuncState) DischargeVars(e *ExpDesc) {
	switch k := e.Kind.(type) {
	case LocalExp:
		e.Kind = NonRelocExp{Reg: k.Reg}
	case UpvalExp:
		e.Kind = RelocExp{PC: fs.CodeABC(opcode.OpGetUpval, 0, k.Index, 0)}
	case GlobalExp:
		e.Kind = RelocExp{PC: fs.CodeABx(opcode.OpGetGlobal, 0, k.Name)}
	case IndexedExp:
		fs.freeReg(k.Key)
		fs.freeReg(k.Table)
		e.Kind = RelocExp{PC: fs.CodeABC(opcode.OpGetTable, 0, k.Table, k.Key)}
	case CallExp, VarargExp:
		fs.SetOneRet(e)
	}
}

func (fs *FuncState) codeLabel(a, b, jump int) int {
	fs.GetLabel() // those instructions may be jump targets
	return fs.CodeABC(opcode.OpLoadBool, a, b, jump)
}

func (fs *FuncState) discharge2reg(e *ExpDesc, reg int) {
	fs.DischargeVars(e)
	switch k := e.Kind.(type) {
	case NilExp:
		fs.Nil(reg, 1)
	case FalseExp:
		fs.CodeABC(opcode.OpLoadBool, reg, 0, 0)
	case TrueExp:
		fs.CodeABC(opcode.OpLoadBool, reg, 1, 0)
	case ConstExp:
		fs.CodeABx(opcode.OpLoadK, reg, k.Index)
	case NumberExp:
		fs.CodeABx(opcode.OpLoadK, reg, fs.NumberK(k.Value))
	case RelocExp:
		fs.Proto.Code[k.PC].SetA(reg)
	case NonRelocExp:
		if reg != k.Reg {
			fs.CodeABC(opcode.OpMove, reg, k.Reg, 0)
		}
	default:
		return // void or jump: nothing to do
	}
	e.Kind = NonRelocExp{Reg: reg}
}

func (fs *FuncState) discharge2anyreg(e *ExpDesc) {
	if _, ok := e.Kind.(NonRelocExp); !ok {
		fs.ReserveRegs(1)
		fs.discharge2reg(e, fs.FreeReg-1)
	}
}

func (fs *FuncState) exp2reg(e *ExpDesc, reg int) {
	fs.discharge2reg(e, reg)
	j, isJump := e.Kind.(JumpExp)
	if isJump {
		fs.Concat(&e.T, j.PC)
	}
	if e.HasJumps() {
		pf, pt := NoJump, NoJump // positions of the LOADBOOL pair, if needed
		if fs.needValue(e.T) || fs.needValue(e.F) {
			fj := NoJump
			if !isJump {
				fj = fs.Jump()
			}
			pf = fs.codeLabel(reg, 0, 1)
			pt = fs.codeLabel(reg, 1, 0)
			fs.PatchToHere(fj)
		}
		final := fs.GetLabel()
		fs.patchListAux(e.F, final, reg, pf)
		fs.patchListAux(e.T, final, reg, pt)
	}
	e.T, e.F = NoJump, NoJump
	e.Kind = NonRelocExp{Reg: reg}
}

// Exp2NextReg places e in the next free register
func (fs *FuncState) Exp2NextReg(e *ExpDesc) {
	fs.DischargeVars(e)
	fs.freeExp(e)
	fs.ReserveRegs(1)
	fs.exp2reg(e, fs.FreeReg-1)
}

// Exp2AnyReg places e in some register and returns it
func (fs *FuncState) Exp2AnyReg(e *ExpDesc) int {
	fs.DischargeVars(e)
	if k, ok := e.Kind.(NonRelocExp); ok {
		if !e.HasJumps() {
			return k.Reg
		}
		if k.Reg >= fs.NumActive {
			// not a local: its register can hold the final value
			fs.exp2reg(e, k.Reg)
			return k.Reg
		}
	}
	fs.Exp2NextReg(e)

	return e.Reg()
}

// Exp2Val makes e a value, not necessarily in a register
func (fs *FuncState) Exp2Val(e *ExpDesc) {
	if e.HasJumps() {
		fs.Exp2AnyReg(e)
	} else {
		fs.DischargeVars(e)
	}
}

// Exp2RK returns e as an RK operand, using the constant pool when possible
func (fs *FuncState) Exp2RK(e *ExpDesc) int {
	fs.Exp2Val(e)
	switch k := e.Kind.(type) {
	case NumberExp, TrueExp, FalseExp, NilExp:
		if len(fs.Proto.Constants) <= opcode.MaxIndexRK {
			var idx int
			switch k := k.(type) {
			case NilExp:
				idx = fs.nilK()
			case TrueExp:
				idx = fs.boolK(true)
			case FalseExp:
				idx = fs.boolK(false)
			case NumberExp:
				idx = fs.NumberK(k.Value)
			}
			e.Kind = ConstExp{Index: idx}
			return opcode.RKAsK(idx)
		}
	case ConstExp:
		if k.Index <= opcode.MaxIndexRK {
			return opcode.RKAsK(k.Index)
		}
	}

	return fs.Exp2AnyReg(e)
}

// StoreVar emits the assignment of ex to the variable v
func (fs *FuncState) StoreVar(v, ex *ExpDesc) {
	switch k := v.Kind.(type) {
	case LocalExp:
		fs.freeExp(ex)
		fs.exp2reg(ex, k.Reg)
		return
	case UpvalExp:
		e := fs.Exp2AnyReg(ex)
		fs.CodeABC(opcode.OpSetUpval, e, k.Index, 0)
	case GlobalExp:
		e := fs.Exp2AnyReg(ex)
		fs.CodeABx(opcode.OpSetGlobal, e, k.Name)
	case IndexedExp:
		e := fs.Exp2RK(ex)
		fs.CodeABC(opcode.OpSetTable, k.Table, k.Key, e)
	default:
		panic("codegen: invalid variable kind to store")
	}
	fs.freeExp(ex)
}

// Self emits the SELF for the method call e:key(...)
func (fs *FuncState) Self(e, key *ExpDesc) {
	reg := fs.Exp2AnyReg(e)
	fs.freeExp(e)
	fn := fs.FreeReg
	fs.ReserveRegs(2)
	fs.CodeABC(opcode.OpSelf, fn, reg, fs.Exp2RK(key))
	fs.freeExp(key)
	e.Kind = NonRelocExp{Reg: fn}
}

// Indexed turns t into the indexed access t[k]; t must be in a register
func (fs *FuncState) Indexed(t, k *ExpDesc) {
	t.Kind = IndexedExp{Table: t.Reg(), Key: fs.Exp2RK(k)}
}
