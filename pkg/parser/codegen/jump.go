package codegen

import (
	"lunette/pkg/opcode"
)

// Jump lists are chained through the sBx operand of each JMP; NoJump ends
// the chain.

// Jump emits an unconditional jump whose target is patched later. Jumps
// pending to the current pc are folded into it.
func (fs *FuncState) Jump() int {
	jpc := fs.jpc
	fs.jpc = NoJump
	j := fs.CodeAsBx(opcode.OpJmp, 0, NoJump)
	fs.Concat(&j, jpc)

	return j
}

func (fs *FuncState) condJump(op opcode.OpCode, a, b, c int) int {
	fs.CodeABC(op, a, b, c)
	return fs.Jump()
}

func (fs *FuncState) fixJump(pc, dest int) {
	offset := dest - (pc + 1)
	if offset < -opcode.MaxArgSBx || offset > opcode.MaxArgSBx {
		panic(fs.ls.SyntaxError("control structure too long"))
	}
	fs.Proto.Code[pc].SetSBx(offset)
}

// GetLabel marks the current pc as a jump target and returns it
func (fs *FuncState) GetLabel() int {
	fs.lastTarget = fs.PC()
	return fs.PC()
}

func (fs *FuncState) getJump(pc int) int {
	offset := fs.Proto.Code[pc].SBx()
	if offset == NoJump {
		return NoJump // end of list
	}

	return pc + 1 + offset
}

// getJumpControl returns the instruction deciding the jump at pc: the test
// preceding it, or the jump itself.
func (fs *FuncState) getJumpControl(pc int) *opcode.Instruction {
	if pc >= 1 && fs.Proto.Code[pc-1].OpCode().IsTest() {
		return &fs.Proto.Code[pc-1]
	}

	return &fs.Proto.Code[pc]
}

// needValue reports whether some jump in list does not produce a value
func (fs *FuncState) needValue(list int) bool {
	for ; list != NoJump; list = fs.getJump(list) {
		if fs.getJumpControl(list).OpCode() != opcode.OpTestSet {
			return true
		}
	}

	return false
}

func (fs *FuncState) patchTestReg(node, reg int) bool {
	i := fs.getJumpControl(node)
	if i.OpCode() != opcode.OpTestSet {
		return false
	}
	if reg != opcode.NoReg && reg != i.B() {
		i.SetA(reg)
	} else {
		// no register to put the value or it is already there
		*i = opcode.CreateABC(opcode.OpTest, i.B(), 0, i.C())
	}

	return true
}

func (fs *FuncState) removeValues(list int) {
	for ; list != NoJump; list = fs.getJump(list) {
		fs.patchTestReg(list, opcode.NoReg)
	}
}

func (fs *FuncState) patchListAux(list, vtarget, reg, dtarget int) {
	for list != NoJump {
		next := fs.getJump(list)
		if fs.patchTestReg(list, reg) {
			fs.fixJump(list, vtarget)
		} else {
			fs.fixJump(list, dtarget)
		}
		list = next
	}
}

func (fs *FuncState) dischargeJPC() {
	fs.patchListAux(fs.jpc, fs.PC(), opcode.NoReg, fs.PC())
	fs.jpc = NoJump
}

// PatchList points every jump in list at target
func (fs *FuncState) PatchList(list, target int) {
	if target == fs.PC() {
		fs.PatchToHere(list)
	} else {
		fs.patchListAux(list, target, opcode.NoReg, target)
	}
}

// PatchToHere points every jump in list at the next instruction
func (fs *FuncState) PatchToHere(list int) {
	fs.GetLabel()
	fs.Concat(&fs.jpc, list)
}

// Concat appends list l2 to the list at l1
func (fs *FuncState) Concat(l1 *int, l2 int) {
	if l2 == NoJump {
		return
	}
	if *l1 == NoJump {
		*l1 = l2
		return
	}
	list := *l1
	for next := fs.getJump(list); next != NoJump; next = fs.getJump(list) {
		list = next
	}
	fs.fixJump(list, l2)
}
