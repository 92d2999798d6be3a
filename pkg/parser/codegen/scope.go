package codegen

import (
	"fmt"

	"lunette/pkg/chunk"
	"lunette/pkg/opcode"
)

// Block is a lexical scope inside a function
type Block struct {
	BreakList   int  // jumps out of this loop
	NumActive   int  // active locals outside the block
	HasUpval    bool // some local of the block is captured
	IsBreakable bool // the block is a loop
}

// CheckLimit fails the compile when v exceeds limit
func (fs *FuncState) CheckLimit(v, limit int, what string) {
	if v <= limit {
		return
	}
	var msg string
	if fs.Proto.LineDefined == 0 {
		msg = fmt.Sprintf("main function has more than %d %s", limit, what)
	} else {
		msg = fmt.Sprintf("function at line %d has more than %d %s", fs.Proto.LineDefined, limit, what)
	}
	panic(fs.ls.ErrorAt(msg))
}

// LocalVar returns the debug record of the i-th active local
func (fs *FuncState) LocalVar(i int) *chunk.LocVar {
	return &fs.Proto.LocVars[fs.actvar.At(i)]
}

// NewLocalVar declares the n-th local of a pending declaration. It becomes
// visible after AdjustLocalVars.
func (fs *FuncState) NewLocalVar(name string, n int) {
	fs.CheckLimit(fs.NumActive+n+1, MaxVars, "local variables")
	fs.Proto.LocVars = append(fs.Proto.LocVars, chunk.LocVar{Name: name})
	fs.actvar.Truncate(fs.NumActive + n)
	fs.actvar.Push(len(fs.Proto.LocVars) - 1)
}

// AdjustLocalVars activates the last nvars declared locals
func (fs *FuncState) AdjustLocalVars(nvars int) {
	fs.NumActive += nvars
	for ; nvars > 0; nvars-- {
		fs.LocalVar(fs.NumActive - nvars).StartPC = fs.PC()
	}
}

// RemoveVars ends the scope of every local above level
func (fs *FuncState) RemoveVars(level int) {
	for fs.NumActive > level {
		fs.NumActive--
		fs.LocalVar(fs.NumActive).EndPC = fs.PC()
	}
	fs.actvar.Truncate(level)
}

func (fs *FuncState) searchVar(name string) int {
	for i := fs.NumActive - 1; i >= 0; i-- {
		if fs.LocalVar(i).Name == name {
			return i
		}
	}

	return -1
}

// markUpval flags the block declaring local level as captured
func (fs *FuncState) markUpval(level int) {
	for i := fs.blocks.Size() - 1; i >= 0; i-- {
		if bl := fs.blocks.At(i); bl.NumActive <= level {
			bl.HasUpval = true
			return
		}
	}
}

func (fs *FuncState) indexUpvalue(name string, v *ExpDesc) int {
	var u upvalDesc
	switch k := v.Kind.(type) {
	case LocalExp:
		u = upvalDesc{local: true, index: k.Reg}
	case UpvalExp:
		u = upvalDesc{local: false, index: k.Index}
	}
	for i, existing := range fs.upvals {
		if existing == u {
			return i
		}
	}
	fs.CheckLimit(len(fs.upvals)+1, MaxUpvalues, "upvalues")
	fs.upvals = append(fs.upvals, u)
	fs.Proto.Upvalues = append(fs.Proto.Upvalues, name)

	return len(fs.upvals) - 1
}

// singleVarAux resolves name starting at fs and reports whether it is a
// global.
func singleVarAux(fs *FuncState, name string, v *ExpDesc, base bool) bool {
	if fs == nil {
		*v = NewExp(GlobalExp{})
		return true
	}
	if reg := fs.searchVar(name); reg >= 0 {
		*v = NewExp(LocalExp{Reg: reg})
		if !base {
			fs.markUpval(reg) // local will be used as upvalue
		}
		return false
	}
	if singleVarAux(fs.Parent, name, v, false) {
		return true
	}
	*v = NewExp(UpvalExp{Index: fs.indexUpvalue(name, v)})

	return false
}

// SingleVar resolves a variable name to a local, upvalue or global
func (fs *FuncState) SingleVar(name string) ExpDesc {
	var v ExpDesc
	if singleVarAux(fs, name, &v, true) {
		v.Kind = GlobalExp{Name: fs.StringK(name)}
	}

	return v
}

// EnterBlock opens a scope
func (fs *FuncState) EnterBlock(isBreakable bool) *Block {
	bl := &Block{
		BreakList:   NoJump,
		NumActive:   fs.NumActive,
		IsBreakable: isBreakable,
	}
	fs.blocks.Push(bl)

	return bl
}

// LeaveBlock closes the innermost scope, its captured locals and patches
// its breaks to the current pc.
func (fs *FuncState) LeaveBlock() {
	bl := fs.blocks.Pop()
	fs.RemoveVars(bl.NumActive)
	if bl.HasUpval {
		fs.CodeABC(opcode.OpClose, bl.NumActive, 0, 0)
	}
	fs.FreeReg = fs.NumActive
	fs.PatchToHere(bl.BreakList)
}

// Break emits the jump out of the innermost loop. It reports false when
// there is no enclosing loop.
func (fs *FuncState) Break() bool {
	upval := false
	for i := fs.blocks.Size() - 1; i >= 0; i-- {
		bl := fs.blocks.At(i)
		if !bl.IsBreakable {
			upval = upval || bl.HasUpval
			continue
		}
		if upval {
			fs.CodeABC(opcode.OpClose, bl.NumActive, 0, 0)
		}
		fs.Concat(&bl.BreakList, fs.Jump())
		return true
	}

	return false
}
