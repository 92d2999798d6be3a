// Package chunk holds the function prototype tree and its binary form.
package chunk

import (
	"lunette/pkg/opcode"
)

// Vararg flags of a prototype
const (
	VarargHasArg   = 1
	VarargIsVararg = 2
	VarargNeedsArg = 4
)

// Constant is one entry of a prototype's constant pool: nil, bool,
// float64 or string.
type Constant = any

// LocVar describes the lifetime of a local variable for debug output
type LocVar struct {
	Name    string `yaml:"name"`
	StartPC int    `yaml:"startpc"`
	EndPC   int    `yaml:"endpc"`
}

// Prototype is a compiled function: code, constants, nested functions and
// the debug information that maps them back to the source.
type Prototype struct {
	Source          string
	LineDefined     int
	LastLineDefined int
	NumUpvalues     int
	NumParams       int
	IsVararg        int
	MaxStackSize    int

	Code      []opcode.Instruction
	Constants []Constant
	Protos    []*Prototype

	LineInfo []int
	LocVars  []LocVar
	Upvalues []string
}

// Line returns the source line of the instruction at pc, or 0 when the
// prototype carries no line information.
func (p *Prototype) Line(pc int) int {
	if pc < 0 || pc >= len(p.LineInfo) {
		return 0
	}

	return p.LineInfo[pc]
}
