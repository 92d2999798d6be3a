package chunk

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"lunette/pkg/color"
	"lunette/pkg/lexer"
	"lunette/pkg/number"
	"lunette/pkg/opcode"
)

// Listing formats
const (
	FormatText = "text"
	FormatYAML = "yaml"
)

// InstructionListing is one decoded instruction
type InstructionListing struct {
	PC       int    `yaml:"pc"`
	Line     int    `yaml:"line,omitempty"`
	Op       string `yaml:"op"`
	Operands []int  `yaml:"operands,flow"`
	Comment  string `yaml:"comment,omitempty"`
}

// FunctionListing is the disassembly of one prototype and its children
type FunctionListing struct {
	Kind            string               `yaml:"kind"`
	Source          string               `yaml:"source"`
	LineDefined     int                  `yaml:"line_defined"`
	LastLineDefined int                  `yaml:"last_line_defined"`
	NumParams       int                  `yaml:"params"`
	IsVararg        bool                 `yaml:"vararg"`
	MaxStackSize    int                  `yaml:"max_stack"`
	NumUpvalues     int                  `yaml:"upvalues"`
	Code            []InstructionListing `yaml:"code"`
	Constants       []string             `yaml:"constants,omitempty"`
	Locals          []LocVar             `yaml:"locals,omitempty"`
	UpvalueNames    []string             `yaml:"upvalue_names,omitempty"`
	Functions       []*FunctionListing   `yaml:"functions,omitempty"`
}

// NewListing decodes p and its nested prototypes
func NewListing(p *Prototype) *FunctionListing {
	return newListing(p, true)
}

func newListing(p *Prototype, main bool) *FunctionListing {
	l := &FunctionListing{
		Kind:            "function",
		Source:          lexer.ChunkID(p.Source),
		LineDefined:     p.LineDefined,
		LastLineDefined: p.LastLineDefined,
		NumParams:       p.NumParams,
		IsVararg:        p.IsVararg != 0,
		MaxStackSize:    p.MaxStackSize,
		NumUpvalues:     p.NumUpvalues,
		Locals:          p.LocVars,
		UpvalueNames:    p.Upvalues,
	}
	if main {
		l.Kind = "main"
	}
	for _, k := range p.Constants {
		l.Constants = append(l.Constants, FormatConstant(k))
	}

	for pc := 0; pc < len(p.Code); pc++ {
		i := p.Code[pc]
		entry := InstructionListing{PC: pc + 1, Line: p.Line(pc), Op: i.OpCode().String()}
		entry.Operands, entry.Comment = operands(p, pc, i)
		l.Code = append(l.Code, entry)

		if i.OpCode() == opcode.OpSetList && i.C() == 0 && pc+1 < len(p.Code) {
			// the batch number lives in the next word
			pc++
			l.Code = append(l.Code, InstructionListing{
				PC:       pc + 1,
				Line:     p.Line(pc),
				Op:       "DATA",
				Operands: []int{int(p.Code[pc])},
			})
		}
	}

	for _, child := range p.Protos {
		l.Functions = append(l.Functions, newListing(child, false))
	}

	return l
}

// FormatConstant renders a constant the way it would appear in source
func FormatConstant(k Constant) string {
	switch v := k.(type) {
	case nil:
		return "nil"
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return number.Format(v)
	case string:
		return strconv.Quote(v)
	default:
		return fmt.Sprintf("?%v", v)
	}
}

func rk(p *Prototype, x int) string {
	if opcode.IsK(x) {
		idx := opcode.IndexK(x)
		if idx < len(p.Constants) {
			return FormatConstant(p.Constants[idx])
		}
	}

	return "-"
}

// rkComment renders RK operands, or nothing when none is a constant
func rkComment(p *Prototype, xs ...int) string {
	parts := make([]string, len(xs))
	found := false
	for i, x := range xs {
		parts[i] = rk(p, x)
		found = found || parts[i] != "-"
	}
	if !found {
		return ""
	}

	return strings.Join(parts, " ")
}

func operands(p *Prototype, pc int, i opcode.Instruction) ([]int, string) {
	op := i.OpCode()
	if !op.Valid() {
		return []int{int(i)}, ""
	}

	a := i.A()
	switch op.Mode() {
	case opcode.ModeABx:
		bx := i.Bx()
		switch op {
		case opcode.OpLoadK, opcode.OpGetGlobal, opcode.OpSetGlobal:
			comment := ""
			if bx < len(p.Constants) {
				comment = FormatConstant(p.Constants[bx])
			}
			return []int{a, -1 - bx}, comment
		default:
			return []int{a, bx}, ""
		}

	case opcode.ModeAsBx:
		sbx := i.SBx()
		comment := fmt.Sprintf("to %d", pc+2+sbx)
		if op == opcode.OpJmp {
			return []int{sbx}, comment
		}
		return []int{a, sbx}, comment
	}

	b, c := i.B(), i.C()
	ops := []int{a}
	if op.BMode() != opcode.ArgN {
		if op.BMode() == opcode.ArgK && opcode.IsK(b) {
			ops = append(ops, -1-opcode.IndexK(b))
		} else {
			ops = append(ops, b)
		}
	}
	if op.CMode() != opcode.ArgN {
		if op.CMode() == opcode.ArgK && opcode.IsK(c) {
			ops = append(ops, -1-opcode.IndexK(c))
		} else {
			ops = append(ops, c)
		}
	}

	var comment string
	switch op {
	case opcode.OpGetUpval, opcode.OpSetUpval:
		if b < len(p.Upvalues) {
			comment = p.Upvalues[b]
		}
	case opcode.OpGetTable, opcode.OpSelf:
		comment = rkComment(p, c)
	case opcode.OpSetTable, opcode.OpAdd, opcode.OpSub, opcode.OpMul, opcode.OpDiv,
		opcode.OpMod, opcode.OpPow, opcode.OpEq, opcode.OpLt, opcode.OpLe:
		comment = rkComment(p, b, c)
	}

	return ops, comment
}

// WriteYAML encodes the listing as YAML
func (l *FunctionListing) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(l); err != nil {
		return fmt.Errorf("encode listing: %w", err)
	}

	return enc.Close()
}

// WriteText prints the listing in the classic luac layout
func (l *FunctionListing) WriteText(w io.Writer) error {
	var sb strings.Builder
	l.text(&sb)
	_, err := io.WriteString(w, sb.String())

	return err
}

func (l *FunctionListing) text(sb *strings.Builder) {
	vararg := ""
	if l.IsVararg {
		vararg = "+"
	}
	fmt.Fprintf(sb, "\n%s <%s:%d,%d> (%d instructions)\n",
		color.BoldText(l.Kind), l.Source, l.LineDefined, l.LastLineDefined, len(l.Code))
	fmt.Fprintf(sb, "%d%s params, %d slots, %d upvalues, %d locals, %d constants, %d functions\n",
		l.NumParams, vararg, l.MaxStackSize, l.NumUpvalues, len(l.Locals), len(l.Constants), len(l.Functions))

	for _, in := range l.Code {
		line := "[-]"
		if in.Line > 0 {
			line = fmt.Sprintf("[%d]", in.Line)
		}
		args := make([]string, len(in.Operands))
		for i, v := range in.Operands {
			args[i] = strconv.Itoa(v)
		}
		fmt.Fprintf(sb, "\t%d\t%-6s\t%s\t%-12s", in.PC, color.GrayText(line), color.YellowText(fmt.Sprintf("%-9s", in.Op)), strings.Join(args, " "))
		if in.Comment != "" {
			fmt.Fprintf(sb, "\t; %s", color.CyanText(in.Comment))
		}
		sb.WriteByte('\n')
	}

	if len(l.Constants) > 0 {
		fmt.Fprintf(sb, "constants (%d):\n", len(l.Constants))
		for i, k := range l.Constants {
			fmt.Fprintf(sb, "\t%d\t%s\n", i+1, k)
		}
	}
	if len(l.Locals) > 0 {
		fmt.Fprintf(sb, "locals (%d):\n", len(l.Locals))
		for i, v := range l.Locals {
			fmt.Fprintf(sb, "\t%d\t%s\t%d\t%d\n", i, v.Name, v.StartPC+1, v.EndPC+1)
		}
	}
	if len(l.UpvalueNames) > 0 {
		fmt.Fprintf(sb, "upvalues (%d):\n", len(l.UpvalueNames))
		for i, name := range l.UpvalueNames {
			fmt.Fprintf(sb, "\t%d\t%s\n", i, name)
		}
	}

	for _, child := range l.Functions {
		child.text(sb)
	}
}

// Write renders the listing in the given format
func (l *FunctionListing) Write(w io.Writer, format string) error {
	switch format {
	case FormatYAML:
		return l.WriteYAML(w)
	case FormatText, "":
		return l.WriteText(w)
	default:
		return fmt.Errorf("unknown listing format %q", format)
	}
}
