package codegen

// NoJump terminates a jump list
const NoJump = -1

// MultRet marks an open result count
const MultRet = -1

// ExpKind is the location of an expression's value. Each variant carries
// only the fields meaningful for it.
type ExpKind interface {
	isExpKind()
}

type (
	// VoidExp is an empty expression list
	VoidExp struct{}
	NilExp  struct{}
	TrueExp struct{}
	// FalseExp is the false constant
	FalseExp struct{}
	// NumberExp is a numeric literal not yet placed in the constant pool
	NumberExp struct{ Value float64 }
	// ConstExp is an entry of the constant pool
	ConstExp struct{ Index int }
	// LocalExp is a local variable living in a register
	LocalExp struct{ Reg int }
	// UpvalExp is an upvalue of the current function
	UpvalExp struct{ Index int }
	// GlobalExp is a global named by the string constant at Name
	GlobalExp struct{ Name int }
	// IndexedExp is Table[Key], Key being an RK operand
	IndexedExp struct{ Table, Key int }
	// JumpExp is a comparison whose outcome is the jump at PC
	JumpExp struct{ PC int }
	// RelocExp is an instruction whose target register is not yet set
	RelocExp struct{ PC int }
	// NonRelocExp is a value fixed in register Reg
	NonRelocExp struct{ Reg int }
	// CallExp is a call instruction at PC
	CallExp struct{ PC int }
	// VarargExp is a VARARG instruction at PC
	VarargExp struct{ PC int }
)

func (VoidExp) isExpKind()     {}
func (NilExp) isExpKind()      {}
func (TrueExp) isExpKind()     {}
func (FalseExp) isExpKind()    {}
func (NumberExp) isExpKind()   {}
func (ConstExp) isExpKind()    {}
func (LocalExp) isExpKind()    {}
func (UpvalExp) isExpKind()    {}
func (GlobalExp) isExpKind()   {}
func (IndexedExp) isExpKind()  {}
func (JumpExp) isExpKind()     {}
func (RelocExp) isExpKind()    {}
func (NonRelocExp) isExpKind() {}
func (CallExp) isExpKind()     {}
func (VarargExp) isExpKind()   {}

// ExpDesc describes an expression during compilation. T and F are the
// patch lists of jumps taken when the expression is true or false.
type ExpDesc struct {
	Kind ExpKind
	T    int
	F    int
}

// NewExp returns a descriptor of the given kind with empty patch lists
func NewExp(kind ExpKind) ExpDesc {
	return ExpDesc{Kind: kind, T: NoJump, F: NoJump}
}

// Void returns an empty expression
func Void() ExpDesc {
	return NewExp(VoidExp{})
}

// HasJumps reports whether e has pending true or false exits
func (e *ExpDesc) HasJumps() bool {
	return e.T != e.F
}

// IsVoid reports whether e is an empty expression
func (e *ExpDesc) IsVoid() bool {
	_, ok := e.Kind.(VoidExp)
	return ok
}

// IsMulti reports whether e can produce several values
func (e *ExpDesc) IsMulti() bool {
	switch e.Kind.(type) {
	case CallExp, VarargExp:
		return true
	}

	return false
}

// Reg returns the register of a NonRelocExp or LocalExp
func (e *ExpDesc) Reg() int {
	switch k := e.Kind.(type) {
	case NonRelocExp:
		return k.Reg
	case LocalExp:
		return k.Reg
	}

	panic("codegen: expression is not in a register")
}

func (e *ExpDesc) numeral() (float64, bool) {
	n, ok := e.Kind.(NumberExp)
	if !ok || e.T != NoJump || e.F != NoJump {
		return 0, false
	}

	return n.Value, true
}
