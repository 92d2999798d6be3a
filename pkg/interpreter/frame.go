package interpreter

// Frame represents a function call frame.
type Frame struct {
	id      int              // slot in the interpreter's frame arena
	closure *Closure         // function being executed
	regs    []Value          // registers, sized to the prototype's stack
	varargs []Value          // arguments beyond the fixed parameters
	pc      int              // index of the next instruction
	top     int              // first free register after a variable result count
	open    map[int]*upvalue // open upvalues by register index
	results []Value          // values returned once the frame finishes
}

// upvalue is a variable captured by a closure. While open it names a
// register of a live frame by arena slot and index; closing snapshots the
// value so the closure no longer depends on the frame.
type upvalue struct {
	it     *Interpreter
	frame  int
	index  int
	closed bool
	value  Value
}

func (u *upvalue) get() Value {
	if u.closed {
		return u.value
	}

	return u.it.frames[u.frame].regs[u.index]
}

func (u *upvalue) set(v Value) {
	if u.closed {
		u.value = v
		return
	}
	u.it.frames[u.frame].regs[u.index] = v
}

func (u *upvalue) close() {
	u.value = u.get()
	u.closed = true
}

func newFrame(id int, cl *Closure, args []Value) *Frame {
	f := &Frame{id: id, open: make(map[int]*upvalue)}
	f.enter(cl, args)

	return f
}

// enter (re)initialises the frame for a call of cl with args
func (f *Frame) enter(cl *Closure, args []Value) {
	p := cl.proto
	f.closure = cl
	f.regs = make([]Value, max(p.maxStack, p.numParams))
	copy(f.regs[:p.numParams], args)
	f.varargs = nil
	if p.isVararg && len(args) > p.numParams {
		f.varargs = append([]Value(nil), args[p.numParams:]...)
	}
	f.pc = 0
	f.top = 0
	f.results = nil
}

// ensure grows the register array to hold n registers
func (f *Frame) ensure(n int) {
	if n > len(f.regs) {
		f.regs = append(f.regs, make([]Value, n-len(f.regs))...)
	}
}

// findUpvalue returns the open upvalue for register reg, creating it once
func (f *Frame) findUpvalue(it *Interpreter, reg int) *upvalue {
	if uv, ok := f.open[reg]; ok {
		return uv
	}
	uv := &upvalue{it: it, frame: f.id, index: reg}
	f.open[reg] = uv

	return uv
}

// closeUpvalues closes every open upvalue at or above register level
func (f *Frame) closeUpvalues(level int) {
	for reg, uv := range f.open {
		if reg >= level {
			uv.close()
			delete(f.open, reg)
		}
	}
}

// Line returns the source line of the instruction being executed
func (f *Frame) Line() int {
	return f.closure.proto.line(f.pc - 1)
}
