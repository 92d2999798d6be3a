package interpreter

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
)

// MaxCallDepth bounds nested calls of script functions
const MaxCallDepth = 20000

// Interpreter executes loaded chunks. All closures loaded by one
// interpreter share its globals, its frame arena and its step budget.
type Interpreter struct {
	globals map[string]Value // global variables, shared with the host

	frames []*Frame // frame arena; open upvalues refer to frames by slot

	logger *log.Logger
	trace  bool // log every dispatched instruction

	maxSteps int // maximum steps (0 = unlimited)
	steps    int // steps executed
}

type Option func(*Interpreter)

// WithMaxSteps sets a maximum number of interpreter steps before returning ErrMaxStepsExceeded
func WithMaxSteps(n int) Option {
	return func(i *Interpreter) { i.maxSteps = n }
}

// WithLogger sets the logger used for load and trace output
func WithLogger(l *log.Logger) Option {
	return func(i *Interpreter) { i.logger = l }
}

// WithTrace logs every executed instruction at debug level
func WithTrace(trace bool) Option {
	return func(i *Interpreter) { i.trace = trace }
}

// NewInterpreter creates an interpreter over globals. A nil map is replaced
// by an empty one.
func NewInterpreter(globals map[string]Value, opts ...Option) *Interpreter {
	if globals == nil {
		globals = make(map[string]Value)
	}
	it := &Interpreter{
		globals: globals,
		frames:  make([]*Frame, 0, 8),
	}

	for _, o := range opts {
		o(it)
	}

	if it.logger == nil {
		it.logger = log.Default()
	}

	return it
}

// Load reads a binary chunk into a new interpreter and returns the main
// function, closed over globals and no upvalues.
func Load(b []byte, globals map[string]Value, opts ...Option) (*Closure, error) {
	return NewInterpreter(globals, opts...).Load(b)
}

// Globals returns the global table shared with the host
func (i *Interpreter) Globals() map[string]Value {
	return i.globals
}

// Steps returns the number of instructions executed so far
func (i *Interpreter) Steps() int {
	return i.steps
}

// Reset clears the step counter
func (i *Interpreter) Reset() {
	i.steps = 0
}

// Closure is a script function bound to its upvalues
type Closure struct {
	proto  *proto
	upvals []*upvalue
	it     *Interpreter
}

// Call runs the closure with args and returns all of its results
func (c *Closure) Call(args ...Value) ([]Value, error) {
	return c.it.execute(c, normalizeAll(append([]Value(nil), args...)))
}

// String identifies the closure by the place it was defined
func (c *Closure) String() string {
	return fmt.Sprintf("function: %s:%p", c.proto.source, c)
}

// Call calls fn, a closure or a host function, the way a script would
func Call(fn Value, args ...Value) ([]Value, error) {
	switch f := normalize(fn).(type) {
	case *Closure:
		return f.Call(args...)
	case HostFunction:
		rets, err := f(args...)
		return normalizeAll(rets), err
	default:
		return nil, fmt.Errorf("attempt to call a %s value", TypeName(fn))
	}
}

// RuntimeError is an error raised while executing a script, annotated
// with the source and line of the instruction that failed.
type RuntimeError struct {
	Source string
	Line   int
	Err    error
}

func (e *RuntimeError) Error() string {
	if e.Line <= 0 {
		return fmt.Sprintf("%s:?: %v", e.Source, e.Err)
	}

	return fmt.Sprintf("%s:%d: %v", e.Source, e.Line, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

var (
	ErrMaxStepsExceeded = errors.New("maximum steps exceeded")
	ErrStackOverflow    = errors.New("stack overflow")
)

// annotate attaches the frame's position to err unless an inner frame
// already did
func (f *Frame) annotate(err error) error {
	var re *RuntimeError
	if errors.As(err, &re) {
		return err
	}

	return &RuntimeError{Source: f.closure.proto.source, Line: f.Line(), Err: err}
}

// execute runs cl in a new frame of the arena
func (i *Interpreter) execute(cl *Closure, args []Value) ([]Value, error) {
	if len(i.frames) >= MaxCallDepth {
		return nil, ErrStackOverflow
	}

	f := newFrame(len(i.frames), cl, args)
	i.frames = append(i.frames, f)
	defer func() {
		f.closeUpvalues(0)
		i.frames[f.id] = nil
		i.frames = i.frames[:f.id]
	}()

	if err := i.Run(f); err != nil {
		return nil, err
	}

	return f.results, nil
}

// Step executes a single instruction of f, returning (halted, error)
func (i *Interpreter) Step(f *Frame) (bool, error) {
	if i.maxSteps > 0 && i.steps >= i.maxSteps {
		return false, ErrMaxStepsExceeded
	}

	halted, err := i.step(f)
	i.steps++

	return halted, err
}

// Run executes f until it returns or fails
func (i *Interpreter) Run(f *Frame) error {
	for {
		halted, err := i.Step(f)
		if err != nil {
			return f.annotate(err)
		}

		if halted {
			return nil
		}
	}
}

// ToDisplay renders any value for output
func ToDisplay(v Value) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case bool:
		if x {
			return "true"
		}
		return "false"
	case string:
		return x
	case float64:
		s, _ := ToString(x)
		return s
	case *Table:
		return fmt.Sprintf("table: %p", x)
	case *Closure:
		return x.String()
	case HostFunction:
		return fmt.Sprintf("function: builtin: %#x", funcPointer(x))
	default:
		return fmt.Sprintf("%s: %v", TypeName(v), v)
	}
}
