package interpreter

import (
	"errors"
	"fmt"
	"strings"

	"lunette/pkg/opcode"
)

// rk resolves an RK operand
func (f *Frame) rk(x int, k bool) Value {
	if k {
		return f.closure.proto.constants[x]
	}

	return f.regs[x]
}

// step is the main single-step execution function
// it returns (halted, error).
func (i *Interpreter) step(f *Frame) (bool, error) {
	p := f.closure.proto
	in := &p.code[f.pc]
	f.pc++

	if i.trace {
		i.logger.Debug("exec", "source", p.source, "pc", f.pc, "op", in.source, "a", in.a, "b", in.b, "c", in.c)
	}

	regs := f.regs
	switch in.op {
	case opMove:
		regs[in.a] = regs[in.b]

	case opLoadK:
		regs[in.a] = p.constants[in.bx]

	case opLoadBool:
		regs[in.a] = in.b != 0
		if in.c != 0 {
			f.pc++
		}

	case opLoadNil:
		for r := in.a; r <= in.b; r++ {
			regs[r] = nil
		}

	case opGetGlobal:
		regs[in.a] = normalize(i.globals[p.constants[in.bx].(string)])

	case opSetGlobal:
		name := p.constants[in.bx].(string)
		if regs[in.a] == nil {
			delete(i.globals, name)
		} else {
			i.globals[name] = regs[in.a]
		}

	case opGetUpval:
		regs[in.a] = f.closure.upvals[in.b].get()

	case opSetUpval:
		f.closure.upvals[in.b].set(regs[in.a])

	case opNewTable:
		regs[in.a] = NewTable(opcode.FB2Int(in.b), opcode.FB2Int(in.c))

	case opGetTable:
		v, err := f.index(in.b, f.rk(in.c, in.kc))
		if err != nil {
			return false, err
		}
		regs[in.a] = v

	case opSetTable:
		t, ok := regs[in.a].(*Table)
		if !ok {
			return false, f.typeError(in.a, regs[in.a], "index")
		}
		if err := t.Set(f.rk(in.b, in.kb), f.rk(in.c, in.kc)); err != nil {
			return false, err
		}

	case opSelf:
		obj := regs[in.b]
		v, err := f.index(in.b, f.rk(in.c, in.kc))
		if err != nil {
			return false, err
		}
		regs[in.a+1] = obj
		regs[in.a] = v

	case opAdd, opSub, opMul, opDiv, opMod, opPow:
		b, c := f.rk(in.b, in.kb), f.rk(in.c, in.kc)
		x, okb := ToNumber(b)
		y, okc := ToNumber(c)
		if !okb || !okc {
			// report the first operand that is not a number
			if !okb {
				return false, f.operandError(in.b, in.kb, b, "perform arithmetic on")
			}
			return false, f.operandError(in.c, in.kc, c, "perform arithmetic on")
		}
		regs[in.a] = arith(in.op, x, y)

	case opUnm:
		x, ok := ToNumber(regs[in.b])
		if !ok {
			return false, f.typeError(in.b, regs[in.b], "perform arithmetic on")
		}
		regs[in.a] = -x

	case opNot:
		regs[in.a] = !Truthy(regs[in.b])

	case opLen:
		switch v := regs[in.b].(type) {
		case string:
			regs[in.a] = float64(len(v))
		case *Table:
			regs[in.a] = float64(v.Len())
		default:
			return false, f.typeError(in.b, v, "get length of")
		}

	case opConcat:
		s, err := f.concat(in.b, in.c)
		if err != nil {
			return false, err
		}
		regs[in.a] = s

	case opJmp:
		f.pc += in.sbx

	case opEq, opLt, opLe:
		b, c := f.rk(in.b, in.kb), f.rk(in.c, in.kc)
		var res bool
		var err error
		switch in.op {
		case opEq:
			res = RawEquals(b, c)
		case opLt:
			res, err = lessThan(b, c)
		default:
			res, err = lessEqual(b, c)
		}
		if err != nil {
			return false, err
		}
		f.condJump(res == (in.a != 0))

	case opTest:
		f.condJump(Truthy(regs[in.a]) == (in.c != 0))

	case opTestSet:
		v := regs[in.b]
		if Truthy(v) == (in.c != 0) {
			regs[in.a] = v
			f.condJump(true)
		} else {
			f.condJump(false)
		}

	case opForPrep:
		init, ok := ToNumber(regs[in.a])
		if !ok {
			return false, errors.New("'for' initial value must be a number")
		}
		limit, ok := ToNumber(regs[in.a+1])
		if !ok {
			return false, errors.New("'for' limit must be a number")
		}
		step, ok := ToNumber(regs[in.a+2])
		if !ok {
			return false, errors.New("'for' step must be a number")
		}
		regs[in.a] = init - step
		regs[in.a+1] = limit
		regs[in.a+2] = step
		f.pc += in.sbx

	case opForLoop:
		step, ok1 := regs[in.a+2].(float64)
		idx, ok2 := regs[in.a].(float64)
		limit, ok3 := regs[in.a+1].(float64)
		if !ok1 || !ok2 || !ok3 {
			return false, errors.New("'for' loop state is not numeric")
		}
		idx += step
		if (step > 0 && idx <= limit) || (step <= 0 && limit <= idx) {
			f.pc += in.sbx
			regs[in.a] = idx
			regs[in.a+3] = idx
		}

	case opTForLoop:
		rets, err := i.call(f, in.a, regs[in.a], []Value{regs[in.a+1], regs[in.a+2]})
		if err != nil {
			return false, err
		}
		base := in.a + 3
		for n := 0; n < in.c; n++ {
			var v Value
			if n < len(rets) {
				v = rets[n]
			}
			regs[base+n] = v
		}
		if regs[base] != nil {
			regs[in.a+2] = regs[base]
			f.condJump(true)
		} else {
			f.condJump(false)
		}

	case opCall:
		nargs := in.b - 1
		if in.b == 0 {
			nargs = f.top - in.a - 1
		}
		args := append([]Value(nil), regs[in.a+1:in.a+1+nargs]...)
		rets, err := i.call(f, in.a, regs[in.a], args)
		if err != nil {
			return false, err
		}
		f.storeResults(in.a, in.c-1, rets)

	case opTailCall:
		nargs := in.b - 1
		if in.b == 0 {
			nargs = f.top - in.a - 1
		}
		args := append([]Value(nil), regs[in.a+1:in.a+1+nargs]...)
		f.closeUpvalues(0)
		if cl, ok := regs[in.a].(*Closure); ok && cl.it == i {
			// reuse the frame so the chain does not grow
			f.enter(cl, args)
			return false, nil
		}
		rets, err := i.call(f, in.a, regs[in.a], args)
		if err != nil {
			return false, err
		}
		f.storeResults(in.a, -1, rets)

	case opReturn:
		n := in.b - 1
		if in.b == 0 {
			n = f.top - in.a
		}
		f.closeUpvalues(0)
		f.results = append([]Value(nil), regs[in.a:in.a+n]...)
		return true, nil

	case opClose:
		f.closeUpvalues(in.a)

	case opClosure:
		child := p.protos[in.bx]
		cl := &Closure{proto: child, it: i, upvals: make([]*upvalue, child.numUpvalues)}
		for n := range cl.upvals {
			desc := p.code[f.pc+n]
			if desc.op == opMove {
				cl.upvals[n] = f.findUpvalue(i, desc.b)
			} else {
				cl.upvals[n] = f.closure.upvals[desc.b]
			}
		}
		f.pc += child.numUpvalues
		regs[in.a] = cl

	case opSetList:
		n := in.b
		if n == 0 {
			n = f.top - in.a - 1
		}
		batch := in.c
		if batch == 0 {
			batch = p.code[f.pc].bx
			f.pc++
		}
		t, ok := regs[in.a].(*Table)
		if !ok {
			return false, f.typeError(in.a, regs[in.a], "index")
		}
		offset := (batch - 1) * opcode.FieldsPerFlush
		for k := 1; k <= n; k++ {
			if err := t.Set(float64(offset+k), regs[in.a+k]); err != nil {
				return false, err
			}
		}

	case opVararg:
		n := in.b - 1
		if in.b == 0 {
			n = len(f.varargs)
			f.ensure(in.a + n)
			f.top = in.a + n
		}
		for k := 0; k < n; k++ {
			var v Value
			if k < len(f.varargs) {
				v = f.varargs[k]
			}
			f.regs[in.a+k] = v
		}

	case opData:
		return false, fmt.Errorf("SETLIST data word executed at instruction %d", f.pc)
	}

	return false, nil
}

// condJump executes the jump following a test when taken, skips it otherwise
func (f *Frame) condJump(taken bool) {
	if taken {
		f.pc += f.closure.proto.code[f.pc].sbx
	}
	f.pc++
}

// storeResults copies call results to registers from base. A negative want
// keeps every result and records the new top.
func (f *Frame) storeResults(base, want int, rets []Value) {
	if want < 0 {
		f.ensure(base + len(rets))
		copy(f.regs[base:], rets)
		f.top = base + len(rets)
		return
	}
	for n := 0; n < want; n++ {
		var v Value
		if n < len(rets) {
			v = rets[n]
		}
		f.regs[base+n] = v
	}
}

// call invokes fn held in register reg of the caller frame
func (i *Interpreter) call(f *Frame, reg int, fn Value, args []Value) ([]Value, error) {
	switch fn := fn.(type) {
	case *Closure:
		return fn.it.execute(fn, args)
	case HostFunction:
		rets, err := fn(args...)
		return normalizeAll(rets), err
	default:
		return nil, f.typeError(reg, fn, "call")
	}
}

// index reads regs[reg][key]
func (f *Frame) index(reg int, key Value) (Value, error) {
	t, ok := f.regs[reg].(*Table)
	if !ok {
		return nil, f.typeError(reg, f.regs[reg], "index")
	}

	return t.Get(key), nil
}

func (f *Frame) concat(from, to int) (string, error) {
	var sb strings.Builder
	for r := from; r <= to; r++ {
		s, ok := ToString(f.regs[r])
		if !ok {
			return "", f.concatError(from, to)
		}
		sb.WriteString(s)
	}

	return sb.String(), nil
}

// concatError blames the operand the pairwise right-to-left evaluation
// trips over first
func (f *Frame) concatError(from, to int) error {
	bad := to
	for ; bad > from; bad-- {
		if _, ok := ToString(f.regs[bad]); !ok {
			break
		}
	}
	if bad == to && bad > from {
		if _, ok := ToString(f.regs[bad-1]); !ok {
			bad--
		}
	}

	return f.typeError(bad, f.regs[bad], "concatenate")
}
