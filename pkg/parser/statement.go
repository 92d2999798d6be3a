package parser

import (
	"lunette/pkg/lexer"
	"lunette/pkg/opcode"
	"lunette/pkg/parser/codegen"
)

// statement parses one statement and reports whether it must be the last
// of its block.
func (p *Parser) statement() bool {
	line := p.lexer.Line() // may be needed for error messages
	switch p.token().Type {
	case lexer.IF:
		p.ifStat(line)
	case lexer.WHILE:
		p.whileStat(line)
	case lexer.DO:
		p.next()
		p.block()
		p.checkMatch(lexer.END, lexer.DO, line)
	case lexer.FOR:
		p.forStat(line)
	case lexer.REPEAT:
		p.repeatStat(line)
	case lexer.FUNCTION:
		p.funcStat(line)
	case lexer.LOCAL:
		p.next()
		if p.testNext(lexer.FUNCTION) {
			p.localFunc()
		} else {
			p.localStat()
		}
	case lexer.RETURN:
		p.retStat()
		return true
	case lexer.BREAK:
		p.next()
		p.breakStat()
		return true
	default:
		p.exprStat()
	}

	return false
}

func (p *Parser) adjustAssign(nvars, nexps int, e *codegen.ExpDesc) {
	fs := p.fs
	extra := nvars - nexps
	if e.IsMulti() {
		extra++ // includes the call itself
		if extra < 0 {
			extra = 0
		}
		fs.SetReturns(e, extra) // last expression provides the difference
		if extra > 1 {
			fs.ReserveRegs(extra - 1)
		}
		return
	}
	if !e.IsVoid() {
		fs.Exp2NextReg(e) // close last expression
	}
	if extra > 0 {
		reg := fs.FreeReg
		fs.ReserveRegs(extra)
		fs.Nil(reg, extra)
	}
}

type lhsAssign struct {
	prev *lhsAssign
	v    codegen.ExpDesc // global, local, upvalue or indexed variable
}

// checkConflict copies the local v to a safe register when a previous
// indexed target of the same assignment uses it as table or key.
func (p *Parser) checkConflict(lh *lhsAssign, v *codegen.ExpDesc) {
	fs := p.fs
	extra := fs.FreeReg // eventual position to save the local
	reg := v.Reg()
	conflict := false
	for ; lh != nil; lh = lh.prev {
		idx, ok := lh.v.Kind.(codegen.IndexedExp)
		if !ok {
			continue
		}
		if idx.Table == reg {
			conflict = true
			idx.Table = extra
		}
		if idx.Key == reg {
			conflict = true
			idx.Key = extra
		}
		lh.v.Kind = idx
	}
	if conflict {
		fs.CodeABC(opcode.OpMove, fs.FreeReg, reg, 0)
		fs.ReserveRegs(1)
	}
}

func isAssignable(e *codegen.ExpDesc) bool {
	switch e.Kind.(type) {
	case codegen.LocalExp, codegen.UpvalExp, codegen.GlobalExp, codegen.IndexedExp:
		return true
	}

	return false
}

func (p *Parser) assignment(lh *lhsAssign, nvars int) {
	fs := p.fs
	p.checkCondition(isAssignable(&lh.v), "syntax error")
	if p.testNext(lexer.COMMA) {
		// assignment -> ',' primaryexp assignment
		nv := &lhsAssign{prev: lh, v: p.primaryExp()}
		if _, ok := nv.v.Kind.(codegen.LocalExp); ok {
			p.checkConflict(lh, &nv.v)
		}
		fs.CheckLimit(nvars, MaxCalls-p.depth, "variables in assignment")
		p.assignment(nv, nvars+1)
	} else {
		// assignment -> '=' explist1
		p.checkNext(lexer.ASSIGN)
		e, nexps := p.exprList()
		if nexps == nvars {
			fs.SetOneRet(&e) // close last expression
			fs.StoreVar(&lh.v, &e)
			return
		}
		p.adjustAssign(nvars, nexps, &e)
		if nexps > nvars {
			fs.FreeReg -= nexps - nvars // remove extra values
		}
	}
	e := codegen.NewExp(codegen.NonRelocExp{Reg: fs.FreeReg - 1}) // default assignment
	fs.StoreVar(&lh.v, &e)
}

// cond -> exp
func (p *Parser) cond() int {
	v := p.expr()
	if _, ok := v.Kind.(codegen.NilExp); ok {
		v.Kind = codegen.FalseExp{} // falses are all equal here
	}
	p.fs.GoIfTrue(&v)

	return v.F
}

func (p *Parser) breakStat() {
	if !p.fs.Break() {
		p.syntaxError("no loop to break")
	}
}

// whilestat -> WHILE cond DO block END
func (p *Parser) whileStat(line int) {
	fs := p.fs
	p.next()
	whileInit := fs.GetLabel()
	condExit := p.cond()
	fs.EnterBlock(true)
	p.checkNext(lexer.DO)
	p.block()
	fs.PatchList(fs.Jump(), whileInit)
	p.checkMatch(lexer.END, lexer.WHILE, line)
	fs.LeaveBlock()
	fs.PatchToHere(condExit) // false conditions finish the loop
}

// repeatstat -> REPEAT block UNTIL cond
func (p *Parser) repeatStat(line int) {
	fs := p.fs
	repeatInit := fs.GetLabel()
	fs.EnterBlock(true)           // loop block
	scope := fs.EnterBlock(false) // scope block
	p.next()
	p.chunk()
	p.checkMatch(lexer.UNTIL, lexer.REPEAT, line)
	condExit := p.cond() // read condition inside the scope block
	if !scope.HasUpval {
		fs.LeaveBlock()
		fs.PatchList(condExit, repeatInit) // close the loop
	} else {
		// locals of the body are captured: close them on every iteration
		p.breakStat()
		fs.PatchToHere(condExit)
		fs.LeaveBlock()
		fs.PatchList(fs.Jump(), repeatInit)
	}
	fs.LeaveBlock()
}

func (p *Parser) exp1() {
	e := p.expr()
	p.fs.Exp2NextReg(&e)
}

// forbody -> DO block
func (p *Parser) forBody(base, line, nvars int, isNum bool) {
	fs := p.fs
	fs.AdjustLocalVars(3) // control variables
	p.checkNext(lexer.DO)
	var prep int
	if isNum {
		prep = fs.CodeAsBx(opcode.OpForPrep, base, codegen.NoJump)
	} else {
		prep = fs.Jump()
	}
	fs.EnterBlock(false) // scope for declared variables
	fs.AdjustLocalVars(nvars)
	fs.ReserveRegs(nvars)
	p.block()
	fs.LeaveBlock()
	fs.PatchToHere(prep)
	var endFor int
	if isNum {
		endFor = fs.CodeAsBx(opcode.OpForLoop, base, codegen.NoJump)
	} else {
		fs.CodeABC(opcode.OpTForLoop, base, 0, nvars)
	}
	fs.FixLine(line) // pretend the loop instruction starts the loop
	if !isNum {
		endFor = fs.Jump()
	}
	fs.PatchList(endFor, prep+1)
}

// fornum -> NAME = exp1, exp1 [, exp1] forbody
func (p *Parser) forNum(varName string, line int) {
	fs := p.fs
	base := fs.FreeReg
	fs.NewLocalVar("(for index)", 0)
	fs.NewLocalVar("(for limit)", 1)
	fs.NewLocalVar("(for step)", 2)
	fs.NewLocalVar(varName, 3)
	p.checkNext(lexer.ASSIGN)
	p.exp1() // initial value
	p.checkNext(lexer.COMMA)
	p.exp1() // limit
	if p.testNext(lexer.COMMA) {
		p.exp1() // optional step
	} else {
		fs.CodeABx(opcode.OpLoadK, fs.FreeReg, fs.NumberK(1))
		fs.ReserveRegs(1)
	}
	p.forBody(base, line, 1, true)
}

// forlist -> NAME {, NAME} IN explist1 forbody
func (p *Parser) forList(indexName string) {
	fs := p.fs
	base := fs.FreeReg
	nvars := 0
	for _, name := range []string{"(for generator)", "(for state)", "(for control)", indexName} {
		fs.NewLocalVar(name, nvars)
		nvars++
	}
	for p.testNext(lexer.COMMA) {
		fs.NewLocalVar(p.strCheckName(), nvars)
		nvars++
	}
	p.checkNext(lexer.IN)
	line := p.lexer.Line()
	e, nexps := p.exprList()
	p.adjustAssign(3, nexps, &e)
	fs.CheckStack(3) // extra space to call the generator
	p.forBody(base, line, nvars-3, false)
}

// forstat -> FOR (fornum | forlist) END
func (p *Parser) forStat(line int) {
	fs := p.fs
	fs.EnterBlock(true) // scope for loop and control variables
	p.next()
	varName := p.strCheckName()
	switch p.token().Type {
	case lexer.ASSIGN:
		p.forNum(varName, line)
	case lexer.COMMA, lexer.IN:
		p.forList(varName)
	default:
		p.syntaxError("'=' or 'in' expected")
	}
	p.checkMatch(lexer.END, lexer.FOR, line)
	fs.LeaveBlock() // loop scope, breaks jump here
}

// test_then_block -> [IF | ELSEIF] cond THEN block
func (p *Parser) testThenBlock() int {
	p.next()
	condExit := p.cond()
	p.checkNext(lexer.THEN)
	p.block()

	return condExit
}

// ifstat -> IF cond THEN block {ELSEIF cond THEN block} [ELSE block] END
func (p *Parser) ifStat(line int) {
	fs := p.fs
	escapeList := codegen.NoJump
	flist := p.testThenBlock()
	for p.token().Type == lexer.ELSEIF {
		fs.Concat(&escapeList, fs.Jump())
		fs.PatchToHere(flist)
		flist = p.testThenBlock()
	}
	if p.token().Type == lexer.ELSE {
		fs.Concat(&escapeList, fs.Jump())
		fs.PatchToHere(flist)
		p.next() // skip ELSE after the patch, for correct line info
		p.block()
	} else {
		fs.Concat(&escapeList, flist)
	}
	fs.PatchToHere(escapeList)
	p.checkMatch(lexer.END, lexer.IF, line)
}

func (p *Parser) localFunc() {
	fs := p.fs
	fs.NewLocalVar(p.strCheckName(), 0)
	v := codegen.NewExp(codegen.LocalExp{Reg: fs.FreeReg})
	fs.ReserveRegs(1)
	fs.AdjustLocalVars(1)
	b := p.body(false, p.lexer.Line())
	fs.StoreVar(&v, &b)
	// debug information only sees the variable after this point
	fs.LocalVar(fs.NumActive - 1).StartPC = fs.PC()
}

// localstat -> LOCAL NAME {',' NAME} ['=' explist1]
func (p *Parser) localStat() {
	fs := p.fs
	nvars := 0
	for {
		fs.NewLocalVar(p.strCheckName(), nvars)
		nvars++
		if !p.testNext(lexer.COMMA) {
			break
		}
	}
	e, nexps := codegen.Void(), 0
	if p.testNext(lexer.ASSIGN) {
		e, nexps = p.exprList()
	}
	p.adjustAssign(nvars, nexps, &e)
	fs.AdjustLocalVars(nvars)
}

// funcname -> NAME {field} [':' NAME]
func (p *Parser) funcName() (codegen.ExpDesc, bool) {
	v := p.fs.SingleVar(p.strCheckName())
	for p.token().Type == lexer.DOT {
		p.field(&v)
	}
	if p.token().Type == lexer.COLON {
		p.field(&v)
		return v, true
	}

	return v, false
}

// funcstat -> FUNCTION funcname body
func (p *Parser) funcStat(line int) {
	p.next()
	v, needSelf := p.funcName()
	b := p.body(needSelf, line)
	p.fs.StoreVar(&v, &b)
	p.fs.FixLine(line) // definition happens in the first line
}

// stat -> func | assignment
func (p *Parser) exprStat() {
	v := &lhsAssign{v: p.primaryExp()}
	if _, ok := v.v.Kind.(codegen.CallExp); ok {
		p.fs.DiscardResults(&v.v)
		return
	}
	p.assignment(v, 1)
}

// retstat -> RETURN explist
func (p *Parser) retStat() {
	fs := p.fs
	p.next()
	var first, nret int
	if blockFollow(p.token().Type) || p.token().Type == lexer.SEMICOLON {
		first, nret = 0, 0 // return no values
	} else {
		var e codegen.ExpDesc
		e, nret = p.exprList()
		switch {
		case e.IsMulti():
			fs.SetMultRet(&e)
			if _, isCall := e.Kind.(codegen.CallExp); isCall && nret == 1 {
				fs.Instruction(&e).SetOpCode(opcode.OpTailCall)
			}
			first = fs.NumActive
			nret = codegen.MultRet // return all values
		case nret == 1:
			first = fs.Exp2AnyReg(&e)
		default:
			fs.Exp2NextReg(&e) // values must go to the stack
			first = fs.NumActive
		}
	}
	fs.Ret(first, nret)
}
