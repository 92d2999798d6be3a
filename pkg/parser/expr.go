package parser

import (
	"lunette/pkg/chunk"
	"lunette/pkg/lexer"
	"lunette/pkg/opcode"
	"lunette/pkg/parser/codegen"
)

// field -> ['.' | ':'] NAME
func (p *Parser) field(v *codegen.ExpDesc) {
	p.fs.Exp2AnyReg(v)
	p.next() // skip the dot or colon
	key := p.checkName()
	p.fs.Indexed(v, &key)
}

// index -> '[' expr ']'
func (p *Parser) index() codegen.ExpDesc {
	p.next()
	v := p.expr()
	p.fs.Exp2Val(&v)
	p.checkNext(lexer.RSBRACE)

	return v
}

type consControl struct {
	v       codegen.ExpDesc  // last list item read
	t       *codegen.ExpDesc // table descriptor
	nh      int              // number of record elements
	na      int              // number of array elements
	toStore int              // array elements pending to be stored
}

// recfield -> (NAME | '[' expr ']') = expr
func (p *Parser) recField(cc *consControl) {
	fs := p.fs
	reg := fs.FreeReg
	var key codegen.ExpDesc
	if p.token().Type == lexer.NAME {
		key = p.checkName()
	} else {
		key = p.index()
	}
	cc.nh++
	p.checkNext(lexer.ASSIGN)
	rkKey := fs.Exp2RK(&key)
	val := p.expr()
	fs.CodeABC(opcode.OpSetTable, cc.t.Reg(), rkKey, fs.Exp2RK(&val))
	fs.FreeReg = reg // free registers
}

func (p *Parser) closeListField(cc *consControl) {
	if cc.v.IsVoid() {
		return // there is no list item
	}
	p.fs.Exp2NextReg(&cc.v)
	cc.v = codegen.Void()
	if cc.toStore == opcode.FieldsPerFlush {
		p.fs.SetList(cc.t.Reg(), cc.na, cc.toStore)
		cc.toStore = 0
	}
}

func (p *Parser) lastListField(cc *consControl) {
	if cc.toStore == 0 {
		return
	}
	if cc.v.IsMulti() {
		p.fs.SetMultRet(&cc.v)
		p.fs.SetList(cc.t.Reg(), cc.na, codegen.MultRet)
		cc.na-- // do not count the open last item
		return
	}
	if !cc.v.IsVoid() {
		p.fs.Exp2NextReg(&cc.v)
	}
	p.fs.SetList(cc.t.Reg(), cc.na, cc.toStore)
}

func (p *Parser) listField(cc *consControl) {
	cc.v = p.expr()
	cc.na++
	cc.toStore++
}

// constructor -> '{' [ field { sep field } [sep] ] '}'
func (p *Parser) constructor() codegen.ExpDesc {
	fs := p.fs
	line := p.lexer.Line()
	pc := fs.CodeABC(opcode.OpNewTable, 0, 0, 0)
	t := codegen.NewExp(codegen.RelocExp{PC: pc})
	cc := consControl{v: codegen.Void(), t: &t}
	fs.Exp2NextReg(&t) // fix it at stack top
	p.checkNext(lexer.LBRACE)
	for {
		if p.token().Type == lexer.RBRACE {
			break
		}
		p.closeListField(&cc)
		switch p.token().Type {
		case lexer.NAME:
			if p.lookahead().Type != lexer.ASSIGN {
				p.listField(&cc)
			} else {
				p.recField(&cc)
			}
		case lexer.LSBRACE:
			p.recField(&cc)
		default:
			p.listField(&cc)
		}
		if !p.testNext(lexer.COMMA) && !p.testNext(lexer.SEMICOLON) {
			break
		}
	}
	p.checkMatch(lexer.RBRACE, lexer.LBRACE, line)
	p.lastListField(&cc)
	fs.Proto.Code[pc].SetB(opcode.Int2FB(cc.na)) // initial array size
	fs.Proto.Code[pc].SetC(opcode.Int2FB(cc.nh)) // initial hash size

	return t
}

// explist1 -> expr { ',' expr }
func (p *Parser) exprList() (codegen.ExpDesc, int) {
	n := 1
	v := p.expr()
	for p.testNext(lexer.COMMA) {
		p.fs.Exp2NextReg(&v)
		v = p.expr()
		n++
	}

	return v, n
}

func (p *Parser) funcArgs(f *codegen.ExpDesc) {
	fs := p.fs
	var args codegen.ExpDesc
	line := p.lexer.Line()
	switch p.token().Type {
	case lexer.LPAREN:
		if line != p.lexer.LastLine() {
			p.syntaxError("ambiguous syntax (function call x new statement)")
		}
		p.next()
		if p.token().Type == lexer.RPAREN {
			args = codegen.Void()
		} else {
			args, _ = p.exprList()
			fs.SetMultRet(&args)
		}
		p.checkMatch(lexer.RPAREN, lexer.LPAREN, line)
	case lexer.LBRACE:
		args = p.constructor()
	case lexer.STRING:
		args = p.codeString(p.token().Literal)
		p.next()
	default:
		p.syntaxError("function arguments expected")
	}

	base := f.Reg()
	nparams := codegen.MultRet // open call
	if !args.IsMulti() {
		if !args.IsVoid() {
			fs.Exp2NextReg(&args) // close last argument
		}
		nparams = fs.FreeReg - (base + 1)
	}
	*f = codegen.NewExp(codegen.CallExp{PC: fs.CodeABC(opcode.OpCall, base, nparams+1, 2)})
	fs.FixLine(line)
	fs.FreeReg = base + 1 // call leaves one result unless changed
}

// prefixexp -> NAME | '(' expr ')'
func (p *Parser) prefixExp() codegen.ExpDesc {
	switch p.token().Type {
	case lexer.LPAREN:
		line := p.lexer.Line()
		p.next()
		v := p.expr()
		p.checkMatch(lexer.RPAREN, lexer.LPAREN, line)
		p.fs.DischargeVars(&v)
		return v
	case lexer.NAME:
		return p.fs.SingleVar(p.strCheckName())
	default:
		p.syntaxError("unexpected symbol")
		return codegen.Void()
	}
}

// primaryexp -> prefixexp { '.' NAME | '[' exp ']' | ':' NAME funcargs | funcargs }
func (p *Parser) primaryExp() codegen.ExpDesc {
	fs := p.fs
	v := p.prefixExp()
	for {
		switch p.token().Type {
		case lexer.DOT:
			p.field(&v)
		case lexer.LSBRACE:
			fs.Exp2AnyReg(&v)
			key := p.index()
			fs.Indexed(&v, &key)
		case lexer.COLON:
			p.next()
			key := p.checkName()
			fs.Self(&v, &key)
			p.funcArgs(&v)
		case lexer.LPAREN, lexer.STRING, lexer.LBRACE:
			fs.Exp2NextReg(&v)
			p.funcArgs(&v)
		default:
			return v
		}
	}
}

// simpleexp -> NUMBER | STRING | NIL | true | false | ... | constructor |
// FUNCTION body | primaryexp
func (p *Parser) simpleExp() codegen.ExpDesc {
	var v codegen.ExpDesc
	tok := p.token()
	switch tok.Type {
	case lexer.NUMBER:
		v = codegen.NewExp(codegen.NumberExp{Value: tok.Number})
	case lexer.STRING:
		v = p.codeString(tok.Literal)
	case lexer.NIL:
		v = codegen.NewExp(codegen.NilExp{})
	case lexer.TRUE:
		v = codegen.NewExp(codegen.TrueExp{})
	case lexer.FALSE:
		v = codegen.NewExp(codegen.FalseExp{})
	case lexer.DOTS:
		fs := p.fs
		p.checkCondition(fs.Proto.IsVararg != 0, "cannot use '...' outside a vararg function")
		fs.Proto.IsVararg &^= chunk.VarargNeedsArg
		v = codegen.NewExp(codegen.VarargExp{PC: fs.CodeABC(opcode.OpVararg, 0, 1, 0)})
	case lexer.LBRACE:
		return p.constructor()
	case lexer.FUNCTION:
		p.next()
		return p.body(false, p.lexer.Line())
	default:
		return p.primaryExp()
	}
	p.next()

	return v
}

// subexpr -> (simpleexp | unop subexpr) { binop subexpr }
// where binop is any binary operator with a priority higher than limit
func (p *Parser) subExpr(v *codegen.ExpDesc, limit int) codegen.BinOpr {
	p.enterLevel()
	if uop := codegen.GetUnaryOperator(p.token().Type); uop != codegen.OprNoUnOpr {
		p.next()
		p.subExpr(v, codegen.UnaryPriority)
		p.fs.Prefix(uop, v)
	} else {
		*v = p.simpleExp()
	}

	op := codegen.GetBinaryOperator(p.token().Type)
	for op != codegen.OprNoBinOpr {
		left, right := op.Priority()
		if left <= limit {
			break
		}
		p.next()
		p.fs.Infix(op, v)
		var v2 codegen.ExpDesc
		nextOp := p.subExpr(&v2, right)
		p.fs.Posfix(op, v, &v2)
		op = nextOp
	}
	p.leaveLevel()

	return op
}

func (p *Parser) expr() codegen.ExpDesc {
	var v codegen.ExpDesc
	p.subExpr(&v, 0)
	return v
}
