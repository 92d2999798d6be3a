package parser

import (
	"bytes"

	"lunette/pkg/chunk"
	"lunette/pkg/lexer"
	"lunette/pkg/parser/codegen"
)

type Parser struct {
	lexer *lexer.Lexer       // lexer instance
	fs    *codegen.FuncState // function being compiled
	depth int                // nesting of syntactic constructs
}

// NewParser creates a new parser instance
func NewParser(l *lexer.Lexer) *Parser {
	return &Parser{
		lexer: l,
	}
}

// Parse compiles source into the prototype of its main function. The
// chunk name follows the usual convention: "@file", "=name" or the source
// text itself.
func Parse(source, chunkName string) (proto *chunk.Prototype, err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(*Error)
			if !ok {
				panic(r)
			}
			proto, err = nil, e
		}
	}()

	p := NewParser(lexer.NewLexer(source, chunkName))
	return p.MainFunc(), nil
}

// Compile compiles source straight to a binary chunk
func Compile(source, chunkName string) ([]byte, error) {
	proto, err := Parse(source, chunkName)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := chunk.Dump(&buf, proto); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// MainFunc parses the whole input as the main function. Failures panic
// with *Error.
func (p *Parser) MainFunc() *chunk.Prototype {
	p.fs = codegen.Open(nil, p.lexer, p.lexer.Source())
	p.fs.Proto.IsVararg = chunk.VarargIsVararg // main function is always vararg
	p.next()
	p.chunk()
	p.check(lexer.EOF)

	return p.closeFunc()
}

func (p *Parser) openFunc() *codegen.FuncState {
	p.fs = codegen.Open(p.fs, p.lexer, p.lexer.Source())
	return p.fs
}

func (p *Parser) closeFunc() *chunk.Prototype {
	proto := p.fs.Close()
	p.fs = p.fs.Parent

	return proto
}

// next advances to the next token from the lexer
func (p *Parser) next() {
	if err := p.lexer.Next(); err != nil {
		panic(err)
	}
}

func (p *Parser) lookahead() lexer.Token {
	tok, err := p.lexer.Lookahead()
	if err != nil {
		panic(err)
	}

	return tok
}

func (p *Parser) token() lexer.Token {
	return p.lexer.Token()
}

func (p *Parser) testNext(t lexer.TokenType) bool {
	if p.token().Type != t {
		return false
	}
	p.next()

	return true
}

func (p *Parser) check(t lexer.TokenType) {
	if p.token().Type != t {
		p.errorExpected(t)
	}
}

func (p *Parser) checkNext(t lexer.TokenType) {
	p.check(t)
	p.next()
}

func (p *Parser) strCheckName() string {
	p.check(lexer.NAME)
	name := p.token().Literal
	p.next()

	return name
}

func (p *Parser) codeString(s string) codegen.ExpDesc {
	return codegen.NewExp(codegen.ConstExp{Index: p.fs.StringK(s)})
}

func (p *Parser) checkName() codegen.ExpDesc {
	return p.codeString(p.strCheckName())
}

func blockFollow(t lexer.TokenType) bool {
	switch t {
	case lexer.ELSE, lexer.ELSEIF, lexer.END, lexer.UNTIL, lexer.EOF:
		return true
	default:
		return false
	}
}

// chunk -> { stat [';'] }
func (p *Parser) chunk() {
	isLast := false
	p.enterLevel()
	for !isLast && !blockFollow(p.token().Type) {
		isLast = p.statement()
		p.testNext(lexer.SEMICOLON)
		p.fs.EndStatement()
	}
	p.leaveLevel()
}

func (p *Parser) block() {
	p.fs.EnterBlock(false)
	p.chunk()
	p.fs.LeaveBlock()
}

// parlist -> [ param { ',' param } ]
func (p *Parser) parList() {
	fs := p.fs
	nparams := 0
	fs.Proto.IsVararg = 0
	if p.token().Type != lexer.RPAREN {
		for {
			switch p.token().Type {
			case lexer.NAME:
				fs.NewLocalVar(p.strCheckName(), nparams)
				nparams++
			case lexer.DOTS:
				p.next()
				fs.Proto.IsVararg = chunk.VarargIsVararg | chunk.VarargNeedsArg
			default:
				p.syntaxError("<name> or '...' expected")
			}
			if fs.Proto.IsVararg != 0 || !p.testNext(lexer.COMMA) {
				break
			}
		}
	}
	fs.AdjustLocalVars(nparams)
	fs.Proto.NumParams = fs.NumActive
	fs.ReserveRegs(fs.NumActive)
}

// body -> '(' parlist ')' chunk END
func (p *Parser) body(needSelf bool, line int) codegen.ExpDesc {
	fs := p.openFunc()
	fs.Proto.LineDefined = line
	p.checkNext(lexer.LPAREN)
	if needSelf {
		fs.NewLocalVar("self", 0)
		fs.AdjustLocalVars(1)
	}
	p.parList()
	p.checkNext(lexer.RPAREN)
	p.chunk()
	fs.Proto.LastLineDefined = p.lexer.Line()
	p.checkMatch(lexer.END, lexer.FUNCTION, line)
	p.closeFunc()

	return p.fs.Closure(fs)
}
