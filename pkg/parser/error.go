package parser

import (
	"fmt"

	"lunette/pkg/lexer"
)

// Error is a compile-time failure: lexical, syntactic or a compiler limit
type Error = lexer.Error

// MaxCalls bounds the nesting of syntactic constructs
const MaxCalls = 200

func (p *Parser) syntaxError(msg string) {
	panic(p.lexer.SyntaxError(msg))
}

func (p *Parser) errorExpected(t lexer.TokenType) {
	p.syntaxError(fmt.Sprintf("'%s' expected", t))
}

func (p *Parser) checkCondition(cond bool, msg string) {
	if !cond {
		p.syntaxError(msg)
	}
}

// checkMatch consumes what, naming the token who opened the construct at
// line where when it is missing.
func (p *Parser) checkMatch(what, who lexer.TokenType, where int) {
	if p.testNext(what) {
		return
	}
	if where == p.lexer.Line() {
		p.errorExpected(what)
	}
	p.syntaxError(fmt.Sprintf("'%s' expected (to close '%s' at line %d)", what, who, where))
}

func (p *Parser) enterLevel() {
	p.depth++
	if p.depth > MaxCalls {
		panic(p.lexer.ErrorAt("chunk has too many syntax levels"))
	}
}

func (p *Parser) leaveLevel() {
	p.depth--
}
