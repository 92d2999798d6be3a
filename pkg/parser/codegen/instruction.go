package codegen

import (
	"lunette/pkg/lexer"
	"lunette/pkg/opcode"
)

type BinOpr int

// Binary operators, ordered as the priority table
const (
	OprAdd BinOpr = iota
	OprSub
	OprMul
	OprDiv
	OprMod
	OprPow
	OprConcat
	OprNe
	OprEq
	OprLt
	OprLe
	OprGt
	OprGe
	OprAnd
	OprOr
	OprNoBinOpr
)

type UnOpr int

const (
	OprMinus UnOpr = iota
	OprNot
	OprLen
	OprNoUnOpr
)

// UnaryPriority is the binding power of every unary operator
const UnaryPriority = 8

var priority = [...]struct{ Left, Right int }{
	OprAdd:    {6, 6},
	OprSub:    {6, 6},
	OprMul:    {7, 7},
	OprDiv:    {7, 7},
	OprMod:    {7, 7},
	OprPow:    {10, 9}, // right associative
	OprConcat: {5, 4}, // right associative
	OprNe:     {3, 3},
	OprEq:     {3, 3},
	OprLt:     {3, 3},
	OprLe:     {3, 3},
	OprGt:     {3, 3},
	OprGe:     {3, 3},
	OprAnd:    {2, 2},
	OprOr:     {1, 1},
}

// Priority returns the left and right binding power of op
func (op BinOpr) Priority() (left, right int) {
	p := priority[op]
	return p.Left, p.Right
}

var arithOps = [...]opcode.OpCode{
	OprAdd: opcode.OpAdd,
	OprSub: opcode.OpSub,
	OprMul: opcode.OpMul,
	OprDiv: opcode.OpDiv,
	OprMod: opcode.OpMod,
	OprPow: opcode.OpPow,
}

// GetBinaryOperator maps a token to its binary operator
func GetBinaryOperator(t lexer.TokenType) BinOpr {
	switch t {
	case lexer.PLUS:
		return OprAdd
	case lexer.MINUS:
		return OprSub
	case lexer.MULT:
		return OprMul
	case lexer.DIV:
		return OprDiv
	case lexer.MOD:
		return OprMod
	case lexer.POW:
		return OprPow
	case lexer.CONCAT:
		return OprConcat
	case lexer.NE:
		return OprNe
	case lexer.EQ:
		return OprEq
	case lexer.LT:
		return OprLt
	case lexer.LE:
		return OprLe
	case lexer.GT:
		return OprGt
	case lexer.GE:
		return OprGe
	case lexer.AND:
		return OprAnd
	case lexer.OR:
		return OprOr
	default:
		return OprNoBinOpr
	}
}

// GetUnaryOperator maps a token to its unary operator
func GetUnaryOperator(t lexer.TokenType) UnOpr {
	switch t {
	case lexer.NOT:
		return OprNot
	case lexer.MINUS:
		return OprMinus
	case lexer.LEN:
		return OprLen
	default:
		return OprNoUnOpr
	}
}
