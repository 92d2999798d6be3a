package lexer

import (
	"fmt"
)

type TokenType int

type Token struct {
	Type    TokenType // Type of the token
	Lexeme  string    // Actual string from source code
	Literal string    // Decoded string or name (NAME and STRING only)
	Number  float64   // Numeric value (NUMBER only)
	Pos     Position  // Position in source code
}

// NewToken creates a new Token instance
func NewToken(tokenType TokenType, lexeme string, literal string, pos Position) Token {
	return Token{
		Type:    tokenType,
		Lexeme:  lexeme,
		Literal: literal,
		Pos:     pos,
	}
}

const (
	EOF TokenType = iota // <eof>

	AND      // and
	BREAK    // break
	DO       // do
	ELSE     // else
	ELSEIF   // elseif
	END      // end
	FALSE    // false
	FOR      // for
	FUNCTION // function
	IF       // if
	IN       // in
	LOCAL    // local
	NIL      // nil
	NOT      // not
	OR       // or
	REPEAT   // repeat
	RETURN   // return
	THEN     // then
	TRUE     // true
	UNTIL    // until
	WHILE    // while

	NAME   // <name>
	NUMBER // <number>
	STRING // <string>

	CONCAT // ..
	DOTS   // ...
	EQ     // ==
	GE     // >=
	LE     // <=
	NE     // ~=

	ASSIGN // =
	PLUS   // +
	MINUS  // -
	MULT   // *
	DIV    // /
	MOD    // %
	POW    // ^
	LEN    // #
	LT     // <
	GT     // >

	SEMICOLON // ;
	COLON     // :
	COMMA     // ,
	DOT       // .
	LPAREN    // (
	RPAREN    // )
	LBRACE    // {
	RBRACE    // }
	LSBRACE   // [
	RSBRACE   // ]

	ILLEGAL // any other single character
)

// Keywords is the reserved-word table, built once at startup
var Keywords = map[string]TokenType{
	"and":      AND,
	"break":    BREAK,
	"do":       DO,
	"else":     ELSE,
	"elseif":   ELSEIF,
	"end":      END,
	"false":    FALSE,
	"for":      FOR,
	"function": FUNCTION,
	"if":       IF,
	"in":       IN,
	"local":    LOCAL,
	"nil":      NIL,
	"not":      NOT,
	"or":       OR,
	"repeat":   REPEAT,
	"return":   RETURN,
	"then":     THEN,
	"true":     TRUE,
	"until":    UNTIL,
	"while":    WHILE,
}

var tokenNames = func() map[TokenType]string {
	names := map[TokenType]string{
		EOF:       "<eof>",
		NAME:      "<name>",
		NUMBER:    "<number>",
		STRING:    "<string>",
		CONCAT:    "..",
		DOTS:      "...",
		EQ:        "==",
		GE:        ">=",
		LE:        "<=",
		NE:        "~=",
		ASSIGN:    "=",
		PLUS:      "+",
		MINUS:     "-",
		MULT:      "*",
		DIV:       "/",
		MOD:       "%",
		POW:       "^",
		LEN:       "#",
		LT:        "<",
		GT:        ">",
		SEMICOLON: ";",
		COLON:     ":",
		COMMA:     ",",
		DOT:       ".",
		LPAREN:    "(",
		RPAREN:    ")",
		LBRACE:    "{",
		RBRACE:    "}",
		LSBRACE:   "[",
		RSBRACE:   "]",
	}
	for word, t := range Keywords {
		names[t] = word
	}
	return names
}()

var singleChars = map[byte]TokenType{
	'+': PLUS,
	'-': MINUS,
	'*': MULT,
	'/': DIV,
	'%': MOD,
	'^': POW,
	'#': LEN,
	'<': LT,
	'>': GT,
	'=': ASSIGN,
	';': SEMICOLON,
	':': COLON,
	',': COMMA,
	'.': DOT,
	'(': LPAREN,
	')': RPAREN,
	'{': LBRACE,
	'}': RBRACE,
	'[': LSBRACE,
	']': RSBRACE,
}

// String returns a string representation of the Token
func (t Token) String() string {
	if t.Literal == "" {
		return fmt.Sprintf("T_{%s, %q, %s}", t.Type, t.Lexeme, t.Pos.String())
	}

	return fmt.Sprintf("T_{%s, %q, %q, %s}", t.Type, t.Lexeme, t.Literal, t.Pos.String())
}

// Text renders the token the way diagnostics quote it: literal classes
// show their source text, everything else its fixed spelling.
func (t Token) Text() string {
	switch t.Type {
	case NAME, STRING, NUMBER:
		return t.Lexeme
	case ILLEGAL:
		if len(t.Lexeme) == 1 && (t.Lexeme[0] < ' ' || t.Lexeme[0] > '~') {
			return fmt.Sprintf("char(%d)", t.Lexeme[0])
		}
		return t.Lexeme
	default:
		return t.Type.String()
	}
}

// String returns a string representation of the TokenType
func (t TokenType) String() string {
	if str, ok := tokenNames[t]; ok {
		return str
	}

	return fmt.Sprintf("UNKNOWN(%d)", int(t))
}

// IsKeyword checks if the given identifier is a keyword and returns its TokenType if it is
func IsKeyword(identifier string) (TokenType, bool) {
	tokenType, ok := Keywords[identifier]
	return tokenType, ok
}
