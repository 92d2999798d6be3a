package lexer

import (
	"math"
	"strings"

	"lunette/pkg/number"
)

const eoz = -1

// MaxLines is the line count at which a chunk is rejected
const MaxLines = math.MaxInt32

type Lexer struct {
	input     string // input string to be tokenized
	length    int    // length of the input string
	position  int    // current position in the input string
	line      int    // current line number for error reporting
	lineStart int    // offset of the first character of the current line
	lastLine  int    // line of the last token consumed
	source    string // chunk name used in diagnostics

	current  Token // token under the cursor
	ahead    Token // one-token lookahead
	hasAhead bool
}

// Create a new lexer instance
func NewLexer(s string, source string) *Lexer {
	return &Lexer{
		input:    s,
		length:   len(s),
		line:     1,
		lastLine: 1,
		source:   source,
	}
}

// Token returns the current token
func (l *Lexer) Token() Token {
	return l.current
}

// Line returns the line the scanner is on
func (l *Lexer) Line() int {
	return l.line
}

// LastLine returns the line of the last consumed token
func (l *Lexer) LastLine() int {
	return l.lastLine
}

// Source returns the chunk name
func (l *Lexer) Source() string {
	return l.source
}

// Next advances to the next token
func (l *Lexer) Next() error {
	l.lastLine = l.line
	if l.hasAhead {
		l.current = l.ahead
		l.hasAhead = false
		return nil
	}

	tok, err := l.scan()
	if err != nil {
		return err
	}
	l.current = tok

	return nil
}

// Lookahead returns the token after the current one without consuming it.
// Only one token of lookahead is kept.
func (l *Lexer) Lookahead() (Token, error) {
	if !l.hasAhead {
		tok, err := l.scan()
		if err != nil {
			return Token{}, err
		}
		l.ahead = tok
		l.hasAhead = true
	}

	return l.ahead, nil
}

// SyntaxError builds an error pointing at the current token
func (l *Lexer) SyntaxError(msg string) *Error {
	return l.errorNear(msg, l.current.Text())
}

// ErrorAt builds an error on the scanner's line without token context
func (l *Lexer) ErrorAt(msg string) *Error {
	return &Error{Source: l.source, Line: l.line, Message: msg}
}

func (l *Lexer) errorNear(msg, near string) *Error {
	return &Error{Source: l.source, Line: l.line, Message: msg, Near: near}
}

func (l *Lexer) peek() int {
	if l.position >= l.length {
		return eoz
	}

	return int(l.input[l.position])
}

func (l *Lexer) peekAt(offset int) int {
	if l.position+offset >= l.length {
		return eoz
	}

	return int(l.input[l.position+offset])
}

func (l *Lexer) currentPosition() Position {
	return NewPosition(l.line, l.position-l.lineStart+1, l.position)
}

func isNewline(c int) bool {
	return c == '\n' || c == '\r'
}

func isDigit(c int) bool {
	return c >= '0' && c <= '9'
}

func isAlpha(c int) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isAlnum(c int) bool {
	return isAlpha(c) || isDigit(c)
}

// Skip a newline sequence; "\n\r" and "\r\n" count as one line
func (l *Lexer) incLine() *Error {
	old := l.peek()
	l.position++
	if c := l.peek(); isNewline(c) && c != old {
		l.position++
	}
	l.lineStart = l.position
	l.line++
	if l.line >= MaxLines {
		return l.ErrorAt("chunk has too many lines")
	}

	return nil
}

func (l *Lexer) scan() (Token, error) {
	for {
		c := l.peek()
		switch {
		case c == eoz:
			return NewToken(EOF, "", "", l.currentPosition()), nil

		case isNewline(c):
			if err := l.incLine(); err != nil {
				return Token{}, err
			}

		case c == ' ' || c == '\t' || c == '\f' || c == '\v':
			l.position++

		case c == '-':
			if l.peekAt(1) != '-' {
				return l.single(MINUS), nil
			}
			if err := l.skipComment(); err != nil {
				return Token{}, err
			}

		case c == '[':
			start := l.currentPosition()
			sep := l.skipSep()
			if sep >= 0 {
				text, err := l.readLongString(sep, false)
				if err != nil {
					return Token{}, err
				}
				return Token{Type: STRING, Lexeme: l.input[start.Offset:l.position], Literal: text, Pos: start}, nil
			}
			if sep != -1 {
				return Token{}, l.errorNear("invalid long string delimiter", l.input[start.Offset:l.position])
			}
			return Token{Type: LSBRACE, Lexeme: "[", Pos: start}, nil

		case c == '=':
			return l.oneOrTwo(ASSIGN, EQ), nil
		case c == '<':
			return l.oneOrTwo(LT, LE), nil
		case c == '>':
			return l.oneOrTwo(GT, GE), nil
		case c == '~':
			if l.peekAt(1) == '=' {
				return l.oneOrTwo(ILLEGAL, NE), nil
			}
			return l.single(ILLEGAL), nil

		case c == '"' || c == '\'':
			return l.readString(c)

		case c == '.':
			if l.peekAt(1) == '.' {
				pos := l.currentPosition()
				if l.peekAt(2) == '.' {
					l.position += 3
					return Token{Type: DOTS, Lexeme: "...", Pos: pos}, nil
				}
				l.position += 2
				return Token{Type: CONCAT, Lexeme: "..", Pos: pos}, nil
			}
			if !isDigit(l.peekAt(1)) {
				return l.single(DOT), nil
			}
			return l.readNumeral()

		case isDigit(c):
			return l.readNumeral()

		case isAlpha(c):
			pos := l.currentPosition()
			for isAlnum(l.peek()) {
				l.position++
			}
			word := l.input[pos.Offset:l.position]
			if t, ok := IsKeyword(word); ok {
				return Token{Type: t, Lexeme: word, Pos: pos}, nil
			}
			return Token{Type: NAME, Lexeme: word, Literal: word, Pos: pos}, nil

		default:
			if t, ok := singleChars[byte(c)]; ok {
				return l.single(t), nil
			}
			return l.single(ILLEGAL), nil
		}
	}
}

func (l *Lexer) single(t TokenType) Token {
	tok := Token{Type: t, Lexeme: l.input[l.position : l.position+1], Pos: l.currentPosition()}
	l.position++

	return tok
}

func (l *Lexer) oneOrTwo(one, two TokenType) Token {
	if l.peekAt(1) != '=' {
		return l.single(one)
	}
	tok := Token{Type: two, Lexeme: l.input[l.position : l.position+2], Pos: l.currentPosition()}
	l.position += 2

	return tok
}

func (l *Lexer) skipComment() *Error {
	l.position += 2
	if l.peek() == '[' {
		sep := l.skipSep()
		if sep >= 0 {
			_, err := l.readLongString(sep, true)
			return err
		}
	}
	for c := l.peek(); c != eoz && !isNewline(c); c = l.peek() {
		l.position++
	}

	return nil
}

// skipSep consumes "[==" or "]==" and returns the level, or -(level+1)
// when the bracket is not doubled.
func (l *Lexer) skipSep() int {
	s := l.peek()
	l.position++
	count := 0
	for l.peek() == '=' {
		l.position++
		count++
	}
	if l.peek() == s {
		return count
	}

	return -count - 1
}

func (l *Lexer) readLongString(sep int, comment bool) (string, *Error) {
	var b strings.Builder
	l.position++ // second bracket
	if isNewline(l.peek()) {
		if err := l.incLine(); err != nil {
			return "", err
		}
	}

	for {
		c := l.peek()
		switch {
		case c == eoz:
			msg := "unfinished long string"
			if comment {
				msg = "unfinished long comment"
			}
			return "", l.errorNear(msg, EOF.String())

		case c == ']':
			mark := l.position
			if l.skipSep() == sep {
				l.position++
				return b.String(), nil
			}
			b.WriteString(l.input[mark:l.position])

		case isNewline(c):
			b.WriteByte('\n')
			if err := l.incLine(); err != nil {
				return "", err
			}

		default:
			b.WriteByte(byte(c))
			l.position++
		}
	}
}

func (l *Lexer) readString(delim int) (Token, error) {
	pos := l.currentPosition()
	var b strings.Builder
	l.position++

	for l.peek() != delim {
		c := l.peek()
		switch {
		case c == eoz:
			return Token{}, l.errorNear("unfinished string", EOF.String())

		case isNewline(c):
			return Token{}, l.errorNear("unfinished string", l.input[pos.Offset:l.position])

		case c == '\\':
			l.position++
			e := l.peek()
			switch e {
			case 'a':
				b.WriteByte('\a')
			case 'b':
				b.WriteByte('\b')
			case 'f':
				b.WriteByte('\f')
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'v':
				b.WriteByte('\v')
			case '\n', '\r':
				b.WriteByte('\n')
				if err := l.incLine(); err != nil {
					return Token{}, err
				}
				continue
			case eoz:
				// reported as an unfinished string on the next iteration
				continue
			default:
				if !isDigit(e) {
					b.WriteByte(byte(e))
					break
				}
				n := 0
				for i := 0; i < 3 && isDigit(l.peek()); i++ {
					n = n*10 + l.peek() - '0'
					l.position++
				}
				if n > math.MaxUint8 {
					return Token{}, l.errorNear("escape sequence too large", l.input[pos.Offset:l.position])
				}
				b.WriteByte(byte(n))
				continue
			}
			l.position++

		default:
			b.WriteByte(byte(c))
			l.position++
		}
	}
	l.position++

	return Token{Type: STRING, Lexeme: l.input[pos.Offset:l.position], Literal: b.String(), Pos: pos}, nil
}

func (l *Lexer) readNumeral() (Token, error) {
	pos := l.currentPosition()
	for c := l.peek(); isDigit(c) || c == '.'; c = l.peek() {
		l.position++
	}
	if c := l.peek(); c == 'e' || c == 'E' {
		l.position++
		if c := l.peek(); c == '+' || c == '-' {
			l.position++
		}
	}
	for isAlnum(l.peek()) {
		l.position++
	}

	text := l.input[pos.Offset:l.position]
	n, ok := number.Parse(text)
	if !ok {
		return Token{}, l.errorNear("malformed number", text)
	}

	return Token{Type: NUMBER, Lexeme: text, Number: n, Pos: pos}, nil
}
