package lexer

import "fmt"

// Position locates a token in the source. Line and Column are 1-based,
// Offset is the byte offset of the token's first byte.
type Position struct {
	Line   int
	Column int
	Offset int
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

func NewPosition(line, column, offset int) Position {
	return Position{Line: line, Column: column, Offset: offset}
}
