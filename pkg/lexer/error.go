package lexer

import (
	"fmt"
	"strings"
)

// MaxSourceID bounds the rendered chunk name in diagnostics
const MaxSourceID = 80

// Error is a lexical or syntax error. The parser reports its own failures
// with this type too, so a compile call only ever fails with *Error.
type Error struct {
	Source  string // chunk name as given to the compiler
	Line    int
	Message string
	Near    string // offending token text, empty when not applicable
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s:%d: %s", ChunkID(e.Source), e.Line, e.Message)
	if e.Near != "" {
		msg += fmt.Sprintf(" near '%s'", e.Near)
	}

	return msg
}

// ChunkID renders a chunk name for diagnostics: "@file" names a file,
// "=name" is used verbatim, anything else is treated as source text.
func ChunkID(source string) string {
	switch {
	case source == "":
		return "[string]"
	case strings.HasPrefix(source, "="):
		s := source[1:]
		if len(s) > MaxSourceID-1 {
			s = s[:MaxSourceID-1]
		}
		return s
	case strings.HasPrefix(source, "@"):
		s := source[1:]
		if len(s) > MaxSourceID-1 {
			s = "..." + s[len(s)-(MaxSourceID-4):]
		}
		return s
	default:
		line := source
		truncated := false
		if i := strings.IndexAny(line, "\r\n"); i >= 0 {
			line = line[:i]
			truncated = true
		}
		limit := MaxSourceID - len(`[string "..."]`) - 1
		if len(line) > limit {
			line = line[:limit]
			truncated = true
		}
		if truncated {
			return `[string "` + line + `..."]`
		}
		return `[string "` + line + `"]`
	}
}
