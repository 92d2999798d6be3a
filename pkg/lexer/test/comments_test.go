package lexer_test

import (
	"testing"

	"lunette/pkg/lexer"
)

func TestComments(t *testing.T) {
	input := "-- line comment\n" + "a --[[ long\ncomment ]] b\n" + "--[==[ level\n]] still ]==] c\n" + "--[ not long\n" + "d"

	toks := scanAll(t, input)
	names := []string{"a", "b", "c", "d"}
	if len(toks) != len(names)+1 {
		t.Fatalf("expected %d tokens, got %d", len(names)+1, len(toks))
	}
	for i, name := range names {
		if toks[i].Type != lexer.NAME || toks[i].Literal != name {
			t.Errorf("Token %d: expected name %s, got %s", i, name, toks[i])
		}
	}
	if toks[3].Pos.Line != 7 {
		t.Errorf("expected 'd' on line 7, got %d", toks[3].Pos.Line)
	}
}

func TestStrings(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`"hello"`, "hello"},
		{`'it''s'`, "it"},
		{`"a\tb\n"`, "a\tb\n"},
		{`"\65\066\0677"`, "ABC7"},
		{`"quote \" inside"`, `quote " inside`},
		{`"\q"`, "q"},
		{"\"line\\\nbreak\"", "line\nbreak"},
		{"[[raw\\n]]", "raw\\n"},
		{"[[\nskip first newline]]", "skip first newline"},
		{"[==[a]]b]==]", "a]]b"},
	}

	for _, test := range tests {
		toks := scanAll(t, test.input)
		if toks[0].Type != lexer.STRING {
			t.Errorf("%s: expected STRING, got %s", test.input, toks[0].Type)
			continue
		}
		if toks[0].Literal != test.expected {
			t.Errorf("%s: expected %q, got %q", test.input, test.expected, toks[0].Literal)
		}
	}
}

func TestLexicalErrors(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{`"abc`, "test:1: unfinished string near '<eof>'"},
		{"\"abc\ndef\"", `test:1: unfinished string near '"abc'`},
		{`"\300"`, `test:1: escape sequence too large near '"\300'`},
		{"[[abc", "test:1: unfinished long string near '<eof>'"},
		{"--[[abc\n", "test:2: unfinished long comment near '<eof>'"},
		{"[=x", "test:1: invalid long string delimiter near '[='"},
	}

	for _, test := range tests {
		l := lexer.NewLexer(test.input, "=test")
		err := l.Next()
		if err == nil {
			t.Errorf("%q: expected an error", test.input)
			continue
		}
		if err.Error() != test.expected {
			t.Errorf("%q: expected %q, got %q", test.input, test.expected, err.Error())
		}
	}
}

func TestChunkID(t *testing.T) {
	tests := []struct {
		source   string
		expected string
	}{
		{"@script.lua", "script.lua"},
		{"=stdin", "stdin"},
		{"", "[string]"},
		{"print(1)", `[string "print(1)"]`},
		{"a = 1\nb = 2", `[string "a = 1..."]`},
	}

	for _, test := range tests {
		if got := lexer.ChunkID(test.source); got != test.expected {
			t.Errorf("ChunkID(%q): expected %q, got %q", test.source, test.expected, got)
		}
	}
}
