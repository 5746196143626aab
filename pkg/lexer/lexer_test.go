package lexer

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/cmm-lang/cmm/pkg/config"
	"github.com/cmm-lang/cmm/pkg/token"
)

func tokenize(t *testing.T, src string) []token.Token {
	t.Helper()
	return NewLexer([]byte(src), config.NewConfig()).Tokenize()
}

func kinds(tokens []token.Token) []token.Type {
	var out []token.Type
	for _, tok := range tokens {
		out = append(out, tok.Type)
	}
	return out
}

func TestKeywordsAndPunctuation(t *testing.T) {
	got := tokenize(t, "exit print let mut if elif else ( ) { } ; = + - * /")
	want := []token.Type{
		token.Exit, token.Print, token.Let, token.Mut, token.If, token.Elif,
		token.Else, token.LParen, token.RParen, token.LBrace, token.RBrace,
		token.Semi, token.Eq, token.Plus, token.Minus, token.Star, token.Slash,
		token.EOF,
	}
	if diff := cmp.Diff(want, kinds(got)); diff != "" {
		t.Errorf("token kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestIdentifiersAreNotKeywords(t *testing.T) {
	got := tokenize(t, "exits lets x1 Y")
	want := []token.Token{
		{Type: token.Ident, Value: "exits", Line: 1, Column: 0},
		{Type: token.Ident, Value: "lets", Line: 1, Column: 6},
		{Type: token.Ident, Value: "x1", Line: 1, Column: 11},
		{Type: token.Ident, Value: "Y", Line: 1, Column: 14},
		{Type: token.EOF, Line: 1, Column: 15},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
}

func TestIntLiterals(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"42", "42"},
		{"-42", "-42"},
		{"1_000_000", "1000000"},
		{"0", "0"},
	}
	for _, tt := range tests {
		got := tokenize(t, tt.src)
		if got[0].Type != token.IntLit || got[0].Value != tt.want {
			t.Errorf("tokenize(%q) = %v %q, want IntLit %q", tt.src, got[0].Type, got[0].Value, tt.want)
		}
	}
}

func TestMinusWithoutDigitIsOperator(t *testing.T) {
	got := tokenize(t, "x - y")
	want := []token.Type{token.Ident, token.Minus, token.Ident, token.EOF}
	if diff := cmp.Diff(want, kinds(got)); diff != "" {
		t.Errorf("token kinds mismatch (-want +got):\n%s", diff)
	}
}

func TestStringLiteralEscapes(t *testing.T) {
	got := tokenize(t, `"hello\n" "a\tb" "q\"q"`)
	want := []string{"hello\n", "atb", "q\"q"}
	for i, w := range want {
		if got[i].Type != token.StringLit || got[i].Value != w {
			t.Errorf("string %d = %v %q, want StringLit %q", i, got[i].Type, got[i].Value, w)
		}
	}
}

func TestComments(t *testing.T) {
	src := strings.Join([]string{
		"// a line comment",
		"exit(0); // trailing",
		"/* a block",
		"comment */ let x = 1;",
	}, "\n")
	got := tokenize(t, src)
	want := []token.Type{
		token.Exit, token.LParen, token.IntLit, token.RParen, token.Semi,
		token.Let, token.Ident, token.Eq, token.IntLit, token.Semi, token.EOF,
	}
	if diff := cmp.Diff(want, kinds(got)); diff != "" {
		t.Errorf("token kinds mismatch (-want +got):\n%s", diff)
	}
	// The let after the block comment sits on line 4, column 11.
	if letTok := got[5]; letTok.Line != 4 || letTok.Column != 11 {
		t.Errorf("let position = %d:%d, want 4:11", letTok.Line, letTok.Column)
	}
}

func TestPositions(t *testing.T) {
	src := "let x = 5;\nexit(x);\n"
	got := tokenize(t, src)
	want := []token.Token{
		{Type: token.Let, Value: "let", Line: 1, Column: 0},
		{Type: token.Ident, Value: "x", Line: 1, Column: 4},
		{Type: token.Eq, Value: "=", Line: 1, Column: 6},
		{Type: token.IntLit, Value: "5", Line: 1, Column: 8},
		{Type: token.Semi, Value: ";", Line: 1, Column: 9},
		{Type: token.Exit, Value: "exit", Line: 2, Column: 0},
		{Type: token.LParen, Value: "(", Line: 2, Column: 4},
		{Type: token.Ident, Value: "x", Line: 2, Column: 5},
		{Type: token.RParen, Value: ")", Line: 2, Column: 6},
		{Type: token.Semi, Value: ";", Line: 2, Column: 7},
		{Type: token.EOF, Line: 3, Column: 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tokens mismatch (-want +got):\n%s", diff)
	}
}

// Concatenating non-trivia lexemes reproduces the input with whitespace and
// comments deleted, for lexemes that round-trip (strings excluded).
func TestLexemeConcatenation(t *testing.T) {
	src := "let mut abc = 1+2*(3-4)/5; // comment\nexit(abc);"
	want := "letmutabc=1+2*(3-4)/5;exit(abc);"
	var sb strings.Builder
	for _, tok := range tokenize(t, src) {
		sb.WriteString(tok.Value)
	}
	if sb.String() != want {
		t.Errorf("concatenated lexemes = %q, want %q", sb.String(), want)
	}
}
