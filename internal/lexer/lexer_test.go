package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loxlang/loxvm/internal/token"
)

func scanAll(t *testing.T, source string) []token.Token {
	t.Helper()
	l := New(source)
	var toks []token.Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks
		}
	}
}

func TestSingleAndDoubleCharTokens(t *testing.T) {
	toks := scanAll(t, "(){},.-+;/*! != = == > >= < <=")
	types := make([]token.Type, 0, len(toks))
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	assert.Equal(t, []token.Type{
		token.LeftParen, token.RightParen, token.LeftBrace, token.RightBrace,
		token.Comma, token.Dot, token.Minus, token.Plus, token.Semicolon,
		token.Slash, token.Star, token.Bang, token.BangEqual, token.Equal,
		token.EqualEqual, token.Greater, token.GreaterEqual, token.Less,
		token.LessEqual, token.EOF,
	}, types)
}

func TestKeywordsAndIdentifiers(t *testing.T) {
	toks := scanAll(t, "and break class else false for fun if nil or return super this true var while notAKeyword")
	require.Len(t, toks, 18) // 16 keywords, 1 identifier, EOF
	want := []token.Type{
		token.And, token.Break, token.Class, token.Else, token.False,
		token.For, token.Fun, token.If, token.Nil, token.Or, token.Return,
		token.Super, token.This, token.True, token.Var, token.While,
		token.Identifier,
	}
	for i, w := range want {
		assert.Equal(t, w, toks[i].Type, "token %d", i)
	}
}

func TestLineComment(t *testing.T) {
	toks := scanAll(t, "1; // ignored\n2;")
	require.Len(t, toks, 5)
	assert.Equal(t, "1", toks[0].Lexeme)
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, "2", toks[2].Lexeme)
	assert.Equal(t, 2, toks[2].Line)
}

func TestStringLiteralSpansLinesAndTracksLineCounter(t *testing.T) {
	toks := scanAll(t, "\"a\nb\";")
	require.GreaterOrEqual(t, len(toks), 2)
	assert.Equal(t, token.String, toks[0].Type)
	assert.Equal(t, "\"a\nb\"", toks[0].Lexeme)
	// the semicolon comes after the embedded newline
	assert.Equal(t, 2, toks[1].Line)
}

func TestUnterminatedStringIsAnErrorToken(t *testing.T) {
	toks := scanAll(t, "\"unterminated")
	require.Len(t, toks, 2)
	assert.Equal(t, token.Error, toks[0].Type)
	assert.Equal(t, "Unterminated string.", toks[0].Message)
}

func TestNumberLiterals(t *testing.T) {
	cases := []struct {
		source string
		lexeme string
	}{
		{"123;", "123"},
		{"12.34;", "12.34"},
		{"1_000_000;", "1_000_000"},
		{"1e10;", "1e10"},
		{"1.5e-3;", "1.5e-3"},
		{"2E+8;", "2E+8"},
	}
	for _, c := range cases {
		toks := scanAll(t, c.source)
		require.GreaterOrEqual(t, len(toks), 1)
		assert.Equal(t, token.Number, toks[0].Type, c.source)
		assert.Equal(t, c.lexeme, toks[0].Lexeme, c.source)
	}
}

func TestNumberLexemeStripsUnderscores(t *testing.T) {
	assert.Equal(t, "1000000", NumberLexeme("1_000_000"))
	assert.Equal(t, "12.34", NumberLexeme("12.34"))
}

func TestUnexpectedCharacterIsAnErrorToken(t *testing.T) {
	toks := scanAll(t, "@")
	require.Len(t, toks, 2)
	assert.Equal(t, token.Error, toks[0].Type)
}

func TestNoBlockComments(t *testing.T) {
	// '/' not followed by a second '/' is a Slash token, not a comment
	// opener — Lox has no block comments.
	toks := scanAll(t, "/* not a comment */")
	assert.Equal(t, token.Slash, toks[0].Type)
}
