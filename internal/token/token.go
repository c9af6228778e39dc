// Package token defines the lexical tokens produced by the lexer and
// consumed directly by the compiler's Pratt parser.
package token

// Type identifies the lexical category of a Token.
type Type int

const (
	// Single-character tokens.
	LeftParen Type = iota
	RightParen
	LeftBrace
	RightBrace
	Comma
	Dot
	Minus
	Plus
	Semicolon
	Slash
	Star

	// One or two character tokens.
	Bang
	BangEqual
	Equal
	EqualEqual
	Greater
	GreaterEqual
	Less
	LessEqual

	// Literals.
	Identifier
	String
	Number

	// Keywords.
	And
	Class
	Else
	False
	For
	Fun
	If
	Nil
	Or
	Return
	Super
	This
	True
	Var
	While
	Break

	Error
	EOF
)

var keywords = map[string]Type{
	"and":    And,
	"class":  Class,
	"else":   Else,
	"false":  False,
	"for":    For,
	"fun":    Fun,
	"if":     If,
	"nil":    Nil,
	"or":     Or,
	"return": Return,
	"super":  Super,
	"this":   This,
	"true":   True,
	"var":    Var,
	"while":  While,
	"break":  Break,
}

// Lookup reports the keyword Type for an identifier lexeme, if any.
func Lookup(ident string) (Type, bool) {
	t, ok := keywords[ident]
	return t, ok
}

// Token is a single lexeme with its source position.
type Token struct {
	Type    Type
	Lexeme  string
	Line    int
	Message string // set when Type == Error
}
