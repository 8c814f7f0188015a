package token

import "strconv"

// A Token represents a lexical token.
type Token int8

//nolint:revive
const (
	ILLEGAL Token = iota
	EOF

	// Tokens with values
	COMMENT // ; code comment
	IDENT   // x, +, let-rec?
	INT     // 123
	STRING  // "foo"

	// punctuation
	LPAREN // (
	RPAREN // )

	// Keywords, the heads of the special forms and the literal atoms
	FN
	LET
	LETREC
	VAR
	SET
	IF
	SEQ
	TRY
	CATCH
	FINALLY
	THROW
	DEF
	TRUE
	FALSE
	UNIT

	maxToken             = UNIT
	litStart, litEnd     = COMMENT, STRING
	punctStart, punctEnd = LPAREN, RPAREN
	kwStart, kwEnd       = FN, UNIT
)

func (tok Token) String() string { return tokenNames[tok] }

// GoString is like String but quotes punctuation tokens. Use Sprintf("%#v",
// tok) when constructing error messages.
func (tok Token) GoString() string {
	if tok >= punctStart && tok <= punctEnd {
		return "'" + tokenNames[tok] + "'"
	}
	return tokenNames[tok]
}

// IsKeyword returns true if tok is a keyword.
func (tok Token) IsKeyword() bool { return tok >= kwStart && tok <= kwEnd }

var tokenNames = [...]string{
	ILLEGAL: "illegal token",
	EOF:     "end of file",

	COMMENT: "comment",
	IDENT:   "identifier",
	INT:     "int literal",
	STRING:  "string literal",

	LPAREN: "(",
	RPAREN: ")",

	FN:      "fn",
	LET:     "let",
	LETREC:  "let-rec",
	VAR:     "var",
	SET:     "set",
	IF:      "if",
	SEQ:     "seq",
	TRY:     "try",
	CATCH:   "catch",
	FINALLY: "finally",
	THROW:   "throw",
	DEF:     "def",
	TRUE:    "true",
	FALSE:   "false",
	UNIT:    "unit",
}

var keywords = func() map[string]Token {
	kw := make(map[string]Token)
	for i := kwStart; i <= kwEnd; i++ {
		kw[tokenNames[i]] = i
	}
	return kw
}()

// LookupKw maps an identifier to its keyword token or IDENT (if not a
// keyword).
func LookupKw(ident string) Token {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return IDENT
}

// Value records the raw text, position and decoded value associated with
// each token.
type Value struct {
	Raw    string // raw text of token
	Int    int64  // decoded int
	String string // decoded string
	Pos    Pos    // start position of token
}

// End returns the position immediately after the token, assuming the raw
// text does not span multiple lines.
func (v Value) End() Pos {
	return v.Pos.Add(len(v.Raw))
}

// Literal returns the string representation of the literal value of the token
// from its associated Value struct. If t is not a literal, it returns an empty
// string.
func (tok Token) Literal(v Value) string {
	switch tok {
	case IDENT:
		return v.Raw
	case STRING:
		return strconv.Quote(v.String)
	case COMMENT:
		return v.String
	case INT:
		return strconv.FormatInt(v.Int, 10)
	default:
		return ""
	}
}
