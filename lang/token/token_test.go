package token

import (
	"testing"
)

func TestTokenString(t *testing.T) {
	for tok := Token(0); tok <= maxToken; tok++ {
		if tok.String() == "" {
			t.Errorf("missing string representation of token %d", tok)
		}
	}
}

func TestLookupKw(t *testing.T) {
	for tok := kwStart; tok <= kwEnd; tok++ {
		if got := LookupKw(tok.String()); got != tok {
			t.Errorf("%s: want %d, got %d", tok, tok, got)
		}
		if !tok.IsKeyword() {
			t.Errorf("%s: want keyword", tok)
		}
	}
	for _, s := range []string{"x", "+", "let_rec", "Fn", "fnx"} {
		if got := LookupKw(s); got != IDENT {
			t.Errorf("%s: want identifier, got %s", s, got)
		}
	}
}

func TestGoString(t *testing.T) {
	if got := LPAREN.GoString(); got != "'('" {
		t.Errorf("want quoted punctuation, got %s", got)
	}
	if got := FN.GoString(); got != "fn" {
		t.Errorf("want fn, got %s", got)
	}
}
