package ast

import (
	"fmt"

	"github.com/mna/curry/lang/token"
)

type (
	// Atom represents a single-token form: an identifier, a keyword or a
	// literal.
	Atom struct {
		Tok   token.Token
		Value token.Value
	}

	// List represents a parenthesized list of forms.
	List struct {
		Lparen token.Pos
		Items  []Form
		Rparen token.Pos // unknown if the list is not terminated
	}

	// BadForm represents a form that failed to parse.
	BadForm struct {
		Start token.Pos
		End   token.Pos
	}
)

// Head returns the leading atom of the list, if the list starts with an atom.
func (n *List) Head() (*Atom, bool) {
	if len(n.Items) == 0 {
		return nil, false
	}
	a, ok := n.Items[0].(*Atom)
	return a, ok
}

// Keyword returns the keyword token that starts the list, or token.ILLEGAL if
// it does not start with a keyword.
func (n *List) Keyword() token.Token {
	if a, ok := n.Head(); ok && a.Tok.IsKeyword() {
		return a.Tok
	}
	return token.ILLEGAL
}

// IsIdent returns true if the form is an identifier atom.
func IsIdent(f Form) bool {
	a, ok := f.(*Atom)
	return ok && a.Tok == token.IDENT
}

func (n *Atom) Format(f fmt.State, verb rune) {
	lbl := n.Tok.String()
	if lit := n.Tok.Literal(n.Value); lit != "" {
		lbl += " " + lit
	}
	format(f, verb, n, lbl, nil)
}
func (n *Atom) Span() (start, end token.Pos) { return n.Value.Pos, n.Value.End() }
func (n *Atom) Walk(_ Visitor) {}
func (n *Atom) form() {}

func (n *List) Format(f fmt.State, verb rune) {
	lbl := "list"
	if kw := n.Keyword(); kw != token.ILLEGAL {
		lbl += " " + kw.String()
	}
	format(f, verb, n, lbl, map[string]int{"items": len(n.Items)})
}
func (n *List) Span() (start, end token.Pos) {
	if !n.Rparen.Unknown() {
		return n.Lparen, n.Rparen.Add(1)
	}
	if len(n.Items) > 0 {
		_, end = n.Items[len(n.Items)-1].Span()
		return n.Lparen, end
	}
	return n.Lparen, n.Lparen.Add(1)
}
func (n *List) Walk(v Visitor) {
	for _, it := range n.Items {
		Walk(v, it)
	}
}
func (n *List) form() {}

func (n *BadForm) Format(f fmt.State, verb rune) { format(f, verb, n, "!bad form!", nil) }
func (n *BadForm) Span() (start, end token.Pos) { return n.Start, n.End }
func (n *BadForm) Walk(_ Visitor) {}
func (n *BadForm) form() {}
