package resolver

import (
	"fmt"

	"github.com/mna/curry/lang/closure"
	"github.com/mna/curry/lang/token"
)

// The Scope of a Use indicates how a name was resolved.
type Scope uint8

const (
	Undefined   Scope = iota // name is not defined
	Local                    // name is bound in the same closure as its use
	Free                     // name is bound in an enclosing closure
	Module                   // name is a module definition
	Predeclared              // name is provided by the host environment
)

var scopeNames = [...]string{
	Undefined:   "undefined",
	Local:       "local",
	Free:        "free",
	Module:      "module",
	Predeclared: "predeclared",
}

func (s Scope) String() string {
	if int(s) >= len(scopeNames) {
		return fmt.Sprintf("<invalid Scope %d>", s)
	}
	return scopeNames[s]
}

// A Use records the resolution of an identifier, it is only recorded if
// the RecordUses mode is set.
type Use struct {
	Pos   token.Pos
	Name  string
	Scope Scope
	// Borders is the number of closures crossed between the binding and the
	// use, for a Free use.
	Borders int
	// Assign is true if the use is the target of a set.
	Assign bool
}

// A binding ties a name to its binder, in a linked list of bindings from
// the innermost to the outermost.
type binding struct {
	parent *binding
	name   string
	binder closure.Binder
	// level is the index of the closure that declares the binding.
	level int
}

func (b *binding) lookup(name string) *binding {
	for ; b != nil; b = b.parent {
		if b.name == name {
			return b
		}
	}
	return nil
}
