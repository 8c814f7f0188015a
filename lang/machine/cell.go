package machine

import "fmt"

// An Array is the box array of a unit's mutable bindings. Bindings that are
// both assigned and captured live in a slot of their closure's array so that
// the outer and inner scopes observe the same value. Arrays are always
// accessed using the {NEW,}ARRAY{GET,SET} instructions.
type Array struct {
	elems []Value
}

var _ Value = (*Array)(nil)

// NewArray returns an array of n slots set to Nil.
func NewArray(n int) *Array {
	a := &Array{elems: make([]Value, n)}
	for i := range a.elems {
		a.elems[i] = Nil
	}
	return a
}

func (a *Array) String() string { return fmt.Sprintf("array(%p)", a) }
func (a *Array) Type() string   { return "array" }
func (a *Array) Len() int       { return len(a.elems) }
