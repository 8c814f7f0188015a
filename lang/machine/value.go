package machine

import (
	"fmt"
	"strconv"
)

// Value is a value of the machine.
type Value interface {
	// String returns the string representation of the value.
	String() string

	// Type returns a short string describing the value's type.
	Type() string
}

var (
	_ Value = Int(0)
	_ Value = Bool(false)
	_ Value = String("")
	_ Value = Nil
	_ Value = (*Const)(nil)
	_ Value = (*Partial)(nil)
	_ Value = (*Builtin)(nil)
)

// Int is the type of an integer value.
type Int int64

func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }
func (i Int) Type() string   { return "int" }

// Bool is the type of a boolean value.
type Bool bool

const (
	False Bool = false
	True  Bool = true
)

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (b Bool) Type() string { return "bool" }

// String is the type of a string value.
type String string

func (s String) String() string { return strconv.Quote(string(s)) }
func (s String) Type() string   { return "string" }

// NilType is the type of nil, the unit value. Its only legal value is Nil.
// (We represent it as a number, not struct{}, so that Nil may be constant.)
type NilType byte

const Nil = NilType(0)

func (NilType) String() string { return "nil" }
func (NilType) Type() string   { return "nil" }

// Const is a function that ignores its argument and always returns V.
type Const struct {
	V Value
}

func (c *Const) String() string { return fmt.Sprintf("const(%s)", c.V) }
func (c *Const) Type() string   { return "function" }

// Partial is a two-argument function applied to its first argument.
type Partial struct {
	Fn  *Function
	Arg Value
}

func (p *Partial) String() string { return fmt.Sprintf("partial(%s %s)", p.Fn.Name(), p.Arg) }
func (p *Partial) Type() string   { return "function" }

// Builtin is a one-argument function implemented in Go.
type Builtin struct {
	name string
	fn   func(*Thread, Value) (Value, error)
}

// NewBuiltin returns a Builtin with the specified name and implementation.
func NewBuiltin(name string, fn func(*Thread, Value) (Value, error)) *Builtin {
	return &Builtin{name: name, fn: fn}
}

func (b *Builtin) Name() string   { return b.name }
func (b *Builtin) String() string { return fmt.Sprintf("builtin(%s)", b.name) }
func (b *Builtin) Type() string   { return "function" }

// Display returns the string used to print v, which is the raw text of
// strings and the String representation of other values.
func Display(v Value) string {
	if s, ok := v.(String); ok {
		return string(s)
	}
	return v.String()
}
