// Package types defines the semantic type descriptors attached to every node
// of the typed tree. The closure conversion layer treats them as opaque,
// except to derive the storage descriptor of captured values.
package types

import (
	"strings"
)

// Kind is the kind of a semantic type.
type Kind uint8

// List of type kinds.
const (
	Any Kind = iota
	Unit
	Bool
	Int
	String
	Fun
	Exception
	maxKind
)

var kindNames = [...]string{
	Any:       "any",
	Unit:      "unit",
	Bool:      "bool",
	Int:       "int",
	String:    "string",
	Fun:       "fun",
	Exception: "exception",
}

func (k Kind) String() string {
	if k < maxKind {
		return kindNames[k]
	}
	return "kind(?)"
}

// Type is a semantic type descriptor. Function types have a non-nil Arg and
// Res, exception types have a class Name.
type Type struct {
	Kind Kind
	Arg  *Type
	Res  *Type
	Name string
}

// Predefined type descriptors, shared by all nodes.
var (
	AnyType    = &Type{Kind: Any}
	UnitType   = &Type{Kind: Unit}
	BoolType   = &Type{Kind: Bool}
	IntType    = &Type{Kind: Int}
	StringType = &Type{Kind: String}
)

// NewFun returns the type of a function from arg to res.
func NewFun(arg, res *Type) *Type {
	if arg == nil {
		arg = AnyType
	}
	if res == nil {
		res = AnyType
	}
	return &Type{Kind: Fun, Arg: arg, Res: res}
}

// NewException returns the type of an exception of the named class.
func NewException(class string) *Type {
	return &Type{Kind: Exception, Name: class}
}

// Result returns the type obtained by applying t to n arguments. It returns
// AnyType if t is not a function of at least n arguments.
func (t *Type) Result(n int) *Type {
	for ; n > 0; n-- {
		if t == nil || t.Kind != Fun {
			return AnyType
		}
		t = t.Res
	}
	if t == nil {
		return AnyType
	}
	return t
}

func (t *Type) String() string {
	if t == nil {
		return AnyType.String()
	}
	switch t.Kind {
	case Fun:
		var sb strings.Builder
		if t.Arg.Kind == Fun {
			sb.WriteString("(" + t.Arg.String() + ")")
		} else {
			sb.WriteString(t.Arg.String())
		}
		sb.WriteString(" -> ")
		sb.WriteString(t.Res.String())
		return sb.String()
	case Exception:
		return t.Name
	default:
		return t.Kind.String()
	}
}

// Storage descriptors of captured values, as recorded on unit fields.
const (
	ValueStorage = "V"  // any value
	IntStorage   = "I"  // int
	BoolStorage  = "Z"  // bool
	StrStorage   = "S"  // string
	FunStorage   = "F"  // function
	BoxStorage   = "[V" // array of boxed mutable values
)

// Storage returns the storage descriptor of a value of type t.
func (t *Type) Storage() string {
	if t == nil {
		return ValueStorage
	}
	switch t.Kind {
	case Int:
		return IntStorage
	case Bool:
		return BoolStorage
	case String:
		return StrStorage
	case Fun:
		return FunStorage
	default:
		return ValueStorage
	}
}
