package machine

import (
	"fmt"
)

// Universe defines the set of universal built-ins core to the language. This
// should not be modified, so that the language built-ins are always
// available. Use the Thread.Predeclared to add to the set of built-ins
// available to a program.
var Universe = map[string]Value{
	"print": NewBuiltin("print", builtinPrint),
	"str":   NewBuiltin("str", builtinStr),
	"fail":  NewBuiltin("fail", builtinFail),
}

// print v writes the display string of v on a line of the thread's standard
// output and returns nil.
func builtinPrint(th *Thread, v Value) (Value, error) {
	if _, err := fmt.Fprintln(th.stdout(), Display(v)); err != nil {
		return nil, err
	}
	return Nil, nil
}

// str v returns the display string of v.
func builtinStr(_ *Thread, v Value) (Value, error) {
	return String(Display(v)), nil
}

// fail v raises a Failure exception with v as payload.
func builtinFail(_ *Thread, v Value) (Value, error) {
	return nil, &Exception{Class: FailureClass, Value: v}
}

// IsUniverse returns true if name is a built-in of the Universe.
func IsUniverse(name string) bool {
	_, ok := Universe[name]
	return ok
}
