package machine

import "fmt"

// List of the predefined exception classes. Any other class name derives
// directly from ExceptionClass.
const (
	ExceptionClass       = "Exception"
	RuntimeErrorClass    = "RuntimeError"
	ArithmeticErrorClass = "ArithmeticError"
	FailureClass         = "Failure"
)

var classParents = map[string]string{
	RuntimeErrorClass:    ExceptionClass,
	ArithmeticErrorClass: RuntimeErrorClass,
}

// Exception is a raised value of a class. It is catchable by the handlers
// matching its class or one of its ancestors.
type Exception struct {
	Class string
	Value Value

	// Where is the unit name and line where the exception was raised, set
	// when it first goes through a frame.
	Where string
}

var (
	_ Value = (*Exception)(nil)
	_ error = (*Exception)(nil)
)

func (e *Exception) String() string { return fmt.Sprintf("%s(%s)", e.Class, e.Value) }
func (e *Exception) Type() string   { return "exception" }
func (e *Exception) Error() string {
	msg := e.Class + ": " + Display(e.Value)
	if e.Where != "" {
		msg += " (at " + e.Where + ")"
	}
	return msg
}

// IsInstance returns true if an exception of class is an instance of class
// of, that is if of is class or one of its ancestors.
func IsInstance(class, of string) bool {
	for c := class; c != ""; c = parentClass(c) {
		if c == of {
			return true
		}
	}
	return false
}

func parentClass(c string) string {
	if c == ExceptionClass {
		return ""
	}
	if p, ok := classParents[c]; ok {
		return p
	}
	return ExceptionClass
}

func runtimeError(format string, args ...any) *Exception {
	return &Exception{Class: RuntimeErrorClass, Value: String(fmt.Sprintf(format, args...))}
}

func arithmeticError(format string, args ...any) *Exception {
	return &Exception{Class: ArithmeticErrorClass, Value: String(fmt.Sprintf(format, args...))}
}
