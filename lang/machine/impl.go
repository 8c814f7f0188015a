package machine

import (
	"github.com/mna/curry/lang/compiler"
	"tlog.app/go/errors"
)

// Some machine opcodes are more complex and/or need to be exposed via a
// low-level interface to be available for higher-level APIs. Those functions
// belong in this file.

// call calls the function value v with the specified arguments, one
// application at a time: a two-argument unit consumes two arguments at
// once, and the result of each application is called with the remaining
// ones.
func call(th *Thread, v Value, args []Value) (Value, error) {
	if len(args) == 0 {
		return nil, errors.New("call of %s without argument", v.Type())
	}

	for {
		var (
			n   = 1
			res Value
			err error
		)

		switch f := v.(type) {
		case *Function:
			switch f.Funcode.Kind {
			case compiler.Fun1:
				res, err = th.callUnit(f.Module, f.Funcode, f, args[:1])
			case compiler.Fun2:
				if len(args) == 1 {
					return &Partial{Fn: f, Arg: args[0]}, nil
				}
				n = 2
				res, err = th.callUnit(f.Module, f.Funcode, f, args[:2])
			default:
				return nil, errors.New("unit %s of kind %s is not callable", f.Name(), f.Funcode.Kind)
			}

		case *Partial:
			res, err = th.callUnit(f.Fn.Module, f.Fn.Funcode, f.Fn, []Value{f.Arg, args[0]})

		case *Const:
			res = f.V

		case *Builtin:
			res, err = f.fn(th, args[0])

		default:
			return nil, runtimeError("%s value is not callable", v.Type())
		}

		if err != nil {
			return nil, err
		}
		if args = args[n:]; len(args) == 0 {
			return res, nil
		}
		v = res
	}
}

// callUnit pushes a new frame and runs the unit fcode. The instance self is
// nil for units that are not closures.
func (th *Thread) callUnit(m *Module, fcode *compiler.Funcode, self *Function, args []Value) (Value, error) {
	if th.MaxCallStackDepth > 0 && len(th.callStack) >= th.MaxCallStackDepth {
		return nil, errors.New("call stack depth exceeded (max %d) calling %s", th.MaxCallStackDepth, fcode.Name)
	}
	if th.DisableRecursion {
		// We look for the same unit, not function value, otherwise the user
		// could defeat the check by writing the Y combinator.
		for _, fr := range th.callStack {
			if fr.fcode == fcode {
				return nil, errors.New("unit %s called recursively", fcode.Name)
			}
		}
	}

	// Allocate and push a new frame. As an optimization, use slack portion of
	// thread.callStack slice as a freelist of empty frames.
	var fr *Frame
	if n := len(th.callStack); n < cap(th.callStack) {
		fr = th.callStack[n : n+1][0]
	}
	if fr == nil {
		fr = new(Frame)
	}
	th.callStack = append(th.callStack, fr) // push

	// Use defer to ensure that panics from built-ins pass through the
	// interpreter without leaving it in a bad state.
	defer func() {
		// clear out any references
		*fr = Frame{}
		th.callStack = th.callStack[:len(th.callStack)-1] // pop
	}()

	fr.fcode = fcode
	result, err := run(th, fr, m, self, args)

	// Sanity check: nil is not a valid value.
	if result == nil && err == nil {
		err = errors.New("internal error: nil (not Nil) returned from %s", fcode.Name)
	}
	return result, err
}

// Compare compares two values. The comparison operation must be one of EQL,
// NEQ, LT, LE, GT, or GE. Ints and strings are ordered, other values only
// support equality, by value for the scalar types and by identity for the
// others.
func Compare(op compiler.Opcode, x, y Value) (bool, error) {
	switch x := x.(type) {
	case Int:
		if y, ok := y.(Int); ok {
			return threeway(op, cmpOrdered(x, y)), nil
		}
	case String:
		if y, ok := y.(String); ok {
			return threeway(op, cmpOrdered(x, y)), nil
		}
	}

	switch op {
	case compiler.EQL:
		return x == y, nil
	case compiler.NEQ:
		return x != y, nil
	}
	return false, runtimeError("%s %s %s not implemented", x.Type(), op, y.Type())
}

func cmpOrdered[T Int | String](x, y T) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return +1
	}
	return 0
}

// threeway interprets a three-way comparison value cmp (-1, 0, +1)
// as a boolean comparison (e.g. x < y).
func threeway(op compiler.Opcode, cmp int) bool {
	switch op {
	case compiler.EQL:
		return cmp == 0
	case compiler.NEQ:
		return cmp != 0
	case compiler.LE:
		return cmp <= 0
	case compiler.LT:
		return cmp < 0
	case compiler.GE:
		return cmp >= 0
	case compiler.GT:
		return cmp > 0
	}
	panic(op)
}

// Truth returns the truthy value of v, which is True for every value except
// False and Nil.
func Truth(v Value) Bool {
	switch v := v.(type) {
	case Bool:
		return v
	case NilType:
		return False
	default:
		return True
	}
}

// Binary applies a strict binary arithmetic operator to its operands. For
// equality tests or ordered comparisons, use Compare instead.
func Binary(op compiler.Opcode, l, r Value) (Value, error) {
	switch l := l.(type) {
	case Int:
		r, ok := r.(Int)
		if !ok {
			break
		}
		switch op {
		case compiler.PLUS:
			return l + r, nil
		case compiler.MINUS:
			return l - r, nil
		case compiler.STAR:
			return l * r, nil
		case compiler.SLASH:
			if r == 0 {
				return nil, arithmeticError("integer division by zero")
			}
			return l / r, nil
		case compiler.PERCENT:
			if r == 0 {
				return nil, arithmeticError("integer modulo by zero")
			}
			return l % r, nil
		}

	case String:
		// + concatenation: only works on strings, no implicit conversion
		if r, ok := r.(String); ok && op == compiler.PLUS {
			return l + r, nil
		}
	}
	return nil, runtimeError("unsupported binary op: %s %s %s", l.Type(), op, r.Type())
}

// Unary applies a unary operator to its operand.
func Unary(op compiler.Opcode, x Value) (Value, error) {
	switch op {
	case compiler.NOT:
		return !Truth(x), nil
	case compiler.UMINUS:
		if x, ok := x.(Int); ok {
			return -x, nil
		}
	}
	return nil, runtimeError("unsupported unary op: %s %s", op, x.Type())
}
