package machine

import (
	"context"
	"fmt"

	"github.com/mna/curry/lang/compiler"
	"tlog.app/go/errors"
)

func run(th *Thread, fr *Frame, m *Module, self *Function, args []Value) (Value, error) {
	fcode := fr.fcode

	// create the locals and operand stack
	nlocals := fcode.NumLocals
	nspace := nlocals + fcode.MaxStack
	space := make([]Value, nspace)
	locals := space[:nlocals:nlocals] // local variables, starting with the instance and parameters
	stack := space[nlocals:]          // operand stack

	// set the instance and parameters
	base := 0
	if self != nil {
		locals[0] = self
		base = 1
	}
	if len(args) != fcode.NumParams {
		return nil, errors.New("unit %s accepts %d arguments (%d given)", fcode.Name, fcode.NumParams, len(args))
	}
	copy(locals[base:], args)

	var (
		pc       uint32
		result   Value
		inFlight error
	)

	sp := 0
	code := fcode.Code
loop:
	for {
		th.steps++
		if th.steps >= th.maxSteps {
			th.ctxCancel(ErrMaxSteps)
			inFlight = errors.New("thread cancelled: %v", context.Cause(th.ctx))
			break loop
		}
		if th.cancelled.Load() {
			inFlight = errors.New("thread cancelled: %v", context.Cause(th.ctx))
			break loop
		}

		fr.pc = pc

		op := compiler.Opcode(code[pc])
		pc++
		var arg uint32
		if op >= compiler.OpcodeArgMin {
			for s := uint(0); ; s += 7 {
				b := code[pc]
				pc++
				arg |= uint32(b&0x7f) << s
				if b < 0x80 {
					break
				}
			}
		}

		switch op {
		case compiler.NOP:
			// nop

		case compiler.DUP:
			stack[sp] = stack[sp-1]
			sp++

		case compiler.POP:
			sp--

		case compiler.EXCH:
			stack[sp-2], stack[sp-1] = stack[sp-1], stack[sp-2]

		case compiler.EQL, compiler.NEQ, compiler.GT, compiler.LT, compiler.LE, compiler.GE:
			y := stack[sp-1]
			x := stack[sp-2]
			sp -= 2
			ok, err := Compare(op, x, y)
			if err != nil {
				inFlight = err
				break loop
			}
			stack[sp] = Bool(ok)
			sp++

		case compiler.PLUS, compiler.MINUS, compiler.STAR, compiler.SLASH, compiler.PERCENT:
			y := stack[sp-1]
			x := stack[sp-2]
			sp -= 2
			z, err := Binary(op, x, y)
			if err != nil {
				inFlight = err
				break loop
			}
			stack[sp] = z
			sp++

		case compiler.NOT, compiler.UMINUS:
			y, err := Unary(op, stack[sp-1])
			if err != nil {
				inFlight = err
				break loop
			}
			stack[sp-1] = y

		case compiler.NIL:
			stack[sp] = Nil
			sp++

		case compiler.TRUE:
			stack[sp] = True
			sp++

		case compiler.FALSE:
			stack[sp] = False
			sp++

		case compiler.RETURN:
			result = stack[sp-1]
			break loop

		case compiler.THROW:
			x := stack[sp-1]
			sp--
			exc, ok := x.(*Exception)
			if !ok {
				exc = runtimeError("cannot throw %s value", x.Type())
			}
			inFlight = exc
			break loop

		case compiler.MAKECONST:
			stack[sp-1] = &Const{V: stack[sp-1]}

		case compiler.MODINIT:
			if err := m.init(th); err != nil {
				inFlight = err
				break loop
			}

		case compiler.JMP:
			pc = arg

		case compiler.CJMP:
			if Truth(stack[sp-1]) {
				pc = arg
			}
			sp--

		case compiler.NNJMP:
			if stack[sp-1] != Nil {
				pc = arg
			}
			sp--

		case compiler.CONSTANT:
			stack[sp] = m.Constants[arg]
			sp++

		case compiler.LOCAL:
			if int(arg) >= len(locals) {
				inFlight = errors.New("internal error: local %d of %s out of range (%d locals)", arg, fcode.Name, len(locals))
				break loop
			}
			x := locals[arg]
			if x == nil {
				inFlight = errors.New("internal error: local %d of %s referenced before assignment", arg, fcode.Name)
				break loop
			}
			stack[sp] = x
			sp++

		case compiler.SETLOCAL:
			if int(arg) >= len(locals) {
				inFlight = errors.New("internal error: local %d of %s out of range (%d locals)", arg, fcode.Name, len(locals))
				break loop
			}
			locals[arg] = stack[sp-1]
			sp--

		case compiler.GETFIELD:
			fn := stack[sp-1].(*Function) // ok to panic otherwise, compiler error
			x := fn.Fields[arg]
			if x == nil {
				inFlight = errors.New("internal error: field %s of %s referenced before assignment", fn.Funcode.Fields[arg].Name, fn.Name())
				break loop
			}
			stack[sp-1] = x

		case compiler.SETFIELD:
			fn := stack[sp-2].(*Function) // ok to panic otherwise, compiler error
			fn.Fields[arg] = stack[sp-1]
			sp -= 2

		case compiler.NEWARRAY:
			stack[sp] = NewArray(int(arg))
			sp++

		case compiler.ARRAYGET:
			stack[sp-1] = stack[sp-1].(*Array).elems[arg] // ok to panic otherwise, compiler error

		case compiler.ARRAYSET:
			stack[sp-2].(*Array).elems[arg] = stack[sp-1] // ok to panic otherwise, compiler error
			sp -= 2

		case compiler.NEWFUNC:
			funcode := m.Program.Functions[arg]
			stack[sp] = &Function{
				Funcode: funcode,
				Module:  m,
				Fields:  make([]Value, len(funcode.Fields)),
			}
			sp++

		case compiler.GETSTATIC:
			x, err := m.staticInstance(th, arg)
			if err != nil {
				inFlight = err
				break loop
			}
			stack[sp] = x
			sp++

		case compiler.PUTSTATIC:
			m.statics[arg].v = stack[sp-1]
			sp--

		case compiler.PREDECLARED:
			name := m.Program.Names[arg]
			x := th.Predeclared[name]
			if x == nil {
				x = Universe[name]
			}
			if x == nil {
				inFlight = errors.New("predeclared %s is undefined", name)
				break loop
			}
			stack[sp] = x
			sp++

		case compiler.GETMODULE:
			name := m.Program.Names[arg]
			x, ok := m.globals.get(name)
			if !ok {
				inFlight = runtimeError("module binding %s is not initialized", name)
				break loop
			}
			stack[sp] = x
			sp++

		case compiler.SETMODULE:
			m.globals.set(m.Program.Names[arg], stack[sp-1])
			sp--

		case compiler.NEWEXC:
			stack[sp-1] = &Exception{Class: m.Program.Names[arg], Value: stack[sp-1]}

		case compiler.CALL:
			n := int(arg)
			args := make([]Value, n)
			copy(args, stack[sp-n:sp])
			sp -= n

			z, err := call(th, stack[sp-1], args)
			if err != nil {
				inFlight = err
				break loop
			}
			stack[sp-1] = z

		case compiler.CALLSTATIC:
			funcode := m.Program.Functions[arg]
			n := funcode.NumParams
			args := make([]Value, n)
			copy(args, stack[sp-n:sp])
			sp -= n

			z, err := th.callUnit(m, funcode, nil, args)
			if err != nil {
				inFlight = err
				break loop
			}
			stack[sp] = z
			sp++

		default:
			panic(fmt.Sprintf("unimplemented: %s", op))
		}
	}

	if inFlight != nil {
		// only exceptions are catchable, other errors are fatal
		if exc, ok := inFlight.(*Exception); ok {
			if exc.Where == "" {
				exc.Where = fr.String()
			}
			if target, ok := findHandler(m, fcode, fr.pc, exc); ok {
				stack[0] = exc
				sp = 1
				pc = target
				inFlight = nil
				goto loop
			}
		}
		return nil, inFlight
	}
	return result, nil
}

// findHandler returns the start address of the first handler of fcode that
// covers pc and matches the class of exc.
func findHandler(m *Module, fcode *compiler.Funcode, pc uint32, exc *Exception) (uint32, bool) {
	for _, h := range fcode.Handlers {
		if !h.Covers(int64(pc)) {
			continue
		}
		if h.Class < 0 || IsInstance(exc.Class, m.Program.Names[h.Class]) {
			return h.StartPC, true
		}
	}
	return 0, false
}
