package compiler

import "fmt"

// Increment this to force recompilation of saved object files.
const Version = 1

type Opcode uint8

// "x DUP x x" is a "stack picture" that describes the state of the stack
// before and after execution of the instruction.
//
// OP<index> indicates an immediate operand that is an index into the specified
// table: locals, names, constants, fields, units.
const ( //nolint:revive
	NOP Opcode = iota // - NOP -

	// stack operations
	DUP  //   x DUP x x
	POP  //   x POP -
	EXCH // x y EXCH y x

	// binary arithmetic
	PLUS
	MINUS
	STAR
	SLASH
	PERCENT

	// binary comparisons
	EQL
	NEQ
	LT
	LE
	GT
	GE

	// unary operators
	NOT    // x NOT    bool
	UMINUS // x UMINUS -x

	NIL   // - NIL Nil
	TRUE  // - TRUE True
	FALSE // - FALSE False

	RETURN    // value RETURN    -
	THROW     //   exc THROW     -
	MAKECONST //     x MAKECONST fn      fn ignores its argument and returns x
	MODINIT   //     - MODINIT   -       ensures the module's toplevel has run

	// --- opcodes with an argument must go below this line ---

	// control flow
	JMP   //      - JMP<addr>   -
	CJMP  //   cond CJMP<addr>  -      jump if cond is true
	NNJMP //      x NNJMP<addr> -      jump if x is not nil

	CONSTANT    //        - CONSTANT<constant>  value
	LOCAL       //        - LOCAL<local>        value
	SETLOCAL    //    value SETLOCAL<local>     -
	GETFIELD    //       fn GETFIELD<field>     value       value = fn.fields[field]
	SETFIELD    // fn value SETFIELD<field>     -           fn.fields[field] = value
	NEWARRAY    //        - NEWARRAY<n>         array       array of n nil boxes
	ARRAYGET    //    array ARRAYGET<i>         value
	ARRAYSET    // array  v ARRAYSET<i>         -
	NEWFUNC     //        - NEWFUNC<unit>       fn          new instance of unit, fields unset
	GETSTATIC   //        - GETSTATIC<unit>     fn          shared instance of unit
	PUTSTATIC   //       fn PUTSTATIC<unit>     -
	PREDECLARED //        - PREDECLARED<name>   value
	GETMODULE   //        - GETMODULE<name>     value
	SETMODULE   //    value SETMODULE<name>     -
	NEWEXC      //    value NEWEXC<name>        exc         exception of class name

	CALL       //   fn x1 ... xn CALL<n>          result
	CALLSTATIC //      x1 ... xn CALLSTATIC<unit> result

	OpcodeArgMin = JMP
	OpcodeMax    = CALLSTATIC
	opcodeJMPMin = JMP
	opcodeJMPMax = NNJMP
)

var opcodeNames = [...]string{
	ARRAYGET:    "arrayget",
	ARRAYSET:    "arrayset",
	CALL:        "call",
	CALLSTATIC:  "callstatic",
	CJMP:        "cjmp",
	CONSTANT:    "constant",
	DUP:         "dup",
	EQL:         "eql",
	EXCH:        "exch",
	FALSE:       "false",
	GE:          "ge",
	GETFIELD:    "getfield",
	GETMODULE:   "getmodule",
	GETSTATIC:   "getstatic",
	GT:          "gt",
	JMP:         "jmp",
	LE:          "le",
	LOCAL:       "local",
	LT:          "lt",
	MAKECONST:   "makeconst",
	MINUS:       "minus",
	MODINIT:     "modinit",
	NEQ:         "neq",
	NEWARRAY:    "newarray",
	NEWEXC:      "newexc",
	NEWFUNC:     "newfunc",
	NIL:         "nil",
	NNJMP:       "nnjmp",
	NOP:         "nop",
	NOT:         "not",
	PERCENT:     "percent",
	PLUS:        "plus",
	POP:         "pop",
	PREDECLARED: "predeclared",
	PUTSTATIC:   "putstatic",
	RETURN:      "return",
	SETFIELD:    "setfield",
	SETLOCAL:    "setlocal",
	SETMODULE:   "setmodule",
	SLASH:       "slash",
	STAR:        "star",
	THROW:       "throw",
	TRUE:        "true",
	UMINUS:      "uminus",
}

var reverseLookupOpcode = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeNames))
	for op, s := range opcodeNames {
		m[s] = Opcode(op)
	}
	return m
}()

func isJump(op Opcode) bool {
	// Jump op argument is always encoded with 4 bytes
	return opcodeJMPMin <= op && op <= opcodeJMPMax
}

// returns the number of bytes required to encode the Opcode with its argument
// (if it applies).
func encodedSize(op Opcode, arg uint32) int {
	if op >= OpcodeArgMin {
		if isJump(op) {
			// jumps are always encoded on 4 bytes, padded with NOPs if the jump
			// requires less.
			return 1 + 4
		}
		return 1 + varArgLen(arg)
	}
	return 1
}

// returns the number of bytes required to encode x as a VarInt.
func varArgLen(x uint32) int {
	n := 0
	for x >= 0x80 {
		n++
		x >>= 7
	}
	return n + 1
}

const variableStackEffect = 0x7f

// stackEffect records the effect on the size of the operand stack of
// each kind of instruction. For some instructions this requires computation.
var stackEffect = [...]int8{
	ARRAYGET:    0,
	ARRAYSET:    -2,
	CALL:        variableStackEffect,
	CALLSTATIC:  variableStackEffect,
	CJMP:        -1,
	CONSTANT:    +1,
	DUP:         +1,
	EQL:         -1,
	EXCH:        0,
	FALSE:       +1,
	GE:          -1,
	GETFIELD:    0,
	GETMODULE:   +1,
	GETSTATIC:   +1,
	GT:          -1,
	JMP:         0,
	LE:          -1,
	LOCAL:       +1,
	LT:          -1,
	MAKECONST:   0,
	MINUS:       -1,
	MODINIT:     0,
	NEQ:         -1,
	NEWARRAY:    +1,
	NEWEXC:      0,
	NEWFUNC:     +1,
	NIL:         +1,
	NNJMP:       -1,
	NOP:         0,
	NOT:         0,
	PERCENT:     -1,
	PLUS:        -1,
	POP:         -1,
	PREDECLARED: +1,
	PUTSTATIC:   -1,
	RETURN:      -1,
	SETFIELD:    -2,
	SETLOCAL:    -1,
	SETMODULE:   -1,
	SLASH:       -1,
	STAR:        -1,
	THROW:       -1,
	TRUE:        +1,
	UMINUS:      0,
}

// terminates reports whether control never falls through op to the next
// instruction.
func terminates(op Opcode) bool {
	return op == JMP || op == RETURN || op == THROW
}

func (op Opcode) String() string {
	if op <= OpcodeMax {
		if name := opcodeNames[op]; name != "" {
			return name
		}
	}
	return fmt.Sprintf("illegal op (%d)", op)
}
