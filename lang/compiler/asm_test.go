package compiler_test

import (
	"testing"

	"github.com/mna/curry/lang/compiler"
	"github.com/stretchr/testify/require"
)

func TestAsm(t *testing.T) {
	cases := []struct {
		desc string
		in   string
		err  string // error "contains" this err string, no error if empty
	}{
		{"empty", ``, "expected program section"},
		{"not program", `function:`, "expected program section"},
		{"program only", `program: foo bar +baz`, "missing top-level function"},

		{"invalid function", `
				program:
					function: MissingNumArgs
						code:
			`, "invalid function: want at least 6 fields"},

		{"invalid kind", `
				program:
					function: Top closure 0 0 0
						code:
			`, "invalid function kind: closure"},

		{"toplevel first", `
				program:
					function: f fun1 0 1 2
						code:
			`, "first function must be the toplevel"},

		{"minimally valid", `
				program:
					function: Top toplevel 0 0 0
						code:
			`, ""},

		{"missing code", `
				program:
					function: Top toplevel 0 0 0
			`, "expected code section"},

		{"missing code followed by function", `
				program:
					function: Top toplevel 0 0 0
					function: f fun1 0 1 2
						code:
			`, "expected code section"},

		{"extra unknown section", `
				program:
					function: Top toplevel 0 0 0
						code:
				names:
				`, "unexpected section: names:"},

		{"invalid opcode", `
				program:
					function: Top toplevel 0 0 0
						code:
							foobar
				`, "invalid opcode: foobar"},

		{"missing opcode arg", `
				program:
					function: Top toplevel 0 0 0
						code:
							JMP
				`, "expected an argument for opcode JMP"},

		{"extra opcode arg", `
				program:
					function: Top toplevel 0 0 0
						code:
							JMP 1 2
				`, "expected an argument for opcode JMP, got 3 fields"},

		{"unexpected opcode arg", `
				program:
					function: Top toplevel 0 0 0
						code:
							NOP 1
				`, "expected no argument for opcode NOP"},

		{"invalid jump address", `
				program:
					function: Top toplevel 0 0 0
						code:
							NOP
							JMP 2
				`, "invalid jump index 2"},

		{"invalid handler number of fields", `
				program:
					function: Top toplevel 0 0 0
						handlers:
							1
						code:
							NOP
				`, "invalid handler"},

		{"invalid handler not an integer", `
				program:
					function: Top toplevel 0 0 0
						handlers:
							a b c *
						code:
							NOP
				`, "invalid unsigned integer"},

		{"invalid handler address pc0", `
				program:
					function: Top toplevel 0 0 0
						handlers:
							2 2 0 *
						code:
							NOP
				`, "invalid PC0 index 2"},

		{"invalid handler address pc1", `
				program:
					function: Top toplevel 0 0 0
						handlers:
							0 2 0 *
						code:
							NOP
				`, "invalid PC1 index 2"},

		{"invalid handler address startpc", `
				program:
					function: Top toplevel 0 0 0
						handlers:
							0 2 4 *
						code:
							NOP
							NOP
							NOP
				`, "invalid StartPC index 4"},

		{"invalid field", `
				program:
					function: Top toplevel 0 0 0
						fields:
							x
						code:
				`, "invalid field"},

		{"invalid constant number of fields", `
				program:
					constants:
						123
				`, "invalid constant: expected type and value"},

		{"invalid constant type", `
				program:
					constants:
						float 1.2
				`, "invalid constant type"},

		{"invalid integer constant", `
				program:
					constants:
						int abc
				`, "invalid integer"},

		{"invalid string constant", `
				program:
					constants:
						string "a'
				`, "invalid string"},

		{"maximally valid", `
				program:
					names:
						Failure
					constants:
						string "a b c"
						int 1234
					exports:
						f

					function: Top toplevel 1 0 0
						code:
							GETSTATIC 0
							SETMODULE 1
							NIL
							RETURN

					function: f fun1 2 1 3 +shared +public init=1
						fields:
							_0 V
						handlers:
							0 2 3 Failure
							0 5 5 *
						code:
							LOCAL 1
							RETURN
							NOP
							SETLOCAL 2
							NIL
							LOCAL 2
							THROW

					function: f$init init 1 0 0
						code:
							NEWFUNC 0
							PUTSTATIC 0
							NIL
							RETURN
			`, ""},
	}
	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			_, err := compiler.Asm([]byte(c.in))
			if c.err == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, c.err)
		})
	}
}

func TestAsmFunction(t *testing.T) {
	p, err := compiler.Asm([]byte(`
		program:
			constants:
				int 42
			function: Top toplevel 1 0 0
				code:
					CONSTANT 0
					RETURN
			function: f fun2 1 2 4 +shared init=-1
				handlers:
					0 1 1 Failure
				code:
					NIL
					RETURN
	`))
	require.NoError(t, err)
	require.Equal(t, compiler.Toplevel, p.Toplevel.Kind)
	require.Len(t, p.Functions, 1)

	fn := p.Functions[0]
	require.Equal(t, "f", fn.Name)
	require.Equal(t, compiler.Fun2, fn.Kind)
	require.Equal(t, 2, fn.NumParams)
	require.Equal(t, 4, fn.NumLocals)
	require.True(t, fn.Shared)
	require.False(t, fn.Public)
	require.Equal(t, int32(-1), fn.Init)
	require.Equal(t, []string{"Failure"}, p.Names)
	require.Equal(t, []compiler.Handler{{PC0: 0, PC1: 1, StartPC: 1, Class: 0}}, fn.Handlers)
}

func TestDasm(t *testing.T) {
	cases := []struct {
		desc string
		p    compiler.Program
		err  string // error "contains" this err string, no error if empty
	}{
		{"empty", compiler.Program{}, "missing top-level function"},

		{"invalid constant type", compiler.Program{
			Toplevel:  &compiler.Funcode{},
			Constants: []any{true},
		}, "unsupported constant type: bool"},

		{"invalid opcode argument", compiler.Program{
			Toplevel: &compiler.Funcode{Code: []byte{byte(compiler.CALL)}},
		}, "invalid uvarint argument"},

		{"invalid jump address", compiler.Program{
			Toplevel: &compiler.Funcode{Code: []byte{byte(compiler.JMP), 3, 0, 0, 0}},
		}, "invalid jump address 3"},

		{"invalid handler address", compiler.Program{
			Toplevel: &compiler.Funcode{
				Code:     []byte{byte(compiler.NIL)},
				Handlers: []compiler.Handler{{PC0: 0, PC1: 4, StartPC: 0, Class: -1}},
			},
		}, "invalid handler.pc1 address"},

		{"invalid handler class", compiler.Program{
			Toplevel: &compiler.Funcode{
				Code:     []byte{byte(compiler.NIL)},
				Handlers: []compiler.Handler{{PC0: 0, PC1: 1, StartPC: 0, Class: 3}},
			},
		}, "invalid handler class 3"},

		{"valid", compiler.Program{
			Names:     []string{"x"},
			Constants: []any{int64(1), "a"},
			Exports:   []string{"x"},
			Toplevel: &compiler.Funcode{
				Name:     "top",
				Code:     []byte{byte(compiler.CONSTANT), 1, byte(compiler.RETURN)},
				Handlers: []compiler.Handler{{PC0: 0, PC1: 3, StartPC: 2, Class: 0}},
			},
		}, ""},
	}
	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			_, err := compiler.Dasm(&c.p)
			if c.err == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, c.err)
		})
	}
}

func TestAsmDasmRoundTrip(t *testing.T) {
	src := `program:
	names:
		Failure	# 000
	constants:
		int	1	# 000
		string	"a b"	# 001
	exports:
		f	# 000

function: top toplevel 1 0 0
	code:
		getstatic 000	# 000
		setmodule 000	# 001
		constant 001	# 002
		return	# 003

function: f fun1 2 1 3 +shared +public init=1
	fields:
		_0	V	# 000
	handlers:
		000 002 003 Failure	# 000
		000 004 004 *	# 001
	code:
		local 001	# 000
		return	# 001
		nop	# 002
		setlocal 002	# 003
		local 002	# 004
		cjmp 000	# 005
		nil	# 006
		throw	# 007

function: f$init init 1 0 0
	code:
		newfunc 000	# 000
		putstatic 000	# 001
		nil	# 002
		return	# 003
`
	p, err := compiler.Asm([]byte(src))
	require.NoError(t, err)
	b, err := compiler.Dasm(p)
	require.NoError(t, err)
	require.Equal(t, src, string(b))
}
