package compiler_test

import (
	"testing"

	"github.com/mna/curry/lang/compiler"
	"github.com/stretchr/testify/require"
)

func TestBuilderUnit(t *testing.T) {
	b := compiler.NewBuilder("test")
	top := b.NewUnit(compiler.Toplevel, "top", 0)

	u := b.NewUnit(compiler.Fun1, "top$f", 1)
	then, end := u.NewLabel(), u.NewLabel()
	u.Emit1(compiler.LOCAL, 1)
	u.Jump(compiler.CJMP, then)
	u.Emit1(compiler.CONSTANT, b.ConstantIndex(int64(2)))
	u.Jump(compiler.JMP, end)
	u.MarkLabel(then)
	u.Emit1(compiler.CONSTANT, b.ConstantIndex(int64(1)))
	u.MarkLabel(end)
	u.Emit(compiler.RETURN)
	u.Close()

	top.Emit1(compiler.NEWFUNC, b.UnitIndex(u.Fn))
	top.Emit(compiler.RETURN)
	top.Close()

	p := b.Program()
	require.Equal(t, []any{int64(2), int64(1)}, p.Constants)
	require.Len(t, p.Functions, 1)

	fn := p.Functions[0]
	require.Equal(t, 1, fn.MaxStack)
	require.Equal(t, 2, fn.NumLocals)

	out, err := compiler.Dasm(p)
	require.NoError(t, err)
	require.Contains(t, string(out), "function: top$f fun1 1 1 2\n\tcode:\n"+
		"\t\tlocal 001\t# 000\n"+
		"\t\tcjmp 004\t# 001\n"+
		"\t\tconstant 000\t# 002\n"+
		"\t\tjmp 005\t# 003\n"+
		"\t\tconstant 001\t# 004\n"+
		"\t\treturn\t# 005\n")
}

func TestBuilderPools(t *testing.T) {
	b := compiler.NewBuilder("test")
	require.Equal(t, uint32(0), b.NameIndex("a"))
	require.Equal(t, uint32(1), b.NameIndex("b"))
	require.Equal(t, uint32(0), b.NameIndex("a"))

	require.Equal(t, uint32(0), b.ConstantIndex("x"))
	require.Equal(t, uint32(1), b.ConstantIndex(int64(1)))
	require.Equal(t, uint32(0), b.ConstantIndex("x"))

	b.Export("f")
	b.Export("g")
	b.Export("f")

	top := b.NewUnit(compiler.Toplevel, "top", 0)
	top.Emit(compiler.NIL)
	top.Emit(compiler.RETURN)
	top.Close()

	p := b.Program()
	require.Equal(t, []string{"f", "g"}, p.Exports)
	require.Equal(t, []string{"a", "b"}, p.Names)
}

func TestBuilderHandlers(t *testing.T) {
	b := compiler.NewBuilder("test")
	u := b.NewUnit(compiler.Static, "top._0", 0)
	start, end, catch := u.NewLabel(), u.NewLabel(), u.NewLabel()

	u.MarkLabel(start)
	u.Emit(compiler.NIL)
	u.Emit1(compiler.NEWEXC, b.NameIndex("Failure"))
	u.Emit(compiler.THROW)
	u.MarkLabel(end)
	u.MarkLabel(catch)
	x := u.AllocLocal()
	u.Emit1(compiler.SETLOCAL, x)
	u.Emit1(compiler.LOCAL, x)
	u.Emit(compiler.RETURN)
	u.Handler(start, end, catch, "Failure")
	u.Close()

	fn := u.Fn
	require.Equal(t, 1, fn.NumLocals)
	require.Equal(t, 1, fn.MaxStack)
	require.Len(t, fn.Handlers, 1)
	h := fn.Handlers[0]
	require.Equal(t, int32(0), h.Class)
	require.True(t, h.Covers(0))
	require.False(t, h.Covers(int64(h.PC1)))
	require.Equal(t, h.PC1, h.StartPC)
}

func TestBuilderLines(t *testing.T) {
	b := compiler.NewBuilder("test")
	u := b.NewUnit(compiler.Toplevel, "top", 0)
	u.SetLine(3)
	u.Emit(compiler.NIL)
	u.Emit(compiler.POP)
	u.SetLine(5)
	u.Emit(compiler.NIL)
	u.Emit(compiler.RETURN)
	u.Close()

	fn := u.Fn
	require.Equal(t, 3, fn.Line(0))
	require.Equal(t, 3, fn.Line(1))
	require.Equal(t, 5, fn.Line(2))
	require.Equal(t, 5, fn.Line(3))
}

func emitError(t *testing.T, fn func()) *compiler.EmitError {
	t.Helper()

	var ee *compiler.EmitError
	func() {
		defer func() {
			if e := recover(); e != nil {
				ee = e.(*compiler.EmitError)
			}
		}()
		fn()
	}()
	require.NotNil(t, ee, "expected an emit error")
	return ee
}

func TestBuilderErrors(t *testing.T) {
	t.Run("label marked twice", func(t *testing.T) {
		b := compiler.NewBuilder("test")
		u := b.NewUnit(compiler.Toplevel, "top", 0)
		l := u.NewLabel()
		u.MarkLabel(l)
		ee := emitError(t, func() { u.MarkLabel(l) })
		require.Contains(t, ee.Msg, "marked twice")
	})

	t.Run("label never marked", func(t *testing.T) {
		b := compiler.NewBuilder("test")
		u := b.NewUnit(compiler.Toplevel, "top", 0)
		u.Jump(compiler.JMP, u.NewLabel())
		ee := emitError(t, u.Close)
		require.Contains(t, ee.Msg, "never marked")
	})

	t.Run("inconsistent stack", func(t *testing.T) {
		b := compiler.NewBuilder("test")
		u := b.NewUnit(compiler.Toplevel, "top", 0)
		l := u.NewLabel()
		u.Emit(compiler.TRUE)
		u.Jump(compiler.CJMP, l)
		u.Emit(compiler.NIL)
		u.MarkLabel(l)
		u.Emit(compiler.NIL)
		u.Emit(compiler.RETURN)
		ee := emitError(t, u.Close)
		require.Contains(t, ee.Msg, "inconsistent stack depth")
	})

	t.Run("falls off the end", func(t *testing.T) {
		b := compiler.NewBuilder("test")
		u := b.NewUnit(compiler.Toplevel, "top", 0)
		u.Emit(compiler.NIL)
		ee := emitError(t, u.Close)
		require.Contains(t, ee.Msg, "reaches the end")
	})

	t.Run("underflow", func(t *testing.T) {
		b := compiler.NewBuilder("test")
		u := b.NewUnit(compiler.Toplevel, "top", 0)
		u.Emit(compiler.POP)
		u.Emit(compiler.RETURN)
		ee := emitError(t, u.Close)
		require.Contains(t, ee.Msg, "underflow")
	})

	t.Run("missing operand", func(t *testing.T) {
		b := compiler.NewBuilder("test")
		u := b.NewUnit(compiler.Toplevel, "top", 0)
		ee := emitError(t, func() { u.Emit(compiler.LOCAL) })
		require.Contains(t, ee.Msg, "requires an operand")
	})

	t.Run("open units", func(t *testing.T) {
		b := compiler.NewBuilder("test")
		b.NewUnit(compiler.Toplevel, "top", 0)
		ee := emitError(t, func() { b.Program() })
		require.Contains(t, ee.Msg, "still open")
	})

	t.Run("closed unit", func(t *testing.T) {
		b := compiler.NewBuilder("test")
		u := b.NewUnit(compiler.Toplevel, "top", 0)
		u.Emit(compiler.NIL)
		u.Emit(compiler.RETURN)
		u.Close()
		ee := emitError(t, func() { u.Emit(compiler.NIL) })
		require.Contains(t, ee.Msg, "closed")
	})
}
