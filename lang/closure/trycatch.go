package closure

import (
	"fmt"

	"github.com/mna/curry/lang/compiler"
	"github.com/mna/curry/lang/types"
)

// TryCatch is a protected block with exception handlers and an optional
// cleanup. It is generated as a separate static unit, called with its
// captured values as arguments, so that an exception leaves the operand
// stack of the enclosing unit intact.
type TryCatch struct {
	capturingClosure

	Block   Code
	Cleanup Code
	Catches []*Catch

	exVar uint32
	typ   *types.Type
}

// NewTryCatch returns an empty protected block. Its Block, catches and
// Cleanup are set once their references are built. If typ is nil, the type
// is the one of the Block.
func NewTryCatch(typ *types.Type) *TryCatch {
	return &TryCatch{typ: typ}
}

// AddCatch adds a handler for the exceptions of class (any exception if
// empty). The Catch is the binder of the caught exception, its Handler must
// be set.
func (tc *TryCatch) AddCatch(class string) *Catch {
	c := &Catch{Class: class, tc: tc}
	tc.Catches = append(tc.Catches, c)
	return c
}

func (tc *TryCatch) Type() *types.Type {
	switch {
	case tc.typ != nil:
		return tc.typ
	case tc.Block != nil:
		return tc.Block.Type()
	default:
		return types.AnyType
	}
}

func (tc *TryCatch) flagop(fl Flag) bool { return false }

// captureInit passes the captured value as an argument of the unit.
func (tc *TryCatch) captureInit(ctx *Ctx, c *Capture, n int) {
	c.captureType()
	c.localVar = n
	if c.wrapper == nil {
		c.ref.gen(ctx)
	} else {
		c.wrapper.genPreGet(ctx)
	}
}

func (tc *TryCatch) gen(ctx *Ctx) {
	name := ctx.uniqueName(fmt.Sprintf("%s._%d", ctx.Fn.Name, ctx.nextCounter(ctx.Fn.Name)))
	argc := tc.mergeCaptures(ctx, tc.captureInit)
	mc := ctx.newUnit(compiler.Static, name, argc)
	ctx.Emit1(compiler.CALLSTATIC, ctx.unitIndex(mc.Fn))

	codeStart, codeEnd := mc.NewLabel(), mc.NewLabel()
	cleanupStart, cleanupEntry := mc.NewLabel(), mc.NewLabel()

	tc.genClosureInit(mc)
	var retVar uint32
	if tc.Cleanup != nil {
		retVar = mc.AllocLocal()
		mc.Emit(compiler.NIL)
		mc.Emit1(compiler.SETLOCAL, retVar)
	}
	mc.MarkLabel(codeStart)
	tc.Block.gen(mc)
	mc.MarkLabel(codeEnd)
	tc.exVar = mc.AllocLocal()

	if tc.Cleanup != nil {
		rethrow := mc.NewLabel()
		mc.MarkLabel(cleanupEntry)
		mc.Emit1(compiler.SETLOCAL, retVar)
		mc.Emit(compiler.NIL)
		mc.MarkLabel(cleanupStart)
		mc.Emit1(compiler.SETLOCAL, tc.exVar)
		tc.Cleanup.gen(mc)
		mc.Emit(compiler.POP)
		mc.Emit1(compiler.LOCAL, tc.exVar)
		mc.Jump(compiler.NNJMP, rethrow)
		mc.Emit1(compiler.LOCAL, retVar)
		mc.Emit(compiler.RETURN)
		mc.MarkLabel(rethrow)
		mc.Emit1(compiler.LOCAL, tc.exVar)
		mc.Emit(compiler.THROW)
	} else {
		mc.Emit(compiler.RETURN)
	}

	for _, c := range tc.Catches {
		catchStart := mc.NewLabel()
		mc.Handler(codeStart, codeEnd, catchStart, c.Class)
		var catchEnd compiler.Label
		if tc.Cleanup != nil {
			catchEnd = mc.NewLabel()
			mc.Handler(catchStart, catchEnd, cleanupStart, "")
		}
		mc.MarkLabel(catchStart)
		mc.Emit1(compiler.SETLOCAL, tc.exVar)
		c.Handler.gen(mc)
		if tc.Cleanup != nil {
			mc.MarkLabel(catchEnd)
			mc.Jump(compiler.JMP, cleanupEntry)
		} else {
			mc.Emit(compiler.RETURN)
		}
	}
	if tc.Cleanup != nil {
		mc.Handler(codeStart, codeEnd, cleanupStart, "")
	}
	mc.Close()
	ctx.tr.V("unit").Printw("protected unit", "unit", name, "captures", argc, "catches", len(tc.Catches))
}

// Catch is a handler of a TryCatch, it binds the caught exception.
type Catch struct {
	Class   string
	Handler Code

	tc *TryCatch
}

// GetRef returns a reference to the caught exception.
func (c *Catch) GetRef() BindRef { return c }

func (c *Catch) Type() *types.Type {
	if c.Class == "" {
		return types.NewException("Exception")
	}
	return types.NewException(c.Class)
}

func (c *Catch) flagop(fl Flag) bool { return false }
func (c *Catch) binder() Binder { return c }
func (c *Catch) capture() captureWrapper { return nil }
func (c *Catch) assign(value Code) Code { return nil }
func (c *Catch) gen(ctx *Ctx) { ctx.Emit1(compiler.LOCAL, c.tc.exVar) }
