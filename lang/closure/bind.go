package closure

import (
	"github.com/mna/curry/lang/compiler"
	"github.com/mna/curry/lang/types"
)

// BindExpr binds Value to a name for the evaluation of Body. A mutable
// binding (Var) that is both assigned and captured is boxed in the array of
// the closure that declares it.
type BindExpr struct {
	Name  string
	Value Code
	Body  Code
	Var   bool

	closure    *aclosure
	id         uint32 // local slot of the value, or of the boxing array
	mvar       int    // index in the boxing array, -1 if not boxed
	assigned   bool
	captured   bool
	directBind bool
}

// NewBind returns a binding of value to name. Its Body must be set once the
// references to the binding are built.
func NewBind(name string, value Code, isVar bool) *BindExpr {
	return &BindExpr{Name: name, Value: value, Var: isVar, mvar: -1}
}

func (b *BindExpr) Type() *types.Type { return b.Body.Type() }
func (b *BindExpr) flagop(fl Flag) bool { return false }

// GetRef returns a new reference to the binding.
func (b *BindExpr) GetRef() BindRef { return &LetRef{b: b} }

func (b *BindExpr) gen(ctx *Ctx) {
	b.genBind(ctx)
	b.Body.gen(ctx)
}

func (b *BindExpr) genBind(ctx *Ctx) {
	if !b.Var && prepareConst(ctx, b.Value) {
		b.directBind = true
		return
	}
	if b.mvar == -1 {
		b.id = ctx.AllocLocal()
	}
	b.genLocalSet(ctx, b.Value)
}

func (b *BindExpr) genLocalSet(ctx *Ctx, value Code) {
	if b.mvar == -1 {
		value.gen(ctx)
		ctx.Emit1(compiler.SETLOCAL, b.id)
		return
	}
	ctx.Emit1(compiler.LOCAL, b.id)
	value.gen(ctx)
	ctx.Emit1(compiler.ARRAYSET, uint32(b.mvar))
}

func (b *BindExpr) setMVar(c *aclosure, arr uint32, index int) {
	b.closure = c
	b.id = arr
	b.mvar = index
}

func (b *BindExpr) genPreGet(ctx *Ctx) {
	ctx.Emit1(compiler.LOCAL, b.id)
}

func (b *BindExpr) genGet(ctx *Ctx) {
	if b.mvar != -1 {
		ctx.Emit1(compiler.ARRAYGET, uint32(b.mvar))
	}
}

func (b *BindExpr) genSet(ctx *Ctx, value Code) {
	if b.mvar == -1 {
		internalError(b, "assignment of a captured binding that is not boxed")
	}
	value.gen(ctx)
	ctx.Emit1(compiler.ARRAYSET, uint32(b.mvar))
}

func (b *BindExpr) captureIdentity() any {
	if b.mvar == -1 {
		return b
	}
	return b.closure
}

func (b *BindExpr) captureType() string {
	switch {
	case b.mvar != -1:
		return types.BoxStorage
	case b.assigned && b.captured:
		// must be boxed, but its closure did not allocate it yet
		return ""
	default:
		return b.Value.Type().Storage()
	}
}

// LetRef is a reference to a BindExpr.
type LetRef struct {
	b     *BindExpr
	arity int
}

func (r *LetRef) Type() *types.Type {
	if r.b.Value == nil {
		// recursive reference, resolved before the value is set
		return types.AnyType
	}
	return r.b.Value.Type()
}

func (r *LetRef) binder() Binder { return r.b }

func (r *LetRef) gen(ctx *Ctx) {
	if r.b.directBind {
		r.b.Value.gen(ctx)
		return
	}
	r.b.genPreGet(ctx)
	r.b.genGet(ctx)
}

func (r *LetRef) flagop(fl Flag) bool {
	switch {
	case fl&FlagAssign != 0:
		if r.b.Var {
			r.b.assigned = true
		}
		return r.b.Var
	case fl&FlagConst != 0:
		return r.b.directBind
	case fl&FlagPure != 0:
		return !r.b.Var
	case fl&FlagDirectBind != 0:
		return r.b.directBind
	}
	return false
}

func (r *LetRef) capture() captureWrapper {
	r.b.captured = true
	if r.b.Var {
		return r.b
	}
	return nil
}

func (r *LetRef) assign(value Code) Code {
	if !r.b.Var {
		return nil
	}
	return &localAssign{b: r.b, value: value}
}

// Arity returns the number of arguments of the longest application of the
// reference.
func (r *LetRef) Arity() int { return r.arity }

type localAssign struct {
	b     *BindExpr
	value Code
}

func (a *localAssign) Type() *types.Type { return types.UnitType }
func (a *localAssign) flagop(fl Flag) bool { return false }

func (a *localAssign) gen(ctx *Ctx) {
	a.b.genLocalSet(ctx, a.value)
	ctx.Emit(compiler.NIL)
}
