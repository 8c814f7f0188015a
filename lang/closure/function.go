package closure

import (
	"fmt"

	"github.com/mna/curry/lang/compiler"
	"github.com/mna/curry/lang/types"
)

// Function is a lambda of one argument. Curried lambdas directly nested in
// each other are merged two by two in a single unit of two parameters, the
// outer one becoming a hollow wrapper that delegates its generation to the
// inner one.
type Function struct {
	capturingClosure

	// SelfBind is the binding of the function itself when it is defined
	// recursively.
	SelfBind Binder
	Body     Code
	// BindName is the name the function is bound to, if any. It names the
	// generated unit.
	BindName string
	// Publish requests that the function be exposed by name in the program,
	// which only happens if it is shared.
	Publish bool

	typ          *types.Type
	arg          *ArgRef
	selfRef      *SelfRef
	restart      *compiler.Label
	outer        *Function
	argCaptures  *argAliases
	uncaptureArg Code
	argVar       int
	argUsed      int
	merged       bool
	shared       bool
	moduleInit   bool

	unit *compiler.Funcode
}

// NewFunction returns a function of type typ, its body must be set with
// SetBody.
func NewFunction(typ *types.Type) *Function {
	if typ == nil || typ.Kind != types.Fun {
		typ = types.NewFun(nil, nil)
	}
	f := &Function{typ: typ, argVar: 1}
	f.arg = &ArgRef{fn: f}
	return f
}

func (f *Function) Type() *types.Type { return f.typ }

// GetRef returns a reference to the argument of the function.
func (f *Function) GetRef() BindRef {
	f.argUsed++
	return f.arg
}

// SetBody sets the body of the function. If the body is itself a function,
// it must be set before its own body is built, so that the references in it
// are resolved knowing whether the two functions are merged. A function
// whose body is already built is an ordinary closure value of the body and
// is not merged.
func (f *Function) SetBody(body Code) {
	f.Body = body
	inner, ok := body.(*Function)
	if !ok || inner.Body != nil {
		return
	}
	inner.outer = f
	if f.argVar == 1 && !inner.merged && inner.selfRef == nil {
		f.merged = true
		inner.argVar++
	}
}

func (f *Function) inner() *Function { return f.Body.(*Function) }

// RefProxy returns the reference to use in the function for code, a
// reference from outside the function.
func (f *Function) RefProxy(code BindRef) BindRef {
	if code.flagop(FlagDirectBind) {
		if code.flagop(FlagModuleRequired) {
			f.moduleInit = true
		}
		return code
	}
	if f.SelfBind != nil && f.SelfBind == code.binder() && !code.flagop(FlagAssign) {
		if f.selfRef == nil {
			f.selfRef = &SelfRef{
				captureRef: captureRef{capturer: f, ref: code},
				bind:       f.SelfBind,
				typ:        code.Type(),
			}
		}
		return f.selfRef
	}
	if f.merged {
		return code
	}

	c := f.captureRef(code)
	c.capturer = f
	if o := f.outer; o != nil && o.merged {
		// the outer function is hollow, its instance and argument are those
		// of this unit.
		if (o.selfRef != nil && code == BindRef(o.selfRef)) || code == BindRef(o.arg) {
			c.localVar = 1
			c.uncaptured = true
		}
	}
	return c
}

func (f *Function) captureInit(ctx *Ctx, c *Capture, n int) {
	c.field = ctx.DeclareField(fmt.Sprintf("_%d", n), c.captureType())
}

// uncapture prepares the function to be generated in place, with arg
// standing for its argument.
func (f *Function) uncapture(arg Code) bool {
	if f.selfRef != nil || len(f.vars) != 0 || f.merged {
		return false
	}
	for c := f.captures; c != nil; c = c.next {
		c.uncaptured = true
	}
	f.uncaptureArg = arg
	return true
}

// prepareGen generates the unit of the function. If the function is not
// shared, it also emits the creation of the instance in ctx, whose fields
// are set by finishGen.
func (f *Function) prepareGen(ctx *Ctx) {
	if f.merged {
		inner := f.inner()
		inner.BindName = f.BindName
		ctx.tr.V("merge").Printw("merged function", "unit", ctx.Fn.Name, "bind", f.BindName)
		inner.prepareGen(ctx)
		f.unit = inner.unit
		return
	}

	kind := compiler.Fun1
	if f.argVar == 2 {
		kind = compiler.Fun2
	}
	base := ctx.Fn.Name + "$" + mangle(f.BindName)
	if f.BindName == "" {
		base += "fn"
	}
	name := ctx.uniqueName(base)
	f.Publish = f.Publish && f.shared

	fc := ctx.newUnit(kind, name, f.argVar)
	fc.Fn.Public = f.Publish
	f.mergeCaptures(fc, f.captureInit)

	// the arguments of the outer functions of the merge chain are copied to
	// locals, so that tail calls can overwrite them.
	if f.argCaptures != nil {
		f.argCaptures.fill(f)
		for _, c := range f.argCaptures.caps {
			if c == nil || c.uncaptured {
				continue
			}
			c.gen(fc)
			slot := fc.AllocLocal()
			c.localVar = int(slot)
			c.ignoreGet = true
			fc.Emit1(compiler.SETLOCAL, slot)
		}
	}
	if f.moduleInit && f.Publish {
		fc.Emit(compiler.MODINIT)
	}
	f.genClosureInit(fc)

	restart := fc.NewLabel()
	fc.MarkLabel(restart)
	f.restart = &restart
	f.Body.gen(fc)
	f.restart = nil
	fc.Emit(compiler.RETURN)
	fc.Close()
	f.unit = fc.Fn
	ctx.tr.V("unit").Printw("function unit", "unit", name, "kind", kind, "captures", len(fc.Fn.Fields))

	ix := ctx.unitIndex(fc.Fn)
	if !f.shared {
		ctx.Emit1(compiler.NEWFUNC, ix)
		return
	}

	init := ctx.newUnit(compiler.Init, ctx.uniqueName(name+"$init"), 0)
	init.Emit1(compiler.NEWFUNC, ix)
	init.Emit1(compiler.PUTSTATIC, ix)
	init.Emit(compiler.NIL)
	init.Emit(compiler.RETURN)
	init.Close()
	fc.Fn.Shared = true
	fc.Fn.Init = int32(ctx.unitIndex(init.Fn))
}

// finishGen sets the captured fields of the instance created by
// prepareGen, which is on top of the stack.
func (f *Function) finishGen(ctx *Ctx) {
	if f.merged {
		f.inner().finishGen(ctx)
		return
	}
	for c := f.captures; c != nil; c = c.next {
		if c.uncaptured {
			continue
		}
		ctx.Emit(compiler.DUP)
		if c.wrapper == nil {
			c.ref.gen(ctx)
		} else {
			c.wrapper.genPreGet(ctx)
		}
		ctx.Emit1(compiler.SETFIELD, c.field)
	}
}

func (f *Function) flagop(fl Flag) bool {
	if f.merged {
		return f.inner().flagop(fl)
	}
	return fl&(FlagPure|FlagConst) != 0 && (f.shared || f.captures == nil)
}

// prepareConst returns true if the function can be a shared instance,
// generating its unit if so.
func (f *Function) prepareConst(ctx *Ctx) bool {
	if f.shared {
		return true
	}
	if ctx.opts.NoShare {
		return false
	}
	if f.merged {
		inner := f.inner()
		inner.BindName = f.BindName
		inner.Publish = f.Publish
		if !inner.prepareConst(ctx) {
			return false
		}
		f.unit = inner.unit
		return true
	}
	if f.argUsed == 0 && f.argVar == 1 && f.Body.flagop(FlagPure) {
		// generated as a constant function
		return false
	}

	// direct bindings resolved since the capture was created need no
	// capture.
	var prev *Capture
	isConst := true
	for c := f.captures; c != nil; c = c.next {
		if c.ref.flagop(FlagDirectBind) {
			c.uncaptured = true
			if prev == nil {
				f.captures = c.next
			} else {
				prev.next = c.next
			}
			continue
		}
		if !c.uncaptured {
			isConst = false
		}
		prev = c
	}
	if isConst {
		f.shared = true
		ctx.tr.V("share").Printw("shared function", "unit", ctx.Fn.Name, "bind", f.BindName)
		f.prepareGen(ctx)
	}
	return isConst
}

func (f *Function) gen(ctx *Ctx) {
	switch {
	case f.shared:
		ctx.Emit1(compiler.GETSTATIC, ctx.unitIndex(f.unit))
	case !f.merged && f.argUsed == 0 && f.Body.flagop(FlagPure) && f.uncapture(never{}):
		f.Body.gen(ctx)
		ctx.Emit(compiler.MAKECONST)
	case f.prepareConst(ctx):
		ctx.Emit1(compiler.GETSTATIC, ctx.unitIndex(f.unit))
	default:
		f.prepareGen(ctx)
		f.finishGen(ctx)
	}
}

// ArgRef is a reference to the argument of a function.
type ArgRef struct {
	fn *Function
}

func (a *ArgRef) Type() *types.Type { return a.fn.typ.Arg }
func (a *ArgRef) flagop(fl Flag) bool { return fl&FlagPure != 0 }
func (a *ArgRef) binder() Binder { return a.fn }
func (a *ArgRef) capture() captureWrapper { return nil }
func (a *ArgRef) assign(value Code) Code { return nil }

func (a *ArgRef) gen(ctx *Ctx) {
	if a.fn.uncaptureArg != nil {
		a.fn.uncaptureArg.gen(ctx)
		return
	}
	ctx.Emit1(compiler.LOCAL, uint32(a.fn.argVar))
}

// SelfRef is the reference of a recursive function to itself, it is the
// instance of the unit.
type SelfRef struct {
	captureRef
	bind Binder
	typ  *types.Type
}

func (s *SelfRef) Type() *types.Type { return s.typ }
func (s *SelfRef) flagop(fl Flag) bool { return fl&FlagPure != 0 }
func (s *SelfRef) binder() Binder { return s.bind }
func (s *SelfRef) capture() captureWrapper { return nil }
func (s *SelfRef) assign(value Code) Code { return nil }
func (s *SelfRef) gen(ctx *Ctx) { ctx.Emit1(compiler.LOCAL, 0) }
