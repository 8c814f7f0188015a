package closure

import (
	"github.com/dolthub/swiss"
	"github.com/mna/curry/lang/compiler"
	"github.com/mna/curry/lang/types"
)

// captureRef is the part of a reference that knows which function captured
// it, so that applying it can be recognized as a call of an enclosing
// function.
type captureRef struct {
	capturer *Function
	ref      BindRef

	// functions of the merge chain whose arguments are passed by a self
	// application, outermost first.
	args        []*Function
	argCaptures *argAliases
}

// argAliases lists, for each function of a merge chain, the capture that
// holds its argument in the innermost function. Its identity tells whether
// the self applications of a capture agree with the function about where
// to store the arguments of a tail call.
type argAliases struct {
	args []*Function
	caps []*Capture
}

// fill completes the aliases with the captures of fn created after the
// aliases were first computed.
func (al *argAliases) fill(fn *Function) {
	for i, arg := range al.args {
		if al.caps[i] != nil {
			continue
		}
		for c := fn.captures; c != nil; c = c.next {
			if c.bind == Binder(arg) {
				al.caps[i] = c
				break
			}
		}
	}
}

// apply returns the application of self to arg. The application of a
// reference to an enclosing function of the capturer is a self
// application.
func (cr *captureRef) apply(self BindRef, arg Code, typ *types.Type, line int) Code {
	if cr.args != nil {
		return newSelfApply(cr, self, arg, typ, line, len(cr.args))
	}

	n := 0
	for f := cr.capturer; f != nil; f = f.outer {
		if f.SelfBind != nil && f.SelfBind == cr.ref.binder() {
			cr.args = make([]*Function, n)
			f = cr.capturer.outer
			for i := n - 1; i >= 0; i-- {
				cr.args[i] = f
				f = f.outer
			}
			return newSelfApply(cr, self, arg, typ, line, n)
		}
		n++
	}
	return &Apply{Fun: self, Arg: arg, Line: line, typ: typ}
}

// Capture is a reference to a binding from outside the closure that uses
// it. It is stored in a field of the closure instance, or in a local slot
// of the closure unit.
type Capture struct {
	captureRef

	bind     Binder
	next     *Capture
	wrapper  captureWrapper
	identity any

	field    uint32
	localVar int // -1 if stored in field

	// uncaptured is set when the reference can be generated directly in the
	// context of the closure, e.g. because the closure is inlined.
	uncaptured bool
	// ignoreGet is set when the captured value itself was copied to
	// localVar, instead of its wrapper.
	ignoreGet bool
	refType   string
}

func (c *Capture) Type() *types.Type { return c.ref.Type() }
func (c *Capture) binder() Binder { return c.bind }

func (c *Capture) flagop(fl Flag) bool {
	return fl&(FlagPure|FlagAssign) != 0 && c.ref.flagop(fl)
}

func (c *Capture) gen(ctx *Ctx) {
	if c.uncaptured {
		c.ref.gen(ctx)
		return
	}
	c.genPreGet(ctx)
	c.genGet(ctx)
}

func (c *Capture) genPreGet(ctx *Ctx) {
	switch {
	case c.uncaptured:
		c.wrapper.genPreGet(ctx)
	case c.localVar < 0:
		ctx.Emit1(compiler.LOCAL, 0)
		ctx.Emit1(compiler.GETFIELD, c.field)
	default:
		ctx.Emit1(compiler.LOCAL, uint32(c.localVar))
	}
}

func (c *Capture) genGet(ctx *Ctx) {
	if c.wrapper != nil && !c.ignoreGet {
		c.wrapper.genGet(ctx)
	}
}

func (c *Capture) genSet(ctx *Ctx, value Code) {
	c.wrapper.genSet(ctx, value)
}

func (c *Capture) capture() captureWrapper {
	if c.uncaptured {
		return c.ref.capture()
	}
	if c.wrapper == nil {
		return nil
	}
	return c
}

func (c *Capture) captureIdentity() any {
	if c.wrapper == nil {
		return c
	}
	return c.wrapper.captureIdentity()
}

func (c *Capture) captureType() string {
	if c.refType == "" {
		if c.wrapper == nil {
			c.refType = c.ref.Type().Storage()
		} else {
			c.refType = c.wrapper.captureType()
		}
		if c.refType == "" {
			internalError(c, "unresolved storage type")
		}
	}
	return c.refType
}

func (c *Capture) assign(value Code) Code {
	if !c.ref.flagop(FlagAssign) {
		return nil
	}
	return &captureAssign{c: c, value: value}
}

type captureAssign struct {
	c     *Capture
	value Code
}

func (a *captureAssign) Type() *types.Type { return types.UnitType }
func (a *captureAssign) flagop(fl Flag) bool { return false }

func (a *captureAssign) gen(ctx *Ctx) {
	if a.c.uncaptured {
		a.c.ref.assign(a.value).gen(ctx)
		return
	}
	a.c.genPreGet(ctx)
	a.c.wrapper.genSet(ctx, a.value)
	ctx.Emit(compiler.NIL)
}

// aclosure owns the mutable bindings declared directly in a closure.
// Those that are both assigned and captured are boxed in a shared array.
type aclosure struct {
	vars []*BindExpr
}

// AddVar registers a mutable binding declared in the closure.
func (a *aclosure) AddVar(b *BindExpr) {
	a.vars = append(a.vars, b)
}

// genClosureInit allocates the array of boxed bindings, if any.
func (a *aclosure) genClosureInit(ctx *Ctx) {
	var arr uint32
	n := 0
	for _, b := range a.vars {
		if b.assigned && b.captured {
			if n == 0 {
				arr = ctx.AllocLocal()
			}
			b.setMVar(a, arr, n)
			n++
		}
	}
	if n > 0 {
		ctx.Emit1(compiler.NEWARRAY, uint32(n))
		ctx.Emit1(compiler.SETLOCAL, arr)
	}
}

// capturingClosure is a closure that captures the bindings from outside
// that it references.
type capturingClosure struct {
	aclosure
	captures *Capture
	byBinder *swiss.Map[Binder, *Capture]
}

// RefProxy captures code unless it can be accessed directly.
func (cc *capturingClosure) RefProxy(code BindRef) BindRef {
	if code.flagop(FlagDirectBind) {
		return code
	}
	return cc.captureRef(code)
}

// captureRef returns the capture of the binding of code, creating it on
// first use.
func (cc *capturingClosure) captureRef(code BindRef) *Capture {
	if cc.byBinder == nil {
		cc.byBinder = swiss.NewMap[Binder, *Capture](4)
	}
	if c, ok := cc.byBinder.Get(code.binder()); ok {
		return c
	}
	c := &Capture{
		captureRef: captureRef{ref: code},
		bind:       code.binder(),
		wrapper:    code.capture(),
		localVar:   -1,
		next:       cc.captures,
	}
	cc.captures = c
	cc.byBinder.Put(c.bind, c)
	return c
}

// mergeCaptures removes the captures that share the identity of a previous
// one and initializes the others with init. It returns the number of
// initialized captures.
func (cc *capturingClosure) mergeCaptures(ctx *Ctx, init func(ctx *Ctx, c *Capture, n int)) int {
	seen := swiss.NewMap[any, *Capture](8)
	counter := 0
	var prev *Capture
	for c := cc.captures; c != nil; c = c.next {
		c.identity = c.captureIdentity()
		if c.uncaptured {
			prev = c
			continue
		}
		if first, ok := seen.Get(c.identity); ok {
			c.field = first.field
			c.localVar = first.localVar
			prev.next = c.next
			ctx.tr.V("capture").Printw("merged capture", "unit", ctx.Fn.Name, "capture", describe(c), "with", describe(first))
			continue
		}
		seen.Put(c.identity, c)
		init(ctx, c, counter)
		counter++
		prev = c
	}
	return counter
}
