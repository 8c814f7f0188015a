package closure

import (
	"github.com/mna/curry/lang/compiler"
	"github.com/mna/curry/lang/types"
)

// Apply is the application of Fun to Arg.
type Apply struct {
	Fun, Arg Code
	Line     int
	typ      *types.Type

	// arity is the number of applications that precede this one in a chain
	// of applications, the odd ones are generated as calls with two
	// arguments.
	arity int
	ref   *LetRef
}

// NewApply returns the application of fun to arg, of result type typ.
func NewApply(fun, arg Code, typ *types.Type, line int) Code {
	switch fun := fun.(type) {
	case *Capture:
		return fun.captureRef.apply(fun, arg, typ, line)
	case *SelfRef:
		return fun.captureRef.apply(fun, arg, typ, line)
	case *SelfApply:
		return fun.apply(arg, typ, line)
	case *Apply:
		a := &Apply{Fun: fun, Arg: arg, Line: line, typ: typ, arity: fun.arity + 1}
		if fun.ref != nil {
			a.ref = fun.ref
			a.ref.arity = max(a.ref.arity, a.arity+1)
		}
		return a
	case *LetRef:
		fun.arity = max(fun.arity, 1)
		return &Apply{Fun: fun, Arg: arg, Line: line, typ: typ, ref: fun}
	default:
		return &Apply{Fun: fun, Arg: arg, Line: line, typ: typ}
	}
}

func (a *Apply) Type() *types.Type { return a.typ }
func (a *Apply) flagop(fl Flag) bool { return false }

func (a *Apply) gen(ctx *Ctx) {
	if fn, ok := a.Fun.(*Function); ok && !ctx.opts.NoInline {
		arg := &loadVar{typ: a.Arg.Type()}
		if fn.uncapture(arg) {
			ctx.tr.V("inline").Printw("inlined function", "unit", ctx.Fn.Name, "line", a.Line)
			a.Arg.gen(ctx)
			arg.slot = ctx.AllocLocal()
			ctx.Emit1(compiler.SETLOCAL, arg.slot)
			fn.Body.gen(ctx)
			return
		}
	}

	if a.arity&1 != 0 {
		to := a.Fun.(*Apply)
		to.Fun.gen(ctx)
		to.Arg.gen(ctx)
		a.Arg.gen(ctx)
		ctx.SetLine(a.Line)
		ctx.Emit1(compiler.CALL, 2)
		return
	}
	a.Fun.gen(ctx)
	a.Arg.gen(ctx)
	ctx.SetLine(a.Line)
	ctx.Emit1(compiler.CALL, 1)
}

// SelfApply is an application of a reference to an enclosing function of
// the capturer. Once all the arguments of the merge chain are applied and
// if it is in tail position, it is generated as a jump to the start of the
// unit.
type SelfApply struct {
	Apply

	owner *captureRef
	depth int // number of applications missing to reach the capturer
	tail  bool
}

func newSelfApply(owner *captureRef, fun, arg Code, typ *types.Type, line, depth int) *SelfApply {
	return &SelfApply{
		Apply: Apply{Fun: fun, Arg: arg, Line: line, typ: typ},
		owner: owner,
		depth: depth,
	}
}

func (a *SelfApply) apply(arg Code, typ *types.Type, line int) Code {
	if a.depth < 0 {
		return &Apply{Fun: a, Arg: arg, Line: line, typ: typ}
	}
	if a.depth == 1 {
		capturer := a.owner.capturer
		if capturer.argCaptures == nil {
			aliases := &argAliases{args: a.owner.args, caps: make([]*Capture, len(a.owner.args))}
			aliases.fill(capturer)
			a.owner.argCaptures = aliases
			capturer.argCaptures = aliases
		}
	}
	return newSelfApply(a.owner, a, arg, typ, line, a.depth-1)
}

func (a *SelfApply) gen(ctx *Ctx) {
	capturer := a.owner.capturer
	if ctx.opts.NoTailCalls || !a.tail || a.depth != 0 ||
		capturer.argCaptures != a.owner.argCaptures || capturer.restart == nil {
		a.Apply.gen(ctx)
		return
	}

	n := 0
	if a.owner.argCaptures != nil {
		n = len(a.owner.argCaptures.caps)
	}
	a.genArg(ctx, n)
	ctx.Emit1(compiler.SETLOCAL, uint32(capturer.argVar))
	for i := n - 1; i >= 0; i-- {
		if c := a.owner.argCaptures.caps[i]; c != nil {
			ctx.Emit1(compiler.SETLOCAL, uint32(c.localVar))
		} else {
			ctx.Emit(compiler.POP)
		}
	}
	ctx.tr.V("tailcall").Printw("self tail call", "unit", ctx.Fn.Name, "line", a.Line, "args", n+1)
	ctx.Jump(compiler.JMP, *capturer.restart)
}

// genArg pushes the arguments of the application chain, outermost first.
func (a *SelfApply) genArg(ctx *Ctx, i int) {
	if i > 0 {
		a.Fun.(*SelfApply).genArg(ctx, i-1)
	}
	a.Arg.gen(ctx)
}
