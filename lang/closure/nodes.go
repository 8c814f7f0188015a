package closure

import (
	"github.com/mna/curry/lang/compiler"
	"github.com/mna/curry/lang/types"
)

// Const is a literal value: an int64, a string, a bool or nil for unit.
type Const struct {
	Val any
	typ *types.Type
}

// NewConst returns the literal node of v.
func NewConst(v any) *Const {
	c := &Const{Val: v}
	switch v.(type) {
	case int64:
		c.typ = types.IntType
	case string:
		c.typ = types.StringType
	case bool:
		c.typ = types.BoolType
	case nil:
		c.typ = types.UnitType
	default:
		internalError(c, "invalid literal %v (%[1]T)", v)
	}
	return c
}

func (c *Const) Type() *types.Type { return c.typ }
func (c *Const) flagop(fl Flag) bool { return fl&(FlagPure|FlagConst) != 0 }

func (c *Const) gen(ctx *Ctx) {
	switch v := c.Val.(type) {
	case nil:
		ctx.Emit(compiler.NIL)
	case bool:
		if v {
			ctx.Emit(compiler.TRUE)
		} else {
			ctx.Emit(compiler.FALSE)
		}
	default:
		ctx.Emit1(compiler.CONSTANT, ctx.b.ConstantIndex(v))
	}
}

// GlobalRef is a reference to a predeclared builtin. It never needs to be
// captured.
type GlobalRef struct {
	Name string
	typ  *types.Type
}

// NewGlobalRef returns a reference to the predeclared name.
func NewGlobalRef(name string, typ *types.Type) *GlobalRef {
	return &GlobalRef{Name: name, typ: typ}
}

func (g *GlobalRef) Type() *types.Type { return g.typ }
func (g *GlobalRef) flagop(fl Flag) bool { return fl&(FlagDirectBind|FlagPure|FlagConst) != 0 }
func (g *GlobalRef) binder() Binder { return nil }
func (g *GlobalRef) capture() captureWrapper { return nil }
func (g *GlobalRef) assign(value Code) Code { return nil }
func (g *GlobalRef) gen(ctx *Ctx) { ctx.Emit1(compiler.PREDECLARED, ctx.b.NameIndex(g.Name)) }

// ModuleRef is a reference to a module binding defined with def. A unit
// that reads it must make sure the module toplevel ran.
type ModuleRef struct {
	Name string
	typ  *types.Type
}

// NewModuleRef returns a reference to the module binding name.
func NewModuleRef(name string, typ *types.Type) *ModuleRef {
	return &ModuleRef{Name: name, typ: typ}
}

func (m *ModuleRef) Type() *types.Type { return m.typ }
func (m *ModuleRef) flagop(fl Flag) bool { return fl&(FlagDirectBind|FlagModuleRequired|FlagPure) != 0 }
func (m *ModuleRef) binder() Binder { return nil }
func (m *ModuleRef) capture() captureWrapper { return nil }
func (m *ModuleRef) assign(value Code) Code { return nil }
func (m *ModuleRef) gen(ctx *Ctx) { ctx.Emit1(compiler.GETMODULE, ctx.b.NameIndex(m.Name)) }

// ModuleDef binds a module-level name, and evaluates to unit.
type ModuleDef struct {
	Name  string
	Value Code
}

func (d *ModuleDef) Type() *types.Type { return types.UnitType }
func (d *ModuleDef) flagop(fl Flag) bool { return false }

func (d *ModuleDef) gen(ctx *Ctx) {
	d.Value.gen(ctx)
	ctx.Emit1(compiler.SETMODULE, ctx.b.NameIndex(d.Name))
	ctx.b.Export(d.Name)
	ctx.Emit(compiler.NIL)
}

// BinOp is a binary operation, Op is the opcode that implements it.
type BinOp struct {
	Op   compiler.Opcode
	X, Y Code
	Line int
	typ  *types.Type
}

// NewBinOp returns the binary operation op of x and y.
func NewBinOp(op compiler.Opcode, x, y Code, typ *types.Type, line int) *BinOp {
	return &BinOp{Op: op, X: x, Y: y, Line: line, typ: typ}
}

func (b *BinOp) Type() *types.Type { return b.typ }
func (b *BinOp) flagop(fl Flag) bool { return false }

func (b *BinOp) gen(ctx *Ctx) {
	b.X.gen(ctx)
	b.Y.gen(ctx)
	ctx.SetLine(b.Line)
	ctx.Emit(b.Op)
}

// UnOp is a unary operation, Op is the opcode that implements it.
type UnOp struct {
	Op   compiler.Opcode
	X    Code
	Line int
	typ  *types.Type
}

// NewUnOp returns the unary operation op of x.
func NewUnOp(op compiler.Opcode, x Code, typ *types.Type, line int) *UnOp {
	return &UnOp{Op: op, X: x, Line: line, typ: typ}
}

func (u *UnOp) Type() *types.Type { return u.typ }
func (u *UnOp) flagop(fl Flag) bool { return false }

func (u *UnOp) gen(ctx *Ctx) {
	u.X.gen(ctx)
	ctx.SetLine(u.Line)
	ctx.Emit(u.Op)
}

// If is a conditional expression.
type If struct {
	Cond, Then, Else Code
	typ              *types.Type
}

// NewIf returns the conditional expression.
func NewIf(cond, then, els Code, typ *types.Type) *If {
	return &If{Cond: cond, Then: then, Else: els, typ: typ}
}

func (i *If) Type() *types.Type { return i.typ }
func (i *If) flagop(fl Flag) bool { return false }

func (i *If) gen(ctx *Ctx) {
	then, end := ctx.NewLabel(), ctx.NewLabel()
	i.Cond.gen(ctx)
	ctx.Jump(compiler.CJMP, then)
	i.Else.gen(ctx)
	ctx.Jump(compiler.JMP, end)
	ctx.MarkLabel(then)
	i.Then.gen(ctx)
	ctx.MarkLabel(end)
}

// Seq evaluates its expressions in order and results in the last one.
type Seq struct {
	Exprs []Code
}

func (s *Seq) Type() *types.Type {
	if len(s.Exprs) == 0 {
		return types.UnitType
	}
	return s.Exprs[len(s.Exprs)-1].Type()
}

func (s *Seq) flagop(fl Flag) bool { return false }

func (s *Seq) gen(ctx *Ctx) {
	if len(s.Exprs) == 0 {
		ctx.Emit(compiler.NIL)
		return
	}
	for i, e := range s.Exprs {
		e.gen(ctx)
		if i < len(s.Exprs)-1 {
			ctx.Emit(compiler.POP)
		}
	}
}

// Throw raises an exception of Class with Value as payload.
type Throw struct {
	Class string
	Value Code
	Line  int
}

func (t *Throw) Type() *types.Type { return types.AnyType }
func (t *Throw) flagop(fl Flag) bool { return false }

func (t *Throw) gen(ctx *Ctx) {
	t.Value.gen(ctx)
	ctx.SetLine(t.Line)
	ctx.Emit1(compiler.NEWEXC, ctx.b.NameIndex(t.Class))
	ctx.Emit(compiler.THROW)
}

// loadVar reads a local slot, it stands for the argument of an inlined
// function.
type loadVar struct {
	slot uint32
	typ  *types.Type
}

func (l *loadVar) Type() *types.Type { return l.typ }
func (l *loadVar) flagop(fl Flag) bool { return fl&FlagPure != 0 }
func (l *loadVar) gen(ctx *Ctx) { ctx.Emit1(compiler.LOCAL, l.slot) }

// never stands for the argument of a function that is known not to use it.
type never struct{}

func (never) Type() *types.Type { return types.AnyType }
func (never) flagop(fl Flag) bool { return false }
func (n never) gen(ctx *Ctx) { internalError(n, "unused argument generated") }
