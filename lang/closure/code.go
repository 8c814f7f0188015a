// Package closure implements the closure conversion of a typed tree into
// compiled units. It decides, for every reference to a binding, whether it
// becomes a captured field, a local slot or a direct access, detects
// self-recursive tail calls and rewrites them into loops, merges nested
// lambdas into a single unit, inlines directly applied lambdas and promotes
// functions without captured state to shared instances. Protected regions
// are lowered to separate units because the machine discards the operand
// stack when it dispatches an exception.
//
// The tree is built by the front end with the exported constructors, then
// Compile generates the program.
package closure

import (
	"fmt"

	"github.com/dolthub/swiss"
	"github.com/mna/curry/lang/compiler"
	"github.com/mna/curry/lang/types"
	"tlog.app/go/loc"
	"tlog.app/go/tlog"
)

// Code is a node of the typed tree. Generating a node leaves exactly one
// value of its type on the operand stack.
type Code interface {
	// Type returns the semantic type of the node.
	Type() *types.Type

	gen(ctx *Ctx)
	flagop(fl Flag) bool
}

// Flag is a capability of a node, queried by the optimizations.
type Flag uint8

// List of flags.
const (
	FlagPure           Flag = 1 << iota // safe to duplicate or reorder
	FlagAssign                          // mutable, supports assignment
	FlagConst                           // constant value
	FlagDirectBind                      // resolvable without a capture
	FlagModuleRequired                  // needs the module to be initialized
)

// BindRef is a use of a Binder, a named value that can be read and maybe
// assigned.
type BindRef interface {
	Code

	binder() Binder
	capture() captureWrapper
	assign(value Code) Code
}

// Binder is the identity of a binding site: a function argument, a let
// binding or a caught exception.
type Binder interface {
	// GetRef returns a new reference to the binding.
	GetRef() BindRef
}

// Closure is a scope boundary. When a reference crosses it on the way from
// the binding to its use, the closure gets to proxy the reference.
type Closure interface {
	RefProxy(code BindRef) BindRef
	AddVar(b *BindExpr)
}

var (
	_ Closure = (*Function)(nil)
	_ Closure = (*TryCatch)(nil)
	_ Closure = (*RootClosure)(nil)
)

// captureWrapper is implemented by bindings that are not captured by value,
// such as mutable bindings that live boxed in an array. A Capture delegates
// the access of the value to its wrapper.
type captureWrapper interface {
	genPreGet(ctx *Ctx)
	genGet(ctx *Ctx)
	genSet(ctx *Ctx, value Code)
	captureIdentity() any
	captureType() string
}

// Flagop returns true if c has the capability fl. It has the side effects of
// the query, e.g. asking a mutable binding for FlagAssign marks it assigned.
func Flagop(c Code, fl Flag) bool { return c.flagop(fl) }

// Assign returns the node that assigns value to ref, or nil if ref is not
// assignable.
func Assign(ref BindRef, value Code) Code { return ref.assign(value) }

// MarkTail marks the self applications in tail position of c.
func MarkTail(c Code) {
	switch c := c.(type) {
	case *SelfApply:
		c.tail = true
	case *If:
		MarkTail(c.Then)
		MarkTail(c.Else)
	case *Seq:
		if len(c.Exprs) > 0 {
			MarkTail(c.Exprs[len(c.Exprs)-1])
		}
	case *BindExpr:
		MarkTail(c.Body)
	}
}

// prepareConst returns true if c is a constant value, preparing it to be
// shared if it is a function.
func prepareConst(ctx *Ctx, c Code) bool {
	if f, ok := c.(*Function); ok {
		return f.prepareConst(ctx)
	}
	return c.flagop(FlagConst)
}

// Options disable optimizations of the generated code.
type Options struct {
	NoTailCalls bool
	NoInline    bool
	NoShare     bool
}

// Ctx is the generation context of a unit.
type Ctx struct {
	*compiler.Unit
	*state
}

type state struct {
	opts     Options
	tr       tlog.Span
	b        *compiler.Builder
	names    *swiss.Map[string, bool]
	counters *swiss.Map[string, int]
}

func (ctx *Ctx) newUnit(kind compiler.Kind, name string, nparams int) *Ctx {
	return &Ctx{Unit: ctx.b.NewUnit(kind, name, nparams), state: ctx.state}
}

// uniqueName returns base, or base with the smallest numeric suffix that
// makes it unique in the program.
func (st *state) uniqueName(base string) string {
	name := base
	for i := 1; st.names.Has(name); i++ {
		name = fmt.Sprintf("%s%d", base, i)
	}
	st.names.Put(name, true)
	return name
}

// nextCounter returns the next value of the counter of the unit.
func (st *state) nextCounter(unit string) int {
	n, _ := st.counters.Get(unit)
	st.counters.Put(unit, n+1)
	return n
}

func (ctx *Ctx) unitIndex(fn *compiler.Funcode) uint32 {
	return ctx.b.UnitIndex(fn)
}

// mangle returns name with every character that is not valid in a unit name
// replaced by an underscore.
func mangle(name string) string {
	b := []byte(name)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_':
		default:
			b[i] = '_'
		}
	}
	return string(b)
}

// InternalError is raised (via panic) when the closure conversion detects an
// inconsistency in its own state. It aborts the compilation.
type InternalError struct {
	Node string
	Msg  string
	Loc  loc.PC
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %s: %s (at %v)", e.Node, e.Msg, e.Loc)
}

func internalError(node any, format string, args ...any) {
	panic(&InternalError{Node: describe(node), Msg: fmt.Sprintf(format, args...), Loc: loc.Caller(1)})
}

func describe(node any) string {
	switch n := node.(type) {
	case *Capture:
		return "capture of " + describe(n.bind)
	case *BindExpr:
		return "binding " + n.Name
	case *Function:
		if n.BindName != "" {
			return "function " + n.BindName
		}
		return "function"
	case *Catch:
		return "catch " + n.Class
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%T", node)
	}
}
