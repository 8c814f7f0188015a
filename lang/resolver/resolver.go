// Package resolver builds the typed tree of the closure package from the
// syntax tree of the typed-tree text format. It resolves the names to their
// bindings and wires the references through every closure they cross.
//
// # Scopes
//
// A name is resolved in the lexical bindings first (function parameters,
// let, let-rec and var bindings, caught exceptions), then in the module
// definitions made so far by def forms, and finally in the predeclared
// names of the host. Anything else is an undefined name.
//
// # Closures
//
// Functions and try forms are closures: a reference to a binding declared
// outside of them is proxied by each closure crossed, from the one right
// inside the binding's closure to the one where the name is used. The
// toplevel of the chunk is the root closure.
//
// Curried parameters (fn (x y) body) build nested functions, the inner one
// set as body of the outer one before its own body is resolved, so that the
// references in it know whether the two functions are merged.
//
// # Mutability
//
// Only var bindings can be the target of a set. A var is declared in the
// innermost closure, which boxes it if it is both assigned and captured.
package resolver

import (
	"context"
	"fmt"

	"github.com/dolthub/swiss"
	"github.com/mna/curry/lang/ast"
	"github.com/mna/curry/lang/closure"
	"github.com/mna/curry/lang/scanner"
	"github.com/mna/curry/lang/token"
	"github.com/mna/curry/lang/types"
)

// Mode is a set of bit flags that configures the resolving. By default (0),
// the names are resolved, all errors are reported and uses are not recorded.
type Mode uint

// List of supported resolver modes, which can be combined with bitwise or.
const (
	RecordUses Mode = 1 << iota // record the resolution of each identifier, for printing.
)

// A Chunk is the result of resolving an ast.Chunk.
type Chunk struct {
	Name string
	Root *closure.RootClosure
	// Uses is only filled if the RecordUses mode is set, in resolution order.
	Uses []Use
}

// ResolveFiles takes the list of chunks from a successful parse result and
// builds the typed tree of each one. The isPredeclared predicate reports the
// names provided by the host, it may be nil.
//
// An AST that resulted in errors in the parse phase should never be passed to
// the resolver, the behavior is undefined.
//
// The returned error, if non-nil, is guaranteed to be a scanner.ErrorList.
func ResolveFiles(ctx context.Context, chunks []*ast.Chunk, mode Mode, isPredeclared func(name string) bool) ([]*Chunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	var r resolver
	r.mode = mode
	r.isPredeclared = isPredeclared
	if isPredeclared == nil {
		r.isPredeclared = func(name string) bool { return false }
	}

	res := make([]*Chunk, 0, len(chunks))
	for _, ch := range chunks {
		if err := ctx.Err(); err != nil {
			r.errors.Add(token.Position{Filename: ch.Name}, err.Error())
			break
		}
		r.init(ch.Name)
		res = append(res, r.chunk(ch))
	}
	r.errors.Sort()
	return res, r.errors.Err()
}

// ResolveChunk is like ResolveFiles for a single chunk.
func ResolveChunk(ch *ast.Chunk, mode Mode, isPredeclared func(name string) bool) (*Chunk, error) {
	res, err := ResolveFiles(context.Background(), []*ast.Chunk{ch}, mode, isPredeclared)
	if len(res) == 0 {
		return nil, err
	}
	return res[0], err
}

type resolver struct {
	mode          Mode
	isPredeclared func(name string) bool
	errors        scanner.ErrorList

	// those fields are reset for each chunk
	filename string
	uses     []Use

	// env is the current lexical environment, innermost binding first.
	env *binding
	// closures is the stack of closures, the root closure first.
	closures []closure.Closure

	// defs records the types of the module definitions made so far.
	defs *swiss.Map[string, *types.Type]
	// globals saves the predeclared references when they are first used, in
	// order of first use.
	globals     *swiss.Map[string, *closure.GlobalRef]
	globalOrder []closure.Code
}

func (r *resolver) init(filename string) {
	r.filename = filename
	r.uses = nil
	r.env = nil
	r.closures = r.closures[:0]
	r.defs = swiss.NewMap[string, *types.Type](8)
	r.globals = swiss.NewMap[string, *closure.GlobalRef](4)
	r.globalOrder = nil
}

func (r *resolver) chunk(ch *ast.Chunk) *Chunk {
	root := &closure.RootClosure{}
	r.closures = append(r.closures, root)

	var seq closure.Seq
	for _, f := range ch.Forms {
		if l, ok := f.(*ast.List); ok && l.Keyword() == token.DEF {
			seq.Exprs = append(seq.Exprs, r.def(l))
			continue
		}
		seq.Exprs = append(seq.Exprs, r.form(f))
	}
	if len(seq.Exprs) == 1 {
		root.Body = seq.Exprs[0]
	} else if len(seq.Exprs) > 1 {
		root.Body = &seq
	}
	root.Preload = r.globalOrder
	r.closures = r.closures[:0]

	return &Chunk{Name: ch.Name, Root: root, Uses: r.uses}
}

// level returns the index of the innermost closure.
func (r *resolver) level() int { return len(r.closures) - 1 }

func (r *resolver) pushClosure(c closure.Closure) { r.closures = append(r.closures, c) }
func (r *resolver) popClosure() { r.closures = r.closures[:len(r.closures)-1] }

// bind declares name in the innermost closure and returns the previous
// environment, to restore with unbind.
func (r *resolver) bind(name string, binder closure.Binder) *binding {
	prev := r.env
	r.env = &binding{parent: prev, name: name, binder: binder, level: r.level()}
	return prev
}

func (r *resolver) unbind(prev *binding) { r.env = prev }

func (r *resolver) errorf(p token.Pos, format string, args ...any) {
	r.errors.Add(token.PositionOf(r.filename, p), fmt.Sprintf(format, args...))
}

func (r *resolver) use(a *ast.Atom, scope Scope, borders int, assign bool) {
	if r.mode&RecordUses == 0 {
		return
	}
	r.uses = append(r.uses, Use{Pos: a.Value.Pos, Name: a.Value.Raw, Scope: scope, Borders: borders, Assign: assign})
}

// ref resolves the identifier a to a reference usable in the innermost
// closure. It returns nil if the name is undefined, after reporting the
// error.
func (r *resolver) ref(a *ast.Atom, assign bool) closure.BindRef {
	name := a.Value.Raw
	if b := r.env.lookup(name); b != nil {
		ref := b.binder.GetRef()
		for i := b.level + 1; i < len(r.closures); i++ {
			ref = r.closures[i].RefProxy(ref)
		}
		scope := Local
		if b.level < r.level() {
			scope = Free
		}
		r.use(a, scope, r.level()-b.level, assign)
		return ref
	}

	if typ, ok := r.defs.Get(name); ok {
		r.use(a, Module, 0, assign)
		return r.proxyAll(closure.NewModuleRef(name, typ))
	}

	if r.isPredeclared(name) {
		r.use(a, Predeclared, 0, assign)
		g, ok := r.globals.Get(name)
		if !ok {
			g = closure.NewGlobalRef(name, types.AnyType)
			r.globals.Put(name, g)
			r.globalOrder = append(r.globalOrder, g)
		}
		return r.proxyAll(g)
	}

	r.use(a, Undefined, 0, assign)
	r.errorf(a.Value.Pos, "undefined: %s", name)
	return nil
}

// proxyAll passes a reference of the module through all closures, so that
// they know they depend on it.
func (r *resolver) proxyAll(ref closure.BindRef) closure.BindRef {
	for i := 1; i < len(r.closures); i++ {
		ref = r.closures[i].RefProxy(ref)
	}
	return ref
}
