package closure

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/dolthub/swiss"
	"github.com/mna/curry/lang/compiler"
	"github.com/mna/curry/lang/types"
	"tlog.app/go/tlog"
)

// RootClosure is the toplevel of a module. References never need to be
// captured by it.
type RootClosure struct {
	aclosure

	Body Code
	// Preload is evaluated and discarded before the body, to fail early if
	// the host does not provide what the module needs.
	Preload []Code
}

func (r *RootClosure) Type() *types.Type {
	if r.Body == nil {
		return types.UnitType
	}
	return r.Body.Type()
}

func (r *RootClosure) flagop(fl Flag) bool { return false }

// RefProxy returns code unchanged.
func (r *RootClosure) RefProxy(code BindRef) BindRef { return code }

func (r *RootClosure) gen(ctx *Ctx) {
	r.genClosureInit(ctx)
	for _, p := range r.Preload {
		p.gen(ctx)
		ctx.Emit(compiler.POP)
	}
	if r.Body == nil {
		ctx.Emit(compiler.NIL)
		return
	}
	r.Body.gen(ctx)
}

// Compile generates the program of the module rooted at root. The module
// name is derived from the base name of filename.
func Compile(ctx context.Context, filename string, root *RootClosure, opts Options) (p *compiler.Program, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "closure: compile", "file", filename)
	defer tr.Finish("err", &err)

	defer func() {
		if e := recover(); e != nil {
			switch e := e.(type) {
			case *InternalError:
				err = e
			case *compiler.EmitError:
				err = e
			default:
				panic(e)
			}
		}
	}()

	b := compiler.NewBuilder(filename)
	st := &state{
		opts:     opts,
		tr:       tr,
		b:        b,
		names:    swiss.NewMap[string, bool](16),
		counters: swiss.NewMap[string, int](8),
	}

	name := ModuleName(filename)
	st.names.Put(name, true)
	top := &Ctx{Unit: b.NewUnit(compiler.Toplevel, name, 0), state: st}
	root.gen(top)
	top.Emit(compiler.RETURN)
	top.Close()

	p = b.Program()
	tr.V("unit").Printw("compiled module", "module", name, "units", len(p.Functions)+1)
	return p, nil
}

// ModuleName returns the module name of the source file filename.
func ModuleName(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "main"
	}
	return mangle(base)
}
