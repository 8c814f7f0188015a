package resolver

import (
	"github.com/mna/curry/lang/ast"
	"github.com/mna/curry/lang/closure"
	"github.com/mna/curry/lang/compiler"
	"github.com/mna/curry/lang/token"
	"github.com/mna/curry/lang/types"
)

type operator struct {
	op    compiler.Opcode
	arity int
	res   *types.Type // nil if the type of the operands
}

var operators = map[string]operator{
	"+":   {compiler.PLUS, 2, nil},
	"-":   {compiler.MINUS, 2, types.IntType},
	"*":   {compiler.STAR, 2, types.IntType},
	"/":   {compiler.SLASH, 2, types.IntType},
	"%":   {compiler.PERCENT, 2, types.IntType},
	"==":  {compiler.EQL, 2, types.BoolType},
	"!=":  {compiler.NEQ, 2, types.BoolType},
	"<":   {compiler.LT, 2, types.BoolType},
	"<=":  {compiler.LE, 2, types.BoolType},
	">":   {compiler.GT, 2, types.BoolType},
	">=":  {compiler.GE, 2, types.BoolType},
	"not": {compiler.NOT, 1, types.BoolType},
	"neg": {compiler.UMINUS, 1, types.IntType},
}

// invalid stands for a form that failed to resolve, so that resolving can
// go on to report more errors.
func invalid() closure.Code { return closure.NewConst(nil) }

func line(f ast.Form) int {
	start, _ := f.Span()
	l, _ := start.LineCol()
	return l
}

func (r *resolver) form(f ast.Form) closure.Code {
	switch f := f.(type) {
	case *ast.Atom:
		return r.atom(f)
	case *ast.List:
		return r.list(f)
	default:
		start, _ := f.Span()
		r.errorf(start, "invalid form")
		return invalid()
	}
}

func (r *resolver) atom(a *ast.Atom) closure.Code {
	switch a.Tok {
	case token.INT:
		return closure.NewConst(a.Value.Int)
	case token.STRING:
		return closure.NewConst(a.Value.String)
	case token.TRUE:
		return closure.NewConst(true)
	case token.FALSE:
		return closure.NewConst(false)
	case token.UNIT:
		return closure.NewConst(nil)
	case token.IDENT:
		if _, ok := operators[a.Value.Raw]; ok && r.env.lookup(a.Value.Raw) == nil {
			r.errorf(a.Value.Pos, "operator %s must be applied", a.Value.Raw)
			return invalid()
		}
		if ref := r.ref(a, false); ref != nil {
			return ref
		}
		return invalid()
	default:
		r.errorf(a.Value.Pos, "unexpected %s", a.Tok.GoString())
		return invalid()
	}
}

func (r *resolver) list(l *ast.List) closure.Code {
	if len(l.Items) == 0 {
		r.errorf(l.Lparen, "empty list")
		return invalid()
	}

	switch l.Keyword() {
	case token.FN:
		return r.fn(l, nil, "")
	case token.LET:
		return r.let(l, false)
	case token.VAR:
		return r.let(l, true)
	case token.LETREC:
		return r.letRec(l)
	case token.SET:
		return r.set(l)
	case token.IF:
		return r.ifForm(l)
	case token.SEQ:
		return r.seq(l)
	case token.TRY:
		return r.try(l)
	case token.THROW:
		return r.throw(l)
	case token.DEF:
		r.errorf(l.Lparen, "def is only allowed at the top level")
		return invalid()
	case token.ILLEGAL:
		if head, ok := l.Head(); ok && head.Tok == token.IDENT {
			if op, ok := operators[head.Value.Raw]; ok && r.env.lookup(head.Value.Raw) == nil {
				return r.operator(l, op)
			}
		}
		return r.apply(l)
	default:
		head, _ := l.Head()
		r.errorf(head.Value.Pos, "unexpected %s", head.Tok.GoString())
		return invalid()
	}
}

// checkLen reports an error and returns false if the list does not have
// exactly n items, not counting the keyword.
func (r *resolver) checkLen(l *ast.List, n int, usage string) bool {
	if len(l.Items)-1 != n {
		r.errorf(l.Lparen, "invalid form, expected %s", usage)
		return false
	}
	return true
}

func (r *resolver) ident(f ast.Form, what string) (*ast.Atom, bool) {
	if !ast.IsIdent(f) {
		start, _ := f.Span()
		r.errorf(start, "expected %s", what)
		return nil, false
	}
	return f.(*ast.Atom), true
}

// (fn x body) or (fn (x y ...) body)
func (r *resolver) fn(l *ast.List, self closure.Binder, name string) closure.Code {
	params, ok := r.params(l)
	if !ok {
		return invalid()
	}

	// (fn x (fn y body)) is the same chain of curried functions as
	// (fn (x y) body). The chain must be complete before its body is
	// resolved, so that references know which functions are merged.
	bodyForm := l.Items[2]
	for {
		sub, isList := bodyForm.(*ast.List)
		if !isList || sub.Keyword() != token.FN {
			break
		}
		more, ok := r.params(sub)
		if !ok {
			return invalid()
		}
		params = append(params, more...)
		bodyForm = sub.Items[2]
	}

	prevEnv := r.env
	fns := make([]*closure.Function, len(params))
	for i, p := range params {
		fn := closure.NewFunction(nil)
		if i == 0 {
			fn.SelfBind = self
			fn.BindName = name
		} else {
			fns[i-1].SetBody(fn)
		}
		fns[i] = fn
		r.pushClosure(fn)
		r.bind(p.Value.Raw, fn)
	}

	body := r.form(bodyForm)
	last := fns[len(fns)-1]
	last.SetBody(body)
	closure.MarkTail(body)
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i].Type().Res = fns[i].Body.Type()
		r.popClosure()
	}
	r.unbind(prevEnv)
	return fns[0]
}

// params returns the parameters of the fn form l.
func (r *resolver) params(l *ast.List) ([]*ast.Atom, bool) {
	const usage = "(fn param body) or (fn (param...) body)"
	if !r.checkLen(l, 2, usage) {
		return nil, false
	}

	switch p := l.Items[1].(type) {
	case *ast.List:
		params := make([]*ast.Atom, 0, len(p.Items))
		for _, it := range p.Items {
			a, ok := r.ident(it, "parameter name")
			if !ok {
				return nil, false
			}
			params = append(params, a)
		}
		if len(params) == 0 {
			r.errorf(p.Lparen, "function must have at least one parameter")
			return nil, false
		}
		return params, true
	default:
		a, ok := r.ident(p, "parameter name")
		if !ok {
			return nil, false
		}
		return []*ast.Atom{a}, true
	}
}

// (let x value body) or (var x value body)
func (r *resolver) let(l *ast.List, isVar bool) closure.Code {
	usage := "(let name value body)"
	if isVar {
		usage = "(var name value body)"
	}
	if !r.checkLen(l, 3, usage) {
		return invalid()
	}
	a, ok := r.ident(l.Items[1], "binding name")
	if !ok {
		return invalid()
	}

	var value closure.Code
	if fl, ok := l.Items[2].(*ast.List); ok && fl.Keyword() == token.FN && !isVar {
		value = r.fn(fl, nil, a.Value.Raw)
	} else {
		value = r.form(l.Items[2])
	}

	bind := closure.NewBind(a.Value.Raw, value, isVar)
	if isVar {
		r.closures[r.level()].AddVar(bind)
	}
	prev := r.bind(a.Value.Raw, bind)
	bind.Body = r.form(l.Items[3])
	r.unbind(prev)
	return bind
}

// (let-rec f (fn ...) body)
func (r *resolver) letRec(l *ast.List) closure.Code {
	if !r.checkLen(l, 3, "(let-rec name (fn ...) body)") {
		return invalid()
	}
	a, ok := r.ident(l.Items[1], "binding name")
	if !ok {
		return invalid()
	}
	fl, ok := l.Items[2].(*ast.List)
	if !ok || fl.Keyword() != token.FN {
		start, _ := l.Items[2].Span()
		r.errorf(start, "let-rec value must be a function")
		return invalid()
	}

	// the binding is visible in the function, its value is set once the
	// function is built.
	bind := closure.NewBind(a.Value.Raw, nil, false)
	prev := r.bind(a.Value.Raw, bind)
	fn := r.fn(fl, bind, a.Value.Raw)
	bind.Value = fn
	bind.Body = r.form(l.Items[3])
	r.unbind(prev)
	return bind
}

// (set x value)
func (r *resolver) set(l *ast.List) closure.Code {
	if !r.checkLen(l, 2, "(set name value)") {
		return invalid()
	}
	a, ok := r.ident(l.Items[1], "binding name")
	if !ok {
		return invalid()
	}
	ref := r.ref(a, true)
	value := r.form(l.Items[2])
	if ref == nil {
		return invalid()
	}
	if !closure.Flagop(ref, closure.FlagAssign) {
		r.errorf(a.Value.Pos, "cannot assign to immutable binding %s", a.Value.Raw)
		return invalid()
	}
	if code := closure.Assign(ref, value); code != nil {
		return code
	}
	r.errorf(a.Value.Pos, "cannot assign to %s", a.Value.Raw)
	return invalid()
}

// (if cond then else) or (if cond then)
func (r *resolver) ifForm(l *ast.List) closure.Code {
	if n := len(l.Items) - 1; n != 2 && n != 3 {
		r.errorf(l.Lparen, "invalid form, expected (if cond then [else])")
		return invalid()
	}
	cond := r.form(l.Items[1])
	then := r.form(l.Items[2])
	var els closure.Code
	if len(l.Items) == 4 {
		els = r.form(l.Items[3])
	} else {
		els = closure.NewConst(nil)
	}

	typ := then.Type()
	if typ.Kind != els.Type().Kind {
		typ = types.AnyType
	}
	return closure.NewIf(cond, then, els, typ)
}

// (seq expr...)
func (r *resolver) seq(l *ast.List) closure.Code {
	var seq closure.Seq
	for _, f := range l.Items[1:] {
		seq.Exprs = append(seq.Exprs, r.form(f))
	}
	return &seq
}

// (throw Class value)
func (r *resolver) throw(l *ast.List) closure.Code {
	if !r.checkLen(l, 2, "(throw Class value)") {
		return invalid()
	}
	class, ok := r.ident(l.Items[1], "exception class")
	if !ok {
		return invalid()
	}
	return &closure.Throw{Class: class.Value.Raw, Value: r.form(l.Items[2]), Line: line(l)}
}

// (try body (catch Class e handler)... (finally cleanup))
func (r *resolver) try(l *ast.List) closure.Code {
	if len(l.Items) < 3 {
		r.errorf(l.Lparen, "invalid form, expected (try body (catch Class name handler)... [(finally cleanup)])")
		return invalid()
	}

	tc := closure.NewTryCatch(nil)
	r.pushClosure(tc)
	defer r.popClosure()

	tc.Block = r.form(l.Items[1])
	for i, f := range l.Items[2:] {
		cl, ok := f.(*ast.List)
		switch {
		case ok && cl.Keyword() == token.CATCH:
			r.catch(tc, cl)
		case ok && cl.Keyword() == token.FINALLY:
			if i != len(l.Items)-3 {
				r.errorf(cl.Lparen, "finally must be the last clause of try")
				continue
			}
			if r.checkLen(cl, 1, "(finally cleanup)") {
				tc.Cleanup = r.form(cl.Items[1])
			}
		default:
			start, _ := f.Span()
			r.errorf(start, "expected catch or finally clause")
		}
	}
	return tc
}

func (r *resolver) catch(tc *closure.TryCatch, cl *ast.List) {
	if !r.checkLen(cl, 3, "(catch Class name handler)") {
		return
	}
	class, ok := r.ident(cl.Items[1], "exception class")
	if !ok {
		return
	}
	name, ok := r.ident(cl.Items[2], "exception name")
	if !ok {
		return
	}

	c := tc.AddCatch(class.Value.Raw)
	prev := r.bind(name.Value.Raw, c)
	c.Handler = r.form(cl.Items[3])
	r.unbind(prev)
}

func (r *resolver) operator(l *ast.List, op operator) closure.Code {
	head, _ := l.Head()
	if len(l.Items)-1 != op.arity {
		r.errorf(l.Lparen, "operator %s expects %d operand(s)", head.Value.Raw, op.arity)
		return invalid()
	}

	x := r.form(l.Items[1])
	if op.arity == 1 {
		return closure.NewUnOp(op.op, x, op.res, line(l))
	}
	y := r.form(l.Items[2])
	typ := op.res
	if typ == nil {
		// + adds ints and concatenates strings
		typ = types.IntType
		if x.Type().Kind == types.String || y.Type().Kind == types.String {
			typ = types.StringType
		}
	}
	return closure.NewBinOp(op.op, x, y, typ, line(l))
}

// (f arg...), the application is curried, (f) applies f to unit.
func (r *resolver) apply(l *ast.List) closure.Code {
	fun := r.form(l.Items[0])
	args := l.Items[1:]
	if len(args) == 0 {
		return closure.NewApply(fun, closure.NewConst(nil), fun.Type().Result(1), line(l))
	}
	for _, a := range args {
		fun = closure.NewApply(fun, r.form(a), fun.Type().Result(1), line(l))
	}
	return fun
}

// (def name value), only at the top level. A function bound by def is
// published.
func (r *resolver) def(l *ast.List) closure.Code {
	if !r.checkLen(l, 2, "(def name value)") {
		return invalid()
	}
	a, ok := r.ident(l.Items[1], "definition name")
	if !ok {
		return invalid()
	}
	name := a.Value.Raw
	if r.defs.Has(name) {
		r.errorf(a.Value.Pos, "%s already defined", name)
		return invalid()
	}

	var value closure.Code
	if fl, ok := l.Items[2].(*ast.List); ok && fl.Keyword() == token.FN {
		value = r.fn(fl, nil, name)
		if fn, ok := value.(*closure.Function); ok {
			fn.Publish = true
		}
	} else {
		value = r.form(l.Items[2])
	}
	r.defs.Put(name, value.Type())
	return &closure.ModuleDef{Name: name, Value: value}
}
