package closure_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/mna/curry/lang/closure"
	"github.com/mna/curry/lang/compiler"
	"github.com/mna/curry/lang/machine"
	"github.com/mna/curry/lang/parser"
	"github.com/mna/curry/lang/resolver"
	"github.com/mna/curry/lang/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func compile(t *testing.T, src string, opts closure.Options) *compiler.Program {
	t.Helper()

	ch, err := parser.ParseChunk(0, "test.cy", []byte(src))
	require.NoError(t, err)
	res, err := resolver.ResolveChunk(ch, 0, machine.IsUniverse)
	require.NoError(t, err)
	p, err := closure.Compile(context.Background(), res.Name, res.Root, opts)
	require.NoError(t, err)
	return p
}

func run(t *testing.T, th *machine.Thread, src string, opts closure.Options) (machine.Value, error) {
	t.Helper()
	p := compile(t, src, opts)
	_, v, err := th.RunProgram(context.Background(), p)
	return v, err
}

const sumLoop = `
(let-rec loop (fn (n acc)
  (if (== n 0) acc (loop (- n 1) (+ acc n))))
  (loop 100000 0))
`

const nestedSumLoop = `
(let-rec loop (fn n (fn acc
  (if (== n 0) acc (loop (- n 1) (+ acc n)))))
  (loop 100000 0))
`

func TestCompileRun(t *testing.T) {
	cases := []struct {
		desc string
		src  string
		want machine.Value
	}{
		{"arith", "(+ 1 (* 2 3))", machine.Int(7)},
		{"string concat", `(+ "a" "b")`, machine.String("ab")},
		{"if without else", "(if false 1)", machine.Nil},
		{"curried call", "(let f (fn (a b) (- a b)) (f 10 3))", machine.Int(7)},
		{"nested call", "(let f (fn (a b) (- a b)) ((f 10) 3))", machine.Int(7)},
		{"partial", "(let f (fn (a b) (- a b)) (let g (f 10) (seq (g 1) (g 3))))", machine.Int(7)},
		{"three args", "(let f (fn (a b c) (+ a (* b c))) (f 1 2 3))", machine.Int(7)},
		{"nested fn call", "(let f (fn x (fn y (- x y))) (f 10 3))", machine.Int(7)},
		{"nested fn curried call", "(let f (fn x (fn y (- x y))) ((f 10) 3))", machine.Int(7)},
		{"nested fn partial", "(let f (fn x (fn y (- x y))) (let g (f 10) (g 3)))", machine.Int(7)},
		{"nested fn captures", "(let z 100 (let f (fn x (fn y (- x (+ y z)))) (f 10 3)))", machine.Int(-93)},
		{"nested fn three args", "(let f (fn a (fn (b c) (+ a (* b c)))) (f 1 2 3))", machine.Int(7)},
		{"nested fn flattened call", "(let f (fn x (fn y (+ x y))) (== ((f 1) 2) (f 1 2)))", machine.Bool(true)},
		{"nested fn loop", nestedSumLoop, machine.Int(5000050000)},
		{"closure", "(let add (fn a (let g (fn b (+ a b)) g)) ((add 3) 4))", machine.Int(7)},
		{"inline", "((fn x (+ x 1)) 41)", machine.Int(42)},
		{"const fn", "(let k (fn _ 42) (k 7))", machine.Int(42)},
		{"unit apply", "(let f (fn _ 1) (f))", machine.Int(1)},
		{"loop", sumLoop, machine.Int(5000050000)},
		{"module def", "(def double (fn x (* x 2)))\n(double 21)", machine.Int(42)},
		{"module value", "(def base 40)\n(let f (fn x (+ x base)) (f 2))", machine.Int(42)},
		{"predeclared", "(str 42)", machine.String("42")},
		{"shadowed operator", "(let + (fn x (* x 2)) (+ 21))", machine.Int(42)},
		{"var", "(var x 1 (seq (set x (+ x 1)) x))", machine.Int(2)},
		{"boxed var shared by siblings", `
(var n 0
  (let inc (fn x (set n (+ n x)))
    (let get (fn _ n)
      (seq (inc 5) (inc 7) (get unit)))))`, machine.Int(12)},
		{"var in function", `
(let count (fn n
  (var i 0
    (var acc 0
      (let step (fn _ (seq (set acc (+ acc i)) (set i (+ i 1))))
        (let-rec go (fn _ (if (< i n) (seq (step unit) (go unit)) acc))
          (go unit))))))
  (count 5))`, machine.Int(10)},
		{"self tail call in let", `
(let-rec down (fn n (let m (- n 1) (if (< m 0) 0 (down m))))
  (down 1000))`, machine.Int(0)},
		{"shared identity", "(let get (fn n (let id (fn x x) id)) (== (get 1) (get 2)))", machine.Bool(true)},
		{"distinct instances", "(let get (fn n (let f (fn x (+ x n)) f)) (== (get 1) (get 1)))", machine.Bool(false)},
		{"catch", "(try (throw Oops 42) (catch Oops e 1))", machine.Int(1)},
		{"catch parent class", "(try (/ 1 0) (catch RuntimeError e 5))", machine.Int(5)},
		{"catch second clause", "(try (throw Oops 1) (catch Other e 1) (catch Oops e 2))", machine.Int(2)},
		{"try no exception", "(try (+ 1 1) (catch Oops e 0) (finally 3))", machine.Int(2)},
		{"try captures", "(let x 3 (var y 4 (try (seq (set y 5) (+ x y)) (catch Oops e 0))))", machine.Int(8)},
		{"rethrown through finally", "(try (try (throw Oops 1) (finally 0)) (catch Oops e 7))", machine.Int(7)},
		{"try in expression", "(+ 1 (try (throw Oops 1) (catch Oops e 2)))", machine.Int(3)},
		{"cleanup throw replaces exception", "(try (try (throw Oops 1) (finally (throw Other 2))) (catch Oops e 10) (catch Other e 20))", machine.Int(20)},
		{"first matching handler", "(try (/ 1 0) (catch RuntimeError e 1) (catch ArithmeticError e 2))", machine.Int(1)},
	}
	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			var th machine.Thread
			th.MaxCallStackDepth = 64
			v, err := run(t, &th, c.src, closure.Options{})
			require.NoError(t, err)
			assert.Equal(t, c.want, v)
		})
	}
}

func TestOptionsPreserveResults(t *testing.T) {
	srcs := []string{
		"(let f (fn (a b) (- a b)) (f 10 3))",
		"((fn x (+ x 1)) 41)",
		"(let k (fn _ 42) (k 7))",
		"(let get (fn n (let id (fn x x) id)) ((get 1) 7))",
	}
	opts := []closure.Options{
		{NoInline: true},
		{NoShare: true},
		{NoTailCalls: true, NoInline: true, NoShare: true},
	}
	for _, src := range srcs {
		var th machine.Thread
		want, err := run(t, &th, src, closure.Options{})
		require.NoError(t, err)
		for _, o := range opts {
			got, err := run(t, &th, src, o)
			require.NoError(t, err)
			assert.Equal(t, want, got, "%s with %+v", src, o)
		}
	}
}

func TestTailCalls(t *testing.T) {
	var th machine.Thread
	th.MaxCallStackDepth = 8

	v, err := run(t, &th, sumLoop, closure.Options{})
	require.NoError(t, err)
	assert.Equal(t, machine.Int(5000050000), v)

	_, err = run(t, &th, sumLoop, closure.Options{NoTailCalls: true})
	require.ErrorContains(t, err, "call stack depth exceeded")

	v, err = run(t, &th, nestedSumLoop, closure.Options{})
	require.NoError(t, err)
	assert.Equal(t, machine.Int(5000050000), v)

	_, err = run(t, &th, nestedSumLoop, closure.Options{NoTailCalls: true})
	require.ErrorContains(t, err, "call stack depth exceeded")
}

func TestUncaught(t *testing.T) {
	var th machine.Thread
	_, err := run(t, &th, "(try (throw Oops 1) (catch Other e 2))", closure.Options{})
	var exc *machine.Exception
	require.True(t, errors.As(err, &exc), "%v", err)
	assert.Equal(t, "Oops", exc.Class)
}

func TestTryOrder(t *testing.T) {
	cases := []struct {
		desc string
		src  string
		want machine.Value
		out  string
	}{
		{"catch then finally", `
(try
  (seq (print "body") (throw Oops 1) (print "unreachable"))
  (catch Oops e (seq (print "catch") 2))
  (finally (print "finally")))`, machine.Int(2), "body\ncatch\nfinally\n"},
		{"finally on normal exit", `(try (seq (print "b") 5) (finally (print "f")))`, machine.Int(5), "b\nf\n"},
		{"finally before outer handler", `
(try
  (try (seq (print "b") (throw Oops 1)) (finally (print "f")))
  (catch Oops e (seq (print "c") 3)))`, machine.Int(3), "b\nf\nc\n"},
		{"throwing finally", `
(try
  (try (throw Oops 1) (finally (seq (print "f") (throw Other 2))))
  (catch Oops e (seq (print "oops") 10))
  (catch Other e (seq (print "other") 20)))`, machine.Int(20), "f\nother\n"},
		{"only first matching handler", `
(try (/ 1 0)
  (catch RuntimeError e (seq (print "first") 1))
  (catch ArithmeticError e (seq (print "second") 2)))`, machine.Int(1), "first\n"},
	}
	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			var buf bytes.Buffer
			th := machine.Thread{Stdout: &buf}
			v, err := run(t, &th, c.src, closure.Options{})
			require.NoError(t, err)
			assert.Equal(t, c.want, v)
			assert.Equal(t, c.out, buf.String())
		})
	}
}

func TestConstFunctionHasNoUnit(t *testing.T) {
	p := compile(t, "(let k (fn _ 42) (k 7))", closure.Options{})
	assert.Empty(t, p.Functions)

	p = compile(t, "((fn x (+ x 1)) 41)", closure.Options{})
	assert.Empty(t, p.Functions)
	p = compile(t, "((fn x (+ x 1)) 41)", closure.Options{NoInline: true})
	assert.NotEmpty(t, p.Functions)
}

func TestMergedFunctionUnit(t *testing.T) {
	p := compile(t, "(let f (fn (a b) (- a b)) (f 10 3))", closure.Options{})

	var kinds []compiler.Kind
	for _, fn := range p.Functions {
		kinds = append(kinds, fn.Kind)
	}
	// the merged two-argument unit and the init of its shared instance
	assert.ElementsMatch(t, []compiler.Kind{compiler.Fun2, compiler.Init}, kinds)

	// a function written as a nested lambda is merged the same way
	p2 := compile(t, "(let f (fn a (fn b (- a b))) (f 10 3))", closure.Options{})
	b1, err := compiler.Dasm(p)
	require.NoError(t, err)
	b2, err := compiler.Dasm(p2)
	require.NoError(t, err)
	assert.Equal(t, string(b1), string(b2))
}

func TestSetBodyBuiltInner(t *testing.T) {
	// an inner function with its body already built is not merged, it
	// captures the argument of the outer function.
	outer := closure.NewFunction(nil)
	inner := closure.NewFunction(nil)
	x := inner.RefProxy(outer.GetRef())
	inner.SetBody(closure.NewBinOp(compiler.MINUS, x, inner.GetRef(), types.IntType, 1))
	outer.SetBody(inner)

	f := closure.NewBind("f", outer, false)
	call := closure.NewApply(f.GetRef(), closure.NewConst(int64(10)), types.NewFun(types.IntType, types.IntType), 1)
	f.Body = closure.NewApply(call, closure.NewConst(int64(3)), types.IntType, 1)

	p, err := closure.Compile(context.Background(), "test.cy", &closure.RootClosure{Body: f}, closure.Options{})
	require.NoError(t, err)

	var kinds []compiler.Kind
	for _, fn := range p.Functions {
		kinds = append(kinds, fn.Kind)
	}
	assert.NotContains(t, kinds, compiler.Fun2)

	var th machine.Thread
	_, v, err := th.RunProgram(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, machine.Int(7), v)
}

func TestPublish(t *testing.T) {
	p := compile(t, "(def base 10)\n(def add (fn x (+ x base)))", closure.Options{})
	assert.Equal(t, []string{"base", "add"}, p.Exports)
	require.Contains(t, p.Public(), "test$add")

	// the module toplevel runs on demand
	var th machine.Thread
	m := machine.NewModule(p)
	v, err := th.CallPublic(context.Background(), m, "test$add", machine.Int(1))
	require.NoError(t, err)
	assert.Equal(t, machine.Int(11), v)
}

func TestNoSharePublish(t *testing.T) {
	p := compile(t, "(def id (fn x x))", closure.Options{NoShare: true})
	assert.Empty(t, p.Public())
}

func TestDasmRoundTrip(t *testing.T) {
	srcs := []string{
		sumLoop,
		"(var n 0 (let inc (fn x (set n (+ n x))) (seq (inc 1) n)))",
		"(try (throw Oops 1) (catch Oops e 2) (finally 3))",
	}
	for _, src := range srcs {
		p := compile(t, src, closure.Options{})
		b1, err := compiler.Dasm(p)
		require.NoError(t, err)
		p2, err := compiler.Asm(b1)
		require.NoError(t, err)
		b2, err := compiler.Dasm(p2)
		require.NoError(t, err)
		assert.Equal(t, string(b1), string(b2))
	}
}

func TestUnresolvedStorageType(t *testing.T) {
	// a mutable binding that is assigned and captured, but that no closure
	// declared, cannot be boxed.
	b := closure.NewBind("v", closure.NewConst(int64(1)), true)
	fn := closure.NewFunction(nil)
	ref := fn.RefProxy(b.GetRef())
	require.True(t, closure.Flagop(ref, closure.FlagAssign))
	fn.SetBody(closure.Assign(ref, closure.NewConst(int64(2))))
	b.Body = fn
	root := &closure.RootClosure{Body: b}

	_, err := closure.Compile(context.Background(), "test.cy", root, closure.Options{})
	var ie *closure.InternalError
	require.True(t, errors.As(err, &ie), "%v", err)
	assert.ErrorContains(t, err, "unresolved storage type")
}

func TestModuleName(t *testing.T) {
	cases := map[string]string{
		"a/b/test.cy": "test",
		"x.cy":        "x",
		"":            "main",
	}
	for in, want := range cases {
		assert.Equal(t, want, closure.ModuleName(in), in)
	}
}
