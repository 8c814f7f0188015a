package machine

import (
	"context"
	"io"
	"os"
	"sync/atomic"

	"github.com/mna/curry/lang/compiler"
	"tlog.app/go/errors"
)

// Thread is the state of execution of a program. A Thread must not be used
// concurrently.
type Thread struct {
	// Name is an optional name that describes the thread, mostly for debugging.
	Name string

	// Stdout is the output of the print builtin. If nil, os.Stdout is used.
	Stdout io.Writer

	// MaxSteps is the maximum number of "steps", a deliberately unspecified
	// measure of machine execution time, before the thread is cancelled. A value
	// <= 0 means no limit.
	MaxSteps int

	// DisableRecursion prevents recursive execution of units when set to
	// true. It incurs a small performance cost for the runtime verification on
	// each call but can be a useful safety check when executing untrusted
	// code. Self-recursive tail calls compiled to loops are not affected.
	DisableRecursion bool

	// MaxCallStackDepth limits the number of nested calls. If the limit is
	// reached, execution fails with a non-catchable error. A value <= 0 means
	// no limit.
	MaxCallStackDepth int

	// Predeclared overrides or extends the Universe builtins.
	Predeclared map[string]Value

	ctx       context.Context
	ctxCancel context.CancelCauseFunc
	callStack []*Frame
	cancelled atomic.Bool

	steps, maxSteps uint64
}

// ErrMaxSteps is the cause of the cancellation of a thread that exceeded
// its MaxSteps.
var ErrMaxSteps = errors.New("maximum number of steps exceeded")

// begin initializes the thread for a call from the host. It returns the
// function to call when the host call returns. Nested calls from builtins
// reuse the state of the outer call.
func (th *Thread) begin(ctx context.Context) func() {
	if len(th.callStack) > 0 {
		return func() {}
	}

	if th.MaxSteps <= 0 {
		th.maxSteps = 0
		th.maxSteps-- // (MaxUint64)
	} else {
		th.maxSteps = uint64(th.MaxSteps)
	}
	th.steps = 0
	th.cancelled.Store(false)

	th.ctx, th.ctxCancel = context.WithCancelCause(ctx)
	stop := context.AfterFunc(th.ctx, func() {
		th.cancelled.Store(true)
	})
	return func() {
		stop()
		th.ctxCancel(nil)
	}
}

func (th *Thread) stdout() io.Writer {
	if th.Stdout != nil {
		return th.Stdout
	}
	return os.Stdout
}

// CallStack returns a description of the active frames, innermost last.
func (th *Thread) CallStack() []string {
	s := make([]string, 0, len(th.callStack))
	for _, fr := range th.callStack {
		s = append(s, fr.String())
	}
	return s
}

// RunProgram loads the program in a new Module and runs its toplevel. It
// returns the Module and the result of the toplevel.
func (th *Thread) RunProgram(ctx context.Context, p *compiler.Program) (*Module, Value, error) {
	m := NewModule(p)
	v, err := th.RunModule(ctx, m)
	return m, v, err
}

// RunModule runs the toplevel of the module unless it already ran, and
// returns its result.
func (th *Thread) RunModule(ctx context.Context, m *Module) (Value, error) {
	defer th.begin(ctx)()

	if err := m.init(th); err != nil {
		return nil, err
	}
	return m.result, nil
}

// CallPublic calls the published unit name of the module with args. The
// module's toplevel is run on demand by the unit if it needs it.
func (th *Thread) CallPublic(ctx context.Context, m *Module, name string, args ...Value) (Value, error) {
	defer th.begin(ctx)()

	ix, ok := m.unitIndex(name)
	if !ok {
		return nil, errors.New("no published unit %s in %s", name, m.Program.Filename)
	}
	fn, err := m.staticInstance(th, ix)
	if err != nil {
		return nil, err
	}
	return call(th, fn, args)
}

// Call calls the function value fn with args.
func (th *Thread) Call(ctx context.Context, fn Value, args ...Value) (Value, error) {
	defer th.begin(ctx)()
	return call(th, fn, args)
}
