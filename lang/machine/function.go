package machine

import (
	"fmt"
	"sync"

	"github.com/mna/curry/lang/compiler"
	"tlog.app/go/errors"
)

// A Function is an instance of a compiled Fun1 or Fun2 unit, with the
// storage of its captured values.
type Function struct {
	Funcode *compiler.Funcode
	Module  *Module
	Fields  []Value
}

var _ Value = (*Function)(nil)

func (fn *Function) String() string { return fmt.Sprintf("function(%s)", fn.Name()) }
func (fn *Function) Type() string   { return "function" }
func (fn *Function) Name() string {
	nm := fn.Funcode.Name
	if nm == "" {
		nm = "unknown"
	}
	return nm
}

// A Module is the dynamic counterpart to a compiler.Program, which is the unit
// of compilation. All functions in the same program share a module.
type Module struct {
	Program   *compiler.Program
	Constants []Value

	globals globals
	statics []static

	// module initialization state
	state  initState
	result Value
	err    error
}

type initState int

const (
	notInitialized initState = iota
	initializing
	initialized
)

// static is the registry slot of the shared instance of a unit. The
// instance is created by the unit's init code, exactly once.
type static struct {
	once sync.Once
	v    Value
	err  error
}

// NewModule returns the Module of a compiled program, ready to run.
func NewModule(p *compiler.Program) *Module {
	m := &Module{
		Program:   p,
		Constants: make([]Value, len(p.Constants)),
		globals:   newGlobals(len(p.Exports)),
		statics:   make([]static, len(p.Functions)),
	}
	for i, c := range p.Constants {
		switch c := c.(type) {
		case int64:
			m.Constants[i] = Int(c)
		case string:
			m.Constants[i] = String(c)
		default:
			panic(fmt.Sprintf("unexpected constant %T: %[1]v", c))
		}
	}
	return m
}

// Global returns the value of the module binding name, and whether it is
// set.
func (m *Module) Global(name string) (Value, bool) {
	return m.globals.get(name)
}

// staticInstance returns the shared instance of the unit at index ix,
// running its init code on first use.
func (m *Module) staticInstance(th *Thread, ix uint32) (Value, error) {
	s := &m.statics[ix]
	s.once.Do(func() {
		fcode := m.Program.Functions[ix]
		if !fcode.Shared || fcode.Init < 0 {
			s.err = errors.New("unit %s has no shared instance", fcode.Name)
			return
		}
		if _, err := th.callUnit(m, m.Program.Functions[fcode.Init], nil, nil); err != nil {
			s.err = err
			return
		}
		if s.v == nil {
			s.err = errors.New("init of unit %s did not set the shared instance", fcode.Name)
		}
	})
	return s.v, s.err
}

// init runs the module's toplevel unless it already ran. A nested request
// while the toplevel is running returns immediately.
func (m *Module) init(th *Thread) error {
	switch m.state {
	case initialized:
		return m.err
	case initializing:
		return nil
	}

	m.state = initializing
	m.result, m.err = th.callUnit(m, m.Program.Toplevel, nil, nil)
	m.state = initialized
	return m.err
}

// unitIndex returns the index of the published unit name.
func (m *Module) unitIndex(name string) (uint32, bool) {
	for i, fn := range m.Program.Functions {
		if fn.Public && fn.Name == name {
			return uint32(i), true
		}
	}
	return 0, false
}
