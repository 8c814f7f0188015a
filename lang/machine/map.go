package machine

import (
	"github.com/dolthub/swiss"
)

// A globals holds the module bindings of a Module, indexed by name.
type globals struct {
	m *swiss.Map[string, Value]
}

// newGlobals returns globals with initial capacity for at least size
// bindings.
func newGlobals(size int) globals {
	return globals{m: swiss.NewMap[string, Value](uint32(size))}
}

func (g globals) get(name string) (Value, bool) {
	return g.m.Get(name)
}

func (g globals) set(name string, v Value) {
	g.m.Put(name, v)
}
