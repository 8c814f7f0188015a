package compiler

import (
	"sort"
	"sync"
)

// Kind is the kind of a compiled unit. It determines how the machine lays
// out the frame of the unit and how many arguments a call to an instance
// of it consumes.
type Kind uint8

// List of unit kinds.
const (
	Toplevel Kind = iota // module body, no parameter
	Fun1                 // closure taking one argument, slot 0 is the instance
	Fun2                 // closure taking two arguments, slot 0 is the instance
	Static               // unit called without instance, parameters start at slot 0
	Init                 // one-time initializer of a shared unit instance
	maxKind
)

var kindNames = [...]string{
	Toplevel: "toplevel",
	Fun1:     "fun1",
	Fun2:     "fun2",
	Static:   "static",
	Init:     "init",
}

func (k Kind) String() string {
	if k < maxKind {
		return kindNames[k]
	}
	return "kind(?)"
}

// Program is a compiled module.
type Program struct {
	Filename  string
	Names     []string   // names of predeclared, module bindings and exception classes
	Constants []any      // int64 | string
	Toplevel  *Funcode   // module body
	Functions []*Funcode // all other units, referenced by index
	Exports   []string   // names of the module bindings, in definition order
}

// Public returns the published units of the program, indexed by name.
func (p *Program) Public() map[string]*Funcode {
	m := make(map[string]*Funcode)
	for _, fn := range p.Functions {
		if fn.Public {
			m[fn.Name] = fn
		}
	}
	return m
}

// A Funcode is the code of a compiled unit.
type Funcode struct {
	Prog      *Program `msgpack:"-"`
	Name      string
	Kind      Kind
	Public    bool  // exposed by name, only for shared units
	Shared    bool  // instance is a process-wide singleton
	Init      int32 // index of the Init unit of a shared unit, -1 if none
	Code      []byte
	LineTab   []uint32 // pairs of pc and line, sorted by pc
	NumParams int
	NumLocals int // including parameters and the instance slot
	MaxStack  int
	Fields    []Field   // storage of captured values
	Handlers  []Handler // exception handlers, in lookup order

	// -- transient state --

	lntOnce sync.Once
	lnt     []pcline
}

type pcline struct {
	pc, line uint32
}

// Field is a storage slot of a unit instance.
type Field struct {
	Name string
	Type string // storage descriptor
}

// Handler is an exception handler range of a unit. The handler at StartPC
// runs for exceptions raised by instructions in [PC0, PC1) that match the
// class named by Names[Class], or any exception if Class is -1.
type Handler struct {
	PC0, PC1 uint32
	StartPC  uint32
	Class    int32
}

// Covers returns true if pc is inside the handler's range.
func (h Handler) Covers(pc int64) bool {
	return int64(h.PC0) <= pc && pc < int64(h.PC1)
}

// Line returns the source line of the instruction at pc, or 0 if unknown.
func (fn *Funcode) Line(pc uint32) int {
	fn.lntOnce.Do(func() {
		fn.lnt = make([]pcline, 0, len(fn.LineTab)/2)
		for i := 0; i+1 < len(fn.LineTab); i += 2 {
			fn.lnt = append(fn.lnt, pcline{pc: fn.LineTab[i], line: fn.LineTab[i+1]})
		}
	})

	// the last entry with pc <= the requested pc
	i := sort.Search(len(fn.lnt), func(i int) bool { return fn.lnt[i].pc > pc })
	if i == 0 {
		return 0
	}
	return int(fn.lnt[i-1].line)
}

// Unit returns the unit at index i of the program's functions.
func (p *Program) Unit(i uint32) *Funcode {
	return p.Functions[i]
}
