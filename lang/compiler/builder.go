// Package compiler implements the emission layer of the compiler: the
// bytecode of the stack machine, the program and unit data structures, and
// the Builder and Unit types used as the code sink by the closure
// conversion layer. It also provides the textual assembler format and the
// object file encoding of compiled programs.
package compiler

import (
	"fmt"

	"fortio.org/safecast"
	"github.com/dolthub/swiss"
	"tlog.app/go/loc"
)

// EmitError is raised (via panic) when a unit is emitted in an inconsistent
// way, which is always a bug in the caller of the Builder.
type EmitError struct {
	Unit string
	Msg  string
	Loc  loc.PC
}

func (e *EmitError) Error() string {
	return fmt.Sprintf("emit %s: %s (at %v)", e.Unit, e.Msg, e.Loc)
}

// Builder assembles a Program from the units emitted into it. It owns the
// program-wide pools of names, constants and units.
type Builder struct {
	prog      *Program
	names     *swiss.Map[string, uint32]
	constants *swiss.Map[any, uint32]
	units     *swiss.Map[*Funcode, uint32]
	exports   *swiss.Map[string, bool]
	open      int
}

// NewBuilder returns a Builder for the program of the named file.
func NewBuilder(filename string) *Builder {
	return &Builder{
		prog:      &Program{Filename: filename},
		names:     swiss.NewMap[string, uint32](8),
		constants: swiss.NewMap[any, uint32](8),
		units:     swiss.NewMap[*Funcode, uint32](8),
		exports:   swiss.NewMap[string, bool](4),
	}
}

// Program returns the program built so far. All units must be closed.
func (b *Builder) Program() *Program {
	if b.open != 0 {
		panic(&EmitError{Unit: b.prog.Filename, Msg: fmt.Sprintf("%d unit(s) still open", b.open), Loc: loc.Caller(1)})
	}
	return b.prog
}

// NameIndex returns the index of name in the names pool.
func (b *Builder) NameIndex(name string) uint32 {
	if ix, ok := b.names.Get(name); ok {
		return ix
	}
	ix := safecast.MustConv[uint32](len(b.prog.Names))
	b.names.Put(name, ix)
	b.prog.Names = append(b.prog.Names, name)
	return ix
}

// ConstantIndex returns the index of v in the constants pool. The value
// must be an int64 or a string.
func (b *Builder) ConstantIndex(v any) uint32 {
	switch v.(type) {
	case int64, string:
	default:
		panic(&EmitError{Unit: b.prog.Filename, Msg: fmt.Sprintf("unsupported constant type %T", v), Loc: loc.Caller(1)})
	}
	if ix, ok := b.constants.Get(v); ok {
		return ix
	}
	ix := safecast.MustConv[uint32](len(b.prog.Constants))
	b.constants.Put(v, ix)
	b.prog.Constants = append(b.prog.Constants, v)
	return ix
}

// UnitIndex returns the index of fn in the program's functions.
func (b *Builder) UnitIndex(fn *Funcode) uint32 {
	if ix, ok := b.units.Get(fn); ok {
		return ix
	}
	ix := safecast.MustConv[uint32](len(b.prog.Functions))
	b.units.Put(fn, ix)
	b.prog.Functions = append(b.prog.Functions, fn)
	return ix
}

// Export records name as a module binding of the program.
func (b *Builder) Export(name string) {
	if !b.exports.Has(name) {
		b.exports.Put(name, true)
		b.prog.Exports = append(b.prog.Exports, name)
	}
}

// NewUnit opens a new unit of the specified kind. The unit must be closed
// before the program is complete. Opening a unit does not affect the
// emission of any other open unit.
func (b *Builder) NewUnit(kind Kind, name string, nparams int) *Unit {
	fn := &Funcode{
		Prog:      b.prog,
		Name:      name,
		Kind:      kind,
		NumParams: nparams,
		Init:      -1,
	}

	u := &Unit{Fn: fn, b: b}
	switch kind {
	case Toplevel:
		if b.prog.Toplevel != nil {
			panic(&EmitError{Unit: name, Msg: "toplevel unit already exists", Loc: loc.Caller(1)})
		}
		b.prog.Toplevel = fn
	case Fun1, Fun2:
		u.LocalVarCount = nparams + 1
		b.UnitIndex(fn)
	default:
		u.LocalVarCount = nparams
		b.UnitIndex(fn)
	}
	b.open++
	return u
}

// Label identifies a position in the code of a unit.
type Label int

type insn struct {
	op   Opcode
	arg  uint32
	line uint32
}

type handlerRange struct {
	start, end, target Label
	class              int32
}

// Unit is the code sink of a unit under construction.
type Unit struct {
	Fn *Funcode

	// LocalVarCount is the bump counter of local slots, it starts after the
	// instance and parameter slots.
	LocalVarCount int

	b        *Builder
	line     uint32
	insns    []insn
	labels   []int // index of the instruction following each label, -1 if unmarked
	handlers []handlerRange
	closed   bool
}

// Builder returns the Builder that owns the unit.
func (u *Unit) Builder() *Builder { return u.b }

func (u *Unit) fail(format string, args ...any) {
	panic(&EmitError{Unit: u.Fn.Name, Msg: fmt.Sprintf(format, args...), Loc: loc.Caller(2)})
}

func (u *Unit) checkOpen() {
	if u.closed {
		u.fail("unit is closed")
	}
}

// NewLabel creates a new, unmarked label.
func (u *Unit) NewLabel() Label {
	u.labels = append(u.labels, -1)
	return Label(len(u.labels) - 1)
}

// MarkLabel sets the label to the position of the next emitted instruction.
func (u *Unit) MarkLabel(l Label) {
	u.checkOpen()
	if u.labels[l] != -1 {
		u.fail("label %d marked twice", l)
	}
	u.labels[l] = len(u.insns)
}

// SetLine sets the source line of the instructions emitted next.
func (u *Unit) SetLine(line int) {
	if line > 0 {
		u.line = safecast.MustConv[uint32](line)
	}
}

// Emit emits an instruction without operand.
func (u *Unit) Emit(op Opcode) {
	u.checkOpen()
	if op >= OpcodeArgMin {
		u.fail("opcode %s requires an operand", op)
	}
	u.insns = append(u.insns, insn{op: op, line: u.line})
}

// Emit1 emits an instruction with an operand. Jumps must use Jump instead.
func (u *Unit) Emit1(op Opcode, arg uint32) {
	u.checkOpen()
	if op < OpcodeArgMin || isJump(op) {
		u.fail("opcode %s cannot be emitted with Emit1", op)
	}
	u.insns = append(u.insns, insn{op: op, arg: arg, line: u.line})
}

// Jump emits a jump instruction to label l.
func (u *Unit) Jump(op Opcode, l Label) {
	u.checkOpen()
	if !isJump(op) {
		u.fail("opcode %s is not a jump", op)
	}
	u.insns = append(u.insns, insn{op: op, arg: uint32(l), line: u.line})
}

// DeclareField declares a storage field on the instances of the unit and
// returns its index.
func (u *Unit) DeclareField(name, typ string) uint32 {
	u.checkOpen()
	u.Fn.Fields = append(u.Fn.Fields, Field{Name: name, Type: typ})
	return safecast.MustConv[uint32](len(u.Fn.Fields) - 1)
}

// AllocLocal allocates a new local slot.
func (u *Unit) AllocLocal() uint32 {
	ix := safecast.MustConv[uint32](u.LocalVarCount)
	u.LocalVarCount++
	return ix
}

// Handler registers an exception handler for the instructions between
// labels start (inclusive) and end (exclusive). An empty class matches any
// exception. Handlers are looked up in registration order.
func (u *Unit) Handler(start, end, target Label, class string) {
	u.checkOpen()
	h := handlerRange{start: start, end: end, target: target, class: -1}
	if class != "" {
		h.class = safecast.MustConv[int32](u.b.NameIndex(class))
	}
	u.handlers = append(u.handlers, h)
}

// Close resolves the labels of the unit, encodes its instructions and
// computes its stack size.
func (u *Unit) Close() {
	u.checkOpen()

	for l, ix := range u.labels {
		if ix == -1 && u.labelUsed(Label(l)) {
			u.fail("label %d used but never marked", l)
		}
	}

	addrs := make([]uint32, len(u.insns)+1)
	var addr int
	for i, in := range u.insns {
		addrs[i] = safecast.MustConv[uint32](addr)
		addr += encodedSize(in.op, in.arg)
	}
	addrs[len(u.insns)] = safecast.MustConv[uint32](addr)
	labelAddr := func(l Label) uint32 { return addrs[u.labels[l]] }

	fn := u.Fn
	fn.Code = make([]byte, 0, addr)
	var lastLine uint32
	for _, in := range u.insns {
		arg := in.arg
		if isJump(in.op) {
			arg = labelAddr(Label(arg))
		}
		if in.line != 0 && in.line != lastLine {
			fn.LineTab = append(fn.LineTab, safecast.MustConv[uint32](len(fn.Code)), in.line)
			lastLine = in.line
		}
		fn.Code = encodeInsn(fn.Code, in.op, arg)
	}

	for _, h := range u.handlers {
		fn.Handlers = append(fn.Handlers, Handler{
			PC0:     labelAddr(h.start),
			PC1:     labelAddr(h.end),
			StartPC: labelAddr(h.target),
			Class:   h.class,
		})
	}

	fn.MaxStack = u.maxStack()
	fn.NumLocals = u.LocalVarCount
	u.closed = true
	u.b.open--
}

func (u *Unit) labelUsed(l Label) bool {
	for _, in := range u.insns {
		if isJump(in.op) && Label(in.arg) == l {
			return true
		}
	}
	for _, h := range u.handlers {
		if h.start == l || h.end == l || h.target == l {
			return true
		}
	}
	return false
}

// maxStack computes the maximum depth of the operand stack by following
// every path of the unit's control flow. The depth must be the same on all
// paths reaching an instruction.
func (u *Unit) maxStack() int {
	depth := make([]int, len(u.insns)+1)
	for i := range depth {
		depth[i] = -1
	}

	var work []int
	reach := func(i, d int) {
		switch {
		case depth[i] == -1:
			depth[i] = d
			work = append(work, i)
		case depth[i] != d:
			u.fail("inconsistent stack depth at instruction %d: %d and %d", i, depth[i], d)
		}
	}

	reach(0, 0)
	for _, h := range u.handlers {
		// the raised exception is the only value on the handler's stack
		reach(u.labels[h.target], 1)
	}

	var maxDepth int
	for len(work) > 0 {
		i := work[len(work)-1]
		work = work[:len(work)-1]

		d := depth[i]
		if d > maxDepth {
			maxDepth = d
		}
		if i == len(u.insns) {
			u.fail("control reaches the end of the unit")
		}

		in := u.insns[i]
		d += u.effect(in)
		if d < 0 {
			u.fail("stack underflow at instruction %d (%s)", i, in.op)
		}
		if d > maxDepth {
			maxDepth = d
		}
		if isJump(in.op) {
			reach(u.labels[in.arg], d)
		}
		if !terminates(in.op) {
			reach(i+1, d)
		}
	}
	return maxDepth
}

func (u *Unit) effect(in insn) int {
	switch in.op {
	case CALL:
		return -int(in.arg)
	case CALLSTATIC:
		return 1 - u.b.prog.Functions[in.arg].NumParams
	}
	se := stackEffect[in.op]
	if se == variableStackEffect {
		u.fail("no stack effect for %s", in.op)
	}
	return int(se)
}

func encodeInsn(code []byte, op Opcode, arg uint32) []byte {
	code = append(code, byte(op))
	if op >= OpcodeArgMin {
		if isJump(op) {
			code = addUint32(code, arg, 4) // pad arg to 4 bytes
		} else {
			code = addUint32(code, arg, 0)
		}
	}
	return code
}

// addUint32 encodes x as 7-bit little-endian varint.
func addUint32(code []byte, x uint32, min int) []byte {
	end := len(code) + min
	for x >= 0x80 {
		code = append(code, byte(x)|0x80)
		x >>= 7
	}
	code = append(code, byte(x))
	// Pad the operand with NOPs to exactly min bytes.
	for len(code) < end {
		code = append(code, byte(NOP))
	}
	return code
}
