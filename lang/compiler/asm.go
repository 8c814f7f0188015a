package compiler

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"fortio.org/safecast"
	"tlog.app/go/errors"
)

// This asm file implements a human-readable/writable form of a compiled
// program. It supports testing of the machine without going through the
// closure conversion layer, and the disassembler is used to inspect and
// compare generated code.
//
// The assembly format looks like this (indentation and spacing is arbitrary,
// but order of sections is important):
//
// 	program:                             # required
// 		names:                             # optional, list of Names
// 			print
// 		constants:                         # optional, list of Constants
// 			string "abc"
// 			int    1234
// 		exports:                           # optional, list of module bindings
// 			f
//
// 	function: NAME KIND <stack> <params> <locals> +shared +public init=N
// 	                                     # required at least once for top-level
// 		fields:                            # optional, list of Fields
// 			_0 V
// 		handlers:                          # optional, list of Handlers
// 			10 20 5 Failure                  # index of pc0-pc1 and startpc in code section (will be translated to pc address), class or *
// 		code:                              # required, list of instructions
// 			NOP
// 			JMP 3                            # jump argument refers to index in code section (will be translated to pc address)
// 			CALL 2

var sections = map[string]bool{
	"program:":   true,
	"names:":     true,
	"constants:": true,
	"exports:":   true,
	"function:":  true,
	"fields:":    true,
	"handlers:":  true,
	"code:":      true,
}

// Asm loads a compiled program from its assembler textual format.
func Asm(b []byte) (*Program, error) {
	asm := asm{s: bufio.NewScanner(bytes.NewReader(b))}

	// must start with the program: section
	fields := asm.next()
	asm.program(fields)

	// optional sections
	fields = asm.next()
	fields = asm.names(fields)
	fields = asm.constants(fields)
	fields = asm.exports(fields)

	// functions
	for asm.err == nil && len(fields) > 0 && fields[0] == "function:" {
		fields = asm.function(fields)
	}

	if asm.err == nil {
		if len(fields) > 0 {
			asm.err = errors.New("unexpected section: %s", fields[0])
		} else if asm.p.Toplevel == nil {
			asm.err = errors.New("missing top-level function")
		}
	}
	return asm.p, asm.err
}

type asm struct {
	s       *bufio.Scanner
	rawLine string // current raw line (not split in fields)
	p       *Program
	fn      *Funcode // current function
	err     error
}

func (a *asm) function(fields []string) []string {
	if a.err != nil || len(fields) == 0 || !strings.EqualFold(fields[0], "function:") {
		return fields
	}

	if len(fields) < 6 {
		a.err = errors.New("invalid function: want at least 6 fields: 'function: NAME KIND <stack> <params> <locals> [+shared] [+public] [init=N]', got %d fields (%s)", len(fields), strings.Join(fields, " "))
		// force going forward, otherwise it would still process that line
		fields = a.next()
		return fields
	}
	kind, ok := lookupKind(fields[2])
	if !ok {
		a.err = errors.New("invalid function kind: %s", fields[2])
		return a.next()
	}
	fn := &Funcode{
		Prog:      a.p,
		Name:      fields[1],
		Kind:      kind,
		MaxStack:  int(a.int(fields[3])),
		NumParams: int(a.int(fields[4])),
		NumLocals: int(a.int(fields[5])),
		Shared:    a.option(fields[6:], "shared"),
		Public:    a.option(fields[6:], "public"),
		Init:      a.initIndex(fields[6:]),
	}
	a.fn = fn

	// function sub-sections
	fields = a.next()
	fields = a.fields(fields)
	fields = a.handlers(fields)
	fields, indexToAddr := a.code(fields)

	if a.err == nil {
		// resolve the handler addresses
		if err := resolveHandlers(indexToAddr, a.fn.Handlers); err != nil {
			a.err = err
			return fields
		}
	}

	a.fn = nil
	if a.p.Toplevel == nil {
		if fn.Kind != Toplevel {
			a.err = errors.New("first function must be the toplevel, got %s", fn.Kind)
			return fields
		}
		a.p.Toplevel = fn
	} else {
		a.p.Functions = append(a.p.Functions, fn)
	}
	return fields
}

func lookupKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if strings.EqualFold(name, s) {
			return Kind(k), true
		}
	}
	return 0, false
}

func (a *asm) initIndex(fields []string) int32 {
	for _, fld := range fields {
		if v, ok := strings.CutPrefix(fld, "init="); ok {
			return int32(a.int(v))
		}
	}
	return -1
}

// resolveHandlers translates the handlers' instruction indices (one past the
// last instruction is allowed for PC1) to addresses.
func resolveHandlers(indexToAddr []int, handlers []Handler) error {
	for i, h := range handlers {
		if h.PC0 >= uint32(len(indexToAddr)) {
			return errors.New("invalid PC0 index %d: handler at index %d", h.PC0, i)
		}
		h.PC0 = uint32(indexToAddr[h.PC0])

		if h.PC1 >= uint32(len(indexToAddr)) {
			return errors.New("invalid PC1 index %d: handler at index %d", h.PC1, i)
		}
		h.PC1 = uint32(indexToAddr[h.PC1])

		if h.StartPC >= uint32(len(indexToAddr)) {
			return errors.New("invalid StartPC index %d: handler at index %d", h.StartPC, i)
		}
		h.StartPC = uint32(indexToAddr[h.StartPC])
		handlers[i] = h
	}
	return nil
}

// parses code section and translates jump addresses to addresses, returning
// both the next fields to parse and the mapping of instruction index in the
// code section to address in the encoded code slice. The mapping has an
// extra entry for the address following the last instruction.
func (a *asm) code(fields []string) ([]string, []int) {
	var indexToAddr []int
	if a.err != nil {
		return fields, indexToAddr
	}
	if len(fields) == 0 || !strings.EqualFold(fields[0], "code:") {
		msg := "expected code section"
		if len(fields) > 0 {
			msg += ", found " + fields[0]
		}
		a.err = errors.New("%s", msg)
		return fields, indexToAddr
	}

	var insns []insn
	var addr int
	for fields = a.next(); len(fields) > 0 && !sections[fields[0]]; fields = a.next() {
		op, ok := reverseLookupOpcode[strings.ToLower(fields[0])]
		if !ok {
			a.err = errors.New("invalid opcode: %s", fields[0])
			return fields, indexToAddr
		}

		var arg uint32
		if op >= OpcodeArgMin {
			// an argument is required
			if len(fields) != 2 {
				a.err = errors.New("expected an argument for opcode %s, got %d fields", fields[0], len(fields))
				return fields, indexToAddr
			}
			arg = a.uint32(fields[1])
		} else if len(fields) != 1 {
			a.err = errors.New("expected no argument for opcode %s, got %d fields", fields[0], len(fields))
			return fields, indexToAddr
		}
		insns = append(insns, insn{op: op, arg: arg})
		indexToAddr = append(indexToAddr, addr)
		addr += encodedSize(op, arg)
	}
	indexToAddr = append(indexToAddr, addr)

	// encode the instructions with the translated addresses
	for i, insn := range insns {
		op, arg := insn.op, insn.arg
		if isJump(op) {
			if arg >= uint32(len(insns)) {
				a.err = errors.New("invalid jump index %d: instruction %s at index %d", arg, op, i)
				return fields, indexToAddr
			}
			arg = uint32(indexToAddr[arg])
		}
		a.fn.Code = encodeInsn(a.fn.Code, op, arg)
	}

	return fields, indexToAddr
}

func (a *asm) handlers(fields []string) []string {
	if a.err != nil || len(fields) == 0 || !strings.EqualFold(fields[0], "handlers:") {
		return fields
	}

	for fields = a.next(); len(fields) > 0 && !sections[fields[0]]; fields = a.next() {
		if len(fields) != 4 {
			a.err = errors.New("invalid handler: expected pc0, pc1, startpc and class, got %d fields", len(fields))
			return fields
		}

		class := int32(-1)
		if fields[3] != "*" {
			class = a.nameIndex(fields[3])
		}
		a.fn.Handlers = append(a.fn.Handlers, Handler{
			PC0:     a.uint32(fields[0]),
			PC1:     a.uint32(fields[1]),
			StartPC: a.uint32(fields[2]),
			Class:   class,
		})
	}
	return fields
}

func (a *asm) nameIndex(name string) int32 {
	for i, n := range a.p.Names {
		if n == name {
			return int32(i)
		}
	}
	a.p.Names = append(a.p.Names, name)
	return int32(len(a.p.Names) - 1)
}

func (a *asm) fields(fields []string) []string {
	if a.err != nil || len(fields) == 0 || !strings.EqualFold(fields[0], "fields:") {
		return fields
	}

	for fields = a.next(); len(fields) > 0 && !sections[fields[0]]; fields = a.next() {
		if len(fields) != 2 {
			a.err = errors.New("invalid field: expected name and type, got %d fields", len(fields))
			return fields
		}
		a.fn.Fields = append(a.fn.Fields, Field{Name: fields[0], Type: fields[1]})
	}
	return fields
}

var rxConstLineString = regexp.MustCompile(`^\s*string\s+(.+)$`)

func (a *asm) constants(fields []string) []string {
	if a.err != nil || len(fields) == 0 || !strings.EqualFold(fields[0], "constants:") {
		return fields
	}

	for fields = a.next(); len(fields) > 0 && !sections[fields[0]]; fields = a.next() {
		// string constants may have whitespace in the value, need to keep the
		// raw line around and extract the whole quoted value from the raw line.
		strVal := rxConstLineString.FindStringSubmatch(a.rawLine)
		if strVal == nil && len(fields) != 2 {
			a.err = errors.New("invalid constant: expected type and value, got %d fields", len(fields))
			return fields
		}

		switch fields[0] {
		case "int":
			a.p.Constants = append(a.p.Constants, a.int(fields[1]))
		case "string":
			qs, err := strconv.QuotedPrefix(strVal[1])
			if err != nil {
				a.err = errors.Wrap(err, "invalid string: %q", strVal[1])
				return fields
			}
			s, err := strconv.Unquote(qs)
			if err != nil {
				a.err = errors.Wrap(err, "invalid string: %q", qs)
				return fields
			}
			a.p.Constants = append(a.p.Constants, s)
		default:
			a.err = errors.New("invalid constant type: %s", fields[0])
			return fields
		}
	}
	return fields
}

func (a *asm) names(fields []string) []string {
	if a.err != nil || len(fields) == 0 || !strings.EqualFold(fields[0], "names:") {
		return fields
	}

	for fields = a.next(); len(fields) > 0 && !sections[fields[0]]; fields = a.next() {
		a.p.Names = append(a.p.Names, fields[0])
	}
	return fields
}

func (a *asm) exports(fields []string) []string {
	if a.err != nil || len(fields) == 0 || !strings.EqualFold(fields[0], "exports:") {
		return fields
	}

	for fields = a.next(); len(fields) > 0 && !sections[fields[0]]; fields = a.next() {
		a.p.Exports = append(a.p.Exports, fields[0])
	}
	return fields
}

func (a *asm) program(fields []string) {
	if a.err != nil {
		return
	}
	if len(fields) == 0 || !strings.EqualFold(fields[0], "program:") {
		msg := "expected program section"
		if len(fields) > 0 {
			msg += ", found " + fields[0]
		}
		a.err = errors.New("%s", msg)
		return
	}

	var p Program
	a.p = &p
}

func (a *asm) option(fields []string, opt string) bool {
	for _, fld := range fields {
		if fld == "+"+opt {
			return true
		}
		if fld == "-"+opt {
			break
		}
	}
	return false
}

func (a *asm) int(s string) int64 {
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil && a.err == nil {
		a.err = errors.Wrap(err, "invalid integer: %s", s)
	}
	return i
}

func (a *asm) uint32(s string) uint32 {
	u, err := strconv.ParseUint(s, 10, 32)
	if err != nil && a.err == nil {
		a.err = errors.Wrap(err, "invalid unsigned integer: %s", s)
	}
	return uint32(u)
}

// returns the fields for the next non-empty, non-comment-only line, so that
// fields[0] will contain the line identification if it is a section.
func (a *asm) next() []string {
	a.rawLine = ""
	if a.err != nil {
		return nil
	}
	for a.s.Scan() {
		line := a.s.Text()
		fields := strings.Fields(line)
		if len(fields) != 0 && !strings.HasPrefix(fields[0], "#") {
			// strip comments to make rest of parsing simpler
			for i, fld := range fields {
				if strings.HasPrefix(fld, "#") {
					fields = fields[:i]
					break
				}
			}
			a.rawLine = line
			return fields
		}
	}
	a.err = a.s.Err()
	return nil
}

// Dasm writes a compiled program to its assembler textual format.
func Dasm(p *Program) ([]byte, error) {
	d := dasm{p: p, buf: new(bytes.Buffer)}
	d.program()
	d.write("\n")

	if d.p.Toplevel == nil {
		d.err = errors.New("missing top-level function")
	}
	if d.err == nil {
		d.function(p.Toplevel)
		for _, fn := range p.Functions {
			d.write("\n")
			d.function(fn)
		}
	}

	return d.buf.Bytes(), d.err
}

type dasm struct {
	p   *Program
	buf *bytes.Buffer
	err error
}

func (d *dasm) function(fn *Funcode) {
	if d.err != nil {
		return
	}

	d.writef("function: %s %s %d %d %d", fn.Name, fn.Kind, fn.MaxStack, fn.NumParams, fn.NumLocals)
	if fn.Shared {
		d.write(" +shared")
	}
	if fn.Public {
		d.write(" +public")
	}
	if fn.Init >= 0 {
		d.writef(" init=%d", fn.Init)
	}
	d.write("\n")

	if len(fn.Fields) > 0 {
		d.write("\tfields:\n")
		for i, f := range fn.Fields {
			d.writef("\t\t%s\t%s\t# %03d\n", f.Name, f.Type, i)
		}
	}

	// decode all instructions to translate addresses to index
	insns, addrToIndex := d.decode(fn)
	if d.err != nil {
		return
	}

	if len(fn.Handlers) > 0 {
		d.write("\thandlers:\n")
		for i, h := range fn.Handlers {
			if err := translateHandler(addrToIndex, &h, fn.Name, i); err != nil { //nolint:gosec
				d.err = err
				return
			}
			class := "*"
			if h.Class >= 0 {
				if int(h.Class) >= len(d.p.Names) {
					d.err = errors.New("invalid handler class %d in function %s, handler %d", h.Class, fn.Name, i)
					return
				}
				class = d.p.Names[h.Class]
			}
			d.writef("\t\t%03d %03d %03d %s\t# %03d\n", h.PC0, h.PC1, h.StartPC, class, i)
		}
	}

	d.write("\tcode:\n")
	for i, insn := range insns {
		op, arg := insn.op, insn.arg
		if op >= OpcodeArgMin {
			if isJump(op) {
				if int(arg) >= len(addrToIndex) || addrToIndex[arg] == -1 {
					d.err = errors.New("invalid jump address %d in function %s, instruction %d (%s)", arg, fn.Name, i, op)
					return
				}
				arg = safecast.MustConv[uint32](addrToIndex[arg])
			}
			d.writef("\t\t%s %03d\t# %03d\n", op, arg, i)
		} else {
			d.writef("\t\t%s\t# %03d\n", op, i)
		}
	}
}

// decode returns the instructions of fn and the mapping of code address to
// instruction index, which has an extra entry for the end of the code.
func (d *dasm) decode(fn *Funcode) ([]insn, []int) {
	var insns []insn
	addrToIndex := make([]int, len(fn.Code)+1)
	// initialize to -1 to identify invalid jumps
	for i := range addrToIndex {
		addrToIndex[i] = -1
	}
	var addr int
	for addr < len(fn.Code) {
		op := Opcode(fn.Code[addr])
		sz := 1

		var arg uint32
		if op >= OpcodeArgMin {
			v, n := binary.Uvarint(fn.Code[addr+1:])
			if n <= 0 || v > math.MaxUint32 {
				d.err = errors.New("invalid uvarint argument in function %s code at index %d (%s)", fn.Name, addr, op)
				return nil, nil
			}
			arg = uint32(v)

			if isJump(op) && n < 4 {
				n = 4
			}
			sz += n
		}

		addrToIndex[addr] = len(insns)
		insns = append(insns, insn{op: op, arg: arg})
		addr += sz
	}
	addrToIndex[len(fn.Code)] = len(insns)
	return insns, addrToIndex
}

func translateHandler(addrToIndex []int, h *Handler, fnName string, i int) error {
	if h.PC0 >= uint32(len(addrToIndex)) || addrToIndex[h.PC0] < 0 {
		return errors.New("invalid handler.pc0 address in function %s, handler %d", fnName, i)
	}
	if h.PC1 >= uint32(len(addrToIndex)) || addrToIndex[h.PC1] < 0 {
		return errors.New("invalid handler.pc1 address in function %s, handler %d", fnName, i)
	}
	if h.StartPC >= uint32(len(addrToIndex)) || addrToIndex[h.StartPC] < 0 {
		return errors.New("invalid handler.startpc address in function %s, handler %d", fnName, i)
	}

	h.PC0 = safecast.MustConv[uint32](addrToIndex[h.PC0])
	h.PC1 = safecast.MustConv[uint32](addrToIndex[h.PC1])
	h.StartPC = safecast.MustConv[uint32](addrToIndex[h.StartPC])
	return nil
}

func (d *dasm) program() {
	d.write("program:")
	d.write("\n")

	if len(d.p.Names) > 0 {
		d.write("\tnames:\n")
		for i, n := range d.p.Names {
			d.writef("\t\t%s\t# %03d\n", n, i)
		}
	}
	if len(d.p.Constants) > 0 {
		d.write("\tconstants:\n")
		for i, c := range d.p.Constants {
			switch c := c.(type) {
			case string:
				d.writef("\t\tstring\t%q\t# %03d\n", c, i)
			case int64:
				d.writef("\t\tint\t%d\t# %03d\n", c, i)
			default:
				d.err = errors.New("unsupported constant type: %T", c)
				return
			}
		}
	}
	if len(d.p.Exports) > 0 {
		d.write("\texports:\n")
		for i, n := range d.p.Exports {
			d.writef("\t\t%s\t# %03d\n", n, i)
		}
	}
}

func (d *dasm) writef(s string, args ...any) {
	d.write(fmt.Sprintf(s, args...))
}

func (d *dasm) write(s string) {
	if d.err != nil {
		return
	}
	_, d.err = d.buf.WriteString(s)
}
