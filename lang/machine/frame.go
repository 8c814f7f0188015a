package machine

import (
	"fmt"

	"github.com/mna/curry/lang/compiler"
)

// Frame records a call to a compiled unit (including module toplevel).
type Frame struct {
	fcode *compiler.Funcode
	pc    uint32 // program counter of the current instruction
}

// Name returns the name of the unit executing in this frame.
func (fr *Frame) Name() string { return fr.fcode.Name }

// Line returns the source line of the current point of execution in this
// frame, or 0 if unknown.
func (fr *Frame) Line() int { return fr.fcode.Line(fr.pc) }

func (fr *Frame) String() string {
	return fmt.Sprintf("%s:%d", fr.Name(), fr.Line())
}
