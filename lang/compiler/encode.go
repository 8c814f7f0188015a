package compiler

import (
	"io"

	"github.com/vmihailenco/msgpack/v5"
	"tlog.app/go/errors"
)

const objMagic = "curry-obj"

// object is the serialized form of a Program. Constants are tagged
// explicitly so that they decode to the same Go types.
type object struct {
	Magic     string
	Version   int
	Filename  string
	Names     []string
	Constants []objConst
	Toplevel  *Funcode
	Functions []*Funcode
	Exports   []string
}

type objConst struct {
	Int    int64
	Str    string
	IsText bool
}

// Encode writes the object file encoding of p to w.
func Encode(w io.Writer, p *Program) error {
	obj := object{
		Magic:     objMagic,
		Version:   Version,
		Filename:  p.Filename,
		Names:     p.Names,
		Toplevel:  p.Toplevel,
		Functions: p.Functions,
		Exports:   p.Exports,
	}
	for _, c := range p.Constants {
		switch c := c.(type) {
		case int64:
			obj.Constants = append(obj.Constants, objConst{Int: c})
		case string:
			obj.Constants = append(obj.Constants, objConst{Str: c, IsText: true})
		default:
			return errors.New("unsupported constant type: %T", c)
		}
	}

	if err := msgpack.NewEncoder(w).Encode(&obj); err != nil {
		return errors.Wrap(err, "encode %v", p.Filename)
	}
	return nil
}

// Decode reads a Program from its object file encoding.
func Decode(r io.Reader) (*Program, error) {
	var obj object
	if err := msgpack.NewDecoder(r).Decode(&obj); err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	if obj.Magic != objMagic {
		return nil, errors.New("not an object file")
	}
	if obj.Version != Version {
		return nil, errors.New("object file version %d, want %d: recompile %v", obj.Version, Version, obj.Filename)
	}
	if obj.Toplevel == nil {
		return nil, errors.New("missing top-level function")
	}

	p := &Program{
		Filename:  obj.Filename,
		Names:     obj.Names,
		Toplevel:  obj.Toplevel,
		Functions: obj.Functions,
		Exports:   obj.Exports,
	}
	for _, c := range obj.Constants {
		if c.IsText {
			p.Constants = append(p.Constants, c.Str)
		} else {
			p.Constants = append(p.Constants, c.Int)
		}
	}
	p.Toplevel.Prog = p
	for _, fn := range p.Functions {
		fn.Prog = p
	}
	return p, nil
}
