package scanner

import (
	"fmt"
	"io"
	"sort"

	"github.com/mna/curry/lang/token"
)

// Error is a source error at a given position.
type Error struct {
	Pos token.Position
	Msg string
}

func (e Error) Error() string {
	if e.Pos.Filename != "" || e.Pos.IsValid() {
		return e.Pos.String() + ": " + e.Msg
	}
	return e.Msg
}

// ErrorList is a list of source errors. The zero value is an empty list
// ready to use.
type ErrorList []*Error

// Add adds an error with the specified position and message.
func (p *ErrorList) Add(pos token.Position, msg string) {
	*p = append(*p, &Error{Pos: pos, Msg: msg})
}

// Len returns the number of errors.
func (p ErrorList) Len() int { return len(p) }

// Sort sorts the list by file name, line and column. Errors at the same
// position keep their relative order.
func (p ErrorList) Sort() {
	sort.SliceStable(p, func(i, j int) bool {
		e, f := p[i].Pos, p[j].Pos
		if e.Filename != f.Filename {
			return e.Filename < f.Filename
		}
		if e.Line != f.Line {
			return e.Line < f.Line
		}
		return e.Col < f.Col
	})
}

func (p ErrorList) Error() string {
	switch len(p) {
	case 0:
		return "no errors"
	case 1:
		return p[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", p[0], len(p)-1)
}

// Err returns an error equivalent to this error list. If the list is empty,
// Err returns nil.
func (p ErrorList) Err() error {
	if len(p) == 0 {
		return nil
	}
	return p
}

// Unwrap returns the list of errors.
func (p ErrorList) Unwrap() []error {
	errs := make([]error, len(p))
	for i, e := range p {
		errs[i] = e
	}
	return errs
}

// PrintError is a utility function that prints a list of errors to w, one
// error per line, if the err parameter is an ErrorList. Otherwise it prints
// the err string.
func PrintError(w io.Writer, err error) {
	if list, ok := err.(ErrorList); ok {
		for _, e := range list {
			fmt.Fprintf(w, "%s\n", e)
		}
	} else if err != nil {
		fmt.Fprintf(w, "%s\n", err)
	}
}
