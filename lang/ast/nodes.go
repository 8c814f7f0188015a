package ast

import (
	"fmt"
	"os"
	"strings"

	"github.com/mna/curry/lang/token"
)

type (
	// Chunk represents a whole source file. It keeps track of its name and the
	// EOF, which is useful for empty files to get a valid position.
	Chunk struct {
		// Name is the filename, which may be empty if the chunk is not a file.
		Name string

		// Comments is filled only if parsing comments was requested, and it lists
		// comments ordered by position in the chunk. Note that the comments are
		// not necessarily associated with the *Chunk, see each Comment.Node field
		// for the associated node.
		Comments []*Comment

		// Forms is the list of top-level forms of the chunk.
		Forms []Form
		EOF   token.Pos // position of the EOF marker
	}

	// Comment represents a single line comment.
	Comment struct {
		// Node this comment is associated with, only set if parsing comments was
		// requested, and only after parsing (via post-processing).
		Node     Node
		Start    token.Pos // Position of the starting ';'
		Raw, Val string
	}
)

func (n *Chunk) Format(f fmt.State, verb rune) {
	lbl := "chunk"
	if n.Name != "" {
		lbl += " " + strings.ReplaceAll(n.Name, string(os.PathSeparator), "/")
	}
	format(f, verb, n, lbl, map[string]int{"forms": len(n.Forms)})
}
func (n *Chunk) Span() (start, end token.Pos) {
	if len(n.Forms) == 0 {
		return n.EOF, n.EOF
	}
	start, _ = n.Forms[0].Span()
	_, end = n.Forms[len(n.Forms)-1].Span()
	return start, end
}
func (n *Chunk) Walk(v Visitor) {
	for _, f := range n.Forms {
		Walk(v, f)
	}
}

func (n *Comment) Format(f fmt.State, verb rune) { format(f, verb, n, "comment "+n.Val, nil) }
func (n *Comment) Span() (start, end token.Pos) { return n.Start, n.Start.Add(len(n.Raw)) }
func (n *Comment) Walk(_ Visitor) {}
