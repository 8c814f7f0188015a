package parser

import (
	"github.com/mna/curry/lang/ast"
	"github.com/mna/curry/lang/token"
)

// processComments associates each pending comment with the innermost list
// that contains it, or with the chunk for top-level comments.
func (p *parser) processComments(chunk *ast.Chunk) {
	for _, c := range p.pendingComments {
		c.Node = enclosingNode(chunk, c.Start)
	}
	chunk.Comments = p.pendingComments
}

// enclosingNode returns the innermost list of chunk whose parentheses
// surround pos, or chunk itself.
func enclosingNode(chunk *ast.Chunk, pos token.Pos) ast.Node {
	var innermost ast.Node = chunk
	ast.Inspect(chunk, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.Chunk:
			return true
		case *ast.List:
			start, end := n.Span()
			if !before(pos, start) && before(pos, end) {
				innermost = n
				return true
			}
		}
		return false
	})
	return innermost
}

// before returns true if position a comes before b.
func before(a, b token.Pos) bool {
	al, ac := a.LineCol()
	bl, bc := b.LineCol()
	return al < bl || (al == bl && ac < bc)
}
