package parser

import (
	"github.com/mna/curry/lang/ast"
	"github.com/mna/curry/lang/token"
)

func (p *parser) parseChunk() *ast.Chunk {
	chunk := ast.Chunk{Name: p.filename}

	for p.tok != token.EOF {
		if p.tok == token.RPAREN {
			p.error(p.val.Pos, "unexpected ')'")
			chunk.Forms = append(chunk.Forms, &ast.BadForm{Start: p.val.Pos, End: p.val.End()})
			p.advance()
			continue
		}
		chunk.Forms = append(chunk.Forms, p.parseForm())
	}
	chunk.EOF = p.val.Pos

	if p.parseComments {
		p.processComments(&chunk)
	}
	return &chunk
}

func (p *parser) parseForm() ast.Form {
	switch p.tok {
	case token.LPAREN:
		return p.parseList()

	case token.ILLEGAL:
		// already reported by the scanner
		bad := &ast.BadForm{Start: p.val.Pos, End: p.val.End()}
		p.advance()
		return bad

	default:
		atom := &ast.Atom{Tok: p.tok, Value: p.val}
		p.advance()
		return atom
	}
}

func (p *parser) parseList() ast.Form {
	var list ast.List
	list.Lparen = p.val.Pos
	p.advance()

	p.depth++
	defer func() { p.depth-- }()
	if p.depth > MaxDepth {
		p.errorf(list.Lparen, "maximum nesting depth of %d exceeded", MaxDepth)
		return &ast.BadForm{Start: list.Lparen, End: p.skipList()}
	}

	for p.tok != token.RPAREN && p.tok != token.EOF {
		list.Items = append(list.Items, p.parseForm())
	}
	if p.tok == token.EOF {
		p.error(list.Lparen, "list not terminated, expected ')'")
		return &list
	}
	list.Rparen = p.val.Pos
	p.advance()
	return &list
}

// skipList skips tokens up to and including the ')' that closes the current
// list and returns the end position of the skipped tokens.
func (p *parser) skipList() token.Pos {
	end := p.val.Pos
	for nest := 1; p.tok != token.EOF; {
		switch p.tok {
		case token.LPAREN:
			nest++
		case token.RPAREN:
			nest--
		}
		end = p.val.End()
		p.advance()
		if nest == 0 {
			break
		}
	}
	return end
}
