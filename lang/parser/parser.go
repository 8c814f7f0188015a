package parser

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/curry/lang/ast"
	"github.com/mna/curry/lang/scanner"
	"github.com/mna/curry/lang/token"
)

// Mode is a set of bit flags that configures the parsing. By default (0), the
// AST is parsed fully, all errors are reported and comments are ignored.
type Mode uint

// List of supported parsing modes, which can be combined with bitwise or.
const (
	Comments Mode = 1 << iota // parse and report comments, associate them with their AST node.
)

// MaxDepth is the maximum nesting depth of lists.
const MaxDepth = 1000

// ParseFiles is a helper function that parses the source files and returns
// the ASTs along with any error encountered. The error, if non-nil, is
// guaranteed to be a scanner.ErrorList.
func ParseFiles(ctx context.Context, mode Mode, files ...string) ([]*ast.Chunk, error) {
	if len(files) == 0 {
		return nil, nil
	}

	var p parser
	p.parseComments = mode&Comments != 0

	res := make([]*ast.Chunk, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			p.errors.Add(token.Position{Filename: file}, err.Error())
			break
		}

		b, err := os.ReadFile(file)
		if err != nil {
			p.errors.Add(token.Position{Filename: file}, err.Error())
			continue
		}

		p.init(file, b)
		res = append(res, p.parseChunk())
	}
	p.errors.Sort()
	return res, p.errors.Err()
}

// ParseChunk is a helper function that parses a single chunk from a slice of
// bytes and returns the AST and any error encountered. The filename is used
// for position reporting. The error, if non-nil, is guaranteed to be a
// scanner.ErrorList.
func ParseChunk(mode Mode, filename string, src []byte) (*ast.Chunk, error) {
	var p parser
	p.parseComments = mode&Comments != 0
	p.init(filename, src)
	ch := p.parseChunk()
	p.errors.Sort()
	return ch, p.errors.Err()
}

// parser parses source files and generates an AST.
type parser struct {
	// those fields are immutable after p.init
	parseComments bool
	scanner       scanner.Scanner
	errors        scanner.ErrorList
	filename      string

	// current token
	tok token.Token
	val token.Value

	// current list nesting
	depth int

	// this field is only used when parseComments is true, pending comments are
	// those skipped over by p.advance, stored here until they are processed
	// post-parse.
	pendingComments []*ast.Comment
}

func (p *parser) init(filename string, src []byte) {
	p.filename = filename
	p.scanner.Init(filename, src, p.errors.Add)
	p.pendingComments = nil
	p.depth = 0

	// advance to first token
	p.advance()
}

// advance to the next non-comment token.
func (p *parser) advance() {
	for {
		p.tok = p.scanner.Scan(&p.val)
		if p.tok != token.COMMENT {
			return
		}
		if p.parseComments {
			p.pendingComments = append(p.pendingComments, &ast.Comment{
				Start: p.val.Pos,
				Raw:   p.val.Raw,
				Val:   p.val.String,
			})
		}
	}
}

func (p *parser) error(pos token.Pos, msg string) {
	p.errors.Add(token.PositionOf(p.filename, pos), msg)
}

func (p *parser) errorf(pos token.Pos, msg string, args ...any) {
	p.error(pos, fmt.Sprintf(msg, args...))
}
