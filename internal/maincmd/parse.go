package maincmd

import (
	"context"
	"fmt"

	"github.com/mna/curry/lang/ast"
	"github.com/mna/curry/lang/parser"
	"github.com/mna/curry/lang/scanner"
	"github.com/mna/curry/lang/token"
	"github.com/mna/mainer"
)

func (c *Cmd) Parse(ctx context.Context, stdio mainer.Stdio, args []string) error {
	var parseMode parser.Mode
	if c.WithComments {
		parseMode |= parser.Comments
	}
	return ParseFiles(ctx, stdio, parseMode, c.posMode(), "", args...)
}

// ParseFiles prints the syntax tree of each file, using nodeFmt to format the
// nodes (see ast.Printer).
func ParseFiles(ctx context.Context, stdio mainer.Stdio, parseMode parser.Mode, posMode token.PosMode, nodeFmt string, files ...string) error {
	printer := ast.Printer{
		Output:  stdio.Stdout,
		Pos:     posMode,
		NodeFmt: nodeFmt,
	}
	chunks, err := parser.ParseFiles(ctx, parseMode, files...)
	for _, ch := range chunks {
		if err := printer.Print(ch, ch.Name); err != nil {
			fmt.Fprintln(stdio.Stderr, err)
			return err
		}
	}
	if err != nil {
		scanner.PrintError(stdio.Stderr, err)
	}
	return err
}
