package maincmd

import (
	"context"
	"fmt"

	"github.com/mna/curry/lang/machine"
	"github.com/mna/curry/lang/parser"
	"github.com/mna/curry/lang/resolver"
	"github.com/mna/curry/lang/scanner"
	"github.com/mna/curry/lang/token"
	"github.com/mna/mainer"
)

func (c *Cmd) Resolve(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return ResolveFiles(ctx, stdio, c.posMode(), args...)
}

// ResolveFiles prints how each identifier of the files is resolved, one per
// line.
func ResolveFiles(ctx context.Context, stdio mainer.Stdio, posMode token.PosMode, files ...string) error {
	chunks, perr := parser.ParseFiles(ctx, 0, files...)
	if perr != nil {
		// cannot resolve AST if parsing has errors
		scanner.PrintError(stdio.Stderr, perr)
		return perr
	}

	resolved, rerr := resolver.ResolveFiles(ctx, chunks, resolver.RecordUses, machine.IsUniverse)
	for _, ch := range resolved {
		for _, u := range ch.Uses {
			if pos := token.FormatPos(posMode, ch.Name, u.Pos, true); pos != "" {
				fmt.Fprintf(stdio.Stdout, "%s: ", pos)
			}
			fmt.Fprintf(stdio.Stdout, "%s %s", u.Name, u.Scope)
			if u.Scope == resolver.Free {
				fmt.Fprintf(stdio.Stdout, " %d", u.Borders)
			}
			if u.Assign {
				fmt.Fprint(stdio.Stdout, " assign")
			}
			fmt.Fprintln(stdio.Stdout)
		}
	}
	if rerr != nil {
		scanner.PrintError(stdio.Stderr, rerr)
	}
	return rerr
}
