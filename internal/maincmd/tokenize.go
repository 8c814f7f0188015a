package maincmd

import (
	"context"
	"fmt"

	"github.com/mna/curry/lang/scanner"
	"github.com/mna/curry/lang/token"
	"github.com/mna/mainer"
)

func (c *Cmd) Tokenize(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return TokenizeFiles(ctx, stdio, c.posMode(), args...)
}

// TokenizeFiles prints the tokens of each file, one per line, prefixed with
// the token position formatted according to posMode.
func TokenizeFiles(ctx context.Context, stdio mainer.Stdio, posMode token.PosMode, files ...string) error {
	toksByFile, err := scanner.ScanFiles(ctx, files...)
	for i, toks := range toksByFile {
		for _, tok := range toks {
			if pos := token.FormatPos(posMode, files[i], tok.Value.Pos, true); pos != "" {
				fmt.Fprintf(stdio.Stdout, "%s: ", pos)
			}
			fmt.Fprint(stdio.Stdout, tok.Token)
			if lit := tok.Token.Literal(tok.Value); lit != "" {
				fmt.Fprintf(stdio.Stdout, " %s", lit)
			}
			fmt.Fprintln(stdio.Stdout)
		}
	}
	if err != nil {
		scanner.PrintError(stdio.Stderr, err)
	}
	return err
}
