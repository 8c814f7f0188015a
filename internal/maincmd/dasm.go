package maincmd

import (
	"context"

	"github.com/mna/curry/lang/closure"
	"github.com/mna/curry/lang/compiler"
	"github.com/mna/mainer"
)

func (c *Cmd) Dasm(ctx context.Context, stdio mainer.Stdio, args []string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return printError(stdio, err)
	}
	return DasmFiles(ctx, stdio, cfg.Options(), args...)
}

// DasmFiles compiles the files and prints the disassembly of each program.
func DasmFiles(ctx context.Context, stdio mainer.Stdio, opts closure.Options, files ...string) error {
	progs, errs := compileFiles(ctx, opts, files)

	var failed error
	for i, p := range progs {
		if errs[i] != nil {
			failed = errs[i]
			printCompileError(stdio, errs[i])
			continue
		}
		b, err := compiler.Dasm(p)
		if err != nil {
			failed = err
			printError(stdio, err)
			continue
		}
		if i > 0 {
			stdio.Stdout.Write([]byte("\n"))
		}
		stdio.Stdout.Write(b)
	}
	return failed
}
