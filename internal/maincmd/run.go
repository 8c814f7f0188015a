package maincmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mna/curry/internal/config"
	"github.com/mna/curry/lang/compiler"
	"github.com/mna/mainer"
	"tlog.app/go/errors"
)

func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return printError(stdio, err)
	}
	return RunFile(ctx, stdio, cfg, args[0])
}

// RunFile runs the program of file, which is either a source file or an
// object file, and prints its result.
func RunFile(ctx context.Context, stdio mainer.Stdio, cfg *config.Config, file string) error {
	var p *compiler.Program
	if filepath.Ext(file) == ObjectExt {
		var err error
		if p, err = readObject(file); err != nil {
			return printError(stdio, err)
		}
	} else {
		var err error
		if p, err = compileSource(ctx, cfg.Options(), file); err != nil {
			printCompileError(stdio, err)
			return err
		}
	}

	th := cfg.Thread()
	th.Name = file
	th.Stdout = stdio.Stdout
	_, v, err := th.RunProgram(ctx, p)
	if err != nil {
		return printError(stdio, err)
	}
	fmt.Fprintln(stdio.Stdout, v)
	return nil
}

func readObject(path string) (*compiler.Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open object file")
	}
	defer f.Close()
	return compiler.Decode(f)
}
