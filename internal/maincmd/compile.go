package maincmd

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mna/curry/lang/closure"
	"github.com/mna/curry/lang/compiler"
	"github.com/mna/curry/lang/machine"
	"github.com/mna/curry/lang/parser"
	"github.com/mna/curry/lang/resolver"
	"github.com/mna/curry/lang/scanner"
	"github.com/mna/mainer"
	"golang.org/x/sync/errgroup"
	"tlog.app/go/errors"
)

// ObjectExt is the extension of the object files.
const ObjectExt = ".cyo"

func (c *Cmd) Compile(ctx context.Context, stdio mainer.Stdio, args []string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return printError(stdio, err)
	}
	return CompileFiles(ctx, stdio, cfg.Options(), c.Output, args...)
}

// CompileFiles compiles the source files and writes their object file in
// outDir, or next to the source file if outDir is empty. The path of each
// object file is printed in the order of files.
func CompileFiles(ctx context.Context, stdio mainer.Stdio, opts closure.Options, outDir string, files ...string) error {
	progs, errs := compileFiles(ctx, opts, files)

	var failed error
	for i, p := range progs {
		if errs[i] != nil {
			failed = errs[i]
			printCompileError(stdio, errs[i])
			continue
		}

		out := objectPath(files[i], outDir)
		if err := writeObject(out, p); err != nil {
			failed = err
			printError(stdio, err)
			continue
		}
		stdio.Stdout.Write([]byte(out + "\n"))
	}
	return failed
}

func objectPath(file, outDir string) string {
	out := strings.TrimSuffix(file, filepath.Ext(file)) + ObjectExt
	if outDir != "" {
		out = filepath.Join(outDir, filepath.Base(out))
	}
	return out
}

func writeObject(path string, p *compiler.Program) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create object file")
	}
	defer func() {
		if e := f.Close(); e != nil && err == nil {
			err = errors.Wrap(e, "close object file")
		}
	}()
	return compiler.Encode(f, p)
}

// compileFiles compiles each file concurrently. The programs and errors
// are returned in the order of files.
func compileFiles(ctx context.Context, opts closure.Options, files []string) ([]*compiler.Program, []error) {
	progs := make([]*compiler.Program, len(files))
	errs := make([]error, len(files))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			progs[i], errs[i] = compileSource(ctx, opts, file)
			return nil
		})
	}
	_ = g.Wait()
	return progs, errs
}

// compileSource runs all compilation phases on the source file.
func compileSource(ctx context.Context, opts closure.Options, file string) (*compiler.Program, error) {
	chunks, err := parser.ParseFiles(ctx, 0, file)
	if err != nil {
		return nil, err
	}
	res, err := resolver.ResolveFiles(ctx, chunks, 0, machine.IsUniverse)
	if err != nil {
		return nil, err
	}
	return closure.Compile(ctx, res[0].Name, res[0].Root, opts)
}

// printCompileError prints the source errors one per line, and any other
// error with the error prefix.
func printCompileError(stdio mainer.Stdio, err error) {
	var el scanner.ErrorList
	if errors.As(err, &el) {
		scanner.PrintError(stdio.Stderr, el)
		return
	}
	printError(stdio, err)
}
