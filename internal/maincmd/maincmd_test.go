package maincmd_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mna/curry/internal/maincmd"
	"github.com/mna/mainer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loopSrc = `
(let-rec loop (fn (n acc)
  (if (== n 0) acc (loop (- n 1) (+ acc n))))
  (loop 1000 0))
`

func runMain(t *testing.T, args ...string) (mainer.ExitCode, string, string) {
	t.Helper()

	var out, errOut bytes.Buffer
	stdio := mainer.Stdio{
		Stdin:  strings.NewReader(""),
		Stdout: &out,
		Stderr: &errOut,
	}
	var c maincmd.Cmd
	code := c.Main(append([]string{"curry"}, args...), stdio)
	return code, out.String(), errOut.String()
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestHelpVersion(t *testing.T) {
	code, out, _ := runMain(t, "--help")
	assert.Equal(t, mainer.Success, code)
	assert.Contains(t, out, "usage: curry")

	code, out, _ = runMain(t, "--version")
	assert.Equal(t, mainer.Success, code)
	assert.True(t, strings.HasPrefix(out, "curry "), out)
}

func TestInvalidArgs(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "a.cy", "1")

	cases := []struct {
		args []string
		err  string
	}{
		{nil, "no command specified"},
		{[]string{"nope", file}, "unknown command: nope"},
		{[]string{"run"}, "at least one file must be provided"},
		{[]string{"run", file, file}, "a single file must be provided"},
		{[]string{"--no-inline", "tokenize", file}, "invalid flag 'no-inline'"},
		{[]string{"--with-comments", "run", file}, "invalid flag 'with-comments'"},
		{[]string{"--pos=wide", "parse", file}, "invalid position mode: wide"},
		{[]string{"--max-steps=-1", "run", file}, "limits must not be negative"},
	}
	for _, c := range cases {
		t.Run(strings.Join(c.args, " "), func(t *testing.T) {
			code, _, errOut := runMain(t, c.args...)
			assert.Equal(t, mainer.InvalidArgs, code)
			assert.Contains(t, errOut, c.err)
		})
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "sum.cy", loopSrc)

	code, out, errOut := runMain(t, "run", file)
	require.Equal(t, mainer.Success, code, errOut)
	assert.Equal(t, "500500\n", out)

	code, out, _ = runMain(t, "--max-call-depth=10", "run", file)
	require.Equal(t, mainer.Success, code)
	assert.Equal(t, "500500\n", out)

	code, _, errOut = runMain(t, "--no-tail-calls", "--max-call-depth=10", "run", file)
	assert.Equal(t, mainer.Failure, code)
	assert.Contains(t, errOut, "call stack depth exceeded")
}

func TestRunPrint(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "hello.cy", `(seq (print "hello") (print 42) unit)`)

	code, out, errOut := runMain(t, "run", file)
	require.Equal(t, mainer.Success, code, errOut)
	assert.Equal(t, "hello\n42\nnil\n", out)
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()

	file := writeFile(t, dir, "undef.cy", "(f 1)")
	code, _, errOut := runMain(t, "run", file)
	assert.Equal(t, mainer.Failure, code)
	assert.Contains(t, errOut, "undef.cy:1:2: undefined: f")

	file = writeFile(t, dir, "throw.cy", "(throw Oops 1)")
	code, _, errOut = runMain(t, "run", file)
	assert.Equal(t, mainer.Failure, code)
	assert.Contains(t, errOut, "Oops")
}

func TestRunConfig(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "sum.cy", loopSrc)
	cfg := writeFile(t, dir, "curry.toml", "[optimize]\nno_tail_calls = true\n\n[machine]\nmax_call_stack_depth = 10\n")

	code, _, errOut := runMain(t, "--config="+cfg, "run", file)
	assert.Equal(t, mainer.Failure, code)
	assert.Contains(t, errOut, "call stack depth exceeded")

	// flags override the configuration
	code, out, errOut := runMain(t, "--config="+cfg, "--no-tail-calls=false", "run", file)
	require.Equal(t, mainer.Success, code, errOut)
	assert.Equal(t, "500500\n", out)

	bad := writeFile(t, dir, "bad.toml", "[optimize]\nfast = true\n")
	code, _, errOut = runMain(t, "--config="+bad, "run", file)
	assert.Equal(t, mainer.Failure, code)
	assert.Contains(t, errOut, "unknown configuration keys")
}

func TestCompileAndRunObject(t *testing.T) {
	srcDir, outDir := t.TempDir(), t.TempDir()
	f1 := writeFile(t, srcDir, "one.cy", "(+ 1 2)")
	f2 := writeFile(t, srcDir, "two.cy", loopSrc)

	code, out, errOut := runMain(t, "--output="+outDir, "compile", f1, f2)
	require.Equal(t, mainer.Success, code, errOut)
	obj1, obj2 := filepath.Join(outDir, "one.cyo"), filepath.Join(outDir, "two.cyo")
	assert.Equal(t, obj1+"\n"+obj2+"\n", out)

	code, out, errOut = runMain(t, "run", obj1)
	require.Equal(t, mainer.Success, code, errOut)
	assert.Equal(t, "3\n", out)

	code, out, errOut = runMain(t, "run", obj2)
	require.Equal(t, mainer.Success, code, errOut)
	assert.Equal(t, "500500\n", out)
}

func TestCompileErrors(t *testing.T) {
	srcDir := t.TempDir()
	f1 := writeFile(t, srcDir, "ok.cy", "1")
	f2 := writeFile(t, srcDir, "bad.cy", "(x")

	code, out, errOut := runMain(t, "compile", f1, f2)
	assert.Equal(t, mainer.Failure, code)
	// the valid file is still compiled, next to its source
	assert.Equal(t, filepath.Join(srcDir, "ok.cyo")+"\n", out)
	assert.Contains(t, errOut, "bad.cy:1:1: list not terminated")
	assert.FileExists(t, filepath.Join(srcDir, "ok.cyo"))
	assert.NoFileExists(t, filepath.Join(srcDir, "bad.cyo"))
}

func TestDasm(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "k.cy", "(let k (fn _ 42) (k 7))")

	code, out, errOut := runMain(t, "dasm", file)
	require.Equal(t, mainer.Success, code, errOut)
	assert.True(t, strings.HasPrefix(out, "program:\n"), out)
	assert.Contains(t, out, "function: k toplevel")
	assert.Contains(t, out, "makeconst")
	assert.NotContains(t, out, "fun1")

	code, out, errOut = runMain(t, "--no-share", "dasm", file)
	require.Equal(t, mainer.Success, code, errOut)
	assert.Contains(t, out, "makeconst")
}

func TestFrontEndCommands(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "f.cy", "(let x 1 x)\n")

	code, out, errOut := runMain(t, "--pos=short", "tokenize", file)
	require.Equal(t, mainer.Success, code, errOut)
	assert.Equal(t, "1:1: (\n1:2: let\n1:6: identifier x\n1:8: int literal 1\n1:10: identifier x\n1:11: )\n2:1: end of file\n", out)

	code, out, errOut = runMain(t, "--pos=none", "parse", file)
	require.Equal(t, mainer.Success, code, errOut)
	assert.Contains(t, out, "list let\n")

	code, out, errOut = runMain(t, "--pos=short", "resolve", file)
	require.Equal(t, mainer.Success, code, errOut)
	assert.Equal(t, "1:10: x local\n", out)
}
