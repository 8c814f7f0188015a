// Package filetest runs tests over directories of .cy source files whose
// results are compared with golden files.
package filetest

import (
	"flag"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/kylelemons/godebug/diff"
	"github.com/stretchr/testify/require"
)

var updateAll = flag.Bool("test.update-golden", false, "If set, replace all golden files with actual results.")

// SourceFiles returns the sorted base names of the regular files of dir with
// extension ext.
func SourceFiles(t *testing.T, dir, ext string) []string {
	t.Helper()

	paths, err := filepath.Glob(filepath.Join(dir, "*"+ext))
	require.NoError(t, err)

	names := make([]string, 0, len(paths))
	for _, p := range paths {
		fi, err := os.Stat(p)
		require.NoError(t, err)
		if fi.Mode().IsRegular() {
			names = append(names, filepath.Base(p))
		}
	}
	sort.Strings(names)
	return names
}

// Golden compares the results of a source file with its golden files, named
// after the source file with an added extension.
type Golden struct {
	Dir    string
	Update *bool // overwrite the golden files with the results
}

// Output checks the standard output of source file name.
func (g Golden) Output(t *testing.T, name, output string) {
	t.Helper()
	g.Check(t, name, ".want", output)
}

// Errors checks the error output of source file name.
func (g Golden) Errors(t *testing.T, name, output string) {
	t.Helper()
	g.Check(t, name, ".err", output)
}

// Check compares output with the golden file of source file name that has
// extension ext. A missing golden file is the same as an empty one.
func (g Golden) Check(t *testing.T, name, ext, output string) {
	t.Helper()

	golden := filepath.Join(g.Dir, name+ext)
	if *updateAll || (g.Update != nil && *g.Update) {
		require.NoError(t, os.WriteFile(golden, []byte(output), 0o600))
		return
	}

	b, err := os.ReadFile(golden)
	if !os.IsNotExist(err) {
		require.NoError(t, err)
	}
	if patch := diff.Diff(string(b), output); patch != "" {
		t.Errorf("%s: diff %s:\n%s\ngot:\n%s", name, ext, patch, output)
	}
}
