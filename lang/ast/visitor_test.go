package ast_test

import (
	"testing"

	"github.com/mna/curry/lang/ast"
	"github.com/mna/curry/lang/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect(t *testing.T) {
	ch, err := parser.ParseChunk(0, "test.cy", []byte("(a (b c) d) e"))
	require.NoError(t, err)

	cases := []struct {
		desc string
		skip string // the children of the list headed by skip are not visited
		want []string
	}{
		{"all", "", []string{"a", "b", "c", "d", "e"}},
		{"skip inner", "b", []string{"a", "d", "e"}},
		{"skip outer", "a", []string{"e"}},
	}
	for _, c := range cases {
		t.Run(c.desc, func(t *testing.T) {
			var got []string
			ast.Inspect(ch, func(n ast.Node) bool {
				switch n := n.(type) {
				case *ast.Atom:
					got = append(got, n.Value.Raw)
				case *ast.List:
					if h, ok := n.Head(); ok && h.Value.Raw == c.skip {
						return false
					}
				}
				return true
			})
			assert.Equal(t, c.want, got)
		})
	}
}
