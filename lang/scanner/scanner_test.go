package scanner_test

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mna/curry/internal/filetest"
	"github.com/mna/curry/internal/maincmd"
	"github.com/mna/curry/lang/scanner"
	"github.com/mna/curry/lang/token"
	"github.com/mna/mainer"
	"github.com/stretchr/testify/require"
)

var testUpdateScannerTests = flag.Bool("test.update-scanner-tests", false, "If set, replace expected scanner test results with actual results.")

func TestScan(t *testing.T) {
	ctx := context.Background()
	srcDir := filepath.Join("testdata", "in")
	golden := filetest.Golden{Dir: filepath.Join("testdata", "out"), Update: testUpdateScannerTests}

	for _, name := range filetest.SourceFiles(t, srcDir, ".cy") {
		t.Run(name, func(t *testing.T) {
			var buf, ebuf bytes.Buffer
			stdio := mainer.Stdio{
				Stdout: &buf,
				Stderr: &ebuf,
			}

			// error is ignored, we just want it to be printed to ebuf
			_ = maincmd.TokenizeFiles(ctx, stdio, token.PosShort, filepath.Join(srcDir, name))
			golden.Output(t, name, buf.String())
			golden.Errors(t, name, ebuf.String())
		})
	}
}

func scanAll(src string) (string, []string) {
	var (
		s    scanner.Scanner
		val  token.Value
		errs []string
		sb   strings.Builder
	)
	s.Init("test", []byte(src), func(pos token.Position, msg string) {
		errs = append(errs, fmt.Sprintf("%d:%d: %s", pos.Line, pos.Col, msg))
	})
	for {
		tok := s.Scan(&val)
		if tok == token.EOF {
			break
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		l, c := val.Pos.LineCol()
		fmt.Fprintf(&sb, "%d:%d:%s", l, c, tok)
		if lit := tok.Literal(val); lit != "" {
			sb.WriteString("=" + lit)
		}
	}
	return sb.String(), errs
}

func TestScanTokens(t *testing.T) {
	cases := []struct {
		in   string
		want string
		errs []string
	}{
		{"", "", nil},
		{"()", "1:1:( 1:2:)", nil},
		{"x", "1:1:identifier=x", nil},
		{"let-rec", "1:1:let-rec", nil},
		{"fn let var set if seq try catch finally throw def", "1:1:fn 1:4:let 1:8:var 1:12:set 1:16:if 1:19:seq 1:23:try 1:27:catch 1:33:finally 1:41:throw 1:47:def", nil},
		{"true false unit", "1:1:true 1:6:false 1:12:unit", nil},
		{"+ - * / % == != < <= > >= not neg", "1:1:identifier=+ 1:3:identifier=- 1:5:identifier=* 1:7:identifier=/ 1:9:identifier=% 1:11:identifier=== 1:14:identifier=!= 1:17:identifier=< 1:19:identifier=<= 1:22:identifier=> 1:24:identifier=>= 1:27:identifier=not 1:31:identifier=neg", nil},
		{"12 -3 0 0x1F 0b101 0o17 1_000", "1:1:int literal=12 1:4:int literal=-3 1:7:int literal=0 1:9:int literal=31 1:14:int literal=5 1:20:int literal=15 1:25:int literal=1000", nil},
		{"-x", "1:1:identifier=-x", nil},
		{`"a\tb" "é"`, `1:1:string literal="a\tb" 1:8:string literal="é"`, nil},
		{"(f\n  ; note\n  1)", "1:1:( 1:2:identifier=f 2:3:comment=note 3:3:int literal=1 3:4:)", nil},
		{"12ab", "1:1:illegal token", []string{"1:3: invalid character U+0061 'a' in decimal literal"}},
		{"0b102", "1:1:illegal token", []string{"1:5: invalid digit '2' in binary literal"}},
		{"0x", "1:1:illegal token", []string{"1:1: hexadecimal literal has no digits"}},
		{"1__0", "1:1:illegal token", []string{"1:3: '_' must separate successive digits"}},
		{"99999999999999999999", "1:1:illegal token", []string{"1:1: invalid decimal literal: 99999999999999999999"}},
		{`"abc`, `1:1:string literal="abc"`, []string{"1:1: string literal not terminated"}},
		{`"a\qb"`, `1:1:string literal="aqb"`, []string{"1:3: unknown escape sequence"}},
	}
	for _, c := range cases {
		t.Run(c.in, func(t *testing.T) {
			got, errs := scanAll(c.in)
			require.Equal(t, c.want, got)
			require.Equal(t, c.errs, errs)
		})
	}
}

func TestErrorList(t *testing.T) {
	var list scanner.ErrorList
	require.NoError(t, list.Err())

	list.Add(token.Position{Filename: "b", Line: 1, Col: 1}, "third")
	list.Add(token.Position{Filename: "a", Line: 2, Col: 1}, "second")
	list.Add(token.Position{Filename: "a", Line: 1, Col: 3}, "first")
	list.Sort()

	err := list.Err()
	require.Error(t, err)
	require.Equal(t, "a:1:3: first (and 2 more errors)", err.Error())
	require.Len(t, list.Unwrap(), 3)

	var buf bytes.Buffer
	scanner.PrintError(&buf, err)
	require.Equal(t, "a:1:3: first\na:2:1: second\nb:1:1: third\n", buf.String())
}
