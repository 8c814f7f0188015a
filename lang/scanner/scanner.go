// Some of the scanner package is adapted from the Go source code:
// https://cs.opensource.google/go/go/+/refs/tags/go1.22.1:src/go/scanner/scanner.go
//
// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package scanner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/mna/curry/lang/token"
)

// TokenAndValue combines the token type with the token value type in the same
// struct.
type TokenAndValue struct {
	Token token.Token
	Value token.Value
}

// ScanFiles is a helper function that tokenizes the source files and returns
// the list of tokens, grouped by the file at the same index, and produces any
// error encountered. The error, if non-nil, is guaranteed to be an
// ErrorList.
func ScanFiles(ctx context.Context, files ...string) ([][]TokenAndValue, error) {
	if len(files) == 0 {
		return nil, nil
	}

	var (
		s      Scanner
		tokVal token.Value
		errs   ErrorList
	)

	tokensByFile := make([][]TokenAndValue, len(files))
	for i, file := range files {
		if err := ctx.Err(); err != nil {
			errs.Add(token.Position{Filename: file}, err.Error())
			break
		}

		b, err := os.ReadFile(file)
		if err != nil {
			errs.Add(token.Position{Filename: file}, err.Error())
			continue
		}

		s.Init(file, b, errs.Add)
		for {
			tok := s.Scan(&tokVal)
			tokensByFile[i] = append(tokensByFile[i], TokenAndValue{
				Token: tok,
				Value: tokVal,
			})
			if tok == token.EOF {
				break
			}
		}
	}
	errs.Sort()
	return tokensByFile, errs.Err()
}

// Scanner tokenizes source files for the parser to consume.
type Scanner struct {
	// immutable state after Init
	filename string
	src      []byte
	err      func(pos token.Position, msg string) // error handler for scanning errors

	// mutable scanning state
	sb               strings.Builder // writes to Builder never fail, so errors are ignored
	pendingSurrogate rune            // in string literal, the first half of a surrogate pair, pending the second (or rendered as replacement rune)
	invalidByte      byte            // when cur==RuneError due to failed utf8 decode, this is the invalid byte
	cur              rune            // current character
	line, col        int             // line/col position of cur
	off              int             // character offset in bytes of cur
	roff             int             // reading offset in bytes (position after current character)
}

var (
	// byte order mark, only permitted as very first characters
	bom = [3]byte{0xEF, 0xBB, 0xBF}
	// hashbang line, only permitted as very first line (or immediately after
	// bom)
	hashBang = [2]byte{'#', '!'}
)

// Init initializes the scanner to tokenize a new file.
func (s *Scanner) Init(filename string, src []byte, errHandler func(token.Position, string)) {
	s.filename = filename
	s.src = src
	s.err = errHandler

	s.sb.Reset()
	s.pendingSurrogate = 0
	s.invalidByte = 0
	s.cur = ' '
	s.line, s.col = 1, 0
	s.off = 0
	s.roff = 0

	// skip initial BOM if present
	if bytes.HasPrefix(src, bom[:]) {
		s.off += len(bom)
		s.roff += len(bom)
	}
	// skip initial hashbang line if present
	if bytes.HasPrefix(src[s.roff:], hashBang[:]) {
		for s.cur != '\n' && s.cur != -1 {
			s.advance()
		}
	}
	s.advance()
}

// peek returns the byte following the most recently read character without
// advancing the scanner. If the scanner is at EOF, peek returns 0.
func (s *Scanner) peek() byte {
	if s.roff < len(s.src) {
		return s.src[s.roff]
	}
	return 0
}

// read the next Unicode char into s.cur; s.cur < 0 means end-of-file.
func (s *Scanner) advance() {
	if s.roff >= len(s.src) {
		s.off = len(s.src)
		if s.cur == '\n' {
			s.line++
			s.col = 0
		}
		if s.cur >= 0 {
			// EOF is positioned right after the last character
			s.col++
		}
		s.cur = -1
		return
	}

	s.off = s.roff
	if s.cur == '\n' {
		s.line++
		s.col = 0
	}

	// fast path if the rune is an ASCII char, no decoding necessary
	s.invalidByte = 0
	r, w := rune(s.src[s.roff]), 1
	if r >= utf8.RuneSelf {
		// not ASCII
		r, w = utf8.DecodeRune(s.src[s.roff:])
		if r == utf8.RuneError && w == 1 {
			s.error(s.roff, s.line, s.col+1, "illegal UTF-8 encoding")
			// store the actual invalid byte
			s.invalidByte = s.src[s.roff]
		}
	}
	s.roff += w
	s.cur = r
	s.col++
}

func (s *Scanner) error(off, line, col int, msg string) {
	checkSafePos(line, col)
	if s.err != nil {
		s.err(token.MakePosition(s.filename, off, line, col), msg)
	}
}

func (s *Scanner) errorf(off, line, col int, msg string, args ...any) {
	s.error(off, line, col, fmt.Sprintf(msg, args...))
}

func checkSafePos(line, col int) {
	if line > token.MaxLines || col > token.MaxCols {
		if line > token.MaxLines {
			panic(fmt.Sprintf("number of lines exceeded: %d", line))
		}
		panic(fmt.Sprintf("number of columns exceeded at line %d: %d", line, col))
	}
}

func makeSafePos(line, col int) token.Pos {
	checkSafePos(line, col)
	return token.MakePos(line, col)
}

// advance only if the current char matches any of the specified ones.
func (s *Scanner) advanceIf(matches ...byte) bool {
	if s.cur >= 0 && s.cur < utf8.RuneSelf && bytes.IndexByte(matches, byte(s.cur)) >= 0 {
		s.advance()
		return true
	}
	return false
}

// Scan returns the next token in the source file.
func (s *Scanner) Scan(tokVal *token.Value) (tok token.Token) {
	s.skipWhitespace()

	// current token start
	startOff, startLine, startCol := s.off, s.line, s.col

	switch cur := s.cur; {
	case isDecimal(cur) || cur == '-' && isDecimal(rune(s.peek())):
		lit, val, ok := s.number()
		tok = token.INT
		if !ok {
			tok = token.ILLEGAL
		}
		*tokVal = token.Value{Raw: lit, Int: val, Pos: makeSafePos(startLine, startCol)}

	case isAtom(cur):
		// keywords and identifiers
		lit := s.ident()
		tok = token.LookupKw(lit)
		*tokVal = token.Value{Raw: lit, Pos: makeSafePos(startLine, startCol)}

	default:
		// identifiers and numbers are done

		s.advance() // always make progress
		switch cur {
		case '"':
			tok = token.STRING
			lit, val := s.stringLit()
			*tokVal = token.Value{Raw: lit, Pos: makeSafePos(startLine, startCol), String: val}

		case ';':
			tok = token.COMMENT
			lit, val := s.comment()
			*tokVal = token.Value{Raw: lit, Pos: makeSafePos(startLine, startCol), String: val}

		case '(':
			tok = token.LPAREN
			*tokVal = token.Value{Raw: "(", Pos: makeSafePos(startLine, startCol)}

		case ')':
			tok = token.RPAREN
			*tokVal = token.Value{Raw: ")", Pos: makeSafePos(startLine, startCol)}

		case -1:
			tok = token.EOF
			*tokVal = token.Value{Pos: makeSafePos(startLine, startCol)}

		default:
			if cur == utf8.RuneError && s.invalidByte > 0 {
				cur = rune(s.invalidByte)
				s.invalidByte = 0
			}
			s.errorf(startOff, startLine, startCol, "illegal character %#U", cur)
			tok = token.ILLEGAL
			*tokVal = token.Value{Raw: string(cur), Pos: makeSafePos(startLine, startCol)}
		}
	}
	return tok
}

func (s *Scanner) ident() string {
	start := s.off
	for isAtom(s.cur) {
		s.advance()
	}
	return string(s.src[start:s.off])
}

func (s *Scanner) skipWhitespace() {
	for isWhitespace(s.cur) {
		s.advance()
	}
}

func isWhitespace(rn rune) bool {
	return rn == ' ' || rn == '\t' || rn == '\n' || rn == '\r'
}

// isAtom returns true if rn can be part of an identifier or a number.
func isAtom(rn rune) bool {
	switch {
	case rn < 0 || isWhitespace(rn):
		return false
	case rn == '(' || rn == ')' || rn == '"' || rn == ';':
		return false
	case rn < utf8.RuneSelf:
		return rn > ' ' && rn < 0x7f
	default:
		return rn != utf8.RuneError && (unicode.IsLetter(rn) || unicode.IsDigit(rn) || unicode.IsSymbol(rn))
	}
}
