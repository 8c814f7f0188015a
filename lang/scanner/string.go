package scanner

import (
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

// stringLit scans a double-quoted string literal, the opening quote being
// already consumed. It returns the raw literal and its decoded value.
func (s *Scanner) stringLit() (lit, decoded string) {
	startOff, startLine, startCol := s.off-1, s.line, s.col-1
	s.sb.Reset()
	s.pendingSurrogate = 0

	var skipws bool
	for {
		cur := s.cur
		if cur < 0 || (cur == '\n' && !skipws) {
			s.error(startOff, startLine, startCol, "string literal not terminated")
			break
		}
		s.advance()
		if cur == '"' {
			break
		}

		switch {
		case cur == '\\':
			skipws = s.escape()
		case skipws && isWhitespace(cur):
		default:
			skipws = false
			s.putRune(cur)
		}
	}
	s.flushSurrogate()
	return string(s.src[startOff:s.off]), s.sb.String()
}

// escapeValues maps the single-character escapes to their value. A \z
// escape has no value, it skips the whitespace that follows.
var escapeValues = map[rune]rune{
	'a':  '\a',
	'b':  '\b',
	'f':  '\f',
	'n':  '\n',
	'r':  '\r',
	't':  '\t',
	'v':  '\v',
	'\\': '\\',
	'/':  '/',
	'\'': '\'',
	'"':  '"',
	'\n': '\n',
}

// escape decodes the escape sequence following a backslash and reports
// whether it was a \z. On error, the offending character is not consumed.
func (s *Scanner) escape() (skipws bool) {
	startOff, startLine, startCol := s.off-1, s.line, s.col-1
	escErr := func(msg string) bool {
		s.error(startOff, startLine, startCol, msg)
		return false
	}

	cur := s.cur
	if cur == 'z' {
		s.advance()
		return true
	}
	if v, ok := escapeValues[cur]; ok {
		s.advance()
		s.putRune(v)
		return false
	}

	var (
		rn  uint32
		max uint32 = 255
		ok  bool
	)
	switch {
	case cur < 0:
		return escErr("escape sequence not terminated")

	case isDecimal(cur):
		// \d, \dd or \ddd
		rn, _ = s.escDigits(10, 1, 3)
		ok = true

	case cur == 'x':
		s.advance()
		rn, ok = s.escDigits(16, 2, 2)

	case cur == 'u':
		s.advance()
		max = unicode.MaxRune
		if !s.advanceIf('{') {
			rn, ok = s.escDigits(16, 4, 4)
			break
		}
		var n int
		if rn, n = s.hexRun(); !s.advanceIf('}') {
			ok = false
			break
		} else if n > 8 {
			return escErr("escape sequence has too many hexadecimal digits")
		}
		ok = true

	default:
		return escErr("unknown escape sequence")
	}

	if !ok {
		if s.cur < 0 {
			return escErr("escape sequence not terminated")
		}
		s.errorf(s.off, s.line, s.col, "illegal character %#U in escape sequence", s.cur)
		return false
	}
	if rn > max {
		if max == 255 {
			return escErr("escape sequence is invalid byte value")
		}
		return escErr("escape sequence is invalid Unicode code point")
	}

	if r := rune(rn); utf16.IsSurrogate(r) {
		s.putSurrogate(r)
	} else {
		s.putRune(r)
	}
	return false
}

// escDigits consumes between min and max digits in base and returns their
// value. It reports false if fewer than min digits are present.
func (s *Scanner) escDigits(base, min, max int) (uint32, bool) {
	var v uint32
	for i := 0; i < max; i++ {
		d := digitVal(s.cur)
		if d >= base {
			return v, i >= min
		}
		v = v*uint32(base) + uint32(d)
		s.advance()
	}
	return v, true
}

// hexRun consumes all consecutive hexadecimal digits and returns their value
// along with their count.
func (s *Scanner) hexRun() (v uint32, n int) {
	for isHexadecimal(s.cur) {
		v = v*16 + uint32(digitVal(s.cur))
		s.advance()
		n++
	}
	return v, n
}

// putRune writes a non-surrogate rune to the decoded value. A dangling first
// half of a surrogate pair is rendered as the replacement character.
func (s *Scanner) putRune(rn rune) {
	s.flushSurrogate()
	s.sb.WriteRune(rn)
}

func (s *Scanner) putSurrogate(rn rune) {
	if s.pendingSurrogate == 0 {
		s.pendingSurrogate = rn
		return
	}
	s.sb.WriteRune(utf16.DecodeRune(s.pendingSurrogate, rn))
	s.pendingSurrogate = 0
}

func (s *Scanner) flushSurrogate() {
	if s.pendingSurrogate != 0 {
		s.sb.WriteRune(utf8.RuneError)
		s.pendingSurrogate = 0
	}
}

func digitVal(rn rune) int {
	switch {
	case '0' <= rn && rn <= '9':
		return int(rn - '0')
	case 'a' <= rn && rn <= 'f':
		return int(rn - 'a' + 10)
	case 'A' <= rn && rn <= 'F':
		return int(rn - 'A' + 10)
	}
	return 16
}
