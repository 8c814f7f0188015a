package scanner

import (
	"strconv"
	"strings"
)

// number scans an integer literal, with an optional minus sign, a base
// prefix and '_' digit separators.
func (s *Scanner) number() (lit string, val int64, ok bool) {
	startOff, startLine, startCol := s.off, s.line, s.col
	ok = true

	s.advanceIf('-')
	base := 10        // number base
	prefix := rune(0) // one of 0 (decimal), 'x', 'o', or 'b'
	invalid := -1     // index of invalid digit in literal, or < 0

	if s.cur == '0' {
		s.advance()
		switch lower(s.cur) {
		case 'x':
			s.advance()
			base, prefix = 16, 'x'
		case 'o':
			s.advance()
			base, prefix = 8, 'o'
		case 'b':
			s.advance()
			base, prefix = 2, 'b'
		}
	}
	digsep := s.digits(base, &invalid)
	if prefix == 0 {
		// the leading '0' was consumed as a digit
		digsep |= 1
	}

	if isAtom(s.cur) {
		// an atom that starts like a number must be a number
		s.errorf(s.off, s.line, s.col, "invalid character %#U in %s", s.cur, litname(prefix))
		ok = false
		for isAtom(s.cur) {
			s.advance()
		}
	}

	lit = string(s.src[startOff:s.off])
	if !ok {
		return lit, 0, false
	}
	if digsep&1 == 0 {
		s.error(startOff, startLine, startCol, litname(prefix)+" has no digits")
		return lit, 0, false
	}
	if invalid >= 0 {
		s.errorf(invalid, startLine, startCol+invalid-startOff, "invalid digit %q in %s", lit[invalid-startOff], litname(prefix))
		return lit, 0, false
	}
	if digsep&2 != 0 {
		if i := invalidSep(strings.TrimPrefix(lit, "-")); i >= 0 {
			if lit[0] == '-' {
				i++
			}
			s.error(startOff+i, startLine, startCol+i, "'_' must separate successive digits")
			return lit, 0, false
		}
	}

	val, err := numberToInt(lit, base)
	if err != nil {
		s.errorf(startOff, startLine, startCol, "invalid %s: %s", litname(prefix), lit)
		return lit, 0, false
	}
	return lit, val, true
}

func isDecimal(rn rune) bool {
	return '0' <= rn && rn <= '9'
}

func isHexadecimal(rn rune) bool {
	return isDecimal(rn) ||
		'a' <= rn && rn <= 'f' ||
		'A' <= rn && rn <= 'F'
}

// digits accepts the sequence { digit | '_' }.
// If base <= 10, digits accepts any decimal digit but records
// the offset (relative to the source start) of a digit >= base
// in *invalid, if *invalid < 0.
// digits returns a bitset describing whether the sequence contained
// digits (bit 0 is set), or separators '_' (bit 1 is set).
func (s *Scanner) digits(base int, invalid *int) (digsep int) {
	if base <= 10 {
		max := rune('0' + base)
		for isDecimal(s.cur) || s.cur == '_' {
			ds := 1
			if s.cur == '_' {
				ds = 2
			} else if s.cur >= max && *invalid < 0 {
				*invalid = s.off
			}
			digsep |= ds
			s.advance()
		}
	} else {
		for isHexadecimal(s.cur) || s.cur == '_' {
			ds := 1
			if s.cur == '_' {
				ds = 2
			}
			digsep |= ds
			s.advance()
		}
	}
	return
}

// invalidSep returns the index of the first invalid separator in x, or -1.
func invalidSep(x string) int {
	x1 := ' ' // prefix char, we only care if it's 'x'
	d := '.'  // digit, one of '_', '0' (a digit), or '.' (anything else)
	i := 0

	// a prefix counts as a digit
	if len(x) >= 2 && x[0] == '0' {
		x1 = lower(rune(x[1]))
		if x1 == 'x' || x1 == 'o' || x1 == 'b' {
			d = '0'
			i = 2
		}
	}

	// mantissa and exponent
	for ; i < len(x); i++ {
		p := d // previous digit
		d = rune(x[i])
		switch {
		case d == '_':
			if p != '0' {
				return i
			}
		case isDecimal(d) || x1 == 'x' && isHexadecimal(d):
			d = '0'
		default:
			if p == '_' {
				return i - 1
			}
			d = '.'
		}
	}
	if d == '_' {
		return len(x) - 1
	}

	return -1
}

func litname(prefix rune) string {
	switch prefix {
	case 'x':
		return "hexadecimal literal"
	case 'o':
		return "octal literal"
	case 'b':
		return "binary literal"
	}
	return "decimal literal"
}

func lower(ch rune) rune {
	return ('a' - 'A') | ch // returns lower-case ch iff ch is ASCII letter
}

func numberToInt(lit string, base int) (int64, error) {
	neg := strings.HasPrefix(lit, "-")
	lit = strings.TrimPrefix(lit, "-")
	if base != 10 {
		// skip the 0x/0o/0b prefix
		lit = lit[2:]
	}
	if neg {
		lit = "-" + lit
	}
	// underscores and prefix must be removed when a base is provided
	return strconv.ParseInt(strings.ReplaceAll(lit, "_", ""), base, 64)
}
