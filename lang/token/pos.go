package token

import (
	"fmt"
	"strconv"
)

const (
	lineBits = 18
	colBits  = 32 - lineBits

	// MaxLines is the maximum 1-based line number value that can be encoded in
	// Pos.
	MaxLines = (1 << lineBits) - 1
	// MaxCols is the maximum 1-based column number value that can be encoded in
	// Pos.
	MaxCols = (1 << colBits) - 1

	lineMask = MaxLines
	colMask  = MaxCols
)

// Pos is an efficient encoding of a 1-based line and column position in a
// 32-bit unsigned integer. A value of 0 for either line or column should be
// interpreted as "unknown".
type Pos uint32

// NoPos is the unknown position.
const NoPos Pos = 0

// MakePos creates a Pos value encoding the provided line and col. It is the
// caller's responsibility to ensure the values are > 0 and <= the maximum
// allowed.
func MakePos(line, col int) Pos {
	return Pos(col<<lineBits | line)
}

// LineCol returns the line and column values encoded in Pos.
func (p Pos) LineCol() (int, int) {
	l := p & lineMask
	c := (p >> lineBits) & colMask
	return int(l), int(c)
}

// Unknown returns true if either line or column value is unknown.
func (p Pos) Unknown() bool {
	l, c := p.LineCol()
	return l == 0 || c == 0
}

// Add returns the position n columns after p on the same line. The unknown
// position stays unknown.
func (p Pos) Add(n int) Pos {
	if p.Unknown() {
		return p
	}
	l, c := p.LineCol()
	return MakePos(l, min(c+n, MaxCols))
}

// Position is a fully resolved source position, used for error reporting.
type Position struct {
	Filename string
	Offset   int // 0-based byte offset
	Line     int // 1-based, 0 if unknown
	Col      int // 1-based, 0 if unknown
}

// MakePosition returns the Position of the specified file and location.
func MakePosition(filename string, off, line, col int) Position {
	return Position{Filename: filename, Offset: off, Line: line, Col: col}
}

// PositionOf returns the Position of pos in filename. The offset is unknown.
func PositionOf(filename string, pos Pos) Position {
	l, c := pos.LineCol()
	return Position{Filename: filename, Line: l, Col: c}
}

// IsValid returns true if the position has a known line.
func (p Position) IsValid() bool { return p.Line > 0 }

// String returns the position in the form "file:line:col", omitting the
// unknown parts.
func (p Position) String() string {
	s := p.Filename
	if p.IsValid() {
		if s != "" {
			s += ":"
		}
		s += strconv.Itoa(p.Line)
		if p.Col > 0 {
			s += ":" + strconv.Itoa(p.Col)
		}
	}
	if s == "" {
		s = "-"
	}
	return s
}

// PosMode indicates how positions are formatted.
type PosMode int

// List of position formatting modes.
const (
	PosNone  PosMode = iota // no position
	PosLong                 // file:line:col
	PosShort                // line:col
	PosRaw                  // encoded Pos value
)

func (m PosMode) String() string {
	switch m {
	case PosNone:
		return "none"
	case PosLong:
		return "long"
	case PosShort:
		return "short"
	case PosRaw:
		return "raw"
	default:
		return fmt.Sprintf("PosMode(%d)", int(m))
	}
}

// FormatPos formats pos in filename according to mode. If withFilename is
// false, the long format omits the file name but keeps its separator.
func FormatPos(mode PosMode, filename string, pos Pos, withFilename bool) string {
	l, c := pos.LineCol()
	lc := "-:-"
	if !pos.Unknown() {
		lc = fmt.Sprintf("%d:%d", l, c)
	}

	switch mode {
	case PosLong:
		if !withFilename {
			filename = ""
		}
		return filename + ":" + lc
	case PosShort:
		return lc
	case PosRaw:
		return strconv.FormatUint(uint64(pos), 10)
	default:
		return ""
	}
}
