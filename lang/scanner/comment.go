package scanner

// comment scans a comment up to the end of the line. The text of the comment
// excludes the leading semicolons and the whitespace that follows them.
func (s *Scanner) comment() (lit, val string) {
	// ';' opening already consumed, hence the -1
	startOff := s.off - 1

	for s.advanceIf(';') {
	}
	for s.cur == ' ' || s.cur == '\t' {
		s.advance()
	}
	valOff := s.off

	for s.cur != '\n' && s.cur != -1 {
		s.advance()
	}
	end := s.off
	if end > valOff && s.src[end-1] == '\r' {
		end--
	}
	return string(s.src[startOff:end]), string(s.src[valOff:end])
}
