package typst

import (
	"strings"
	"unicode/utf8"
)

// scanner is a cursor over a bounded region of the source. Copying a scanner
// forks the cursor; the input itself is shared and never modified.
type scanner struct {
	input string
	pos   int
	line  int
	col   int
	limit int
}

func newScanner(input string) scanner {
	return scanner{input: input, line: 1, col: 1, limit: len(input)}
}

// bounded returns a copy of the scanner that stops at offset end.
func (s scanner) bounded(end int) scanner {
	s.limit = min(end, len(s.input))

	return s
}

func (s *scanner) peek() rune {
	if s.eof() {
		return 0
	}

	r, _ := utf8.DecodeRuneInString(s.input[s.pos:s.limit])

	return r
}

func (s *scanner) peekN(n int) string {
	if s.pos+n > s.limit {
		return s.input[s.pos:s.limit]
	}

	return s.input[s.pos : s.pos+n]
}

// prev returns the rune before the cursor, looking outside the region if
// necessary, or 0 at the start of input.
func (s *scanner) prev() rune {
	r, _ := utf8.DecodeLastRuneInString(s.input[:s.pos])
	if r == utf8.RuneError {
		return 0
	}

	return r
}

// atLineStart reports whether only blanks precede the cursor on its line.
func (s *scanner) atLineStart() bool {
	line := s.input[:s.pos]
	if i := strings.LastIndexByte(line, '\n'); i >= 0 {
		line = line[i+1:]
	}

	return strings.TrimLeft(line, " \t") == ""
}

func (s *scanner) rest() string { return s.input[s.pos:s.limit] }

func (s *scanner) hasPrefix(lit string) bool {
	return strings.HasPrefix(s.rest(), lit)
}

func (s *scanner) advance() {
	if s.eof() {
		return
	}

	r, size := utf8.DecodeRuneInString(s.input[s.pos:s.limit])

	s.pos += size
	if r == '\n' {
		s.line++
		s.col = 1
	} else {
		s.col++
	}
}

// advanceTo moves the cursor forward to offset, or to the limit if offset
// lies beyond it.
func (s *scanner) advanceTo(offset int) {
	for !s.eof() && s.pos < offset {
		s.advance()
	}
}

func (s *scanner) expect(ch rune) bool {
	if s.peek() == ch {
		s.advance()

		return true
	}

	return false
}

// need returns ErrUnexpectedEnd if the region is exhausted.
func (s *scanner) need() error {
	if s.eof() {
		return ErrUnexpectedEnd.WithPosition(s.position())
	}

	return nil
}

func (s *scanner) eof() bool {
	return s.pos >= s.limit
}

func (s *scanner) position() Position {
	return Position{
		Offset: s.pos,
		Line:   s.line,
		Column: s.col,
	}
}

// consumeWhile consumes runes while class reports true and returns them.
func (s *scanner) consumeWhile(class func(rune) bool) string {
	start := s.pos
	for !s.eof() && class(s.peek()) {
		s.advance()
	}

	return s.input[start:s.pos]
}

// consumeUntil consumes input up to the next occurrence of lit and returns
// it. If lit does not occur, the rest of the region is consumed and ok is
// false.
func (s *scanner) consumeUntil(lit string) (span string, ok bool) {
	start := s.pos

	i := strings.Index(s.rest(), lit)
	if i < 0 {
		s.advanceTo(s.limit)

		return s.input[start:s.pos], false
	}

	s.advanceTo(s.pos + i)

	return s.input[start:s.pos], true
}

// skipLine consumes the remainder of the current line including its newline.
func (s *scanner) skipLine() {
	s.consumeUntil("\n")
	s.expect('\n')
}

func (s *scanner) skipSpace() {
	s.consumeWhile(isSpace)
}

func (s *scanner) skipBlank() {
	s.consumeWhile(isBlank)
}

// match reports the byte length of the token sequence at the cursor, where
// consecutive tokens may be separated by spaces or tabs.
func (s *scanner) match(tokens ...string) (int, bool) {
	rest := s.rest()
	n := 0

	for i, tok := range tokens {
		if i > 0 {
			for n < len(rest) && (rest[n] == ' ' || rest[n] == '\t') {
				n++
			}
		}

		if !strings.HasPrefix(rest[n:], tok) {
			return 0, false
		}

		n += len(tok)
	}

	return n, true
}

// trimmed returns a copy of the scanner with leading and trailing whitespace
// excluded from its region.
func (s scanner) trimmed() scanner {
	s.skipSpace()
	s.limit = s.pos + len(strings.TrimRight(s.rest(), " \t\r\n"))

	return s
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isBlank(r rune) bool {
	return r == ' ' || r == '\t'
}

func isIdentStart(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_'
}

func isIdentContinue(r rune) bool {
	return isIdentStart(r) || (r >= '0' && r <= '9') || r == '-'
}
