package typst

import "log/slog"

// Extract returns the span of src between an opening delimiter and its
// matching close. start is the offset just past the opening delimiter; end
// is the offset just past the matching close, so that
//
//	src[:start] + span + src[end-1:] == src
//
// Nested delimiters of the same kind are counted; strings and comments are
// not special. If no match exists, Extract returns ErrUnbalancedBrackets at
// the opening delimiter.
func Extract(
	src string,
	start int,
	opener, closer byte,
) (span string, end int, err error) {
	if start < 1 || start > len(src) || src[start-1] != opener {
		return "", 0, ErrUnbalancedBrackets.With(
			slog.Int("offset", start))
	}

	s := newScanner(src)
	s.advanceTo(start - 1)

	at := s.position()
	s.advance()

	span, err = s.extract(opener, closer, at)
	if err != nil {
		return "", 0, err
	}

	return span, s.pos, nil
}

// extract consumes input through the close delimiter matching the opener at
// position at, which the cursor has just passed, and returns the enclosed
// span.
func (s *scanner) extract(opener, closer byte, at Position) (string, error) {
	start, depth := s.pos, 1

	for i := s.pos; i < s.limit; i++ {
		switch s.input[i] {
		case opener:
			depth++
		case closer:
			depth--
		}

		if depth == 0 {
			s.advanceTo(i + 1)

			return s.input[start:i], nil
		}
	}

	return "", ErrUnbalancedBrackets.WithPosition(at).With(
		expectedAttr(string(closer)),
	)
}
