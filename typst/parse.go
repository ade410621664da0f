package typst

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"unicode"

	"github.com/klauspost/readahead"
	encunicode "golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ardnew/typtex/log"
)

// Directive token sequences. Tokens may be separated by spaces or tabs.
var (
	noTexBegin = []string{"//", "BEGIN NO TEX"}
	noTexEnd   = []string{"//", "END NO TEX"}
	texBegin   = []string{"/*", "BEGIN TEX"}
	texEnd     = []string{"END TEX", "*/"}
)

// ReadSource reads a whole document from r. A leading byte order mark
// selects UTF-16 decoding and is removed; otherwise the input is read as
// UTF-8.
func ReadSource(r io.Reader) (string, error) {
	ra := readahead.NewReader(r)
	defer ra.Close()

	dec := transform.NewReader(ra,
		encunicode.BOMOverride(encunicode.UTF8.NewDecoder()))

	data, err := io.ReadAll(dec)
	if err != nil {
		return "", ErrReadInput.Wrap(err)
	}

	return string(data), nil
}

// ParseReader parses a document read from r with [ReadSource].
func ParseReader(
	ctx context.Context,
	r io.Reader,
	keys KeySet,
	opts ...Option,
) ([]Node, error) {
	src, err := ReadSource(r)
	if err != nil {
		return nil, err
	}

	return ParseString(ctx, src, keys, opts...)
}

// ParseString parses a document. @key tokens are classified against keys;
// see [Classify].
//
// Any error aborts the parse and is returned as an [*Error] carrying the
// source position.
func ParseString(
	ctx context.Context,
	s string,
	keys KeySet,
	opts ...Option,
) ([]Node, error) {
	p := &parser{ctx: ctx, keys: keys}

	WithKinds(DefaultKinds...)(p)

	for _, opt := range opts {
		opt(p)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sc := newScanner(s)

	nodes, err := p.parseNodes(&sc)
	if err != nil {
		p.logger.DebugContext(ctx, "parse failed", slog.Any("error", err))

		return nil, err
	}

	p.logger.TraceContext(ctx, "parse complete",
		slog.Int("top_level_nodes", len(nodes)),
		slog.Int("bytes", len(s)))

	return nodes, nil
}

// parser holds the parse configuration. Cursor state lives in the scanners
// passed between methods.
type parser struct {
	ctx    context.Context
	keys   KeySet
	kinds  map[string]struct{}
	logger log.Logger
}

func (p *parser) isKind(name string) bool {
	if _, ok := p.kinds[name]; ok {
		return true
	}

	_, ok := p.kinds[AnyKind]

	return ok && name != "figure" && name != "grid"
}

// parseNodes parses the scanner's region into a node list. Runs of input
// that do not start a construct are accumulated into Text nodes.
func (p *parser) parseNodes(s *scanner) ([]Node, error) {
	var nodes []Node

	text := *s

	for !s.eof() {
		before := *s

		node, ok, err := p.parseConstruct(s)
		if err != nil {
			return nil, err
		}

		if !ok {
			skipText(s)

			continue
		}

		if before.pos > text.pos {
			nodes = append(nodes, &Text{
				Span: s.input[text.pos:before.pos],
				Pos:  text.position(),
			})
		}

		if node != nil {
			nodes = append(nodes, node)
		}

		text = *s
	}

	if s.pos > text.pos {
		nodes = append(nodes, &Text{
			Span: s.input[text.pos:s.pos],
			Pos:  text.position(),
		})
	}

	return nodes, nil
}

// skipText consumes the text at the cursor: a whole comment or raw span,
// whose contents are never constructs, or else a single rune.
func skipText(s *scanner) {
	switch {
	case s.hasPrefix("//") && atWordStart(s):
		s.consumeUntil("\n")

	case s.hasPrefix("/*"):
		s.advanceTo(s.pos + 2)

		if _, ok := s.consumeUntil("*/"); ok {
			s.advanceTo(s.pos + 2)
		}

	case s.hasPrefix("```"):
		s.advanceTo(s.pos + 3)

		if _, ok := s.consumeUntil("```"); ok {
			s.advanceTo(s.pos + 3)
		}

	case s.hasPrefix("`"):
		t := *s
		t.advance()

		if _, ok := t.consumeUntil("`"); ok {
			t.advance()
			*s = t
		} else {
			s.advance()
		}

	default:
		s.advance()
	}
}

// atWordStart reports whether the cursor follows whitespace or starts the
// input, which distinguishes a comment from the // in a URL.
func atWordStart(s *scanner) bool {
	r := s.prev()

	return r == 0 || unicode.IsSpace(r)
}

// parseConstruct parses the construct starting at the cursor, if any. ok is
// false, and the cursor unchanged, when the input at the cursor is text.
// A construct that produces no output, such as an excluded region, returns
// a nil node with ok set.
func (p *parser) parseConstruct(s *scanner) (Node, bool, error) {
	switch s.peek() {
	case '/':
		if !s.atLineStart() {
			break
		}

		if n, ok := s.match(noTexBegin...); ok {
			return nil, true, p.parseNoTex(s, n)
		}

		if n, ok := s.match(texBegin...); ok {
			raw, err := p.parseTex(s, n)

			return raw, true, err
		}

		if _, ok := s.match(noTexEnd...); ok {
			return nil, false, strayDirective(s, noTexBegin)
		}

	case 'E':
		if _, ok := s.match(texEnd...); ok {
			return nil, false, strayDirective(s, texBegin)
		}

	case '#':
		return p.parseHash(s)

	case '@':
		return p.parseAt(s)
	}

	return nil, false, nil
}

func strayDirective(s *scanner, opener []string) error {
	return ErrMalformedDirective.WithPosition(s.position()).
		Wrap(errors.New("terminator without " + strings.Join(opener, " "))).
		With(expectedAttr(strings.Join(opener, " ")))
}

func unterminated(at Position, term []string) error {
	t := strings.Join(term, " ")

	return ErrMalformedDirective.WithPosition(at).
		Wrap(errors.New("missing " + t)).
		With(expectedAttr(t))
}

func nested(s *scanner, term []string) error {
	t := strings.Join(term, " ")

	return ErrMalformedDirective.WithPosition(s.position()).
		Wrap(errors.New("nested directive before " + t)).
		With(expectedAttr(t))
}

// openerAt reports whether a directive opener of either kind begins the line
// at the cursor.
func openerAt(s *scanner) bool {
	if !s.atLineStart() {
		return false
	}

	_, a := s.match(noTexBegin...)
	_, b := s.match(texBegin...)

	return a || b
}

// parseNoTex consumes an excluded region through the end of the line holding
// its terminator. n is the length of the opener at the cursor.
func (p *parser) parseNoTex(s *scanner, n int) error {
	at := s.position()
	s.advanceTo(s.pos + n)

	for ; !s.eof(); s.advance() {
		if m, ok := s.match(noTexEnd...); ok {
			s.advanceTo(s.pos + m)
			s.skipLine()

			p.logger.TraceContext(p.ctx, "excluded region",
				slog.String("from", at.String()),
				slog.String("to", s.position().String()))

			return nil
		}

		if openerAt(s) {
			return nested(s, noTexEnd)
		}
	}

	return unterminated(at, noTexEnd)
}

// parseTex consumes a verbatim region. The span starts after the opener line
// and ends before the terminator, excluding the whitespace and line break
// immediately preceding it.
func (p *parser) parseTex(s *scanner, n int) (Node, error) {
	at := s.position()
	s.advanceTo(s.pos + n)
	s.skipBlank()
	s.expect('\r')
	s.expect('\n')

	start := s.pos

	for ; !s.eof(); s.advance() {
		if m, ok := s.match(texEnd...); ok {
			span := strings.TrimRight(s.input[start:s.pos], " \t")
			span = strings.TrimSuffix(span, "\n")
			span = strings.TrimSuffix(span, "\r")

			s.advanceTo(s.pos + m)
			s.skipLine()

			return &RawInsert{Span: span, Pos: at}, nil
		}

		if openerAt(s) {
			return nil, nested(s, texEnd)
		}
	}

	return nil, unterminated(at, texEnd)
}

// parseAt classifies an @key token. An @ preceded by a letter, digit or
// backslash, or not followed by a key, is text.
func (p *parser) parseAt(s *scanner) (Node, bool, error) {
	if r := s.prev(); unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\\' {
		return nil, false, nil
	}

	n := keyLen(s.rest()[1:])
	if n == 0 {
		return nil, false, nil
	}

	at := s.position()
	key := s.rest()[1 : 1+n]
	s.advanceTo(s.pos + 1 + n)

	node := classify(key, p.keys, at)

	p.logger.TraceContext(p.ctx, "classified key",
		slog.String("key", key),
		slog.Bool("citation", isCitation(node)))

	return node, true, nil
}

func isCitation(n Node) bool {
	_, ok := n.(*Citation)

	return ok
}

// parseHash parses #figure, #grid and environment blocks. Any other use of
// # is text.
func (p *parser) parseHash(s *scanner) (Node, bool, error) {
	if s.prev() == '\\' {
		return nil, false, nil
	}

	at := s.position()

	t := *s
	t.advance()

	if !isIdentStart(t.peek()) {
		return nil, false, nil
	}

	name := t.consumeWhile(isIdentContinue)
	next := t.peek()

	var (
		node Node
		err  error
	)

	switch {
	case name == "figure" && (next == '[' || next == '('):
		node, err = p.parseFigure(&t, at)
	case name == "grid" && (next == '[' || next == '('):
		node, err = p.parseGrid(&t, at)
	case next == '[' && p.isKind(name):
		node, err = p.parseEnvironment(&t, name, at)
	default:
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	*s = t

	return node, true, nil
}

// block consumes the bracket block at the cursor and returns a scanner over
// its contents.
func block(s *scanner, opener, closer byte) (scanner, error) {
	at := s.position()
	s.advance()

	inner := *s

	span, err := s.extract(opener, closer, at)
	if err != nil {
		return scanner{}, err
	}

	return inner.bounded(inner.pos + len(span)), nil
}

func (p *parser) parseBlock(inner scanner) ([]Node, error) {
	body := inner.trimmed()

	return p.parseNodes(&body)
}

func (p *parser) parseEnvironment(
	s *scanner,
	kind string,
	at Position,
) (*Environment, error) {
	inner, err := block(s, '[', ']')
	if err != nil {
		return nil, err
	}

	env := &Environment{Kind: kind, Pos: at}

	// The title is the first line, present only when a line break follows.
	if i := titleBreak(inner.rest()); i >= 0 {
		if title := strings.TrimSpace(inner.rest()[:i]); title != "" {
			env.Title = &title
			env.Heading = p.parseHeading(inner.bounded(inner.pos + i).trimmed())
		}

		inner.advanceTo(inner.pos + i + 1)
	}

	if env.Body, err = p.parseBlock(inner); err != nil {
		return nil, err
	}

	env.Label = parseLabel(s)

	p.logger.TraceContext(p.ctx, "environment",
		slog.String("kind", kind),
		slog.String("at", at.String()),
		slog.Bool("titled", env.Title != nil),
		slog.Int("children", len(env.Body)))

	return env, nil
}

// parseHeading splits a title into text and classified @key tokens. It
// returns nil if the title has no tokens.
func (p *parser) parseHeading(s scanner) []Node {
	var nodes []Node

	text := s

	for !s.eof() {
		before := s

		if s.peek() == '@' {
			if node, ok, _ := p.parseAt(&s); ok {
				if before.pos > text.pos {
					nodes = append(nodes, &Text{
						Span: s.input[text.pos:before.pos],
						Pos:  text.position(),
					})
				}

				nodes = append(nodes, node)
				text = s

				continue
			}
		}

		s.advance()
	}

	if nodes == nil {
		return nil
	}

	if s.pos > text.pos {
		nodes = append(nodes, &Text{
			Span: s.input[text.pos:s.pos],
			Pos:  text.position(),
		})
	}

	return nodes
}

// titleBreak returns the offset of the line break ending the title line of
// an environment body, or -1 if there is none. A line break inside a bracket
// opened on the first line does not end a title.
func titleBreak(body string) int {
	depth := 0

	for i := range len(body) {
		switch body[i] {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		case '\n':
			if depth > 0 {
				return -1
			}

			return i
		}
	}

	return -1
}

// parseLabel consumes a <label> following a block on the same line.
func parseLabel(s *scanner) string {
	t := *s
	t.skipBlank()

	if !t.expect('<') {
		return ""
	}

	name := t.consumeWhile(func(r rune) bool {
		return r < 0x80 && isKeyByte(byte(r))
	})

	if name == "" || !t.expect('>') {
		return ""
	}

	*s = t

	return name
}

// argument is one entry of a call's argument list. A named argument has a
// name; the value is either a bracket block or a code expression starting
// at pos.
type argument struct {
	name  string
	value scanner
	code  string
	block bool
	pos   Position
}

// parseArgs splits the argument list in region s at top-level commas.
func parseArgs(s scanner) ([]argument, error) {
	var args []argument

	for {
		s.consumeWhile(func(r rune) bool { return isSpace(r) || r == ',' })

		if s.eof() {
			return args, nil
		}

		var arg argument

		t := s
		if name := t.consumeWhile(isIdentContinue); name != "" && isIdentStart(rune(name[0])) {
			t.skipSpace()

			if t.peek() == ':' {
				t.advance()
				t.skipSpace()

				if err := t.need(); err != nil {
					return nil, err
				}

				arg.name, s = name, t
			}
		}

		arg.pos = s.position()

		if s.peek() == '[' {
			inner, err := block(&s, '[', ']')
			if err != nil {
				return nil, err
			}

			arg.value, arg.block = inner, true
		} else {
			arg.value = s
			arg.code = strings.TrimSpace(consumeExpr(&s))
		}

		args = append(args, arg)
	}
}

// consumeExpr consumes a code expression up to the next comma outside of
// any brackets or string literal.
func consumeExpr(s *scanner) string {
	start, depth, quoted := s.pos, 0, false

	for ; !s.eof(); s.advance() {
		switch c := s.peek(); {
		case quoted && c == '\\':
			s.advance()
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == ',' && depth <= 0:
			return s.input[start:s.pos]
		}
	}

	return s.input[start:s.pos]
}

// code returns a Text node for a code-mode expression, re-prefixed with #
// so the converter sees markup.
func code(arg argument) Node {
	return &Text{Span: "#" + arg.code, Pos: arg.pos}
}

func (p *parser) parseFigure(s *scanner, at Position) (*Figure, error) {
	fig := &Figure{Pos: at}

	if s.peek() == '(' {
		inner, err := block(s, '(', ')')
		if err != nil {
			return nil, err
		}

		args, err := parseArgs(inner)
		if err != nil {
			return nil, err
		}

		for _, arg := range args {
			if err := p.figureArg(fig, arg); err != nil {
				return nil, err
			}
		}
	}

	// Trailing content blocks are further body arguments.
	for s.peek() == '[' {
		inner, err := block(s, '[', ']')
		if err != nil {
			return nil, err
		}

		body, err := p.parseBlock(inner)
		if err != nil {
			return nil, err
		}

		fig.Body = append(fig.Body, body...)
	}

	fig.Label = parseLabel(s)

	p.logger.TraceContext(p.ctx, "figure",
		slog.String("at", at.String()),
		slog.Bool("captioned", fig.Caption != nil),
		slog.Int("children", len(fig.Body)))

	return fig, nil
}

func (p *parser) figureArg(fig *Figure, arg argument) error {
	switch {
	case arg.name == "caption":
		caption := &Content{Pos: arg.pos}

		switch {
		case arg.block:
			body, err := p.parseBlock(arg.value)
			if err != nil {
				return err
			}

			caption.Body = body
		case isStringLiteral(arg.code):
			caption.Body = []Node{&Text{
				Span: arg.code[1 : len(arg.code)-1],
				Pos:  arg.pos,
			}}
		default:
			caption.Body = []Node{code(arg)}
		}

		fig.Caption = caption

	case arg.name != "":
		p.logger.TraceContext(p.ctx, "ignored figure argument",
			slog.String("name", arg.name))

	case arg.block:
		body, err := p.parseBlock(arg.value)
		if err != nil {
			return err
		}

		fig.Body = append(fig.Body, body...)

	case strings.HasPrefix(arg.code, "grid(") || strings.HasPrefix(arg.code, "grid["):
		t := arg.value
		t.skipSpace()
		t.advanceTo(t.pos + len("grid"))

		grid, err := p.parseGrid(&t, arg.pos)
		if err != nil {
			return err
		}

		fig.Body = append(fig.Body, grid)

	case arg.code != "":
		fig.Body = append(fig.Body, code(arg))
	}

	return nil
}

func isStringLiteral(s string) bool {
	return len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' &&
		!strings.Contains(s[1:len(s)-1], `"`)
}

// parseGrid parses the argument list and trailing blocks of a grid call.
// Every positional argument becomes a cell; named arguments are ignored.
func (p *parser) parseGrid(s *scanner, at Position) (*Grid, error) {
	grid := &Grid{Pos: at}

	if s.peek() == '(' {
		inner, err := block(s, '(', ')')
		if err != nil {
			return nil, err
		}

		args, err := parseArgs(inner)
		if err != nil {
			return nil, err
		}

		for _, arg := range args {
			switch {
			case arg.name != "":
				continue
			case arg.block:
				cell, err := p.parseBlock(arg.value)
				if err != nil {
					return nil, err
				}

				grid.Cells = append(grid.Cells, &Content{Body: cell, Pos: arg.pos})
			case arg.code != "":
				grid.Cells = append(grid.Cells, &Content{
					Body: []Node{code(arg)},
					Pos:  arg.pos,
				})
			}
		}
	}

	for s.peek() == '[' {
		pos := s.position()

		inner, err := block(s, '[', ']')
		if err != nil {
			return nil, err
		}

		cell, err := p.parseBlock(inner)
		if err != nil {
			return nil, err
		}

		grid.Cells = append(grid.Cells, &Content{Body: cell, Pos: pos})
	}

	p.logger.TraceContext(p.ctx, "grid",
		slog.String("at", at.String()),
		slog.Int("cells", len(grid.Cells)))

	return grid, nil
}
