package typst

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Predefined errors (sentinel values).
var (
	ErrUnbalancedBrackets = NewError("unbalanced brackets")
	ErrUnexpectedEnd      = NewError("unexpected end of input")
	ErrMalformedDirective = NewError("malformed directive")
	ErrReadInput          = NewError("failed to read input")
)

// Error represents a parse failure with an optional source position and
// structured logging attributes.
// It implements both error and slog.LogValuer interfaces.
type Error struct {
	msg   string
	err   error       // Wrapped error (for errors.Unwrap)
	pos   *Position   // Where the failure was detected, if known
	attrs []slog.Attr // Attributes for structured logging
}

// NewError creates a new Error with a message.
func NewError(msg string) *Error {
	return &Error{msg: msg}
}

// WrapError wraps a standard error into an Error.
func WrapError(err error) *Error {
	ee := &Error{}
	if errors.As(err, &ee) {
		return ee
	}

	return &Error{err: err}
}

// Error implements the error interface.
//
// The message has the form "<line>:<column>: <msg>: <cause>", omitting
// whichever parts are unset.
func (e *Error) Error() string {
	part := make([]string, 0, 3)

	if e.pos != nil {
		part = append(part, e.pos.String())
	}

	if e.msg != "" {
		part = append(part, e.msg)
	}

	if e.err != nil {
		part = append(part, e.err.Error())
	}

	return strings.Join(part, ": ")
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error { return e.err }

// Is reports whether target is a sentinel with the same message, so that
// positioned or wrapped copies still match with [errors.Is].
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.msg == "" {
		return false
	}

	return t.msg == e.msg
}

// LogValue implements slog.LogValuer for rich structured logging.
func (e *Error) LogValue() slog.Value {
	attrs := make([]slog.Attr, 0, len(e.attrs)+4)

	if e.msg != "" {
		attrs = append(attrs, slog.String("error", e.msg))
	}

	if e.err != nil {
		attrs = append(attrs, slog.String("cause", e.err.Error()))
	}

	if e.pos != nil {
		attrs = append(attrs,
			slog.Int("line", e.pos.Line),
			slog.Int("column", e.pos.Column))
	}

	return slog.GroupValue(append(attrs, e.attrs...)...)
}

// Wrap creates a new Error wrapping another error.
func (e *Error) Wrap(err error) *Error {
	return &Error{
		msg:   e.msg,
		err:   err,
		pos:   e.pos,
		attrs: e.attrs,
	}
}

// With adds attributes to the error for structured logging.
// This creates a new Error instance to maintain immutability.
func (e *Error) With(attrs ...slog.Attr) *Error {
	newAttrs := make([]slog.Attr, len(e.attrs)+len(attrs))
	copy(newAttrs, e.attrs)
	copy(newAttrs[len(e.attrs):], attrs)

	return &Error{
		msg:   e.msg,
		err:   e.err,
		pos:   e.pos,
		attrs: newAttrs,
	}
}

// WithPosition returns a copy of the error located at pos.
func (e *Error) WithPosition(pos Position) *Error {
	return &Error{
		msg:   e.msg,
		err:   e.err,
		pos:   &pos,
		attrs: e.attrs,
	}
}

// Position returns the source position of the error, if any.
func (e *Error) Position() (Position, bool) {
	if e.pos == nil {
		return Position{}, false
	}

	return *e.pos, true
}

// Snippet returns the source line containing the error followed by a caret
// under the offending column:
//
//	12 | #theorem[Title
//	             ^
//
// It returns the empty string if the error has no position within source.
func (e *Error) Snippet(source string) string {
	if e.pos == nil || e.pos.Line < 1 {
		return ""
	}

	lines := strings.Split(source, "\n")
	if e.pos.Line > len(lines) {
		return ""
	}

	line := strings.TrimRight(lines[e.pos.Line-1], "\r")
	num := strconv.Itoa(e.pos.Line)

	var src strings.Builder

	src.WriteString(num)
	src.WriteString(" | ")
	src.WriteString(line)
	src.WriteByte('\n')
	src.WriteString(strings.Repeat(" ", len(num)))
	src.WriteString(" | ")

	// Tabs are kept so the caret lines up with the rendered source line.
	for i, r := 0, line; i < e.pos.Column-1 && r != ""; i++ {
		c, size := utf8.DecodeRuneInString(r)
		if c == '\t' {
			src.WriteByte('\t')
		} else {
			src.WriteByte(' ')
		}

		r = r[size:]
	}

	src.WriteString("^")

	return src.String()
}

func expectedAttr(s string) slog.Attr {
	return slog.String("expected", s)
}
