package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// palette holds the styles used to colorize log output. Styles are bound to a
// renderer for the output writer, so color is dropped when the writer is not a
// terminal.
type palette struct {
	key, str, num, dur, tim, null lipgloss.Style
	yes, no                       lipgloss.Style
	trace, debug, info, warn, err lipgloss.Style
}

func newPalette(w io.Writer) palette {
	r := lipgloss.NewRenderer(w)
	fg := func(c string) lipgloss.Style {
		return r.NewStyle().Foreground(lipgloss.Color(c))
	}

	return palette{
		key:   fg("8"),
		str:   fg("6"),
		num:   fg("3"),
		dur:   fg("5"),
		tim:   fg("4"),
		null:  fg("8"),
		yes:   fg("2"),
		no:    fg("1"),
		trace: fg("8"),
		debug: fg("4"),
		info:  fg("2"),
		warn:  fg("3").Bold(true),
		err:   fg("1").Bold(true),
	}
}

func (p palette) level(l slog.Level) lipgloss.Style {
	switch {
	case l >= slog.LevelError:
		return p.err
	case l >= slog.LevelWarn:
		return p.warn
	case l >= slog.LevelInfo:
		return p.info
	case l >= slog.LevelDebug:
		return p.debug
	default:
		return p.trace
	}
}

// prettyHandler renders records either as colorized key=value pairs on one
// line or as an indented JSON-like object.
type prettyHandler struct {
	opts       slog.HandlerOptions
	style      palette
	formatTime FormatTime
	mu         *sync.Mutex
	w          io.Writer
	attrs      []slog.Attr
	groups     []string
	json       bool
}

func newPrettyTextHandler(
	w io.Writer,
	opts *slog.HandlerOptions,
	ft FormatTime,
) *prettyHandler {
	return newPrettyHandler(w, opts, ft, false)
}

func newPrettyJSONHandler(
	w io.Writer,
	opts *slog.HandlerOptions,
	ft FormatTime,
) *prettyHandler {
	return newPrettyHandler(w, opts, ft, true)
}

func newPrettyHandler(
	w io.Writer,
	opts *slog.HandlerOptions,
	ft FormatTime,
	json bool,
) *prettyHandler {
	return &prettyHandler{
		opts:       *opts,
		style:      newPalette(w),
		formatTime: ft,
		mu:         &sync.Mutex{},
		w:          w,
		json:       json,
	}
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	buf := new(bytes.Buffer)
	first := true

	if h.json {
		buf.WriteString("{")
	}

	if !r.Time.IsZero() {
		if ts := h.formatTime(r.Time); ts != "" {
			h.field(buf, &first, slog.TimeKey, h.style.tim.Render(ts))
		}
	}

	h.field(buf, &first, slog.LevelKey,
		h.style.level(r.Level).Render(levelName(r.Level)))

	if h.opts.AddSource {
		if src := r.Source(); src != nil && src.File != "" {
			h.field(buf, &first, slog.SourceKey,
				h.style.str.Render(fmt.Sprintf("%s:%d", src.File, src.Line)))
		}
	}

	h.field(buf, &first, slog.MessageKey, h.style.str.Render(r.Message))

	for _, a := range h.attrs {
		h.attr(buf, &first, a)
	}

	r.Attrs(func(a slog.Attr) bool {
		h.attr(buf, &first, a)

		return true
	})

	if h.json {
		buf.WriteString("\n}")
	}

	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := h.w.Write(buf.Bytes())

	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(h.attrs[:len(h.attrs):len(h.attrs)], h.qualify(attrs)...)

	return &c
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	c := *h
	c.groups = append(h.groups[:len(h.groups):len(h.groups)], name)

	return &c
}

func (h *prettyHandler) qualify(attrs []slog.Attr) []slog.Attr {
	if len(h.groups) == 0 {
		return attrs
	}

	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		key := a.Key
		for j := len(h.groups) - 1; j >= 0; j-- {
			key = h.groups[j] + "." + key
		}

		out[i] = slog.Attr{Key: key, Value: a.Value}
	}

	return out
}

func (h *prettyHandler) field(
	buf *bytes.Buffer,
	first *bool,
	key, rendered string,
) {
	switch {
	case h.json && *first:
		buf.WriteString("\n  ")
	case h.json:
		buf.WriteString(",\n  ")
	case !*first:
		buf.WriteByte(' ')
	}

	*first = false

	buf.WriteString(h.style.key.Render(key))

	if h.json {
		buf.WriteString(": ")
	} else {
		buf.WriteByte('=')
	}

	buf.WriteString(rendered)
}

func (h *prettyHandler) attr(buf *bytes.Buffer, first *bool, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, g := range a.Value.Group() {
			if a.Key != "" {
				g.Key = a.Key + "." + g.Key
			}

			h.attr(buf, first, g)
		}

		return
	}

	h.field(buf, first, a.Key, h.value(a.Value))
}

func (h *prettyHandler) value(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return h.style.str.Render(v.String())
	case slog.KindInt64:
		return h.style.num.Render(strconv.FormatInt(v.Int64(), 10))
	case slog.KindUint64:
		return h.style.num.Render(strconv.FormatUint(v.Uint64(), 10))
	case slog.KindFloat64:
		return h.style.num.Render(strconv.FormatFloat(v.Float64(), 'g', -1, 64))
	case slog.KindBool:
		if v.Bool() {
			return h.style.yes.Render("true")
		}

		return h.style.no.Render("false")
	case slog.KindDuration:
		return h.style.dur.Render(v.Duration().String())
	case slog.KindTime:
		return h.style.tim.Render(v.Time().Format(time.RFC3339))
	default:
		if v.Any() == nil {
			return h.style.null.Render("null")
		}

		return h.style.str.Render(v.String())
	}
}

func levelName(l slog.Level) string {
	if Level(l) == LevelTrace {
		return "TRACE"
	}

	return l.String()
}
