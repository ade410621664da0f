package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  Level
	}{
		{"trace", LevelTrace},
		{"TRACE", LevelTrace},
		{" Trace ", LevelTrace},
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"bogus", DefaultLevel},
		{"", DefaultLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestLevelString(t *testing.T) {
	got := slices.Collect(Levels())
	want := []string{"trace", "debug", "info", "warn", "error"}

	if !slices.Equal(got, want) {
		t.Errorf("Levels() = %v, want %v", got, want)
	}

	for _, s := range got {
		if ParseLevel(s).String() != s {
			t.Errorf("ParseLevel(%q).String() = %q", s, ParseLevel(s).String())
		}
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"text", FormatText},
		{"Text", FormatText},
		{"yaml", DefaultFormat},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseFormat(tt.input); got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}

	if got := slices.Collect(Formats()); !slices.Equal(got, []string{"json", "text"}) {
		t.Errorf("Formats() = %v", got)
	}
}

func TestMakeFormatTimeFunc(t *testing.T) {
	ts := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)

	tests := []struct {
		layout string
		want   string
	}{
		{"RFC3339", "2024-03-09T14:05:06Z"},
		{"rfc-3339", "2024-03-09T14:05:06Z"},
		{"kitchen", "2:05PM"},
		{"2006/01/02", "2024/03/09"},
		{"none", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.layout, func(t *testing.T) {
			if got := makeFormatTimeFunc(tt.layout)(ts); got != tt.want {
				t.Errorf("format(%q) = %q, want %q", tt.layout, got, tt.want)
			}
		})
	}
}

func TestLoggerJSON(t *testing.T) {
	var buf bytes.Buffer

	l := Make(&buf, WithLevel(LevelTrace), WithTimeLayout("none"))
	l.Trace("parsed node", slog.String("kind", "theorem"))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}

	if rec["level"] != "TRACE" {
		t.Errorf("level = %v, want TRACE", rec["level"])
	}

	if rec["msg"] != "parsed node" {
		t.Errorf("msg = %v", rec["msg"])
	}

	if rec["kind"] != "theorem" {
		t.Errorf("kind = %v", rec["kind"])
	}

	if _, ok := rec["time"]; ok {
		t.Errorf("time present with layout none: %v", rec["time"])
	}
}

func TestLoggerLevelFilter(t *testing.T) {
	var buf bytes.Buffer

	l := Make(&buf, WithLevel(LevelWarn), WithFormat(FormatText))
	l.Info("hidden")
	l.Debug("hidden")
	l.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("output contains filtered message: %q", out)
	}

	if !strings.Contains(out, "shown") {
		t.Errorf("output missing warning: %q", out)
	}

	if !l.Enabled(context.Background(), LevelError) {
		t.Error("Enabled(LevelError) = false")
	}

	if l.Enabled(context.Background(), LevelInfo) {
		t.Error("Enabled(LevelInfo) = true")
	}
}

func TestLoggerWrapIsolated(t *testing.T) {
	var buf bytes.Buffer

	base := Make(&buf, WithLevel(LevelInfo))
	derived := base.Wrap(WithLevel(LevelDebug), WithFormat(FormatText))

	if base.Level() != LevelInfo || base.Format() != FormatJSON {
		t.Errorf("base changed: level=%v format=%v", base.Level(), base.Format())
	}

	if derived.Level() != LevelDebug || derived.Format() != FormatText {
		t.Errorf("derived = level=%v format=%v", derived.Level(), derived.Format())
	}
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer

	l := Make(&buf, WithFormat(FormatText)).With(slog.String("file", "a.typ"))
	l.Info("converted")

	if !strings.Contains(buf.String(), "file=a.typ") {
		t.Errorf("output missing attr: %q", buf.String())
	}
}

func TestLoggerCaller(t *testing.T) {
	var buf bytes.Buffer

	l := Make(&buf, WithCaller(true))
	l.Info("here")

	if !strings.Contains(buf.String(), "log_test.go") {
		t.Errorf("source does not point at caller: %q", buf.String())
	}
}

func TestZeroLogger(t *testing.T) {
	var l Logger

	l.Error("dropped")
	l.With(slog.Int("n", 1)).Info("dropped")

	if l.Level() != DefaultLevel {
		t.Errorf("Level() = %v", l.Level())
	}

	if l.Enabled(context.Background(), LevelError) {
		t.Error("zero logger reports enabled")
	}

	if Discard().Logger != nil {
		t.Error("Discard() returned a live logger")
	}
}

func TestPrettyText(t *testing.T) {
	var buf bytes.Buffer

	l := Make(&buf,
		WithFormat(FormatText),
		WithPretty(true),
		WithTimeLayout("none"),
		WithLevel(LevelTrace),
	).With(slog.String("pass", "convert"))

	l.Trace("node", slog.Int("index", 3), slog.Bool("cached", true))

	out := buf.String()
	for _, want := range []string{
		"level=TRACE", "msg=node", "pass=convert", "index=3", "cached=true",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}

	if strings.Count(out, "\n") != 1 {
		t.Errorf("want single line, got %q", out)
	}
}

func TestPrettyJSON(t *testing.T) {
	var buf bytes.Buffer

	l := Make(&buf, WithPretty(true), WithTimeLayout("none"))
	l.Warn("slow", slog.Group("pandoc", slog.Int("attempt", 2)))

	out := buf.String()
	if !strings.HasPrefix(out, "{\n") || !strings.HasSuffix(out, "\n}\n") {
		t.Errorf("output not an indented object: %q", out)
	}

	for _, want := range []string{"level: WARN", "msg: slow", "pandoc.attempt: 2"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	saved := Default()
	t.Cleanup(func() { defaultLog.Store(&saved) })

	var buf bytes.Buffer

	Config(WithOutput(&buf), WithLevel(LevelDebug), WithFormat(FormatJSON))
	Debug("configured", slog.String("key", "value"))

	out := buf.String()
	if !strings.Contains(out, "DEBUG") || !strings.Contains(out, `"key":"value"`) {
		t.Errorf("default logger output = %q", out)
	}

	if Default().Level() != LevelDebug {
		t.Errorf("Default().Level() = %v", Default().Level())
	}
}
