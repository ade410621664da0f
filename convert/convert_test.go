package convert

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestKindString(t *testing.T) {
	for k, want := range map[Kind]string{
		KindText:    "text",
		KindTitle:   "title",
		KindCaption: "caption",
		Kind(9):     "unknown",
	} {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}

func TestIdentity(t *testing.T) {
	got, err := Identity.Convert(context.Background(), "*x*", KindTitle)
	if err != nil || got != "*x*" {
		t.Errorf("Identity = (%q, %v)", got, err)
	}
}

// fakePandoc writes an executable named pandoc with the given shell body
// into a new directory and returns the directory.
func fakePandoc(t *testing.T, body string) string {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("shell script converters need a POSIX shell")
	}

	dir := t.TempDir()
	script := "#!/bin/sh\n" + body + "\n"

	if err := os.WriteFile(filepath.Join(dir, "pandoc"), []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	return dir
}

func TestPandocConvert(t *testing.T) {
	dir := fakePandoc(t, `[ "$*" = "-f typst -t latex" ] || exit 2
printf 'latex:'
cat
printf '\n\n'`)

	p := NewPandoc(WithSearchDirs(dir))

	if err := p.Available(); err != nil {
		t.Fatalf("Available() = %v", err)
	}

	got, err := p.Convert(context.Background(), "*bold*", KindText)
	if err != nil {
		t.Fatalf("Convert error = %v", err)
	}

	if got != "latex:*bold*" {
		t.Errorf("Convert = %q", got)
	}

	got, err = p.Convert(context.Background(), " \n\t", KindText)
	if err != nil || got != "" {
		t.Errorf("Convert(blank) = (%q, %v)", got, err)
	}
}

func TestPandocSearchPath(t *testing.T) {
	p := NewPandoc(WithSearchDirs("/opt/a", "/opt/b"))

	list := filepath.SplitList(p.SearchPath())
	if len(list) < 2 || list[0] != "/opt/a" || list[1] != "/opt/b" {
		t.Errorf("SearchPath() = %v", list)
	}
}

func TestPandocFailure(t *testing.T) {
	dir := fakePandoc(t, `echo "unexpected token" >&2; exit 1`)

	_, err := NewPandoc(WithSearchDirs(dir), WithRetries(0)).
		Convert(context.Background(), "x", KindCaption)

	if !errors.Is(err, ErrConvert) {
		t.Fatalf("error = %v, want ErrConvert", err)
	}

	if !strings.Contains(err.Error(), "unexpected token") {
		t.Errorf("error %q does not carry stderr", err)
	}
}

func TestPandocRetry(t *testing.T) {
	state := filepath.Join(t.TempDir(), "failed-once")
	dir := fakePandoc(t, `if [ ! -f '`+state+`' ]; then touch '`+state+`'; exit 1; fi
cat`)

	got, err := NewPandoc(WithSearchDirs(dir), WithRetries(1)).
		Convert(context.Background(), "again", KindText)
	if err != nil || got != "again" {
		t.Errorf("Convert = (%q, %v), want success on retry", got, err)
	}
}

func TestPandocTimeout(t *testing.T) {
	dir := fakePandoc(t, `exec sleep 5`)

	start := time.Now()

	_, err := NewPandoc(
		WithSearchDirs(dir),
		WithTimeout(50*time.Millisecond),
		WithRetries(0),
	).Convert(context.Background(), "x", KindText)

	if !errors.Is(err, ErrConvert) || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("error = %v, want timeout", err)
	}

	if time.Since(start) > 4*time.Second {
		t.Error("timeout did not stop the process")
	}
}

func TestPandocUnavailable(t *testing.T) {
	p := NewPandoc(WithProgram("typtex-no-such-pandoc"))

	if err := p.Available(); !errors.Is(err, ErrConverterUnavailable) {
		t.Errorf("Available() = %v", err)
	}

	_, err := p.Convert(context.Background(), "x", KindText)
	if !errors.Is(err, ErrConverterUnavailable) {
		t.Errorf("Convert error = %v", err)
	}

	p = NewPandoc(WithProgram(filepath.Join(t.TempDir(), "pandoc")))
	if err := p.Available(); !errors.Is(err, ErrConverterUnavailable) {
		t.Errorf("Available(missing path) = %v", err)
	}
}

func TestCache(t *testing.T) {
	var calls atomic.Int32

	next := ConverterFunc(func(_ context.Context, span string, kind Kind) (string, error) {
		calls.Add(1)

		if span == "bad" {
			return "", errors.New("refused")
		}

		return kind.String() + ":" + strings.ToUpper(span), nil
	})

	path := filepath.Join(t.TempDir(), "convert.db")

	c, err := OpenCache(path, next, WithNamespace("test"))
	if err != nil {
		t.Fatalf("OpenCache error = %v", err)
	}

	ctx := context.Background()

	for range 3 {
		if got, err := c.Convert(ctx, "abc", KindText); err != nil || got != "text:ABC" {
			t.Fatalf("Convert = (%q, %v)", got, err)
		}
	}

	if got, _ := c.Convert(ctx, "abc", KindTitle); got != "title:ABC" {
		t.Errorf("kind not part of key: %q", got)
	}

	if _, err := c.Convert(ctx, "bad", KindText); err == nil {
		t.Error("error not propagated")
	}

	if _, err := c.Convert(ctx, "bad", KindText); err == nil {
		t.Error("failure was cached")
	}

	if n := calls.Load(); n != 4 {
		t.Errorf("wrapped converter called %d times, want 4", n)
	}

	if hits, misses := c.Stats(); hits != 2 || misses != 4 {
		t.Errorf("Stats() = (%d, %d), want (2, 4)", hits, misses)
	}

	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	// Results persist across opens.
	c, err = OpenCache(path, next, WithNamespace("test"))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, err := c.Convert(ctx, "abc", KindText); err != nil || calls.Load() != 4 {
		t.Errorf("reopened cache missed: calls=%d err=%v", calls.Load(), err)
	}

	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Convert(ctx, "abc", KindText); err != nil || calls.Load() != 5 {
		t.Errorf("Clear did not drop results: calls=%d", calls.Load())
	}
}
