package pkg

import (
	"errors"
	"io/fs"
	"log/slog"
	"testing"
)

var errSentinel = NewError("open thing")

func TestErrorIs(t *testing.T) {
	err := errSentinel.Wrap(fs.ErrNotExist).With(slog.String("path", "x"))

	if !errors.Is(err, errSentinel) {
		t.Error("derived error does not match sentinel")
	}

	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("derived error does not match cause")
	}

	if errors.Is(err, NewError("other")) {
		t.Error("derived error matches unrelated sentinel")
	}

	if got, want := err.Error(), "open thing: file does not exist"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorLogValue(t *testing.T) {
	err := errSentinel.Wrap(fs.ErrExist).With(slog.Int("n", 2))

	got := map[string]string{}
	for _, a := range err.LogValue().Group() {
		got[a.Key] = a.Value.String()
	}

	want := map[string]string{
		"error": "open thing",
		"cause": "file already exists",
		"n":     "2",
	}

	for k, v := range want {
		if got[k] != v {
			t.Errorf("attr %s = %q, want %q", k, got[k], v)
		}
	}
}
