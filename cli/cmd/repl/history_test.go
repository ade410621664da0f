package repl

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHistoryPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), baseHistory)

	h, err := LoadHistory(path)
	if err != nil {
		t.Fatal(err)
	}

	for _, add := range []struct {
		line string
		mode inputMode
	}{
		{"#lemma[A\nB]", modePreview},
		{"keys", modeCtrl},
		{"@x", modePreview},
		{"#lemma[A\nB]", modePreview}, // moves to the end
		{"@x", modeCtrl},
	} {
		if err := h.Add(add.line, add.mode); err != nil {
			t.Fatal(err)
		}
	}

	reloaded, err := LoadHistory(path)
	if err != nil {
		t.Fatal(err)
	}

	want := []entry{
		{"keys", modeCtrl},
		{"@x", modePreview},
		{"#lemma[A\nB]", modePreview},
		{"@x", modeCtrl},
	}

	if reloaded.Len() != len(want) {
		t.Fatalf("Len = %d, want %d", reloaded.Len(), len(want))
	}

	for i, w := range want {
		line, mode, err := reloaded.At(i)
		if err != nil || line != w.line || mode != w.mode {
			t.Errorf("At(%d) = %q, %d, %v; want %q, %d", i, line, mode, err, w.line, w.mode)
		}
	}

	if _, _, err := reloaded.At(len(want)); err != ErrOutOfBounds {
		t.Errorf("At(out of range) error = %v", err)
	}
}

func TestHistoryFind(t *testing.T) {
	h, _ := LoadHistory("")

	_ = h.Add("a", modePreview)
	_ = h.Add("b", modeCtrl)
	_ = h.Add("c", modePreview)

	if got := h.Find(h.Len(), -1, modeCtrl, false); got != 1 {
		t.Errorf("Find ctrl = %d, want 1", got)
	}

	if got := h.Find(2, -1, modePreview, false); got != 0 {
		t.Errorf("Find preview = %d, want 0", got)
	}

	if got := h.Find(2, -1, modePreview, true); got != 1 {
		t.Errorf("Find any = %d, want 1", got)
	}

	if got := h.Find(0, -1, modePreview, true); got != -1 {
		t.Errorf("Find before start = %d, want -1", got)
	}
}

func TestHistorySkipsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), baseHistory)

	content := strings.Join([]string{`P:"ok"`, `garbage`, `C:unquoted`, `C:"cmd"`}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	h, err := LoadHistory(path)
	if err != nil {
		t.Fatal(err)
	}

	if h.Len() != 2 {
		t.Errorf("Len = %d, want 2", h.Len())
	}
}
