package repl

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
)

const baseHistory = "history.utf8"

// entry is one line of history. Lines are stored quoted, prefixed by the
// mode they were entered in (P: preview, C: command), so that multi-line
// previews survive on one line of the file.
type entry struct {
	line string
	mode inputMode
}

func (e entry) String() string {
	prefix := "P:"
	if e.mode == modeCtrl {
		prefix = "C:"
	}

	return prefix + strconv.Quote(e.line)
}

func parseEntry(s string) (entry, bool) {
	mode := modePreview

	switch {
	case strings.HasPrefix(s, "P:"):
	case strings.HasPrefix(s, "C:"):
		mode = modeCtrl
	default:
		return entry{}, false
	}

	line, err := strconv.Unquote(s[2:])
	if err != nil || line == "" {
		return entry{}, false
	}

	return entry{line: line, mode: mode}, true
}

// History is the REPL input history, persisted to a file. A History with an
// empty path is kept in memory only.
type History struct {
	path    string
	entries []entry
	mu      sync.RWMutex
}

// LoadHistory reads the history file at path. A missing file is an empty
// history; malformed lines are skipped.
func LoadHistory(path string) (*History, error) {
	h := &History{path: path}

	if path == "" {
		return h, nil
	}

	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return h, nil
	}

	if err != nil {
		return h, ErrHistory.Wrap(err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if e, ok := parseEntry(strings.TrimSpace(scanner.Text())); ok {
			h.entries = append(h.entries, e)
		}
	}

	if err := scanner.Err(); err != nil {
		return h, ErrHistory.Wrap(err)
	}

	return h, nil
}

// Add appends line to the history, removing an earlier copy entered in the
// same mode.
func (h *History) Add(line string, mode inputMode) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	e := entry{line: line, mode: mode}

	if n := len(h.entries); n > 0 && h.entries[n-1] == e {
		return nil
	}

	if i := slices.Index(h.entries, e); i >= 0 {
		h.entries = slices.Delete(h.entries, i, i+1)
		h.entries = append(h.entries, e)

		return h.save()
	}

	h.entries = append(h.entries, e)

	return h.append(e)
}

// At returns the entry at index i; index 0 is the oldest.
func (h *History) At(i int) (string, inputMode, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if i < 0 || i >= len(h.entries) {
		return "", 0, ErrOutOfBounds
	}

	return h.entries[i].line, h.entries[i].mode, nil
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.entries)
}

// Find returns the index of the nearest entry from i in direction step
// (-1 older, +1 newer) that was entered in mode, or any mode if all is set.
// It returns -1 if there is none.
func (h *History) Find(i, step int, mode inputMode, all bool) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for i += step; i >= 0 && i < len(h.entries); i += step {
		if all || h.entries[i].mode == mode {
			return i
		}
	}

	return -1
}

// append writes e to the end of the file. Must be called with h.mu held.
func (h *History) append(e entry) error {
	if h.path == "" {
		return nil
	}

	file, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return ErrHistory.Wrap(err)
	}
	defer file.Close()

	if _, err := file.WriteString(e.String() + "\n"); err != nil {
		return ErrHistory.Wrap(err)
	}

	return nil
}

// save rewrites the file with all entries. Must be called with h.mu held.
func (h *History) save() error {
	if h.path == "" {
		return nil
	}

	var b strings.Builder

	for _, e := range h.entries {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}

	if err := os.WriteFile(h.path, []byte(b.String()), 0o600); err != nil {
		return ErrHistory.Wrap(err)
	}

	return nil
}
