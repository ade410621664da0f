// Package bib extracts entry keys from BibTeX files.
//
// Only the keys are needed: they decide whether an @key token in a document
// is a citation or a cross-reference. Entry fields are not parsed.
package bib

import (
	"bufio"
	"io"
	"log/slog"
	"maps"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/ardnew/typtex/pkg"
)

// Predefined errors (sentinel values).
var (
	ErrOpen = pkg.NewError("open bibliography")
	ErrRead = pkg.NewError("read bibliography")
)

// entry matches a line that opens an entry and ends right after its key.
var entry = regexp.MustCompile(`^@\w+\s*\{([^,]+),\s*$`)

// Keys is a set of bibliography entry keys. The zero value is an empty set.
type Keys map[string]struct{}

// NewKeys returns a set holding keys.
func NewKeys(keys ...string) Keys {
	k := make(Keys, len(keys))
	for _, key := range keys {
		k[key] = struct{}{}
	}

	return k
}

// Has reports whether key is in the set.
func (k Keys) Has(key string) bool {
	_, ok := k[key]

	return ok
}

// Len returns the number of keys.
func (k Keys) Len() int { return len(k) }

// Sorted returns the keys in lexical order.
func (k Keys) Sorted() []string {
	return slices.Sorted(maps.Keys(k))
}

// LogValue implements slog.LogValuer.
func (k Keys) LogValue() slog.Value {
	return slog.IntValue(k.Len())
}

// LoadFile reads the keys of the BibTeX file at path.
func LoadFile(path string) (Keys, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ErrOpen.Wrap(err).With(slog.String("path", path))
	}
	defer f.Close()

	keys, err := Load(f)
	if err != nil {
		return nil, ErrRead.Wrap(err).With(slog.String("path", path))
	}

	return keys, nil
}

// Load reads the keys of a BibTeX database. An entry is recognized by a
// line of the form "@type{key," (surrounding whitespace ignored). Blank
// lines, % comments, and @comment, @preamble and @string blocks are
// skipped. An entry line without a trailing comma still yields its key when
// the key is the only thing after the brace.
func Load(r io.Reader) (Keys, error) {
	keys := Keys{}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		if line == "" || line[0] == '%' || line[0] != '@' || special(line) {
			continue
		}

		if m := entry.FindStringSubmatch(line); m != nil {
			if key := strings.TrimSpace(m[1]); key != "" {
				keys[key] = struct{}{}
			}

			continue
		}

		if key, ok := fallbackKey(line); ok {
			keys[key] = struct{}{}
		}
	}

	if err := sc.Err(); err != nil {
		return nil, err
	}

	return keys, nil
}

func special(line string) bool {
	lower := strings.ToLower(line)

	for _, kind := range []string{"@comment", "@preamble", "@string"} {
		if strings.HasPrefix(lower, kind) {
			return true
		}
	}

	return false
}

// fallbackKey recovers the key from an entry line the pattern rejects, such
// as "@book{key, title = {...}," or "@misc{key".
func fallbackKey(line string) (string, bool) {
	open := strings.IndexByte(line, '{')
	if open < 0 {
		return "", false
	}

	rest := line[open+1:]

	if comma := strings.IndexByte(rest, ','); comma >= 0 {
		key := strings.TrimSpace(rest[:comma])

		return key, key != ""
	}

	key := strings.TrimSpace(rest)

	return key, key != "" && !strings.HasSuffix(key, "}")
}
