package repl

import (
	"cmp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/sahilm/fuzzy"

	"github.com/ardnew/typtex/typst"
)

// ctrlCommands are the available command-mode commands.
var ctrlCommands = []string{
	"help", "keys", "kinds", "tree", "title", "drop", "clear", "quit",
}

// builtinCalls are the #name constructs recognized regardless of kinds.
var builtinCalls = []string{"figure", "grid"}

// isWordRune reports whether r may appear in a completed word: a key or
// identifier character, or the @ and # sigils.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) ||
		strings.ContainsRune("_-:.@#", r)
}

// wordBounds returns the word around cursor and its byte boundaries within
// input. The word is empty when the cursor is not touching one.
func wordBounds(input string, cursor int) (word string, start, end int) {
	cursor = min(max(cursor, 0), len(input))

	start = cursor
	for start > 0 {
		r, size := utf8.DecodeLastRuneInString(input[:start])
		if !isWordRune(r) {
			break
		}

		start -= size
	}

	end = cursor
	for end < len(input) {
		r, size := utf8.DecodeRuneInString(input[end:])
		if !isWordRune(r) {
			break
		}

		end += size
	}

	return input[start:end], start, end
}

// completer proposes bibliography keys after @, environment kinds after #,
// and command names in command mode.
type completer struct {
	keys  []string
	kinds []string
}

func newCompleter(keys, kinds []string) completer {
	all := slices.Concat(builtinCalls, slices.DeleteFunc(
		slices.Clone(kinds),
		func(k string) bool { return k == typst.AnyKind },
	))
	slices.Sort(all)

	return completer{keys: keys, kinds: slices.Compact(all)}
}

// completion is the set of candidates for the word at the cursor, and the
// byte range of input a chosen candidate replaces.
type completion struct {
	matches    fuzzy.Matches
	start, end int
}

func (c completer) complete(input string, cursor int, mode inputMode) completion {
	word, start, end := wordBounds(input, cursor)
	if word == "" {
		return completion{start: start, end: end}
	}

	if mode == modeCtrl {
		if start != len(input)-len(strings.TrimLeft(input, " ")) {
			// Only the command name is completed.
			return completion{start: start, end: end}
		}

		return completion{
			matches: find(word, ctrlCommands),
			start:   start,
			end:     end,
		}
	}

	var candidates []string

	switch word[0] {
	case '@':
		candidates = c.keys
	case '#':
		candidates = c.kinds
	default:
		return completion{start: start, end: end}
	}

	// The sigil stays; only the name after it is replaced.
	start++
	pattern := word[1:]

	if pattern == "" {
		matches := make(fuzzy.Matches, len(candidates))
		for i, s := range candidates {
			matches[i] = fuzzy.Match{Str: s, Index: i}
		}

		return completion{matches: matches, start: start, end: end}
	}

	return completion{
		matches: find(pattern, candidates),
		start:   start,
		end:     end,
	}
}

// find returns the fuzzy matches of pattern in candidates, best score first.
// Equal scores keep candidate order.
func find(pattern string, candidates []string) fuzzy.Matches {
	matches := fuzzy.Find(pattern, candidates)

	slices.SortStableFunc(matches, func(a, b fuzzy.Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}

		return cmp.Compare(a.Index, b.Index)
	})

	return matches
}

// renderCandidateBar builds the single-line completion bar, truncated with
// an ellipsis to fit width. The selected candidate is highlighted while
// tab-cycling.
func renderCandidateBar(
	matches fuzzy.Matches,
	selected int,
	width int,
) string {
	if len(matches) == 0 || width <= 0 {
		return ""
	}

	const sep = "  "

	ellipsis := hintStyle.Render("...")
	reserve := lipgloss.Width(sep) + lipgloss.Width(ellipsis)

	var (
		b    strings.Builder
		used int
	)

	for i, match := range matches {
		rendered := renderCandidate(match, i == selected)
		w := lipgloss.Width(rendered)

		if i > 0 {
			w += lipgloss.Width(sep)
		}

		if i > 0 && i < len(matches)-1 && used+w+reserve > width {
			b.WriteString(sep + ellipsis)

			break
		}

		if i > 0 {
			b.WriteString(sep)
		}

		b.WriteString(rendered)

		used += w
	}

	return b.String()
}

// renderCandidate renders a candidate with its matched characters in bold.
func renderCandidate(match fuzzy.Match, selected bool) string {
	base := suggestionStyle
	if selected {
		base = selectedStyle
	}

	highlight := base.Bold(true)

	var b strings.Builder

	for i, r := range match.Str {
		if slices.Contains(match.MatchedIndexes, i) {
			b.WriteString(highlight.Render(string(r)))
		} else {
			b.WriteString(base.Render(string(r)))
		}
	}

	return b.String()
}
