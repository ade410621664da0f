package render

import (
	"strings"

	"github.com/ardnew/typtex/rule"
)

// dropCommands removes each line-leading #name code command for which drop
// holds. A command extends to the end of its line, or further while any
// bracket opened on it is unclosed, and its line break goes with it.
func dropCommands(span string, drop rule.Rule[rule.DropEnv]) (string, error) {
	if !strings.Contains(span, "#") {
		return span, nil
	}

	var b strings.Builder

	for i := 0; i < len(span); {
		j := i
		for j < len(span) && (span[j] == ' ' || span[j] == '\t') {
			j++
		}

		if name := commandName(span[j:]); name != "" {
			ok, err := drop.Eval(rule.DropEnv{Name: name})
			if err != nil {
				return "", err
			}

			if ok {
				i = commandEnd(span, j)

				continue
			}
		}

		k := strings.IndexByte(span[i:], '\n')
		if k < 0 {
			b.WriteString(span[i:])

			break
		}

		b.WriteString(span[i : i+k+1])
		i += k + 1
	}

	return b.String(), nil
}

// commandName returns the identifier of the #name command at the start of
// s, or "" if s does not start with one.
func commandName(s string) string {
	if len(s) < 2 || s[0] != '#' {
		return ""
	}

	n := 1
	for n < len(s) && isIdentByte(s[n], n == 1) {
		n++
	}

	return s[1:n]
}

func isIdentByte(c byte, first bool) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		return true
	case first:
		return false
	default:
		return (c >= '0' && c <= '9') || c == '-'
	}
}

// commandEnd returns the offset just past the command starting at start.
func commandEnd(s string, start int) int {
	depth, quoted := 0, false

	for i := start; i < len(s); i++ {
		switch c := s[i]; {
		case quoted && c == '\\':
			i++
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case c == '\n' && depth <= 0:
			return i + 1
		}
	}

	return len(s)
}
