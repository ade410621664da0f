package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ardnew/typtex/typst"
)

// diagnostic renders parse errors as file:line:col: message followed by the
// offending source line and a caret.
type diagnostic struct {
	location lipgloss.Style
	message  lipgloss.Style
	gutter   lipgloss.Style
	caret    lipgloss.Style
}

func newDiagnostic(w io.Writer) diagnostic {
	r := lipgloss.NewRenderer(w)

	return diagnostic{
		location: r.NewStyle().Bold(true),
		message:  r.NewStyle().Foreground(lipgloss.Color("1")),
		gutter:   r.NewStyle().Foreground(lipgloss.Color("8")),
		caret:    r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
}

// diagnose writes a diagnostic for err to w. Errors without a source
// position are left for the caller to log.
func diagnose(w io.Writer, file, src string, err error) {
	if s := newDiagnostic(w).format(file, src, err); s != "" {
		fmt.Fprintln(w, s)
	}
}

func (d diagnostic) format(file, src string, err error) string {
	var perr *typst.Error
	if !errors.As(err, &perr) {
		return ""
	}

	pos, ok := perr.Position()
	if !ok {
		return ""
	}

	if file == stdio {
		file = "<stdin>"
	}

	// The message without its position prefix.
	msg := strings.TrimPrefix(perr.Error(), pos.String()+": ")

	var b strings.Builder

	b.WriteString(d.location.Render(fmt.Sprintf("%s:%s:", file, pos)))
	b.WriteByte(' ')
	b.WriteString(d.message.Render(msg))

	if snippet := perr.Snippet(src); snippet != "" {
		source, marker, _ := strings.Cut(snippet, "\n")
		num, line, _ := strings.Cut(source, " | ")
		pad, caret, _ := strings.Cut(marker, " | ")

		b.WriteByte('\n')
		b.WriteString(d.gutter.Render(num+" |") + " " + line)
		b.WriteByte('\n')
		b.WriteString(d.gutter.Render(pad+" |") + " ")
		b.WriteString(strings.TrimSuffix(caret, "^"))
		b.WriteString(d.caret.Render("^"))
	}

	return b.String()
}
