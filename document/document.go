// Package document assembles a complete LaTeX file from rendered content and
// the metadata declared in a Typst template header.
package document

import (
	_ "embed"
	"os"
	"regexp"
	"strings"

	"github.com/ardnew/typtex/pkg"
	"github.com/ardnew/typtex/typst"
)

// Predefined errors (sentinel values).
var ErrTemplate = pkg.NewError("read template")

// DefaultTemplate is the LaTeX skeleton used when no template file is given.
//
//go:embed template.tex
var DefaultTemplate string

// DefaultDate is substituted for %date% when a document has no date.
const DefaultDate = `\today`

// Placeholders recognized in templates.
const (
	PlaceholderTitle        = "%title%"
	PlaceholderAuthors      = "%authors%"
	PlaceholderDate         = "%date%"
	PlaceholderAbstract     = "%abstract%"
	PlaceholderBibliography = "%bibliography%"
	PlaceholderContent      = "%content%"
)

// Meta is the metadata found in a Typst template header. Fields that are not
// declared are empty.
type Meta struct {
	Title        string `json:"title,omitempty"        yaml:"title,omitempty"`
	Authors      string `json:"authors,omitempty"      yaml:"authors,omitempty"`
	Abstract     string `json:"abstract,omitempty"     yaml:"abstract,omitempty"`
	Bibliography string `json:"bibliography,omitempty" yaml:"bibliography,omitempty"`
}

// Document is a converted document ready to be placed in a template.
type Document struct {
	Meta

	Date    string
	Content string
}

// LaTeX returns template with every placeholder replaced.
func (d Document) LaTeX(template string) string {
	date := d.Date
	if date == "" {
		date = DefaultDate
	}

	return strings.NewReplacer(
		PlaceholderTitle, d.Title,
		PlaceholderAuthors, d.Authors,
		PlaceholderAbstract, d.Abstract,
		PlaceholderBibliography, d.Bibliography,
		PlaceholderDate, date,
		PlaceholderContent, d.Content,
	).Replace(template)
}

// LoadTemplate reads a template file. An empty path selects
// [DefaultTemplate].
func LoadTemplate(path string) (string, error) {
	if path == "" {
		return DefaultTemplate, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return "", ErrTemplate.Wrap(err)
	}

	return string(b), nil
}

var (
	titleField    = regexp.MustCompile(`\btitle\s*:\s*\[`)
	authorsField  = regexp.MustCompile(`\bauthors\s*:\s*\(`)
	abstractField = regexp.MustCompile(`\babstract\s*:\s*([A-Za-z_][\w-]*)`)
	bibField      = regexp.MustCompile(`\bbibliography\s*:\s*bibliography\(\s*"([^"]+)"`)
	nameField     = regexp.MustCompile(`\bname\s*:\s*"([^"]*)"`)
	affilField    = regexp.MustCompile(`\baffiliation\s*:\s*"([^"]*)"`)
)

// ParseMeta extracts header metadata from src:
//
//	title: [..]                          the title
//	authors: (name: "..", affiliation: "..")  one or more authors
//	abstract: ident                      with #let ident = [..]
//	bibliography: bibliography("refs.bib")
//
// Each author is rendered as name\\ affiliation; several authors are joined
// with \and.
func ParseMeta(src string) Meta {
	var m Meta

	if loc := titleField.FindStringIndex(src); loc != nil {
		m.Title = block(src, loc[1], '[', ']')
	}

	if loc := authorsField.FindStringIndex(src); loc != nil {
		m.Authors = authors(block(src, loc[1], '(', ')'))
	}

	if sub := abstractField.FindStringSubmatch(src); sub != nil {
		def := regexp.MustCompile(`#let\s+` + regexp.QuoteMeta(sub[1]) + `\s*=\s*\[`)
		if loc := def.FindStringIndex(src); loc != nil {
			m.Abstract = block(src, loc[1], '[', ']')
		}
	}

	if sub := bibField.FindStringSubmatch(src); sub != nil {
		m.Bibliography = strings.TrimSpace(sub[1])
	}

	return m
}

// block returns the trimmed span between the opener just before start and
// its match, or "" if it is unbalanced.
func block(src string, start int, opener, closer byte) string {
	span, _, err := typst.Extract(src, start, opener, closer)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(span)
}

// authors formats the entries of an authors list. Each name starts a new
// author; an affiliation belongs to the name before it.
func authors(list string) string {
	names := nameField.FindAllStringSubmatchIndex(list, -1)
	out := make([]string, 0, len(names))

	for i, loc := range names {
		end := len(list)
		if i+1 < len(names) {
			end = names[i+1][0]
		}

		author := strings.TrimSpace(list[loc[2]:loc[3]])

		if sub := affilField.FindStringSubmatch(list[loc[1]:end]); sub != nil {
			if affil := strings.TrimSpace(sub[1]); affil != "" {
				author += `\\` + "\n" + affil
			}
		}

		out = append(out, author)
	}

	if len(out) == 0 {
		if sub := affilField.FindStringSubmatch(list); sub != nil {
			return strings.TrimSpace(sub[1])
		}
	}

	return strings.Join(out, "\n\\and\n")
}
