package typst

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/goccy/go-yaml"
)

// span is the serialized text of a leaf. Multiline spans use a YAML literal
// block only in block style and only when the block reads back exactly;
// others are double-quoted.
type span string

// flowStyle marks a YAML encoding context using flow style.
type flowStyle struct{}

func (s span) MarshalYAML(ctx context.Context) (any, error) {
	if !strings.ContainsAny(string(s), "\n\r") {
		return string(s), nil
	}

	if flow, _ := ctx.Value(flowStyle{}).(bool); flow || !literalSafe(string(s)) {
		return quoted(s), nil
	}

	return string(s), nil
}

// literalSafe reports whether s survives a round trip through a literal
// block: no carriage returns or control characters, no blank-only content,
// no trailing blanks on any line, and a first non-empty line that is not
// indented.
func literalSafe(s string) bool {
	if strings.TrimSpace(s) == "" || strings.ContainsRune(s, '\r') {
		return false
	}

	first := true

	for line := range strings.SplitSeq(s, "\n") {
		if line == "" {
			continue
		}

		if strings.TrimRight(line, " \t") != line {
			return false
		}

		if first && (line[0] == ' ' || line[0] == '\t') {
			return false
		}

		first = false

		if strings.ContainsFunc(line, func(r rune) bool {
			return !unicode.IsPrint(r) && r != '\t'
		}) {
			return false
		}
	}

	return true
}

// quoted is a string always encoded as a double-quoted YAML scalar.
type quoted string

func (q quoted) MarshalYAML() ([]byte, error) {
	return []byte(strconv.Quote(string(q))), nil
}

// document is the serialized form of a node.
type document struct {
	Title   *string    `json:"title,omitempty"   yaml:"title,omitempty"`
	Caption *document  `json:"caption,omitempty" yaml:"caption,omitempty"`
	Type    string     `json:"type"              yaml:"type"`
	Pos     string     `json:"pos"               yaml:"pos"`
	Kind    string     `json:"kind,omitempty"    yaml:"kind,omitempty"`
	Label   string     `json:"label,omitempty"   yaml:"label,omitempty"`
	Key     string     `json:"key,omitempty"     yaml:"key,omitempty"`
	Span    span       `json:"span,omitempty"    yaml:"span,omitempty"`
	Heading []document `json:"heading,omitempty" yaml:"heading,omitempty"`
	Body    []document `json:"body,omitempty"    yaml:"body,omitempty"`
	Cells   []document `json:"cells,omitempty"   yaml:"cells,omitempty"`
}

func documents(nodes []Node) []document {
	if len(nodes) == 0 {
		return nil
	}

	docs := make([]document, len(nodes))
	for i, n := range nodes {
		docs[i] = toDocument(n)
	}

	return docs
}

func toDocument(n Node) document {
	d := document{Type: TypeName(n), Pos: n.Position().String()}

	switch n := n.(type) {
	case *Text:
		d.Span = span(n.Span)
	case *RawInsert:
		d.Span = span(n.Span)
	case *Citation:
		d.Key = n.Key
	case *Reference:
		d.Key = n.Key
	case *Environment:
		d.Kind, d.Title, d.Label = n.Kind, n.Title, n.Label
		d.Heading = documents(n.Heading)
		d.Body = documents(n.Body)
	case *Figure:
		d.Label = n.Label
		d.Body = documents(n.Body)

		if n.Caption != nil {
			c := toDocument(n.Caption)
			d.Caption = &c
		}
	case *Grid:
		d.Cells = documents(n.Cells)
	case *Content:
		d.Body = documents(n.Body)
	}

	return d
}

// TypeName returns the lowercase name of the node's type.
func TypeName(n Node) string {
	switch n.(type) {
	case *Text:
		return "text"
	case *Environment:
		return "environment"
	case *Figure:
		return "figure"
	case *Grid:
		return "grid"
	case *Content:
		return "content"
	case *Citation:
		return "citation"
	case *Reference:
		return "reference"
	case *RawInsert:
		return "raw"
	default:
		return "unknown"
	}
}

// FormatJSON writes the tree as JSON to the writer.
func FormatJSON(_ context.Context, w io.Writer, nodes []Node, indent int) error {
	var (
		jsonData []byte
		err      error
	)

	docs := documents(nodes)
	if docs == nil {
		docs = []document{}
	}

	if indent > 0 {
		jsonData, err = json.MarshalIndent(docs, "", strings.Repeat(" ", indent))
	} else {
		jsonData, err = json.Marshal(docs)
	}

	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(jsonData))

	return err
}

// FormatYAML writes the tree as YAML to the writer. An indent of zero
// selects flow style.
func FormatYAML(ctx context.Context, w io.Writer, nodes []Node, indent int) error {
	var opts []yaml.EncodeOption
	if indent > 0 {
		opts = append(opts,
			yaml.Indent(indent),
			yaml.UseLiteralStyleIfMultiline(true))
	} else {
		opts = append(opts, yaml.Flow(true))
		ctx = context.WithValue(ctx, flowStyle{}, true)
	}

	docs := documents(nodes)
	if docs == nil {
		docs = []document{}
	}

	yamlData, err := yaml.MarshalContext(ctx, docs, opts...)
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(w, string(yamlData))

	return err
}

// Format writes the tree as an indented outline, one node per line.
func Format(_ context.Context, w io.Writer, nodes []Node, indent int) error {
	return formatNodes(w, nodes, max(indent, 1), 0)
}

func formatNodes(w io.Writer, nodes []Node, indent, depth int) error {
	for _, n := range nodes {
		if err := formatNode(w, n, indent, depth); err != nil {
			return err
		}
	}

	return nil
}

func formatNode(w io.Writer, n Node, indent, depth int) error {
	var detail string

	switch n := n.(type) {
	case *Text:
		detail = strconv.Quote(n.Span)
	case *RawInsert:
		detail = strconv.Quote(n.Span)
	case *Citation:
		detail = n.Key
	case *Reference:
		detail = n.Key
	case *Environment:
		detail = n.Kind
		if n.Title != nil {
			detail += " " + strconv.Quote(*n.Title)
		}

		if n.Label != "" {
			detail += " <" + n.Label + ">"
		}
	case *Figure:
		if n.Label != "" {
			detail = "<" + n.Label + ">"
		}
	}

	line := strings.Repeat(" ", depth*indent) + TypeName(n) + " " +
		n.Position().String()
	if detail != "" {
		line += " " + detail
	}

	if _, err := fmt.Fprintln(w, line); err != nil {
		return err
	}

	switch n := n.(type) {
	case *Environment:
		return formatNodes(w, n.Body, indent, depth+1)
	case *Figure:
		if n.Caption != nil {
			if err := formatNode(w, n.Caption, indent, depth+1); err != nil {
				return err
			}
		}

		return formatNodes(w, n.Body, indent, depth+1)
	case *Grid:
		return formatNodes(w, n.Cells, indent, depth+1)
	case *Content:
		return formatNodes(w, n.Body, indent, depth+1)
	}

	return nil
}
